// Package textstats counts words and sentences in chapter prose.
package textstats

import (
	"fmt"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"

	"github.com/csheth/chapterdesk/internal/blocks"
)

// Stats summarizes the visible prose of a chapter.
type Stats struct {
	Blocks    int
	Words     int
	Sentences int
}

func (s Stats) String() string {
	return fmt.Sprintf("%s words · %s sentences", humanize.Comma(int64(s.Words)), humanize.Comma(int64(s.Sentences)))
}

var (
	tokenizerOnce sync.Once
	tokenizer     *sentences.DefaultSentenceTokenizer
)

func splitter() *sentences.DefaultSentenceTokenizer {
	tokenizerOnce.Do(func() {
		t, err := english.NewSentenceTokenizer(nil)
		if err == nil {
			tokenizer = t
		}
	})
	return tokenizer
}

// ForBlocks counts the prose of every visible block. Metadata and
// unsupported blocks count as blocks but contribute no words.
func ForBlocks(list []blocks.Block) Stats {
	var stats Stats
	for _, b := range list {
		if _, ok := blocks.Render(b); !ok {
			continue
		}
		stats.Blocks++
		text := Prose(b)
		if text == "" {
			continue
		}
		stats.Words += Words(text)
		stats.Sentences += Sentences(text)
	}
	return stats
}

// Prose returns the narrative text of b: paragraph text and dialogue
// utterances. Structural blocks have none.
func Prose(b blocks.Block) string {
	switch v := b.(type) {
	case blocks.Paragraph:
		return strings.TrimSpace(v.Text)
	case blocks.Dialogue:
		parts := make([]string, 0, len(v.Turns))
		for _, turn := range v.Turns {
			if u := strings.TrimSpace(turn.Utterance); u != "" {
				parts = append(parts, u)
			}
		}
		return strings.Join(parts, " ")
	default:
		return ""
	}
}

func Words(text string) int {
	return len(strings.Fields(text))
}

// Sentences counts sentences with the English punkt model, falling back to
// terminal punctuation when the model is unavailable.
func Sentences(text string) int {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0
	}
	if t := splitter(); t != nil {
		count := 0
		for _, s := range t.Tokenize(text) {
			if strings.TrimSpace(s.Text) != "" {
				count++
			}
		}
		return count
	}
	count := strings.Count(text, ".") + strings.Count(text, "!") + strings.Count(text, "?")
	if count == 0 {
		return 1
	}
	return count
}

// Split returns the sentences of text.
func Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	t := splitter()
	if t == nil {
		return []string{text}
	}
	var out []string
	for _, s := range t.Tokenize(text) {
		if trimmed := strings.TrimSpace(s.Text); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
