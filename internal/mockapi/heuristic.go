package mockapi

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/csheth/chapterdesk/internal/blocks"
)

var (
	speakerLine = regexp.MustCompile(`^([A-Z][\p{L}0-9 .'\-]{0,39}):\s+(.+)$`)
	directionAt = regexp.MustCompile(`\s*\(([^()]+)\)\s*$`)
	sceneRule   = regexp.MustCompile(`^(\*\s*){3,}$|^(-\s*){3,}$|^#+\s*$`)
)

// ConvertText splits plain prose into draft blocks. Chunks are separated by
// blank lines. A chunk becomes a scene boundary when it is a rule ("***",
// "---", "#") or a "# Label" heading, dialogue when every line reads
// "Name: words", and a paragraph otherwise. Draft ids are positional.
func ConvertText(text string) []blocks.Block {
	var out []blocks.Block
	for _, chunk := range chunks(text) {
		id := fmt.Sprintf("draft-%d", len(out)+1)
		out = append(out, convertChunk(id, chunk))
	}
	return out
}

func chunks(text string) [][]string {
	var (
		out     [][]string
		current []string
	)
	flush := func() {
		if len(current) > 0 {
			out = append(out, current)
			current = nil
		}
	}
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			flush()
			continue
		}
		current = append(current, line)
	}
	flush()
	return out
}

func convertChunk(id string, lines []string) blocks.Block {
	first := lines[0]
	if sceneRule.MatchString(first) {
		return blocks.SceneBoundary{ID: id, Summary: strings.Join(lines[1:], " ")}
	}
	if strings.HasPrefix(first, "#") {
		label := strings.TrimSpace(strings.TrimLeft(first, "#"))
		return blocks.SceneBoundary{ID: id, Label: label, Summary: strings.Join(lines[1:], " ")}
	}
	if turns, ok := dialogueTurns(lines); ok {
		return blocks.Dialogue{ID: id, Turns: turns}
	}
	return blocks.Paragraph{ID: id, Text: strings.Join(lines, " ")}
}

func dialogueTurns(lines []string) ([]blocks.Turn, bool) {
	turns := make([]blocks.Turn, 0, len(lines))
	for _, line := range lines {
		m := speakerLine.FindStringSubmatch(line)
		if m == nil {
			return nil, false
		}
		turn := blocks.Turn{SpeakerName: strings.TrimSpace(m[1]), Utterance: strings.TrimSpace(m[2])}
		if d := directionAt.FindStringSubmatchIndex(turn.Utterance); d != nil && d[0] > 0 {
			turn.StageDirection = strings.TrimSpace(turn.Utterance[d[2]:d[3]])
			turn.Utterance = strings.TrimSpace(turn.Utterance[:d[0]])
		}
		turns = append(turns, turn)
	}
	return turns, true
}
