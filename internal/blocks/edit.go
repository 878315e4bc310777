package blocks

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/maruel/natural"
)

var (
	ErrNotEditable = errors.New("block type cannot be edited")
	ErrEmptyBlock  = errors.New("block content cannot be empty")
)

const turnSeparator = "|"

// EditText renders b into the plain-text buffer format used by the editor.
//
//	paragraph       raw text
//	dialogue        one "speaker | utterance | direction" line per turn
//	scene boundary  label on the first line, summary below
//	metadata        "key: value" lines
func EditText(b Block) (string, error) {
	switch v := b.(type) {
	case Paragraph:
		return v.Text, nil
	case Dialogue:
		lines := make([]string, 0, len(v.Turns))
		for _, turn := range v.Turns {
			parts := []string{turn.SpeakerName, turn.Utterance}
			if turn.StageDirection != "" {
				parts = append(parts, turn.StageDirection)
			}
			lines = append(lines, strings.Join(parts, " "+turnSeparator+" "))
		}
		return strings.Join(lines, "\n"), nil
	case SceneBoundary:
		if v.Summary == "" {
			return v.Label, nil
		}
		return v.Label + "\n" + v.Summary, nil
	case Metadata:
		return strings.Join(metadataFields(v), "\n"), nil
	default:
		return "", ErrNotEditable
	}
}

// ParseEdit applies an edited buffer to b and returns the updated block. The
// block keeps its id and type.
func ParseEdit(b Block, text string) (Block, error) {
	switch v := b.(type) {
	case Paragraph:
		text = strings.TrimSpace(text)
		if text == "" {
			return nil, fmt.Errorf("paragraph: %w", ErrEmptyBlock)
		}
		v.Text = text
		return v, nil
	case Dialogue:
		turns, err := parseTurns(text)
		if err != nil {
			return nil, err
		}
		v.Turns = turns
		return v, nil
	case SceneBoundary:
		label, summary, _ := strings.Cut(strings.TrimSpace(text), "\n")
		v.Label = strings.TrimSpace(label)
		v.Summary = strings.TrimSpace(summary)
		return v, nil
	case Metadata:
		return parseMetadata(v, text)
	default:
		return nil, ErrNotEditable
	}
}

func parseTurns(text string) ([]Turn, error) {
	var turns []Turn
	for idx, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.Split(line, turnSeparator)
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		var turn Turn
		switch len(parts) {
		case 1:
			turn.Utterance = parts[0]
		case 2:
			turn.SpeakerName, turn.Utterance = parts[0], parts[1]
		default:
			turn.SpeakerName = parts[0]
			turn.Utterance = parts[1]
			turn.StageDirection = strings.Join(parts[2:], " "+turnSeparator+" ")
		}
		if turn.Utterance == "" {
			return nil, fmt.Errorf("dialogue line %d: utterance is required", idx+1)
		}
		turns = append(turns, turn)
	}
	if len(turns) == 0 {
		return nil, fmt.Errorf("dialogue: %w", ErrEmptyBlock)
	}
	return turns, nil
}

func metadataFields(m Metadata) []string {
	field := func(key, value string) string { return key + ": " + value }
	switch m.Kind {
	case KindChapterHeader:
		return []string{field("title", m.Title), field("subtitle", m.Subtitle), field("epigraph", m.Epigraph)}
	case KindContext:
		return []string{field("context", m.Context), field("narrative", m.NarrativeContext)}
	case KindEditorial:
		return []string{field("note", m.Note)}
	default:
		keys := make([]string, 0, len(m.Entries))
		for key := range m.Entries {
			keys = append(keys, key)
		}
		sort.Sort(natural.StringSlice(keys))
		lines := make([]string, 0, len(keys))
		for _, key := range keys {
			lines = append(lines, field(key, m.Entries[key]))
		}
		return lines
	}
}

func parseMetadata(m Metadata, text string) (Block, error) {
	values := map[string]string{}
	var order []string
	for idx, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("metadata line %d: expected \"key: value\"", idx+1)
		}
		if _, seen := values[key]; !seen {
			order = append(order, key)
		}
		values[key] = strings.TrimSpace(value)
	}
	switch m.Kind {
	case KindChapterHeader:
		m.Title, m.Subtitle, m.Epigraph = values["title"], values["subtitle"], values["epigraph"]
		if m.Title == "" {
			return nil, errors.New("chapter header: title is required")
		}
	case KindContext:
		m.Context, m.NarrativeContext = values["context"], values["narrative"]
	case KindEditorial:
		m.Note = values["note"]
	default:
		m.Entries = make(map[string]string, len(order))
		for _, key := range order {
			m.Entries[key] = values[key]
		}
	}
	return m, nil
}

// Patch is the set of content fields sent with an update. Identity fields are
// never part of a patch.
type Patch map[string]any

// PatchFor extracts the content fields of b. Every content field is present,
// so clearing a field in the editor clears it on the server.
func PatchFor(b Block) (Patch, error) {
	switch v := b.(type) {
	case Paragraph:
		return Patch{"text": v.Text}, nil
	case Dialogue:
		return Patch{"turns": v.Turns}, nil
	case SceneBoundary:
		return Patch{"label": v.Label, "summary": v.Summary}, nil
	case Metadata:
		entries := v.Entries
		if entries == nil {
			entries = map[string]string{}
		}
		return Patch{
			"kind":             v.Kind,
			"title":            v.Title,
			"subtitle":         v.Subtitle,
			"epigraph":         v.Epigraph,
			"context":          v.Context,
			"narrativeContext": v.NarrativeContext,
			"note":             v.Note,
			"entries":          entries,
		}, nil
	default:
		return nil, ErrNotEditable
	}
}

// ApplyPatch overlays patch onto b. The result goes through Decode, so an
// invalid patch yields Unknown rather than a half-updated block.
func ApplyPatch(b Block, patch Patch) (Block, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	for key, value := range patch {
		if key == "id" || key == "type" {
			continue
		}
		fields[key] = value
	}
	merged, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}
	updated := Decode(merged)
	if u, ok := updated.(Unknown); ok {
		return nil, fmt.Errorf("invalid patch: %s", u.Reason)
	}
	return updated, nil
}
