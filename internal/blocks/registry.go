package blocks

import (
	"fmt"
	"sort"
	"strings"

	"github.com/maruel/natural"
)

// LineRole tells the view layer how to style a rendered line.
type LineRole string

const (
	RoleText      LineRole = "text"
	RoleTurn      LineRole = "turn"
	RoleSubtitle  LineRole = "subtitle"
	RoleEpigraph  LineRole = "epigraph"
	RoleField     LineRole = "field"
	RoleSummary   LineRole = "summary"
	RoleNotice    LineRole = "notice"
	RolePlacehold LineRole = "placeholder"
)

type Line struct {
	Role  LineRole
	Label string
	Text  string
	Aside string
}

// ReadView is the display form of a block, independent of any terminal styling.
type ReadView struct {
	BlockID     string
	Type        Type
	Kind        MetadataKind
	Heading     string
	Lines       []Line
	Unsupported bool
	Editable    bool
	Deletable   bool
}

// Render returns the read view for b. The second result is false when the
// block is intentionally invisible (editorial notes).
func Render(b Block) (ReadView, bool) {
	switch v := b.(type) {
	case Paragraph:
		return renderParagraph(v), true
	case Dialogue:
		return renderDialogue(v), true
	case SceneBoundary:
		return renderScene(v), true
	case Metadata:
		return renderMetadata(v)
	default:
		return renderUnsupported(b), true
	}
}

func renderParagraph(p Paragraph) ReadView {
	view := baseView(p)
	text := strings.TrimSpace(p.Text)
	if text == "" {
		view.Lines = []Line{{Role: RolePlacehold, Text: "Empty paragraph"}}
		return view
	}
	for _, para := range strings.Split(text, "\n") {
		view.Lines = append(view.Lines, Line{Role: RoleText, Text: para})
	}
	return view
}

func renderDialogue(d Dialogue) ReadView {
	view := baseView(d)
	for _, turn := range d.Turns {
		if strings.TrimSpace(turn.Utterance) == "" && strings.TrimSpace(turn.SpeakerName) == "" {
			continue
		}
		speaker := strings.TrimSpace(turn.SpeakerName)
		if speaker == "" {
			speaker = "Unattributed"
		}
		view.Lines = append(view.Lines, Line{
			Role:  RoleTurn,
			Label: speaker,
			Text:  strings.TrimSpace(turn.Utterance),
			Aside: strings.TrimSpace(turn.StageDirection),
		})
	}
	if len(view.Lines) == 0 {
		view.Lines = []Line{{Role: RolePlacehold, Text: "Empty dialogue"}}
	}
	return view
}

func renderScene(s SceneBoundary) ReadView {
	view := baseView(s)
	view.Heading = strings.TrimSpace(s.Label)
	if view.Heading == "" {
		view.Heading = "Scene break"
	}
	if summary := strings.TrimSpace(s.Summary); summary != "" {
		view.Lines = []Line{{Role: RoleSummary, Text: summary}}
	}
	return view
}

func renderMetadata(m Metadata) (ReadView, bool) {
	view := baseView(m)
	view.Kind = m.Kind
	switch m.Kind {
	case KindEditorial:
		return ReadView{}, false
	case KindChapterHeader:
		view.Heading = strings.TrimSpace(m.Title)
		if subtitle := strings.TrimSpace(m.Subtitle); subtitle != "" {
			view.Lines = append(view.Lines, Line{Role: RoleSubtitle, Text: subtitle})
		}
		if epigraph := strings.TrimSpace(m.Epigraph); epigraph != "" {
			view.Lines = append(view.Lines, Line{Role: RoleEpigraph, Text: epigraph})
		}
	case KindContext:
		view.Heading = "Context"
		if ctx := strings.TrimSpace(m.Context); ctx != "" {
			view.Lines = append(view.Lines, Line{Role: RoleField, Label: "Context", Text: ctx})
		}
		if narrative := strings.TrimSpace(m.NarrativeContext); narrative != "" {
			view.Lines = append(view.Lines, Line{Role: RoleField, Label: "Narrative", Text: narrative})
		}
	case KindMetadata:
		view.Heading = "Metadata"
		for _, key := range sortedKeys(m.Entries) {
			view.Lines = append(view.Lines, Line{Role: RoleField, Label: key, Text: m.Entries[key]})
		}
	default:
		return renderUnsupported(m), true
	}
	if len(view.Lines) == 0 && view.Heading == "" {
		view.Lines = []Line{{Role: RolePlacehold, Text: "Empty " + strings.ReplaceAll(string(m.Kind), "_", " ")}}
	}
	return view, true
}

func renderUnsupported(b Block) ReadView {
	view := ReadView{Unsupported: true, Heading: "Unsupported block"}
	if b == nil {
		view.Lines = []Line{{Role: RoleNotice, Text: "missing block"}}
		return view
	}
	view.BlockID = b.BlockID()
	view.Type = b.BlockType()
	text := fmt.Sprintf("type %q is not supported by this client", b.BlockType())
	line := Line{Role: RoleNotice, Text: text}
	if u, ok := b.(Unknown); ok && u.Reason != "" {
		line.Aside = u.Reason
	}
	view.Lines = []Line{line}
	return view
}

func baseView(b Block) ReadView {
	return ReadView{
		BlockID:   b.BlockID(),
		Type:      b.BlockType(),
		Editable:  Editable(b),
		Deletable: Deletable(b),
	}
}

func sortedKeys(entries map[string]string) []string {
	keys := make([]string, 0, len(entries))
	for key := range entries {
		keys = append(keys, key)
	}
	sort.Sort(natural.StringSlice(keys))
	return keys
}

// Editable reports whether the client offers an edit view for b.
func Editable(b Block) bool {
	switch b.(type) {
	case Paragraph, Dialogue, SceneBoundary, Metadata:
		return true
	default:
		return false
	}
}

// Deletable reports whether deletion is supported for b.
func Deletable(b Block) bool {
	switch b.(type) {
	case Paragraph, Dialogue, SceneBoundary:
		return true
	default:
		return false
	}
}

// TypeLabel is the human name of a block type.
func TypeLabel(t Type) string {
	switch t {
	case TypeParagraph:
		return "Paragraph"
	case TypeDialogue:
		return "Dialogue"
	case TypeSceneBoundary:
		return "Scene boundary"
	case TypeMetadata:
		return "Metadata"
	default:
		return string(t)
	}
}
