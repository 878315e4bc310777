// Package blocks models the structured content of a chapter: the block sum
// type, its wire encoding, read-view rendering and the insertion slots that sit
// between rendered blocks.
package blocks

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Type is the wire discriminator of a block.
type Type string

const (
	TypeParagraph     Type = "paragraph"
	TypeDialogue      Type = "dialogue"
	TypeSceneBoundary Type = "scene_boundary"
	TypeMetadata      Type = "metadata"
)

// MetadataKind further discriminates metadata blocks.
type MetadataKind string

const (
	KindChapterHeader MetadataKind = "chapter_header"
	KindContext       MetadataKind = "context"
	KindEditorial     MetadataKind = "editorial"
	KindMetadata      MetadataKind = "metadata"
)

// Block is one structural unit of chapter content. The set of implementations
// is closed; anything the client does not understand decodes to Unknown.
type Block interface {
	BlockID() string
	BlockType() Type
	isBlock()
}

type Paragraph struct {
	ID   string
	Text string
}

// Turn is a single line of dialogue.
type Turn struct {
	SpeakerName    string `json:"speakerName,omitempty"`
	Utterance      string `json:"utterance"`
	StageDirection string `json:"stageDirection,omitempty"`
}

type Dialogue struct {
	ID    string
	Turns []Turn
}

type SceneBoundary struct {
	ID      string
	Label   string
	Summary string
}

// Metadata carries the union of all metadata kind fields. Only the fields of
// Kind are meaningful.
type Metadata struct {
	ID               string
	Kind             MetadataKind
	Title            string
	Subtitle         string
	Epigraph         string
	Context          string
	NarrativeContext string
	Note             string
	Entries          map[string]string
}

// Unknown preserves a block the client cannot interpret, either because the
// type or kind is new or because the payload was malformed.
type Unknown struct {
	ID     string
	Type   string
	Raw    json.RawMessage
	Reason string
}

func (b Paragraph) BlockID() string     { return b.ID }
func (b Dialogue) BlockID() string      { return b.ID }
func (b SceneBoundary) BlockID() string { return b.ID }
func (b Metadata) BlockID() string      { return b.ID }
func (b Unknown) BlockID() string       { return b.ID }

func (Paragraph) BlockType() Type     { return TypeParagraph }
func (Dialogue) BlockType() Type      { return TypeDialogue }
func (SceneBoundary) BlockType() Type { return TypeSceneBoundary }
func (Metadata) BlockType() Type      { return TypeMetadata }
func (b Unknown) BlockType() Type     { return Type(b.Type) }

func (Paragraph) isBlock()     {}
func (Dialogue) isBlock()      {}
func (SceneBoundary) isBlock() {}
func (Metadata) isBlock()      {}
func (Unknown) isBlock()       {}

// ChapterDetail is a chapter with its ordered blocks.
type ChapterDetail struct {
	ID        string    `json:"id"`
	BookID    string    `json:"bookId"`
	Title     string    `json:"title"`
	Summary   string    `json:"summary,omitempty"`
	Blocks    List      `json:"blocks"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// List is an ordered block sequence with tolerant JSON decoding.
type List []Block

type paragraphWire struct {
	ID   string `json:"id"`
	Type Type   `json:"type"`
	Text string `json:"text"`
}

type dialogueWire struct {
	ID    string `json:"id"`
	Type  Type   `json:"type"`
	Turns []Turn `json:"turns"`
}

type sceneWire struct {
	ID      string `json:"id"`
	Type    Type   `json:"type"`
	Label   string `json:"label,omitempty"`
	Summary string `json:"summary,omitempty"`
}

type metadataWire struct {
	ID               string            `json:"id"`
	Type             Type              `json:"type"`
	Kind             MetadataKind      `json:"kind"`
	Title            string            `json:"title,omitempty"`
	Subtitle         string            `json:"subtitle,omitempty"`
	Epigraph         string            `json:"epigraph,omitempty"`
	Context          string            `json:"context,omitempty"`
	NarrativeContext string            `json:"narrativeContext,omitempty"`
	Note             string            `json:"note,omitempty"`
	Entries          map[string]string `json:"entries,omitempty"`
}

type header struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Kind string `json:"kind"`
}

func (b Paragraph) MarshalJSON() ([]byte, error) {
	return json.Marshal(paragraphWire{ID: b.ID, Type: TypeParagraph, Text: b.Text})
}

func (b Dialogue) MarshalJSON() ([]byte, error) {
	turns := b.Turns
	if turns == nil {
		turns = []Turn{}
	}
	return json.Marshal(dialogueWire{ID: b.ID, Type: TypeDialogue, Turns: turns})
}

func (b SceneBoundary) MarshalJSON() ([]byte, error) {
	return json.Marshal(sceneWire{ID: b.ID, Type: TypeSceneBoundary, Label: b.Label, Summary: b.Summary})
}

func (b Metadata) MarshalJSON() ([]byte, error) {
	return json.Marshal(metadataWire{
		ID:               b.ID,
		Type:             TypeMetadata,
		Kind:             b.Kind,
		Title:            b.Title,
		Subtitle:         b.Subtitle,
		Epigraph:         b.Epigraph,
		Context:          b.Context,
		NarrativeContext: b.NarrativeContext,
		Note:             b.Note,
		Entries:          b.Entries,
	})
}

func (b Unknown) MarshalJSON() ([]byte, error) {
	if len(b.Raw) > 0 {
		return b.Raw, nil
	}
	return json.Marshal(header{ID: b.ID, Type: b.Type})
}

// Decode turns one wire object into a Block. It never fails: payloads that
// cannot be interpreted come back as Unknown with a Reason.
func Decode(raw json.RawMessage) Block {
	raw = bytes.TrimSpace(raw)
	var h header
	if err := json.Unmarshal(raw, &h); err != nil {
		return Unknown{Raw: cloneRaw(raw), Reason: fmt.Sprintf("malformed block: %v", err)}
	}
	unknown := func(reason string) Block {
		return Unknown{ID: h.ID, Type: h.Type, Raw: cloneRaw(raw), Reason: reason}
	}
	switch Type(h.Type) {
	case TypeParagraph:
		var w paragraphWire
		if err := json.Unmarshal(raw, &w); err != nil {
			return unknown(err.Error())
		}
		return Paragraph{ID: w.ID, Text: w.Text}
	case TypeDialogue:
		var w dialogueWire
		if err := json.Unmarshal(raw, &w); err != nil {
			return unknown(err.Error())
		}
		return Dialogue{ID: w.ID, Turns: w.Turns}
	case TypeSceneBoundary:
		var w sceneWire
		if err := json.Unmarshal(raw, &w); err != nil {
			return unknown(err.Error())
		}
		return SceneBoundary{ID: w.ID, Label: w.Label, Summary: w.Summary}
	case TypeMetadata:
		var w metadataWire
		if err := json.Unmarshal(raw, &w); err != nil {
			return unknown(err.Error())
		}
		switch w.Kind {
		case KindChapterHeader, KindContext, KindEditorial, KindMetadata:
		default:
			return unknown(fmt.Sprintf("unknown metadata kind %q", w.Kind))
		}
		return Metadata{
			ID:               w.ID,
			Kind:             w.Kind,
			Title:            w.Title,
			Subtitle:         w.Subtitle,
			Epigraph:         w.Epigraph,
			Context:          w.Context,
			NarrativeContext: w.NarrativeContext,
			Note:             w.Note,
			Entries:          w.Entries,
		}
	default:
		return unknown(fmt.Sprintf("unknown block type %q", h.Type))
	}
}

// UnmarshalJSON decodes every element through Decode. Only a payload that is
// not a JSON array is an error.
func (l *List) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return fmt.Errorf("decode block list: %w", err)
	}
	out := make(List, 0, len(raws))
	for _, raw := range raws {
		out = append(out, Decode(raw))
	}
	*l = out
	return nil
}

// Empty returns a new, blank block of the given type for insertion. Metadata
// blocks start as free key/value metadata.
func Empty(t Type, id string) (Block, error) {
	switch t {
	case TypeParagraph:
		return Paragraph{ID: id}, nil
	case TypeDialogue:
		return Dialogue{ID: id, Turns: []Turn{{}}}, nil
	case TypeSceneBoundary:
		return SceneBoundary{ID: id}, nil
	case TypeMetadata:
		return Metadata{ID: id, Kind: KindMetadata, Entries: map[string]string{}}, nil
	default:
		return nil, fmt.Errorf("cannot create block of type %q", t)
	}
}

// WithID returns a copy of b carrying id.
func WithID(b Block, id string) Block {
	switch v := b.(type) {
	case Paragraph:
		v.ID = id
		return v
	case Dialogue:
		v.ID = id
		return v
	case SceneBoundary:
		v.ID = id
		return v
	case Metadata:
		v.ID = id
		return v
	case Unknown:
		v.ID = id
		return v
	default:
		return b
	}
}

// InsertableTypes lists the block types offered at an insertion slot.
var InsertableTypes = []Type{TypeParagraph, TypeDialogue, TypeSceneBoundary, TypeMetadata}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return nil
	}
	out := make(json.RawMessage, len(raw))
	copy(out, raw)
	return out
}
