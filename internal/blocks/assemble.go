package blocks

import "fmt"

// InsertPosition identifies the gap between two adjacent rendered entries.
// Empty ids mean the gap sits at the start or the end of the chapter. Index
// counts rendered entries only.
type InsertPosition struct {
	AfterBlockID  string `json:"afterBlockId,omitempty"`
	BeforeBlockID string `json:"beforeBlockId,omitempty"`
	Index         int    `json:"index"`
}

// Label describes the slot for status lines and dialogs.
func (p InsertPosition) Label() string {
	switch {
	case p.AfterBlockID == "" && p.BeforeBlockID == "":
		return "start of chapter"
	case p.AfterBlockID == "":
		return "before the first block"
	case p.BeforeBlockID == "":
		return "after the last block"
	default:
		return fmt.Sprintf("slot %d", p.Index)
	}
}

// Entry is a visible block together with its read view.
type Entry struct {
	Index int
	Block Block
	View  ReadView
}

// Layout is the render sequence for one chapter.
type Layout struct {
	ChapterID    string
	Title        string
	Summary      string
	DefaultTitle bool
	Entries      []Entry
	Slots        []InsertPosition
	Empty        bool
}

// Assemble renders every block through the registry, drops invisible ones and
// computes len(Entries)+1 insertion slots around the visible entries.
func Assemble(ch ChapterDetail) Layout {
	layout := Layout{
		ChapterID:    ch.ID,
		Title:        ch.Title,
		Summary:      ch.Summary,
		DefaultTitle: true,
	}
	for _, b := range ch.Blocks {
		if isChapterHeader(b) {
			layout.DefaultTitle = false
		}
		view, ok := Render(b)
		if !ok {
			continue
		}
		layout.Entries = append(layout.Entries, Entry{
			Index: len(layout.Entries),
			Block: b,
			View:  view,
		})
	}
	layout.Empty = len(layout.Entries) == 0
	layout.Slots = make([]InsertPosition, 0, len(layout.Entries)+1)
	for i := 0; i <= len(layout.Entries); i++ {
		pos := InsertPosition{Index: i}
		if i > 0 {
			pos.AfterBlockID = layout.Entries[i-1].Block.BlockID()
		}
		if i < len(layout.Entries) {
			pos.BeforeBlockID = layout.Entries[i].Block.BlockID()
		}
		layout.Slots = append(layout.Slots, pos)
	}
	return layout
}

// EntryIndex returns the position of the entry for blockID, or -1.
func (l Layout) EntryIndex(blockID string) int {
	for i, entry := range l.Entries {
		if entry.Block.BlockID() == blockID {
			return i
		}
	}
	return -1
}

// SlotFor returns the slot that pos points at in l, matching the anchors the
// same way List.InsertionPoint does.
func (l Layout) SlotFor(pos InsertPosition) int {
	if pos.AfterBlockID != "" {
		if idx := l.EntryIndex(pos.AfterBlockID); idx >= 0 {
			return idx + 1
		}
	}
	if pos.BeforeBlockID != "" {
		if idx := l.EntryIndex(pos.BeforeBlockID); idx >= 0 {
			return idx
		}
	}
	switch {
	case pos.Index < 0:
		return 0
	case pos.Index > len(l.Entries):
		return len(l.Entries)
	}
	return pos.Index
}

func isChapterHeader(b Block) bool {
	m, ok := b.(Metadata)
	return ok && m.Kind == KindChapterHeader
}

// InsertionPoint maps pos onto a raw index into l, including invisible
// blocks. The after anchor wins, then the before anchor, then the rendered
// index.
func (l List) InsertionPoint(pos InsertPosition) int {
	if pos.AfterBlockID != "" {
		if idx := l.indexOf(pos.AfterBlockID); idx >= 0 {
			return idx + 1
		}
	}
	if pos.BeforeBlockID != "" {
		if idx := l.indexOf(pos.BeforeBlockID); idx >= 0 {
			return idx
		}
	}
	visible := 0
	for i, b := range l {
		if _, ok := Render(b); !ok {
			continue
		}
		if visible == pos.Index {
			return i
		}
		visible++
	}
	return len(l)
}

// Insert returns a new list with items placed at pos.
func (l List) Insert(pos InsertPosition, items ...Block) List {
	at := l.InsertionPoint(pos)
	out := make(List, 0, len(l)+len(items))
	out = append(out, l[:at]...)
	out = append(out, items...)
	out = append(out, l[at:]...)
	return out
}

// Find returns the block with id and its raw index.
func (l List) Find(id string) (Block, int) {
	idx := l.indexOf(id)
	if idx < 0 {
		return nil, -1
	}
	return l[idx], idx
}

func (l List) indexOf(id string) int {
	for i, b := range l {
		if b.BlockID() == id {
			return i
		}
	}
	return -1
}
