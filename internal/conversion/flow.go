// Package conversion drives the draft flow that turns freeform text into
// proposed blocks and applies them to a chapter once accepted.
package conversion

import (
	"errors"
	"strings"

	"github.com/csheth/chapterdesk/internal/blocks"
)

// Phase is the position of the flow in its lifecycle:
//
//	idle -> composing -> pending -> ready -> applying -> idle
//
// Reject returns to idle from any phase.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseComposing
	PhasePending
	PhaseReady
	PhaseApplying
)

func (p Phase) String() string {
	switch p {
	case PhaseComposing:
		return "composing"
	case PhasePending:
		return "converting"
	case PhaseReady:
		return "draft ready"
	case PhaseApplying:
		return "applying"
	default:
		return "idle"
	}
}

var (
	ErrEmptyText   = errors.New("paste or type some text to convert")
	ErrWrongPhase  = errors.New("conversion is not in the right state for this action")
	ErrEmptyResult = errors.New("conversion produced no blocks")
)

// Preconditions are the editor facts checked before the dialog may open.
type Preconditions struct {
	ChapterID  string
	EditActive bool
}

// ConvertRequest carries the text to send for conversion.
type ConvertRequest struct {
	Seq       int
	ChapterID string
	Text      string
}

// ApplyRequest carries an accepted draft.
type ApplyRequest struct {
	Seq       int
	ChapterID string
	Blocks    []blocks.Block
	Position  blocks.InsertPosition
}

// Flow is the single conversion draft of an editor. Results are tagged with a
// sequence number and anything older than the current request is dropped.
type Flow struct {
	phase     Phase
	chapterID string
	position  blocks.InsertPosition
	text      string
	draft     []blocks.Block
	err       string
	applyErr  string
	seq       int
}

func (f *Flow) Phase() Phase                    { return f.phase }
func (f *Flow) Open() bool                      { return f.phase != PhaseIdle }
func (f *Flow) Text() string                    { return f.text }
func (f *Flow) Err() string                     { return f.err }
func (f *Flow) ApplyErr() string                { return f.applyErr }
func (f *Flow) ChapterID() string               { return f.chapterID }
func (f *Flow) Position() blocks.InsertPosition { return f.position }

// Draft returns a copy of the proposed blocks.
func (f *Flow) Draft() []blocks.Block {
	return append([]blocks.Block(nil), f.draft...)
}

// CanOpenDialog reports whether OpenDialog would succeed.
func (f *Flow) CanOpenDialog(p Preconditions) bool {
	return f.phase == PhaseIdle && !p.EditActive && strings.TrimSpace(p.ChapterID) != ""
}

// OpenDialog starts composing text for pos. It is a no-op returning false
// when CanOpenDialog does not hold.
func (f *Flow) OpenDialog(p Preconditions, pos blocks.InsertPosition) bool {
	if !f.CanOpenDialog(p) {
		return false
	}
	f.reset()
	f.phase = PhaseComposing
	f.chapterID = p.ChapterID
	f.position = pos
	return true
}

// SetText updates the composer buffer.
func (f *Flow) SetText(text string) bool {
	if f.phase != PhaseComposing {
		return false
	}
	f.text = text
	return true
}

// CloseDialog abandons composing or an unanswered conversion. It does nothing
// on a closed dialog or when a draft exists; use Reject for drafts.
func (f *Flow) CloseDialog() {
	switch f.phase {
	case PhaseComposing, PhasePending:
		f.reset()
	}
}

// Submit validates the text locally and moves to pending. Empty text never
// produces a request.
func (f *Flow) Submit() (ConvertRequest, error) {
	if f.phase != PhaseComposing {
		return ConvertRequest{}, ErrWrongPhase
	}
	text := strings.TrimSpace(f.text)
	if text == "" {
		f.err = ErrEmptyText.Error()
		return ConvertRequest{}, ErrEmptyText
	}
	f.seq++
	f.phase = PhasePending
	f.err = ""
	return ConvertRequest{Seq: f.seq, ChapterID: f.chapterID, Text: text}, nil
}

// FinishConvert records a conversion result. It returns false for stale
// results.
func (f *Flow) FinishConvert(seq int, result []blocks.Block, err error) bool {
	if f.phase != PhasePending || seq != f.seq {
		return false
	}
	if err == nil && len(result) == 0 {
		err = ErrEmptyResult
	}
	if err != nil {
		f.phase = PhaseComposing
		f.err = err.Error()
		return true
	}
	f.phase = PhaseReady
	f.draft = append([]blocks.Block(nil), result...)
	f.applyErr = ""
	return true
}

// Accept issues the apply request for the ready draft.
func (f *Flow) Accept() (ApplyRequest, error) {
	if f.phase != PhaseReady {
		return ApplyRequest{}, ErrWrongPhase
	}
	f.seq++
	f.phase = PhaseApplying
	f.applyErr = ""
	return ApplyRequest{
		Seq:       f.seq,
		ChapterID: f.chapterID,
		Blocks:    f.Draft(),
		Position:  f.position,
	}, nil
}

// FinishApply records an apply result. A failure keeps the draft so the apply
// can be retried without converting again.
func (f *Flow) FinishApply(seq int, err error) bool {
	if f.phase != PhaseApplying || seq != f.seq {
		return false
	}
	if err != nil {
		f.phase = PhaseReady
		f.applyErr = err.Error()
		return true
	}
	f.reset()
	return true
}

// Reject discards everything and returns to idle.
func (f *Flow) Reject() {
	f.reset()
}

func (f *Flow) reset() {
	f.seq++
	f.phase = PhaseIdle
	f.chapterID = ""
	f.position = blocks.InsertPosition{}
	f.text = ""
	f.draft = nil
	f.err = ""
	f.applyErr = ""
}
