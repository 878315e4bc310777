// Package editing owns the single block edit session of an open chapter.
package editing

import (
	"errors"
	"fmt"
	"strings"

	"github.com/csheth/chapterdesk/internal/blocks"
	"github.com/csheth/chapterdesk/internal/confirm"
)

var (
	ErrNotEditable  = errors.New("block cannot be edited")
	ErrNotDeletable = errors.New("block type cannot be deleted")
	ErrNoActiveEdit = errors.New("no block is being edited")
	ErrBusy         = errors.New("a save or delete is still in flight")
)

// Outcome reports what a Request did.
type Outcome int

const (
	// OutcomeStarted means no edit was active and one was opened.
	OutcomeStarted Outcome = iota
	// OutcomeUnchanged means the block was already being edited.
	OutcomeUnchanged
	// OutcomeSwitched means a clean edit was closed and the new one opened.
	OutcomeSwitched
	// OutcomeConfirm means the active buffer has changes; call ConfirmSwitch
	// once the user agrees to discard them.
	OutcomeConfirm
	// OutcomeDeferred means a mutation is in flight; the block is entered
	// when it succeeds.
	OutcomeDeferred
)

// State is the edit session of one block.
type State struct {
	BlockID   string
	Block     blocks.Block
	Buffer    string
	Original  string
	Saving    bool
	Deleting  bool
	Err       string
	CanDelete bool
}

// SaveRequest is what the caller sends to the backend.
type SaveRequest struct {
	BlockID string
	Updated blocks.Block
	Patch   blocks.Patch
}

// Resolution describes how a finished mutation changed the controller.
type Resolution struct {
	Applied bool
	// Resumed is the id of a deferred block that became active.
	Resumed string
	// Orphaned is true when the session that issued the mutation was
	// cancelled before the result arrived.
	Orphaned bool
}

// Controller enforces that at most one block is in edit mode. All changes go
// through its methods.
type Controller struct {
	state    *State
	inflight string
	deferred blocks.Block
}

func New() *Controller {
	return &Controller{}
}

// Active returns a copy of the current session.
func (c *Controller) Active() (State, bool) {
	if c.state == nil {
		return State{}, false
	}
	return *c.state, true
}

func (c *Controller) ActiveID() string {
	if c.state == nil {
		return ""
	}
	return c.state.BlockID
}

func (c *Controller) IsEditing(blockID string) bool {
	return c.state != nil && c.state.BlockID == blockID
}

// Busy reports whether a save or delete has not resolved yet. This stays true
// after Cancel until the result arrives.
func (c *Controller) Busy() bool {
	return c.inflight != ""
}

// Deferred returns the block waiting for the in-flight mutation, if any.
func (c *Controller) Deferred() (blocks.Block, bool) {
	return c.deferred, c.deferred != nil
}

func (c *Controller) Dirty() bool {
	return c.state != nil && c.state.Buffer != c.state.Original
}

// Request asks to edit b.
func (c *Controller) Request(b blocks.Block) (Outcome, confirm.Prompt, error) {
	if b == nil || !blocks.Editable(b) {
		return 0, confirm.Prompt{}, ErrNotEditable
	}
	if c.IsEditing(b.BlockID()) {
		return OutcomeUnchanged, confirm.Prompt{}, nil
	}
	if c.Busy() {
		c.deferred = b
		return OutcomeDeferred, confirm.Prompt{}, nil
	}
	if c.state == nil {
		return OutcomeStarted, confirm.Prompt{}, c.start(b)
	}
	if c.Dirty() {
		return OutcomeConfirm, c.discardPrompt(), nil
	}
	return OutcomeSwitched, confirm.Prompt{}, c.start(b)
}

// ConfirmSwitch discards the active buffer and opens b. It is called after
// the user accepted the prompt returned with OutcomeConfirm.
func (c *Controller) ConfirmSwitch(b blocks.Block) (Outcome, error) {
	if b == nil || !blocks.Editable(b) {
		return 0, ErrNotEditable
	}
	if c.Busy() {
		c.deferred = b
		return OutcomeDeferred, nil
	}
	return OutcomeSwitched, c.start(b)
}

func (c *Controller) start(b blocks.Block) error {
	text, err := blocks.EditText(b)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotEditable, err)
	}
	c.state = &State{
		BlockID:   b.BlockID(),
		Block:     b,
		Buffer:    text,
		Original:  text,
		CanDelete: blocks.Deletable(b),
	}
	return nil
}

func (c *Controller) discardPrompt() confirm.Prompt {
	label := strings.ToLower(blocks.TypeLabel(c.state.Block.BlockType()))
	return confirm.Prompt{
		Title:       "Discard unsaved changes?",
		Description: fmt.Sprintf("Your edits to this %s will be lost.", label),
		Tone:        confirm.ToneDestructive,
	}
}

// SetBuffer replaces the edit buffer. It is ignored while a mutation is in
// flight so the text being saved cannot drift.
func (c *Controller) SetBuffer(text string) bool {
	if c.state == nil || c.state.Saving || c.state.Deleting {
		return false
	}
	c.state.Buffer = text
	return true
}

// BeginSave validates the buffer and marks the session as saving. Validation
// errors are recorded on the session and no request is produced.
func (c *Controller) BeginSave() (SaveRequest, error) {
	if c.state == nil {
		return SaveRequest{}, ErrNoActiveEdit
	}
	if c.Busy() {
		return SaveRequest{}, ErrBusy
	}
	updated, err := blocks.ParseEdit(c.state.Block, c.state.Buffer)
	if err != nil {
		c.state.Err = err.Error()
		return SaveRequest{}, err
	}
	patch, err := blocks.PatchFor(updated)
	if err != nil {
		c.state.Err = err.Error()
		return SaveRequest{}, err
	}
	c.state.Saving = true
	c.state.Err = ""
	c.inflight = c.state.BlockID
	return SaveRequest{BlockID: c.state.BlockID, Updated: updated, Patch: patch}, nil
}

// FinishSave records the result of the save for blockID. Results for other
// blocks are ignored.
func (c *Controller) FinishSave(blockID string, err error) Resolution {
	return c.finish(blockID, err, func(s *State) { s.Saving = false })
}

// Cancel discards the session unconditionally. A pending deferred request is
// dropped too. Calling it with no session is a no-op.
func (c *Controller) Cancel() {
	c.state = nil
	c.deferred = nil
}

// RequestDelete returns the prompt to show before deleting the active block.
func (c *Controller) RequestDelete() (confirm.Prompt, error) {
	if c.state == nil {
		return confirm.Prompt{}, ErrNoActiveEdit
	}
	if !c.state.CanDelete {
		return confirm.Prompt{}, ErrNotDeletable
	}
	if c.Busy() {
		return confirm.Prompt{}, ErrBusy
	}
	label := strings.ToLower(blocks.TypeLabel(c.state.Block.BlockType()))
	return confirm.Prompt{
		Title:       fmt.Sprintf("Delete this %s?", label),
		Description: "The block is removed from the chapter. This cannot be undone.",
		Tone:        confirm.ToneDestructive,
	}, nil
}

// BeginDelete marks the session as deleting and returns the block id to send.
func (c *Controller) BeginDelete() (string, error) {
	if _, err := c.RequestDelete(); err != nil {
		return "", err
	}
	c.state.Deleting = true
	c.state.Err = ""
	c.inflight = c.state.BlockID
	return c.state.BlockID, nil
}

func (c *Controller) FinishDelete(blockID string, err error) Resolution {
	return c.finish(blockID, err, func(s *State) { s.Deleting = false })
}

func (c *Controller) finish(blockID string, err error, reset func(*State)) Resolution {
	if c.inflight == "" || c.inflight != blockID {
		return Resolution{Orphaned: true}
	}
	c.inflight = ""
	owned := c.state != nil && c.state.BlockID == blockID
	if err != nil {
		c.deferred = nil
		if owned {
			reset(c.state)
			c.state.Err = err.Error()
		}
		return Resolution{Orphaned: !owned}
	}
	res := Resolution{Applied: true, Orphaned: !owned}
	if owned {
		c.state = nil
	}
	if next := c.deferred; next != nil {
		c.deferred = nil
		if c.state == nil || !c.Dirty() {
			if startErr := c.start(next); startErr == nil {
				res.Resumed = next.BlockID()
			}
		}
	}
	return res
}

// Rebase refreshes the session from a reloaded copy of its block. It only
// applies when the buffer is clean and nothing is in flight.
func (c *Controller) Rebase(b blocks.Block) bool {
	if c.state == nil || b == nil || b.BlockID() != c.state.BlockID {
		return false
	}
	if c.Busy() || c.Dirty() {
		return false
	}
	return c.start(b) == nil
}
