// Package confirm describes confirmation prompts and tracks the one dialog
// that may be open at a time.
package confirm

// Tone hints how a prompt should be styled.
type Tone string

const (
	ToneNeutral     Tone = "neutral"
	ToneDestructive Tone = "destructive"
)

// Prompt is the content of a confirmation dialog.
type Prompt struct {
	Title       string
	Description string
	Tone        Tone
}

// Dialog holds an open prompt together with the action it guards. The action
// type is chosen by the caller.
type Dialog[A any] struct {
	prompt Prompt
	action A
	open   bool
}

// Ask opens the dialog. An already open dialog is replaced.
func (d *Dialog[A]) Ask(p Prompt, action A) {
	d.prompt = p
	d.action = action
	d.open = true
}

func (d *Dialog[A]) Open() bool {
	return d.open
}

func (d *Dialog[A]) Prompt() Prompt {
	return d.prompt
}

// Resolve closes the dialog and returns the guarded action when accepted. The
// second result is false when the dialog was closed or the user declined.
func (d *Dialog[A]) Resolve(accepted bool) (A, bool) {
	var zero A
	if !d.open {
		return zero, false
	}
	action := d.action
	d.open = false
	d.action = zero
	d.prompt = Prompt{}
	if !accepted {
		return zero, false
	}
	return action, true
}
