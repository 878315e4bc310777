package panels

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// ExpireMsg is delivered when an AutoHide timer fires.
type ExpireMsg struct {
	Name string
	Seq  int
}

// AutoHide shows something on activity and hides it after a quiet period.
// The scrollbar uses it directly; Toast layers a message on top.
type AutoHide struct {
	name    string
	delay   time.Duration
	visible bool
	seq     int
}

func NewAutoHide(name string, delay time.Duration) *AutoHide {
	return &AutoHide{name: name, delay: delay}
}

func (a *AutoHide) Visible() bool { return a.visible }

// Poke shows the element and restarts the quiet period.
func (a *AutoHide) Poke() tea.Cmd {
	a.seq++
	a.visible = true
	if a.delay <= 0 {
		return nil
	}
	msg := ExpireMsg{Name: a.name, Seq: a.seq}
	return tea.Tick(a.delay, func(time.Time) tea.Msg {
		return msg
	})
}

// Update hides the element when msg is its current timer.
func (a *AutoHide) Update(msg ExpireMsg) bool {
	if msg.Name != a.name || msg.Seq != a.seq {
		return false
	}
	a.visible = false
	return true
}

// Hide cancels the timer and hides immediately.
func (a *AutoHide) Hide() {
	a.seq++
	a.visible = false
}

// Tone classifies a toast.
type Tone int

const (
	ToneInfo Tone = iota
	ToneSuccess
	ToneError
)

// Toast is an ephemeral status message that dismisses itself.
type Toast struct {
	timer *AutoHide
	text  string
	tone  Tone
}

func NewToast(delay time.Duration) *Toast {
	return &Toast{timer: NewAutoHide("toast", delay)}
}

// Show replaces the current message and restarts the dismiss timer.
func (t *Toast) Show(text string, tone Tone) tea.Cmd {
	t.text = text
	t.tone = tone
	return t.timer.Poke()
}

func (t *Toast) Update(msg ExpireMsg) bool {
	if !t.timer.Update(msg) {
		return false
	}
	t.text = ""
	return true
}

func (t *Toast) Dismiss() {
	t.timer.Hide()
	t.text = ""
}

// Current returns the visible message.
func (t *Toast) Current() (string, Tone, bool) {
	if !t.timer.Visible() || t.text == "" {
		return "", ToneInfo, false
	}
	return t.text, t.tone, true
}
