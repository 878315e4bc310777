// Package panels implements the show/hide timing of hoverable side panels,
// the scrollbar and transient status messages. Every delayed transition is a
// single tea.Tick tagged with a generation number; a newer generation makes
// older ticks inert, so timers never stack.
package panels

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

const DefaultHideDelay = 220 * time.Millisecond

// ID names a panel so hide messages reach the right controller.
type ID string

// HideMsg is delivered when a scheduled hide fires.
type HideMsg struct {
	Panel ID
	Seq   int
}

// Controller tracks one hoverable panel. Visible is enabled && (pinned ||
// hovering).
type Controller struct {
	id       ID
	delay    time.Duration
	enabled  bool
	pinned   bool
	hovering bool
	seq      int
}

func New(id ID, delay time.Duration) *Controller {
	if delay <= 0 {
		delay = DefaultHideDelay
	}
	return &Controller{id: id, delay: delay, enabled: true}
}

func (c *Controller) ID() ID               { return c.id }
func (c *Controller) Enabled() bool        { return c.enabled }
func (c *Controller) Pinned() bool         { return c.pinned }
func (c *Controller) Hovering() bool       { return c.hovering }
func (c *Controller) Visible() bool        { return c.enabled && (c.pinned || c.hovering) }
func (c *Controller) Delay() time.Duration { return c.delay }

// Enter marks the pointer as inside the hotspot or panel and cancels any
// pending hide.
func (c *Controller) Enter() {
	if !c.enabled {
		return
	}
	c.seq++
	c.hovering = true
}

// Leave schedules a hide after the delay. Re-entering before it fires keeps
// the panel open.
func (c *Controller) Leave() tea.Cmd {
	if !c.enabled || !c.hovering {
		return nil
	}
	c.seq++
	msg := HideMsg{Panel: c.id, Seq: c.seq}
	return tea.Tick(c.delay, func(time.Time) tea.Msg {
		return msg
	})
}

// Update applies a hide message. It returns true when the message belonged to
// this panel and was current.
func (c *Controller) Update(msg HideMsg) bool {
	if msg.Panel != c.id || msg.Seq != c.seq {
		return false
	}
	c.hovering = false
	return true
}

func (c *Controller) TogglePin() {
	if !c.enabled {
		return
	}
	c.pinned = !c.pinned
}

func (c *Controller) SetPinned(pinned bool) {
	if !c.enabled {
		return
	}
	c.pinned = pinned
}

// SetEnabled switches the panel on or off. Disabling forgets pin and hover
// state and invalidates pending hides.
func (c *Controller) SetEnabled(enabled bool) {
	if !enabled {
		c.pinned = false
		c.hovering = false
		c.seq++
	}
	c.enabled = enabled
}
