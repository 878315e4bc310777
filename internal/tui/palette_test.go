package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func TestCommandAvailability(t *testing.T) {
	m, _, _ := openSeedChapter(t)

	m.moveCursorToSlot(2)
	for _, action := range []paletteAction{actionInsertParagraph, actionConvert, actionLibrary, actionReload} {
		if !m.commandAvailable(action) {
			t.Fatalf("action %d should be available on a slot", action)
		}
	}
	for _, action := range []paletteAction{actionEditBlock, actionSaveBlock, actionCancelEdit, actionAcceptDraft} {
		if m.commandAvailable(action) {
			t.Fatalf("action %d should be unavailable on a slot", action)
		}
	}

	m.requestEdit(m.blockLayout.Entries[2].Block)
	if !m.commandAvailable(actionCancelEdit) || !m.commandAvailable(actionDeleteBlock) {
		t.Fatalf("cancel and delete should be offered during an edit")
	}
	if m.commandAvailable(actionSaveBlock) {
		t.Fatalf("a clean buffer has nothing to save")
	}
	m.buffer.SetValue("Changed.")
	m.edit.SetBuffer(m.buffer.Value())
	if !m.commandAvailable(actionSaveBlock) {
		t.Fatalf("a dirty buffer can be saved")
	}
}

func TestPaletteFilterRunsCommand(t *testing.T) {
	m, _, _ := openSeedChapter(t)
	before := m.themeName

	press(t, m, tea.KeyMsg{Type: tea.KeyCtrlK})
	if m.overlay != overlayPalette {
		t.Fatalf("ctrl+k should open the palette")
	}
	press(t, m, keyRunes("theme"))
	if len(m.paletteMatches) != 1 || m.paletteMatches[0].action != actionToggleTheme {
		t.Fatalf("filter should leave only the theme command, got %+v", m.paletteMatches)
	}
	press(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	if m.overlay != overlayNone {
		t.Fatalf("running a command should close the palette")
	}
	if m.themeName == before || m.prefs.Theme != m.themeName {
		t.Fatalf("theme not toggled: %q -> %q (prefs %q)", before, m.themeName, m.prefs.Theme)
	}
}

func TestUnavailableCommandReportsInsteadOfRunning(t *testing.T) {
	m, _, _ := openSeedChapter(t)
	m.openPalette()
	press(t, m, keyRunes("accept draft"))
	if len(m.paletteMatches) == 0 || m.paletteMatches[0].action != actionAcceptDraft {
		t.Fatalf("expected accept draft first, got %+v", m.paletteMatches)
	}
	press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.overlay != overlayPalette {
		t.Fatalf("palette should stay open")
	}
	if !strings.Contains(m.errorMessage, "not available") {
		t.Fatalf("expected a status error, got %q", m.errorMessage)
	}
}

func TestPaletteCursorStaysInRange(t *testing.T) {
	m := newTestModel(t)
	m.openPalette()
	for i := 0; i < len(paletteCommands)+3; i++ {
		press(t, m, tea.KeyMsg{Type: tea.KeyDown})
	}
	if m.paletteCursor != len(paletteCommands)-1 {
		t.Fatalf("cursor = %d", m.paletteCursor)
	}
	press(t, m, keyRunes("zzzz"))
	if len(m.paletteMatches) != 0 || m.paletteCursor != 0 {
		t.Fatalf("no match should reset the cursor, got %d matches cursor %d", len(m.paletteMatches), m.paletteCursor)
	}
	press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.overlay != overlayPalette {
		t.Fatalf("enter with no matches is a no-op")
	}
}
