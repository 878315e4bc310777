package tui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/csheth/chapterdesk/internal/blocks"
	"github.com/csheth/chapterdesk/internal/conversion"
)

type paletteAction int

const (
	actionLibrary paletteAction = iota
	actionReload
	actionEditBlock
	actionInsertParagraph
	actionInsertDialogue
	actionInsertScene
	actionInsertMetadata
	actionConvert
	actionAcceptDraft
	actionRejectDraft
	actionSaveBlock
	actionCancelEdit
	actionDeleteBlock
	actionToggleOutline
	actionToggleStats
	actionToggleTheme
	actionReopenRecent
	actionHelp
	actionQuit
)

type paletteCommand struct {
	action      paletteAction
	title       string
	shortcut    string
	description string
}

var paletteCommands = []paletteCommand{
	{actionLibrary, "Back to library", "Esc", "Leave the chapter and browse books"},
	{actionReload, "Reload", "r", "Fetch the current list or chapter again"},
	{actionEditBlock, "Edit block", "Enter", "Open the selected block for editing"},
	{actionInsertParagraph, "Insert paragraph here", "i p", "Add an empty paragraph at the selected slot"},
	{actionInsertDialogue, "Insert dialogue here", "i d", "Add an empty dialogue at the selected slot"},
	{actionInsertScene, "Insert scene break here", "i s", "Add a scene boundary at the selected slot"},
	{actionInsertMetadata, "Insert metadata here", "i m", "Add a metadata block at the selected slot"},
	{actionConvert, "Convert text here", "c", "Paste or import prose and turn it into blocks"},
	{actionAcceptDraft, "Accept draft", "A", "Insert the drafted blocks into the chapter"},
	{actionRejectDraft, "Reject draft", "R", "Discard the drafted blocks"},
	{actionSaveBlock, "Save block", "Ctrl+S", "Send the edited block to the server"},
	{actionCancelEdit, "Cancel edit", "Esc", "Discard the edit buffer"},
	{actionDeleteBlock, "Delete block", "Ctrl+D", "Remove the block being edited"},
	{actionToggleOutline, "Pin outline panel", "o", "Keep the outline open or let it hide"},
	{actionToggleStats, "Pin stats panel", "t", "Keep chapter statistics open or let them hide"},
	{actionToggleTheme, "Toggle theme", "", "Switch between dark and light"},
	{actionReopenRecent, "Reopen last chapter", "1", "Open the most recently edited chapter"},
	{actionHelp, "Keyboard help", "?", "Show every key binding"},
	{actionQuit, "Quit", "q", "Exit chapterdesk"},
}

// commandAvailable is the predicate behind greyed-out palette entries.
func (m *model) commandAvailable(action paletteAction) bool {
	inEditor := m.screen == screenEditor
	loaded := inEditor && m.layoutReady
	state, editing := m.edit.Active()
	switch action {
	case actionLibrary:
		return inEditor
	case actionReload:
		return m.api != nil
	case actionEditBlock:
		entry, ok := m.selectedEntry()
		return ok && blocks.Editable(entry.Block) && !m.edit.IsEditing(entry.Block.BlockID())
	case actionInsertParagraph, actionInsertDialogue, actionInsertScene, actionInsertMetadata:
		_, ok := m.selectedSlot()
		return loaded && ok && m.api != nil && !m.edit.Busy()
	case actionConvert:
		_, ok := m.selectedSlot()
		return loaded && ok && m.converter != nil && m.flow.CanOpenDialog(m.preconditions())
	case actionAcceptDraft, actionRejectDraft:
		return inEditor && m.flow.Phase() == conversion.PhaseReady
	case actionSaveBlock:
		return editing && !m.edit.Busy() && m.edit.Dirty()
	case actionCancelEdit:
		return editing
	case actionDeleteBlock:
		return editing && state.CanDelete && !m.edit.Busy()
	case actionToggleOutline:
		return inEditor && m.outline.Enabled()
	case actionToggleStats:
		return inEditor && m.stats.Enabled()
	case actionReopenRecent:
		return len(m.recent) > 0 && m.api != nil
	case actionToggleTheme, actionHelp, actionQuit:
		return true
	default:
		return false
	}
}

func (m *model) openPalette() {
	m.paletteInput.SetValue("")
	m.paletteInput.Focus()
	m.paletteCursor = 0
	m.filterPalette()
	m.overlay = overlayPalette
}

func (m *model) closePalette() {
	m.paletteInput.Blur()
	m.overlay = overlayNone
}

// filterPalette keeps commands whose title or description contains every
// word of the filter.
func (m *model) filterPalette() {
	terms := strings.Fields(strings.ToLower(m.paletteInput.Value()))
	m.paletteMatches = m.paletteMatches[:0]
	for _, cmd := range paletteCommands {
		haystack := strings.ToLower(cmd.title + " " + cmd.description)
		matched := true
		for _, term := range terms {
			if !strings.Contains(haystack, term) {
				matched = false
				break
			}
		}
		if matched {
			m.paletteMatches = append(m.paletteMatches, cmd)
		}
	}
	if m.paletteCursor >= len(m.paletteMatches) {
		m.paletteCursor = len(m.paletteMatches) - 1
	}
	if m.paletteCursor < 0 {
		m.paletteCursor = 0
	}
}

func (m *model) processPaletteKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.closePalette()
		return m, nil
	case tea.KeyUp, tea.KeyCtrlP:
		if m.paletteCursor > 0 {
			m.paletteCursor--
		}
		return m, nil
	case tea.KeyDown, tea.KeyCtrlN:
		if m.paletteCursor < len(m.paletteMatches)-1 {
			m.paletteCursor++
		}
		return m, nil
	case tea.KeyEnter:
		if len(m.paletteMatches) == 0 {
			return m, nil
		}
		cmd := m.paletteMatches[m.paletteCursor]
		if !m.commandAvailable(cmd.action) {
			m.setStatusError(cmd.title + " is not available right now.")
			return m, nil
		}
		m.closePalette()
		return m.runAction(cmd.action)
	}
	var cmd tea.Cmd
	m.paletteInput, cmd = m.paletteInput.Update(msg)
	m.filterPalette()
	return m, cmd
}

// runAction executes a palette action. Key handlers route through here too
// so both paths share one set of preconditions.
func (m *model) runAction(action paletteAction) (tea.Model, tea.Cmd) {
	switch action {
	case actionLibrary:
		return m, m.leaveEditor()
	case actionReload:
		if m.screen == screenEditor {
			return m, m.reloadChapter()
		}
		return m, m.loadLibrary()
	case actionEditBlock:
		if entry, ok := m.selectedEntry(); ok {
			return m, m.requestEdit(entry.Block)
		}
	case actionInsertParagraph:
		return m, m.insertBlock(blocks.TypeParagraph)
	case actionInsertDialogue:
		return m, m.insertBlock(blocks.TypeDialogue)
	case actionInsertScene:
		return m, m.insertBlock(blocks.TypeSceneBoundary)
	case actionInsertMetadata:
		return m, m.insertBlock(blocks.TypeMetadata)
	case actionConvert:
		return m, m.openConvert()
	case actionAcceptDraft:
		return m, m.acceptDraft()
	case actionRejectDraft:
		return m, m.rejectDraft()
	case actionSaveBlock:
		return m, m.saveBlock()
	case actionCancelEdit:
		return m, m.cancelEdit()
	case actionDeleteBlock:
		return m, m.askDelete()
	case actionToggleOutline:
		return m, m.togglePin(m.outline)
	case actionToggleStats:
		return m, m.togglePin(m.stats)
	case actionToggleTheme:
		return m, m.toggleTheme()
	case actionReopenRecent:
		return m, m.openRecent(0)
	case actionHelp:
		m.overlay = overlayHelp
	case actionQuit:
		return m, tea.Quit
	}
	return m, nil
}
