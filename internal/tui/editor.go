package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/csheth/chapterdesk/internal/blocks"
	"github.com/csheth/chapterdesk/internal/confirm"
	"github.com/csheth/chapterdesk/internal/conversion"
	"github.com/csheth/chapterdesk/internal/editing"
	"github.com/csheth/chapterdesk/internal/panels"
)

// Rows interleave slots and entries: row 2i is slot i and row 2i+1 is
// entry i, so a chapter with n entries has 2n+1 rows.

func (m *model) rowCount() int {
	if !m.layoutReady {
		return 0
	}
	return 2*len(m.blockLayout.Entries) + 1
}

func (m *model) selectedEntry() (blocks.Entry, bool) {
	if !m.layoutReady || m.cursor%2 == 0 {
		return blocks.Entry{}, false
	}
	idx := (m.cursor - 1) / 2
	if idx < 0 || idx >= len(m.blockLayout.Entries) {
		return blocks.Entry{}, false
	}
	return m.blockLayout.Entries[idx], true
}

func (m *model) selectedSlot() (blocks.InsertPosition, bool) {
	if !m.layoutReady || m.cursor%2 != 0 {
		return blocks.InsertPosition{}, false
	}
	idx := m.cursor / 2
	if idx < 0 || idx >= len(m.blockLayout.Slots) {
		return blocks.InsertPosition{}, false
	}
	return m.blockLayout.Slots[idx], true
}

func (m *model) preconditions() conversion.Preconditions {
	p := conversion.Preconditions{EditActive: m.edit.ActiveID() != ""}
	if m.layoutReady {
		p.ChapterID = m.blockLayout.ChapterID
	}
	return p
}

func (m *model) moveCursor(delta int) {
	m.cursor += delta
	m.clampCursor()
	m.followCursor = true
	m.contentDirty = true
}

func (m *model) clampCursor() {
	if n := m.rowCount(); m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m *model) moveCursorToEntry(blockID string) bool {
	idx := m.blockLayout.EntryIndex(blockID)
	if idx < 0 {
		return false
	}
	m.cursor = 2*idx + 1
	m.followCursor = true
	m.contentDirty = true
	return true
}

func (m *model) moveCursorToSlot(index int) {
	m.cursor = 2 * index
	m.clampCursor()
	m.followCursor = true
	m.contentDirty = true
}

// openChapter switches to the editor and starts loading ref. Reads and the
// watch for the previous chapter are cancelled; mutations already sent are
// left to finish.
func (m *model) openChapter(ref chapterRef) tea.Cmd {
	m.editorCancel()
	m.editorCtx, m.editorCancel = context.WithCancel(m.ctx)
	m.edit.Cancel()
	m.flow.Reject()
	m.composer.SetValue("")
	m.buffer.Blur()

	m.chapter = ref
	m.detail = blocks.ChapterDetail{}
	m.blockLayout = blocks.Layout{}
	m.layoutReady = false
	m.loadErr = nil
	m.cursor = 0
	m.pendingEditID = ""
	m.staleChapter = false
	m.watching = ""
	m.screen = screenEditor
	m.overlay = overlayNone
	m.focus = focusBlocks
	m.searching = false
	m.searchInput.Blur()
	m.viewport.GotoTop()
	m.contentDirty = true
	m.log.Debug("Opening chapter", zap.String("chapter", ref.ID), zap.String("book", ref.BookID))

	return tea.Batch(
		m.reloadChapter(),
		m.startJob(m.ctx, jobKindSettings, touchRecentJob(m.settings, ref)),
	)
}

func (m *model) reloadChapter() tea.Cmd {
	if m.chapter.ID == "" {
		return nil
	}
	m.loadSeq++
	m.loading = true
	return m.startJob(m.editorCtx, jobKindChapter, loadChapterJob(m.api, m.chapter.ID, m.loadSeq))
}

func (m *model) handleChapterLoaded(msg chapterLoadedMsg) tea.Cmd {
	if msg.chapterID != m.chapter.ID || msg.seq != m.loadSeq {
		return nil
	}
	m.loading = false
	if msg.err != nil {
		m.log.Warn("Loading chapter failed", zap.String("chapter", msg.chapterID), zap.Error(msg.err))
		if m.layoutReady {
			return m.notify("Reload failed: "+msg.err.Error(), panels.ToneError)
		}
		m.loadErr = msg.err
		m.contentDirty = true
		return nil
	}

	first := !m.layoutReady
	m.loadErr = nil
	m.detail = msg.chapter
	if msg.chapter.Title != "" {
		m.chapter.Title = msg.chapter.Title
	}
	m.relayout()
	if first && len(m.blockLayout.Entries) > 0 {
		m.cursor = 1
	}
	m.staleChapter = false

	var cmds []tea.Cmd
	if id := m.edit.ActiveID(); id != "" {
		b, idx := m.detail.Blocks.Find(id)
		switch {
		case idx < 0 && !m.edit.Busy():
			m.edit.Cancel()
			m.focus = focusBlocks
			m.buffer.Blur()
			cmds = append(cmds, m.notify("The block you were editing was removed.", panels.ToneInfo))
		case idx >= 0 && m.edit.Rebase(b):
			if state, ok := m.edit.Active(); ok {
				m.buffer.SetValue(state.Buffer)
			}
		}
	}
	if id := m.pendingEditID; id != "" {
		m.pendingEditID = ""
		if b, idx := m.detail.Blocks.Find(id); idx >= 0 {
			m.moveCursorToEntry(id)
			cmds = append(cmds, m.requestEdit(b))
		}
	}
	if m.config.Watch && m.watching != m.chapter.ID {
		m.watching = m.chapter.ID
		cmds = append(cmds, watchChapterCmd(m.editorCtx, m.api, m.chapter.ID))
	}
	return tea.Batch(cmds...)
}

func (m *model) relayout() {
	m.blockLayout = blocks.Assemble(m.detail)
	m.layoutReady = true
	m.clampCursor()
	m.contentDirty = true
}

func (m *model) replaceBlock(b blocks.Block) {
	_, idx := m.detail.Blocks.Find(b.BlockID())
	if idx < 0 {
		return
	}
	list := append(blocks.List(nil), m.detail.Blocks...)
	list[idx] = b
	m.detail.Blocks = list
	m.relayout()
}

func (m *model) removeBlock(blockID string) {
	_, idx := m.detail.Blocks.Find(blockID)
	if idx < 0 {
		return
	}
	list := make(blocks.List, 0, len(m.detail.Blocks)-1)
	list = append(list, m.detail.Blocks[:idx]...)
	list = append(list, m.detail.Blocks[idx+1:]...)
	m.detail.Blocks = list
	m.relayout()
}

func (m *model) processEditorKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.focus == focusBuffer {
		if _, ok := m.edit.Active(); ok {
			return m, m.processBufferKey(msg)
		}
		m.focus = focusBlocks
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, m.requestQuit()
	case key.Matches(msg, m.keys.Help):
		m.overlay = overlayHelp
	case key.Matches(msg, m.keys.Up):
		m.moveCursor(-1)
	case key.Matches(msg, m.keys.Down):
		m.moveCursor(1)
	case key.Matches(msg, m.keys.PageUp):
		m.moveCursor(-6)
	case key.Matches(msg, m.keys.PageDown):
		m.moveCursor(6)
	case key.Matches(msg, m.keys.Top):
		m.moveCursor(-m.rowCount())
	case key.Matches(msg, m.keys.Bottom):
		m.moveCursor(m.rowCount())
	case key.Matches(msg, m.keys.Open):
		if entry, ok := m.selectedEntry(); ok {
			return m, m.requestEdit(entry.Block)
		}
		return m, m.openInsertMenu()
	case key.Matches(msg, m.keys.Cancel) && m.edit.ActiveID() != "":
		return m, m.cancelEdit()
	case key.Matches(msg, m.keys.Back):
		return m, m.leaveEditor()
	case key.Matches(msg, m.keys.Insert):
		return m, m.openInsertMenu()
	case key.Matches(msg, m.keys.Convert):
		return m, m.openConvert()
	case key.Matches(msg, m.keys.Accept):
		return m, m.acceptDraft()
	case key.Matches(msg, m.keys.Reject):
		return m, m.rejectDraft()
	case key.Matches(msg, m.keys.Save):
		return m, m.saveBlock()
	case key.Matches(msg, m.keys.Delete):
		return m, m.askDelete()
	case key.Matches(msg, m.keys.Focus):
		if state, ok := m.edit.Active(); ok {
			m.moveCursorToEntry(state.BlockID)
			m.focus = focusBuffer
			return m, m.buffer.Focus()
		}
	case key.Matches(msg, m.keys.Outline):
		return m, m.togglePin(m.outline)
	case key.Matches(msg, m.keys.Stats):
		return m, m.togglePin(m.stats)
	case key.Matches(msg, m.keys.Reload):
		return m, m.reloadChapter()
	}
	return m, nil
}

// processBufferKey feeds keystrokes to the edit buffer. Text changes the
// controller refuses (a save is in flight) are reverted.
func (m *model) processBufferKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case msg.Type == tea.KeyEsc:
		return m.cancelEdit()
	case key.Matches(msg, m.keys.Save):
		return m.saveBlock()
	case key.Matches(msg, m.keys.Delete):
		return m.askDelete()
	case msg.Type == tea.KeyTab:
		m.focus = focusBlocks
		m.buffer.Blur()
		m.contentDirty = true
		return nil
	}
	before := m.buffer.Value()
	var cmd tea.Cmd
	m.buffer, cmd = m.buffer.Update(msg)
	if after := m.buffer.Value(); after != before && !m.edit.SetBuffer(after) {
		m.buffer.SetValue(before)
	}
	m.fitBuffer()
	m.contentDirty = true
	return cmd
}

func (m *model) requestEdit(b blocks.Block) tea.Cmd {
	outcome, prompt, err := m.edit.Request(b)
	if err != nil {
		return m.notify(blocks.TypeLabel(b.BlockType())+" blocks cannot be edited here.", panels.ToneError)
	}
	switch outcome {
	case editing.OutcomeStarted, editing.OutcomeSwitched, editing.OutcomeUnchanged:
		return m.beginBuffer()
	case editing.OutcomeConfirm:
		m.ask(prompt, pendingAction{kind: confirmSwitch, block: b})
	case editing.OutcomeDeferred:
		return m.notify("Opens once the current save finishes.", panels.ToneInfo)
	}
	return nil
}

// beginBuffer loads the active session into the textarea and focuses it.
func (m *model) beginBuffer() tea.Cmd {
	state, ok := m.edit.Active()
	if !ok {
		return nil
	}
	if m.buffer.Value() != state.Buffer {
		m.buffer.SetValue(state.Buffer)
	}
	m.fitBuffer()
	m.focus = focusBuffer
	m.moveCursorToEntry(state.BlockID)
	return m.buffer.Focus()
}

func (m *model) fitBuffer() {
	lines := strings.Count(m.buffer.Value(), "\n") + 2
	if lines < 3 {
		lines = 3
	}
	if limit := m.layout.bodyHeight / 2; lines > limit {
		lines = limit
	}
	m.buffer.SetHeight(lines)
}

func (m *model) cancelEdit() tea.Cmd {
	if m.edit.ActiveID() == "" {
		return nil
	}
	m.edit.Cancel()
	return m.editClosed()
}

// editClosed returns focus to the block list and catches up with server
// changes that arrived while the buffer was open.
func (m *model) editClosed() tea.Cmd {
	m.focus = focusBlocks
	m.buffer.Blur()
	m.contentDirty = true
	if m.staleChapter {
		return m.reloadChapter()
	}
	return nil
}

func (m *model) saveBlock() tea.Cmd {
	req, err := m.edit.BeginSave()
	switch {
	case errors.Is(err, editing.ErrNoActiveEdit):
		return nil
	case err != nil:
		m.contentDirty = true
		return m.notify("Not saved: "+err.Error(), panels.ToneError)
	}
	m.contentDirty = true
	return m.startJob(m.ctx, jobKindSave, saveBlockJob(m.api, req))
}

func (m *model) handleBlockSaved(msg blockSavedMsg) tea.Cmd {
	res := m.edit.FinishSave(msg.blockID, msg.err)
	m.contentDirty = true
	if msg.err != nil {
		m.log.Warn("Saving block failed", zap.String("block", msg.blockID), zap.Error(msg.err))
		return m.notify("Save failed: "+msg.err.Error(), panels.ToneError)
	}
	if msg.block != nil {
		m.replaceBlock(msg.block)
	}
	return tea.Batch(m.notify("Saved.", panels.ToneSuccess), m.afterMutation(res))
}

func (m *model) afterMutation(res editing.Resolution) tea.Cmd {
	if m.screen != screenEditor {
		return nil
	}
	if res.Resumed != "" {
		return m.beginBuffer()
	}
	if m.edit.ActiveID() == "" {
		return m.editClosed()
	}
	return nil
}

func (m *model) askDelete() tea.Cmd {
	prompt, err := m.edit.RequestDelete()
	if err != nil {
		if errors.Is(err, editing.ErrNoActiveEdit) {
			return nil
		}
		return m.notify(err.Error(), panels.ToneError)
	}
	m.ask(prompt, pendingAction{kind: confirmDelete})
	return nil
}

func (m *model) deleteBlock() tea.Cmd {
	id, err := m.edit.BeginDelete()
	if err != nil {
		return m.notify(err.Error(), panels.ToneError)
	}
	m.contentDirty = true
	return m.startJob(m.ctx, jobKindDelete, deleteBlockJob(m.api, id))
}

func (m *model) handleBlockDeleted(msg blockDeletedMsg) tea.Cmd {
	res := m.edit.FinishDelete(msg.blockID, msg.err)
	m.contentDirty = true
	if msg.err != nil {
		m.log.Warn("Deleting block failed", zap.String("block", msg.blockID), zap.Error(msg.err))
		return m.notify("Delete failed: "+msg.err.Error(), panels.ToneError)
	}
	m.removeBlock(msg.blockID)
	return tea.Batch(m.notify("Block deleted.", panels.ToneSuccess), m.afterMutation(res))
}

func (m *model) openInsertMenu() tea.Cmd {
	if _, ok := m.selectedSlot(); !ok {
		if _, onEntry := m.selectedEntry(); !onEntry {
			return nil
		}
		// Insert below the selected entry.
		m.moveCursor(1)
	}
	if m.api == nil || m.edit.Busy() {
		return m.notify("Blocks cannot be inserted right now.", panels.ToneError)
	}
	m.insertCursor = 0
	m.overlay = overlayInsert
	return nil
}

func (m *model) processInsertKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	choose := func(t blocks.Type) (tea.Model, tea.Cmd) {
		m.overlay = overlayNone
		return m, m.insertBlock(t)
	}
	switch msg.String() {
	case "esc", "q":
		m.overlay = overlayNone
	case "up", "k":
		if m.insertCursor > 0 {
			m.insertCursor--
		}
	case "down", "j":
		if m.insertCursor < len(blocks.InsertableTypes)-1 {
			m.insertCursor++
		}
	case "enter":
		return choose(blocks.InsertableTypes[m.insertCursor])
	case "p":
		return choose(blocks.TypeParagraph)
	case "d":
		return choose(blocks.TypeDialogue)
	case "s":
		return choose(blocks.TypeSceneBoundary)
	case "m":
		return choose(blocks.TypeMetadata)
	}
	return m, nil
}

func (m *model) insertBlock(t blocks.Type) tea.Cmd {
	pos, ok := m.selectedSlot()
	if !ok {
		return m.notify("Select a slot between blocks first.", panels.ToneError)
	}
	if m.edit.Busy() {
		return m.notify(editing.ErrBusy.Error(), panels.ToneError)
	}
	m.log.Debug("Inserting block", zap.String("type", string(t)), zap.String("slot", pos.Label()))
	return m.startJob(m.ctx, jobKindInsert, insertBlockJob(m.api, m.chapter.ID, t, pos))
}

func (m *model) handleBlockInserted(msg blockInsertedMsg) tea.Cmd {
	if msg.chapterID != m.chapter.ID || m.screen != screenEditor {
		return nil
	}
	if msg.err != nil {
		m.log.Warn("Inserting block failed", zap.String("chapter", msg.chapterID), zap.Error(msg.err))
		return m.notify("Insert failed: "+msg.err.Error(), panels.ToneError)
	}
	label := "Block"
	if msg.block != nil {
		m.pendingEditID = msg.block.BlockID()
		label = blocks.TypeLabel(msg.block.BlockType())
	}
	return tea.Batch(m.notify(label+" added.", panels.ToneSuccess), m.reloadChapter())
}

// leaveEditor returns to the library, asking first when the buffer holds
// unsaved text. A save or delete already sent keeps running.
func (m *model) leaveEditor() tea.Cmd {
	if m.edit.Dirty() && !m.edit.Busy() {
		m.ask(confirm.Prompt{
			Title:       "Leave with unsaved changes?",
			Description: "The block you are editing has not been saved.",
			Tone:        confirm.ToneDestructive,
		}, pendingAction{kind: confirmLeave})
		return nil
	}
	return m.closeEditor()
}

func (m *model) closeEditor() tea.Cmd {
	inflight := m.edit.Busy()
	m.editorCancel()
	m.editorCtx, m.editorCancel = context.WithCancel(m.ctx)
	m.edit.Cancel()
	m.flow.Reject()
	m.composer.SetValue("")
	m.buffer.Blur()
	m.screen = screenLibrary
	m.overlay = overlayNone
	m.focus = focusBlocks
	m.layoutReady = false
	m.blockLayout = blocks.Layout{}
	m.detail = blocks.ChapterDetail{}
	m.watching = ""
	m.loading = false
	if inflight {
		m.setStatusInfo(fmt.Sprintf("Closed %s. The pending change still finishes.", m.chapter.Title))
	} else {
		m.setStatusInfo(fmt.Sprintf("Closed %s.", m.chapter.Title))
	}
	return m.loadLibrary()
}

func (m *model) handleWatchStarted(msg watchStartedMsg) tea.Cmd {
	if msg.chapterID != m.chapter.ID || m.screen != screenEditor {
		return nil
	}
	if msg.err != nil {
		m.log.Info("Live updates unavailable", zap.String("chapter", msg.chapterID), zap.Error(msg.err))
		return nil
	}
	return waitForChapterEvent(msg.chapterID, msg.events)
}

// handleChapterChanged reloads on server-side changes. While a buffer is
// open the reload waits until the edit closes.
func (m *model) handleChapterChanged(msg chapterChangedMsg) tea.Cmd {
	if msg.chapterID != m.chapter.ID || m.screen != screenEditor {
		return nil
	}
	next := waitForChapterEvent(msg.chapterID, msg.events)
	if m.edit.Busy() {
		return next
	}
	if m.edit.ActiveID() != "" {
		if m.staleChapter {
			return next
		}
		m.staleChapter = true
		return tea.Batch(next, m.notify("Chapter changed on the server; it reloads when you finish editing.", panels.ToneInfo))
	}
	m.log.Debug("Chapter changed", zap.String("chapter", msg.chapterID), zap.String("action", msg.event.Action))
	return tea.Batch(next, m.reloadChapter())
}

func (m *model) handleMouse(msg tea.MouseMsg) tea.Cmd {
	if m.screen != screenEditor || m.overlay != overlayNone {
		return nil
	}
	cmds := m.trackHover(msg.X)
	switch msg.Type {
	case tea.MouseWheelUp:
		m.viewport.LineUp(3)
		cmds = append(cmds, m.scrollbar.Poke())
	case tea.MouseWheelDown:
		m.viewport.LineDown(3)
		cmds = append(cmds, m.scrollbar.Poke())
	case tea.MouseLeft:
		cmds = append(cmds, m.click(msg.X, msg.Y))
	}
	return tea.Batch(cmds...)
}

// trackHover reports pointer transitions over the panel hotspots.
func (m *model) trackHover(x int) []tea.Cmd {
	var cmds []tea.Cmd
	for _, p := range []*panels.Controller{m.outline, m.stats} {
		if !p.Enabled() {
			continue
		}
		var inside bool
		if p == m.outline {
			inside = m.layout.inLeftHotspot(x, p.Visible())
		} else {
			inside = m.layout.inRightHotspot(x, p.Visible())
		}
		was := m.pointerIn[p.ID()]
		m.pointerIn[p.ID()] = inside
		switch {
		case inside && !was:
			p.Enter()
			m.resizeContent()
		case !inside && was:
			cmds = append(cmds, p.Leave())
		}
	}
	return cmds
}

func (m *model) click(x, y int) tea.Cmd {
	if !m.layoutReady {
		return nil
	}
	bodyY := y - topBarHeight
	if bodyY < 0 || bodyY >= m.layout.bodyHeight {
		return nil
	}
	if m.outline.Visible() && x < m.layout.sideWidth {
		// Outline rows start below the border and heading.
		idx := bodyY - 2
		if idx >= 0 && idx < len(m.blockLayout.Entries) {
			m.moveCursorToEntry(m.blockLayout.Entries[idx].Block.BlockID())
		}
		return nil
	}
	if m.stats.Visible() && x >= m.layout.windowWidth-m.layout.sideWidth {
		return nil
	}
	line := bodyY + m.viewport.YOffset
	row := -1
	for r, start := range m.rowLines {
		if start > line {
			break
		}
		row = r
	}
	if row < 0 {
		return nil
	}
	m.cursor = row
	m.clampCursor()
	m.contentDirty = true
	if entry, ok := m.selectedEntry(); ok && blocks.Editable(entry.Block) {
		return m.requestEdit(entry.Block)
	}
	return nil
}
