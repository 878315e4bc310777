package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/csheth/chapterdesk/internal/blocks"
	"github.com/csheth/chapterdesk/internal/mockapi"
)

func chapterText(t *testing.T, store *mockapi.Store, chapterID, blockID string) string {
	t.Helper()
	detail, _, err := store.Chapter(chapterID)
	if err != nil {
		t.Fatalf("chapter: %v", err)
	}
	b, idx := detail.Blocks.Find(blockID)
	if idx < 0 {
		return ""
	}
	p, ok := b.(blocks.Paragraph)
	if !ok {
		t.Fatalf("block %s is %T, not a paragraph", blockID, b)
	}
	return p.Text
}

func TestSeedChapterRows(t *testing.T) {
	m, _, _ := openSeedChapter(t)
	if got := m.rowCount(); got != 15 {
		t.Fatalf("expected 15 rows, got %d", got)
	}
	if m.cursor != 1 {
		t.Fatalf("cursor should start on the first entry, got row %d", m.cursor)
	}
	m.moveCursorToSlot(3)
	pos, ok := m.selectedSlot()
	if !ok || pos.Index != 3 {
		t.Fatalf("expected slot 3, got %+v ok=%v", pos, ok)
	}
	if pos.AfterBlockID != m.blockLayout.Entries[2].Block.BlockID() || pos.BeforeBlockID != m.blockLayout.Entries[3].Block.BlockID() {
		t.Fatalf("slot anchors wrong: %+v", pos)
	}
	if _, ok := m.selectedEntry(); ok {
		t.Fatalf("a slot row is not an entry")
	}
}

func TestDirtySwitchAsksBeforeDiscarding(t *testing.T) {
	m, _, _ := openSeedChapter(t)
	first := m.blockLayout.Entries[2].Block
	second := m.blockLayout.Entries[5].Block

	m.requestEdit(first)
	if m.edit.ActiveID() != first.BlockID() || m.focus != focusBuffer {
		t.Fatalf("edit did not start on %s", first.BlockID())
	}
	press(t, m, keyRunes("!"))
	if !m.edit.Dirty() {
		t.Fatalf("typing should dirty the buffer")
	}

	m.requestEdit(second)
	if m.overlay != overlayConfirm {
		t.Fatalf("switching away from a dirty buffer should ask first")
	}
	press(t, m, keyRunes("n"))
	if m.overlay != overlayNone || m.edit.ActiveID() != first.BlockID() || !m.edit.Dirty() {
		t.Fatalf("declining should keep the dirty edit")
	}

	m.requestEdit(second)
	press(t, m, keyRunes("y"))
	if m.edit.ActiveID() != second.BlockID() {
		t.Fatalf("accepting should switch to %s, active %s", second.BlockID(), m.edit.ActiveID())
	}
	if m.edit.Dirty() {
		t.Fatalf("the new session starts clean")
	}
	if m.cursor != 2*5+1 {
		t.Fatalf("cursor should follow the edited entry, got %d", m.cursor)
	}
}

func TestCleanSwitchNeedsNoConfirmation(t *testing.T) {
	m, _, _ := openSeedChapter(t)
	m.requestEdit(m.blockLayout.Entries[2].Block)
	m.requestEdit(m.blockLayout.Entries[3].Block)
	if m.overlay != overlayNone {
		t.Fatalf("clean switch should not prompt")
	}
	if m.edit.ActiveID() != m.blockLayout.Entries[3].Block.BlockID() {
		t.Fatalf("expected dialogue to be active")
	}
}

func TestSaveFailureKeepsBuffer(t *testing.T) {
	m, store, chapterID := openSeedChapter(t)
	target := m.blockLayout.Entries[2].Block
	original := chapterText(t, store, chapterID, target.BlockID())

	m.requestEdit(target)
	m.buffer.SetValue("Rewritten opening.")
	m.edit.SetBuffer(m.buffer.Value())
	if cmd := m.saveBlock(); cmd == nil {
		t.Fatalf("save should start a job")
	}
	state, _ := m.edit.Active()
	if !state.Saving {
		t.Fatalf("session should be saving")
	}
	press(t, m, keyRunes("x"))
	if m.buffer.Value() != "Rewritten opening." {
		t.Fatalf("typing during a save must not change the buffer, got %q", m.buffer.Value())
	}

	m.Update(blockSavedMsg{blockID: target.BlockID(), err: errors.New("conflict")})
	state, ok := m.edit.Active()
	if !ok || state.Saving || state.Err != "conflict" {
		t.Fatalf("failed save should keep the session with its error: %+v", state)
	}
	if state.Buffer != "Rewritten opening." || m.buffer.Value() != "Rewritten opening." {
		t.Fatalf("buffer lost after failure: %q", state.Buffer)
	}
	if got := chapterText(t, store, chapterID, target.BlockID()); got != original {
		t.Fatalf("server copy changed: %q", got)
	}
	if !strings.Contains(toastText(m), "conflict") {
		t.Fatalf("expected failure toast, got %q", toastText(m))
	}
}

func TestSwitchDuringSaveOpensAfterSuccess(t *testing.T) {
	m, store, chapterID := openSeedChapter(t)
	first := m.blockLayout.Entries[2].Block
	second := m.blockLayout.Entries[5].Block

	m.requestEdit(first)
	m.buffer.SetValue("Rewritten opening.")
	m.edit.SetBuffer(m.buffer.Value())
	save := m.saveBlock()
	if save == nil {
		t.Fatalf("save should start a job")
	}

	m.requestEdit(second)
	if m.edit.ActiveID() != first.BlockID() {
		t.Fatalf("switch must wait for the save, active %s", m.edit.ActiveID())
	}
	if !strings.Contains(toastText(m), "current save finishes") {
		t.Fatalf("expected a deferral notice, got %q", toastText(m))
	}

	drain(t, m, save)
	if m.edit.ActiveID() != second.BlockID() || m.focus != focusBuffer {
		t.Fatalf("deferred block should open after the save, active %q focus %v", m.edit.ActiveID(), m.focus)
	}
	if m.cursor != 2*5+1 {
		t.Fatalf("cursor should follow the resumed edit, got row %d", m.cursor)
	}
	if got := chapterText(t, store, chapterID, first.BlockID()); got != "Rewritten opening." {
		t.Fatalf("server text = %q", got)
	}
}

// gatedBackend holds block updates until release closes and fails them when
// the request context ends first.
type gatedBackend struct {
	storeBackend
	release chan struct{}
}

func (b gatedBackend) UpdateBlock(ctx context.Context, blockID string, patch blocks.Patch) (blocks.Block, error) {
	select {
	case <-b.release:
		return b.storeBackend.UpdateBlock(ctx, blockID, patch)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestLeavingDoesNotAbortSentSave(t *testing.T) {
	m, store, chapterID := openSeedChapter(t)
	gate := gatedBackend{storeBackend: storeBackend{store: store}, release: make(chan struct{})}
	m.api = gate
	target := m.blockLayout.Entries[2].Block

	m.requestEdit(target)
	m.buffer.SetValue("Rewritten opening.")
	m.edit.SetBuffer(m.buffer.Value())
	save := m.saveBlock()

	leave := m.leaveEditor()
	if m.overlay == overlayConfirm {
		t.Fatalf("text already sent should not ask about unsaved changes")
	}
	if m.screen != screenLibrary {
		t.Fatalf("leaving should return to the library")
	}
	drain(t, m, leave)

	close(gate.release)
	drain(t, m, save)
	if got := chapterText(t, store, chapterID, target.BlockID()); got != "Rewritten opening." {
		t.Fatalf("save was aborted by leaving, server text %q", got)
	}
	if m.edit.Busy() {
		t.Fatalf("save result should settle the controller")
	}
	if m.screen != screenLibrary || m.loading {
		t.Fatalf("late save must not pull the editor back, screen %v loading %v", m.screen, m.loading)
	}
}

func TestSaveWritesThroughAndClosesEdit(t *testing.T) {
	m, store, chapterID := openSeedChapter(t)
	target := m.blockLayout.Entries[5].Block

	m.requestEdit(target)
	m.buffer.SetValue("The lamp room was dark.")
	m.edit.SetBuffer(m.buffer.Value())
	press(t, m, tea.KeyMsg{Type: tea.KeyCtrlS})

	if m.edit.ActiveID() != "" {
		t.Fatalf("successful save should close the edit")
	}
	if m.focus != focusBlocks {
		t.Fatalf("focus should return to the blocks")
	}
	if got := chapterText(t, store, chapterID, target.BlockID()); got != "The lamp room was dark." {
		t.Fatalf("server text = %q", got)
	}
	local, _ := m.blockLayout.Entries[5].Block.(blocks.Paragraph)
	if local.Text != "The lamp room was dark." {
		t.Fatalf("local copy not updated: %q", local.Text)
	}
}

func TestInvalidEditIsNotSent(t *testing.T) {
	m, _, _ := openSeedChapter(t)
	m.requestEdit(m.blockLayout.Entries[2].Block)
	m.buffer.SetValue("   ")
	m.edit.SetBuffer(m.buffer.Value())
	m.saveBlock()
	state, _ := m.edit.Active()
	if state.Saving || state.Err == "" {
		t.Fatalf("empty paragraph should fail validation locally: %+v", state)
	}
	if len(m.running) != 0 {
		t.Fatalf("no job should be running")
	}
}

func TestInsertOpensNewBlockForEditing(t *testing.T) {
	m, _, _ := openSeedChapter(t)
	m.moveCursorToSlot(3)
	press(t, m, keyRunes("i"))
	if m.overlay != overlayInsert {
		t.Fatalf("i should open the insert menu")
	}
	press(t, m, keyRunes("p"))

	if got := len(m.blockLayout.Entries); got != 8 {
		t.Fatalf("expected 8 entries after insert, got %d", got)
	}
	inserted := m.blockLayout.Entries[3].Block
	if inserted.BlockType() != blocks.TypeParagraph {
		t.Fatalf("expected a paragraph at slot 3, got %s", inserted.BlockType())
	}
	if m.edit.ActiveID() != inserted.BlockID() {
		t.Fatalf("new block should open for editing")
	}
}

func TestDeleteRemovesBlockAfterConfirm(t *testing.T) {
	m, store, chapterID := openSeedChapter(t)
	target := m.blockLayout.Entries[5].Block
	m.requestEdit(target)

	press(t, m, tea.KeyMsg{Type: tea.KeyCtrlD})
	if m.overlay != overlayConfirm {
		t.Fatalf("delete should ask first")
	}
	press(t, m, keyRunes("y"))

	if got := len(m.blockLayout.Entries); got != 6 {
		t.Fatalf("expected 6 entries after delete, got %d", got)
	}
	if m.edit.ActiveID() != "" {
		t.Fatalf("deleted block should not stay in edit")
	}
	detail, _, _ := store.Chapter(chapterID)
	if _, idx := detail.Blocks.Find(target.BlockID()); idx >= 0 {
		t.Fatalf("server still has the block")
	}
}

func TestMetadataCannotBeDeleted(t *testing.T) {
	m, _, _ := openSeedChapter(t)
	m.requestEdit(m.blockLayout.Entries[0].Block)
	if m.edit.ActiveID() == "" {
		t.Fatalf("chapter header should be editable")
	}
	press(t, m, tea.KeyMsg{Type: tea.KeyCtrlD})
	if m.overlay == overlayConfirm {
		t.Fatalf("metadata deletion must not be offered")
	}
}

func TestUnknownBlockIsReadOnly(t *testing.T) {
	m, _, _ := openSeedChapter(t)
	unknown := m.blockLayout.Entries[6].Block
	m.requestEdit(unknown)
	if m.edit.ActiveID() != "" {
		t.Fatalf("unknown blocks must not open an editor")
	}
	if !strings.Contains(toastText(m), "cannot be edited") {
		t.Fatalf("expected a notice, got %q", toastText(m))
	}
}

func TestClickOnEntryStartsEdit(t *testing.T) {
	m, _, _ := openSeedChapter(t)
	m.View()
	row := 2*2 + 1
	if row >= len(m.rowLines) {
		t.Fatalf("row lines not recorded: %v", m.rowLines)
	}
	y := topBarHeight + m.rowLines[row] - m.viewport.YOffset
	press(t, m, tea.MouseMsg{X: 50, Y: y, Type: tea.MouseLeft})
	if m.cursor != row {
		t.Fatalf("click should select row %d, got %d", row, m.cursor)
	}
	if m.edit.ActiveID() != m.blockLayout.Entries[2].Block.BlockID() {
		t.Fatalf("click should open the entry for editing")
	}
}

func TestLeaveWithDirtyBufferAsks(t *testing.T) {
	m, _, _ := openSeedChapter(t)
	m.requestEdit(m.blockLayout.Entries[2].Block)
	press(t, m, keyRunes("?"))
	press(t, m, tea.KeyMsg{Type: tea.KeyTab})
	if m.focus != focusBlocks {
		t.Fatalf("tab should hand focus back to the blocks")
	}
	press(t, m, tea.KeyMsg{Type: tea.KeyBackspace})
	if m.overlay != overlayConfirm {
		t.Fatalf("leaving with unsaved text should ask")
	}
	press(t, m, keyRunes("y"))
	if m.screen != screenLibrary {
		t.Fatalf("accepting should return to the library")
	}
	if m.edit.ActiveID() != "" {
		t.Fatalf("edit should be discarded on leave")
	}
}
