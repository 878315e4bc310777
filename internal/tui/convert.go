package tui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/csheth/chapterdesk/internal/conversion"
	"github.com/csheth/chapterdesk/internal/panels"
)

func (m *model) openConvert() tea.Cmd {
	pos, ok := m.selectedSlot()
	if !ok {
		return m.notify("Select a slot between blocks to convert text into.", panels.ToneError)
	}
	if m.converter == nil {
		return m.notify(errNoConverter.Error(), panels.ToneError)
	}
	if !m.flow.OpenDialog(m.preconditions(), pos) {
		if m.edit.ActiveID() != "" {
			return m.notify("Finish the current edit before converting text.", panels.ToneError)
		}
		return m.notify("A conversion is already open.", panels.ToneError)
	}
	m.composer.SetValue("")
	m.overlay = overlayConvert
	return tea.Batch(m.composer.Focus(), textarea.Blink)
}

func (m *model) processConvertKey(msg tea.KeyMsg) tea.Cmd {
	if m.flow.Phase() == conversion.PhasePending {
		if msg.Type == tea.KeyEsc {
			m.closeConvert()
		}
		return nil
	}
	switch {
	case msg.Type == tea.KeyEsc:
		m.closeConvert()
		return nil
	case key.Matches(msg, m.keys.Save):
		return m.submitConvert()
	case key.Matches(msg, m.keys.Paste):
		return m.startJob(m.editorCtx, jobKindPaste, pasteJob())
	case key.Matches(msg, m.keys.Import):
		m.importInput.SetValue("")
		m.overlay = overlayImport
		return m.importInput.Focus()
	}
	var cmd tea.Cmd
	m.composer, cmd = m.composer.Update(msg)
	m.flow.SetText(m.composer.Value())
	return cmd
}

// closeConvert abandons composing or an unanswered conversion. The late
// result is dropped by the flow's sequence check.
func (m *model) closeConvert() {
	m.flow.CloseDialog()
	m.composer.Blur()
	m.overlay = overlayNone
	m.contentDirty = true
}

func (m *model) submitConvert() tea.Cmd {
	m.flow.SetText(m.composer.Value())
	req, err := m.flow.Submit()
	if err != nil {
		if errors.Is(err, conversion.ErrEmptyText) {
			return nil
		}
		return m.notify(err.Error(), panels.ToneError)
	}
	m.log.Debug("Converting text", zap.String("chapter", req.ChapterID), zap.Int("chars", len(req.Text)))
	return m.startJob(m.editorCtx, jobKindConvert, convertTextJob(m.converter, req))
}

func (m *model) handleConverted(msg convertedMsg) tea.Cmd {
	if !m.flow.FinishConvert(msg.seq, msg.blocks, msg.err) {
		return nil
	}
	if m.flow.Phase() != conversion.PhaseReady {
		m.log.Warn("Conversion failed", zap.String("error", m.flow.Err()))
		return nil
	}
	m.composer.Blur()
	if m.overlay == overlayConvert {
		m.overlay = overlayNone
	}
	if slot := m.draftSlot(); slot >= 0 {
		m.moveCursorToSlot(slot)
	}
	n := len(m.flow.Draft())
	return m.notify(fmt.Sprintf("Draft ready: %d %s. A to accept, R to reject.", n, plural(n, "block", "blocks")), panels.ToneSuccess)
}

func (m *model) acceptDraft() tea.Cmd {
	req, err := m.flow.Accept()
	if err != nil {
		return nil
	}
	m.contentDirty = true
	return m.startJob(m.ctx, jobKindApply, applyConversionJob(m.api, req))
}

func (m *model) rejectDraft() tea.Cmd {
	if m.flow.Phase() != conversion.PhaseReady {
		return nil
	}
	m.flow.Reject()
	m.contentDirty = true
	return m.notify("Draft discarded.", panels.ToneInfo)
}

func (m *model) handleApplied(msg appliedMsg) tea.Cmd {
	if !m.flow.FinishApply(msg.seq, msg.err) {
		return nil
	}
	m.contentDirty = true
	if msg.err != nil {
		m.log.Warn("Applying draft failed", zap.String("chapter", msg.chapterID), zap.Error(msg.err))
		return m.notify("Could not insert the draft: "+msg.err.Error(), panels.ToneError)
	}
	return tea.Batch(
		m.notify(fmt.Sprintf("Inserted %d %s.", msg.count, plural(msg.count, "block", "blocks")), panels.ToneSuccess),
		m.reloadChapter(),
	)
}

func (m *model) processImportKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEsc:
		m.importInput.Blur()
		m.overlay = overlayConvert
		return m.composer.Focus()
	case tea.KeyEnter:
		path := strings.TrimSpace(m.importInput.Value())
		if path == "" {
			return nil
		}
		m.importInput.Blur()
		m.overlay = overlayConvert
		return tea.Batch(m.composer.Focus(), m.startJob(m.editorCtx, jobKindImport, importFileJob(path)))
	}
	var cmd tea.Cmd
	m.importInput, cmd = m.importInput.Update(msg)
	return tea.Batch(cmd, textinput.Blink)
}

func (m *model) handleImported(msg importedMsg) tea.Cmd {
	if msg.err != nil {
		return m.notify("Import failed: "+msg.err.Error(), panels.ToneError)
	}
	if !m.appendComposer(msg.doc.Text) {
		return nil
	}
	return m.notify("Imported "+msg.doc.Summary(), panels.ToneSuccess)
}

func (m *model) handleClipboard(msg clipboardMsg) tea.Cmd {
	if msg.err != nil {
		return m.notify("Clipboard unavailable: "+msg.err.Error(), panels.ToneError)
	}
	if strings.TrimSpace(msg.text) == "" {
		return m.notify("The clipboard is empty.", panels.ToneInfo)
	}
	m.appendComposer(msg.text)
	return nil
}

// appendComposer adds text to the composer when it is still taking input.
func (m *model) appendComposer(text string) bool {
	if m.flow.Phase() != conversion.PhaseComposing {
		return false
	}
	current := m.composer.Value()
	if current != "" && !strings.HasSuffix(current, "\n") {
		current += "\n\n"
	}
	m.composer.SetValue(current + text)
	m.flow.SetText(m.composer.Value())
	return true
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
