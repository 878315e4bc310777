package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/muesli/reflow/indent"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wordwrap"

	"github.com/csheth/chapterdesk/internal/blocks"
	"github.com/csheth/chapterdesk/internal/confirm"
	"github.com/csheth/chapterdesk/internal/conversion"
	"github.com/csheth/chapterdesk/internal/editing"
	"github.com/csheth/chapterdesk/internal/panels"
	"github.com/csheth/chapterdesk/internal/textstats"
)

func (m *model) View() string {
	var body string
	if m.screen == screenEditor {
		body = m.editorView()
	} else {
		body = lipgloss.NewStyle().Padding(0, viewportHorizontalPadding/2).Render(m.libraryView())
	}
	if modal := m.overlayView(); modal != "" {
		body = lipgloss.Place(m.layout.windowWidth, m.layout.bodyHeight, lipgloss.Center, lipgloss.Center, modal)
	}
	body = lipgloss.NewStyle().Height(m.layout.bodyHeight).MaxHeight(m.layout.bodyHeight).Render(body)
	return lipgloss.JoinVertical(lipgloss.Left, m.topBarView(), body, m.statusBarView())
}

func (m *model) topBarView() string {
	parts := []string{"chapterdesk"}
	switch {
	case m.screen == screenEditor:
		parts = append(parts, m.chapter.BookTitle, m.chapter.Title)
	case m.lib.Book().ID != "":
		parts = append(parts, m.lib.Book().Title)
	}
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	line := truncate.StringWithTail(strings.Join(kept, " › "), uint(m.layout.windowWidth), "…")
	return m.st.topBar.Render(line)
}

func (m *model) modeLabel() string {
	switch {
	case m.screen == screenLibrary:
		return "LIBRARY"
	case m.overlay == overlayConvert || m.overlay == overlayImport:
		return "CONVERT"
	case m.flow.Phase() == conversion.PhaseReady || m.flow.Phase() == conversion.PhaseApplying:
		return "DRAFT"
	case m.edit.ActiveID() != "":
		return "EDIT"
	default:
		return "READ"
	}
}

func (m *model) statusBarView() string {
	stats := []string{m.modeLabel()}
	if m.screen == screenEditor && m.layoutReady {
		stats = append(stats, fmt.Sprintf("%s words", humanize.Comma(int64(textstats.ForBlocks(m.detail.Blocks).Words))))
		if state, ok := m.edit.Active(); ok {
			switch {
			case state.Saving:
				stats = append(stats, "saving…")
			case state.Deleting:
				stats = append(stats, "deleting…")
			case state.Err != "":
				stats = append(stats, "not saved")
			case m.edit.Dirty():
				stats = append(stats, "unsaved")
			}
		}
		if m.scrollbar.Visible() && m.viewport.TotalLineCount() > m.viewport.Height {
			stats = append(stats, fmt.Sprintf("%3.f%%", m.viewport.ScrollPercent()*100))
		}
	}
	stats = append(stats, m.jobStatusBadges()...)

	message := ""
	if text, tone, ok := m.toast.Current(); ok {
		message = text
		if tone == panels.ToneError {
			message = "✗ " + message
		}
	} else if m.errorMessage != "" {
		message = "✗ " + m.errorMessage
	} else if m.infoMessage != "" {
		message = m.infoMessage
	}
	if message != "" {
		stats = append(stats, message)
	}
	line := strings.Join(stats, "  •  ")
	line = truncate.StringWithTail(line, uint(maxInt(m.layout.windowWidth-2, 10)), "…")
	return m.st.statusBar.Width(m.layout.windowWidth).Render(line)
}

func (m *model) jobStatusBadges() []string {
	jobs := runningJobs(m.running)
	if len(jobs) == 0 {
		return nil
	}
	kinds := make([]string, 0, len(jobs))
	seen := map[jobKind]bool{}
	for _, job := range jobs {
		if job.Kind == jobKindSettings || seen[job.Kind] {
			continue
		}
		seen[job.Kind] = true
		kinds = append(kinds, string(job.Kind))
	}
	if len(kinds) == 0 {
		return nil
	}
	return []string{m.spinner.View() + " " + strings.Join(kinds, ", ")}
}

func (m *model) editorView() string {
	width := m.layout.contentWidth(m.outline.Visible(), m.stats.Visible())
	m.refreshViewportIfDirty(width)
	main := lipgloss.NewStyle().Width(width).Render(m.viewport.View())

	columns := []string{}
	if m.outline.Visible() {
		columns = append(columns, m.outlineView())
	}
	columns = append(columns, lipgloss.NewStyle().Padding(0, viewportHorizontalPadding/2).Render(main))
	if m.stats.Visible() {
		columns = append(columns, m.statsView())
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, columns...)
}

func (m *model) refreshViewportIfDirty(width int) {
	if !m.contentDirty && m.focus != focusBuffer {
		return
	}
	m.contentDirty = false
	m.viewport.Width = width
	m.viewport.Height = m.layout.bodyHeight
	m.viewport.SetContent(m.buildContent(width))
	if m.followCursor && m.cursor < len(m.rowLines) {
		m.followCursor = false
		start := m.rowLines[m.cursor]
		end := start
		if m.cursor+1 < len(m.rowLines) {
			end = m.rowLines[m.cursor+1] - 1
		}
		switch {
		case start < m.viewport.YOffset:
			m.viewport.SetYOffset(start)
		case end >= m.viewport.YOffset+m.viewport.Height:
			m.viewport.SetYOffset(end - m.viewport.Height + 1)
		}
	}
}

// buildContent renders the chapter and records the first line of every row
// in rowLines for mouse hit testing and cursor following.
func (m *model) buildContent(width int) string {
	var cb contentBuilder
	m.rowLines = m.rowLines[:0]
	switch {
	case m.loadErr != nil && !m.layoutReady:
		cb.WriteLine(m.st.err.Render("Could not load the chapter: " + m.loadErr.Error()))
		cb.WriteLine(m.st.helper.Render("Press r to retry or Esc to go back."))
		return cb.String()
	case !m.layoutReady:
		cb.WriteLine(m.spinner.View() + " Loading chapter…")
		return cb.String()
	}

	layout := m.blockLayout
	if layout.DefaultTitle {
		title := layout.Title
		if title == "" {
			title = m.chapter.Title
		}
		cb.WriteLine(m.st.title.Render(title))
		if layout.Summary != "" {
			cb.WriteLine(m.st.helper.Render(wordwrap.String(layout.Summary, width)))
		}
		cb.WriteRune('\n')
	}
	if layout.Empty {
		cb.WriteLine(m.st.placeholder.Render("This chapter has no blocks yet. Press i to insert one or c to convert text."))
	}

	for i, slot := range layout.Slots {
		m.rowLines = append(m.rowLines, cb.Line())
		m.renderSlot(&cb, i, slot, width)
		if i >= len(layout.Entries) {
			break
		}
		m.rowLines = append(m.rowLines, cb.Line())
		m.renderEntry(&cb, layout.Entries[i], m.cursor == 2*i+1, width)
	}
	return cb.String()
}

func (m *model) renderSlot(cb *contentBuilder, idx int, slot blocks.InsertPosition, width int) {
	selected := m.cursor == 2*idx
	hasDraft := idx == m.draftSlot()
	if selected {
		cb.WriteLine(m.st.slotActive.Render(truncate.String("── + i insert · c convert at "+slot.Label()+" ──", uint(width))))
	} else {
		cb.WriteLine(m.st.slot.Render("  ┄"))
	}
	if hasDraft {
		cb.WriteLine(m.draftView(width))
	}
}

// draftSlot is the slot the ready draft will land in, or -1.
func (m *model) draftSlot() int {
	if m.flow.ChapterID() != m.chapter.ID || !m.layoutReady {
		return -1
	}
	if phase := m.flow.Phase(); phase != conversion.PhaseReady && phase != conversion.PhaseApplying {
		return -1
	}
	return m.blockLayout.SlotFor(m.flow.Position())
}

func (m *model) draftView(width int) string {
	draft := m.flow.Draft()
	var b strings.Builder
	b.WriteString(m.st.sectionHeader.Render(fmt.Sprintf("Draft · %d %s", len(draft), plural(len(draft), "block", "blocks"))))
	b.WriteRune('\n')
	for _, block := range draft {
		view, ok := blocks.Render(block)
		if !ok {
			continue
		}
		b.WriteString(m.renderView(view, width-4))
		b.WriteRune('\n')
	}
	if m.flow.Phase() == conversion.PhaseApplying {
		b.WriteString(m.spinner.View() + " Inserting…")
	} else {
		b.WriteString(m.st.helper.Render("A accept · R reject"))
	}
	if err := m.flow.ApplyErr(); err != "" {
		b.WriteRune('\n')
		b.WriteString(m.st.err.Render(err))
	}
	return m.st.draftBox.Render(b.String())
}

func (m *model) renderEntry(cb *contentBuilder, entry blocks.Entry, selected bool, width int) {
	if state, ok := m.edit.Active(); ok && state.BlockID == entry.Block.BlockID() {
		cb.WriteLine(m.editBoxView(state, entry, width))
		return
	}
	body := m.renderView(entry.View, width-2)
	gutter := "  "
	if selected {
		gutter = m.st.gutter.Render("▌ ")
	}
	for _, line := range strings.Split(body, "\n") {
		cb.WriteLine(gutter + line)
	}
}

func (m *model) editBoxView(state editing.State, entry blocks.Entry, width int) string {
	parts := []string{m.st.sectionHeader.Render("Editing " + strings.ToLower(blocks.TypeLabel(entry.Block.BlockType())))}
	parts = append(parts, m.buffer.View())
	if state.Err != "" {
		parts = append(parts, m.st.err.Render(wordwrap.String(state.Err, width-4)))
	}
	hint := "Ctrl+S save · Esc cancel · Tab blocks"
	if state.CanDelete {
		hint += " · Ctrl+D delete"
	}
	switch {
	case state.Saving:
		hint = m.spinner.View() + " Saving…"
	case state.Deleting:
		hint = m.spinner.View() + " Deleting…"
	}
	parts = append(parts, m.st.helper.Render(hint))
	return m.st.editBox.Render(strings.Join(parts, "\n"))
}

// renderView styles a read view by line role.
func (m *model) renderView(view blocks.ReadView, width int) string {
	if width < 10 {
		width = 10
	}
	var lines []string
	if view.Heading != "" {
		lines = append(lines, m.st.sectionHeader.Render(wordwrap.String(view.Heading, width)))
	}
	for _, line := range view.Lines {
		lines = append(lines, m.renderLine(line, width))
	}
	out := strings.Join(lines, "\n")
	if view.Unsupported {
		return m.st.unavailable.Render(out)
	}
	return out
}

func (m *model) renderLine(line blocks.Line, width int) string {
	switch line.Role {
	case blocks.RoleTurn:
		text := m.st.speaker.Render(line.Label+":") + " " + line.Text
		if line.Aside != "" {
			text += " " + m.st.aside.Render("("+line.Aside+")")
		}
		return indentHanging(wordwrap.String(text, width), 2)
	case blocks.RoleSubtitle:
		return m.st.subtitle.Render(wordwrap.String(line.Text, width))
	case blocks.RoleEpigraph:
		return m.st.aside.Render(indent.String(wordwrap.String(line.Text, width-4), 4))
	case blocks.RoleField:
		return m.st.field.Render(line.Label+": ") + wordwrap.String(line.Text, width-len(line.Label)-2)
	case blocks.RoleSummary:
		return m.st.helper.Render(wordwrap.String(line.Text, width))
	case blocks.RoleNotice:
		return m.st.warning.Render(wordwrap.String(line.Text, width))
	case blocks.RolePlacehold:
		return m.st.placeholder.Render(line.Text)
	default:
		return m.st.text.Render(wordwrap.String(line.Text, width))
	}
}

// indentHanging indents every line after the first.
func indentHanging(text string, n int) string {
	first, rest, ok := strings.Cut(text, "\n")
	if !ok {
		return text
	}
	return first + "\n" + indentMultiline(rest, strings.Repeat(" ", n))
}

func (m *model) outlineView() string {
	width := m.layout.sideWidth - 4
	rows := []string{m.st.sectionHeader.Render("Outline")}
	current := -1
	if entry, ok := m.selectedEntry(); ok {
		current = entry.Index
	}
	for i, entry := range m.blockLayout.Entries {
		label := entry.View.Heading
		if label == "" && len(entry.View.Lines) > 0 {
			label = entry.View.Lines[0].Text
		}
		label = previewText(typeInitial(entry.View.Type)+" "+label, width)
		label = truncate.StringWithTail(label, uint(width), "…")
		if i == current {
			label = m.st.currentLine.Render(label)
		} else if m.edit.IsEditing(entry.Block.BlockID()) {
			label = m.st.warning.Render(label)
		}
		rows = append(rows, label)
	}
	return m.st.panel.Width(m.layout.sideWidth - 2).Height(m.layout.bodyHeight - 2).MaxHeight(m.layout.bodyHeight).
		Render(strings.Join(rows, "\n"))
}

func (m *model) statsView() string {
	s := textstats.ForBlocks(m.detail.Blocks)
	rows := []string{
		m.st.sectionHeader.Render("Chapter"),
		fmt.Sprintf("%s blocks", humanize.Comma(int64(s.Blocks))),
		fmt.Sprintf("%s words", humanize.Comma(int64(s.Words))),
		fmt.Sprintf("%s sentences", humanize.Comma(int64(s.Sentences))),
	}
	if s.Words > 0 {
		minutes := (s.Words + 249) / 250
		rows = append(rows, fmt.Sprintf("~%d min read", minutes))
	}
	if !m.detail.UpdatedAt.IsZero() {
		rows = append(rows, m.st.helper.Render("updated "+humanize.Time(m.detail.UpdatedAt)))
	}
	if state, ok := m.edit.Active(); ok {
		rows = append(rows, "", m.st.sectionHeader.Render("Editing"))
		rows = append(rows, blocks.TypeLabel(state.Block.BlockType()))
		buf := textstats.Words(state.Buffer)
		rows = append(rows, fmt.Sprintf("%s words in buffer", humanize.Comma(int64(buf))))
	}
	if m.staleChapter {
		rows = append(rows, "", m.st.warning.Render("server copy changed"))
	}
	return m.st.panel.Width(m.layout.sideWidth - 2).Height(m.layout.bodyHeight - 2).MaxHeight(m.layout.bodyHeight).
		Render(strings.Join(rows, "\n"))
}

func (m *model) overlayView() string {
	switch m.overlay {
	case overlayPalette:
		return m.paletteView()
	case overlayConfirm:
		return m.confirmView()
	case overlayInsert:
		return m.insertMenuView()
	case overlayConvert:
		return m.convertView()
	case overlayImport:
		return m.importView()
	case overlayHelp:
		return m.helpOverlayView()
	}
	return ""
}

func (m *model) paletteView() string {
	var b strings.Builder
	b.WriteString(m.st.sectionHeader.Render("Command Palette"))
	b.WriteRune('\n')
	b.WriteString(m.paletteInput.View())
	b.WriteString("\n\n")
	if len(m.paletteMatches) == 0 {
		b.WriteString(m.st.helper.Render("No commands match this filter."))
	}
	for idx, cmd := range m.paletteMatches {
		label := cmd.title
		if cmd.shortcut != "" {
			label += "  [" + cmd.shortcut + "]"
		}
		switch {
		case idx == m.paletteCursor:
			label = m.st.currentLine.Render("▸ " + label)
		case !m.commandAvailable(cmd.action):
			label = m.st.unavailable.Render("  " + label)
		default:
			label = "  " + label
		}
		b.WriteString(label)
		b.WriteRune('\n')
		b.WriteString(m.st.helper.Render("   " + cmd.description))
		b.WriteRune('\n')
	}
	b.WriteString(m.st.helper.Render("\nEnter to run, Esc to cancel."))
	return m.st.modal.Render(b.String())
}

func (m *model) confirmView() string {
	p := m.confirm.Prompt()
	style := m.st.modal
	if p.Tone == confirm.ToneDestructive {
		style = m.st.modalDanger
	}
	body := joinNonEmpty([]string{
		m.st.sectionHeader.Render(p.Title),
		wordwrap.String(p.Description, 50),
		m.st.key.Render("y") + m.st.keyDesc.Render(" confirm  ") + m.st.key.Render("n") + m.st.keyDesc.Render(" cancel"),
	})
	return style.Render(body)
}

func (m *model) insertMenuView() string {
	pos, _ := m.selectedSlot()
	rows := []string{m.st.sectionHeader.Render("Insert at " + pos.Label())}
	for i, t := range blocks.InsertableTypes {
		label := fmt.Sprintf("%s  %s", strings.ToLower(typeInitial(t)), blocks.TypeLabel(t))
		if i == m.insertCursor {
			label = m.st.currentLine.Render("▸ " + label)
		} else {
			label = "  " + label
		}
		rows = append(rows, label)
	}
	rows = append(rows, "", m.st.helper.Render("Enter or letter to insert, Esc to cancel."))
	return m.st.modal.Render(strings.Join(rows, "\n"))
}

func (m *model) convertView() string {
	parts := []string{m.st.sectionHeader.Render("Convert text · " + m.flow.Position().Label())}
	parts = append(parts, m.composer.View())
	if err := m.flow.Err(); err != "" {
		parts = append(parts, m.st.err.Render(err))
	}
	if m.flow.Phase() == conversion.PhasePending {
		parts = append(parts, m.spinner.View()+" Converting… Esc to abandon.")
	} else {
		parts = append(parts, m.st.helper.Render("Ctrl+S convert · Ctrl+V paste · Ctrl+O import file · Esc close"))
	}
	return m.st.modal.Render(strings.Join(parts, "\n"))
}

func (m *model) importView() string {
	return m.st.modal.Render(strings.Join([]string{
		m.st.sectionHeader.Render("Import a file"),
		m.importInput.View(),
		m.st.helper.Render("Plain text, Markdown and PDF. Enter to import, Esc to go back."),
	}, "\n"))
}

type keyHint struct {
	Key         string
	Description string
}

func (m *model) keyLegendView() string {
	hints := []keyHint{
		{"↑/↓", "Move"},
		{"Enter", "Edit or insert"},
		{"i", "Insert block"},
		{"c", "Convert text"},
		{"A/R", "Accept or reject draft"},
		{"Ctrl+S", "Save"},
		{"o/t", "Pin panels"},
		{"g/G", "Top or bottom"},
		{"Ctrl+K", "Command palette"},
	}
	if m.screen == screenLibrary {
		hints = []keyHint{
			{"↑/↓", "Move"},
			{"Enter", "Open"},
			{"Esc", "Back to books"},
			{"/", "Search"},
			{"[/]", "Page"},
			{"s", "Sort"},
			{"1-9", "Recent chapter"},
			{"r", "Reload"},
			{"Ctrl+K", "Command palette"},
		}
	}
	rows := []string{m.st.sectionHeader.Render("Cheatsheet")}
	const columns = 3
	for i := 0; i < len(hints); i += columns {
		end := i + columns
		if end > len(hints) {
			end = len(hints)
		}
		var cells []string
		for _, hint := range hints[i:end] {
			key := m.st.key.Render(hint.Key)
			desc := m.st.keyDesc.Render(" " + hint.Description + "  ")
			cells = append(cells, lipgloss.JoinHorizontal(lipgloss.Top, key, desc))
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	}
	return m.st.legendBox.Render(strings.Join(rows, "\n"))
}

func (m *model) helpOverlayView() string {
	var full string
	if m.screen == screenEditor {
		full = m.help.FullHelpView(editorKeys{m.keys}.FullHelp())
	} else {
		full = m.help.FullHelpView(libraryKeys{m.keys}.FullHelp())
	}
	return lipgloss.JoinVertical(lipgloss.Left, m.keyLegendView(), full, m.st.helper.Render("Esc or ? to close."))
}

func typeInitial(t blocks.Type) string {
	label := blocks.TypeLabel(t)
	if label == "" {
		return "?"
	}
	return string([]rune(label)[:1])
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
