package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/muesli/reflow/truncate"
	"go.uber.org/zap"

	"github.com/csheth/chapterdesk/internal/library"
)

func (m *model) loadLibrary() tea.Cmd {
	req := m.lib.BeginLoad()
	kind := jobKindBooks
	if req.Mode == library.ModeChapters {
		kind = jobKindChapters
	}
	return m.startJob(m.ctx, kind, listJob(m.api, req))
}

func (m *model) handleBooksLoaded(msg booksLoadedMsg) tea.Cmd {
	if !m.lib.FinishBooks(msg.seq, msg.page, msg.err) {
		return nil
	}
	if msg.err != nil {
		m.log.Warn("Listing books failed", zap.Error(msg.err))
		m.setStatusError("Could not load books: " + msg.err.Error())
		return nil
	}
	m.syncPager()
	m.setStatusInfo(fmt.Sprintf("%s books", humanize.Comma(int64(msg.page.Total))))
	return nil
}

func (m *model) handleChaptersLoaded(msg chaptersLoadedMsg) tea.Cmd {
	if !m.lib.FinishChapters(msg.seq, msg.page, msg.err) {
		return nil
	}
	if msg.err != nil {
		m.log.Warn("Listing chapters failed", zap.String("book", m.lib.Book().ID), zap.Error(msg.err))
		m.setStatusError("Could not load chapters: " + msg.err.Error())
		return nil
	}
	m.syncPager()
	m.setStatusInfo(fmt.Sprintf("%s · %d chapters", m.lib.Book().Title, msg.page.Total))
	return nil
}

func (m *model) syncPager() {
	m.pager.PerPage = m.lib.PerPage()
	m.pager.TotalPages = m.lib.Pages()
	m.pager.Page = m.lib.Page() - 1
}

func (m *model) processLibraryKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.searching {
		switch msg.Type {
		case tea.KeyEsc, tea.KeyEnter:
			m.searching = false
			m.searchInput.Blur()
			return m, nil
		}
		var cmd tea.Cmd
		m.searchInput, cmd = m.searchInput.Update(msg)
		return m, tea.Batch(cmd, m.lib.SetQuery(m.searchInput.Value()))
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, m.requestQuit()
	case key.Matches(msg, m.keys.Help):
		m.overlay = overlayHelp
	case key.Matches(msg, m.keys.Up):
		m.lib.Move(-1)
	case key.Matches(msg, m.keys.Down):
		m.lib.Move(1)
	case key.Matches(msg, m.keys.Open):
		return m, m.openSelection()
	case key.Matches(msg, m.keys.Back):
		if m.lib.Back() {
			m.searchInput.SetValue("")
			return m, m.loadLibrary()
		}
	case key.Matches(msg, m.keys.Search):
		m.searching = true
		m.searchInput.Focus()
		return m, nil
	case key.Matches(msg, m.keys.NextPage):
		if m.lib.NextPage() {
			return m, m.loadLibrary()
		}
	case key.Matches(msg, m.keys.PrevPage):
		if m.lib.PrevPage() {
			return m, m.loadLibrary()
		}
	case key.Matches(msg, m.keys.Sort):
		order := m.lib.CycleSort()
		m.setStatusInfo("Sorted by " + order.String())
	case key.Matches(msg, m.keys.Reload):
		return m, m.loadLibrary()
	case key.Matches(msg, m.keys.Recent):
		idx := int(msg.Runes[0] - '1')
		return m, m.openRecent(idx)
	}
	return m, nil
}

// openSelection descends into a book or opens a chapter.
func (m *model) openSelection() tea.Cmd {
	if book, ok := m.lib.SelectedBook(); ok {
		m.lib.OpenBook(book)
		m.searchInput.SetValue("")
		m.prefs.LastBookID = book.ID
		return tea.Batch(m.loadLibrary(), m.savePreferences())
	}
	if ch, ok := m.lib.SelectedChapter(); ok {
		return m.openChapter(chapterRef{
			ID:        ch.ID,
			BookID:    ch.BookID,
			Title:     ch.Title,
			BookTitle: m.lib.Book().Title,
		})
	}
	return nil
}

func (m *model) openRecent(idx int) tea.Cmd {
	if idx < 0 || idx >= len(m.recent) {
		return nil
	}
	r := m.recent[idx]
	return m.openChapter(chapterRef{ID: r.ChapterID, BookID: r.BookID, Title: r.Title, BookTitle: r.BookTitle})
}

func (m *model) libraryView() string {
	var b strings.Builder
	heading := "Books"
	if m.lib.Mode() == library.ModeChapters {
		heading = m.lib.Book().Title
	}
	b.WriteString(m.st.title.Render(heading))
	b.WriteString("\n")
	if m.searching || m.searchInput.Value() != "" {
		b.WriteString(m.searchInput.View())
		b.WriteString("\n")
	}
	b.WriteString("\n")

	items := m.lib.Items()
	width := m.layout.mainWidth
	switch {
	case m.lib.Loading() && len(items) == 0:
		b.WriteString(m.spinner.View() + " Loading…\n")
	case m.lib.Err() != nil:
		b.WriteString(m.st.err.Render("Error: "+m.lib.Err().Error()) + "\n")
		b.WriteString(m.st.helper.Render("Press r to retry.") + "\n")
	case len(items) == 0:
		b.WriteString(m.st.placeholder.Render("Nothing here yet.") + "\n")
	default:
		// Each item takes three lines; show a window around the cursor.
		visible := (m.layout.bodyHeight - 12) / 3
		if visible < 3 {
			visible = 3
		}
		start := m.lib.Cursor() - visible/2
		if start > len(items)-visible {
			start = len(items) - visible
		}
		if start < 0 {
			start = 0
		}
		end := start + visible
		if end > len(items) {
			end = len(items)
		}
		for i := start; i < end; i++ {
			item := items[i]
			title := truncate.StringWithTail(item.Title, uint(width-4), "…")
			if i == m.lib.Cursor() {
				b.WriteString(m.st.currentLine.Render("› "+title) + "\n")
			} else {
				b.WriteString("  " + m.st.text.Render(title) + "\n")
			}
			meta := item.Detail
			if item.Subtitle != "" {
				meta = item.Subtitle + " · " + meta
			}
			b.WriteString("    " + m.st.helper.Render(truncate.StringWithTail(meta, uint(width-6), "…")) + "\n")
		}
	}

	if m.lib.Pages() > 1 {
		b.WriteString("\n" + m.pager.View())
		b.WriteString(m.st.helper.Render(fmt.Sprintf("  page %d/%d · sort: %s", m.lib.Page(), m.lib.Pages(), m.lib.Sort())))
		b.WriteString("\n")
	}

	if len(m.recent) > 0 && m.lib.Mode() == library.ModeBooks {
		b.WriteString("\n" + m.st.sectionHeader.Render("Recent chapters") + "\n")
		for i, r := range m.recent {
			if i >= 9 {
				break
			}
			line := fmt.Sprintf("%d  %s · %s", i+1, r.Title, r.BookTitle)
			if !r.OpenedAt.IsZero() {
				line += " · " + humanize.Time(r.OpenedAt)
			}
			b.WriteString(m.st.helper.Render(truncate.StringWithTail(line, uint(width-2), "…")) + "\n")
		}
	}

	b.WriteString("\n" + m.help.ShortHelpView(libraryKeys{m.keys}.ShortHelp()))
	return b.String()
}
