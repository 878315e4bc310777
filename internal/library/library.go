// Package library holds the browse state of the book and chapter lists:
// debounced search, paging, sort order and the cursor.
package library

import (
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/maruel/natural"

	"github.com/csheth/chapterdesk/internal/bookapi"
)

const (
	DefaultPerPage  = 20
	DefaultDebounce = 300 * time.Millisecond
)

type Mode int

const (
	ModeBooks Mode = iota
	ModeChapters
)

func (m Mode) String() string {
	if m == ModeChapters {
		return "chapters"
	}
	return "books"
}

// SortOrder decides how the current page is ordered on screen.
type SortOrder int

const (
	SortDefault SortOrder = iota
	SortTitle
	SortUpdated
)

func (s SortOrder) String() string {
	switch s {
	case SortTitle:
		return "title"
	case SortUpdated:
		return "recently updated"
	default:
		return "default"
	}
}

// SearchMsg fires when the debounce delay after the last keystroke elapses.
type SearchMsg struct {
	Seq int
}

// Request describes one listing fetch. Seq ties the response to the state
// that asked for it.
type Request struct {
	Seq    int
	Mode   Mode
	BookID string
	Query  bookapi.ListQuery
}

// Item is one row of the visible list.
type Item struct {
	ID       string
	Title    string
	Subtitle string
	Detail   string
}

type State struct {
	mode     Mode
	query    string
	page     int
	perPage  int
	debounce time.Duration
	sort     SortOrder
	cursor   int

	searchSeq int
	loadSeq   int
	loading   bool
	err       error

	book     bookapi.Book
	books    bookapi.Page[bookapi.Book]
	chapters bookapi.Page[bookapi.ChapterSummary]
	now      func() time.Time
}

func New(perPage int, debounce time.Duration) *State {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &State{page: 1, perPage: perPage, debounce: debounce, now: time.Now}
}

func (s *State) Mode() Mode              { return s.mode }
func (s *State) Query() string           { return s.query }
func (s *State) Page() int               { return s.page }
func (s *State) PerPage() int            { return s.perPage }
func (s *State) Sort() SortOrder         { return s.sort }
func (s *State) Loading() bool           { return s.loading }
func (s *State) Err() error              { return s.err }
func (s *State) Book() bookapi.Book      { return s.book }
func (s *State) Cursor() int             { return s.cursor }
func (s *State) Debounce() time.Duration { return s.debounce }

// Pages is the page count of the current listing.
func (s *State) Pages() int {
	if s.mode == ModeChapters {
		return s.chapters.Pages()
	}
	return s.books.Pages()
}

// Total is the number of matches across all pages.
func (s *State) Total() int {
	if s.mode == ModeChapters {
		return s.chapters.Total
	}
	return s.books.Total
}

// SetQuery records a new search term and schedules a debounced search. Only
// the tick of the latest keystroke triggers a fetch.
func (s *State) SetQuery(q string) tea.Cmd {
	if q == s.query {
		return nil
	}
	s.query = q
	s.page = 1
	s.searchSeq++
	seq := s.searchSeq
	return tea.Tick(s.debounce, func(time.Time) tea.Msg { return SearchMsg{Seq: seq} })
}

// Due reports whether msg belongs to the latest keystroke.
func (s *State) Due(msg SearchMsg) bool {
	return msg.Seq == s.searchSeq
}

// BeginLoad starts a fetch of the current page. Earlier in-flight fetches
// become stale.
func (s *State) BeginLoad() Request {
	s.loadSeq++
	s.loading = true
	s.err = nil
	req := Request{
		Seq:   s.loadSeq,
		Mode:  s.mode,
		Query: bookapi.ListQuery{Query: strings.TrimSpace(s.query), Page: s.page, PerPage: s.perPage},
	}
	if s.mode == ModeChapters {
		req.BookID = s.book.ID
	}
	return req
}

// FinishBooks stores a book page. It returns false for stale responses.
func (s *State) FinishBooks(seq int, page bookapi.Page[bookapi.Book], err error) bool {
	if seq != s.loadSeq || s.mode != ModeBooks {
		return false
	}
	s.loading = false
	s.err = err
	if err == nil {
		s.books = page
		s.clampCursor()
	}
	return true
}

// FinishChapters stores a chapter page. It returns false for stale responses.
func (s *State) FinishChapters(seq int, page bookapi.Page[bookapi.ChapterSummary], err error) bool {
	if seq != s.loadSeq || s.mode != ModeChapters {
		return false
	}
	s.loading = false
	s.err = err
	if err == nil {
		s.chapters = page
		s.clampCursor()
	}
	return true
}

// OpenBook switches to the chapter list of book.
func (s *State) OpenBook(book bookapi.Book) {
	s.book = book
	s.mode = ModeChapters
	s.reset()
}

// Back returns from the chapter list to the books. It reports whether the
// mode changed.
func (s *State) Back() bool {
	if s.mode != ModeChapters {
		return false
	}
	s.mode = ModeBooks
	s.book = bookapi.Book{}
	s.reset()
	return true
}

func (s *State) reset() {
	s.query = ""
	s.page = 1
	s.cursor = 0
	s.err = nil
	s.loadSeq++
	s.searchSeq++
	s.loading = false
	s.chapters = bookapi.Page[bookapi.ChapterSummary]{}
}

// NextPage and PrevPage report whether the page changed and a fetch is due.
func (s *State) NextPage() bool {
	if s.page >= s.Pages() {
		return false
	}
	s.page++
	s.cursor = 0
	return true
}

func (s *State) PrevPage() bool {
	if s.page <= 1 {
		return false
	}
	s.page--
	s.cursor = 0
	return true
}

// SetPage jumps to page p (1-based), reporting whether it changed.
func (s *State) SetPage(p int) bool {
	if p < 1 || p > s.Pages() || p == s.page {
		return false
	}
	s.page = p
	s.cursor = 0
	return true
}

func (s *State) CycleSort() SortOrder {
	s.sort = (s.sort + 1) % 3
	s.cursor = 0
	return s.sort
}

func (s *State) Move(delta int) {
	s.cursor += delta
	s.clampCursor()
}

func (s *State) clampCursor() {
	n := len(s.Items())
	if s.cursor >= n {
		s.cursor = n - 1
	}
	if s.cursor < 0 {
		s.cursor = 0
	}
}

// SelectedBook returns the book under the cursor in books mode.
func (s *State) SelectedBook() (bookapi.Book, bool) {
	if s.mode != ModeBooks {
		return bookapi.Book{}, false
	}
	books := s.sortedBooks()
	if s.cursor < 0 || s.cursor >= len(books) {
		return bookapi.Book{}, false
	}
	return books[s.cursor], true
}

// SelectedChapter returns the chapter under the cursor in chapters mode.
func (s *State) SelectedChapter() (bookapi.ChapterSummary, bool) {
	if s.mode != ModeChapters {
		return bookapi.ChapterSummary{}, false
	}
	chapters := s.sortedChapters()
	if s.cursor < 0 || s.cursor >= len(chapters) {
		return bookapi.ChapterSummary{}, false
	}
	return chapters[s.cursor], true
}

// Items returns the rows of the current page in display order.
func (s *State) Items() []Item {
	now := s.now()
	if s.mode == ModeChapters {
		chapters := s.sortedChapters()
		items := make([]Item, 0, len(chapters))
		for _, ch := range chapters {
			items = append(items, Item{
				ID:       ch.ID,
				Title:    fmt.Sprintf("%d. %s", ch.Order, ch.Title),
				Subtitle: ch.Summary,
				Detail: fmt.Sprintf("%s words · %d blocks · %s", humanize.Comma(int64(ch.WordCount)), ch.BlockCount,
					humanize.RelTime(ch.UpdatedAt, now, "ago", "from now")),
			})
		}
		return items
	}
	books := s.sortedBooks()
	items := make([]Item, 0, len(books))
	for _, b := range books {
		chapters := "chapter"
		if b.ChapterCount != 1 {
			chapters = "chapters"
		}
		items = append(items, Item{
			ID:       b.ID,
			Title:    b.Title,
			Subtitle: b.Author,
			Detail:   fmt.Sprintf("%d %s · %s", b.ChapterCount, chapters, humanize.RelTime(b.UpdatedAt, now, "ago", "from now")),
		})
	}
	return items
}

func (s *State) sortedBooks() []bookapi.Book {
	books := append([]bookapi.Book(nil), s.books.Items...)
	switch s.sort {
	case SortTitle:
		sort.SliceStable(books, func(i, j int) bool { return natural.Less(books[i].Title, books[j].Title) })
	case SortUpdated:
		sort.SliceStable(books, func(i, j int) bool { return books[i].UpdatedAt.After(books[j].UpdatedAt) })
	}
	return books
}

func (s *State) sortedChapters() []bookapi.ChapterSummary {
	chapters := append([]bookapi.ChapterSummary(nil), s.chapters.Items...)
	switch s.sort {
	case SortTitle:
		sort.SliceStable(chapters, func(i, j int) bool { return natural.Less(chapters[i].Title, chapters[j].Title) })
	case SortUpdated:
		sort.SliceStable(chapters, func(i, j int) bool { return chapters[i].UpdatedAt.After(chapters[j].UpdatedAt) })
	default:
		sort.SliceStable(chapters, func(i, j int) bool { return chapters[i].Order < chapters[j].Order })
	}
	return chapters
}
