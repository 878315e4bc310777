package library

import (
	"errors"
	"testing"
	"time"

	"github.com/csheth/chapterdesk/internal/bookapi"
)

func booksPage(titles ...string) bookapi.Page[bookapi.Book] {
	page := bookapi.Page[bookapi.Book]{Total: len(titles), Page: 1, PerPage: 20}
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, title := range titles {
		page.Items = append(page.Items, bookapi.Book{ID: title, Title: title, UpdatedAt: base.Add(time.Duration(i) * time.Hour)})
	}
	return page
}

func TestSearchDebounceHonorsOnlyLatestKeystroke(t *testing.T) {
	s := New(10, time.Millisecond)
	first := s.SetQuery("h")
	second := s.SetQuery("ha")
	if first == nil || second == nil {
		t.Fatalf("expected debounce commands")
	}
	if s.SetQuery("ha") != nil {
		t.Fatalf("unchanged query should not schedule a search")
	}
	stale := first().(SearchMsg)
	latest := second().(SearchMsg)
	if s.Due(stale) {
		t.Fatalf("stale tick should be ignored")
	}
	if !s.Due(latest) {
		t.Fatalf("latest tick should trigger a search")
	}
	req := s.BeginLoad()
	if req.Query.Query != "ha" || req.Query.Page != 1 || req.Query.PerPage != 10 {
		t.Fatalf("unexpected request %+v", req)
	}
}

func TestStaleLoadsAreIgnored(t *testing.T) {
	s := New(0, 0)
	old := s.BeginLoad()
	current := s.BeginLoad()
	if s.FinishBooks(old.Seq, booksPage("Old"), nil) {
		t.Fatalf("stale response applied")
	}
	if !s.FinishBooks(current.Seq, booksPage("New"), nil) {
		t.Fatalf("current response ignored")
	}
	if items := s.Items(); len(items) != 1 || items[0].Title != "New" || s.Loading() {
		t.Fatalf("unexpected items %+v", items)
	}

	req := s.BeginLoad()
	s.FinishBooks(req.Seq, bookapi.Page[bookapi.Book]{}, errors.New("offline"))
	if s.Err() == nil || len(s.Items()) != 1 {
		t.Fatalf("failed load should keep the previous page and record the error")
	}
}

func TestOpenBookAndBack(t *testing.T) {
	s := New(0, 0)
	req := s.BeginLoad()
	s.FinishBooks(req.Seq, booksPage("A"), nil)
	book, ok := s.SelectedBook()
	if !ok {
		t.Fatalf("expected a selected book")
	}
	pending := s.BeginLoad()
	s.OpenBook(book)
	if s.FinishBooks(pending.Seq, booksPage("late"), nil) {
		t.Fatalf("response from the books list applied after opening a book")
	}
	req = s.BeginLoad()
	if req.Mode != ModeChapters || req.BookID != "A" {
		t.Fatalf("unexpected chapter request %+v", req)
	}
	s.FinishChapters(req.Seq, bookapi.Page[bookapi.ChapterSummary]{Items: []bookapi.ChapterSummary{
		{ID: "c2", Title: "Two", Order: 2},
		{ID: "c1", Title: "One", Order: 1, WordCount: 1200},
	}, Total: 2, Page: 1, PerPage: 20}, nil)
	ch, ok := s.SelectedChapter()
	if !ok || ch.ID != "c1" {
		t.Fatalf("expected chapters in reading order, got %+v", ch)
	}
	if items := s.Items(); items[0].Title != "1. One" {
		t.Fatalf("unexpected chapter row %+v", items[0])
	}
	if !s.Back() || s.Mode() != ModeBooks || s.Back() {
		t.Fatalf("back should return to books exactly once")
	}
}

func TestSortOrders(t *testing.T) {
	s := New(0, 0)
	req := s.BeginLoad()
	s.FinishBooks(req.Seq, booksPage("Book 10", "Book 2", "Atlas"), nil)

	titles := func() []string {
		var out []string
		for _, item := range s.Items() {
			out = append(out, item.Title)
		}
		return out
	}
	if got := titles(); got[0] != "Book 10" {
		t.Fatalf("default order should follow the server, got %v", got)
	}
	if s.CycleSort() != SortTitle {
		t.Fatalf("expected title sort")
	}
	if got := titles(); got[0] != "Atlas" || got[1] != "Book 2" || got[2] != "Book 10" {
		t.Fatalf("expected natural title order, got %v", got)
	}
	s.CycleSort()
	if got := titles(); got[0] != "Atlas" {
		t.Fatalf("expected most recently updated first, got %v", got)
	}
	if s.CycleSort() != SortDefault {
		t.Fatalf("sort should wrap around")
	}
}

func TestPagingAndCursor(t *testing.T) {
	s := New(2, 0)
	req := s.BeginLoad()
	page := booksPage("A", "B")
	page.Total, page.PerPage = 5, 2
	s.FinishBooks(req.Seq, page, nil)
	if s.Pages() != 3 || s.PrevPage() {
		t.Fatalf("unexpected paging state")
	}
	s.Move(5)
	if s.Cursor() != 1 {
		t.Fatalf("cursor should clamp to the last row, got %d", s.Cursor())
	}
	if !s.NextPage() || s.Page() != 2 || s.Cursor() != 0 {
		t.Fatalf("next page should advance and reset the cursor")
	}
	if !s.SetPage(3) || s.NextPage() || s.SetPage(9) {
		t.Fatalf("paging should stop at the last page")
	}
}
