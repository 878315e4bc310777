// Package mockapi is an in-memory implementation of the book backend used for
// development and end-to-end tests.
package mockapi

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/maruel/natural"

	"github.com/csheth/chapterdesk/internal/blocks"
	"github.com/csheth/chapterdesk/internal/bookapi"
	"github.com/csheth/chapterdesk/internal/textstats"
)

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

type bookRecord struct {
	book     bookapi.Book
	chapters []string
}

type chapterRecord struct {
	detail  blocks.ChapterDetail
	order   int
	version int
}

// Store holds books, chapters and blocks. All methods are safe for concurrent
// use.
type Store struct {
	mu       sync.RWMutex
	books    map[string]*bookRecord
	chapters map[string]*chapterRecord
	owners   map[string]string
	now      func() time.Time

	// OnChange is called after every mutation, outside the lock.
	OnChange func(bookapi.Event)
}

func NewStore() *Store {
	return &Store{
		books:    map[string]*bookRecord{},
		chapters: map[string]*chapterRecord{},
		owners:   map[string]string{},
		now:      time.Now,
	}
}

func notFound(what, id string) error {
	return &bookapi.APIError{Status: http.StatusNotFound, Code: bookapi.CodeNotFound, Message: fmt.Sprintf("%s %s not found", what, id)}
}

func invalid(format string, args ...any) error {
	return &bookapi.APIError{Status: http.StatusBadRequest, Code: bookapi.CodeInvalid, Message: fmt.Sprintf(format, args...)}
}

// AddBook creates a book. The slug is derived from the title.
func (s *Store) AddBook(title, author string) bookapi.Book {
	s.mu.Lock()
	defer s.mu.Unlock()
	book := bookapi.Book{
		ID:        uuid.NewString(),
		Title:     strings.TrimSpace(title),
		Slug:      slug.Make(title),
		Author:    strings.TrimSpace(author),
		UpdatedAt: s.now().UTC(),
	}
	s.books[book.ID] = &bookRecord{book: book}
	return book
}

// AddChapter appends a chapter to a book. Blocks without ids get fresh ones.
func (s *Store) AddChapter(bookID, title, summary string, list blocks.List) (blocks.ChapterDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.books[bookID]
	if !ok {
		return blocks.ChapterDetail{}, notFound("book", bookID)
	}
	detail := blocks.ChapterDetail{
		ID:        uuid.NewString(),
		BookID:    bookID,
		Title:     strings.TrimSpace(title),
		Summary:   strings.TrimSpace(summary),
		Blocks:    s.assignIDs(list),
		UpdatedAt: s.now().UTC(),
	}
	s.chapters[detail.ID] = &chapterRecord{detail: detail, order: len(rec.chapters) + 1, version: 1}
	for _, b := range detail.Blocks {
		s.owners[b.BlockID()] = detail.ID
	}
	rec.chapters = append(rec.chapters, detail.ID)
	rec.book.ChapterCount = len(rec.chapters)
	rec.book.UpdatedAt = detail.UpdatedAt
	return cloneDetail(detail), nil
}

func (s *Store) assignIDs(list blocks.List) blocks.List {
	out := make(blocks.List, 0, len(list))
	for _, b := range list {
		if b.BlockID() == "" {
			b = blocks.WithID(b, uuid.NewString())
		}
		out = append(out, b)
	}
	return out
}

// ListBooks filters by title or author and sorts titles naturally.
func (s *Store) ListBooks(q bookapi.ListQuery) bookapi.Page[bookapi.Book] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	needle := strings.ToLower(strings.TrimSpace(q.Query))
	var items []bookapi.Book
	for _, rec := range s.books {
		if needle != "" && !strings.Contains(strings.ToLower(rec.book.Title), needle) &&
			!strings.Contains(strings.ToLower(rec.book.Author), needle) {
			continue
		}
		items = append(items, rec.book)
	}
	sort.Slice(items, func(i, j int) bool { return natural.Less(items[i].Title, items[j].Title) })
	return paginate(items, q)
}

// ListChapters returns a book's chapters in reading order.
func (s *Store) ListChapters(bookID string, q bookapi.ListQuery) (bookapi.Page[bookapi.ChapterSummary], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.books[bookID]
	if !ok {
		return bookapi.Page[bookapi.ChapterSummary]{}, notFound("book", bookID)
	}
	needle := strings.ToLower(strings.TrimSpace(q.Query))
	var items []bookapi.ChapterSummary
	for _, id := range rec.chapters {
		ch := s.chapters[id]
		if needle != "" && !strings.Contains(strings.ToLower(ch.detail.Title), needle) &&
			!strings.Contains(strings.ToLower(ch.detail.Summary), needle) {
			continue
		}
		stats := textstats.ForBlocks(ch.detail.Blocks)
		items = append(items, bookapi.ChapterSummary{
			ID:         ch.detail.ID,
			BookID:     bookID,
			Title:      ch.detail.Title,
			Summary:    ch.detail.Summary,
			Order:      ch.order,
			BlockCount: len(ch.detail.Blocks),
			WordCount:  stats.Words,
			UpdatedAt:  ch.detail.UpdatedAt,
		})
	}
	return paginate(items, q), nil
}

// Chapter returns a chapter and its current ETag.
func (s *Store) Chapter(id string) (blocks.ChapterDetail, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ch, ok := s.chapters[id]
	if !ok {
		return blocks.ChapterDetail{}, "", notFound("chapter", id)
	}
	return cloneDetail(ch.detail), etagFor(id, ch.version), nil
}

func (s *Store) InsertBlock(chapterID string, t blocks.Type, pos blocks.InsertPosition) (blocks.Block, error) {
	b, err := blocks.Empty(t, uuid.NewString())
	if err != nil {
		return nil, invalid("%v", err)
	}
	if err := s.mutate(chapterID, "insert", b.BlockID(), func(ch *chapterRecord) error {
		ch.detail.Blocks = ch.detail.Blocks.Insert(pos, b)
		s.owners[b.BlockID()] = chapterID
		return nil
	}); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Store) UpdateBlock(blockID string, patch blocks.Patch) (blocks.Block, error) {
	chapterID, err := s.ownerOf(blockID)
	if err != nil {
		return nil, err
	}
	var updated blocks.Block
	err = s.mutate(chapterID, "update", blockID, func(ch *chapterRecord) error {
		current, idx := ch.detail.Blocks.Find(blockID)
		if idx < 0 {
			return notFound("block", blockID)
		}
		next, err := blocks.ApplyPatch(current, patch)
		if err != nil {
			return invalid("%v", err)
		}
		ch.detail.Blocks[idx] = next
		updated = next
		return nil
	})
	return updated, err
}

func (s *Store) DeleteBlock(blockID string) error {
	chapterID, err := s.ownerOf(blockID)
	if err != nil {
		return err
	}
	return s.mutate(chapterID, "delete", blockID, func(ch *chapterRecord) error {
		_, idx := ch.detail.Blocks.Find(blockID)
		if idx < 0 {
			return notFound("block", blockID)
		}
		ch.detail.Blocks = append(ch.detail.Blocks[:idx:idx], ch.detail.Blocks[idx+1:]...)
		delete(s.owners, blockID)
		return nil
	})
}

// Apply inserts converted blocks at pos. Incoming ids are replaced.
func (s *Store) Apply(chapterID string, items blocks.List, pos blocks.InsertPosition) error {
	if len(items) == 0 {
		return invalid("no blocks to apply")
	}
	fresh := make(blocks.List, 0, len(items))
	for _, b := range items {
		if _, ok := b.(blocks.Unknown); ok {
			return invalid("cannot apply unsupported block type %q", b.BlockType())
		}
		fresh = append(fresh, blocks.WithID(b, uuid.NewString()))
	}
	return s.mutate(chapterID, "apply", "", func(ch *chapterRecord) error {
		ch.detail.Blocks = ch.detail.Blocks.Insert(pos, fresh...)
		for _, b := range fresh {
			s.owners[b.BlockID()] = chapterID
		}
		return nil
	})
}

// Convert turns text into draft blocks for an existing chapter.
func (s *Store) Convert(chapterID, text string) ([]blocks.Block, error) {
	s.mu.RLock()
	_, ok := s.chapters[chapterID]
	s.mu.RUnlock()
	if !ok {
		return nil, notFound("chapter", chapterID)
	}
	if strings.TrimSpace(text) == "" {
		return nil, invalid("text is required")
	}
	return ConvertText(text), nil
}

func (s *Store) ownerOf(blockID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chapterID, ok := s.owners[blockID]
	if !ok {
		return "", notFound("block", blockID)
	}
	return chapterID, nil
}

func (s *Store) mutate(chapterID, action, blockID string, fn func(*chapterRecord) error) error {
	s.mu.Lock()
	ch, ok := s.chapters[chapterID]
	if !ok {
		s.mu.Unlock()
		return notFound("chapter", chapterID)
	}
	if err := fn(ch); err != nil {
		s.mu.Unlock()
		return err
	}
	now := s.now().UTC()
	ch.version++
	ch.detail.UpdatedAt = now
	if rec, ok := s.books[ch.detail.BookID]; ok {
		rec.book.UpdatedAt = now
	}
	notify := s.OnChange
	s.mu.Unlock()

	if notify != nil {
		notify(bookapi.Event{
			Type:      bookapi.EventChapterChanged,
			ChapterID: chapterID,
			BlockID:   blockID,
			Action:    action,
			At:        now,
		})
	}
	return nil
}

func etagFor(chapterID string, version int) string {
	return fmt.Sprintf(`"%s-%d"`, chapterID, version)
}

func cloneDetail(d blocks.ChapterDetail) blocks.ChapterDetail {
	d.Blocks = append(blocks.List(nil), d.Blocks...)
	return d
}

func paginate[T any](items []T, q bookapi.ListQuery) bookapi.Page[T] {
	perPage := q.PerPage
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	page := q.Page
	if page <= 0 {
		page = 1
	}
	start := len(items)
	if page-1 <= len(items)/perPage {
		start = min((page-1)*perPage, len(items))
	}
	end := start + perPage
	if end > len(items) {
		end = len(items)
	}
	out := append([]T{}, items[start:end]...)
	return bookapi.Page[T]{Items: out, Total: len(items), Page: page, PerPage: perPage}
}
