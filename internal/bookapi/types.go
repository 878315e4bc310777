package bookapi

import (
	"encoding/json"
	"time"

	"github.com/csheth/chapterdesk/internal/blocks"
)

type Book struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Slug         string    `json:"slug"`
	Author       string    `json:"author,omitempty"`
	ChapterCount int       `json:"chapterCount"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type ChapterSummary struct {
	ID         string    `json:"id"`
	BookID     string    `json:"bookId"`
	Title      string    `json:"title"`
	Summary    string    `json:"summary,omitempty"`
	Order      int       `json:"order"`
	BlockCount int       `json:"blockCount"`
	WordCount  int       `json:"wordCount"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Page is one page of a listing.
type Page[T any] struct {
	Items   []T `json:"items"`
	Total   int `json:"total"`
	Page    int `json:"page"`
	PerPage int `json:"perPage"`
}

// Pages returns the number of pages in the listing.
func (p Page[T]) Pages() int {
	if p.PerPage <= 0 || p.Total <= 0 {
		return 1
	}
	return (p.Total + p.PerPage - 1) / p.PerPage
}

// ListQuery filters and pages a listing. Page is 1-based.
type ListQuery struct {
	Query   string
	Page    int
	PerPage int
}

// InsertRequest is the body of POST /api/chapters/:id/blocks.
type InsertRequest struct {
	Type     blocks.Type           `json:"type"`
	Position blocks.InsertPosition `json:"position"`
}

// UpdateRequest is the body of PATCH /api/blocks/:id.
type UpdateRequest struct {
	Patch blocks.Patch `json:"patch"`
}

// ConvertRequest is the body of POST /api/chapters/:id/convert.
type ConvertRequest struct {
	Text string `json:"text"`
}

type ConvertResponse struct {
	Blocks blocks.List `json:"blocks"`
}

// ApplyRequest is the body of POST /api/chapters/:id/apply.
type ApplyRequest struct {
	Blocks   blocks.List           `json:"blocks"`
	Position blocks.InsertPosition `json:"position"`
}

// BlockResponse wraps a single block.
type BlockResponse struct {
	Block json.RawMessage `json:"block"`
}

// Event is a change notification pushed over the chapter websocket.
type Event struct {
	Type      string    `json:"type"`
	ChapterID string    `json:"chapterId"`
	BlockID   string    `json:"blockId,omitempty"`
	Action    string    `json:"action,omitempty"`
	At        time.Time `json:"at"`
}

const EventChapterChanged = "chapter_changed"
