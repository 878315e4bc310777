package mockapi

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/csheth/chapterdesk/internal/blocks"
	"github.com/csheth/chapterdesk/internal/bookapi"
)

type fixture struct {
	store  *Store
	hub    *Hub
	client *bookapi.Client
	server *httptest.Server
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	store := NewStore()
	hub := NewHub(nil)
	server := httptest.NewServer(NewRouter(store, hub, nil))
	t.Cleanup(server.Close)
	client, err := bookapi.New(bookapi.Config{BaseURL: server.URL, CacheDir: t.TempDir(), HTTPClient: server.Client()})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return fixture{store: store, hub: hub, client: client, server: server}
}

func (f fixture) chapter(t *testing.T, list blocks.List) blocks.ChapterDetail {
	t.Helper()
	book := f.store.AddBook("Test Book", "Tester")
	detail, err := f.store.AddChapter(book.ID, "One", "", list)
	if err != nil {
		t.Fatalf("add chapter: %v", err)
	}
	return detail
}

func ids(list blocks.List) []string {
	out := make([]string, 0, len(list))
	for _, b := range list {
		out = append(out, b.BlockID())
	}
	return out
}

func TestAcceptedDraftLandsAtSlotWithoutDuplication(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ch := f.chapter(t, blocks.List{
		blocks.Paragraph{ID: "p1", Text: "First."},
		blocks.Paragraph{ID: "p2", Text: "Second."},
	})

	draft, err := f.client.ConvertText(ctx, ch.ID, "A quiet line.\n\nMara: Are you there?\nTomas: Always. (softly)")
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if len(draft) != 2 {
		t.Fatalf("expected 2 draft blocks, got %d", len(draft))
	}
	pos := blocks.InsertPosition{AfterBlockID: "p1", BeforeBlockID: "p2", Index: 1}
	if err := f.client.ApplyConversion(ctx, ch.ID, draft, pos); err != nil {
		t.Fatalf("apply: %v", err)
	}

	reloaded, err := f.client.GetChapter(ctx, ch.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	got := ids(reloaded.Blocks)
	if len(got) != 4 || got[0] != "p1" || got[3] != "p2" {
		t.Fatalf("unexpected order %v", got)
	}
	if _, ok := reloaded.Blocks[1].(blocks.Paragraph); !ok {
		t.Fatalf("expected paragraph at index 1, got %T", reloaded.Blocks[1])
	}
	d, ok := reloaded.Blocks[2].(blocks.Dialogue)
	if !ok || len(d.Turns) != 2 || d.Turns[1].StageDirection != "softly" {
		t.Fatalf("unexpected dialogue %+v", reloaded.Blocks[2])
	}
	seen := map[string]bool{}
	for _, id := range got {
		if seen[id] {
			t.Fatalf("duplicate block %s in %v", id, got)
		}
		seen[id] = true
	}
}

func TestInsertEditDeleteRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ch := f.chapter(t, blocks.List{blocks.Paragraph{ID: "p1", Text: "Only."}})

	inserted, err := f.client.InsertBlock(ctx, ch.ID, blocks.TypeSceneBoundary, blocks.InsertPosition{BeforeBlockID: "p1"})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	edited, err := blocks.ParseEdit(inserted, "Dawn\nThe boats come back.")
	if err != nil {
		t.Fatalf("parse edit: %v", err)
	}
	patch, err := blocks.PatchFor(edited)
	if err != nil {
		t.Fatalf("patch: %v", err)
	}
	updated, err := f.client.UpdateBlock(ctx, inserted.BlockID(), patch)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	scene, ok := updated.(blocks.SceneBoundary)
	if !ok || scene.Label != "Dawn" || scene.ID != inserted.BlockID() {
		t.Fatalf("unexpected updated block %+v", updated)
	}

	detail, err := f.client.GetChapter(ctx, ch.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got := ids(detail.Blocks); len(got) != 2 || got[0] != inserted.BlockID() {
		t.Fatalf("expected scene first, got %v", got)
	}

	if err := f.client.DeleteBlock(ctx, inserted.BlockID()); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := f.client.DeleteBlock(ctx, inserted.BlockID()); !errors.Is(err, bookapi.ErrNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
	detail, err = f.client.GetChapter(ctx, ch.ID)
	if err != nil {
		t.Fatalf("get after delete: %v", err)
	}
	if got := ids(detail.Blocks); len(got) != 1 || got[0] != "p1" {
		t.Fatalf("unexpected blocks after delete %v", got)
	}
}

func TestGetChapterHonorsIfNoneMatch(t *testing.T) {
	f := newFixture(t)
	ch := f.chapter(t, blocks.List{blocks.Paragraph{ID: "p1", Text: "x"}})

	resp, err := http.Get(f.server.URL + "/api/chapters/" + ch.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	etag := resp.Header.Get("ETag")
	if etag == "" {
		t.Fatalf("missing etag")
	}

	req, _ := http.NewRequest(http.MethodGet, f.server.URL+"/api/chapters/"+ch.ID, nil)
	req.Header.Set("If-None-Match", etag)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("conditional get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotModified {
		t.Fatalf("expected 304, got %d", resp.StatusCode)
	}

	if _, err := f.store.UpdateBlock("p1", blocks.Patch{"text": "y"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("conditional get after change: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || resp.Header.Get("ETag") == etag {
		t.Fatalf("expected fresh body with new etag, got %d %s", resp.StatusCode, resp.Header.Get("ETag"))
	}
}

func TestErrorsUseEnvelope(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.client.GetChapter(ctx, "missing"); !errors.Is(err, bookapi.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	ch := f.chapter(t, nil)
	_, err := f.client.InsertBlock(ctx, ch.ID, blocks.Type("illustration"), blocks.InsertPosition{})
	if !errors.Is(err, bookapi.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	var apiErr *bookapi.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != bookapi.CodeInvalid || apiErr.RequestID == "" {
		t.Fatalf("unexpected api error %+v", apiErr)
	}
	if _, err := f.client.ConvertText(ctx, ch.ID, "   "); !errors.Is(err, bookapi.ErrValidation) {
		t.Fatalf("expected validation error for blank text, got %v", err)
	}
}

func TestListingsSortAndPaginate(t *testing.T) {
	f := newFixture(t)
	if _, err := Seed(f.store); err != nil {
		t.Fatalf("seed: %v", err)
	}
	ctx := context.Background()
	page, err := f.client.ListBooks(ctx, bookapi.ListQuery{Query: "book", PerPage: 1})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 2 || page.Pages() != 2 || page.Items[0].Title != "Book 2: Saltwork" {
		t.Fatalf("unexpected page %+v", page)
	}
	if page.Items[0].Slug != "book-2-saltwork" {
		t.Fatalf("unexpected slug %q", page.Items[0].Slug)
	}

	all, err := f.client.ListBooks(ctx, bookapi.ListQuery{Query: "Harbor"})
	if err != nil || len(all.Items) != 1 {
		t.Fatalf("expected one harbor book, got %+v %v", all, err)
	}
	chapters, err := f.client.ListChapters(ctx, all.Items[0].ID, bookapi.ListQuery{})
	if err != nil {
		t.Fatalf("chapters: %v", err)
	}
	if len(chapters.Items) != 3 || chapters.Items[0].Order != 1 || chapters.Items[0].WordCount == 0 {
		t.Fatalf("unexpected chapters %+v", chapters.Items)
	}
}

func TestPageBeyondEndIsEmpty(t *testing.T) {
	f := newFixture(t)
	if _, err := Seed(f.store); err != nil {
		t.Fatalf("seed: %v", err)
	}
	second := f.store.ListBooks(bookapi.ListQuery{Query: "book", Page: 2, PerPage: 1})
	if len(second.Items) != 1 || second.Page != 2 {
		t.Fatalf("unexpected second page %+v", second)
	}
	far := f.store.ListBooks(bookapi.ListQuery{Query: "book", Page: math.MaxInt / 10, PerPage: 16})
	if len(far.Items) != 0 || far.Total != 2 {
		t.Fatalf("expected an empty page, got %+v", far)
	}
	page, err := f.client.ListBooks(context.Background(), bookapi.ListQuery{Page: math.MaxInt / 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Items) != 0 {
		t.Fatalf("expected no items, got %d", len(page.Items))
	}
}

func TestWatchReceivesChangeEvents(t *testing.T) {
	f := newFixture(t)
	ch := f.chapter(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	events, err := f.client.Watch(ctx, ch.ID)
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for f.hub.Subscribers(ch.ID) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("subscriber never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	inserted, err := f.store.InsertBlock(ch.ID, blocks.TypeParagraph, blocks.InsertPosition{})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	select {
	case ev := <-events:
		if ev.Type != bookapi.EventChapterChanged || ev.Action != "insert" || ev.BlockID != inserted.BlockID() {
			t.Fatalf("unexpected event %+v", ev)
		}
	case <-ctx.Done():
		t.Fatalf("no event received")
	}

	if _, err := f.client.Watch(ctx, "missing"); !errors.Is(err, bookapi.ErrNotFound) {
		t.Fatalf("expected not found watching unknown chapter, got %v", err)
	}
}

func TestConvertTextHeuristics(t *testing.T) {
	cases := []struct {
		name string
		text string
		want []blocks.Type
	}{
		{name: "paragraphs", text: "One line\ncontinues.\n\nSecond.", want: []blocks.Type{blocks.TypeParagraph, blocks.TypeParagraph}},
		{name: "rule", text: "Before.\n\n***\n\nAfter.", want: []blocks.Type{blocks.TypeParagraph, blocks.TypeSceneBoundary, blocks.TypeParagraph}},
		{name: "heading", text: "# Morning\nThe crew wakes.", want: []blocks.Type{blocks.TypeSceneBoundary}},
		{name: "dialogue", text: "Mara: Hello.\nTomas: Hi.", want: []blocks.Type{blocks.TypeDialogue}},
		{name: "mixed speaker lines", text: "Mara: Hello.\nthen she left", want: []blocks.Type{blocks.TypeParagraph}},
		{name: "blank", text: " \n\n ", want: nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ConvertText(tc.text)
			if len(got) != len(tc.want) {
				t.Fatalf("expected %d blocks, got %d", len(tc.want), len(got))
			}
			for i, b := range got {
				if b.BlockType() != tc.want[i] {
					t.Fatalf("block %d: expected %s, got %s", i, tc.want[i], b.BlockType())
				}
			}
		})
	}

	joined := ConvertText("One line\ncontinues.")[0].(blocks.Paragraph)
	if joined.Text != "One line continues." {
		t.Fatalf("unexpected joined text %q", joined.Text)
	}
	scene := ConvertText("# Morning\nThe crew wakes.")[0].(blocks.SceneBoundary)
	if scene.Label != "Morning" || scene.Summary != "The crew wakes." {
		t.Fatalf("unexpected scene %+v", scene)
	}
}
