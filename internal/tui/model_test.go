package tui

import (
	"context"
	"errors"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/csheth/chapterdesk/internal/blocks"
	"github.com/csheth/chapterdesk/internal/bookapi"
	"github.com/csheth/chapterdesk/internal/config"
	"github.com/csheth/chapterdesk/internal/library"
	"github.com/csheth/chapterdesk/internal/mockapi"
	"github.com/csheth/chapterdesk/internal/panels"
	"github.com/csheth/chapterdesk/internal/settings"
)

// storeBackend serves the TUI straight from an in-memory store.
type storeBackend struct {
	store *mockapi.Store
}

func (b storeBackend) ListBooks(_ context.Context, q bookapi.ListQuery) (bookapi.Page[bookapi.Book], error) {
	return b.store.ListBooks(q), nil
}

func (b storeBackend) ListChapters(_ context.Context, bookID string, q bookapi.ListQuery) (bookapi.Page[bookapi.ChapterSummary], error) {
	return b.store.ListChapters(bookID, q)
}

func (b storeBackend) GetChapter(_ context.Context, chapterID string) (blocks.ChapterDetail, error) {
	detail, _, err := b.store.Chapter(chapterID)
	return detail, err
}

func (b storeBackend) InsertBlock(_ context.Context, chapterID string, t blocks.Type, pos blocks.InsertPosition) (blocks.Block, error) {
	return b.store.InsertBlock(chapterID, t, pos)
}

func (b storeBackend) UpdateBlock(_ context.Context, blockID string, patch blocks.Patch) (blocks.Block, error) {
	return b.store.UpdateBlock(blockID, patch)
}

func (b storeBackend) DeleteBlock(_ context.Context, blockID string) error {
	return b.store.DeleteBlock(blockID)
}

func (b storeBackend) ApplyConversion(_ context.Context, chapterID string, items []blocks.Block, pos blocks.InsertPosition) error {
	return b.store.Apply(chapterID, blocks.List(items), pos)
}

func (b storeBackend) ConvertText(_ context.Context, chapterID, text string) ([]blocks.Block, error) {
	return b.store.Convert(chapterID, text)
}

func (b storeBackend) Watch(context.Context, string) (<-chan bookapi.Event, error) {
	return nil, errors.New("watch not supported")
}

func testUIConfig() config.UIConfig {
	ui := config.Default().UI
	ui.PanelHideDelay = time.Millisecond
	ui.ToastDuration = time.Millisecond
	ui.SearchDebounce = time.Millisecond
	return ui
}

func newTestModel(t *testing.T) *model {
	t.Helper()
	return newModelWith(t, Config{})
}

func newModelWith(t *testing.T, cfg Config) *model {
	t.Helper()
	if cfg.UI == (config.UIConfig{}) {
		cfg.UI = testUIConfig()
	}
	teaModel, ok := New(cfg).(*model)
	if !ok {
		t.Fatalf("expected *model, got %T", teaModel)
	}
	return teaModel
}

// openSeedChapter returns a wide model showing the first seeded chapter.
func openSeedChapter(t *testing.T) (*model, *mockapi.Store, string) {
	t.Helper()
	store := mockapi.NewStore()
	chapterID, err := mockapi.Seed(store)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	backend := storeBackend{store: store}
	m := newModelWith(t, Config{Backend: backend, Converter: backend})
	m.resize(120, 40)
	drain(t, m, m.openChapter(chapterRef{ID: chapterID, Title: "Chapter 1", BookTitle: "The Harbor Keeper"}))
	if !m.layoutReady {
		t.Fatalf("chapter did not load: %v", m.loadErr)
	}
	return m, store, chapterID
}

// drain runs cmd and feeds job results back into m until the job work
// settles. Timer driven commands such as cursor blinks are abandoned.
func drain(t *testing.T, m *model, cmd tea.Cmd) {
	t.Helper()
	queue := []tea.Cmd{cmd}
	for steps := 0; len(queue) > 0; steps++ {
		if steps > 500 {
			t.Fatalf("commands did not settle")
		}
		next := queue[0]
		queue = queue[1:]
		if next == nil {
			continue
		}
		msg, ok := runWithin(next, 400*time.Millisecond)
		if !ok {
			continue
		}
		switch msg := msg.(type) {
		case tea.BatchMsg:
			queue = append(queue, msg...)
		case jobSignalMsg, jobResultEnvelope:
			_, follow := m.Update(msg)
			queue = append(queue, follow)
		default:
			if cmds, ok := sequenceCmds(msg); ok {
				queue = append(queue, cmds...)
			}
		}
	}
}

func runWithin(cmd tea.Cmd, d time.Duration) (tea.Msg, bool) {
	ch := make(chan tea.Msg, 1)
	go func() { ch <- cmd() }()
	select {
	case msg := <-ch:
		return msg, true
	case <-time.After(d):
		return nil, false
	}
}

// sequenceCmds unpacks the message tea.Sequence produces.
func sequenceCmds(msg tea.Msg) ([]tea.Cmd, bool) {
	v := reflect.ValueOf(msg)
	if !v.IsValid() || v.Kind() != reflect.Slice {
		return nil, false
	}
	cmds := make([]tea.Cmd, 0, v.Len())
	for i := 0; i < v.Len(); i++ {
		cmd, ok := v.Index(i).Interface().(tea.Cmd)
		if !ok {
			return nil, false
		}
		cmds = append(cmds, cmd)
	}
	return cmds, true
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(t *testing.T, m *model, msg tea.Msg) {
	t.Helper()
	_, cmd := m.Update(msg)
	drain(t, m, cmd)
}

func toastText(m *model) string {
	text, _, _ := m.toast.Current()
	return text
}

func TestLibraryOpensBookThenChapter(t *testing.T) {
	store := mockapi.NewStore()
	if _, err := mockapi.Seed(store); err != nil {
		t.Fatalf("seed: %v", err)
	}
	m := newModelWith(t, Config{Backend: storeBackend{store: store}})
	drain(t, m, m.Init())

	if got := len(m.lib.Items()); got != 4 {
		t.Fatalf("expected 4 books, got %d", got)
	}
	for i := 0; i < 4; i++ {
		if book, ok := m.lib.SelectedBook(); ok && book.Title == "The Harbor Keeper" {
			break
		}
		m.lib.Move(1)
	}
	press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.lib.Mode() != library.ModeChapters {
		t.Fatalf("expected chapter listing, got %v", m.lib.Mode())
	}
	if got := len(m.lib.Items()); got != 3 {
		t.Fatalf("expected 3 chapters, got %d", got)
	}
	if m.prefs.LastBookID != m.lib.Book().ID {
		t.Fatalf("last book not remembered: %q", m.prefs.LastBookID)
	}

	press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.screen != screenEditor {
		t.Fatalf("expected editor screen")
	}
	if m.chapter.BookTitle != "The Harbor Keeper" {
		t.Fatalf("book title not carried over: %q", m.chapter.BookTitle)
	}
	if got := len(m.blockLayout.Entries); got != 7 {
		t.Fatalf("expected 7 visible entries, got %d", got)
	}
	if got := len(m.blockLayout.Slots); got != 8 {
		t.Fatalf("expected 8 slots, got %d", got)
	}

	press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.screen != screenLibrary || m.layoutReady {
		t.Fatalf("esc should return to the library")
	}
}

func TestLibrarySearchIsDebounced(t *testing.T) {
	store := mockapi.NewStore()
	if _, err := mockapi.Seed(store); err != nil {
		t.Fatalf("seed: %v", err)
	}
	m := newModelWith(t, Config{Backend: storeBackend{store: store}})
	drain(t, m, m.loadLibrary())

	press(t, m, keyRunes("/"))
	if !m.searching {
		t.Fatalf("slash should focus search")
	}
	_, cmd := m.Update(keyRunes("o"))
	_, cmd2 := m.Update(keyRunes("r"))
	stale, ok := runWithin(cmd, time.Second)
	if !ok {
		t.Fatalf("first keystroke produced no timer")
	}
	drain(t, m, cmd2)
	for _, msg := range flatten(stale) {
		if search, ok := msg.(library.SearchMsg); ok && m.lib.Due(search) {
			t.Fatalf("first keystroke should be superseded")
		}
	}
}

// flatten runs batch members so timer messages can be inspected.
func flatten(msg tea.Msg) []tea.Msg {
	batch, ok := msg.(tea.BatchMsg)
	if !ok {
		return []tea.Msg{msg}
	}
	var out []tea.Msg
	for _, cmd := range batch {
		if cmd == nil {
			continue
		}
		if inner, ok := runWithin(cmd, 200*time.Millisecond); ok {
			out = append(out, flatten(inner)...)
		}
	}
	return out
}

func TestReloadFailureKeepsRenderedChapter(t *testing.T) {
	m, _, chapterID := openSeedChapter(t)
	m.reloadChapter()
	m.Update(chapterLoadedMsg{chapterID: chapterID, seq: m.loadSeq, err: errors.New("gateway timeout")})

	if !m.layoutReady || len(m.blockLayout.Entries) != 7 {
		t.Fatalf("layout should survive a failed reload")
	}
	if m.loadErr != nil {
		t.Fatalf("load error should only show before the first load")
	}
	if !strings.Contains(toastText(m), "gateway timeout") {
		t.Fatalf("expected toast about the failure, got %q", toastText(m))
	}
}

func TestStaleChapterLoadIsIgnored(t *testing.T) {
	m, _, chapterID := openSeedChapter(t)
	stale := m.loadSeq
	m.reloadChapter()
	m.Update(chapterLoadedMsg{chapterID: chapterID, seq: stale, chapter: blocks.ChapterDetail{ID: chapterID}})
	if len(m.blockLayout.Entries) != 7 {
		t.Fatalf("stale load replaced the layout")
	}
}

func TestFirstLoadFailureShowsRetry(t *testing.T) {
	m := newModelWith(t, Config{Backend: storeBackend{store: mockapi.NewStore()}})
	m.resize(120, 40)
	drain(t, m, m.openChapter(chapterRef{ID: "missing"}))
	if m.layoutReady || m.loadErr == nil {
		t.Fatalf("expected an error state, layoutReady=%v err=%v", m.layoutReady, m.loadErr)
	}
	if view := m.View(); !strings.Contains(view, "Press r to retry") {
		t.Fatalf("error view missing retry hint:\n%s", view)
	}
}

func TestNarrowTerminalDisablesPanels(t *testing.T) {
	m, _, _ := openSeedChapter(t)
	m.prefs.PinnedPanels = []string{panelOutline}
	m.resize(140, 40)
	m.outline.SetPinned(true)

	m.resize(80, 24)
	if m.outline.Enabled() || m.outline.Visible() {
		t.Fatalf("outline should be off below the breakpoint")
	}
	press(t, m, keyRunes("o"))
	if m.outline.Pinned() {
		t.Fatalf("pinning should be refused on narrow terminals")
	}

	m.resize(140, 40)
	if !m.outline.Enabled() || !m.outline.Pinned() {
		t.Fatalf("saved pin should come back once wide again")
	}
	if m.stats.Pinned() {
		t.Fatalf("stats was never pinned")
	}
}

func TestPanelHoverRevealsAndHides(t *testing.T) {
	m, _, _ := openSeedChapter(t)
	m.resize(140, 40)

	m.Update(tea.MouseMsg{X: 0, Y: 5, Type: tea.MouseMotion})
	if !m.outline.Visible() {
		t.Fatalf("left edge should reveal the outline")
	}
	m.Update(tea.MouseMsg{X: 10, Y: 5, Type: tea.MouseMotion})
	if !m.outline.Visible() {
		t.Fatalf("pointer over the panel keeps it open")
	}
	_, cmd := m.Update(tea.MouseMsg{X: 70, Y: 5, Type: tea.MouseMotion})
	if cmd == nil {
		t.Fatalf("leaving should schedule a hide")
	}
	msg, ok := runWithin(cmd, time.Second)
	if !ok {
		t.Fatalf("hide timer never fired")
	}
	for _, inner := range flatten(msg) {
		if hide, ok := inner.(panels.HideMsg); ok {
			m.Update(hide)
		}
	}
	if m.outline.Visible() {
		t.Fatalf("outline should hide after the pointer left")
	}

	press(t, m, keyRunes("o"))
	m.Update(tea.MouseMsg{X: 70, Y: 5, Type: tea.MouseMotion})
	if !m.outline.Visible() {
		t.Fatalf("pinned outline should stay visible")
	}
	if got, want := m.viewport.Width, m.layout.contentWidth(true, false); got != want {
		t.Fatalf("content should shrink for the pinned panel: got %d want %d", got, want)
	}
}

func TestWatcherEventWhileEditingDefersReload(t *testing.T) {
	m, _, chapterID := openSeedChapter(t)
	events := make(chan bookapi.Event)

	m.Update(chapterChangedMsg{chapterID: chapterID, events: events})
	if !m.loading {
		t.Fatalf("change without an open edit should reload")
	}
	drain(t, m, m.reloadChapter())

	m.requestEdit(m.blockLayout.Entries[2].Block)
	seq := m.loadSeq
	m.Update(chapterChangedMsg{chapterID: chapterID, events: events})
	if m.loadSeq != seq {
		t.Fatalf("reload should wait while a block is open")
	}
	if !m.staleChapter || !strings.Contains(toastText(m), "changed on the server") {
		t.Fatalf("expected a stale notice, stale=%v toast=%q", m.staleChapter, toastText(m))
	}

	drain(t, m, m.cancelEdit())
	if m.loadSeq == seq {
		t.Fatalf("closing the edit should catch up with the server")
	}
	if m.staleChapter {
		t.Fatalf("stale flag should clear after the reload")
	}
}

func TestSettingsRestoreThemeUnlessLocked(t *testing.T) {
	m := newTestModel(t)
	m.Update(settingsLoadedMsg{prefs: settings.Preferences{Theme: themeLight}})
	if m.themeName != themeLight {
		t.Fatalf("saved theme not applied: %q", m.themeName)
	}

	locked := newModelWith(t, Config{ThemeLocked: true})
	locked.Update(settingsLoadedMsg{prefs: settings.Preferences{Theme: themeLight}})
	if locked.themeName != themeDark {
		t.Fatalf("locked theme changed to %q", locked.themeName)
	}
}

func TestEditorAgainstHTTPServer(t *testing.T) {
	store := mockapi.NewStore()
	chapterID, err := mockapi.Seed(store)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	server := httptest.NewServer(mockapi.NewRouter(store, mockapi.NewHub(nil), nil))
	t.Cleanup(server.Close)
	client, err := bookapi.New(bookapi.Config{BaseURL: server.URL, CacheDir: t.TempDir(), HTTPClient: server.Client()})
	if err != nil {
		t.Fatalf("client: %v", err)
	}

	m := newModelWith(t, Config{Backend: client, Converter: client})
	m.resize(120, 40)
	drain(t, m, m.openChapter(chapterRef{ID: chapterID}))
	if got := len(m.blockLayout.Entries); got != 7 {
		t.Fatalf("expected 7 entries over HTTP, got %d", got)
	}
	if m.chapter.Title != "Chapter 1" {
		t.Fatalf("title not taken from the server: %q", m.chapter.Title)
	}

	entry := m.blockLayout.Entries[6]
	if _, ok := entry.Block.(blocks.Unknown); !ok || entry.Block.BlockID() != "illustration-harbor" {
		t.Fatalf("unknown block should survive the round trip, got %T %q", entry.Block, entry.Block.BlockID())
	}
	if view := m.View(); !strings.Contains(view, "Low Water") {
		t.Fatalf("chapter header not rendered:\n%s", view)
	}
}
