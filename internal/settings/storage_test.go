package settings

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPreferencesRoundTrip(t *testing.T) {
	t.Parallel()

	store := Open(filepath.Join(t.TempDir(), "nested", "state.json"))
	prefs, err := store.LoadPreferences()
	if err != nil {
		t.Fatalf("LoadPreferences() on missing file error = %v", err)
	}
	if prefs.Theme != "" {
		t.Fatalf("expected zero preferences, got %#v", prefs)
	}

	if err := store.SavePreferences(Preferences{Theme: "light", PinnedPanels: []string{"outline"}}); err != nil {
		t.Fatalf("SavePreferences() error = %v", err)
	}
	if err := store.SavePreferences(Preferences{Theme: "dark", PinnedPanels: []string{"outline", "stats"}}); err != nil {
		t.Fatalf("SavePreferences() error = %v", err)
	}
	got, err := store.LoadPreferences()
	if err != nil {
		t.Fatalf("LoadPreferences() error = %v", err)
	}
	if got.Theme != "dark" || !got.Pinned("stats") || got.Pinned("library") {
		t.Fatalf("unexpected preferences: %#v", got)
	}
}

func TestTouchRecentDedupesAndCaps(t *testing.T) {
	t.Parallel()

	store := Open(filepath.Join(t.TempDir(), "state.json"))
	for i := 0; i < DefaultMaxRecent+3; i++ {
		if err := store.TouchRecent(RecentChapter{ChapterID: fmt.Sprintf("c%d", i), Title: fmt.Sprintf("Chapter %d", i)}); err != nil {
			t.Fatalf("TouchRecent() error = %v", err)
		}
	}
	if err := store.TouchRecent(RecentChapter{ChapterID: "c5", Title: "Chapter 5"}); err != nil {
		t.Fatalf("TouchRecent() error = %v", err)
	}
	recent, err := store.Recent()
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(recent) != DefaultMaxRecent {
		t.Fatalf("expected %d entries, got %d", DefaultMaxRecent, len(recent))
	}
	if recent[0].ChapterID != "c5" || recent[1].ChapterID != "c12" {
		t.Fatalf("unexpected order: %s, %s", recent[0].ChapterID, recent[1].ChapterID)
	}
	seen := map[string]bool{}
	for _, r := range recent {
		if seen[r.ChapterID] {
			t.Fatalf("duplicate entry %s", r.ChapterID)
		}
		seen[r.ChapterID] = true
	}
}

func TestRecentSurvivesPreferenceWrites(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state.json")
	store := Open(path)
	if err := store.TouchRecent(RecentChapter{ChapterID: "c1"}); err != nil {
		t.Fatalf("TouchRecent() error = %v", err)
	}
	if err := store.SavePreferences(Preferences{Theme: "light"}); err != nil {
		t.Fatalf("SavePreferences() error = %v", err)
	}
	recent, err := Open(path).Recent()
	if err != nil || len(recent) != 1 || recent[0].OpenedAt.IsZero() {
		t.Fatalf("unexpected recent list %#v (%v)", recent, err)
	}
}

func TestUnknownEntriesArePreserved(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte(`[{"entryType":"layout","width":120}]`), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}
	store := Open(path)
	if err := store.SavePreferences(Preferences{Theme: "dark"}); err != nil {
		t.Fatalf("SavePreferences() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), `"layout"`) {
		t.Fatalf("unknown entry dropped: %s", data)
	}
}

func TestEmptyPathIsInMemoryNoop(t *testing.T) {
	t.Parallel()

	store := Open("")
	if err := store.SavePreferences(Preferences{Theme: "dark"}); err != nil {
		t.Fatalf("SavePreferences() error = %v", err)
	}
	if recent, err := store.Recent(); err != nil || len(recent) != 0 {
		t.Fatalf("expected empty recent list, got %#v (%v)", recent, err)
	}
}
