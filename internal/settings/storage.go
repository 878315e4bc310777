// Package settings persists client-side preferences and the recent chapter
// list between sessions.
package settings

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	entryTypePreferences = "preferences"
	entryTypeRecent      = "recent"

	DefaultMaxRecent = 10
)

type entryHeader struct {
	EntryType string `json:"entryType"`
}

// Preferences are the UI choices remembered across runs.
type Preferences struct {
	EntryType    string    `json:"entryType"`
	Theme        string    `json:"theme,omitempty"`
	PinnedPanels []string  `json:"pinnedPanels,omitempty"`
	LastBookID   string    `json:"lastBookId,omitempty"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Pinned reports whether panel was pinned when preferences were saved.
func (p Preferences) Pinned(panel string) bool {
	for _, name := range p.PinnedPanels {
		if name == panel {
			return true
		}
	}
	return false
}

// RecentChapter is one entry of the recently opened list.
type RecentChapter struct {
	EntryType string    `json:"entryType"`
	ChapterID string    `json:"chapterId"`
	BookID    string    `json:"bookId"`
	Title     string    `json:"title"`
	BookTitle string    `json:"bookTitle,omitempty"`
	OpenedAt  time.Time `json:"openedAt"`
}

// Store reads and writes the state file. Entries of unknown type are kept
// untouched so newer clients can share the file.
type Store struct {
	path      string
	maxRecent int
	mu        sync.Mutex
}

// DefaultPath is state.json under the user config directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "chapterdesk", "state.json"), nil
}

func Open(path string) *Store {
	return &Store{path: path, maxRecent: DefaultMaxRecent}
}

func (s *Store) Path() string {
	return s.path
}

// LoadPreferences returns the stored preferences, or zero values when none
// were saved yet.
func (s *Store) LoadPreferences() (Preferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := s.load()
	if err != nil {
		return Preferences{}, err
	}
	for _, raw := range entries {
		entryType, err := detectEntryType(raw)
		if err != nil {
			return Preferences{}, err
		}
		if entryType != entryTypePreferences {
			continue
		}
		var prefs Preferences
		if err := json.Unmarshal(raw, &prefs); err != nil {
			return Preferences{}, err
		}
		return prefs, nil
	}
	return Preferences{}, nil
}

// SavePreferences replaces the stored preferences.
func (s *Store) SavePreferences(prefs Preferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prefs.EntryType = entryTypePreferences
	prefs.UpdatedAt = time.Now()
	raw, err := json.Marshal(prefs)
	if err != nil {
		return err
	}
	entries, err := s.load()
	if err != nil {
		return err
	}
	out := make([]json.RawMessage, 0, len(entries)+1)
	out = append(out, raw)
	for _, entry := range entries {
		entryType, err := detectEntryType(entry)
		if err != nil {
			return err
		}
		if entryType == entryTypePreferences {
			continue
		}
		out = append(out, entry)
	}
	return s.write(out)
}

// Recent returns recently opened chapters, newest first.
func (s *Store) Recent() ([]RecentChapter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := s.load()
	if err != nil {
		return nil, err
	}
	return decodeRecent(entries)
}

// TouchRecent moves chapter to the front of the recent list, dropping the
// oldest entries past the cap.
func (s *Store) TouchRecent(chapter RecentChapter) error {
	if chapter.ChapterID == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	chapter.EntryType = entryTypeRecent
	if chapter.OpenedAt.IsZero() {
		chapter.OpenedAt = time.Now()
	}
	entries, err := s.load()
	if err != nil {
		return err
	}
	recent, err := decodeRecent(entries)
	if err != nil {
		return err
	}
	next := []RecentChapter{chapter}
	for _, r := range recent {
		if r.ChapterID == chapter.ChapterID {
			continue
		}
		if len(next) >= s.maxRecent {
			break
		}
		next = append(next, r)
	}

	out := make([]json.RawMessage, 0, len(entries)+1)
	for _, entry := range entries {
		entryType, err := detectEntryType(entry)
		if err != nil {
			return err
		}
		if entryType == entryTypeRecent {
			continue
		}
		out = append(out, entry)
	}
	for _, r := range next {
		raw, err := json.Marshal(r)
		if err != nil {
			return err
		}
		out = append(out, raw)
	}
	return s.write(out)
}

func decodeRecent(entries []json.RawMessage) ([]RecentChapter, error) {
	recent := make([]RecentChapter, 0)
	for _, raw := range entries {
		entryType, err := detectEntryType(raw)
		if err != nil {
			return nil, err
		}
		if entryType != entryTypeRecent {
			continue
		}
		var r RecentChapter
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, err
		}
		recent = append(recent, r)
	}
	return recent, nil
}

func (s *Store) load() ([]json.RawMessage, error) {
	if s.path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Store) write(entries []json.RawMessage) error {
	if s.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o644)
}

func detectEntryType(raw json.RawMessage) (string, error) {
	var header entryHeader
	if err := json.Unmarshal(raw, &header); err != nil {
		return "", err
	}
	return header.EntryType, nil
}
