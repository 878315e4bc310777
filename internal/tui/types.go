package tui

import (
	"time"

	"github.com/csheth/chapterdesk/internal/blocks"
	"github.com/csheth/chapterdesk/internal/bookapi"
	"github.com/csheth/chapterdesk/internal/importer"
	"github.com/csheth/chapterdesk/internal/settings"
)

type screen int

const (
	screenLibrary screen = iota
	screenEditor
)

// overlay is the modal layer drawn over the body, if any.
type overlay int

const (
	overlayNone overlay = iota
	overlayPalette
	overlayConfirm
	overlayInsert
	overlayConvert
	overlayImport
	overlayHelp
)

// focus decides where editor keystrokes go.
type focus int

const (
	focusBlocks focus = iota
	focusBuffer
)

const (
	minViewportWidth          = 40
	viewportHorizontalPadding = 4
	panelBreakpoint           = 100
	hotspotWidth              = 2
	topBarHeight              = 1
	statusBarHeight           = 1

	scrollbarLinger     = 1200 * time.Millisecond
	defaultToastTimeout = 4 * time.Second
)

const (
	panelOutline = "outline"
	panelStats   = "stats"
)

const (
	themeDark  = "dark"
	themeLight = "light"
)

// chapterRef is enough to open a chapter and label it before it loads.
type chapterRef struct {
	ID        string
	BookID    string
	Title     string
	BookTitle string
}

type booksLoadedMsg struct {
	seq  int
	page bookapi.Page[bookapi.Book]
	err  error
}

type chaptersLoadedMsg struct {
	seq  int
	page bookapi.Page[bookapi.ChapterSummary]
	err  error
}

type chapterLoadedMsg struct {
	chapterID string
	seq       int
	chapter   blocks.ChapterDetail
	err       error
}

type blockInsertedMsg struct {
	chapterID string
	block     blocks.Block
	err       error
}

type blockSavedMsg struct {
	blockID string
	block   blocks.Block
	err     error
}

type blockDeletedMsg struct {
	blockID string
	err     error
}

type convertedMsg struct {
	seq    int
	blocks []blocks.Block
	err    error
}

type appliedMsg struct {
	seq       int
	chapterID string
	count     int
	err       error
}

type clipboardMsg struct {
	text string
	err  error
}

type importedMsg struct {
	doc importer.Document
	err error
}

type settingsLoadedMsg struct {
	prefs  settings.Preferences
	recent []settings.RecentChapter
	err    error
}

type settingsSavedMsg struct {
	recent []settings.RecentChapter
	err    error
}

type watchStartedMsg struct {
	chapterID string
	events    <-chan bookapi.Event
	err       error
}

type chapterChangedMsg struct {
	chapterID string
	event     bookapi.Event
	events    <-chan bookapi.Event
}

type watchClosedMsg struct {
	chapterID string
}
