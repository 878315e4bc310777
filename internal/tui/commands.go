package tui

import (
	"context"
	"errors"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/csheth/chapterdesk/internal/blocks"
	"github.com/csheth/chapterdesk/internal/bookapi"
	"github.com/csheth/chapterdesk/internal/conversion"
	"github.com/csheth/chapterdesk/internal/editing"
	"github.com/csheth/chapterdesk/internal/importer"
	"github.com/csheth/chapterdesk/internal/library"
	"github.com/csheth/chapterdesk/internal/settings"
)

// Backend is the part of the book API the TUI drives. *bookapi.Client
// satisfies it.
type Backend interface {
	ListBooks(ctx context.Context, q bookapi.ListQuery) (bookapi.Page[bookapi.Book], error)
	ListChapters(ctx context.Context, bookID string, q bookapi.ListQuery) (bookapi.Page[bookapi.ChapterSummary], error)
	GetChapter(ctx context.Context, chapterID string) (blocks.ChapterDetail, error)
	InsertBlock(ctx context.Context, chapterID string, blockType blocks.Type, pos blocks.InsertPosition) (blocks.Block, error)
	UpdateBlock(ctx context.Context, blockID string, patch blocks.Patch) (blocks.Block, error)
	DeleteBlock(ctx context.Context, blockID string) error
	ApplyConversion(ctx context.Context, chapterID string, items []blocks.Block, pos blocks.InsertPosition) error
	Watch(ctx context.Context, chapterID string) (<-chan bookapi.Event, error)
}

// Converter turns freeform text into draft blocks. Both the book API and the
// local LLM clients implement it.
type Converter interface {
	ConvertText(ctx context.Context, chapterID, text string) ([]blocks.Block, error)
}

var (
	errNoBackend   = errors.New("no book API configured")
	errNoConverter = errors.New("no conversion backend configured")
)

const (
	listTimeout     = 20 * time.Second
	chapterTimeout  = 30 * time.Second
	mutationTimeout = 30 * time.Second
	convertTimeout  = 3 * time.Minute
)

func listJob(api Backend, req library.Request) jobRunner {
	return func(parent context.Context) (tea.Msg, error) {
		if api == nil {
			if req.Mode == library.ModeChapters {
				return chaptersLoadedMsg{seq: req.Seq, err: errNoBackend}, errNoBackend
			}
			return booksLoadedMsg{seq: req.Seq, err: errNoBackend}, errNoBackend
		}
		ctx, cancel := context.WithTimeout(parent, listTimeout)
		defer cancel()
		if req.Mode == library.ModeChapters {
			page, err := api.ListChapters(ctx, req.BookID, req.Query)
			return chaptersLoadedMsg{seq: req.Seq, page: page, err: err}, err
		}
		page, err := api.ListBooks(ctx, req.Query)
		return booksLoadedMsg{seq: req.Seq, page: page, err: err}, err
	}
}

func loadChapterJob(api Backend, chapterID string, seq int) jobRunner {
	return func(parent context.Context) (tea.Msg, error) {
		if api == nil {
			return chapterLoadedMsg{chapterID: chapterID, seq: seq, err: errNoBackend}, errNoBackend
		}
		ctx, cancel := context.WithTimeout(parent, chapterTimeout)
		defer cancel()
		chapter, err := api.GetChapter(ctx, chapterID)
		return chapterLoadedMsg{chapterID: chapterID, seq: seq, chapter: chapter, err: err}, err
	}
}

func insertBlockJob(api Backend, chapterID string, blockType blocks.Type, pos blocks.InsertPosition) jobRunner {
	return func(parent context.Context) (tea.Msg, error) {
		if api == nil {
			return blockInsertedMsg{chapterID: chapterID, err: errNoBackend}, errNoBackend
		}
		ctx, cancel := context.WithTimeout(parent, mutationTimeout)
		defer cancel()
		block, err := api.InsertBlock(ctx, chapterID, blockType, pos)
		return blockInsertedMsg{chapterID: chapterID, block: block, err: err}, err
	}
}

func saveBlockJob(api Backend, req editing.SaveRequest) jobRunner {
	return func(parent context.Context) (tea.Msg, error) {
		if api == nil {
			return blockSavedMsg{blockID: req.BlockID, err: errNoBackend}, errNoBackend
		}
		ctx, cancel := context.WithTimeout(parent, mutationTimeout)
		defer cancel()
		block, err := api.UpdateBlock(ctx, req.BlockID, req.Patch)
		if err == nil && block == nil {
			block = req.Updated
		}
		return blockSavedMsg{blockID: req.BlockID, block: block, err: err}, err
	}
}

func deleteBlockJob(api Backend, blockID string) jobRunner {
	return func(parent context.Context) (tea.Msg, error) {
		if api == nil {
			return blockDeletedMsg{blockID: blockID, err: errNoBackend}, errNoBackend
		}
		ctx, cancel := context.WithTimeout(parent, mutationTimeout)
		defer cancel()
		err := api.DeleteBlock(ctx, blockID)
		return blockDeletedMsg{blockID: blockID, err: err}, err
	}
}

func convertTextJob(conv Converter, req conversion.ConvertRequest) jobRunner {
	return func(parent context.Context) (tea.Msg, error) {
		if conv == nil {
			return convertedMsg{seq: req.Seq, err: errNoConverter}, errNoConverter
		}
		ctx, cancel := context.WithTimeout(parent, convertTimeout)
		defer cancel()
		result, err := conv.ConvertText(ctx, req.ChapterID, req.Text)
		return convertedMsg{seq: req.Seq, blocks: result, err: err}, err
	}
}

func applyConversionJob(api Backend, req conversion.ApplyRequest) jobRunner {
	return func(parent context.Context) (tea.Msg, error) {
		if api == nil {
			return appliedMsg{seq: req.Seq, chapterID: req.ChapterID, err: errNoBackend}, errNoBackend
		}
		ctx, cancel := context.WithTimeout(parent, mutationTimeout)
		defer cancel()
		err := api.ApplyConversion(ctx, req.ChapterID, req.Blocks, req.Position)
		return appliedMsg{seq: req.Seq, chapterID: req.ChapterID, count: len(req.Blocks), err: err}, err
	}
}

func importFileJob(path string) jobRunner {
	return func(context.Context) (tea.Msg, error) {
		doc, err := importer.Load(path)
		return importedMsg{doc: doc, err: err}, err
	}
}

// readClipboard is swapped in tests.
var readClipboard = clipboard.ReadAll

func pasteJob() jobRunner {
	return func(context.Context) (tea.Msg, error) {
		text, err := readClipboard()
		return clipboardMsg{text: text, err: err}, err
	}
}

func loadSettingsJob(store *settings.Store) jobRunner {
	return func(context.Context) (tea.Msg, error) {
		if store == nil {
			return settingsLoadedMsg{}, nil
		}
		prefs, err := store.LoadPreferences()
		if err != nil {
			return settingsLoadedMsg{err: err}, err
		}
		recent, err := store.Recent()
		return settingsLoadedMsg{prefs: prefs, recent: recent, err: err}, err
	}
}

func savePreferencesJob(store *settings.Store, prefs settings.Preferences) jobRunner {
	return func(context.Context) (tea.Msg, error) {
		if store == nil {
			return settingsSavedMsg{}, nil
		}
		err := store.SavePreferences(prefs)
		return settingsSavedMsg{err: err}, err
	}
}

func touchRecentJob(store *settings.Store, ref chapterRef) jobRunner {
	return func(context.Context) (tea.Msg, error) {
		if store == nil {
			return settingsSavedMsg{}, nil
		}
		err := store.TouchRecent(settings.RecentChapter{
			ChapterID: ref.ID,
			BookID:    ref.BookID,
			Title:     ref.Title,
			BookTitle: ref.BookTitle,
		})
		if err != nil {
			return settingsSavedMsg{err: err}, err
		}
		recent, err := store.Recent()
		return settingsSavedMsg{recent: recent, err: err}, err
	}
}

// watchChapterCmd subscribes to chapter events. It stays outside the job bus:
// a subscription is long lived and has no duration worth a badge.
func watchChapterCmd(ctx context.Context, api Backend, chapterID string) tea.Cmd {
	return func() tea.Msg {
		if api == nil {
			return watchStartedMsg{chapterID: chapterID, err: errNoBackend}
		}
		events, err := api.Watch(ctx, chapterID)
		return watchStartedMsg{chapterID: chapterID, events: events, err: err}
	}
}

func waitForChapterEvent(chapterID string, events <-chan bookapi.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return watchClosedMsg{chapterID: chapterID}
		}
		return chapterChangedMsg{chapterID: chapterID, event: ev, events: events}
	}
}
