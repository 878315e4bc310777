// Package tui is the terminal front end: a library browser and a chapter
// editor built on bubbletea.
package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/paginator"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/csheth/chapterdesk/internal/blocks"
	"github.com/csheth/chapterdesk/internal/config"
	"github.com/csheth/chapterdesk/internal/confirm"
	"github.com/csheth/chapterdesk/internal/conversion"
	"github.com/csheth/chapterdesk/internal/editing"
	"github.com/csheth/chapterdesk/internal/library"
	"github.com/csheth/chapterdesk/internal/panels"
	"github.com/csheth/chapterdesk/internal/settings"
)

// Config wires runtime collaborators into the TUI program.
type Config struct {
	Backend   Backend
	Converter Converter
	Settings  *settings.Store
	Logger    *zap.Logger
	UI        config.UIConfig
	// Watch subscribes to change events of the open chapter.
	Watch bool
	// ThemeLocked keeps UI.Theme even when another theme was saved.
	ThemeLocked bool
}

type confirmKind int

const (
	confirmSwitch confirmKind = iota
	confirmDelete
	confirmLeave
	confirmQuit
)

// pendingAction is what an open confirmation dialog guards.
type pendingAction struct {
	kind  confirmKind
	block blocks.Block
}

type model struct {
	config    Config
	api       Backend
	converter Converter
	settings  *settings.Store
	log       *zap.Logger
	jobs      *jobBus
	running   map[string]jobSnapshot
	ctx       context.Context

	screen    screen
	overlay   overlay
	focus     focus
	layout    pageLayout
	keys      keyMap
	themeName string
	st        styles

	lib         *library.State
	searchInput textinput.Model
	searching   bool
	pager       paginator.Model
	help        help.Model
	prefs       settings.Preferences
	recent      []settings.RecentChapter

	chapter       chapterRef
	detail        blocks.ChapterDetail
	blockLayout   blocks.Layout
	layoutReady   bool
	loading       bool
	loadErr       error
	loadSeq       int
	cursor        int
	rowLines      []int
	followCursor  bool
	pendingEditID string
	staleChapter  bool
	watching      string
	editorCtx     context.Context
	editorCancel  context.CancelFunc

	edit        *editing.Controller
	flow        *conversion.Flow
	buffer      textarea.Model
	composer    textarea.Model
	importInput textinput.Model
	confirm     confirm.Dialog[pendingAction]
	// insertCursor indexes blocks.InsertableTypes in the insert menu.
	insertCursor int

	outline   *panels.Controller
	stats     *panels.Controller
	pointerIn map[panels.ID]bool
	scrollbar *panels.AutoHide
	toast     *panels.Toast

	paletteInput   textinput.Model
	paletteMatches []paletteCommand
	paletteCursor  int

	spinner      spinner.Model
	viewport     viewport.Model
	contentDirty bool
	infoMessage  string
	errorMessage string
}

// New returns a tea.Model ready to be mounted into a Program.
func New(config Config) tea.Model {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	searchInput := textinput.New()
	searchInput.Prompt = "/ "
	searchInput.Placeholder = "Search titles and authors…"
	searchInput.CharLimit = 120
	searchInput.Width = 50

	paletteInput := textinput.New()
	paletteInput.Placeholder = "Type to filter commands…"
	paletteInput.CharLimit = 60
	paletteInput.Width = 50

	importInput := textinput.New()
	importInput.Placeholder = "Path to a .txt, .md or .pdf file"
	importInput.CharLimit = 512
	importInput.Width = 60

	buffer := textarea.New()
	buffer.ShowLineNumbers = false
	buffer.Prompt = ""
	buffer.CharLimit = 0
	buffer.SetHeight(6)

	composer := textarea.New()
	composer.ShowLineNumbers = false
	composer.CharLimit = 0
	composer.Placeholder = "Paste prose, dialogue or scene notes…"
	composer.SetHeight(10)
	composer.SetWidth(72)

	spin := spinner.New()
	spin.Spinner = spinner.Dot

	vp := viewport.New(80, 20)
	vp.MouseWheelEnabled = true

	pager := paginator.New()
	pager.Type = paginator.Dots
	pager.ActiveDot = "●"
	pager.InactiveDot = "○"

	toastDelay := config.UI.ToastDuration
	if toastDelay <= 0 {
		toastDelay = defaultToastTimeout
	}
	themeName, st := themeStyles(config.UI.Theme)

	m := &model{
		config:       config,
		api:          config.Backend,
		converter:    config.Converter,
		settings:     config.Settings,
		log:          logger.Named("tui"),
		jobs:         newJobBus(logger),
		running:      map[string]jobSnapshot{},
		ctx:          context.Background(),
		screen:       screenLibrary,
		layout:       newPageLayout(),
		keys:         newKeyMap(),
		themeName:    themeName,
		st:           st,
		lib:          library.New(config.UI.PageSize, config.UI.SearchDebounce),
		searchInput:  searchInput,
		pager:        pager,
		help:         help.New(),
		edit:         editing.New(),
		flow:         &conversion.Flow{},
		buffer:       buffer,
		composer:     composer,
		importInput:  importInput,
		outline:      panels.New(panelOutline, config.UI.PanelHideDelay),
		stats:        panels.New(panelStats, config.UI.PanelHideDelay),
		pointerIn:    map[panels.ID]bool{},
		scrollbar:    panels.NewAutoHide("scrollbar", scrollbarLinger),
		toast:        panels.NewToast(toastDelay),
		paletteInput: paletteInput,
		spinner:      spin,
		viewport:     vp,
		contentDirty: true,
		infoMessage:  "Pick a book to begin.",
	}
	m.editorCtx, m.editorCancel = context.WithCancel(m.ctx)
	m.applyBreakpoint()
	return m
}

func (m *model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.loadLibrary(),
		m.startJob(m.ctx, jobKindSettings, loadSettingsJob(m.settings)),
	)
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil
	case spinner.TickMsg:
		if !m.busy() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.contentDirty = true
		return m, cmd
	case jobSignalMsg:
		m.running[msg.Snapshot.ID] = msg.Snapshot
		return m, nil
	case jobResultEnvelope:
		delete(m.running, msg.Snapshot.ID)
		if msg.Payload == nil {
			return m, nil
		}
		return m.Update(msg.Payload)
	case panels.HideMsg:
		if m.outline.Update(msg) || m.stats.Update(msg) {
			m.resizeContent()
		}
		return m, nil
	case panels.ExpireMsg:
		m.toast.Update(msg)
		m.scrollbar.Update(msg)
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.MouseMsg:
		return m, m.handleMouse(msg)

	case library.SearchMsg:
		if m.lib.Due(msg) {
			return m, m.loadLibrary()
		}
		return m, nil
	case booksLoadedMsg:
		return m, m.handleBooksLoaded(msg)
	case chaptersLoadedMsg:
		return m, m.handleChaptersLoaded(msg)
	case settingsLoadedMsg:
		return m, m.handleSettingsLoaded(msg)
	case settingsSavedMsg:
		if msg.err != nil {
			m.log.Warn("Saving settings failed", zap.Error(msg.err))
			return m, m.notify("Could not save settings: "+msg.err.Error(), panels.ToneError)
		}
		if msg.recent != nil {
			m.recent = msg.recent
		}
		return m, nil

	case chapterLoadedMsg:
		return m, m.handleChapterLoaded(msg)
	case blockInsertedMsg:
		return m, m.handleBlockInserted(msg)
	case blockSavedMsg:
		return m, m.handleBlockSaved(msg)
	case blockDeletedMsg:
		return m, m.handleBlockDeleted(msg)
	case convertedMsg:
		return m, m.handleConverted(msg)
	case appliedMsg:
		return m, m.handleApplied(msg)
	case clipboardMsg:
		return m, m.handleClipboard(msg)
	case importedMsg:
		return m, m.handleImported(msg)
	case watchStartedMsg:
		return m, m.handleWatchStarted(msg)
	case chapterChangedMsg:
		return m, m.handleChapterChanged(msg)
	case watchClosedMsg:
		if msg.chapterID == m.watching {
			m.watching = ""
		}
		return m, nil
	}
	return m, m.forwardToInputs(msg)
}

// forwardToInputs hands cursor blink and similar internal messages to the
// focused input.
func (m *model) forwardToInputs(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch {
	case m.overlay == overlayPalette:
		m.paletteInput, cmd = m.paletteInput.Update(msg)
	case m.overlay == overlayImport:
		m.importInput, cmd = m.importInput.Update(msg)
	case m.overlay == overlayConvert:
		m.composer, cmd = m.composer.Update(msg)
	case m.screen == screenLibrary && m.searching:
		m.searchInput, cmd = m.searchInput.Update(msg)
	case m.screen == screenEditor && m.focus == focusBuffer:
		m.buffer, cmd = m.buffer.Update(msg)
		m.contentDirty = true
	}
	return cmd
}

func (m *model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m, m.requestQuit()
	}
	switch m.overlay {
	case overlayPalette:
		return m.processPaletteKey(msg)
	case overlayConfirm:
		return m, m.processConfirmKey(msg)
	case overlayInsert:
		return m.processInsertKey(msg)
	case overlayConvert:
		return m, m.processConvertKey(msg)
	case overlayImport:
		return m, m.processImportKey(msg)
	case overlayHelp:
		if msg.Type == tea.KeyEsc || msg.String() == "?" || msg.String() == "q" {
			m.overlay = overlayNone
		}
		return m, nil
	}
	if msg.Type == tea.KeyCtrlK {
		m.openPalette()
		return m, textinput.Blink
	}
	if m.screen == screenEditor {
		return m.processEditorKey(msg)
	}
	return m.processLibraryKey(msg)
}

func (m *model) processConfirmKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "y", "Y", "enter":
		return m.resolveConfirm(true)
	case "n", "N", "esc":
		return m.resolveConfirm(false)
	}
	return nil
}

func (m *model) ask(p confirm.Prompt, action pendingAction) {
	m.confirm.Ask(p, action)
	m.overlay = overlayConfirm
}

func (m *model) resolveConfirm(accepted bool) tea.Cmd {
	action, ok := m.confirm.Resolve(accepted)
	m.overlay = overlayNone
	if !ok {
		return nil
	}
	switch action.kind {
	case confirmSwitch:
		outcome, err := m.edit.ConfirmSwitch(action.block)
		if err != nil {
			return m.notify(err.Error(), panels.ToneError)
		}
		if outcome == editing.OutcomeDeferred {
			return m.notify("Opens once the current save finishes.", panels.ToneInfo)
		}
		return m.beginBuffer()
	case confirmDelete:
		return m.deleteBlock()
	case confirmLeave:
		return m.closeEditor()
	case confirmQuit:
		return tea.Quit
	}
	return nil
}

// requestQuit asks before throwing away an edited buffer.
func (m *model) requestQuit() tea.Cmd {
	if m.edit.Dirty() && m.overlay != overlayConfirm {
		m.ask(confirm.Prompt{
			Title:       "Quit with unsaved changes?",
			Description: "The block you are editing has not been saved.",
			Tone:        confirm.ToneDestructive,
		}, pendingAction{kind: confirmQuit})
		return nil
	}
	return tea.Quit
}

func (m *model) startJob(ctx context.Context, kind jobKind, runner jobRunner) tea.Cmd {
	return tea.Batch(m.jobs.Start(ctx, kind, runner), m.spinner.Tick)
}

func (m *model) busy() bool {
	return len(m.running) > 0 || m.lib.Loading() || m.loading
}

func (m *model) notify(text string, tone panels.Tone) tea.Cmd {
	return m.toast.Show(text, tone)
}

func (m *model) setStatusError(text string) {
	m.errorMessage = text
	m.infoMessage = ""
}

func (m *model) setStatusInfo(text string) {
	m.infoMessage = text
	m.errorMessage = ""
}

func (m *model) resize(width, height int) {
	m.layout.Update(width, height)
	m.applyBreakpoint()
	m.resizeContent()
	m.help.Width = width
}

// resizeContent fits the viewport and edit buffers to the space the visible
// panels leave over.
func (m *model) resizeContent() {
	width := m.layout.contentWidth(m.outline.Visible(), m.stats.Visible())
	m.viewport.Width = width
	m.viewport.Height = m.layout.bodyHeight
	m.buffer.SetWidth(width - 6)
	composerWidth := m.layout.mainWidth - 10
	if composerWidth > 90 {
		composerWidth = 90
	}
	m.composer.SetWidth(composerWidth)
	m.contentDirty = true
}

// applyBreakpoint turns the side panels off on narrow terminals and restores
// saved pins when there is room again.
func (m *model) applyBreakpoint() {
	enabled := !m.layout.narrow
	for _, p := range []*panels.Controller{m.outline, m.stats} {
		if p.Enabled() == enabled {
			continue
		}
		p.SetEnabled(enabled)
		m.pointerIn[p.ID()] = false
		if enabled {
			p.SetPinned(m.prefs.Pinned(string(p.ID())))
		}
	}
}

func (m *model) togglePin(p *panels.Controller) tea.Cmd {
	if !p.Enabled() {
		return m.notify("Widen the terminal to use side panels.", panels.ToneInfo)
	}
	p.TogglePin()
	m.resizeContent()
	m.prefs.PinnedPanels = m.pinnedPanels()
	return m.savePreferences()
}

func (m *model) pinnedPanels() []string {
	var out []string
	for _, p := range []*panels.Controller{m.outline, m.stats} {
		if p.Pinned() {
			out = append(out, string(p.ID()))
		}
	}
	return out
}

func (m *model) applyTheme(name string) {
	m.themeName, m.st = themeStyles(name)
	m.contentDirty = true
}

func (m *model) toggleTheme() tea.Cmd {
	m.applyTheme(nextTheme(m.themeName))
	m.prefs.Theme = m.themeName
	return tea.Batch(m.savePreferences(), m.notify("Theme: "+m.themeName, panels.ToneInfo))
}

func (m *model) savePreferences() tea.Cmd {
	prefs := m.prefs
	prefs.UpdatedAt = time.Now()
	return m.startJob(m.ctx, jobKindSettings, savePreferencesJob(m.settings, prefs))
}

func (m *model) handleSettingsLoaded(msg settingsLoadedMsg) tea.Cmd {
	if msg.err != nil {
		m.log.Warn("Loading settings failed", zap.Error(msg.err))
		return m.notify("Could not read saved settings: "+msg.err.Error(), panels.ToneError)
	}
	m.prefs = msg.prefs
	m.recent = msg.recent
	if !m.config.ThemeLocked && msg.prefs.Theme != "" {
		m.applyTheme(msg.prefs.Theme)
	}
	for _, p := range []*panels.Controller{m.outline, m.stats} {
		p.SetPinned(msg.prefs.Pinned(string(p.ID())))
	}
	m.resizeContent()
	return nil
}
