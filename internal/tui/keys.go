package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up       key.Binding
	Down     key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Top      key.Binding
	Bottom   key.Binding
	Open     key.Binding
	Back     key.Binding
	Search   key.Binding
	NextPage key.Binding
	PrevPage key.Binding
	Sort     key.Binding
	Reload   key.Binding
	Recent   key.Binding

	Insert  key.Binding
	Convert key.Binding
	Save    key.Binding
	Cancel  key.Binding
	Delete  key.Binding
	Focus   key.Binding
	Accept  key.Binding
	Reject  key.Binding
	Paste   key.Binding
	Import  key.Binding
	Outline key.Binding
	Stats   key.Binding

	Palette key.Binding
	Help    key.Binding
	Quit    key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		PageUp:   key.NewBinding(key.WithKeys("pgup"), key.WithHelp("PgUp", "page up")),
		PageDown: key.NewBinding(key.WithKeys("pgdown"), key.WithHelp("PgDn", "page down")),
		Top:      key.NewBinding(key.WithKeys("g", "home"), key.WithHelp("g", "top")),
		Bottom:   key.NewBinding(key.WithKeys("G", "end"), key.WithHelp("G", "bottom")),
		Open:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("Enter", "open")),
		Back:     key.NewBinding(key.WithKeys("esc", "backspace"), key.WithHelp("Esc", "back")),
		Search:   key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		NextPage: key.NewBinding(key.WithKeys("right", "l", "]"), key.WithHelp("→/]", "next page")),
		PrevPage: key.NewBinding(key.WithKeys("left", "h", "["), key.WithHelp("←/[", "prev page")),
		Sort:     key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "sort")),
		Reload:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		Recent:   key.NewBinding(key.WithKeys("1", "2", "3", "4", "5", "6", "7", "8", "9"), key.WithHelp("1-9", "recent")),

		Insert:  key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "insert")),
		Convert: key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "convert text")),
		Save:    key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("Ctrl+S", "save")),
		Cancel:  key.NewBinding(key.WithKeys("esc"), key.WithHelp("Esc", "cancel")),
		Delete:  key.NewBinding(key.WithKeys("ctrl+d"), key.WithHelp("Ctrl+D", "delete block")),
		Focus:   key.NewBinding(key.WithKeys("tab"), key.WithHelp("Tab", "buffer/blocks")),
		Accept:  key.NewBinding(key.WithKeys("A"), key.WithHelp("A", "accept draft")),
		Reject:  key.NewBinding(key.WithKeys("R"), key.WithHelp("R", "reject draft")),
		Paste:   key.NewBinding(key.WithKeys("ctrl+v"), key.WithHelp("Ctrl+V", "paste")),
		Import:  key.NewBinding(key.WithKeys("ctrl+o"), key.WithHelp("Ctrl+O", "import file")),
		Outline: key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "pin outline")),
		Stats:   key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "pin stats")),

		Palette: key.NewBinding(key.WithKeys("ctrl+k"), key.WithHelp("Ctrl+K", "commands")),
		Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:    key.NewBinding(key.WithKeys("ctrl+c", "q"), key.WithHelp("q", "quit")),
	}
}

// libraryKeys is the help.KeyMap of the library screen.
type libraryKeys struct{ keyMap }

func (k libraryKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Open, k.Back, k.Search, k.NextPage, k.Sort, k.Palette, k.Quit}
}

func (k libraryKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Open, k.Back},
		{k.Search, k.NextPage, k.PrevPage, k.Sort},
		{k.Reload, k.Recent, k.Palette, k.Help, k.Quit},
	}
}

// editorKeys is the help.KeyMap of the editor screen.
type editorKeys struct{ keyMap }

func (k editorKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Open, k.Insert, k.Convert, k.Save, k.Cancel, k.Palette}
}

func (k editorKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Top, k.Bottom, k.PageUp, k.PageDown},
		{k.Open, k.Insert, k.Convert, k.Accept, k.Reject},
		{k.Save, k.Cancel, k.Delete, k.Focus},
		{k.Reload, k.Outline, k.Stats, k.Palette, k.Help},
	}
}
