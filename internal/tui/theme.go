package tui

import "github.com/charmbracelet/lipgloss"

type palette struct {
	Name      string
	Accent    lipgloss.Color
	Muted     lipgloss.Color
	Text      lipgloss.Color
	Error     lipgloss.Color
	Success   lipgloss.Color
	Warning   lipgloss.Color
	Border    lipgloss.Color
	StatusFG  lipgloss.Color
	StatusBG  lipgloss.Color
	KeyFG     lipgloss.Color
	KeyBG     lipgloss.Color
	Highlight lipgloss.Color
	Draft     lipgloss.Color
}

var palettes = map[string]palette{
	themeDark: {
		Name:      themeDark,
		Accent:    lipgloss.Color("81"),
		Muted:     lipgloss.Color("244"),
		Text:      lipgloss.Color("#e0def4"),
		Error:     lipgloss.Color("9"),
		Success:   lipgloss.Color("#a3be8c"),
		Warning:   lipgloss.Color("#ffd166"),
		Border:    lipgloss.Color("#56526e"),
		StatusFG:  lipgloss.Color("#0f0f0f"),
		StatusBG:  lipgloss.Color("#8ecae6"),
		KeyFG:     lipgloss.Color("#0f0f0f"),
		KeyBG:     lipgloss.Color("#ffd166"),
		Highlight: lipgloss.Color("#8ecae6"),
		Draft:     lipgloss.Color("#7f5af0"),
	},
	themeLight: {
		Name:      themeLight,
		Accent:    lipgloss.Color("25"),
		Muted:     lipgloss.Color("242"),
		Text:      lipgloss.Color("#1f1d2e"),
		Error:     lipgloss.Color("160"),
		Success:   lipgloss.Color("28"),
		Warning:   lipgloss.Color("130"),
		Border:    lipgloss.Color("#b8b5c9"),
		StatusFG:  lipgloss.Color("#fdf6e3"),
		StatusBG:  lipgloss.Color("#268bd2"),
		KeyFG:     lipgloss.Color("#fdf6e3"),
		KeyBG:     lipgloss.Color("#b58900"),
		Highlight: lipgloss.Color("#bde0fe"),
		Draft:     lipgloss.Color("#6c71c4"),
	},
}

// nextTheme cycles dark -> light -> dark.
func nextTheme(name string) string {
	if name == themeDark {
		return themeLight
	}
	return themeDark
}

type styles struct {
	title         lipgloss.Style
	sectionHeader lipgloss.Style
	helper        lipgloss.Style
	text          lipgloss.Style
	err           lipgloss.Style
	success       lipgloss.Style
	warning       lipgloss.Style
	speaker       lipgloss.Style
	aside         lipgloss.Style
	subtitle      lipgloss.Style
	field         lipgloss.Style
	placeholder   lipgloss.Style
	slot          lipgloss.Style
	slotActive    lipgloss.Style
	gutter        lipgloss.Style
	currentLine   lipgloss.Style
	unavailable   lipgloss.Style
	statusBar     lipgloss.Style
	topBar        lipgloss.Style
	key           lipgloss.Style
	keyDesc       lipgloss.Style
	legendBox     lipgloss.Style
	modal         lipgloss.Style
	modalDanger   lipgloss.Style
	editBox       lipgloss.Style
	draftBox      lipgloss.Style
	panel         lipgloss.Style
}

func newStyles(p palette) styles {
	return styles{
		title:         lipgloss.NewStyle().Bold(true).Foreground(p.Accent).Underline(true),
		sectionHeader: lipgloss.NewStyle().Bold(true).Foreground(p.Accent),
		helper:        lipgloss.NewStyle().Foreground(p.Muted),
		text:          lipgloss.NewStyle().Foreground(p.Text),
		err:           lipgloss.NewStyle().Foreground(p.Error),
		success:       lipgloss.NewStyle().Foreground(p.Success),
		warning:       lipgloss.NewStyle().Foreground(p.Warning),
		speaker:       lipgloss.NewStyle().Bold(true).Foreground(p.Accent),
		aside:         lipgloss.NewStyle().Italic(true).Foreground(p.Muted),
		subtitle:      lipgloss.NewStyle().Italic(true).Foreground(p.Text),
		field:         lipgloss.NewStyle().Bold(true).Foreground(p.Muted),
		placeholder:   lipgloss.NewStyle().Italic(true).Foreground(p.Muted),
		slot:          lipgloss.NewStyle().Foreground(p.Border),
		slotActive:    lipgloss.NewStyle().Bold(true).Foreground(p.Warning),
		gutter:        lipgloss.NewStyle().Foreground(p.Accent),
		currentLine:   lipgloss.NewStyle().Foreground(p.StatusFG).Background(p.Highlight),
		unavailable:   lipgloss.NewStyle().Foreground(p.Border),
		statusBar:     lipgloss.NewStyle().Foreground(p.StatusFG).Background(p.StatusBG).Padding(0, 1),
		topBar:        lipgloss.NewStyle().Bold(true).Foreground(p.Accent),
		key:           lipgloss.NewStyle().Bold(true).Foreground(p.KeyFG).Background(p.KeyBG).Padding(0, 1),
		keyDesc:       lipgloss.NewStyle().Foreground(p.Text),
		legendBox:     lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(p.Border).Padding(1, 2),
		modal:         lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(p.Accent).Padding(1, 2),
		modalDanger:   lipgloss.NewStyle().Border(lipgloss.DoubleBorder()).BorderForeground(p.Error).Padding(1, 2),
		editBox:       lipgloss.NewStyle().Border(lipgloss.NormalBorder(), false, false, false, true).BorderForeground(p.Warning).PaddingLeft(1),
		draftBox:      lipgloss.NewStyle().Border(lipgloss.DoubleBorder(), false, false, false, true).BorderForeground(p.Draft).PaddingLeft(1),
		panel:         lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(p.Border).Padding(0, 1),
	}
}

// themeStyles resolves name to its palette, falling back to dark.
func themeStyles(name string) (string, styles) {
	p, ok := palettes[name]
	if !ok {
		p = palettes[themeDark]
	}
	return p.Name, newStyles(p)
}
