package tui

import "strings"

type pageLayout struct {
	windowWidth  int
	windowHeight int
	mainWidth    int
	bodyHeight   int
	sideWidth    int
	narrow       bool
}

func newPageLayout() pageLayout {
	return pageLayout{
		windowWidth:  80,
		windowHeight: 24,
		mainWidth:    76,
		bodyHeight:   22,
		sideWidth:    24,
		narrow:       true,
	}
}

// Update recomputes the regions for a terminal of width x height. Below the
// panel breakpoint the side panels are not offered at all.
func (l *pageLayout) Update(width, height int) {
	l.windowWidth = width
	l.windowHeight = height
	l.narrow = width < panelBreakpoint

	innerWidth := width - viewportHorizontalPadding
	if innerWidth < minViewportWidth {
		innerWidth = minViewportWidth
	}
	l.mainWidth = innerWidth

	l.sideWidth = width / 4
	if l.sideWidth < 24 {
		l.sideWidth = 24
	}
	if l.sideWidth > 36 {
		l.sideWidth = 36
	}

	l.bodyHeight = height - topBarHeight - statusBarHeight
	if l.bodyHeight < 5 {
		l.bodyHeight = 5
	}
}

// contentWidth is the width left for the block list once visible panels
// take their share.
func (l pageLayout) contentWidth(left, right bool) int {
	width := l.mainWidth
	if left {
		width -= l.sideWidth
	}
	if right {
		width -= l.sideWidth
	}
	if width < minViewportWidth {
		width = minViewportWidth
	}
	return width
}

// inLeftHotspot and inRightHotspot report whether x falls on the edge that
// reveals a panel, or on the panel itself when it is showing.
func (l pageLayout) inLeftHotspot(x int, visible bool) bool {
	if x < hotspotWidth {
		return true
	}
	return visible && x < l.sideWidth
}

func (l pageLayout) inRightHotspot(x int, visible bool) bool {
	if x >= l.windowWidth-hotspotWidth {
		return true
	}
	return visible && x >= l.windowWidth-l.sideWidth
}

// contentBuilder counts lines while content is assembled so rows can be
// mapped back to viewport offsets.
type contentBuilder struct {
	builder strings.Builder
	lines   int
}

func (cb *contentBuilder) WriteString(s string) {
	cb.builder.WriteString(s)
	cb.lines += strings.Count(s, "\n")
}

func (cb *contentBuilder) WriteRune(r rune) {
	cb.builder.WriteRune(r)
	if r == '\n' {
		cb.lines++
	}
}

// WriteLine writes s and terminates it.
func (cb *contentBuilder) WriteLine(s string) {
	cb.WriteString(s)
	cb.WriteRune('\n')
}

func (cb *contentBuilder) String() string {
	return cb.builder.String()
}

func (cb *contentBuilder) Line() int {
	return cb.lines
}

func joinNonEmpty(parts []string) string {
	filtered := make([]string, 0, len(parts))
	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			continue
		}
		filtered = append(filtered, part)
	}
	return strings.Join(filtered, "\n\n")
}

func indentMultiline(text, prefix string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}

func previewText(value string, limit int) string {
	value = strings.Join(strings.Fields(value), " ")
	if limit <= 0 {
		return value
	}
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return strings.TrimSpace(string(runes[:limit])) + "…"
}
