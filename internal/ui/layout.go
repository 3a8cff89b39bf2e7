package ui

// LayoutMode decides which chrome fits around the story panel.
type LayoutMode int

const (
	LayoutFull LayoutMode = iota
	LayoutCompact
	LayoutTooSmall
)

func (m LayoutMode) String() string {
	switch m {
	case LayoutFull:
		return "full"
	case LayoutCompact:
		return "compact"
	default:
		return "too-small"
	}
}

const (
	minCols = 24
	minRows = 10
)

func DetermineLayoutMode(cols, rows int) LayoutMode {
	if cols < minCols || rows < minRows {
		return LayoutTooSmall
	}
	if rows >= 24 && cols >= 40 {
		return LayoutFull
	}
	return LayoutCompact
}

// panelSize converts the configured pixel size of the viewer to terminal
// cells and fits it inside the available area.
func panelSize(widthPx, heightPx, cellW, cellH, cols, rows int) (int, int) {
	if cellW <= 0 {
		cellW = 8
	}
	if cellH <= 0 {
		cellH = 16
	}
	w := max(minCols, widthPx/cellW)
	h := max(minRows, heightPx/cellH)
	return min(w, cols), min(h, rows)
}
