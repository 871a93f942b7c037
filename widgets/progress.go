package widgets

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// BarRunes are the glyphs of a progress bar
type BarRunes struct {
	Full, Empty, Head rune
}

// ProgressCells splits width cells into played and remaining for pos in
// [0,1]. The head sits on the last played cell.
func ProgressCells(pos float64, width int) (played int) {
	if width <= 0 {
		return 0
	}
	pos = max(0, min(1, pos))
	return int(pos*float64(width) + 0.5)
}

// RenderProgress renders a bar of width cells, played part in fg
func RenderProgress(pos float64, width int, r BarRunes, fg, dim lipgloss.Color) string {
	played := ProgressCells(pos, width)
	var head string
	if played > 0 && played < width {
		played--
		head = string(r.Head)
	}
	rest := width - played - len([]rune(head))

	fgStyle := lipgloss.NewStyle().Foreground(fg)
	dimStyle := lipgloss.NewStyle().Foreground(dim)
	return fgStyle.Render(strings.Repeat(string(r.Full), played)+head) +
		dimStyle.Render(strings.Repeat(string(r.Empty), rest))
}

// SeekFromColumn maps a click at column x onto a bar starting at left.
// ok is false when the click misses the bar.
func SeekFromColumn(x, left, width int) (pos float64, ok bool) {
	if width <= 0 || x < left || x >= left+width {
		return 0, false
	}
	if width == 1 {
		return 0, true
	}
	return float64(x-left) / float64(width-1), true
}

// RenderMeter renders buffer occupancy as "▮▮▮▯▯ 3/5", scaled to width cells
func RenderMeter(used, capacity, width int, fg, dim lipgloss.Color) string {
	if capacity <= 0 || width <= 0 {
		return fmt.Sprintf("%d/%d", used, capacity)
	}
	filled := min(width, used*width/capacity)
	if used > 0 && filled == 0 {
		filled = 1
	}
	fgStyle := lipgloss.NewStyle().Foreground(fg)
	dimStyle := lipgloss.NewStyle().Foreground(dim)
	return fgStyle.Render(strings.Repeat("▮", filled)) +
		dimStyle.Render(strings.Repeat("▯", width-filled)) +
		fmt.Sprintf(" %d/%d", used, capacity)
}

// RenderKeyHelp formats key bindings on one line per section
func RenderKeyHelp(sections []KeySection) string {
	var lines []string
	for _, sec := range sections {
		var keys []string
		for _, k := range sec.Keys {
			keys = append(keys, fmt.Sprintf("%s:%s", k.Key, k.Desc))
		}
		line := strings.Join(keys, "  ")
		if sec.Title != "" {
			line = sec.Title + "  " + line
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// KeySection groups related key bindings
type KeySection struct {
	Title string
	Keys  []KeyBinding
}

// KeyBinding is a single key and its description
type KeyBinding struct {
	Key  string
	Desc string
}
