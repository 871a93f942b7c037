package widgets

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
)

var runes = BarRunes{Full: '█', Empty: '░', Head: '▌'}

func TestRenderProgress(t *testing.T) {
	tests := []struct {
		pos               float64
		full, head, empty int
	}{
		{0, 0, 0, 10},
		{0.5, 4, 1, 5},
		{1, 10, 0, 0},
		{1.7, 10, 0, 0},
	}
	for _, tt := range tests {
		out := RenderProgress(tt.pos, 10, runes, lipgloss.Color("#fff"), lipgloss.Color("#333"))
		full := strings.Count(out, "█")
		head := strings.Count(out, "▌")
		empty := strings.Count(out, "░")
		if full != tt.full || head != tt.head || empty != tt.empty {
			t.Errorf("pos %v: full=%d head=%d empty=%d, want %d/%d/%d",
				tt.pos, full, head, empty, tt.full, tt.head, tt.empty)
		}
	}
}

func TestSeekFromColumn(t *testing.T) {
	if pos, ok := SeekFromColumn(5, 2, 11); !ok || pos != 0.3 {
		t.Errorf("SeekFromColumn(5, 2, 11) = %v, %v", pos, ok)
	}
	if pos, ok := SeekFromColumn(12, 2, 11); !ok || pos != 1 {
		t.Errorf("last cell = %v, %v", pos, ok)
	}
	for _, x := range []int{1, 13} {
		if _, ok := SeekFromColumn(x, 2, 11); ok {
			t.Errorf("column %d should miss the bar", x)
		}
	}
}

func TestRenderMeter(t *testing.T) {
	out := RenderMeter(1, 20, 10, lipgloss.Color("#fff"), lipgloss.Color("#333"))
	if strings.Count(out, "▮") != 1 || !strings.HasSuffix(out, " 1/20") {
		t.Errorf("meter = %q", out)
	}
}
