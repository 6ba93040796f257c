package tui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/iblreplay/internal/replay"
)

func TestStripColumn(t *testing.T) {
	cases := []struct {
		deg  float64
		want int
	}{
		{-50, 0},
		{-40, 1},
		{0, 5},
		{40, 9},
		{50, 10},
		{120, 10},
	}
	for _, tc := range cases {
		if got := stripColumn(tc.deg, 11); got != tc.want {
			t.Fatalf("stripColumn(%v) = %d, want %d", tc.deg, got, tc.want)
		}
	}
}

func TestStimulusStrip(t *testing.T) {
	d := NewDisplay(false)
	h := d.CreateStimulus(replay.KindGabor)
	d.SetPositionDegrees(h, -20, 0)
	d.SetContrast(h, 0.5)
	got := cellsText(d.stimulusStrip(11))
	if got != "─┆─◉─┼───┆─" {
		t.Fatalf("unexpected strip %q", got)
	}
}

func TestWheelGauge(t *testing.T) {
	d := NewDisplay(false)
	text := cellsText(d.wheelGauge(30))
	if !strings.HasPrefix(text, "wheel      0.0° ▲") {
		t.Fatalf("unexpected gauge %q", text)
	}
	d.SetWheelRotation(-180)
	cells := d.wheelGauge(30)
	if cellsWidth(cells) != 30 {
		t.Fatalf("expected gauge width 30, got %d", cellsWidth(cells))
	}
	if cells[16+7].text != "▲" {
		t.Fatalf("expected needle half way, got %q", cellsText(cells))
	}
}

func TestWrapCells(t *testing.T) {
	rows := wrapCells(plainCells("abcde", lipgloss.NewStyle()), 2)
	if len(rows) != 3 || cellsText(rows[2]) != "e" {
		t.Fatalf("unexpected rows %d", len(rows))
	}
	wide := wrapCells(plainCells("世界世", lipgloss.NewStyle()), 3)
	if len(wide) != 3 {
		t.Fatalf("expected one wide rune per row, got %d rows", len(wide))
	}
}

func TestNeuronRasterTruncatesRows(t *testing.T) {
	d := NewDisplay(false)
	positions := make([]replay.Vec3, 5)
	colors := make([]replay.Color, 5)
	for i := range colors {
		colors[i] = replay.ProbeColors[0]
	}
	handles := d.AddNeurons(positions, colors)
	d.SetSpikeState(handles[0], 1)
	lines := d.neuronRaster(2, 1)
	if len(lines) != 3 {
		t.Fatalf("expected header, one row and overflow line, got %d", len(lines))
	}
	if !strings.Contains(lines[2], "+3 more") {
		t.Fatalf("unexpected overflow line %q", lines[2])
	}
	cells := d.neuronCells(0)
	if cells[0].text != "█" || cells[1].text != "·" {
		t.Fatalf("unexpected shades %q", cellsText(cells))
	}
}

func TestTruncateAndColor(t *testing.T) {
	if got := truncate("abcdef", 4); got != "abc…" {
		t.Fatalf("unexpected truncation %q", got)
	}
	if got := truncate("abc", 4); got != "abc" {
		t.Fatalf("unexpected truncation %q", got)
	}
	if got := hexColor(replay.Color{R: 1, G: 0.5, B: 0}); got != lipgloss.Color("#FF8000") {
		t.Fatalf("unexpected colour %q", got)
	}
}
