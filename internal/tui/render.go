package tui

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/verte-zerg/iblreplay/internal/replay"
)

// stripSpan is the azimuth range (degrees) drawn by the stimulus strip.
const stripSpan = replay.StimulusBound + 10

var spikeShades = []string{"·", "░", "▒", "▓", "█"}

type cell struct {
	text  string
	style lipgloss.Style
}

func (c cell) width() int {
	return runewidth.StringWidth(c.text)
}

func plainCells(text string, style lipgloss.Style) []cell {
	out := make([]cell, 0, len(text))
	for _, r := range text {
		out = append(out, cell{text: string(r), style: style})
	}
	return out
}

func renderCells(cells []cell) string {
	var b strings.Builder
	for _, c := range cells {
		b.WriteString(c.style.Render(c.text))
	}
	return b.String()
}

func cellsText(cells []cell) string {
	var b strings.Builder
	for _, c := range cells {
		b.WriteString(c.text)
	}
	return b.String()
}

func cellsWidth(cells []cell) int {
	total := 0
	for _, c := range cells {
		total += c.width()
	}
	return total
}

// wrapCells splits cells into rows no wider than width.
func wrapCells(cells []cell, width int) [][]cell {
	if width <= 0 {
		return [][]cell{cells}
	}
	var rows [][]cell
	row := make([]cell, 0, width)
	rowWidth := 0
	for _, c := range cells {
		w := c.width()
		if rowWidth+w > width && len(row) > 0 {
			rows = append(rows, row)
			row = make([]cell, 0, width)
			rowWidth = 0
		}
		row = append(row, c)
		rowWidth += w
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return rows
}

// stripColumn maps an azimuth in degrees to a strip column, clamped to the
// strip.
func stripColumn(deg float64, width int) int {
	if width <= 1 {
		return 0
	}
	frac := (deg + stripSpan) / (2 * stripSpan)
	col := int(math.Round(frac * float64(width-1)))
	if col < 0 {
		return 0
	}
	if col > width-1 {
		return width - 1
	}
	return col
}

// stimulusStrip draws the horizontal azimuth line with the centre, the
// freeze bounds and every live stimulus.
func (d *Display) stimulusStrip(width int) []cell {
	if width < 3 {
		width = 3
	}
	cells := make([]cell, width)
	for i := range cells {
		cells[i] = cell{text: "─", style: mutedStyle}
	}
	cells[stripColumn(0, width)] = cell{text: "┼", style: mutedStyle}
	cells[stripColumn(-replay.StimulusBound, width)] = cell{text: "┆", style: boundStyle}
	cells[stripColumn(replay.StimulusBound, width)] = cell{text: "┆", style: boundStyle}
	for _, h := range d.LiveStimuli() {
		s := d.stimuli[h]
		style := stimulusStyle(s.contrast)
		if s.pending {
			style = retiringStyle
		}
		cells[stripColumn(s.x, width)] = cell{text: "◉", style: style}
	}
	return cells
}

// wheelGauge draws the wheel angle as a needle over one turn.
func (d *Display) wheelGauge(width int) []cell {
	label := fmt.Sprintf("wheel %8.1f° ", d.wheelDeg)
	bar := width - runewidth.StringWidth(label)
	if bar < 3 {
		return plainCells(label, labelStyle)
	}
	cells := plainCells(label, labelStyle)
	turn := math.Mod(d.wheelDeg, 360)
	if turn < 0 {
		turn += 360
	}
	needle := int(turn / 360 * float64(bar))
	if needle >= bar {
		needle = bar - 1
	}
	for i := 0; i < bar; i++ {
		if i == needle {
			cells = append(cells, cell{text: "▲", style: needleStyle})
			continue
		}
		cells = append(cells, cell{text: "·", style: mutedStyle})
	}
	return cells
}

// neuronCells returns one cell per neuron of slot, shaded by spike state.
func (d *Display) neuronCells(slot int) []cell {
	var out []cell
	for _, n := range d.neurons {
		if n.slot != slot {
			continue
		}
		idx := int(math.Ceil(n.state * float64(len(spikeShades)-1)))
		if idx < 0 {
			idx = 0
		}
		if idx >= len(spikeShades) {
			idx = len(spikeShades) - 1
		}
		style := lipgloss.NewStyle().Foreground(hexColor(n.color))
		if idx == 0 {
			style = mutedStyle
		}
		out = append(out, cell{text: spikeShades[idx], style: style})
	}
	return out
}

// neuronRaster renders each probe's neurons wrapped to width, at most
// maxRows rows per probe.
func (d *Display) neuronRaster(width, maxRows int) []string {
	var lines []string
	for slot := range replay.ProbeColors {
		cells := d.neuronCells(slot)
		if len(cells) == 0 {
			continue
		}
		header := fmt.Sprintf("probe%02d  %d neurons", slot, len(cells))
		if v, ok := d.probes[slot]; ok {
			header += fmt.Sprintf("  tip (%.2f, %.2f, %.2f) depth %.2f", v.Position[0], v.Position[1], v.Position[2], v.Depth)
		}
		lines = append(lines, labelStyle.Render(truncate(header, width)))
		rows := wrapCells(cells, width)
		hidden := 0
		if maxRows > 0 && len(rows) > maxRows {
			for _, row := range rows[maxRows:] {
				hidden += len(row)
			}
			rows = rows[:maxRows]
		}
		for _, row := range rows {
			lines = append(lines, renderCells(row))
		}
		if hidden > 0 {
			lines = append(lines, mutedStyle.Render(fmt.Sprintf("+%d more", hidden)))
		}
	}
	return lines
}

// indicators renders the audio/reward lamps.
func (d *Display) indicators() string {
	lamps := []struct {
		label string
		lit   bool
		style lipgloss.Style
	}{
		{"GO", d.toneFlash > 0, toneStyle},
		{"NOISE", d.noiseFlash > 0, errorStyle},
		{fmt.Sprintf("DROP %d", d.drops), d.dropFlash > 0, rewardStyle},
		{fmt.Sprintf("LICK %d", d.licks), d.lickFlash > 0, rewardStyle},
		{"CLICK", d.clickFlash > 0, toneStyle},
	}
	parts := make([]string, len(lamps))
	for i, l := range lamps {
		if l.lit {
			parts[i] = l.style.Render(l.label)
			continue
		}
		parts[i] = mutedStyle.Render(l.label)
	}
	return strings.Join(parts, "  ")
}

func truncate(s string, width int) string {
	if width <= 0 || runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, "…")
}

func hexColor(c replay.Color) lipgloss.Color {
	return lipgloss.Color(fmt.Sprintf("#%02X%02X%02X", channel255(c.R), channel255(c.G), channel255(c.B)))
}

func channel255(v float64) int {
	return int(math.Round(math.Max(0, math.Min(1, v)) * 255))
}

func stimulusStyle(contrast float64) lipgloss.Style {
	level := 96 + int(math.Round(math.Max(0, math.Min(1, contrast))*159))
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fmt.Sprintf("#%02X%02X%02X", level, level, level))).Bold(true)
}
