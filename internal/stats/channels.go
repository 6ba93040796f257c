package stats

import (
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/verte-zerg/iblreplay/internal/model"
)

// ChannelSummary describes one loaded channel.
type ChannelSummary struct {
	Name    string
	Samples int
	Invalid int
	First   float64
	Last    float64
	IsTime  bool
}

// SummarizeChannels returns one summary per channel, sorted by name.
// First and Last are the first and last non-NaN values.
func SummarizeChannels(s *model.Session) []ChannelSummary {
	if s == nil {
		return nil
	}
	out := make([]ChannelSummary, 0, len(s.Channels))
	for name, ch := range s.Channels {
		sum := ChannelSummary{Name: name, Samples: ch.Len(), IsTime: model.IsTimeChannel(name)}
		found := false
		for _, v := range ch.Values {
			if math.IsNaN(v) {
				sum.Invalid++
				continue
			}
			if !found {
				sum.First = v
				found = true
			}
			sum.Last = v
		}
		out = append(out, sum)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// RenderChannelSummary prints the channel table for a session.
func RenderChannelSummary(w io.Writer, s *model.Session) error {
	summaries := SummarizeChannels(s)
	if len(summaries) == 0 {
		_, err := fmt.Fprintln(w, "No channels loaded.")
		return err
	}
	if _, err := fmt.Fprintf(w, "Session %s (%s)\n", s.EID, FormatTaskTime(s.Duration())); err != nil {
		return err
	}
	headers := []string{"Channel", "Samples", "NaN", "First", "Last"}
	rows := make([][]string, 0, len(summaries))
	for _, sum := range summaries {
		format := "%.4g"
		if sum.IsTime {
			format = "%.3f"
		}
		rows = append(rows, []string{
			sum.Name,
			fmt.Sprintf("%d", sum.Samples),
			fmt.Sprintf("%d", sum.Invalid),
			fmt.Sprintf(format, sum.First),
			fmt.Sprintf(format, sum.Last),
		})
	}
	return writeLines(w, formatTable(headers, rows, map[int]bool{1: true, 2: true, 3: true, 4: true}))
}

// RenderProbes prints one line per probe with its cluster count and pose.
func RenderProbes(w io.Writer, s *model.Session) error {
	if s == nil || len(s.Probes) == 0 {
		_, err := fmt.Fprintln(w, "No probes.")
		return err
	}
	headers := []string{"Slot", "Probe", "PID", "Clusters", "Depth (µm)", "Theta", "Phi"}
	rows := make([][]string, 0, len(s.Probes))
	for _, p := range s.Probes {
		rows = append(rows, []string{
			fmt.Sprintf("%d", p.Slot),
			fmt.Sprintf("%d", p.Index),
			p.PID,
			fmt.Sprintf("%d", len(p.Clusters)),
			fmt.Sprintf("%.0f", p.Trajectory.Depth),
			fmt.Sprintf("%.1f", p.Trajectory.Theta),
			fmt.Sprintf("%.1f", p.Trajectory.Phi),
		})
	}
	return writeLines(w, formatTable(headers, rows, map[int]bool{3: true, 4: true, 5: true, 6: true}))
}

// SpikeRates bins times into bins equal slices of [0, duration] and returns
// the rate of each bin in Hz. NaN times are skipped.
func SpikeRates(times []float64, duration float64, bins int) []float64 {
	if bins <= 0 || duration <= 0 {
		return nil
	}
	counts := make([]float64, bins)
	width := duration / float64(bins)
	for _, t := range times {
		if math.IsNaN(t) || t < 0 || t > duration {
			continue
		}
		idx := int(t / width)
		if idx >= bins {
			idx = bins - 1
		}
		counts[idx]++
	}
	for i := range counts {
		counts[i] /= width
	}
	return counts
}

// RenderSpikeRates prints a spike-rate sparkline per probe sized to width
// columns.
func RenderSpikeRates(w io.Writer, s *model.Session, width int, useColor bool) error {
	if s == nil || len(s.Probes) == 0 {
		return nil
	}
	duration := s.Duration()
	label := "probe00 "
	bins := width - len(label) - 2
	if bins < minSparkWidth {
		bins = minSparkWidth
	}
	if _, err := fmt.Fprintf(w, "Spike rate over %s\n", FormatTaskTime(duration)); err != nil {
		return err
	}
	for _, p := range s.Probes {
		times := s.Channel(model.ProbeChannel(model.SpikeTimes, p.Index)).Values
		rates := SpikeRates(times, duration, bins)
		line := Sparkline(rates)
		if useColor {
			line = colorize(line, p.Slot)
		}
		peak := 0.0
		for _, r := range rates {
			peak = math.Max(peak, r)
		}
		if _, err := fmt.Fprintf(w, "probe%02d [%s] peak %.1f Hz\n", p.Slot, line, peak); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}
