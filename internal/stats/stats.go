package stats

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/verte-zerg/iblreplay/internal/model"
)

const sparkChars = " .:-=+*#%@"

// MovingAverage computes a rolling mean over the provided window size.
func MovingAverage(values []float64, window int) []float64 {
	if window <= 1 || len(values) == 0 {
		out := make([]float64, len(values))
		copy(out, values)
		return out
	}
	out := make([]float64, len(values))
	var sum float64
	for i := 0; i < len(values); i++ {
		sum += values[i]
		if i >= window {
			sum -= values[i-window]
		}
		den := float64(i + 1)
		if i >= window {
			den = float64(window)
		}
		out[i] = sum / den
	}
	return out
}

// Sparkline renders a single-line ASCII sparkline for the values.
func Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	minVal := values[0]
	maxVal := values[0]
	for _, v := range values[1:] {
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
	}
	if math.Abs(maxVal-minVal) < 1e-9 {
		return strings.Repeat(string(sparkChars[len(sparkChars)/2]), len(values))
	}
	var b strings.Builder
	for _, v := range values {
		pos := (v - minVal) / (maxVal - minVal)
		idx := int(math.Round(pos * float64(len(sparkChars)-1)))
		if idx < 0 {
			idx = 0
		}
		if idx >= len(sparkChars) {
			idx = len(sparkChars) - 1
		}
		b.WriteByte(sparkChars[idx])
	}
	return b.String()
}

// FormatTaskTime renders seconds as 00h:00m:00.000.
func FormatTaskTime(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	ms := int64(math.Round(seconds * 1000))
	h := ms / 3600000 % 24
	m := ms / 60000 % 60
	s := ms / 1000 % 60
	return fmt.Sprintf("%02dh:%02dm:%02d.%03d", h, m, s, ms%1000)
}

// SpikeRate returns spikes per second of task-time for a run.
func SpikeRate(run model.RunStats) float64 {
	if run.TaskTime <= 0 {
		return 0
	}
	return float64(run.Counts.Spikes) / run.TaskTime
}

// ShortID trims a session id to its first block for narrow tables.
func ShortID(eid string) string {
	if i := strings.IndexByte(eid, '-'); i > 0 {
		return eid[:i]
	}
	return eid
}

// RenderHistory prints one row per stored run.
func RenderHistory(w io.Writer, runs []model.RunStats) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "No runs found.")
		return err
	}
	if _, err := fmt.Fprintln(w, "Runs"); err != nil {
		return err
	}
	headers := []string{"Ended", "Session", "Reached", "Rate", "Mode", "Spikes", "Spikes/s", "Trials", "Rewards", "Licks"}
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []string{
			run.EndedAt.Local().Format(time.DateTime),
			ShortID(run.EID),
			FormatTaskTime(run.TaskTime),
			fmt.Sprintf("%gx", run.Rate),
			run.Mode,
			fmt.Sprintf("%d", run.Counts.Spikes),
			fmt.Sprintf("%.1f", SpikeRate(run)),
			fmt.Sprintf("%d", run.Counts.GoCues),
			fmt.Sprintf("%d", run.Counts.Rewards),
			fmt.Sprintf("%d", run.Counts.Licks),
		})
	}
	rightAlign := map[int]bool{3: true, 5: true, 6: true, 7: true, 8: true, 9: true}
	return writeLines(w, formatTable(headers, rows, rightAlign))
}

// RenderSessionTotals prints per-session aggregates.
func RenderSessionTotals(w io.Writer, aggs []model.RunAggregate) error {
	if len(aggs) == 0 {
		_, err := fmt.Fprintln(w, "No sessions played.")
		return err
	}
	if _, err := fmt.Fprintln(w, "Sessions"); err != nil {
		return err
	}
	headers := []string{"Session", "Runs", "Furthest", "Spikes", "Rewards", "Last played"}
	rows := make([][]string, 0, len(aggs))
	for _, agg := range aggs {
		rows = append(rows, []string{
			agg.EID,
			fmt.Sprintf("%d", agg.Runs),
			FormatTaskTime(agg.MaxTaskTime),
			fmt.Sprintf("%d", agg.TotalSpikes),
			fmt.Sprintf("%d", agg.TotalRewards),
			agg.LastEndedAt.Local().Format(time.DateTime),
		})
	}
	return writeLines(w, formatTable(headers, rows, map[int]bool{1: true, 3: true, 4: true}))
}

// RenderRateTrend prints a sparkline of spikes/s across runs, smoothed
// over window runs.
func RenderRateTrend(w io.Writer, runs []model.RunStats, window int) error {
	if len(runs) < 2 {
		return nil
	}
	rates := make([]float64, len(runs))
	for i, run := range runs {
		rates[i] = SpikeRate(run)
	}
	rates = MovingAverage(rates, window)
	_, err := fmt.Fprintf(w, "Spikes/s trend: [%s]\n", Sparkline(rates))
	return err
}

func writeLines(w io.Writer, lines []string) error {
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}
