package stats

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/verte-zerg/iblreplay/internal/model"
	"github.com/verte-zerg/iblreplay/internal/store"
)

const (
	reportEID  = "4b00df29-3769-43be-bb40-128b1cba6d35"
	otherEID   = "aad23144-0e52-4eac-80c5-c4ee2decb198"
	reportRuns = 3
)

func TestBuildReport(t *testing.T) {
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "iblreplay.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})

	ctx := context.Background()
	for i := 0; i < reportRuns; i++ {
		start := time.Unix(0, 0).UTC().Add(time.Duration(i) * time.Minute)
		run := model.RunStats{
			EID:       reportEID,
			StartedAt: start,
			EndedAt:   start.Add(30 * time.Second),
			TaskTime:  float64(10 * (i + 1)),
			Rate:      1,
			Mode:      "spiking",
			Counts:    model.EventCounts{Spikes: 100 * (i + 1), Rewards: 1},
		}
		if _, err := st.InsertRun(ctx, run); err != nil {
			t.Fatalf("insert run: %v", err)
		}
	}
	other := model.RunStats{
		EID:       otherEID,
		StartedAt: time.Unix(3600, 0).UTC(),
		EndedAt:   time.Unix(3700, 0).UTC(),
		TaskTime:  5,
		Rate:      2,
		Mode:      "region",
	}
	if _, err := st.InsertRun(ctx, other); err != nil {
		t.Fatalf("insert run: %v", err)
	}

	report, err := BuildReport(ctx, st, store.RunFilter{EID: reportEID, Limit: 2})
	if err != nil {
		t.Fatalf("build report: %v", err)
	}
	if len(report.Runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(report.Runs))
	}
	if report.Runs[0].TaskTime != 20 || report.Runs[1].TaskTime != 30 {
		t.Fatalf("expected the two most recent runs oldest first, got %+v", report.Runs)
	}
	if len(report.Sessions) != 1 {
		t.Fatalf("expected sessions filtered to one eid, got %d", len(report.Sessions))
	}
	agg := report.Sessions[0]
	if agg.Runs != reportRuns || agg.TotalSpikes != 600 || agg.TotalRewards != reportRuns {
		t.Fatalf("unexpected aggregate: %+v", agg)
	}

	var buf bytes.Buffer
	if err := report.Render(&buf, 2); err != nil {
		t.Fatalf("render: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Sessions", "Runs", "4b00df29", "00h:00m:30.000", "Spikes/s trend: ["} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestRenderHistoryEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderHistory(&buf, nil); err != nil {
		t.Fatalf("render: %v", err)
	}
	if buf.String() != "No runs found.\n" {
		t.Fatalf("unexpected output: %q", buf.String())
	}
}
