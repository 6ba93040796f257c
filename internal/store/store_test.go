package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/verte-zerg/iblreplay/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st
}

func testRun(eid string, ended time.Time, spikes, rewards int) model.RunStats {
	return model.RunStats{
		EID:       eid,
		StartedAt: ended.Add(-time.Minute),
		EndedAt:   ended,
		TaskTime:  42.5,
		Rate:      2,
		Mode:      "spiking",
		Counts: model.EventCounts{
			Spikes:       spikes,
			WheelSamples: 10,
			GoCues:       3,
			Feedbacks:    3,
			Rewards:      rewards,
			Licks:        7,
		},
	}
}

func TestInsertAndListRuns(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	id, err := st.InsertRun(ctx, testRun("a", base, 100, 2))
	if err != nil {
		t.Fatalf("InsertRun failed: %v", err)
	}
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("expected generated uuid, got %q", id)
	}
	if _, err := st.InsertRun(ctx, testRun("b", base.Add(time.Hour), 5, 0)); err != nil {
		t.Fatalf("InsertRun failed: %v", err)
	}

	runs, err := st.ListRuns(ctx, RunFilter{})
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	first := runs[0]
	if first.RunID != id || first.EID != "a" || !first.EndedAt.Equal(base) {
		t.Fatalf("unexpected first run %+v", first)
	}
	want := testRun("a", base, 100, 2).Counts
	if first.Counts != want {
		t.Fatalf("expected counts %+v, got %+v", want, first.Counts)
	}
	if first.TaskTime != 42.5 || first.Rate != 2 || first.Mode != "spiking" {
		t.Fatalf("unexpected run fields %+v", first)
	}
}

func TestListRunsFilters(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	for i := 0; i < 4; i++ {
		eid := "a"
		if i%2 == 1 {
			eid = "b"
		}
		if _, err := st.InsertRun(ctx, testRun(eid, base.Add(time.Duration(i)*time.Hour), i, 0)); err != nil {
			t.Fatalf("InsertRun failed: %v", err)
		}
	}

	runs, err := st.ListRuns(ctx, RunFilter{EID: "b"})
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 2 || runs[0].Counts.Spikes != 1 || runs[1].Counts.Spikes != 3 {
		t.Fatalf("unexpected eid filter result %+v", runs)
	}

	since := base.Add(2 * time.Hour)
	runs, err = st.ListRuns(ctx, RunFilter{Since: &since})
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs since cutoff, got %d", len(runs))
	}

	runs, err = st.ListRuns(ctx, RunFilter{Limit: 3})
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 3 || runs[0].Counts.Spikes != 1 || runs[2].Counts.Spikes != 3 {
		t.Fatalf("expected the 3 most recent runs oldest first, got %+v", runs)
	}
}

func TestAggregateByEID(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	runs := []model.RunStats{
		testRun("a", base, 10, 1),
		testRun("a", base.Add(time.Hour), 20, 2),
		testRun("b", base.Add(2*time.Hour), 5, 0),
	}
	runs[1].TaskTime = 100
	for _, run := range runs {
		if _, err := st.InsertRun(ctx, run); err != nil {
			t.Fatalf("InsertRun failed: %v", err)
		}
	}

	aggs, err := st.AggregateByEID(ctx)
	if err != nil {
		t.Fatalf("AggregateByEID failed: %v", err)
	}
	if len(aggs) != 2 {
		t.Fatalf("expected 2 aggregates, got %d", len(aggs))
	}
	if aggs[0].EID != "b" {
		t.Fatalf("expected most recent session first, got %s", aggs[0].EID)
	}
	a := aggs[1]
	if a.Runs != 2 || a.TotalSpikes != 30 || a.TotalRewards != 3 || a.MaxTaskTime != 100 {
		t.Fatalf("unexpected aggregate %+v", a)
	}
	if !a.LastEndedAt.Equal(base.Add(time.Hour)) {
		t.Fatalf("unexpected last ended %v", a.LastEndedAt)
	}
}

func TestListCountsForRunsEmpty(t *testing.T) {
	st := openTestStore(t)
	counts, err := st.ListCountsForRuns(context.Background(), nil)
	if err != nil || len(counts) != 0 {
		t.Fatalf("expected empty result, got %v %v", counts, err)
	}
}
