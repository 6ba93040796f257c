package stats

import (
	"context"
	"io"

	"github.com/verte-zerg/iblreplay/internal/model"
	"github.com/verte-zerg/iblreplay/internal/store"
)

// Report contains precomputed data for history rendering.
type Report struct {
	Runs     []model.RunStats
	Sessions []model.RunAggregate
}

// BuildReport loads runs matching filter and the per-session totals.
func BuildReport(ctx context.Context, st *store.Store, filter store.RunFilter) (Report, error) {
	runs, err := st.ListRuns(ctx, filter)
	if err != nil {
		return Report{}, err
	}
	sessions, err := st.AggregateByEID(ctx)
	if err != nil {
		return Report{}, err
	}
	if filter.EID != "" {
		kept := sessions[:0]
		for _, s := range sessions {
			if s.EID == filter.EID {
				kept = append(kept, s)
			}
		}
		sessions = kept
	}
	return Report{Runs: runs, Sessions: sessions}, nil
}

// Render prints the full history report.
func (r Report) Render(w io.Writer, window int) error {
	if err := RenderSessionTotals(w, r.Sessions); err != nil {
		return err
	}
	if err := RenderHistory(w, r.Runs); err != nil {
		return err
	}
	return RenderRateTrend(w, r.Runs, window)
}
