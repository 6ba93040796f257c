package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/verte-zerg/iblreplay/internal/config"
	"github.com/verte-zerg/iblreplay/internal/model"
	"github.com/verte-zerg/iblreplay/internal/random"
	"github.com/verte-zerg/iblreplay/internal/replay"
	"github.com/verte-zerg/iblreplay/internal/stats"
	"github.com/verte-zerg/iblreplay/internal/store"
	"github.com/verte-zerg/iblreplay/internal/tui"
)

const (
	defaultSimStep     = 0.02
	defaultSimParallel = 4
)

var (
	simDuration float64
	simFrom     float64
	simStep     float64
	simSeed     int64
	simParallel int
	simAll      bool
	simSave     bool
	simEvents   bool
)

type simulation struct {
	run    model.RunStats
	events []tui.Event
}

func newSimulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate [session...]",
		Short: "Replay sessions headless with a fixed time step",
		RunE:  runSimulateCmd,
	}
	addPlaybackFlags(cmd)
	cmd.Flags().Float64Var(&simDuration, "duration", 0, "task-time to replay in seconds (0 = whole session)")
	cmd.Flags().Float64Var(&simFrom, "from", 0, "task-time to seek to before replaying")
	cmd.Flags().Float64Var(&simStep, "dt", defaultSimStep, "wall-clock seconds per tick")
	cmd.Flags().Int64Var(&simSeed, "seed", 0, "seed for the spike click draw (0 = random)")
	cmd.Flags().IntVar(&simParallel, "parallel", defaultSimParallel, "sessions replayed concurrently")
	cmd.Flags().BoolVar(&simAll, "all", false, "replay every listed session")
	cmd.Flags().BoolVar(&simSave, "save", false, "store the runs in history")
	cmd.Flags().BoolVar(&simEvents, "events", false, "print the event log of each run")
	return cmd
}

func runSimulateCmd(cmd *cobra.Command, args []string) error {
	if err := loadSettings(cmd, true); err != nil {
		return err
	}
	if simStep <= 0 {
		return fmt.Errorf("--dt must be > 0")
	}
	if simParallel <= 0 {
		return fmt.Errorf("--parallel must be > 0")
	}
	ctx := cmd.Context()
	b := newBackend(stderrLogger())

	eids, err := simulationTargets(ctx, b, args)
	if err != nil {
		return err
	}

	results := make([]simulation, len(eids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(simParallel)
	for i, eid := range eids {
		i, eid := i, eid
		g.Go(func() error {
			res, err := simulateOne(gctx, b, eid)
			if err != nil {
				return fmt.Errorf("failed to simulate %s: %w", eid, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	runs := make([]model.RunStats, len(results))
	for i, res := range results {
		runs[i] = res.run
		if simEvents {
			if err := printEvents(out, res); err != nil {
				return err
			}
		}
	}
	if err := stats.RenderHistory(out, runs); err != nil {
		return err
	}
	if simSave {
		return saveRuns(ctx, runs)
	}
	return nil
}

func simulationTargets(ctx context.Context, b backend, args []string) ([]string, error) {
	if simAll {
		return b.sessionList(ctx)
	}
	if len(args) == 0 {
		_, eid, err := b.resolveSession(ctx, "")
		if err != nil {
			return nil, err
		}
		return []string{eid}, nil
	}
	eids := make([]string, 0, len(args))
	for _, arg := range args {
		_, eid, err := b.resolveSession(ctx, arg)
		if err != nil {
			return nil, err
		}
		eids = append(eids, eid)
	}
	return eids, nil
}

// simulateOne replays eid on its own engine until the requested task-time
// or the end of the session.
func simulateOne(ctx context.Context, b backend, eid string) (simulation, error) {
	s, err := b.manager.Get(ctx, eid)
	if err != nil {
		return simulation{}, err
	}
	var rng replay.Rand
	if simSeed != 0 {
		rng = random.New(simSeed)
	}
	display := tui.NewDisplay(false)
	engine, err := b.newEngine(display.Surfaces(), rng)
	if err != nil {
		return simulation{}, err
	}
	if err := engine.Activate(s); err != nil {
		return simulation{}, err
	}
	startedAt := time.Now()
	if err := engine.Play(); err != nil {
		return simulation{}, err
	}
	if simFrom > 0 {
		if err := engine.Seek(simFrom); err != nil {
			return simulation{}, err
		}
	}

	end := s.Duration()
	if simDuration > 0 {
		end = math.Min(end, engine.TaskTime()+simDuration)
	}
	ticks := 0
	for engine.TaskTime() < end {
		if ticks%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return simulation{}, err
			}
		}
		if _, err := engine.Tick(simStep); err != nil {
			return simulation{}, err
		}
		display.Advance(engine.TaskTime())
		ticks++
	}

	st := engine.Stats()
	run := model.RunStats{
		EID:       eid,
		StartedAt: startedAt,
		EndedAt:   time.Now(),
		TaskTime:  st.TaskTime,
		Rate:      st.Rate,
		Mode:      engine.Mode().String(),
		Counts:    st.Counts,
	}
	engine.Stop()
	b.logger.Debug("simulation finished", "eid", eid, "ticks", ticks, "t", run.TaskTime)
	return simulation{run: run, events: display.Events()}, nil
}

func printEvents(w io.Writer, res simulation) error {
	for _, ev := range res.events {
		if _, err := fmt.Fprintf(w, "%s  %s  %s\n", stats.ShortID(res.run.EID), stats.FormatTaskTime(ev.TaskTime), ev.Text); err != nil {
			return err
		}
	}
	return nil
}

func saveRuns(ctx context.Context, runs []model.RunStats) error {
	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()
	for _, run := range runs {
		if _, err := st.InsertRun(ctx, run); err != nil {
			return fmt.Errorf("failed to save run: %w", err)
		}
	}
	logErrf("Saved %d run(s)\n", len(runs))
	return nil
}
