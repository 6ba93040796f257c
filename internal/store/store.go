// Package store handles SQLite persistence of replay runs.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/verte-zerg/iblreplay/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// Channel families stored in run_channel_counts.
const (
	ChannelSpikes   = "spikes"
	ChannelWheel    = "wheel"
	ChannelGoCue    = "goCue"
	ChannelFeedback = "feedback"
	ChannelReward   = "reward"
	ChannelLick     = "lick"
)

// Store wraps SQLite access for run history.
type Store struct {
	db *sql.DB
}

// RunFilter narrows ListRuns.
type RunFilter struct {
	EID   string
	Since *time.Time
	// Limit keeps only the most recent runs when > 0.
	Limit int
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			eid TEXT NOT NULL,
			started_at TEXT NOT NULL,
			ended_at TEXT NOT NULL,
			task_time REAL NOT NULL,
			rate REAL NOT NULL,
			mode TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS run_channel_counts (
			run_id TEXT NOT NULL,
			channel TEXT NOT NULL,
			count INTEGER NOT NULL,
			PRIMARY KEY (run_id, channel)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_ended_at ON runs(ended_at);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_eid ON runs(eid);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// InsertRun stores a completed run and its per-channel counts. A missing
// RunID is generated. The stored id is returned.
func (s *Store) InsertRun(ctx context.Context, run model.RunStats) (string, error) {
	if run.RunID == "" {
		run.RunID = uuid.NewString()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (run_id, eid, started_at, ended_at, task_time, rate, mode)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.RunID,
		run.EID,
		run.StartedAt.Format(time.RFC3339Nano),
		run.EndedAt.Format(time.RFC3339Nano),
		run.TaskTime,
		run.Rate,
		run.Mode,
	)
	if err != nil {
		return "", err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO run_channel_counts (run_id, channel, count) VALUES (?, ?, ?)`)
	if err != nil {
		return "", err
	}
	defer func() {
		if cerr := stmt.Close(); cerr != nil {
			// Best-effort statement close.
			_ = cerr
		}
	}()
	for _, c := range countRows(run.Counts) {
		if _, err = stmt.ExecContext(ctx, run.RunID, c.channel, c.count); err != nil {
			return "", err
		}
	}

	if err = tx.Commit(); err != nil {
		return "", err
	}
	return run.RunID, nil
}

// ListRuns returns stored runs, oldest first, with their counts.
func (s *Store) ListRuns(ctx context.Context, filter RunFilter) ([]model.RunStats, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if filter.EID != "" {
		clauses = append(clauses, "eid = ?")
		args = append(args, filter.EID)
	}
	if filter.Since != nil {
		clauses = append(clauses, "ended_at >= ?")
		args = append(args, filter.Since.Format(time.RFC3339Nano))
	}
	limit := ""
	if filter.Limit > 0 {
		limit = "LIMIT ?"
		args = append(args, filter.Limit)
	}
	query := fmt.Sprintf(`SELECT run_id, eid, started_at, ended_at, task_time, rate, mode FROM (
		SELECT * FROM runs
		WHERE %s
		ORDER BY ended_at DESC
		%s
	) ORDER BY ended_at ASC`, strings.Join(clauses, " AND "), limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var runs []model.RunStats
	for rows.Next() {
		var run model.RunStats
		var startedAt, endedAt string
		if err := rows.Scan(&run.RunID, &run.EID, &startedAt, &endedAt, &run.TaskTime, &run.Rate, &run.Mode); err != nil {
			return nil, err
		}
		if run.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
			return nil, err
		}
		if run.EndedAt, err = time.Parse(time.RFC3339Nano, endedAt); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ids := make([]string, len(runs))
	for i, run := range runs {
		ids[i] = run.RunID
	}
	counts, err := s.ListCountsForRuns(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range runs {
		runs[i].Counts = counts[runs[i].RunID]
	}
	return runs, nil
}

// ListCountsForRuns returns the stored event counts keyed by run id.
func (s *Store) ListCountsForRuns(ctx context.Context, runIDs []string) (map[string]model.EventCounts, error) {
	result := map[string]model.EventCounts{}
	if len(runIDs) == 0 {
		return result, nil
	}
	placeholders := make([]string, len(runIDs))
	args := make([]any, len(runIDs))
	for i, id := range runIDs {
		placeholders[i] = "?"
		args[i] = id
	}
	query := fmt.Sprintf(`SELECT run_id, channel, count
		FROM run_channel_counts
		WHERE run_id IN (%s)`, strings.Join(placeholders, ","))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	for rows.Next() {
		var runID, channel string
		var count int
		if err := rows.Scan(&runID, &channel, &count); err != nil {
			return nil, err
		}
		c := result[runID]
		setCount(&c, channel, count)
		result[runID] = c
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// AggregateByEID summarizes runs per session, most recently played first.
func (s *Store) AggregateByEID(ctx context.Context) ([]model.RunAggregate, error) {
	query := `SELECT r.eid, COUNT(DISTINCT r.run_id), MAX(r.ended_at), MAX(r.task_time),
		COALESCE(SUM(CASE WHEN c.channel = ? THEN c.count END), 0),
		COALESCE(SUM(CASE WHEN c.channel = ? THEN c.count END), 0)
	FROM runs r
	LEFT JOIN run_channel_counts c ON c.run_id = r.run_id
	GROUP BY r.eid
	ORDER BY MAX(r.ended_at) DESC`

	rows, err := s.db.QueryContext(ctx, query, ChannelSpikes, ChannelReward)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var result []model.RunAggregate
	for rows.Next() {
		var agg model.RunAggregate
		var endedAt string
		if err := rows.Scan(&agg.EID, &agg.Runs, &endedAt, &agg.MaxTaskTime, &agg.TotalSpikes, &agg.TotalRewards); err != nil {
			return nil, err
		}
		parsed, err := time.Parse(time.RFC3339Nano, endedAt)
		if err != nil {
			return nil, err
		}
		agg.LastEndedAt = parsed
		result = append(result, agg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type countRow struct {
	channel string
	count   int
}

func countRows(c model.EventCounts) []countRow {
	return []countRow{
		{ChannelSpikes, c.Spikes},
		{ChannelWheel, c.WheelSamples},
		{ChannelGoCue, c.GoCues},
		{ChannelFeedback, c.Feedbacks},
		{ChannelReward, c.Rewards},
		{ChannelLick, c.Licks},
	}
}

func setCount(c *model.EventCounts, channel string, count int) {
	switch channel {
	case ChannelSpikes:
		c.Spikes = count
	case ChannelWheel:
		c.WheelSamples = count
	case ChannelGoCue:
		c.GoCues = count
	case ChannelFeedback:
		c.Feedbacks = count
	case ChannelReward:
		c.Rewards = count
	case ChannelLick:
		c.Licks = count
	}
}
