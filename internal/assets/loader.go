package assets

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/verte-zerg/iblreplay/internal/csvtab"
	"github.com/verte-zerg/iblreplay/internal/model"
)

var (
	// ErrLoadFailed wraps every fatal session load error.
	ErrLoadFailed = errors.New("session load failed")
	// ErrUnsortedChannel is returned when a time channel decreases.
	ErrUnsortedChannel = errors.New("time channel is not sorted")
)

// LoaderOptions configures a Loader.
type LoaderOptions struct {
	// Prefix is prepended to every conventional asset name.
	Prefix string
	// CacheDir receives downloaded videos for remote sources.
	CacheDir string
	Logger   *slog.Logger
}

// Loader fetches every asset of a session.
type Loader struct {
	src      Source
	prefix   string
	cacheDir string
	logger   *slog.Logger
}

// NewLoader returns a Loader reading from src.
func NewLoader(src Source, opts LoaderOptions) *Loader {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Loader{
		src:      src,
		prefix:   opts.Prefix,
		cacheDir: opts.CacheDir,
		logger:   logger,
	}
}

// Load resolves manifests and fetches all channel, cluster, trajectory and
// video assets for eid. Missing probe manifests are tolerated; any other
// failure aborts the load and no session is returned.
func (l *Loader) Load(ctx context.Context, eid string) (*model.Session, error) {
	started := time.Now()
	manifests := l.loadManifests(ctx, eid)
	uris := MergeURIs(manifests)

	session := &model.Session{
		EID:      eid,
		Channels: make(map[string]model.Channel, len(uris)),
		Videos:   make(map[model.Angle]model.VideoClip, len(model.Angles)),
	}
	for _, m := range manifests {
		session.Probes = append(session.Probes, model.Probe{Slot: m.Slot, Index: m.ProbeIndex, PID: m.PID})
	}

	keys := make([]string, 0, len(uris))
	for key := range uris {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	latch := newBarrier(keys)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)

	for _, key := range keys {
		key, uri := key, uris[key]
		g.Go(func() error {
			values, err := l.fetchChannel(gctx, uri)
			if err != nil {
				return fmt.Errorf("failed to load channel %s: %w", key, err)
			}
			if model.IsTimeChannel(key) {
				if err := checkSorted(values); err != nil {
					return fmt.Errorf("channel %s: %w", key, err)
				}
			}
			mu.Lock()
			session.Channels[key] = model.Channel{Name: key, Values: values}
			mu.Unlock()
			if latch.Complete(key) {
				l.logger.Debug("all channels loaded", "eid", eid, "channels", len(keys))
			}
			return nil
		})
	}

	for i := range session.Probes {
		i := i
		pid := session.Probes[i].PID
		g.Go(func() error {
			coords, err := l.fetchClusters(gctx, pid)
			if err != nil {
				return fmt.Errorf("failed to load clusters for %s: %w", pid, err)
			}
			mu.Lock()
			session.Probes[i].Clusters = coords
			mu.Unlock()
			return nil
		})
	}

	if len(session.Probes) > 0 {
		g.Go(func() error {
			trajectories, err := l.fetchTrajectories(gctx, eid)
			if err != nil {
				return fmt.Errorf("failed to load trajectories: %w", err)
			}
			mu.Lock()
			for i := range session.Probes {
				if traj, ok := trajectories[session.Probes[i].Slot]; ok {
					session.Probes[i].Trajectory = traj
				}
			}
			mu.Unlock()
			return nil
		})
	}

	for _, angle := range model.Angles {
		angle := angle
		g.Go(func() error {
			clip, err := l.fetchVideo(gctx, eid, angle)
			if err != nil {
				return fmt.Errorf("failed to load %s video: %w", angle, err)
			}
			mu.Lock()
			session.Videos[angle] = clip
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLoadFailed, eid, err)
	}
	if err := latch.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLoadFailed, eid, err)
	}

	session.LoadedAt = time.Now()
	l.logger.Info("session loaded",
		"eid", eid,
		"probes", len(session.Probes),
		"channels", len(session.Channels),
		"elapsed", time.Since(started).Round(time.Millisecond),
	)
	return session, nil
}

// loadManifests returns the manifests that resolved, in slot order.
func (l *Loader) loadManifests(ctx context.Context, eid string) []Manifest {
	results := make([]*Manifest, len(ProbeSlots))
	var wg sync.WaitGroup
	for i, slot := range ProbeSlots {
		wg.Add(1)
		go func(i int, slot string) {
			defer wg.Done()
			name := ManifestName(l.prefix, eid, slot)
			data, err := readAll(ctx, l.src, name)
			if err != nil {
				l.logger.Info("probe manifest unavailable", "eid", eid, "slot", slot, "err", err)
				return
			}
			m, err := ParseManifest(string(data))
			if err != nil {
				l.logger.Warn("probe manifest unreadable", "eid", eid, "slot", slot, "err", err)
				return
			}
			m.Slot = i
			results[i] = &m
		}(i, slot)
	}
	wg.Wait()

	manifests := make([]Manifest, 0, len(results))
	for _, m := range results {
		if m != nil {
			manifests = append(manifests, *m)
		}
	}
	return manifests
}

func (l *Loader) fetchChannel(ctx context.Context, uri string) ([]float64, error) {
	data, err := readAll(ctx, l.src, uri)
	if err != nil {
		return nil, err
	}
	return DecodeChannel(data)
}

func (l *Loader) fetchClusters(ctx context.Context, pid string) ([]model.ClusterCoord, error) {
	data, err := readAll(ctx, l.src, l.prefix+"Clusters/"+pid+".csv")
	if err != nil {
		return nil, err
	}
	return ParseClusters(data)
}

func (l *Loader) fetchTrajectories(ctx context.Context, eid string) (map[int]model.Trajectory, error) {
	data, err := readAll(ctx, l.src, l.prefix+"Trajectories/"+eid+".csv")
	if err != nil {
		return nil, err
	}
	return ParseTrajectories(data)
}

func (l *Loader) fetchVideo(ctx context.Context, eid string, angle model.Angle) (model.VideoClip, error) {
	base := l.prefix + "Videos/" + eid + "_" + angle.String()
	var (
		clip   Cached
		offset float64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		clip, err = Materialize(gctx, l.src, filepath.Join(l.cacheDir, eid), base+"_scaled.mp4")
		return err
	})
	g.Go(func() error {
		data, err := readAll(gctx, l.src, base+"_times.txt")
		if err != nil {
			return err
		}
		offset, err = strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
		if err != nil {
			return fmt.Errorf("bad start offset: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return model.VideoClip{}, err
	}
	return model.VideoClip{Angle: angle, Path: clip.Path, Size: clip.Size, StartOffset: offset}, nil
}

// ParseClusters reads ml/ap/dv rows from a cluster coordinate table.
func ParseClusters(data []byte) ([]model.ClusterCoord, error) {
	table, err := csvtab.Parse(bytes.NewReader(data), csvtab.Options{})
	if err != nil {
		return nil, err
	}
	if err := table.Require("ml", "ap", "dv"); err != nil {
		return nil, err
	}
	coords := make([]model.ClusterCoord, 0, len(table.Rows))
	for i, row := range table.Rows {
		var c model.ClusterCoord
		if c.ML, err = row.Float("ml"); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		if c.AP, err = row.Float("ap"); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		if c.DV, err = row.Float("dv"); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		coords = append(coords, c)
	}
	return coords, nil
}

// ParseTrajectories reads per-probe insertions keyed by slot number parsed
// from the probe column ("probe00" → 0).
func ParseTrajectories(data []byte) (map[int]model.Trajectory, error) {
	table, err := csvtab.Parse(bytes.NewReader(data), csvtab.Options{})
	if err != nil {
		return nil, err
	}
	cols := []string{"probe", "ml", "ap", "dv", "depth", "theta", "phi"}
	if err := table.Require(cols...); err != nil {
		return nil, err
	}
	out := make(map[int]model.Trajectory, len(table.Rows))
	for i, row := range table.Rows {
		var slot int
		if _, err := fmt.Sscanf(row.String("probe"), "probe%d", &slot); err != nil {
			return nil, fmt.Errorf("row %d: bad probe %q", i+1, row.String("probe"))
		}
		vals := make([]float64, len(cols)-1)
		for j, col := range cols[1:] {
			v, err := row.Float(col)
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", i+1, err)
			}
			vals[j] = v
		}
		out[slot] = model.Trajectory{
			ML: vals[0], AP: vals[1], DV: vals[2],
			Depth: vals[3], Theta: vals[4], Phi: vals[5],
		}
	}
	return out, nil
}

func checkSorted(values []float64) error {
	prev := math.Inf(-1)
	for i, v := range values {
		if math.IsNaN(v) {
			continue
		}
		if v < prev {
			return fmt.Errorf("%w: index %d (%v < %v)", ErrUnsortedChannel, i, v, prev)
		}
		prev = v
	}
	return nil
}
