// Package session caches loaded sessions and tracks which one is active.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/verte-zerg/iblreplay/internal/logging"
	"github.com/verte-zerg/iblreplay/internal/model"
)

// ErrUnknownSession is returned for ids that were never loaded.
var ErrUnknownSession = errors.New("unknown session")

// Loader fetches one session. assets.Loader satisfies it.
type Loader interface {
	Load(ctx context.Context, eid string) (*model.Session, error)
}

// Player is the playback side a Manager hands sessions to.
// replay.Engine satisfies it.
type Player interface {
	Activate(s *model.Session) error
}

// Manager keeps every successfully loaded session for the life of the
// process and loads each id at most once at a time. It is safe for
// concurrent use.
type Manager struct {
	loader Loader
	logger *slog.Logger
	group  singleflight.Group

	mu     sync.Mutex
	cache  map[string]*model.Session
	active string
}

// NewManager returns a Manager backed by loader.
func NewManager(loader Loader, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Manager{
		loader: loader,
		logger: logger,
		cache:  map[string]*model.Session{},
	}
}

// Get returns the session for eid, loading it on first use. Concurrent
// callers for the same id share one load. The shared load ignores the
// cancellation of whichever caller started it; a cancelled caller stops
// waiting and the load still completes for the others. Failed loads are
// not cached.
func (m *Manager) Get(ctx context.Context, eid string) (*model.Session, error) {
	if s, ok := m.cached(eid); ok {
		return s, nil
	}
	loadCtx := context.WithoutCancel(ctx)
	ch := m.group.DoChan(eid, func() (interface{}, error) {
		if s, ok := m.cached(eid); ok {
			return s, nil
		}
		s, err := m.loader.Load(loadCtx, eid)
		if err != nil {
			return nil, err
		}
		m.mu.Lock()
		m.cache[eid] = s
		m.mu.Unlock()
		return s, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("failed to load session %s: %w", eid, ctx.Err())
	case res = <-ch:
	}
	if res.Err != nil {
		m.logger.Warn("session load failed", "eid", eid, "err", res.Err)
		return nil, fmt.Errorf("failed to load session %s: %w", eid, res.Err)
	}
	if res.Shared {
		m.logger.Debug("session load shared", "eid", eid)
	}
	return res.Val.(*model.Session), nil
}

// Activate loads eid if needed and hands it to p, which stops whatever it
// was playing. The session becomes active only once the load succeeded.
func (m *Manager) Activate(ctx context.Context, eid string, p Player) (*model.Session, error) {
	s, err := m.Get(ctx, eid)
	if err != nil {
		return nil, err
	}
	if err := p.Activate(s); err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.active = eid
	m.mu.Unlock()
	return s, nil
}

// Active returns the active session id, or "".
func (m *Manager) Active() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Lookup returns a cached session without loading.
func (m *Manager) Lookup(eid string) (*model.Session, error) {
	if s, ok := m.cached(eid); ok {
		return s, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownSession, eid)
}

// Loaded returns the ids of every cached session, sorted.
func (m *Manager) Loaded() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.cache))
	for id := range m.cache {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (m *Manager) cached(eid string) (*model.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.cache[eid]
	return s, ok
}
