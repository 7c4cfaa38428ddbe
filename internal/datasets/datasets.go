package datasets

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/vinodismyname/sidpol/config"
	"github.com/vinodismyname/sidpol/internal/dataset"
)

// Handle is a cleaned dataset held in memory, paired with metadata for TTL
// eviction. Table is never mutated after the handle is registered.
type Handle struct {
	ID        string
	Source    dataset.SourceInfo
	Table     *dataset.Table
	LoadedAt  time.Time
	ExpiresAt time.Time
	mu        sync.RWMutex
}

// Expired reports whether the handle has reached its TTL.
func (h *Handle) Expired(now time.Time) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return now.After(h.ExpiresAt)
}

func (h *Handle) touch(now time.Time, ttl time.Duration) {
	h.mu.Lock()
	h.ExpiresAt = now.Add(ttl)
	h.mu.Unlock()
}

// Gate coordinates capacity for cached datasets (backed by runtime.Controller).
type Gate interface {
	AcquireDataset(ctx context.Context) error
	ReleaseDataset()
}

// PathValidator abstracts filesystem path validation. Implementations should
// return a canonical absolute path if allowed, or an error when denied.
type PathValidator interface {
	ValidateOpenPath(path string) (string, error)
}

// ErrHandleNotFound indicates an unknown or expired handle ID.
var ErrHandleNotFound = errors.New("datasets: handle not found")

// Manager caches cleaned tables keyed by source identity (path, size and
// modification time). Loading a new version of a path replaces the previous
// entry for that path. It is safe for concurrent use.
type Manager struct {
	mu           sync.RWMutex
	handles      map[string]*Handle
	byKey        map[string]string
	byPath       map[string]string
	latest       string
	ttl          time.Duration
	cleanupEvery time.Duration
	clock        func() time.Time
	gate         Gate
	validator    PathValidator
	load         func(path string) (*dataset.Table, error)
	group        singleflight.Group
	stopCh       chan struct{}
	stopOnce     sync.Once
	cleanupWG    sync.WaitGroup
}

// NewManager constructs a dataset cache. Pass ttl or cleanupEvery <= 0 to use
// defaults from config. gate and validator may be nil; clock defaults to
// time.Now.
func NewManager(ttl, cleanupEvery time.Duration, gate Gate, validator PathValidator, clock func() time.Time) *Manager {
	if ttl <= 0 {
		ttl = config.DefaultDatasetIdleTTL
	}
	if cleanupEvery <= 0 {
		cleanupEvery = config.DefaultDatasetCleanupPeriod
	}
	if clock == nil {
		clock = time.Now
	}
	return &Manager{
		handles:      make(map[string]*Handle),
		byKey:        make(map[string]string),
		byPath:       make(map[string]string),
		ttl:          ttl,
		cleanupEvery: cleanupEvery,
		clock:        clock,
		gate:         gate,
		validator:    validator,
		load:         dataset.LoadFile,
		stopCh:       make(chan struct{}),
	}
}

// Start launches periodic eviction of expired handles.
func (m *Manager) Start() {
	m.cleanupWG.Add(1)
	ticker := time.NewTicker(m.cleanupEvery)
	go func() {
		defer m.cleanupWG.Done()
		defer ticker.Stop()
		for {
			select {
			case <-m.stopCh:
				return
			case <-ticker.C:
				m.EvictExpired()
			}
		}
	}()
}

// Close stops background cleanup and drops every cached dataset.
func (m *Manager) Close(ctx context.Context) error {
	m.stopOnce.Do(func() { close(m.stopCh) })
	done := make(chan struct{})
	go func() { m.cleanupWG.Wait(); close(done) }()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	m.mu.Lock()
	ids := make([]string, 0, len(m.handles))
	for id := range m.handles {
		ids = append(ids, id)
	}
	for _, id := range ids {
		m.removeLocked(id)
	}
	m.mu.Unlock()
	return nil
}

// Load returns the cached dataset for path, reading and cleaning the file on
// a miss. Concurrent loads of the same source share one read.
func (m *Manager) Load(ctx context.Context, path string) (*Handle, error) {
	if m.validator != nil {
		canonical, err := m.validator.ValidateOpenPath(path)
		if err != nil {
			return nil, err
		}
		path = canonical
	}
	src, err := dataset.Stat(path)
	if err != nil {
		return nil, err
	}
	if h, ok := m.lookup(src.Key()); ok {
		return h, nil
	}

	v, err, _ := m.group.Do(src.Key(), func() (any, error) {
		if h, ok := m.lookup(src.Key()); ok {
			return h, nil
		}
		tbl, err := m.load(src.Path)
		if err != nil {
			return nil, fmt.Errorf("datasets: load %s: %w", src.Path, err)
		}
		return m.Adopt(ctx, src, tbl)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Handle), nil
}

// LoadLatest loads the newest file in dir matching pattern.
func (m *Manager) LoadLatest(ctx context.Context, dir, pattern string) (*Handle, error) {
	src, err := dataset.LatestSource(dir, pattern)
	if err != nil {
		return nil, err
	}
	return m.Load(ctx, src.Path)
}

// Adopt registers an already cleaned table under src, replacing any entry
// for the same path. Capacity is reserved through the gate.
func (m *Manager) Adopt(ctx context.Context, src dataset.SourceInfo, tbl *dataset.Table) (*Handle, error) {
	if tbl == nil {
		return nil, fmt.Errorf("datasets: nil table")
	}

	// Replacing a path frees its slot before a new one is taken.
	m.mu.Lock()
	if old, ok := m.byPath[src.Path]; ok {
		m.removeLocked(old)
	}
	m.mu.Unlock()

	if err := m.acquire(ctx); err != nil {
		return nil, err
	}
	now := m.clock()
	h := &Handle{
		ID:        uuid.NewString(),
		Source:    src,
		Table:     tbl,
		LoadedAt:  now,
		ExpiresAt: now.Add(m.ttl),
	}

	m.mu.Lock()
	if old, ok := m.byPath[src.Path]; ok {
		m.removeLocked(old)
	}
	m.handles[h.ID] = h
	m.byKey[src.Key()] = h.ID
	m.byPath[src.Path] = h.ID
	m.latest = h.ID
	m.mu.Unlock()
	return h, nil
}

// Get returns the handle when present and refreshes its TTL.
func (m *Manager) Get(id string) (*Handle, bool) {
	m.mu.RLock()
	h, ok := m.handles[id]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	h.touch(m.clock(), m.ttl)
	return h, true
}

// Table returns the cleaned table of a handle.
func (m *Manager) Table(id string) (*dataset.Table, error) {
	h, ok := m.Get(id)
	if !ok {
		return nil, ErrHandleNotFound
	}
	return h.Table, nil
}

// Latest returns the most recently registered handle that is still cached.
func (m *Manager) Latest() (*Handle, bool) {
	m.mu.RLock()
	id := m.latest
	m.mu.RUnlock()
	if id == "" {
		return nil, false
	}
	return m.Get(id)
}

// Remove drops a handle by ID, releasing capacity via the gate.
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.handles[id]; !ok {
		return ErrHandleNotFound
	}
	m.removeLocked(id)
	return nil
}

// EvictExpired drops handles past their TTL.
func (m *Manager) EvictExpired() {
	now := m.clock()
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, h := range m.handles {
		if h.Expired(now) {
			m.removeLocked(id)
		}
	}
}

// Count returns the current number of cached handles.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.handles)
}

func (m *Manager) lookup(key string) (*Handle, bool) {
	m.mu.RLock()
	id, ok := m.byKey[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return m.Get(id)
}

func (m *Manager) removeLocked(id string) {
	h, ok := m.handles[id]
	if !ok {
		return
	}
	delete(m.handles, id)
	if m.byKey[h.Source.Key()] == id {
		delete(m.byKey, h.Source.Key())
	}
	if m.byPath[h.Source.Path] == id {
		delete(m.byPath, h.Source.Path)
	}
	if m.latest == id {
		m.latest = ""
	}
	m.release()
}

func (m *Manager) acquire(ctx context.Context) error {
	if m.gate == nil {
		return nil
	}
	return m.gate.AcquireDataset(ctx)
}

func (m *Manager) release() {
	if m.gate == nil {
		return
	}
	m.gate.ReleaseDataset()
}
