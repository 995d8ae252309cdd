package discussion

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/agentpanel/types"
)

// Manager owns the live discussions of one host. It replaces any process-wide
// session map: hosts hold a Manager and address discussions by handle.
type Manager struct {
	backend  Backend
	config   Config
	defaults []Option
	logger   *zap.Logger

	discussions map[string]*Discussion
	mu          sync.RWMutex
}

// NewManager creates a manager whose discussions share backend, config and
// the given default options.
func NewManager(backend Backend, config Config, logger *zap.Logger, defaults ...Option) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		backend:     backend,
		config:      config,
		defaults:    defaults,
		logger:      logger.With(zap.String("component", "discussion_manager")),
		discussions: make(map[string]*Discussion),
	}
}

// Create registers a new uninitialized discussion. An empty id gets a fresh
// UUID handle.
func (m *Manager) Create(id string, opts ...Option) (*Discussion, error) {
	if id == "" {
		id = uuid.New().String()
	}

	all := make([]Option, 0, len(m.defaults)+len(opts)+1)
	all = append(all, WithLogger(m.logger))
	all = append(all, m.defaults...)
	all = append(all, opts...)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.discussions[id]; exists {
		return nil, types.InvalidRequest("discussion %s already exists", id)
	}
	d := New(id, m.backend, m.config, all...)
	m.discussions[id] = d

	m.logger.Debug("discussion created", zap.String("discussion_id", id))
	return d, nil
}

// Get retrieves a discussion by handle.
func (m *Manager) Get(id string) (*Discussion, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.discussions[id]
	return d, ok
}

// Remove retires a discussion. It reports whether the handle was known.
func (m *Manager) Remove(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.discussions[id]; !ok {
		return false
	}
	delete(m.discussions, id)
	m.logger.Debug("discussion retired", zap.String("discussion_id", id))
	return true
}

// List returns all live handles, sorted.
func (m *Manager) List() []string {
	m.mu.RLock()
	ids := make([]string, 0, len(m.discussions))
	for id := range m.discussions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	sort.Strings(ids)
	return ids
}

// Len returns the number of live discussions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.discussions)
}

// ForEach runs fn for every live discussion, at most limit at a time
// (limit <= 0 means unbounded). The first error cancels the rest.
func (m *Manager) ForEach(ctx context.Context, limit int, fn func(ctx context.Context, d *Discussion) error) error {
	m.mu.RLock()
	snapshot := make([]*Discussion, 0, len(m.discussions))
	for _, d := range m.discussions {
		snapshot = append(snapshot, d)
	}
	m.mu.RUnlock()

	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for _, d := range snapshot {
		d := d
		g.Go(func() error { return fn(gctx, d) })
	}
	return g.Wait()
}

// RetireCompleted removes every discussion that is Retirable(grace) and
// returns their handles, sorted. Completed discussions whose sentinel is still
// undelivered stay live until grace has passed.
func (m *Manager) RetireCompleted(grace time.Duration) []string {
	m.mu.Lock()
	var retired []string
	for id, d := range m.discussions {
		if d.Retirable(grace) {
			delete(m.discussions, id)
			retired = append(retired, id)
		}
	}
	m.mu.Unlock()

	sort.Strings(retired)
	if len(retired) > 0 {
		m.logger.Info("completed discussions retired", zap.Int("count", len(retired)))
	}
	return retired
}
