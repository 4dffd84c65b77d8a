package session

import (
	"errors"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/MJE43/lessonviz/internal/expr"
	"github.com/MJE43/lessonviz/internal/lesson"
)

var (
	ErrNotFound = errors.New("session not found")
	ErrLimit    = errors.New("session limit reached")
)

// Manager tracks live sessions by id.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	limit    int
	base     Options
	log      *zap.Logger
}

// NewManager creates a manager. limit <= 0 means unlimited. base supplies
// the options shared by every session. Each session compiles into its own
// expression cache unless base.Cache is set.
func NewManager(limit int, base Options) *Manager {
	if base.Logger == nil {
		base.Logger = zap.NewNop()
	}
	return &Manager{
		sessions: make(map[string]*Session),
		limit:    limit,
		base:     base,
		log:      base.Logger.Named("sessions"),
	}
}

func (m *Manager) full() bool {
	return m.limit > 0 && len(m.sessions) >= m.limit
}

// Create mounts a session. Failed mounts are kept so hosts can show the
// error frame; the mount error is returned alongside. Mounting runs
// outside the manager lock.
func (m *Manager) Create(tag lesson.Type, cfg *lesson.Config, w, h, dpr float64) (*Session, error) {
	m.mu.RLock()
	full := m.full()
	m.mu.RUnlock()
	if full {
		return nil, ErrLimit
	}

	opts := m.base
	opts.Width, opts.Height, opts.DPR = w, h, dpr
	if opts.Cache == nil {
		opts.Cache = expr.NewCache()
	}
	s, err := Mount(tag, cfg, opts)

	m.mu.Lock()
	if m.full() {
		m.mu.Unlock()
		s.Dispose()
		return nil, ErrLimit
	}
	m.sessions[s.ID()] = s
	m.mu.Unlock()

	m.log.Info("session mounted",
		zap.String("id", s.ID()),
		zap.String("type", string(tag)),
		zap.Bool("failed", err != nil),
	)
	return s, err
}

// Get looks up a session.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Delete disposes and forgets a session.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	s.Dispose()
	m.log.Info("session disposed", zap.String("id", id))
	return nil
}

// List returns snapshots ordered by id.
func (m *Manager) List() []Snapshot {
	m.mu.RLock()
	ss := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		ss = append(ss, s)
	}
	m.mu.RUnlock()
	out := make([]Snapshot, len(ss))
	for i, s := range ss {
		out[i] = s.Snapshot()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len is the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Close disposes every session.
func (m *Manager) Close() {
	m.mu.Lock()
	ss := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()
	for _, s := range ss {
		s.Dispose()
	}
}
