package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/agrilens/internal/outcome"
)

// ErrNotFound is returned for unknown sessions and for sessions owned by
// someone else.
var ErrNotFound = errors.New("session not found")

// ManagerOptions configures a Manager.
type ManagerOptions struct {
	Delays   map[outcome.Kind]time.Duration
	TTL      time.Duration
	Selector outcome.Selector
	Clock    Clock
	Logger   *zap.Logger
}

// Manager owns every live session.
type Manager struct {
	delays   map[outcome.Kind]time.Duration
	ttl      time.Duration
	selector outcome.Selector
	clock    Clock
	logger   *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
	hooks    []CompletionHook
}

// NewManager builds a Manager.
func NewManager(opts ManagerOptions) *Manager {
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	delays := make(map[outcome.Kind]time.Duration, len(opts.Delays))
	for k, d := range opts.Delays {
		delays[k] = d
	}
	return &Manager{
		delays:   delays,
		ttl:      opts.TTL,
		selector: opts.Selector,
		clock:    opts.Clock,
		logger:   opts.Logger.Named("session_manager"),
		sessions: make(map[string]*Session),
	}
}

// OnComplete registers a hook run after every successful analysis. Hooks
// must be registered before sessions are created.
func (m *Manager) OnComplete(hook CompletionHook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, hook)
}

// Create starts a new idle session for owner.
func (m *Manager) Create(owner string, kind outcome.Kind) (*Session, error) {
	kind, err := outcome.ParseKind(string(kind))
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	hooks := append([]CompletionHook(nil), m.hooks...)
	s := New(Config{
		ID:       uuid.NewString(),
		Owner:    owner,
		Kind:     kind,
		Delay:    m.delays[kind],
		Selector: m.selector,
		Clock:    m.clock,
		Logger:   m.logger,
		OnDone: func(snap Snapshot) {
			for _, hook := range hooks {
				hook(snap)
			}
		},
	})
	m.sessions[s.ID()] = s
	m.logger.Debug("session created", zap.String("session_id", s.ID()), zap.String("owner", owner))
	return s, nil
}

// Get returns owner's session with the given id.
func (m *Manager) Get(owner, id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok || s.Owner() != owner {
		return nil, ErrNotFound
	}
	return s, nil
}

// Remove closes and forgets owner's session.
func (m *Manager) Remove(owner, id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok || s.Owner() != owner {
		m.mu.Unlock()
		return ErrNotFound
	}
	delete(m.sessions, id)
	m.mu.Unlock()

	s.Close()
	return nil
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep closes sessions untouched for longer than the TTL. Sessions with a
// run in flight are kept. It returns the number of evicted sessions.
func (m *Manager) Sweep() int {
	if m.ttl <= 0 {
		return 0
	}
	cutoff := m.clock.Now().Add(-m.ttl)

	m.mu.Lock()
	var expired []*Session
	for id, s := range m.sessions {
		last, evictable := s.idleSince()
		if evictable && last.Before(cutoff) {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		s.Close()
	}
	if len(expired) > 0 {
		m.logger.Info("evicted idle sessions", zap.Int("count", len(expired)))
	}
	return len(expired)
}

// Run sweeps every interval until ctx is done, then closes all sessions.
// A non-positive interval disables sweeping.
func (m *Manager) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		<-ctx.Done()
		m.closeAll()
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.closeAll()
			return nil
		case <-ticker.C:
			m.Sweep()
		}
	}
}

func (m *Manager) closeAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
