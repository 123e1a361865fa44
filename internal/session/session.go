// Package session implements the analysis session: a small state machine
// that holds one image, runs one simulated analysis at a time and exposes
// the selected outcome.
//
//	Idle -(intake)-> Ready -(start)-> Analyzing -(timer)-> Done -(reset)-> Idle
//
// Ready and Done accept a new intake, which discards any prior outcome.
// Every start is stamped with a run token; reset and intake invalidate it, so
// a completion that fires late can never overwrite newer state.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/example/agrilens/internal/intake"
	"github.com/example/agrilens/internal/outcome"
)

var (
	ErrAnalysisInProgress = errors.New("analysis already in progress")
	ErrNoImage            = errors.New("no image loaded")
	ErrClosed             = errors.New("session closed")
)

// State is the position of a session in its lifecycle.
type State int

const (
	StateIdle State = iota
	StateReady
	StateAnalyzing
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReady:
		return "ready"
	case StateAnalyzing:
		return "analyzing"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Snapshot is a consistent copy of a session's state.
type Snapshot struct {
	ID        string           `json:"id"`
	Owner     string           `json:"owner"`
	Kind      outcome.Kind     `json:"kind"`
	State     State            `json:"state"`
	Asset     *intake.Asset    `json:"asset,omitempty"`
	Outcome   *outcome.Outcome `json:"outcome,omitempty"`
	Error     string           `json:"error,omitempty"`
	Run       uint64           `json:"run"`
	StartedAt time.Time        `json:"started_at,omitempty"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// Analyzing reports whether a run is in flight.
func (s Snapshot) Analyzing() bool {
	return s.State == StateAnalyzing
}

// CompletionHook observes runs that reached Done.
type CompletionHook func(Snapshot)

// Config holds what a Session needs from its manager.
type Config struct {
	ID       string
	Owner    string
	Kind     outcome.Kind
	Delay    time.Duration
	Selector outcome.Selector
	Clock    Clock
	Logger   *zap.Logger
	OnDone   CompletionHook
}

// Session is safe for concurrent use.
type Session struct {
	id       string
	owner    string
	kind     outcome.Kind
	delay    time.Duration
	selector outcome.Selector
	clock    Clock
	logger   *zap.Logger
	onDone   CompletionHook

	mu        sync.Mutex
	state     State
	asset     *intake.Asset
	result    *outcome.Outcome
	lastErr   error
	run       uint64
	timer     Timer
	cancelRun context.CancelFunc
	closed    bool
	startedAt time.Time
	updatedAt time.Time
	changed   chan struct{}
}

// New creates an idle session.
func New(cfg Config) *Session {
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Session{
		id:        cfg.ID,
		owner:     cfg.Owner,
		kind:      cfg.Kind,
		delay:     cfg.Delay,
		selector:  cfg.Selector,
		clock:     cfg.Clock,
		logger:    cfg.Logger.With(zap.String("session_id", cfg.ID), zap.String("kind", string(cfg.Kind))),
		onDone:    cfg.OnDone,
		updatedAt: cfg.Clock.Now(),
		changed:   make(chan struct{}),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Owner returns the user the session belongs to.
func (s *Session) Owner() string { return s.owner }

// Kind returns the analysis kind.
func (s *Session) Kind() outcome.Kind { return s.kind }

// Intake replaces the held image and clears any outcome.
func (s *Session) Intake(asset *intake.Asset) (Snapshot, error) {
	if asset == nil {
		return s.Snapshot(), ErrNoImage
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return s.snapshotLocked(), ErrClosed
	}
	if s.state == StateAnalyzing {
		return s.snapshotLocked(), ErrAnalysisInProgress
	}

	s.run++
	s.asset = asset
	s.result = nil
	s.lastErr = nil
	s.state = StateReady
	s.touchLocked()
	return s.snapshotLocked(), nil
}

// Start schedules an analysis of the held image.
func (s *Session) Start() (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.closed:
		return s.snapshotLocked(), ErrClosed
	case s.state == StateAnalyzing:
		return s.snapshotLocked(), ErrAnalysisInProgress
	case s.asset == nil:
		return s.snapshotLocked(), ErrNoImage
	}

	s.run++
	token := s.run
	ctx, cancel := context.WithCancel(context.Background())
	req := outcome.Request{Kind: s.kind, Asset: s.asset}

	s.cancelRun = cancel
	s.result = nil
	s.lastErr = nil
	s.state = StateAnalyzing
	s.startedAt = s.clock.Now()
	s.timer = s.clock.AfterFunc(s.delay, func() { s.complete(ctx, token, req) })
	s.touchLocked()

	s.logger.Debug("analysis started", zap.Uint64("run", token), zap.Duration("delay", s.delay))
	return s.snapshotLocked(), nil
}

func (s *Session) complete(ctx context.Context, token uint64, req outcome.Request) {
	result, err := s.selector.Select(ctx, req)

	s.mu.Lock()
	if s.run != token || s.state != StateAnalyzing {
		s.mu.Unlock()
		s.logger.Debug("discarding stale analysis result", zap.Uint64("run", token))
		return
	}

	s.stopRunLocked()
	if err != nil {
		s.lastErr = err
		s.state = StateReady
		s.touchLocked()
		s.mu.Unlock()
		s.logger.Warn("analysis failed", zap.Uint64("run", token), zap.Error(err))
		return
	}

	s.result = result
	s.state = StateDone
	s.touchLocked()
	snap := s.snapshotLocked()
	hook := s.onDone
	s.mu.Unlock()

	s.logger.Info("analysis complete", zap.Uint64("run", token), zap.String("label", result.Label()))
	if hook != nil {
		hook(snap)
	}
}

// Reset drops the image, any pending run and any outcome in one step.
func (s *Session) Reset() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.resetLocked()
	s.touchLocked()
	return s.snapshotLocked()
}

// Close resets the session and refuses further operations.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.resetLocked()
	s.closed = true
	s.touchLocked()
}

func (s *Session) resetLocked() {
	s.run++
	s.stopRunLocked()
	s.asset = nil
	s.result = nil
	s.lastErr = nil
	s.state = StateIdle
	s.startedAt = time.Time{}
}

func (s *Session) stopRunLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.cancelRun != nil {
		s.cancelRun()
		s.cancelRun = nil
	}
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Await blocks until no run is in flight or ctx is done. It returns the
// latest snapshot either way.
func (s *Session) Await(ctx context.Context) (Snapshot, error) {
	for {
		s.mu.Lock()
		if s.state != StateAnalyzing {
			snap := s.snapshotLocked()
			s.mu.Unlock()
			return snap, nil
		}
		changed := s.changed
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return s.Snapshot(), ctx.Err()
		case <-changed:
		}
	}
}

// idleSince reports when the session last changed and whether it may be
// evicted.
func (s *Session) idleSince() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt, s.state != StateAnalyzing
}

func (s *Session) touchLocked() {
	s.updatedAt = s.clock.Now()
	close(s.changed)
	s.changed = make(chan struct{})
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		ID:        s.id,
		Owner:     s.owner,
		Kind:      s.kind,
		State:     s.state,
		Asset:     s.asset,
		Outcome:   s.result.Clone(),
		Run:       s.run,
		StartedAt: s.startedAt,
		UpdatedAt: s.updatedAt,
	}
	if s.lastErr != nil {
		snap.Error = s.lastErr.Error()
	}
	return snap
}
