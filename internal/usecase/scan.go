package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/agrilens/internal/intake"
	"github.com/example/agrilens/internal/logging"
	"github.com/example/agrilens/internal/outcome"
	"github.com/example/agrilens/internal/repository"
	"github.com/example/agrilens/internal/retry"
	"github.com/example/agrilens/internal/session"
)

var (
	ErrOutcomeNotReady = errors.New("analysis has not produced an outcome yet")
	ErrOutcomeNotFound = errors.New("outcome not found")
)

const (
	outcomeCacheTTL = 30 * time.Minute
	persistTimeout  = 5 * time.Second
)

// ScanRepository defines the persistence operations needed by the use case.
type ScanRepository interface {
	SaveRecord(ctx context.Context, record *repository.ScanRecord) error
	FindBySessionAndUser(ctx context.Context, sessionID, userID string) (*repository.ScanRecord, error)
	ListRecent(ctx context.Context, userID string, limit int) ([]*repository.ScanRecord, error)
	CountOutcomes(ctx context.Context, kind string) ([]repository.OutcomeCount, error)
}

// StoredOutcome is a completed analysis as kept in cache and database.
type StoredOutcome struct {
	SessionID   string           `json:"session_id"`
	UserID      string           `json:"user_id"`
	Run         uint64           `json:"run"`
	Kind        outcome.Kind     `json:"kind"`
	Label       string           `json:"label"`
	Outcome     *outcome.Outcome `json:"outcome"`
	ImageSHA1   string           `json:"image_sha1"`
	ImageOrigin intake.Origin    `json:"image_origin"`
	ImageName   string           `json:"image_name"`
	CreatedAt   time.Time        `json:"created_at"`
}

// ScanUseCase drives analysis sessions on behalf of users and records
// their outcomes.
type ScanUseCase struct {
	sessions *session.Manager
	intaker  *intake.Intaker
	repo     ScanRepository
	cache    Cache
	logger   *zap.Logger
	policy   retry.Policy
}

// NewScanUseCase constructs a use case and subscribes it to session
// completions.
func NewScanUseCase(sessions *session.Manager, intaker *intake.Intaker, repo ScanRepository, cache Cache, logger *zap.Logger) *ScanUseCase {
	uc := &ScanUseCase{
		sessions: sessions,
		intaker:  intaker,
		repo:     repo,
		cache:    cache,
		logger:   logger.Named("scan_usecase"),
		policy:   retry.DefaultPolicy(),
	}
	sessions.OnComplete(uc.recordOutcome)
	return uc
}

// MaxUploadBytes exposes the intake limit to the transport layer.
func (uc *ScanUseCase) MaxUploadBytes() int64 {
	return uc.intaker.MaxBytes()
}

// CreateSession opens a new idle session of the given kind.
func (uc *ScanUseCase) CreateSession(ctx context.Context, userID string, kind outcome.Kind) (session.Snapshot, error) {
	s, err := uc.sessions.Create(userID, kind)
	if err != nil {
		return session.Snapshot{}, err
	}
	logging.WithOperation(uc.logger, "usecase.create_session", s.ID()).Info("session created", zap.String("kind", string(kind)))
	return s.Snapshot(), nil
}

// Session returns the current state of a session.
func (uc *ScanUseCase) Session(ctx context.Context, userID, sessionID string) (session.Snapshot, error) {
	s, err := uc.sessions.Get(userID, sessionID)
	if err != nil {
		return session.Snapshot{}, err
	}
	return s.Snapshot(), nil
}

// AwaitSession waits up to wait for an in-flight analysis to finish. Running
// out of time is not an error; the caller gets the analyzing snapshot.
func (uc *ScanUseCase) AwaitSession(ctx context.Context, userID, sessionID string, wait time.Duration) (session.Snapshot, error) {
	s, err := uc.sessions.Get(userID, sessionID)
	if err != nil {
		return session.Snapshot{}, err
	}
	waitCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	snap, err := s.Await(waitCtx)
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return snap, nil
	}
	return snap, err
}

// UploadImage validates an uploaded or dropped image and loads it into the session.
func (uc *ScanUseCase) UploadImage(ctx context.Context, userID, sessionID string, r io.Reader, name string, origin intake.Origin) (session.Snapshot, error) {
	s, err := uc.sessions.Get(userID, sessionID)
	if err != nil {
		return session.Snapshot{}, err
	}
	asset, err := uc.intaker.FromReader(r, name, origin)
	if err != nil {
		logging.WithOperation(uc.logger, "usecase.upload_image", sessionID).Info("image rejected", zap.Error(err))
		return s.Snapshot(), err
	}
	return s.Intake(asset)
}

// UseSample loads one of the bundled sample images into the session.
func (uc *ScanUseCase) UseSample(ctx context.Context, userID, sessionID, sample string) (session.Snapshot, error) {
	s, err := uc.sessions.Get(userID, sessionID)
	if err != nil {
		return session.Snapshot{}, err
	}
	asset, err := uc.intaker.FromSample(sample)
	if err != nil {
		return s.Snapshot(), err
	}
	return s.Intake(asset)
}

// SampleNames lists the bundled sample images.
func (uc *ScanUseCase) SampleNames() []string {
	return uc.intaker.SampleNames()
}

// StartAnalysis begins the simulated analysis.
func (uc *ScanUseCase) StartAnalysis(ctx context.Context, userID, sessionID string) (session.Snapshot, error) {
	s, err := uc.sessions.Get(userID, sessionID)
	if err != nil {
		return session.Snapshot{}, err
	}
	snap, err := s.Start()
	if err != nil {
		return snap, err
	}
	logging.WithOperation(uc.logger, "usecase.start_analysis", sessionID).Info("analysis started", zap.Uint64("run", snap.Run))
	return snap, nil
}

// Reset clears the session back to idle, discarding any pending run.
func (uc *ScanUseCase) Reset(ctx context.Context, userID, sessionID string) (session.Snapshot, error) {
	s, err := uc.sessions.Get(userID, sessionID)
	if err != nil {
		return session.Snapshot{}, err
	}
	return s.Reset(), nil
}

// CloseSession discards a session entirely.
func (uc *ScanUseCase) CloseSession(ctx context.Context, userID, sessionID string) error {
	return uc.sessions.Remove(userID, sessionID)
}

// GetOutcome returns the outcome of a session's current run. Sessions that
// are no longer live are answered from the cache, then the database.
func (uc *ScanUseCase) GetOutcome(ctx context.Context, userID, sessionID string) (*StoredOutcome, error) {
	if s, err := uc.sessions.Get(userID, sessionID); err == nil {
		// A live session only exposes the outcome of its current run; stored
		// results of earlier runs stay hidden after a reset or a new intake.
		snap := s.Snapshot()
		if snap.State != session.StateDone {
			return nil, ErrOutcomeNotReady
		}
		return newStoredOutcome(snap), nil
	}

	opLogger := logging.WithOperation(uc.logger, "usecase.get_outcome", sessionID)
	if cached, err := uc.withCacheGet(ctx, sessionID, "cache.get.outcome", outcomeKey(sessionID)); err == nil {
		var stored StoredOutcome
		if err := json.Unmarshal([]byte(cached), &stored); err != nil {
			opLogger.Warn("failed to decode cached outcome", zap.Error(err))
		} else if stored.UserID == userID {
			return &stored, nil
		}
	} else if !errors.Is(err, ErrCacheMiss) {
		opLogger.Warn("failed to read cache", zap.Error(err))
	}

	record, err := uc.repo.FindBySessionAndUser(ctx, sessionID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOutcomeNotFound
		}
		return nil, err
	}
	return storedFromRecord(record)
}

// RecentScans returns the newest stored outcomes of a user.
func (uc *ScanUseCase) RecentScans(ctx context.Context, userID string, limit int) ([]*StoredOutcome, error) {
	records, err := uc.repo.ListRecent(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]*StoredOutcome, 0, len(records))
	for _, record := range records {
		stored, err := storedFromRecord(record)
		if err != nil {
			uc.logger.Warn("skipping undecodable scan record", zap.String("session_id", record.SessionID), zap.Error(err))
			continue
		}
		out = append(out, stored)
	}
	return out, nil
}

func (uc *ScanUseCase) recordOutcome(snap session.Snapshot) {
	opLogger := logging.WithOperation(uc.logger, "usecase.record_outcome", snap.ID)
	stored := newStoredOutcome(snap)

	payload, err := json.Marshal(stored.Outcome)
	if err != nil {
		opLogger.Error("failed to serialize outcome", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	record := &repository.ScanRecord{
		SessionID:   stored.SessionID,
		Run:         stored.Run,
		UserID:      stored.UserID,
		Kind:        string(stored.Kind),
		Label:       stored.Label,
		ImageSHA1:   stored.ImageSHA1,
		ImageOrigin: string(stored.ImageOrigin),
		ImageName:   stored.ImageName,
		Payload:     string(payload),
		CreatedAt:   stored.CreatedAt,
	}
	if err := uc.repo.SaveRecord(ctx, record); err != nil {
		opLogger.Error("failed to persist scan record", zap.Error(err))
	}

	serialized, err := json.Marshal(stored)
	if err != nil {
		opLogger.Error("failed to serialize stored outcome", zap.Error(err))
		return
	}
	if err := retry.Do(ctx, uc.logger, uc.policy, "cache.set.outcome", snap.ID, func() error {
		return uc.cache.Set(ctx, outcomeKey(snap.ID), string(serialized), outcomeCacheTTL)
	}); err != nil {
		opLogger.Error("failed to cache outcome", zap.Error(err))
	}
}

func (uc *ScanUseCase) withCacheGet(ctx context.Context, sessionID, operation, key string) (string, error) {
	var (
		result string
		miss   bool
	)
	err := retry.Do(ctx, uc.logger, uc.policy, operation, sessionID, func() error {
		value, err := uc.cache.Get(ctx, key)
		if errors.Is(err, ErrCacheMiss) {
			miss = true
			return nil
		}
		if err != nil {
			return err
		}
		result = value
		return nil
	})
	switch {
	case err != nil:
		return "", err
	case miss:
		return "", ErrCacheMiss
	}
	return result, nil
}

func outcomeKey(sessionID string) string {
	return fmt.Sprintf("scan:%s", sessionID)
}

func newStoredOutcome(snap session.Snapshot) *StoredOutcome {
	stored := &StoredOutcome{
		SessionID: snap.ID,
		UserID:    snap.Owner,
		Run:       snap.Run,
		Kind:      snap.Kind,
		Label:     snap.Outcome.Label(),
		Outcome:   snap.Outcome,
		CreatedAt: snap.UpdatedAt.UTC(),
	}
	if snap.Asset != nil {
		stored.ImageSHA1 = snap.Asset.SHA1
		stored.ImageOrigin = snap.Asset.Origin
		stored.ImageName = snap.Asset.Name
	}
	return stored
}

func storedFromRecord(record *repository.ScanRecord) (*StoredOutcome, error) {
	var out outcome.Outcome
	if err := json.Unmarshal([]byte(record.Payload), &out); err != nil {
		return nil, fmt.Errorf("decode outcome payload: %w", err)
	}
	return &StoredOutcome{
		SessionID:   record.SessionID,
		UserID:      record.UserID,
		Run:         record.Run,
		Kind:        outcome.Kind(record.Kind),
		Label:       record.Label,
		Outcome:     &out,
		ImageSHA1:   record.ImageSHA1,
		ImageOrigin: intake.Origin(record.ImageOrigin),
		ImageName:   record.ImageName,
		CreatedAt:   record.CreatedAt,
	}, nil
}
