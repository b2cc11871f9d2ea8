package trust

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/VeriFact/VF-Backend/internal/engine"
	"github.com/VeriFact/VF-Backend/internal/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// scoreRetries bounds the retry loop when concurrent writers contend on
// the same user's trust score.
const scoreRetries = 3

// Service owns every trust-score mutation. Nothing else in the engine
// writes trust_score directly.
type Service struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewService(db *gorm.DB, log *logger.Logger) *Service {
	return &Service{db: db, log: log.With("component", "trust")}
}

// Get loads a user or reports ErrNotFound.
func (s *Service) Get(ctx context.Context, tx *gorm.DB, userID string) (*User, error) {
	t := tx
	if t == nil {
		t = s.db
	}
	var u User
	if err := t.WithContext(ctx).First(&u, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user %s: %w", userID, engine.ErrNotFound)
		}
		return nil, err
	}
	return &u, nil
}

// ApplyDelta adds the reason's canonical delta to the user's trust score,
// clamps the result, and appends an audit entry. The write is guarded by
// the score it was computed from and retried on contention, so two
// resolutions rewarding the same user at once cannot lose a delta or log
// an inconsistent ScoreAfter. The clamp never errors: the requested delta
// is recorded, the stored score saturates. When tx is non-nil the mutation
// joins the caller's transaction.
func (s *Service) ApplyDelta(ctx context.Context, tx *gorm.DB, userID string, reason Reason) (*User, error) {
	run := func(t *gorm.DB) (*User, error) {
		delta := Delta(reason)
		for attempt := 0; attempt < scoreRetries; attempt++ {
			u, err := s.Get(ctx, t, userID)
			if err != nil {
				return nil, err
			}
			next := Clamp(u.TrustScore + delta)

			res := t.WithContext(ctx).Model(&User{}).
				Where("id = ? AND trust_score = ?", u.ID, u.TrustScore).
				Update("trust_score", next)
			if res.Error != nil {
				return nil, res.Error
			}
			if res.RowsAffected == 0 {
				// A concurrent writer moved the score; re-read and recompute.
				continue
			}
			u.TrustScore = next

			entry := History{
				ID:         uuid.NewString(),
				UserID:     u.ID,
				Delta:      delta,
				Reason:     reason,
				ScoreAfter: u.TrustScore,
			}
			if err := t.WithContext(ctx).Create(&entry).Error; err != nil {
				return nil, err
			}

			s.log.Debug("trust delta applied",
				"user_id", u.ID, "reason", reason, "delta", delta, "score", u.TrustScore)
			return u, nil
		}
		return nil, fmt.Errorf("trust score contention for user %s, retries exhausted: %w", userID, engine.ErrInvalidState)
	}

	if tx != nil {
		return run(tx)
	}

	var out *User
	err := s.db.WithContext(ctx).Transaction(func(t *gorm.DB) error {
		var err error
		out, err = run(t)
		return err
	})
	return out, err
}

// Touch bumps the user's activity timestamp. Roster inactivity checks read
// it; losing one bump is harmless, so no transaction is required.
func (s *Service) Touch(ctx context.Context, tx *gorm.DB, userID string, now time.Time) error {
	t := tx
	if t == nil {
		t = s.db
	}
	return t.WithContext(ctx).Model(&User{}).
		Where("id = ?", userID).
		Update("last_active_at", now).Error
}

// WeightFor resolves the user's current vote weight along with the user
// row, so vote casting can run its ban checks on the same read.
func (s *Service) WeightFor(ctx context.Context, tx *gorm.DB, userID string) (float64, *User, error) {
	u, err := s.Get(ctx, tx, userID)
	if err != nil {
		return 0, nil, err
	}
	return VoteWeight(u.Category, u.TrustScore), u, nil
}

// HistoryFor returns the audit log for a user, newest first.
func (s *Service) HistoryFor(ctx context.Context, userID string) ([]History, error) {
	var entries []History
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&entries).Error
	return entries, err
}
