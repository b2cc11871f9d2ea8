package moderation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/VeriFact/VF-Backend/internal/config"
	"github.com/VeriFact/VF-Backend/internal/engine"
	"github.com/VeriFact/VF-Backend/internal/logger"
	"github.com/VeriFact/VF-Backend/internal/notify"
	"github.com/VeriFact/VF-Backend/internal/trust"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RosterService manages who holds the MODERATOR category: eligibility,
// periodic auto-election, and inactivity-driven demotion with backfill.
// The mutex is the process-wide lock the external scheduler relies on so
// overlapping runs cannot double-promote or double-demote.
type RosterService struct {
	db       *gorm.DB
	log      *logger.Logger
	dispatch notify.Dispatcher
	cfg      config.Moderator
	clock    engine.Clock

	mu sync.Mutex
}

func NewRosterService(db *gorm.DB, log *logger.Logger, dispatch notify.Dispatcher, cfg config.Moderator, clock engine.Clock) *RosterService {
	return &RosterService{
		db:       db,
		log:      log.With("component", "moderation.roster"),
		dispatch: dispatch,
		cfg:      cfg,
		clock:    clock,
	}
}

// IsEligible reports whether a user can be promoted: enough trust, old
// enough account, not banned, not an organization, not already a moderator.
func (s *RosterService) IsEligible(u *trust.User, now time.Time) bool {
	if u.Category == trust.CategoryOrganization || u.Category == trust.CategoryModerator {
		return false
	}
	if u.BanLevel > 0 {
		return false
	}
	if u.TrustScore < s.cfg.MinTrustScore {
		return false
	}
	minAge := time.Duration(s.cfg.MinAccountAgeDays) * 24 * time.Hour
	return now.Sub(u.CreatedAt) >= minAge
}

// Appoint promotes a user to moderator. Appointing an existing moderator
// is a no-op error (ErrDuplicate); organizations are hard-rejected here,
// not just at election time.
func (s *RosterService) Appoint(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var promoted string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		promoted, err = s.appointTx(ctx, tx, userID)
		return err
	})
	if err != nil {
		return err
	}
	s.notifyStatus(ctx, promoted, "You have been appointed moderator")
	return nil
}

// Demote strips the MODERATOR category and restores the user's prior one.
// Demoting a non-moderator is a no-op error, not a crash.
func (s *RosterService) Demote(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.demoteTx(ctx, tx, userID)
	})
	if err != nil {
		return err
	}
	s.notifyStatus(ctx, userID, "You are no longer a moderator")
	return nil
}

// RunAutoElection fills vacant seats from the eligible pool, ranked by
// trust score descending with the oldest account winning ties. Returns the
// promoted user ids.
func (s *RosterService) RunAutoElection(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var promoted []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		promoted, err = s.electTx(ctx, tx, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	for _, id := range promoted {
		s.notifyStatus(ctx, id, "You have been elected moderator")
	}
	return promoted, nil
}

// HandleInactiveModerators demotes moderators idle past the configured
// window, then immediately backfills the vacated seats from the eligible
// pool. Both phases run under the same lock and transaction.
func (s *RosterService) HandleInactiveModerators(ctx context.Context) (demoted, promoted []string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cutoff := s.clock.Now().Add(-time.Duration(s.cfg.InactivityDays) * 24 * time.Hour)

		var stale []trust.User
		if err := tx.Where("category = ? AND last_active_at < ?", trust.CategoryModerator, cutoff).
			Find(&stale).Error; err != nil {
			return err
		}
		for _, m := range stale {
			if err := s.demoteTx(ctx, tx, m.ID); err != nil {
				return err
			}
			demoted = append(demoted, m.ID)
		}

		// Freshly demoted moderators sit the backfill out even when they
		// still meet the bar.
		var err error
		promoted, err = s.electTx(ctx, tx, demoted)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	for _, id := range demoted {
		s.notifyStatus(ctx, id, "You were demoted for inactivity")
	}
	for _, id := range promoted {
		s.notifyStatus(ctx, id, "You have been elected moderator")
	}
	return demoted, promoted, nil
}

// appointTx is the transactional body of a promotion.
func (s *RosterService) appointTx(ctx context.Context, tx *gorm.DB, userID string) (string, error) {
	var u trust.User
	if err := tx.WithContext(ctx).First(&u, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", fmt.Errorf("user %s: %w", userID, engine.ErrNotFound)
		}
		return "", err
	}
	if u.Category == trust.CategoryOrganization {
		return "", fmt.Errorf("organizations cannot hold the moderator category: %w", engine.ErrUnauthorized)
	}
	if u.Category == trust.CategoryModerator {
		return "", fmt.Errorf("user %s is already a moderator: %w", userID, engine.ErrDuplicate)
	}

	entry := RosterEntry{
		ID:            uuid.NewString(),
		UserID:        u.ID,
		PriorCategory: u.Category,
		AppointedAt:   s.clock.Now(),
	}
	if err := tx.WithContext(ctx).Create(&entry).Error; err != nil {
		return "", err
	}
	if err := tx.WithContext(ctx).Model(&trust.User{}).
		Where("id = ?", u.ID).
		Update("category", trust.CategoryModerator).Error; err != nil {
		return "", err
	}
	s.log.Info("moderator appointed", "user_id", u.ID, "prior_category", entry.PriorCategory)
	return u.ID, nil
}

// demoteTx is the transactional body of a demotion.
func (s *RosterService) demoteTx(ctx context.Context, tx *gorm.DB, userID string) error {
	var u trust.User
	if err := tx.WithContext(ctx).First(&u, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("user %s: %w", userID, engine.ErrNotFound)
		}
		return err
	}
	if u.Category != trust.CategoryModerator {
		return fmt.Errorf("user %s is not a moderator: %w", userID, engine.ErrInvalidState)
	}

	prior := trust.CategoryVerified
	var entry RosterEntry
	err := tx.WithContext(ctx).
		Where("user_id = ? AND demoted_at IS NULL", userID).
		Order("appointed_at DESC").
		First(&entry).Error
	if err == nil {
		prior = entry.PriorCategory
		now := s.clock.Now()
		if err := tx.WithContext(ctx).Model(&RosterEntry{}).
			Where("id = ?", entry.ID).
			Update("demoted_at", now).Error; err != nil {
			return err
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	if err := tx.WithContext(ctx).Model(&trust.User{}).
		Where("id = ?", userID).
		Update("category", prior).Error; err != nil {
		return err
	}
	s.log.Info("moderator demoted", "user_id", userID, "restored_category", prior)
	return nil
}

// electTx promotes enough eligible candidates to fill the roster up to
// MaxModerators. Ranking: trust score descending, tie-break on the earliest
// account creation time.
func (s *RosterService) electTx(ctx context.Context, tx *gorm.DB, exclude []string) ([]string, error) {
	var active int64
	if err := tx.WithContext(ctx).Model(&trust.User{}).
		Where("category = ?", trust.CategoryModerator).
		Count(&active).Error; err != nil {
		return nil, err
	}
	seats := s.cfg.MaxModerators - int(active)
	if seats <= 0 {
		return nil, nil
	}

	minAge := s.clock.Now().Add(-time.Duration(s.cfg.MinAccountAgeDays) * 24 * time.Hour)
	q := tx.WithContext(ctx).
		Where("category NOT IN ?", []trust.Category{trust.CategoryOrganization, trust.CategoryModerator}).
		Where("ban_level = 0 AND trust_score >= ? AND created_at <= ?", s.cfg.MinTrustScore, minAge)
	if len(exclude) > 0 {
		q = q.Where("id NOT IN ?", exclude)
	}
	var candidates []trust.User
	if err := q.
		Order("trust_score DESC, created_at ASC").
		Limit(seats).
		Find(&candidates).Error; err != nil {
		return nil, err
	}

	promoted := make([]string, 0, len(candidates))
	for _, c := range candidates {
		id, err := s.appointTx(ctx, tx, c.ID)
		if err != nil {
			return nil, err
		}
		promoted = append(promoted, id)
	}
	return promoted, nil
}

func (s *RosterService) notifyStatus(ctx context.Context, userID, message string) {
	if err := s.dispatch.Dispatch(ctx, userID, notify.TypeModeratorStatus, message, nil); err != nil {
		s.log.Warn("moderator status notification failed", "user_id", userID, "err", err)
	}
}
