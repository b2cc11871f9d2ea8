package consensus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/VeriFact/VF-Backend/internal/engine"
	"github.com/VeriFact/VF-Backend/internal/logger"
	"github.com/VeriFact/VF-Backend/internal/trust"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// errVersionConflict aborts the transaction when a concurrent writer bumped
// the votable's version first; CastVote retries the whole read-modify-write.
var errVersionConflict = errors.New("votable version conflict")

const castRetries = 3

// Service is the weighted consensus aggregator, generic over every votable
// kind registered with it.
type Service struct {
	db    *gorm.DB
	log   *logger.Logger
	trust *trust.Service

	mu       sync.RWMutex
	policies map[Kind]Policy
}

func NewService(db *gorm.DB, log *logger.Logger, trustSvc *trust.Service) *Service {
	return &Service{
		db:       db,
		log:      log.With("component", "consensus"),
		trust:    trustSvc,
		policies: make(map[Kind]Policy),
	}
}

// RegisterPolicy binds a kind to its thresholds and hooks. Called once per
// kind during wiring, before any votes flow.
func (s *Service) RegisterPolicy(kind Kind, pol Policy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policies[kind] = pol
}

func (s *Service) PolicyFor(kind Kind) (Policy, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pol, ok := s.policies[kind]
	return pol, ok
}

// Create inserts a new votable in PENDING. Joins the caller's transaction
// when tx is non-nil.
func (s *Service) Create(ctx context.Context, tx *gorm.DB, kind Kind, authorID string) (*Votable, error) {
	t := tx
	if t == nil {
		t = s.db
	}
	v := Votable{
		ID:       uuid.NewString(),
		Kind:     kind,
		AuthorID: authorID,
		Status:   StatusPending,
	}
	if err := t.WithContext(ctx).Create(&v).Error; err != nil {
		return nil, err
	}
	return &v, nil
}

// Get loads a votable or reports ErrNotFound.
func (s *Service) Get(ctx context.Context, tx *gorm.DB, id string) (*Votable, error) {
	t := tx
	if t == nil {
		t = s.db
	}
	var v Votable
	if err := t.WithContext(ctx).First(&v, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("votable %s: %w", id, engine.ErrNotFound)
		}
		return nil, err
	}
	return &v, nil
}

// CastVote validates the voter, upserts their vote, recomputes the weighted
// score from the full vote set and applies the transition rules. Losing a
// version race retries the whole transaction a bounded number of times.
func (s *Service) CastVote(ctx context.Context, voterID, votableID string, value int) (*Votable, error) {
	if value != 1 && value != -1 {
		return nil, fmt.Errorf("vote value must be +1 or -1: %w", engine.ErrInvalidState)
	}

	for attempt := 0; attempt < castRetries; attempt++ {
		var out *Votable
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			weight, voter, err := s.trust.WeightFor(ctx, tx, voterID)
			if err != nil {
				return err
			}
			if voter.BanLevel > 0 {
				return fmt.Errorf("user %s is banned: %w", voterID, engine.ErrUnauthorized)
			}

			v, err := s.Get(ctx, tx, votableID)
			if err != nil {
				return err
			}
			pol, ok := s.PolicyFor(v.Kind)
			if !ok {
				return fmt.Errorf("no policy for kind %s: %w", v.Kind, engine.ErrInvalidState)
			}
			if !Open(v.Status) {
				return fmt.Errorf("subject is %s and not accepting votes: %w", v.Status, engine.ErrInvalidState)
			}
			if !pol.AllowSelfVote && v.AuthorID == voterID {
				return fmt.Errorf("authors may not vote on their own subject: %w", engine.ErrUnauthorized)
			}

			vote := Vote{
				ID:        uuid.NewString(),
				VotableID: v.ID,
				VoterID:   voterID,
				Value:     value,
				Weight:    weight,
			}
			if err := tx.WithContext(ctx).Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "votable_id"}, {Name: "voter_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"value", "weight", "updated_at"}),
			}).Create(&vote).Error; err != nil {
				return err
			}

			score, count, err := s.recompute(ctx, tx, v.ID)
			if err != nil {
				return err
			}
			if err := s.apply(ctx, tx, v, pol, score, count, evaluate(pol, count, score, v.Status)); err != nil {
				return err
			}
			if err := s.trust.Touch(ctx, tx, voterID, time.Now()); err != nil {
				return err
			}
			out = v
			return nil
		})
		if errors.Is(err, errVersionConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return out, nil
	}
	return nil, fmt.Errorf("vote contention on %s, retries exhausted: %w", votableID, engine.ErrInvalidState)
}

// RemoveVote withdraws a voter's vote and recomputes the score. A resolved
// subject keeps its status no matter how the score moves; only the veto
// workflow can un-resolve it.
func (s *Service) RemoveVote(ctx context.Context, voterID, votableID string) (*Votable, error) {
	for attempt := 0; attempt < castRetries; attempt++ {
		var out *Votable
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			v, err := s.Get(ctx, tx, votableID)
			if err != nil {
				return err
			}

			var vote Vote
			if err := tx.WithContext(ctx).
				First(&vote, "votable_id = ? AND voter_id = ?", votableID, voterID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("no vote by %s on %s: %w", voterID, votableID, engine.ErrNotFound)
				}
				return err
			}
			if err := tx.WithContext(ctx).Delete(&vote).Error; err != nil {
				return err
			}

			score, count, err := s.recompute(ctx, tx, v.ID)
			if err != nil {
				return err
			}

			newStatus := v.Status
			pol, ok := s.PolicyFor(v.Kind)
			if ok && Open(v.Status) {
				newStatus = evaluate(pol, count, score, v.Status)
			}
			if err := s.apply(ctx, tx, v, pol, score, count, newStatus); err != nil {
				return err
			}
			out = v
			return nil
		})
		if errors.Is(err, errVersionConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return out, nil
	}
	return nil, fmt.Errorf("vote contention on %s, retries exhausted: %w", votableID, engine.ErrInvalidState)
}

// Resolve forces an open votable to its policy's positive or negative
// status, running the same reward and hook path as a threshold resolution.
// Used for moderator decisions such as processing a veto.
func (s *Service) Resolve(ctx context.Context, votableID string, outcome Outcome) (*Votable, error) {
	var out *Votable
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		v, err := s.Get(ctx, tx, votableID)
		if err != nil {
			return err
		}
		pol, ok := s.PolicyFor(v.Kind)
		if !ok {
			return fmt.Errorf("no policy for kind %s: %w", v.Kind, engine.ErrInvalidState)
		}
		if !Open(v.Status) {
			return fmt.Errorf("subject is already %s: %w", v.Status, engine.ErrInvalidState)
		}

		score, count, err := s.recompute(ctx, tx, v.ID)
		if err != nil {
			return err
		}
		target := pol.Positive
		if outcome == OutcomeNegative {
			target = pol.Negative
		}
		if err := s.apply(ctx, tx, v, pol, score, count, target); err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// Close freezes an open votable at CONCLUDED without declaring an outcome
// and without rewards or hooks. Debate conclusions use it to lock tallies.
func (s *Service) Close(ctx context.Context, tx *gorm.DB, votableID string) error {
	t := tx
	if t == nil {
		t = s.db
	}
	res := t.WithContext(ctx).Model(&Votable{}).
		Where("id = ? AND status IN ?", votableID, []Status{StatusPending, StatusDisputed}).
		Updates(map[string]interface{}{
			"status":  StatusConcluded,
			"version": gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("votable %s is not open: %w", votableID, engine.ErrInvalidState)
	}
	return nil
}

// SetStatus moves a votable to an arbitrary status, bumping its version.
// Reserved for challenge workflows (veto review and reversal); regular
// transitions go through CastVote/Resolve.
func (s *Service) SetStatus(ctx context.Context, tx *gorm.DB, votableID string, status Status) error {
	t := tx
	if t == nil {
		t = s.db
	}
	res := t.WithContext(ctx).Model(&Votable{}).
		Where("id = ?", votableID).
		Updates(map[string]interface{}{
			"status":  status,
			"version": gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("votable %s: %w", votableID, engine.ErrNotFound)
	}
	return nil
}

// Tally returns the raw up/down vote counts for a votable, ignoring
// weights. Debate conclusions compare sides by headcount.
func (s *Service) Tally(ctx context.Context, votableID string) (up, down int, err error) {
	var rows []Vote
	if err := s.db.WithContext(ctx).Where("votable_id = ?", votableID).Find(&rows).Error; err != nil {
		return 0, 0, err
	}
	for _, r := range rows {
		if r.Value > 0 {
			up++
		} else {
			down++
		}
	}
	return up, down, nil
}

// VotesFor returns the current (upserted) vote set for a votable.
func (s *Service) VotesFor(ctx context.Context, votableID string) ([]Vote, error) {
	var rows []Vote
	err := s.db.WithContext(ctx).Where("votable_id = ?", votableID).Find(&rows).Error
	return rows, err
}

// recompute derives the weighted score and vote count from the full vote
// set. The score is rounded to the engine's fixed precision.
func (s *Service) recompute(ctx context.Context, tx *gorm.DB, votableID string) (float64, int, error) {
	var row struct {
		Score float64
		Total int64
	}
	err := tx.WithContext(ctx).Model(&Vote{}).
		Select("COALESCE(SUM(value * weight), 0) AS score, COUNT(*) AS total").
		Where("votable_id = ?", votableID).
		Scan(&row).Error
	if err != nil {
		return 0, 0, err
	}
	return trust.Round(row.Score), int(row.Total), nil
}

// apply writes the recomputed aggregate and new status behind the version
// guard, then fires resolution side effects exactly once, on the
// open→resolved transition.
func (s *Service) apply(ctx context.Context, tx *gorm.DB, v *Votable, pol Policy, score float64, count int, newStatus Status) error {
	resolving := Open(v.Status) && (newStatus == pol.Positive || newStatus == pol.Negative)
	disputing := newStatus == pol.Disputed && v.Status != pol.Disputed

	updates := map[string]interface{}{
		"weighted_score": score,
		"vote_count":     count,
		"status":         newStatus,
		"version":        v.Version + 1,
	}
	if resolving {
		updates["resolved_at"] = time.Now()
	}

	res := tx.WithContext(ctx).Model(&Votable{}).
		Where("id = ? AND version = ?", v.ID, v.Version).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errVersionConflict
	}

	v.WeightedScore = score
	v.VoteCount = count
	v.Status = newStatus
	v.Version++

	if resolving {
		outcome := OutcomePositive
		if newStatus == pol.Negative {
			outcome = OutcomeNegative
		}
		if err := s.reward(ctx, tx, v, pol, outcome); err != nil {
			return err
		}
		if pol.OnResolved != nil {
			if err := pol.OnResolved(ctx, tx, v, outcome); err != nil {
				return err
			}
		}
		s.log.Info("votable resolved",
			"votable_id", v.ID, "kind", v.Kind, "status", newStatus, "score", score, "votes", count)
	}
	if disputing && pol.OnDisputed != nil {
		if err := pol.OnDisputed(ctx, tx, v); err != nil {
			return err
		}
	}
	return nil
}

// reward applies the resolution-time trust deltas: the author's approve or
// reject delta per policy, and one VERIFICATION_* delta per voter depending
// on which side they ended up on. These fire once, here, never per-vote.
func (s *Service) reward(ctx context.Context, tx *gorm.DB, v *Votable, pol Policy, outcome Outcome) error {
	authorReason := pol.AuthorApprovedReason
	if outcome == OutcomeNegative {
		authorReason = pol.AuthorRejectedReason
	}
	if authorReason != "" && v.AuthorID != "" {
		if _, err := s.trust.ApplyDelta(ctx, tx, v.AuthorID, authorReason); err != nil {
			return err
		}
	}

	if !pol.RewardVoters {
		return nil
	}
	votes, err := s.votesTx(ctx, tx, v.ID)
	if err != nil {
		return err
	}
	for _, vote := range votes {
		correct := (vote.Value > 0) == (outcome == OutcomePositive)
		reason := trust.ReasonVerificationWrong
		if correct {
			reason = trust.ReasonVerificationCorrect
		}
		if _, err := s.trust.ApplyDelta(ctx, tx, vote.VoterID, reason); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) votesTx(ctx context.Context, tx *gorm.DB, votableID string) ([]Vote, error) {
	var rows []Vote
	err := tx.WithContext(ctx).Where("votable_id = ?", votableID).Find(&rows).Error
	return rows, err
}
