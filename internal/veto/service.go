package veto

import (
	"context"
	"errors"
	"fmt"

	"github.com/VeriFact/VF-Backend/internal/config"
	"github.com/VeriFact/VF-Backend/internal/consensus"
	"github.com/VeriFact/VF-Backend/internal/engine"
	"github.com/VeriFact/VF-Backend/internal/logger"
	"github.com/VeriFact/VF-Backend/internal/notify"
	"github.com/VeriFact/VF-Backend/internal/trust"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service orchestrates the veto challenge workflow: a secondary consensus
// round that can reverse a resolved-positive subject. While a veto is open
// the parent sits in UNDER_VETO_REVIEW and takes no direct votes.
type Service struct {
	db       *gorm.DB
	log      *logger.Logger
	cons     *consensus.Service
	trust    *trust.Service
	dispatch notify.Dispatcher
}

func NewService(db *gorm.DB, log *logger.Logger, cons *consensus.Service, trustSvc *trust.Service,
	dispatch notify.Dispatcher, cfg config.Thresholds) *Service {

	s := &Service{
		db:       db,
		log:      log.With("component", "veto"),
		cons:     cons,
		trust:    trustSvc,
		dispatch: dispatch,
	}
	cons.RegisterPolicy(consensus.KindVeto, consensus.Policy{
		Thresholds:    cfg,
		Positive:      consensus.StatusApproved,
		Negative:      consensus.StatusRejected,
		Disputed:      consensus.StatusDisputed,
		AutoResolve:   true,
		AllowSelfVote: false,
		RewardVoters:  false,
		OnResolved:    s.onResolved,
	})
	return s
}

// Submit opens a veto against a resolved-positive subject. Fails when the
// subject is in the wrong state or already carries an active veto.
func (s *Service) Submit(ctx context.Context, submitterID, parentVotableID, reason string, sources []string) (*Veto, error) {
	if reason == "" {
		return nil, fmt.Errorf("veto reason is required: %w", engine.ErrInvalidState)
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("at least one source is required: %w", engine.ErrInvalidState)
	}

	var out *Veto
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		submitter, err := s.trust.Get(ctx, tx, submitterID)
		if err != nil {
			return err
		}
		if submitter.BanLevel > 0 {
			return fmt.Errorf("user %s is banned: %w", submitterID, engine.ErrUnauthorized)
		}

		parent, err := s.cons.Get(ctx, tx, parentVotableID)
		if err != nil {
			return err
		}
		if parent.Kind == consensus.KindVeto {
			return fmt.Errorf("a veto cannot be vetoed: %w", engine.ErrInvalidState)
		}
		parentPol, ok := s.cons.PolicyFor(parent.Kind)
		if !ok {
			return fmt.Errorf("no policy for kind %s: %w", parent.Kind, engine.ErrInvalidState)
		}
		if parent.Status != parentPol.Positive {
			return fmt.Errorf("subject is %s, only positively-resolved subjects can be vetoed: %w",
				parent.Status, engine.ErrInvalidState)
		}

		// At most one active veto per subject; a pending veto by anyone
		// blocks, the submitter's own pending veto doubly so.
		var active int64
		if err := tx.WithContext(ctx).Model(&Veto{}).
			Joins("JOIN votables ON votables.id = vetoes.votable_id").
			Where("vetoes.parent_votable_id = ?", parent.ID).
			Where("votables.status IN ?", []consensus.Status{consensus.StatusPending, consensus.StatusDisputed}).
			Count(&active).Error; err != nil {
			return err
		}
		if active > 0 {
			return fmt.Errorf("subject already has an active veto: %w", engine.ErrDuplicate)
		}

		v, err := s.cons.Create(ctx, tx, consensus.KindVeto, submitterID)
		if err != nil {
			return err
		}
		out = &Veto{
			ID:              uuid.NewString(),
			VotableID:       v.ID,
			ParentVotableID: parent.ID,
			SubmitterID:     submitterID,
			Reason:          reason,
			Sources:         sources,
		}
		if err := tx.WithContext(ctx).Create(out).Error; err != nil {
			return err
		}
		return s.cons.SetStatus(ctx, tx, parent.ID, consensus.StatusUnderVetoReview)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("veto submitted", "veto_id", out.ID, "parent_votable_id", parentVotableID, "submitter_id", submitterID)
	parent, perr := s.cons.Get(ctx, nil, parentVotableID)
	if perr == nil && parent.AuthorID != "" {
		if derr := s.dispatch.Dispatch(ctx, parent.AuthorID, notify.TypeVetoSubmitted,
			"Your resolved fact is under veto review", map[string]string{"veto_id": out.ID}); derr != nil {
			s.log.Warn("veto submission notification failed", "veto_id", out.ID, "err", derr)
		}
	}
	return out, nil
}

// Process is the manual moderator decision on an open veto, routed through
// the aggregator's resolve path so the standard reversal side effects run.
func (s *Service) Process(ctx context.Context, moderatorID, vetoID string, approve bool) (*Veto, error) {
	mod, err := s.trust.Get(ctx, nil, moderatorID)
	if err != nil {
		return nil, err
	}
	if mod.Category != trust.CategoryModerator {
		return nil, fmt.Errorf("user %s is not a moderator: %w", moderatorID, engine.ErrUnauthorized)
	}

	v, err := s.Get(ctx, vetoID)
	if err != nil {
		return nil, err
	}
	outcome := consensus.OutcomeNegative
	if approve {
		outcome = consensus.OutcomePositive
	}
	if _, err := s.cons.Resolve(ctx, v.VotableID, outcome); err != nil {
		return nil, err
	}
	return v, nil
}

// Get loads a veto or reports ErrNotFound.
func (s *Service) Get(ctx context.Context, vetoID string) (*Veto, error) {
	var v Veto
	if err := s.db.WithContext(ctx).First(&v, "id = ?", vetoID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("veto %s: %w", vetoID, engine.ErrNotFound)
		}
		return nil, err
	}
	return &v, nil
}

// GetByVotable resolves the veto behind its consensus subject.
func (s *Service) GetByVotable(ctx context.Context, tx *gorm.DB, votableID string) (*Veto, error) {
	t := tx
	if t == nil {
		t = s.db
	}
	var v Veto
	if err := t.WithContext(ctx).First(&v, "votable_id = ?", votableID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("veto for votable %s: %w", votableID, engine.ErrNotFound)
		}
		return nil, err
	}
	return &v, nil
}

// onResolved runs inside the veto's resolving transaction. APPROVED flips
// the parent to its negative resolution and rewards the submitter;
// REJECTED restores the parent's positive resolution and penalizes the
// submitter.
func (s *Service) onResolved(ctx context.Context, tx *gorm.DB, v *consensus.Votable, outcome consensus.Outcome) error {
	vet, err := s.GetByVotable(ctx, tx, v.ID)
	if err != nil {
		return err
	}
	parent, err := s.cons.Get(ctx, tx, vet.ParentVotableID)
	if err != nil {
		return err
	}
	parentPol, ok := s.cons.PolicyFor(parent.Kind)
	if !ok {
		return fmt.Errorf("no policy for kind %s: %w", parent.Kind, engine.ErrInvalidState)
	}

	if outcome == consensus.OutcomePositive {
		if err := s.cons.SetStatus(ctx, tx, parent.ID, parentPol.Negative); err != nil {
			return err
		}
		if _, err := s.trust.ApplyDelta(ctx, tx, vet.SubmitterID, trust.ReasonSuccessfulVeto); err != nil {
			return err
		}
		if parent.AuthorID != "" {
			if _, err := s.trust.ApplyDelta(ctx, tx, parent.AuthorID, trust.ReasonFactVetoed); err != nil {
				return err
			}
		}
	} else {
		if err := s.cons.SetStatus(ctx, tx, parent.ID, parentPol.Positive); err != nil {
			return err
		}
		if _, err := s.trust.ApplyDelta(ctx, tx, vet.SubmitterID, trust.ReasonFailedVeto); err != nil {
			return err
		}
	}

	msg := "Your veto was approved, the subject has been overturned"
	if outcome == consensus.OutcomeNegative {
		msg = "Your veto was rejected, the subject stands"
	}
	if derr := s.dispatch.Dispatch(ctx, vet.SubmitterID, notify.TypeVetoResolved, msg, map[string]string{
		"veto_id": vet.ID,
		"outcome": string(outcome),
	}); derr != nil {
		s.log.Warn("veto resolution notification failed", "veto_id", vet.ID, "err", derr)
	}
	return nil
}
