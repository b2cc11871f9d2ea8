package fact

import (
	"context"
	"errors"
	"fmt"

	"github.com/VeriFact/VF-Backend/internal/config"
	"github.com/VeriFact/VF-Backend/internal/consensus"
	"github.com/VeriFact/VF-Backend/internal/engine"
	"github.com/VeriFact/VF-Backend/internal/logger"
	"github.com/VeriFact/VF-Backend/internal/moderation"
	"github.com/VeriFact/VF-Backend/internal/notify"
	"github.com/VeriFact/VF-Backend/internal/trust"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service owns fact submission and the fact consensus policy: PROVEN /
// DISPROVEN resolutions with author and voter trust deltas, and a
// moderation-queue entry whenever a fact lands in the disputed band.
type Service struct {
	db       *gorm.DB
	log      *logger.Logger
	cons     *consensus.Service
	trust    *trust.Service
	queue    *moderation.QueueService
	dispatch notify.Dispatcher
}

type SubmitInput struct {
	Title      string   `json:"title"`
	Statement  string   `json:"statement"`
	Sources    []string `json:"sources"`
	CategoryID string   `json:"category_id,omitempty"`
}

func NewService(db *gorm.DB, log *logger.Logger, cons *consensus.Service, trustSvc *trust.Service,
	queue *moderation.QueueService, dispatch notify.Dispatcher, cfg config.Thresholds) *Service {

	s := &Service{
		db:       db,
		log:      log.With("component", "fact"),
		cons:     cons,
		trust:    trustSvc,
		queue:    queue,
		dispatch: dispatch,
	}
	cons.RegisterPolicy(consensus.KindFact, consensus.Policy{
		Thresholds:           cfg,
		Positive:             consensus.StatusProven,
		Negative:             consensus.StatusDisproven,
		Disputed:             consensus.StatusDisputed,
		AutoResolve:          true,
		AllowSelfVote:        false,
		RewardVoters:         true,
		AuthorApprovedReason: trust.ReasonFactApproved,
		AuthorRejectedReason: trust.ReasonFactWrong,
		OnResolved:           s.onResolved,
		OnDisputed:           s.onDisputed,
	})
	return s
}

// Submit validates and stores a new fact with its PENDING votable.
func (s *Service) Submit(ctx context.Context, authorID string, in SubmitInput) (*Fact, error) {
	if in.Title == "" {
		return nil, fmt.Errorf("fact title is required: %w", engine.ErrInvalidState)
	}
	if in.Statement == "" {
		return nil, fmt.Errorf("fact statement is required: %w", engine.ErrInvalidState)
	}
	if len(in.Sources) == 0 {
		return nil, fmt.Errorf("at least one source is required: %w", engine.ErrInvalidState)
	}

	var f *Fact
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		author, err := s.trust.Get(ctx, tx, authorID)
		if err != nil {
			return err
		}
		if author.BanLevel > 0 {
			return fmt.Errorf("user %s is banned: %w", authorID, engine.ErrUnauthorized)
		}

		v, err := s.cons.Create(ctx, tx, consensus.KindFact, authorID)
		if err != nil {
			return err
		}

		f = &Fact{
			ID:        uuid.NewString(),
			VotableID: v.ID,
			AuthorID:  authorID,
			Title:     in.Title,
			Statement: in.Statement,
			Sources:   in.Sources,
		}
		if in.CategoryID != "" {
			f.CategoryID = &in.CategoryID
		}
		return tx.Create(f).Error
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("fact submitted", "fact_id", f.ID, "author_id", authorID)
	return f, nil
}

// Get loads a fact or reports ErrNotFound.
func (s *Service) Get(ctx context.Context, factID string) (*Fact, error) {
	var f Fact
	if err := s.db.WithContext(ctx).First(&f, "id = ?", factID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("fact %s: %w", factID, engine.ErrNotFound)
		}
		return nil, err
	}
	return &f, nil
}

// GetByVotable resolves the fact behind a votable id.
func (s *Service) GetByVotable(ctx context.Context, tx *gorm.DB, votableID string) (*Fact, error) {
	t := tx
	if t == nil {
		t = s.db
	}
	var f Fact
	if err := t.WithContext(ctx).First(&f, "votable_id = ?", votableID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("fact for votable %s: %w", votableID, engine.ErrNotFound)
		}
		return nil, err
	}
	return &f, nil
}

// onResolved notifies the author of the fact's final status. Trust deltas
// were already applied by the aggregator per policy.
func (s *Service) onResolved(ctx context.Context, tx *gorm.DB, v *consensus.Votable, outcome consensus.Outcome) error {
	f, err := s.GetByVotable(ctx, tx, v.ID)
	if err != nil {
		return err
	}
	msg := "Your fact was proven by community consensus"
	if outcome == consensus.OutcomeNegative {
		msg = "Your fact was disproven by community consensus"
	}
	if derr := s.dispatch.Dispatch(ctx, f.AuthorID, notify.TypeFactResolved, msg, map[string]string{
		"fact_id": f.ID,
		"status":  string(v.Status),
	}); derr != nil {
		s.log.Warn("fact resolution notification failed", "fact_id", f.ID, "err", derr)
	}
	return nil
}

// onDisputed opens a moderation-queue entry so a moderator can triage the
// contested fact.
func (s *Service) onDisputed(ctx context.Context, tx *gorm.DB, v *consensus.Votable) error {
	f, err := s.GetByVotable(ctx, tx, v.ID)
	if err != nil {
		return err
	}
	_, err = s.queue.EnqueueTx(ctx, tx, "", "fact", f.ID, "Fact is disputed by weighted consensus", 1)
	return err
}
