package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/VeriFact/VF-Backend/internal/config"
	"github.com/VeriFact/VF-Backend/internal/consensus"
	"github.com/VeriFact/VF-Backend/internal/engine"
	"github.com/VeriFact/VF-Backend/internal/fact"
	"github.com/VeriFact/VF-Backend/internal/logger"
	"github.com/VeriFact/VF-Backend/internal/notify"
	"github.com/VeriFact/VF-Backend/internal/trust"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service manages categories and the community-voted merge workflow.
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
		log:      log.With("component", "catalog"),
		cons:     cons,
		trust:    trustSvc,
		dispatch: dispatch,
	}
	cons.RegisterPolicy(consensus.KindCategoryMerge, consensus.Policy{
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

// CreateCategory adds a new topic category.
func (s *Service) CreateCategory(ctx context.Context, title string) (*Category, error) {
	if title == "" {
		return nil, fmt.Errorf("category title is required: %w", engine.ErrInvalidState)
	}
	c := Category{ID: uuid.NewString(), Title: title}
	if err := s.db.WithContext(ctx).Create(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// GetCategory loads a category or reports ErrNotFound.
func (s *Service) GetCategory(ctx context.Context, id string) (*Category, error) {
	var c Category
	if err := s.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("category %s: %w", id, engine.ErrNotFound)
		}
		return nil, err
	}
	return &c, nil
}

// SubmitMerge opens a merge proposal. A pending proposal for the same
// source/target pair is a duplicate.
func (s *Service) SubmitMerge(ctx context.Context, requesterID, sourceID, targetID string) (*MergeRequest, error) {
	if sourceID == targetID {
		return nil, fmt.Errorf("cannot merge a category into itself: %w", engine.ErrInvalidState)
	}

	var out *MergeRequest
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		requester, err := s.trust.Get(ctx, tx, requesterID)
		if err != nil {
			return err
		}
		if requester.BanLevel > 0 {
			return fmt.Errorf("user %s is banned: %w", requesterID, engine.ErrUnauthorized)
		}

		for _, id := range []string{sourceID, targetID} {
			var c Category
			if err := tx.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("category %s: %w", id, engine.ErrNotFound)
				}
				return err
			}
			if c.Retired {
				return fmt.Errorf("category %s is retired: %w", id, engine.ErrInvalidState)
			}
		}

		var open int64
		if err := tx.WithContext(ctx).Model(&MergeRequest{}).
			Joins("JOIN votables ON votables.id = category_merge_requests.votable_id").
			Where("category_merge_requests.source_category_id = ? AND category_merge_requests.target_category_id = ?", sourceID, targetID).
			Where("votables.status IN ?", []consensus.Status{consensus.StatusPending, consensus.StatusDisputed}).
			Count(&open).Error; err != nil {
			return err
		}
		if open > 0 {
			return fmt.Errorf("merge of these categories is already proposed: %w", engine.ErrDuplicate)
		}

		v, err := s.cons.Create(ctx, tx, consensus.KindCategoryMerge, requesterID)
		if err != nil {
			return err
		}
		out = &MergeRequest{
			ID:               uuid.NewString(),
			VotableID:        v.ID,
			SourceCategoryID: sourceID,
			TargetCategoryID: targetID,
			RequesterID:      requesterID,
		}
		return tx.Create(out).Error
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("merge request submitted", "merge_id", out.ID, "source", sourceID, "target", targetID)
	return out, nil
}

// onResolved executes an approved merge inside the resolving transaction:
// facts are re-homed onto the target and the source is retired. A rejected
// merge changes nothing.
func (s *Service) onResolved(ctx context.Context, tx *gorm.DB, v *consensus.Votable, outcome consensus.Outcome) error {
	var mr MergeRequest
	if err := tx.WithContext(ctx).First(&mr, "votable_id = ?", v.ID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("merge request for votable %s: %w", v.ID, engine.ErrNotFound)
		}
		return err
	}

	if outcome == consensus.OutcomePositive {
		if err := tx.WithContext(ctx).Model(&fact.Fact{}).
			Where("category_id = ?", mr.SourceCategoryID).
			Update("category_id", mr.TargetCategoryID).Error; err != nil {
			return err
		}
		if err := tx.WithContext(ctx).Model(&Category{}).
			Where("id = ?", mr.SourceCategoryID).
			Update("retired", true).Error; err != nil {
			return err
		}
		s.log.Info("categories merged", "merge_id", mr.ID, "source", mr.SourceCategoryID, "target", mr.TargetCategoryID)
	}

	msg := "Your category merge proposal was approved"
	if outcome == consensus.OutcomeNegative {
		msg = "Your category merge proposal was rejected"
	}
	if derr := s.dispatch.Dispatch(ctx, mr.RequesterID, notify.TypeMergeResolved, msg,
		map[string]string{"merge_id": mr.ID}); derr != nil {
		s.log.Warn("merge resolution notification failed", "merge_id", mr.ID, "err", derr)
	}
	return nil
}
