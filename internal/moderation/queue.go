package moderation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/VeriFact/VF-Backend/internal/engine"
	"github.com/VeriFact/VF-Backend/internal/logger"
	"github.com/VeriFact/VF-Backend/internal/notify"
	"github.com/VeriFact/VF-Backend/internal/trust"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// QueueService runs the claim/release/resolve state machine. Claim is the
// concurrency-critical path: a conditional UPDATE guarded by the current
// status, so a losing racer observes ErrAlreadyClaimed instead of silently
// overwriting the winner's assignment.
type QueueService struct {
	db       *gorm.DB
	log      *logger.Logger
	trust    *trust.Service
	dispatch notify.Dispatcher
}

func NewQueueService(db *gorm.DB, log *logger.Logger, trustSvc *trust.Service, dispatch notify.Dispatcher) *QueueService {
	return &QueueService{
		db:       db,
		log:      log.With("component", "moderation.queue"),
		trust:    trustSvc,
		dispatch: dispatch,
	}
}

// Report files a new queue item. Subject type and id are required.
func (s *QueueService) Report(ctx context.Context, reporterID, subjectType, subjectID, detail string, priority int) (*QueueItem, error) {
	var item *QueueItem
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		item, err = s.EnqueueTx(ctx, tx, reporterID, subjectType, subjectID, detail, priority)
		return err
	})
	return item, err
}

// EnqueueTx files a queue item inside the caller's transaction. The fact
// subsystem uses it to open a dispute entry in the same transaction that
// marks the fact DISPUTED.
func (s *QueueService) EnqueueTx(ctx context.Context, tx *gorm.DB, reporterID, subjectType, subjectID, detail string, priority int) (*QueueItem, error) {
	if subjectType == "" || subjectID == "" {
		return nil, fmt.Errorf("queue item needs a subject: %w", engine.ErrInvalidState)
	}
	item := QueueItem{
		ID:          uuid.NewString(),
		SubjectType: subjectType,
		SubjectID:   subjectID,
		ReporterID:  reporterID,
		Status:      QueuePending,
		Priority:    priority,
		Detail:      detail,
	}
	if err := tx.WithContext(ctx).Create(&item).Error; err != nil {
		return nil, err
	}
	s.log.Info("queue item filed", "item_id", item.ID, "subject_type", subjectType, "subject_id", subjectID)
	return &item, nil
}

// Get loads a queue item or reports ErrNotFound.
func (s *QueueService) Get(ctx context.Context, itemID string) (*QueueItem, error) {
	var item QueueItem
	if err := s.db.WithContext(ctx).First(&item, "id = ?", itemID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("queue item %s: %w", itemID, engine.ErrNotFound)
		}
		return nil, err
	}
	return &item, nil
}

// Pending lists unclaimed items, highest priority first then oldest first.
func (s *QueueService) Pending(ctx context.Context, limit int) ([]QueueItem, error) {
	var items []QueueItem
	q := s.db.WithContext(ctx).
		Where("status = ?", QueuePending).
		Order("priority DESC, created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&items).Error
	return items, err
}

// Claim atomically assigns a PENDING item to the moderator. Exactly one of
// two concurrent claims succeeds; the loser gets ErrAlreadyClaimed (or
// ErrAlreadyResolved when the item reached a terminal status).
func (s *QueueService) Claim(ctx context.Context, itemID, moderatorID string) (*QueueItem, error) {
	if err := s.requireModerator(ctx, moderatorID); err != nil {
		return nil, err
	}

	res := s.db.WithContext(ctx).Model(&QueueItem{}).
		Where("id = ? AND status = ?", itemID, QueuePending).
		Updates(map[string]interface{}{
			"status":         QueueInProgress,
			"assigned_to_id": moderatorID,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, s.claimFailure(ctx, itemID)
	}

	_ = s.trust.Touch(ctx, nil, moderatorID, time.Now())
	s.log.Info("queue item claimed", "item_id", itemID, "moderator_id", moderatorID)
	return s.Get(ctx, itemID)
}

// claimFailure diagnoses why the conditional claim updated no rows.
func (s *QueueService) claimFailure(ctx context.Context, itemID string) error {
	item, err := s.Get(ctx, itemID)
	if err != nil {
		return err
	}
	switch item.Status {
	case QueueInProgress:
		return fmt.Errorf("item %s: %w", itemID, engine.ErrAlreadyClaimed)
	case QueueResolved, QueueDismissed:
		return fmt.Errorf("item %s: %w", itemID, engine.ErrAlreadyResolved)
	default:
		return fmt.Errorf("item %s not claimable: %w", itemID, engine.ErrInvalidState)
	}
}

// Release returns an IN_PROGRESS item to PENDING. Only the current
// assignee may release.
func (s *QueueService) Release(ctx context.Context, itemID, moderatorID string) (*QueueItem, error) {
	res := s.db.WithContext(ctx).Model(&QueueItem{}).
		Where("id = ? AND status = ? AND assigned_to_id = ?", itemID, QueueInProgress, moderatorID).
		Updates(map[string]interface{}{
			"status":         QueuePending,
			"assigned_to_id": nil,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, s.assigneeFailure(ctx, itemID, moderatorID)
	}
	s.log.Info("queue item released", "item_id", itemID, "moderator_id", moderatorID)
	return s.Get(ctx, itemID)
}

// Resolve terminates an item with a mandatory note, writes the audit
// action and notifies the reporter. Caller must be the current assignee.
func (s *QueueService) Resolve(ctx context.Context, itemID, moderatorID, note string) (*QueueItem, error) {
	if note == "" {
		return nil, fmt.Errorf("resolution note is required: %w", engine.ErrInvalidState)
	}
	return s.finish(ctx, itemID, moderatorID, QueueResolved, note)
}

// Dismiss terminates an item as invalid with a mandatory reason. The
// reported party carries no trust consequence.
func (s *QueueService) Dismiss(ctx context.Context, itemID, moderatorID, reason string) (*QueueItem, error) {
	if reason == "" {
		return nil, fmt.Errorf("dismissal reason is required: %w", engine.ErrInvalidState)
	}
	return s.finish(ctx, itemID, moderatorID, QueueDismissed, reason)
}

func (s *QueueService) finish(ctx context.Context, itemID, moderatorID string, terminal QueueStatus, note string) (*QueueItem, error) {
	var item *QueueItem
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&QueueItem{}).
			Where("id = ? AND status = ? AND assigned_to_id = ?", itemID, QueueInProgress, moderatorID).
			Updates(map[string]interface{}{
				"status":          terminal,
				"assigned_to_id":  nil,
				"resolution_note": note,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return s.assigneeFailure(ctx, itemID, moderatorID)
		}

		action := Action{
			ID:          uuid.NewString(),
			ItemID:      itemID,
			ModeratorID: moderatorID,
			Verb:        string(terminal),
			Note:        note,
		}
		if err := tx.Create(&action).Error; err != nil {
			return err
		}
		return s.trust.Touch(ctx, tx, moderatorID, time.Now())
	})
	if err != nil {
		return nil, err
	}

	item, err = s.Get(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item.ReporterID != "" {
		if derr := s.dispatch.Dispatch(ctx, item.ReporterID, notify.TypeReportResolved,
			"Your report has been reviewed", map[string]string{
				"item_id": item.ID,
				"status":  string(item.Status),
			}); derr != nil {
			s.log.Warn("reporter notification failed", "item_id", item.ID, "err", derr)
		}
	}
	return item, nil
}

// assigneeFailure explains a failed assignee-guarded update: missing item,
// wrong state, or wrong moderator.
func (s *QueueService) assigneeFailure(ctx context.Context, itemID, moderatorID string) error {
	item, err := s.Get(ctx, itemID)
	if err != nil {
		return err
	}
	switch item.Status {
	case QueueResolved, QueueDismissed:
		return fmt.Errorf("item %s: %w", itemID, engine.ErrAlreadyResolved)
	case QueueInProgress:
		return fmt.Errorf("item %s is assigned to another moderator: %w", itemID, engine.ErrUnauthorized)
	default:
		return fmt.Errorf("item %s is not in progress: %w", itemID, engine.ErrInvalidState)
	}
}

func (s *QueueService) requireModerator(ctx context.Context, userID string) error {
	u, err := s.trust.Get(ctx, nil, userID)
	if err != nil {
		return err
	}
	if u.Category != trust.CategoryModerator {
		return fmt.Errorf("user %s is not a moderator: %w", userID, engine.ErrUnauthorized)
	}
	return nil
}
