package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/VeriFact/VF-Backend/internal/config"
	"github.com/VeriFact/VF-Backend/internal/engine"
	"github.com/VeriFact/VF-Backend/internal/logger"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

// Dispatcher is the notification collaborator the engine talks to. The
// engine treats delivery as best effort: a failed dispatch is logged by the
// caller, never rolled into the surrounding transaction.
type Dispatcher interface {
	Dispatch(ctx context.Context, userID, kind, message string, metadata map[string]string) error
}

// DBDispatcher persists notifications for the (out-of-scope) delivery layer
// to drain. Dispatch bursts are throttled; rejected events surface as
// ErrRateLimited so callers can pass the quota error through unchanged.
type DBDispatcher struct {
	db      *gorm.DB
	log     *logger.Logger
	limiter *rate.Limiter
}

func NewDBDispatcher(db *gorm.DB, log *logger.Logger, cfg config.Notify) *DBDispatcher {
	return &DBDispatcher{
		db:      db,
		log:     log.With("component", "notify"),
		limiter: rate.NewLimiter(rate.Limit(cfg.EventsPerSecond), cfg.Burst),
	}
}

func (d *DBDispatcher) Dispatch(ctx context.Context, userID, kind, message string, metadata map[string]string) error {
	if userID == "" {
		return fmt.Errorf("notification needs a recipient: %w", engine.ErrInvalidState)
	}
	if !d.limiter.Allow() {
		return fmt.Errorf("notification dispatch throttled: %w", engine.ErrRateLimited)
	}

	encoded := ""
	if len(metadata) > 0 {
		raw, err := json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("encode notification metadata: %w", err)
		}
		encoded = string(raw)
	}

	n := Notification{
		ID:       uuid.NewString(),
		UserID:   userID,
		Type:     kind,
		Message:  message,
		Metadata: encoded,
	}
	if err := d.db.WithContext(ctx).Create(&n).Error; err != nil {
		return fmt.Errorf("persist notification: %w", err)
	}
	d.log.Debug("notification dispatched", "user_id", userID, "type", kind)
	return nil
}
