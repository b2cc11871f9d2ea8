package moderation

import (
	"time"

	"github.com/VeriFact/VF-Backend/internal/trust"
)

// QueueStatus is the per-item state of the triage FSM:
// PENDING → (claim) → IN_PROGRESS → (resolve|dismiss) → RESOLVED|DISMISSED,
// with IN_PROGRESS → (release) → PENDING.
type QueueStatus string

const (
	QueuePending    QueueStatus = "PENDING"
	QueueInProgress QueueStatus = "IN_PROGRESS"
	QueueResolved   QueueStatus = "RESOLVED"
	QueueDismissed  QueueStatus = "DISMISSED"
)

// QueueItem is one dispute awaiting moderator triage. AssignedToID is
// non-nil exactly when Status is IN_PROGRESS; at most one moderator holds
// the assignment at a time.
type QueueItem struct {
	ID             string      `gorm:"primaryKey" json:"id"`
	SubjectType    string      `gorm:"index:idx_queue_subject;not null" json:"subject_type"`
	SubjectID      string      `gorm:"index:idx_queue_subject;not null" json:"subject_id"`
	ReporterID     string      `gorm:"index" json:"reporter_id"`
	Status         QueueStatus `gorm:"index;default:'PENDING'" json:"status"`
	AssignedToID   *string     `json:"assigned_to_id,omitempty"`
	Priority       int         `gorm:"default:0" json:"priority"`
	Detail         string      `json:"detail"`
	ResolutionNote string      `json:"resolution_note,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

func (QueueItem) TableName() string {
	return "moderation_queue_items"
}

// Action is the audit record written for every terminal queue decision.
type Action struct {
	ID          string    `gorm:"primaryKey" json:"id"`
	ItemID      string    `gorm:"index;not null" json:"item_id"`
	ModeratorID string    `gorm:"index;not null" json:"moderator_id"`
	Verb        string    `gorm:"not null" json:"verb"` // RESOLVED or DISMISSED
	Note        string    `json:"note"`
	CreatedAt   time.Time `json:"created_at"`
}

func (Action) TableName() string {
	return "moderation_actions"
}

// RosterEntry records a moderator appointment. PriorCategory is restored
// on demotion; DemotedAt nil marks the seat as currently held.
type RosterEntry struct {
	ID            string         `gorm:"primaryKey" json:"id"`
	UserID        string         `gorm:"index;not null" json:"user_id"`
	PriorCategory trust.Category `gorm:"not null" json:"prior_category"`
	AppointedAt   time.Time      `json:"appointed_at"`
	DemotedAt     *time.Time     `json:"demoted_at,omitempty"`
}

func (RosterEntry) TableName() string {
	return "moderation_roster_entries"
}
