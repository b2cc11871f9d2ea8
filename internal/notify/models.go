package notify

import "time"

// Notification types emitted by the engine.
const (
	TypeFactResolved    = "FACT_RESOLVED"
	TypeVetoSubmitted   = "VETO_SUBMITTED"
	TypeVetoResolved    = "VETO_RESOLVED"
	TypeReportResolved  = "REPORT_RESOLVED"
	TypeModeratorStatus = "MODERATOR_STATUS"
	TypeDebateInvite    = "DEBATE_INVITE"
	TypeDebateUpdate    = "DEBATE_UPDATE"
	TypeDebateConcluded = "DEBATE_CONCLUDED"
	TypeMergeResolved   = "MERGE_RESOLVED"
)

type Notification struct {
	ID        string     `gorm:"primaryKey" json:"id"`
	UserID    string     `gorm:"index;not null" json:"user_id"`
	Type      string     `gorm:"not null" json:"type"`
	Message   string     `json:"message"`
	Metadata  string     `gorm:"type:text" json:"metadata"` // JSON-encoded key/value pairs
	ReadAt    *time.Time `json:"read_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func (Notification) TableName() string {
	return "notifications"
}
