package debate

import "time"

// Status is the negotiation lifecycle: the initiator proposes (PENDING),
// the participant accepts (ACTIVE) or declines (DECLINED, terminal);
// CONCLUDED is terminal and freezes the vote tallies.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusDeclined  Status = "DECLINED"
	StatusActive    Status = "ACTIVE"
	StatusConcluded Status = "CONCLUDED"
)

// Debate is a two-party exchange about a fact. It stays private until both
// parties independently request publication; once published the community
// votes on VotableID (+1 supports the initiator, -1 the participant).
type Debate struct {
	ID            string     `gorm:"primaryKey" json:"id"`
	FactID        string     `gorm:"index;not null" json:"fact_id"`
	VotableID     string     `gorm:"uniqueIndex;not null" json:"votable_id"`
	InitiatorID   string     `gorm:"index;not null" json:"initiator_id"`
	ParticipantID string     `gorm:"index;not null" json:"participant_id"`
	Status        Status     `gorm:"index;default:'PENDING'" json:"status"`
	Published     bool       `gorm:"default:false" json:"published"`
	// Publish requests are tracked per party; Published flips when both
	// are set.
	InitiatorPublish   bool       `gorm:"default:false" json:"initiator_publish"`
	ParticipantPublish bool       `gorm:"default:false" json:"participant_publish"`
	Constructive       bool       `gorm:"default:false" json:"constructive"`
	WinnerID           *string    `json:"winner_id,omitempty"`
	ConcludedAt        *time.Time `json:"concluded_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func (Debate) TableName() string {
	return "debates"
}

// Message is one entry in a debate's ordered log. Seq is assigned
// per-debate at append time; the unique index makes a concurrent append
// that minted the same number fail instead of silently duplicating it.
type Message struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	DebateID  string    `gorm:"uniqueIndex:idx_debate_messages;not null" json:"debate_id"`
	Seq       int       `gorm:"uniqueIndex:idx_debate_messages;not null" json:"seq"`
	SenderID  string    `gorm:"not null" json:"sender_id"`
	Body      string    `gorm:"not null" json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

func (Message) TableName() string {
	return "debate_messages"
}
