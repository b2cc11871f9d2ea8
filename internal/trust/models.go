package trust

import "time"

// Category ranks how much an account's identity has been vetted. It is the
// first factor of a user's vote weight.
type Category string

const (
	CategoryAnonymous    Category = "ANONYMOUS"
	CategoryVerified     Category = "VERIFIED"
	CategoryExpert       Category = "EXPERT"
	CategoryPhD          Category = "PHD"
	CategoryOrganization Category = "ORGANIZATION"
	CategoryModerator    Category = "MODERATOR"
)

// Reason tags every trust delta so the history log stays auditable.
type Reason string

const (
	ReasonFactApproved        Reason = "FACT_APPROVED"
	ReasonFactWrong           Reason = "FACT_WRONG"
	ReasonFactVetoed          Reason = "FACT_VETOED"
	ReasonVerificationCorrect Reason = "VERIFICATION_CORRECT"
	ReasonVerificationWrong   Reason = "VERIFICATION_WRONG"
	ReasonSuccessfulVeto      Reason = "SUCCESSFUL_VETO"
	ReasonFailedVeto          Reason = "FAILED_VETO"
	ReasonDebateWon           Reason = "DEBATE_WON"
	ReasonDebateConstructive  Reason = "DEBATE_CONSTRUCTIVE"
)

// deltas maps each reason to its canonical trust adjustment.
var deltas = map[Reason]int{
	ReasonFactApproved:        10,
	ReasonFactWrong:           -20,
	ReasonFactVetoed:          -5,
	ReasonVerificationCorrect: 3,
	ReasonVerificationWrong:   -10,
	ReasonSuccessfulVeto:      5,
	ReasonFailedVeto:          -5,
	ReasonDebateWon:           5,
	ReasonDebateConstructive:  2,
}

// Delta returns the canonical adjustment for a reason code.
func Delta(reason Reason) int {
	return deltas[reason]
}

type User struct {
	ID           string    `gorm:"primaryKey" json:"user_id"`
	Username     string    `gorm:"uniqueIndex" json:"username"`
	Category     Category  `gorm:"default:'ANONYMOUS'" json:"category"`
	TrustScore   int       `gorm:"default:0" json:"trust_score"`
	BanLevel     int       `gorm:"default:0" json:"ban_level"`
	LastActiveAt time.Time `json:"last_active_at"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// History is the append-only trust audit log. A clamped delta is still
// recorded with the delta that was requested.
type History struct {
	ID         string    `gorm:"primaryKey" json:"id"`
	UserID     string    `gorm:"index;not null" json:"user_id"`
	Delta      int       `json:"delta"`
	Reason     Reason    `gorm:"not null" json:"reason"`
	ScoreAfter int       `json:"score_after"`
	CreatedAt  time.Time `json:"created_at"`
}

func (History) TableName() string {
	return "trust_history"
}
