package consensus

import "time"

// Kind tags the votable variants the aggregator knows how to resolve.
type Kind string

const (
	KindFact           Kind = "fact"
	KindVeto           Kind = "veto"
	KindCategoryMerge  Kind = "category_merge"
	KindDebatePosition Kind = "debate_position"
)

// Status values across all votable kinds. Each kind's policy picks which
// of these act as its positive, negative and disputed resolutions.
type Status string

const (
	StatusPending         Status = "PENDING"
	StatusDisputed        Status = "DISPUTED"
	StatusProven          Status = "PROVEN"
	StatusDisproven       Status = "DISPROVEN"
	StatusUnderVetoReview Status = "UNDER_VETO_REVIEW"
	StatusApproved        Status = "APPROVED"
	StatusRejected        Status = "REJECTED"
	StatusConcluded       Status = "CONCLUDED"
)

// Open reports whether a status still accepts votes and transitions.
// PENDING and DISPUTED are the only pre-resolution states.
func Open(st Status) bool {
	return st == StatusPending || st == StatusDisputed
}

// Votable is the generic subject of trust-weighted voting. WeightedScore is
// always recomputed from the full vote set, never drifted incrementally.
// Version backs the optimistic-concurrency retry loop around every
// read-modify-write of the aggregate.
type Votable struct {
	ID            string     `gorm:"primaryKey" json:"id"`
	Kind          Kind       `gorm:"index;not null" json:"kind"`
	AuthorID      string     `gorm:"index" json:"author_id"`
	Status        Status     `gorm:"index;default:'PENDING'" json:"status"`
	WeightedScore float64    `gorm:"default:0" json:"weighted_score"`
	VoteCount     int        `gorm:"default:0" json:"vote_count"`
	Version       int        `gorm:"default:0" json:"-"`
	ResolvedAt    *time.Time `json:"resolved_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (Votable) TableName() string {
	return "votables"
}

// Vote records one voter's current position on a votable. The unique index
// makes casting an upsert: at most one row per (votable, voter). Weight is
// captured at cast time from the voter's category and trust tier.
type Vote struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	VotableID string    `gorm:"uniqueIndex:idx_votes_votable_voter;not null" json:"votable_id"`
	VoterID   string    `gorm:"uniqueIndex:idx_votes_votable_voter;not null" json:"voter_id"`
	Value     int       `gorm:"not null" json:"value"` // +1 or -1
	Weight    float64   `gorm:"not null" json:"weight"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Vote) TableName() string {
	return "votes"
}
