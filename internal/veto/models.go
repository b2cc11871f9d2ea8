package veto

import (
	"time"

	"github.com/lib/pq"
)

// Veto is a challenge against a positively-resolved subject. It runs its
// own consensus round on VotableID; ParentVotableID is the subject under
// review.
type Veto struct {
	ID              string         `gorm:"primaryKey" json:"id"`
	VotableID       string         `gorm:"uniqueIndex;not null" json:"votable_id"`
	ParentVotableID string         `gorm:"index;not null" json:"parent_votable_id"`
	SubmitterID     string         `gorm:"index;not null" json:"submitter_id"`
	Reason          string         `gorm:"not null" json:"reason"`
	Sources         pq.StringArray `gorm:"type:text[]" json:"sources"`
	CreatedAt       time.Time      `json:"created_at"`
}

func (Veto) TableName() string {
	return "vetoes"
}
