package catalog

import "time"

// Category groups facts by topic.
type Category struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	Title     string    `gorm:"uniqueIndex;not null" json:"title"`
	Retired   bool      `gorm:"default:false" json:"retired"` // set when merged away
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Category) TableName() string {
	return "categories"
}

// MergeRequest proposes folding the source category into the target. The
// community decides through the linked votable's consensus round.
type MergeRequest struct {
	ID               string    `gorm:"primaryKey" json:"id"`
	VotableID        string    `gorm:"uniqueIndex;not null" json:"votable_id"`
	SourceCategoryID string    `gorm:"index;not null" json:"source_category_id"`
	TargetCategoryID string    `gorm:"index;not null" json:"target_category_id"`
	RequesterID      string    `gorm:"index;not null" json:"requester_id"`
	CreatedAt        time.Time `json:"created_at"`
}

func (MergeRequest) TableName() string {
	return "category_merge_requests"
}
