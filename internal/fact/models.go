package fact

import (
	"time"

	"github.com/lib/pq"
)

// Fact is a community-submitted claim. Its truth status lives on the
// linked votable; this row carries the content.
type Fact struct {
	ID         string         `gorm:"primaryKey" json:"id"`
	VotableID  string         `gorm:"uniqueIndex;not null" json:"votable_id"`
	AuthorID   string         `gorm:"index;not null" json:"author_id"`
	CategoryID *string        `gorm:"index" json:"category_id,omitempty"`
	Title      string         `gorm:"not null" json:"title"`
	Statement  string         `gorm:"not null" json:"statement"`
	Sources    pq.StringArray `gorm:"type:text[]" json:"sources"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

func (Fact) TableName() string {
	return "facts"
}
