package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/VeriFact/VF-Backend/internal/trust"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SeedUser inserts a user whose account is old enough for every eligibility
// check. Use SeedAgedUser when the account age itself is under test.
func SeedUser(t *testing.T, db *gorm.DB, category trust.Category, score int) *trust.User {
	t.Helper()
	return SeedAgedUser(t, db, category, score, 365*24*time.Hour)
}

// SeedAgedUser inserts a user created the given duration ago.
func SeedAgedUser(t *testing.T, db *gorm.DB, category trust.Category, score int, age time.Duration) *trust.User {
	t.Helper()

	now := time.Now()
	u := trust.User{
		ID:           uuid.NewString(),
		Username:     "user-" + uuid.NewString()[:8],
		Category:     category,
		TrustScore:   score,
		LastActiveAt: now,
	}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	created := now.Add(-age)
	if err := db.Model(&trust.User{}).Where("id = ?", u.ID).
		Updates(map[string]interface{}{"created_at": created, "last_active_at": created}).Error; err != nil {
		t.Fatalf("age user: %v", err)
	}
	u.CreatedAt = created
	u.LastActiveAt = created
	return &u
}

// BanUser flips the user's ban level.
func BanUser(t *testing.T, db *gorm.DB, userID string, level int) {
	t.Helper()
	if err := db.Model(&trust.User{}).Where("id = ?", userID).
		Update("ban_level", level).Error; err != nil {
		t.Fatalf("ban user: %v", err)
	}
}

// Event is one recorded notification.
type Event struct {
	UserID   string
	Type     string
	Message  string
	Metadata map[string]string
}

// Recorder is an in-memory notify.Dispatcher for asserting on the
// notifications a workflow produced.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Dispatch(_ context.Context, userID, kind, message string, metadata map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{UserID: userID, Type: kind, Message: message, Metadata: metadata})
	return nil
}

// Events returns a copy of everything dispatched so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// ByType filters recorded events by notification type.
func (r *Recorder) ByType(kind string) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Type == kind {
			out = append(out, e)
		}
	}
	return out
}

// FakeClock is a settable engine.Clock.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewFakeClock(now time.Time) *FakeClock {
	return &FakeClock{now: now}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
