package moderation_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/VeriFact/VF-Backend/internal/engine"
	"github.com/VeriFact/VF-Backend/internal/moderation"
	"github.com/VeriFact/VF-Backend/internal/notify"
	"github.com/VeriFact/VF-Backend/internal/testutil"
	"github.com/VeriFact/VF-Backend/internal/trust"
)

// Test roster tunables: min trust 100, min account age 30d, max 3 seats,
// inactivity window 30d.

func TestIsEligible(t *testing.T) {
	env := testutil.NewEnv(t)
	now := env.Clock.Now()
	old := now.Add(-90 * 24 * time.Hour)
	young := now.Add(-10 * 24 * time.Hour)

	cases := []struct {
		name string
		user trust.User
		want bool
	}{
		{"qualified verified", trust.User{Category: trust.CategoryVerified, TrustScore: 150, CreatedAt: old}, true},
		{"qualified expert", trust.User{Category: trust.CategoryExpert, TrustScore: 100, CreatedAt: old}, true},
		{"score too low", trust.User{Category: trust.CategoryVerified, TrustScore: 99, CreatedAt: old}, false},
		{"account too young", trust.User{Category: trust.CategoryVerified, TrustScore: 150, CreatedAt: young}, false},
		{"banned", trust.User{Category: trust.CategoryVerified, TrustScore: 150, CreatedAt: old, BanLevel: 1}, false},
		{"organization", trust.User{Category: trust.CategoryOrganization, TrustScore: 400, CreatedAt: old}, false},
		{"already moderator", trust.User{Category: trust.CategoryModerator, TrustScore: 300, CreatedAt: old}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			u := tc.user
			if got := env.Roster.IsEligible(&u, now); got != tc.want {
				t.Errorf("IsEligible = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestAppointAndDemoteRoundTrip(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	u := testutil.SeedUser(t, env.DB, trust.CategoryExpert, 150)

	if err := env.Roster.Appoint(ctx, u.ID); err != nil {
		t.Fatalf("Appoint: %v", err)
	}
	got, _ := env.Trust.Get(ctx, nil, u.ID)
	if got.Category != trust.CategoryModerator {
		t.Fatalf("category = %s, want MODERATOR", got.Category)
	}

	// Appointing an existing moderator is a duplicate.
	if err := env.Roster.Appoint(ctx, u.ID); !errors.Is(err, engine.ErrDuplicate) {
		t.Errorf("second appoint err = %v, want ErrDuplicate", err)
	}

	if err := env.Roster.Demote(ctx, u.ID); err != nil {
		t.Fatalf("Demote: %v", err)
	}
	got, _ = env.Trust.Get(ctx, nil, u.ID)
	if got.Category != trust.CategoryExpert {
		t.Errorf("category = %s, want EXPERT restored", got.Category)
	}

	var entries []moderation.RosterEntry
	if err := env.DB.Where("user_id = ?", u.ID).Find(&entries).Error; err != nil {
		t.Fatalf("load roster entries: %v", err)
	}
	if len(entries) != 1 || entries[0].DemotedAt == nil {
		t.Errorf("roster entries = %+v, want one closed entry", entries)
	}

	statusEvents := env.Events.ByType(notify.TypeModeratorStatus)
	if len(statusEvents) != 2 {
		t.Errorf("moderator status events = %d, want 2", len(statusEvents))
	}
}

func TestOrganizationsNeverModerate(t *testing.T) {
	env := testutil.NewEnv(t)
	org := testutil.SeedUser(t, env.DB, trust.CategoryOrganization, 400)

	if err := env.Roster.Appoint(context.Background(), org.ID); !errors.Is(err, engine.ErrUnauthorized) {
		t.Errorf("err = %v, want ErrUnauthorized", err)
	}
}

func TestRosterUnknownUser(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	if err := env.Roster.Appoint(ctx, "no-such-user"); !errors.Is(err, engine.ErrNotFound) {
		t.Errorf("appoint err = %v, want ErrNotFound", err)
	}
	if err := env.Roster.Demote(ctx, "no-such-user"); !errors.Is(err, engine.ErrNotFound) {
		t.Errorf("demote err = %v, want ErrNotFound", err)
	}
}

func TestDemoteNonModerator(t *testing.T) {
	env := testutil.NewEnv(t)
	u := testutil.SeedUser(t, env.DB, trust.CategoryVerified, 150)

	if err := env.Roster.Demote(context.Background(), u.ID); !errors.Is(err, engine.ErrInvalidState) {
		t.Errorf("err = %v, want ErrInvalidState", err)
	}
}

func TestAutoElectionFillsSeatsByRank(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	testutil.SeedUser(t, env.DB, trust.CategoryModerator, 300) // holds one of three seats
	top := testutil.SeedUser(t, env.DB, trust.CategoryVerified, 250)
	mid := testutil.SeedUser(t, env.DB, trust.CategoryExpert, 200)
	low := testutil.SeedUser(t, env.DB, trust.CategoryVerified, 150)
	testutil.SeedUser(t, env.DB, trust.CategoryVerified, 50)         // below min trust
	testutil.SeedUser(t, env.DB, trust.CategoryOrganization, 400)    // never eligible
	banned := testutil.SeedUser(t, env.DB, trust.CategoryVerified, 300)
	testutil.BanUser(t, env.DB, banned.ID, 1)

	promoted, err := env.Roster.RunAutoElection(ctx)
	if err != nil {
		t.Fatalf("RunAutoElection: %v", err)
	}
	if len(promoted) != 2 {
		t.Fatalf("promoted = %v, want the two open seats filled", promoted)
	}
	if promoted[0] != top.ID || promoted[1] != mid.ID {
		t.Errorf("promoted = %v, want [%s %s] by trust rank", promoted, top.ID, mid.ID)
	}

	got, _ := env.Trust.Get(ctx, nil, low.ID)
	if got.Category != trust.CategoryVerified {
		t.Errorf("runner-up category = %s, want unchanged", got.Category)
	}

	// Roster is full now; a second election is a no-op.
	again, err := env.Roster.RunAutoElection(ctx)
	if err != nil {
		t.Fatalf("second election: %v", err)
	}
	if len(again) != 0 {
		t.Errorf("second election promoted %v, want none", again)
	}
}

func TestElectionTieBreaksOnAccountAge(t *testing.T) {
	env := testutil.NewEnv(t)

	younger := testutil.SeedAgedUser(t, env.DB, trust.CategoryVerified, 200, 100*24*time.Hour)
	older := testutil.SeedAgedUser(t, env.DB, trust.CategoryVerified, 200, 400*24*time.Hour)

	promoted, err := env.Roster.RunAutoElection(context.Background())
	if err != nil {
		t.Fatalf("RunAutoElection: %v", err)
	}
	if len(promoted) != 2 {
		t.Fatalf("promoted = %v, want both candidates", promoted)
	}
	if promoted[0] != older.ID || promoted[1] != younger.ID {
		t.Errorf("promoted = %v, want the older account first", promoted)
	}
}

func TestInactiveModeratorsDemotedAndBackfilled(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	// Seeded 40 days ago with no activity since: past the 30-day window.
	stale := testutil.SeedAgedUser(t, env.DB, trust.CategoryModerator, 200, 40*24*time.Hour)
	// Active moderator keeps the seat.
	active := testutil.SeedUser(t, env.DB, trust.CategoryModerator, 200)
	if err := env.Trust.Touch(ctx, nil, active.ID, env.Clock.Now()); err != nil {
		t.Fatalf("touch: %v", err)
	}
	candidate := testutil.SeedUser(t, env.DB, trust.CategoryVerified, 150)

	demoted, promoted, err := env.Roster.HandleInactiveModerators(ctx)
	if err != nil {
		t.Fatalf("HandleInactiveModerators: %v", err)
	}
	if len(demoted) != 1 || demoted[0] != stale.ID {
		t.Errorf("demoted = %v, want [%s]", demoted, stale.ID)
	}
	found := false
	for _, id := range promoted {
		if id == candidate.ID {
			found = true
		}
	}
	if !found {
		t.Errorf("promoted = %v, want to include %s", promoted, candidate.ID)
	}

	gotStale, _ := env.Trust.Get(ctx, nil, stale.ID)
	if gotStale.Category == trust.CategoryModerator {
		t.Error("stale moderator kept the category")
	}
	gotActive, _ := env.Trust.Get(ctx, nil, active.ID)
	if gotActive.Category != trust.CategoryModerator {
		t.Error("active moderator lost the category")
	}
}
