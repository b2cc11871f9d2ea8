package fact_test

import (
	"context"
	"errors"
	"testing"

	"github.com/VeriFact/VF-Backend/internal/consensus"
	"github.com/VeriFact/VF-Backend/internal/engine"
	"github.com/VeriFact/VF-Backend/internal/fact"
	"github.com/VeriFact/VF-Backend/internal/notify"
	"github.com/VeriFact/VF-Backend/internal/testutil"
	"github.com/VeriFact/VF-Backend/internal/trust"
)

func validInput() fact.SubmitInput {
	return fact.SubmitInput{
		Title:     "The Eiffel Tower is in Paris",
		Statement: "The Eiffel Tower stands on the Champ de Mars in Paris, France.",
		Sources:   []string{"https://example.org/eiffel"},
	}
}

func TestSubmitValidation(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	author := testutil.SeedUser(t, env.DB, trust.CategoryVerified, 0)

	cases := []struct {
		name   string
		mutate func(*fact.SubmitInput)
	}{
		{"missing title", func(in *fact.SubmitInput) { in.Title = "" }},
		{"missing statement", func(in *fact.SubmitInput) { in.Statement = "" }},
		{"no sources", func(in *fact.SubmitInput) { in.Sources = nil }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validInput()
			tc.mutate(&in)
			if _, err := env.Facts.Submit(ctx, author.ID, in); !errors.Is(err, engine.ErrInvalidState) {
				t.Errorf("err = %v, want ErrInvalidState", err)
			}
		})
	}
}

func TestSubmitCreatesPendingVotable(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	author := testutil.SeedUser(t, env.DB, trust.CategoryVerified, 0)

	f, err := env.Facts.Submit(ctx, author.ID, validInput())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	v, err := env.Cons.Get(ctx, nil, f.VotableID)
	if err != nil {
		t.Fatalf("Get votable: %v", err)
	}
	if v.Kind != consensus.KindFact || v.Status != consensus.StatusPending || v.AuthorID != author.ID {
		t.Errorf("votable = %+v, want pending fact by author", v)
	}

	back, err := env.Facts.GetByVotable(ctx, nil, f.VotableID)
	if err != nil {
		t.Fatalf("GetByVotable: %v", err)
	}
	if back.ID != f.ID {
		t.Errorf("round-trip fact id = %s, want %s", back.ID, f.ID)
	}
}

func TestSubmitRejectsBannedAuthor(t *testing.T) {
	env := testutil.NewEnv(t)
	author := testutil.SeedUser(t, env.DB, trust.CategoryVerified, 0)
	testutil.BanUser(t, env.DB, author.ID, 2)

	_, err := env.Facts.Submit(context.Background(), author.ID, validInput())
	if !errors.Is(err, engine.ErrUnauthorized) {
		t.Errorf("err = %v, want ErrUnauthorized", err)
	}
}

func TestResolutionNotifiesAuthor(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	author := testutil.SeedUser(t, env.DB, trust.CategoryVerified, 0)

	f, err := env.Facts.Submit(ctx, author.ID, validInput())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	for i := 0; i < 3; i++ {
		voter := testutil.SeedUser(t, env.DB, trust.CategoryVerified, 0)
		if _, err := env.Cons.CastVote(ctx, voter.ID, f.VotableID, 1); err != nil {
			t.Fatalf("cast %d: %v", i, err)
		}
	}

	events := env.Events.ByType(notify.TypeFactResolved)
	if len(events) != 1 {
		t.Fatalf("fact-resolved events = %d, want 1", len(events))
	}
	if events[0].UserID != author.ID {
		t.Errorf("notified %s, want author %s", events[0].UserID, author.ID)
	}
	if events[0].Metadata["fact_id"] != f.ID {
		t.Errorf("metadata fact_id = %s, want %s", events[0].Metadata["fact_id"], f.ID)
	}
}

func TestDisputedFactEntersModerationQueue(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	author := testutil.SeedUser(t, env.DB, trust.CategoryVerified, 0)

	f, err := env.Facts.Submit(ctx, author.ID, validInput())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	up := testutil.SeedUser(t, env.DB, trust.CategoryVerified, 0)
	down := testutil.SeedUser(t, env.DB, trust.CategoryVerified, 0)
	anon := testutil.SeedUser(t, env.DB, trust.CategoryAnonymous, 0)
	for _, cast := range []struct {
		voter *trust.User
		value int
	}{{up, 1}, {down, -1}, {anon, 1}} {
		if _, err := env.Cons.CastVote(ctx, cast.voter.ID, f.VotableID, cast.value); err != nil {
			t.Fatalf("cast: %v", err)
		}
	}

	items, err := env.Queue.Pending(ctx, 0)
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("queue items = %d, want 1", len(items))
	}
	if items[0].SubjectType != "fact" || items[0].SubjectID != f.ID {
		t.Errorf("queue subject = %s/%s, want fact/%s", items[0].SubjectType, items[0].SubjectID, f.ID)
	}
}
