package veto_test

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

// provenFact submits a fact and votes it to PROVEN (author ends at +10).
func provenFact(t *testing.T, env *testutil.Env) (author *trust.User, votableID string) {
	t.Helper()
	ctx := context.Background()
	author = testutil.SeedUser(t, env.DB, trust.CategoryVerified, 0)
	f, err := env.Facts.Submit(ctx, author.ID, fact.SubmitInput{
		Title:     "Honey never spoils",
		Statement: "Sealed honey remains edible indefinitely.",
		Sources:   []string{"https://example.org/honey"},
	})
	if err != nil {
		t.Fatalf("Submit fact: %v", err)
	}
	for i := 0; i < 3; i++ {
		voter := testutil.SeedUser(t, env.DB, trust.CategoryVerified, 0)
		if _, err := env.Cons.CastVote(ctx, voter.ID, f.VotableID, 1); err != nil {
			t.Fatalf("cast %d: %v", i, err)
		}
	}
	return author, f.VotableID
}

func TestSubmitRequiresResolvedPositiveParent(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	author := testutil.SeedUser(t, env.DB, trust.CategoryVerified, 0)
	f, err := env.Facts.Submit(ctx, author.ID, fact.SubmitInput{
		Title:     "Pending fact",
		Statement: "Still collecting votes.",
		Sources:   []string{"https://example.org/pending"},
	})
	if err != nil {
		t.Fatalf("Submit fact: %v", err)
	}

	challenger := testutil.SeedUser(t, env.DB, trust.CategoryVerified, 0)
	_, err = env.Vetoes.Submit(ctx, challenger.ID, f.VotableID, "Premature challenge", []string{"https://example.org/x"})
	if !errors.Is(err, engine.ErrInvalidState) {
		t.Errorf("err = %v, want ErrInvalidState for unresolved parent", err)
	}
}

func TestSubmitValidation(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	_, votableID := provenFact(t, env)
	challenger := testutil.SeedUser(t, env.DB, trust.CategoryVerified, 0)

	if _, err := env.Vetoes.Submit(ctx, challenger.ID, votableID, "", []string{"https://example.org/x"}); !errors.Is(err, engine.ErrInvalidState) {
		t.Errorf("missing reason: err = %v, want ErrInvalidState", err)
	}
	if _, err := env.Vetoes.Submit(ctx, challenger.ID, votableID, "No sources", nil); !errors.Is(err, engine.ErrInvalidState) {
		t.Errorf("missing sources: err = %v, want ErrInvalidState", err)
	}
}

func TestSubmitMovesParentUnderReview(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	author, votableID := provenFact(t, env)
	challenger := testutil.SeedUser(t, env.DB, trust.CategoryVerified, 0)

	vet, err := env.Vetoes.Submit(ctx, challenger.ID, votableID, "Source is a hoax", []string{"https://example.org/debunk"})
	if err != nil {
		t.Fatalf("Submit veto: %v", err)
	}

	parent, err := env.Cons.Get(ctx, nil, votableID)
	if err != nil {
		t.Fatalf("Get parent: %v", err)
	}
	if parent.Status != consensus.StatusUnderVetoReview {
		t.Errorf("parent status = %s, want UNDER_VETO_REVIEW", parent.Status)
	}

	// Direct votes are frozen while the review runs.
	voter := testutil.SeedUser(t, env.DB, trust.CategoryVerified, 0)
	if _, err := env.Cons.CastVote(ctx, voter.ID, votableID, 1); !errors.Is(err, engine.ErrInvalidState) {
		t.Errorf("vote during review: err = %v, want ErrInvalidState", err)
	}

	// A second challenge while one is open is rejected.
	other := testutil.SeedUser(t, env.DB, trust.CategoryVerified, 0)
	if _, err := env.Vetoes.Submit(ctx, other.ID, votableID, "Me too", []string{"https://example.org/y"}); !errors.Is(err, engine.ErrInvalidState) {
		t.Errorf("second veto: err = %v, want ErrInvalidState", err)
	}

	events := env.Events.ByType(notify.TypeVetoSubmitted)
	if len(events) != 1 || events[0].UserID != author.ID {
		t.Errorf("veto-submitted events = %+v, want one to the author", events)
	}
	if vet.ParentVotableID != votableID {
		t.Errorf("parent votable = %s, want %s", vet.ParentVotableID, votableID)
	}
}

func TestVetoCannotTargetVeto(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	_, votableID := provenFact(t, env)
	challenger := testutil.SeedUser(t, env.DB, trust.CategoryVerified, 0)

	vet, err := env.Vetoes.Submit(ctx, challenger.ID, votableID, "Wrong", []string{"https://example.org/x"})
	if err != nil {
		t.Fatalf("Submit veto: %v", err)
	}

	other := testutil.SeedUser(t, env.DB, trust.CategoryVerified, 0)
	_, err = env.Vetoes.Submit(ctx, other.ID, vet.VotableID, "Veto the veto", []string{"https://example.org/z"})
	if !errors.Is(err, engine.ErrInvalidState) {
		t.Errorf("err = %v, want ErrInvalidState", err)
	}
}

func TestApprovedVetoOverturnsParent(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	author, votableID := provenFact(t, env)
	challenger := testutil.SeedUser(t, env.DB, trust.CategoryVerified, 0)

	vet, err := env.Vetoes.Submit(ctx, challenger.ID, votableID, "Study was retracted", []string{"https://example.org/retraction"})
	if err != nil {
		t.Fatalf("Submit veto: %v", err)
	}

	// Veto thresholds: quorum 2, high 4. Two verified up-votes approve it.
	for i := 0; i < 2; i++ {
		voter := testutil.SeedUser(t, env.DB, trust.CategoryVerified, 0)
		if _, err := env.Cons.CastVote(ctx, voter.ID, vet.VotableID, 1); err != nil {
			t.Fatalf("cast %d: %v", i, err)
		}
	}

	parent, err := env.Cons.Get(ctx, nil, votableID)
	if err != nil {
		t.Fatalf("Get parent: %v", err)
	}
	if parent.Status != consensus.StatusDisproven {
		t.Errorf("parent status = %s, want DISPROVEN after approved veto", parent.Status)
	}

	gotChallenger, _ := env.Trust.Get(ctx, nil, challenger.ID)
	if gotChallenger.TrustScore != 5 {
		t.Errorf("challenger score = %d, want +5", gotChallenger.TrustScore)
	}
	gotAuthor, _ := env.Trust.Get(ctx, nil, author.ID)
	if gotAuthor.TrustScore != 5 { // +10 on approval, -5 on veto
		t.Errorf("author score = %d, want 5", gotAuthor.TrustScore)
	}
}

func TestRejectedVetoRestoresParent(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	_, votableID := provenFact(t, env)
	challenger := testutil.SeedUser(t, env.DB, trust.CategoryVerified, 10)

	vet, err := env.Vetoes.Submit(ctx, challenger.ID, votableID, "I disagree", []string{"https://example.org/opinion"})
	if err != nil {
		t.Fatalf("Submit veto: %v", err)
	}

	mod := testutil.SeedUser(t, env.DB, trust.CategoryModerator, 200)
	if _, err := env.Vetoes.Process(ctx, mod.ID, vet.ID, false); err != nil {
		t.Fatalf("Process: %v", err)
	}

	parent, err := env.Cons.Get(ctx, nil, votableID)
	if err != nil {
		t.Fatalf("Get parent: %v", err)
	}
	if parent.Status != consensus.StatusProven {
		t.Errorf("parent status = %s, want PROVEN restored", parent.Status)
	}

	gotChallenger, _ := env.Trust.Get(ctx, nil, challenger.ID)
	if gotChallenger.TrustScore != 5 { // 10 - 5 failed-veto penalty
		t.Errorf("challenger score = %d, want 5", gotChallenger.TrustScore)
	}

	events := env.Events.ByType(notify.TypeVetoResolved)
	if len(events) != 1 || events[0].UserID != challenger.ID {
		t.Errorf("veto-resolved events = %+v, want one to the challenger", events)
	}
}

func TestProcessRequiresModerator(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	_, votableID := provenFact(t, env)
	challenger := testutil.SeedUser(t, env.DB, trust.CategoryVerified, 0)

	vet, err := env.Vetoes.Submit(ctx, challenger.ID, votableID, "Wrong", []string{"https://example.org/x"})
	if err != nil {
		t.Fatalf("Submit veto: %v", err)
	}

	civilian := testutil.SeedUser(t, env.DB, trust.CategoryVerified, 0)
	if _, err := env.Vetoes.Process(ctx, civilian.ID, vet.ID, true); !errors.Is(err, engine.ErrUnauthorized) {
		t.Errorf("err = %v, want ErrUnauthorized", err)
	}
}
