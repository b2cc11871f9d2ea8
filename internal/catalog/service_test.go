package catalog_test

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

func TestCreateCategoryRequiresTitle(t *testing.T) {
	env := testutil.NewEnv(t)

	if _, err := env.Catalog.CreateCategory(context.Background(), ""); !errors.Is(err, engine.ErrInvalidState) {
		t.Errorf("err = %v, want ErrInvalidState", err)
	}
}

func TestSubmitMergeValidation(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	requester := testutil.SeedUser(t, env.DB, trust.CategoryVerified, 0)

	src, err := env.Catalog.CreateCategory(ctx, "Physics")
	if err != nil {
		t.Fatalf("CreateCategory: %v", err)
	}

	if _, err := env.Catalog.SubmitMerge(ctx, requester.ID, src.ID, src.ID); !errors.Is(err, engine.ErrInvalidState) {
		t.Errorf("self merge err = %v, want ErrInvalidState", err)
	}
	if _, err := env.Catalog.SubmitMerge(ctx, requester.ID, src.ID, "no-such-category"); !errors.Is(err, engine.ErrNotFound) {
		t.Errorf("unknown target err = %v, want ErrNotFound", err)
	}
}

func TestDuplicatePendingMergeRejected(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	requester := testutil.SeedUser(t, env.DB, trust.CategoryVerified, 0)
	other := testutil.SeedUser(t, env.DB, trust.CategoryVerified, 0)

	src, _ := env.Catalog.CreateCategory(ctx, "Physics")
	dst, _ := env.Catalog.CreateCategory(ctx, "Science")

	if _, err := env.Catalog.SubmitMerge(ctx, requester.ID, src.ID, dst.ID); err != nil {
		t.Fatalf("SubmitMerge: %v", err)
	}
	if _, err := env.Catalog.SubmitMerge(ctx, other.ID, src.ID, dst.ID); !errors.Is(err, engine.ErrDuplicate) {
		t.Errorf("duplicate err = %v, want ErrDuplicate", err)
	}
}

func TestApprovedMergeRehomesFacts(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	requester := testutil.SeedUser(t, env.DB, trust.CategoryVerified, 0)
	author := testutil.SeedUser(t, env.DB, trust.CategoryVerified, 0)

	src, _ := env.Catalog.CreateCategory(ctx, "Physics")
	dst, _ := env.Catalog.CreateCategory(ctx, "Science")

	f, err := env.Facts.Submit(ctx, author.ID, fact.SubmitInput{
		Title:      "Light bends in gravity",
		Statement:  "Massive bodies deflect passing light.",
		Sources:    []string{"https://example.org/lensing"},
		CategoryID: src.ID,
	})
	if err != nil {
		t.Fatalf("Submit fact: %v", err)
	}

	mr, err := env.Catalog.SubmitMerge(ctx, requester.ID, src.ID, dst.ID)
	if err != nil {
		t.Fatalf("SubmitMerge: %v", err)
	}

	// Merge thresholds: quorum 2, high 4. Two verified up-votes approve.
	for i := 0; i < 2; i++ {
		voter := testutil.SeedUser(t, env.DB, trust.CategoryVerified, 0)
		if _, err := env.Cons.CastVote(ctx, voter.ID, mr.VotableID, 1); err != nil {
			t.Fatalf("cast %d: %v", i, err)
		}
	}

	moved, err := env.Facts.Get(ctx, f.ID)
	if err != nil {
		t.Fatalf("Get fact: %v", err)
	}
	if moved.CategoryID == nil || *moved.CategoryID != dst.ID {
		t.Errorf("fact category = %v, want re-homed to %s", moved.CategoryID, dst.ID)
	}

	gotSrc, err := env.Catalog.GetCategory(ctx, src.ID)
	if err != nil {
		t.Fatalf("GetCategory: %v", err)
	}
	if !gotSrc.Retired {
		t.Error("source category not retired after approved merge")
	}

	events := env.Events.ByType(notify.TypeMergeResolved)
	if len(events) != 1 || events[0].UserID != requester.ID {
		t.Errorf("merge-resolved events = %+v, want one to the requester", events)
	}

	// A retired category can no longer be merged.
	if _, err := env.Catalog.SubmitMerge(ctx, requester.ID, src.ID, dst.ID); !errors.Is(err, engine.ErrInvalidState) {
		t.Errorf("merge of retired err = %v, want ErrInvalidState", err)
	}
}

func TestRejectedMergeChangesNothing(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	requester := testutil.SeedUser(t, env.DB, trust.CategoryVerified, 0)
	author := testutil.SeedUser(t, env.DB, trust.CategoryVerified, 0)

	src, _ := env.Catalog.CreateCategory(ctx, "Physics")
	dst, _ := env.Catalog.CreateCategory(ctx, "Science")
	f, err := env.Facts.Submit(ctx, author.ID, fact.SubmitInput{
		Title:      "Sound needs a medium",
		Statement:  "Sound does not propagate through vacuum.",
		Sources:    []string{"https://example.org/sound"},
		CategoryID: src.ID,
	})
	if err != nil {
		t.Fatalf("Submit fact: %v", err)
	}

	mr, err := env.Catalog.SubmitMerge(ctx, requester.ID, src.ID, dst.ID)
	if err != nil {
		t.Fatalf("SubmitMerge: %v", err)
	}
	for i := 0; i < 2; i++ {
		voter := testutil.SeedUser(t, env.DB, trust.CategoryVerified, 0)
		if _, err := env.Cons.CastVote(ctx, voter.ID, mr.VotableID, -1); err != nil {
			t.Fatalf("cast %d: %v", i, err)
		}
	}

	v, err := env.Cons.Get(ctx, nil, mr.VotableID)
	if err != nil {
		t.Fatalf("Get votable: %v", err)
	}
	if v.Status != consensus.StatusRejected {
		t.Errorf("status = %s, want REJECTED", v.Status)
	}

	kept, _ := env.Facts.Get(ctx, f.ID)
	if kept.CategoryID == nil || *kept.CategoryID != src.ID {
		t.Errorf("fact category = %v, want untouched %s", kept.CategoryID, src.ID)
	}
	gotSrc, _ := env.Catalog.GetCategory(ctx, src.ID)
	if gotSrc.Retired {
		t.Error("source category retired by a rejected merge")
	}

	// The pair can be proposed again once the first round closed.
	if _, err := env.Catalog.SubmitMerge(ctx, requester.ID, src.ID, dst.ID); err != nil {
		t.Errorf("re-propose after rejection: %v", err)
	}
}
