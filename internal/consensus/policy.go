package consensus

import (
	"context"

	"github.com/VeriFact/VF-Backend/internal/config"
	"github.com/VeriFact/VF-Backend/internal/trust"
	"gorm.io/gorm"
)

// Outcome is the direction a votable resolved in.
type Outcome string

const (
	OutcomePositive Outcome = "positive"
	OutcomeNegative Outcome = "negative"
)

// Policy parameterizes the aggregator per votable kind: thresholds, which
// statuses act as resolutions, and the hooks dependent subsystems register
// to run inside the resolving transaction. One strategy table instead of
// duplicated aggregation logic per entity.
type Policy struct {
	Thresholds config.Thresholds

	Positive Status
	Negative Status
	Disputed Status

	// AutoResolve enables threshold-driven transitions. Debate positions
	// leave it off: only an explicit conclusion freezes them.
	AutoResolve bool
	// AllowSelfVote permits the votable's author to vote on it.
	AllowSelfVote bool
	// RewardVoters applies the per-voter VERIFICATION_* deltas once at
	// resolution time.
	RewardVoters bool

	// AuthorApprovedReason / AuthorRejectedReason, when set, are applied to
	// the votable's author on resolution.
	AuthorApprovedReason trust.Reason
	AuthorRejectedReason trust.Reason

	// OnResolved runs inside the resolving transaction after status and
	// trust deltas are committed to it. A hook error rolls everything back.
	OnResolved func(ctx context.Context, tx *gorm.DB, v *Votable, outcome Outcome) error
	// OnDisputed runs when a quorate subject lands in the disputed band.
	OnDisputed func(ctx context.Context, tx *gorm.DB, v *Votable) error
}

// evaluate applies the transition rules in priority order and returns the
// status the subject should hold after a recompute. Resolved statuses are
// never produced for sub-quorum subjects, and a subject that is already
// resolved is not evaluated here at all.
func evaluate(pol Policy, count int, score float64, current Status) Status {
	if !pol.AutoResolve {
		return current
	}
	if count < pol.Thresholds.Quorum {
		return current
	}
	if score >= pol.Thresholds.HighThreshold {
		return pol.Positive
	}
	if score <= -pol.Thresholds.HighThreshold {
		return pol.Negative
	}
	if abs(score) < pol.Thresholds.LowThreshold {
		return pol.Disputed
	}
	return current
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
