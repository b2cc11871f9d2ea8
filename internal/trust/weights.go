package trust

import "math"

// Trust scores are clamped to this range; deltas outside it never error,
// they saturate.
const (
	MinScore = -50
	MaxScore = 500
)

// BaseWeight converts an account category into its raw voting weight.
func BaseWeight(c Category) float64 {
	switch c {
	case CategoryAnonymous:
		return 0.1
	case CategoryVerified:
		return 2
	case CategoryExpert:
		return 5
	case CategoryPhD:
		return 8
	case CategoryOrganization:
		return 100
	case CategoryModerator:
		return 3
	default:
		return 0
	}
}

// TrustModifier maps a trust score tier onto the multiplier applied to the
// base weight. Scores below the clamp floor yield 0: the vote is recorded
// but contributes nothing.
func TrustModifier(score int) float64 {
	switch {
	case score >= 100:
		return 1.5
	case score >= 50:
		return 1.2
	case score >= 0:
		return 1.0
	case score >= -25:
		return 0.5
	case score >= -50:
		return 0.25
	default:
		return 0
	}
}

// VoteWeight is the weight a user's vote carries at the moment it is cast.
// Rounded to two decimals so weighted totals stay deterministic.
func VoteWeight(c Category, score int) float64 {
	return Round(BaseWeight(c) * TrustModifier(score))
}

// Round fixes a weight or score to the engine's two-decimal precision.
func Round(v float64) float64 {
	return math.Round(v*100) / 100
}

// Clamp saturates a trust score to [MinScore, MaxScore].
func Clamp(score int) int {
	if score < MinScore {
		return MinScore
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}
