package inference

import "math"

// Output distance scale.
const (
	// MinDistance is the floor of the scale, reachable only by explicit ties.
	MinDistance = 1
	// MinInferredDistance reserves distance 1 for the strongest explicit ties.
	MinInferredDistance = 2
	// MaxDistance is the weakest relationship still worth an edge.
	MaxDistance = 12
)

// Score shaping.
const (
	// ScoreDivisor converts evidence points into closeness steps.
	ScoreDivisor = 2
	// MaxClosenessSteps bounds how far inferred evidence can walk the scale.
	MaxClosenessSteps = 10
	// ExplicitDistance is the guaranteed ceiling for any explicit tie.
	ExplicitDistance = 2
	// RelevanceThreshold is the minimum inferred evidence score required to
	// propose an edge at all.
	RelevanceThreshold = 5
)

// MapScore converts an evidence score into a distance in [1, 12], smaller
// meaning closer. The second return is false when the candidate is gated
// out: a non-explicit score below RelevanceThreshold proposes no edge.
//
// Inferred scores first pass through a concave compression
// (floor(sqrt(score)) * 4) so dense attribute clusters cannot produce
// unbounded closeness. Explicit ties map linearly and are then clamped to
// ExplicitDistance, so a declared relationship is never weaker than 2
// regardless of how much inferred evidence happens to be in the same score.
func MapScore(score int, explicit bool) (int, bool) {
	if !explicit && score < RelevanceThreshold {
		return 0, false
	}

	if explicit {
		raw := scoreToDistance(score, MinDistance, MaxDistance-MinDistance)
		if raw > ExplicitDistance {
			raw = ExplicitDistance
		}
		return raw, true
	}

	shaped := diminishingReturns(score)
	return scoreToDistance(shaped, MinInferredDistance, MaxClosenessSteps), true
}

// diminishingReturns applies the concave compression to inferred scores.
func diminishingReturns(score int) int {
	if score <= 0 {
		return 0
	}
	return int(math.Sqrt(float64(score))) * 4
}

func scoreToDistance(score, minDistance, maxSteps int) int {
	span := MaxDistance - minDistance
	if maxSteps > span {
		maxSteps = span
	}
	steps := score / ScoreDivisor
	steps = clampInt(steps, 0, maxSteps)
	return clampInt(MaxDistance-steps, minDistance, MaxDistance)
}

func clampInt(v, low, high int) int {
	if v < low {
		return low
	}
	if v > high {
		return high
	}
	return v
}
