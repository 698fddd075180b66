package snapshot

import (
	"math"

	"github.com/nickadesina/soc-cli/pkg/inference"
)

// weightConverter maps an on-disk weight to a distance weight.
type weightConverter func(float64) float64

func identityWeight(w float64) float64 { return w }

// looksLikeDistanceWeights reports whether every weight already fits the
// distance model: finite integers within [MinDistance, MaxDistance]. CSV
// files carry no model marker, so this heuristic decides conversion.
func looksLikeDistanceWeights(weights []float64) bool {
	for _, w := range weights {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return false
		}
		if w < inference.MinDistance || w > inference.MaxDistance {
			return false
		}
		if w != math.Trunc(w) {
			return false
		}
	}
	return true
}

// legacyStrengthConverter builds a converter from the old strength scale
// (bigger = closer, unbounded) onto the distance scale. Strengths are
// normalized against the strongest tie in the file and projected across
// [MinDistance, MaxDistance]; non-positive or non-finite strengths land on
// MaxDistance, the weakest representable tie.
func legacyStrengthConverter(weights []float64) weightConverter {
	maxStrength := 0.0
	for _, w := range weights {
		if !math.IsNaN(w) && !math.IsInf(w, 0) && w > maxStrength {
			maxStrength = w
		}
	}
	if maxStrength <= 0 {
		return func(float64) float64 { return inference.MaxDistance }
	}

	span := float64(inference.MaxDistance - inference.MinDistance)
	return func(w float64) float64 {
		if math.IsNaN(w) || math.IsInf(w, 0) || w <= 0 {
			return inference.MaxDistance
		}
		raw := float64(inference.MaxDistance) - (w/maxStrength)*span
		rounded := math.Round(raw)
		if rounded < inference.MinDistance {
			return inference.MinDistance
		}
		if rounded > inference.MaxDistance {
			return inference.MaxDistance
		}
		return rounded
	}
}
