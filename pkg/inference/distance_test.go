package inference

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapScoreRelevanceGate(t *testing.T) {
	// Boundary: 4 is gated, 5 survives.
	_, ok := MapScore(RelevanceThreshold-1, false)
	assert.False(t, ok)

	dist, ok := MapScore(RelevanceThreshold, false)
	assert.True(t, ok)
	assert.Equal(t, 8, dist)
}

func TestMapScoreInferred(t *testing.T) {
	cases := []struct {
		score int
		want  int
	}{
		{5, 8},   // floor(sqrt(5))*4=8 -> 12-4
		{7, 8},   // floor(sqrt(7))*4=8
		{9, 6},   // floor(3)*4=12 -> 12-6
		{16, 4},  // 16 -> 12-8
		{25, 2},  // 20 shaped, 10 steps, floor at MinInferredDistance
		{100, 2}, // steps clamp at MaxClosenessSteps
	}
	for _, tc := range cases {
		dist, ok := MapScore(tc.score, false)
		assert.True(t, ok, "score %d", tc.score)
		assert.Equal(t, tc.want, dist, "score %d", tc.score)
	}
}

func TestMapScoreInferredNeverBelowFloor(t *testing.T) {
	for score := RelevanceThreshold; score <= 200; score++ {
		dist, ok := MapScore(score, false)
		if !ok {
			continue
		}
		assert.GreaterOrEqual(t, dist, MinInferredDistance, "score %d", score)
		assert.LessOrEqual(t, dist, MaxDistance, "score %d", score)
	}
}

func TestMapScoreMonotonic(t *testing.T) {
	prev := MaxDistance + 1
	for score := RelevanceThreshold; score <= 200; score++ {
		dist, ok := MapScore(score, false)
		if !ok {
			continue
		}
		assert.LessOrEqual(t, dist, prev, "distance must not grow with score (score %d)", score)
		prev = dist
	}
}

func TestMapScoreExplicit(t *testing.T) {
	// Explicit ties ignore the relevance gate entirely.
	dist, ok := MapScore(1, true)
	assert.True(t, ok)
	assert.Equal(t, ExplicitDistance, dist)

	// Moderate explicit evidence clamps to the explicit ceiling.
	dist, ok = MapScore(12, true)
	assert.True(t, ok)
	assert.Equal(t, ExplicitDistance, dist)

	// Massive explicit evidence can reach the absolute floor.
	dist, ok = MapScore(22, true)
	assert.True(t, ok)
	assert.Equal(t, MinDistance, dist)
}
