package service

import (
	"math"
	"sort"
	"strings"

	"github.com/cloo-solutions/docqa/internal/domain"
)

const (
	confidenceSampleSize  = 3
	uncertaintyPenalty    = 0.7
	sectionReferenceBoost = 1.1
)

var (
	uncertaintyMarkers = []string{"cannot", "unclear", "not specified"}
	referenceMarkers   = []string{"section", "clause"}
)

// ScoreConfidence is a heuristic, not a calibrated probability.
//
// The base is the mean similarity of the three best passages (fewer if fewer
// exist, 0 if none). It is multiplied by 0.7 when the answer hedges and by
// 1.1 when it refers to a section or clause, then clamped to [0, 1].
func ScoreConfidence(retrieved []domain.RetrievedPassage, answer string) float64 {
	if len(retrieved) == 0 {
		return 0
	}

	scores := make([]float64, len(retrieved))
	for i, r := range retrieved {
		scores[i] = r.Similarity
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i] > scores[j] })
	if len(scores) > confidenceSampleSize {
		scores = scores[:confidenceSampleSize]
	}

	var sum float64
	for _, s := range scores {
		sum += s
	}
	score := sum / float64(len(scores))

	lower := strings.ToLower(answer)
	if containsAny(lower, uncertaintyMarkers) {
		score *= uncertaintyPenalty
	}
	if containsAny(lower, referenceMarkers) {
		score *= sectionReferenceBoost
	}

	return clamp01(score)
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
