// Package gap computes Global Average Precision at k, the ranking metric
// used for multi-label video classification benchmarks. Predictions are
// restricted to the top-k classes per video, flattened across the
// evaluation set, ranked globally by confidence, and scored by average
// precision against the full ground-truth positive count.
package gap

import (
	"fmt"
	"sort"
)

type rankedPair struct {
	score    float32
	positive bool
}

// Calculate scores parallel collections of prediction and ground-truth
// vectors. preds[i][c] is the predicted confidence that video i carries
// class c; actuals[i][c] > 0 marks a true label. Both collections must have
// equal length and per-video equal dimensionality. The result lies in [0,1].
//
// Ties in confidence break by class index, so the score is reproducible.
func Calculate(preds, actuals [][]float32, topK int) (float64, error) {
	if len(preds) == 0 {
		return 0, fmt.Errorf("gap: empty prediction set")
	}
	if len(preds) != len(actuals) {
		return 0, fmt.Errorf("gap: %d predictions vs %d ground truths", len(preds), len(actuals))
	}
	if topK <= 0 {
		return 0, fmt.Errorf("gap: top-k must be positive, got %d", topK)
	}

	var pairs []rankedPair
	totalPositives := 0
	for i := range preds {
		if len(preds[i]) != len(actuals[i]) {
			return 0, fmt.Errorf("gap: video %d has %d predictions but %d labels", i, len(preds[i]), len(actuals[i]))
		}
		for _, a := range actuals[i] {
			if a > 0 {
				totalPositives++
			}
		}
		pairs = append(pairs, topKPairs(preds[i], actuals[i], topK)...)
	}
	if totalPositives == 0 {
		return 0, nil
	}
	return averagePrecision(pairs, totalPositives), nil
}

// topKPairs selects the k highest-confidence predictions for one video.
func topKPairs(pred, actual []float32, k int) []rankedPair {
	if k > len(pred) {
		k = len(pred)
	}
	idx := make([]int, len(pred))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return pred[idx[a]] > pred[idx[b]]
	})

	pairs := make([]rankedPair, k)
	for i, c := range idx[:k] {
		pairs[i] = rankedPair{score: pred[c], positive: actual[c] > 0}
	}
	return pairs
}

// averagePrecision ranks pairs by descending confidence and accumulates
// precision at each positive hit, normalized by the full positive count
// (not just the positives that survived the per-video top-k cut).
func averagePrecision(pairs []rankedPair, totalPositives int) float64 {
	sort.SliceStable(pairs, func(a, b int) bool {
		return pairs[a].score > pairs[b].score
	})

	deltaRecall := 1.0 / float64(totalPositives)
	ap := 0.0
	hits := 0
	for i, p := range pairs {
		if p.positive {
			hits++
			ap += float64(hits) / float64(i+1) * deltaRecall
		}
	}
	return ap
}
