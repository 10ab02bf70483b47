// Package ranking orders experiment results for display.
package ranking

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jonathan/model-builder/internal/types"
)

// RankResults keeps the completed experiments and sorts them by test score,
// best first. A missing score counts as 0. Ties keep their input order.
// The input slice is not modified.
func RankResults(results []types.ExperimentResult) []types.ExperimentResult {
	ranked := make([]types.ExperimentResult, 0, len(results))
	for _, r := range results {
		if r.Status == types.ExperimentCompleted {
			ranked = append(ranked, r)
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score() > ranked[j].Score()
	})
	return ranked
}

// RankedIDs returns the experiment ids in ranked order
func RankedIDs(results []types.ExperimentResult) []string {
	ranked := RankResults(results)
	ids := make([]string, len(ranked))
	for i, r := range ranked {
		ids[i] = r.ExpID
	}
	return ids
}

// Summary is a one-line description of a training outcome
func Summary(outcome *types.TrainingOutcome) string {
	if outcome == nil {
		return "No training results"
	}
	ranked := RankResults(outcome.Results)
	total := outcome.TotalExperiments
	if total < len(outcome.Results) {
		total = len(outcome.Results)
	}

	var parts []string
	parts = append(parts, fmt.Sprintf("%d of %d experiments completed", len(ranked), total))
	if len(ranked) > 0 {
		best := ranked[0]
		parts = append(parts, fmt.Sprintf("best %s (%s) scored %.4f", best.ExpID, best.Model, best.Score()))
	}
	if failed := len(outcome.Failed()); failed > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", failed))
	}
	return strings.Join(parts, "; ")
}
