package usecase

import (
	"context"

	"github.com/example/agrilens/internal/outcome"
)

// OutcomeShare is how often one label was produced.
type OutcomeShare struct {
	Label    string  `json:"label"`
	Count    int64   `json:"count"`
	Share    float64 `json:"share"`
	Expected float64 `json:"expected"`
}

// OutcomeSummary compares observed outcome frequencies with the configured
// selection weights.
type OutcomeSummary struct {
	Kind     outcome.Kind   `json:"kind"`
	Total    int64          `json:"total"`
	Outcomes []OutcomeShare `json:"outcomes"`
}

// GetOutcomeSummary aggregates persisted outcomes of kind.
func (uc *ScanUseCase) GetOutcomeSummary(ctx context.Context, kind outcome.Kind) (*OutcomeSummary, error) {
	rows, err := uc.repo.CountOutcomes(ctx, string(kind))
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	summary := &OutcomeSummary{Kind: kind}
	for _, row := range rows {
		counts[row.Label] = row.Count
		summary.Total += row.Count
	}

	expected := outcome.ExpectedShares(kind)
	for _, label := range outcome.Labels(kind) {
		share := OutcomeShare{Label: label, Count: counts[label], Expected: expected[label]}
		if summary.Total > 0 {
			share.Share = float64(share.Count) / float64(summary.Total)
		}
		summary.Outcomes = append(summary.Outcomes, share)
	}
	return summary, nil
}
