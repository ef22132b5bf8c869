package report

import (
	"github.com/montanaflynn/stats"

	abv1 "github.com/mixbaba/mixbaba/pkg/apis/abtest/v1"
)

// ArmSummary aggregates one test arm across every slice where it was compared.
type ArmSummary struct {
	Arm               string
	Slices            int
	Significant       int
	MeanProbability   float64
	MedianProbability float64
	MaxProbability    float64
	MeanUplift        float64
}

// Summarize computes per-arm statistics over the records. Arms never compared are omitted.
func Summarize(records []abv1.Record, arms []string) []ArmSummary {
	var summaries []ArmSummary
	for _, arm := range arms {
		var probabilities, uplifts []float64
		significant := 0
		for _, rec := range records {
			result, ok := rec.Arm(arm)
			if !ok || result.Probability == nil {
				continue
			}
			probabilities = append(probabilities, *result.Probability)
			uplifts = append(uplifts, *result.Uplift)
			if result.Status == abv1.Significant {
				significant++
			}
		}
		if len(probabilities) == 0 {
			continue
		}

		s := ArmSummary{Arm: arm, Slices: len(probabilities), Significant: significant}
		// errors are only returned for empty input
		s.MeanProbability, _ = stats.Mean(probabilities)
		s.MedianProbability, _ = stats.Median(probabilities)
		s.MaxProbability, _ = stats.Max(probabilities)
		s.MeanUplift, _ = stats.Mean(uplifts)
		summaries = append(summaries, s)
	}
	return summaries
}
