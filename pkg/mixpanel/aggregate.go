package mixpanel

import (
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"

	abv1 "github.com/mixbaba/mixbaba/pkg/apis/abtest/v1"
)

// StepCounts maps a breakdown value (experiment group) to the count of every funnel step label.
type StepCounts map[string]map[string]int64

// AggregateFunnelData sums the per-date funnel counts of a funnels response:
//
//	{"data": {"<date>": {"<group>": [{"step_label": "...", "count": N}, ...]}}}
func AggregateFunnelData(body []byte) (StepCounts, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.New("invalid JSON in funnel response")
	}
	data := gjson.GetBytes(body, "data")
	if !data.Exists() || !data.IsObject() {
		return nil, errors.New("funnel response has no data object")
	}

	aggregated := StepCounts{}
	data.ForEach(func(_, groups gjson.Result) bool {
		groups.ForEach(func(group, steps gjson.Result) bool {
			if !steps.IsArray() {
				return true
			}
			counts, ok := aggregated[group.String()]
			if !ok {
				counts = map[string]int64{}
				aggregated[group.String()] = counts
			}
			steps.ForEach(func(_, step gjson.Result) bool {
				counts[step.Get("step_label").String()] += step.Get("count").Int()
				return true
			})
			return true
		})
		return true
	})
	return aggregated, nil
}

// Observations picks the impression and conversion steps of every group. A step
// absent for a group counts as zero.
func (s StepCounts) Observations(impressionField, conversionField string) abv1.Observations {
	obs := make(abv1.Observations, len(s))
	for group, steps := range s {
		obs[group] = abv1.Counts{
			Impressions: steps[impressionField],
			Conversions: steps[conversionField],
		}
	}
	return obs
}
