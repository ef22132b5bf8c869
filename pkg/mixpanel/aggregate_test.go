package mixpanel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	abv1 "github.com/mixbaba/mixbaba/pkg/apis/abtest/v1"
)

const funnelResponse = `{
  "meta": {"dates": ["2024-01-01", "2024-02-01"]},
  "data": {
    "2024-01-01": {
      "control": [
        {"step_label": "Viewed paywall", "count": 6000, "overall_conv_ratio": 1},
        {"step_label": "Purchased", "count": 60, "overall_conv_ratio": 0.01}
      ],
      "test": [
        {"step_label": "Viewed paywall", "count": 5000},
        {"step_label": "Purchased", "count": 70}
      ]
    },
    "2024-02-01": {
      "control": [
        {"step_label": "Viewed paywall", "count": 4000},
        {"step_label": "Purchased", "count": 40}
      ],
      "test": [
        {"step_label": "Viewed paywall", "count": 5000},
        {"step_label": "Purchased", "count": 50}
      ],
      "test2": [
        {"step_label": "Viewed paywall", "count": 300}
      ]
    },
    "2024-03-01": {}
  }
}`

func TestAggregateFunnelData(t *testing.T) {
	aggregated, err := AggregateFunnelData([]byte(funnelResponse))
	require.NoError(t, err)

	assert.Equal(t, StepCounts{
		"control": {"Viewed paywall": 10000, "Purchased": 100},
		"test":    {"Viewed paywall": 10000, "Purchased": 120},
		"test2":   {"Viewed paywall": 300},
	}, aggregated)
}

func TestAggregateFunnelDataErrors(t *testing.T) {
	for name, body := range map[string]string{
		"invalid json": `{"data": `,
		"no data":      `{"meta": {}}`,
		"data array":   `{"data": []}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := AggregateFunnelData([]byte(body))
			assert.Error(t, err)
		})
	}
}

func TestObservations(t *testing.T) {
	aggregated, err := AggregateFunnelData([]byte(funnelResponse))
	require.NoError(t, err)

	assert.Equal(t, abv1.Observations{
		"control": {Impressions: 10000, Conversions: 100},
		"test":    {Impressions: 10000, Conversions: 120},
		"test2":   {Impressions: 300, Conversions: 0},
	}, aggregated.Observations("Viewed paywall", "Purchased"))
}
