package funnel

import (
	"testing"

	"github.com/stretchr/testify/assert"

	configv1 "github.com/mixbaba/mixbaba/pkg/apis/config/v1"
	"github.com/mixbaba/mixbaba/pkg/mixpanel"
)

func labels(combos []Combination) [][2]string {
	out := make([][2]string, 0, len(combos))
	for _, c := range combos {
		out = append(out, [2]string{c.Discriminant, c.Cohort})
	}
	return out
}

func TestCombinations(t *testing.T) {
	country := configv1.Discriminant{Name: "user.country", Cohorts: []string{"SE", "US"}}
	goal := configv1.Discriminant{Name: "properties.goal", Cohorts: []string{"prevent", "plan", "track"}}
	none := configv1.Discriminant{Name: configv1.NoDiscriminant}

	tests := []struct {
		name           string
		discriminants  []configv1.Discriminant
		crossed        bool
		expectedLabels [][2]string
	}{
		{
			name:           "no discriminants",
			expectedLabels: [][2]string{{"None", "None"}},
		},
		{
			name:          "separate discriminants",
			discriminants: []configv1.Discriminant{none, country, goal},
			expectedLabels: [][2]string{
				{"None", "None"},
				{"user.country", "SE"}, {"user.country", "US"},
				{"properties.goal", "prevent"}, {"properties.goal", "plan"}, {"properties.goal", "track"},
			},
		},
		{
			name:          "crossed discriminants",
			discriminants: []configv1.Discriminant{country, goal},
			crossed:       true,
			expectedLabels: [][2]string{
				{"user.country & properties.goal", "SE & prevent"},
				{"user.country & properties.goal", "SE & plan"},
				{"user.country & properties.goal", "SE & track"},
				{"user.country & properties.goal", "US & prevent"},
				{"user.country & properties.goal", "US & plan"},
				{"user.country & properties.goal", "US & track"},
			},
		},
		{
			name:           "crossed with only none",
			discriminants:  []configv1.Discriminant{none},
			crossed:        true,
			expectedLabels: [][2]string{{"None", "None"}},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expectedLabels, labels(Combinations(tc.discriminants, tc.crossed)))
		})
	}
}

func TestCombinationFilters(t *testing.T) {
	combos := Combinations([]configv1.Discriminant{
		{Name: "user.country", Cohorts: []string{"SE"}},
		{Name: "goal", Cohorts: []string{"plan"}},
	}, true)

	assert.Len(t, combos, 1)
	assert.Equal(t, []mixpanel.Filter{
		{Type: "user", Name: "country", Cohort: "SE"},
		{Type: "goal", Name: "goal", Cohort: "plan"},
	}, combos[0].Filters)
	assert.Empty(t, Combinations(nil, false)[0].Filters)
}
