package funnel

import (
	"strings"

	configv1 "github.com/mixbaba/mixbaba/pkg/apis/config/v1"
	"github.com/mixbaba/mixbaba/pkg/mixpanel"
)

const labelSeparator = " & "

// Combination is one slice of the funnel data: the filters applied and the
// discriminant/cohort labels reported for it.
type Combination struct {
	Discriminant string
	Cohort       string
	Filters      []mixpanel.Filter
}

var unfiltered = Combination{Discriminant: configv1.NoDiscriminant, Cohort: configv1.NoDiscriminant}

// Combinations lists the slices to analyze. Without crossing, every cohort of
// every discriminant is analyzed on its own; with crossing, the cartesian product
// of the discriminants' cohorts is analyzed. A "None" discriminant, or no
// discriminant at all, adds the unfiltered slice. The order carries no priority.
func Combinations(discriminants []configv1.Discriminant, crossed bool) []Combination {
	var combos []Combination
	var filtered []configv1.Discriminant
	for _, d := range discriminants {
		if d.Name == configv1.NoDiscriminant {
			continue
		}
		filtered = append(filtered, d)
	}
	if len(filtered) < len(discriminants) || len(discriminants) == 0 {
		combos = append(combos, unfiltered)
	}

	if !crossed {
		for _, d := range filtered {
			for _, cohort := range d.Cohorts {
				combos = append(combos, combine(nil, d, cohort))
			}
		}
		return combos
	}

	if len(filtered) == 0 {
		return combos
	}
	product := []Combination{{}}
	for _, d := range filtered {
		next := make([]Combination, 0, len(product)*len(d.Cohorts))
		for _, partial := range product {
			for _, cohort := range d.Cohorts {
				next = append(next, combine(&partial, d, cohort))
			}
		}
		product = next
	}
	return append(combos, product...)
}

func combine(partial *Combination, d configv1.Discriminant, cohort string) Combination {
	discrType, discrName := d.TypeAndName()
	filter := mixpanel.Filter{Type: discrType, Name: discrName, Cohort: cohort}
	if partial == nil || len(partial.Filters) == 0 {
		return Combination{Discriminant: d.Name, Cohort: cohort, Filters: []mixpanel.Filter{filter}}
	}

	filters := make([]mixpanel.Filter, 0, len(partial.Filters)+1)
	filters = append(filters, partial.Filters...)
	return Combination{
		Discriminant: strings.Join([]string{partial.Discriminant, d.Name}, labelSeparator),
		Cohort:       strings.Join([]string{partial.Cohort, cohort}, labelSeparator),
		Filters:      append(filters, filter),
	}
}
