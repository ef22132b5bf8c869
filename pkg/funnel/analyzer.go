// Package funnel runs the experiment evaluation over every slice of a funnel.
package funnel

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/mixbaba/mixbaba/pkg/abtest"
	abv1 "github.com/mixbaba/mixbaba/pkg/apis/abtest/v1"
	configv1 "github.com/mixbaba/mixbaba/pkg/apis/config/v1"
	"github.com/mixbaba/mixbaba/pkg/mixpanel"
)

const DefaultParallelism = 4

// Fetcher returns the step counts of a funnel slice, per experiment group.
type Fetcher interface {
	Funnel(ctx context.Context, q mixpanel.FunnelQuery) (mixpanel.StepCounts, error)
}

type Analyzer struct {
	fetcher     Fetcher
	evaluator   *abtest.Evaluator
	parallelism int
	crossed     bool
}

type Option func(*Analyzer)

// WithParallelism bounds how many slices are fetched and evaluated at once.
func WithParallelism(n int) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.parallelism = n
		}
	}
}

// WithCrossedFilters analyzes the cartesian product of the discriminants' cohorts.
func WithCrossedFilters(crossed bool) Option {
	return func(a *Analyzer) {
		a.crossed = crossed
	}
}

func NewAnalyzer(fetcher Fetcher, evaluator *abtest.Evaluator, opts ...Option) *Analyzer {
	a := &Analyzer{
		fetcher:     fetcher,
		evaluator:   evaluator,
		parallelism: DefaultParallelism,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Result holds the evaluations of every slice of one funnel, sorted by discriminant then cohort.
type Result struct {
	Funnel      configv1.FunnelConfig
	Evaluations []abv1.Evaluation
}

func (r Result) Records() []abv1.Record {
	records := make([]abv1.Record, 0, len(r.Evaluations))
	for _, e := range r.Evaluations {
		records = append(records, e.Record)
	}
	return records
}

// Roles returns the role assignment of the first slice that has one. Configured
// roles are the same for all slices; inferred roles can differ when a group only
// shows up in some cohorts.
func (r Result) Roles() abv1.RoleAssignment {
	for _, e := range r.Evaluations {
		if e.Roles.Control != "" {
			return e.Roles
		}
	}
	return abv1.RoleAssignment{}
}

// Arms returns the arm names present in any slice, ordered by role index.
func (r Result) Arms() []string {
	seen := map[string]bool{}
	var arms []string
	for _, e := range r.Evaluations {
		for _, t := range e.Roles.Tests {
			if !seen[t.Name] {
				seen[t.Name] = true
				arms = append(arms, t.Name)
			}
		}
	}
	sort.Slice(arms, func(i, j int) bool {
		ri, _ := abv1.ParseRoleName(arms[i])
		rj, _ := abv1.ParseRoleName(arms[j])
		return ri.Index < rj.Index
	})
	return arms
}

// Analyze fetches and evaluates every slice of the funnel. Slices are independent
// and run in parallel; a fetch error cancels the remaining slices and is returned.
func (a *Analyzer) Analyze(ctx context.Context, funnel configv1.FunnelConfig) (*Result, error) {
	if err := funnel.Validate(); err != nil {
		return nil, err
	}
	from, to, err := funnel.DateRange()
	if err != nil {
		return nil, err
	}
	roles, err := funnel.Assignment()
	if err != nil {
		return nil, err
	}

	funnelLabel := strconv.FormatInt(funnel.ID, 10)
	logger := log.WithFields(log.Fields{"funnel": funnel.ID, "name": funnel.Name})
	combos := Combinations(funnel.Discriminants, a.crossed)
	logger.Infof("analyzing %d slices", len(combos))

	evaluations := make([]abv1.Evaluation, len(combos))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.parallelism)
	for i, combo := range combos {
		i, combo := i, combo
		g.Go(func() error {
			before := time.Now()
			counts, err := a.fetcher.Funnel(gctx, mixpanel.FunnelQuery{
				FunnelID: funnel.ID,
				From:     from,
				To:       to,
				By:       funnel.By,
				Filters:  combo.Filters,
			})
			fetchDurationMetric.WithLabelValues(funnelLabel).Observe(time.Since(before).Seconds())
			if err != nil {
				return errors.Wrapf(err, "fetching %s=%s", combo.Discriminant, combo.Cohort)
			}

			obs := counts.Observations(funnel.ImpressionField, funnel.ConversionField)
			evaluations[i] = a.evaluator.Evaluate(obs, roles, abtest.Labels{
				Discriminant: combo.Discriminant,
				Cohort:       combo.Cohort,
			})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.WithMessagef(err, "funnel %d", funnel.ID)
	}

	sort.SliceStable(evaluations, func(i, j int) bool {
		if evaluations[i].Record.Discriminant != evaluations[j].Record.Discriminant {
			return evaluations[i].Record.Discriminant < evaluations[j].Record.Discriminant
		}
		return evaluations[i].Record.Cohort < evaluations[j].Record.Cohort
	})

	for _, e := range evaluations {
		record(funnelLabel, e, logger)
	}
	return &Result{Funnel: funnel, Evaluations: evaluations}, nil
}

func record(funnelLabel string, e abv1.Evaluation, logger *log.Entry) {
	rec := e.Record
	evaluationsMetric.WithLabelValues(funnelLabel, rec.Status.String()).Inc()

	sliceLogger := logger.WithFields(log.Fields{
		"discriminant": rec.Discriminant,
		"cohort":       rec.Cohort,
	})
	for _, d := range e.Diagnostics {
		diagnosticsMetric.WithLabelValues(funnelLabel).Inc()
		sliceLogger.WithField("group", d.Group).Warn(d.Message)
	}

	for _, arm := range rec.Arms {
		if arm.Probability == nil {
			continue
		}
		armProbabilityMetric.WithLabelValues(funnelLabel, rec.Discriminant, rec.Cohort, arm.Arm).Set(*arm.Probability)
		armUpliftMetric.WithLabelValues(funnelLabel, rec.Discriminant, rec.Cohort, arm.Arm).Set(*arm.Uplift)
	}
	sliceLogger.WithField("status", rec.Status).Debug(rec.Comment)
}
