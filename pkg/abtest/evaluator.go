// Package abtest decides whether the test arms of an experiment beat its control.
package abtest

import (
	"fmt"
	"math"
	"strings"

	fet "github.com/glycerine/golang-fisher-exact"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	v1 "github.com/mixbaba/mixbaba/pkg/apis/abtest/v1"
	"github.com/mixbaba/mixbaba/pkg/beta"
)

const (
	DefaultProbabilityThreshold = 0.95
	// DefaultControlTolerance is how far from 0.5 the probability between the two
	// controls may fall before they are considered different. Earlier versions of
	// the tool used 0.35.
	DefaultControlTolerance = 0.40
)

var (
	// ErrInsufficientData is returned when a sample has no conversions, so no
	// meaningful posterior can be compared.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrInvalidCounts is returned when conversions exceed impressions or a count is negative.
	ErrInvalidCounts = errors.New("invalid counts")
)

// Options tune the decision logic.
type Options struct {
	// ProbabilityThreshold is the probability a test arm must exceed to be reported as OK.
	ProbabilityThreshold float64 `json:"probability_threshold" yaml:"probabilityThreshold"`
	// ControlTolerance bounds |P(control2 > control) - 0.5| for the controls to be pooled.
	ControlTolerance float64 `json:"control_tolerance" yaml:"controlTolerance"`
}

func DefaultOptions() Options {
	return Options{
		ProbabilityThreshold: DefaultProbabilityThreshold,
		ControlTolerance:     DefaultControlTolerance,
	}
}

func (o Options) Validate() error {
	if !(o.ProbabilityThreshold > 0 && o.ProbabilityThreshold < 1) {
		return errors.Errorf("probability threshold must be in (0, 1), got %v", o.ProbabilityThreshold)
	}
	if !(o.ControlTolerance > 0 && o.ControlTolerance <= 0.5) {
		return errors.Errorf("control tolerance must be in (0, 0.5], got %v", o.ControlTolerance)
	}
	return nil
}

// BuildPosterior returns the Beta(conversions+1, impressions-conversions+1) posterior
// for a sample. Samples without conversions are rejected with ErrInsufficientData.
func BuildPosterior(c v1.Counts) (beta.Posterior, error) {
	if !c.Valid() {
		return beta.Posterior{}, errors.Wrapf(ErrInvalidCounts, "%d conversions for %d impressions", c.Conversions, c.Impressions)
	}
	if c.Conversions < 1 {
		return beta.Posterior{}, errors.Wrapf(ErrInsufficientData, "%d conversions", c.Conversions)
	}
	return beta.FromCounts(c.Impressions, c.Conversions), nil
}

// CompareGroups compares a test sample against a control sample, returning the
// relative uplift of the posterior means and the probability that the test
// rate exceeds the control rate.
func CompareGroups(control, test v1.Counts) (v1.Comparison, error) {
	controlPosterior, err := BuildPosterior(control)
	if err != nil {
		return v1.Comparison{}, errors.WithMessage(err, "control")
	}
	testPosterior, err := BuildPosterior(test)
	if err != nil {
		return v1.Comparison{}, errors.WithMessage(err, "test")
	}

	controlMean := controlPosterior.Mean()
	if controlMean == 0 || math.IsNaN(controlMean) {
		return v1.Comparison{}, errors.Wrap(ErrInsufficientData, "control mean is zero")
	}

	_, _, _, twoSided := fet.FisherExactTest(
		int(control.Conversions), int(control.Impressions-control.Conversions),
		int(test.Conversions), int(test.Impressions-test.Conversions))

	return v1.Comparison{
		Uplift:      (testPosterior.Mean() - controlMean) / controlMean,
		Probability: beta.ProbabilityGreater(controlPosterior, testPosterior),
		FisherExact: twoSided,
	}, nil
}

// Labels identify the filter combination an evaluation belongs to.
type Labels struct {
	Discriminant string
	Cohort       string
}

// Evaluator runs the control/test decision logic. It holds no state besides its
// options and is safe for concurrent use.
type Evaluator struct {
	options Options
}

func NewEvaluator(options Options) (*Evaluator, error) {
	if err := options.Validate(); err != nil {
		return nil, err
	}
	return &Evaluator{options: options}, nil
}

func (e *Evaluator) Options() Options {
	return e.options
}

// Evaluate compares every test arm against the control. When roles is nil the
// assignment is inferred from the observed group identifiers, and returned in the
// evaluation along with any diagnostics produced while inferring it.
func (e *Evaluator) Evaluate(obs v1.Observations, roles *v1.RoleAssignment, labels Labels) v1.Evaluation {
	evaluation := v1.Evaluation{}
	if roles == nil {
		evaluation.Roles, evaluation.Diagnostics = InferRoles(obs.Groups())
		evaluation.Inferred = true
	} else {
		evaluation.Roles = *roles
	}

	evaluation.Record = e.evaluate(obs, evaluation.Roles)
	evaluation.Record.Discriminant = labels.Discriminant
	evaluation.Record.Cohort = labels.Cohort

	log.WithFields(log.Fields{
		"discriminant": labels.Discriminant,
		"cohort":       labels.Cohort,
		"status":       evaluation.Record.Status,
	}).Debug("evaluated experiment")
	return evaluation
}

func stopped(status v1.Status, comment string) v1.Record {
	return v1.Record{Status: status, Comment: comment}
}

func (e *Evaluator) evaluate(obs v1.Observations, roles v1.RoleAssignment) v1.Record {
	control, ok := lookup(obs, roles.Control)
	if !ok {
		return stopped(v1.InsufficientData, v1.CommentTooFewData)
	}
	if control.Conversions < 1 {
		return stopped(v1.InsufficientControlData, v1.CommentTooFewData)
	}

	if roles.HasControl2() {
		control2, ok := lookup(obs, roles.Control2)
		if !ok {
			return stopped(v1.InsufficientData, v1.CommentTooFewData)
		}
		if control2.Conversions < 1 {
			return stopped(v1.InsufficientControl2Data, v1.CommentTooFewData)
		}
		agreement, err := CompareGroups(control, control2)
		if err != nil {
			return stopped(v1.InsufficientData, v1.CommentTooFewData)
		}
		if math.Abs(agreement.Probability-0.5) >= e.options.ControlTolerance {
			return stopped(v1.ControlsDisagree, v1.CommentControlsDiffer)
		}
		control = control.Add(control2)
	}

	if len(roles.Tests) == 0 {
		return stopped(v1.InsufficientData, v1.CommentTooFewData)
	}

	// every arm is looked up before any comparison, a missing group voids the whole record
	arms := make([]v1.ArmResult, 0, len(roles.Tests))
	for _, t := range roles.Tests {
		counts, ok := lookup(obs, t.Group)
		if !ok {
			return stopped(v1.InsufficientData, v1.CommentTooFewData)
		}
		arms = append(arms, v1.ArmResult{Arm: t.Name, Group: t.Group, Counts: counts})
	}

	for i := range arms {
		arms[i] = e.evaluateArm(control, arms[i])
	}

	return v1.Record{
		Status:  v1.Evaluated,
		Comment: summarizeArms(arms),
		Control: control,
		Arms:    arms,
	}
}

func (e *Evaluator) evaluateArm(control v1.Counts, arm v1.ArmResult) v1.ArmResult {
	if arm.Counts.Conversions < 1 {
		arm.Status = v1.ArmInsufficientData
		arm.Comment = v1.CommentNoArmConversions
		return arm
	}

	cmp, err := CompareGroups(control, arm.Counts)
	if err != nil {
		arm.Status = v1.ArmInsufficientData
		arm.Comment = v1.CommentTooFewData
		return arm
	}

	arm.Uplift = &cmp.Uplift
	arm.Probability = &cmp.Probability
	arm.FisherExact = &cmp.FisherExact
	if cmp.Probability > e.options.ProbabilityThreshold {
		arm.Status = v1.Significant
		arm.Comment = v1.CommentResultOK
	} else {
		arm.Status = v1.Uncertain
		arm.Comment = v1.CommentResultUncertain
	}
	return arm
}

// lookup fails for unassigned roles, absent groups and counts that break the
// conversions <= impressions invariant.
func lookup(obs v1.Observations, group string) (v1.Counts, bool) {
	if group == "" {
		return v1.Counts{}, false
	}
	counts, ok := obs[group]
	if !ok || !counts.Valid() {
		return v1.Counts{}, false
	}
	return counts, true
}

func summarizeArms(arms []v1.ArmResult) string {
	if len(arms) == 1 {
		return arms[0].Comment
	}
	parts := make([]string, 0, len(arms))
	for _, a := range arms {
		parts = append(parts, fmt.Sprintf("%s: %s", a.Arm, a.Comment))
	}
	return strings.Join(parts, "; ")
}
