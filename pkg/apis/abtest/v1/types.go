package v1

import (
	"fmt"
)

// Counts is a Bernoulli sample: how many users saw a step and how many of them converted.
type Counts struct {
	Impressions int64 `json:"impressions" yaml:"impressions"`
	Conversions int64 `json:"conversions" yaml:"conversions"`
}

// Valid reports whether 0 <= conversions <= impressions.
func (c Counts) Valid() bool {
	return c.Conversions >= 0 && c.Impressions >= 0 && c.Conversions <= c.Impressions
}

// Add pools two samples.
func (c Counts) Add(other Counts) Counts {
	return Counts{
		Impressions: c.Impressions + other.Impressions,
		Conversions: c.Conversions + other.Conversions,
	}
}

func (c Counts) String() string {
	return fmt.Sprintf("%d/%d", c.Conversions, c.Impressions)
}

// Observations maps a group identifier (the breakdown value, e.g. "control") to its counts.
type Observations map[string]Counts

// Groups returns the identifiers present in the observations.
func (o Observations) Groups() []string {
	groups := make([]string, 0, len(o))
	for g := range o {
		groups = append(groups, g)
	}
	return groups
}

// Comparison is the outcome of comparing a test sample against a control sample.
type Comparison struct {
	// Uplift is the relative difference of the posterior means, (test - control) / control.
	Uplift float64 `json:"uplift"`
	// Probability that the test rate exceeds the control rate.
	Probability float64 `json:"probability"`
	// FisherExact is the two sided p-value of Fisher's exact test on the same 2x2 table.
	FisherExact float64 `json:"fisher_exact"`
}

// Status is the state an evaluation, or a single arm of it, ended in.
type Status int

const (
	// ControlsDisagree indicates the two control groups are statistically distinguishable
	ControlsDisagree Status = -5
	// InsufficientControl2Data indicates the second control has no conversions
	InsufficientControl2Data Status = -4
	// InsufficientControlData indicates the control has no conversions
	InsufficientControlData Status = -3
	// InsufficientData indicates a required group or field is missing from the data
	InsufficientData Status = -2
	// ArmInsufficientData indicates a test arm has no conversions and was skipped
	ArmInsufficientData Status = -1
	// Uncertain indicates the probability did not reach the threshold
	Uncertain Status = 0
	// Significant indicates the probability exceeds the threshold
	Significant Status = 1
	// Evaluated indicates every test arm was processed
	Evaluated Status = 2
)

func (s Status) String() string {
	switch s {
	case ControlsDisagree:
		return "ControlsDisagree"
	case InsufficientControl2Data:
		return "InsufficientControl2Data"
	case InsufficientControlData:
		return "InsufficientControlData"
	case InsufficientData:
		return "InsufficientData"
	case ArmInsufficientData:
		return "ArmInsufficientData"
	case Uncertain:
		return "Uncertain"
	case Significant:
		return "Significant"
	case Evaluated:
		return "Evaluated"
	}
	return "Unknown"
}

// Terminal reports whether an evaluation stopped before comparing any test arm.
func (s Status) Terminal() bool {
	return s <= InsufficientData
}

// MarshalText lets statuses be used as JSON/YAML values and map keys.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

const (
	CommentTooFewData       = "Too few data!"
	CommentControlsDiffer   = "The two control options show different behavior!"
	CommentResultOK         = "Result is OK!"
	CommentResultUncertain  = "Result is uncertain! Check data"
	CommentNoArmConversions = "No conversions for this test group"
)

// ArmResult holds the outcome for one test arm.
type ArmResult struct {
	// Arm is the role name, e.g. Test or Test2.
	Arm     string `json:"arm"`
	Group   string `json:"group"`
	Status  Status `json:"status"`
	Comment string `json:"comment"`
	Counts  Counts `json:"counts"`

	// Uplift, Probability and FisherExact are nil when the arm was skipped.
	Uplift      *float64 `json:"uplift,omitempty"`
	Probability *float64 `json:"probability,omitempty"`
	FisherExact *float64 `json:"fisher_exact,omitempty"`
}

// Record is the evaluation of one funnel for one filter combination.
type Record struct {
	Discriminant string `json:"discriminant"`
	Cohort       string `json:"cohort"`
	Status       Status `json:"status"`
	Comment      string `json:"comment"`

	// Control holds the effective control counts, pooled when a second control agreed.
	Control Counts      `json:"control"`
	Arms    []ArmResult `json:"arms,omitempty"`
}

// Arm returns the result for the named arm.
func (r Record) Arm(name string) (ArmResult, bool) {
	for _, a := range r.Arms {
		if a.Arm == name {
			return a, true
		}
	}
	return ArmResult{}, false
}

// Severity of a Diagnostic.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
)

// Diagnostic is a non fatal finding emitted alongside an evaluation, such as
// a group identifier that could not be mapped to a role.
type Diagnostic struct {
	Severity Severity `json:"severity"`
	Group    string   `json:"group,omitempty"`
	Message  string   `json:"message"`
}

func (d Diagnostic) String() string {
	if d.Group == "" {
		return d.Message
	}
	return fmt.Sprintf("%s: %s", d.Group, d.Message)
}

// Evaluation is the evaluator's output for one set of observations.
type Evaluation struct {
	Record Record         `json:"record"`
	Roles  RoleAssignment `json:"roles"`
	// Inferred is set when Roles were derived from the group identifiers.
	Inferred    bool         `json:"inferred"`
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
}
