package v1

import (
	"strings"
	"time"

	"github.com/pkg/errors"

	abv1 "github.com/mixbaba/mixbaba/pkg/apis/abtest/v1"
)

// DateFormat is the layout of from/to dates in the funnels file and in analytics queries.
const DateFormat = "2006-01-02"

// NoDiscriminant is the discriminant name meaning "do not filter".
const NoDiscriminant = "None"

// FunnelsConfig is the document passed with --funnels. YAML and JSON are both accepted.
type FunnelsConfig struct {
	// ProbabilityThreshold and ControlTolerance override the evaluator defaults
	// for every funnel in the file, command line flags take precedence.
	ProbabilityThreshold *float64 `yaml:"probabilityThreshold,omitempty"`
	ControlTolerance     *float64 `yaml:"controlTolerance,omitempty"`

	Funnels []FunnelConfig `yaml:"funnels"`
}

type FunnelConfig struct {
	ID   int64  `yaml:"id"`
	Name string `yaml:"name"`

	FromDate string `yaml:"fromDate"`
	ToDate   string `yaml:"toDate"`

	// ImpressionField and ConversionField are the step labels counted as
	// impressions and conversions.
	ImpressionField string `yaml:"impressionField"`
	ConversionField string `yaml:"conversionField"`

	// By is the property the experiment groups are broken down on, in the form
	// "<type>.<name>", e.g. "properties.assignment".
	By string `yaml:"by"`

	// Groups maps roles (Control, Control2, Test, Test2, ...) to breakdown values.
	// When empty the roles are inferred from the breakdown values returned.
	Groups map[string]string `yaml:"groups,omitempty"`

	// Discriminants optionally split the analysis into cohorts.
	Discriminants []Discriminant `yaml:"discriminants,omitempty"`
}

// Discriminant is a property used to filter the funnel, with the cohorts (values)
// to analyze separately. Name has the form "<type>.<name>", e.g. "user.country";
// a name without a type uses the name for both.
type Discriminant struct {
	Name    string   `yaml:"name"`
	Cohorts []string `yaml:"cohorts"`
}

// TypeAndName splits the discriminant name into its property type and name.
func (d Discriminant) TypeAndName() (string, string) {
	return SplitProperty(d.Name)
}

// SplitProperty splits "<type>.<name>" on the first dot.
func SplitProperty(property string) (string, string) {
	if i := strings.Index(property, "."); i >= 0 {
		return property[:i], property[i+1:]
	}
	return property, property
}

// Assignment returns the configured roles, or nil when they should be inferred.
func (f FunnelConfig) Assignment() (*abv1.RoleAssignment, error) {
	if len(f.Groups) == 0 {
		return nil, nil
	}
	assignment, err := abv1.AssignmentFromMap(f.Groups)
	if err != nil {
		return nil, err
	}
	return &assignment, nil
}

// DateRange parses the from and to dates.
func (f FunnelConfig) DateRange() (time.Time, time.Time, error) {
	from, err := time.Parse(DateFormat, f.FromDate)
	if err != nil {
		return time.Time{}, time.Time{}, errors.Wrapf(err, "invalid fromDate %q", f.FromDate)
	}
	to, err := time.Parse(DateFormat, f.ToDate)
	if err != nil {
		return time.Time{}, time.Time{}, errors.Wrapf(err, "invalid toDate %q", f.ToDate)
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, errors.Errorf("toDate %s is before fromDate %s", f.ToDate, f.FromDate)
	}
	return from, to, nil
}

func (f FunnelConfig) Validate() error {
	if f.ID <= 0 {
		return errors.Errorf("funnel %q: id must be positive", f.Name)
	}
	if _, _, err := f.DateRange(); err != nil {
		return errors.WithMessagef(err, "funnel %d", f.ID)
	}
	if f.ImpressionField == "" || f.ConversionField == "" {
		return errors.Errorf("funnel %d: impressionField and conversionField are required", f.ID)
	}
	if !strings.Contains(f.By, ".") {
		return errors.Errorf("funnel %d: by must have the form <type>.<name>, got %q", f.ID, f.By)
	}
	if _, err := f.Assignment(); err != nil {
		return errors.WithMessagef(err, "funnel %d: invalid groups", f.ID)
	}
	for _, d := range f.Discriminants {
		if d.Name == "" {
			return errors.Errorf("funnel %d: discriminant without a name", f.ID)
		}
		if d.Name != NoDiscriminant && len(d.Cohorts) == 0 {
			return errors.Errorf("funnel %d: discriminant %s has no cohorts", f.ID, d.Name)
		}
	}
	return nil
}

func (c FunnelsConfig) Validate() error {
	if len(c.Funnels) == 0 {
		return errors.New("no funnels defined")
	}
	seen := map[int64]bool{}
	for _, f := range c.Funnels {
		if err := f.Validate(); err != nil {
			return err
		}
		if seen[f.ID] {
			return errors.Errorf("funnel %d defined twice", f.ID)
		}
		seen[f.ID] = true
	}
	return nil
}
