package flags

import (
	"github.com/pkg/errors"
	"github.com/spf13/pflag"

	"github.com/mixbaba/mixbaba/pkg/abtest"
	configv1 "github.com/mixbaba/mixbaba/pkg/apis/config/v1"
	"github.com/mixbaba/mixbaba/pkg/funnel"
)

const (
	probabilityThresholdFlag = "probability-threshold"
	controlToleranceFlag     = "control-tolerance"
)

// AnalysisFlags tune the evaluator and the funnel analyzer.
type AnalysisFlags struct {
	ProbabilityThreshold float64
	ControlTolerance     float64
	CrossedFilters       bool
	Parallelism          int

	fs *pflag.FlagSet
}

func NewAnalysisFlags() *AnalysisFlags {
	return &AnalysisFlags{
		ProbabilityThreshold: abtest.DefaultProbabilityThreshold,
		ControlTolerance:     abtest.DefaultControlTolerance,
		Parallelism:          funnel.DefaultParallelism,
	}
}

func (f *AnalysisFlags) BindFlags(fs *pflag.FlagSet) {
	f.fs = fs
	fs.Float64Var(&f.ProbabilityThreshold, probabilityThresholdFlag, f.ProbabilityThreshold,
		"Probability a test group must exceed to be reported as OK")
	fs.Float64Var(&f.ControlTolerance, controlToleranceFlag, f.ControlTolerance,
		"Maximum distance from 0.5 of the probability between the two control groups for them to be pooled")
	fs.BoolVarP(&f.CrossedFilters, "crossed-filters", "x", f.CrossedFilters,
		"Analyze every combination of the discriminants' cohorts instead of each cohort separately")
	fs.IntVar(&f.Parallelism, "parallelism", f.Parallelism, "Number of funnel slices fetched and evaluated at once")
}

func (f *AnalysisFlags) Validate() error {
	if f.Parallelism < 1 {
		return errors.New("--parallelism must be at least 1")
	}
	return nil
}

func (f *AnalysisFlags) changed(name string) bool {
	return f.fs != nil && f.fs.Changed(name)
}

// EvaluatorOptions resolves the evaluator options. A flag set on the command line
// wins over the funnels file, which wins over the defaults.
func (f *AnalysisFlags) EvaluatorOptions(cfg *configv1.FunnelsConfig) (abtest.Options, error) {
	opts := abtest.Options{
		ProbabilityThreshold: f.ProbabilityThreshold,
		ControlTolerance:     f.ControlTolerance,
	}
	if cfg != nil && cfg.ProbabilityThreshold != nil && !f.changed(probabilityThresholdFlag) {
		opts.ProbabilityThreshold = *cfg.ProbabilityThreshold
	}
	if cfg != nil && cfg.ControlTolerance != nil && !f.changed(controlToleranceFlag) {
		opts.ControlTolerance = *cfg.ControlTolerance
	}
	if err := opts.Validate(); err != nil {
		return abtest.Options{}, err
	}
	return opts, nil
}

func (f *AnalysisFlags) AnalyzerOptions() []funnel.Option {
	return []funnel.Option{
		funnel.WithParallelism(f.Parallelism),
		funnel.WithCrossedFilters(f.CrossedFilters),
	}
}
