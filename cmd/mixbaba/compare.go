package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/mixbaba/mixbaba/pkg/abtest"
	abv1 "github.com/mixbaba/mixbaba/pkg/apis/abtest/v1"
	"github.com/mixbaba/mixbaba/pkg/flags"
	"github.com/mixbaba/mixbaba/pkg/report"
)

// CompareFlags evaluates counts given on the command line, without Mixpanel.
type CompareFlags struct {
	AnalysisFlags *flags.AnalysisFlags

	Control  string
	Control2 string
	Tests    []string
	Format   string
}

func NewCompareCommand() *cobra.Command {
	f := &CompareFlags{
		AnalysisFlags: flags.NewAnalysisFlags(),
		Format:        string(report.FormatLong),
	}

	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare test groups against a control from raw impression and conversion counts",
		Example: `  mixbaba compare --control 10000:100 --test 10000:120
  mixbaba compare --control 5000:50 --control2 5000:48 --test 10000:120 --test 10000:95`,
		RunE: func(cmd *cobra.Command, arguments []string) error {
			if err := f.Validate(); err != nil {
				return errors.WithMessage(err, "error validating options")
			}
			return f.Run(cmd.OutOrStdout())
		},
	}

	f.BindFlags(cmd.Flags())

	return cmd
}

func (f *CompareFlags) BindFlags(fs *pflag.FlagSet) {
	f.AnalysisFlags.BindFlags(fs)
	fs.StringVar(&f.Control, "control", f.Control, "Control counts as impressions:conversions")
	fs.StringVar(&f.Control2, "control2", f.Control2, "Optional second control counts as impressions:conversions")
	fs.StringArrayVar(&f.Tests, "test", f.Tests, "Test counts as impressions:conversions, repeat for Test2 ... Test9")
	fs.StringVar(&f.Format, "output-format", f.Format, "Table layout: {short,long}")
}

func (f *CompareFlags) Validate() error {
	if f.Control == "" {
		return errors.New("--control is required")
	}
	if len(f.Tests) == 0 || len(f.Tests) > abv1.MaxTests {
		return errors.Errorf("between 1 and %d --test values are required", abv1.MaxTests)
	}
	if _, err := report.ParseFormat(f.Format); err != nil {
		return err
	}
	return nil
}

// observations names the groups after their roles, so the assignment is the identity.
func (f *CompareFlags) observations() (abv1.Observations, abv1.RoleAssignment, error) {
	obs := abv1.Observations{}
	var roles abv1.RoleAssignment

	control, err := parseCounts(f.Control)
	if err != nil {
		return nil, roles, errors.WithMessage(err, "--control")
	}
	roles.Control = string(abv1.RoleControl)
	obs[roles.Control] = control

	if f.Control2 != "" {
		control2, err := parseCounts(f.Control2)
		if err != nil {
			return nil, roles, errors.WithMessage(err, "--control2")
		}
		roles.Control2 = abv1.Role{Kind: abv1.RoleControl, Index: 2}.String()
		obs[roles.Control2] = control2
	}

	for i, t := range f.Tests {
		counts, err := parseCounts(t)
		if err != nil {
			return nil, roles, errors.WithMessagef(err, "--test %d", i+1)
		}
		name := abv1.Role{Kind: abv1.RoleTest, Index: i + 1}.String()
		roles.Tests = append(roles.Tests, abv1.Arm{Name: name, Group: name})
		obs[name] = counts
	}
	return obs, roles, nil
}

func (f *CompareFlags) Run(out io.Writer) error {
	options, err := f.AnalysisFlags.EvaluatorOptions(nil)
	if err != nil {
		return err
	}
	evaluator, err := abtest.NewEvaluator(options)
	if err != nil {
		return err
	}
	obs, roles, err := f.observations()
	if err != nil {
		return err
	}

	evaluation := evaluator.Evaluate(obs, &roles, abtest.Labels{})
	arms := make([]string, 0, len(roles.Tests))
	for _, t := range roles.Tests {
		arms = append(arms, t.Name)
	}
	format, _ := report.ParseFormat(f.Format)
	report.WriteTable(out, report.Rows([]abv1.Record{evaluation.Record}, arms, format, true))
	fmt.Fprintf(out, "%s: %s\n", evaluation.Record.Status, evaluation.Record.Comment)
	return nil
}

// parseCounts parses "impressions:conversions".
func parseCounts(s string) (abv1.Counts, error) {
	imps, convs, ok := strings.Cut(s, ":")
	if !ok {
		return abv1.Counts{}, errors.Errorf("invalid counts %q, expected impressions:conversions", s)
	}
	var c abv1.Counts
	var err error
	if c.Impressions, err = strconv.ParseInt(strings.TrimSpace(imps), 10, 64); err != nil {
		return abv1.Counts{}, errors.Wrapf(err, "invalid impressions in %q", s)
	}
	if c.Conversions, err = strconv.ParseInt(strings.TrimSpace(convs), 10, 64); err != nil {
		return abv1.Counts{}, errors.Wrapf(err, "invalid conversions in %q", s)
	}
	if !c.Valid() {
		return abv1.Counts{}, errors.Errorf("invalid counts %q, conversions must be between 0 and impressions", s)
	}
	return c, nil
}
