package main

import (
	"context"
	"io"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/mixbaba/mixbaba/pkg/abtest"
	"github.com/mixbaba/mixbaba/pkg/flags"
	"github.com/mixbaba/mixbaba/pkg/flags/configflags"
	"github.com/mixbaba/mixbaba/pkg/funnel"
	"github.com/mixbaba/mixbaba/pkg/report"
)

type AnalyzeFlags struct {
	ConfigFlags   *configflags.ConfigFlags
	MixpanelFlags *flags.MixpanelFlags
	AnalysisFlags *flags.AnalysisFlags
	OutputFlags   *flags.OutputFlags
	CacheFlags    *flags.CacheFlags
	MetricsFlags  *flags.MetricsFlags
}

func NewAnalyzeFlags() *AnalyzeFlags {
	return &AnalyzeFlags{
		ConfigFlags:   configflags.NewConfigFlags(),
		MixpanelFlags: flags.NewMixpanelFlags(),
		AnalysisFlags: flags.NewAnalysisFlags(),
		OutputFlags:   flags.NewOutputFlags(),
		CacheFlags:    flags.NewCacheFlags(),
		MetricsFlags:  flags.NewMetricsFlags(),
	}
}

func NewAnalyzeCommand() *cobra.Command {
	f := NewAnalyzeFlags()

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze the A/B tests of the funnels in a funnels file",
		RunE: func(cmd *cobra.Command, arguments []string) error {
			if err := f.Validate(); err != nil {
				return errors.WithMessage(err, "error validating options")
			}
			if err := f.Run(cmd.Context(), cmd.OutOrStdout()); err != nil {
				return errors.WithMessage(err, "error running command")
			}
			return nil
		},
	}

	f.BindFlags(cmd.Flags())

	return cmd
}

func (f *AnalyzeFlags) BindFlags(fs *pflag.FlagSet) {
	f.ConfigFlags.BindFlags(fs)
	f.MixpanelFlags.BindFlags(fs)
	f.AnalysisFlags.BindFlags(fs)
	f.OutputFlags.BindFlags(fs)
	f.CacheFlags.BindFlags(fs)
	f.MetricsFlags.BindFlags(fs)
}

func (f *AnalyzeFlags) Validate() error {
	if err := f.ConfigFlags.Validate(); err != nil {
		return err
	}
	if err := f.MixpanelFlags.Validate(); err != nil {
		return err
	}
	if err := f.AnalysisFlags.Validate(); err != nil {
		return err
	}
	if err := f.OutputFlags.Validate(); err != nil {
		return err
	}
	return f.CacheFlags.Validate()
}

// Run analyzes every funnel of the file. A funnel that fails is logged and
// skipped; the command fails at the end if any did.
func (f *AnalyzeFlags) Run(ctx context.Context, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := log.WithField("run", uuid.New().String())

	funnelsConfig, err := f.ConfigFlags.GetConfig()
	if err != nil {
		return err
	}
	options, err := f.AnalysisFlags.EvaluatorOptions(funnelsConfig)
	if err != nil {
		return err
	}
	evaluator, err := abtest.NewEvaluator(options)
	if err != nil {
		return err
	}

	cacheClient, err := f.CacheFlags.GetCacheClient()
	if err != nil {
		return errors.WithMessage(err, "couldn't get cache client")
	}
	client := f.MixpanelFlags.GetClient(cacheClient, f.CacheFlags.TTL)
	defer client.Close()
	analyzer := funnel.NewAnalyzer(client, evaluator, f.AnalysisFlags.AnalyzerOptions()...)

	logger.WithFields(log.Fields{
		"funnels":   len(funnelsConfig.Funnels),
		"threshold": options.ProbabilityThreshold,
		"tolerance": options.ControlTolerance,
	}).Info("starting analysis")

	reportOptions := f.OutputFlags.ReportOptions(out)
	failed := 0
	for _, fc := range funnelsConfig.Funnels {
		funnelLogger := logger.WithFields(log.Fields{"funnel": fc.ID, "name": fc.Name})
		result, err := analyzer.Analyze(ctx, fc)
		if err != nil {
			funnelLogger.WithError(err).Error("funnel analysis failed")
			failed++
			continue
		}
		if _, err := report.Write(result, reportOptions); err != nil {
			funnelLogger.WithError(err).Error("could not write results")
			failed++
		}
	}

	if err := f.MetricsFlags.WriteMetrics(); err != nil {
		logger.WithError(err).Warn("could not write metrics")
	}
	if failed > 0 {
		return errors.Errorf("%d of %d funnels failed", failed, len(funnelsConfig.Funnels))
	}
	logger.Info("analysis complete")
	return nil
}
