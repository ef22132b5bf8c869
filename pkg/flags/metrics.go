package flags

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"
)

// MetricsFlags configure the export of the analysis metrics.
type MetricsFlags struct {
	TextFile string
}

func NewMetricsFlags() *MetricsFlags {
	return &MetricsFlags{}
}

func (f *MetricsFlags) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&f.TextFile, "metrics-file", f.TextFile,
		"Write the analysis metrics to this file in the node exporter textfile format")
}

// WriteMetrics writes the default registry to the configured file, if any.
func (f *MetricsFlags) WriteMetrics() error {
	if f.TextFile == "" {
		return nil
	}
	return errors.Wrapf(prometheus.WriteToTextfile(f.TextFile, prometheus.DefaultGatherer),
		"writing metrics to %s", f.TextFile)
}
