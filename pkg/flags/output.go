package flags

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"

	"github.com/mixbaba/mixbaba/pkg/report"
)

// OutputFlags select where and how results are reported.
type OutputFlags struct {
	Output   string
	Format   string
	Dir      string
	Detailed bool
}

func NewOutputFlags() *OutputFlags {
	return &OutputFlags{
		Output: string(report.TargetTerminal),
		Format: string(report.FormatShort),
	}
}

func (f *OutputFlags) BindFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&f.Output, "output", "o", f.Output, "Where results are written: {terminal,csv,xlsx,both}")
	fs.StringVar(&f.Format, "output-format", f.Format, "Table layout: {short,long}")
	fs.StringVar(&f.Dir, "output-dir", f.Dir, "Directory for csv and xlsx files, defaults to the working directory")
	fs.BoolVar(&f.Detailed, "detailed", f.Detailed, "Include the raw impression and conversion counts")
}

func (f *OutputFlags) Validate() error {
	if _, err := report.ParseTarget(f.Output); err != nil {
		return err
	}
	if _, err := report.ParseFormat(f.Format); err != nil {
		return err
	}
	if f.Dir != "" {
		info, err := os.Stat(f.Dir)
		if err != nil {
			return errors.WithMessage(err, "invalid --output-dir")
		}
		if !info.IsDir() {
			return errors.Errorf("--output-dir %s is not a directory", f.Dir)
		}
	}
	return nil
}

// ReportOptions must only be called after Validate.
func (f *OutputFlags) ReportOptions(out io.Writer) report.Options {
	target, _ := report.ParseTarget(f.Output)
	format, _ := report.ParseFormat(f.Format)
	return report.Options{
		Target:   target,
		Format:   format,
		Detailed: f.Detailed,
		Dir:      f.Dir,
		Out:      out,
	}
}
