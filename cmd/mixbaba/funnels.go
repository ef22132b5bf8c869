package main

import (
	"context"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/mixbaba/mixbaba/pkg/flags"
	"github.com/mixbaba/mixbaba/pkg/report"
)

type FunnelsFlags struct {
	MixpanelFlags *flags.MixpanelFlags
}

// NewFunnelsCommand lists the saved funnels of the project, to help writing a funnels file.
func NewFunnelsCommand() *cobra.Command {
	f := &FunnelsFlags{
		MixpanelFlags: flags.NewMixpanelFlags(),
	}

	cmd := &cobra.Command{
		Use:   "funnels",
		Short: "List the funnels saved in the Mixpanel project",
		RunE: func(cmd *cobra.Command, arguments []string) error {
			if err := f.MixpanelFlags.Validate(); err != nil {
				return errors.WithMessage(err, "error validating options")
			}
			return f.Run(cmd.Context(), cmd.OutOrStdout())
		},
	}

	f.BindFlags(cmd.Flags())

	return cmd
}

func (f *FunnelsFlags) BindFlags(fs *pflag.FlagSet) {
	f.MixpanelFlags.BindFlags(fs)
}

func (f *FunnelsFlags) Run(ctx context.Context, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	client := f.MixpanelFlags.GetClient(nil, 0)
	defer client.Close()
	funnels, err := client.ListFunnels(ctx)
	if err != nil {
		return errors.WithMessage(err, "couldn't list funnels")
	}

	table := report.Table{Header: []string{"ID", "Name"}}
	for _, fn := range funnels {
		table.Rows = append(table.Rows, []string{fmt.Sprint(fn.ID), fn.Name})
	}
	report.WriteTable(out, table)
	return nil
}
