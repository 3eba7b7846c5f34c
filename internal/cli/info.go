package cli

import (
	"github.com/spf13/cobra"

	"github.com/eunmann/lasacres/pkg/aggregate"
)

func newInfoCommand(a *app) *cobra.Command {
	var withReport bool
	cmd := &cobra.Command{
		Use:   "info <file>",
		Short: "Print the metadata and acreage of one file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, s, err := a.setup(cmd)
			if err != nil {
				return err
			}
			s.NoProgress = true

			res, info, err := a.process(ctx, s, args[0], args)
			if err != nil {
				return err
			}
			if len(res.Records) == 0 {
				return ErrInterrupted
			}
			view := newFileView(res.Records[0], withReport)
			if s.Format == FormatText {
				return writeText(a.stdout, scanReport{RunInfo: info, Aggregate: aggregate.Aggregate(res.Records), Files: []fileView{view}})
			}
			return writeJSON(a.stdout, view)
		},
	}
	addScanFlags(cmd.Flags())
	cmd.Flags().BoolVar(&withReport, "report", false, "include the raw metadata report")
	return cmd
}
