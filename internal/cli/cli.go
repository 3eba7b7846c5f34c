// Package cli implements the lasacres command line: scan, info and caps.
package cli

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/eunmann/lasacres/internal/logctx"
	"github.com/eunmann/lasacres/pkg/export"
	"github.com/eunmann/lasacres/pkg/logging"
)

// Version is set at build time with -ldflags.
var Version = "dev"

// Run executes the CLI with the given arguments.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := newRootCommand(stdout, stderr)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	var cfgFile string
	a := &app{stdout: stdout, stderr: stderr, cfg: &cfgFile}

	root := &cobra.Command{
		Use:   "lasacres",
		Short: "Estimate the surveyed acreage of LAS point-cloud files",
		Long: `lasacres reads the header metadata of every .las file in a directory
(or S3 prefix), computes bounding-box and optionally convex-hull acreage,
and reports per-file results plus directory-wide totals.

Settings come from flags, LASACRES_* environment variables, and an optional
lasacres.yaml config file, in that order of precedence.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: ./lasacres.yaml, then ~/.config/lasacres/lasacres.yaml)")
	pf.Bool("debug", false, "enable debug logging")
	pf.Bool("human", false, "human-readable console logs")

	root.AddCommand(newScanCommand(a), newInfoCommand(a), newCapsCommand(a))
	return root
}

// setup loads settings, configures logging, and returns a context carrying
// the run's logger.
func (a *app) setup(cmd *cobra.Command) (context.Context, Settings, error) {
	s, err := LoadSettings(*a.cfg, cmd.Flags())
	if err != nil {
		return nil, s, err
	}

	logging.Init(s.Debug, s.Human)
	log := logctx.NewConfiguredLogger(s.Debug, s.Human)
	logctx.SetDefaultLogger(log)

	a.runID = export.NewRunID()
	ctx := logctx.WithLogger(cmd.Context(), log)
	ctx = logctx.WithRunID(ctx, a.runID)
	if s.ConfigFile != "" {
		log.Debug().Str("path", s.ConfigFile).Msg("using config file")
	}
	return ctx, s, nil
}
