package cli

import (
	"runtime"

	"github.com/spf13/cobra"

	"github.com/eunmann/lasacres/pkg/area"
	"github.com/eunmann/lasacres/pkg/membudget"
	"github.com/eunmann/lasacres/pkg/sysmem"
)

type capsView struct {
	HullAvailable bool            `json:"hull_available"`
	HullEngines   []string        `json:"hull_engines"`
	DefaultEngine string          `json:"default_engine"`
	Lasinfo       string          `json:"lasinfo,omitempty"`
	LasinfoError  string          `json:"lasinfo_error,omitempty"`
	CPUs          int             `json:"cpus"`
	Memory        sysmem.Result   `json:"memory"`
	Budget        membudget.Stats `json:"budget"`
}

func newCapsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "caps",
		Short: "Report hull engines, metadata tools and memory available to this binary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, s, err := a.setup(cmd)
			if err != nil {
				return err
			}

			caps := area.DetectCapabilities()
			v := capsView{
				HullAvailable: caps.HullAvailable(),
				HullEngines:   caps.Engines,
				DefaultEngine: caps.Default,
				CPUs:          runtime.NumCPU(),
				Memory:        sysmem.Total(),
				Budget:        s.budget().Stats(),
			}
			if tool, err := detectTool(s.Prefer64); err == nil {
				v.Lasinfo = tool.Command
			} else {
				v.LasinfoError = err.Error()
			}
			return writeJSON(a.stdout, v)
		},
	}
}
