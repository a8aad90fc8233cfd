package scale

import (
	"context"

	"github.com/spf13/cobra"

	"controller-dashboard/cmd/common"
	"controller-dashboard/internal/api"
	"controller-dashboard/internal/ui"
)

type Command struct{}

func (c *Command) Register(parent *cobra.Command) {
	command := &cobra.Command{
		Use:   "scale RELEASE TYPE=COUNT...",
		Short: "Scale the processes of a release",
		Long: `Request new process counts for a release.

Example:
  dashboard scale apps/3f2a/releases/9c1d web=3 worker=1`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			return c.Run(cobraCmd.Context(), args[0], args[1:])
		},
	}

	parent.AddCommand(command)
}

func (c *Command) Run(ctx context.Context, release string, args []string) error {
	processes, err := common.ParseProcesses(args)
	if err != nil {
		return err
	}

	s, err := common.Open(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	type result struct {
		sr  *api.ScaleRequest
		err error
	}
	return s.Run(ctx, func(ctx context.Context) error {
		done := make(chan result, 1)
		s.Dashboard.CreateScale(&api.CreateScaleRequest{Parent: release, Processes: processes},
			func(sr *api.ScaleRequest, err error) { done <- result{sr, err} })

		res, err := common.Wait(ctx, done)
		if err != nil {
			return err
		}
		if res.err != nil {
			return res.err
		}
		return common.Print(res.sr, func() {
			ui.Successf("Scale request %s: %s", res.sr.Name, ui.FormatProcesses(res.sr.NewProcesses))
		})
	})
}
