package deploy

import (
	"context"

	"github.com/spf13/cobra"

	"controller-dashboard/cmd/common"
	"controller-dashboard/internal/api"
	"controller-dashboard/internal/ui"
)

type Command struct {
	Scale []string
}

func (c *Command) Register(parent *cobra.Command) {
	command := &cobra.Command{
		Use:   "deploy RELEASE",
		Short: "Deploy a release",
		Long: `Deploy a release and follow the deployment until it finishes.

Pressing Ctrl-C asks before the deployment is cancelled.

Example:
  dashboard deploy apps/3f2a/releases/9c1d
  dashboard deploy apps/3f2a/releases/9c1d --scale web=3`,
		Args: cobra.ExactArgs(1),
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			return c.Run(cobraCmd.Context(), args[0])
		},
	}

	command.Flags().StringSliceVar(&c.Scale, "scale", nil, "Process counts as type=count")

	parent.AddCommand(command)
}

func (c *Command) Run(ctx context.Context, release string) error {
	req := &api.CreateDeploymentRequest{Parent: release}
	if len(c.Scale) > 0 {
		processes, err := common.ParseProcesses(c.Scale)
		if err != nil {
			return err
		}
		req.ScaleRequest = &api.CreateScaleRequest{Parent: release, Processes: processes}
	}

	s, err := common.Open(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	return s.Run(ctx, func(ctx context.Context) error {
		done := make(chan error, 1)
		s.Dashboard.CreateDeployment(req,
			func(ev *api.DeploymentEvent) { ui.Println(ui.RenderDeploymentEvent(ev)) },
			func(err error) { done <- err })

		err, waitErr := common.Wait(ctx, done)
		if waitErr != nil {
			return waitErr
		}
		if err != nil {
			return err
		}
		ui.Successf("Deployed %s", release)
		return nil
	})
}
