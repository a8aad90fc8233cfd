package status

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"controller-dashboard/cmd/common"
	"controller-dashboard/internal/ui"
	"controller-dashboard/pkg/semver"
)

type Command struct {
	Timeout time.Duration
}

func (c *Command) Register(parent *cobra.Command) {
	command := &cobra.Command{
		Use:   "status",
		Short: "Show controller status",
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			return c.Run(cobraCmd.Context())
		},
	}

	command.Flags().DurationVar(&c.Timeout, "timeout", 10*time.Second, "Give up after this long")

	parent.AddCommand(command)
}

func (c *Command) Run(ctx context.Context) error {
	s, err := common.Open(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	if err := s.WaitReady(ctx); err != nil {
		return err
	}
	res, err := s.Dashboard.Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to get status: %w", err)
	}
	return common.Print(res, func() {
		if res.Healthy {
			ui.Successf("Controller %s is healthy", s.Config.ControllerAddress)
		} else {
			ui.Errorf("Controller %s is unhealthy", s.Config.ControllerAddress)
		}
		if res.Version != "" {
			ui.Println(ui.DimStyle.Render("version " + res.Version))
		}
		if minVersion := s.Config.MinControllerVersion; minVersion != "" && res.Version != "" && semver.Compare(res.Version, minVersion) < 0 {
			ui.Warningf("Controller version %s is older than %s", res.Version, minVersion)
		}
	})
}
