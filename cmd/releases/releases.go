package releases

import (
	"context"

	"github.com/spf13/cobra"

	"controller-dashboard/cmd/common"
	"controller-dashboard/internal/api"
	"controller-dashboard/internal/config"
	"controller-dashboard/internal/dashboard"
	"controller-dashboard/internal/modifier"
	"controller-dashboard/internal/stream"
	"controller-dashboard/internal/ui"
)

type Command struct {
	App   string
	Watch bool
}

func (c *Command) Register(parent *cobra.Command) {
	command := &cobra.Command{
		Use:   "releases",
		Short: "List releases",
		Long: `List releases, newest first.

Example:
  dashboard releases --app apps/3f2a
  dashboard releases --watch`,
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			return c.Run(cobraCmd.Context())
		},
	}

	command.Flags().StringVar(&c.App, "app", "", "Only list releases of this app")
	command.Flags().BoolVarP(&c.Watch, "watch", "w", false, "Keep streaming and print every change")

	parent.AddCommand(command)
}

func (c *Command) Run(ctx context.Context) error {
	s, err := common.Open(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	var mods []modifier.Modifier[*api.StreamReleasesRequest]
	if c.App != "" {
		mods = append(mods, modifier.SetNameFilters[*api.StreamReleasesRequest](c.App))
	}
	mods = append(mods, modifier.SetPageSize[*api.StreamReleasesRequest](s.Config.PageSize))
	if c.Watch && s.Config.IsFeatureEnabled(config.FeatureStreamCreates) {
		mods = append(mods, modifier.SetStreamCreates[*api.StreamReleasesRequest]())
	}

	list := func(ctx context.Context) error {
		return common.PrintList(ctx, c.Watch, func(cb dashboard.Callback[api.Release]) stream.CancelFunc {
			return s.Dashboard.StreamReleases(cb, mods...)
		}, ui.RenderRelease)
	}
	if !c.Watch {
		return s.Run(ctx, list)
	}
	return s.Run(ctx, func(ctx context.Context) error { return s.Watch(ctx, list) })
}
