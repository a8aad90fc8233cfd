package apps

import (
	"context"
	"fmt"
	"strings"

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
	Watch         bool
	ExcludeLabels []string
}

func (c *Command) Register(parent *cobra.Command) {
	command := &cobra.Command{
		Use:   "apps",
		Short: "List apps",
		Long: `List the apps of the controller, sorted by display name.

Deleted apps stay listed and are marked as deleted.

Example:
  dashboard apps
  dashboard apps --exclude-label flynn-system-app=true --watch`,
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			return c.Run(cobraCmd.Context())
		},
	}

	command.Flags().BoolVarP(&c.Watch, "watch", "w", false, "Keep streaming and print every change")
	command.Flags().StringSliceVar(&c.ExcludeLabels, "exclude-label", nil, "Hide apps carrying the label key=value")

	parent.AddCommand(command)
}

func (c *Command) Run(ctx context.Context) error {
	mods, err := c.modifiers()
	if err != nil {
		return err
	}

	s, err := common.Open(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	if s.Config.IsFeatureEnabled(config.FeatureStreamUpdates) && c.Watch {
		mods = append(mods, modifier.SetStreamUpdates[*api.StreamAppsRequest]())
	}
	if s.Config.IsFeatureEnabled(config.FeatureStreamCreates) && c.Watch {
		mods = append(mods, modifier.SetStreamCreates[*api.StreamAppsRequest]())
	}

	list := func(ctx context.Context) error {
		return common.PrintList(ctx, c.Watch, func(cb dashboard.Callback[api.App]) stream.CancelFunc {
			return s.Dashboard.StreamApps(cb, mods...)
		}, ui.RenderApp)
	}
	if !c.Watch {
		return s.Run(ctx, list)
	}
	return s.Run(ctx, func(ctx context.Context) error { return s.Watch(ctx, list) })
}

func (c *Command) modifiers() ([]modifier.Modifier[*api.StreamAppsRequest], error) {
	var mods []modifier.Modifier[*api.StreamAppsRequest]
	if len(c.ExcludeLabels) == 0 {
		return mods, nil
	}
	labels := make([][2]string, 0, len(c.ExcludeLabels))
	for _, l := range c.ExcludeLabels {
		key, value, ok := strings.Cut(l, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid label %q, expected key=value", l)
		}
		labels = append(labels, [2]string{key, value})
	}
	return append(mods, modifier.ExcludeLabels[*api.StreamAppsRequest](labels...)), nil
}
