package app

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"controller-dashboard/cmd/common"
	"controller-dashboard/internal/api"
	"controller-dashboard/internal/ui"
)

// Command is the parent command for app subcommands
type Command struct{}

func (c *Command) Register(parent *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "app",
		Short: "App operations",
	}

	update := &UpdateCommand{}
	update.Register(cmd)

	parent.AddCommand(cmd)
}

type UpdateCommand struct {
	DisplayName   string
	Strategy      string
	DeployTimeout int32
	Labels        []string
}

func (c *UpdateCommand) Register(parent *cobra.Command) {
	command := &cobra.Command{
		Use:   "update APP",
		Short: "Update app settings",
		Long: `Update the settings of an app. Only the given flags are changed.

Example:
  dashboard app update apps/3f2a --display-name web --deploy-timeout 120`,
		Args: cobra.ExactArgs(1),
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			return c.Run(cobraCmd, args[0])
		},
	}

	command.Flags().StringVar(&c.DisplayName, "display-name", "", "New display name")
	command.Flags().StringVar(&c.Strategy, "strategy", "", "Deployment strategy")
	command.Flags().Int32Var(&c.DeployTimeout, "deploy-timeout", 0, "Deploy timeout in seconds")
	command.Flags().StringSliceVar(&c.Labels, "label", nil, "Replace the labels with key=value pairs")

	parent.AddCommand(command)
}

func (c *UpdateCommand) Run(cobraCmd *cobra.Command, name string) error {
	app := &api.App{Name: name}
	var mask []string
	flags := cobraCmd.Flags()
	if flags.Changed("display-name") {
		app.DisplayName = c.DisplayName
		mask = append(mask, "display_name")
	}
	if flags.Changed("strategy") {
		app.Strategy = c.Strategy
		mask = append(mask, "strategy")
	}
	if flags.Changed("deploy-timeout") {
		app.DeployTimeout = c.DeployTimeout
		mask = append(mask, "deploy_timeout")
	}
	if flags.Changed("label") {
		labels, err := common.ParsePairs(c.Labels)
		if err != nil {
			return err
		}
		app.Labels = labels
		mask = append(mask, "labels")
	}
	if len(mask) == 0 {
		return errors.New("nothing to update")
	}

	ctx := cobraCmd.Context()
	s, err := common.Open(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	type result struct {
		app *api.App
		err error
	}
	return s.Run(ctx, func(ctx context.Context) error {
		done := make(chan result, 1)
		s.Dashboard.UpdateApp(app, func(app *api.App, err error) { done <- result{app, err} }, mask...)

		res, err := common.Wait(ctx, done)
		if err != nil {
			return err
		}
		if res.err != nil {
			return res.err
		}
		return common.Print(res.app, func() {
			ui.Successf("Updated %s", ui.RenderApp(res.app))
		})
	})
}
