package login

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"controller-dashboard/cmd/common"
	"controller-dashboard/internal/api"
	"controller-dashboard/internal/config"
	"controller-dashboard/internal/ui"
)

type Command struct {
	Save bool
}

func (c *Command) Register(parent *cobra.Command) {
	command := &cobra.Command{
		Use:   "login TOKEN",
		Short: "Log in to the dashboard",
		Long: `Exchange a dashboard login token for a controller key.

With --save the token is written to the config file and exchanged again
by every later command.

Example:
  dashboard login 8c2f... --save`,
		Args: cobra.ExactArgs(1),
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			return c.Run(cobraCmd.Context(), args[0])
		},
	}

	command.Flags().BoolVar(&c.Save, "save", false, "Store the login token in the config file")

	parent.AddCommand(command)

	logout := &LogoutCommand{}
	logout.Register(parent)
}

func (c *Command) Run(ctx context.Context, token string) error {
	cfg, err := common.LoadConfig()
	if err != nil {
		return err
	}

	tokens := api.NewTokenSource("", !cfg.Insecure)
	conf, err := api.NewAuthClient(cfg.DashboardURL, tokens).Login(ctx, token)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	if c.Save {
		cfg.LoginToken = token
		if conf.ControllerHost != "" {
			cfg.ControllerAddress = conf.ControllerHost
		}
		if err := config.SaveConfig(cfg, common.Global.ConfigPath); err != nil {
			return err
		}
	}
	ui.Successf("Logged in to %s", cfg.DashboardURL)
	return nil
}

type LogoutCommand struct{}

func (c *LogoutCommand) Register(parent *cobra.Command) {
	command := &cobra.Command{
		Use:   "logout",
		Short: "Log out of the dashboard",
		Long:  `End the dashboard session and remove a saved login token from the config file.`,
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			return c.Run(cobraCmd.Context())
		},
	}

	parent.AddCommand(command)
}

func (c *LogoutCommand) Run(ctx context.Context) error {
	cfg, err := common.LoadConfig()
	if err != nil {
		return err
	}

	if err := api.NewAuthClient(cfg.DashboardURL, nil).Logout(ctx); err != nil {
		return fmt.Errorf("logout failed: %w", err)
	}
	if cfg.LoginToken != "" {
		cfg.LoginToken = ""
		if err := config.SaveConfig(cfg, common.Global.ConfigPath); err != nil {
			return err
		}
	}
	ui.Success("Logged out")
	return nil
}
