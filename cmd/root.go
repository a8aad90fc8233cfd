package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"controller-dashboard/cmd/app"
	"controller-dashboard/cmd/apps"
	"controller-dashboard/cmd/common"
	"controller-dashboard/cmd/deploy"
	"controller-dashboard/cmd/history"
	"controller-dashboard/cmd/login"
	"controller-dashboard/cmd/release"
	"controller-dashboard/cmd/releases"
	"controller-dashboard/cmd/scale"
	statuscmd "controller-dashboard/cmd/status"
	versioncmd "controller-dashboard/cmd/version"
	"controller-dashboard/internal/ui"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Browse and change a Flynn cluster from the terminal",
	Long: `Dashboard streams apps, releases and release history from a Flynn
controller and keeps them up to date while it runs.

Writes (app updates, scaling, releases and deployments) ask for confirmation
before they are cancelled with Ctrl-C.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		ui.Error(err.Error())
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&common.Global.ConfigPath, "config", "c", common.Global.ConfigPath, "Path to configuration file")
	flags.StringVar(&common.Global.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flags.StringVarP(&common.Global.Output, "output", "o", "text", "Output format (text, yaml)")

	// Register all commands
	commands := []Command{
		&apps.Command{},
		&releases.Command{},
		&history.Command{},
		&statuscmd.Command{},
		&app.Command{},
		&scale.Command{},
		&release.Command{},
		&deploy.Command{},
		&login.Command{},
		&versioncmd.Command{},
	}

	for _, cmd := range commands {
		cmd.Register(rootCmd)
	}
}
