package version

import (
	"github.com/spf13/cobra"

	"controller-dashboard/cmd/common"
	"controller-dashboard/internal/ui"
	"controller-dashboard/internal/version"
)

type Command struct{}

func (c *Command) Register(parent *cobra.Command) {
	command := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			info := version.Get()
			return common.Print(info, func() {
				ui.Println(info.String())
			})
		},
	}

	parent.AddCommand(command)
}
