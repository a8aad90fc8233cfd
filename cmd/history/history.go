package history

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"controller-dashboard/cmd/common"
	"controller-dashboard/internal/history"
	"controller-dashboard/internal/ui"
	"controller-dashboard/internal/window"
)

type Command struct {
	Watch         bool
	All           bool
	Offset        int
	NoScales      bool
	NoDeployments bool
}

func (c *Command) Register(parent *cobra.Command) {
	command := &cobra.Command{
		Use:   "history APP",
		Short: "Show the release history of an app",
		Long: `Show the deployments and scale requests of an app, newest first.

Only the rows that fit the terminal are printed. Use --offset to scroll
and --all to fetch every page first.

Example:
  dashboard history apps/3f2a
  dashboard history apps/3f2a --offset 40
  dashboard history apps/3f2a --no-scales --watch`,
		Args: cobra.ExactArgs(1),
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			return c.Run(cobraCmd.Context(), args[0])
		},
	}

	command.Flags().BoolVarP(&c.Watch, "watch", "w", false, "Keep streaming and print every change")
	command.Flags().BoolVar(&c.All, "all", false, "Fetch every page")
	command.Flags().IntVar(&c.Offset, "offset", 0, "Number of rows to skip")
	command.Flags().BoolVar(&c.NoScales, "no-scales", false, "Hide scale requests")
	command.Flags().BoolVar(&c.NoDeployments, "no-deployments", false, "Hide deployments")

	parent.AddCommand(command)
}

func (c *Command) Run(ctx context.Context, app string) error {
	if c.NoScales && c.NoDeployments {
		return errors.New("nothing to show with both --no-scales and --no-deployments")
	}

	s, err := common.Open(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	run := func(ctx context.Context) error {
		return c.show(ctx, s, app)
	}
	if !c.Watch {
		return s.Run(ctx, run)
	}
	return s.Run(ctx, func(ctx context.Context) error { return s.Watch(ctx, run) })
}

func (c *Command) show(ctx context.Context, s *common.Session, app string) error {
	states := make(chan history.PagerState, 1)
	pager := history.NewPager(s.Dashboard, app,
		history.WithPageSize(s.Config.PageSize),
		history.WithSources(!c.NoScales, !c.NoDeployments),
		history.WithStateListener(func(st history.PagerState) { common.Offer(states, st) }),
	)
	pager.Start()
	defer pager.Close()

	// One terminal line per row, leaving room for the header.
	_, height := ui.GetTerminalSize()
	win := window.New(window.WithViewportHeight(max(height-2, 1)), window.WithDefaultHeight(1))
	defer win.Close()

	requested := make(map[history.NextPageTokens]bool)
	for {
		st, err := common.Wait(ctx, states)
		if err != nil {
			if c.Watch && errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if st.Err != nil {
			return st.Err
		}
		if st.Loading || st.NextPageLoading {
			continue
		}

		win.SetLength(len(st.AllItems))
		win.UpdateScrollPosition(c.Offset)
		snap := win.Snapshot()

		// Fetch more rows once the window reaches the end of what is loaded.
		more := st.NextPageToken != nil && st.NextPageToken.HasMore()
		if more && !requested[*st.NextPageToken] && (c.All || snap.VisibleIndexBottom() >= len(st.AllItems)-1) {
			requested[*st.NextPageToken] = true
			pager.FetchNextPage()
			continue
		}

		visible := st.AllItems[snap.VisibleIndexTop : snap.VisibleIndexTop+snap.VisibleLength]
		if c.All {
			visible = st.AllItems
		}
		if err := c.print(visible, snap, len(st.AllItems), more); err != nil {
			return err
		}
		if !c.Watch {
			return nil
		}
	}
}

func (c *Command) print(items []history.Item, snap window.Snapshot, total int, more bool) error {
	return common.Print(items, func() {
		suffix := ""
		if more {
			suffix = "+"
		}
		ui.Println(ui.HeaderStyle.Render(fmt.Sprintf("rows %d-%d of %d%s",
			snap.VisibleIndexTop+1, snap.VisibleIndexTop+len(items), total, suffix)))
		for _, item := range items {
			ui.Println(ui.RenderHistoryItem(item))
		}
	})
}
