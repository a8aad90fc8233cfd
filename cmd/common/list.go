package common

import (
	"context"
	"errors"
	"fmt"
	"time"

	"controller-dashboard/internal/api"
	"controller-dashboard/internal/dashboard"
	"controller-dashboard/internal/stream"
	"controller-dashboard/internal/ui"
)

type pageResult[T any] struct {
	page *api.Page[T]
	err  error
}

// PrintList subscribes with open and prints the collection with render.
// Without watch it returns once the first page is complete. With watch it
// prints every update until ctx is done.
func PrintList[T any](ctx context.Context, watch bool, open func(dashboard.Callback[T]) stream.CancelFunc, render func(*T) string) error {
	results := make(chan pageResult[T], 1)
	cancel := open(func(page *api.Page[T], err error) {
		Offer(results, pageResult[T]{page, err})
	})
	defer cancel()

	for {
		res, err := Wait(ctx, results)
		if err != nil {
			if watch && errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if res.err != nil {
			return res.err
		}
		if !watch && !res.page.PageComplete {
			continue
		}

		err = Print(res.page.Items, func() {
			if watch {
				ui.Println(ui.HeaderStyle.Render(fmt.Sprintf("%d items, %s", len(res.page.Items), time.Now().Format(time.TimeOnly))))
			}
			for _, item := range res.page.Items {
				ui.Println(render(item))
			}
		})
		if err != nil || !watch {
			return err
		}
	}
}
