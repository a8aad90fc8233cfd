package dashboard

import (
	"context"
	"fmt"

	"controller-dashboard/internal/api"
	"controller-dashboard/internal/calls"
	"controller-dashboard/internal/stream"
	"controller-dashboard/pkg/cqrs"
)

// write dispatches cmd on its own goroutine and tracks it as a write call.
// done runs with the dispatch error unless the call was cancelled, in which
// case nothing is reported. A failure carries a retry that re-issues the
// write through reissue.
func (c *Client) write(description string, cmd cqrs.Command, done func(error), reissue func()) stream.CancelFunc {
	ctx, cancel := context.WithCancel(c.ctx)
	call := c.calls.Track(calls.Write, description, cancel)

	go func() {
		defer cancel()
		defer call.Done()

		err := c.bus.Dispatch(ctx, cmd)
		if ctx.Err() != nil {
			c.logger.Debug("Write cancelled", "call", description)
			return
		}
		if err != nil {
			c.logger.Warn("Write failed", "call", description, "error", err)
			err = api.WithRetry(api.FromError(err), reissue)
		}
		done(err)
	}()

	return func() { call.Cancel() }
}

// UpdateApp updates the fields of app named by mask. cb receives the
// updated app or the error.
func (c *Client) UpdateApp(app *api.App, cb func(*api.App, error), mask ...string) stream.CancelFunc {
	cmd := &UpdateAppCommand{App: app, UpdateMask: mask}
	return c.write(fmt.Sprintf("Updating %s", displayName(app)), cmd, func(err error) {
		if err != nil {
			cb(&api.App{}, err)
			return
		}
		cb(cmd.Result, nil)
	}, func() { c.UpdateApp(app, cb, mask...) })
}

// CreateScale requests new process counts for a release.
func (c *Client) CreateScale(req *api.CreateScaleRequest, cb func(*api.ScaleRequest, error)) stream.CancelFunc {
	cmd := &CreateScaleCommand{Request: req}
	return c.write(fmt.Sprintf("Scaling %s", req.Parent), cmd, func(err error) {
		if err != nil {
			cb(&api.ScaleRequest{}, err)
			return
		}
		cb(cmd.Result, nil)
	}, func() { c.CreateScale(req, cb) })
}

// CreateRelease creates a release under the app named parent. A retry
// reuses the request id so the controller can detect duplicates.
func (c *Client) CreateRelease(parent string, release *api.Release, cb func(*api.Release, error)) stream.CancelFunc {
	return c.createRelease(&CreateReleaseCommand{Parent: parent, Release: release}, cb)
}

func (c *Client) createRelease(cmd *CreateReleaseCommand, cb func(*api.Release, error)) stream.CancelFunc {
	return c.write(fmt.Sprintf("Creating release for %s", cmd.Parent), cmd, func(err error) {
		if err != nil {
			cb(&api.Release{}, err)
			return
		}
		cb(cmd.Result, nil)
	}, func() {
		c.createRelease(&CreateReleaseCommand{Parent: cmd.Parent, Release: cmd.Release, RequestID: cmd.RequestID}, cb)
	})
}

// CreateDeployment deploys the release named by req.Parent. onEvent
// receives every deployment event and cb runs once the deployment is done.
func (c *Client) CreateDeployment(req *api.CreateDeploymentRequest, onEvent func(*api.DeploymentEvent), cb func(error)) stream.CancelFunc {
	cmd := &CreateDeploymentCommand{Request: req, OnEvent: onEvent}
	return c.write(fmt.Sprintf("Deploying %s", req.Parent), cmd, cb, func() {
		c.CreateDeployment(req, onEvent, cb)
	})
}

func displayName(app *api.App) string {
	if app == nil {
		return "app"
	}
	if app.DisplayName != "" {
		return app.DisplayName
	}
	return app.Name
}
