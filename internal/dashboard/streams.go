package dashboard

import (
	"context"
	"sync"
	"sync/atomic"

	"google.golang.org/grpc/status"

	"controller-dashboard/internal/api"
	"controller-dashboard/internal/calls"
	"controller-dashboard/internal/history"
	"controller-dashboard/internal/modifier"
	"controller-dashboard/internal/stream"
)

// StreamApps streams the apps selected by mods.
func (c *Client) StreamApps(cb Callback[api.App], mods ...modifier.Modifier[*api.StreamAppsRequest]) stream.CancelFunc {
	return subscribe(c, c.apps, "stream apps", mods, c.ctrl.StreamApps, cb, false)
}

// StreamReleases streams the releases selected by mods.
func (c *Client) StreamReleases(cb Callback[api.Release], mods ...modifier.Modifier[*api.StreamReleasesRequest]) stream.CancelFunc {
	return subscribe(c, c.releases, "stream releases", mods, c.ctrl.StreamReleases, cb, false)
}

// StreamScales streams the scale requests selected by mods. A stream that
// ends before sending anything reports an empty collection.
func (c *Client) StreamScales(cb Callback[api.ScaleRequest], mods ...modifier.Modifier[*api.StreamScalesRequest]) stream.CancelFunc {
	return subscribe(c, c.scales, "stream scales", mods, c.ctrl.StreamScales, cb, true)
}

// StreamDeployments streams the deployments selected by mods. A stream that
// ends before sending anything reports an empty collection.
func (c *Client) StreamDeployments(cb Callback[api.ExpandedDeployment], mods ...modifier.Modifier[*api.StreamDeploymentsRequest]) stream.CancelFunc {
	return subscribe(c, c.deployments, "stream deployments", mods, c.ctrl.StreamDeployments, cb, true)
}

// readCall ties a subscription to its entry in the call registry. The
// stream may end before the call is tracked.
type readCall struct {
	mu    sync.Mutex
	call  *calls.Call
	ended bool
}

func (r *readCall) set(call *calls.Call) {
	r.mu.Lock()
	r.call = call
	ended := r.ended
	r.mu.Unlock()
	if ended {
		call.Done()
	}
}

func (r *readCall) end() {
	r.mu.Lock()
	r.ended = true
	call := r.call
	r.mu.Unlock()
	if call != nil {
		call.Done()
	}
}

func subscribe[R any, T any](
	c *Client,
	m *stream.Multiplexer[api.Page[T]],
	description string,
	mods []modifier.Modifier[*R],
	open func(context.Context, *R) (api.Receiver[api.Page[T]], error),
	cb Callback[T],
	emptyOnEnd bool,
) stream.CancelFunc {
	init := func(ctx context.Context) (api.Receiver[api.Page[T]], error) {
		return open(ctx, modifier.Apply(new(R), mods))
	}

	var (
		rc      readCall
		hasData atomic.Bool
	)
	unsubscribe := m.Subscribe(modifier.Key(mods), init, stream.Handlers[api.Page[T]]{
		OnData: func(res *api.Page[T]) {
			hasData.Store(true)
			cb(res, nil)
		},
		OnError: func(err *api.Error) {
			cb(&api.Page[T]{}, err)
		},
		OnEnd: func(st *status.Status) {
			if emptyOnEnd && st.Err() == nil && !hasData.Load() {
				cb(&api.Page[T]{PageComplete: true}, nil)
			}
			rc.end()
		},
	})
	rc.set(c.calls.Track(calls.Read, description, func() { unsubscribe() }))

	return func() {
		rc.mu.Lock()
		call := rc.call
		rc.mu.Unlock()
		call.Cancel()
		unsubscribe()
	}
}

// StreamReleaseHistory streams the scale requests and deployments of an app
// as one history. A nil modifier list disables that source. cb receives a
// new Response whenever either source changes.
func (c *Client) StreamReleaseHistory(scales history.ScaleModifiers, deployments history.DeploymentModifiers, cb func(*history.Response, error)) stream.CancelFunc {
	var (
		mu  sync.Mutex
		res = history.NewResponse(nil, nil, scales != nil, deployments != nil)
	)
	fail := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		cb(nil, err)
	}

	var cancels []stream.CancelFunc
	if scales != nil {
		cancels = append(cancels, c.StreamScales(func(page *api.StreamScalesResponse, err error) {
			if err != nil {
				fail(err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			res = res.WithScales(page)
			cb(res, nil)
		}, scales...))
	}
	if deployments != nil {
		cancels = append(cancels, c.StreamDeployments(func(page *api.StreamDeploymentsResponse, err error) {
			if err != nil {
				fail(err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			res = res.WithDeployments(page)
			cb(res, nil)
		}, deployments...))
	}

	return func() {
		for _, cancel := range cancels {
			cancel()
		}
	}
}
