// Package dashboard is the read model of the controller. It shares list
// streams between views, merges their updates into ordered collections and
// runs writes through a command bus so every outstanding call can be
// cancelled.
package dashboard

import (
	"context"
	"fmt"
	"log/slog"

	"controller-dashboard/internal/api"
	"controller-dashboard/internal/calls"
	"controller-dashboard/internal/merge"
	"controller-dashboard/internal/stream"
	"controller-dashboard/pkg/cqrs"
	"controller-dashboard/pkg/log"
)

// Callback receives the latest merged collection of a list stream. On
// failure it receives an empty collection and the error.
type Callback[T any] func(res *api.Page[T], err error)

// Option configures a Client.
type Option func(*options)

type options struct {
	metrics       stream.Metrics
	observer      calls.Observer
	confirmer     calls.Confirmer
	streamOptions []stream.Option
	logger        *slog.Logger
}

// WithMetrics reports stream activity to m.
func WithMetrics(m stream.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithCallObserver reports outstanding calls to obs.
func WithCallObserver(obs calls.Observer) Option {
	return func(o *options) { o.observer = obs }
}

// WithConfirmer asks c before a running write is cancelled.
func WithConfirmer(c calls.Confirmer) Option {
	return func(o *options) { o.confirmer = c }
}

// WithStreamOptions configures every stream opened by the client.
func WithStreamOptions(opts ...stream.Option) Option {
	return func(o *options) { o.streamOptions = append(o.streamOptions, opts...) }
}

// WithLogger sets the client logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Client is the dashboard view of one controller.
type Client struct {
	ctrl   api.Controller
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger

	calls *calls.Registry
	bus   *cqrs.CommandBus

	apps        *stream.Multiplexer[api.StreamAppsResponse]
	releases    *stream.Multiplexer[api.StreamReleasesResponse]
	scales      *stream.Multiplexer[api.StreamScalesResponse]
	deployments *stream.Multiplexer[api.StreamDeploymentsResponse]
}

// New returns a Client reading from and writing to ctrl. It stays usable
// until ctx is done or Close is called.
func New(ctx context.Context, ctrl api.Controller, opts ...Option) (*Client, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.With("component", "dashboard")
	}

	ctx, cancel := context.WithCancel(ctx)
	c := &Client{
		ctrl:   ctrl,
		ctx:    ctx,
		cancel: cancel,
		logger: o.logger,
		bus:    cqrs.NewCommandBus(ctx),
	}

	var registryOpts []calls.Option
	if o.observer != nil {
		registryOpts = append(registryOpts, calls.WithObserver(o.observer))
	}
	if o.confirmer != nil {
		registryOpts = append(registryOpts, calls.WithConfirmer(o.confirmer))
	}
	c.calls = calls.NewRegistry(registryOpts...)

	cfg := stream.Config{
		Metrics:       o.metrics,
		Logger:        o.logger,
		StreamOptions: o.streamOptions,
	}
	c.apps = stream.NewMultiplexer(ctx, "apps", merge.Apps().Merge, cfg)
	c.releases = stream.NewMultiplexer(ctx, "releases", merge.Releases().Merge, cfg)
	c.scales = stream.NewMultiplexer(ctx, "scales", merge.ScaleRequests().Merge, cfg)
	c.deployments = stream.NewMultiplexer(ctx, "deployments", merge.Deployments().Merge, cfg)

	if err := RegisterCommandHandlers(c.bus, ctrl); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to register command handlers: %w", err)
	}
	return c, nil
}

// Calls returns the registry of outstanding calls.
func (c *Client) Calls() *calls.Registry {
	return c.calls
}

// Status returns the controller status.
func (c *Client) Status(ctx context.Context) (*api.StatusResponse, error) {
	res, err := c.ctrl.Status(ctx)
	if err != nil {
		return nil, api.FromError(err)
	}
	return res, nil
}

// CancelAll cancels every outstanding call without asking for confirmation.
func (c *Client) CancelAll() {
	c.calls.CancelAll()
}

// Close cancels every call and stream and waits for running writes to
// return. The client cannot be used afterwards.
func (c *Client) Close() {
	c.calls.CancelAll()
	c.bus.Shutdown()
	c.cancel()

	c.apps.Close()
	c.releases.Close()
	c.scales.Close()
	c.deployments.Close()

	c.bus.WaitForCompletion()
	c.logger.Debug("Dashboard client closed")
}
