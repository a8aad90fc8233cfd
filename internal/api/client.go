package api

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"

	"controller-dashboard/pkg/certs"
	"controller-dashboard/pkg/log"
)

// ServiceName is the fully qualified controller service.
const ServiceName = "flynn.api.v1.Controller"

const (
	methodStatus            = "/" + ServiceName + "/Status"
	methodStreamApps        = "/" + ServiceName + "/StreamApps"
	methodStreamReleases    = "/" + ServiceName + "/StreamReleases"
	methodStreamScales      = "/" + ServiceName + "/StreamScales"
	methodStreamDeployments = "/" + ServiceName + "/StreamDeployments"
	methodUpdateApp         = "/" + ServiceName + "/UpdateApp"
	methodCreateScale       = "/" + ServiceName + "/CreateScale"
	methodCreateRelease     = "/" + ServiceName + "/CreateRelease"
	methodCreateDeployment  = "/" + ServiceName + "/CreateDeployment"
)

var serverStreamDesc = &grpc.StreamDesc{ServerStreams: true}

// Receiver yields the messages of a server stream. Recv returns io.EOF when the
// stream ends cleanly and a status error otherwise.
type Receiver[T any] interface {
	Recv() (*T, error)
}

// Controller is the remote controller API.
type Controller interface {
	Status(ctx context.Context) (*StatusResponse, error)
	StreamApps(ctx context.Context, req *StreamAppsRequest) (Receiver[StreamAppsResponse], error)
	StreamReleases(ctx context.Context, req *StreamReleasesRequest) (Receiver[StreamReleasesResponse], error)
	StreamScales(ctx context.Context, req *StreamScalesRequest) (Receiver[StreamScalesResponse], error)
	StreamDeployments(ctx context.Context, req *StreamDeploymentsRequest) (Receiver[StreamDeploymentsResponse], error)
	UpdateApp(ctx context.Context, req *UpdateAppRequest) (*App, error)
	CreateScale(ctx context.Context, req *CreateScaleRequest) (*ScaleRequest, error)
	CreateRelease(ctx context.Context, req *CreateReleaseRequest) (*Release, error)
	CreateDeployment(ctx context.Context, req *CreateDeploymentRequest) (Receiver[DeploymentEvent], error)
}

// Options configure the connection to the controller.
type Options struct {
	Address    string
	CACertPath string
	CertPath   string
	KeyPath    string
	// Insecure disables TLS. Only meant for local controllers.
	Insecure bool
	// Codec is the wire content subtype, CodecCBOR or CodecJSON.
	Codec  string
	Tokens *TokenSource
	// DialOptions are appended after the defaults.
	DialOptions []grpc.DialOption
}

// Client is a gRPC implementation of Controller.
type Client struct {
	conn     *grpc.ClientConn
	codec    string
	callOpts []grpc.CallOption
}

var _ Controller = (*Client)(nil)

// statusRetryServiceConfig enables transparent retries for the idempotent
// Status call only. Writes are never retried without the caller asking.
const statusRetryServiceConfig = `
{
  "methodConfig": [
    {
      "name": [
        {
          "service": "flynn.api.v1.Controller",
          "method": "Status"
        }
      ],
      "retryPolicy": {
        "MaxAttempts": 4,
        "InitialBackoff": "1s",
        "MaxBackoff": "10s",
        "BackoffMultiplier": 2,
        "RetryableStatusCodes": [
          "UNAVAILABLE",
          "RESOURCE_EXHAUSTED",
          "ABORTED"
        ]
      }
    }
  ]
}`

// NewClient creates a client for the controller at opts.Address. The
// connection is established lazily on the first call.
func NewClient(opts Options) (*Client, error) {
	if opts.Address == "" {
		return nil, fmt.Errorf("controller address is not configured")
	}
	codec := opts.Codec
	if codec == "" {
		codec = CodecCBOR
	}
	if !ValidCodec(codec) {
		return nil, fmt.Errorf("unsupported codec %q", codec)
	}

	var dialOpts []grpc.DialOption
	if opts.Insecure {
		log.Warn("Connecting to controller without TLS", "address", opts.Address)
		dialOpts = append(dialOpts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	} else {
		creds, err := certs.LoadTLSCredentials(opts.CACertPath, opts.CertPath, opts.KeyPath, opts.Address)
		if err != nil {
			return nil, log.Errorf("failed to load TLS credentials: %v", err)
		}
		dialOpts = append(dialOpts, grpc.WithTransportCredentials(creds))
	}

	if opts.Tokens != nil {
		dialOpts = append(dialOpts, grpc.WithPerRPCCredentials(opts.Tokens))
	}

	dialOpts = append(dialOpts,
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                30 * time.Second, // ping idle connections so dead streams are noticed
			Timeout:             10 * time.Second,
			PermitWithoutStream: false,
		}),
		grpc.WithDefaultServiceConfig(statusRetryServiceConfig),
	)
	dialOpts = append(dialOpts, opts.DialOptions...)

	conn, err := grpc.NewClient(opts.Address, dialOpts...)
	if err != nil {
		return nil, log.Errorf("failed to create gRPC client: %v", err)
	}

	log.Info("Created controller client", "address", opts.Address, "codec", codec)
	return &Client{
		conn:     conn,
		codec:    codec,
		callOpts: []grpc.CallOption{grpc.CallContentSubtype(codec)},
	}, nil
}

// Close tears down the connection and every stream running on it.
func (c *Client) Close() error {
	return c.conn.Close()
}

// State returns the connectivity state of the underlying connection.
func (c *Client) State() connectivity.State {
	return c.conn.GetState()
}

// WaitReady blocks until the connection is ready or ctx is done.
func (c *Client) WaitReady(ctx context.Context) error {
	c.conn.Connect()
	for {
		s := c.conn.GetState()
		switch s {
		case connectivity.Ready:
			return nil
		case connectivity.Shutdown:
			return fmt.Errorf("connection is shut down")
		}
		if !c.conn.WaitForStateChange(ctx, s) {
			return ctx.Err()
		}
	}
}

func (c *Client) Status(ctx context.Context) (*StatusResponse, error) {
	out := new(StatusResponse)
	if err := c.conn.Invoke(ctx, methodStatus, &StatusRequest{}, out, c.callOpts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) StreamApps(ctx context.Context, req *StreamAppsRequest) (Receiver[StreamAppsResponse], error) {
	return openStream[StreamAppsResponse](ctx, c.conn, methodStreamApps, req, c.callOpts...)
}

func (c *Client) StreamReleases(ctx context.Context, req *StreamReleasesRequest) (Receiver[StreamReleasesResponse], error) {
	return openStream[StreamReleasesResponse](ctx, c.conn, methodStreamReleases, req, c.callOpts...)
}

func (c *Client) StreamScales(ctx context.Context, req *StreamScalesRequest) (Receiver[StreamScalesResponse], error) {
	return openStream[StreamScalesResponse](ctx, c.conn, methodStreamScales, req, c.callOpts...)
}

func (c *Client) StreamDeployments(ctx context.Context, req *StreamDeploymentsRequest) (Receiver[StreamDeploymentsResponse], error) {
	return openStream[StreamDeploymentsResponse](ctx, c.conn, methodStreamDeployments, req, c.callOpts...)
}

func (c *Client) UpdateApp(ctx context.Context, req *UpdateAppRequest) (*App, error) {
	out := new(App)
	if err := c.conn.Invoke(ctx, methodUpdateApp, req, out, c.callOpts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateScale(ctx context.Context, req *CreateScaleRequest) (*ScaleRequest, error) {
	out := new(ScaleRequest)
	if err := c.conn.Invoke(ctx, methodCreateScale, req, out, c.callOpts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateRelease(ctx context.Context, req *CreateReleaseRequest) (*Release, error) {
	out := new(Release)
	if err := c.conn.Invoke(ctx, methodCreateRelease, req, out, c.callOpts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateDeployment(ctx context.Context, req *CreateDeploymentRequest) (Receiver[DeploymentEvent], error) {
	return openStream[DeploymentEvent](ctx, c.conn, methodCreateDeployment, req, c.callOpts...)
}

type clientStream[T any] struct {
	grpc.ClientStream
}

func (s *clientStream[T]) Recv() (*T, error) {
	m := new(T)
	if err := s.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func openStream[T any](ctx context.Context, cc grpc.ClientConnInterface, method string, req any, opts ...grpc.CallOption) (Receiver[T], error) {
	s, err := cc.NewStream(ctx, serverStreamDesc, method, opts...)
	if err != nil {
		return nil, err
	}
	if err := s.SendMsg(req); err != nil {
		return nil, err
	}
	if err := s.CloseSend(); err != nil {
		return nil, err
	}
	return &clientStream[T]{ClientStream: s}, nil
}
