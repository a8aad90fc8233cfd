package api

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/timestamppb"
)

type testController struct {
	apps      []*StreamAppsResponse
	streamErr error
	lastReq   *StreamAppsRequest
	lastKey   string
}

func authKey(ctx context.Context) string {
	md, _ := metadata.FromIncomingContext(ctx)
	if v := md.Get(AuthKeyHeader); len(v) > 0 {
		return v[0]
	}
	return ""
}

func (s *testController) streamApps(_ any, stream grpc.ServerStream) error {
	req := new(StreamAppsRequest)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	s.lastReq = req
	s.lastKey = authKey(stream.Context())
	for _, res := range s.apps {
		if err := stream.SendMsg(res); err != nil {
			return err
		}
	}
	return s.streamErr
}

func (s *testController) updateApp(_ any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	req := new(UpdateAppRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if req.App.Name == "apps/missing" {
		return nil, status.Error(codes.NotFound, "app not found")
	}
	return req.App, nil
}

func (s *testController) status(_ any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	if err := dec(new(StatusRequest)); err != nil {
		return nil, err
	}
	return &StatusResponse{Healthy: true, Version: "v20250101"}, nil
}

func startTestServer(t *testing.T, impl *testController, codec string) *Client {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	srv.RegisterService(&grpc.ServiceDesc{
		ServiceName: ServiceName,
		HandlerType: (*any)(nil),
		Methods: []grpc.MethodDesc{
			{MethodName: "UpdateApp", Handler: impl.updateApp},
			{MethodName: "Status", Handler: impl.status},
		},
		Streams: []grpc.StreamDesc{
			{StreamName: "StreamApps", Handler: impl.streamApps, ServerStreams: true},
		},
	}, impl)
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	c, err := NewClient(Options{
		Address:  "passthrough:///bufnet",
		Insecure: true,
		Codec:    codec,
		Tokens:   NewTokenSource("secret", false),
		DialOptions: []grpc.DialOption{
			grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
				return lis.DialContext(ctx)
			}),
		},
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestClientStreamApps(t *testing.T) {
	created := timestamppb.New(timestamppb.Now().AsTime().Truncate(1e9))

	for _, codec := range []string{CodecCBOR, CodecJSON} {
		t.Run(codec, func(t *testing.T) {
			impl := &testController{
				apps: []*StreamAppsResponse{
					{Items: []*App{{Name: "apps/1", DisplayName: "api", CreateTime: created}}, PageComplete: true, NextPageToken: "next"},
					{Items: []*App{{Name: "apps/2", DisplayName: "web", Labels: map[string]string{"env": "prod"}}}},
				},
				streamErr: status.Error(codes.Unavailable, "controller going away"),
			}
			c := startTestServer(t, impl, codec)

			req := &StreamAppsRequest{ListOptions: ListOptions{PageSize: 50, StreamUpdates: true, NameFilters: []string{"apps/1"}}}
			stream, err := c.StreamApps(context.Background(), req)
			if err != nil {
				t.Fatalf("StreamApps: %v", err)
			}

			first, err := stream.Recv()
			if err != nil {
				t.Fatalf("Recv: %v", err)
			}
			if len(first.Items) != 1 || first.Items[0].DisplayName != "api" || first.NextPageToken != "next" || !first.PageComplete {
				t.Errorf("unexpected first page: %+v", first)
			}
			if !first.Items[0].CreateTime.AsTime().Equal(created.AsTime()) {
				t.Errorf("create time changed on the wire: %v", first.Items[0].CreateTime.AsTime())
			}

			second, err := stream.Recv()
			if err != nil {
				t.Fatalf("Recv: %v", err)
			}
			if second.Items[0].Labels["env"] != "prod" {
				t.Errorf("labels lost on the wire: %+v", second.Items[0])
			}

			_, err = stream.Recv()
			if status.Code(err) != codes.Unavailable {
				t.Fatalf("expected Unavailable, got %v", err)
			}

			if impl.lastReq.PageSize != 50 || !impl.lastReq.StreamUpdates || impl.lastReq.NameFilters[0] != "apps/1" {
				t.Errorf("request not delivered intact: %+v", impl.lastReq)
			}
			if impl.lastKey != "secret" {
				t.Errorf("expected auth key to be sent, got %q", impl.lastKey)
			}
		})
	}
}

func TestClientStreamEOF(t *testing.T) {
	c := startTestServer(t, &testController{}, CodecCBOR)

	stream, err := c.StreamApps(context.Background(), &StreamAppsRequest{})
	if err != nil {
		t.Fatalf("StreamApps: %v", err)
	}
	if _, err := stream.Recv(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func TestClientUnary(t *testing.T) {
	c := startTestServer(t, &testController{}, CodecCBOR)
	ctx := context.Background()

	app, err := c.UpdateApp(ctx, &UpdateAppRequest{App: &App{Name: "apps/1", DisplayName: "renamed"}})
	if err != nil {
		t.Fatalf("UpdateApp: %v", err)
	}
	if app.DisplayName != "renamed" {
		t.Errorf("unexpected app: %+v", app)
	}

	_, err = c.UpdateApp(ctx, &UpdateAppRequest{App: &App{Name: "apps/missing"}})
	if !IsNotFoundError(err) {
		t.Errorf("expected NotFound, got %v", err)
	}

	st, err := c.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !st.Healthy || st.Version != "v20250101" {
		t.Errorf("unexpected status: %+v", st)
	}
}

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(Options{}); err == nil {
		t.Error("expected error without address")
	}
	if _, err := NewClient(Options{Address: "localhost:1", Insecure: true, Codec: "xml"}); err == nil {
		t.Error("expected error for unknown codec")
	}
}

func TestTokenSource(t *testing.T) {
	ts := NewTokenSource("", true)
	md, err := ts.GetRequestMetadata(context.Background())
	if err != nil || md != nil {
		t.Fatalf("expected no metadata without a key, got %v, %v", md, err)
	}

	ts.SetToken("k1")
	md, _ = ts.GetRequestMetadata(context.Background())
	if md[AuthKeyHeader] != "k1" {
		t.Errorf("expected k1, got %q", md[AuthKeyHeader])
	}
	// base64(":k1")
	if md["authorization"] != "Basic Omsx" {
		t.Errorf("unexpected authorization header %q", md["authorization"])
	}
	if !ts.RequireTransportSecurity() {
		t.Error("expected transport security to be required")
	}
}

func TestClientWaitReady(t *testing.T) {
	c := startTestServer(t, &testController{}, CodecCBOR)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.WaitReady(ctx); err != nil {
		t.Fatalf("WaitReady: %v", err)
	}

	c.Close()
	if err := c.WaitReady(ctx); err == nil {
		t.Error("expected an error for a closed connection")
	}
}
