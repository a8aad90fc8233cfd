package common

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"controller-dashboard/internal/api"
	"controller-dashboard/internal/calls"
	"controller-dashboard/internal/config"
	"controller-dashboard/internal/dashboard"
	"controller-dashboard/internal/metrics"
	"controller-dashboard/internal/stream"
	"controller-dashboard/internal/ui"
	"controller-dashboard/pkg/log"
	"controller-dashboard/pkg/yaml"
)

// GlobalOptions are the persistent flags of the root command.
type GlobalOptions struct {
	ConfigPath string
	LogLevel   string
	Output     string
}

// Global holds the parsed persistent flags.
var Global = GlobalOptions{ConfigPath: "dashboard.yaml"}

// LoadConfig loads the configuration file and initialises logging.
func LoadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(Global.ConfigPath)
	if err != nil {
		return nil, err
	}
	level := cfg.LogLevel
	if Global.LogLevel != "" {
		level = Global.LogLevel
	}
	log.InitLog(level, cfg.LogFormat)
	return cfg, nil
}

// Session is a connected dashboard client.
type Session struct {
	Config    *config.Config
	Tokens    *api.TokenSource
	Dashboard *dashboard.Client

	conn      *api.Client
	collector *metrics.Collector
	registry  *prometheus.Registry
}

// Open loads the configuration and connects to the controller. A configured
// login token is exchanged for a controller key first.
func Open(ctx context.Context) (*Session, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}

	tokens := api.NewTokenSource(cfg.AuthKey, !cfg.Insecure)
	if cfg.LoginToken != "" {
		auth := api.NewAuthClient(cfg.DashboardURL, tokens)
		if _, err := auth.Login(ctx, cfg.LoginToken); err != nil {
			return nil, fmt.Errorf("login failed: %w", err)
		}
	}

	conn, err := api.NewClient(cfg.ClientOptions(tokens))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to controller: %w", err)
	}

	collector := metrics.NewCollector(time.Now())
	var confirmer calls.Confirmer = ui.StdPrompter()
	if !cfg.IsFeatureEnabled(config.FeatureConfirmWriteCancel) {
		confirmer = calls.ConfirmFunc(func(string) bool { return true })
	}

	dash, err := dashboard.New(ctx, conn,
		dashboard.WithMetrics(collector),
		dashboard.WithCallObserver(collector),
		dashboard.WithConfirmer(confirmer),
		dashboard.WithStreamOptions(stream.WithPolicy(cfg.Retry.Policy())),
	)
	if err != nil {
		conn.Close()
		return nil, err
	}

	return &Session{
		Config:    cfg,
		Tokens:    tokens,
		Dashboard: dash,
		conn:      conn,
		collector: collector,
		registry:  metrics.NewRegistry(collector),
	}, nil
}

// Close cancels every call and closes the connection.
func (s *Session) Close() {
	s.Dashboard.Close()
	if err := s.conn.Close(); err != nil {
		log.Debug("Failed to close controller connection", "error", err)
	}
}

// WaitReady blocks until the controller connection is established or ctx is
// done.
func (s *Session) WaitReady(ctx context.Context) error {
	if err := s.conn.WaitReady(ctx); err != nil {
		return fmt.Errorf("controller %s is unreachable: %w", s.Config.ControllerAddress, err)
	}
	return nil
}

// Run runs fn until it returns. Ctrl-C cancels running writes after asking
// for confirmation; with no write running, or once one is cancelled, the
// context passed to fn is cancelled.
func (s *Session) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt)
	defer signal.Stop(interrupts)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-interrupts:
				if s.interrupt() {
					cancel()
					return
				}
			}
		}
	}()

	return fn(ctx)
}

// interrupt reports whether the command should stop.
func (s *Session) interrupt() bool {
	writes := 0
	cancelled := false
	for _, call := range s.Dashboard.Calls().Calls() {
		if call.Kind != calls.Write {
			continue
		}
		writes++
		if call.Cancel() {
			cancelled = true
		}
	}
	return writes == 0 || cancelled
}

// Watch runs fn alongside the metrics endpoint and the token and config file
// watchers.
// It returns when ctx is done or any of them fails.
func (s *Session) Watch(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)
	abort := func(err error) error {
		cancel()
		_ = g.Wait()
		return err
	}

	if addr := s.Config.MetricsAddress; addr != "" {
		g.Go(func() error {
			return metrics.Serve(ctx, addr, s.registry)
		})
	}

	if path := s.Config.TokenFile; path != "" {
		w := config.NewTokenWatcher(path, func(token string) {
			log.Info("Controller key reloaded", "path", path)
			s.Tokens.SetToken(token)
		})
		if err := w.Start(ctx); err != nil {
			return abort(fmt.Errorf("failed to watch token file: %w", err))
		}
		g.Go(func() error {
			<-ctx.Done()
			w.Stop()
			return nil
		})
	}

	if _, err := os.Stat(Global.ConfigPath); err == nil {
		w := config.NewConfigWatcher(Global.ConfigPath, s.reload)
		if err := w.Start(ctx); err != nil {
			return abort(fmt.Errorf("failed to watch config file: %w", err))
		}
		g.Go(func() error {
			<-ctx.Done()
			w.Stop()
			return nil
		})
	}

	g.Go(func() error { return fn(ctx) })
	return g.Wait()
}

// reload applies the parts of a changed configuration that take effect
// without reconnecting: the log level and an inline controller key.
func (s *Session) reload(cfg *config.Config) {
	if Global.LogLevel == "" && cfg.LogLevel != s.Config.LogLevel {
		log.SetLevel(cfg.LogLevel)
		log.Info("Log level changed", "level", cfg.LogLevel)
	}
	if cfg.TokenFile == "" && cfg.AuthKey != "" && cfg.AuthKey != s.Config.AuthKey {
		s.Tokens.SetToken(cfg.AuthKey)
		log.Info("Controller key reloaded", "path", Global.ConfigPath)
	}
	s.Config.LogLevel = cfg.LogLevel
	s.Config.AuthKey = cfg.AuthKey
}

// Print writes v as YAML when YAML output is selected, or calls render.
func Print(v any, render func()) error {
	switch strings.ToLower(Global.Output) {
	case "", "text":
		render()
		return nil
	case "yaml":
		return yaml.Encode(ui.Out, v)
	}
	return fmt.Errorf("unknown output format %q", Global.Output)
}

// Offer replaces the pending value of a one-slot channel with v.
func Offer[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// Wait blocks until done yields a value or ctx is done.
func Wait[T any](ctx context.Context, done <-chan T) (T, error) {
	select {
	case v := <-done:
		return v, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
