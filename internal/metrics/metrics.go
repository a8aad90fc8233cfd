// Package metrics exposes stream and call activity to Prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"controller-dashboard/internal/calls"
	"controller-dashboard/pkg/log"
)

const metricsNamespace = "dashboard"

// Collector is a prometheus.Collector for multiplexed streams and
// outstanding calls. It implements stream.Metrics and calls.Observer.
type Collector struct {
	streamsOpen   *prometheus.GaugeVec
	streamsOpened *prometheus.CounterVec
	subscribers   *prometheus.GaugeVec
	merges        *prometheus.CounterVec
	retries       *prometheus.CounterVec
	callsPending  *prometheus.GaugeVec
	uptime        prometheus.GaugeFunc
}

// NewCollector returns a new Collector. startTime is reported as uptime.
func NewCollector(startTime time.Time) *Collector {
	return &Collector{
		streamsOpen: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "streams_open",
				Help:      "The number of open controller streams.",
			}, []string{"resource"},
		),
		streamsOpened: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "streams_opened_total",
				Help:      "The number of controller streams opened.",
			}, []string{"resource"},
		),
		subscribers: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "stream_subscribers",
				Help:      "The number of subscriptions sharing open streams.",
			}, []string{"resource"},
		),
		merges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "stream_merges_total",
				Help:      "The number of stream messages merged into collections.",
			}, []string{"resource"},
		),
		retries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "stream_retries_total",
				Help:      "The number of stream reconnects after transport failures.",
			}, []string{"resource"},
		),
		callsPending: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "calls_pending",
				Help:      "The number of outstanding controller calls.",
			}, []string{"kind"},
		),
		uptime: prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "uptime_seconds",
				Help:      "Seconds since the dashboard client started.",
			}, func() float64 { return time.Since(startTime).Seconds() },
		),
	}
}

func (c *Collector) StreamOpened(resource string) {
	c.streamsOpen.WithLabelValues(resource).Inc()
	c.streamsOpened.WithLabelValues(resource).Inc()
}

func (c *Collector) StreamClosed(resource string) {
	c.streamsOpen.WithLabelValues(resource).Dec()
}

func (c *Collector) Subscribed(resource string) {
	c.subscribers.WithLabelValues(resource).Inc()
}

func (c *Collector) Unsubscribed(resource string) {
	c.subscribers.WithLabelValues(resource).Dec()
}

func (c *Collector) Merged(resource string) {
	c.merges.WithLabelValues(resource).Inc()
}

func (c *Collector) Retried(resource string) {
	c.retries.WithLabelValues(resource).Inc()
}

func (c *Collector) CallStarted(kind calls.Kind) {
	c.callsPending.WithLabelValues(kind.String()).Inc()
}

func (c *Collector) CallFinished(kind calls.Kind) {
	c.callsPending.WithLabelValues(kind.String()).Dec()
}

// Describe is part of the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.streamsOpen.Describe(ch)
	c.streamsOpened.Describe(ch)
	c.subscribers.Describe(ch)
	c.merges.Describe(ch)
	c.retries.Describe(ch)
	c.callsPending.Describe(ch)
	c.uptime.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.streamsOpen.Collect(ch)
	c.streamsOpened.Collect(ch)
	c.subscribers.Collect(ch)
	c.merges.Collect(ch)
	c.retries.Collect(ch)
	c.callsPending.Collect(ch)
	c.uptime.Collect(ch)
}

// NewRegistry returns a registry holding c and the Go runtime collectors.
func NewRegistry(c *Collector) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		c,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves the metrics of reg.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// Serve exposes reg on addr under /metrics until ctx is done.
func Serve(ctx context.Context, addr string, reg *prometheus.Registry) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(reg))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Metrics endpoint listening", "address", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errCh
		return nil
	}
}
