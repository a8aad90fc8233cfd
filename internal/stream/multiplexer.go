package stream

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"controller-dashboard/internal/api"
	"controller-dashboard/pkg/log"
)

// Stream is the subset of Retrying used by the Multiplexer.
type Stream[M any] interface {
	OnData(func(*M))
	OnStatus(func(*status.Status))
	OnEnd(func(*status.Status))
	Start(ctx context.Context)
	Cancel()
}

// Factory creates the stream backing a multiplexer entry.
type Factory[M any] func(init InitFunc[M]) Stream[M]

// CancelFunc ends a subscription. It is safe to call more than once and from
// inside a handler.
type CancelFunc func()

// Handlers receive the events of one subscription. Any of them may be nil.
type Handlers[M any] struct {
	// OnData receives every merged snapshot. Snapshots are shared between
	// subscribers and must not be modified.
	OnData func(*M)
	// OnError receives stream failures. The subscription stays open.
	OnError func(*api.Error)
	// OnEnd is called once when the stream ends for good.
	OnEnd func(*status.Status)
}

// Metrics observes multiplexer activity per resource type.
type Metrics interface {
	StreamOpened(resource string)
	StreamClosed(resource string)
	Subscribed(resource string)
	Unsubscribed(resource string)
	Merged(resource string)
	Retried(resource string)
}

type nopMetrics struct{}

func (nopMetrics) StreamOpened(string) {}
func (nopMetrics) StreamClosed(string) {}
func (nopMetrics) Subscribed(string)   {}
func (nopMetrics) Unsubscribed(string) {}
func (nopMetrics) Merged(string)       {}
func (nopMetrics) Retried(string)      {}

// Config holds the dependencies shared by every entry of a Multiplexer.
type Config struct {
	Metrics       Metrics
	Logger        *slog.Logger
	StreamOptions []Option
}

// Multiplexer shares one stream between all subscriptions whose requests
// have the same key, and fans merged snapshots out to them. The stream is
// cancelled when the last subscription is cancelled.
type Multiplexer[M any] struct {
	ctx      context.Context
	resource string
	merge    func(prev, next *M) *M
	factory  Factory[M]
	metrics  Metrics
	logger   *slog.Logger

	mu      sync.Mutex
	entries map[string]*entry[M]
}

type entry[M any] struct {
	key    string
	stream Stream[M]

	// Lock order: Multiplexer.mu before entry.mu.
	mu     sync.Mutex
	subs   map[uint64]*subscriber[M]
	nextID uint64
	last   *M
	seq    uint64
	ended  bool
}

type subscriber[M any] struct {
	h       Handlers[M]
	removed atomic.Bool

	deliverMu sync.Mutex
	seen      uint64
}

// NewMultiplexer returns a multiplexer for one resource type. Streams are
// started with ctx, so they live until ctx is done or their last subscriber
// leaves.
func NewMultiplexer[M any](ctx context.Context, resource string, merge func(prev, next *M) *M, cfg Config) *Multiplexer[M] {
	m := &Multiplexer[M]{
		ctx:      ctx,
		resource: resource,
		merge:    merge,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
		entries:  make(map[string]*entry[M]),
	}
	if m.metrics == nil {
		m.metrics = nopMetrics{}
	}
	if m.logger == nil {
		m.logger = log.With("component", "multiplexer")
	}
	m.logger = m.logger.With("resource", resource)

	streamOpts := append([]Option{
		WithLogger(m.logger),
		WithRetryObserver(retryObserver{m.metrics, resource}),
	}, cfg.StreamOptions...)
	m.factory = func(init InitFunc[M]) Stream[M] {
		return NewRetrying(init, streamOpts...)
	}
	return m
}

type retryObserver struct {
	metrics  Metrics
	resource string
}

func (o retryObserver) StreamRetried() { o.metrics.Retried(o.resource) }

// WithFactory replaces the stream factory.
func (m *Multiplexer[M]) WithFactory(f Factory[M]) *Multiplexer[M] {
	m.factory = f
	return m
}

// Resource returns the resource type served by m.
func (m *Multiplexer[M]) Resource() string { return m.resource }

// Subscribe attaches h to the stream identified by key, opening it with init
// if no subscription for key exists. If the stream already produced data,
// h.OnData receives the latest snapshot before Subscribe returns.
func (m *Multiplexer[M]) Subscribe(key string, init InitFunc[M], h Handlers[M]) CancelFunc {
	m.mu.Lock()
	e, ok := m.entries[key]
	if !ok {
		e = &entry[M]{
			key:    key,
			stream: m.factory(init),
			subs:   make(map[uint64]*subscriber[M]),
		}
		e.stream.OnData(func(msg *M) { m.receive(e, msg) })
		e.stream.OnStatus(func(st *status.Status) { m.fail(e, st) })
		e.stream.OnEnd(func(st *status.Status) { m.end(e, st) })
		m.entries[key] = e
	}

	sub := &subscriber[M]{h: h}
	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.subs[id] = sub
	last, seq := e.last, e.seq
	e.mu.Unlock()
	m.mu.Unlock()

	m.metrics.Subscribed(m.resource)
	if !ok {
		m.logger.Debug("Opening stream", "key", key)
		m.metrics.StreamOpened(m.resource)
		e.stream.Start(m.ctx)
	}
	if last != nil {
		sub.deliver(seq, last)
	}

	var once sync.Once
	return func() {
		once.Do(func() { m.unsubscribe(e, id) })
	}
}

// Len returns the number of open streams.
func (m *Multiplexer[M]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Subscribers returns the number of subscriptions attached to key.
func (m *Multiplexer[M]) Subscribers(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.subs)
}

// Close cancels every stream. Subscribers are not notified.
func (m *Multiplexer[M]) Close() {
	m.mu.Lock()
	entries := make([]*entry[M], 0, len(m.entries))
	for key, e := range m.entries {
		entries = append(entries, e)
		delete(m.entries, key)
	}
	m.mu.Unlock()

	for _, e := range entries {
		e.mu.Lock()
		for id, sub := range e.subs {
			sub.removed.Store(true)
			delete(e.subs, id)
		}
		ended := e.ended
		e.ended = true
		e.mu.Unlock()
		if !ended {
			e.stream.Cancel()
			m.metrics.StreamClosed(m.resource)
		}
	}
}

func (m *Multiplexer[M]) unsubscribe(e *entry[M], id uint64) {
	m.mu.Lock()
	e.mu.Lock()
	sub, ok := e.subs[id]
	if !ok {
		e.mu.Unlock()
		m.mu.Unlock()
		return
	}
	sub.removed.Store(true)
	delete(e.subs, id)
	closeStream := len(e.subs) == 0 && !e.ended
	if closeStream {
		e.ended = true
		if m.entries[e.key] == e {
			delete(m.entries, e.key)
		}
	}
	e.mu.Unlock()
	m.mu.Unlock()

	m.metrics.Unsubscribed(m.resource)
	if closeStream {
		m.logger.Debug("Closing stream, no subscribers left", "key", e.key)
		e.stream.Cancel()
		m.metrics.StreamClosed(m.resource)
	}
}

func (m *Multiplexer[M]) subscribers(e *entry[M]) []*subscriber[M] {
	subs := make([]*subscriber[M], 0, len(e.subs))
	for _, sub := range e.subs {
		subs = append(subs, sub)
	}
	return subs
}

func (m *Multiplexer[M]) receive(e *entry[M], msg *M) {
	e.mu.Lock()
	if e.ended {
		e.mu.Unlock()
		return
	}
	merged := m.merge(e.last, msg)
	e.last = merged
	e.seq++
	seq := e.seq
	subs := m.subscribers(e)
	e.mu.Unlock()

	m.metrics.Merged(m.resource)
	for _, sub := range subs {
		sub.deliver(seq, merged)
	}
}

func (m *Multiplexer[M]) fail(e *entry[M], st *status.Status) {
	if st.Code() == codes.OK {
		return
	}
	err := api.FromStatus(st)

	e.mu.Lock()
	subs := m.subscribers(e)
	e.mu.Unlock()

	for _, sub := range subs {
		if sub.removed.Load() || sub.h.OnError == nil {
			continue
		}
		sub.h.OnError(err)
	}
}

func (m *Multiplexer[M]) end(e *entry[M], st *status.Status) {
	m.mu.Lock()
	if m.entries[e.key] == e {
		delete(m.entries, e.key)
	}
	e.mu.Lock()
	if e.ended {
		e.mu.Unlock()
		m.mu.Unlock()
		return
	}
	e.ended = true
	subs := m.subscribers(e)
	e.mu.Unlock()
	m.mu.Unlock()

	m.logger.Debug("Stream ended", "key", e.key, "code", st.Code().String())
	m.metrics.StreamClosed(m.resource)
	for _, sub := range subs {
		if sub.removed.Load() || sub.h.OnEnd == nil {
			continue
		}
		sub.h.OnEnd(st)
	}
}

// deliver hands snapshot seq to the subscriber unless it has already seen a
// newer one.
func (s *subscriber[M]) deliver(seq uint64, snapshot *M) {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()
	if s.removed.Load() || seq <= s.seen {
		return
	}
	s.seen = seq
	if s.h.OnData != nil {
		s.h.OnData(snapshot)
	}
}
