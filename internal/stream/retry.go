// Package stream turns controller server streams into long lived, shared,
// self healing subscriptions.
package stream

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"sync"

	"github.com/juju/clock"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"controller-dashboard/internal/api"
	"controller-dashboard/pkg/backoff"
	"controller-dashboard/pkg/log"
)

// State is the connection state of a Retrying stream.
type State int

const (
	Connecting State = iota
	Streaming
	EndedOK
	EndedError
	Cancelled
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Streaming:
		return "streaming"
	case EndedOK:
		return "ended"
	case EndedError:
		return "failed"
	case Cancelled:
		return "cancelled"
	}
	return "unknown"
}

// InitFunc opens one attempt of the underlying stream. The attempt must stop
// when ctx is cancelled.
type InitFunc[T any] func(ctx context.Context) (api.Receiver[T], error)

// DefaultRetryableCodes are the status codes treated as transport failures.
var DefaultRetryableCodes = []codes.Code{
	codes.Unknown,
	codes.Unavailable,
	codes.Internal,
	codes.Aborted,
	codes.ResourceExhausted,
}

// Option configures a Retrying stream.
type Option func(*options)

type options struct {
	policy    backoff.Policy
	retryable map[codes.Code]bool
	clock     clock.Clock
	logger    *slog.Logger
	observer  RetryObserver
}

// RetryObserver is told about every reconnect.
type RetryObserver interface {
	StreamRetried()
}

func WithPolicy(p backoff.Policy) Option {
	return func(o *options) { o.policy = p }
}

func WithRetryableCodes(cs ...codes.Code) Option {
	return func(o *options) {
		o.retryable = make(map[codes.Code]bool, len(cs))
		for _, c := range cs {
			o.retryable[c] = true
		}
	}
}

func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func WithRetryObserver(obs RetryObserver) Option {
	return func(o *options) { o.observer = obs }
}

func buildOptions(opts []Option) options {
	o := options{
		policy: backoff.DefaultPolicy(),
		clock:  clock.WallClock,
	}
	WithRetryableCodes(DefaultRetryableCodes...)(&o)
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.With("component", "stream")
	}
	return o
}

// Retrying reopens its underlying stream after transport failures using a
// linear backoff. Listeners survive reconnects. Status and end events are
// withheld from listeners until data has arrived on the stream or the failure
// is final, so a short outage that recovers is never reported.
type Retrying[T any] struct {
	init InitFunc[T]
	opts options

	mu       sync.Mutex
	onData   []func(*T)
	onStatus []func(*status.Status)
	onEnd    []func(*status.Status)

	ctx       context.Context
	state     State
	started   bool
	hasData   bool
	backoff   *backoff.Linear
	cancelRun context.CancelFunc
	timer     clock.Timer
	wg        sync.WaitGroup
}

// NewRetrying returns a stream that is not yet connected. Register listeners
// and call Start.
func NewRetrying[T any](init InitFunc[T], opts ...Option) *Retrying[T] {
	o := buildOptions(opts)
	return &Retrying[T]{
		init:    init,
		opts:    o,
		state:   Connecting,
		backoff: backoff.New(o.policy),
	}
}

// OnData registers a listener for every message, called in arrival order.
func (s *Retrying[T]) OnData(fn func(*T)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onData = append(s.onData, fn)
}

// OnStatus registers a listener for the status of an ended attempt.
func (s *Retrying[T]) OnStatus(fn func(*status.Status)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onStatus = append(s.onStatus, fn)
}

// OnEnd registers a listener for the final end of the stream. It is called
// at most once and never after Cancel.
func (s *Retrying[T]) OnEnd(fn func(*status.Status)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onEnd = append(s.onEnd, fn)
}

// State returns the current connection state.
func (s *Retrying[T]) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start opens the first attempt. Later calls do nothing.
func (s *Retrying[T]) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.state == Cancelled {
		return
	}
	s.started = true
	s.ctx = ctx
	s.launchLocked()
}

// Cancel stops the stream and any pending reconnect. No listener is called
// after Cancel returns, except one already running. Cancel is idempotent.
func (s *Retrying[T]) Cancel() {
	s.mu.Lock()
	if s.state == Cancelled {
		s.mu.Unlock()
		return
	}
	s.state = Cancelled
	if s.timer != nil {
		if s.timer.Stop() {
			// the retry goroutine will never run
			s.wg.Done()
		}
		s.timer = nil
	}
	cancel := s.cancelRun
	s.cancelRun = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Wait blocks until the stream has ended or been cancelled and every
// goroutine it started has exited. A scheduled reconnect counts as running.
func (s *Retrying[T]) Wait() {
	s.wg.Wait()
}

func (s *Retrying[T]) launchLocked() {
	ctx, cancel := context.WithCancel(s.ctx)
	s.cancelRun = cancel
	s.state = Connecting
	s.wg.Add(1)
	go s.run(ctx, cancel)
}

func (s *Retrying[T]) run(ctx context.Context, cancel context.CancelFunc) {
	defer s.wg.Done()
	defer cancel()

	recv, err := s.init(ctx)
	if err == nil {
		for {
			var msg *T
			msg, err = recv.Recv()
			if err != nil {
				break
			}
			if !s.deliver(msg) {
				return
			}
		}
	}
	s.finish(err)
}

func (s *Retrying[T]) deliver(msg *T) bool {
	s.mu.Lock()
	if s.state == Cancelled {
		s.mu.Unlock()
		return false
	}
	s.state = Streaming
	s.hasData = true
	s.backoff.Reset()
	handlers := slices.Clone(s.onData)
	s.mu.Unlock()

	for _, h := range handlers {
		h(msg)
	}
	return true
}

func toStatus(err error) *status.Status {
	if err == nil || errors.Is(err, io.EOF) {
		return status.New(codes.OK, "")
	}
	if errors.Is(err, context.Canceled) {
		return status.New(codes.Canceled, err.Error())
	}
	return status.Convert(err)
}

func (s *Retrying[T]) finish(err error) {
	st := toStatus(err)

	s.mu.Lock()
	if s.state == Cancelled {
		s.mu.Unlock()
		return
	}

	final := true
	var delay = s.opts.policy.Base
	switch {
	case st.Code() == codes.OK:
		s.state = EndedOK
	case s.opts.retryable[st.Code()]:
		if d, ok := s.backoff.Next(); ok {
			final = false
			delay = d
			s.state = Connecting
		} else {
			s.state = EndedError
		}
	default:
		s.state = EndedError
	}

	forward := s.hasData || final
	var statusHandlers, endHandlers []func(*status.Status)
	if forward {
		statusHandlers = append(statusHandlers, s.onStatus...)
	}
	if final {
		endHandlers = append(endHandlers, s.onEnd...)
	} else {
		retries := s.backoff.Retries()
		s.opts.logger.Debug("Stream attempt failed, reconnecting",
			"code", st.Code().String(), "retry", retries, "delay", delay)
		// held until retry runs or Cancel stops the timer
		s.wg.Add(1)
		s.timer = s.opts.clock.AfterFunc(delay, func() { go s.retry() })
		if s.opts.observer != nil {
			s.opts.observer.StreamRetried()
		}
	}
	s.mu.Unlock()

	if final && st.Code() != codes.OK {
		s.opts.logger.Warn("Stream ended", "code", st.Code().String(), "message", st.Message())
	}
	for _, h := range statusHandlers {
		h(st)
	}
	for _, h := range endHandlers {
		h(st)
	}
}

func (s *Retrying[T]) retry() {
	defer s.wg.Done()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Cancelled {
		return
	}
	s.timer = nil
	s.launchLocked()
}
