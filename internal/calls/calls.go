// Package calls tracks outstanding controller calls so they can be cancelled
// individually or all at once on shutdown.
package calls

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/juju/clock"

	"controller-dashboard/pkg/log"
)

// Kind separates calls that only read from calls that mutate the controller.
type Kind int

const (
	Read Kind = iota
	Write
)

func (k Kind) String() string {
	if k == Write {
		return "write"
	}
	return "read"
}

// Confirmer asks the user whether a running write may be cancelled.
// Confirm blocks until the user answers.
type Confirmer interface {
	Confirm(prompt string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(prompt string) bool

func (f ConfirmFunc) Confirm(prompt string) bool { return f(prompt) }

// Decline refuses every confirmation.
var Decline = ConfirmFunc(func(string) bool { return false })

// Observer is told when calls start and finish.
type Observer interface {
	CallStarted(kind Kind)
	CallFinished(kind Kind)
}

// Option configures a Registry.
type Option func(*Registry)

func WithConfirmer(c Confirmer) Option {
	return func(r *Registry) { r.confirmer = c }
}

func WithObserver(o Observer) Option {
	return func(r *Registry) { r.observer = o }
}

func WithClock(c clock.Clock) Option {
	return func(r *Registry) { r.clock = c }
}

// Registry holds every outstanding call.
type Registry struct {
	confirmer Confirmer
	observer  Observer
	clock     clock.Clock
	logger    *slog.Logger

	mu       sync.Mutex
	calls    map[string]*Call
	shutdown bool
	wg       sync.WaitGroup
}

// NewRegistry returns an empty registry. Without a Confirmer every write
// cancel is declined.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		confirmer: Decline,
		clock:     clock.WallClock,
		logger:    log.With("component", "calls"),
		calls:     make(map[string]*Call),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Call is one outstanding call.
type Call struct {
	ID          string
	Kind        Kind
	Description string
	Started     time.Time

	registry *Registry
	cancel   func()

	mu       sync.Mutex
	finished bool
}

// Track registers a call and returns its handle. cancel stops the call's
// transport. A call tracked after CancelAll is cancelled immediately.
func (r *Registry) Track(kind Kind, description string, cancel func()) *Call {
	c := &Call{
		ID:          uuid.NewString(),
		Kind:        kind,
		Description: description,
		Started:     r.clock.Now(),
		registry:    r,
		cancel:      cancel,
	}

	r.mu.Lock()
	if r.shutdown {
		r.mu.Unlock()
		c.stop()
		return c
	}
	r.calls[c.ID] = c
	r.wg.Add(1)
	r.mu.Unlock()

	if r.observer != nil {
		r.observer.CallStarted(kind)
	}
	r.logger.Debug("Call started", "id", c.ID, "kind", kind.String(), "call", description)
	return c
}

// Cancel cancels a read immediately. A write is cancelled only if the user
// confirms; when declined the call keeps running and Cancel returns false.
// Cancelling a finished call does nothing.
func (c *Call) Cancel() bool {
	if c.isFinished() {
		return false
	}
	if c.Kind == Write {
		prompt := fmt.Sprintf("%s is still running. Cancel it?", c.Description)
		if !c.registry.confirmer.Confirm(prompt) {
			c.registry.logger.Info("Cancel declined, call continues", "id", c.ID, "call", c.Description)
			return false
		}
	}
	return c.stop()
}

// Done marks the call as finished and forgets it.
func (c *Call) Done() {
	c.mu.Lock()
	if c.finished {
		c.mu.Unlock()
		return
	}
	c.finished = true
	c.mu.Unlock()
	c.registry.forget(c)
}

func (c *Call) isFinished() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.finished
}

// stop cancels the transport once and reports whether this call did so.
func (c *Call) stop() bool {
	c.mu.Lock()
	if c.finished {
		c.mu.Unlock()
		return false
	}
	c.finished = true
	c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}
	c.registry.logger.Debug("Call cancelled", "id", c.ID, "call", c.Description)
	c.registry.forget(c)
	return true
}

func (r *Registry) forget(c *Call) {
	r.mu.Lock()
	_, ok := r.calls[c.ID]
	delete(r.calls, c.ID)
	r.mu.Unlock()
	if !ok {
		return
	}
	if r.observer != nil {
		r.observer.CallFinished(c.Kind)
	}
	r.wg.Done()
}

// Len returns the number of outstanding calls.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

// Calls returns the outstanding calls, oldest first.
func (r *Registry) Calls() []*Call {
	r.mu.Lock()
	out := make([]*Call, 0, len(r.calls))
	for _, c := range r.calls {
		out = append(out, c)
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Started.Before(out[j].Started) })
	return out
}

// Pending reports whether any call of the given kind is outstanding.
func (r *Registry) Pending(kind Kind) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.calls {
		if c.Kind == kind {
			return true
		}
	}
	return false
}

// CancelAll cancels every outstanding call without asking for confirmation.
// Calls tracked afterwards are cancelled as soon as they are tracked.
func (r *Registry) CancelAll() {
	r.mu.Lock()
	r.shutdown = true
	calls := make([]*Call, 0, len(r.calls))
	for _, c := range r.calls {
		calls = append(calls, c)
	}
	r.mu.Unlock()

	if len(calls) > 0 {
		r.logger.Info("Cancelling outstanding calls", "count", len(calls))
	}
	for _, c := range calls {
		c.stop()
	}
}

// Wait blocks until every tracked call is done or cancelled.
func (r *Registry) Wait() {
	r.wg.Wait()
}
