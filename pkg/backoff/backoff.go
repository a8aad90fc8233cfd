package backoff

import "time"

const (
	// DefaultBase is the delay before the first retry.
	DefaultBase = time.Second
	// DefaultIncrement is added to the delay after every retry.
	DefaultIncrement = 10 * time.Second
	// DefaultMaxRetries bounds the number of retries of a single logical operation.
	DefaultMaxRetries = 3
)

// Policy describes a linearly increasing retry delay: the n-th retry
// (zero based) waits Base + n*Increment, and at most MaxRetries retries are made.
type Policy struct {
	Base       time.Duration
	Increment  time.Duration
	MaxRetries int
}

// DefaultPolicy returns the policy used by streams when nothing is configured.
func DefaultPolicy() Policy {
	return Policy{
		Base:       DefaultBase,
		Increment:  DefaultIncrement,
		MaxRetries: DefaultMaxRetries,
	}
}

// Delay returns the wait before the given retry (zero based).
func (p Policy) Delay(retry int) time.Duration {
	if retry < 0 {
		retry = 0
	}
	return p.Base + time.Duration(retry)*p.Increment
}

// Linear tracks the retries spent against a Policy.
type Linear struct {
	policy  Policy
	retries int
}

// New creates a new linear backoff helper. Negative values are clamped to zero.
func New(p Policy) *Linear {
	if p.Base < 0 {
		p.Base = 0
	}
	if p.Increment < 0 {
		p.Increment = 0
	}
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	return &Linear{policy: p}
}

// Next returns the delay for the next retry and consumes one unit of the
// budget. ok is false once the budget is exhausted.
func (b *Linear) Next() (delay time.Duration, ok bool) {
	if b.retries >= b.policy.MaxRetries {
		return 0, false
	}
	delay = b.policy.Delay(b.retries)
	b.retries++
	return delay, true
}

// Exhausted reports whether no retries are left.
func (b *Linear) Exhausted() bool {
	return b.retries >= b.policy.MaxRetries
}

// Retries returns how many retries have been handed out since the last Reset.
func (b *Linear) Retries() int {
	return b.retries
}

// Reset restores the full retry budget. It should be called once the
// operation has made progress.
func (b *Linear) Reset() {
	b.retries = 0
}
