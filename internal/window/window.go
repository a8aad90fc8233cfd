// Package window computes which rows of a long list with variable row heights
// have to be rendered for a scroll viewport, and how much padding stands in
// for the rows above and below it.
package window

import (
	"sync"
	"time"

	"github.com/juju/clock"
)

// DefaultNotifyInterval is how long changes are coalesced before OnChange
// subscribers are notified.
const DefaultNotifyInterval = 16 * time.Millisecond

// Snapshot is the computed window at one point in time.
type Snapshot struct {
	Length          int
	ViewportHeight  int
	ScrollTop       int
	VisibleIndexTop int
	VisibleLength   int
	PaddingTop      int
	PaddingBottom   int
}

// VisibleIndexBottom returns the last rendered index, or VisibleIndexTop-1
// when nothing is rendered.
func (s Snapshot) VisibleIndexBottom() int {
	return s.VisibleIndexTop + s.VisibleLength - 1
}

// Option configures a State.
type Option func(*State)

func WithViewportHeight(h int) Option {
	return func(s *State) { s.viewportHeight = h }
}

func WithDefaultHeight(h int) Option {
	return func(s *State) { s.defaultHeight = h }
}

// WithThreshold keeps rows within h of the viewport rendered.
func WithThreshold(h int) Option {
	return func(s *State) { s.threshold = h }
}

func WithLength(n int) Option {
	return func(s *State) { s.length = n }
}

func WithClock(c clock.Clock) Option {
	return func(s *State) { s.clock = c }
}

func WithNotifyInterval(d time.Duration) Option {
	return func(s *State) { s.notifyInterval = d }
}

// State tracks the rendered window of one list. Heights of rows that were
// never measured are estimated with the default height.
type State struct {
	mu sync.Mutex

	viewportHeight int
	defaultHeight  int
	threshold      int
	length         int

	visibleIndexTop int
	visibleLength   int
	paddingTop      int
	paddingBottom   int

	scrollTop  int
	heights    map[int]int
	calculated bool

	clock          clock.Clock
	notifyInterval time.Duration
	timer          clock.Timer
	subs           map[uint64]func(Snapshot)
	nextSub        uint64
}

// New returns a state for an empty list.
func New(opts ...Option) *State {
	s := &State{
		heights:        make(map[int]int),
		clock:          clock.WallClock,
		notifyInterval: DefaultNotifyInterval,
		subs:           make(map[uint64]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnChange registers cb to be called with the latest snapshot after the
// window changed. The returned func unregisters it.
func (s *State) OnChange(cb func(Snapshot)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = cb
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// Snapshot returns the current window.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *State) snapshotLocked() Snapshot {
	return Snapshot{
		Length:          s.length,
		ViewportHeight:  s.viewportHeight,
		ScrollTop:       s.scrollTop,
		VisibleIndexTop: s.visibleIndexTop,
		VisibleLength:   s.visibleLength,
		PaddingTop:      s.paddingTop,
		PaddingBottom:   s.paddingBottom,
	}
}

// SetViewportHeight changes the viewport height and recomputes the window.
func (s *State) SetViewportHeight(h int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.viewportHeight = h
	s.calculateLocked()
}

// SetDefaultHeight changes the estimate for unmeasured rows and recomputes
// the window.
func (s *State) SetDefaultHeight(h int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defaultHeight = h
	s.calculateLocked()
}

// SetThreshold changes the rendered margin around the viewport and
// recomputes the window.
func (s *State) SetThreshold(h int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threshold = h
	s.calculateLocked()
}

// SetLength changes the number of rows. Shrinking discards the heights past
// the new end, clamps the scroll position to the shorter list and recomputes
// the window. Growing only adds the new rows to the bottom padding, unless the
// rendered rows did not fill the viewport, in which case the window is extended
// downwards.
func (s *State) SetLength(n int) {
	if n < 0 {
		n = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.length
	switch {
	case n == prev:
		return
	case n < prev:
		for i := range s.heights {
			if i >= n {
				delete(s.heights, i)
			}
		}
		s.length = n
		if limit := s.getItemRangeHeight(0, n-1) - s.viewportHeight; s.scrollTop > limit {
			s.scrollTop = max(limit, 0)
		}
		s.calculateLocked()
		return
	}

	s.length = n
	if !s.calculated {
		s.calculateLocked()
		return
	}
	_, viewport := s.boundsLocked()
	bottom := s.visibleIndexTop + s.visibleLength - 1
	if bottom == prev-1 && s.getItemRangeHeight(s.visibleIndexTop, bottom) < viewport {
		s.fillLocked()
		bottom = s.visibleIndexTop + s.visibleLength - 1
	}
	s.paddingBottom = s.getItemRangeHeight(bottom+1, n-1)
	s.scheduleLocked()
}

// ResetHeights forgets every measured height and recomputes the window.
func (s *State) ResetHeights() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.heights = make(map[int]int)
	s.calculateLocked()
}

// CalculateVisibleIndices recomputes the whole window from the scroll
// position.
func (s *State) CalculateVisibleIndices() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calculateLocked()
}

// boundsLocked returns the top of the rendered area and its height.
func (s *State) boundsLocked() (top, height int) {
	top = s.scrollTop - s.threshold
	if top < 0 {
		top = 0
	}
	return top, s.viewportHeight + s.threshold + (s.scrollTop - top)
}

func (s *State) calculateLocked() {
	top, _ := s.boundsLocked()
	s.visibleIndexTop = 0
	s.paddingTop = 0
	if top > 0 {
		for i := 0; i < s.length; i++ {
			h := s.getItemHeight(i)
			if s.paddingTop+h >= top {
				break
			}
			s.paddingTop += h
			s.visibleIndexTop++
		}
	}

	s.fillLocked()
	s.paddingBottom = s.getItemRangeHeight(s.visibleIndexTop+s.visibleLength, s.length-1)

	s.calculated = true
	s.scheduleLocked()
}

// fillLocked renders rows from visibleIndexTop until the viewport is full.
func (s *State) fillLocked() {
	_, viewport := s.boundsLocked()
	n, filled := 0, 0
	for i := s.visibleIndexTop; i < s.length && filled < viewport; i++ {
		filled += s.getItemHeight(i)
		n++
	}
	s.visibleLength = n
}

// UpdateScrollPosition moves the viewport to scrollTop and adjusts the
// window incrementally.
func (s *State) UpdateScrollPosition(scrollTop int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prevTop := s.visibleIndexTop
	prevLength := s.visibleLength
	delta := scrollTop - s.scrollTop
	s.scrollTop = scrollTop

	if !s.calculated {
		s.calculateLocked()
		return
	}
	if delta == 0 {
		return
	}

	top, _ := s.boundsLocked()
	if delta < 0 {
		for s.visibleIndexTop > 0 && s.paddingTop > top {
			s.visibleIndexTop--
			s.paddingTop -= s.getItemHeight(s.visibleIndexTop)
		}
	} else {
		for i := s.visibleIndexTop; i < s.length; i++ {
			h := s.getItemHeight(i)
			if s.paddingTop+h >= top {
				break
			}
			s.paddingTop += h
			s.visibleIndexTop++
		}
	}

	s.fillLocked()

	if prevTop == s.visibleIndexTop && prevLength == s.visibleLength {
		return
	}

	prevBottom := prevTop + prevLength - 1
	bottom := s.visibleIndexTop + s.visibleLength - 1
	if bottom < prevBottom {
		s.paddingBottom += s.getItemRangeHeight(bottom+1, prevBottom)
	} else {
		s.paddingBottom -= s.getItemRangeHeight(prevBottom+1, bottom)
	}
	s.scheduleLocked()
}

// UpdateHeightAtIndex records the measured height of row index and adjusts
// the window.
func (s *State) UpdateHeightAtIndex(index, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= s.length {
		return
	}
	prevHeight := s.getItemHeight(index)
	s.heights[index] = height
	if prevHeight == height {
		return
	}

	if index < s.visibleIndexTop {
		s.paddingTop += height - prevHeight
		top, _ := s.boundsLocked()
		// A taller row above pushes rows back into view.
		for s.visibleIndexTop > 0 && s.paddingTop > top {
			s.visibleIndexTop--
			s.visibleLength++
			s.paddingTop -= s.getItemHeight(s.visibleIndexTop)
		}
		s.scheduleLocked()
		return
	}

	prevBottom := s.visibleIndexTop + s.visibleLength - 1
	if index > prevBottom {
		s.paddingBottom += height - prevHeight
		s.scheduleLocked()
		return
	}

	s.fillLocked()
	bottom := s.visibleIndexTop + s.visibleLength - 1
	switch {
	case bottom > prevBottom:
		s.paddingBottom -= s.getItemRangeHeight(prevBottom+1, bottom)
	case bottom < prevBottom:
		s.paddingBottom += s.getItemRangeHeight(bottom+1, prevBottom)
	}
	s.scheduleLocked()
}

func (s *State) getItemHeight(index int) int {
	if index < 0 || index >= s.length {
		return 0
	}
	if h, ok := s.heights[index]; ok {
		return h
	}
	return s.defaultHeight
}

func (s *State) getItemRangeHeight(start, end int) int {
	sum := 0
	for i := start; i <= end; i++ {
		sum += s.getItemHeight(i)
	}
	return sum
}

// scheduleLocked arms the notify timer unless it is already pending.
func (s *State) scheduleLocked() {
	if s.timer != nil || len(s.subs) == 0 {
		return
	}
	s.timer = s.clock.AfterFunc(s.notifyInterval, func() { go s.flush() })
}

func (s *State) flush() {
	s.mu.Lock()
	s.timer = nil
	snap := s.snapshotLocked()
	subs := make([]func(Snapshot), 0, len(s.subs))
	for _, cb := range s.subs {
		subs = append(subs, cb)
	}
	s.mu.Unlock()

	for _, cb := range subs {
		cb(snap)
	}
}

// Close stops a pending notification.
func (s *State) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.subs = make(map[uint64]func(Snapshot))
}
