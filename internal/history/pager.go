package history

import (
	"log/slog"
	"slices"
	"sync"

	"controller-dashboard/internal/api"
	"controller-dashboard/internal/modifier"
	"controller-dashboard/internal/stream"
	"controller-dashboard/pkg/log"
)

// DefaultPageSize is the page size of the live history stream.
const DefaultPageSize = 50

// ScaleModifiers and DeploymentModifiers are the request modifiers of the two
// history sources. A nil list disables the source.
type (
	ScaleModifiers      = []modifier.Modifier[*api.StreamScalesRequest]
	DeploymentModifiers = []modifier.Modifier[*api.StreamDeploymentsRequest]
)

// Source opens release history streams. cb receives a new Response every time
// either source updates, or an error when a source fails.
type Source interface {
	StreamReleaseHistory(scales ScaleModifiers, deployments DeploymentModifiers, cb func(*Response, error)) stream.CancelFunc
}

// PagerState is a snapshot of a Pager.
type PagerState struct {
	// Items is the live first page.
	Items []Item
	// AllItems is Items followed by every fetched page in fetch order.
	AllItems []Item
	Loading  bool
	Err      error
	// NextPageToken is nil until the first complete response arrives.
	NextPageToken   *NextPageTokens
	NextPageLoading bool
}

// PagerOption configures a Pager.
type PagerOption func(*Pager)

// WithScaleModifiers appends modifiers to every scale request.
func WithScaleModifiers(mods ...modifier.Modifier[*api.StreamScalesRequest]) PagerOption {
	return func(p *Pager) { p.scaleMods = append(p.scaleMods, mods...) }
}

// WithDeploymentModifiers appends modifiers to every deployment request.
func WithDeploymentModifiers(mods ...modifier.Modifier[*api.StreamDeploymentsRequest]) PagerOption {
	return func(p *Pager) { p.deployMods = append(p.deployMods, mods...) }
}

// WithSources selects which sources make up the history.
func WithSources(scales, deployments bool) PagerOption {
	return func(p *Pager) {
		p.scalesEnabled = scales
		p.deploymentsEnabled = deployments
	}
}

// WithPageSize sets the page size of the live stream.
func WithPageSize(n int32) PagerOption {
	return func(p *Pager) { p.pageSize = n }
}

// WithStateListener registers fn to receive every state change. Calls are
// serialized.
func WithStateListener(fn func(PagerState)) PagerOption {
	return func(p *Pager) { p.listener = fn }
}

// Pager keeps the live release history of one app together with the older
// pages fetched on demand.
type Pager struct {
	src      Source
	app      string
	pageSize int32
	logger   *slog.Logger
	listener func(PagerState)

	scaleMods          ScaleModifiers
	deployMods         DeploymentModifiers
	scalesEnabled      bool
	deploymentsEnabled bool

	notifyMu sync.Mutex

	mu        sync.Mutex
	state     PagerState
	pages     map[NextPageTokens][]Item
	pageOrder []NextPageTokens
	cancels   []stream.CancelFunc
	closed    bool
}

// NewPager returns a pager for app. Both sources are enabled by default.
func NewPager(src Source, app string, opts ...PagerOption) *Pager {
	p := &Pager{
		src:                src,
		app:                app,
		pageSize:           DefaultPageSize,
		logger:             log.With("component", "history", "app", app),
		scalesEnabled:      true,
		deploymentsEnabled: true,
		pages:              make(map[NextPageTokens][]Item),
	}
	p.state.Loading = true
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start opens the live stream. Nothing is streamed when both sources are
// disabled.
func (p *Pager) Start() {
	if !p.scalesEnabled && !p.deploymentsEnabled {
		return
	}

	var scales ScaleModifiers
	if p.scalesEnabled {
		scales = append(ScaleModifiers{
			modifier.SetNameFilters[*api.StreamScalesRequest](p.app),
			modifier.SetPageSize[*api.StreamScalesRequest](p.pageSize),
			modifier.SetStreamUpdates[*api.StreamScalesRequest](),
			modifier.SetStreamCreates[*api.StreamScalesRequest](),
		}, p.scaleMods...)
	}
	var deployments DeploymentModifiers
	if p.deploymentsEnabled {
		deployments = append(DeploymentModifiers{
			modifier.SetNameFilters[*api.StreamDeploymentsRequest](p.app),
			modifier.SetPageSize[*api.StreamDeploymentsRequest](p.pageSize),
			modifier.SetStreamUpdates[*api.StreamDeploymentsRequest](),
			modifier.SetStreamCreates[*api.StreamDeploymentsRequest](),
		}, p.deployMods...)
	}

	cancel := p.src.StreamReleaseHistory(scales, deployments, p.receiveLive)
	p.track(cancel)
}

func (p *Pager) receiveLive(res *Response, err error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	if err != nil {
		p.state.Err = err
		p.state.Loading = false
		p.mu.Unlock()
		p.logger.Warn("Release history stream failed", "error", err)
		p.notify()
		return
	}
	if !res.IsComplete() {
		p.mu.Unlock()
		return
	}
	tokens := res.NextPageTokens()
	p.state.Items = res.Items()
	p.state.NextPageToken = &tokens
	p.state.Err = nil
	p.state.Loading = false
	p.rebuildLocked()
	p.mu.Unlock()
	p.notify()
}

// FetchNextPage fetches the page after the most recent one. It does nothing
// when there is no next page or the page was already requested.
func (p *Pager) FetchNextPage() stream.CancelFunc {
	p.mu.Lock()
	tokens := p.state.NextPageToken
	p.mu.Unlock()
	if tokens == nil {
		return func() {}
	}
	return p.FetchPage(*tokens)
}

// FetchPage fetches the page identified by tokens. Each source with an empty
// token is left out. Requesting the same tokens twice does nothing.
func (p *Pager) FetchPage(tokens NextPageTokens) stream.CancelFunc {
	noop := func() {}
	if !tokens.HasMore() {
		return noop
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return noop
	}
	if _, ok := p.pages[tokens]; ok {
		p.mu.Unlock()
		return noop
	}
	// Reserve the page so concurrent requests for the same tokens are void.
	p.pages[tokens] = nil
	p.state.NextPageLoading = true
	p.mu.Unlock()
	p.notify()

	var scales ScaleModifiers
	if tokens.Scales != "" {
		scales = append(ScaleModifiers{
			modifier.SetNameFilters[*api.StreamScalesRequest](p.app),
			modifier.SetPageToken[*api.StreamScalesRequest](tokens.Scales),
		}, p.scaleMods...)
	}
	var deployments DeploymentModifiers
	if tokens.Deployments != "" {
		deployments = append(DeploymentModifiers{
			modifier.SetNameFilters[*api.StreamDeploymentsRequest](p.app),
			modifier.SetPageToken[*api.StreamDeploymentsRequest](tokens.Deployments),
		}, p.deployMods...)
	}

	cancel := p.src.StreamReleaseHistory(scales, deployments, func(res *Response, err error) {
		p.receivePage(tokens, res, err)
	})
	p.track(cancel)
	return cancel
}

func (p *Pager) receivePage(tokens NextPageTokens, res *Response, err error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	if err != nil {
		p.state.NextPageLoading = false
		p.mu.Unlock()
		p.logger.Warn("Release history page failed", "error", err)
		p.notify()
		return
	}
	if !res.IsComplete() {
		p.mu.Unlock()
		return
	}
	next := res.NextPageTokens()
	p.state.NextPageToken = &next
	p.pages[tokens] = res.Items()
	if !slices.Contains(p.pageOrder, tokens) {
		p.pageOrder = append(p.pageOrder, tokens)
	}
	p.state.NextPageLoading = false
	p.rebuildLocked()
	p.mu.Unlock()
	p.notify()
}

func (p *Pager) rebuildLocked() {
	all := slices.Clone(p.state.Items)
	for _, t := range p.pageOrder {
		all = append(all, p.pages[t]...)
	}
	p.state.AllItems = all
}

func (p *Pager) track(cancel stream.CancelFunc) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		cancel()
		return
	}
	p.cancels = append(p.cancels, cancel)
	p.mu.Unlock()
}

// State returns the current state.
func (p *Pager) State() PagerState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Close cancels the live stream and every page fetch.
func (p *Pager) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	cancels := p.cancels
	p.cancels = nil
	p.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}

func (p *Pager) notify() {
	if p.listener == nil {
		return
	}
	p.notifyMu.Lock()
	defer p.notifyMu.Unlock()
	p.listener(p.State())
}
