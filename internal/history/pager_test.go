package history

import (
	"errors"
	"slices"
	"sync"
	"testing"

	"controller-dashboard/internal/api"
	"controller-dashboard/internal/modifier"
	"controller-dashboard/internal/stream"
)

type historyCall struct {
	scales      ScaleModifiers
	deployments DeploymentModifiers
	cb          func(*Response, error)
	cancelled   int
}

func (c *historyCall) scaleRequest() *api.StreamScalesRequest {
	return modifier.Apply(&api.StreamScalesRequest{}, c.scales)
}

func (c *historyCall) deploymentRequest() *api.StreamDeploymentsRequest {
	return modifier.Apply(&api.StreamDeploymentsRequest{}, c.deployments)
}

// respond delivers a complete response built from the given pages.
func (c *historyCall) respond(sp *api.StreamScalesResponse, dp *api.StreamDeploymentsResponse) {
	c.cb(NewResponse(sp, dp, c.scales != nil, c.deployments != nil), nil)
}

type fakeSource struct {
	mu    sync.Mutex
	calls []*historyCall
}

func (f *fakeSource) StreamReleaseHistory(scales ScaleModifiers, deployments DeploymentModifiers, cb func(*Response, error)) stream.CancelFunc {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := &historyCall{scales: scales, deployments: deployments, cb: cb}
	f.calls = append(f.calls, c)
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		c.cancelled++
	}
}

func (f *fakeSource) call(i int) *historyCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[i]
}

func (f *fakeSource) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestPagerLiveStreamRequest(t *testing.T) {
	src := &fakeSource{}
	p := NewPager(src, "apps/a", WithScaleModifiers(modifier.SetScaleStateFilters(api.ScaleRequestComplete)))
	p.Start()

	if src.len() != 1 {
		t.Fatalf("expected one stream, got %d", src.len())
	}
	sr := src.call(0).scaleRequest()
	if sr.PageSize != DefaultPageSize || !sr.StreamUpdates || !sr.StreamCreates {
		t.Errorf("unexpected scale request %+v", sr)
	}
	if !slices.Equal(sr.NameFilters, []string{"apps/a"}) {
		t.Errorf("expected name filter apps/a, got %v", sr.NameFilters)
	}
	if !slices.Equal(sr.StateFilters, []api.ScaleRequestState{api.ScaleRequestComplete}) {
		t.Errorf("expected caller modifiers to be applied, got %v", sr.StateFilters)
	}
	dr := src.call(0).deploymentRequest()
	if dr.PageSize != DefaultPageSize || !dr.StreamUpdates || !dr.StreamCreates {
		t.Errorf("unexpected deployment request %+v", dr)
	}
	if !p.State().Loading {
		t.Error("expected loading before the first response")
	}
}

func TestPagerWaitsForCompleteResponse(t *testing.T) {
	src := &fakeSource{}
	var states []PagerState
	p := NewPager(src, "apps/a", WithStateListener(func(s PagerState) { states = append(states, s) }))
	p.Start()

	live := src.call(0)
	live.cb(NewResponse(&api.StreamScalesResponse{Items: scales(3)}, nil, true, true), nil)
	if len(states) != 0 {
		t.Fatalf("incomplete response must not change state, got %d updates", len(states))
	}

	live.respond(
		&api.StreamScalesResponse{Items: scales(3), NextPageToken: "s1"},
		&api.StreamDeploymentsResponse{Items: deployments(4), NextPageToken: "d1"},
	)
	s := p.State()
	if s.Loading {
		t.Error("expected loading to be cleared")
	}
	if got := seconds(s.AllItems); !slices.Equal(got, []int{4, 3}) {
		t.Errorf("expected [4 3], got %v", got)
	}
	if s.NextPageToken == nil || *s.NextPageToken != (NextPageTokens{Scales: "s1", Deployments: "d1"}) {
		t.Errorf("unexpected next page token %v", s.NextPageToken)
	}
	if len(states) != 1 {
		t.Errorf("expected one state update, got %d", len(states))
	}
}

func TestPagerFetchNextPage(t *testing.T) {
	src := &fakeSource{}
	p := NewPager(src, "apps/a")
	p.Start()

	src.call(0).respond(
		&api.StreamScalesResponse{Items: scales(20), NextPageToken: "s1"},
		&api.StreamDeploymentsResponse{Items: deployments(30)},
	)

	p.FetchNextPage()
	if src.len() != 2 {
		t.Fatalf("expected a page stream, got %d streams", src.len())
	}
	page := src.call(1)
	if page.deployments != nil {
		t.Error("a source without a next page token must be left out")
	}
	if sr := page.scaleRequest(); sr.PageToken != "s1" || sr.StreamUpdates {
		t.Errorf("unexpected page request %+v", sr)
	}
	if !p.State().NextPageLoading {
		t.Error("expected next page loading")
	}

	// A second request for the same tokens is ignored.
	p.FetchNextPage()
	if src.len() != 2 {
		t.Fatalf("duplicate page fetch opened a stream")
	}

	page.respond(&api.StreamScalesResponse{Items: scales(10, 5)}, nil)
	s := p.State()
	if s.NextPageLoading {
		t.Error("expected next page loading to be cleared")
	}
	if got := seconds(s.AllItems); !slices.Equal(got, []int{30, 20, 10, 5}) {
		t.Errorf("expected live items then page items, got %v", got)
	}
	if s.NextPageToken.HasMore() {
		t.Errorf("expected no more pages, got %+v", *s.NextPageToken)
	}

	// The live page updating keeps fetched pages after it.
	src.call(0).respond(
		&api.StreamScalesResponse{Items: scales(20), NextPageToken: "s1"},
		&api.StreamDeploymentsResponse{Items: deployments(40, 30)},
	)
	if got := seconds(p.State().AllItems); !slices.Equal(got, []int{40, 30, 20, 10, 5}) {
		t.Errorf("expected [40 30 20 10 5], got %v", got)
	}

	// The refreshed live token names a page that was already fetched.
	p.FetchNextPage()
	if src.len() != 2 {
		t.Errorf("expected the fetched page to be reused, got %d streams", src.len())
	}
}

func TestPagerFetchWithoutTokenIsNoop(t *testing.T) {
	src := &fakeSource{}
	p := NewPager(src, "apps/a")
	p.FetchNextPage()()
	p.FetchPage(NextPageTokens{})()
	if src.len() != 0 {
		t.Errorf("expected no streams, got %d", src.len())
	}
}

func TestPagerErrors(t *testing.T) {
	src := &fakeSource{}
	p := NewPager(src, "apps/a")
	p.Start()

	boom := errors.New("boom")
	src.call(0).cb(nil, boom)
	s := p.State()
	if !errors.Is(s.Err, boom) || s.Loading {
		t.Errorf("expected error state, got %+v", s)
	}

	p.FetchPage(NextPageTokens{Deployments: "d9"})
	src.call(1).cb(nil, boom)
	if p.State().NextPageLoading {
		t.Error("expected failed page fetch to clear loading")
	}
}

func TestPagerDisabledSources(t *testing.T) {
	src := &fakeSource{}
	NewPager(src, "apps/a", WithSources(false, false)).Start()
	if src.len() != 0 {
		t.Fatalf("expected no stream with every source disabled, got %d", src.len())
	}

	p := NewPager(src, "apps/a", WithSources(false, true))
	p.Start()
	live := src.call(0)
	if live.scales != nil {
		t.Error("disabled scales source must not be requested")
	}
	live.respond(nil, &api.StreamDeploymentsResponse{Items: deployments(1)})
	if p.State().Loading {
		t.Error("response with only enabled sources must complete")
	}
}

func TestPagerClose(t *testing.T) {
	src := &fakeSource{}
	p := NewPager(src, "apps/a")
	p.Start()
	p.FetchPage(NextPageTokens{Scales: "s1"})

	p.Close()
	p.Close()
	for i := 0; i < src.len(); i++ {
		if c := src.call(i); c.cancelled != 1 {
			t.Errorf("stream %d cancelled %d times", i, c.cancelled)
		}
	}

	src.call(0).respond(&api.StreamScalesResponse{}, &api.StreamDeploymentsResponse{Items: deployments(1)})
	if len(p.State().AllItems) != 0 {
		t.Error("closed pager must ignore responses")
	}
	p.FetchPage(NextPageTokens{Scales: "s2"})
	if src.len() != 2 {
		t.Error("closed pager must not fetch")
	}
}
