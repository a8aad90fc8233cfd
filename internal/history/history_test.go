package history

import (
	"fmt"
	"slices"
	"testing"
	"time"

	"google.golang.org/protobuf/types/known/timestamppb"

	"controller-dashboard/internal/api"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func at(sec int) *timestamppb.Timestamp {
	return timestamppb.New(epoch.Add(time.Duration(sec) * time.Second))
}

func deployments(secs ...int) []*api.ExpandedDeployment {
	out := make([]*api.ExpandedDeployment, len(secs))
	for i, s := range secs {
		out[i] = &api.ExpandedDeployment{Name: fmt.Sprintf("apps/a/deployments/d%d", s), CreateTime: at(s)}
	}
	return out
}

func scales(secs ...int) []*api.ScaleRequest {
	out := make([]*api.ScaleRequest, len(secs))
	for i, s := range secs {
		out[i] = &api.ScaleRequest{Name: fmt.Sprintf("apps/a/releases/r/scales/s%d", s), CreateTime: at(s)}
	}
	return out
}

func seconds(items []Item) []int {
	out := make([]int, len(items))
	for i, it := range items {
		out[i] = int(it.CreateTime().AsTime().Sub(epoch) / time.Second)
	}
	return out
}

func kinds(items []Item) string {
	out := make([]byte, len(items))
	for i, it := range items {
		switch it.(type) {
		case DeploymentItem:
			out[i] = 'd'
		case ScaleItem:
			out[i] = 's'
		}
	}
	return string(out)
}

func TestInterleave(t *testing.T) {
	tests := []struct {
		name        string
		deployments []int
		scales      []int
		wantSecs    []int
		wantKinds   string
	}{
		{
			name:        "alternating",
			deployments: []int{10, 7, 3},
			scales:      []int{9, 5, 1},
			wantSecs:    []int{10, 9, 7, 5, 3, 1},
			wantKinds:   "dsdsds",
		},
		{
			name:        "deployment wins tie",
			deployments: []int{5},
			scales:      []int{5},
			wantSecs:    []int{5, 5},
			wantKinds:   "ds",
		},
		{
			name:        "scales only",
			deployments: nil,
			scales:      []int{3, 2},
			wantSecs:    []int{3, 2},
			wantKinds:   "ss",
		},
		{
			name:        "deployments only",
			deployments: []int{8, 4},
			scales:      nil,
			wantSecs:    []int{8, 4},
			wantKinds:   "dd",
		},
		{
			name:        "tail of older scales",
			deployments: []int{20},
			scales:      []int{30, 10, 5},
			wantSecs:    []int{30, 20, 10, 5},
			wantKinds:   "sdss",
		},
		{
			name:      "empty",
			wantSecs:  []int{},
			wantKinds: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items := Interleave(deployments(tt.deployments...), scales(tt.scales...))
			if got := seconds(items); !slices.Equal(got, tt.wantSecs) {
				t.Errorf("expected order %v, got %v", tt.wantSecs, got)
			}
			if got := kinds(items); got != tt.wantKinds {
				t.Errorf("expected kinds %q, got %q", tt.wantKinds, got)
			}
		})
	}
}

func TestResponseIsComplete(t *testing.T) {
	sp := &api.StreamScalesResponse{Items: scales(2)}
	dp := &api.StreamDeploymentsResponse{Items: deployments(1)}

	tests := []struct {
		name string
		res  *Response
		want bool
	}{
		{"nothing answered", NewResponse(nil, nil, true, true), false},
		{"only scales answered", NewResponse(sp, nil, true, true), false},
		{"only deployments answered", NewResponse(nil, dp, true, true), false},
		{"both answered", NewResponse(sp, dp, true, true), true},
		{"scales disabled", NewResponse(nil, dp, false, true), true},
		{"deployments disabled", NewResponse(sp, nil, true, false), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.res.IsComplete(); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestResponseDisabledSourceContributesNothing(t *testing.T) {
	sp := &api.StreamScalesResponse{Items: scales(2), NextPageToken: "s-next"}
	dp := &api.StreamDeploymentsResponse{Items: deployments(1), NextPageToken: "d-next"}

	res := NewResponse(sp, dp, false, true)
	if got := kinds(res.Items()); got != "d" {
		t.Errorf("expected only deployments, got %q", got)
	}
	if tokens := res.NextPageTokens(); tokens.Scales != "" || tokens.Deployments != "d-next" {
		t.Errorf("unexpected tokens %+v", tokens)
	}
}

func TestResponseWithReplacesOneSource(t *testing.T) {
	res := NewResponse(nil, nil, true, true)

	withScales := res.WithScales(&api.StreamScalesResponse{Items: scales(4), NextPageToken: "s2"})
	if res.IsComplete() || withScales.IsComplete() {
		t.Fatal("response must wait for both sources")
	}
	if len(res.Items()) != 0 {
		t.Errorf("original response was modified: %v", seconds(res.Items()))
	}

	full := withScales.WithDeployments(&api.StreamDeploymentsResponse{Items: deployments(6, 2)})
	if !full.IsComplete() {
		t.Fatal("expected complete response")
	}
	if got := seconds(full.Items()); !slices.Equal(got, []int{6, 4, 2}) {
		t.Errorf("expected [6 4 2], got %v", got)
	}
	tokens := full.NextPageTokens()
	if tokens != (NextPageTokens{Scales: "s2"}) || !tokens.HasMore() {
		t.Errorf("unexpected tokens %+v", tokens)
	}
	if (NextPageTokens{}).HasMore() {
		t.Error("empty tokens must not report more pages")
	}
}
