// Package history builds the release history of an app by interleaving its
// scale requests and deployments, newest first.
package history

import (
	"sync"

	"google.golang.org/protobuf/types/known/timestamppb"

	"controller-dashboard/internal/api"
	"controller-dashboard/internal/merge"
)

// Item is one entry of the release history. It is either a ScaleItem or a
// DeploymentItem.
type Item interface {
	Name() string
	CreateTime() *timestamppb.Timestamp
	isItem()
}

// ScaleItem is a scale request in the release history.
type ScaleItem struct {
	Scale *api.ScaleRequest
}

func (i ScaleItem) Name() string                       { return i.Scale.GetName() }
func (i ScaleItem) CreateTime() *timestamppb.Timestamp { return i.Scale.GetCreateTime() }
func (ScaleItem) isItem()                              {}

// DeploymentItem is a deployment in the release history.
type DeploymentItem struct {
	Deployment *api.ExpandedDeployment
}

func (i DeploymentItem) Name() string                       { return i.Deployment.GetName() }
func (i DeploymentItem) CreateTime() *timestamppb.Timestamp { return i.Deployment.GetCreateTime() }
func (DeploymentItem) isItem()                              {}

// Interleave merges two lists already sorted newest first into one list
// sorted newest first. A deployment is placed before a scale request created
// at the same instant.
func Interleave(deployments []*api.ExpandedDeployment, scales []*api.ScaleRequest) []Item {
	items := make([]Item, 0, len(deployments)+len(scales))
	di, si := 0, 0
	for di < len(deployments) && si < len(scales) {
		d, s := deployments[di], scales[si]
		if merge.CompareTimestamps(d.GetCreateTime(), s.GetCreateTime()) >= 0 {
			items = append(items, DeploymentItem{Deployment: d})
			di++
		} else {
			items = append(items, ScaleItem{Scale: s})
			si++
		}
	}
	for ; di < len(deployments); di++ {
		items = append(items, DeploymentItem{Deployment: deployments[di]})
	}
	for ; si < len(scales); si++ {
		items = append(items, ScaleItem{Scale: scales[si]})
	}
	return items
}

// NextPageTokens holds the next page token of each source. Empty means the
// source has no further pages.
type NextPageTokens struct {
	Scales      string
	Deployments string
}

// HasMore reports whether any source has another page.
func (t NextPageTokens) HasMore() bool {
	return t.Scales != "" || t.Deployments != ""
}

// Response is an immutable view of both sources at one point in time. Every
// update produces a new Response; items are built on first use.
type Response struct {
	scales      *api.StreamScalesResponse
	deployments *api.StreamDeploymentsResponse

	scalesEnabled      bool
	deploymentsEnabled bool

	once  sync.Once
	items []Item
}

// NewResponse returns a response over the given source snapshots. A nil
// snapshot means the source has not answered yet. A disabled source never
// contributes items and is never waited for.
func NewResponse(scales *api.StreamScalesResponse, deployments *api.StreamDeploymentsResponse, scalesEnabled, deploymentsEnabled bool) *Response {
	return &Response{
		scales:             scales,
		deployments:        deployments,
		scalesEnabled:      scalesEnabled,
		deploymentsEnabled: deploymentsEnabled,
	}
}

// WithScales returns a copy of r with the scale snapshot replaced.
func (r *Response) WithScales(scales *api.StreamScalesResponse) *Response {
	return NewResponse(scales, r.deployments, r.scalesEnabled, r.deploymentsEnabled)
}

// WithDeployments returns a copy of r with the deployment snapshot replaced.
func (r *Response) WithDeployments(deployments *api.StreamDeploymentsResponse) *Response {
	return NewResponse(r.scales, deployments, r.scalesEnabled, r.deploymentsEnabled)
}

// IsComplete reports whether every enabled source has answered.
func (r *Response) IsComplete() bool {
	return (!r.scalesEnabled || r.scales != nil) && (!r.deploymentsEnabled || r.deployments != nil)
}

// Items returns the interleaved history.
func (r *Response) Items() []Item {
	r.once.Do(func() {
		r.items = Interleave(r.Deployments(), r.ScaleRequests())
	})
	return r.items
}

// ScaleRequests returns the scale requests, newest first.
func (r *Response) ScaleRequests() []*api.ScaleRequest {
	if !r.scalesEnabled || r.scales == nil {
		return nil
	}
	return r.scales.Items
}

// Deployments returns the deployments, newest first.
func (r *Response) Deployments() []*api.ExpandedDeployment {
	if !r.deploymentsEnabled || r.deployments == nil {
		return nil
	}
	return r.deployments.Items
}

// NextPageTokens returns the next page token of each source.
func (r *Response) NextPageTokens() NextPageTokens {
	var t NextPageTokens
	if r.scalesEnabled && r.scales != nil {
		t.Scales = r.scales.NextPageToken
	}
	if r.deploymentsEnabled && r.deployments != nil {
		t.Deployments = r.deployments.NextPageToken
	}
	return t
}
