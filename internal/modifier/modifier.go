// Package modifier builds stream requests from composable, keyed mutations.
// Two modifier lists with the same Key produce identical requests, which is
// what lets equivalent subscriptions share one stream.
package modifier

import (
	"encoding/json"
	"fmt"
	"strings"

	"controller-dashboard/internal/api"
)

// Modifier mutates a request of type R and carries a canonical key.
type Modifier[R any] struct {
	key   string
	apply func(R)
}

// New returns a modifier with the given key. Callers are responsible for
// choosing a key that uniquely describes apply.
func New[R any](key string, apply func(R)) Modifier[R] {
	return Modifier[R]{key: key, apply: apply}
}

// Key identifies the effect of the modifier.
func (m Modifier[R]) Key() string { return m.key }

// Apply mutates req.
func (m Modifier[R]) Apply(req R) {
	if m.apply != nil {
		m.apply(req)
	}
}

// Key encodes the keys of mods in order. Modifier order is significant and
// an empty list has the empty key.
func Key[R any](mods []Modifier[R]) string {
	if len(mods) == 0 {
		return ""
	}
	keys := make([]string, len(mods))
	for i, m := range mods {
		keys[i] = m.key
	}
	return encode(keys)
}

// encode renders v as JSON so that separators inside values stay quoted.
func encode(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}

// Apply runs every modifier against req in order.
func Apply[R any](req R, mods []Modifier[R]) R {
	for _, m := range mods {
		m.Apply(req)
	}
	return req
}

// Paginated requests accept page size and page token.
type Paginated interface {
	SetPageSize(int32)
	SetPageToken(string)
}

// NameFilterable requests accept name filters.
type NameFilterable interface {
	SetNameFilters([]string)
}

// Streamable requests can ask the server to keep streaming updates and creates.
type Streamable interface {
	SetStreamUpdates(bool)
	SetStreamCreates(bool)
}

// LabelFilterable requests accept label filters.
type LabelFilterable interface {
	AddLabelFilters(...*api.LabelFilter)
}

func SetPageSize[R Paginated](n int32) Modifier[R] {
	return New(fmt.Sprintf("pageSize--%d", n), func(req R) { req.SetPageSize(n) })
}

func SetPageToken[R Paginated](token string) Modifier[R] {
	return New("pageToken--"+encode(token), func(req R) { req.SetPageToken(token) })
}

func SetNameFilters[R NameFilterable](names ...string) Modifier[R] {
	names = append([]string(nil), names...)
	return New("nameFilters--"+encode(names), func(req R) { req.SetNameFilters(names) })
}

func SetStreamUpdates[R Streamable]() Modifier[R] {
	return New("streamUpdates", func(req R) { req.SetStreamUpdates(true) })
}

func SetStreamCreates[R Streamable]() Modifier[R] {
	return New("streamCreates", func(req R) { req.SetStreamCreates(true) })
}

// ExcludeLabels drops resources carrying any of the given key/value labels.
func ExcludeLabels[R LabelFilterable](labels ...[2]string) Modifier[R] {
	labels = append([][2]string(nil), labels...)
	return New("excludeLabels--"+encode(labels), func(req R) {
		for _, kv := range labels {
			req.AddLabelFilters(api.ExcludeLabel(kv[0], kv[1]))
		}
	})
}

// SetLabelFilters adds arbitrary label filters.
func SetLabelFilters[R LabelFilterable](filters ...*api.LabelFilter) Modifier[R] {
	return New("labelFilters--"+encode(filters), func(req R) { req.AddLabelFilters(filters...) })
}

func SetScaleStateFilters(states ...api.ScaleRequestState) Modifier[*api.StreamScalesRequest] {
	states = append([]api.ScaleRequestState(nil), states...)
	return New("stateFilters--"+encode(states), func(req *api.StreamScalesRequest) { req.StateFilters = states })
}

func SetDeploymentTypeFilters(types ...api.ReleaseType) Modifier[*api.StreamDeploymentsRequest] {
	types = append([]api.ReleaseType(nil), types...)
	return New("filterTypes--"+joinInts(types), func(req *api.StreamDeploymentsRequest) { req.TypeFilters = types })
}

func SetDeploymentStatusFilters(statuses ...api.DeploymentStatus) Modifier[*api.StreamDeploymentsRequest] {
	statuses = append([]api.DeploymentStatus(nil), statuses...)
	return New("filterStatus--"+joinInts(statuses), func(req *api.StreamDeploymentsRequest) { req.StatusFilters = statuses })
}

func joinInts[T ~int32](vs []T) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = fmt.Sprint(int32(v))
	}
	return strings.Join(parts, "|")
}
