// Package merge folds list stream messages into a single ordered,
// deduplicated collection per resource type.
package merge

import (
	"cmp"
	"slices"
	"strings"

	"google.golang.org/protobuf/types/known/timestamppb"

	"controller-dashboard/internal/api"
)

// DeletedSuffix is appended to the display name of an app once it is deleted.
const DeletedSuffix = " [DELETED]"

// Merger merges list messages of resource T. A Merger holds no state;
// every call returns a new Page and never mutates its inputs.
type Merger[T any] struct {
	name    func(*T) string
	compare func(a, b *T) int
	// normalize builds the item stored for next. prev is the item it
	// supersedes, or nil for a new name.
	normalize func(prev, next *T) *T
}

// Merge folds next into prev. Items with a name already present replace the
// old item in place, new names are appended, and the result is fully sorted.
// An empty next keeps prev's items but takes next's paging fields.
func (m *Merger[T]) Merge(prev, next *api.Page[T]) *api.Page[T] {
	if next == nil {
		return prev
	}
	out := &api.Page[T]{
		PageComplete:  next.PageComplete,
		NextPageToken: next.NextPageToken,
	}
	if prev == nil {
		out.Items = make([]*T, 0, len(next.Items))
	} else {
		out.Items = make([]*T, 0, len(prev.Items)+len(next.Items))
		out.Items = append(out.Items, prev.Items...)
	}

	if len(next.Items) == 0 && prev != nil {
		return out
	}

	index := make(map[string]int, len(out.Items))
	for i, item := range out.Items {
		index[m.name(item)] = i
	}
	for _, item := range next.Items {
		name := m.name(item)
		i, ok := index[name]
		if m.normalize != nil {
			var prevItem *T
			if ok {
				prevItem = out.Items[i]
			}
			item = m.normalize(prevItem, item)
		}
		if ok {
			out.Items[i] = item
			continue
		}
		index[name] = len(out.Items)
		out.Items = append(out.Items, item)
	}

	slices.SortStableFunc(out.Items, m.compare)
	return out
}

// Apps orders apps by display name and keeps deleted apps listed with a
// DeletedSuffix on their display name.
func Apps() *Merger[api.App] {
	return &Merger[api.App]{
		name: (*api.App).GetName,
		compare: func(a, b *api.App) int {
			return cmp.Or(
				strings.Compare(sortName(a), sortName(b)),
				strings.Compare(a.Name, b.Name),
			)
		},
		normalize: func(prev, next *api.App) *api.App {
			if !next.IsDeleted() {
				return next
			}
			displayName := next.DisplayName
			if prev != nil {
				displayName = prev.DisplayName
			}
			deleted := *next
			deleted.DisplayName = strings.TrimSuffix(displayName, DeletedSuffix) + DeletedSuffix
			return &deleted
		},
	}
}

// sortName keeps a deleted app at the position it had while it was alive.
func sortName(a *api.App) string {
	return strings.TrimSuffix(a.DisplayName, DeletedSuffix)
}

// Releases orders releases newest first.
func Releases() *Merger[api.Release] {
	return byCreateTime((*api.Release).GetName, (*api.Release).GetCreateTime)
}

// ScaleRequests orders scale requests newest first.
func ScaleRequests() *Merger[api.ScaleRequest] {
	return byCreateTime((*api.ScaleRequest).GetName, (*api.ScaleRequest).GetCreateTime)
}

// Deployments orders deployments newest first.
func Deployments() *Merger[api.ExpandedDeployment] {
	return byCreateTime((*api.ExpandedDeployment).GetName, (*api.ExpandedDeployment).GetCreateTime)
}

func byCreateTime[T any](name func(*T) string, created func(*T) *timestamppb.Timestamp) *Merger[T] {
	return &Merger[T]{
		name: name,
		compare: func(a, b *T) int {
			return cmp.Or(
				CompareTimestamps(created(b), created(a)),
				strings.Compare(name(a), name(b)),
			)
		},
	}
}

// CompareTimestamps orders timestamps ascending. A nil timestamp sorts as the
// zero time.
func CompareTimestamps(a, b *timestamppb.Timestamp) int {
	return cmp.Or(
		cmp.Compare(a.GetSeconds(), b.GetSeconds()),
		cmp.Compare(a.GetNanos(), b.GetNanos()),
	)
}
