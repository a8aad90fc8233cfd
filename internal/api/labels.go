package api

import "slices"

// LabelOp is the operator of a label filter expression.
type LabelOp int32

const (
	LabelOpIn LabelOp = iota
	LabelOpNotIn
	LabelOpExists
	LabelOpNotExists
)

// LabelExpression tests a single label key.
type LabelExpression struct {
	Key    string   `json:"key"`
	Op     LabelOp  `json:"op,omitempty"`
	Values []string `json:"values,omitempty"`
}

// LabelFilter matches when all of its expressions match.
type LabelFilter struct {
	Expressions []*LabelExpression `json:"expressions,omitempty"`
}

// ExcludeLabel returns a filter rejecting resources whose key label equals value.
func ExcludeLabel(key, value string) *LabelFilter {
	return &LabelFilter{Expressions: []*LabelExpression{{Key: key, Op: LabelOpNotIn, Values: []string{value}}}}
}

// MatchLabelFilters reports whether labels satisfy any of the filters. An
// empty filter list matches everything.
func MatchLabelFilters(labels map[string]string, filters []*LabelFilter) bool {
	if len(filters) == 0 {
		return true
	}
	for _, f := range filters {
		if f.Match(labels) {
			return true
		}
	}
	return false
}

func (f *LabelFilter) Match(labels map[string]string) bool {
	for _, e := range f.Expressions {
		if !e.Match(labels) {
			return false
		}
	}
	return true
}

func (e *LabelExpression) Match(labels map[string]string) bool {
	v, ok := labels[e.Key]
	switch e.Op {
	case LabelOpIn:
		return ok && slices.Contains(e.Values, v)
	case LabelOpNotIn:
		return !ok || !slices.Contains(e.Values, v)
	case LabelOpExists:
		return ok
	case LabelOpNotExists:
		return !ok
	}
	return true
}

// MatchReleaseType reports whether t is accepted by the type filters. An
// empty list or one containing ReleaseTypeAny accepts every type.
func MatchReleaseType(t ReleaseType, filters []ReleaseType) bool {
	if len(filters) == 0 || slices.Contains(filters, ReleaseTypeAny) {
		return true
	}
	return slices.Contains(filters, t)
}
