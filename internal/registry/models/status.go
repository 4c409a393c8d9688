package models

import "slices"

// StatusValue is an EPP status flag on a registry resource.
type StatusValue string

const (
	StatusOK                       StatusValue = "ok"
	StatusPendingTransfer          StatusValue = "pendingTransfer"
	StatusPendingDelete            StatusValue = "pendingDelete"
	StatusClientTransferProhibited StatusValue = "clientTransferProhibited"
	StatusServerTransferProhibited StatusValue = "serverTransferProhibited"
)

// TransferProhibitedStatuses block a transfer request on the target resource.
var TransferProhibitedStatuses = []StatusValue{
	StatusClientTransferProhibited,
	StatusServerTransferProhibited,
	StatusPendingDelete,
}

// StatusSet is a sorted, deduplicated set of status flags. Mutators return
// fresh slices so copies of a resource never share backing arrays.
type StatusSet []StatusValue

// NewStatusSet builds a set from the given values.
func NewStatusSet(values ...StatusValue) StatusSet {
	return StatusSet(nil).withAll(values)
}

// Has reports whether the set contains v.
func (s StatusSet) Has(v StatusValue) bool {
	return slices.Contains(s, v)
}

// HasAny reports whether the set contains any of the given values.
func (s StatusSet) HasAny(values []StatusValue) bool {
	for _, v := range values {
		if s.Has(v) {
			return true
		}
	}
	return false
}

// With returns a copy of the set containing v.
func (s StatusSet) With(v StatusValue) StatusSet {
	return s.withAll([]StatusValue{v})
}

// Without returns a copy of the set with v removed.
func (s StatusSet) Without(v StatusValue) StatusSet {
	out := make(StatusSet, 0, len(s))
	for _, existing := range s {
		if existing != v {
			out = append(out, existing)
		}
	}
	return out
}

func (s StatusSet) withAll(values []StatusValue) StatusSet {
	out := make(StatusSet, 0, len(s)+len(values))
	out = append(out, s...)
	for _, v := range values {
		if !out.Has(v) {
			out = append(out, v)
		}
	}
	slices.Sort(out)
	return out
}
