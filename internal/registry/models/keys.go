// Package models defines the registry's persisted entities: transferable
// resources (domains and contacts), registrars, billing events, poll
// messages, and history entries. Entities are value types treated as
// immutable; mutation happens by building a modified copy.
package models

import (
	"fmt"
	"time"
)

// Kind discriminates entity types in store keys.
type Kind string

const (
	KindDomain              Kind = "domain"
	KindContact             Kind = "contact"
	KindRegistrar           Kind = "registrar"
	KindBillingEvent        Kind = "billing-event"
	KindBillingRecurrence   Kind = "billing-recurrence"
	KindBillingCancellation Kind = "billing-cancellation"
	KindPollMessage         Kind = "poll-message"
	KindHistoryEntry        Kind = "history-entry"
)

// Key is an explicit typed reference to a stored entity. References between
// entities are always keys resolved through the transaction store; there is
// no implicit lazy loading.
type Key struct {
	Kind Kind   `json:"kind"`
	ID   string `json:"id"`
}

// IsZero reports whether the key references nothing.
func (k Key) IsZero() bool { return k.Kind == "" && k.ID == "" }

func (k Key) String() string { return fmt.Sprintf("%s/%s", k.Kind, k.ID) }

// Entity is anything the transaction store can persist.
type Entity interface {
	EntityKey() Key
}

// EndOfTime is the sentinel end for open-ended recurrences.
var EndOfTime = time.Date(9999, time.December, 31, 23, 59, 59, 0, time.UTC)

// Keys returns the keys of the given entities, in order.
func Keys(entities ...Entity) []Key {
	keys := make([]Key, 0, len(entities))
	for _, e := range entities {
		keys = append(keys, e.EntityKey())
	}
	return keys
}
