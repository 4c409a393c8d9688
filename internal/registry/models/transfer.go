package models

import "time"

// TransferStatus is the lifecycle state of a resource's most recent transfer.
// The zero value means no transfer has ever been requested.
type TransferStatus string

const (
	TransferNone            TransferStatus = ""
	TransferPending         TransferStatus = "pending"
	TransferClientApproved  TransferStatus = "clientApproved"
	TransferClientRejected  TransferStatus = "clientRejected"
	TransferClientCancelled TransferStatus = "clientCancelled"
	TransferServerApproved  TransferStatus = "serverApproved"
	TransferServerCancelled TransferStatus = "serverCancelled"
)

// TransferData records a resource's transfer state. While Status is
// TransferPending it carries everything needed to resolve the transfer in
// any direction: the keys of the speculative entities that become
// authoritative on automatic approval, the expiration the resource will have
// if approved at the deadline, and the recurrence end time recorded before
// the request shortened it.
//
// At most one pending transfer exists per resource; the request flow rejects
// a new request while Status is TransferPending.
type TransferData struct {
	Status             TransferStatus `json:"status,omitempty"`
	GainingRegistrarID string         `json:"gaining_registrar_id,omitempty"`
	LosingRegistrarID  string         `json:"losing_registrar_id,omitempty"`
	RequestTime        time.Time      `json:"request_time,omitzero"`

	// PendingDeadline is the automatic-approval time while pending. On an
	// explicit resolution it is rewritten to the resolution time.
	PendingDeadline time.Time `json:"pending_deadline,omitzero"`
	PeriodYears     int       `json:"period_years,omitempty"`

	// ServerApproveKeys reference the speculative entities that become
	// authoritative if the transfer is never explicitly resolved. Explicit
	// resolution deletes the referenced entities and clears the keys.
	ServerApproveKeys []Key `json:"server_approve_keys,omitempty"`

	// ServerApproveRecurrenceKey is the replacement autorenew recurrence for
	// the gaining registrar (domains only). Also present in
	// ServerApproveKeys; kept separately so projection can swap the active
	// recurrence without loading the rest of the set.
	ServerApproveRecurrenceKey Key `json:"server_approve_recurrence_key,omitzero"`

	// TransferredExpiration is the resource expiration after an automatic
	// approval (domains only).
	TransferredExpiration time.Time `json:"transferred_expiration,omitzero"`

	// OriginalRecurrenceEnd is the outgoing recurrence's end time before the
	// request shortened it to the deadline. Reject and cancel restore it,
	// guarded by comparison with the shortened value.
	OriginalRecurrenceEnd time.Time `json:"original_recurrence_end,omitzero"`
}

// IsPending reports whether a transfer is awaiting resolution.
func (t TransferData) IsPending() bool { return t.Status == TransferPending }

// TransferResolution is the object-level effect of resolving a pending
// transfer, applied uniformly by Resource.WithResolvedTransfer. Zero-valued
// fields leave the corresponding resource field unchanged, which is how
// contact resolutions skip the domain-only expiration and recurrence swaps.
type TransferResolution struct {
	Transfer      TransferData
	SponsorID     string
	Expiration    time.Time
	RecurrenceKey Key
	Time          time.Time
	RegistrarID   string
}

// Resource is the capability set shared by transferable registry objects.
// Mutators return modified copies; the stored value is never written through.
type Resource interface {
	Entity
	SponsorRegistrarID() string
	TransferData() TransferData
	StatusValues() StatusSet
	AuthInfoHash() string
	// ResourceName is the human-facing identifier (domain name or contact ID).
	ResourceName() string
	// TLDName returns the TLD for domains and "" for contacts.
	TLDName() string
	WithPendingTransfer(td TransferData, now time.Time, by string) Resource
	WithResolvedTransfer(res TransferResolution) Resource
}
