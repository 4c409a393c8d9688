package models

import "time"

// BillingReason classifies what a billing entity charges for.
type BillingReason string

const (
	BillingReasonTransfer  BillingReason = "transfer"
	BillingReasonAutorenew BillingReason = "autorenew"
)

// BillingEvent is a one-time charge. Events created by a transfer request
// are dated at the automatic-approval deadline and are inert until then;
// explicit approval replaces them with an event dated at the approval time.
type BillingEvent struct {
	ID           string        `json:"id"`
	Reason       BillingReason `json:"reason"`
	DomainRepoID string        `json:"domain_repo_id"`
	DomainName   string        `json:"domain_name"`
	RegistrarID  string        `json:"registrar_id"`
	EventTime    time.Time     `json:"event_time"`
	// BillingTime is when the charge leaves its grace window and becomes
	// non-refundable: event time plus the transfer grace length.
	BillingTime time.Time `json:"billing_time"`
	PeriodYears int       `json:"period_years,omitempty"`
	Cost        Money     `json:"cost"`
}

func (b BillingEvent) EntityKey() Key { return Key{Kind: KindBillingEvent, ID: b.ID} }

// BillingRecurrence is a recurring autorenew charge. An autorenew fires at
// EventTime and then yearly, for every firing strictly before EndTime.
type BillingRecurrence struct {
	ID           string    `json:"id"`
	DomainRepoID string    `json:"domain_repo_id"`
	DomainName   string    `json:"domain_name"`
	TLD          string    `json:"tld"`
	RegistrarID  string    `json:"registrar_id"`
	EventTime    time.Time `json:"event_time"`
	EndTime      time.Time `json:"end_time"`
}

func (r BillingRecurrence) EntityKey() Key { return Key{Kind: KindBillingRecurrence, ID: r.ID} }

// WithEndTime returns a copy closed (or re-opened) at the given end time.
func (r BillingRecurrence) WithEndTime(end time.Time) BillingRecurrence {
	c := r
	c.EndTime = end
	return c
}

// BillingCancellation voids an earlier charge, typically the autorenew that
// a transfer subsumes when its deadline lands inside the autorenew grace
// window.
type BillingCancellation struct {
	ID           string        `json:"id"`
	Reason       BillingReason `json:"reason"` // the reason of the cancelled charge
	DomainRepoID string        `json:"domain_repo_id"`
	DomainName   string        `json:"domain_name"`
	RegistrarID  string        `json:"registrar_id"`
	EventTime    time.Time     `json:"event_time"`
	// CancelledEventTime identifies the voided autorenew firing.
	CancelledEventTime time.Time `json:"cancelled_event_time"`
}

func (c BillingCancellation) EntityKey() Key {
	return Key{Kind: KindBillingCancellation, ID: c.ID}
}
