package models

import "time"

// Domain is a registered domain name. It is identified by an immutable
// repository ID; the name itself never changes after creation.
type Domain struct {
	RepoID           string      `json:"repo_id"`
	Name             string      `json:"name"`
	TLD              string      `json:"tld"`
	CurrentSponsorID string      `json:"current_sponsor_id"`
	Statuses         StatusSet   `json:"statuses,omitempty"`
	AuthInfo         string      `json:"auth_info,omitempty"` // bcrypt hash
	CreationTime     time.Time   `json:"creation_time"`
	ExpirationTime   time.Time   `json:"expiration_time"`
	// AutorenewRecurrence references the active autorenew billing schedule.
	AutorenewRecurrence   Key          `json:"autorenew_recurrence,omitzero"`
	Transfer              TransferData `json:"transfer,omitzero"`
	LastUpdateTime        time.Time    `json:"last_update_time,omitzero"`
	LastUpdateRegistrarID string       `json:"last_update_registrar_id,omitempty"`
}

func (d Domain) EntityKey() Key { return Key{Kind: KindDomain, ID: d.RepoID} }

func (d Domain) SponsorRegistrarID() string { return d.CurrentSponsorID }

func (d Domain) TransferData() TransferData { return d.Transfer }

func (d Domain) StatusValues() StatusSet { return d.Statuses }

func (d Domain) AuthInfoHash() string { return d.AuthInfo }

func (d Domain) ResourceName() string { return d.Name }

func (d Domain) TLDName() string { return d.TLD }

// WithPendingTransfer returns a copy carrying the pending transfer state and
// the pendingTransfer status flag.
func (d Domain) WithPendingTransfer(td TransferData, now time.Time, by string) Resource {
	c := d
	c.Transfer = td
	c.Statuses = d.Statuses.With(StatusPendingTransfer)
	c.LastUpdateTime = now
	c.LastUpdateRegistrarID = by
	return c
}

// WithResolvedTransfer returns a copy with the pending transfer resolved.
// Zero-valued resolution fields leave the current values in place.
func (d Domain) WithResolvedTransfer(r TransferResolution) Resource {
	c := d
	c.Transfer = r.Transfer
	c.Statuses = d.Statuses.Without(StatusPendingTransfer)
	if r.SponsorID != "" {
		c.CurrentSponsorID = r.SponsorID
	}
	if !r.Expiration.IsZero() {
		c.ExpirationTime = r.Expiration
	}
	if !r.RecurrenceKey.IsZero() {
		c.AutorenewRecurrence = r.RecurrenceKey
	}
	c.LastUpdateTime = r.Time
	c.LastUpdateRegistrarID = r.RegistrarID
	return c
}
