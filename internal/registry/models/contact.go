package models

import "time"

// Contact is a registrant/administrative contact object. Contacts transfer
// between registrars like domains do, but carry no expiration and no billing
// recurrence; their transfers are free.
type Contact struct {
	RepoID                string       `json:"repo_id"`
	ContactID             string       `json:"contact_id"` // the EPP-visible handle
	CurrentSponsorID      string       `json:"current_sponsor_id"`
	Statuses              StatusSet    `json:"statuses,omitempty"`
	AuthInfo              string       `json:"auth_info,omitempty"` // bcrypt hash
	CreationTime          time.Time    `json:"creation_time"`
	Transfer              TransferData `json:"transfer,omitzero"`
	LastUpdateTime        time.Time    `json:"last_update_time,omitzero"`
	LastUpdateRegistrarID string       `json:"last_update_registrar_id,omitempty"`
}

func (c Contact) EntityKey() Key { return Key{Kind: KindContact, ID: c.RepoID} }

func (c Contact) SponsorRegistrarID() string { return c.CurrentSponsorID }

func (c Contact) TransferData() TransferData { return c.Transfer }

func (c Contact) StatusValues() StatusSet { return c.Statuses }

func (c Contact) AuthInfoHash() string { return c.AuthInfo }

func (c Contact) ResourceName() string { return c.ContactID }

func (c Contact) TLDName() string { return "" }

// WithPendingTransfer returns a copy carrying the pending transfer state and
// the pendingTransfer status flag.
func (c Contact) WithPendingTransfer(td TransferData, now time.Time, by string) Resource {
	out := c
	out.Transfer = td
	out.Statuses = c.Statuses.With(StatusPendingTransfer)
	out.LastUpdateTime = now
	out.LastUpdateRegistrarID = by
	return out
}

// WithResolvedTransfer returns a copy with the pending transfer resolved.
// The expiration and recurrence fields of the resolution do not apply to
// contacts and are ignored.
func (c Contact) WithResolvedTransfer(r TransferResolution) Resource {
	out := c
	out.Transfer = r.Transfer
	out.Statuses = c.Statuses.Without(StatusPendingTransfer)
	if r.SponsorID != "" {
		out.CurrentSponsorID = r.SponsorID
	}
	out.LastUpdateTime = r.Time
	out.LastUpdateRegistrarID = r.RegistrarID
	return out
}
