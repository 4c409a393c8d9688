package models

import "slices"

// RegistrarState gates whether a registrar may run mutating flows.
type RegistrarState string

const (
	RegistrarActive    RegistrarState = "active"
	RegistrarSuspended RegistrarState = "suspended"
)

// Registrar is an accredited registrar account.
type Registrar struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	State       RegistrarState `json:"state"`
	AllowedTLDs []string       `json:"allowed_tlds,omitempty"`
	// BillingAccounts maps currency code to the registrar's billing account
	// ID in that currency. A transfer in a currency with no account fails.
	BillingAccounts map[string]string `json:"billing_accounts,omitempty"`
}

func (r Registrar) EntityKey() Key { return Key{Kind: KindRegistrar, ID: r.ID} }

// IsActive reports whether the registrar may run mutating flows.
func (r Registrar) IsActive() bool { return r.State == RegistrarActive }

// AllowedOnTLD reports whether the registrar is accredited for the TLD.
func (r Registrar) AllowedOnTLD(tld string) bool {
	return slices.Contains(r.AllowedTLDs, tld)
}

// HasBillingAccount reports whether the registrar can be billed in currency.
func (r Registrar) HasBillingAccount(currency string) bool {
	_, ok := r.BillingAccounts[currency]
	return ok
}
