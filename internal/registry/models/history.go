package models

import "time"

// HistoryType identifies the mutating operation a history entry records.
type HistoryType string

const (
	HistoryDomainTransferRequest  HistoryType = "domain-transfer-request"
	HistoryDomainTransferApprove  HistoryType = "domain-transfer-approve"
	HistoryDomainTransferReject   HistoryType = "domain-transfer-reject"
	HistoryDomainTransferCancel   HistoryType = "domain-transfer-cancel"
	HistoryContactTransferRequest HistoryType = "contact-transfer-request"
	HistoryContactTransferApprove HistoryType = "contact-transfer-approve"
	HistoryContactTransferReject  HistoryType = "contact-transfer-reject"
	HistoryContactTransferCancel  HistoryType = "contact-transfer-cancel"
)

// TransactionRecord is the reporting line attached to a domain history
// entry. ReportingTime is when the operation becomes reportable, which for
// transfers is the automatic-approval deadline plus the transfer grace
// length.
type TransactionRecord struct {
	TLD           string    `json:"tld"`
	ReportField   string    `json:"report_field"`
	ReportingTime time.Time `json:"reporting_time"`
	Amount        int       `json:"amount"`
}

// ReportFieldTransferSuccessful is the transaction-report column for
// completed transfers.
const ReportFieldTransferSuccessful = "TRANSFER_SUCCESSFUL"

// HistoryEntry is an append-only audit record, one per state-changing
// operation. Entries are never mutated or deleted.
type HistoryEntry struct {
	ID          string      `json:"id"`
	Type        HistoryType `json:"type"`
	ResourceKey Key         `json:"resource_key"`
	RegistrarID string      `json:"registrar_id"`
	// OtherRegistrarID is the counterparty: the losing registrar on a
	// request, the gaining one on a resolution.
	OtherRegistrarID string             `json:"other_registrar_id,omitempty"`
	Time             time.Time          `json:"time"`
	PeriodYears      int                `json:"period_years,omitempty"`
	Record           *TransactionRecord `json:"record,omitempty"`
}

func (h HistoryEntry) EntityKey() Key { return Key{Kind: KindHistoryEntry, ID: h.ID} }
