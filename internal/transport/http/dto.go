package httptransport

import (
	"time"

	"github.com/unstoppabledomains/nomulus/internal/registry/models"
	"github.com/unstoppabledomains/nomulus/internal/registry/transfer"
)

// feeDTO is the client's fee acknowledgement on a transfer request.
type feeDTO struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

// transferRequestDTO is the body of POST /v1/{kind}/{id}/transfer.
type transferRequestDTO struct {
	AuthInfo    string  `json:"auth_info,omitempty"`
	PeriodYears *int    `json:"period_years,omitempty"`
	Fee         *feeDTO `json:"fee,omitempty"`
	// PendingSeconds shortens or extends the automatic-approval window.
	// Superuser only.
	PendingSeconds *int64 `json:"pending_seconds,omitempty"`
}

// resolveRequestDTO is the body of the approve/reject/cancel endpoints. The
// body is optional; an empty one resolves on the authenticated registrar's
// authority alone.
type resolveRequestDTO struct {
	AuthInfo string `json:"auth_info,omitempty"`
}

type moneyDTO struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

type transferDTO struct {
	Status             string     `json:"status"`
	GainingRegistrarID string     `json:"gaining_registrar_id,omitempty"`
	LosingRegistrarID  string     `json:"losing_registrar_id,omitempty"`
	RequestTime        *time.Time `json:"request_time,omitempty"`
	PendingDeadline    *time.Time `json:"pending_deadline,omitempty"`
	PeriodYears        int        `json:"period_years,omitempty"`
	Expiration         *time.Time `json:"expiration,omitempty"`
}

type resourceDTO struct {
	Kind       string       `json:"kind"`
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	SponsorID  string       `json:"sponsor_registrar_id"`
	Statuses   []string     `json:"statuses,omitempty"`
	Expiration *time.Time   `json:"expiration,omitempty"`
	Transfer   *transferDTO `json:"transfer,omitempty"`
}

type transferResponseDTO struct {
	Resource resourceDTO `json:"resource"`
	Transfer transferDTO `json:"transfer"`
	Cost     *moneyDTO   `json:"cost,omitempty"`
}

type pollMessageDTO struct {
	ID           string    `json:"id"`
	Type         string    `json:"type"`
	EventTime    time.Time `json:"event_time"`
	ResourceName string    `json:"resource_name,omitempty"`
	Message      string    `json:"message,omitempty"`
}

func toTransferDTO(td models.TransferData) *transferDTO {
	if td.Status == models.TransferNone {
		return nil
	}
	dto := &transferDTO{
		Status:             string(td.Status),
		GainingRegistrarID: td.GainingRegistrarID,
		LosingRegistrarID:  td.LosingRegistrarID,
		PeriodYears:        td.PeriodYears,
	}
	if !td.RequestTime.IsZero() {
		dto.RequestTime = timePtr(td.RequestTime)
	}
	if !td.PendingDeadline.IsZero() {
		dto.PendingDeadline = timePtr(td.PendingDeadline)
	}
	if !td.TransferredExpiration.IsZero() {
		dto.Expiration = timePtr(td.TransferredExpiration)
	}
	return dto
}

func toResourceDTO(res models.Resource) resourceDTO {
	key := res.EntityKey()
	dto := resourceDTO{
		Kind:      string(key.Kind),
		ID:        key.ID,
		Name:      res.ResourceName(),
		SponsorID: res.SponsorRegistrarID(),
		Transfer:  toTransferDTO(res.TransferData()),
	}
	for _, status := range res.StatusValues() {
		dto.Statuses = append(dto.Statuses, string(status))
	}
	if d, ok := res.(models.Domain); ok {
		dto.Expiration = timePtr(d.ExpirationTime)
	}
	return dto
}

func toTransferResponseDTO(result transfer.TransferResult) transferResponseDTO {
	dto := transferResponseDTO{
		Resource: toResourceDTO(result.Resource),
		Transfer: *toTransferDTO(result.Transfer),
	}
	if !result.Cost.IsZero() {
		dto.Cost = &moneyDTO{
			Amount:   result.Cost.Amount.StringFixed(2),
			Currency: result.Cost.Currency,
		}
	}
	return dto
}

func toPollMessageDTOs(msgs []models.PollMessage) []pollMessageDTO {
	out := make([]pollMessageDTO, 0, len(msgs))
	for _, pm := range msgs {
		out = append(out, pollMessageDTO{
			ID:           pm.ID,
			Type:         string(pm.Type),
			EventTime:    pm.EventTime,
			ResourceName: pm.ResourceName,
			Message:      pm.Message,
		})
	}
	return out
}

func timePtr(t time.Time) *time.Time { return &t }
