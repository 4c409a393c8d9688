// Package audit emits structured records of every state-changing registry
// operation to an external publisher, independent of the in-store history
// entries. Publishing is best effort and never blocks or fails the
// operation that produced the event.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Action identifies what happened.
type Action string

const (
	ActionTransferRequested      Action = "transfer.requested"
	ActionTransferApproved       Action = "transfer.approved"
	ActionTransferRejected       Action = "transfer.rejected"
	ActionTransferCancelled      Action = "transfer.cancelled"
	ActionTransferServerApproved Action = "transfer.server_approved"
	ActionPollAcked              Action = "poll.acked"
)

// Event is one audit record.
type Event struct {
	ID           string    `json:"id"`
	Action       Action    `json:"action"`
	OccurredAt   time.Time `json:"occurred_at"`
	RegistrarID  string    `json:"registrar_id,omitempty"`
	ResourceKind string    `json:"resource_kind,omitempty"`
	ResourceID   string    `json:"resource_id,omitempty"`
	ResourceName string    `json:"resource_name,omitempty"`
	Superuser    bool      `json:"superuser,omitempty"`
	Detail       string    `json:"detail,omitempty"`
}

// Publisher delivers events to an external sink.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher drops events.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

// Emit fills in the event's ID and timestamp and publishes it, logging
// delivery failures instead of returning them.
func Emit(ctx context.Context, pub Publisher, logger *slog.Logger, event Event) {
	if pub == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	if err := pub.Publish(ctx, event); err != nil {
		logger.WarnContext(ctx, "audit publish failed",
			slog.String("action", string(event.Action)),
			slog.String("resource_id", event.ResourceID),
			slog.Any("error", err))
	}
}
