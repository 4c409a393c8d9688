package models

import "time"

// PollMessageType classifies registrar notifications.
type PollMessageType string

const (
	PollTransferRequested      PollMessageType = "transferRequested"
	PollTransferServerApproved PollMessageType = "transferServerApproved"
	PollTransferClientApproved PollMessageType = "transferClientApproved"
	PollTransferRejected       PollMessageType = "transferRejected"
	PollTransferCancelled      PollMessageType = "transferCancelled"
)

// PollMessage is a notification queued for a registrar. A message is
// invisible to its registrar until EventTime passes, which is how
// speculative approval notifications stay dormant while a transfer is
// pending: they are dated at the automatic-approval deadline.
type PollMessage struct {
	ID           string          `json:"id"`
	RegistrarID  string          `json:"registrar_id"`
	EventTime    time.Time       `json:"event_time"`
	Type         PollMessageType `json:"type"`
	ResourceKey  Key             `json:"resource_key"`
	ResourceName string          `json:"resource_name"`
	Message      string          `json:"message"`
}

func (p PollMessage) EntityKey() Key { return Key{Kind: KindPollMessage, ID: p.ID} }
