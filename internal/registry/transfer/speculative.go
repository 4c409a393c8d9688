package transfer

import (
	"time"

	"github.com/google/uuid"

	"github.com/unstoppabledomains/nomulus/internal/registry/models"
)

// serverApproveSet is everything a request stages for the automatic-approval
// outcome. The entities are dated at the deadline and therefore inert while
// the transfer is pending; their keys go into TransferData.ServerApproveKeys
// so explicit resolution can find and delete them.
type serverApproveSet struct {
	entities      []models.Entity
	recurrenceKey models.Key
	// newExpiration is the domain expiration after automatic approval,
	// zero for contacts.
	newExpiration time.Time
	// subsumed reports that the deadline lands in the autorenew grace
	// window, so the set includes a cancellation of that autorenew.
	subsumed bool
	cost     models.Money
}

func (set serverApproveSet) keys() []models.Key {
	return models.Keys(set.entities...)
}

// buildDomainApproveSet stages the automatic-approval outcome for a domain:
// the transfer charge, a cancellation of any subsumed autorenew, the gaining
// registrar's replacement recurrence, and the approval notifications for
// both registrars.
func buildDomainApproveSet(d models.Domain, oldRec models.BillingRecurrence, gaining string, years int, deadline time.Time, cost models.Money, cfg Config) serverApproveSet {
	newExpiration, subsumed := approvalExpiration(d.ExpirationTime, oldRec, years, deadline, cfg)

	var entities []models.Entity
	if years > 0 {
		entities = append(entities, models.BillingEvent{
			ID:           uuid.NewString(),
			Reason:       models.BillingReasonTransfer,
			DomainRepoID: d.RepoID,
			DomainName:   d.Name,
			RegistrarID:  gaining,
			EventTime:    deadline,
			BillingTime:  deadline.Add(cfg.TransferGraceLength),
			PeriodYears:  years,
			Cost:         cost,
		})
	}
	if subsumed {
		_, lastFiring := projectExpiration(d.ExpirationTime, oldRec, deadline)
		entities = append(entities, models.BillingCancellation{
			ID:                 uuid.NewString(),
			Reason:             models.BillingReasonAutorenew,
			DomainRepoID:       d.RepoID,
			DomainName:         d.Name,
			RegistrarID:        d.CurrentSponsorID,
			EventTime:          deadline,
			CancelledEventTime: lastFiring,
		})
	}

	newRec := models.BillingRecurrence{
		ID:           uuid.NewString(),
		DomainRepoID: d.RepoID,
		DomainName:   d.Name,
		TLD:          d.TLD,
		RegistrarID:  gaining,
		EventTime:    newExpiration,
		EndTime:      models.EndOfTime,
	}
	entities = append(entities, newRec)
	entities = append(entities, approvalPollPair(d, gaining, d.CurrentSponsorID, deadline)...)

	return serverApproveSet{
		entities:      entities,
		recurrenceKey: newRec.EntityKey(),
		newExpiration: newExpiration,
		subsumed:      subsumed,
		cost:          cost,
	}
}

// buildContactApproveSet stages the automatic-approval outcome for a
// contact: just the notifications, since contact transfers carry no billing.
func buildContactApproveSet(c models.Contact, gaining string, deadline time.Time) serverApproveSet {
	return serverApproveSet{
		entities: approvalPollPair(c, gaining, c.CurrentSponsorID, deadline),
	}
}

func approvalPollPair(res models.Resource, gaining, losing string, deadline time.Time) []models.Entity {
	message := "Transfer of " + res.ResourceName() + " approved by the server."
	return []models.Entity{
		models.PollMessage{
			ID:           uuid.NewString(),
			RegistrarID:  gaining,
			EventTime:    deadline,
			Type:         models.PollTransferServerApproved,
			ResourceKey:  res.EntityKey(),
			ResourceName: res.ResourceName(),
			Message:      message,
		},
		models.PollMessage{
			ID:           uuid.NewString(),
			RegistrarID:  losing,
			EventTime:    deadline,
			Type:         models.PollTransferServerApproved,
			ResourceKey:  res.EntityKey(),
			ResourceName: res.ResourceName(),
			Message:      message,
		},
	}
}
