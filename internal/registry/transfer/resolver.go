package transfer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/unstoppabledomains/nomulus/internal/audit"
	"github.com/unstoppabledomains/nomulus/internal/registry/models"
	"github.com/unstoppabledomains/nomulus/internal/registry/store"
	"github.com/unstoppabledomains/nomulus/pkg/authinfo"
	dErrors "github.com/unstoppabledomains/nomulus/pkg/domain-errors"
	"github.com/unstoppabledomains/nomulus/pkg/platform/sentinel"
)

// Approve resolves a pending transfer in the gaining registrar's favor
// before the deadline. Ownership moves now rather than at the deadline, so
// the billing side is rebuilt at the approval time and the speculative
// automatic-approval entities are discarded.
func (s *Service) Approve(ctx context.Context, params ResolveParams) (TransferResult, error) {
	return s.resolve(ctx, "transfer.Approve", params, resolveApprove)
}

// Reject resolves a pending transfer against the gaining registrar. The
// resource is left exactly as it was before the request.
func (s *Service) Reject(ctx context.Context, params ResolveParams) (TransferResult, error) {
	return s.resolve(ctx, "transfer.Reject", params, resolveReject)
}

// Cancel withdraws a pending transfer at the gaining registrar's own
// initiative. Like reject, it unwinds the request completely.
func (s *Service) Cancel(ctx context.Context, params ResolveParams) (TransferResult, error) {
	return s.resolve(ctx, "transfer.Cancel", params, resolveCancel)
}

type resolveKind int

const (
	resolveApprove resolveKind = iota
	resolveReject
	resolveCancel
)

func (k resolveKind) status() models.TransferStatus {
	switch k {
	case resolveApprove:
		return models.TransferClientApproved
	case resolveReject:
		return models.TransferClientRejected
	default:
		return models.TransferClientCancelled
	}
}

func (k resolveKind) outcome() string {
	switch k {
	case resolveApprove:
		return "client_approved"
	case resolveReject:
		return "client_rejected"
	default:
		return "client_cancelled"
	}
}

func (k resolveKind) action() audit.Action {
	switch k {
	case resolveApprove:
		return audit.ActionTransferApproved
	case resolveReject:
		return audit.ActionTransferRejected
	default:
		return audit.ActionTransferCancelled
	}
}

func (k resolveKind) pollType() models.PollMessageType {
	switch k {
	case resolveApprove:
		return models.PollTransferClientApproved
	case resolveReject:
		return models.PollTransferRejected
	default:
		return models.PollTransferCancelled
	}
}

func (k resolveKind) historyType(kind models.Kind) models.HistoryType {
	contact := kind == models.KindContact
	switch k {
	case resolveApprove:
		if contact {
			return models.HistoryContactTransferApprove
		}
		return models.HistoryDomainTransferApprove
	case resolveReject:
		if contact {
			return models.HistoryContactTransferReject
		}
		return models.HistoryDomainTransferReject
	default:
		if contact {
			return models.HistoryContactTransferCancel
		}
		return models.HistoryDomainTransferCancel
	}
}

func (s *Service) resolve(ctx context.Context, spanName string, params ResolveParams, kind resolveKind) (TransferResult, error) {
	ctx, span := s.tracer.Start(ctx, spanName, trace.WithAttributes(
		attribute.String("resource.kind", string(params.Target.Kind)),
		attribute.String("resource.id", params.Target.ID),
		attribute.String("registrar.id", params.RegistrarID),
	))
	defer span.End()

	var result TransferResult
	err := s.store.RunInTransaction(ctx, func(tx store.Transaction) error {
		now := tx.Now()

		if _, err := s.loadActiveRegistrar(ctx, tx, params.RegistrarID); err != nil {
			return err
		}
		res, err := store.LoadResource(ctx, tx, params.Target)
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Newf(dErrors.CodeNotFound, "%s does not exist", params.Target)
		}
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "load resource")
		}

		// A transfer whose deadline has passed was already approved by the
		// server, whether or not the persisted row caught up yet.
		if projected, _ := ProjectAt(res, now); !projected.TransferData().IsPending() {
			return dErrors.Newf(dErrors.CodeNotPendingTransfer,
				"%s has no pending transfer", res.ResourceName())
		}
		td := res.TransferData()

		if err := authorizeResolution(res, td, params, kind); err != nil {
			return err
		}

		resolution := models.TransferResolution{
			Time:        now,
			RegistrarID: params.RegistrarID,
		}
		resolvedTD := td
		resolvedTD.Status = kind.status()
		resolvedTD.PendingDeadline = now
		resolvedTD.ServerApproveKeys = nil
		resolvedTD.ServerApproveRecurrenceKey = models.Key{}
		resolvedTD.OriginalRecurrenceEnd = time.Time{}

		var cost models.Money
		if kind == resolveApprove {
			resolution.SponsorID = td.GainingRegistrarID
			if d, ok := res.(models.Domain); ok {
				newExpiration, newRecKey, approveCost, err := s.stageApprovedBilling(ctx, tx, d, td, now)
				if err != nil {
					return err
				}
				resolution.Expiration = newExpiration
				resolution.RecurrenceKey = newRecKey
				resolvedTD.TransferredExpiration = newExpiration
				cost = approveCost
			}
		} else {
			resolvedTD.TransferredExpiration = time.Time{}
			if d, ok := res.(models.Domain); ok {
				if err := s.restoreRecurrence(ctx, tx, d, td); err != nil {
					return err
				}
			}
		}

		// The speculative entities never become visible: delete them in the
		// same transaction that resolves the transfer.
		tx.Delete(td.ServerApproveKeys...)

		resolution.Transfer = resolvedTD
		updated := res.WithResolvedTransfer(resolution)

		// The registrar on the other side of the resolution: the gaining
		// one when the losing side approves or rejects, the losing one
		// when the gaining side withdraws.
		counterparty := td.GainingRegistrarID
		if kind == resolveCancel {
			counterparty = td.LosingRegistrarID
		}
		poll := models.PollMessage{
			ID:           uuid.NewString(),
			RegistrarID:  counterparty,
			EventTime:    now,
			Type:         kind.pollType(),
			ResourceKey:  res.EntityKey(),
			ResourceName: res.ResourceName(),
			Message:      resolutionMessage(res.ResourceName(), kind),
		}
		history := models.HistoryEntry{
			ID:               uuid.NewString(),
			Type:             kind.historyType(params.Target.Kind),
			ResourceKey:      res.EntityKey(),
			RegistrarID:      params.RegistrarID,
			OtherRegistrarID: counterparty,
			Time:             now,
			PeriodYears:      td.PeriodYears,
		}
		if kind == resolveApprove {
			if d, ok := updated.(models.Domain); ok {
				history.Record = &models.TransactionRecord{
					TLD:           d.TLD,
					ReportField:   models.ReportFieldTransferSuccessful,
					ReportingTime: now.Add(s.cfg.TransferGraceLength),
					Amount:        1,
				}
			}
		}

		tx.Put(updated, poll, history)
		result = TransferResult{Resource: updated, Transfer: resolvedTD, Cost: cost}
		return nil
	})
	if err != nil {
		s.metrics.TransferFailures.WithLabelValues(string(dErrors.CodeOf(err))).Inc()
		return TransferResult{}, err
	}

	s.metrics.TransfersResolved.WithLabelValues(string(params.Target.Kind), kind.outcome()).Inc()
	audit.Emit(ctx, s.audit, s.logger, audit.Event{
		Action:       kind.action(),
		RegistrarID:  params.RegistrarID,
		ResourceKind: string(params.Target.Kind),
		ResourceID:   params.Target.ID,
		ResourceName: result.Resource.ResourceName(),
		Superuser:    params.Superuser,
	})
	s.logger.InfoContext(ctx, "transfer resolved",
		slog.String("target", params.Target.String()),
		slog.String("outcome", kind.outcome()),
		slog.String("by", params.RegistrarID))
	return result, nil
}

// authorizeResolution enforces who may resolve in which direction: the
// losing registrar approves or rejects, the gaining registrar cancels.
// Superusers may do any of the three.
func authorizeResolution(res models.Resource, td models.TransferData, params ResolveParams, kind resolveKind) error {
	if params.Superuser {
		return nil
	}
	allowed := res.SponsorRegistrarID()
	if kind == resolveCancel {
		allowed = td.GainingRegistrarID
	}
	if params.RegistrarID != allowed {
		return dErrors.Newf(dErrors.CodeForbidden,
			"%s may not resolve the transfer of %s", params.RegistrarID, res.ResourceName())
	}
	if params.AuthInfo != "" && !authinfo.Verify(res.AuthInfoHash(), params.AuthInfo) {
		return dErrors.New(dErrors.CodeBadAuthInfo, "authorization information is invalid")
	}
	return nil
}

// stageApprovedBilling rebuilds the billing side of a transfer at an
// explicit approval time: the speculative deadline-dated charge is replaced
// by one dated now, the losing registrar's recurrence closes now, and the
// gaining registrar's recurrence starts at the freshly computed expiration.
func (s *Service) stageApprovedBilling(ctx context.Context, tx store.Transaction, d models.Domain, td models.TransferData, now time.Time) (time.Time, models.Key, models.Money, error) {
	oldRec, err := store.LoadRecurrence(ctx, tx, d.AutorenewRecurrence)
	if err != nil {
		return time.Time{}, models.Key{}, models.Money{}, dErrors.Wrap(err, dErrors.CodeInternal, "load autorenew recurrence")
	}
	newExpiration, subsumed := approvalExpiration(d.ExpirationTime, oldRec, td.PeriodYears, now, s.cfg)

	var cost models.Money
	if td.PeriodYears > 0 {
		cost, err = s.pricing.TransferPrice(ctx, d.TLD, now, subsumed)
		if err != nil {
			return time.Time{}, models.Key{}, models.Money{}, dErrors.Wrap(err, dErrors.CodeInternal, "price transfer")
		}
		tx.Put(models.BillingEvent{
			ID:           uuid.NewString(),
			Reason:       models.BillingReasonTransfer,
			DomainRepoID: d.RepoID,
			DomainName:   d.Name,
			RegistrarID:  td.GainingRegistrarID,
			EventTime:    now,
			BillingTime:  now.Add(s.cfg.TransferGraceLength),
			PeriodYears:  td.PeriodYears,
			Cost:         cost,
		})
	}
	if subsumed {
		_, lastFiring := projectExpiration(d.ExpirationTime, oldRec, now)
		tx.Put(models.BillingCancellation{
			ID:                 uuid.NewString(),
			Reason:             models.BillingReasonAutorenew,
			DomainRepoID:       d.RepoID,
			DomainName:         d.Name,
			RegistrarID:        d.CurrentSponsorID,
			EventTime:          now,
			CancelledEventTime: lastFiring,
		})
	}

	newRec := models.BillingRecurrence{
		ID:           uuid.NewString(),
		DomainRepoID: d.RepoID,
		DomainName:   d.Name,
		TLD:          d.TLD,
		RegistrarID:  td.GainingRegistrarID,
		EventTime:    newExpiration,
		EndTime:      models.EndOfTime,
	}
	tx.Put(oldRec.WithEndTime(now), newRec)
	return newExpiration, newRec.EntityKey(), cost, nil
}

// restoreRecurrence reopens the losing registrar's recurrence after a reject
// or cancel. The restore is guarded: it only applies while the recurrence
// still ends exactly at the pending deadline, so an end moved by some other
// flow is left alone.
func (s *Service) restoreRecurrence(ctx context.Context, tx store.Transaction, d models.Domain, td models.TransferData) error {
	rec, err := store.LoadRecurrence(ctx, tx, d.AutorenewRecurrence)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "load autorenew recurrence")
	}
	if !rec.EndTime.Equal(td.PendingDeadline) || td.OriginalRecurrenceEnd.IsZero() {
		return nil
	}
	tx.Put(rec.WithEndTime(td.OriginalRecurrenceEnd))
	return nil
}

func resolutionMessage(name string, kind resolveKind) string {
	switch kind {
	case resolveApprove:
		return "Transfer of " + name + " approved by the sponsoring registrar."
	case resolveReject:
		return "Transfer of " + name + " rejected by the sponsoring registrar."
	default:
		return "Transfer of " + name + " cancelled by the requesting registrar."
	}
}
