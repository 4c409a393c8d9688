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

// Request opens a pending transfer on a domain or contact. The resource
// stays with the losing registrar until approval; everything the automatic
// approval will need is staged now, dated at the deadline.
func (s *Service) Request(ctx context.Context, params RequestParams) (TransferResult, error) {
	ctx, span := s.tracer.Start(ctx, "transfer.Request", trace.WithAttributes(
		attribute.String("resource.kind", string(params.Target.Kind)),
		attribute.String("resource.id", params.Target.ID),
		attribute.String("registrar.id", params.GainingRegistrarID),
	))
	defer span.End()

	var (
		result   TransferResult
		deadline time.Time
	)
	err := s.store.RunInTransaction(ctx, func(tx store.Transaction) error {
		now := tx.Now()

		gaining, err := s.loadActiveRegistrar(ctx, tx, params.GainingRegistrarID)
		if err != nil {
			return err
		}
		res, err := store.LoadResource(ctx, tx, params.Target)
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Newf(dErrors.CodeNotFound, "%s does not exist", params.Target)
		}
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "load resource")
		}
		res = s.ensureCurrent(ctx, tx, res)

		if res.TransferData().IsPending() {
			return dErrors.Newf(dErrors.CodeAlreadyPendingTransfer,
				"%s already has a pending transfer", res.ResourceName())
		}
		if res.SponsorRegistrarID() == gaining.ID {
			return dErrors.Newf(dErrors.CodeObjectAlreadySponsored,
				"%s is already sponsored by %s", res.ResourceName(), gaining.ID)
		}
		if !params.Superuser {
			if res.StatusValues().HasAny(models.TransferProhibitedStatuses) {
				return dErrors.Newf(dErrors.CodeStatusProhibitsOperation,
					"a status on %s prohibits transfer", res.ResourceName())
			}
			if !authinfo.Verify(res.AuthInfoHash(), params.AuthInfo) {
				return dErrors.New(dErrors.CodeBadAuthInfo, "authorization information is invalid")
			}
		}

		pendingPeriod := s.cfg.PendingPeriod
		if params.PendingPeriod != nil {
			if !params.Superuser {
				return dErrors.New(dErrors.CodeBadRequest, "only superusers may override the pending period")
			}
			if *params.PendingPeriod < 0 {
				return dErrors.New(dErrors.CodeValidation, "pending period must not be negative")
			}
			pendingPeriod = *params.PendingPeriod
		}
		deadline = now.Add(pendingPeriod)

		var (
			td    models.TransferData
			set   serverApproveSet
			extra []models.Entity
		)
		switch r := res.(type) {
		case models.Domain:
			td, set, extra, err = s.planDomainRequest(ctx, tx, r, gaining, params, now, deadline)
			if err != nil {
				return err
			}
		case models.Contact:
			if params.PeriodYears != nil {
				return dErrors.New(dErrors.CodeBadRequest, "contact transfers have no period")
			}
			if params.Fee != nil {
				return dErrors.New(dErrors.CodeBadRequest, "contact transfers are free")
			}
			set = buildContactApproveSet(r, gaining.ID, deadline)
			td = models.TransferData{
				Status:             models.TransferPending,
				GainingRegistrarID: gaining.ID,
				LosingRegistrarID:  r.CurrentSponsorID,
				RequestTime:        now,
				PendingDeadline:    deadline,
				ServerApproveKeys:  set.keys(),
			}
		default:
			return dErrors.Newf(dErrors.CodeBadRequest, "%s is not transferable", params.Target.Kind)
		}

		updated := res.WithPendingTransfer(td, now, gaining.ID)
		requestPoll := models.PollMessage{
			ID:           uuid.NewString(),
			RegistrarID:  td.LosingRegistrarID,
			EventTime:    now,
			Type:         models.PollTransferRequested,
			ResourceKey:  res.EntityKey(),
			ResourceName: res.ResourceName(),
			Message:      "Transfer of " + res.ResourceName() + " requested by " + gaining.ID + ".",
		}
		history := models.HistoryEntry{
			ID:               uuid.NewString(),
			Type:             requestHistoryType(params.Target.Kind),
			ResourceKey:      res.EntityKey(),
			RegistrarID:      gaining.ID,
			OtherRegistrarID: td.LosingRegistrarID,
			Time:             now,
			PeriodYears:      td.PeriodYears,
		}

		tx.Put(updated, requestPoll, history)
		tx.Put(set.entities...)
		tx.Put(extra...)

		result = TransferResult{
			Resource: updated,
			Transfer: td,
			Cost:     set.cost,
		}
		return nil
	})
	if err != nil {
		s.metrics.TransferFailures.WithLabelValues(string(dErrors.CodeOf(err))).Inc()
		return TransferResult{}, err
	}

	if err := s.scheduler.ScheduleNotBefore(ctx, params.Target, deadline); err != nil {
		s.logger.WarnContext(ctx, "failed to schedule deadline reevaluation",
			slog.String("target", params.Target.String()),
			slog.Any("error", err))
	}
	s.metrics.TransfersRequested.WithLabelValues(string(params.Target.Kind)).Inc()
	audit.Emit(ctx, s.audit, s.logger, audit.Event{
		Action:       audit.ActionTransferRequested,
		RegistrarID:  params.GainingRegistrarID,
		ResourceKind: string(params.Target.Kind),
		ResourceID:   params.Target.ID,
		ResourceName: result.Resource.ResourceName(),
		Superuser:    params.Superuser,
	})
	s.logger.InfoContext(ctx, "transfer requested",
		slog.String("target", params.Target.String()),
		slog.String("gaining", params.GainingRegistrarID),
		slog.String("losing", result.Transfer.LosingRegistrarID),
		slog.Time("deadline", deadline))
	return result, nil
}

// planDomainRequest validates the domain-specific inputs and stages the
// request's billing side: the old recurrence shortened to the deadline plus
// the speculative automatic-approval set.
func (s *Service) planDomainRequest(ctx context.Context, tx store.Transaction, d models.Domain, gaining models.Registrar, params RequestParams, now, deadline time.Time) (models.TransferData, serverApproveSet, []models.Entity, error) {
	years := 1
	if params.PeriodYears != nil {
		years = *params.PeriodYears
	}
	if !params.Superuser && years != 1 {
		return models.TransferData{}, serverApproveSet{}, nil,
			dErrors.New(dErrors.CodeTransferPeriodMustBeOneYear, "transfer period must be one year")
	}
	if years < 0 || years > 1 {
		return models.TransferData{}, serverApproveSet{}, nil,
			dErrors.Newf(dErrors.CodeInvalidTransferPeriod, "invalid transfer period %d", years)
	}
	if years == 0 && params.Fee != nil {
		return models.TransferData{}, serverApproveSet{}, nil,
			dErrors.New(dErrors.CodePeriodZeroWithFee, "a zero-period transfer cannot carry a fee")
	}
	if !params.Superuser && !gaining.AllowedOnTLD(d.TLD) {
		return models.TransferData{}, serverApproveSet{}, nil,
			dErrors.Newf(dErrors.CodeNotAuthorizedForTLD, "%s is not accredited for .%s", gaining.ID, d.TLD)
	}

	oldRec, err := store.LoadRecurrence(ctx, tx, d.AutorenewRecurrence)
	if err != nil {
		return models.TransferData{}, serverApproveSet{}, nil,
			dErrors.Wrap(err, dErrors.CodeInternal, "load autorenew recurrence")
	}

	var cost models.Money
	if years > 0 {
		_, subsumed := approvalExpiration(d.ExpirationTime, oldRec, years, deadline, s.cfg)
		cost, err = s.pricing.TransferPrice(ctx, d.TLD, now, subsumed)
		if err != nil {
			return models.TransferData{}, serverApproveSet{}, nil,
				dErrors.Wrap(err, dErrors.CodeInternal, "price transfer")
		}
		if !params.Superuser && !gaining.HasBillingAccount(cost.Currency) {
			return models.TransferData{}, serverApproveSet{}, nil,
				dErrors.Newf(dErrors.CodeMissingBillingAccount, "%s has no billing account in %s", gaining.ID, cost.Currency)
		}
		if params.Fee != nil && !params.Fee.Equal(cost) {
			return models.TransferData{}, serverApproveSet{}, nil,
				dErrors.Newf(dErrors.CodeFeeMismatch, "expected fee %s, got %s", cost, *params.Fee)
		}
	}

	set := buildDomainApproveSet(d, oldRec, gaining.ID, years, deadline, cost, s.cfg)
	td := models.TransferData{
		Status:                     models.TransferPending,
		GainingRegistrarID:         gaining.ID,
		LosingRegistrarID:          d.CurrentSponsorID,
		RequestTime:                now,
		PendingDeadline:            deadline,
		PeriodYears:                years,
		ServerApproveKeys:          set.keys(),
		ServerApproveRecurrenceKey: set.recurrenceKey,
		TransferredExpiration:      set.newExpiration,
		OriginalRecurrenceEnd:      oldRec.EndTime,
	}
	// Shorten the losing registrar's recurrence so no autorenew fires after
	// the deadline; reject and cancel restore the original end.
	extra := []models.Entity{oldRec.WithEndTime(deadline)}
	return td, set, extra, nil
}

// Reevaluate persists the read-time projection of a resource, typically in
// response to a scheduler nudge at its automatic-approval deadline. Missing
// resources and resources with nothing pending are fine.
func (s *Service) Reevaluate(ctx context.Context, key models.Key) error {
	ctx, span := s.tracer.Start(ctx, "transfer.Reevaluate", trace.WithAttributes(
		attribute.String("resource.kind", string(key.Kind)),
		attribute.String("resource.id", key.ID),
	))
	defer span.End()

	promoted := false
	var td models.TransferData
	err := s.store.RunInTransaction(ctx, func(tx store.Transaction) error {
		res, err := store.LoadResource(ctx, tx, key)
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil
		}
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "load resource")
		}
		before := res.TransferData()
		projected := s.ensureCurrent(ctx, tx, res)
		promoted = before.IsPending() && !projected.TransferData().IsPending()
		td = projected.TransferData()
		return nil
	})
	if err != nil {
		return err
	}
	if promoted {
		s.metrics.TransfersResolved.WithLabelValues(string(key.Kind), "server_approved").Inc()
		audit.Emit(ctx, s.audit, s.logger, audit.Event{
			Action:       audit.ActionTransferServerApproved,
			RegistrarID:  td.GainingRegistrarID,
			ResourceKind: string(key.Kind),
			ResourceID:   key.ID,
		})
		s.logger.InfoContext(ctx, "transfer approved by the server",
			slog.String("target", key.String()),
			slog.String("gaining", td.GainingRegistrarID))
	}
	return nil
}

func (s *Service) loadActiveRegistrar(ctx context.Context, tx store.Transaction, id string) (models.Registrar, error) {
	if id == "" {
		return models.Registrar{}, dErrors.New(dErrors.CodeUnauthorized, "registrar is required")
	}
	r, err := store.LoadRegistrar(ctx, tx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return models.Registrar{}, dErrors.Newf(dErrors.CodeUnauthorized, "unknown registrar %q", id)
	}
	if err != nil {
		return models.Registrar{}, dErrors.Wrap(err, dErrors.CodeInternal, "load registrar")
	}
	if !r.IsActive() {
		return models.Registrar{}, dErrors.Newf(dErrors.CodeRegistrarNotActive, "registrar %q is not active", id)
	}
	return r, nil
}

func requestHistoryType(kind models.Kind) models.HistoryType {
	if kind == models.KindContact {
		return models.HistoryContactTransferRequest
	}
	return models.HistoryDomainTransferRequest
}
