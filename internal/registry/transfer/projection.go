package transfer

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/unstoppabledomains/nomulus/internal/registry/models"
	"github.com/unstoppabledomains/nomulus/internal/registry/store"
	dErrors "github.com/unstoppabledomains/nomulus/pkg/domain-errors"
	"github.com/unstoppabledomains/nomulus/pkg/platform/sentinel"
)

// ProjectAt applies time to a resource without any storage access. If a
// pending transfer's deadline is at or before asOf, the returned copy shows
// the transfer approved by the server: gaining registrar as sponsor, the
// precomputed expiration, the speculative recurrence active. Otherwise the
// resource comes back unchanged. The second return reports whether a
// projection happened.
//
// The speculative entity keys stay in TransferData on an automatic
// resolution: the entities they reference are authoritative now, and the
// keys record which ones.
func ProjectAt(res models.Resource, asOf time.Time) (models.Resource, bool) {
	td := res.TransferData()
	if !td.IsPending() || td.PendingDeadline.After(asOf) {
		return res, false
	}
	resolved := td
	resolved.Status = models.TransferServerApproved
	return res.WithResolvedTransfer(models.TransferResolution{
		Transfer:      resolved,
		SponsorID:     td.GainingRegistrarID,
		Expiration:    td.TransferredExpiration,
		RecurrenceKey: td.ServerApproveRecurrenceKey,
		Time:          td.PendingDeadline,
		RegistrarID:   td.GainingRegistrarID,
	}), true
}

// ensureCurrent projects res to the transaction time and, when that resolves
// a pending transfer, stages the projected resource and its history entry so
// the persisted state catches up with what time already decided.
func (s *Service) ensureCurrent(ctx context.Context, tx store.Transaction, res models.Resource) models.Resource {
	projected, changed := ProjectAt(res, tx.Now())
	if !changed {
		return res
	}
	td := res.TransferData()
	history := models.HistoryEntry{
		ID:               uuid.NewString(),
		Type:             approveHistoryType(res.EntityKey().Kind),
		ResourceKey:      res.EntityKey(),
		RegistrarID:      td.GainingRegistrarID,
		OtherRegistrarID: td.LosingRegistrarID,
		Time:             td.PendingDeadline,
		PeriodYears:      td.PeriodYears,
	}
	if d, ok := res.(models.Domain); ok {
		history.Record = &models.TransactionRecord{
			TLD:           d.TLD,
			ReportField:   models.ReportFieldTransferSuccessful,
			ReportingTime: td.PendingDeadline.Add(s.cfg.TransferGraceLength),
			Amount:        1,
		}
	}
	tx.Put(projected, history)
	return projected
}

// Get returns a resource projected to the current time. Reads repair
// persisted state: if the projection resolved a pending transfer, the
// resolved form is written back before it is returned.
func (s *Service) Get(ctx context.Context, key models.Key) (models.Resource, error) {
	ctx, span := s.tracer.Start(ctx, "transfer.Get")
	defer span.End()

	var res models.Resource
	err := s.store.RunInTransaction(ctx, func(tx store.Transaction) error {
		loaded, err := store.LoadResource(ctx, tx, key)
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Newf(dErrors.CodeNotFound, "%s does not exist", key)
		}
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "load resource")
		}
		res = s.ensureCurrent(ctx, tx, loaded)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func approveHistoryType(kind models.Kind) models.HistoryType {
	if kind == models.KindContact {
		return models.HistoryContactTransferApprove
	}
	return models.HistoryDomainTransferApprove
}
