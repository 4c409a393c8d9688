package transfer_test

import (
	"context"
	"time"

	"github.com/unstoppabledomains/nomulus/internal/registry/models"
	"github.com/unstoppabledomains/nomulus/internal/registry/store"
	"github.com/unstoppabledomains/nomulus/internal/registry/transfer"
	dErrors "github.com/unstoppabledomains/nomulus/pkg/domain-errors"
	"github.com/unstoppabledomains/nomulus/pkg/platform/sentinel"
)

func (s *TransferSuite) TestExplicitApprove() {
	d := s.seedDomain(s.t0.AddDate(1, 0, 0))
	requested := s.request(d.EntityKey())

	s.clock.Advance(2 * 24 * time.Hour)
	now := s.clock.Now()

	result, err := s.service.Approve(s.ctx, transfer.ResolveParams{
		Target:      d.EntityKey(),
		RegistrarID: losingID,
	})
	s.Require().NoError(err)

	td := result.Transfer
	s.Equal(models.TransferClientApproved, td.Status)
	s.True(td.PendingDeadline.Equal(now), "deadline rewritten to the approval time")
	s.Empty(td.ServerApproveKeys)
	s.True(td.ServerApproveRecurrenceKey.IsZero())

	s.Run("ownership and expiration move at the approval time", func() {
		got := s.loadDomain(d.RepoID)
		s.Equal(gainingID, got.CurrentSponsorID)
		s.True(got.ExpirationTime.Equal(d.ExpirationTime.AddDate(1, 0, 0)))
		s.False(got.Statuses.Has(models.StatusPendingTransfer))
		s.NotEqual(d.AutorenewRecurrence, got.AutorenewRecurrence)
	})

	s.Run("speculative entities are gone", func() {
		for _, key := range requested.Transfer.ServerApproveKeys {
			_, err := s.loadEntity(key)
			s.Require().ErrorIs(err, sentinel.ErrNotFound, "still present: %s", key)
		}
	})

	s.Run("old recurrence closes at the approval time", func() {
		rec := s.loadRecurrence(d.AutorenewRecurrence)
		s.True(rec.EndTime.Equal(now))
	})

	s.Run("new recurrence starts at the new expiration", func() {
		got := s.loadDomain(d.RepoID)
		rec := s.loadRecurrence(got.AutorenewRecurrence)
		s.Equal(gainingID, rec.RegistrarID)
		s.True(rec.EventTime.Equal(got.ExpirationTime))
		s.True(rec.EndTime.Equal(models.EndOfTime))
	})

	s.Run("gaining registrar is billed at the approval time", func() {
		s.True(result.Cost.Equal(models.NewMoney("11.00", "USD")), "got %s", result.Cost)
	})

	s.Run("gaining registrar is notified", func() {
		for _, pm := range s.pendingPolls(gainingID) {
			if pm.Type == models.PollTransferClientApproved {
				return
			}
		}
		s.Fail("no clientApproved poll message for the gaining registrar")
	})
}

func (s *TransferSuite) TestExplicitReject() {
	d := s.seedDomain(s.t0.AddDate(1, 0, 0))
	requested := s.request(d.EntityKey())

	s.clock.Advance(24 * time.Hour)
	now := s.clock.Now()

	result, err := s.service.Reject(s.ctx, transfer.ResolveParams{
		Target:      d.EntityKey(),
		RegistrarID: losingID,
	})
	s.Require().NoError(err)
	s.Equal(models.TransferClientRejected, result.Transfer.Status)
	s.True(result.Transfer.PendingDeadline.Equal(now))

	s.Run("domain is exactly as before the request", func() {
		got := s.loadDomain(d.RepoID)
		s.Equal(losingID, got.CurrentSponsorID)
		s.True(got.ExpirationTime.Equal(d.ExpirationTime))
		s.False(got.Statuses.Has(models.StatusPendingTransfer))
		s.Equal(d.AutorenewRecurrence, got.AutorenewRecurrence)
	})

	s.Run("recurrence end is restored", func() {
		rec := s.loadRecurrence(d.AutorenewRecurrence)
		s.True(rec.EndTime.Equal(models.EndOfTime))
	})

	s.Run("speculative entities are gone", func() {
		for _, key := range requested.Transfer.ServerApproveKeys {
			_, err := s.loadEntity(key)
			s.Require().ErrorIs(err, sentinel.ErrNotFound, "still present: %s", key)
		}
	})

	s.Run("gaining registrar is notified", func() {
		var types []models.PollMessageType
		for _, pm := range s.pendingPolls(gainingID) {
			types = append(types, pm.Type)
		}
		s.Contains(types, models.PollTransferRejected)
	})

	s.Run("a new request can follow", func() {
		s.request(d.EntityKey())
	})
}

func (s *TransferSuite) TestCancelByGainingRegistrar() {
	d := s.seedDomain(s.t0.AddDate(1, 0, 0))
	s.request(d.EntityKey())

	result, err := s.service.Cancel(s.ctx, transfer.ResolveParams{
		Target:      d.EntityKey(),
		RegistrarID: gainingID,
	})
	s.Require().NoError(err)
	s.Equal(models.TransferClientCancelled, result.Transfer.Status)

	s.Run("domain unchanged", func() {
		got := s.loadDomain(d.RepoID)
		s.Equal(losingID, got.CurrentSponsorID)
		s.False(got.Transfer.IsPending())
	})

	s.Run("losing registrar is notified", func() {
		var types []models.PollMessageType
		for _, pm := range s.pendingPolls(losingID) {
			types = append(types, pm.Type)
		}
		s.Contains(types, models.PollTransferCancelled)
	})
}

func (s *TransferSuite) TestRejectLeavesMovedRecurrenceAlone() {
	d := s.seedDomain(s.t0.AddDate(1, 0, 0))
	s.request(d.EntityKey())

	// Another flow moved the recurrence end while the transfer was
	// pending. The guarded restore must leave it where that flow put it.
	moved := s.t0.AddDate(0, 6, 0)
	rec := s.loadRecurrence(d.AutorenewRecurrence)
	s.Require().NoError(s.store.Seed(s.ctx, rec.WithEndTime(moved)))

	_, err := s.service.Reject(s.ctx, transfer.ResolveParams{
		Target:      d.EntityKey(),
		RegistrarID: losingID,
	})
	s.Require().NoError(err)

	got := s.loadRecurrence(d.AutorenewRecurrence)
	s.True(got.EndTime.Equal(moved), "restore overwrote a superseded end: %s", got.EndTime)
}

func (s *TransferSuite) TestCancelHistoryNamesLosingCounterparty() {
	d := s.seedDomain(s.t0.AddDate(1, 0, 0))
	s.request(d.EntityKey())

	capture := &capturingStore{Memory: s.store}
	svc := transfer.New(capture, s.pricing)
	_, err := svc.Cancel(s.ctx, transfer.ResolveParams{
		Target:      d.EntityKey(),
		RegistrarID: gainingID,
	})
	s.Require().NoError(err)

	var histories []models.HistoryEntry
	for _, e := range capture.puts {
		if h, ok := e.(models.HistoryEntry); ok {
			histories = append(histories, h)
		}
	}
	s.Require().Len(histories, 1)
	s.Equal(gainingID, histories[0].RegistrarID)
	s.Equal(losingID, histories[0].OtherRegistrarID)
}

func (s *TransferSuite) TestResolutionAuthorization() {
	s.Run("gaining registrar cannot approve", func() {
		d := s.seedDomain(s.t0.AddDate(1, 0, 0))
		s.request(d.EntityKey())

		_, err := s.service.Approve(s.ctx, transfer.ResolveParams{
			Target:      d.EntityKey(),
			RegistrarID: gainingID,
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden), "got %v", err)
	})

	s.Run("losing registrar cannot cancel", func() {
		_, err := s.service.Cancel(s.ctx, transfer.ResolveParams{
			Target:      models.Key{Kind: models.KindDomain, ID: "dom-1"},
			RegistrarID: losingID,
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden), "got %v", err)
	})

	s.Run("superuser may reject on behalf of the registry", func() {
		_, err := s.service.Reject(s.ctx, transfer.ResolveParams{
			Target:      models.Key{Kind: models.KindDomain, ID: "dom-1"},
			RegistrarID: gainingID,
			Superuser:   true,
		})
		s.Require().NoError(err)
	})

	s.Run("wrong auth info on approve", func() {
		d := s.seedDomain(s.t0.AddDate(1, 0, 0))
		s.request(d.EntityKey())

		_, err := s.service.Approve(s.ctx, transfer.ResolveParams{
			Target:      d.EntityKey(),
			RegistrarID: losingID,
			AuthInfo:    "wrong",
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeBadAuthInfo), "got %v", err)
	})
}

func (s *TransferSuite) TestResolutionIsFinal() {
	d := s.seedDomain(s.t0.AddDate(1, 0, 0))
	s.request(d.EntityKey())

	_, err := s.service.Reject(s.ctx, transfer.ResolveParams{
		Target:      d.EntityKey(),
		RegistrarID: losingID,
	})
	s.Require().NoError(err)

	for name, op := range map[string]func() error{
		"approve": func() error {
			_, err := s.service.Approve(s.ctx, transfer.ResolveParams{Target: d.EntityKey(), RegistrarID: losingID})
			return err
		},
		"reject": func() error {
			_, err := s.service.Reject(s.ctx, transfer.ResolveParams{Target: d.EntityKey(), RegistrarID: losingID})
			return err
		},
		"cancel": func() error {
			_, err := s.service.Cancel(s.ctx, transfer.ResolveParams{Target: d.EntityKey(), RegistrarID: gainingID})
			return err
		},
	} {
		s.Run(name+" after resolution fails", func() {
			err := op()
			s.Require().Error(err)
			s.True(dErrors.HasCode(err, dErrors.CodeNotPendingTransfer), "got %v", err)
		})
	}
}

func (s *TransferSuite) TestExplicitResolutionAfterDeadline() {
	d := s.seedDomain(s.t0.AddDate(1, 0, 0))
	s.request(d.EntityKey())

	// The server already approved this transfer by the time the losing
	// registrar gets around to rejecting it.
	s.clock.Advance(6 * 24 * time.Hour)

	_, err := s.service.Reject(s.ctx, transfer.ResolveParams{
		Target:      d.EntityKey(),
		RegistrarID: losingID,
	})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotPendingTransfer), "got %v", err)
}

// capturingStore wraps the memory store and records every entity written,
// so tests can inspect entities stored under generated IDs.
type capturingStore struct {
	*store.Memory
	puts []models.Entity
}

func (c *capturingStore) RunInTransaction(ctx context.Context, fn func(tx store.Transaction) error) error {
	return c.Memory.RunInTransaction(ctx, func(tx store.Transaction) error {
		return fn(&capturingTx{Transaction: tx, capture: c})
	})
}

type capturingTx struct {
	store.Transaction
	capture *capturingStore
}

func (t *capturingTx) Put(entities ...models.Entity) {
	t.capture.puts = append(t.capture.puts, entities...)
	t.Transaction.Put(entities...)
}

func (s *TransferSuite) TestContactResolution() {
	c := s.seedContact()
	requested := s.request(c.EntityKey())

	result, err := s.service.Approve(s.ctx, transfer.ResolveParams{
		Target:      c.EntityKey(),
		RegistrarID: losingID,
	})
	s.Require().NoError(err)
	s.Equal(models.TransferClientApproved, result.Transfer.Status)
	s.Equal(gainingID, result.Resource.SponsorRegistrarID())
	s.True(result.Cost.IsZero())

	for _, key := range requested.Transfer.ServerApproveKeys {
		_, err := s.loadEntity(key)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	}
}
