package transfer_test

import (
	"time"

	"github.com/unstoppabledomains/nomulus/internal/registry/models"
	"github.com/unstoppabledomains/nomulus/internal/registry/transfer"
	dErrors "github.com/unstoppabledomains/nomulus/pkg/domain-errors"
)

func (s *TransferSuite) TestAutomaticServerApproval() {
	d := s.seedDomain(s.t0.AddDate(1, 0, 0))
	requested := s.request(d.EntityKey())
	deadline := requested.Transfer.PendingDeadline

	s.clock.Advance(6 * 24 * time.Hour)

	res, err := s.service.Get(s.ctx, d.EntityKey())
	s.Require().NoError(err)

	s.Run("sponsorship moved at the deadline", func() {
		got := res.(models.Domain)
		s.Equal(gainingID, got.CurrentSponsorID)
		s.True(got.ExpirationTime.Equal(d.ExpirationTime.AddDate(1, 0, 0)))
		s.Equal(models.TransferServerApproved, got.Transfer.Status)
		s.True(got.Transfer.PendingDeadline.Equal(deadline), "deadline is the approval time")
		s.False(got.Statuses.Has(models.StatusPendingTransfer))
		s.Equal(requested.Transfer.ServerApproveRecurrenceKey, got.AutorenewRecurrence)
	})

	s.Run("projection was written back", func() {
		got := s.loadDomain(d.RepoID)
		s.Equal(gainingID, got.CurrentSponsorID)
		s.Equal(models.TransferServerApproved, got.Transfer.Status)
	})

	s.Run("speculative entities are now authoritative", func() {
		for _, key := range requested.Transfer.ServerApproveKeys {
			_, err := s.loadEntity(key)
			s.Require().NoError(err, "missing %s", key)
		}
	})

	s.Run("both registrars see the approval notice", func() {
		for _, registrar := range []string{gainingID, losingID} {
			var types []models.PollMessageType
			for _, pm := range s.pendingPolls(registrar) {
				types = append(types, pm.Type)
			}
			s.Contains(types, models.PollTransferServerApproved, "registrar %s", registrar)
		}
	})
}

func (s *TransferSuite) TestReevaluatePersistsApproval() {
	d := s.seedDomain(s.t0.AddDate(1, 0, 0))
	s.request(d.EntityKey())

	s.clock.Advance(6 * 24 * time.Hour)
	s.Require().NoError(s.service.Reevaluate(s.ctx, d.EntityKey()))

	got := s.loadDomain(d.RepoID)
	s.Equal(gainingID, got.CurrentSponsorID)
	s.Equal(models.TransferServerApproved, got.Transfer.Status)

	s.Run("reevaluating again is a no-op", func() {
		s.Require().NoError(s.service.Reevaluate(s.ctx, d.EntityKey()))
	})

	s.Run("reevaluating a missing resource is fine", func() {
		s.Require().NoError(s.service.Reevaluate(s.ctx, models.Key{Kind: models.KindDomain, ID: "gone"}))
	})
}

func (s *TransferSuite) TestProjectionIsStableAcrossReads() {
	d := s.seedDomain(s.t0.AddDate(1, 0, 0))
	s.request(d.EntityKey())
	s.clock.Advance(6 * 24 * time.Hour)

	first, err := s.service.Get(s.ctx, d.EntityKey())
	s.Require().NoError(err)
	second, err := s.service.Get(s.ctx, d.EntityKey())
	s.Require().NoError(err)
	s.Equal(first, second)
}

func (s *TransferSuite) TestGraceWindowSubsumesAutorenew() {
	// The domain expired ten days ago, so an autorenew has already fired
	// and the automatic-approval deadline lands inside its grace window.
	expiration := s.t0.AddDate(0, 0, -10)
	d := s.seedDomain(expiration)

	result := s.request(d.EntityKey())
	td := result.Transfer

	s.Run("no transfer year stacks on the subsumed autorenew", func() {
		s.True(td.TransferredExpiration.Equal(expiration.AddDate(1, 0, 0)),
			"want the autorenewed expiration untouched, got %s", td.TransferredExpiration)
	})

	s.Run("cost covers transfer plus the absorbed renewal", func() {
		s.True(result.Cost.Equal(models.NewMoney("20.00", "USD")), "got %s", result.Cost)
	})

	s.Run("the autorenew charge is cancelled on automatic approval", func() {
		var sawCancellation bool
		for _, key := range td.ServerApproveKeys {
			if key.Kind != models.KindBillingCancellation {
				continue
			}
			sawCancellation = true
			e, err := s.loadEntity(key)
			s.Require().NoError(err)
			bc := e.(models.BillingCancellation)
			s.Equal(losingID, bc.RegistrarID)
			s.Equal(models.BillingReasonAutorenew, bc.Reason)
			s.True(bc.CancelledEventTime.Equal(expiration))
		}
		s.True(sawCancellation, "no autorenew cancellation staged")
	})

	s.Run("after the deadline the domain shows the projected state", func() {
		s.clock.Advance(6 * 24 * time.Hour)
		res, err := s.service.Get(s.ctx, d.EntityKey())
		s.Require().NoError(err)
		got := res.(models.Domain)
		s.Equal(gainingID, got.CurrentSponsorID)
		s.True(got.ExpirationTime.Equal(expiration.AddDate(1, 0, 0)))
	})
}

func (s *TransferSuite) TestAutorenewOutsideGraceWindow() {
	// The autorenew fired long ago; its grace window closed, so the
	// transfer adds a full year on top of the autorenewed expiration.
	expiration := s.t0.AddDate(0, 0, -60)
	d := s.seedDomain(expiration)

	result := s.request(d.EntityKey())
	s.True(result.Transfer.TransferredExpiration.Equal(expiration.AddDate(2, 0, 0)),
		"want autorenew year plus transfer year, got %s", result.Transfer.TransferredExpiration)
	s.True(result.Cost.Equal(models.NewMoney("11.00", "USD")), "got %s", result.Cost)
}

func (s *TransferSuite) TestTenYearCap() {
	s.Run("extension past the cap clamps to it", func() {
		d := s.seedDomain(s.t0.AddDate(9, 8, 0))
		result := s.request(d.EntityKey())

		deadline := result.Transfer.PendingDeadline
		s.True(result.Transfer.TransferredExpiration.Equal(deadline.AddDate(10, 0, 0)),
			"got %s", result.Transfer.TransferredExpiration)
	})

	s.Run("extension landing exactly on the cap passes through", func() {
		rec := models.BillingRecurrence{
			ID:           "rec-cap",
			DomainRepoID: "dom-cap",
			DomainName:   "cap.example",
			TLD:          "example",
			RegistrarID:  losingID,
			EventTime:    s.t0.AddDate(9, 0, 0),
			EndTime:      models.EndOfTime,
		}
		d := models.Domain{
			RepoID:              "dom-cap",
			Name:                "cap.example",
			TLD:                 "example",
			CurrentSponsorID:    losingID,
			Statuses:            models.NewStatusSet(models.StatusOK),
			AuthInfo:            authHash,
			ExpirationTime:      s.t0.AddDate(9, 0, 0),
			AutorenewRecurrence: rec.EntityKey(),
		}
		s.Require().NoError(s.store.Seed(s.ctx, rec, d))
		s.request(d.EntityKey())

		// Approving right now puts the new expiration exactly ten years
		// out, which the cap permits.
		result, err := s.service.Approve(s.ctx, transfer.ResolveParams{
			Target:      d.EntityKey(),
			RegistrarID: losingID,
		})
		s.Require().NoError(err)
		got := result.Resource.(models.Domain)
		s.True(got.ExpirationTime.Equal(s.t0.AddDate(10, 0, 0)), "got %s", got.ExpirationTime)
	})
}

func (s *TransferSuite) TestGetUnknownResource() {
	_, err := s.service.Get(s.ctx, models.Key{Kind: models.KindDomain, ID: "nope"})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound), "got %v", err)
}

func (s *TransferSuite) TestRequestAfterAutomaticApproval() {
	d := s.seedDomain(s.t0.AddDate(1, 0, 0))
	s.request(d.EntityKey())
	s.clock.Advance(6 * 24 * time.Hour)

	// The first transfer resolved by time alone; the losing side of that
	// transfer can now request it back.
	result, err := s.service.Request(s.ctx, transfer.RequestParams{
		Target:             d.EntityKey(),
		GainingRegistrarID: losingID,
		AuthInfo:           authCode,
	})
	s.Require().NoError(err)
	s.Equal(losingID, result.Transfer.GainingRegistrarID)
	s.Equal(gainingID, result.Transfer.LosingRegistrarID)
}

func (s *TransferSuite) TestProjectAtPure() {
	d := s.seedDomain(s.t0.AddDate(1, 0, 0))
	requested := s.request(d.EntityKey())
	stored := s.loadDomain(d.RepoID)

	s.Run("before the deadline nothing changes", func() {
		res, changed := transfer.ProjectAt(stored, requested.Transfer.PendingDeadline.Add(-time.Second))
		s.False(changed)
		s.Equal(stored, res)
	})

	s.Run("at the deadline the transfer resolves", func() {
		res, changed := transfer.ProjectAt(stored, requested.Transfer.PendingDeadline)
		s.True(changed)
		got := res.(models.Domain)
		s.Equal(gainingID, got.CurrentSponsorID)
		s.Equal(models.TransferServerApproved, got.Transfer.Status)
	})

	s.Run("projection does not re-resolve a resolved transfer", func() {
		res, _ := transfer.ProjectAt(stored, requested.Transfer.PendingDeadline)
		again, changed := transfer.ProjectAt(res, requested.Transfer.PendingDeadline.AddDate(1, 0, 0))
		s.False(changed)
		s.Equal(res, again)
	})
}
