package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/unstoppabledomains/nomulus/internal/registry/models"
	"github.com/unstoppabledomains/nomulus/internal/registry/store"
	"github.com/unstoppabledomains/nomulus/pkg/platform/sentinel"
	"github.com/unstoppabledomains/nomulus/pkg/requestcontext"
	"github.com/unstoppabledomains/nomulus/pkg/testutil"
)

type MemoryStoreSuite struct {
	suite.Suite

	clock *testutil.FakeClock
	store *store.Memory
	ctx   context.Context
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) SetupTest() {
	s.clock = testutil.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	s.store = store.NewMemory(store.WithClock(s.clock))
	s.ctx = context.Background()
}

func (s *MemoryStoreSuite) domain(repoID string) models.Domain {
	return models.Domain{
		RepoID:           repoID,
		Name:             repoID + ".example",
		TLD:              "example",
		CurrentSponsorID: "registrar-a",
		Statuses:         models.NewStatusSet(models.StatusOK),
		CreationTime:     s.clock.Now(),
		ExpirationTime:   s.clock.Now().AddDate(1, 0, 0),
	}
}

func (s *MemoryStoreSuite) TestPutAndLoad() {
	d := s.domain("dom-1")
	s.Require().NoError(s.store.Seed(s.ctx, d))

	err := s.store.RunInTransaction(s.ctx, func(tx store.Transaction) error {
		got, err := store.LoadDomain(s.ctx, tx, d.RepoID)
		s.Require().NoError(err)
		s.Equal(d.Name, got.Name)
		s.Equal(d.CurrentSponsorID, got.CurrentSponsorID)
		return nil
	})
	s.Require().NoError(err)
}

func (s *MemoryStoreSuite) TestLoadMissingReturnsNotFound() {
	err := s.store.RunInTransaction(s.ctx, func(tx store.Transaction) error {
		_, err := tx.Load(s.ctx, models.Key{Kind: models.KindDomain, ID: "nope"})
		return err
	})
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *MemoryStoreSuite) TestReadYourWrites() {
	err := s.store.RunInTransaction(s.ctx, func(tx store.Transaction) error {
		d := s.domain("dom-1")
		tx.Put(d)

		got, err := store.LoadDomain(s.ctx, tx, d.RepoID)
		s.Require().NoError(err)
		s.Equal(d.Name, got.Name)

		tx.Delete(d.EntityKey())
		_, err = tx.Load(s.ctx, d.EntityKey())
		s.ErrorIs(err, sentinel.ErrNotFound)
		return nil
	})
	s.Require().NoError(err)
}

func (s *MemoryStoreSuite) TestFailedTransactionDiscardsWrites() {
	boom := errors.New("boom")
	err := s.store.RunInTransaction(s.ctx, func(tx store.Transaction) error {
		tx.Put(s.domain("dom-1"))
		return boom
	})
	s.ErrorIs(err, boom)

	err = s.store.RunInTransaction(s.ctx, func(tx store.Transaction) error {
		_, err := tx.Load(s.ctx, models.Key{Kind: models.KindDomain, ID: "dom-1"})
		return err
	})
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *MemoryStoreSuite) TestTransactionTimeFromClock() {
	var seen time.Time
	s.Require().NoError(s.store.RunInTransaction(s.ctx, func(tx store.Transaction) error {
		seen = tx.Now()
		return nil
	}))
	s.Equal(s.clock.Now(), seen)

	s.clock.Advance(48 * time.Hour)
	s.Require().NoError(s.store.RunInTransaction(s.ctx, func(tx store.Transaction) error {
		seen = tx.Now()
		return nil
	}))
	s.Equal(s.clock.Now(), seen)
}

func (s *MemoryStoreSuite) TestTransactionTimeFromRequestContext() {
	at := time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(s.ctx, at)

	var seen time.Time
	s.Require().NoError(s.store.RunInTransaction(ctx, func(tx store.Transaction) error {
		seen = tx.Now()
		return nil
	}))
	s.Equal(at, seen)
}

func (s *MemoryStoreSuite) TestPendingPollMessages() {
	now := s.clock.Now()
	visible := models.PollMessage{
		ID:          "poll-1",
		RegistrarID: "registrar-a",
		EventTime:   now.Add(-time.Hour),
		Type:        models.PollTransferRequested,
	}
	future := models.PollMessage{
		ID:          "poll-2",
		RegistrarID: "registrar-a",
		EventTime:   now.Add(5 * 24 * time.Hour),
		Type:        models.PollTransferServerApproved,
	}
	otherRegistrar := models.PollMessage{
		ID:          "poll-3",
		RegistrarID: "registrar-b",
		EventTime:   now.Add(-time.Hour),
		Type:        models.PollTransferRequested,
	}
	s.Require().NoError(s.store.Seed(s.ctx, visible, future, otherRegistrar))

	s.Run("only matured messages for the registrar", func() {
		var got []models.PollMessage
		s.Require().NoError(s.store.RunInTransaction(s.ctx, func(tx store.Transaction) error {
			var err error
			got, err = tx.PendingPollMessages(s.ctx, "registrar-a")
			return err
		}))
		s.Require().Len(got, 1)
		s.Equal("poll-1", got[0].ID)
	})

	s.Run("future messages mature as time passes", func() {
		s.clock.Advance(6 * 24 * time.Hour)
		var got []models.PollMessage
		s.Require().NoError(s.store.RunInTransaction(s.ctx, func(tx store.Transaction) error {
			var err error
			got, err = tx.PendingPollMessages(s.ctx, "registrar-a")
			return err
		}))
		s.Require().Len(got, 2)
		s.Equal("poll-1", got[0].ID)
		s.Equal("poll-2", got[1].ID)
	})

	s.Run("staged writes are visible mid-transaction", func() {
		rollback := errors.New("rollback")
		err := s.store.RunInTransaction(s.ctx, func(tx store.Transaction) error {
			tx.Delete(visible.EntityKey())
			got, err := tx.PendingPollMessages(s.ctx, "registrar-a")
			s.Require().NoError(err)
			for _, pm := range got {
				s.NotEqual("poll-1", pm.ID)
			}
			return rollback
		})
		s.ErrorIs(err, rollback)
	})
}

func (s *MemoryStoreSuite) TestSeedDev() {
	s.Require().NoError(store.SeedDev(s.ctx, s.store))

	err := s.store.RunInTransaction(s.ctx, func(tx store.Transaction) error {
		d, err := store.LoadDomain(s.ctx, tx, "dom-1")
		s.Require().NoError(err)
		s.Equal("ship.example", d.Name)

		rec, err := store.LoadRecurrence(s.ctx, tx, d.AutorenewRecurrence)
		s.Require().NoError(err)
		s.Equal(models.EndOfTime, rec.EndTime)

		r, err := store.LoadRegistrar(s.ctx, tx, "registrar-b")
		s.Require().NoError(err)
		s.True(r.IsActive())
		return nil
	})
	s.Require().NoError(err)
}
