package poll_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/unstoppabledomains/nomulus/internal/registry/models"
	"github.com/unstoppabledomains/nomulus/internal/registry/poll"
	"github.com/unstoppabledomains/nomulus/internal/registry/store"
	dErrors "github.com/unstoppabledomains/nomulus/pkg/domain-errors"
	"github.com/unstoppabledomains/nomulus/pkg/testutil"
)

type PollSuite struct {
	suite.Suite

	clock   *testutil.FakeClock
	store   *store.Memory
	service *poll.Service
	ctx     context.Context
}

func TestPollSuite(t *testing.T) {
	suite.Run(t, new(PollSuite))
}

func (s *PollSuite) SetupTest() {
	s.clock = testutil.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	s.store = store.NewMemory(store.WithClock(s.clock))
	s.service = poll.New(s.store)
	s.ctx = context.Background()
}

func (s *PollSuite) seed(msgs ...models.PollMessage) {
	entities := make([]models.Entity, len(msgs))
	for i, pm := range msgs {
		entities[i] = pm
	}
	s.Require().NoError(s.store.Seed(s.ctx, entities...))
}

func (s *PollSuite) TestPending() {
	now := s.clock.Now()
	s.seed(
		models.PollMessage{ID: "m1", RegistrarID: "registrar-a", EventTime: now.Add(-time.Hour), Type: models.PollTransferRequested},
		models.PollMessage{ID: "m2", RegistrarID: "registrar-a", EventTime: now.Add(48 * time.Hour), Type: models.PollTransferServerApproved},
		models.PollMessage{ID: "m3", RegistrarID: "registrar-b", EventTime: now.Add(-time.Hour), Type: models.PollTransferRequested},
	)

	s.Run("delivers only matured messages", func() {
		msgs, err := s.service.Pending(s.ctx, "registrar-a")
		s.Require().NoError(err)
		s.Require().Len(msgs, 1)
		s.Equal("m1", msgs[0].ID)
	})

	s.Run("future messages appear once their event time passes", func() {
		s.clock.Advance(72 * time.Hour)
		msgs, err := s.service.Pending(s.ctx, "registrar-a")
		s.Require().NoError(err)
		s.Len(msgs, 2)
	})

	s.Run("requires a registrar", func() {
		_, err := s.service.Pending(s.ctx, "")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func (s *PollSuite) TestAck() {
	now := s.clock.Now()
	s.seed(
		models.PollMessage{ID: "m1", RegistrarID: "registrar-a", EventTime: now.Add(-time.Hour), Type: models.PollTransferRequested},
		models.PollMessage{ID: "m2", RegistrarID: "registrar-a", EventTime: now.Add(48 * time.Hour), Type: models.PollTransferServerApproved},
	)

	s.Run("removes the message", func() {
		s.Require().NoError(s.service.Ack(s.ctx, "registrar-a", "m1"))
		msgs, err := s.service.Pending(s.ctx, "registrar-a")
		s.Require().NoError(err)
		s.Empty(msgs)
	})

	s.Run("acking twice fails", func() {
		err := s.service.Ack(s.ctx, "registrar-a", "m1")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound), "got %v", err)
	})

	s.Run("cannot ack another registrar's message", func() {
		s.seed(models.PollMessage{ID: "m4", RegistrarID: "registrar-b", EventTime: now.Add(-time.Hour)})
		err := s.service.Ack(s.ctx, "registrar-a", "m4")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden), "got %v", err)
	})

	s.Run("cannot ack an unmatured message", func() {
		err := s.service.Ack(s.ctx, "registrar-a", "m2")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound), "got %v", err)
	})
}
