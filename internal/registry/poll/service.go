// Package poll delivers queued registrar notifications. Messages are
// created by the transfer flows, stay invisible until their event time
// passes, and are removed by explicit acknowledgement.
package poll

import (
	"context"
	"errors"
	"log/slog"

	"github.com/unstoppabledomains/nomulus/internal/audit"
	"github.com/unstoppabledomains/nomulus/internal/platform/metrics"
	"github.com/unstoppabledomains/nomulus/internal/registry/models"
	"github.com/unstoppabledomains/nomulus/internal/registry/store"
	dErrors "github.com/unstoppabledomains/nomulus/pkg/domain-errors"
	"github.com/unstoppabledomains/nomulus/pkg/platform/sentinel"
)

// Service reads and acknowledges poll messages.
type Service struct {
	store   store.Store
	logger  *slog.Logger
	metrics *metrics.Metrics
	audit   audit.Publisher
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMetrics sets the Prometheus instruments.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithAuditPublisher sets the external audit sink.
func WithAuditPublisher(pub audit.Publisher) Option {
	return func(s *Service) { s.audit = pub }
}

// New builds a poll service over the given store.
func New(st store.Store, opts ...Option) *Service {
	s := &Service{
		store:   st,
		logger:  slog.Default(),
		metrics: metrics.NewNop(),
		audit:   audit.NopPublisher{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Pending lists the registrar's matured messages, oldest first. Messages
// dated in the future, such as the speculative approval notifications of a
// still-pending transfer, are not included.
func (s *Service) Pending(ctx context.Context, registrarID string) ([]models.PollMessage, error) {
	if registrarID == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "registrar is required")
	}
	var msgs []models.PollMessage
	err := s.store.RunInTransaction(ctx, func(tx store.Transaction) error {
		var err error
		msgs, err = tx.PendingPollMessages(ctx, registrarID)
		return err
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list poll messages")
	}
	s.metrics.PollDelivered.Add(float64(len(msgs)))
	return msgs, nil
}

// Ack removes a delivered message. Only the addressed registrar may
// acknowledge, and only once the message has matured.
func (s *Service) Ack(ctx context.Context, registrarID, messageID string) error {
	if registrarID == "" {
		return dErrors.New(dErrors.CodeUnauthorized, "registrar is required")
	}
	err := s.store.RunInTransaction(ctx, func(tx store.Transaction) error {
		key := models.Key{Kind: models.KindPollMessage, ID: messageID}
		e, err := tx.Load(ctx, key)
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Newf(dErrors.CodeNotFound, "no poll message %q", messageID)
		}
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "load poll message")
		}
		pm, ok := e.(models.PollMessage)
		if !ok {
			return dErrors.Wrap(sentinel.ErrInvalidState, dErrors.CodeInternal, "load poll message")
		}
		if pm.RegistrarID != registrarID {
			return dErrors.Newf(dErrors.CodeForbidden, "poll message %q is not addressed to %s", messageID, registrarID)
		}
		if pm.EventTime.After(tx.Now()) {
			return dErrors.Newf(dErrors.CodeNotFound, "no poll message %q", messageID)
		}
		tx.Delete(key)
		return nil
	})
	if err != nil {
		return err
	}
	s.metrics.PollAcked.Inc()
	audit.Emit(ctx, s.audit, s.logger, audit.Event{
		Action:      audit.ActionPollAcked,
		RegistrarID: registrarID,
		ResourceID:  messageID,
	})
	return nil
}
