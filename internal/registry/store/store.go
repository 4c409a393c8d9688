// Package store defines the transactional persistence contract the registry
// core runs inside, plus the shipped backends (memory and postgres).
//
// Every mutating flow executes within RunInTransaction: reads observe a
// single transaction time, writes and deletes are staged and applied
// atomically only if the function returns nil. Operations on the same
// resource are serialized by the backend, so the core needs no in-process
// locking of its own.
package store

import (
	"context"
	"time"

	"github.com/unstoppabledomains/nomulus/internal/registry/models"
	"github.com/unstoppabledomains/nomulus/pkg/platform/sentinel"
)

// Clock supplies the authoritative time for transactions. Production uses
// SystemClock; tests inject a settable fake.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// Transaction is the view a flow gets inside RunInTransaction. Loads see the
// transaction's own staged writes (read-your-writes); nothing becomes
// visible to other transactions until commit.
type Transaction interface {
	// Now is the transaction time, fixed for the whole transaction.
	Now() time.Time
	// Load returns the entity at key or sentinel.ErrNotFound.
	Load(ctx context.Context, key models.Key) (models.Entity, error)
	// Put stages entity upserts.
	Put(entities ...models.Entity)
	// Delete stages entity deletions. Deleting an absent key is a no-op.
	Delete(keys ...models.Key)
	// PendingPollMessages lists the registrar's poll messages whose event
	// time is at or before the transaction time, oldest first. Messages
	// dated in the future are invisible.
	PendingPollMessages(ctx context.Context, registrarID string) ([]models.PollMessage, error)
}

// Store runs functions transactionally.
type Store interface {
	RunInTransaction(ctx context.Context, fn func(tx Transaction) error) error
}

// Typed load helpers. They exist so flows fail with a clear error instead of
// a bare type assertion when a key unexpectedly resolves to another kind.

func LoadDomain(ctx context.Context, tx Transaction, repoID string) (models.Domain, error) {
	e, err := tx.Load(ctx, models.Key{Kind: models.KindDomain, ID: repoID})
	if err != nil {
		return models.Domain{}, err
	}
	d, ok := e.(models.Domain)
	if !ok {
		return models.Domain{}, sentinel.ErrInvalidState
	}
	return d, nil
}

func LoadContact(ctx context.Context, tx Transaction, repoID string) (models.Contact, error) {
	e, err := tx.Load(ctx, models.Key{Kind: models.KindContact, ID: repoID})
	if err != nil {
		return models.Contact{}, err
	}
	c, ok := e.(models.Contact)
	if !ok {
		return models.Contact{}, sentinel.ErrInvalidState
	}
	return c, nil
}

func LoadRegistrar(ctx context.Context, tx Transaction, id string) (models.Registrar, error) {
	e, err := tx.Load(ctx, models.Key{Kind: models.KindRegistrar, ID: id})
	if err != nil {
		return models.Registrar{}, err
	}
	r, ok := e.(models.Registrar)
	if !ok {
		return models.Registrar{}, sentinel.ErrInvalidState
	}
	return r, nil
}

func LoadRecurrence(ctx context.Context, tx Transaction, key models.Key) (models.BillingRecurrence, error) {
	e, err := tx.Load(ctx, key)
	if err != nil {
		return models.BillingRecurrence{}, err
	}
	r, ok := e.(models.BillingRecurrence)
	if !ok {
		return models.BillingRecurrence{}, sentinel.ErrInvalidState
	}
	return r, nil
}

// LoadResource loads a domain or contact as the shared Resource capability.
func LoadResource(ctx context.Context, tx Transaction, key models.Key) (models.Resource, error) {
	e, err := tx.Load(ctx, key)
	if err != nil {
		return nil, err
	}
	res, ok := e.(models.Resource)
	if !ok {
		return nil, sentinel.ErrInvalidState
	}
	return res, nil
}
