package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/unstoppabledomains/nomulus/internal/registry/models"
	"github.com/unstoppabledomains/nomulus/pkg/platform/sentinel"
	"github.com/unstoppabledomains/nomulus/pkg/requestcontext"
)

// Memory is the in-process store. It intentionally favors clarity over
// performance: one mutex serializes all transactions, which satisfies the
// single-writer-per-resource contract trivially.
//
// Entities are value types treated as immutable by all flows, so handing out
// the stored values directly is safe.
type Memory struct {
	mu       sync.Mutex
	clock    Clock
	entities map[models.Key]models.Entity
}

// MemoryOption configures a Memory store.
type MemoryOption func(*Memory)

// WithClock overrides the wall clock, for deadline tests.
func WithClock(clock Clock) MemoryOption {
	return func(m *Memory) { m.clock = clock }
}

// NewMemory builds an empty in-process store.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		clock:    SystemClock{},
		entities: make(map[models.Key]models.Entity),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RunInTransaction executes fn against a staged view. The staged writes are
// applied only if fn returns nil. The transaction time comes from the
// request context when middleware set one, otherwise from the clock.
func (m *Memory) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now, ok := requestcontext.Time(ctx)
	if !ok {
		now = m.clock.Now()
	}
	tx := &memoryTx{
		store:   m,
		now:     now,
		puts:    make(map[models.Key]models.Entity),
		deletes: make(map[models.Key]struct{}),
	}
	if err := fn(tx); err != nil {
		return err
	}
	for key := range tx.deletes {
		delete(m.entities, key)
	}
	for key, e := range tx.puts {
		m.entities[key] = e
	}
	return nil
}

// Seed inserts entities outside any flow, for wiring and tests.
func (m *Memory) Seed(ctx context.Context, entities ...models.Entity) error {
	return m.RunInTransaction(ctx, func(tx Transaction) error {
		tx.Put(entities...)
		return nil
	})
}

type memoryTx struct {
	store   *Memory
	now     time.Time
	puts    map[models.Key]models.Entity
	deletes map[models.Key]struct{}
}

func (tx *memoryTx) Now() time.Time { return tx.now }

func (tx *memoryTx) Load(_ context.Context, key models.Key) (models.Entity, error) {
	if e, ok := tx.puts[key]; ok {
		return e, nil
	}
	if _, deleted := tx.deletes[key]; deleted {
		return nil, sentinel.ErrNotFound
	}
	if e, ok := tx.store.entities[key]; ok {
		return e, nil
	}
	return nil, sentinel.ErrNotFound
}

func (tx *memoryTx) Put(entities ...models.Entity) {
	for _, e := range entities {
		key := e.EntityKey()
		delete(tx.deletes, key)
		tx.puts[key] = e
	}
}

func (tx *memoryTx) Delete(keys ...models.Key) {
	for _, key := range keys {
		delete(tx.puts, key)
		tx.deletes[key] = struct{}{}
	}
}

func (tx *memoryTx) PendingPollMessages(_ context.Context, registrarID string) ([]models.PollMessage, error) {
	seen := make(map[models.Key]struct{})
	var out []models.PollMessage
	collect := func(e models.Entity) {
		pm, ok := e.(models.PollMessage)
		if !ok {
			return
		}
		if _, dup := seen[pm.EntityKey()]; dup {
			return
		}
		seen[pm.EntityKey()] = struct{}{}
		if _, deleted := tx.deletes[pm.EntityKey()]; deleted {
			return
		}
		if pm.RegistrarID != registrarID || pm.EventTime.After(tx.now) {
			return
		}
		out = append(out, pm)
	}
	for _, e := range tx.puts {
		collect(e)
	}
	for _, e := range tx.store.entities {
		collect(e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EventTime.Before(out[j].EventTime) })
	return out, nil
}
