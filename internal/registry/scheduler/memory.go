package scheduler

import (
	"container/heap"
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/unstoppabledomains/nomulus/internal/registry/models"
)

// Memory is an in-process scheduler backed by a min-heap and a single timer
// goroutine. Entries do not survive a restart; read-time projection covers
// anything lost.
type Memory struct {
	mu      sync.Mutex
	entries entryHeap
	byKey   map[models.Key]time.Time
	wake    chan struct{}
	logger  *slog.Logger
}

// MemoryOption configures a Memory scheduler.
type MemoryOption func(*Memory)

// WithLogger sets the logger used by the run loop.
func WithLogger(logger *slog.Logger) MemoryOption {
	return func(m *Memory) { m.logger = logger }
}

// NewMemory builds an empty scheduler. Run must be started for entries to
// fire.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		byKey:  make(map[models.Key]time.Time),
		wake:   make(chan struct{}, 1),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) ScheduleNotBefore(_ context.Context, key models.Key, at time.Time) error {
	m.mu.Lock()
	if existing, ok := m.byKey[key]; ok && !existing.After(at) {
		m.mu.Unlock()
		return nil
	}
	m.byKey[key] = at
	heap.Push(&m.entries, entry{key: key, at: at})
	m.mu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}
	return nil
}

// Run fires due entries until ctx is cancelled. Reevaluation errors are
// logged and the entry is dropped; the next read of the resource repairs
// its state regardless.
func (m *Memory) Run(ctx context.Context, fn ReevaluateFunc) error {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		next, ok := m.peek()
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		if ok {
			timer.Reset(time.Until(next))
		} else {
			timer.Reset(time.Hour)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.wake:
		case <-timer.C:
			for _, key := range m.popDue(time.Now()) {
				if err := fn(ctx, key); err != nil {
					m.logger.WarnContext(ctx, "scheduled reevaluation failed",
						slog.String("kind", string(key.Kind)),
						slog.String("id", key.ID),
						slog.Any("error", err))
				}
			}
		}
	}
}

func (m *Memory) peek() (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.entries) == 0 {
		return time.Time{}, false
	}
	return m.entries[0].at, true
}

// popDue removes entries at or before now, skipping stale duplicates left
// behind when a key was rescheduled earlier.
func (m *Memory) popDue(now time.Time) []models.Key {
	m.mu.Lock()
	defer m.mu.Unlock()
	var due []models.Key
	for len(m.entries) > 0 && !m.entries[0].at.After(now) {
		e := heap.Pop(&m.entries).(entry)
		current, ok := m.byKey[e.key]
		if !ok || !current.Equal(e.at) {
			continue
		}
		delete(m.byKey, e.key)
		due = append(due, e.key)
	}
	return due
}

type entry struct {
	key models.Key
	at  time.Time
}

type entryHeap []entry

func (h entryHeap) Len() int            { return len(h) }
func (h entryHeap) Less(i, j int) bool  { return h[i].at.Before(h[j].at) }
func (h entryHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *entryHeap) Push(x any)         { *h = append(*h, x.(entry)) }
func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}
