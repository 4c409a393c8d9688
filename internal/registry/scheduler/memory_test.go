package scheduler_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unstoppabledomains/nomulus/internal/registry/models"
	"github.com/unstoppabledomains/nomulus/internal/registry/scheduler"
)

func TestMemorySchedulerFiresDueEntries(t *testing.T) {
	s := scheduler.NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	fired := make(map[models.Key]int)
	done := make(chan struct{}, 4)
	go func() {
		_ = s.Run(ctx, func(_ context.Context, key models.Key) error {
			mu.Lock()
			fired[key]++
			mu.Unlock()
			done <- struct{}{}
			return nil
		})
	}()

	key := models.Key{Kind: models.KindDomain, ID: "dom-1"}
	require.NoError(t, s.ScheduleNotBefore(ctx, key, time.Now().Add(20*time.Millisecond)))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("entry never fired")
	}
	mu.Lock()
	assert.Equal(t, 1, fired[key])
	mu.Unlock()
}

func TestMemorySchedulerKeepsEarliestDeadline(t *testing.T) {
	s := scheduler.NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var firedAt []time.Time
	done := make(chan struct{}, 4)
	go func() {
		_ = s.Run(ctx, func(context.Context, models.Key) error {
			mu.Lock()
			firedAt = append(firedAt, time.Now())
			mu.Unlock()
			done <- struct{}{}
			return nil
		})
	}()

	key := models.Key{Kind: models.KindDomain, ID: "dom-1"}
	require.NoError(t, s.ScheduleNotBefore(ctx, key, time.Now().Add(10*time.Second)))
	require.NoError(t, s.ScheduleNotBefore(ctx, key, time.Now().Add(20*time.Millisecond)))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("earlier deadline never fired")
	}
	mu.Lock()
	assert.Len(t, firedAt, 1)
	mu.Unlock()
}

func TestMemorySchedulerRunStopsOnCancel(t *testing.T) {
	s := scheduler.NewMemory()
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Run(ctx, func(context.Context, models.Key) error { return nil })
	}()
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("run loop did not stop")
	}
}
