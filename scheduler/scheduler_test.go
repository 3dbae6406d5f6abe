package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePurger struct {
	mu    sync.Mutex
	calls []time.Time
	n     int64
	err   error
}

func (f *fakePurger) PurgeExpired(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, now)
	return f.n, f.err
}

func (f *fakePurger) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestSweepPassesClock(t *testing.T) {
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	repo := &fakePurger{n: 3}
	s := NewScheduler(repo, time.Minute)
	s.now = func() time.Time { return fixed }

	assert.Equal(t, int64(3), s.Sweep(context.Background()))
	require.Len(t, repo.calls, 1)
	assert.Equal(t, fixed, repo.calls[0])
}

func TestSweepSwallowsErrors(t *testing.T) {
	repo := &fakePurger{n: 9, err: errors.New("db down")}
	s := NewScheduler(repo, time.Minute)
	assert.Equal(t, int64(0), s.Sweep(context.Background()))
}

func TestStartRunsImmediatelyAndStops(t *testing.T) {
	repo := &fakePurger{}
	s := NewScheduler(repo, 10*time.Millisecond)
	s.Start(context.Background())

	require.Eventually(t, func() bool { return repo.count() >= 2 }, time.Second, 5*time.Millisecond)
	s.Stop()
	s.Stop()

	after := repo.count()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, repo.count())
}

func TestStartStopsOnContextCancel(t *testing.T) {
	repo := &fakePurger{}
	s := NewScheduler(repo, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)

	require.Eventually(t, func() bool { return repo.count() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	s.wg.Wait()
}

func TestDefaultInterval(t *testing.T) {
	s := NewScheduler(&fakePurger{}, 0)
	assert.Equal(t, DefaultInterval, s.interval)
}
