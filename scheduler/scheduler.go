package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultInterval is how often expired multipliers are purged.
const DefaultInterval = time.Hour

// ExpiredPurger deletes records that expired at or before now.
type ExpiredPurger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// Scheduler periodically purges expired multipliers. Reads already ignore
// expired rows, so the sweep only keeps the table small.
type Scheduler struct {
	repo     ExpiredPurger
	interval time.Duration
	now      func() time.Time

	ticker *time.Ticker
	done   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

func NewScheduler(repo ExpiredPurger, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		repo:     repo,
		interval: interval,
		now:      time.Now,
		done:     make(chan struct{}),
	}
}

// Start runs one sweep immediately and then one per interval until Stop
// is called or ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	log.Info().Dur("interval", s.interval).Msg("Multiplier sweeper started")

	s.ticker = time.NewTicker(s.interval)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.Sweep(ctx)
		for {
			select {
			case <-s.ticker.C:
				s.Sweep(ctx)
			case <-s.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the scheduler and waits for an in-flight sweep.
func (s *Scheduler) Stop() {
	s.once.Do(func() {
		if s.ticker != nil {
			s.ticker.Stop()
		}
		close(s.done)
	})
	s.wg.Wait()
	log.Info().Msg("Scheduler stopped")
}

// Sweep purges once and returns the number of rows removed.
func (s *Scheduler) Sweep(ctx context.Context) int64 {
	n, err := s.repo.PurgeExpired(ctx, s.now())
	if err != nil {
		log.Error().Err(err).Msg("Failed to purge expired multipliers")
		return 0
	}
	if n > 0 {
		log.Info().Int64("purged", n).Msg("Purged expired multipliers")
	}
	return n
}
