package app

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// SweeperConfig controls housekeeping of stale attempts and idle sessions.
type SweeperConfig struct {
	AttemptGrace  time.Duration
	MaxAttemptAge time.Duration
	SessionIdle   time.Duration
}

// Sweeper abandons expired attempts and cancels idle live sessions.
type Sweeper struct {
	attempts *AttemptService
	sessions *SessionService
	cfg      SweeperConfig
	extra    []func(context.Context)
}

func NewSweeper(attempts *AttemptService, sessions *SessionService, cfg SweeperConfig) *Sweeper {
	return &Sweeper{attempts: attempts, sessions: sessions, cfg: cfg}
}

// AddTask runs fn after the built-in work on every pass.
func (s *Sweeper) AddTask(fn func(context.Context)) {
	s.extra = append(s.extra, fn)
}

// Sweep runs one pass.
func (s *Sweeper) Sweep(ctx context.Context) {
	if s.attempts != nil {
		n, err := s.attempts.AbandonExpired(ctx, s.cfg.AttemptGrace, s.cfg.MaxAttemptAge)
		if err != nil {
			log.Printf("sweep attempts: %v", err)
		} else if n > 0 {
			log.Printf("sweep abandoned %d expired attempts", n)
		}
	}
	if s.sessions != nil {
		if n := s.sessions.ExpireIdle(ctx, s.cfg.SessionIdle); n > 0 {
			log.Printf("sweep closed %d idle sessions", n)
		}
	}
	for _, fn := range s.extra {
		fn(ctx)
	}
}

// Schedule registers Sweep on a cron spec such as "@every 1m". Overlapping runs are skipped.
// The caller starts and stops the returned cron.
func (s *Sweeper) Schedule(ctx context.Context, spec string) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	if _, err := c.AddFunc(spec, func() { s.Sweep(ctx) }); err != nil {
		return nil, err
	}
	return c, nil
}
