package jobs

import (
	"context"
	"time"

	"github.com/travelties/service_layer/internal/config"
)

// Job names.
const (
	ClosePolls     = "close-polls"
	PurgeUploads   = "purge-uploads"
	LimiterCleanup = "limiter-cleanup"
)

const limiterIdle = 15 * time.Minute

// PollCloser closes polls whose deadline passed.
type PollCloser interface {
	CloseExpired(ctx context.Context) (int, error)
}

// UploadPurger removes photos whose upload never completed.
type UploadPurger interface {
	PurgeStale(ctx context.Context, olderThan time.Duration) (int, error)
}

// LimiterSweeper drops idle rate limiter entries.
type LimiterSweeper interface {
	Cleanup(maxIdle time.Duration) int
}

// Deps are the components maintained by the standard jobs. Nil entries skip
// their job.
type Deps struct {
	Polls   PollCloser
	Uploads UploadPurger
	Limiter LimiterSweeper
}

// Register adds the standard maintenance jobs to s.
func Register(s *Scheduler, cfg config.JobsConfig, deps Deps) error {
	if deps.Polls != nil {
		if err := s.Add(ClosePolls, cfg.ClosePolls, deps.Polls.CloseExpired); err != nil {
			return err
		}
	}
	if deps.Uploads != nil {
		ttl := cfg.PendingUploadTTL
		if ttl <= 0 {
			ttl = 24 * time.Hour
		}
		err := s.Add(PurgeUploads, cfg.PurgeUploads, func(ctx context.Context) (int, error) {
			return deps.Uploads.PurgeStale(ctx, ttl)
		})
		if err != nil {
			return err
		}
	}
	if deps.Limiter != nil {
		err := s.Add(LimiterCleanup, cfg.LimiterCleanup, func(context.Context) (int, error) {
			return deps.Limiter.Cleanup(limiterIdle), nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}
