package watch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/corpusbuild/internal/events"
	ferrors "git.home.luguber.info/inful/corpusbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/corpusbuild/internal/logfields"
)

// Scheduler wraps a gocron scheduler for periodic session tasks.
type Scheduler struct {
	scheduler gocron.Scheduler
}

// NewScheduler creates a stopped scheduler.
func NewScheduler() (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	return &Scheduler{scheduler: s}, nil
}

// Start begins running scheduled jobs.
func (s *Scheduler) Start() {
	s.scheduler.Start()
}

// Stop shuts the scheduler down and waits for running jobs.
func (s *Scheduler) Stop() error {
	return s.scheduler.Shutdown()
}

// ScheduleEvery runs fn every interval and returns the job id.
func (s *Scheduler) ScheduleEvery(name string, interval time.Duration, fn func()) (string, error) {
	if interval <= 0 {
		return "", ferrors.ValidationError("interval must be > 0").WithContext("job", name).Build()
	}
	job, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(fn),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create job %s: %w", name, err)
	}
	return job.ID().String(), nil
}

// ScheduleFullRebuild requests a full rebuild on bus every interval. The
// request goes through the debouncer like any other change.
func (s *Scheduler) ScheduleFullRebuild(ctx context.Context, bus *events.Bus, interval time.Duration, log *slog.Logger) (string, error) {
	return s.ScheduleEvery("full-rebuild", interval, func() {
		log.InfoContext(ctx, "Scheduled full rebuild requested")
		if err := bus.Publish(ctx, events.ChangeDetected{Full: true, DetectedAt: time.Now()}); err != nil && ctx.Err() == nil {
			log.WarnContext(ctx, "Failed to request scheduled rebuild", logfields.Error(err))
		}
	})
}
