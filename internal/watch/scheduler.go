package watch

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/cssbuilder/internal/logfields"
)

// resyncScheduler wraps a gocron scheduler running the periodic resync job.
type resyncScheduler struct {
	scheduler gocron.Scheduler
}

func newResyncScheduler(interval time.Duration, task func()) (*resyncScheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	job, err := s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(task),
		gocron.WithName("resync"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = s.Shutdown()
		return nil, fmt.Errorf("failed to create resync job: %w", err)
	}
	slog.Debug("Scheduled periodic resync", slog.String("job_id", job.ID().String()), logfields.Duration(interval))
	return &resyncScheduler{scheduler: s}, nil
}

func (r *resyncScheduler) Start() {
	r.scheduler.Start()
}

func (r *resyncScheduler) Stop() error {
	return r.scheduler.Shutdown()
}
