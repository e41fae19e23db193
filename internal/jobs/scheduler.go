package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"bnka/portal/internal/config"
)

const (
	TaskSessionCleanup   = "session_cleanup"
	TaskAnalyticsArchive = "analytics_archive"
)

type Scheduler struct {
	cron  *cron.Cron
	queue *redis.Client
	cfg   config.JobsConfig
	log   zerolog.Logger
}

func NewScheduler(queue *redis.Client, cfg config.JobsConfig, log zerolog.Logger) *Scheduler {
	c := cron.New(cron.WithSeconds())
	return &Scheduler{
		cron:  c,
		queue: queue,
		cfg:   cfg,
		log:   log,
	}
}

func (s *Scheduler) Start() error {
	if s.queue == nil {
		return nil
	}

	if _, err := s.cron.AddFunc(s.cfg.SessionCleanup, func() { s.enqueueLogged(TaskSessionCleanup) }); err != nil {
		return fmt.Errorf("schedule %s: %w", TaskSessionCleanup, err)
	}
	if _, err := s.cron.AddFunc(s.cfg.AnalyticsArchive, func() { s.enqueueLogged(TaskAnalyticsArchive) }); err != nil {
		return fmt.Errorf("schedule %s: %w", TaskAnalyticsArchive, err)
	}

	s.cron.Start()
	return nil
}

// Stop waits up to five seconds for running jobs.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
	}
}

func (s *Scheduler) enqueueLogged(taskType string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Enqueue(ctx, taskType); err != nil {
		s.log.Error().Err(err).Str("task", taskType).Msg("enqueue failed")
		return
	}
	s.log.Debug().Str("task", taskType).Msg("task enqueued")
}

func (s *Scheduler) Enqueue(ctx context.Context, taskType string) error {
	if s.queue == nil {
		return nil
	}
	return s.queue.XAdd(ctx, &redis.XAddArgs{
		Stream: s.cfg.Stream,
		Values: map[string]any{
			"type":       taskType,
			"enqueuedAt": time.Now().UTC().Format(time.RFC3339),
		},
	}).Err()
}
