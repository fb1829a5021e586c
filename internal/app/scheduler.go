package app

import (
	"context"
	"log"
	"time"

	"github.com/bipinss1983/banksystem/internal/store"
	"github.com/robfig/cron/v3"
)

// Scheduler runs housekeeping jobs on cron schedules.
type Scheduler struct {
	cron      *cron.Cron
	repo      store.OutboxRepository
	retention time.Duration
	schedule  string
	now       func() time.Time
}

func NewScheduler(repo store.OutboxRepository, schedule string, retention time.Duration) *Scheduler {
	cronLogger := cron.PrintfLogger(log.Default())
	return &Scheduler{
		cron:      cron.New(cron.WithChain(cron.Recover(cronLogger))),
		repo:      repo,
		retention: retention,
		schedule:  schedule,
		now:       time.Now,
	}
}

// Start registers the jobs and starts the cron scheduler.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.PurgePublishedNotifications); err != nil {
		return err
	}
	log.Printf("level=info component=scheduler msg=\"scheduled outbox purge job\" schedule=%q retention=%s", s.schedule, s.retention)
	s.cron.Start()
	return nil
}

// Stop stops the scheduler; the returned context is done once running jobs finish.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// PurgePublishedNotifications deletes published outbox rows past retention.
func (s *Scheduler) PurgePublishedNotifications() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cutoff := s.now().Add(-s.retention)
	purged, err := s.repo.PurgePublishedOutbox(ctx, cutoff)
	if err != nil {
		log.Printf("level=error component=scheduler msg=\"outbox purge failed\" err=%v", err)
		return
	}
	log.Printf("level=info component=scheduler msg=\"outbox purge finished\" purged=%d cutoff=%s", purged, cutoff.Format(time.RFC3339))
}
