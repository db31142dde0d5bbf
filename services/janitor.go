package services

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"

	"rag-docqa-platform/internal/logger"
)

// Sweeper removes sessions idle for longer than a TTL.
type Sweeper interface {
	Sweep(ctx context.Context, ttl time.Duration) ([]string, error)
}

// Janitor periodically expires idle sessions.
type Janitor struct {
	scheduler *gocron.Scheduler
	sweeper   Sweeper
	ttl       time.Duration
	interval  time.Duration
}

func NewJanitor(sweeper Sweeper, ttl, interval time.Duration) (*Janitor, error) {
	s := gocron.NewScheduler(time.UTC)
	s.TagsUnique()
	s.SingletonModeAll()

	j := &Janitor{scheduler: s, sweeper: sweeper, ttl: ttl, interval: interval}
	if _, err := s.Every(interval).Tag("session-sweep").Do(j.RunOnce); err != nil {
		return nil, err
	}
	return j, nil
}

// Start runs the schedule in the background.
func (j *Janitor) Start() {
	j.scheduler.StartAsync()
	logger.Info("Session janitor started", "ttl", j.ttl.String(), "interval", j.interval.String())
}

func (j *Janitor) Stop() {
	j.scheduler.Stop()
}

// RunOnce performs a single sweep and returns the expired session ids.
func (j *Janitor) RunOnce() []string {
	ctx, cancel := context.WithTimeout(context.Background(), j.interval)
	defer cancel()

	expired, err := j.sweeper.Sweep(ctx, j.ttl)
	if err != nil {
		logger.Error("Session sweep failed", "error", err)
	}
	if len(expired) > 0 {
		logger.Info("Expired idle sessions", "count", len(expired), "sessions", expired)
	}
	return expired
}
