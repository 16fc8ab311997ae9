package jobs

import (
	"context"
	"log"
	"log/slog"
	"sync"
	"time"

	"github.com/limbo/serenity/pkg/cleanup"
)

const runTimeout = 15 * time.Minute

// Scheduler fires the aggregation job once per day at the configured
// local hour.
type Scheduler struct {
	job      *AggregationJob
	hour     int
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func NewScheduler(job *AggregationJob, hour int) *Scheduler {
	if job == nil {
		log.Fatal("on scheduler provided nil job")
	}
	if hour < 0 || hour > 23 {
		hour = 2
	}
	return &Scheduler{
		job:  job,
		hour: hour,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

func (s *Scheduler) Start() {
	go s.loop()
	cleanup.Register(&cleanup.Job{
		Name: "stopping aggregation scheduler",
		F: func() error {
			s.Stop()
			return nil
		},
	})
}

func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
	<-s.done
}

func (s *Scheduler) loop() {
	defer close(s.done)
	for {
		wait := time.Until(nextRunAt(time.Now(), s.hour))
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
			ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
			if _, err := s.job.RunDailyAggregation(ctx); err != nil {
				slog.Error("scheduled aggregation failed", slog.String("error", err.Error()))
			}
			cancel()
		case <-s.stop:
			timer.Stop()
			return
		}
	}
}

func nextRunAt(now time.Time, hour int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
