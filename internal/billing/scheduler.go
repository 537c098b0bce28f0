package billing

import (
	"context"
	"time"

	"dairy_billing/internal/utils"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Scheduler fires the daily cycle once per business-timezone day at a fixed
// hour. It keeps no state between runs; the Redis day marker stops multiple
// instances from running the same day twice, and the cycle's own idempotence
// covers the case where they do anyway.
type Scheduler struct {
	cycle *Cycle
	rdb   *redis.Client
	loc   *time.Location
	hour  int
	nowFn func() time.Time
}

// NewScheduler wraps a cycle in a timer loop. hour is the local hour of day
// to fire at.
func NewScheduler(cycle *Cycle, rdb *redis.Client, loc *time.Location, hour int) *Scheduler {
	return &Scheduler{
		cycle: cycle,
		rdb:   rdb,
		loc:   loc,
		hour:  hour,
		nowFn: time.Now,
	}
}

// Start blocks until the context is cancelled, running the cycle at each
// day's firing time. Run it in its own goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	for {
		next := s.nextRun(s.nowFn())
		timer := time.NewTimer(time.Until(next))
		logrus.WithField("next_run", next.Format(time.RFC3339)).Info("Billing scheduler armed")
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce takes the day marker and, when this process wins it, runs the
// cycle. Marker errors are ignored in favor of running: a Redis outage must
// not stop billing, and the cycle converges even when run twice.
func (s *Scheduler) RunOnce(ctx context.Context) {
	day := s.nowFn().In(s.loc).Format("2006-01-02")
	ok, err := utils.AcquireDayMarker(ctx, s.rdb, "billing:run:"+day, 23*time.Hour)
	if err != nil {
		logrus.WithField("error", err.Error()).Warn("Billing day marker unavailable, running anyway")
		ok = true
	}
	if !ok {
		logrus.WithField("day", day).Info("Billing cycle already ran today, skipping")
		return
	}
	if err := s.cycle.RunDaily(ctx); err != nil {
		logrus.WithFields(logrus.Fields{
			"day":   day,
			"error": err.Error(),
		}).Error("Billing cycle failed")
		return
	}
	logrus.WithField("day", day).Info("Billing cycle completed")
}

// nextRun returns the next firing instant: today at the configured hour if
// that is still ahead, otherwise tomorrow.
func (s *Scheduler) nextRun(now time.Time) time.Time {
	now = now.In(s.loc)
	run := time.Date(now.Year(), now.Month(), now.Day(), s.hour, 0, 0, 0, s.loc)
	if !run.After(now) {
		run = run.AddDate(0, 0, 1)
	}
	return run
}
