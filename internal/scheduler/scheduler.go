// Package scheduler triggers the weekly jobs.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// WeeklySpec fires Monday 08:00 in the scheduler's location.
const WeeklySpec = "0 8 * * 1"

// Job is a runnable unit of scheduled work.
type Job interface {
	Run(ctx context.Context) error
}

// JobFunc adapts a function to Job.
type JobFunc func(ctx context.Context) error

// Run ...
func (f JobFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// Scheduler runs registered jobs on cron schedules. A job still running
// when its next trigger fires is skipped, which gives the at-most-once
// guarantee per trigger.
type Scheduler struct {
	c   *cron.Cron
	log *logrus.Entry

	ctx context.Context
}

// New creates a scheduler in the given time zone.
func New(loc *time.Location, log *logrus.Entry) *Scheduler {
	cl := cronLogger{e: log}

	return &Scheduler{
		c: cron.New(
			cron.WithLocation(loc),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		log: log,
	}
}

// Add registers a job under the given cron spec.
func (s *Scheduler) Add(spec, name string, job Job) error {
	if _, err := s.c.AddFunc(spec, func() {
		if err := job.Run(s.ctx); err != nil {
			s.log.WithError(err).WithField("job", name).Error("scheduled job failed")
			return
		}

		s.log.WithField("job", name).Info("scheduled job finished")
	}); err != nil {
		return fmt.Errorf("failed to add job %s: %w", name, err)
	}

	return nil
}

// Run starts the scheduler and blocks until ctx is cancelled. Running jobs
// are waited for on shutdown.
func (s *Scheduler) Run(ctx context.Context) error {
	s.ctx = ctx

	s.c.Start()
	<-ctx.Done()
	<-s.c.Stop().Done()

	return nil
}

type cronLogger struct {
	e *logrus.Entry
}

func (l cronLogger) Info(msg string, kv ...interface{}) {
	l.e.WithFields(fields(kv)).Debug(msg)
}

func (l cronLogger) Error(err error, msg string, kv ...interface{}) {
	l.e.WithFields(fields(kv)).WithError(err).Error(msg)
}

func fields(kv []interface{}) logrus.Fields {
	f := make(logrus.Fields, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		f[fmt.Sprint(kv[i])] = kv[i+1]
	}

	return f
}
