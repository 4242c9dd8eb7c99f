// Package scheduler runs periodic maintenance jobs on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/your-org/bookstore-backend/internal/pkg/metrics"
)

// JobFunc is one run of a job
type JobFunc func(ctx context.Context) error

// Scheduler wraps a cron runner. Runs of the same job never overlap.
type Scheduler struct {
	cron    *cron.Cron
	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration
}

// New creates a scheduler whose job runs are bounded by timeout
func New(timeout time.Duration) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	logger := cronLogger{entry: logrus.WithField("component", "scheduler")}

	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger)),
		),
		ctx:     ctx,
		cancel:  cancel,
		timeout: timeout,
	}
}

// Register adds a job under a cron spec such as "@every 15m"
func (s *Scheduler) Register(name, spec string, fn JobFunc) error {
	job := cron.NewChain(cron.SkipIfStillRunning(cronLogger{entry: logrus.WithField("job", name)})).
		Then(cron.FuncJob(func() { s.run(name, fn) }))

	if _, err := s.cron.AddJob(spec, job); err != nil {
		return fmt.Errorf("invalid schedule %q for job %s: %w", spec, name, err)
	}
	logrus.WithFields(logrus.Fields{"job": name, "schedule": spec}).Info("Job registered")
	return nil
}

// Start begins running registered jobs in the background
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop cancels running jobs and waits for them to return
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
}

// RunNow executes a job synchronously, as a scheduled run would
func (s *Scheduler) RunNow(name string, fn JobFunc) error {
	return s.run(name, fn)
}

func (s *Scheduler) run(name string, fn JobFunc) error {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	start := time.Now()
	err := fn(ctx)
	duration := time.Since(start)
	metrics.RecordJobRun(name, err, duration)

	entry := logrus.WithFields(logrus.Fields{
		"job":      name,
		"duration": duration.String(),
	})
	if err != nil {
		entry.WithError(err).Error("Job failed")
		return err
	}
	entry.Debug("Job finished")
	return nil
}

// cronLogger adapts logrus to cron.Logger
type cronLogger struct {
	entry *logrus.Entry
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.entry.WithFields(fields(keysAndValues)).Debug(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.entry.WithFields(fields(keysAndValues)).WithError(err).Error(msg)
}

func fields(keysAndValues []interface{}) logrus.Fields {
	f := logrus.Fields{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		f[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return f
}
