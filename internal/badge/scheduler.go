package badge

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	appLog "meetbadge/internal/log"
)

// Clock supplies the current instant.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Scheduler runs named repeating tasks. Schedules are cron specs as
// accepted by ParseSchedule ("@every 1s", "*/1 * * * *").
type Scheduler interface {
	Add(name, spec string, fn func()) error
	Start()
	// Stop halts scheduling and waits for running tasks to return.
	Stop()
}

// ParseSchedule parses a standard cron spec or descriptor. Plain Go
// durations ("30s") are accepted as shorthand for "@every 30s".
func ParseSchedule(spec string) (cron.Schedule, error) {
	spec = strings.TrimSpace(spec)
	if d, err := time.ParseDuration(spec); err == nil {
		if d < time.Second {
			return nil, fmt.Errorf("schedule %q: interval below 1s", spec)
		}
		return cron.Every(d), nil
	}
	s, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("schedule %q: %w", spec, err)
	}
	return s, nil
}

// EverySpec renders d as a cron descriptor.
func EverySpec(d time.Duration) string {
	return "@every " + d.String()
}

// CronScheduler is the production Scheduler backed by robfig/cron.
// Each task is wrapped so that a slow run is skipped rather than stacked.
type CronScheduler struct {
	c *cron.Cron
}

// NewCronScheduler builds a scheduler evaluating specs in loc.
func NewCronScheduler(loc *time.Location) *CronScheduler {
	if loc == nil {
		loc = time.Local
	}
	logger := cronLogger{}
	return &CronScheduler{
		c: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger)),
		),
	}
}

func (s *CronScheduler) Add(name, spec string, fn func()) error {
	sched, err := ParseSchedule(spec)
	if err != nil {
		return fmt.Errorf("task %s: %w", name, err)
	}
	job := cron.NewChain(cron.SkipIfStillRunning(cronLogger{task: name})).Then(cron.FuncJob(fn))
	s.c.Schedule(sched, job)
	appLog.Debug("scheduler: task added", "task", name, "spec", spec)
	return nil
}

func (s *CronScheduler) Start() {
	s.c.Start()
}

func (s *CronScheduler) Stop() {
	<-s.c.Stop().Done()
}

// cronLogger adapts cron's logr-style logger to the app logger.
type cronLogger struct {
	task string
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	if l.task != "" {
		keysAndValues = append([]interface{}{"task", l.task}, keysAndValues...)
	}
	appLog.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	if l.task != "" {
		keysAndValues = append([]interface{}{"task", l.task}, keysAndValues...)
	}
	appLog.Error("cron: "+msg, err, keysAndValues...)
}
