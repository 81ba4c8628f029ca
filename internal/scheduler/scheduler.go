// Package scheduler runs the market snapshot job at fixed times of day.
package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"orgfolio/internal/config"
	"orgfolio/internal/logger"
	"orgfolio/internal/services"
)

// stopTimeout bounds how long Stop waits for an in-flight run.
const stopTimeout = 5 * time.Second

// NotScheduled is reported as the next run when no time is configured.
const NotScheduled = "not scheduled"

// Status describes the scheduler for monitoring endpoints.
type Status struct {
	Running     bool       `json:"running"`
	NextRun     string     `json:"next_run"`
	NextRunAt   *time.Time `json:"next_run_at,omitempty"`
	JobsCount   int        `json:"jobs_count"`
	CurrentTime string     `json:"current_time"`
}

// Scheduler fires the snapshot job at each configured time of day. It starts
// stopped; Start and Stop may be called repeatedly.
type Scheduler struct {
	job       services.SnapshotServicer
	times     []string
	schedules []cron.Schedule
	loc       *time.Location
	timeout   time.Duration
	log       *zap.SugaredLogger
	now       func() time.Time

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

// New creates a scheduler for the configured snapshot times ("HH:MM").
func New(job services.SnapshotServicer, cfg config.MarketConfig) (*Scheduler, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	s := &Scheduler{
		job:     job,
		loc:     loc,
		timeout: cfg.SnapshotTimeout,
		log:     logger.Named("scheduler"),
		now:     time.Now,
	}
	if s.timeout <= 0 {
		s.timeout = 2 * time.Minute
	}

	for _, t := range cfg.ScheduleTimes {
		spec, err := dailySpec(t)
		if err != nil {
			return nil, err
		}
		sched, err := cron.ParseStandard(spec)
		if err != nil {
			return nil, fmt.Errorf("invalid schedule %q: %w", t, err)
		}
		s.times = append(s.times, t)
		s.schedules = append(s.schedules, sched)
	}

	s.log.Infow("scheduler configured", "times", s.times, "timezone", loc.String())
	return s, nil
}

// dailySpec turns "HH:MM" into a standard cron spec.
func dailySpec(hhmm string) (string, error) {
	parts := strings.Split(strings.TrimSpace(hhmm), ":")
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid schedule time %q, want HH:MM", hhmm)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return "", fmt.Errorf("invalid hour in schedule time %q", hhmm)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return "", fmt.Errorf("invalid minute in schedule time %q", hhmm)
	}
	return fmt.Sprintf("%d %d * * *", minute, hour), nil
}

// Start begins firing the job. Calling Start on a running scheduler is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		s.log.Warn("scheduler already running")
		return
	}

	cronLog := cronLogger{log: s.log}
	c := cron.New(
		cron.WithLocation(s.loc),
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)
	for _, sched := range s.schedules {
		c.Schedule(sched, cron.FuncJob(s.runScheduled))
	}
	c.Start()

	s.cron = c
	s.running = true
	s.log.Infow("scheduler started", "jobs", len(s.schedules))
}

// Stop halts the schedule and waits briefly for a run in progress.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c := s.cron
	wasRunning := s.running
	s.cron = nil
	s.running = false
	s.mu.Unlock()

	if !wasRunning || c == nil {
		return
	}

	select {
	case <-c.Stop().Done():
		s.log.Info("scheduler stopped")
	case <-time.After(stopTimeout):
		s.log.Warnw("scheduler stopped before the running snapshot finished", "waited", stopTimeout)
	}
}

// Running reports whether the schedule is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// RunNow runs the snapshot job synchronously, independent of the schedule.
func (s *Scheduler) RunNow(ctx context.Context) (*services.SnapshotResult, error) {
	s.log.Info("running manual snapshot")
	result, err := s.job.RunSnapshot(ctx)
	if err != nil {
		s.log.Warnw("manual snapshot failed", "error", err)
		return result, err
	}
	s.log.Infow("manual snapshot finished", "saved", result.Saved, "failed", result.Failed)
	return result, nil
}

// ManualSnapshot runs the job once and reports whether any price was saved.
func (s *Scheduler) ManualSnapshot(ctx context.Context) bool {
	result, err := s.RunNow(ctx)
	return err == nil && result.Success()
}

// Status returns the running flag, the next fire time and the current time.
// The next fire time is reported whether or not the scheduler is running;
// NextRun is NotScheduled only when no times are configured.
func (s *Scheduler) Status() Status {
	now := s.now().In(s.loc)
	status := Status{
		Running:     s.Running(),
		NextRun:     NotScheduled,
		JobsCount:   len(s.schedules),
		CurrentTime: now.Format("2006-01-02 15:04:05"),
	}
	if next, ok := s.nextRun(now); ok {
		status.NextRun = next.Format("15:04:05")
		status.NextRunAt = &next
	}
	return status
}

func (s *Scheduler) nextRun(now time.Time) (time.Time, bool) {
	var next time.Time
	for _, sched := range s.schedules {
		t := sched.Next(now)
		if next.IsZero() || t.Before(next) {
			next = t
		}
	}
	return next, !next.IsZero()
}

// runScheduled is the cron entry point.
func (s *Scheduler) runScheduled() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	s.log.Infow("starting scheduled snapshot", "at", s.now().Format(time.RFC3339))
	result, err := s.job.RunSnapshot(ctx)
	if err != nil {
		s.log.Warnw("scheduled snapshot failed", "error", err)
		return
	}
	s.log.Infow("scheduled snapshot finished",
		"saved", result.Saved,
		"failed", result.Failed,
		"took_ms", result.TookMS,
	)
}

// cronLogger routes cron's own logging through zap.
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
