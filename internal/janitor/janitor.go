// Package janitor periodically deletes refresh-token rows older than the
// refresh lifetime. The API never checks a row's age; this is retention only.
package janitor

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
)

type Purger interface {
	PurgeIssuedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Recorder receives one outcome per run. *observability.Prom satisfies it.
type Recorder interface {
	AuthEvent(event, result string)
}

type Config struct {
	// Retention is how long a row may live, normally the refresh TTL.
	Retention time.Duration
	// Schedule is a cron spec or descriptor such as "@every 1h".
	Schedule   string
	MaxRetries int
	RunTimeout time.Duration
}

type Janitor struct {
	cfg     Config
	purger  Purger
	log     *slog.Logger
	metrics Recorder
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error

	cron  *cron.Cron
	ready atomic.Bool
	last  atomic.Int64 // unix seconds of last successful purge
}

func New(cfg Config, purger Purger, log *slog.Logger, metrics Recorder) *Janitor {
	if cfg.Schedule == "" {
		cfg.Schedule = "@every 1h"
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = time.Minute
	}

	return &Janitor{
		cfg:     cfg,
		purger:  purger,
		log:     log,
		metrics: metrics,
		now:     time.Now,
		sleep:   sleepCtx,
		cron:    cron.New(),
	}
}

// RunOnce purges rows issued before now minus the retention window, retrying
// failures with exponential backoff.
func (j *Janitor) RunOnce(ctx context.Context) (int64, error) {
	cutoff := j.now().UTC().Add(-j.cfg.Retention)

	var lastErr error
	for attempt := 0; attempt <= j.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := ExponentialBackoff(attempt - 1)
			j.log.WarnContext(ctx, "purge_retry", "attempt", attempt, "delay_ms", delay.Milliseconds(), "err", lastErr)
			if err := j.sleep(ctx, delay); err != nil {
				return 0, err
			}
		}

		n, err := j.purger.PurgeIssuedBefore(ctx, cutoff)
		if err == nil {
			j.last.Store(j.now().Unix())
			j.log.InfoContext(ctx, "refresh_tokens_purged", "count", n, "cutoff", cutoff)
			j.record("purge", "ok")
			return n, nil
		}
		lastErr = err
	}

	j.log.ErrorContext(ctx, "purge_failed", "err", lastErr)
	j.record("purge", "error")
	return 0, lastErr
}

// Start schedules RunOnce and returns immediately. Runs stop when ctx is
// cancelled or Stop is called.
func (j *Janitor) Start(ctx context.Context) error {
	_, err := j.cron.AddFunc(j.cfg.Schedule, func() {
		runCtx, cancel := context.WithTimeout(ctx, j.cfg.RunTimeout)
		defer cancel()

		_, _ = j.RunOnce(runCtx)
	})
	if err != nil {
		return err
	}

	j.cron.Start()
	j.ready.Store(true)
	return nil
}

// Stop waits for a running purge to finish.
func (j *Janitor) Stop() {
	j.ready.Store(false)
	<-j.cron.Stop().Done()
}

func (j *Janitor) Ready() bool {
	return j.ready.Load()
}

// LastSuccess reports when the last purge completed, or the zero time.
func (j *Janitor) LastSuccess() time.Time {
	if s := j.last.Load(); s > 0 {
		return time.Unix(s, 0).UTC()
	}
	return time.Time{}
}

func (j *Janitor) record(event, result string) {
	if j.metrics != nil {
		j.metrics.AuthEvent(event, result)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
