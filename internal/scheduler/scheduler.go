// Package scheduler runs periodic maintenance for the quota ledger.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/KevinIansyah/lawan-judol-web-sub001/internal/logging"
)

// DefaultInterval is used when no cleanup interval is configured
const DefaultInterval = 24 * time.Hour

// Purger deletes quota usage older than a number of days
type Purger interface {
	PurgeOlderThan(ctx context.Context, days int) (int64, error)
}

// RetentionJob purges old quota usage rows once per interval
type RetentionJob struct {
	purger        Purger
	retentionDays int
	interval      time.Duration
	logger        *logging.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	lastRun time.Time
}

// NewRetentionJob creates a retention job
func NewRetentionJob(purger Purger, retentionDays int, interval time.Duration, logger *logging.Logger) *RetentionJob {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &RetentionJob{
		purger:        purger,
		retentionDays: retentionDays,
		interval:      interval,
		logger:        logger.WithComponent("retention"),
	}
}

// Start runs one purge immediately and then one per interval until Stop or
// until ctx is done. Starting a running job does nothing.
func (j *RetentionJob) Start(ctx context.Context) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.cancel != nil {
		return
	}

	ctx, j.cancel = context.WithCancel(ctx)
	j.done = make(chan struct{})
	go j.loop(ctx, j.done)

	j.logger.Infof("Retention job started, keeping %d days of quota usage", j.retentionDays)
}

// Stop stops the job and waits for a running purge to return
func (j *RetentionJob) Stop() {
	j.mu.Lock()
	cancel, done := j.cancel, j.done
	j.cancel, j.done = nil, nil
	j.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	j.logger.Info("Retention job stopped")
}

func (j *RetentionJob) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.RunOnce(ctx)
		}
	}
}

// RunOnce purges once and returns the number of deleted rows
func (j *RetentionJob) RunOnce(ctx context.Context) int64 {
	deleted, err := j.purger.PurgeOlderThan(ctx, j.retentionDays)
	if err != nil {
		j.logger.ErrorWithErr("Quota retention cleanup failed", err)
		return 0
	}

	j.mu.Lock()
	j.lastRun = time.Now()
	j.mu.Unlock()
	return deleted
}

// LastRun returns when the last successful purge finished
func (j *RetentionJob) LastRun() time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.lastRun
}
