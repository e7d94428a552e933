// Package monitoring samples analysis queue state into metrics.
package monitoring

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/KevinIansyah/lawan-judol-web-sub001/internal/logging"
	"github.com/KevinIansyah/lawan-judol-web-sub001/internal/metrics"
)

const DefaultInterval = 30 * time.Second

// QueueProvider reports queue depths
type QueueProvider interface {
	GetQueueDepth() (int, error)
	GetDLQDepth() (int, error)
}

// Snapshot is the last sampled queue state
type Snapshot struct {
	QueueDepth  int       `json:"queue_depth"`
	DLQDepth    int       `json:"dlq_depth"`
	LastUpdated time.Time `json:"last_updated"`
}

// Monitor periodically samples queue depths
type Monitor struct {
	queue    QueueProvider
	interval time.Duration
	logger   *logging.Logger

	mu       sync.RWMutex
	snapshot Snapshot
}

// NewMonitor creates a new queue monitor
func NewMonitor(queue QueueProvider, interval time.Duration, logger *logging.Logger) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Monitor{
		queue:    queue,
		interval: interval,
		logger:   logger.WithComponent("monitoring"),
	}
}

// Start samples until ctx is done
func (m *Monitor) Start(ctx context.Context) {
	go m.collect(ctx)
}

func (m *Monitor) collect(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		if err := m.Update(); err != nil {
			m.logger.ErrorWithErr("Failed to update queue metrics", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Update samples the queue once
func (m *Monitor) Update() error {
	queueDepth, err := m.queue.GetQueueDepth()
	if err != nil {
		return fmt.Errorf("failed to get queue depth: %w", err)
	}

	dlqDepth, err := m.queue.GetDLQDepth()
	if err != nil {
		return fmt.Errorf("failed to get DLQ depth: %w", err)
	}

	metrics.SetQueueDepth(queueDepth, dlqDepth)
	m.logger.Debugf("Analysis queue depth %d, dead-lettered %d", queueDepth, dlqDepth)

	m.mu.Lock()
	m.snapshot = Snapshot{
		QueueDepth:  queueDepth,
		DLQDepth:    dlqDepth,
		LastUpdated: time.Now(),
	}
	m.mu.Unlock()
	return nil
}

// Snapshot returns the last sampled state
func (m *Monitor) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}
