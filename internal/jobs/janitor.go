// Package jobs runs periodic maintenance work.
package jobs

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Sweeper is one maintenance task run on every tick.
type Sweeper struct {
	Name string
	Run  func(ctx context.Context) (int, error)
}

// Janitor periodically removes expired state.
type Janitor struct {
	interval time.Duration
	sweepers []Sweeper
	log      *zap.Logger

	mu        sync.Mutex
	isRunning bool
	cancel    context.CancelFunc
	done      chan struct{}
}

func NewJanitor(interval time.Duration, log *zap.Logger, sweepers ...Sweeper) *Janitor {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Janitor{interval: interval, sweepers: sweepers, log: log.Named("janitor")}
}

// Start launches the ticker loop. Calling Start twice is a no-op.
func (j *Janitor) Start(ctx context.Context) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.isRunning {
		j.log.Warn("janitor already running")
		return
	}
	ctx, j.cancel = context.WithCancel(ctx)
	j.done = make(chan struct{})
	j.isRunning = true

	go j.loop(ctx, j.done)
	j.log.Info("janitor started", zap.Duration("interval", j.interval), zap.Int("sweepers", len(j.sweepers)))
}

// Stop halts the loop and waits for an in-flight sweep to finish.
func (j *Janitor) Stop() {
	j.mu.Lock()
	if !j.isRunning {
		j.mu.Unlock()
		return
	}
	j.isRunning = false
	j.cancel()
	done := j.done
	j.mu.Unlock()

	<-done
	j.log.Info("janitor stopped")
}

func (j *Janitor) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.RunOnce(ctx)
		}
	}
}

// RunOnce runs every sweeper once and returns the number of removed items
// per sweeper. A failing sweeper does not stop the others.
func (j *Janitor) RunOnce(ctx context.Context) map[string]int {
	removed := make(map[string]int, len(j.sweepers))
	for _, s := range j.sweepers {
		n, err := s.Run(ctx)
		if err != nil {
			j.log.Error("sweep failed", zap.String("sweeper", s.Name), zap.Error(err))
			continue
		}
		removed[s.Name] = n
		if n > 0 {
			j.log.Info("swept expired entries", zap.String("sweeper", s.Name), zap.Int("removed", n))
		}
	}
	return removed
}
