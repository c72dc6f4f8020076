// Package cache keeps recently read day records in memory in front of the
// database.
package cache

import (
	"log/slog"
	"sync"
	"time"
)

// Sweeper drops expired entries and reports how many it dropped.
type Sweeper interface {
	Sweep() int
}

// Janitor sweeps caches on an interval until stopped.
type Janitor struct {
	interval time.Duration
	sweepers []Sweeper
	logger   *slog.Logger

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func NewJanitor(interval time.Duration, logger *slog.Logger, sweepers ...Sweeper) *Janitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Janitor{
		interval: interval,
		sweepers: sweepers,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start runs the sweep loop in a goroutine.
func (j *Janitor) Start() {
	go j.run()
}

func (j *Janitor) run() {
	defer close(j.done)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := j.SweepNow(); n > 0 {
				j.logger.Debug("Cache swept", "removed", n)
			}
		case <-j.stop:
			return
		}
	}
}

// SweepNow sweeps every cache once.
func (j *Janitor) SweepNow() int {
	total := 0
	for _, s := range j.sweepers {
		total += s.Sweep()
	}
	return total
}

// Stop ends the loop started by Start and waits for it. Calling it more than
// once is safe.
func (j *Janitor) Stop() {
	j.stopOnce.Do(func() {
		close(j.stop)
		<-j.done
	})
}
