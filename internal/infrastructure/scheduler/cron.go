package scheduler

import (
	"context"
	"sync"
	"time"

	"learningfeed/internal/ports"
)

// DailyScheduler runs the pipeline once at start and then every interval.
// The cron spec string is kept for config compatibility until a real cron
// parser is needed; the batch only cares about once-a-day cadence.
type DailyScheduler struct {
	spec     string
	interval time.Duration

	mu      sync.Mutex
	stop    chan struct{}
	stopped bool
}

var _ ports.Scheduler = (*DailyScheduler)(nil)

// NewDailyScheduler builds a scheduler configured via cron expression string.
func NewDailyScheduler(spec string) *DailyScheduler {
	return &DailyScheduler{spec: spec, interval: 24 * time.Hour}
}

// Start begins ticking and fires the job immediately. Starting twice is a
// no-op.
func (d *DailyScheduler) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stop != nil {
		return nil
	}
	d.stop = make(chan struct{})
	stop := d.stop

	go func() {
		ticker := time.NewTicker(d.interval)
		defer ticker.Stop()
		job(time.Now())
		for {
			select {
			case t := <-ticker.C:
				job(t)
			case <-ctx.Done():
				return
			case <-stop:
				return
			}
		}
	}()

	return nil
}

// Stop halts the ticker goroutine. Safe to call repeatedly and from
// concurrent goroutines; the channel stays closed rather than being reset.
func (d *DailyScheduler) Stop(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stop == nil || d.stopped {
		return nil
	}
	d.stopped = true
	close(d.stop)
	return nil
}
