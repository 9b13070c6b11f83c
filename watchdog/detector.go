// Package watchdog reports tool calls that run for too long
package watchdog

import (
	"log/slog"
	"sync"
	"time"
)

// Detector tracks in-flight calls and warns once about each slow one
type Detector struct {
	mu        sync.Mutex
	calls     map[uint64]*call
	nextID    uint64
	threshold time.Duration
	logger    *slog.Logger
	now       func() time.Time

	done      chan struct{}
	closeOnce sync.Once
}

type call struct {
	name    string
	started time.Time
	warned  bool
}

// New starts a detector that checks every interval for calls older than threshold
func New(interval, threshold time.Duration, logger *slog.Logger) *Detector {
	d := newDetector(threshold, logger)
	go d.monitor(interval)
	return d
}

func newDetector(threshold time.Duration, logger *slog.Logger) *Detector {
	return &Detector{
		calls:     make(map[uint64]*call),
		threshold: threshold,
		logger:    logger,
		now:       time.Now,
		done:      make(chan struct{}),
	}
}

// Track records the start of a call and returns its handle
func (d *Detector) Track(name string) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextID++
	d.calls[d.nextID] = &call{name: name, started: d.now()}
	return d.nextID
}

// Done marks a call as finished
func (d *Detector) Done(id uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.calls, id)
}

// InFlight returns the number of unfinished calls
func (d *Detector) InFlight() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

func (d *Detector) monitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.check()
		case <-d.done:
			return
		}
	}
}

// check warns about calls past the threshold and returns their names
func (d *Detector) check() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	var slow []string
	for id, c := range d.calls {
		age := now.Sub(c.started)
		if age <= d.threshold || c.warned {
			continue
		}
		c.warned = true
		slow = append(slow, c.name)
		d.logger.Warn("tool call still running", "tool", c.name, "handle", id, "age", age.Round(time.Second))
	}
	return slow
}

// Close stops the detector. It is safe to call more than once.
func (d *Detector) Close() error {
	d.closeOnce.Do(func() { close(d.done) })
	return nil
}
