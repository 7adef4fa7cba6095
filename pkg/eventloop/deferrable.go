package eventloop

import (
	"sync"
	"time"
)

// deferrable runs action after a delay, coalescing overlapping requests:
// a new deadline only ever shortens the pending fire time, never extends
// it (spec.md §4.8 "a deferrable coalesces overlapping requests: new
// deadlines only shorten the current one"). Grounded on the original's
// deferrable.cc, reimplemented as a timer instead of a condition variable
// plus worker thread, the idiomatic Go equivalent of §5's "deferrables
// suspend on a timed condition variable".
//
// A non-zero period rearms the deferrable after every fire; zero means
// on-demand only (spec.md §4.8 "zero-period means on-demand only").
type deferrable struct {
	mu       sync.Mutex
	timer    *time.Timer
	deadline time.Time
	period   time.Duration
	action   func()
}

func newDeferrable(action func()) *deferrable {
	return &deferrable{action: action}
}

// Schedule arms (or reschedules) the deferrable to fire after delay unless
// it is already armed for an earlier deadline.
func (d *deferrable) Schedule(delay time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	deadline := time.Now().Add(delay)

	if d.timer != nil {
		if !deadline.Before(d.deadline) {
			return
		}
		d.timer.Stop()
	}
	d.deadline = deadline
	d.timer = time.AfterFunc(delay, d.fire)
}

// SetPeriodic sets the rearm interval after every fire (0 disables it).
func (d *deferrable) SetPeriodic(period time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.period = period
}

func (d *deferrable) fire() {
	d.mu.Lock()
	period := d.period
	d.timer = nil
	d.mu.Unlock()

	d.action()

	if period > 0 {
		d.Schedule(period)
	}
}

// Stop cancels any pending fire and disables periodic rearming.
func (d *deferrable) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.period = 0
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
