package timer

import (
	"sync"
	"time"
)

// State is the observable countdown state.
type State struct {
	Remaining int  `json:"remaining"` // whole seconds
	Running   bool `json:"running"`
	Expired   bool `json:"expired"`
	Warning   bool `json:"warning"`
}

// Timer counts down from a duration in seconds. Remaining time is recomputed from
// the elapsed time on every tick instead of being decremented.
type Timer struct {
	mu sync.Mutex

	duration   int
	warning    int
	sched      Scheduler
	resolution time.Duration

	onChange      func(State)
	onExpiry      func()
	onAutoAdvance func()

	state     State
	spent     time.Duration
	startedAt time.Time
	stopTick  Cancel
	fired     bool
}

type Option func(*Timer)

func WithScheduler(s Scheduler) Option {
	return func(t *Timer) { t.sched = s }
}

// WithResolution sets the tick interval (default 100ms).
func WithResolution(d time.Duration) Option {
	return func(t *Timer) {
		if d > 0 {
			t.resolution = d
		}
	}
}

// OnChange is called after a tick that changed the visible state.
func OnChange(f func(State)) Option {
	return func(t *Timer) { t.onChange = f }
}

// OnExpiry is called once when the countdown reaches zero.
func OnExpiry(f func()) Option {
	return func(t *Timer) { t.onExpiry = f }
}

// OnAutoAdvance is called once after OnExpiry, for timers configured to move the
// owner forward when they run out.
func OnAutoAdvance(f func()) Option {
	return func(t *Timer) { t.onAutoAdvance = f }
}

func New(duration, warningThreshold int, opts ...Option) *Timer {
	if duration < 0 {
		duration = 0
	}
	t := &Timer{
		duration:   duration,
		warning:    warningThreshold,
		sched:      RealScheduler{},
		resolution: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.state = State{Remaining: duration}
	return t
}

func (t *Timer) isWarning(remaining int) bool {
	return t.warning > 0 && remaining <= t.warning
}

// Start begins or resumes ticking. Starting a running or expired timer is a no-op.
func (t *Timer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.Running || t.state.Expired {
		return
	}
	t.state.Running = true
	t.startedAt = t.sched.Now()
	t.stopTick = t.sched.Every(t.resolution, t.Tick)
}

// Pause stops ticking and keeps the remaining time.
func (t *Timer) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.state.Running {
		return
	}
	t.spent += t.sched.Now().Sub(t.startedAt)
	t.state.Remaining = t.remainingLocked(t.spent)
	t.state.Warning = t.isWarning(t.state.Remaining)
	t.state.Running = false
	t.cancelTickLocked()
}

// Reset restores the full duration and clears every flag. Warning stays off until
// the next tick.
func (t *Timer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelTickLocked()
	t.spent = 0
	t.fired = false
	t.state = State{Remaining: t.duration}
}

// Stop tears the timer down without touching its state.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelTickLocked()
	t.state.Running = false
}

func (t *Timer) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Tick recomputes the remaining time. It is driven by the scheduler but is safe to
// call at any point; ticks after expiry do nothing.
func (t *Timer) Tick() {
	t.mu.Lock()
	if !t.state.Running {
		t.mu.Unlock()
		return
	}
	prev := t.state
	elapsed := t.spent + t.sched.Now().Sub(t.startedAt)
	t.state.Remaining = t.remainingLocked(elapsed)
	t.state.Warning = t.isWarning(t.state.Remaining)

	expired := false
	if t.state.Remaining == 0 {
		t.state.Running = false
		t.state.Expired = true
		t.cancelTickLocked()
		if !t.fired {
			t.fired = true
			expired = true
		}
	}
	cur := t.state
	onChange, onExpiry, onAutoAdvance := t.onChange, t.onExpiry, t.onAutoAdvance
	t.mu.Unlock()

	if onChange != nil && cur != prev {
		onChange(cur)
	}
	if expired {
		if onExpiry != nil {
			onExpiry()
		}
		if onAutoAdvance != nil {
			onAutoAdvance()
		}
	}
}

func (t *Timer) remainingLocked(elapsed time.Duration) int {
	left := t.duration - int(elapsed/time.Second)
	if left < 0 {
		return 0
	}
	return left
}

func (t *Timer) cancelTickLocked() {
	if t.stopTick != nil {
		t.stopTick()
		t.stopTick = nil
	}
}
