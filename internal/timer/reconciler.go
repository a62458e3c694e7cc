package timer

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultInterval is the reconcile cadence while a session is active.
	DefaultInterval = time.Second

	// writeDeltaSeconds is the minimum drift between the last persisted
	// value and the current one before a checkpoint is written.
	writeDeltaSeconds = 5

	// finalStretchSeconds is the window in which every tick persists, so an
	// unexpected reload near the end loses as little time as possible.
	finalStretchSeconds = 15
)

// Config configures a Reconciler.
type Config struct {
	// Interval between reconcile ticks. Defaults to DefaultInterval.
	Interval time.Duration
	// Now is the wall-clock source. Defaults to time.Now.
	Now func() time.Time
	// OnPersist receives throttled remaining-time checkpoints.
	OnPersist func(remaining int)
	// OnExpire fires exactly once when the countdown reaches zero.
	OnExpire func()

	Logger zerolog.Logger
}

// Reconciler recomputes remaining exam time from elapsed wall-clock time on a
// fixed cadence. Deriving the countdown from the clock instead of a
// decrementing counter makes it immune to ticker drift and to the process
// being suspended: remaining time always reflects real elapsed time.
//
// Persistence is throttled: a checkpoint is written when the value has moved
// writeDeltaSeconds from the last one, or on every tick inside the final
// stretch. At zero the cadence stops, a final zero is persisted, and OnExpire
// fires exactly once.
type Reconciler struct {
	interval  time.Duration
	now       func() time.Time
	onPersist func(int)
	onExpire  func()
	log       zerolog.Logger

	mu           sync.Mutex
	startedAt    time.Time // captured at Start, never persisted
	initial      int       // secondsRemaining read at activation
	lastReported int
	stopped      bool
	expired      bool

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// New creates a Reconciler. Start must be called to begin the cadence.
func New(cfg Config) *Reconciler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Reconciler{
		interval:  cfg.Interval,
		now:       cfg.Now,
		onPersist: cfg.OnPersist,
		onExpire:  cfg.OnExpire,
		log:       cfg.Logger.With().Str("component", "timer_reconciler").Logger(),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start captures the activation wall-clock instant and begins ticking.
// initialRemaining is the session's secondsRemaining at activation time; it is
// the fixed baseline every later tick subtracts elapsed time from.
func (r *Reconciler) Start(initialRemaining int) {
	r.mu.Lock()
	r.startedAt = r.now()
	r.initial = initialRemaining
	r.lastReported = initialRemaining
	r.mu.Unlock()

	go r.run()
}

// Stop cancels the cadence and blocks until the loop has exited. If the
// countdown has not expired, one final checkpoint of the current remaining
// value is written so a reload resumes from the freshest point rather than
// the last throttled one. Stop is idempotent; ticks after Stop are no-ops.
func (r *Reconciler) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
	<-r.done
}

func (r *Reconciler) run() {
	defer close(r.done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			r.flush()
			return
		case <-ticker.C:
			if !r.tick() {
				return
			}
		}
	}
}

// tick performs one reconcile step. Returns false once the cadence must end.
func (r *Reconciler) tick() bool {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return false
	}

	remaining := r.remainingLocked()
	if remaining == 0 {
		r.stopped = true
		r.expired = true
		r.lastReported = 0
		r.mu.Unlock()

		r.onPersist(0)
		r.log.Info().Msg("Countdown expired, auto-submitting")
		r.onExpire()
		return false
	}

	shouldPersist := abs(r.lastReported-remaining) >= writeDeltaSeconds || remaining < finalStretchSeconds
	if shouldPersist {
		r.lastReported = remaining
	}
	r.mu.Unlock()

	if shouldPersist {
		r.onPersist(remaining)
	}
	return true
}

// flush writes the freshest remaining value on teardown for any reason other
// than expiry.
func (r *Reconciler) flush() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	remaining := r.remainingLocked()
	r.mu.Unlock()

	if remaining > 0 {
		r.onPersist(remaining)
	}
}

// remainingLocked recomputes remaining seconds from elapsed wall-clock time.
// Callers hold r.mu.
func (r *Reconciler) remainingLocked() int {
	elapsed := int(r.now().Sub(r.startedAt) / time.Second)
	remaining := r.initial - elapsed
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
