// Package progress runs the scripted scan animation: a cancelable sequence
// of timed phases that ends in a single completion signal.
package progress

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrCanceled is reported by Run.Err after Cancel or parent context cancellation.
var ErrCanceled = errors.New("progress: run canceled")

const (
	DefaultTick = 50 * time.Millisecond
	DefaultStep = 2.0
	DefaultTail = 500 * time.Millisecond
)

// Options tunes the script. Zero values take the defaults.
type Options struct {
	Phases []Phase
	Tick   time.Duration
	Step   float64
	Tail   time.Duration
}

// Update is emitted on every phase start and every tick.
type Update struct {
	Phase    int     `json:"phase"`
	PhaseKey string  `json:"phaseKey"`
	Progress float64 `json:"progress"`
}

// Percent rounds Progress for display.
func (u Update) Percent() int {
	return int(u.Progress + 0.5)
}

type Simulator struct {
	opts Options
}

func New(opts Options) *Simulator {
	if len(opts.Phases) == 0 {
		opts.Phases = DefaultPhases()
	}
	if opts.Tick <= 0 {
		opts.Tick = DefaultTick
	}
	if opts.Step <= 0 {
		opts.Step = DefaultStep
	}
	if opts.Tail <= 0 {
		opts.Tail = DefaultTail
	}
	return &Simulator{opts: opts}
}

func (s *Simulator) Phases() []Phase {
	return s.opts.Phases
}

// Total is the nominal time from Start to completion.
func (s *Simulator) Total() time.Duration {
	var offset, end time.Duration
	n := len(s.opts.Phases)
	for i, p := range s.opts.Phases {
		span := float64(i+1)/float64(n)*100 - float64(i)/float64(n)*100
		ticks := int(span / s.opts.Step)
		if float64(ticks)*s.opts.Step < span {
			ticks++
		}
		end = max(offset, end) + time.Duration(ticks)*s.opts.Tick
		offset += p.Duration
	}
	return end + s.opts.Tail
}

type runState int

const (
	stateRunning runState = iota
	stateCompleted
	stateCanceled
)

// Run is one execution of the script.
type Run struct {
	opts     Options
	onUpdate func(Update)
	cancel   context.CancelFunc

	mu        sync.Mutex
	state     runState
	progress  float64
	phase     int
	completed chan struct{}
	done      chan struct{}
}

// Start begins the script in its own goroutine. onUpdate may be nil and is
// called from that goroutine.
func (s *Simulator) Start(ctx context.Context, onUpdate func(Update)) *Run {
	ctx, cancel := context.WithCancel(ctx)
	r := &Run{
		opts:      s.opts,
		onUpdate:  onUpdate,
		cancel:    cancel,
		completed: make(chan struct{}),
		done:      make(chan struct{}),
	}
	go r.loop(ctx)
	return r
}

// Completed is closed exactly once when the script finishes. It is never
// closed for a canceled run.
func (r *Run) Completed() <-chan struct{} { return r.completed }

// Done is closed when the run goroutine has exited for any reason.
func (r *Run) Done() <-chan struct{} { return r.done }

// Err is nil while running or after completion, ErrCanceled after cancellation.
func (r *Run) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == stateCanceled {
		return ErrCanceled
	}
	return nil
}

func (r *Run) Progress() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.progress
}

func (r *Run) Phase() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

// Cancel stops all pending timers and resets progress to zero. Once Cancel
// returns, Completed will not be closed. It is a no-op after completion.
func (r *Run) Cancel() {
	r.markCanceled()
	r.cancel()
}

// Wait blocks until completion, cancellation or ctx expiry.
func (r *Run) Wait(ctx context.Context) error {
	select {
	case <-r.completed:
		return nil
	case <-r.done:
		if err := r.Err(); err != nil {
			return err
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Run) markCanceled() {
	r.mu.Lock()
	if r.state == stateRunning {
		r.state = stateCanceled
		r.progress = 0
		r.phase = 0
	}
	r.mu.Unlock()
}

func (r *Run) loop(ctx context.Context) {
	defer close(r.done)
	defer r.cancel()

	start := time.Now()
	n := float64(len(r.opts.Phases))
	var offset time.Duration

	for i, p := range r.opts.Phases {
		if !sleep(ctx, time.Until(start.Add(offset))) {
			r.markCanceled()
			return
		}

		current := float64(i) / n * 100
		target := float64(i+1) / n * 100
		if !r.set(i, p.Key, current) {
			return
		}

		if !r.tickTo(ctx, i, p.Key, current, target) {
			r.markCanceled()
			return
		}
		offset += p.Duration
	}

	if !sleep(ctx, r.opts.Tail) {
		r.markCanceled()
		return
	}

	r.mu.Lock()
	if r.state == stateRunning {
		r.state = stateCompleted
		close(r.completed)
	}
	r.mu.Unlock()
}

func (r *Run) tickTo(ctx context.Context, phase int, key string, current, target float64) bool {
	ticker := time.NewTicker(r.opts.Tick)
	defer ticker.Stop()

	for current < target {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
		current += r.opts.Step
		if current >= target {
			current = target
		}
		if !r.set(phase, key, current) {
			return false
		}
	}
	return true
}

// set records progress and notifies the listener. It reports false once the
// run has left the running state.
func (r *Run) set(phase int, key string, value float64) bool {
	r.mu.Lock()
	if r.state != stateRunning {
		r.mu.Unlock()
		return false
	}
	r.phase = phase
	r.progress = value
	r.mu.Unlock()

	if r.onUpdate != nil {
		r.onUpdate(Update{Phase: phase, PhaseKey: key, Progress: value})
	}
	return true
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		select {
		case <-ctx.Done():
			return false
		default:
			return true
		}
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
