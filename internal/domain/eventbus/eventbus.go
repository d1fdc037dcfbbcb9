package eventbus

import (
	"sync"
	"time"

	evbus "github.com/asaskevich/EventBus"
)

// Bus routes scan events by topic through EventBus and fans them out to
// per-session watchers. Watch handlers run on the publisher goroutine and
// must not block.
type Bus struct {
	bus   evbus.Bus
	async *AsyncEventBus

	mu       sync.RWMutex
	watchers map[uint64]watcher
	nextID   uint64
}

type watcher struct {
	sessionID string
	fn        func(ScanEvent)
}

// New builds a bus with a single-worker async lane so async subscribers see
// events in publish order.
func New() *Bus {
	b := &Bus{
		bus:      evbus.New(),
		async:    NewAsyncEventBus(1, 1024),
		watchers: make(map[uint64]watcher),
	}
	for _, topic := range Topics {
		_ = b.bus.Subscribe(topic, b.dispatch)
	}
	b.async.Start()
	return b
}

// Publish stamps the event time if unset and delivers it.
func (b *Bus) Publish(ev ScanEvent) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	b.bus.Publish(ev.Topic, ev)
	b.async.PublishAsync(ev.Topic, ev)
}

func (b *Bus) dispatch(ev ScanEvent) {
	b.mu.RLock()
	targets := make([]func(ScanEvent), 0, len(b.watchers))
	for _, w := range b.watchers {
		if w.sessionID == "" || w.sessionID == ev.SessionID {
			targets = append(targets, w.fn)
		}
	}
	b.mu.RUnlock()

	for _, fn := range targets {
		fn(ev)
	}
}

// Watch registers fn for one session, or for all sessions when sessionID is
// empty. The returned func removes the watcher.
func (b *Bus) Watch(sessionID string, fn func(ScanEvent)) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.watchers[id] = watcher{sessionID: sessionID, fn: fn}
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.watchers, id)
			b.mu.Unlock()
		})
	}
}

// SubscribeAsync delivers every topic to fn on the async worker.
func (b *Bus) SubscribeAsync(fn func(ScanEvent)) error {
	for _, topic := range Topics {
		if err := b.async.Subscribe(topic, fn); err != nil {
			return err
		}
	}
	return nil
}

// Watchers reports the number of registered watchers.
func (b *Bus) Watchers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.watchers)
}

// Dropped reports async events discarded because the queue was full.
func (b *Bus) Dropped() int64 {
	return b.async.Dropped()
}

// Close drains and stops the async lane.
func (b *Bus) Close() {
	b.async.Stop()
}

var (
	instance *Bus
	once     sync.Once
)

// Get returns the process-wide bus.
func Get() *Bus {
	once.Do(func() {
		instance = New()
	})
	return instance
}

func Publish(ev ScanEvent) {
	Get().Publish(ev)
}

func Watch(sessionID string, fn func(ScanEvent)) func() {
	return Get().Watch(sessionID, fn)
}
