package eventbus

import (
	"log/slog"
	"sync"
	"sync/atomic"

	evbus "github.com/asaskevich/EventBus"
)

// AsyncEventBus publishes on a bounded queue drained by worker goroutines.
// With one worker, delivery order matches publish order.
type AsyncEventBus struct {
	bus       evbus.Bus
	workerNum int
	workChan  chan asyncEvent
	stopChan  chan struct{}
	wg        sync.WaitGroup
	stopOnce  sync.Once
	dropped   atomic.Int64
}

type asyncEvent struct {
	topic string
	args  []any
}

func NewAsyncEventBus(workerNum, queueSize int) *AsyncEventBus {
	if workerNum <= 0 {
		workerNum = 1
	}
	if queueSize <= 0 {
		queueSize = 1000
	}
	return &AsyncEventBus{
		bus:       evbus.New(),
		workerNum: workerNum,
		workChan:  make(chan asyncEvent, queueSize),
		stopChan:  make(chan struct{}),
	}
}

func (aeb *AsyncEventBus) Start() {
	for i := 0; i < aeb.workerNum; i++ {
		aeb.wg.Add(1)
		go aeb.worker()
	}
}

// Stop delivers what is already queued and waits for the workers.
func (aeb *AsyncEventBus) Stop() {
	aeb.stopOnce.Do(func() {
		close(aeb.stopChan)
		aeb.wg.Wait()
	})
}

func (aeb *AsyncEventBus) worker() {
	defer aeb.wg.Done()

	for {
		select {
		case <-aeb.stopChan:
			for {
				select {
				case ev := <-aeb.workChan:
					aeb.deliver(ev)
				default:
					return
				}
			}
		case ev := <-aeb.workChan:
			aeb.deliver(ev)
		}
	}
}

func (aeb *AsyncEventBus) deliver(ev asyncEvent) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("[SCAN] async event handler panicked", slog.String("topic", ev.topic), slog.Any("panic", r))
		}
	}()
	aeb.bus.Publish(ev.topic, ev.args...)
}

// PublishAsync enqueues the event. It never blocks; when the queue is full
// the event is dropped and counted.
func (aeb *AsyncEventBus) PublishAsync(topic string, args ...any) {
	if !aeb.bus.HasCallback(topic) {
		return
	}
	select {
	case aeb.workChan <- asyncEvent{topic: topic, args: args}:
	default:
		aeb.dropped.Add(1)
	}
}

func (aeb *AsyncEventBus) Subscribe(topic string, fn any) error {
	return aeb.bus.Subscribe(topic, fn)
}

func (aeb *AsyncEventBus) Unsubscribe(topic string, fn any) error {
	return aeb.bus.Unsubscribe(topic, fn)
}

func (aeb *AsyncEventBus) HasCallback(topic string) bool {
	return aeb.bus.HasCallback(topic)
}

func (aeb *AsyncEventBus) Dropped() int64 {
	return aeb.dropped.Load()
}
