package eventbus

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_WatchFiltersBySession(t *testing.T) {
	bus := New()
	defer bus.Close()

	var mu sync.Mutex
	var mine, all []ScanEvent
	stopMine := bus.Watch("s1", func(ev ScanEvent) {
		mu.Lock()
		mine = append(mine, ev)
		mu.Unlock()
	})
	stopAll := bus.Watch("", func(ev ScanEvent) {
		mu.Lock()
		all = append(all, ev)
		mu.Unlock()
	})
	assert.Equal(t, 2, bus.Watchers())

	bus.Publish(ScanEvent{Topic: EventScanStarted, SessionID: "s1"})
	bus.Publish(ScanEvent{Topic: EventScanProgress, SessionID: "s2", Data: ProgressData{Progress: 10}})
	bus.Publish(ScanEvent{Topic: EventScanCompleted, SessionID: "s1"})

	mu.Lock()
	require.Len(t, mine, 2)
	assert.Equal(t, EventScanStarted, mine[0].Topic)
	assert.Equal(t, EventScanCompleted, mine[1].Topic)
	assert.False(t, mine[0].At.IsZero())
	assert.Len(t, all, 3)
	mu.Unlock()

	stopMine()
	stopMine()
	stopAll()
	assert.Zero(t, bus.Watchers())

	bus.Publish(ScanEvent{Topic: EventScanReset, SessionID: "s1"})
	mu.Lock()
	assert.Len(t, mine, 2)
	mu.Unlock()
}

func TestBus_IndependentWatchersFromSameLiteral(t *testing.T) {
	bus := New()
	defer bus.Close()

	counts := make([]int, 2)
	var stops []func()
	for i := range counts {
		i := i
		stops = append(stops, bus.Watch("s", func(ScanEvent) { counts[i]++ }))
	}

	stops[1]()
	bus.Publish(ScanEvent{Topic: EventScanStarted, SessionID: "s"})
	assert.Equal(t, []int{1, 0}, counts)
	stops[0]()
}

func TestBus_SubscribeAsyncKeepsOrder(t *testing.T) {
	bus := New()

	var mu sync.Mutex
	var got []string
	done := make(chan struct{})
	require.NoError(t, bus.SubscribeAsync(func(ev ScanEvent) {
		mu.Lock()
		got = append(got, ev.Topic)
		n := len(got)
		mu.Unlock()
		if n == 3 {
			close(done)
		}
	}))

	bus.Publish(ScanEvent{Topic: EventScanStarted, SessionID: "s"})
	bus.Publish(ScanEvent{Topic: EventScanProgress, SessionID: "s"})
	bus.Publish(ScanEvent{Topic: EventScanFailed, SessionID: "s"})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("async subscriber not called")
	}
	bus.Close()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{EventScanStarted, EventScanProgress, EventScanFailed}, got)
	assert.Zero(t, bus.Dropped())
}

func TestAsyncEventBus_DropsWhenFull(t *testing.T) {
	aeb := NewAsyncEventBus(1, 1)
	block := make(chan struct{})
	require.NoError(t, aeb.Subscribe("t", func(int) { <-block }))

	// not started: the queue holds one event, the rest are dropped
	aeb.PublishAsync("t", 1)
	aeb.PublishAsync("t", 2)
	aeb.PublishAsync("t", 3)
	assert.EqualValues(t, 2, aeb.Dropped())

	aeb.PublishAsync("no-subscribers", 1)
	assert.EqualValues(t, 2, aeb.Dropped())

	close(block)
	aeb.Start()
	aeb.Stop()
}

func TestGet_Singleton(t *testing.T) {
	assert.Same(t, Get(), Get())
	stop := Watch("x", func(ScanEvent) {})
	stop()
}
