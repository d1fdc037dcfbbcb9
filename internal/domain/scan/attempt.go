package scan

import (
	"sync"

	"github.com/google/uuid"
)

// attempt is the single-shot future of one upload. It resolves when the
// scan reaches result or error, or when it is canceled or reset.
type attempt struct {
	id   string
	gen  uint64
	done chan struct{}

	once sync.Once
	snap Snapshot
}

func newAttempt(gen uint64) *attempt {
	return &attempt{
		id:   uuid.NewString(),
		gen:  gen,
		done: make(chan struct{}),
	}
}

// resolve is a no-op on a nil attempt or after the first call.
func (a *attempt) resolve(snap Snapshot) {
	if a == nil {
		return
	}
	a.once.Do(func() {
		a.snap = snap
		close(a.done)
	})
}
