package breakpoint

import (
	"fmt"
	"time"
)

const (
	defaultLockPoll    = 100 * time.Millisecond
	defaultLockTimeout = 180 * time.Second
)

// timedMutex serializes the manager's bulk remote operations. Acquisition
// polls at a bounded interval up to a hard timeout and then fails with
// ErrLockTimeout instead of blocking forever, so a wedged remote session
// can never hang the caller.
type timedMutex struct {
	ch      chan struct{}
	poll    time.Duration
	timeout time.Duration
}

func newTimedMutex(poll, timeout time.Duration) *timedMutex {
	if poll <= 0 {
		poll = defaultLockPoll
	}
	if timeout <= 0 {
		timeout = defaultLockTimeout
	}
	return &timedMutex{
		ch:      make(chan struct{}, 1),
		poll:    poll,
		timeout: timeout,
	}
}

// acquire takes the lock and returns the release action. Callers must
// defer the release so it runs on every exit path.
func (m *timedMutex) acquire(label string) (func(), error) {
	deadline := time.Now().Add(m.timeout)
	for {
		select {
		case m.ch <- struct{}{}:
			return func() { <-m.ch }, nil
		case <-time.After(m.poll):
			if time.Now().After(deadline) {
				return nil, fmt.Errorf("%w: %s not acquired within %v", ErrLockTimeout, label, m.timeout)
			}
		}
	}
}
