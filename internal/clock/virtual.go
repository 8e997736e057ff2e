package clock

import (
	"sort"
	"sync"
	"time"
)

// VirtualClock only moves when Advance is called. Playback runs,
// simulated sessions and reconnect backoff use it to run without
// waiting on the wall clock.
type VirtualClock struct {
	mu      sync.RWMutex
	current time.Time
	waiters []waiter // ordered by deadline
}

type waiter struct {
	deadline time.Time
	ch       chan time.Time
}

// NewVirtualClock creates a VirtualClock reading start.
func NewVirtualClock(start time.Time) *VirtualClock {
	return &VirtualClock{current: start}
}

func (c *VirtualClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

func (c *VirtualClock) Since(t time.Time) time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current.Sub(t)
}

// After returns a channel that receives the deadline once Advance has
// moved the clock to now+d. A non-positive d fires at once.
func (c *VirtualClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan time.Time, 1)
	if d <= 0 {
		ch <- c.current
		return ch
	}

	w := waiter{deadline: c.current.Add(d), ch: ch}
	i := sort.Search(len(c.waiters), func(i int) bool {
		return c.waiters[i].deadline.After(w.deadline)
	})
	c.waiters = append(c.waiters, waiter{})
	copy(c.waiters[i+1:], c.waiters[i:])
	c.waiters[i] = w
	return ch
}

// Advance moves the clock forward by d and fires, in deadline order,
// every waiter that is now due. Panics if d is negative.
func (c *VirtualClock) Advance(d time.Duration) {
	if d < 0 {
		panic("clock: cannot advance by negative duration")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.current = c.current.Add(d)
	n := 0
	for n < len(c.waiters) && !c.waiters[n].deadline.After(c.current) {
		c.waiters[n].ch <- c.waiters[n].deadline
		n++
	}
	c.waiters = append(c.waiters[:0], c.waiters[n:]...)
}

// Waiters reports how many After channels have not fired yet.
func (c *VirtualClock) Waiters() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.waiters)
}
