package conversation

import "sync"

// Throttle decides whether a join announcement should carry the extended
// onboarding text. The counter starts above the threshold so the very first
// join after startup always gets the long form; ordinary chat traffic pushes
// it back up, deletions of bot-removed messages pull it down.
type Throttle struct {
	mu        sync.Mutex
	threshold int
	counter   int
}

func NewThrottle(threshold int) *Throttle {
	return &Throttle{threshold: threshold, counter: threshold + 1}
}

// OnMessage counts one ordinary chat message.
func (t *Throttle) OnMessage() {
	t.mu.Lock()
	t.counter++
	t.mu.Unlock()
}

// OnDeletion compensates for a message the bot removed (floor zero).
func (t *Throttle) OnDeletion() {
	t.mu.Lock()
	if t.counter > 0 {
		t.counter--
	}
	t.mu.Unlock()
}

// ShouldExtend reports whether the next join announcement gets the extended
// text, resetting the counter when it does.
func (t *Throttle) ShouldExtend() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.counter > t.threshold {
		t.counter = 0
		return true
	}
	return false
}
