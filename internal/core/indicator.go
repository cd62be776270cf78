package core

import (
	"sync"
	"time"
)

// Indicator is asserted while at least one holder has acquired it.
// onChange fires on the 0->1 and 1->0 transitions only.
type Indicator struct {
	mu       sync.Mutex
	count    int
	onChange func(active bool)
}

// NewIndicator creates an inactive indicator.
func NewIndicator(onChange func(active bool)) *Indicator {
	return &Indicator{onChange: onChange}
}

// Acquire asserts the indicator.
func (i *Indicator) Acquire() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.count++
	if i.count == 1 && i.onChange != nil {
		i.onChange(true)
	}
}

// Release drops one hold; extra releases are ignored.
func (i *Indicator) Release() {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.count == 0 {
		return
	}
	i.count--
	if i.count == 0 && i.onChange != nil {
		i.onChange(false)
	}
}

// Active reports whether the indicator is asserted.
func (i *Indicator) Active() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.count > 0
}

// TypingTimer tracks the "user is typing" state: each keystroke asserts it and
// re-arms an idle timer that clears it.
type TypingTimer struct {
	mu       sync.Mutex
	idle     time.Duration
	timer    *time.Timer
	gen      uint64
	active   bool
	closed   bool
	onChange func(active bool)
}

// NewTypingTimer creates a timer that clears typing after idle without keystrokes.
func NewTypingTimer(idle time.Duration, onChange func(active bool)) *TypingTimer {
	return &TypingTimer{idle: idle, onChange: onChange}
}

// Touch records a keystroke.
func (t *TypingTimer) Touch() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}

	t.stopTimerLocked()
	gen := t.gen
	t.timer = time.AfterFunc(t.idle, func() { t.expire(gen) })

	if !t.active {
		t.active = true
		t.emitLocked(true)
	}
}

// Stop clears typing immediately and cancels the pending timer.
func (t *TypingTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopTimerLocked()
	if t.active {
		t.active = false
		t.emitLocked(false)
	}
}

// Close stops the timer for good; later Touch calls are ignored.
func (t *TypingTimer) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopTimerLocked()
	if t.active {
		t.active = false
		t.emitLocked(false)
	}
	t.closed = true
}

// Active reports whether typing is currently asserted.
func (t *TypingTimer) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

func (t *TypingTimer) expire(gen uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	// a Touch or Stop happened after this timer was armed
	if t.closed || gen != t.gen {
		return
	}
	t.timer = nil
	if t.active {
		t.active = false
		t.emitLocked(false)
	}
}

func (t *TypingTimer) stopTimerLocked() {
	t.gen++
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

func (t *TypingTimer) emitLocked(active bool) {
	if t.onChange != nil {
		t.onChange(active)
	}
}
