package motion

import (
	"sync"
	"time"
)

// Action is a logical input the control loops react to.
type Action int

const (
	JogNegative Action = iota
	JogPositive
	Stop
	SpeedUp
	SpeedDown
	AccelUp
	AccelDown
	Zero
	GoZero
	Quit
)

var actionNames = map[Action]string{
	JogNegative: "jog-negative",
	JogPositive: "jog-positive",
	Stop:        "stop",
	SpeedUp:     "speed-up",
	SpeedDown:   "speed-down",
	AccelUp:     "accel-up",
	AccelDown:   "accel-down",
	Zero:        "zero",
	GoZero:      "go-zero",
	Quit:        "quit",
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return "unknown"
}

// ParseAction maps a name produced by Action.String back to the action.
func ParseAction(name string) (Action, bool) {
	for a, n := range actionNames {
		if n == name {
			return a, true
		}
	}
	return 0, false
}

// Input answers whether a logical action is currently active.
type Input interface {
	Active(a Action) bool
}

// KeyLatch turns discrete key events into held state: a pressed action stays
// active for the hold window, and terminal key repeat keeps extending it.
// It is safe for concurrent use.
type KeyLatch struct {
	mu    sync.Mutex
	hold  time.Duration
	now   func() time.Time
	until map[Action]time.Time
}

func NewKeyLatch(hold time.Duration) *KeyLatch {
	return &KeyLatch{
		hold:  hold,
		now:   time.Now,
		until: make(map[Action]time.Time),
	}
}

// Press marks a as active for the hold window.
func (l *KeyLatch) Press(a Action) {
	l.mu.Lock()
	l.until[a] = l.now().Add(l.hold)
	l.mu.Unlock()
}

// Release clears a immediately.
func (l *KeyLatch) Release(a Action) {
	l.mu.Lock()
	delete(l.until, a)
	l.mu.Unlock()
}

// Active implements Input.
func (l *KeyLatch) Active(a Action) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	until, ok := l.until[a]
	if !ok {
		return false
	}
	if !l.now().Before(until) {
		delete(l.until, a)
		return false
	}
	return true
}

// edges reports rising edges of momentary actions between polls.
type edges struct {
	prev map[Action]bool
}

func (e *edges) rose(in Input, a Action) bool {
	if e.prev == nil {
		e.prev = make(map[Action]bool)
	}
	on := in != nil && in.Active(a)
	was := e.prev[a]
	e.prev[a] = on
	return on && !was
}
