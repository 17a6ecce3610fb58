package motion

import (
	"context"
	"errors"
	"testing"
	"time"
)

func testWaiter(clock Clock) *Waiter {
	return &Waiter{
		Tolerance:       50,
		Timeout:         time.Second,
		KeepalivePeriod: 50 * time.Millisecond,
		Slice:           20 * time.Millisecond,
		Clock:           clock,
	}
}

func TestWaitUntilArrives(t *testing.T) {
	clock := newFakeClock()
	dev := newSim(clock)
	dev.step = 100
	dev.target = 1000

	var seen []int
	w := testWaiter(clock)
	w.Observe = func(pos int) { seen = append(seen, pos) }

	if err := w.WaitUntil(context.Background(), dev, 1000); err != nil {
		t.Fatalf("WaitUntil: %v", err)
	}
	if dev.pos < 950 {
		t.Errorf("position %d not within tolerance of 1000", dev.pos)
	}
	if len(seen) != 10 {
		t.Errorf("observed %d samples, want 10", len(seen))
	}
	if len(dev.refreshes) == 0 {
		t.Error("watchdog never refreshed")
	}
}

func TestWaitUntilWithinToleranceImmediately(t *testing.T) {
	clock := newFakeClock()
	dev := newSim(clock)
	dev.position = func() int { return 1040 }

	if err := testWaiter(clock).WaitUntil(context.Background(), dev, 1000); err != nil {
		t.Fatalf("WaitUntil: %v", err)
	}
	if clock.sleeps != 0 {
		t.Errorf("slept %d times, want 0", clock.sleeps)
	}
}

func TestWaitUntilTimeout(t *testing.T) {
	clock := newFakeClock()
	start := clock.Now()
	dev := newSim(clock)
	dev.position = func() int { return 300 }

	err := testWaiter(clock).WaitUntil(context.Background(), dev, 0)
	if !errors.Is(err, ErrTimedOut) {
		t.Fatalf("err = %v, want ErrTimedOut", err)
	}
	var te *TimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("err %T is not a *TimeoutError", err)
	}
	if te.Last != 300 || te.Target != 0 {
		t.Errorf("TimeoutError = %+v, want Last 300 Target 0", te)
	}
	if got := clock.Now().Sub(start); got != time.Second {
		t.Errorf("timed out after %s, want exactly 1s", got)
	}
}

func TestWaitUntilNeverTimesOutEarly(t *testing.T) {
	clock := newFakeClock()
	deadline := clock.Now().Add(time.Second)
	dev := newSim(clock)
	// The target is only reached on the sample taken at the deadline.
	dev.position = func() int {
		if clock.Now().Before(deadline) {
			return 5000
		}
		return 0
	}

	if err := testWaiter(clock).WaitUntil(context.Background(), dev, 0); err != nil {
		t.Fatalf("WaitUntil: %v", err)
	}
}

func TestWaitUntilKeepaliveCadence(t *testing.T) {
	tests := []struct {
		name   string
		period time.Duration
		slice  time.Duration
	}{
		{"default", 50 * time.Millisecond, 20 * time.Millisecond},
		{"slice not dividing period", 50 * time.Millisecond, 30 * time.Millisecond},
		{"short period", 15 * time.Millisecond, 10 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := newFakeClock()
			dev := newSim(clock)
			dev.position = func() int { return 9999 }

			w := testWaiter(clock)
			w.KeepalivePeriod = tt.period
			w.Slice = tt.slice
			_ = w.WaitUntil(context.Background(), dev, 0)

			if len(dev.refreshes) < int(time.Second/tt.period) {
				t.Errorf("%d refreshes in 1s, want at least %d", len(dev.refreshes), time.Second/tt.period)
			}
			if gap := dev.maxGap(); gap > tt.period {
				t.Errorf("max refresh gap %s exceeds period %s", gap, tt.period)
			}
		})
	}
}

func TestWaitUntilCancelled(t *testing.T) {
	dev := newSim(SystemClock)
	dev.position = func() int { return 9999 }

	w := testWaiter(SystemClock)
	w.Timeout = 10 * time.Second

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(30*time.Millisecond, cancel)

	start := time.Now()
	err := w.WaitUntil(ctx, dev, 0)
	elapsed := time.Since(start)

	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("err = %v, want ErrCancelled", err)
	}
	if errors.Is(err, ErrTimedOut) {
		t.Error("cancellation reported as timeout")
	}
	if elapsed > 500*time.Millisecond {
		t.Errorf("returned after %s, want within one slice of the cancel", elapsed)
	}
}

func TestWaitUntilPauseSuspendsDeadline(t *testing.T) {
	clock := newFakeClock()
	start := clock.Now()
	dev := newSim(clock)
	dev.position = func() int { return 9999 }

	pause := &PauseSwitch{}
	pause.Set(true)
	clock.onSleep = func(n int) {
		if n == 10 {
			pause.Set(false)
		}
	}

	w := testWaiter(clock)
	w.Timeout = 100 * time.Millisecond
	w.Pause = pause

	err := w.WaitUntil(context.Background(), dev, 0)
	if !errors.Is(err, ErrTimedOut) {
		t.Fatalf("err = %v, want ErrTimedOut", err)
	}
	// Paused for 170ms, then 100ms of deadline.
	if got := clock.Now().Sub(start); got != 270*time.Millisecond {
		t.Errorf("timed out after %s, want 270ms", got)
	}
	if dev.calls["HaltAndHold"] != 1 {
		t.Errorf("HaltAndHold called %d times, want 1", dev.calls["HaltAndHold"])
	}
	if len(dev.targets) != 1 || dev.targets[0] != 0 {
		t.Errorf("targets after resume = %v, want [0]", dev.targets)
	}
	if gap := dev.maxGap(); gap > w.KeepalivePeriod {
		t.Errorf("max refresh gap %s while paused exceeds period", gap)
	}
}

func TestWaitUntilDeviceError(t *testing.T) {
	clock := newFakeClock()
	dev := newSim(clock)
	dev.fail["CurrentPosition"] = errStub

	err := testWaiter(clock).WaitUntil(context.Background(), dev, 0)
	if !errors.Is(err, ErrDevice) || !errors.Is(err, errStub) {
		t.Fatalf("err = %v, want device error wrapping the stub failure", err)
	}
}
