package motion

import (
	"sync"
	"time"
)

// Snapshot is the status record shown by presentation layers.
type Snapshot struct {
	Mode   Mode   `json:"mode"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`

	Position       int     `json:"position"`
	TargetVelocity int     `json:"target_velocity"`
	Velocity       int     `json:"velocity"`
	Voltage        float64 `json:"voltage"`
	CurrentLimit   int     `json:"current_limit_ma"`

	Cycles int  `json:"cycles"`
	Goal   Goal `json:"goal"`

	Running   bool `json:"running"`
	Paused    bool `json:"paused"`
	Connected bool `json:"connected"`

	RunID     string    `json:"run_id,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Telemetry holds the latest Snapshot. The control goroutine updates it; any
// goroutine may read copies.
type Telemetry struct {
	mu   sync.RWMutex
	snap Snapshot
}

func NewTelemetry() *Telemetry {
	return &Telemetry{snap: Snapshot{Mode: ModeIdle, Status: "Initializing"}}
}

// Snapshot returns a copy of the latest state.
func (t *Telemetry) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snap
}

// Update applies fn to the state under the lock.
func (t *Telemetry) Update(fn func(s *Snapshot)) {
	t.mu.Lock()
	fn(&t.snap)
	t.snap.UpdatedAt = time.Now()
	t.mu.Unlock()
}

// Sampler records position samples into Telemetry and polls the optional
// device gauges no more often than its interval, so telemetry never adds
// more than one extra round of reads per interval to the device link.
type Sampler struct {
	dev      Device
	tel      *Telemetry
	clock    Clock
	interval time.Duration
	last     time.Time
	// failure is the error text this sampler last wrote to the snapshot.
	failure string
}

func NewSampler(dev Device, tel *Telemetry, clock Clock, interval time.Duration) *Sampler {
	if clock == nil {
		clock = SystemClock
	}
	return &Sampler{dev: dev, tel: tel, clock: clock, interval: interval}
}

// Position records an already sampled position and polls the gauges when
// they are due.
func (s *Sampler) Position(pos int) {
	if s == nil || s.tel == nil {
		return
	}
	s.tel.Update(func(snap *Snapshot) { snap.Position = pos })
	_ = s.pollGauges()
}

// Poll reads the position and, when due, the gauges. Read failures mark the
// snapshot disconnected and are returned as a *DeviceError.
func (s *Sampler) Poll() error {
	if s == nil {
		return nil
	}
	pos, err := s.dev.CurrentPosition()
	if err != nil {
		err = deviceErr("get current position", err)
		s.fail(err)
		return err
	}
	if s.tel != nil {
		s.tel.Update(func(snap *Snapshot) {
			snap.Position = pos
			snap.Connected = true
			s.recovered(snap)
		})
	}
	return s.pollGauges()
}

func (s *Sampler) pollGauges() error {
	g, ok := s.dev.(Gauges)
	if !ok || s.tel == nil {
		return nil
	}
	now := s.clock.Now()
	if !s.last.IsZero() && now.Sub(s.last) < s.interval {
		return nil
	}
	s.last = now

	vel, err := g.CurrentVelocity()
	if err != nil {
		err = deviceErr("get current velocity", err)
		s.fail(err)
		return err
	}
	vin, err := g.VinVoltage()
	if err != nil {
		err = deviceErr("get vin voltage", err)
		s.fail(err)
		return err
	}
	limit, err := g.CurrentLimit()
	if err != nil {
		err = deviceErr("get current limit", err)
		s.fail(err)
		return err
	}
	s.tel.Update(func(snap *Snapshot) {
		snap.Velocity = vel
		snap.Voltage = vin
		snap.CurrentLimit = limit
		snap.Connected = true
		s.recovered(snap)
	})
	return nil
}

// recovered clears a read error this sampler reported earlier. Errors set by
// anything else, such as a failed run, are left alone.
func (s *Sampler) recovered(snap *Snapshot) {
	if s.failure != "" && snap.Error == s.failure {
		snap.Error = ""
	}
	s.failure = ""
}

func (s *Sampler) fail(err error) {
	if s.tel == nil {
		return
	}
	s.failure = err.Error()
	s.tel.Update(func(snap *Snapshot) {
		snap.Connected = false
		snap.Error = s.failure
	})
}
