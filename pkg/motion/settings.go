package motion

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Goal is the number of cycles a run should complete. Unbounded runs until
// cancelled.
type Goal int

const Unbounded Goal = 0

// Bounded reports whether the goal has a finite cycle count.
func (g Goal) Bounded() bool { return g > 0 }

// Reached reports whether n completed cycles satisfy the goal.
func (g Goal) Reached(n int) bool { return g > 0 && n >= int(g) }

func (g Goal) String() string {
	if !g.Bounded() {
		return "∞"
	}
	return strconv.Itoa(int(g))
}

// ParseGoal accepts a cycle count or one of "inf", "∞", "none" for an
// unbounded run.
func ParseGoal(s string) (Goal, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "inf", "∞", "none", "unbounded":
		return Unbounded, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, &ConfigError{Field: "cycles", Reason: fmt.Sprintf("%q is not a number", s)}
	}
	if n < 0 {
		return 0, &ConfigError{Field: "cycles", Reason: "must not be negative"}
	}
	return Goal(n), nil
}

// PolicyKind selects how oscillation legs are counted as cycles.
type PolicyKind string

const (
	// PolicyTriple counts first -> other -> first as one cycle.
	PolicyTriple PolicyKind = "triple"
	// PolicyAnchor counts each return to the first endpoint after the other
	// endpoint has been visited.
	PolicyAnchor PolicyKind = "anchor"
)

// DeviceLimits are the rated maxima of the motion controller.
type DeviceLimits struct {
	MaxSpeed int
	MaxAccel int
	MaxDecel int
	// CommandTimeout is the device watchdog: without a command inside this
	// window the device faults and stops the motor.
	CommandTimeout time.Duration
}

// TicLimits are the limits of a Pololu Tic with its default command timeout.
var TicLimits = DeviceLimits{
	MaxSpeed:       500_000_000,
	MaxAccel:       2_147_483_647,
	MaxDecel:       2_147_483_647,
	CommandTimeout: time.Second,
}

// Settings configure a motion session. Speeds are in microsteps per 10000 s
// and accelerations in microsteps per 100 s², the native Tic units.
type Settings struct {
	X1     int
	X2     int
	Cycles Goal
	Policy PolicyKind

	Speed         int // ceiling for every speed command
	StartingSpeed int
	MinSpeed      int
	JogSpeed      int // initial manual speed
	RotationSpeed int // signed; the sign picks the direction

	MaxAccel   int
	MaxDecel   int
	MinAccel   int
	LimitScale float64 // fraction of MaxAccel/MaxDecel applied at session start

	SpeedStepPercent int
	StepsPerRev      int
	Tolerance        int

	MoveTimeout     time.Duration
	Dwell           time.Duration
	KeepalivePeriod time.Duration
	Slice           time.Duration
	AdjustInterval  time.Duration
	SampleInterval  time.Duration
}

// DefaultSettings returns the settings of the reference rig, where one output
// revolution is 400*18 position units.
func DefaultSettings() Settings {
	return Settings{
		X1:     -1100,
		X2:     1100,
		Cycles: 10,
		Policy: PolicyTriple,

		Speed:         60_000_000,
		StartingSpeed: 0,
		MinSpeed:      1000,
		JogSpeed:      19_800_000,
		RotationSpeed: 36_000_000,

		MaxAccel:   2_000_000,
		MaxDecel:   4_000_000,
		MinAccel:   1000,
		LimitScale: 0.8,

		SpeedStepPercent: 10,
		StepsPerRev:      400 * 18,
		Tolerance:        50,

		MoveTimeout:     60 * time.Second,
		Dwell:           300 * time.Millisecond,
		KeepalivePeriod: 50 * time.Millisecond,
		Slice:           20 * time.Millisecond,
		AdjustInterval:  100 * time.Millisecond,
		SampleInterval:  50 * time.Millisecond,
	}
}

// WorkingAccel returns the acceleration applied at session start.
func (s Settings) WorkingAccel() int {
	return scaled(s.MaxAccel, s.LimitScale, s.MinAccel)
}

// WorkingDecel returns the deceleration applied at session start.
func (s Settings) WorkingDecel() int {
	return scaled(s.MaxDecel, s.LimitScale, s.MinAccel)
}

func scaled(v int, scale float64, floor int) int {
	n := int(float64(v) * scale)
	if n < floor {
		return floor
	}
	return n
}

// Validate checks the settings against the device limits.
func (s Settings) Validate(lim DeviceLimits) error {
	switch {
	case s.X1 == s.X2:
		return &ConfigError{Field: "x1/x2", Reason: "endpoints must differ"}
	case s.Cycles < 0:
		return &ConfigError{Field: "cycles", Reason: "must not be negative"}
	case s.Policy != PolicyTriple && s.Policy != PolicyAnchor:
		return &ConfigError{Field: "policy", Reason: fmt.Sprintf("unknown policy %q", s.Policy)}
	}

	if err := inRange("speed", s.Speed, 1, lim.MaxSpeed); err != nil {
		return err
	}
	if err := inRange("min_speed", s.MinSpeed, 1, s.Speed); err != nil {
		return err
	}
	if err := inRange("starting_speed", s.StartingSpeed, 0, s.Speed); err != nil {
		return err
	}
	if err := inRange("jog_speed", s.JogSpeed, s.MinSpeed, s.Speed); err != nil {
		return err
	}
	if err := inRange("rotation_speed", abs(s.RotationSpeed), s.MinSpeed, s.Speed); err != nil {
		return err
	}
	if err := inRange("max_accel", s.MaxAccel, 1, lim.MaxAccel); err != nil {
		return err
	}
	if err := inRange("max_decel", s.MaxDecel, 1, lim.MaxDecel); err != nil {
		return err
	}
	if err := inRange("min_accel", s.MinAccel, 1, min(s.MaxAccel, s.MaxDecel)); err != nil {
		return err
	}
	if s.LimitScale <= 0 || s.LimitScale > 1 {
		return &ConfigError{Field: "limit_scale", Reason: "must be in (0, 1]"}
	}
	if err := inRange("speed_step_percent", s.SpeedStepPercent, 1, 100); err != nil {
		return err
	}
	if err := inRange("steps_per_rev", s.StepsPerRev, 1, 1<<30); err != nil {
		return err
	}
	if s.Tolerance < 0 {
		return &ConfigError{Field: "tolerance", Reason: "must not be negative"}
	}

	switch {
	case s.MoveTimeout <= 0:
		return &ConfigError{Field: "move_timeout", Reason: "must be positive"}
	case s.Dwell < 0:
		return &ConfigError{Field: "dwell", Reason: "must not be negative"}
	case s.KeepalivePeriod <= 0:
		return &ConfigError{Field: "keepalive_period", Reason: "must be positive"}
	case lim.CommandTimeout > 0 && s.KeepalivePeriod >= lim.CommandTimeout:
		return &ConfigError{
			Field:  "keepalive_period",
			Reason: fmt.Sprintf("must be shorter than the device command timeout (%s)", lim.CommandTimeout),
		}
	case s.Slice <= 0 || s.Slice >= s.KeepalivePeriod:
		return &ConfigError{Field: "slice", Reason: "must be positive and shorter than keepalive_period"}
	case s.AdjustInterval < 0:
		return &ConfigError{Field: "adjust_interval", Reason: "must not be negative"}
	case s.SampleInterval <= 0:
		return &ConfigError{Field: "sample_interval", Reason: "must be positive"}
	}
	return nil
}

func inRange(field string, v, lo, hi int) error {
	if v < lo || v > hi {
		return &ConfigError{Field: field, Reason: fmt.Sprintf("%d outside [%d, %d]", v, lo, hi)}
	}
	return nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
