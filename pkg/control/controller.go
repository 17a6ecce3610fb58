// Package control owns the motion device and runs one mode at a time on it.
package control

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gwillem/oscillator/pkg/motion"
)

// Device is a motion device backed by an OS resource.
type Device interface {
	motion.Device
	io.Closer
}

// Dialer opens the device. It is called again after every device failure.
type Dialer func(ctx context.Context) (Device, error)

// Config holds configuration for the controller.
type Config struct {
	Dial     Dialer
	Settings motion.Settings
	Limits   motion.DeviceLimits
	Logger   *slog.Logger
	Clock    motion.Clock

	// KeyHold is how long a pressed key stays active without a repeat.
	KeyHold    time.Duration
	MinBackoff time.Duration
	MaxBackoff time.Duration
}

// Controller is the control goroutine. It is the only code that touches the
// device; presentation layers read snapshots and submit commands.
type Controller struct {
	dial       Dialer
	settings   motion.Settings
	limits     motion.DeviceLimits
	clock      motion.Clock
	minBackoff time.Duration
	maxBackoff time.Duration

	tel   *motion.Telemetry
	pause motion.PauseSwitch
	keys  *motion.KeyLatch
	log   *slog.Logger
	logCh chan string

	startCh chan Command

	mu          sync.Mutex
	running     bool
	busy        bool
	stopPending bool
	cancelRun   context.CancelFunc
}

// NewController creates a controller. It does not open the device; Run does.
func NewController(cfg Config) (*Controller, error) {
	if cfg.Dial == nil {
		return nil, errors.New("no device dialer")
	}
	if cfg.Limits == (motion.DeviceLimits{}) {
		cfg.Limits = motion.TicLimits
	}
	if err := cfg.Settings.Validate(cfg.Limits); err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = motion.SystemClock
	}
	if cfg.KeyHold <= 0 {
		cfg.KeyHold = 150 * time.Millisecond
	}
	if cfg.MinBackoff <= 0 {
		cfg.MinBackoff = 250 * time.Millisecond
	}
	if cfg.MaxBackoff < cfg.MinBackoff {
		cfg.MaxBackoff = max(5*time.Second, cfg.MinBackoff)
	}

	return &Controller{
		dial:       cfg.Dial,
		settings:   cfg.Settings,
		limits:     cfg.Limits,
		clock:      cfg.Clock,
		minBackoff: cfg.MinBackoff,
		maxBackoff: cfg.MaxBackoff,
		tel:        motion.NewTelemetry(),
		keys:       motion.NewKeyLatch(cfg.KeyHold),
		log:        cfg.Logger,
		logCh:      make(chan string, 10),
		startCh:    make(chan Command, 1),
	}, nil
}

// Snapshot returns the latest telemetry.
func (c *Controller) Snapshot() motion.Snapshot {
	return c.tel.Snapshot()
}

// Settings returns the session settings.
func (c *Controller) Settings() motion.Settings {
	return c.settings
}

// Busy reports whether a run is queued or active.
func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

// Logs returns a channel that receives user-facing log lines.
func (c *Controller) Logs() <-chan string {
	return c.logCh
}

// Press marks an input action as held.
func (c *Controller) Press(a motion.Action) {
	c.keys.Press(a)
}

// Release clears a held input action.
func (c *Controller) Release(a motion.Action) {
	c.keys.Release(a)
}

func (c *Controller) logf(level slog.Level, format string, args ...any) {
	text := fmt.Sprintf(format, args...)
	c.log.Log(context.Background(), level, text)
	msg := fmt.Sprintf("[%s] %s", time.Now().Format("15:04:05"), text)
	select {
	case c.logCh <- msg:
	default:
		// Drop if channel full
	}
}

// Submit hands a command to the control goroutine. Start commands are
// validated first and rejected with a *motion.ConfigError, or with ErrBusy
// while another run is queued or active.
func (c *Controller) Submit(cmd Command) error {
	switch cmd.(type) {
	case Stop:
		c.stop()
		return nil
	case TogglePause:
		paused := c.pause.Toggle()
		c.tel.Update(func(s *motion.Snapshot) { s.Paused = paused })
		if paused {
			c.logf(slog.LevelInfo, "Paused")
		} else {
			c.logf(slog.LevelInfo, "Resumed")
		}
		return nil
	case StartOscillation, StartContinuous, StartManual:
	default:
		return fmt.Errorf("unknown command %T", cmd)
	}

	if err := validate(c.settings, c.limits, cmd); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return ErrBusy
	}
	c.busy = true
	c.stopPending = false
	c.startCh <- cmd
	c.logf(slog.LevelInfo, "%s requested", modeOf(cmd).Title())
	return nil
}

func (c *Controller) stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.cancelRun != nil:
		c.cancelRun()
		c.logf(slog.LevelInfo, "Stop requested")
	case c.busy:
		select {
		case <-c.startCh:
			c.busy = false
			c.logf(slog.LevelInfo, "Queued run cancelled")
		default:
			// Picked up by Run but not started yet.
			c.stopPending = true
		}
	}
}

// Run is the control loop. It connects to the device, retrying with backoff,
// executes submitted runs and samples telemetry while idle. After a device
// failure it closes the device and reconnects. It returns when ctx is done.
func (c *Controller) Run(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("already running")
	}
	c.running = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
	}()

	for {
		dev, err := c.connect(ctx)
		if err != nil {
			c.logf(slog.LevelInfo, "Controller stopped")
			return ctx.Err()
		}
		err = c.serve(ctx, dev)
		if cerr := dev.Close(); cerr != nil {
			c.log.Warn("close device", "err", cerr)
		}
		if ctx.Err() != nil {
			c.tel.Update(func(s *motion.Snapshot) {
				s.Connected = false
				s.Status = "Stopped"
			})
			c.logf(slog.LevelInfo, "Controller stopped")
			return ctx.Err()
		}
		c.fail(err)
		c.logf(slog.LevelError, "Device lost: %v", err)
	}
}

// connect dials until it succeeds or ctx is done, doubling the delay between
// attempts up to maxBackoff.
func (c *Controller) connect(ctx context.Context) (Device, error) {
	delay := c.minBackoff
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c.tel.Update(func(s *motion.Snapshot) { s.Status = "Connecting" })
		dev, err := c.dial(ctx)
		if err == nil {
			c.tel.Update(func(s *motion.Snapshot) {
				s.Connected = true
				s.Error = ""
				s.Status = "Idle"
			})
			c.logf(slog.LevelInfo, "Device connected")
			return dev, nil
		}
		c.fail(err)
		c.logf(slog.LevelWarn, "Connect failed: %v (retry in %s)", err, delay)
		if err := c.clock.Sleep(ctx, delay); err != nil {
			return nil, err
		}
		delay = min(delay*2, c.maxBackoff)
	}
}

// serve runs submitted commands on dev until ctx is done or the device
// fails.
func (c *Controller) serve(ctx context.Context, dev Device) error {
	sampler := motion.NewSampler(dev, c.tel, c.clock, c.settings.SampleInterval)
	ticker := time.NewTicker(c.settings.SampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cmd := <-c.startCh:
			if err := c.execute(ctx, dev, cmd); err != nil {
				return err
			}
		case <-ticker.C:
			if err := dev.ResetCommandTimeout(); err != nil {
				return &motion.DeviceError{Op: "reset command timeout", Err: err}
			}
			if err := sampler.Poll(); err != nil {
				return err
			}
		}
	}
}

// execute runs one session: prepare, run the mode, shut down. Only device
// failures are returned; every other outcome is reported in the snapshot.
func (c *Controller) execute(ctx context.Context, dev Device, cmd Command) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.mu.Lock()
	if c.stopPending {
		c.stopPending, c.busy = false, false
		c.mu.Unlock()
		c.logf(slog.LevelInfo, "Queued run cancelled")
		return nil
	}
	c.cancelRun = cancel
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.cancelRun, c.busy = nil, false
		c.mu.Unlock()
	}()

	// A quit or zero key still latched from the previous run must not
	// trigger in this one.
	for _, a := range []motion.Action{motion.Quit, motion.Zero, motion.GoZero} {
		c.keys.Release(a)
	}

	mode := modeOf(cmd)
	runID := uuid.NewString()
	log := c.log.With("run_id", runID, "mode", mode)
	c.pause.Set(false)
	c.tel.Update(func(s *motion.Snapshot) {
		s.Mode = mode
		s.RunID = runID
		s.Running = true
		s.Paused = false
		s.Error = ""
		s.Status = "Preparing"
	})
	c.logf(slog.LevelInfo, "%s started", mode.Title())

	engine := motion.NewEngine(motion.EngineConfig{
		Device:    dev,
		Settings:  c.settings,
		Clock:     c.clock,
		Pause:     &c.pause,
		Telemetry: c.tel,
		Input:     c.keys,
		Logger:    log,
	})
	safety := motion.NewSafety(dev, log)
	defer safety.Shutdown()

	err := engine.Prepare()
	if err == nil {
		switch cmd := cmd.(type) {
		case StartOscillation:
			err = engine.RunOscillation(runCtx, cmd.X1, cmd.X2, cmd.Cycles)
		case StartContinuous:
			err = engine.RunConstantSpeed(runCtx, cmd.Speed, cmd.Cycles)
		case StartManual:
			err = engine.RunManual(runCtx)
		}
	}

	for _, w := range safety.Shutdown().Warnings() {
		c.logf(slog.LevelWarn, "Warning: shutdown %s", w)
	}
	c.tel.Update(func(s *motion.Snapshot) {
		s.Running = false
		s.Paused = false
		s.TargetVelocity = 0
	})
	c.pause.Set(false)

	switch {
	case err == nil:
		c.status("%s finished", mode.Title())
		c.logf(slog.LevelInfo, "%s finished", mode.Title())
	case errors.Is(err, motion.ErrCancelled):
		c.status("Stopped")
		c.logf(slog.LevelInfo, "%s stopped", mode.Title())
	case errors.Is(err, motion.ErrDevice):
		// Recorded before busy clears so a caller that sees the run end
		// also sees why.
		c.tel.Update(func(s *motion.Snapshot) {
			s.Status = "Failed"
			s.Error = err.Error()
			s.Connected = false
		})
		return err
	default:
		c.tel.Update(func(s *motion.Snapshot) {
			s.Status = "Failed"
			s.Error = err.Error()
		})
		c.logf(slog.LevelError, "%s failed: %v", mode.Title(), err)
	}
	return nil
}

func (c *Controller) status(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	c.tel.Update(func(s *motion.Snapshot) { s.Status = msg })
}

func (c *Controller) fail(err error) {
	c.tel.Update(func(s *motion.Snapshot) {
		s.Connected = false
		s.Running = false
		s.Error = err.Error()
	})
}
