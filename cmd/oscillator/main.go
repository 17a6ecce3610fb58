package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"

	"github.com/gwillem/oscillator/pkg/control"
	"github.com/gwillem/oscillator/pkg/motion"
	"github.com/gwillem/oscillator/pkg/rig"
)

type Options struct {
	Config  string `short:"c" long:"config" default:"oscillator.json" description:"Rig config file (.json or .yaml)"`
	LogFile string `long:"log-file" description:"Append logs to this file"`

	Setup     SetupCommand     `command:"setup" description:"Find the controller and choose motion settings"`
	Oscillate OscillateCommand `command:"oscillate" alias:"osc" description:"Oscillate between two positions"`
	Rotate    RotateCommand    `command:"rotate" description:"Turn at constant speed"`
	Manual    ManualCommand    `command:"manual" alias:"jog" description:"Jog the axis from the keyboard"`
	Dashboard DashboardCommand `command:"dashboard" description:"Open the dashboard and pick a mode there"`
	Serve     ServeCommand     `command:"serve" description:"Control the rig over HTTP"`
}

var opts Options
var parser = flags.NewParser(&opts, flags.Default)

func main() {
	parser.LongDescription = "Oscillator - single-axis stepper control for Pololu Tic controllers"

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		os.Exit(1)
	}
}

// MotionFlags override the motion settings of the config file.
type MotionFlags struct {
	X1            *int           `long:"x1" description:"First endpoint (microsteps)"`
	X2            *int           `long:"x2" description:"Second endpoint (microsteps)"`
	Cycles        string         `long:"cycles" description:"Cycles or revolutions to run, 'inf' to run until stopped"`
	Policy        string         `long:"policy" choice:"triple" choice:"anchor" description:"How oscillation cycles are counted"`
	Speed         *int           `long:"speed" description:"Speed ceiling (microsteps per 10000 s)"`
	RotationSpeed *int           `long:"rotation-speed" description:"Constant speed, negative to reverse"`
	JogSpeed      *int           `long:"jog-speed" description:"Initial manual speed"`
	MaxAccel      *int           `long:"max-accel" description:"Acceleration (microsteps per 100 s²)"`
	MaxDecel      *int           `long:"max-decel" description:"Deceleration (microsteps per 100 s²)"`
	Dwell         *time.Duration `long:"dwell" description:"Pause at each endpoint"`
	MoveTimeout   *time.Duration `long:"move-timeout" description:"Give up on a move after this long"`
}

func (f *MotionFlags) apply(s *motion.Settings) error {
	setInt := func(dst *int, v *int) {
		if v != nil {
			*dst = *v
		}
	}
	setInt(&s.X1, f.X1)
	setInt(&s.X2, f.X2)
	setInt(&s.Speed, f.Speed)
	setInt(&s.RotationSpeed, f.RotationSpeed)
	setInt(&s.JogSpeed, f.JogSpeed)
	setInt(&s.MaxAccel, f.MaxAccel)
	setInt(&s.MaxDecel, f.MaxDecel)
	if f.Dwell != nil {
		s.Dwell = *f.Dwell
	}
	if f.MoveTimeout != nil {
		s.MoveTimeout = *f.MoveTimeout
	}
	if f.Policy != "" {
		s.Policy = motion.PolicyKind(f.Policy)
	}
	if f.Cycles != "" {
		goal, err := motion.ParseGoal(f.Cycles)
		if err != nil {
			return err
		}
		s.Cycles = goal
	}
	return nil
}

// loadRig reads the config file, or starts from the defaults when there is
// none, and applies the flag overrides. The result is validated.
func loadRig(mf *MotionFlags) (*rig.Config, error) {
	cfg, err := rig.LoadConfigFrom(opts.Config)
	switch {
	case errors.Is(err, os.ErrNotExist):
		def := rig.DefaultConfig()
		cfg = &def
	case err != nil:
		return nil, err
	}

	if mf != nil {
		s := cfg.Settings()
		if err := mf.apply(&s); err != nil {
			return nil, err
		}
		cfg.Motion = rig.FromSettings(s)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger builds the slog logger. With a terminal UI on screen, logs go to
// --log-file or nowhere. LOG_LEVEL=debug enables debug output.
func newLogger(tui bool) (*slog.Logger, func(), error) {
	var w io.Writer = os.Stderr
	closeFn := func() {}
	switch {
	case opts.LogFile != "":
		f, err := os.OpenFile(opts.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		w = f
		closeFn = func() { f.Close() }
	case tui:
		w = io.Discard
	}

	level := slog.LevelInfo
	if strings.EqualFold(os.Getenv("LOG_LEVEL"), "debug") {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger, closeFn, nil
}

// session is a controller running in the background for the lifetime of a
// command.
type session struct {
	cfg    *rig.Config
	ctrl   *control.Controller
	log    *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	closeL func()
}

func startSession(mf *MotionFlags, tui bool) (*session, error) {
	cfg, err := loadRig(mf)
	if err != nil {
		return nil, err
	}
	logger, closeL, err := newLogger(tui)
	if err != nil {
		return nil, err
	}

	ctrl, err := control.NewController(control.Config{
		Dial:     cfg.Dialer(),
		Settings: cfg.Settings(),
		Limits:   cfg.Limits(),
		Logger:   logger,
	})
	if err != nil {
		closeL()
		return nil, err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	s := &session{
		cfg:    cfg,
		ctrl:   ctrl,
		log:    logger,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
		closeL: closeL,
	}
	go func() {
		defer close(s.done)
		if err := ctrl.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("controller stopped", "err", err)
		}
	}()
	return s, nil
}

// Close stops the controller and waits for its shutdown sequence.
func (s *session) Close() {
	s.cancel()
	<-s.done
	s.closeL()
}
