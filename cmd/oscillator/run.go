package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/gwillem/oscillator/pkg/control"
	"github.com/gwillem/oscillator/pkg/motion"
)

type OscillateCommand struct {
	MotionFlags `group:"Motion options"`
	Plain       bool `long:"plain" description:"Print progress lines instead of the dashboard"`
}

func (c *OscillateCommand) Execute(args []string) error {
	return runMode(&c.MotionFlags, c.Plain, func(s motion.Settings) control.Command {
		return control.StartOscillation{X1: s.X1, X2: s.X2, Cycles: s.Cycles}
	})
}

type RotateCommand struct {
	MotionFlags `group:"Motion options"`
	Plain       bool `long:"plain" description:"Print progress lines instead of the dashboard"`
}

func (c *RotateCommand) Execute(args []string) error {
	return runMode(&c.MotionFlags, c.Plain, func(s motion.Settings) control.Command {
		return control.StartContinuous{Speed: s.RotationSpeed, Cycles: s.Cycles}
	})
}

type ManualCommand struct {
	MotionFlags `group:"Motion options"`
}

func (c *ManualCommand) Execute(args []string) error {
	return runMode(&c.MotionFlags, false, func(motion.Settings) control.Command {
		return control.StartManual{}
	})
}

type DashboardCommand struct {
	MotionFlags `group:"Motion options"`
}

func (c *DashboardCommand) Execute(args []string) error {
	return runMode(&c.MotionFlags, false, nil)
}

// runMode starts a controller session and runs the command built by start,
// if any, either on the dashboard or as console output.
func runMode(mf *MotionFlags, plain bool, start func(motion.Settings) control.Command) error {
	s, err := startSession(mf, !plain)
	if err != nil {
		return err
	}
	defer s.Close()

	var cmd control.Command
	if start != nil {
		cmd = start(s.ctrl.Settings())
	}
	if plain {
		return runPlain(s, cmd)
	}
	return runDashboard(s, cmd)
}

// runPlain prints controller log lines and status changes until the run
// ends or the process is interrupted.
func runPlain(s *session, cmd control.Command) error {
	if err := s.ctrl.Submit(cmd); err != nil {
		return err
	}

	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	var lastStatus string
	for {
		select {
		case <-s.ctx.Done():
			fmt.Println("Interrupted, stopping the motor.")
			return nil

		case line := <-s.ctrl.Logs():
			fmt.Println(line)

		case <-ticker.C:
			// Busy first: the run's final state is in the snapshot before
			// busy clears.
			busy := s.ctrl.Busy()
			snap := s.ctrl.Snapshot()
			if snap.Status != lastStatus {
				lastStatus = snap.Status
				fmt.Println(statusStyle.Render(fmt.Sprintf("  %s  (position %d, cycles %d/%s)",
					snap.Status, snap.Position, snap.Cycles, snap.Goal)))
			}
			if busy {
				continue
			}
			drainLogs(s.ctrl)
			return runResult(snap)
		}
	}
}

// runResult turns the snapshot of a finished run into the command's error.
func runResult(snap motion.Snapshot) error {
	if snap.Status != "Failed" && snap.Connected {
		return nil
	}
	if snap.Error == "" {
		return errors.New("device disconnected")
	}
	return errors.New(snap.Error)
}

func drainLogs(ctrl *control.Controller) {
	for {
		select {
		case line := <-ctrl.Logs():
			fmt.Println(line)
		default:
			return
		}
	}
}
