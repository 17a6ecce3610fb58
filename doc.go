// Package oscillator drives a single stepper axis through a Pololu Tic
// controller: oscillation between two endpoints, constant speed rotation and
// keyboard jogging, with the Tic command watchdog fed throughout.
//
// # Installation
//
//	go install github.com/gwillem/oscillator/cmd/oscillator@latest
//
// # Usage
//
// Run setup once to pick the controller and the motion settings:
//
//	oscillator setup
//
// Then start a run:
//
//	oscillator oscillate --x1 -1100 --x2 1100 --cycles 10
//	oscillator rotate --rotation-speed -36000000 --cycles inf
//	oscillator manual
//
// or control the rig over HTTP:
//
//	oscillator serve --addr 127.0.0.1:8080
//
// # Packages
//
// The module is organized into the following packages:
//
//   - cmd/oscillator: CLI with setup, run modes, dashboard and HTTP server
//   - cmd/tic-info: Lists attached Tic controllers and their status
//   - pkg/motion: Position waits, cycle counting, jogging and safe shutdown
//   - pkg/control: Control goroutine that owns the device
//   - pkg/tic: Tic serial and I²C drivers
//   - pkg/servo: Feetech servo backend for bench tests
//   - pkg/rig: Configuration file and transport selection
//   - pkg/remote: HTTP and websocket control surface
package oscillator
