package rig

import "math"

// Scale converts between controller units and output shaft units.
type Scale struct {
	// StepsPerRev is the number of position units per output revolution.
	StepsPerRev int
}

// Revolutions converts a position to output revolutions.
func (s Scale) Revolutions(pos int) float64 {
	if s.StepsPerRev == 0 {
		return 0
	}
	return float64(pos) / float64(s.StepsPerRev)
}

// Position converts output revolutions to a position, rounded to the nearest
// step.
func (s Scale) Position(revs float64) int {
	return int(math.Round(revs * float64(s.StepsPerRev)))
}

// Degrees converts a position to an output angle in degrees.
func (s Scale) Degrees(pos int) float64 {
	return s.Revolutions(pos) * 360
}

// RPM converts a Tic velocity (steps per 10000 s) to output revolutions per
// minute.
func (s Scale) RPM(vel int) float64 {
	if s.StepsPerRev == 0 {
		return 0
	}
	return float64(vel) / 10000 * 60 / float64(s.StepsPerRev)
}

// Velocity converts output revolutions per minute to a Tic velocity.
func (s Scale) Velocity(rpm float64) int {
	return int(math.Round(rpm * float64(s.StepsPerRev) / 60 * 10000))
}
