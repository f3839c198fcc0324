package prng

import "math"

// boxMuller applies the Box-Muller transform to two independent uniform
// draws in (0,1], returning one standard-normal sample. Evaluated in a fixed
// order (log, then sqrt, then cos) so replay reproduces the same bits on any
// platform that implements IEEE-754 math.Sqrt/Log/Cos identically.
func boxMuller(u1, u2 float64) float64 {
	r := math.Sqrt(-2 * math.Log(u1))
	theta := 2 * math.Pi * u2
	return r * math.Cos(theta)
}

// VirtualClock is a virtual time source in microseconds that only moves
// forward. Neither session.Session nor replay.Session drives one: the
// engine takes each event's timestamp from the ts argument its caller
// passes in.
type VirtualClock struct {
	nowMicros uint64
}

// NewVirtualClock creates a clock starting at epoch (microseconds since the
// session's start-of-day epoch, per §3.1's arrival_timestamp).
func NewVirtualClock(epochMicros uint64) *VirtualClock {
	return &VirtualClock{nowMicros: epochMicros}
}

// Now returns the current virtual timestamp in microseconds.
func (c *VirtualClock) Now() uint64 {
	return c.nowMicros
}

// Set advances (or, during replay, simply sets) the virtual timestamp. The
// clock never runs backward within a session; callers driving it from a
// journal are expected to present non-decreasing timestamps because the
// journal itself only ever records non-decreasing timestamps.
func (c *VirtualClock) Set(micros uint64) {
	if micros > c.nowMicros {
		c.nowMicros = micros
	}
}
