// Motion profiling for gcaudiosync
//
// Copyright (C) 2026  The gcaudiosync authors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package profiler

import "math"

// trapezoid is a time-parameterized velocity profile along one path:
// accelerate from v0 to vc, cruise, decelerate to v1. A triangular
// profile is the degenerate case with tCruise == 0 and vc below the
// requested cruise velocity.
type trapezoid struct {
	v0, vc, v1 float64 // start, cruise, end velocity (mm/s)
	acc, dec   float64 // acceleration and deceleration magnitude (mm/s²)
	tAcc       float64 // duration of the acceleration phase (s)
	tCruise    float64
	tDec       float64
}

// planTrapezoid shapes the velocity profile for a path of length dist
// (mm) with boundary velocities v0 and v1, requested cruise velocity
// vTarget, and asymmetric accel/decel limits. It assumes
// v0, v1 <= vTarget and positive limits; dist must be positive.
func planTrapezoid(dist, v0, v1, vTarget, acc, dec float64) trapezoid {
	// Distance needed to reach vTarget from v0 and to shed it down to v1
	dAcc := (vTarget*vTarget - v0*v0) / (2 * acc)
	dDec := (vTarget*vTarget - v1*v1) / (2 * dec)

	if dAcc+dDec <= dist {
		tr := trapezoid{v0: v0, vc: vTarget, v1: v1, acc: acc, dec: dec}
		tr.tAcc = (vTarget - v0) / acc
		tr.tDec = (vTarget - v1) / dec
		tr.tCruise = (dist - dAcc - dDec) / vTarget
		return tr
	}

	// Triangular profile: the reachable peak velocity follows from
	// dist = (vp²-v0²)/(2a) + (vp²-v1²)/(2d)
	vp2 := (2*acc*dec*dist + dec*v0*v0 + acc*v1*v1) / (acc + dec)
	vp := math.Sqrt(math.Max(vp2, 0))
	vp = math.Max(vp, math.Max(v0, v1))

	tr := trapezoid{v0: v0, vc: vp, v1: v1, acc: acc, dec: dec}
	tr.tAcc = (vp - v0) / acc
	tr.tDec = (vp - v1) / dec
	return tr
}

// duration returns the total profile time in seconds.
func (tr trapezoid) duration() float64 {
	return tr.tAcc + tr.tCruise + tr.tDec
}

// distAt returns the path distance covered at time t into the profile.
func (tr trapezoid) distAt(t float64) float64 {
	if t <= 0 {
		return 0
	}
	if t < tr.tAcc {
		return tr.v0*t + 0.5*tr.acc*t*t
	}
	d := tr.v0*tr.tAcc + 0.5*tr.acc*tr.tAcc*tr.tAcc
	t -= tr.tAcc
	if t < tr.tCruise {
		return d + tr.vc*t
	}
	d += tr.vc * tr.tCruise
	t -= tr.tCruise
	if t < tr.tDec {
		return d + tr.vc*t - 0.5*tr.dec*t*t
	}
	return d + tr.vc*tr.tDec - 0.5*tr.dec*tr.tDec*tr.tDec
}

// speedAt returns the path speed at time t into the profile.
func (tr trapezoid) speedAt(t float64) float64 {
	switch {
	case t < 0:
		return tr.v0
	case t < tr.tAcc:
		return tr.v0 + tr.acc*t
	case t < tr.tAcc+tr.tCruise:
		return tr.vc
	case t < tr.duration():
		return tr.vc - tr.dec*(t-tr.tAcc-tr.tCruise)
	default:
		return tr.v1
	}
}

// totalDist returns the exact distance covered over the whole profile.
func (tr trapezoid) totalDist() float64 {
	dAcc := tr.v0*tr.tAcc + 0.5*tr.acc*tr.tAcc*tr.tAcc
	dDec := tr.vc*tr.tDec - 0.5*tr.dec*tr.tDec*tr.tDec
	return dAcc + tr.vc*tr.tCruise + dDec
}
