// Motion profiling for gcaudiosync
//
// Copyright (C) 2026  The gcaudiosync authors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package profiler

import (
	"math"

	"github.com/leuchtum/gcaudiosync/pkg/vec"
)

type phaseKind int

const (
	phaseStraight phaseKind = iota
	phaseArc
	phaseHold
)

// phase is one contiguous piece of the timed machine state: a straight
// move, an arc move, or a stationary hold. Phases tile the program
// timeline without gaps.
type phase struct {
	line   int
	kind   phaseKind
	startT float64
	start  vec.Vec3

	// motion phases
	tr   trapezoid
	dist float64

	// phaseStraight
	dir vec.Vec3 // unit direction along the path

	// phaseArc
	center vec.Vec3 // arc center at the start-point Z
	radius float64
	angle0 float64 // start angle, radians
	sweep  float64 // signed sweep, CCW positive
	zDelta float64 // helical Z travel over the full arc

	// phaseHold
	hold float64
}

// duration returns the phase length in seconds.
func (p *phase) duration() float64 {
	if p.kind == phaseHold {
		return p.hold
	}
	return p.tr.duration()
}

// endT returns the absolute end time of the phase.
func (p *phase) endT() float64 {
	return p.startT + p.duration()
}

// posAt returns the position at absolute time t, which must lie within
// the phase. Times outside the phase clamp to its endpoints.
func (p *phase) posAt(t float64) vec.Vec3 {
	switch p.kind {
	case phaseHold:
		return p.start
	case phaseStraight:
		return p.start.Add(p.dir.Scale(p.tr.distAt(t - p.startT)))
	default:
		frac := 0.0
		if p.dist > 0 {
			frac = p.tr.distAt(t-p.startT) / p.dist
		}
		frac = math.Min(math.Max(frac, 0), 1)
		a := p.angle0 + p.sweep*frac
		return vec.Vec3{
			X: p.center.X + p.radius*math.Cos(a),
			Y: p.center.Y + p.radius*math.Sin(a),
			Z: p.center.Z + p.zDelta*frac,
		}
	}
}

// speedAt returns the path speed at absolute time t within the phase.
func (p *phase) speedAt(t float64) float64 {
	if p.kind == phaseHold {
		return 0
	}
	return p.tr.speedAt(t - p.startT)
}

// endPos returns the exact phase end position, free of the integration
// residue distAt can accumulate.
func (p *phase) endPos() vec.Vec3 {
	switch p.kind {
	case phaseHold:
		return p.start
	case phaseStraight:
		return p.start.Add(p.dir.Scale(p.dist))
	default:
		a := p.angle0 + p.sweep
		return vec.Vec3{
			X: p.center.X + p.radius*math.Cos(a),
			Y: p.center.Y + p.radius*math.Sin(a),
			Z: p.center.Z + p.zDelta,
		}
	}
}

// spindleRamp is one linear transition of the expected spindle speed.
// Ramps are ordered by start time; each ramp holds its target value
// until the next ramp begins.
type spindleRamp struct {
	t0    float64
	from  float64
	to    float64
	slope float64 // RPM/s magnitude; 0 means instantaneous
}

// spindleCurve evaluates the piecewise-linear spindle speed over time.
type spindleCurve []spindleRamp

// at returns the expected spindle speed at time t.
func (c spindleCurve) at(t float64) float64 {
	if len(c) == 0 {
		return 0
	}
	// Last ramp starting at or before t
	lo, hi := 0, len(c)
	for lo < hi {
		mid := (lo + hi) / 2
		if c[mid].t0 <= t {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo == 0 {
		return c[0].from
	}
	r := c[lo-1]
	if r.slope == 0 {
		return r.to
	}
	d := r.to - r.from
	dt := math.Abs(d) / r.slope
	if t >= r.t0+dt {
		return r.to
	}
	if d >= 0 {
		return r.from + r.slope*(t-r.t0)
	}
	return r.from - r.slope*(t-r.t0)
}
