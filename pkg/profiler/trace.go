// Motion profiling for gcaudiosync
//
// Copyright (C) 2026  The gcaudiosync authors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package profiler

import "math"

// sampleTrace renders the phases of a finished run into the sampled
// motion trace. Every phase contributes its start instant; arcs are
// sampled densely enough that the chord between consecutive samples
// stays within the profile's sagitta tolerance.
func (p *Profiler) sampleTrace(r *run) MotionTrace {
	if len(r.phases) == 0 {
		return MotionTrace{{T: 0, Pos: r.pos, Spindle: r.curve.at(0)}}
	}

	var trace MotionTrace
	push := func(t float64, s Sample) {
		if n := len(trace); n > 0 && t <= trace[n-1].T+1e-9 {
			return
		}
		s.T = t
		trace = append(trace, s)
	}

	for i := range r.phases {
		ph := &r.phases[i]
		dt := p.sampleInterval
		if ph.kind == phaseArc {
			dt = math.Min(dt, arcSampleStep(ph, p.prof.MaxSagitta))
		}
		end := ph.endT()
		for t := ph.startT; t < end; t += dt {
			push(t, Sample{
				Pos:     ph.posAt(t),
				Feed:    ph.speedAt(t),
				Spindle: r.curve.at(t),
			})
		}
	}

	last := &r.phases[len(r.phases)-1]
	push(last.endT(), Sample{
		Pos:     last.endPos(),
		Feed:    last.tr.v1,
		Spindle: r.curve.at(last.endT()),
	})
	return trace
}

// arcSampleStep bounds the sampling step on an arc so a chord between
// consecutive samples at cruise speed deviates from the circle by at
// most maxSagitta.
func arcSampleStep(ph *phase, maxSagitta float64) float64 {
	if ph.radius <= 0 || ph.tr.vc <= 0 {
		return math.Inf(1)
	}
	ratio := math.Min(maxSagitta/ph.radius, 1)
	phiMax := 2 * math.Acos(1-ratio)
	if phiMax <= 0 {
		return math.Inf(1)
	}
	omega := ph.tr.vc / ph.radius
	return phiMax / omega
}
