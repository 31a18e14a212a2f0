// Event sequence alignment for gcaudiosync
//
// Copyright (C) 2026  The gcaudiosync authors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package align

// Anchor is one correspondence between audio time and program time,
// in seconds.
type Anchor struct {
	Audio   float64
	Program float64
}

// TimeWarp is a monotonic piecewise-linear mapping between audio time
// and program time. Anchors are strictly increasing in both
// coordinates; outside the anchored range the boundary segment's slope
// extrapolates.
type TimeWarp struct {
	anchors []Anchor
}

// newWarp builds a warp from anchors already strictly increasing in
// both coordinates. At least two are required.
func newWarp(anchors []Anchor) *TimeWarp {
	return &TimeWarp{anchors: anchors}
}

// Anchors returns the anchor list, ordered by audio time.
func (w *TimeWarp) Anchors() []Anchor {
	return w.anchors
}

// Map converts an audio timestamp to program time. Exact at anchors.
func (w *TimeWarp) Map(audioT float64) float64 {
	return interpolate(audioT, w.anchors, func(a Anchor) (float64, float64) {
		return a.Audio, a.Program
	})
}

// Inverse converts a program timestamp to audio time. Exact at anchors.
func (w *TimeWarp) Inverse(programT float64) float64 {
	return interpolate(programT, w.anchors, func(a Anchor) (float64, float64) {
		return a.Program, a.Audio
	})
}

// interpolate evaluates the piecewise-linear map through the anchors
// at x, using the axis selector to pick the from/to coordinates.
func interpolate(x float64, anchors []Anchor, axis func(Anchor) (float64, float64)) float64 {
	n := len(anchors)
	// Segment index: the last anchor with from <= x, clamped so the
	// boundary segments extend outward.
	seg := 0
	for i := 1; i < n-1; i++ {
		from, _ := axis(anchors[i])
		if from <= x {
			seg = i
		}
	}
	x0, y0 := axis(anchors[seg])
	x1, y1 := axis(anchors[seg+1])
	if x1 == x0 {
		return y0
	}
	return y0 + (y1-y0)*(x-x0)/(x1-x0)
}
