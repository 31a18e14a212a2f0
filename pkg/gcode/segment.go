// G-code program model for gcaudiosync
//
// Copyright (C) 2026  The gcaudiosync authors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Program model for the G-code/audio synchronizer.
//
// A Program is an ordered sequence of tagged segments, one variant per
// command kind. Consumers switch exhaustively on SegmentKind so a new
// kind cannot be silently ignored.

package gcode

import (
	"fmt"

	"github.com/leuchtum/gcaudiosync/pkg/errors"
	"github.com/leuchtum/gcaudiosync/pkg/vec"
)

// SegmentKind tags the variant of a program segment.
type SegmentKind int

const (
	// KindLinearMove is a feed-rate straight move (G1).
	KindLinearMove SegmentKind = iota

	// KindRapidMove is a maximum-feed straight move (G0).
	KindRapidMove

	// KindArcMove is a circular move with center offset (G2/G3).
	KindArcMove

	// KindDwell holds position for a duration (G4).
	KindDwell

	// KindSpindle starts, stops, or re-speeds the spindle (M3/M4/M5, S).
	KindSpindle

	// KindToolChange moves to the tool-change position and holds (M6).
	KindToolChange

	// KindCompensation toggles tool-radius compensation (G40/G41/G42).
	KindCompensation

	// KindCooling toggles coolant (M8/M9). Coolant is not reliably
	// audible, so cooling segments update model state only and never
	// produce an expected event.
	KindCooling

	// KindProgramEnd terminates the program (M30 and the abort codes).
	KindProgramEnd
)

// String returns the segment kind name.
func (k SegmentKind) String() string {
	switch k {
	case KindLinearMove:
		return "LinearMove"
	case KindRapidMove:
		return "RapidMove"
	case KindArcMove:
		return "ArcMove"
	case KindDwell:
		return "Dwell"
	case KindSpindle:
		return "Spindle"
	case KindToolChange:
		return "ToolChange"
	case KindCompensation:
		return "Compensation"
	case KindCooling:
		return "Cooling"
	case KindProgramEnd:
		return "ProgramEnd"
	default:
		return fmt.Sprintf("SegmentKind(%d)", int(k))
	}
}

// Unchanged marks a nullable commanded value (feed or spindle speed)
// that the segment leaves as-is.
const Unchanged = -1.0

// Segment is one command of the machining program. Fields beyond the
// common ones are valid only for the kinds documented on them.
type Segment struct {
	// Index is the source line ordering. Segments are totally ordered
	// by Index; ties cannot occur within one program.
	Index int

	// Kind selects the variant.
	Kind SegmentKind

	// Target is the absolute end position in mm (moves and arcs).
	Target vec.Vec3

	// Feed is the commanded feed in mm/min, Unchanged if the segment
	// does not command one.
	Feed float64

	// Spindle is the commanded spindle speed in RPM, Unchanged if the
	// segment does not command one.
	Spindle float64

	// CenterI and CenterJ are the arc center offset from the start
	// point in mm (KindArcMove).
	CenterI, CenterJ float64

	// Clockwise selects arc direction (KindArcMove): true for G2.
	Clockwise bool

	// DwellMs is the explicit dwell duration in ms (KindDwell);
	// negative means "use the profile default".
	DwellMs float64

	// SpindleOn and SpindleCW describe a spindle command (KindSpindle).
	SpindleOn bool
	SpindleCW bool

	// CompensationOn is the new compensation state (KindCompensation).
	CompensationOn bool

	// CoolingOn is the new coolant state (KindCooling).
	CoolingOn bool

	// ExactStop forces deceleration to zero at the end of this
	// segment even when collinear chaining is enabled (G9).
	ExactStop bool
}

// Program is the ordered segment sequence of one machining program.
type Program struct {
	Segments []Segment
}

// Validate checks the program-wide invariants: segments ordered by
// source index and exactly one ProgramEnd, which must be last.
func (p *Program) Validate() error {
	if len(p.Segments) == 0 {
		return errors.ProgramStateError("program has no segments")
	}
	ends := 0
	for i, seg := range p.Segments {
		if i > 0 && seg.Index < p.Segments[i-1].Index {
			return errors.ProgramSegmentError(seg.Index, "segments out of source order")
		}
		if seg.Kind == KindProgramEnd {
			ends++
		}
	}
	if ends == 0 {
		return errors.ProgramStateError("program has no end-of-program segment")
	}
	if ends > 1 {
		return errors.ProgramStateError("program has more than one end-of-program segment")
	}
	if p.Segments[len(p.Segments)-1].Kind != KindProgramEnd {
		return errors.ProgramStateError("end-of-program segment is not last")
	}
	return nil
}
