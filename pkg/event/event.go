// Machine event model for gcaudiosync
//
// Copyright (C) 2026  The gcaudiosync authors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Package event defines the discrete timestamped events the
// synchronizer aligns: expected events derived from simulating the
// program and observed events extracted from the recorded audio.
package event

import "fmt"

// Kind classifies an expected machine event.
type Kind int

const (
	// SpindleStart marks the spindle switching on or speeding up.
	SpindleStart Kind = iota

	// SpindleStop marks the spindle switching off.
	SpindleStop

	// ToolChangeStart marks arrival at the tool-change position.
	ToolChangeStart

	// ToolChangeEnd marks the end of the tool-change hold.
	ToolChangeEnd

	// FeedChange marks a change of the commanded feed rate.
	FeedChange

	// Pause marks the start of a dwell.
	Pause

	// ProgramEnd marks the final timestamp of the trace.
	ProgramEnd
)

// String returns the event kind name.
func (k Kind) String() string {
	switch k {
	case SpindleStart:
		return "SpindleStart"
	case SpindleStop:
		return "SpindleStop"
	case ToolChangeStart:
		return "ToolChangeStart"
	case ToolChangeEnd:
		return "ToolChangeEnd"
	case FeedChange:
		return "FeedChange"
	case Pause:
		return "Pause"
	case ProgramEnd:
		return "ProgramEnd"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Expected is a machine event predicted by the motion profiler, in
// program time. Ordered by Time, ties broken by source Line.
type Expected struct {
	// Time is the program time in seconds.
	Time float64

	// Kind classifies the event.
	Kind Kind

	// Line is the source sequence index that produced the event.
	Line int

	// Payload carries the kind-specific value: the new spindle speed
	// for spindle events, the new feed for feed changes, zero otherwise.
	Payload float64
}

// Hint is the weak acoustic classification of an observed event. The
// extractor cannot name machine events; it only knows whether the
// acoustic energy rose or fell across the transition.
type Hint int

const (
	// HintNone carries no directional information.
	HintNone Hint = iota

	// HintRise marks a transition into louder/broader-band audio.
	HintRise

	// HintFall marks a transition into quieter audio.
	HintFall
)

// String returns the hint name.
func (h Hint) String() string {
	switch h {
	case HintRise:
		return "Rise"
	case HintFall:
		return "Fall"
	default:
		return "None"
	}
}

// Observed is a candidate machine-event timestamp extracted from the
// audio track, in audio time. Ordered by Time.
type Observed struct {
	// Time is the audio time in seconds.
	Time float64

	// Hint is the weak direction hint.
	Hint Hint

	// Strength is the detection confidence in [0,1].
	Strength float64
}

// RiseLike reports whether an expected event of kind k should sound
// like an energy rise (spindle spin-up, motion resuming) rather than a
// fall (spindle stop, dwell, program end).
func RiseLike(k Kind) bool {
	switch k {
	case SpindleStart, ToolChangeEnd, FeedChange:
		return true
	default:
		return false
	}
}
