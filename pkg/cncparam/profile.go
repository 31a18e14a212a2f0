// CNC machine parameter handling for gcaudiosync
//
// Copyright (C) 2026  The gcaudiosync authors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// CNC limits profile.
//
// A Profile captures the physical limits and fixed durations of the
// machine the program ran on: per-axis acceleration/deceleration caps,
// feed and spindle maxima, fixed pause and tool-change times, and the
// M-command code table. Loaded once and read-only for the lifetime of
// a synchronization run.

package cncparam

import (
	"github.com/leuchtum/gcaudiosync/pkg/errors"
	"github.com/leuchtum/gcaudiosync/pkg/vec"
)

// CommandCodes maps symbolic M-command names to their integer codes.
type CommandCodes struct {
	Abort           int
	Quit            int
	ProgAbort       int
	SpindleStartCW  int
	SpindleStartCCW int
	SpindleOff      int
	ToolChange      int
	CoolingOn       int
	CoolingOff      int
	EndOfProgram    int
}

// Profile holds the machine parameters. Immutable after loading.
type Profile struct {
	// StartPosition is where the linear axes sit at program start, in mm.
	StartPosition vec.Vec3

	// ToolChangePosition is where the machine moves for a tool change, in mm.
	ToolChangePosition vec.Vec3

	// SpindleIsAbsolute selects absolute S values (true) or S values
	// relative to the current spindle speed (false).
	SpindleIsAbsolute bool

	// FeedMax is the maximum feed rate in mm/min.
	FeedMax float64

	// SpindleMax is the maximum spindle speed in RPM.
	SpindleMax float64

	// Accel and Decel are the per-axis acceleration and deceleration
	// caps in mm/s².
	Accel vec.Vec3
	Decel vec.Vec3

	// DefaultPauseMs is the pause duration used when a dwell gives no
	// explicit time, in milliseconds.
	DefaultPauseMs float64

	// ToolChangeMs is the fixed tool-change hold duration in milliseconds.
	ToolChangeMs float64

	// Commands is the M-command code table.
	Commands CommandCodes

	// ChainCollinear chains velocity across consecutive collinear
	// linear moves with the same feed instead of decelerating to zero.
	ChainCollinear bool

	// MaxSagitta bounds the chordal error when arcs are rectified, in mm.
	MaxSagitta float64

	// SpindleRampUp and SpindleRampDown limit how fast the expected
	// spindle speed changes, in RPM/s. Zero means instantaneous.
	SpindleRampUp   float64
	SpindleRampDown float64
}

// Default returns a profile with the conventional defaults for the
// reference machine.
func Default() *Profile {
	return &Profile{
		StartPosition:      vec.Vec3{X: 100, Y: 100, Z: 100},
		ToolChangePosition: vec.Vec3{X: 100, Y: 100, Z: 100},
		SpindleIsAbsolute:  true,
		FeedMax:            20000,
		SpindleMax:         18000,
		Accel:              vec.Vec3{X: 40, Y: 40, Z: 40},
		Decel:              vec.Vec3{X: 40, Y: 40, Z: 40},
		DefaultPauseMs:     10000,
		ToolChangeMs:       8000,
		Commands: CommandCodes{
			Abort:           0,
			Quit:            1,
			ProgAbort:       2,
			SpindleStartCW:  3,
			SpindleStartCCW: 4,
			SpindleOff:      5,
			ToolChange:      6,
			CoolingOn:       8,
			CoolingOff:      9,
			EndOfProgram:    30,
		},
		ChainCollinear: true,
		MaxSagitta:     0.01,
	}
}

// Validate checks the physical plausibility of the profile. Called at
// load time so profiling never fails mid-trace on bad limits.
func (p *Profile) Validate() error {
	type axisLimit struct {
		key string
		val float64
	}
	limits := []axisLimit{
		{"MAX_ACCELERATION_X", p.Accel.X},
		{"MAX_ACCELERATION_Y", p.Accel.Y},
		{"MAX_ACCELERATION_Z", p.Accel.Z},
		{"MAX_DECELERATION_X", p.Decel.X},
		{"MAX_DECELERATION_Y", p.Decel.Y},
		{"MAX_DECELERATION_Z", p.Decel.Z},
	}
	for _, l := range limits {
		if l.val <= 0 {
			return errors.ConfigValidationError(l.key, "acceleration limit must be positive")
		}
	}
	if p.FeedMax <= 0 {
		return errors.ConfigValidationError("F_MAX", "maximum feed rate must be positive")
	}
	if p.SpindleMax <= 0 {
		return errors.ConfigValidationError("S_MAX", "maximum spindle speed must be positive")
	}
	if p.DefaultPauseMs < 0 {
		return errors.ConfigValidationError("DEFAULT_PAUSE_TIME", "pause time must not be negative")
	}
	if p.ToolChangeMs < 0 {
		return errors.ConfigValidationError("TOOL_CHANGE_TIME", "tool change time must not be negative")
	}
	if p.MaxSagitta <= 0 {
		return errors.ConfigValidationError("MAX_SAGITTA", "chordal tolerance must be positive")
	}
	if p.SpindleRampUp < 0 || p.SpindleRampDown < 0 {
		return errors.ConfigValidationError("SPINDLE_RAMP", "ramp slopes must not be negative")
	}
	return nil
}
