// CNC machine parameter handling for gcaudiosync
//
// Copyright (C) 2026  The gcaudiosync authors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package cncparam

import (
	"testing"

	"github.com/leuchtum/gcaudiosync/pkg/errors"
)

const fullParams = `
# Machine geometry
START_POSITION_X 100.0
START_POSITION_Y 100.0
START_POSITION_Z 100.0
TOOL_CHANGE_POSITION_X 0.0
TOOL_CHANGE_POSITION_Y 0.0
TOOL_CHANGE_POSITION_Z 150.0

S_IS_ABSOLUTE 1

F_MAX 20000
S_MAX 18000

MAX_ACCELERATION_X 40
MAX_ACCELERATION_Y 40
MAX_ACCELERATION_Z 25
MAX_DECELERATION_X 40
MAX_DECELERATION_Y 40
MAX_DECELERATION_Z 25

DEFAULT_PAUSE_TIME 10000
TOOL_CHANGE_TIME 8000

COMMAND_SPINDLE_START_CW 3.0
COMMAND_END_OF_PROGRAM 30
`

func TestLoadString(t *testing.T) {
	p, err := LoadString(fullParams)
	if err != nil {
		t.Fatalf("LoadString failed: %v", err)
	}

	if p.StartPosition.X != 100.0 || p.StartPosition.Z != 100.0 {
		t.Errorf("unexpected start position: %+v", p.StartPosition)
	}
	if p.ToolChangePosition.Z != 150.0 {
		t.Errorf("unexpected tool change position: %+v", p.ToolChangePosition)
	}
	if !p.SpindleIsAbsolute {
		t.Error("expected absolute spindle mode")
	}
	if p.FeedMax != 20000 {
		t.Errorf("expected F_MAX 20000, got %f", p.FeedMax)
	}
	if p.Accel.Z != 25 || p.Decel.Z != 25 {
		t.Errorf("unexpected Z limits: accel=%f decel=%f", p.Accel.Z, p.Decel.Z)
	}
	if p.DefaultPauseMs != 10000 {
		t.Errorf("expected default pause 10000 ms, got %f", p.DefaultPauseMs)
	}
	// Command codes parse "3.0" as integer 3
	if p.Commands.SpindleStartCW != 3 {
		t.Errorf("expected spindle CW code 3, got %d", p.Commands.SpindleStartCW)
	}
	if p.Commands.EndOfProgram != 30 {
		t.Errorf("expected end-of-program code 30, got %d", p.Commands.EndOfProgram)
	}
}

func TestLoadStringColonSeparator(t *testing.T) {
	data := fullParams + "\nMAX_SAGITTA: 0.02\nCHAIN_COLLINEAR = 0\n"
	p, err := LoadString(data)
	if err != nil {
		t.Fatalf("LoadString failed: %v", err)
	}
	if p.MaxSagitta != 0.02 {
		t.Errorf("expected MAX_SAGITTA 0.02, got %f", p.MaxSagitta)
	}
	if p.ChainCollinear {
		t.Error("expected collinear chaining disabled")
	}
}

func TestLoadStringMissingKey(t *testing.T) {
	_, err := LoadString("START_POSITION_X 0\n")
	if err == nil {
		t.Fatal("expected error for missing required keys")
	}
	if !errors.Is(err, errors.ErrConfigMissingKey) {
		t.Errorf("expected CONFIG_MISSING_KEY, got %v", err)
	}
}

func TestLoadStringBadAcceleration(t *testing.T) {
	data := fullParams + "\nMAX_ACCELERATION_Y -5\n"
	_, err := LoadString(data)
	if err == nil {
		t.Fatal("expected validation error for negative acceleration")
	}
	if !errors.Is(err, errors.ErrConfigValidation) {
		t.Errorf("expected CONFIG_VALIDATION, got %v", err)
	}
	if !errors.IsConfiguration(err) {
		t.Errorf("IsConfiguration should hold for %v", err)
	}
}

func TestLoadStringUnknownKeyIgnored(t *testing.T) {
	data := fullParams + "\nSOME_FUTURE_KNOB 12\n"
	if _, err := LoadString(data); err != nil {
		t.Fatalf("unknown keys must be ignored, got %v", err)
	}
}

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default profile must validate: %v", err)
	}
}
