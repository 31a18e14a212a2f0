// G-code program model for gcaudiosync
//
// Copyright (C) 2026  The gcaudiosync authors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package gcode

import (
	"testing"

	"github.com/leuchtum/gcaudiosync/pkg/cncparam"
	"github.com/leuchtum/gcaudiosync/pkg/errors"
)

func TestParseBasicProgram(t *testing.T) {
	src := `
; square pocket
G90 G21
M3 S8000
G0 X0 Y0 Z5
G1 Z-1 F300
G1 X50 F1200
G1 Y50
G1 X0
G1 Y0
M5
M30
`
	prof := cncparam.Default()
	prog, err := Parse(src, prof)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if err := prog.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	segs := prog.Segments
	last := segs[len(segs)-1]
	if last.Kind != KindProgramEnd {
		t.Fatalf("expected ProgramEnd last, got %v", last.Kind)
	}

	// M3 S8000
	var spindleSeg *Segment
	for i := range segs {
		if segs[i].Kind == KindSpindle {
			spindleSeg = &segs[i]
			break
		}
	}
	if spindleSeg == nil {
		t.Fatal("no spindle segment parsed")
	}
	if !spindleSeg.SpindleOn || !spindleSeg.SpindleCW || spindleSeg.Spindle != 8000 {
		t.Errorf("unexpected spindle segment: %+v", spindleSeg)
	}

	// Modal G1: "G1 Y50" keeps linear motion, absolute target resolved
	var moves []Segment
	for _, s := range segs {
		if s.Kind == KindLinearMove {
			moves = append(moves, s)
		}
	}
	if len(moves) != 5 {
		t.Fatalf("expected 5 linear moves, got %d", len(moves))
	}
	if moves[2].Target.X != 50 || moves[2].Target.Y != 50 || moves[2].Target.Z != -1 {
		t.Errorf("modal target not resolved: %+v", moves[2].Target)
	}
	// Feed is commanded once, then Unchanged
	if moves[1].Feed != 1200 {
		t.Errorf("expected feed 1200 on X50 move, got %f", moves[1].Feed)
	}
	if moves[2].Feed != Unchanged {
		t.Errorf("expected unchanged feed on Y50 move, got %f", moves[2].Feed)
	}
}

func TestParseArc(t *testing.T) {
	src := `
G0 X0 Y0 Z0
G2 X10 Y0 I5 J0 F600
M30
`
	prog, err := Parse(src, cncparam.Default())
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	var arc *Segment
	for i := range prog.Segments {
		if prog.Segments[i].Kind == KindArcMove {
			arc = &prog.Segments[i]
		}
	}
	if arc == nil {
		t.Fatal("no arc segment parsed")
	}
	if !arc.Clockwise || arc.CenterI != 5 || arc.CenterJ != 0 {
		t.Errorf("unexpected arc segment: %+v", arc)
	}
}

func TestParseArcMissingCenter(t *testing.T) {
	src := "G0 X0 Y0 Z0\nG2 X10 Y0 F600\nM30\n"
	_, err := Parse(src, cncparam.Default())
	if err == nil {
		t.Fatal("expected error for arc without center offset")
	}
	if !errors.IsProgramModel(err) {
		t.Errorf("expected program model error, got %v", err)
	}
	se, ok := err.(*errors.SyncError)
	if !ok || se.Line != 1 {
		t.Errorf("error should identify line 1, got %v", err)
	}
}

func TestParseDwell(t *testing.T) {
	src := "G4 P2500\nG4 S2\nG4\nM30\n"
	prog, err := Parse(src, cncparam.Default())
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	var dwells []Segment
	for _, s := range prog.Segments {
		if s.Kind == KindDwell {
			dwells = append(dwells, s)
		}
	}
	if len(dwells) != 3 {
		t.Fatalf("expected 3 dwells, got %d", len(dwells))
	}
	if dwells[0].DwellMs != 2500 {
		t.Errorf("P word: expected 2500 ms, got %f", dwells[0].DwellMs)
	}
	if dwells[1].DwellMs != 2000 {
		t.Errorf("S word: expected 2000 ms, got %f", dwells[1].DwellMs)
	}
	if dwells[2].DwellMs >= 0 {
		t.Errorf("bare G4: expected default marker, got %f", dwells[2].DwellMs)
	}
}

func TestParseAppendsMissingEnd(t *testing.T) {
	prog, err := Parse("G0 X1 Y0 Z0\n", cncparam.Default())
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if prog.Segments[len(prog.Segments)-1].Kind != KindProgramEnd {
		t.Error("expected synthesized ProgramEnd")
	}
}

func TestParseStopsAtProgramEnd(t *testing.T) {
	src := "G0 X1 Y0 Z0\nM30\nG0 X99 Y0 Z0\n"
	prog, err := Parse(src, cncparam.Default())
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	for _, s := range prog.Segments {
		if s.Kind == KindRapidMove && s.Target.X == 99 {
			t.Error("segments after program end must not be parsed")
		}
	}
	if err := prog.Validate(); err != nil {
		t.Errorf("Validate failed: %v", err)
	}
}

func TestValidateRejectsDoubleEnd(t *testing.T) {
	prog := &Program{Segments: []Segment{
		{Index: 0, Kind: KindProgramEnd, Feed: Unchanged, Spindle: Unchanged},
		{Index: 1, Kind: KindProgramEnd, Feed: Unchanged, Spindle: Unchanged},
	}}
	if err := prog.Validate(); err == nil {
		t.Fatal("expected error for two ProgramEnd segments")
	}
}
