// G-code program model for gcaudiosync
//
// Copyright (C) 2026  The gcaudiosync authors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package gcode

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/leuchtum/gcaudiosync/pkg/cncparam"
	"github.com/leuchtum/gcaudiosync/pkg/errors"
	"github.com/leuchtum/gcaudiosync/pkg/log"
	"github.com/leuchtum/gcaudiosync/pkg/vec"
)

var logger = log.New("gcode")

var reParenComment = regexp.MustCompile(`\([^)]*\)`)

// word is one letter/value pair of a G-code line.
type word struct {
	letter byte
	value  float64
}

// splitWords strips comments and splits a line into letter/value words.
func splitWords(index int, line string) ([]word, error) {
	ln := strings.TrimSpace(line)
	if idx := strings.IndexByte(ln, ';'); idx >= 0 {
		ln = ln[:idx]
	}
	ln = strings.TrimSpace(reParenComment.ReplaceAllString(ln, " "))
	if ln == "" {
		return nil, nil
	}

	var words []word
	for _, f := range strings.Fields(ln) {
		letter := f[0]
		if letter >= 'a' && letter <= 'z' {
			letter -= 'a' - 'A'
		}
		if letter < 'A' || letter > 'Z' {
			return nil, errors.ProgramSegmentError(index,
				fmt.Sprintf("invalid G-code word %q", f))
		}
		if letter == 'N' {
			// Line numbers carry no information for the simulator
			continue
		}
		if len(f) == 1 {
			words = append(words, word{letter: letter})
			continue
		}
		v, err := strconv.ParseFloat(f[1:], 64)
		if err != nil {
			return nil, errors.ProgramSegmentError(index,
				fmt.Sprintf("invalid value in G-code word %q", f))
		}
		words = append(words, word{letter: letter, value: v})
	}
	return words, nil
}

// parserState is the modal state carried across lines.
type parserState struct {
	position     vec.Vec3
	absolute     bool
	motionGroup  SegmentKind // modal motion command (G0/G1/G2/G3)
	arcClockwise bool        // direction of the modal arc group
}

// Parse turns G-code text into a Program. The parser resolves modal
// state (current position, absolute/relative mode, modal motion group)
// so every emitted segment carries an absolute target. It performs no
// validation beyond what the simulator needs; unknown commands are
// logged and skipped.
func Parse(src string, prof *cncparam.Profile) (*Program, error) {
	prog := &Program{}
	st := parserState{
		position:    prof.StartPosition,
		absolute:    true,
		motionGroup: KindRapidMove,
	}

	for index, line := range strings.Split(src, "\n") {
		words, err := splitWords(index, line)
		if err != nil {
			return nil, err
		}
		if len(words) == 0 {
			continue
		}
		if err := parseLine(prog, &st, index, words, prof); err != nil {
			return nil, err
		}
		if n := len(prog.Segments); n > 0 && prog.Segments[n-1].Kind == KindProgramEnd {
			break
		}
	}

	// A program without an explicit end still terminates
	if n := len(prog.Segments); n == 0 || prog.Segments[n-1].Kind != KindProgramEnd {
		logger.Warn("program has no end-of-program command, appending one")
		prog.Segments = append(prog.Segments, Segment{
			Index:   nextIndex(prog),
			Kind:    KindProgramEnd,
			Feed:    Unchanged,
			Spindle: Unchanged,
		})
	}

	if err := prog.Validate(); err != nil {
		return nil, err
	}
	return prog, nil
}

func nextIndex(prog *Program) int {
	if len(prog.Segments) == 0 {
		return 0
	}
	return prog.Segments[len(prog.Segments)-1].Index + 1
}

// parseLine emits the segments of one source line.
func parseLine(prog *Program, st *parserState, index int, words []word, prof *cncparam.Profile) error {
	var (
		hasG, hasM       bool
		gCode, mCode     int
		hasX, hasY, hasZ bool
		x, y, z          float64
		hasI, hasJ       bool
		iVal, jVal       float64
		feed             = Unchanged
		spindle          = Unchanged
		dwellMs          = Unchanged
		exactStop        bool
		comp             *bool
	)

	for _, w := range words {
		switch w.letter {
		case 'G':
			code := int(w.value)
			switch code {
			case 0, 1, 2, 3:
				hasG = true
				gCode = code
				st.motionGroup = motionKind(code)
				if code == 2 || code == 3 {
					st.arcClockwise = code == 2
				}
			case 4:
				hasG = true
				gCode = 4
			case 9:
				exactStop = true
			case 40:
				v := false
				comp = &v
			case 41, 42:
				v := true
				comp = &v
			case 90:
				st.absolute = true
			case 91:
				st.absolute = false
			case 17, 21, 54, 64:
				// Plane select, metric units, work offsets, path mode:
				// accepted and irrelevant to timing
			default:
				logger.Warn("line %d: ignoring unsupported G%d", index, code)
			}
		case 'M':
			hasM = true
			mCode = int(w.value)
		case 'X':
			hasX, x = true, w.value
		case 'Y':
			hasY, y = true, w.value
		case 'Z':
			hasZ, z = true, w.value
		case 'I':
			hasI, iVal = true, w.value
		case 'J':
			hasJ, jVal = true, w.value
		case 'F':
			feed = w.value
		case 'S':
			spindle = w.value
		case 'P':
			dwellMs = w.value
		case 'T':
			// Tool preselect; the change itself happens on M6
		case 'K', 'R':
			return errors.ProgramSegmentError(index,
				fmt.Sprintf("unsupported arc word %c (only I/J center offsets are handled)", w.letter))
		default:
			logger.Warn("line %d: ignoring word %c%g", index, w.letter, w.value)
		}
	}

	target := st.position
	if hasX || hasY || hasZ {
		if st.absolute {
			if hasX {
				target.X = x
			}
			if hasY {
				target.Y = y
			}
			if hasZ {
				target.Z = z
			}
		} else {
			if hasX {
				target.X += x
			}
			if hasY {
				target.Y += y
			}
			if hasZ {
				target.Z += z
			}
		}
	}

	if comp != nil {
		prog.Segments = append(prog.Segments, Segment{
			Index: index, Kind: KindCompensation,
			CompensationOn: *comp,
			Feed:           Unchanged, Spindle: Unchanged,
		})
	}

	switch {
	case hasG && gCode == 4:
		// G4 dwell: P in ms, S in seconds (S is not a spindle speed here)
		if dwellMs < 0 && spindle >= 0 {
			dwellMs = spindle * 1000
			spindle = Unchanged
		}
		prog.Segments = append(prog.Segments, Segment{
			Index: index, Kind: KindDwell,
			DwellMs: dwellMs,
			Feed:    Unchanged, Spindle: Unchanged,
		})
		return nil

	case hasM:
		return parseMCommand(prog, st, index, mCode, spindle, prof)
	}

	// Motion line (explicit G0..G3 or modal continuation with axis words)
	if hasX || hasY || hasZ || hasG {
		kind := st.motionGroup
		seg := Segment{
			Index: index, Kind: kind,
			Target:    target,
			Feed:      feed,
			Spindle:   spindle,
			ExactStop: exactStop,
		}
		if kind == KindArcMove {
			if !hasI && !hasJ {
				return errors.ProgramSegmentError(index, "arc move missing center offset (I/J)")
			}
			seg.CenterI, seg.CenterJ = iVal, jVal
			seg.Clockwise = st.arcClockwise
			if math.Hypot(iVal, jVal) == 0 {
				return errors.ProgramSegmentError(index, "arc move has zero-length center offset")
			}
		}
		st.position = target
		prog.Segments = append(prog.Segments, seg)
		return nil
	}

	// Bare F and/or S words: feed or spindle-speed change in place
	if feed >= 0 || spindle >= 0 {
		prog.Segments = append(prog.Segments, Segment{
			Index: index, Kind: KindSpindle,
			SpindleOn: spindle != 0, // speed-only change keeps direction
			SpindleCW: true,
			Target:    st.position,
			Feed:      feed,
			Spindle:   spindle,
		})
	}
	return nil
}

// parseMCommand maps an M code through the profile's command table.
func parseMCommand(prog *Program, st *parserState, index, code int, spindle float64, prof *cncparam.Profile) error {
	c := prof.Commands
	switch code {
	case c.SpindleStartCW, c.SpindleStartCCW:
		prog.Segments = append(prog.Segments, Segment{
			Index: index, Kind: KindSpindle,
			SpindleOn: true,
			SpindleCW: code == c.SpindleStartCW,
			Target:    st.position,
			Feed:      Unchanged,
			Spindle:   spindle,
		})
	case c.SpindleOff:
		prog.Segments = append(prog.Segments, Segment{
			Index: index, Kind: KindSpindle,
			SpindleOn: false,
			Target:    st.position,
			Feed:      Unchanged, Spindle: Unchanged,
		})
	case c.ToolChange:
		prog.Segments = append(prog.Segments, Segment{
			Index: index, Kind: KindToolChange,
			Feed: Unchanged, Spindle: Unchanged,
		})
		st.position = prof.ToolChangePosition
	case c.CoolingOn, c.CoolingOff:
		prog.Segments = append(prog.Segments, Segment{
			Index: index, Kind: KindCooling,
			CoolingOn: code == c.CoolingOn,
			Feed:      Unchanged, Spindle: Unchanged,
		})
	case c.EndOfProgram, c.Abort, c.Quit, c.ProgAbort:
		prog.Segments = append(prog.Segments, Segment{
			Index: index, Kind: KindProgramEnd,
			Feed: Unchanged, Spindle: Unchanged,
		})
	default:
		logger.Warn("line %d: ignoring unknown M%d", index, code)
	}
	return nil
}

func motionKind(gCode int) SegmentKind {
	switch gCode {
	case 0:
		return KindRapidMove
	case 2, 3:
		return KindArcMove
	default:
		return KindLinearMove
	}
}
