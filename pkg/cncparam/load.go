// CNC machine parameter handling for gcaudiosync
//
// Copyright (C) 2026  The gcaudiosync authors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package cncparam

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/leuchtum/gcaudiosync/pkg/errors"
	"github.com/leuchtum/gcaudiosync/pkg/log"
)

var logger = log.New("cncparam")

// requiredKeys must all be present in a parameter file. Missing keys
// fail loading; unknown keys are ignored.
var requiredKeys = []string{
	"START_POSITION_X",
	"START_POSITION_Y",
	"START_POSITION_Z",
	"TOOL_CHANGE_POSITION_X",
	"TOOL_CHANGE_POSITION_Y",
	"TOOL_CHANGE_POSITION_Z",
	"S_IS_ABSOLUTE",
	"F_MAX",
	"S_MAX",
	"MAX_ACCELERATION_X",
	"MAX_ACCELERATION_Y",
	"MAX_ACCELERATION_Z",
	"MAX_DECELERATION_X",
	"MAX_DECELERATION_Y",
	"MAX_DECELERATION_Z",
	"DEFAULT_PAUSE_TIME",
	"TOOL_CHANGE_TIME",
}

// Load reads a parameter file and returns a validated Profile.
func Load(path string) (*Profile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigParse,
			fmt.Sprintf("unable to open parameter file %s", path))
	}
	defer f.Close()

	var sb strings.Builder
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		sb.WriteString(scanner.Text())
		sb.WriteString("\n")
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigParse,
			fmt.Sprintf("error reading parameter file %s", path))
	}
	return LoadString(sb.String())
}

// LoadString parses parameter data in the flat "KEY value" format, one
// pair per line. "KEY: value" and "KEY = value" are accepted as well;
// '#' starts a comment.
func LoadString(data string) (*Profile, error) {
	pairs := make(map[string]string)
	for _, raw := range strings.Split(data, "\n") {
		line := raw
		if idx := strings.IndexByte(line, '#'); idx >= 0 {
			line = line[:idx]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var key, value string
		switch {
		case strings.ContainsRune(line, ':'):
			kv := strings.SplitN(line, ":", 2)
			key, value = kv[0], kv[1]
		case strings.ContainsRune(line, '='):
			kv := strings.SplitN(line, "=", 2)
			key, value = kv[0], kv[1]
		default:
			kv := strings.Fields(line)
			if len(kv) != 2 {
				// Not a key/value line - skip it
				continue
			}
			key, value = kv[0], kv[1]
		}
		key = strings.ToUpper(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		if key == "" || value == "" {
			continue
		}
		pairs[key] = value
	}

	for _, key := range requiredKeys {
		if _, ok := pairs[key]; !ok {
			return nil, errors.ConfigMissingKeyError(key)
		}
	}

	p := Default()
	consumed := make(map[string]bool)

	getFloat := func(key string, dst *float64) error {
		v, ok := pairs[key]
		if !ok {
			return nil
		}
		consumed[key] = true
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return errors.ConfigParseError(key, v, err)
		}
		*dst = f
		return nil
	}
	getInt := func(key string, dst *int) error {
		v, ok := pairs[key]
		if !ok {
			return nil
		}
		consumed[key] = true
		// Command codes may be written as "3" or "3.0"
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return errors.ConfigParseError(key, v, err)
		}
		*dst = int(f)
		return nil
	}
	getBool := func(key string, dst *bool) error {
		v, ok := pairs[key]
		if !ok {
			return nil
		}
		consumed[key] = true
		switch strings.ToLower(v) {
		case "1", "true", "yes":
			*dst = true
		case "0", "false", "no":
			*dst = false
		default:
			return errors.ConfigParseError(key, v, fmt.Errorf("not a boolean"))
		}
		return nil
	}

	floatFields := []struct {
		key string
		dst *float64
	}{
		{"START_POSITION_X", &p.StartPosition.X},
		{"START_POSITION_Y", &p.StartPosition.Y},
		{"START_POSITION_Z", &p.StartPosition.Z},
		{"TOOL_CHANGE_POSITION_X", &p.ToolChangePosition.X},
		{"TOOL_CHANGE_POSITION_Y", &p.ToolChangePosition.Y},
		{"TOOL_CHANGE_POSITION_Z", &p.ToolChangePosition.Z},
		{"F_MAX", &p.FeedMax},
		{"S_MAX", &p.SpindleMax},
		{"MAX_ACCELERATION_X", &p.Accel.X},
		{"MAX_ACCELERATION_Y", &p.Accel.Y},
		{"MAX_ACCELERATION_Z", &p.Accel.Z},
		{"MAX_DECELERATION_X", &p.Decel.X},
		{"MAX_DECELERATION_Y", &p.Decel.Y},
		{"MAX_DECELERATION_Z", &p.Decel.Z},
		{"DEFAULT_PAUSE_TIME", &p.DefaultPauseMs},
		{"TOOL_CHANGE_TIME", &p.ToolChangeMs},
		{"MAX_SAGITTA", &p.MaxSagitta},
		{"SPINDLE_RAMP_UP", &p.SpindleRampUp},
		{"SPINDLE_RAMP_DOWN", &p.SpindleRampDown},
	}
	for _, f := range floatFields {
		if err := getFloat(f.key, f.dst); err != nil {
			return nil, err
		}
	}

	intFields := []struct {
		key string
		dst *int
	}{
		{"COMMAND_ABORT", &p.Commands.Abort},
		{"COMMAND_QUIT", &p.Commands.Quit},
		{"COMMAND_PROGABORT", &p.Commands.ProgAbort},
		{"COMMAND_SPINDLE_START_CW", &p.Commands.SpindleStartCW},
		{"COMMAND_SPINDLE_START_CCW", &p.Commands.SpindleStartCCW},
		{"COMMAND_SPINDLE_OFF", &p.Commands.SpindleOff},
		{"COMMAND_TOOL_CHANGE", &p.Commands.ToolChange},
		{"COMMAND_COOLING_ON", &p.Commands.CoolingOn},
		{"COMMAND_COOLING_OFF", &p.Commands.CoolingOff},
		{"COMMAND_END_OF_PROGRAM", &p.Commands.EndOfProgram},
	}
	for _, f := range intFields {
		if err := getInt(f.key, f.dst); err != nil {
			return nil, err
		}
	}

	if err := getBool("S_IS_ABSOLUTE", &p.SpindleIsAbsolute); err != nil {
		return nil, err
	}
	if err := getBool("CHAIN_COLLINEAR", &p.ChainCollinear); err != nil {
		return nil, err
	}

	for key := range pairs {
		if !consumed[key] {
			logger.Warn("ignoring unknown parameter %q", key)
		}
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}
