// Unified error handling for gcaudiosync
//
// Copyright (C) 2026  The gcaudiosync authors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Unified error handling for the G-code/audio synchronizer.
//
// All core errors carry an ErrorCode so callers can distinguish the
// three recoverable-by-caller categories: invalid limits profile,
// malformed program segment, and alignment with too few anchors.

package errors

import (
	"fmt"
)

// ErrorCode represents the category of error
type ErrorCode string

const (
	// Configuration errors (invalid limits profile)
	ErrConfigMissingKey ErrorCode = "CONFIG_MISSING_KEY"
	ErrConfigParse      ErrorCode = "CONFIG_PARSE"
	ErrConfigValidation ErrorCode = "CONFIG_VALIDATION"

	// Program model errors (malformed segment)
	ErrProgramSegment ErrorCode = "PROGRAM_SEGMENT"
	ErrProgramState   ErrorCode = "PROGRAM_STATE"

	// Audio input errors
	ErrAudioFormat ErrorCode = "AUDIO_FORMAT"

	// Alignment errors
	ErrAlignInsufficient ErrorCode = "ALIGN_INSUFFICIENT"
)

// SyncError is the unified error type for the synchronizer core
type SyncError struct {
	// Code is the error category
	Code ErrorCode

	// Message is a human-readable error description
	Message string

	// Key is the parameter key (for configuration errors)
	Key string

	// Line is the G-code source line index (for program model errors)
	Line int

	// Err wraps the underlying error
	Err error

	// Context provides additional context
	Context map[string]interface{}
}

// Error implements the error interface
func (e *SyncError) Error() string {
	switch {
	case e.Key != "":
		return fmt.Sprintf("[%s] %s (key %q)", e.Code, e.Message, e.Key)
	case e.Line >= 0:
		return fmt.Sprintf("[%s] %s (line %d)", e.Code, e.Message, e.Line)
	default:
		return fmt.Sprintf("[%s] %s", e.Code, e.Message)
	}
}

// Unwrap returns the underlying error
func (e *SyncError) Unwrap() error {
	return e.Err
}

// SetKey sets the parameter key
func (e *SyncError) SetKey(key string) *SyncError {
	e.Key = key
	return e
}

// SetLine sets the G-code source line index
func (e *SyncError) SetLine(line int) *SyncError {
	e.Line = line
	return e
}

// SetContext adds additional context
func (e *SyncError) SetContext(key string, value interface{}) *SyncError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// New creates a new SyncError
func New(code ErrorCode, message string) *SyncError {
	return &SyncError{
		Code:    code,
		Message: message,
		Line:    -1,
	}
}

// Wrap wraps an existing error with a code and message
func Wrap(err error, code ErrorCode, message string) *SyncError {
	e := New(code, message)
	e.Err = err
	return e
}

// Configuration errors

// ConfigMissingKeyError creates an error for a missing required parameter
func ConfigMissingKeyError(key string) *SyncError {
	return New(ErrConfigMissingKey, fmt.Sprintf("required parameter %q not found", key)).
		SetKey(key)
}

// ConfigParseError creates an error for an unparseable parameter value
func ConfigParseError(key, value string, err error) *SyncError {
	return Wrap(err, ErrConfigParse, fmt.Sprintf("parameter %q: cannot parse value %q", key, value)).
		SetKey(key)
}

// ConfigValidationError creates an error for a parameter that fails validation
func ConfigValidationError(key, reason string) *SyncError {
	return New(ErrConfigValidation, fmt.Sprintf("parameter %q: %s", key, reason)).
		SetKey(key)
}

// Program model errors

// ProgramSegmentError creates an error for a malformed program segment.
// line is the source sequence index of the offending segment.
func ProgramSegmentError(line int, reason string) *SyncError {
	return New(ErrProgramSegment, reason).SetLine(line)
}

// ProgramStateError creates an error for an invalid program-wide state
// (e.g., missing or duplicated program end).
func ProgramStateError(reason string) *SyncError {
	return New(ErrProgramState, reason)
}

// Audio input errors

// AudioFormatError creates an error for audio input the extractor
// cannot work with (unreadable file, unsupported encoding, too short).
func AudioFormatError(reason string) *SyncError {
	return New(ErrAudioFormat, reason)
}

// Alignment errors

// InsufficientAlignmentError creates an error for an alignment that
// produced fewer than two usable anchors.
func InsufficientAlignmentError(anchors int) *SyncError {
	return New(ErrAlignInsufficient,
		fmt.Sprintf("alignment produced %d anchors, need at least 2 to fit a time warp", anchors)).
		SetContext("anchors", anchors)
}

// Is checks if an error matches the given error code
func Is(err error, code ErrorCode) bool {
	for err != nil {
		if se, ok := err.(*SyncError); ok && se.Code == code {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// IsConfiguration checks if an error is a limits-profile error
func IsConfiguration(err error) bool {
	return Is(err, ErrConfigMissingKey) ||
		Is(err, ErrConfigParse) ||
		Is(err, ErrConfigValidation)
}

// IsProgramModel checks if an error is a program model error
func IsProgramModel(err error) bool {
	return Is(err, ErrProgramSegment) || Is(err, ErrProgramState)
}

// IsInsufficientAlignment checks if an error reports too few anchors
func IsInsufficientAlignment(err error) bool {
	return Is(err, ErrAlignInsufficient)
}
