// Synchronization pipeline for gcaudiosync
//
// Copyright (C) 2026  The gcaudiosync authors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package gcaudiosync

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leuchtum/gcaudiosync/pkg/cncparam"
	"github.com/leuchtum/gcaudiosync/pkg/errors"
	"github.com/leuchtum/gcaudiosync/pkg/gcode"
	"github.com/leuchtum/gcaudiosync/pkg/vec"
)

const rate = 44100

func testProfile() *cncparam.Profile {
	p := cncparam.Default()
	p.StartPosition = vec.Vec3{}
	p.ToolChangePosition = vec.Vec3{}
	p.Accel = vec.Vec3{X: 4000, Y: 4000, Z: 4000}
	p.Decel = vec.Vec3{X: 4000, Y: 4000, Z: 4000}
	return p
}

// recording builds silence / spindle tone / silence, with the tone
// span stretched by rate drift.
func recording(lead, toneDur, tail float64) []float64 {
	var s []float64
	s = append(s, make([]float64, int(lead*rate))...)
	n := int(toneDur * rate)
	for i := 0; i < n; i++ {
		s = append(s, 0.3*math.Sin(2*math.Pi*2000*float64(i)/rate))
	}
	return append(s, make([]float64, int(tail*rate))...)
}

func TestSynchronizeEndToEnd(t *testing.T) {
	// Spindle runs for the 2 s dwell; the recording starts 0.5 s early
	// and runs 5% slow.
	prof := testProfile()
	prog, err := gcode.Parse("M3 S8000\nG4 P2000\nM5\nM30\n", prof)
	require.NoError(t, err)
	samples := recording(0.5, 2.1, 0.5)

	res, err := Synchronize(context.Background(), prog, prof, samples, rate)
	require.NoError(t, err)
	require.NotNil(t, res.Warp)

	assert.InDelta(t, 2.0, res.Duration, 1e-9)
	assert.Greater(t, res.Confidence, 0.0)
	require.NotEmpty(t, res.Observed)
	require.NotEmpty(t, res.Expected)

	// The spindle start near audio t=0.5 maps close to program t=0,
	// the stop near audio t=2.6 close to program t=2.
	assert.InDelta(t, 0.0, res.ProgramTimeAt(0.5), 0.15)
	assert.InDelta(t, 2.0, res.ProgramTimeAt(2.6), 0.15)

	// Round trip through the inverse
	at := res.AudioTimeAt(1.0)
	assert.InDelta(t, 1.0, res.ProgramTimeAt(at), 1e-9)

	// Mid-recording the machine sits in the dwell on line 1
	assert.Equal(t, 1, res.LineAt(1.5))
}

func TestSynchronizeMonotoneWarp(t *testing.T) {
	prof := testProfile()
	prog, err := gcode.Parse("M3 S8000\nG4 P2000\nM5\nM30\n", prof)
	require.NoError(t, err)
	res, err := Synchronize(context.Background(), prog, prof, recording(0.5, 2.1, 0.5), rate)
	require.NoError(t, err)

	prev := res.ProgramTimeAt(0)
	for at := 0.1; at < 3.1; at += 0.1 {
		cur := res.ProgramTimeAt(at)
		assert.Greater(t, cur, prev, "warp not monotone at audio t=%.1f", at)
		prev = cur
	}
}

func TestSynchronizeSilentRecording(t *testing.T) {
	prof := testProfile()
	prog, err := gcode.Parse("M3 S8000\nG4 P2000\nM5\nM30\n", prof)
	require.NoError(t, err)

	_, err = Synchronize(context.Background(), prog, prof,
		make([]float64, 3*rate), rate)
	require.Error(t, err)
	assert.True(t, errors.IsInsufficientAlignment(err))
}

func TestSynchronizeCancelled(t *testing.T) {
	prof := testProfile()
	prog, err := gcode.Parse("M3 S8000\nG4 P2000\nM5\nM30\n", prof)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Synchronize(ctx, prog, prof, recording(0.5, 2.1, 0.5), rate)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
