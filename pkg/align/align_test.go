// Event sequence alignment for gcaudiosync
//
// Copyright (C) 2026  The gcaudiosync authors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package align

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leuchtum/gcaudiosync/pkg/errors"
	"github.com/leuchtum/gcaudiosync/pkg/event"
)

// fourEvents is a program timeline with a start, a pause, a stop and
// the end.
func fourEvents() []event.Expected {
	return []event.Expected{
		{Time: 0, Kind: event.SpindleStart, Line: 0},
		{Time: 2, Kind: event.Pause, Line: 1},
		{Time: 5, Kind: event.SpindleStop, Line: 2},
		{Time: 9, Kind: event.ProgramEnd, Line: 3},
	}
}

// observedAffine maps the expected times through audio = offset + rate·t
// with hints matching each event's acoustic direction.
func observedAffine(expected []event.Expected, offset, rate float64) []event.Observed {
	var out []event.Observed
	for _, e := range expected {
		h := event.HintFall
		if event.RiseLike(e.Kind) {
			h = event.HintRise
		}
		out = append(out, event.Observed{Time: offset + rate*e.Time, Hint: h, Strength: 1})
	}
	return out
}

func TestAlignAffineRecording(t *testing.T) {
	expected := fourEvents()
	observed := observedAffine(expected, 1.0, 1.05)

	al, warp, err := Align(expected, observed, DefaultConfig())
	require.NoError(t, err)
	require.Len(t, al.Pairs, 4)
	assert.Empty(t, al.UnmatchedExpected)
	assert.Empty(t, al.UnmatchedObserved)
	assert.InDelta(t, 0, al.ResidualMAD, 1e-9)
	assert.Greater(t, al.Confidence, 0.9)

	// Exact at anchors
	assert.InDelta(t, 0, warp.Map(1.0), 1e-9)
	assert.InDelta(t, 2, warp.Map(1.0+1.05*2), 1e-9)
	assert.InDelta(t, 9, warp.Map(1.0+1.05*9), 1e-9)

	// Linear in between and beyond both ends
	assert.InDelta(t, 1, warp.Map(2.05), 1e-9)
	assert.InDelta(t, -1/1.05, warp.Map(0), 1e-9)
	assert.InDelta(t, 10, warp.Map(1.0+1.05*10), 1e-9)

	// Inverse round trip
	for _, at := range []float64{0.5, 3.3, 7.7, 11.0} {
		assert.InDelta(t, at, warp.Inverse(warp.Map(at)), 1e-9)
	}
}

func TestAlignSkipsSpuriousObservation(t *testing.T) {
	expected := fourEvents()
	observed := observedAffine(expected, 1.0, 1.05)
	spurious := event.Observed{Time: 4.0, Hint: event.HintNone, Strength: 0.3}
	observed = append(observed[:2], append([]event.Observed{spurious}, observed[2:]...)...)

	al, _, err := Align(expected, observed, DefaultConfig())
	require.NoError(t, err)
	require.Len(t, al.Pairs, 4)
	assert.Equal(t, []int{2}, al.UnmatchedObserved)
	assert.Empty(t, al.UnmatchedExpected)
}

func TestAlignSkipsInaudibleExpected(t *testing.T) {
	expected := fourEvents()
	observed := observedAffine(expected, 1.0, 1.05)
	// The pause was never heard
	observed = append(observed[:1], observed[2:]...)

	al, warp, err := Align(expected, observed, DefaultConfig())
	require.NoError(t, err)
	require.Len(t, al.Pairs, 3)
	assert.Equal(t, []int{1}, al.UnmatchedExpected)
	assert.InDelta(t, 5, warp.Map(1.0+1.05*5), 1e-9)
}

func TestAlignNonUniformRate(t *testing.T) {
	expected := fourEvents()
	observed := []event.Observed{
		{Time: 1, Hint: event.HintRise, Strength: 1},
		{Time: 3, Hint: event.HintFall, Strength: 1},
		{Time: 7, Hint: event.HintFall, Strength: 1},
		{Time: 12, Hint: event.HintFall, Strength: 1},
	}

	al, warp, err := Align(expected, observed, DefaultConfig())
	require.NoError(t, err)
	require.Len(t, al.Pairs, 4)
	assert.Greater(t, al.ResidualMAD, 0.0, "non-uniform rate should leave residuals")

	// Piecewise linear between the middle anchors: audio 5 lies halfway
	// between anchors (3,2) and (7,5).
	assert.InDelta(t, 3.5, warp.Map(5), 1e-9)

	// Strictly monotone over a sweep
	prev := warp.Map(0)
	for at := 0.25; at <= 13; at += 0.25 {
		cur := warp.Map(at)
		assert.Greater(t, cur, prev)
		prev = cur
	}
}

func TestAlignTieBreakPrefersPlausibleTiming(t *testing.T) {
	// Two candidates for the pause: one on time with no hint (cost
	// 0.25 + 0), one 0.625 s late with a compatible hint (cost
	// 0 + 0.25). Total costs tie exactly; the secondary key must pick
	// the candidate with the lower timing penalty.
	expected := []event.Expected{
		{Time: 0, Kind: event.SpindleStart, Line: 0},
		{Time: 5, Kind: event.Pause, Line: 1},
		{Time: 10, Kind: event.ProgramEnd, Line: 2},
	}
	observed := []event.Observed{
		{Time: 0, Hint: event.HintRise, Strength: 1},
		{Time: 5.0, Hint: event.HintNone, Strength: 0.5},
		{Time: 5.625, Hint: event.HintFall, Strength: 0.5},
		{Time: 10, Hint: event.HintFall, Strength: 1},
	}

	al, _, err := Align(expected, observed, DefaultConfig())
	require.NoError(t, err)
	require.Len(t, al.Pairs, 3)
	assert.Contains(t, al.Pairs, Pair{Expected: 1, Observed: 1},
		"the on-time candidate must win the tie")
	assert.Equal(t, []int{2}, al.UnmatchedObserved)
}

func TestAlignMissingToolChangeStart(t *testing.T) {
	expected := []event.Expected{
		{Time: 0, Kind: event.SpindleStart, Line: 0},
		{Time: 10, Kind: event.ToolChangeStart, Line: 5},
		{Time: 13, Kind: event.ToolChangeEnd, Line: 5},
		{Time: 20, Kind: event.ProgramEnd, Line: 9},
	}
	observed := []event.Observed{
		{Time: 0.2, Strength: 0.9},
		{Time: 13.1, Strength: 0.8},
		{Time: 20.3, Strength: 0.7},
	}

	al, warp, err := Align(expected, observed, DefaultConfig())
	require.NoError(t, err)
	require.Len(t, al.Pairs, 3)
	assert.Equal(t, []int{1}, al.UnmatchedExpected,
		"the inaudible ToolChangeStart must be the one deletion")
	assert.Empty(t, al.UnmatchedObserved)

	anchors := warp.Anchors()
	require.Len(t, anchors, 3)
	for i := 1; i < len(anchors); i++ {
		assert.Greater(t, anchors[i].Audio, anchors[i-1].Audio)
		assert.Greater(t, anchors[i].Program, anchors[i-1].Program)
	}
	assert.Less(t, al.ResidualMAD, 0.2)
}

func TestAlignInsufficientEvents(t *testing.T) {
	expected := fourEvents()

	_, _, err := Align(expected, []event.Observed{{Time: 1}}, DefaultConfig())
	require.Error(t, err)
	assert.True(t, errors.IsInsufficientAlignment(err))

	_, _, err = Align(expected[:1], observedAffine(expected, 0, 1), DefaultConfig())
	require.Error(t, err)
	assert.True(t, errors.IsInsufficientAlignment(err))
}

func TestAlignRejectsBadConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InsertCost = 0
	_, _, err := Align(fourEvents(), observedAffine(fourEvents(), 0, 1), cfg)
	require.Error(t, err)
	assert.True(t, errors.IsConfiguration(err))
}

func TestBuildAnchorsMergesAndFilters(t *testing.T) {
	expected := []event.Expected{
		{Time: 0, Kind: event.SpindleStop},
		{Time: 0, Kind: event.ProgramEnd},
		{Time: 5, Kind: event.SpindleStart},
	}
	observed := []event.Observed{
		{Time: 1.0, Hint: event.HintFall},
		{Time: 1.1, Hint: event.HintFall},
		{Time: 6.0, Hint: event.HintRise},
	}
	anchors := buildAnchors(expected, observed, []Pair{
		{Expected: 0, Observed: 0},
		{Expected: 1, Observed: 1},
		{Expected: 2, Observed: 2},
	})
	// The two program-time-0 pairs collapse into one averaged anchor.
	require.Len(t, anchors, 2)
	assert.InDelta(t, 1.05, anchors[0].Audio, 1e-9)
	assert.InDelta(t, 0, anchors[0].Program, 1e-9)
	assert.InDelta(t, 6.0, anchors[1].Audio, 1e-9)
}
