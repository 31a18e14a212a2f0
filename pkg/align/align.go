// Event sequence alignment for gcaudiosync
//
// Copyright (C) 2026  The gcaudiosync authors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Package align matches the expected event sequence from the motion
// profiler against the observed events from the audio track and fits
// the monotonic time warp between program time and audio time.
//
// The matcher is a forward-only edit-distance DP over the two
// timestamped sequences: an expected event can be substituted with an
// observed one, skipped (the machine action was inaudible), or an
// observed event can be skipped (a spurious noise). Matching never
// reorders events.
package align

import (
	"math"
	"sort"

	"github.com/leuchtum/gcaudiosync/pkg/errors"
	"github.com/leuchtum/gcaudiosync/pkg/event"
	"github.com/leuchtum/gcaudiosync/pkg/log"
)

var logger = log.New("align")

// Config tunes the alignment costs.
type Config struct {
	// InsertCost is the cost of leaving an observed event unmatched.
	InsertCost float64

	// DeleteCost is the cost of leaving an expected event unmatched.
	DeleteCost float64

	// KindMismatchCost is the substitution penalty when the observed
	// hint contradicts the expected event's acoustic direction.
	KindMismatchCost float64

	// GapWeight scales the penalty for divergence between the two
	// events' relative positions in their sequences.
	GapWeight float64

	// MaxDriftRatio is the relative-position divergence considered
	// fully implausible; at this divergence the gap penalty equals
	// GapWeight.
	MaxDriftRatio float64
}

// DefaultConfig returns the alignment defaults.
func DefaultConfig() Config {
	return Config{
		InsertCost:       1.0,
		DeleteCost:       1.0,
		KindMismatchCost: 0.8,
		GapWeight:        2.0,
		MaxDriftRatio:    0.5,
	}
}

func (c Config) validate() error {
	if c.InsertCost <= 0 || c.DeleteCost <= 0 {
		return errors.ConfigValidationError("insert/delete cost", "must be positive")
	}
	if c.KindMismatchCost < 0 || c.GapWeight < 0 {
		return errors.ConfigValidationError("cost weights", "must not be negative")
	}
	if c.MaxDriftRatio <= 0 {
		return errors.ConfigValidationError("max_drift_ratio", "must be positive")
	}
	return nil
}

// Pair is one matched expected/observed index pair.
type Pair struct {
	Expected int
	Observed int
}

// Alignment is the matching plus its diagnostics.
type Alignment struct {
	// Pairs are the matched index pairs, increasing in both indices.
	Pairs []Pair

	// UnmatchedExpected and UnmatchedObserved list the skipped indices.
	UnmatchedExpected []int
	UnmatchedObserved []int

	// Cost is the total DP cost of the chosen matching.
	Cost float64

	// ResidualMAD is the median absolute deviation of the anchors from
	// a single least-squares line through all of them, in seconds. The
	// anchors lie exactly on the fitted piecewise warp, so deviations
	// are measured against the global line instead: high values mean
	// the recording does not follow the program at one steady rate.
	ResidualMAD float64

	// Confidence combines match coverage and hint agreement, in [0,1].
	Confidence float64
}

// neutralHintCost is the substitution penalty when the observed event
// carries no direction hint.
const neutralHintCost = 0.25

// hintCost returns the hint-compatibility part of the substitution
// cost for matching expected kind k with observed hint h.
func hintCost(k event.Kind, h event.Hint, mismatch float64) float64 {
	if h == event.HintNone {
		return neutralHintCost
	}
	if event.RiseLike(k) == (h == event.HintRise) {
		return 0
	}
	return mismatch
}

// Align matches expected against observed and fits the time warp.
// Both inputs must be sorted by time. Fewer than two events on either
// side, or fewer than two usable anchors after matching, yield an
// ALIGN_INSUFFICIENT error; the result is never silently an identity
// mapping.
func Align(expected []event.Expected, observed []event.Observed, cfg Config) (*Alignment, *TimeWarp, error) {
	if err := cfg.validate(); err != nil {
		return nil, nil, err
	}
	if len(expected) < 2 || len(observed) < 2 {
		return nil, nil, errors.InsufficientAlignmentError(0).
			SetContext("expected", len(expected)).
			SetContext("observed", len(observed))
	}

	al := match(expected, observed, cfg)
	anchors := buildAnchors(expected, observed, al.Pairs)
	if len(anchors) < 2 {
		logger.Warn("matching kept %d pairs but only %d usable anchors",
			len(al.Pairs), len(anchors))
		return nil, nil, errors.InsufficientAlignmentError(len(anchors)).
			SetContext("pairs", len(al.Pairs))
	}

	al.ResidualMAD = residualMAD(anchors)
	al.Confidence = confidence(expected, observed, al)
	logger.Info("aligned %d/%d expected to %d/%d observed, MAD %.3fs, confidence %.2f",
		len(al.Pairs), len(expected), len(al.Pairs), len(observed),
		al.ResidualMAD, al.Confidence)
	return al, newWarp(anchors), nil
}

// match runs the DP over the two sequences and backtracks the optimal
// edit script. Equal-cost scripts are broken by the lower accumulated
// time-plausibility penalty, then substitution over deletion over
// insertion.
func match(expected []event.Expected, observed []event.Observed, cfg Config) *Alignment {
	n, m := len(expected), len(observed)

	// Relative positions inside each sequence's time span drive the
	// gap-divergence penalty.
	expTimes := make([]float64, n)
	for i := range expected {
		expTimes[i] = expected[i].Time
	}
	obsTimes := make([]float64, m)
	for j := range observed {
		obsTimes[j] = observed[j].Time
	}
	relE := relativeTimes(expTimes)
	relO := relativeTimes(obsTimes)

	sub := func(i, j int) (cost, gapPen float64) {
		drift := math.Abs(relE[i] - relO[j])
		gapPen = cfg.GapWeight * drift / cfg.MaxDriftRatio
		return hintCost(expected[i].Kind, observed[j].Hint, cfg.KindMismatchCost) + gapPen, gapPen
	}

	const (
		opMatch = iota
		opDelete
		opInsert
	)
	// costEps separates genuinely cheaper paths from float noise; paths
	// tied within it fall through to the secondary key.
	const costEps = 1e-9

	// dp is the edit cost, gp the accumulated time-plausibility penalty
	// of the chosen path. Among equal-cost paths the one with the lower
	// accumulated penalty wins, then substitution over deletion over
	// insertion.
	dp := make([][]float64, n+1)
	gp := make([][]float64, n+1)
	op := make([][]uint8, n+1)
	for i := range dp {
		dp[i] = make([]float64, m+1)
		gp[i] = make([]float64, m+1)
		op[i] = make([]uint8, m+1)
	}
	for i := 1; i <= n; i++ {
		dp[i][0] = dp[i-1][0] + cfg.DeleteCost
		op[i][0] = opDelete
	}
	for j := 1; j <= m; j++ {
		dp[0][j] = dp[0][j-1] + cfg.InsertCost
		op[0][j] = opInsert
	}
	for i := 1; i <= n; i++ {
		for j := 1; j <= m; j++ {
			subCost, subGap := sub(i-1, j-1)
			best := dp[i-1][j-1] + subCost
			bestGap := gp[i-1][j-1] + subGap
			bestOp := uint8(opMatch)
			if c, g := dp[i-1][j]+cfg.DeleteCost, gp[i-1][j]; c < best-costEps || (c < best+costEps && g < bestGap) {
				best, bestGap, bestOp = c, g, opDelete
			}
			if c, g := dp[i][j-1]+cfg.InsertCost, gp[i][j-1]; c < best-costEps || (c < best+costEps && g < bestGap) {
				best, bestGap, bestOp = c, g, opInsert
			}
			dp[i][j], gp[i][j], op[i][j] = best, bestGap, bestOp
		}
	}

	al := &Alignment{Cost: dp[n][m]}
	for i, j := n, m; i > 0 || j > 0; {
		switch op[i][j] {
		case opMatch:
			al.Pairs = append(al.Pairs, Pair{Expected: i - 1, Observed: j - 1})
			i, j = i-1, j-1
		case opDelete:
			al.UnmatchedExpected = append(al.UnmatchedExpected, i-1)
			i--
		default:
			al.UnmatchedObserved = append(al.UnmatchedObserved, j-1)
			j--
		}
	}
	reversePairs(al.Pairs)
	reverseInts(al.UnmatchedExpected)
	reverseInts(al.UnmatchedObserved)
	return al
}

// relativeTimes maps each timestamp to its position in [0,1] within
// the sequence's time span.
func relativeTimes(times []float64) []float64 {
	span := times[len(times)-1] - times[0]
	if span <= 0 {
		span = 1
	}
	rel := make([]float64, len(times))
	for i, t := range times {
		rel[i] = (t - times[0]) / span
	}
	return rel
}

func reversePairs(ps []Pair) {
	for i, j := 0, len(ps)-1; i < j; i, j = i+1, j-1 {
		ps[i], ps[j] = ps[j], ps[i]
	}
}

func reverseInts(xs []int) {
	for i, j := 0, len(xs)-1; i < j; i, j = i+1, j-1 {
		xs[i], xs[j] = xs[j], xs[i]
	}
}

// buildAnchors turns matched pairs into warp anchors: near-duplicate
// times averaged, then a greedy left-to-right filter keeps only
// anchors strictly increasing in both coordinates.
func buildAnchors(expected []event.Expected, observed []event.Observed, pairs []Pair) []Anchor {
	const timeEps = 1e-6

	var raw []Anchor
	for _, p := range pairs {
		raw = append(raw, Anchor{
			Audio:   observed[p.Observed].Time,
			Program: expected[p.Expected].Time,
		})
	}
	sort.Slice(raw, func(a, b int) bool { return raw[a].Audio < raw[b].Audio })

	// Average runs sharing an audio or program timestamp
	var merged []Anchor
	for _, a := range raw {
		if n := len(merged); n > 0 {
			prev := &merged[n-1]
			if math.Abs(a.Audio-prev.Audio) < timeEps || math.Abs(a.Program-prev.Program) < timeEps {
				prev.Audio = (prev.Audio + a.Audio) / 2
				prev.Program = (prev.Program + a.Program) / 2
				continue
			}
		}
		merged = append(merged, a)
	}

	var out []Anchor
	for _, a := range merged {
		if n := len(out); n > 0 {
			if a.Audio <= out[n-1].Audio+timeEps || a.Program <= out[n-1].Program+timeEps {
				continue
			}
		}
		out = append(out, a)
	}
	return out
}

// residualMAD measures how far the anchors deviate from a single
// least-squares line program = a·audio + b.
func residualMAD(anchors []Anchor) float64 {
	n := float64(len(anchors))
	var sx, sy, sxx, sxy float64
	for _, a := range anchors {
		sx += a.Audio
		sy += a.Program
		sxx += a.Audio * a.Audio
		sxy += a.Audio * a.Program
	}
	det := n*sxx - sx*sx
	if det == 0 {
		return 0
	}
	slope := (n*sxy - sx*sy) / det
	intercept := (sy - slope*sx) / n

	res := make([]float64, len(anchors))
	for i, a := range anchors {
		res[i] = math.Abs(a.Program - (slope*a.Audio + intercept))
	}
	sort.Float64s(res)
	mid := len(res) / 2
	if len(res)%2 == 0 {
		return (res[mid-1] + res[mid]) / 2
	}
	return res[mid]
}

// confidence combines match coverage with hint agreement.
func confidence(expected []event.Expected, observed []event.Observed, al *Alignment) float64 {
	if len(al.Pairs) == 0 {
		return 0
	}
	coverage := 2 * float64(len(al.Pairs)) / float64(len(expected)+len(observed))

	agree := 0.0
	for _, p := range al.Pairs {
		switch hintCost(expected[p.Expected].Kind, observed[p.Observed].Hint, 1) {
		case 0:
			agree += 1
		case neutralHintCost:
			agree += 0.5
		}
	}
	return coverage * agree / float64(len(al.Pairs))
}
