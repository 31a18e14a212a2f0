// Motion profiling for gcaudiosync
//
// Copyright (C) 2026  The gcaudiosync authors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Package profiler simulates the timed execution of a machining
// program against a machine limits profile. It produces a sampled
// motion trace, the expected machine events in program time, and the
// per-line time spans used to answer "which line was the machine on
// at time t".
package profiler

import (
	"fmt"
	"math"
	"sort"

	"github.com/leuchtum/gcaudiosync/pkg/cncparam"
	"github.com/leuchtum/gcaudiosync/pkg/errors"
	"github.com/leuchtum/gcaudiosync/pkg/event"
	"github.com/leuchtum/gcaudiosync/pkg/gcode"
	"github.com/leuchtum/gcaudiosync/pkg/log"
	"github.com/leuchtum/gcaudiosync/pkg/vec"
)

var logger = log.New("profiler")

const (
	// DefaultSampleInterval is the motion trace sampling step in seconds.
	DefaultSampleInterval = 0.01

	// distEps is the path length below which a move is treated as
	// stationary.
	distEps = 1e-9

	// collinearDot is the minimum dot product of unit directions for
	// two straight moves to count as one continued line.
	collinearDot = 1 - 1e-9
)

// Sample is one point of the motion trace.
type Sample struct {
	// T is the program time in seconds.
	T float64

	// Pos is the tool position in mm.
	Pos vec.Vec3

	// Feed is the instantaneous path speed in mm/s.
	Feed float64

	// Spindle is the expected spindle speed in RPM.
	Spindle float64
}

// MotionTrace is the sampled machine state, strictly increasing in T.
type MotionTrace []Sample

// LineTime is the time span one source line occupied.
type LineTime struct {
	Line       int
	Start, End float64
}

// Result is the full output of profiling one program.
type Result struct {
	Trace     MotionTrace
	Events    []event.Expected
	LineTimes []LineTime
	Duration  float64
}

// LineAt returns the source line active at program time t, or -1 when
// t lies outside the program.
func (r *Result) LineAt(t float64) int {
	if len(r.LineTimes) == 0 || t < 0 || t > r.Duration {
		return -1
	}
	line := -1
	for _, lt := range r.LineTimes {
		if lt.Start <= t {
			line = lt.Line
		}
	}
	return line
}

// Option configures a Profiler.
type Option func(*Profiler)

// WithSampleInterval overrides the trace sampling step.
func WithSampleInterval(seconds float64) Option {
	return func(p *Profiler) { p.sampleInterval = seconds }
}

// Profiler turns programs into timed motion traces. Safe for reuse
// across programs; not safe for concurrent use.
type Profiler struct {
	prof           *cncparam.Profile
	sampleInterval float64
}

// New builds a Profiler over the given limits profile. The profile is
// re-validated here so a hand-built profile fails at construction, not
// mid-trace.
func New(prof *cncparam.Profile, opts ...Option) (*Profiler, error) {
	if prof == nil {
		return nil, errors.ConfigValidationError("profile", "limits profile is required")
	}
	if err := prof.Validate(); err != nil {
		return nil, err
	}
	p := &Profiler{prof: prof, sampleInterval: DefaultSampleInterval}
	for _, o := range opts {
		o(p)
	}
	if p.sampleInterval <= 0 {
		return nil, errors.ConfigValidationError("sample_interval", "sampling step must be positive")
	}
	return p, nil
}

// run carries the mutable state of one profiling pass.
type run struct {
	prof *cncparam.Profile

	t   float64
	pos vec.Vec3

	feed         float64 // modal feed, mm/min; 0 means never commanded
	warnedNoFeed bool

	spindleOn    bool
	spindleSpeed float64 // RPM

	carryV float64 // entry velocity promised by collinear chaining

	phases []phase
	events []event.Expected
	curve  spindleCurve
	lines  map[int]*LineTime
}

// Profile simulates prog and returns its timed trace. The same program
// and profile always produce the identical result.
func (p *Profiler) Profile(prog *gcode.Program) (*Result, error) {
	if err := prog.Validate(); err != nil {
		return nil, err
	}

	r := &run{
		prof:  p.prof,
		pos:   p.prof.StartPosition,
		curve: spindleCurve{{t0: 0, from: 0, to: 0}},
		lines: make(map[int]*LineTime),
	}

	for i := range prog.Segments {
		seg := &prog.Segments[i]
		start := r.t
		if err := r.step(seg, prog.Segments[i+1:]); err != nil {
			return nil, err
		}
		r.touchLine(seg.Index, start, r.t)
	}

	res := &Result{
		Events:   r.events,
		Duration: r.t,
	}
	sort.SliceStable(res.Events, func(a, b int) bool {
		if res.Events[a].Time != res.Events[b].Time {
			return res.Events[a].Time < res.Events[b].Time
		}
		return res.Events[a].Line < res.Events[b].Line
	})
	for _, lt := range r.lines {
		res.LineTimes = append(res.LineTimes, *lt)
	}
	sort.Slice(res.LineTimes, func(a, b int) bool {
		return res.LineTimes[a].Line < res.LineTimes[b].Line
	})
	res.Trace = p.sampleTrace(r)
	return res, nil
}

// step advances the run over one segment. rest is the unprocessed tail
// of the program, used for the collinear chaining lookahead.
func (r *run) step(seg *gcode.Segment, rest []gcode.Segment) error {
	switch seg.Kind {
	case gcode.KindLinearMove, gcode.KindRapidMove:
		r.updateFeed(seg)
		r.applySpindleWord(seg)
		return r.stepStraight(seg, rest)

	case gcode.KindArcMove:
		r.updateFeed(seg)
		r.applySpindleWord(seg)
		return r.stepArc(seg)

	case gcode.KindDwell:
		r.carryV = 0
		d := seg.DwellMs
		if d < 0 {
			d = r.prof.DefaultPauseMs
		}
		dur := d / 1000
		r.emit(event.Pause, seg.Index, dur)
		r.holdPhase(seg.Index, dur)
		return nil

	case gcode.KindSpindle:
		r.updateFeed(seg)
		r.applySpindleCommand(seg)
		return nil

	case gcode.KindToolChange:
		r.carryV = 0
		return r.stepToolChange(seg)

	case gcode.KindCompensation, gcode.KindCooling:
		// State-only segments: inaudible, no time cost
		return nil

	case gcode.KindProgramEnd:
		r.carryV = 0
		r.emit(event.ProgramEnd, seg.Index, 0)
		return nil

	default:
		return errors.ProgramSegmentError(seg.Index,
			fmt.Sprintf("unhandled segment kind %v", seg.Kind))
	}
}

// updateFeed folds a segment's F word into the modal feed.
func (r *run) updateFeed(seg *gcode.Segment) {
	if seg.Feed >= 0 {
		f := seg.Feed
		if f > r.prof.FeedMax {
			logger.Warn("line %d: feed %g exceeds F_MAX %g, clamping",
				seg.Index, f, r.prof.FeedMax)
			f = r.prof.FeedMax
		}
		if f > 0 {
			r.feed = f
		}
	}
}

// cruiseFor returns the cruise speed in mm/s for a straight or arc
// move segment, given the modal feed in force after its F word.
func (r *run) cruiseFor(kind gcode.SegmentKind) float64 {
	if kind == gcode.KindRapidMove {
		return r.prof.FeedMax / 60
	}
	if r.feed <= 0 {
		if !r.warnedNoFeed {
			logger.Warn("feed move before any F word, assuming F_MAX")
			r.warnedNoFeed = true
		}
		return r.prof.FeedMax / 60
	}
	return r.feed / 60
}

// axisLimited projects per-axis limits onto a unit path direction and
// returns the tightest path accel/decel.
func axisLimited(unit vec.Vec3, accel, decel vec.Vec3) (a, d float64) {
	a, d = math.Inf(1), math.Inf(1)
	comps := [3][3]float64{
		{math.Abs(unit.X), accel.X, decel.X},
		{math.Abs(unit.Y), accel.Y, decel.Y},
		{math.Abs(unit.Z), accel.Z, decel.Z},
	}
	for _, c := range comps {
		if c[0] < 1e-12 {
			continue
		}
		a = math.Min(a, c[1]/c[0])
		d = math.Min(d, c[2]/c[0])
	}
	if math.IsInf(a, 1) {
		// Degenerate zero direction; caller skips such moves
		a, d = accel.X, decel.X
	}
	return a, d
}

func (r *run) stepStraight(seg *gcode.Segment, rest []gcode.Segment) error {
	delta := seg.Target.Sub(r.pos)
	dist := delta.Norm()
	if dist < distEps {
		r.carryV = 0
		return nil
	}
	unit := delta.Scale(1 / dist)
	acc, dec := axisLimited(unit, r.prof.Accel, r.prof.Decel)
	vc := r.cruiseFor(seg.Kind)

	v0 := math.Min(r.carryV, vc)
	r.carryV = 0

	v1 := 0.0
	if r.prof.ChainCollinear && !seg.ExactStop {
		if nv, ok := r.chainVelocity(seg, unit, v0, vc, dist, acc, dec, rest); ok {
			v1 = nv
			r.carryV = nv
		}
	}

	ph := phase{
		line:   seg.Index,
		kind:   phaseStraight,
		startT: r.t,
		start:  r.pos,
		dir:    unit,
		dist:   dist,
		tr:     planTrapezoid(dist, v0, v1, vc, acc, dec),
	}
	r.phases = append(r.phases, ph)
	r.t += ph.duration()
	r.pos = seg.Target
	return nil
}

// chainVelocity reports the junction velocity into the next straight
// move when this move continues the same line at the same speed. The
// junction speed is capped by what this move can reach from v0 over
// dist and by what the next move can shed down to a stop, so neither
// profile overruns its segment.
func (r *run) chainVelocity(seg *gcode.Segment, unit vec.Vec3, v0, vc, dist, acc, dec float64, rest []gcode.Segment) (float64, bool) {
	next := nextStraight(rest)
	if next == nil {
		return 0, false
	}
	nd := next.Target.Sub(seg.Target)
	ndist := nd.Norm()
	if ndist < distEps {
		return 0, false
	}
	if nd.Scale(1/ndist).Dot(unit) < collinearDot {
		return 0, false
	}

	// Next move's cruise speed under the feed in force after this line
	feed := r.feed
	if next.Feed > 0 {
		feed = math.Min(next.Feed, r.prof.FeedMax)
	}
	var nv float64
	if next.Kind == gcode.KindRapidMove {
		nv = r.prof.FeedMax / 60
	} else if feed > 0 {
		nv = feed / 60
	} else {
		nv = r.prof.FeedMax / 60
	}
	if math.Abs(nv-vc) > 1e-9 {
		return 0, false
	}

	// Collinear moves share the path direction, so this move's limits
	// apply to the next one as well.
	jv := math.Min(vc, math.Min(
		math.Sqrt(v0*v0+2*acc*dist),
		math.Sqrt(2*dec*ndist)))
	return jv, true
}

// nextStraight returns the next motion-or-timing segment if it is a
// straight move. State-only segments are transparent; everything else
// breaks the chain.
func nextStraight(rest []gcode.Segment) *gcode.Segment {
	for i := range rest {
		switch rest[i].Kind {
		case gcode.KindCompensation, gcode.KindCooling:
			continue
		case gcode.KindLinearMove, gcode.KindRapidMove:
			return &rest[i]
		default:
			return nil
		}
	}
	return nil
}

func (r *run) stepArc(seg *gcode.Segment) error {
	r.carryV = 0

	center := r.pos.Add(vec.Vec3{X: seg.CenterI, Y: seg.CenterJ})
	rx, ry := r.pos.X-center.X, r.pos.Y-center.Y
	radius := math.Hypot(rx, ry)
	if radius < distEps {
		return errors.ProgramSegmentError(seg.Index, "arc radius is zero")
	}
	ex, ey := seg.Target.X-center.X, seg.Target.Y-center.Y
	endRadius := math.Hypot(ex, ey)
	if math.Abs(endRadius-radius) > 0.01+1e-4*radius {
		logger.Warn("line %d: arc end point is off the circle by %.3f mm",
			seg.Index, math.Abs(endRadius-radius))
	}

	a0 := math.Atan2(ry, rx)
	a1 := math.Atan2(ey, ex)
	sweep := a1 - a0
	if seg.Clockwise {
		if sweep >= -1e-12 {
			sweep -= 2 * math.Pi
		}
	} else {
		if sweep <= 1e-12 {
			sweep += 2 * math.Pi
		}
	}

	zDelta := seg.Target.Z - r.pos.Z
	arcLen := radius * math.Abs(sweep)
	dist := math.Hypot(arcLen, zDelta)

	// The tangent sweeps the whole XY plane, so both planar limits
	// bind; the helical Z component is constant along the path.
	acc := math.Min(r.prof.Accel.X, r.prof.Accel.Y)
	dec := math.Min(r.prof.Decel.X, r.prof.Decel.Y)
	if dist > 0 && math.Abs(zDelta) > distEps {
		uz := math.Abs(zDelta) / dist
		acc = math.Min(acc, r.prof.Accel.Z/uz)
		dec = math.Min(dec, r.prof.Decel.Z/uz)
	}

	vc := r.cruiseFor(seg.Kind)
	ph := phase{
		line:   seg.Index,
		kind:   phaseArc,
		startT: r.t,
		start:  r.pos,
		center: vec.Vec3{X: center.X, Y: center.Y, Z: r.pos.Z},
		radius: radius,
		angle0: a0,
		sweep:  sweep,
		zDelta: zDelta,
		dist:   dist,
		tr:     planTrapezoid(dist, 0, 0, vc, acc, dec),
	}
	r.phases = append(r.phases, ph)
	r.t += ph.duration()
	r.pos = seg.Target
	return nil
}

func (r *run) stepToolChange(seg *gcode.Segment) error {
	delta := r.prof.ToolChangePosition.Sub(r.pos)
	if dist := delta.Norm(); dist >= distEps {
		unit := delta.Scale(1 / dist)
		acc, dec := axisLimited(unit, r.prof.Accel, r.prof.Decel)
		ph := phase{
			line:   seg.Index,
			kind:   phaseStraight,
			startT: r.t,
			start:  r.pos,
			dir:    unit,
			dist:   dist,
			tr:     planTrapezoid(dist, 0, 0, r.prof.FeedMax/60, acc, dec),
		}
		r.phases = append(r.phases, ph)
		r.t += ph.duration()
		r.pos = r.prof.ToolChangePosition
	}

	r.emit(event.ToolChangeStart, seg.Index, 0)
	r.holdPhase(seg.Index, r.prof.ToolChangeMs/1000)
	r.emit(event.ToolChangeEnd, seg.Index, 0)
	return nil
}

// applySpindleWord handles an S word riding on a motion line: the
// speed change takes effect when the line starts.
func (r *run) applySpindleWord(seg *gcode.Segment) {
	if seg.Spindle < 0 || !r.spindleOn {
		return
	}
	r.setSpindleSpeed(seg.Index, seg.Spindle)
}

// applySpindleCommand handles a dedicated spindle segment (M3/M4/M5,
// bare S or F lines).
func (r *run) applySpindleCommand(seg *gcode.Segment) {
	if !seg.SpindleOn {
		if r.spindleOn {
			r.emit(event.SpindleStop, seg.Index, 0)
			r.rampSpindle(0, r.prof.SpindleRampDown)
			r.spindleOn = false
		}
		return
	}

	if r.spindleOn {
		if seg.Spindle >= 0 {
			r.setSpindleSpeed(seg.Index, seg.Spindle)
		}
		return
	}

	// Bare F lines parse as spindle segments without a speed word; they
	// must not start a stopped spindle.
	if seg.Spindle < 0 && seg.Feed >= 0 {
		return
	}

	speed := r.spindleSpeed
	if seg.Spindle >= 0 {
		speed = r.resolveSpindle(seg.Spindle)
	}
	// Commanding zero speed keeps a stopped spindle stopped
	if speed == 0 {
		return
	}
	r.spindleOn = true
	r.spindleSpeed = speed
	r.emit(event.SpindleStart, seg.Index, speed)
	r.rampSpindle(speed, r.prof.SpindleRampUp)
}

// setSpindleSpeed applies a new commanded speed to a running spindle.
// A resolved speed of zero stops it.
func (r *run) setSpindleSpeed(line int, commanded float64) {
	speed := r.resolveSpindle(commanded)
	if speed == r.spindleSpeed {
		return
	}
	if speed == 0 {
		r.spindleSpeed = 0
		r.spindleOn = false
		r.emit(event.SpindleStop, line, 0)
		r.rampSpindle(0, r.prof.SpindleRampDown)
		return
	}
	slope := r.prof.SpindleRampUp
	if speed < r.spindleSpeed {
		slope = r.prof.SpindleRampDown
	}
	r.spindleSpeed = speed
	r.emit(event.FeedChange, line, speed)
	r.rampSpindle(speed, slope)
}

// resolveSpindle maps a commanded S value to an absolute RPM, honoring
// the profile's absolute/relative S convention and the spindle cap.
func (r *run) resolveSpindle(commanded float64) float64 {
	s := commanded
	if !r.prof.SpindleIsAbsolute {
		s = r.spindleSpeed + commanded
	}
	return math.Min(math.Max(s, 0), r.prof.SpindleMax)
}

// rampSpindle appends the trace-level speed transition starting now.
// A command issued mid-ramp continues from the speed actually reached.
func (r *run) rampSpindle(to, slope float64) {
	from := r.curve.at(r.t)
	r.curve = append(r.curve, spindleRamp{t0: r.t, from: from, to: to, slope: slope})
}

func (r *run) holdPhase(line int, dur float64) {
	if dur <= 0 {
		return
	}
	r.phases = append(r.phases, phase{
		line:   line,
		kind:   phaseHold,
		startT: r.t,
		start:  r.pos,
		hold:   dur,
	})
	r.t += dur
}

func (r *run) emit(k event.Kind, line int, payload float64) {
	r.events = append(r.events, event.Expected{
		Time:    r.t,
		Kind:    k,
		Line:    line,
		Payload: payload,
	})
}

func (r *run) touchLine(line int, start, end float64) {
	if lt, ok := r.lines[line]; ok {
		if end > lt.End {
			lt.End = end
		}
		return
	}
	r.lines[line] = &LineTime{Line: line, Start: start, End: end}
}
