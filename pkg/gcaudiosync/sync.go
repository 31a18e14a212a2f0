// Synchronization pipeline for gcaudiosync
//
// Copyright (C) 2026  The gcaudiosync authors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Package gcaudiosync aligns a machining program's simulated timeline
// with a recording of its execution. It runs the motion profiler and
// the audio feature extractor, matches their event sequences, and
// returns the time warp between audio time and program time.
package gcaudiosync

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/leuchtum/gcaudiosync/pkg/align"
	"github.com/leuchtum/gcaudiosync/pkg/audio"
	"github.com/leuchtum/gcaudiosync/pkg/cncparam"
	"github.com/leuchtum/gcaudiosync/pkg/event"
	"github.com/leuchtum/gcaudiosync/pkg/gcode"
	"github.com/leuchtum/gcaudiosync/pkg/log"
	"github.com/leuchtum/gcaudiosync/pkg/profiler"
)

var logger = log.New("sync")

// Option overrides a pipeline default.
type Option func(*options)

type options struct {
	audioCfg       audio.Config
	alignCfg       align.Config
	sampleInterval float64
}

// WithAudioConfig replaces the feature-extraction config.
func WithAudioConfig(cfg audio.Config) Option {
	return func(o *options) { o.audioCfg = cfg }
}

// WithAlignConfig replaces the alignment config.
func WithAlignConfig(cfg align.Config) Option {
	return func(o *options) { o.alignCfg = cfg }
}

// WithSampleInterval overrides the motion trace sampling step in
// seconds.
func WithSampleInterval(seconds float64) Option {
	return func(o *options) { o.sampleInterval = seconds }
}

// SyncResult is the outcome of one synchronization run.
type SyncResult struct {
	// Warp maps between audio time and program time.
	Warp *align.TimeWarp

	// Alignment carries the matching and its diagnostics.
	Alignment *align.Alignment

	// Confidence mirrors Alignment.Confidence, in [0,1].
	Confidence float64

	// Expected and Observed are the two event sequences that were
	// aligned.
	Expected []event.Expected
	Observed []event.Observed

	// Trace is the sampled motion state in program time.
	Trace profiler.MotionTrace

	// LineTimes are the per-line program time spans.
	LineTimes []profiler.LineTime

	// Duration is the simulated program duration in seconds.
	Duration float64

	motion *profiler.Result
}

// ProgramTimeAt converts an audio timestamp to program time.
func (r *SyncResult) ProgramTimeAt(audioT float64) float64 {
	return r.Warp.Map(audioT)
}

// AudioTimeAt converts a program timestamp to audio time.
func (r *SyncResult) AudioTimeAt(programT float64) float64 {
	return r.Warp.Inverse(programT)
}

// LineAt returns the source line the machine was executing when the
// recording reached audioT, or -1 when the mapped time falls outside
// the program.
func (r *SyncResult) LineAt(audioT float64) int {
	return r.motion.LineAt(r.Warp.Map(audioT))
}

// Synchronize profiles prog under prof, extracts observed events from
// the audio samples, and aligns the two. Profiling and extraction run
// concurrently; ctx cancels between stages.
func Synchronize(ctx context.Context, prog *gcode.Program, prof *cncparam.Profile,
	samples []float64, sampleRate int, opts ...Option) (*SyncResult, error) {

	o := &options{
		audioCfg:       audio.DefaultConfig(),
		alignCfg:       align.DefaultConfig(),
		sampleInterval: profiler.DefaultSampleInterval,
	}
	for _, opt := range opts {
		opt(o)
	}

	var (
		motion   *profiler.Result
		observed []event.Observed
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		p, err := profiler.New(prof, profiler.WithSampleInterval(o.sampleInterval))
		if err != nil {
			return err
		}
		motion, err = p.Profile(prog)
		return err
	})
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		e, err := audio.NewExtractor(o.audioCfg)
		if err != nil {
			return err
		}
		observed, err = e.Extract(samples, sampleRate)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	logger.Debug("profiled %.2fs program with %d expected events, %d observed",
		motion.Duration, len(motion.Events), len(observed))

	al, warp, err := align.Align(motion.Events, observed, o.alignCfg)
	if err != nil {
		return nil, err
	}

	return &SyncResult{
		Warp:       warp,
		Alignment:  al,
		Confidence: al.Confidence,
		Expected:   motion.Events,
		Observed:   observed,
		Trace:      motion.Trace,
		LineTimes:  motion.LineTimes,
		Duration:   motion.Duration,
		motion:     motion,
	}, nil
}
