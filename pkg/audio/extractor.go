// Audio feature extraction for gcaudiosync
//
// Copyright (C) 2026  The gcaudiosync authors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Package audio extracts candidate machine-event timestamps from a
// recorded machining track. The extractor is deliberately weak: it
// detects acoustic transitions and labels them with a rise/fall hint,
// and leaves deciding what they are to the alignment engine.
package audio

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"

	"github.com/leuchtum/gcaudiosync/pkg/errors"
	"github.com/leuchtum/gcaudiosync/pkg/event"
	"github.com/leuchtum/gcaudiosync/pkg/log"
)

var logger = log.New("audio")

const (
	// meanWindow is the rolling-statistics window for the adaptive
	// onset threshold, in frames.
	meanWindow = 31

	// peakRadius is the local-maximum neighborhood, in frames.
	peakRadius = 2

	// derivLag is the frame lag of the smoothed energy derivative.
	derivLag = 2

	// hintDeltaDB is the energy step above which a transition gets a
	// rise or fall hint.
	hintDeltaDB = 1.0

	// minGapSeconds merges detections closer together than this,
	// keeping the stronger one.
	minGapSeconds = 0.05

	energyFloor = 1e-12
)

// Config tunes the feature extractor.
type Config struct {
	// FrameSize is the analysis window length in samples.
	FrameSize int

	// HopSize is the frame advance in samples.
	HopSize int

	// ThresholdK scales the rolling standard deviation in the adaptive
	// onset threshold.
	ThresholdK float64

	// MinStrength drops detections with a normalized strength below
	// this value, in [0,1).
	MinStrength float64
}

// DefaultConfig returns the extraction defaults: 1024/256 frames
// (about 23 ms windows with 6 ms hops at 44.1 kHz).
func DefaultConfig() Config {
	return Config{
		FrameSize:   1024,
		HopSize:     256,
		ThresholdK:  2.5,
		MinStrength: 0.05,
	}
}

// Features holds the frame-wise feature series, index-aligned across
// all slices.
type Features struct {
	// Times are the frame center times in seconds.
	Times []float64

	// Energy is the short-time energy in dB.
	Energy []float64

	// Centroid is the spectral centroid in Hz.
	Centroid []float64

	// Flux is the half-wave rectified spectral flux, normalized to [0,1].
	Flux []float64

	// Onset is the combined onset strength, normalized to [0,1].
	Onset []float64

	// deriv is the smoothed energy derivative in dB, kept for hinting.
	deriv []float64
}

// Extractor computes features and picks event candidates. Stateless
// between calls and safe for concurrent use.
type Extractor struct {
	cfg Config
}

// NewExtractor validates the config and builds an extractor.
func NewExtractor(cfg Config) (*Extractor, error) {
	if cfg.FrameSize <= 0 {
		return nil, errors.ConfigValidationError("frame_size", "must be positive")
	}
	if cfg.HopSize <= 0 || cfg.HopSize > cfg.FrameSize {
		return nil, errors.ConfigValidationError("hop_size", "must be in (0, frame_size]")
	}
	if cfg.ThresholdK <= 0 {
		return nil, errors.ConfigValidationError("threshold_k", "must be positive")
	}
	if cfg.MinStrength < 0 || cfg.MinStrength >= 1 {
		return nil, errors.ConfigValidationError("min_strength", "must be in [0,1)")
	}
	return &Extractor{cfg: cfg}, nil
}

// hamming returns a Hamming window of length n.
func hamming(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}

// Features computes the frame-wise feature series of the track.
func (e *Extractor) Features(samples []float64, sampleRate int) (*Features, error) {
	if sampleRate <= 0 {
		return nil, errors.AudioFormatError("sample rate must be positive")
	}
	if len(samples) < e.cfg.FrameSize {
		return nil, errors.AudioFormatError("audio shorter than one analysis frame")
	}

	n, hop := e.cfg.FrameSize, e.cfg.HopSize
	win := hamming(n)
	binHz := float64(sampleRate) / float64(n)

	f := &Features{}
	frame := make([]float64, n)
	var prevMag []float64
	for start := 0; start+n <= len(samples); start += hop {
		for i := 0; i < n; i++ {
			frame[i] = samples[start+i] * win[i]
		}
		spec := fft.FFTReal(frame)
		mag := make([]float64, n/2)
		for i := range mag {
			mag[i] = cmplx.Abs(spec[i])
		}

		var energy, magSum, weighted, flux float64
		for k, m := range mag {
			energy += m * m
			magSum += m
			weighted += float64(k) * binHz * m
			if prevMag != nil {
				if d := m - prevMag[k]; d > 0 {
					flux += d
				}
			}
		}
		centroid := 0.0
		if magSum > energyFloor {
			centroid = weighted / magSum
		}

		f.Times = append(f.Times, (float64(start)+float64(n)/2)/float64(sampleRate))
		f.Energy = append(f.Energy, 10*math.Log10(energy+energyFloor))
		f.Centroid = append(f.Centroid, centroid)
		f.Flux = append(f.Flux, flux)
		prevMag = mag
	}

	f.deriv = energyDerivative(f.Energy)
	f.Flux = normalized(f.Flux)
	f.Onset = onsetStrength(f.Flux, f.deriv)
	return f, nil
}

// energyDerivative returns the smoothed frame-to-frame energy change:
// the mean of the next derivLag energies minus the mean of the
// previous derivLag.
func energyDerivative(energy []float64) []float64 {
	d := make([]float64, len(energy))
	for i := range energy {
		var after, before float64
		var na, nb int
		for k := 0; k < derivLag; k++ {
			if j := i + k; j < len(energy) {
				after += energy[j]
				na++
			}
			if j := i - 1 - k; j >= 0 {
				before += energy[j]
				nb++
			}
		}
		if na == 0 || nb == 0 {
			continue
		}
		d[i] = after/float64(na) - before/float64(nb)
	}
	return d
}

// normalized scales a non-negative series to [0,1] by its maximum.
func normalized(xs []float64) []float64 {
	max := 0.0
	for _, x := range xs {
		if x > max {
			max = x
		}
	}
	if max <= 0 {
		return xs
	}
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = x / max
	}
	return out
}

// onsetStrength combines normalized flux with the normalized magnitude
// of the energy derivative, so both energy rises (flux) and energy
// falls (derivative) register.
func onsetStrength(fluxN, deriv []float64) []float64 {
	absDeriv := make([]float64, len(deriv))
	for i, d := range deriv {
		absDeriv[i] = math.Abs(d)
	}
	absDeriv = normalized(absDeriv)

	onset := make([]float64, len(fluxN))
	for i := range onset {
		onset[i] = math.Max(fluxN[i], absDeriv[i])
	}
	return onset
}

// Extract computes features and picks the observed events: onset
// strength exceeding a rolling mean + K·std threshold, local maxima
// only, close detections merged, strengths normalized to [0,1].
// Deterministic for identical input.
func (e *Extractor) Extract(samples []float64, sampleRate int) ([]event.Observed, error) {
	f, err := e.Features(samples, sampleRate)
	if err != nil {
		return nil, err
	}

	type candidate struct {
		frame  int
		excess float64
	}
	var cands []candidate
	for i := range f.Onset {
		thr := rollingThreshold(f.Onset, i, e.cfg.ThresholdK)
		if f.Onset[i] <= thr {
			continue
		}
		if !localMax(f.Onset, i, peakRadius) {
			continue
		}
		cands = append(cands, candidate{frame: i, excess: f.Onset[i] - thr})
	}
	if len(cands) == 0 {
		logger.Warn("no acoustic transitions detected in %d frames", len(f.Onset))
		return nil, nil
	}

	// Merge candidates closer than the minimum gap, strongest wins
	gap := int(minGapSeconds * float64(sampleRate) / float64(e.cfg.HopSize))
	if gap < 1 {
		gap = 1
	}
	var merged []candidate
	for _, c := range cands {
		if n := len(merged); n > 0 && c.frame-merged[n-1].frame < gap {
			if c.excess > merged[n-1].excess {
				merged[n-1] = c
			}
			continue
		}
		merged = append(merged, c)
	}

	maxExcess := 0.0
	for _, c := range merged {
		if c.excess > maxExcess {
			maxExcess = c.excess
		}
	}

	var out []event.Observed
	for _, c := range merged {
		strength := 1.0
		if maxExcess > 0 {
			strength = c.excess / maxExcess
		}
		if strength < e.cfg.MinStrength {
			continue
		}
		out = append(out, event.Observed{
			Time:     f.Times[c.frame],
			Hint:     hintFor(f.deriv[c.frame]),
			Strength: strength,
		})
	}
	logger.Debug("extracted %d observed events from %d frames", len(out), len(f.Onset))
	return out, nil
}

// rollingThreshold returns mean + k·std of the onset series over a
// window centered on i.
func rollingThreshold(onset []float64, i int, k float64) float64 {
	lo := i - meanWindow/2
	if lo < 0 {
		lo = 0
	}
	hi := i + meanWindow/2 + 1
	if hi > len(onset) {
		hi = len(onset)
	}
	n := float64(hi - lo)
	var sum float64
	for _, x := range onset[lo:hi] {
		sum += x
	}
	mean := sum / n
	var varsum float64
	for _, x := range onset[lo:hi] {
		varsum += (x - mean) * (x - mean)
	}
	return mean + k*math.Sqrt(varsum/n)
}

// localMax reports whether onset[i] is maximal within ±radius.
func localMax(onset []float64, i, radius int) bool {
	for j := i - radius; j <= i+radius; j++ {
		if j < 0 || j >= len(onset) || j == i {
			continue
		}
		if onset[j] > onset[i] {
			return false
		}
	}
	return true
}

// hintFor maps a local energy step to a weak direction hint.
func hintFor(derivDB float64) event.Hint {
	switch {
	case derivDB > hintDeltaDB:
		return event.HintRise
	case derivDB < -hintDeltaDB:
		return event.HintFall
	default:
		return event.HintNone
	}
}
