// Command line interface for gcaudiosync
//
// Copyright (C) 2026  The gcaudiosync authors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// gcaudiosync aligns a G-code machining program with an audio
// recording of its execution. It simulates the program's timeline
// against the machine's limits profile, extracts acoustic events from
// the recording, and prints the fitted time warp between the two.
//
// Usage:
//
//	gcaudiosync -gcode part.nc -audio run.wav [options]
//
// Options:
//
//	-gcode string   G-code program file (required)
//	-audio string   WAV recording of the run (required)
//	-params string  CNC parameter file (default: built-in defaults)
//	-json           Emit the result as JSON on stdout
//	-v              Enable debug logging
//
// Examples:
//
//	# Align with the built-in machine defaults
//	gcaudiosync -gcode part.nc -audio run.wav
//
//	# Align against a specific machine parameter file
//	gcaudiosync -gcode part.nc -audio run.wav -params cnc.txt
//
//	# Machine-readable output
//	gcaudiosync -gcode part.nc -audio run.wav -json
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/leuchtum/gcaudiosync/pkg/audio"
	"github.com/leuchtum/gcaudiosync/pkg/cncparam"
	"github.com/leuchtum/gcaudiosync/pkg/errors"
	"github.com/leuchtum/gcaudiosync/pkg/gcaudiosync"
	"github.com/leuchtum/gcaudiosync/pkg/gcode"
	"github.com/leuchtum/gcaudiosync/pkg/log"
)

var logger = log.New("main")

// report is the JSON output shape.
type report struct {
	Duration   float64  `json:"program_duration_s"`
	Confidence float64  `json:"confidence"`
	Residual   float64  `json:"residual_mad_s"`
	Anchors    []anchor `json:"anchors"`
	Matched    int      `json:"matched_events"`
	Expected   int      `json:"expected_events"`
	Observed   int      `json:"observed_events"`
	Lines      []line   `json:"lines"`
}

type anchor struct {
	Audio   float64 `json:"audio_s"`
	Program float64 `json:"program_s"`
}

type line struct {
	Line       int     `json:"line"`
	AudioStart float64 `json:"audio_start_s"`
	AudioEnd   float64 `json:"audio_end_s"`
}

func main() {
	gcodeFile := flag.String("gcode", "", "G-code program file (required)")
	audioFile := flag.String("audio", "", "WAV recording of the run (required)")
	paramsFile := flag.String("params", "", "CNC parameter file (default: built-in defaults)")
	jsonOut := flag.Bool("json", false, "Emit the result as JSON on stdout")
	verbose := flag.Bool("v", false, "Enable debug logging")
	flag.Parse()

	if *gcodeFile == "" || *audioFile == "" {
		fmt.Fprintln(os.Stderr, "Error: -gcode and -audio are required")
		flag.Usage()
		os.Exit(1)
	}
	if *verbose {
		log.SetGlobalLevel(log.DEBUG)
	}

	if err := run(*gcodeFile, *audioFile, *paramsFile, *jsonOut); err != nil {
		switch {
		case errors.IsConfiguration(err):
			logger.Error("invalid machine parameters: %v", err)
		case errors.IsProgramModel(err):
			logger.Error("invalid G-code program: %v", err)
		case errors.IsInsufficientAlignment(err):
			logger.Error("could not align recording to program: %v", err)
		default:
			logger.Error("%v", err)
		}
		os.Exit(1)
	}
}

func run(gcodePath, audioPath, paramsPath string, jsonOut bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	prof := cncparam.Default()
	if paramsPath != "" {
		var err error
		prof, err = cncparam.Load(paramsPath)
		if err != nil {
			return err
		}
	}

	src, err := os.ReadFile(gcodePath)
	if err != nil {
		return fmt.Errorf("reading G-code file: %w", err)
	}
	prog, err := gcode.Parse(string(src), prof)
	if err != nil {
		return err
	}

	samples, rate, err := audio.ReadWAV(audioPath)
	if err != nil {
		return err
	}
	logger.Info("loaded %d segments, %.1fs of audio at %d Hz",
		len(prog.Segments), float64(len(samples))/float64(rate), rate)

	res, err := gcaudiosync.Synchronize(ctx, prog, prof, samples, rate)
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(os.Stdout, res)
	}
	printText(res)
	return nil
}

func printJSON(w *os.File, res *gcaudiosync.SyncResult) error {
	rep := report{
		Duration:   res.Duration,
		Confidence: res.Confidence,
		Residual:   res.Alignment.ResidualMAD,
		Matched:    len(res.Alignment.Pairs),
		Expected:   len(res.Expected),
		Observed:   len(res.Observed),
	}
	for _, a := range res.Warp.Anchors() {
		rep.Anchors = append(rep.Anchors, anchor{Audio: a.Audio, Program: a.Program})
	}
	for _, lt := range res.LineTimes {
		rep.Lines = append(rep.Lines, line{
			Line:       lt.Line,
			AudioStart: res.AudioTimeAt(lt.Start),
			AudioEnd:   res.AudioTimeAt(lt.End),
		})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}

func printText(res *gcaudiosync.SyncResult) {
	fmt.Printf("Program duration: %.3f s\n", res.Duration)
	fmt.Printf("Matched %d of %d expected events against %d observed\n",
		len(res.Alignment.Pairs), len(res.Expected), len(res.Observed))
	fmt.Printf("Confidence %.2f, residual MAD %.3f s\n",
		res.Confidence, res.Alignment.ResidualMAD)
	fmt.Println("Anchors (audio -> program):")
	for _, a := range res.Warp.Anchors() {
		fmt.Printf("  %8.3f s -> %8.3f s\n", a.Audio, a.Program)
	}
	fmt.Println("Line timing (audio):")
	for _, lt := range res.LineTimes {
		fmt.Printf("  N%-4d %8.3f s .. %8.3f s\n",
			lt.Line, res.AudioTimeAt(lt.Start), res.AudioTimeAt(lt.End))
	}
}
