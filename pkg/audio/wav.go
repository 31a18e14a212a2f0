// Audio feature extraction for gcaudiosync
//
// Copyright (C) 2026  The gcaudiosync authors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package audio

import (
	"fmt"
	"os"

	"github.com/go-audio/wav"

	"github.com/leuchtum/gcaudiosync/pkg/errors"
)

// ReadWAV decodes a PCM WAV file into mono samples normalized to
// [-1,1] and returns them with the sample rate. Multi-channel input is
// downmixed by averaging.
func ReadWAV(path string) ([]float64, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrAudioFormat,
			fmt.Sprintf("cannot open audio file %q", path))
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, 0, errors.AudioFormatError(
			fmt.Sprintf("%q is not a valid WAV file", path))
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrAudioFormat,
			fmt.Sprintf("decoding PCM data of %q", path))
	}
	if buf.Format == nil || buf.Format.NumChannels < 1 {
		return nil, 0, errors.AudioFormatError("WAV file has no channel format")
	}

	bits := int(dec.BitDepth)
	if bits == 0 {
		bits = buf.SourceBitDepth
	}
	if bits <= 0 || bits > 32 {
		return nil, 0, errors.AudioFormatError(
			fmt.Sprintf("unsupported bit depth %d", bits))
	}
	scale := 1.0 / float64(int64(1)<<(bits-1))

	ch := buf.Format.NumChannels
	frames := len(buf.Data) / ch
	mono := make([]float64, frames)
	for i := 0; i < frames; i++ {
		sum := 0.0
		for c := 0; c < ch; c++ {
			sum += float64(buf.Data[i*ch+c]) * scale
		}
		mono[i] = sum / float64(ch)
	}
	return mono, buf.Format.SampleRate, nil
}
