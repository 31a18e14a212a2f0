// Audio feature extraction for gcaudiosync
//
// Copyright (C) 2026  The gcaudiosync authors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package audio

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leuchtum/gcaudiosync/pkg/errors"
)

// writeTestWAV encodes int16 PCM samples to a temp WAV file.
func writeTestWAV(t *testing.T, data []int, channels int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.wav")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	enc := wav.NewEncoder(f, testRate, 16, channels, 1)
	buf := &goaudio.IntBuffer{
		Data:           data,
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: testRate},
		SourceBitDepth: 16,
	}
	require.NoError(t, enc.Write(buf))
	require.NoError(t, enc.Close())
	return path
}

func TestReadWAVRoundTrip(t *testing.T) {
	n := testRate / 10
	data := make([]int, n)
	for i := range data {
		data[i] = int(16000 * math.Sin(2*math.Pi*440*float64(i)/testRate))
	}
	path := writeTestWAV(t, data, 1)

	samples, rate, err := ReadWAV(path)
	require.NoError(t, err)
	assert.Equal(t, testRate, rate)
	require.Len(t, samples, n)
	for i := 0; i < n; i += 997 {
		want := float64(data[i]) / 32768
		assert.InDelta(t, want, samples[i], 1e-9)
	}
}

func TestReadWAVDownmixesStereo(t *testing.T) {
	// Left and right cancel: the mono mix is silent.
	n := 1000
	data := make([]int, 2*n)
	for i := 0; i < n; i++ {
		data[2*i] = 8000
		data[2*i+1] = -8000
	}
	path := writeTestWAV(t, data, 2)

	samples, _, err := ReadWAV(path)
	require.NoError(t, err)
	require.Len(t, samples, n)
	for _, s := range samples {
		assert.InDelta(t, 0, s, 1e-9)
	}
}

func TestReadWAVRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.wav")
	require.NoError(t, os.WriteFile(path, []byte("this is not audio"), 0o644))

	_, _, err := ReadWAV(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrAudioFormat))
}

func TestReadWAVMissingFile(t *testing.T) {
	_, _, err := ReadWAV(filepath.Join(t.TempDir(), "nope.wav"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrAudioFormat))
}
