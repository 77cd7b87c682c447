package bounce

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelforge/engine/internal/pcm"
)

type fakeOffliner struct {
	value float64
}

func (f *fakeOffliner) ProcessOffline(startSample int64, outL, outR []float64) {
	for i := range outL {
		outL[i] = f.value
		outR[i] = f.value
	}
}

func TestFormatFilenameExpandsStrftimePattern(t *testing.T) {
	at := time.Date(2026, time.March, 5, 13, 4, 5, 0, time.UTC)
	name, err := FormatFilename("mix-%Y%m%d-%H%M%S.wav", at)
	require.NoError(t, err)
	assert.Equal(t, "mix-20260305-130405.wav", name)
}

func TestFormatFilenameRejectsInvalidPattern(t *testing.T) {
	_, err := FormatFilename("%", time.Now())
	assert.Error(t, err)
}

func TestRenderWritesRoundTrippableWAV(t *testing.T) {
	dir := t.TempDir()
	req := Request{
		Start:           0,
		End:             10 * time.Millisecond,
		SampleRate:      48000,
		BlockSize:       64,
		FilenamePattern: "bounce.wav",
		OutputDir:       dir,
	}

	result, err := Render(context.Background(), &fakeOffliner{value: 0.5}, req)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "bounce.wav"), result.Path)
	assert.Greater(t, result.Frames, int64(0))

	audio, err := pcm.Load(result.Path)
	require.NoError(t, err)
	assert.Equal(t, 48000, audio.SampleRate)
	assert.Equal(t, 2, audio.Channels)
	require.NotEmpty(t, audio.Samples)
	assert.InDelta(t, 0.5, audio.Samples[0], 1e-3)
}

func TestRenderRejectsNonPositiveDuration(t *testing.T) {
	req := Request{
		Start:           10 * time.Millisecond,
		End:             5 * time.Millisecond,
		SampleRate:      48000,
		BlockSize:       64,
		FilenamePattern: "bounce.wav",
		OutputDir:       t.TempDir(),
	}
	_, err := Render(context.Background(), &fakeOffliner{}, req)
	assert.Error(t, err)
}

func TestRenderRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req := Request{
		Start:           0,
		End:             time.Second,
		SampleRate:      48000,
		BlockSize:       64,
		FilenamePattern: "bounce.wav",
		OutputDir:       t.TempDir(),
	}
	_, err := Render(ctx, &fakeOffliner{}, req)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFloatToInt16ClampsToRange(t *testing.T) {
	assert.Equal(t, int16(32767), floatToInt16(2.0))
	assert.Equal(t, int16(-32767), floatToInt16(-2.0))
	assert.Equal(t, int16(0), floatToInt16(0.0))
}
