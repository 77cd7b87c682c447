package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelforge/engine/internal/ids"
	"github.com/reelforge/engine/internal/insert"
	"github.com/reelforge/engine/internal/pcm"
	"github.com/reelforge/engine/internal/trackmgr"
	"github.com/reelforge/engine/internal/voicepool"
)

func constAudio(value float32, frames int) *pcm.ImportedAudio {
	samples := make([]float32, frames)
	for i := range samples {
		samples[i] = value
	}
	return &pcm.ImportedAudio{Samples: samples, SampleRate: 48000, Channels: 1}
}

func hasNonZero(buf []float64) bool {
	for _, v := range buf {
		if v != 0 {
			return true
		}
	}
	return false
}

func TestNewEngineStartsAtDefaults(t *testing.T) {
	e := New(48000, 256)
	assert.Equal(t, 1.0, e.MasterVolume())
	assert.False(t, e.IsPlaying())
	assert.Equal(t, uint64(0), e.PositionSamples())
}

func TestSetMasterVolumeClampsToSpecRange(t *testing.T) {
	e := New(48000, 256)
	e.SetMasterVolume(-1)
	assert.Equal(t, 0.0, e.MasterVolume())
	e.SetMasterVolume(10)
	assert.Equal(t, 1.5, e.MasterVolume())
	e.SetMasterVolume(1.2)
	assert.Equal(t, 1.2, e.MasterVolume())
}

func TestProcessProducesSilenceWhenStoppedWithNoVoices(t *testing.T) {
	e := New(48000, 256)
	outL := make([]float64, 256)
	outR := make([]float64, 256)
	e.Process(outL, outR)

	assert.False(t, hasNonZero(outL))
	assert.False(t, hasNonZero(outR))
}

func TestProcessAdvancesTransportOnlyWhilePlaying(t *testing.T) {
	e := New(48000, 256)
	outL := make([]float64, 256)
	outR := make([]float64, 256)

	e.Process(outL, outR)
	assert.Equal(t, uint64(0), e.PositionSamples())

	e.Play()
	e.Process(outL, outR)
	assert.Equal(t, uint64(256), e.PositionSamples())
}

func TestPlayOneShotRendersRegardlessOfTransportState(t *testing.T) {
	e := New(48000, 256)
	audio := constAudio(1.0, 1000)
	e.PlayOneShotToBus(audio, 1.0, 0.0, ids.BusSfx, voicepool.SourceDaw)

	outL := make([]float64, 256)
	outR := make([]float64, 256)
	e.Process(outL, outR) // transport stopped

	assert.True(t, hasNonZero(outL))
	assert.True(t, hasNonZero(outR))
}

func TestTrackClipRendersOnlyWhilePlaying(t *testing.T) {
	e := New(48000, 256)
	track := e.CreateTrack("drums", "#fff", ids.BusMusic)
	path := "fixture.wav"
	e.Cache.Insert(path, constAudio(0.8, 48000))
	e.AddClip(track, path, 0, 1.0, 0)

	outL := make([]float64, 256)
	outR := make([]float64, 256)
	e.Process(outL, outR) // stopped: clip should not render
	assert.False(t, hasNonZero(outL))

	e.Play()
	e.Process(outL, outR)
	assert.True(t, hasNonZero(outL))
	assert.True(t, hasNonZero(outR))
}

func TestMutedTrackProducesNoOutput(t *testing.T) {
	e := New(48000, 256)
	track := e.CreateTrack("drums", "#fff", ids.BusMusic)
	path := "fixture.wav"
	e.Cache.Insert(path, constAudio(0.8, 48000))
	e.AddClip(track, path, 0, 1.0, 0)
	e.UpdateTrack(track, func(tr *trackmgr.Track) { tr.Muted = true })

	e.Play()
	outL := make([]float64, 256)
	outR := make([]float64, 256)
	e.Process(outL, outR)

	assert.False(t, hasNonZero(outL))
	assert.False(t, hasNonZero(outR))
}

func TestSetBusMuteSilencesItsTracks(t *testing.T) {
	e := New(48000, 256)
	track := e.CreateTrack("drums", "#fff", ids.BusMusic)
	path := "fixture.wav"
	e.Cache.Insert(path, constAudio(0.8, 48000))
	e.AddClip(track, path, 0, 1.0, 0)
	e.SetBusMute(ids.BusMusic, true)

	e.Play()
	outL := make([]float64, 256)
	outR := make([]float64, 256)
	e.Process(outL, outR)

	assert.False(t, hasNonZero(outL))
	assert.False(t, hasNonZero(outR))
}

func TestGetBusStateReflectsSetters(t *testing.T) {
	e := New(48000, 256)
	require.True(t, e.SetBusVolume(ids.BusSfx, 0.5))
	require.True(t, e.SetBusPan(ids.BusSfx, -0.5))
	require.True(t, e.SetBusMute(ids.BusSfx, true))

	vol, pan, mute, solo, ok := e.GetBusState(ids.BusSfx)
	require.True(t, ok)
	assert.Equal(t, 0.5, vol)
	assert.Equal(t, -0.5, pan)
	assert.True(t, mute)
	assert.False(t, solo)
}

func TestLoadAndUnloadTrackInsert(t *testing.T) {
	e := New(48000, 256)
	track := e.CreateTrack("drums", "#fff", ids.BusMusic)
	g := insert.NewGainProcessor()

	assert.True(t, e.LoadTrackInsert(track, false, 0, g))
	got := e.UnloadTrackInsert(track, false, 0)
	assert.Same(t, g, got)
}

func TestLoadMasterInsertAffectsOutput(t *testing.T) {
	e := New(48000, 256)
	g := insert.NewGainProcessor()
	g.SetParam(0, 0.0) // silence everything post-master-chain
	require.True(t, e.LoadMasterInsert(0, g))

	e.PlayOneShotToBus(constAudio(1.0, 1000), 1.0, 0.0, ids.BusSfx, voicepool.SourceDaw)
	outL := make([]float64, 256)
	outR := make([]float64, 256)
	e.Process(outL, outR)

	assert.False(t, hasNonZero(outL))
}

func TestProcessOfflineDoesNotAdvanceTransportOrMeters(t *testing.T) {
	e := New(48000, 256)
	track := e.CreateTrack("drums", "#fff", ids.BusMusic)
	path := "fixture.wav"
	e.Cache.Insert(path, constAudio(0.8, 48000))
	e.AddClip(track, path, 0, 1.0, 0)

	outL := make([]float64, 256)
	outR := make([]float64, 256)
	e.ProcessOffline(0, outL, outR)

	assert.True(t, hasNonZero(outL))
	assert.Equal(t, uint64(0), e.PositionSamples())
	assert.Equal(t, 0.0, e.MasterMeter.PeakL())
}

func TestDeleteTrackRemovesItFromFurtherRendering(t *testing.T) {
	e := New(48000, 256)
	track := e.CreateTrack("drums", "#fff", ids.BusMusic)
	assert.True(t, e.DeleteTrack(track))
	assert.False(t, e.DeleteTrack(track))
}

func TestSeekAndPositionSecondsRoundTrip(t *testing.T) {
	e := New(48000, 256)
	e.Seek(2.0)
	assert.InDelta(t, 2.0, e.PositionSeconds(), 1e-9)
}

func TestVoicePoolStatsReflectsActiveOneShots(t *testing.T) {
	e := New(48000, 256)
	e.PlayOneShotToBus(constAudio(1.0, 1000), 1.0, 0.0, ids.BusSfx, voicepool.SourceDaw)
	e.Process(make([]float64, 256), make([]float64, 256))

	stats := e.GetVoicePoolStats()
	assert.Equal(t, 1, stats.ActiveCount)
}

func TestActiveSectionRoundTrips(t *testing.T) {
	e := New(48000, 256)
	e.SetActiveSection(voicepool.SourceSlotLab)
	assert.Equal(t, voicepool.SourceSlotLab, e.GetActiveSection())
}
