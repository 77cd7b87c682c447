package voicepool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelforge/engine/internal/ids"
	"github.com/reelforge/engine/internal/pcm"
)

type fakeBus struct {
	calls map[ids.BusID][][2]float64
}

func newFakeBus() *fakeBus {
	return &fakeBus{calls: make(map[ids.BusID][][2]float64)}
}

func (f *fakeBus) AddVoice(busIdx ids.BusID, left, right []float64) {
	for i := range left {
		f.calls[busIdx] = append(f.calls[busIdx], [2]float64{left[i], right[i]})
	}
}

func constAudio(value float64, frames int) *pcm.ImportedAudio {
	samples := make([]float32, frames)
	for i := range samples {
		samples[i] = float32(value)
	}
	return &pcm.ImportedAudio{Samples: samples, SampleRate: 48000, Channels: 1}
}

func TestPlayOneShotAssignsNonZeroIDAndRenders(t *testing.T) {
	p := New(48000, 256)
	audio := constAudio(1.0, 100)
	id := p.PlayOneShot(audio, 1.0, 0.0, ids.BusSfx, SourceDaw)
	require.NotZero(t, id)

	p.DrainCommands()
	dest := newFakeBus()
	p.Render(dest, 10)

	assert.Len(t, dest.calls[ids.BusSfx], 10)
	assert.NotZero(t, dest.calls[ids.BusSfx][0][0])
}

func TestStatsReflectsActiveVoices(t *testing.T) {
	p := New(48000, 256)
	audio := constAudio(1.0, 100)
	p.PlayOneShot(audio, 1.0, 0.0, ids.BusSfx, SourceDaw)
	p.PlayLooping(audio, 1.0, 0.0, ids.BusMusic, SourceDaw)
	p.DrainCommands()

	stats := p.Stats()
	assert.Equal(t, 2, stats.ActiveCount)
	assert.Equal(t, NumVoices, stats.Max)
	assert.Equal(t, 1, stats.Looping)
	assert.Equal(t, 2, stats.BySource["daw"])
}

func TestNonLoopingVoiceDeactivatesAfterItsSamples(t *testing.T) {
	p := New(48000, 256)
	audio := constAudio(1.0, 10)
	p.PlayOneShot(audio, 1.0, 0.0, ids.BusSfx, SourceDaw)
	p.DrainCommands()

	dest := newFakeBus()
	p.Render(dest, 20) // more frames than the source has

	assert.Equal(t, 0, p.Stats().ActiveCount)
}

func TestLoopingVoiceWrapsAndStaysActive(t *testing.T) {
	p := New(48000, 256)
	audio := constAudio(1.0, 10)
	p.PlayLooping(audio, 1.0, 0.0, ids.BusSfx, SourceDaw)
	p.DrainCommands()

	dest := newFakeBus()
	p.Render(dest, 25) // wraps past the 10-frame source more than twice

	assert.Equal(t, 1, p.Stats().ActiveCount)
}

func TestStopBeginsFadeAndEventuallyDeactivates(t *testing.T) {
	p := New(48000, 256)
	audio := constAudio(1.0, 10000)
	id := p.PlayOneShot(audio, 1.0, 0.0, ids.BusSfx, SourceDaw)
	p.DrainCommands()

	p.Stop(id)
	p.DrainCommands()

	dest := newFakeBus()
	p.Render(dest, int(defaultStopFadeMS/1000.0*48000)+10)

	assert.Equal(t, 0, p.Stats().ActiveCount)
}

func TestStopAllDeactivatesEveryVoice(t *testing.T) {
	p := New(48000, 256)
	audio := constAudio(1.0, 10000)
	p.PlayOneShot(audio, 1.0, 0.0, ids.BusSfx, SourceDaw)
	p.PlayOneShot(audio, 1.0, 0.0, ids.BusMusic, SourceDaw)
	p.DrainCommands()

	p.StopAll()
	p.DrainCommands()

	dest := newFakeBus()
	p.Render(dest, int(defaultStopFadeMS/1000.0*48000)+10)

	assert.Equal(t, 0, p.Stats().ActiveCount)
}

func TestStopSourceOnlyAffectsMatchingSource(t *testing.T) {
	p := New(48000, 256)
	audio := constAudio(1.0, 10000)
	p.PlayOneShot(audio, 1.0, 0.0, ids.BusSfx, SourceDaw)
	p.PlayOneShot(audio, 1.0, 0.0, ids.BusMusic, SourceMiddleware)
	p.DrainCommands()

	p.StopSource(SourceDaw)
	p.DrainCommands()

	dest := newFakeBus()
	p.Render(dest, int(defaultStopFadeMS/1000.0*48000)+10)

	assert.Equal(t, 1, p.Stats().ActiveCount)
	assert.Equal(t, 1, p.Stats().BySource["middleware"])
}

func TestSectionFilterSilencesNonDawSourcesOutsideActiveSection(t *testing.T) {
	p := New(48000, 256)
	audio := constAudio(1.0, 100)
	p.SetActiveSection(SourceSlotLab)
	p.PlayOneShot(audio, 1.0, 0.0, ids.BusAux, SourceMiddleware)
	p.DrainCommands()

	dest := newFakeBus()
	p.Render(dest, 5)

	assert.Empty(t, dest.calls)
	// voice stays active, silently, until section changes or it is stopped.
	assert.Equal(t, 1, p.Stats().ActiveCount)
}

func TestActiveSectionRoundTrips(t *testing.T) {
	p := New(48000, 256)
	assert.Equal(t, SourceDaw, p.ActiveSection())
	p.SetActiveSection(SourceBrowser)
	assert.Equal(t, SourceBrowser, p.ActiveSection())
}

func TestPlayLoopingReportsNonZeroVoiceID(t *testing.T) {
	p := New(48000, 256)
	audio := constAudio(1.0, 10)
	id := p.PlayLooping(audio, 1.0, 0.0, ids.BusSfx, SourceDaw)
	assert.NotZero(t, id)
}

func TestFullPoolStealsOldestNonLoopingVoiceOnPlay(t *testing.T) {
	p := New(48000, 256)
	audio := constAudio(1.0, 10000)
	for i := 0; i < NumVoices; i++ {
		p.PlayOneShot(audio, 1.0, 0.0, ids.BusSfx, SourceDaw)
	}
	p.DrainCommands()
	require.Equal(t, NumVoices, p.Stats().ActiveCount)

	newID := p.PlayOneShot(audio, 1.0, 0.0, ids.BusMusic, SourceDaw)
	p.DrainCommands()

	// Stolen voice is still active (fading out), so the count doesn't drop,
	// but it will later be replaced by the new command.
	assert.Equal(t, NumVoices, p.Stats().ActiveCount)

	dest := newFakeBus()
	p.Render(dest, int(defaultStopFadeMS/1000.0*48000)+10)

	require.NotNil(t, p.findActive(newID))
	assert.Equal(t, ids.BusMusic, p.findActive(newID).bus)
}

func TestFullPoolOfLoopingVoicesDropsPlayCommand(t *testing.T) {
	p := New(48000, 256)
	audio := constAudio(1.0, 10000)
	for i := 0; i < NumVoices; i++ {
		p.PlayLooping(audio, 1.0, 0.0, ids.BusSfx, SourceDaw)
	}
	p.DrainCommands()
	require.Equal(t, NumVoices, p.Stats().ActiveCount)

	newID := p.PlayOneShot(audio, 1.0, 0.0, ids.BusMusic, SourceDaw)
	p.DrainCommands()

	assert.Nil(t, p.findActive(newID))
	assert.Equal(t, NumVoices, p.Stats().ActiveCount)
	assert.Equal(t, NumVoices, p.Stats().Looping)
}
