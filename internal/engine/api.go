package engine

import (
	"github.com/reelforge/engine/internal/audiocache"
	"github.com/reelforge/engine/internal/curve"
	"github.com/reelforge/engine/internal/ids"
	"github.com/reelforge/engine/internal/insert"
	"github.com/reelforge/engine/internal/pcm"
	"github.com/reelforge/engine/internal/trackmgr"
	"github.com/reelforge/engine/internal/transport"
	"github.com/reelforge/engine/internal/voicepool"
)

// --- Transport & timing (spec.md section 6) ---

func (e *Engine) Play()    { e.Transport.SetState(transport.Playing) }
func (e *Engine) Pause()   { e.Transport.SetState(transport.Paused) }
func (e *Engine) Stop()    { e.Transport.SetState(transport.Stopped) }
func (e *Engine) Record()  { e.Transport.SetState(transport.Recording) }

func (e *Engine) Seek(seconds float64) { e.Transport.SetSeconds(seconds) }
func (e *Engine) SeekSamples(n uint64) { e.Transport.SetSamples(n) }

func (e *Engine) StartScrub(seconds float64) {
	e.Transport.SetSeconds(seconds)
	e.Transport.SetState(transport.Scrubbing)
	e.Transport.ResetScrubWindow()
}

func (e *Engine) UpdateScrub(seconds, velocity float64) {
	e.Transport.SetSeconds(seconds)
	e.Transport.SetScrubVelocity(velocity)
}

func (e *Engine) StopScrub() { e.Transport.SetState(transport.Stopped) }

func (e *Engine) SetScrubWindowMS(ms uint64) { e.Transport.SetScrubWindowMS(ms) }

func (e *Engine) SetVarispeedEnabled(enabled bool) { e.Transport.SetVarispeedEnabled(enabled) }
func (e *Engine) SetVarispeedRate(rate float64)    { e.Transport.SetVarispeedRate(rate) }
func (e *Engine) SetVarispeedSemitones(s float64)  { e.Transport.SetVarispeedSemitones(s) }

func (e *Engine) PositionSamples() uint64 { return e.Transport.Samples() }
func (e *Engine) PositionSeconds() float64 { return e.Transport.Seconds() }
func (e *Engine) IsPlaying() bool          { return e.Transport.IsPlaying() }

// --- Topology mutation ---

func (e *Engine) CreateTrack(name, color string, bus ids.BusID) ids.TrackID {
	return e.Tracks.CreateTrack(name, color, bus)
}

func (e *Engine) DeleteTrack(id ids.TrackID) bool {
	e.Smoother.RemoveTrack(id)
	e.Automation.RemoveTrack(id)
	e.DelayComp.RemoveTrack(id)
	e.VCA.UnassignTrack(id)
	e.TrackMeters.Remove(id)
	return e.Tracks.DeleteTrack(id)
}

func (e *Engine) UpdateTrack(id ids.TrackID, mutator func(*trackmgr.Track)) bool {
	if !e.Tracks.UpdateTrack(id, mutator) {
		return false
	}
	if t, ok := e.Tracks.Track(id); ok {
		e.ControlRoom.SetTrackSolo(id, t.Soloed)
	}
	return true
}

func (e *Engine) AddClip(track ids.TrackID, sourcePath string, start, duration, sourceOffset float64) ids.ClipID {
	return e.Tracks.CreateClip(track, sourcePath, start, duration, sourceOffset)
}

func (e *Engine) MoveClip(id ids.ClipID, newTrack ids.TrackID, newStart float64) bool {
	return e.Tracks.MoveClip(id, newTrack, newStart)
}

func (e *Engine) ResizeClip(id ids.ClipID, start, duration, sourceOffset float64) bool {
	return e.Tracks.ResizeClip(id, start, duration, sourceOffset)
}

func (e *Engine) SplitClip(id ids.ClipID, at float64) (ids.ClipID, ids.ClipID, bool) {
	return e.Tracks.SplitClip(id, at)
}

func (e *Engine) DuplicateClip(id ids.ClipID) (ids.ClipID, bool) {
	return e.Tracks.DuplicateClip(id)
}

func (e *Engine) DeleteClip(id ids.ClipID) bool { return e.Tracks.DeleteClip(id) }

func (e *Engine) CreateCrossfade(clipA, clipB ids.ClipID, duration float64, shape curve.Shape) (ids.CrossfadeID, bool) {
	return e.Tracks.CreateCrossfade(clipA, clipB, duration, shape)
}

func (e *Engine) DeleteCrossfade(id ids.CrossfadeID) bool { return e.Tracks.DeleteCrossfade(id) }

func (e *Engine) SetLoopRegion(startSec, endSec float64) {
	e.Tracks.SetLoopRegion(startSec, endSec)
	sr := e.sampleRate
	e.Transport.SetLoop(uint64(startSec*sr), uint64(endSec*sr), true)
}

func (e *Engine) SetLoopEnabled(enabled bool) {
	e.Tracks.SetLoopEnabled(enabled)
	start, end, _ := e.Tracks.LoopRegion()
	sr := e.sampleRate
	e.Transport.SetLoop(uint64(start*sr), uint64(end*sr), enabled)
}

func (e *Engine) AddMarker(time float64, name, color string) ids.MarkerID {
	return e.Tracks.AddMarker(time, name, color)
}

// --- Mixer control ---

func (e *Engine) SetBusVolume(bus ids.BusID, linear float64) bool { return e.Buses.SetVolume(bus, linear) }
func (e *Engine) SetBusPan(bus ids.BusID, pan float64) bool       { return e.Buses.SetPan(bus, pan) }
func (e *Engine) SetBusMute(bus ids.BusID, mute bool) bool        { return e.Buses.SetMute(bus, mute) }
func (e *Engine) SetBusSolo(bus ids.BusID, solo bool) bool        { return e.Buses.SetSolo(bus, solo) }

// GetBusState mirrors spec.md 6's get_bus_state(idx).
func (e *Engine) GetBusState(bus ids.BusID) (volume, pan float64, mute, solo, ok bool) {
	s, ok := e.Buses.State(bus)
	return s.Volume, s.Pan, s.Mute, s.Solo, ok
}

// LoadTrackInsert installs processor into a track's chain slot and
// recomputes delay compensation from the track's new total latency.
func (e *Engine) LoadTrackInsert(track ids.TrackID, preFader bool, slot int, processor insert.Processor) bool {
	chain := e.TrackPostChain(track)
	if preFader {
		chain = e.TrackPreChain(track)
	}
	ok := chain.Load(slot, processor)
	if ok {
		e.reportTrackLatency(track)
	}
	return ok
}

func (e *Engine) UnloadTrackInsert(track ids.TrackID, preFader bool, slot int) insert.Processor {
	chain := e.TrackPostChain(track)
	if preFader {
		chain = e.TrackPreChain(track)
	}
	p := chain.Unload(slot)
	e.reportTrackLatency(track)
	return p
}

func (e *Engine) reportTrackLatency(track ids.TrackID) {
	pre := e.TrackPreChain(track)
	post := e.TrackPostChain(track)
	e.DelayComp.ReportLatency(track, pre.TotalLatency()+post.TotalLatency())
}

func (e *Engine) LoadMasterInsert(slot int, processor insert.Processor) bool {
	return e.masterInsert.Load(slot, processor)
}

func (e *Engine) UnloadMasterInsert(slot int) insert.Processor {
	return e.masterInsert.Unload(slot)
}

func (e *Engine) LoadBusInsert(bus ids.BusID, preFader bool, slot int, processor insert.Processor) bool {
	chain := e.Buses.PostChain(bus)
	if preFader {
		chain = e.Buses.PreChain(bus)
	}
	if chain == nil {
		return false
	}
	return chain.Load(slot, processor)
}

// --- Events & voices ---

func (e *Engine) PlayOneShotToBus(audio *pcm.ImportedAudio, volume, pan float64, bus ids.BusID, source voicepool.Source) ids.VoiceID {
	return e.Voices.PlayOneShot(audio, volume, pan, bus, source)
}

func (e *Engine) PlayLoopingToBus(audio *pcm.ImportedAudio, volume, pan float64, bus ids.BusID, source voicepool.Source) ids.VoiceID {
	return e.Voices.PlayLooping(audio, volume, pan, bus, source)
}

func (e *Engine) StopOneShot(id ids.VoiceID)            { e.Voices.Stop(id) }
func (e *Engine) FadeOutOneShot(id ids.VoiceID, fadeSamples int) { e.Voices.FadeOut(id, fadeSamples) }
func (e *Engine) StopAllOneShots()                       { e.Voices.StopAll() }
func (e *Engine) StopSourceOneShots(source voicepool.Source) { e.Voices.StopSource(source) }

func (e *Engine) SetActiveSection(source voicepool.Source) { e.Voices.SetActiveSection(source) }
func (e *Engine) GetActiveSection() voicepool.Source       { return e.Voices.ActiveSection() }
func (e *Engine) GetVoicePoolStats() voicepool.Stats       { return e.Voices.Stats() }

// --- Cache ---

func (e *Engine) CacheLoad(path string) (*pcm.ImportedAudio, bool) { return e.Cache.Load(path) }

func (e *Engine) CachePreloadPathsParallel(paths []string) audiocache.PreloadResult {
	return e.Cache.PreloadPathsParallel(paths)
}

func (e *Engine) CacheSetMaxSize(bytes int64) { e.Cache.SetMaxSize(bytes) }
