// Package transport holds the atomic, multi-thread-readable playback
// position described in spec.md section 4.2, plus the varispeed mapping
// from section 4.13.
package transport

import (
	"math"
	"sync/atomic"
)

// State is the transport's play/pause/record/scrub state machine.
type State int32

const (
	Stopped State = iota
	Playing
	Paused
	Recording
	Scrubbing
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	case Recording:
		return "recording"
	case Scrubbing:
		return "scrubbing"
	default:
		return "unknown"
	}
}

const defaultScrubWindowMS = 50

// Position is the authoritative transport: readable by all threads,
// written by the audio thread (advancement) and by the UI thread
// (transport commands), with every field backed by an atomic.
type Position struct {
	samplePosition atomic.Uint64
	sampleRate     atomic.Uint64
	state          atomic.Int32

	loopEnabled atomic.Bool
	loopStart   atomic.Uint64
	loopEnd     atomic.Uint64

	scrubVelocityBits  atomic.Uint64
	scrubWindowSamples atomic.Uint64
	scrubWindowPos     atomic.Uint64

	varispeedEnabled atomic.Bool
	varispeedRateBits atomic.Uint64
}

// New constructs a Position at sample 0, Stopped, at the given sample rate.
func New(sampleRate uint64) *Position {
	p := &Position{}
	p.sampleRate.Store(sampleRate)
	p.varispeedRateBits.Store(math.Float64bits(1.0))
	p.scrubWindowSamples.Store(defaultScrubWindowMS * sampleRate / 1000)
	return p
}

func (p *Position) Samples() uint64    { return p.samplePosition.Load() }
func (p *Position) SampleRate() uint64 { return p.sampleRate.Load() }

func (p *Position) Seconds() float64 {
	sr := p.sampleRate.Load()
	if sr == 0 {
		return 0
	}
	return float64(p.samplePosition.Load()) / float64(sr)
}

func (p *Position) SetSamples(samples uint64) { p.samplePosition.Store(samples) }

func (p *Position) SetSeconds(seconds float64) {
	sr := p.sampleRate.Load()
	if seconds < 0 {
		seconds = 0
	}
	p.samplePosition.Store(uint64(seconds * float64(sr)))
}

func (p *Position) State() State       { return State(p.state.Load()) }
func (p *Position) SetState(s State)   { p.state.Store(int32(s)) }
func (p *Position) IsPlaying() bool    { return p.State() == Playing }
func (p *Position) IsRecording() bool  { return p.State() == Recording }
func (p *Position) IsScrubbing() bool  { return p.State() == Scrubbing }

// ShouldAdvance reports whether the audio thread should auto-advance the
// main sample position this block (Playing or Recording; Scrubbing instead
// advances only the scrub window, per spec.md 4.2).
func (p *Position) ShouldAdvance() bool {
	s := p.State()
	return s == Playing || s == Recording
}

// Advance moves the position forward by frames at unity rate, honoring
// loop wrap. Returns the new sample position. Audio-thread only.
func (p *Position) Advance(frames uint64) uint64 {
	return p.AdvanceWithRate(frames, 1.0)
}

// AdvanceWithRate moves the position forward by round(frames*rate),
// honoring loop wrap, per spec.md 4.2's varispeed-scaled advancement.
// Audio-thread only.
func (p *Position) AdvanceWithRate(frames uint64, rate float64) uint64 {
	delta := uint64(math.Round(float64(frames) * rate))
	newPos := p.samplePosition.Load() + delta

	if p.loopEnabled.Load() {
		start := p.loopStart.Load()
		end := p.loopEnd.Load()
		if end > start && newPos >= end {
			span := end - start
			newPos = start + ((newPos-start)%span)
		}
	}

	p.samplePosition.Store(newPos)
	return newPos
}

// SetLoop configures the loop region in samples and whether it is active.
func (p *Position) SetLoop(startSamples, endSamples uint64, enabled bool) {
	p.loopStart.Store(startSamples)
	p.loopEnd.Store(endSamples)
	p.loopEnabled.Store(enabled)
}

func (p *Position) LoopEnabled() bool            { return p.loopEnabled.Load() }
func (p *Position) LoopRegion() (uint64, uint64) { return p.loopStart.Load(), p.loopEnd.Load() }

// ScrubVelocity returns the current scrub velocity in [-4, 4].
func (p *Position) ScrubVelocity() float64 {
	return math.Float64frombits(p.scrubVelocityBits.Load())
}

// SetScrubVelocity clamps and stores the scrub velocity.
func (p *Position) SetScrubVelocity(v float64) {
	if v > 4 {
		v = 4
	}
	if v < -4 {
		v = -4
	}
	p.scrubVelocityBits.Store(math.Float64bits(v))
}

// ScrubWindowSamples returns the current scrub audition window length.
func (p *Position) ScrubWindowSamples() uint64 { return p.scrubWindowSamples.Load() }

// SetScrubWindowMS sets the scrub audition window length, clamped to
// [10, 200] ms per spec.md section 6.
func (p *Position) SetScrubWindowMS(ms uint64) {
	if ms < 10 {
		ms = 10
	}
	if ms > 200 {
		ms = 200
	}
	sr := p.sampleRate.Load()
	p.scrubWindowSamples.Store(ms * sr / 1000)
}

// ScrubWindowPos returns the current position within the looped scrub window.
func (p *Position) ScrubWindowPos() uint64 { return p.scrubWindowPos.Load() }

// ResetScrubWindow zeroes the scrub window cursor, e.g. on StartScrub.
func (p *Position) ResetScrubWindow() { p.scrubWindowPos.Store(0) }

// AdvanceScrub advances the scrub window by frames*|velocity|, wrapping
// modulo the window length, per spec.md 4.2. Returns the new window
// position and whether the window wrapped this call.
func (p *Position) AdvanceScrub(frames uint64) (uint64, bool) {
	window := p.scrubWindowSamples.Load()
	if window == 0 {
		return 0, false
	}
	velocity := math.Abs(p.ScrubVelocity())
	delta := uint64(math.Round(float64(frames) * velocity))
	pos := p.scrubWindowPos.Load() + delta
	wrapped := pos >= window
	if wrapped {
		pos %= window
	}
	p.scrubWindowPos.Store(pos)
	return pos, wrapped
}

// --- Varispeed (spec.md 4.13) ---

// VarispeedEnabled reports whether tape-style speed scaling is active.
func (p *Position) VarispeedEnabled() bool { return p.varispeedEnabled.Load() }

// SetVarispeedEnabled toggles varispeed.
func (p *Position) SetVarispeedEnabled(enabled bool) { p.varispeedEnabled.Store(enabled) }

// VarispeedRate returns the configured rate in [0.25, 4.0].
func (p *Position) VarispeedRate() float64 {
	return math.Float64frombits(p.varispeedRateBits.Load())
}

// SetVarispeedRate clamps and stores the varispeed rate.
func (p *Position) SetVarispeedRate(rate float64) {
	if rate < 0.25 {
		rate = 0.25
	}
	if rate > 4.0 {
		rate = 4.0
	}
	p.varispeedRateBits.Store(math.Float64bits(rate))
}

// SetVarispeedSemitones sets the rate via a semitone offset.
func (p *Position) SetVarispeedSemitones(semitones float64) {
	p.SetVarispeedRate(SemitonesToVarispeed(semitones))
}

// VarispeedSemitones returns the current rate expressed in semitones.
func (p *Position) VarispeedSemitones() float64 {
	return VarispeedToSemitones(p.VarispeedRate())
}

// EffectivePlaybackRate returns the rate the audio thread should scale
// frame counts by before calling AdvanceWithRate: 1.0 when varispeed is
// disabled, else the configured rate.
func (p *Position) EffectivePlaybackRate() float64 {
	if !p.VarispeedEnabled() {
		return 1.0
	}
	return p.VarispeedRate()
}

// SemitonesToVarispeed maps a semitone offset to a playback-rate multiplier
// the way tape speed changes pitch: rate = 2^(semitones/12).
func SemitonesToVarispeed(semitones float64) float64 {
	return math.Pow(2, semitones/12.0)
}

// VarispeedToSemitones is the inverse of SemitonesToVarispeed.
func VarispeedToSemitones(rate float64) float64 {
	return 12.0 * math.Log2(rate)
}
