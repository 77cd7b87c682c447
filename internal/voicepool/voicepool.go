// Package voicepool implements the OneShotVoicePool from spec.md section
// 4.7: a fixed array of 32 preallocated voices for event-triggered
// playback, independent of the timeline, fed by a lock-free SPSC command
// queue and rendered into bus buffers once per block.
package voicepool

import (
	"math"
	"sync/atomic"

	"github.com/reelforge/engine/internal/ids"
	"github.com/reelforge/engine/internal/pcm"
)

// NumVoices is the fixed pool capacity.
const NumVoices = 32

// commandQueueCapacity matches spec.md 4.7/5's "capacity 256" OneShotCommand queue.
const commandQueueCapacity = 256

// defaultStopFadeMS is ~5 ms at 48 kHz per spec.md 4.7 ("~5 ms (240
// samples at 48 kHz)"); rescaled by sample rate at construction.
const defaultStopFadeMS = 5.0

// Source identifies which part of the system originated a voice, used for
// section filtering (spec.md 4.7's "section filtering").
type Source int

const (
	SourceDaw Source = iota
	SourceSlotLab
	SourceMiddleware
	SourceBrowser
)

func (s Source) String() string {
	switch s {
	case SourceDaw:
		return "daw"
	case SourceSlotLab:
		return "slot_lab"
	case SourceMiddleware:
		return "middleware"
	case SourceBrowser:
		return "browser"
	default:
		return "unknown"
	}
}

type commandKind int

const (
	cmdPlay commandKind = iota
	cmdPlayLooping
	cmdStop
	cmdStopAll
	cmdStopSource
	cmdFadeOut
)

type command struct {
	kind        commandKind
	id          ids.VoiceID
	audio       *pcm.ImportedAudio
	volume      float64
	pan         float64
	bus         ids.BusID
	source      Source
	fadeSamples int
}

type voice struct {
	active             bool
	id                 ids.VoiceID
	audio              *pcm.ImportedAudio
	position           float64 // fractional source-sample position, advances by playback rate
	volume             float64
	pan                float64
	bus                ids.BusID
	source             Source
	looping            bool
	fadeSamplesTotal   int
	fadeSamplesLeft    int
	fadeGain           float64
	fadeDecrementPer   float64

	// pendingPlay/pendingCmd hold a stolen slot's replacement: when this
	// voice was chosen as the oldest non-looping voice to steal, it keeps
	// fading out under its own id/audio until fadeGain reaches zero, at
	// which point Render reactivates the slot from pendingCmd instead of
	// just deactivating it.
	pendingPlay bool
	pendingCmd  command
}

// Pool is the fixed-capacity one-shot voice engine.
type Pool struct {
	voices        [NumVoices]voice
	commands      chan command
	activeSection atomic.Int32 // holds a Source value
	sampleRate    float64

	voiceL, voiceR []float64 // per-block render scratch, reused across calls
}

// New constructs a Pool at the given engine sample rate and block size,
// default active section Daw.
func New(sampleRate float64, blockSize int) *Pool {
	p := &Pool{
		commands:   make(chan command, commandQueueCapacity),
		sampleRate: sampleRate,
		voiceL:     make([]float64, blockSize),
		voiceR:     make([]float64, blockSize),
	}
	p.activeSection.Store(int32(SourceDaw))
	return p
}

// --- UI-thread producer API -------------------------------------------------

// PlayOneShot enqueues a one-shot play command, returning the voice id that
// will be assigned (or 0 if the command queue is full, per the "drop the
// command" policy spec.md 4.7 mandates for an unavailable slot — applied
// symmetrically here to a full queue since the SPSC channel stands in for
// the ring buffer).
func (p *Pool) PlayOneShot(audio *pcm.ImportedAudio, volume, pan float64, bus ids.BusID, source Source) ids.VoiceID {
	return p.enqueuePlay(audio, volume, pan, bus, source, false)
}

// PlayLooping enqueues a looping play command.
func (p *Pool) PlayLooping(audio *pcm.ImportedAudio, volume, pan float64, bus ids.BusID, source Source) ids.VoiceID {
	return p.enqueuePlay(audio, volume, pan, bus, source, true)
}

func (p *Pool) enqueuePlay(audio *pcm.ImportedAudio, volume, pan float64, bus ids.BusID, source Source, looping bool) ids.VoiceID {
	id := ids.NextVoice()
	kind := cmdPlay
	if looping {
		kind = cmdPlayLooping
	}
	c := command{kind: kind, id: id, audio: audio, volume: volume, pan: pan, bus: bus, source: source}
	select {
	case p.commands <- c:
		return id
	default:
		return 0
	}
}

// Stop enqueues a Stop command for id (default ~5ms fade).
func (p *Pool) Stop(id ids.VoiceID) {
	p.trySend(command{kind: cmdStop, id: id})
}

// StopAll enqueues a StopAll command.
func (p *Pool) StopAll() {
	p.trySend(command{kind: cmdStopAll})
}

// StopSource enqueues a StopSource command.
func (p *Pool) StopSource(source Source) {
	p.trySend(command{kind: cmdStopSource, source: source})
}

// FadeOut enqueues a caller-specified fade-out duration for id.
func (p *Pool) FadeOut(id ids.VoiceID, fadeSamples int) {
	p.trySend(command{kind: cmdFadeOut, id: id, fadeSamples: fadeSamples})
}

func (p *Pool) trySend(c command) {
	select {
	case p.commands <- c:
	default:
	}
}

// SetActiveSection changes the process-wide section filter.
func (p *Pool) SetActiveSection(source Source) {
	p.activeSection.Store(int32(source))
}

// ActiveSection reads the process-wide section filter.
func (p *Pool) ActiveSection() Source {
	return Source(p.activeSection.Load())
}

// --- audio-thread consumer / render API -------------------------------------

func (p *Pool) defaultStopFadeSamples() int {
	n := int(defaultStopFadeMS / 1000.0 * p.sampleRate)
	if n < 1 {
		n = 1
	}
	return n
}

// DrainCommands processes every pending command, activating/stopping
// voices. Called at the start of every callback per spec.md 4.7/4.12.
func (p *Pool) DrainCommands() {
	for {
		select {
		case c := <-p.commands:
			p.applyCommand(c)
		default:
			return
		}
	}
}

func (p *Pool) applyCommand(c command) {
	switch c.kind {
	case cmdPlay, cmdPlayLooping:
		if slot := p.firstInactiveSlot(); slot >= 0 {
			p.activateSlot(slot, c)
			return
		}
		// Pool is full: steal the oldest non-looping voice by fading it
		// out fast and stashing c to activate once the fade completes
		// (Render's fade-completion branch does the reactivation). A
		// looping voice is never implicitly stolen; if none qualify the
		// command is dropped.
		if slot := p.oldestStealableSlot(); slot >= 0 {
			p.stealVoice(slot, c)
		}
	case cmdStop:
		if v := p.findActive(c.id); v != nil {
			p.beginFade(v, p.defaultStopFadeSamples())
		}
	case cmdStopAll:
		fade := p.defaultStopFadeSamples()
		for i := range p.voices {
			if p.voices[i].active {
				p.beginFade(&p.voices[i], fade)
			}
		}
	case cmdStopSource:
		fade := p.defaultStopFadeSamples()
		for i := range p.voices {
			if p.voices[i].active && p.voices[i].source == c.source {
				p.beginFade(&p.voices[i], fade)
			}
		}
	case cmdFadeOut:
		if v := p.findActive(c.id); v != nil {
			p.beginFade(v, c.fadeSamples)
		}
	}
}

func (p *Pool) beginFade(v *voice, fadeSamples int) {
	if fadeSamples < 1 {
		fadeSamples = 1
	}
	v.fadeSamplesTotal = fadeSamples
	v.fadeSamplesLeft = fadeSamples
	v.fadeDecrementPer = v.fadeGain / float64(fadeSamples)
}

func (p *Pool) firstInactiveSlot() int {
	for i := range p.voices {
		if !p.voices[i].active {
			return i
		}
	}
	return -1
}

// activateSlot resets voices[slot] to play command c from scratch.
func (p *Pool) activateSlot(slot int, c command) {
	v := &p.voices[slot]
	*v = voice{
		active:   true,
		id:       c.id,
		audio:    c.audio,
		volume:   c.volume,
		pan:      c.pan,
		bus:      c.bus,
		source:   c.source,
		looping:  c.kind == cmdPlayLooping,
		fadeGain: 1.0,
	}
}

// oldestStealableSlot returns the active, non-looping, not-already-pending
// voice with the smallest id (ids.VoiceID is a process-wide monotonic
// counter, so smallest id is oldest), or -1 if none qualify.
func (p *Pool) oldestStealableSlot() int {
	best := -1
	for i := range p.voices {
		v := &p.voices[i]
		if !v.active || v.looping || v.pendingPlay {
			continue
		}
		if best < 0 || v.id < p.voices[best].id {
			best = i
		}
	}
	return best
}

// stealVoice begins a fast fade-out on voices[slot] and stashes c to be
// activated once that fade reaches zero.
func (p *Pool) stealVoice(slot int, c command) {
	v := &p.voices[slot]
	v.pendingPlay = true
	v.pendingCmd = c
	p.beginFade(v, p.defaultStopFadeSamples())
}

func (p *Pool) findActive(id ids.VoiceID) *voice {
	for i := range p.voices {
		if p.voices[i].active && p.voices[i].id == id {
			return &p.voices[i]
		}
	}
	return nil
}

// BusAdder is the destination a voice mixes into; internal/busgraph.Bus
// satisfies this without voicepool importing busgraph (avoiding a cycle
// since busgraph hosts track/voice summation for the whole engine).
type BusAdder interface {
	AddVoice(busIdx ids.BusID, left, right []float64)
}

// Render advances every active, section-visible voice by len(left) frames
// and accumulates its output into dest via busIdx-addressed buffers.
// Grounded on rf-bridge/playback.rs's OneShotVoice::fill_buffer: mono-sum
// then equal-power re-spread, volume*fadeGain, position wrap for looping.
func (p *Pool) Render(dest BusAdder, frames int) {
	section := p.ActiveSection()
	voiceL := p.voiceL[:frames]
	voiceR := p.voiceR[:frames]

	for i := range p.voices {
		v := &p.voices[i]
		if !v.active {
			continue
		}
		if !sectionVisible(section, v.source) {
			continue // kept alive but silent; resumes without retrigger
		}

		for f := 0; f < frames; f++ {
			l, r, ok := p.sampleVoice(v)
			if !ok {
				voiceL[f] = 0
				voiceR[f] = 0
				continue
			}
			gain := v.volume * v.fadeGain
			voiceL[f] = l * gain
			voiceR[f] = r * gain

			if v.fadeSamplesLeft > 0 {
				v.fadeGain -= v.fadeDecrementPer
				v.fadeSamplesLeft--
				if v.fadeGain <= 0 || v.fadeSamplesLeft == 0 {
					v.fadeGain = 0
					if v.pendingPlay {
						pending := v.pendingCmd
						p.activateSlot(i, pending)
					} else {
						v.active = false
					}
				}
			}
			if !v.advancePosition(1) {
				v.active = false
			}
		}
		dest.AddVoice(v.bus, voiceL, voiceR)
	}
}

func sectionVisible(active, voiceSource Source) bool {
	switch voiceSource {
	case SourceDaw, SourceBrowser:
		return true
	default:
		return active == voiceSource
	}
}

// sampleVoice reads one frame from the voice's source at its current
// fractional position, applying equal-power pan per spec.md 4.7 step 1.
func (p *Pool) sampleVoice(v *voice) (left, right float64, ok bool) {
	if v.audio == nil || len(v.audio.Samples) == 0 {
		return 0, 0, false
	}
	frameIdx := int(v.position)
	channels := v.audio.Channels
	if channels < 1 {
		channels = 1
	}
	totalFrames := len(v.audio.Samples) / channels
	if frameIdx >= totalFrames {
		if v.looping {
			frameIdx = frameIdx % totalFrames
		} else {
			return 0, 0, false
		}
	}

	var mono float64
	if channels >= 2 {
		l := float64(v.audio.Samples[frameIdx*channels])
		r := float64(v.audio.Samples[frameIdx*channels+1])
		mono = (l + r) / 2
	} else {
		mono = float64(v.audio.Samples[frameIdx])
	}

	theta := (v.pan + 1) * math.Pi / 4
	left = mono * math.Cos(theta)
	right = mono * math.Sin(theta)
	return left, right, true
}

// advancePosition moves the voice forward by frames, wrapping for looping
// voices and reporting false when a non-looping voice has run off its end.
func (v *voice) advancePosition(frames float64) bool {
	v.position += frames
	if v.audio == nil {
		return false
	}
	channels := v.audio.Channels
	if channels < 1 {
		channels = 1
	}
	totalFrames := float64(len(v.audio.Samples) / channels)
	if v.position >= totalFrames {
		if v.looping && totalFrames > 0 {
			v.position = math.Mod(v.position, totalFrames)
			return true
		}
		return false
	}
	return true
}

// Stats mirrors spec.md 4.7's get_voice_pool_stats().
type Stats struct {
	ActiveCount int
	Max         int
	Looping     int
	BySource    map[string]int
	ByBus       map[ids.BusID]int
}

// Stats computes a snapshot of pool occupancy for UI instrumentation.
func (p *Pool) Stats() Stats {
	s := Stats{Max: NumVoices, BySource: make(map[string]int), ByBus: make(map[ids.BusID]int)}
	for i := range p.voices {
		v := &p.voices[i]
		if !v.active {
			continue
		}
		s.ActiveCount++
		if v.looping {
			s.Looping++
		}
		s.BySource[v.source.String()]++
		s.ByBus[v.bus]++
	}
	return s
}
