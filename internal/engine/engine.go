// Package engine implements the PlaybackEngine orchestrator from spec.md
// section 4.12: the object holding every subsystem and exposing the audio
// callback. It owns command draining, clip rendering, track
// post-processing, bus summation, and metering, in the exact per-block
// order the specification lays out.
package engine

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/reelforge/engine/internal/audiocache"
	"github.com/reelforge/engine/internal/automation"
	"github.com/reelforge/engine/internal/busgraph"
	"github.com/reelforge/engine/internal/controlroom"
	"github.com/reelforge/engine/internal/delaycomp"
	"github.com/reelforge/engine/internal/ids"
	"github.com/reelforge/engine/internal/insert"
	"github.com/reelforge/engine/internal/inputbus"
	"github.com/reelforge/engine/internal/metering"
	"github.com/reelforge/engine/internal/smoother"
	"github.com/reelforge/engine/internal/trackmgr"
	"github.com/reelforge/engine/internal/transport"
	"github.com/reelforge/engine/internal/vca"
	"github.com/reelforge/engine/internal/voicepool"
)

// Engine ties together every subsystem described across spec.md section 4.
// The audio thread calls Process/ProcessWithInput/ProcessOffline; every
// other method here is reachable from UI/control threads.
type Engine struct {
	sampleRate float64
	blockSize  int

	Transport  *transport.Position
	Tracks     *trackmgr.Manager
	Cache      *audiocache.Cache
	Automation *automation.Engine
	Smoother   *smoother.Smoother
	Voices     *voicepool.Pool
	Buses      *busgraph.Graph
	ControlRoom *controlroom.Room
	VCA        *vca.Manager
	DelayComp  *delaycomp.Manager
	Input      *inputbus.Manager
	MasterMeter *metering.Master
	Spectrum   *metering.Spectrum
	TrackMeters *metering.TrackMeters

	masterInsert *insert.Chain

	trackInsertsMu sync.Mutex
	trackPre       map[ids.TrackID]*insert.Chain
	trackPost      map[ids.TrackID]*insert.Chain

	// Audio-thread-owned scratch; Go has no thread_local, so correctness
	// instead relies on the invariant that Process* is only ever called
	// from one goroutine at a time, enforced by inCallback below.
	trackL, trackR    []float64
	sendL, sendR      []float64
	automationChanges []automation.Change
	interleaved       []float64

	masterVolume atomic.Uint64 // float64 bits, linear [0, 1.5]

	inCallback atomic.Bool
}

// New constructs a fully wired Engine at sampleRate, preallocating every
// per-block buffer at blockSize frames so Process never allocates.
func New(sampleRate float64, blockSize int) *Engine {
	e := &Engine{
		sampleRate:  sampleRate,
		blockSize:   blockSize,
		Transport:   transport.New(uint64(sampleRate)),
		Tracks:      trackmgr.New(),
		Cache:       audiocache.New(),
		Automation:  automation.New(),
		Smoother:    smoother.New(sampleRate),
		Voices:      voicepool.New(sampleRate, blockSize),
		Buses:       busgraph.New(blockSize, sampleRate),
		ControlRoom: controlroom.New(blockSize),
		VCA:         vca.New(),
		DelayComp:   delaycomp.New(),
		Input:       inputbus.New(blockSize, nil),
		MasterMeter: metering.NewMaster(sampleRate),
		Spectrum:    metering.NewSpectrum(sampleRate),
		TrackMeters: metering.NewTrackMeters(),

		masterInsert: insert.New(sampleRate),

		trackPre:  make(map[ids.TrackID]*insert.Chain),
		trackPost: make(map[ids.TrackID]*insert.Chain),

		trackL: make([]float64, blockSize),
		trackR: make([]float64, blockSize),
		sendL:  make([]float64, blockSize),
		sendR:  make([]float64, blockSize),

		automationChanges: make([]automation.Change, 0, 32),
		interleaved:       make([]float64, 0, 2*blockSize),
	}
	e.masterVolume.Store(math.Float64bits(1.0))
	return e
}

// SetMasterVolume stores the master volume atomically, [0, 1.5] per
// spec.md section 6.
func (e *Engine) SetMasterVolume(linear float64) {
	if linear < 0 {
		linear = 0
	}
	if linear > 1.5 {
		linear = 1.5
	}
	e.masterVolume.Store(math.Float64bits(linear))
}

func (e *Engine) MasterVolume() float64 {
	return math.Float64frombits(e.masterVolume.Load())
}

// trackInsertChains returns (creating if needed) a track's pre/post-fader
// chains, guarded by a plain mutex since this is UI-thread load/unload
// territory per spec.md 5 ("UI may load/unload via insert_chains.write()").
func (e *Engine) trackInsertChains(track ids.TrackID) (pre, post *insert.Chain) {
	e.trackInsertsMu.Lock()
	defer e.trackInsertsMu.Unlock()
	pre, ok := e.trackPre[track]
	if !ok {
		pre = insert.New(e.sampleRate)
		e.trackPre[track] = pre
	}
	post, ok = e.trackPost[track]
	if !ok {
		post = insert.New(e.sampleRate)
		e.trackPost[track] = post
	}
	return pre, post
}

// TrackPreChain exposes a track's pre-fader chain for UI-thread load/unload.
func (e *Engine) TrackPreChain(track ids.TrackID) *insert.Chain {
	pre, _ := e.trackInsertChains(track)
	return pre
}

// TrackPostChain exposes a track's post-fader chain for UI-thread load/unload.
func (e *Engine) TrackPostChain(track ids.TrackID) *insert.Chain {
	_, post := e.trackInsertChains(track)
	return post
}

// MasterChain exposes the master insert chain for UI-thread load/unload.
func (e *Engine) MasterChain() *insert.Chain {
	return e.masterInsert
}

func zero(buf []float64) {
	for i := range buf {
		buf[i] = 0
	}
}

// Process is the primary audio callback: fills out_l/out_r (block-sized,
// preallocated by the caller) with one block's master output. Per
// spec.md 4.12: drain commands, render one-shots regardless of transport
// state, render tracks only while transport should advance, sum to
// master, meter, advance transport.
func (e *Engine) Process(outL, outR []float64) {
	if !e.inCallback.CompareAndSwap(false, true) {
		return
	}
	defer e.inCallback.Store(false)

	frames := len(outL)
	if frames > e.blockSize {
		frames = e.blockSize
	}

	e.Voices.DrainCommands()

	e.Buses.ClearBlock()
	e.ControlRoom.ClearBlock()

	blockStart := int64(e.Transport.Samples())
	changes, ok := e.Automation.TryBlockChanges(blockStart, e.automationChanges)
	if ok {
		e.automationChanges = changes
	} else {
		changes = nil // contention: skip automation for this block, per skip-on-contention
	}
	for _, change := range changes {
		e.applyAutomationChange(change)
	}

	if e.Transport.ShouldAdvance() {
		e.renderTracks(blockStart, frames, changes)
	}

	e.Voices.Render(e.Buses, frames)

	e.Buses.SumToMaster()
	masterL, masterR := e.Buses.Master()
	masterL, masterR = masterL[:frames], masterR[:frames]

	e.masterInsert.ProcessPreFader(masterL, masterR)

	vol := e.MasterVolume()
	for i := 0; i < frames; i++ {
		masterL[i] *= vol
		masterR[i] *= vol
	}

	e.masterInsert.ProcessPostFader(masterL, masterR)

	copy(outL[:frames], masterL)
	copy(outR[:frames], masterR)

	e.MasterMeter.UpdateBlock(outL[:frames], outR[:frames])
	e.Spectrum.Update(outL[:frames], outR[:frames])

	if e.Transport.ShouldAdvance() {
		if e.Transport.VarispeedEnabled() {
			e.Transport.AdvanceWithRate(uint64(frames), e.Transport.EffectivePlaybackRate())
		} else {
			e.Transport.Advance(uint64(frames))
		}
	}
}

// ProcessWithInput behaves like Process but additionally deinterleaves
// hardware input and forwards armed tracks' samples to the recording
// manager when the transport is Recording, per spec.md 4.11/6.
func (e *Engine) ProcessWithInput(inL, inR, outL, outR []float64) {
	frames := len(outL)
	e.interleaved = e.interleaved[:0]
	for i := 0; i < frames && i < len(inL) && i < len(inR); i++ {
		e.interleaved = append(e.interleaved, inL[i], inR[i])
	}
	e.Input.Deinterleave(0, e.interleaved)

	blockStart := int64(e.Transport.Samples())
	e.Process(outL, outR)

	if e.Transport.IsRecording() {
		tracks, ok := e.Tracks.TryTracks()
		if ok {
			for _, t := range tracks {
				if t.Armed {
					_ = e.Input.CaptureBlock(t.ID, blockStart, frames)
				}
			}
		}
	}
}

// ProcessOffline renders one block at an arbitrary absolute sample
// position without advancing transport or updating meters, for bounce/export.
func (e *Engine) ProcessOffline(startSample int64, outL, outR []float64) {
	frames := len(outL)

	e.Buses.ClearBlock()

	changes := e.Automation.BlockChanges(startSample)
	for _, change := range changes {
		e.applyAutomationChange(change)
	}

	e.renderTracks(startSample, frames, changes)
	e.Voices.Render(e.Buses, frames)
	e.Buses.SumToMaster()

	masterL, masterR := e.Buses.Master()
	masterL, masterR = masterL[:frames], masterR[:frames]

	e.masterInsert.ProcessPreFader(masterL, masterR)

	vol := e.MasterVolume()
	for i := 0; i < frames; i++ {
		masterL[i] *= vol
		masterR[i] *= vol
	}

	e.masterInsert.ProcessPostFader(masterL, masterR)

	copy(outL[:frames], masterL)
	copy(outR[:frames], masterR)
}

func (e *Engine) applyAutomationChange(c automation.Change) {
	switch c.Kind {
	case automation.ParamVolume:
		e.Smoother.SetTrackVolume(c.Track, c.Value, c.Value)
	case automation.ParamPan:
		e.Smoother.SetTrackPan(c.Track, c.Value, c.Value)
	case automation.ParamSendLevel:
		// send-level changes are applied at render time by applySends,
		// which reads this block's changes; no smoother target needed at
		// block granularity.
	}
}
