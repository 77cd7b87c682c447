// Package busgraph implements the BusGraph from spec.md section 4.8: six
// named stereo buses plus a master pair, cleared and re-summed once per
// block, each with its own pre/post-fader insert chain and mute/solo.
package busgraph

import (
	"math"

	"github.com/reelforge/engine/internal/ids"
	"github.com/reelforge/engine/internal/insert"
)

// bus holds one stereo buffer plus its mixer state.
type bus struct {
	left, right  []float64
	volume       float64
	pan          float64
	mute         bool
	solo         bool
	preChain     *insert.Chain
	postChain    *insert.Chain
}

// Graph owns the 6 named buses and the master bus, preallocated at block
// size so the audio thread never allocates.
type Graph struct {
	buses      [ids.NumBuses]bus
	masterL    []float64
	masterR    []float64
	blockSize  int
	sampleRate float64
}

// New preallocates a Graph sized for blockSize frames at sampleRate.
func New(blockSize int, sampleRate float64) *Graph {
	g := &Graph{blockSize: blockSize, sampleRate: sampleRate}
	for i := range g.buses {
		g.buses[i] = bus{
			left:      make([]float64, blockSize),
			right:     make([]float64, blockSize),
			volume:    1.0,
			preChain:  insert.New(sampleRate),
			postChain: insert.New(sampleRate),
		}
	}
	g.masterL = make([]float64, blockSize)
	g.masterR = make([]float64, blockSize)
	return g
}

// ClearBlock zeroes every bus and the master buffers; step 1 of spec.md 4.8.
func (g *Graph) ClearBlock() {
	for i := range g.buses {
		zero(g.buses[i].left)
		zero(g.buses[i].right)
	}
	zero(g.masterL)
	zero(g.masterR)
}

func zero(buf []float64) {
	for i := range buf {
		buf[i] = 0
	}
}

// AddTrack mixes a track's rendered output into busIdx's buffer.
func (g *Graph) AddTrack(busIdx ids.BusID, left, right []float64) {
	g.add(busIdx, left, right)
}

// AddVoice satisfies internal/voicepool.BusAdder, letting one-shot voices
// sum directly into a bus without voicepool importing this package.
func (g *Graph) AddVoice(busIdx ids.BusID, left, right []float64) {
	g.add(busIdx, left, right)
}

func (g *Graph) add(busIdx ids.BusID, left, right []float64) {
	if !busIdx.Valid() {
		return
	}
	b := &g.buses[busIdx]
	mixAdd(b.left, left, 1.0)
	mixAdd(b.right, right, 1.0)
}

// mixAdd is the SIMD-friendly dest[i] += src[i] * gain helper spec.md 4.8
// calls for; the Go compiler auto-vectorizes this shape on supported
// architectures, so no explicit intrinsic is needed.
func mixAdd(dest, src []float64, gain float64) {
	n := len(dest)
	if len(src) < n {
		n = len(src)
	}
	for i := 0; i < n; i++ {
		dest[i] += src[i] * gain
	}
}

// SetVolume, SetPan, SetMute, SetSolo mutate bus mixer state from the UI thread.
func (g *Graph) SetVolume(busIdx ids.BusID, linear float64) bool {
	if !busIdx.Valid() {
		return false
	}
	g.buses[busIdx].volume = linear
	return true
}

func (g *Graph) SetPan(busIdx ids.BusID, pan float64) bool {
	if !busIdx.Valid() {
		return false
	}
	g.buses[busIdx].pan = pan
	return true
}

func (g *Graph) SetMute(busIdx ids.BusID, mute bool) bool {
	if !busIdx.Valid() {
		return false
	}
	g.buses[busIdx].mute = mute
	return true
}

func (g *Graph) SetSolo(busIdx ids.BusID, solo bool) bool {
	if !busIdx.Valid() {
		return false
	}
	g.buses[busIdx].solo = solo
	return true
}

// State is a read-only snapshot for UI queries (get_bus_state).
type State struct {
	Volume float64
	Pan    float64
	Mute   bool
	Solo   bool
}

func (g *Graph) State(busIdx ids.BusID) (State, bool) {
	if !busIdx.Valid() {
		return State{}, false
	}
	b := &g.buses[busIdx]
	return State{Volume: b.volume, Pan: b.pan, Mute: b.mute, Solo: b.solo}, true
}

// PreChain / PostChain expose a bus's insert chains for UI-thread load/unload.
func (g *Graph) PreChain(busIdx ids.BusID) *insert.Chain {
	if !busIdx.Valid() {
		return nil
	}
	return g.buses[busIdx].preChain
}

func (g *Graph) PostChain(busIdx ids.BusID) *insert.Chain {
	if !busIdx.Valid() {
		return nil
	}
	return g.buses[busIdx].postChain
}

func (g *Graph) anySolo() bool {
	for i := range g.buses {
		if g.buses[i].solo {
			return true
		}
	}
	return false
}

// SumToMaster runs each bus's pre-fader chain, applies volume/pan, runs the
// post-fader chain, and sums into master — step 3/4 of spec.md 4.8. Muted
// buses are skipped; when any bus is soloed, non-soloed buses are skipped too.
func (g *Graph) SumToMaster() {
	soloActive := g.anySolo()
	for i := range g.buses {
		b := &g.buses[i]
		if b.mute {
			continue
		}
		if soloActive && !b.solo {
			continue
		}

		b.preChain.ProcessPreFader(b.left, b.right)

		applyConstantPowerPan(b.left, b.right, b.pan, b.volume)

		b.postChain.ProcessPostFader(b.left, b.right)

		mixAdd(g.masterL, b.left, 1.0)
		mixAdd(g.masterR, b.right, 1.0)
	}
}

// applyConstantPowerPan applies a single-knob constant-power pan plus
// volume in place: left is scaled by cos(theta) and right by sin(theta),
// each channel independently.
func applyConstantPowerPan(left, right []float64, pan, volume float64) {
	theta := (pan + 1) * math.Pi / 4
	gl := math.Cos(theta) * volume
	gr := math.Sin(theta) * volume
	for i := range left {
		l := left[i]
		r := right[i]
		left[i] = l * gl
		right[i] = r * gr
	}
}

// Master returns the master stereo buffers after SumToMaster.
func (g *Graph) Master() (left, right []float64) {
	return g.masterL, g.masterR
}
