// Package controlroom implements the control-room solo bus and cue-mix
// sends described in SPEC_FULL.md's supplemented features: SIP
// (Solo-In-Place), PFL (Pre-Fader Listen) and AFL (After-Fader Listen)
// monitoring taps, grounded on rf-bridge/playback.rs's ControlRoom.
package controlroom

import (
	"sync"

	"github.com/reelforge/engine/internal/ids"
)

// Mode selects how soloing a track affects monitoring.
type Mode int

const (
	// ModeSIP routes only soloed tracks to their normal output bus;
	// non-soloed tracks are silenced entirely (spec.md 4.12 step 12).
	ModeSIP Mode = iota
	// ModePFL sums soloed tracks pre-fader into a dedicated solo bus
	// without muting anything else (spec.md 4.12 step 2).
	ModePFL
	// ModeAFL sums soloed tracks post-fader into the solo bus (step 8).
	ModeAFL
)

// CueMix is a named monitor send: a set of (track, level) pairs summed
// into its own stereo buffer, independent of the main bus graph, for
// performer headphone mixes.
type CueMix struct {
	mu     sync.RWMutex
	levels map[ids.TrackID]float64
	left   []float64
	right  []float64
}

func newCueMix(blockSize int) *CueMix {
	return &CueMix{
		levels: make(map[ids.TrackID]float64),
		left:   make([]float64, blockSize),
		right:  make([]float64, blockSize),
	}
}

// SetLevel sets track's send level into this cue mix.
func (c *CueMix) SetLevel(track ids.TrackID, level float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.levels[track] = level
}

// Level returns track's send level into this cue mix (0 if unset).
func (c *CueMix) Level(track ids.TrackID) float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.levels[track]
}

// Add sums track's contribution (already at its own volume/pan stage)
// scaled by this cue mix's send level into the mix buffer. The engine's
// track pipeline does not call Add (it feeds only the solo bus, through
// TapSolo), so a cue mix holds only what callers add to it themselves.
func (c *CueMix) Add(track ids.TrackID, left, right []float64) {
	level := c.Level(track)
	if level <= 0 {
		return
	}
	n := len(c.left)
	if len(left) < n {
		n = len(left)
	}
	for i := 0; i < n; i++ {
		c.left[i] += left[i] * level
		c.right[i] += right[i] * level
	}
}

// Clear zeroes the mix buffer at the start of a block.
func (c *CueMix) Clear() {
	for i := range c.left {
		c.left[i] = 0
		c.right[i] = 0
	}
}

// Buffers returns the cue mix's stereo output for this block.
func (c *CueMix) Buffers() (left, right []float64) {
	return c.left, c.right
}

// Room owns the solo bus and every named cue mix.
type Room struct {
	mu       sync.RWMutex
	mode     Mode
	soloed   map[ids.TrackID]bool
	cueMixes map[string]*CueMix
	solo     *CueMix // reused as the SIP/PFL/AFL solo-bus accumulator
	blockSize int
}

// New constructs an empty Room.
func New(blockSize int) *Room {
	return &Room{
		soloed:    make(map[ids.TrackID]bool),
		cueMixes:  make(map[string]*CueMix),
		solo:      newCueMix(blockSize),
		blockSize: blockSize,
	}
}

func (r *Room) SetMode(mode Mode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mode = mode
}

func (r *Room) Mode() Mode {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.mode
}

// SetTrackSolo marks track soloed/unsoloed for the control room's purposes
// (separate from trackmgr.Track.Soloed; Engine.UpdateTrack copies the
// track's Soloed flag here after every update).
func (r *Room) SetTrackSolo(track ids.TrackID, solo bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if solo {
		r.soloed[track] = true
	} else {
		delete(r.soloed, track)
	}
}

func (r *Room) IsTrackSoloed(track ids.TrackID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.soloed[track]
}

func (r *Room) AnySoloed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.soloed) > 0
}

// CreateCueMix registers a new named cue mix (e.g. "drummer", "vocalist").
func (r *Room) CreateCueMix(name string) *CueMix {
	r.mu.Lock()
	defer r.mu.Unlock()
	cm := newCueMix(r.blockSize)
	r.cueMixes[name] = cm
	return cm
}

func (r *Room) CueMix(name string) *CueMix {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cueMixes[name]
}

// ClearBlock zeroes the solo bus and every cue mix at block start.
func (r *Room) ClearBlock() {
	r.solo.Clear()
	r.mu.RLock()
	mixes := make([]*CueMix, 0, len(r.cueMixes))
	for _, cm := range r.cueMixes {
		mixes = append(mixes, cm)
	}
	r.mu.RUnlock()
	for _, cm := range mixes {
		cm.Clear()
	}
}

// TapSolo sums track into the solo bus if track is currently soloed; it
// does not check the room's mode (the engine calls it only in PFL or AFL
// mode); spec.md 4.12 steps 2/8.
func (r *Room) TapSolo(track ids.TrackID, left, right []float64) {
	if !r.IsTrackSoloed(track) {
		return
	}
	r.solo.mu.Lock()
	n := len(r.solo.left)
	if len(left) < n {
		n = len(left)
	}
	for i := 0; i < n; i++ {
		r.solo.left[i] += left[i]
		r.solo.right[i] += right[i]
	}
	r.solo.mu.Unlock()
}

// SoloBus returns the accumulated solo-bus buffers for this block.
func (r *Room) SoloBus() (left, right []float64) {
	return r.solo.left, r.solo.right
}
