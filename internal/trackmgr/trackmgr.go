// Package trackmgr is the sole authoritative store for tracks, clips,
// crossfades, markers and the loop region (spec.md section 4.3). Every
// mutating method here is meant to be called only from non-audio threads;
// the audio thread reads through TryRLock-guarded accessors.
package trackmgr

import (
	"sync"

	"github.com/reelforge/engine/internal/curve"
	"github.com/reelforge/engine/internal/ids"
)

// MonitorMode selects how an armed/input-bound track monitors its input.
type MonitorMode int

const (
	MonitorOff MonitorMode = iota
	MonitorAuto
	MonitorManual
)

// ClipFxSlot is one entry of the small, closed set of built-in non-destructive clip
// effects described in spec.md 4.12 step 5. Stateful effects (EQ,
// pitch-shift) are explicitly out of scope for this inline layer and are
// instead modeled as InsertChain processors.
type ClipFxSlot struct {
	Active bool
	Kind   ClipFxKind
	Param  float64 // single-parameter knob: drive, threshold, gain, etc.
}

type ClipFxKind int

const (
	ClipFxGain ClipFxKind = iota
	ClipFxSaturation
	ClipFxLimiter
	ClipFxGate
	ClipFxCompressor
)

const ClipFxSlots = 8

type ClipFxChain struct {
	Slots [ClipFxSlots]ClipFxSlot
}

// HasActive reports whether any slot in the chain is active.
func (c *ClipFxChain) HasActive() bool {
	for i := range c.Slots {
		if c.Slots[i].Active {
			return true
		}
	}
	return false
}

// Track is a row in the timeline (spec.md section 3).
type Track struct {
	ID            ids.TrackID
	Name          string
	Color         string
	OutputBus     ids.BusID
	Volume        float64 // linear, [0.0, 1.5]
	Pan           float64 // [-1.0, 1.0]
	PanRight      float64 // only meaningful for stereo dual-pan
	Muted         bool
	Soloed        bool
	Armed         bool
	Stereo        bool
	InputBus      int // -1 if unset
	Monitor       MonitorMode
	PhaseInverted bool
}

// Clip is a timeline placement of a region of source audio (spec.md section 3).
type Clip struct {
	ID             ids.ClipID
	TrackID        ids.TrackID
	StartTime      float64 // seconds
	Duration       float64 // seconds
	SourcePath     string
	SourceOffset   float64 // seconds, skip-into-source
	SourceDuration float64 // seconds, for validation
	FadeIn         float64 // seconds
	FadeOut        float64 // seconds
	Gain           float64 // linear
	Muted          bool
	Selected       bool
	Reversed       bool
	FxChain        ClipFxChain
}

// EndTime is StartTime+Duration.
func (c *Clip) EndTime() float64 { return c.StartTime + c.Duration }

// Crossfade is an ordered pair of clips on the same track with an overlap window.
type Crossfade struct {
	ID        ids.CrossfadeID
	TrackID   ids.TrackID
	ClipA     ids.ClipID
	ClipB     ids.ClipID
	StartTime float64
	Duration  float64
	Shape     curve.Shape
}

// EndTime is StartTime+Duration.
func (x *Crossfade) EndTime() float64 { return x.StartTime + x.Duration }

// Marker is a named, colored point on the timeline.
type Marker struct {
	ID    ids.MarkerID
	Time  float64
	Name  string
	Color string
}

// Manager holds every track/clip/crossfade/marker plus the loop region. Its
// internal map is guarded by a RWMutex; the audio thread must only use the
// TryRLock-prefixed accessors and must tolerate a miss by skipping the
// operation for the block, per spec.md's "no blocking lock acquisition on
// the audio thread" invariant.
type Manager struct {
	mu sync.RWMutex

	tracks     map[ids.TrackID]*Track
	clips      map[ids.ClipID]*Clip
	crossfades map[ids.CrossfadeID]*Crossfade
	markers    map[ids.MarkerID]*Marker

	// trackClips and trackCrossfades index by owning track for cascade
	// deletes and for the engine's per-track render loop.
	trackClips      map[ids.TrackID][]ids.ClipID
	trackCrossfades map[ids.TrackID][]ids.CrossfadeID

	loopStart float64
	loopEnd   float64
	loopOn    bool

	anySolo bool
}

// New constructs an empty Manager.
func New() *Manager {
	return &Manager{
		tracks:          make(map[ids.TrackID]*Track),
		clips:           make(map[ids.ClipID]*Clip),
		crossfades:      make(map[ids.CrossfadeID]*Crossfade),
		markers:         make(map[ids.MarkerID]*Marker),
		trackClips:      make(map[ids.TrackID][]ids.ClipID),
		trackCrossfades: make(map[ids.TrackID][]ids.CrossfadeID),
	}
}

// CreateTrack allocates and stores a new Track with sane defaults.
func (m *Manager) CreateTrack(name, color string, bus ids.BusID) ids.TrackID {
	id := ids.NextTrack()
	t := &Track{
		ID:        id,
		Name:      name,
		Color:     color,
		OutputBus: bus,
		Volume:    1.0,
		Pan:       0.0,
		Stereo:    true,
		InputBus:  -1,
	}
	m.mu.Lock()
	m.tracks[id] = t
	m.mu.Unlock()
	return id
}

// DeleteTrack removes a track and cascades to its clips and crossfades.
func (m *Manager) DeleteTrack(id ids.TrackID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tracks[id]; !ok {
		return false
	}
	for _, cid := range m.trackClips[id] {
		delete(m.clips, cid)
	}
	for _, xid := range m.trackCrossfades[id] {
		delete(m.crossfades, xid)
	}
	delete(m.trackClips, id)
	delete(m.trackCrossfades, id)
	delete(m.tracks, id)
	m.recomputeSoloLocked()
	return true
}

// UpdateTrack applies mutator to the track under write lock, returning
// false if the track does not exist.
func (m *Manager) UpdateTrack(id ids.TrackID, mutator func(*Track)) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tracks[id]
	if !ok {
		return false
	}
	mutator(t)
	m.recomputeSoloLocked()
	return true
}

// Track returns a copy of the track's current state.
func (m *Manager) Track(id ids.TrackID) (Track, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tracks[id]
	if !ok {
		return Track{}, false
	}
	return *t, true
}

// TryTracks returns a snapshot copy of every track, for engine iteration.
// It is audio-thread-safe (try-lock, returns ok=false on contention per
// spec.md's try-lock invariant).
func (m *Manager) TryTracks() ([]Track, bool) {
	if !m.mu.TryRLock() {
		return nil, false
	}
	defer m.mu.RUnlock()
	out := make([]Track, 0, len(m.tracks))
	for _, t := range m.tracks {
		out = append(out, *t)
	}
	return out, true
}

// IsSoloActive returns true iff any track has Soloed == true. O(1): kept
// current by recomputeSoloLocked on every track mutation.
func (m *Manager) IsSoloActive() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.anySolo
}

func (m *Manager) recomputeSoloLocked() {
	for _, t := range m.tracks {
		if t.Soloed {
			m.anySolo = true
			return
		}
	}
	m.anySolo = false
}

// --- Clips ---

// AddClip inserts a fully-specified clip (used by deserialization/tests);
// CreateClip is the convenience constructor most callers use.
func (m *Manager) AddClip(c Clip) ids.ClipID {
	if c.ID == 0 {
		c.ID = ids.NextClip()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := c
	m.clips[cp.ID] = &cp
	m.trackClips[cp.TrackID] = append(m.trackClips[cp.TrackID], cp.ID)
	return cp.ID
}

// CreateClip builds and inserts a new clip with gain 1.0 and no fades.
func (m *Manager) CreateClip(track ids.TrackID, sourcePath string, start, duration, sourceOffset float64) ids.ClipID {
	return m.AddClip(Clip{
		TrackID:      track,
		StartTime:    start,
		Duration:     duration,
		SourcePath:   sourcePath,
		SourceOffset: sourceOffset,
		Gain:         1.0,
	})
}

// Clip returns a copy of the clip's current state.
func (m *Manager) Clip(id ids.ClipID) (Clip, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.clips[id]
	if !ok {
		return Clip{}, false
	}
	return *c, true
}

// TryTrackClips returns copies of every clip on track, audio-thread-safe
// (try-lock; ok=false means the caller should skip this track for the block).
func (m *Manager) TryTrackClips(track ids.TrackID) ([]Clip, bool) {
	if !m.mu.TryRLock() {
		return nil, false
	}
	defer m.mu.RUnlock()
	clipIDs := m.trackClips[track]
	out := make([]Clip, 0, len(clipIDs))
	for _, cid := range clipIDs {
		if c, ok := m.clips[cid]; ok {
			out = append(out, *c)
		}
	}
	return out, true
}

// DeleteClip removes a clip and cascades to crossfades referencing it.
func (m *Manager) DeleteClip(id ids.ClipID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clips[id]
	if !ok {
		return false
	}
	delete(m.clips, id)
	m.trackClips[c.TrackID] = removeClipID(m.trackClips[c.TrackID], id)

	var keep []ids.CrossfadeID
	for _, xid := range m.trackCrossfades[c.TrackID] {
		x := m.crossfades[xid]
		if x != nil && (x.ClipA == id || x.ClipB == id) {
			delete(m.crossfades, xid)
			continue
		}
		keep = append(keep, xid)
	}
	m.trackCrossfades[c.TrackID] = keep
	return true
}

func removeClipID(list []ids.ClipID, target ids.ClipID) []ids.ClipID {
	out := list[:0]
	for _, id := range list {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}

// MoveClip relocates a clip to a new track and start time, updating the
// per-track index if the track changed.
func (m *Manager) MoveClip(id ids.ClipID, newTrack ids.TrackID, newStart float64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clips[id]
	if !ok {
		return false
	}
	if c.TrackID != newTrack {
		m.trackClips[c.TrackID] = removeClipID(m.trackClips[c.TrackID], id)
		m.trackClips[newTrack] = append(m.trackClips[newTrack], id)
		c.TrackID = newTrack
	}
	c.StartTime = newStart
	return true
}

// ResizeClip updates a clip's start, duration and source offset.
func (m *Manager) ResizeClip(id ids.ClipID, start, duration, sourceOffset float64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clips[id]
	if !ok {
		return false
	}
	c.StartTime = start
	c.Duration = duration
	c.SourceOffset = sourceOffset
	return true
}

// SplitClip splits a clip at absolute time `at` (which must fall strictly
// within [start, end)). The left clip keeps its ID and is shortened; the
// right clip is newly created starting at `at` with source offset advanced
// by the same amount, per spec.md 4.3's split semantics. Other attributes
// (gain, color via track, fades) copy to the left; the right gets default
// fades (zero).
func (m *Manager) SplitClip(id ids.ClipID, at float64) (ids.ClipID, ids.ClipID, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	left, ok := m.clips[id]
	if !ok {
		return 0, 0, false
	}
	if at <= left.StartTime || at >= left.EndTime() {
		return 0, 0, false
	}

	splitOffset := at - left.StartTime
	origDuration := left.Duration

	right := Clip{
		ID:           ids.NextClip(),
		TrackID:      left.TrackID,
		StartTime:    at,
		Duration:     origDuration - splitOffset,
		SourcePath:   left.SourcePath,
		SourceOffset: left.SourceOffset + splitOffset,
		Gain:         left.Gain,
		Reversed:     left.Reversed,
	}

	left.Duration = splitOffset
	left.FadeOut = 0 // the new join between the two halves starts clean

	m.clips[right.ID] = &right
	m.trackClips[left.TrackID] = append(m.trackClips[left.TrackID], right.ID)

	return left.ID, right.ID, true
}

// DuplicateClip copies a clip, placing the copy immediately after the
// original on the same track, and returns the new clip's ID.
func (m *Manager) DuplicateClip(id ids.ClipID) (ids.ClipID, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	orig, ok := m.clips[id]
	if !ok {
		return 0, false
	}
	dup := *orig
	dup.ID = ids.NextClip()
	dup.StartTime = orig.EndTime()
	m.clips[dup.ID] = &dup
	m.trackClips[dup.TrackID] = append(m.trackClips[dup.TrackID], dup.ID)
	return dup.ID, true
}

// --- Crossfades ---

// CreateCrossfade creates a crossfade between clipA and clipB, which must
// belong to the same track. The crossfade's start time is
// clipA.end - duration/2, per spec.md 4.3.
func (m *Manager) CreateCrossfade(clipA, clipB ids.ClipID, duration float64, shape curve.Shape) (ids.CrossfadeID, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.clips[clipA]
	if !ok {
		return 0, false
	}
	b, ok := m.clips[clipB]
	if !ok {
		return 0, false
	}
	if a.TrackID != b.TrackID {
		return 0, false
	}

	id := ids.NextCrossfade()
	x := &Crossfade{
		ID:        id,
		TrackID:   a.TrackID,
		ClipA:     clipA,
		ClipB:     clipB,
		StartTime: a.EndTime() - duration/2,
		Duration:  duration,
		Shape:     shape,
	}
	m.crossfades[id] = x
	m.trackCrossfades[a.TrackID] = append(m.trackCrossfades[a.TrackID], id)
	return id, true
}

// DeleteCrossfade removes a crossfade by ID.
func (m *Manager) DeleteCrossfade(id ids.CrossfadeID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	x, ok := m.crossfades[id]
	if !ok {
		return false
	}
	delete(m.crossfades, id)
	list := m.trackCrossfades[x.TrackID]
	out := list[:0]
	for _, xid := range list {
		if xid != id {
			out = append(out, xid)
		}
	}
	m.trackCrossfades[x.TrackID] = out
	return true
}

// TryTrackCrossfades returns copies of every crossfade on track,
// audio-thread-safe (try-lock).
func (m *Manager) TryTrackCrossfades(track ids.TrackID) ([]Crossfade, bool) {
	if !m.mu.TryRLock() {
		return nil, false
	}
	defer m.mu.RUnlock()
	list := m.trackCrossfades[track]
	out := make([]Crossfade, 0, len(list))
	for _, xid := range list {
		if x, ok := m.crossfades[xid]; ok {
			out = append(out, *x)
		}
	}
	return out, true
}

// --- Markers & loop region ---

// AddMarker creates a named marker at the given time.
func (m *Manager) AddMarker(time float64, name, color string) ids.MarkerID {
	id := ids.NextMarker()
	m.mu.Lock()
	m.markers[id] = &Marker{ID: id, Time: time, Name: name, Color: color}
	m.mu.Unlock()
	return id
}

// Markers returns a copy of every marker.
func (m *Manager) Markers() []Marker {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Marker, 0, len(m.markers))
	for _, mk := range m.markers {
		out = append(out, *mk)
	}
	return out
}

// SetLoopRegion sets the loop start/end in seconds.
func (m *Manager) SetLoopRegion(startSec, endSec float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loopStart = startSec
	m.loopEnd = endSec
}

// SetLoopEnabled toggles the loop region.
func (m *Manager) SetLoopEnabled(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loopOn = enabled
}

// LoopRegion returns (start, end, enabled) in seconds.
func (m *Manager) LoopRegion() (float64, float64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loopStart, m.loopEnd, m.loopOn
}
