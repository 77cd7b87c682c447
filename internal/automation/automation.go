// Package automation implements the block-granularity AutomationEngine
// from spec.md section 4.6: per-track/per-parameter breakpoint lanes that
// are queried once per audio block and fed into internal/smoother rather
// than evaluated per sample.
package automation

import (
	"sort"
	"sync"

	"github.com/reelforge/engine/internal/ids"
)

// ParamKind identifies which automatable parameter a lane targets.
type ParamKind int

const (
	ParamVolume ParamKind = iota
	ParamPan
	ParamSendLevel
)

// laneKey addresses one lane: a track's volume/pan, or a specific send's
// level. preFader distinguishes a send's pre-fader tap from its post-fader
// tap, since a send can automate independently at either point.
type laneKey struct {
	track    ids.TrackID
	kind     ParamKind
	bus      ids.BusID // only meaningful when kind == ParamSendLevel
	preFader bool       // only meaningful when kind == ParamSendLevel
}

// Point is one breakpoint on a lane, positioned in absolute sample time.
type Point struct {
	Sample int64
	Value  float64
}

// Change is what the engine applies once per block: "the value of this
// parameter at the start of this block is Value". SampleOffset is carried
// for forward compatibility with sample-accurate automation (see
// DESIGN.md's Open Question decisions) but is not consulted by anything
// yet; block-granularity application always uses offset 0. PreFader is
// only meaningful for ParamSendLevel: it selects which of a send's two
// taps (pre volume/pan, or post) this change applies to.
type Change struct {
	Track        ids.TrackID
	Kind         ParamKind
	Bus          ids.BusID
	PreFader     bool
	Value        float64
	SampleOffset int
}

type lane struct {
	points []Point // sorted by Sample ascending
}

// insert keeps points sorted by Sample, replacing an existing point at the
// same Sample if present.
func (l *lane) insert(p Point) {
	i := sort.Search(len(l.points), func(i int) bool { return l.points[i].Sample >= p.Sample })
	if i < len(l.points) && l.points[i].Sample == p.Sample {
		l.points[i].Value = p.Value
		return
	}
	l.points = append(l.points, Point{})
	copy(l.points[i+1:], l.points[i:])
	l.points[i] = p
}

// valueAt returns the lane's value at or immediately before sample, using
// the last defined breakpoint before sample (hold semantics), or the
// first point's value if sample precedes every breakpoint.
func (l *lane) valueAt(sample int64) (float64, bool) {
	if len(l.points) == 0 {
		return 0, false
	}
	i := sort.Search(len(l.points), func(i int) bool { return l.points[i].Sample > sample })
	if i == 0 {
		return l.points[0].Value, true
	}
	return l.points[i-1].Value, true
}

// Engine owns every automation lane in a session.
type Engine struct {
	mu    sync.RWMutex
	lanes map[laneKey]*lane
}

// New constructs an empty automation engine.
func New() *Engine {
	return &Engine{lanes: make(map[laneKey]*lane)}
}

// AddPoint writes a breakpoint into a track/pan/volume lane.
func (e *Engine) AddPoint(track ids.TrackID, kind ParamKind, sample int64, value float64) {
	e.addPoint(laneKey{track: track, kind: kind}, sample, value)
}

// AddSendPoint writes a breakpoint into a per-send-level lane. preFader
// selects the send's pre-fader or post-fader tap; each tap is an
// independent lane, per spec.md's pre_fader Open Question decision.
func (e *Engine) AddSendPoint(track ids.TrackID, bus ids.BusID, preFader bool, sample int64, value float64) {
	e.addPoint(laneKey{track: track, kind: ParamSendLevel, bus: bus, preFader: preFader}, sample, value)
}

func (e *Engine) addPoint(key laneKey, sample int64, value float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.lanes[key]
	if !ok {
		l = &lane{}
		e.lanes[key] = l
	}
	l.insert(Point{Sample: sample, Value: value})
}

// RemoveTrack deletes every lane belonging to track, e.g. on track deletion.
func (e *Engine) RemoveTrack(track ids.TrackID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for key := range e.lanes {
		if key.track == track {
			delete(e.lanes, key)
		}
	}
}

// BlockChanges returns every Change active at blockStartSample across all
// lanes. Called once per audio block (not per sample) per spec.md 4.6;
// grounded on rf-bridge's playback.rs get_block_changes call site, which
// is invoked once at the top of the block loop before per-track mixing.
// This is the blocking, allocating variant for non-audio-thread callers
// (tests, offline tooling); the audio thread uses TryBlockChanges instead.
func (e *Engine) BlockChanges(blockStartSample int64) []Change {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.collectChanges(blockStartSample, make([]Change, 0, len(e.lanes)))
}

// TryBlockChanges is the audio-thread-safe variant: a try-locked read that
// appends into dst (reusing its backing array so steady-state calls do not
// allocate) instead of returning a fresh slice. On contention it returns
// dst unchanged and ok=false, and the caller must skip applying automation
// for this block entirely, per spec.md 5's "no blocking lock acquisition
// on the audio thread" invariant.
func (e *Engine) TryBlockChanges(blockStartSample int64, dst []Change) ([]Change, bool) {
	if !e.mu.TryRLock() {
		return dst, false
	}
	defer e.mu.RUnlock()
	return e.collectChanges(blockStartSample, dst[:0]), true
}

func (e *Engine) collectChanges(blockStartSample int64, dst []Change) []Change {
	for key, l := range e.lanes {
		value, ok := l.valueAt(blockStartSample)
		if !ok {
			continue
		}
		dst = append(dst, Change{
			Track:        key.track,
			Kind:         key.kind,
			Bus:          key.bus,
			PreFader:     key.preFader,
			Value:        value,
			SampleOffset: 0,
		})
	}
	return dst
}

// HasLane reports whether any breakpoints exist for track/kind, used to
// decide whether a track needs automation-driven smoothing at all.
func (e *Engine) HasLane(track ids.TrackID, kind ParamKind) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	l, ok := e.lanes[laneKey{track: track, kind: kind}]
	return ok && len(l.points) > 0
}
