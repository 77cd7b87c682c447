// Package smoother implements the per-track ParamSmoother from spec.md
// section 4.5: a one-pole filter that eliminates zipper noise when
// automation or UI updates change track volume or pan, with a block-rate
// fast path when nothing is actively smoothing.
package smoother

import (
	"sync"

	"github.com/reelforge/engine/internal/ids"
)

// timeConstantMS is the one-pole filter's audio-rate-dependent time
// constant, per spec.md 4.5's "e.g., 10 ms" guidance.
const timeConstantMS = 10.0

// settleEpsilon is how close current must get to target before a
// smoother is considered settled and turned off (so the fast path can
// resume without oscillating forever on floating-point dust).
const settleEpsilon = 1e-5

type trackState struct {
	currentVolume, targetVolume float64
	currentPan, targetPan       float64
	coeff                       float64 // one-pole coefficient at this sample rate
	active                      bool
}

// Smoother owns one trackState per track under smoothing. It is mutated
// from the audio thread (Advance*) and from whichever thread applies
// automation/UI changes (Set*); both paths are audio-thread-reachable so
// access is guarded by a mutex sized for very short critical sections
// (IsTrackSmoothing takes the same mutex; there is no lock-free fast path).
type Smoother struct {
	mu         sync.Mutex
	tracks     map[ids.TrackID]*trackState
	sampleRate float64
}

// New constructs a Smoother for the given sample rate.
func New(sampleRate float64) *Smoother {
	return &Smoother{
		tracks:     make(map[ids.TrackID]*trackState),
		sampleRate: sampleRate,
	}
}

func (s *Smoother) coeff() float64 {
	// One-pole coefficient such that the filter reaches ~63% of the way
	// to target after timeConstantMS milliseconds.
	tau := timeConstantMS / 1000.0 * s.sampleRate
	if tau < 1 {
		tau = 1
	}
	return 1.0 / tau
}

func (s *Smoother) stateFor(track ids.TrackID, current float64, isVolume bool) *trackState {
	st, ok := s.tracks[track]
	if !ok {
		st = &trackState{coeff: s.coeff()}
		if isVolume {
			st.currentVolume = current
			st.targetVolume = current
		} else {
			st.currentPan = current
			st.targetPan = current
		}
		s.tracks[track] = st
	}
	return st
}

// SetTrackVolume marks track's smoother active with a new target volume.
// currentIfNew seeds the starting point the first time this track is seen.
func (s *Smoother) SetTrackVolume(track ids.TrackID, target, currentIfNew float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stateFor(track, currentIfNew, true)
	st.targetVolume = target
	st.active = true
}

// SetTrackPan marks track's smoother active with a new target pan.
func (s *Smoother) SetTrackPan(track ids.TrackID, target, currentIfNew float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stateFor(track, currentIfNew, false)
	st.targetPan = target
	st.active = true
}

// IsTrackSmoothing reports whether track has an active smoother. If false,
// the caller may apply volume/pan block-wise at a constant gain (spec.md
// 4.5's fast path) instead of per-sample.
func (s *Smoother) IsTrackSmoothing(track ids.TrackID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.tracks[track]
	return ok && st.active
}

// AdvanceTrack steps the one-pole filter by one sample and returns the new
// (volume, pan). Called per sample during per-sample track processing.
func (s *Smoother) AdvanceTrack(track ids.TrackID) (volume, pan float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.tracks[track]
	if !ok {
		return 1.0, 0.0
	}

	st.currentVolume += st.coeff * (st.targetVolume - st.currentVolume)
	st.currentPan += st.coeff * (st.targetPan - st.currentPan)

	if abs(st.currentVolume-st.targetVolume) < settleEpsilon && abs(st.currentPan-st.targetPan) < settleEpsilon {
		st.currentVolume = st.targetVolume
		st.currentPan = st.targetPan
		st.active = false
	}

	return st.currentVolume, st.currentPan
}

// RemoveTrack drops a track's smoother state, e.g. on track deletion.
func (s *Smoother) RemoveTrack(track ids.TrackID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tracks, track)
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
