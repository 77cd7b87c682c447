// Package vca implements named VCA gain groups (SPEC_FULL.md's
// supplemented-features section): a track can be assigned to a group whose
// gain and force-mute apply multiplicatively on top of its own volume,
// grounded on rf-bridge/playback.rs's GroupManager accessor pattern
// referenced from spec.md 4.12 step 5 ("queried from an external
// GroupManager via try-lock").
package vca

import (
	"sync"

	"github.com/reelforge/engine/internal/ids"
)

// Group is a named VCA fader affecting every track assigned to it.
type Group struct {
	Name  string
	Gain  float64 // linear, applied multiplicatively
	Mute  bool
}

// Manager owns every VCA group and the track → group assignment.
type Manager struct {
	mu       sync.RWMutex
	groups   map[string]*Group
	assigned map[ids.TrackID]string
}

// New constructs an empty Manager.
func New() *Manager {
	return &Manager{
		groups:   make(map[string]*Group),
		assigned: make(map[ids.TrackID]string),
	}
}

// CreateGroup registers a new VCA group at unity gain, unmuted.
func (m *Manager) CreateGroup(name string) *Group {
	m.mu.Lock()
	defer m.mu.Unlock()
	g := &Group{Name: name, Gain: 1.0}
	m.groups[name] = g
	return g
}

// DeleteGroup removes a group and clears any track assignments to it.
func (m *Manager) DeleteGroup(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.groups, name)
	for track, g := range m.assigned {
		if g == name {
			delete(m.assigned, track)
		}
	}
}

// AssignTrack puts track under group's VCA; group must already exist.
func (m *Manager) AssignTrack(track ids.TrackID, group string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.groups[group]; !ok {
		return false
	}
	m.assigned[track] = group
	return true
}

// UnassignTrack removes track from whichever group it belonged to.
func (m *Manager) UnassignTrack(track ids.TrackID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.assigned, track)
}

// SetGain sets a group's linear VCA gain.
func (m *Manager) SetGain(group string, gain float64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.groups[group]
	if !ok {
		return false
	}
	g.Gain = gain
	return true
}

// SetMute sets a group's force-mute flag; every assigned track is
// silenced regardless of its own mute state.
func (m *Manager) SetMute(group string, mute bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.groups[group]
	if !ok {
		return false
	}
	g.Mute = mute
	return true
}

// TryTrackGain returns track's VCA-induced gain and mute state via a
// try-read lock, falling back to unity/non-muted on contention per
// spec.md 4.12 step 5 ("fall back to unity/non-muted on contention").
func (m *Manager) TryTrackGain(track ids.TrackID) (gain float64, muted bool) {
	if !m.mu.TryRLock() {
		return 1.0, false
	}
	defer m.mu.RUnlock()

	groupName, ok := m.assigned[track]
	if !ok {
		return 1.0, false
	}
	g, ok := m.groups[groupName]
	if !ok {
		return 1.0, false
	}
	return g.Gain, g.Mute
}
