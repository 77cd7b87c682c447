// Package delaycomp implements DelayCompensation from spec.md section
// 4.10: per-track delay buffers that hold lower-latency tracks back so
// every track stays sample-aligned with the track carrying the highest
// reported insert-chain latency.
package delaycomp

import (
	"sync"

	"github.com/reelforge/engine/internal/ids"
)

// ringBuffer is a simple power-of-two-free circular delay line; small
// latencies (tens to low hundreds of samples) don't warrant a power-of-two
// mask, so modulo is used directly.
type ringBuffer struct {
	bufL, bufR []float64
	writePos   int
	delay      int
}

func newRingBuffer(delay int) *ringBuffer {
	size := delay + 1
	if size < 1 {
		size = 1
	}
	return &ringBuffer{bufL: make([]float64, size), bufR: make([]float64, size), delay: delay}
}

// process delays left/right in place by rb.delay samples, reusing the same
// slices (processing sample-by-sample since output at sample i depends on
// input written `delay` samples earlier).
func (rb *ringBuffer) process(left, right []float64) {
	if rb.delay == 0 {
		return
	}
	size := len(rb.bufL)
	for i := range left {
		readPos := (rb.writePos + 1) % size
		outL, outR := rb.bufL[readPos], rb.bufR[readPos]
		rb.bufL[rb.writePos] = left[i]
		rb.bufR[rb.writePos] = right[i]
		left[i] = outL
		right[i] = outR
		rb.writePos = readPos
	}
}

// Manager tracks each track's reported insert-chain latency and maintains
// the corresponding compensation delay buffer.
type Manager struct {
	mu       sync.Mutex
	latency  map[ids.TrackID]int
	buffers  map[ids.TrackID]*ringBuffer
	maxLat   int
	enabled  bool
}

// New constructs a Manager; compensation starts disabled per spec.md 4.10
// ("Disabled by configuration; when disabled, all tracks run at zero
// compensation").
func New() *Manager {
	return &Manager{
		latency: make(map[ids.TrackID]int),
		buffers: make(map[ids.TrackID]*ringBuffer),
	}
}

func (m *Manager) SetEnabled(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = enabled
	if !enabled {
		m.buffers = make(map[ids.TrackID]*ringBuffer)
	}
}

func (m *Manager) Enabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled
}

// ReportLatency updates a track's reported insert-chain latency and
// recomputes every node's compensation_delay = max_latency - node_latency.
func (m *Manager) ReportLatency(track ids.TrackID, latencySamples int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latency[track] = latencySamples

	maxLat := 0
	for _, l := range m.latency {
		if l > maxLat {
			maxLat = l
		}
	}
	m.maxLat = maxLat

	if !m.enabled {
		return
	}
	for id, l := range m.latency {
		comp := maxLat - l
		m.buffers[id] = newRingBuffer(comp)
	}
}

// RemoveTrack drops a track's latency report and delay buffer.
func (m *Manager) RemoveTrack(track ids.TrackID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.latency, track)
	delete(m.buffers, track)
}

// Apply delays track's rendered output in place by its current
// compensation amount; a no-op when compensation is disabled or the track
// has zero compensation delay.
func (m *Manager) Apply(track ids.TrackID, left, right []float64) {
	m.mu.Lock()
	rb, ok := m.buffers[track]
	m.mu.Unlock()
	if !ok {
		return
	}
	rb.process(left, right)
}

// CompensationSamples returns track's current compensation delay.
func (m *Manager) CompensationSamples(track ids.TrackID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rb, ok := m.buffers[track]; ok {
		return rb.delay
	}
	return 0
}
