// Package inputbus implements the InputBus + RecordingManager interface
// summary from spec.md section 4.11: hardware-input deinterleaving into
// named input buses, and punch-in/punch-out window checks for armed
// tracks during recording. Actual disk encoding is a collaborator
// (Recorder) this package only calls through an interface.
package inputbus

import (
	"sync"

	"github.com/reelforge/engine/internal/ids"
)

// PunchMode selects whether a track's recording window is the whole
// transport-recording span or a bounded punch-in/out region.
type PunchMode int

const (
	PunchModeNone PunchMode = iota
	PunchModeWindow
)

// Recorder is the disk-encoding collaborator; spec.md 4.11 explicitly
// treats encoding as "interface only".
type Recorder interface {
	WriteBlock(track ids.TrackID, left, right []float64) error
	Finish(track ids.TrackID) error
}

// InputBus holds one hardware input's deinterleaved stereo buffer.
type InputBus struct {
	left, right []float64
}

// Manager owns every named input bus plus the punch/record state for armed
// tracks. Grounded on rf-bridge/playback.rs's recording manager.
type Manager struct {
	mu         sync.Mutex
	buses      map[int]*InputBus
	armed      map[ids.TrackID]int // track -> input bus index
	punchMode  map[ids.TrackID]PunchMode
	punchStart map[ids.TrackID]int64
	punchEnd   map[ids.TrackID]int64
	recorder   Recorder
	blockSize  int
}

// New constructs a Manager sized for blockSize frames per callback.
func New(blockSize int, recorder Recorder) *Manager {
	return &Manager{
		buses:      make(map[int]*InputBus),
		armed:      make(map[ids.TrackID]int),
		punchMode:  make(map[ids.TrackID]PunchMode),
		punchStart: make(map[ids.TrackID]int64),
		punchEnd:   make(map[ids.TrackID]int64),
		recorder:   recorder,
		blockSize:  blockSize,
	}
}

// Deinterleave splits one hardware input block (interleaved L/R) into
// inputBus's stereo buffer; called once per block per physical input.
func (m *Manager) Deinterleave(inputBus int, interleaved []float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.buses[inputBus]
	if !ok {
		b = &InputBus{left: make([]float64, m.blockSize), right: make([]float64, m.blockSize)}
		m.buses[inputBus] = b
	}
	frames := len(interleaved) / 2
	if frames > m.blockSize {
		frames = m.blockSize
	}
	for i := 0; i < frames; i++ {
		b.left[i] = interleaved[2*i]
		b.right[i] = interleaved[2*i+1]
	}
}

// Bus returns the deinterleaved buffers for a given hardware input index.
func (m *Manager) Bus(inputBus int) (left, right []float64, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.buses[inputBus]
	if !ok {
		return nil, nil, false
	}
	return b.left, b.right, true
}

// ArmTrack assigns track to pull its monitor signal from inputBus.
func (m *Manager) ArmTrack(track ids.TrackID, inputBus int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.armed[track] = inputBus
}

// DisarmTrack clears a track's input-bus assignment.
func (m *Manager) DisarmTrack(track ids.TrackID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.armed, track)
	delete(m.punchMode, track)
}

// IsArmed reports whether track is currently armed for recording.
func (m *Manager) IsArmed(track ids.TrackID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.armed[track]
	return ok
}

// SetPunchWindow establishes a bounded punch-in/out recording window in
// absolute sample time for track.
func (m *Manager) SetPunchWindow(track ids.TrackID, startSample, endSample int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.punchMode[track] = PunchModeWindow
	m.punchStart[track] = startSample
	m.punchEnd[track] = endSample
}

// ClearPunchWindow reverts track to recording for the whole Recording span.
func (m *Manager) ClearPunchWindow(track ids.TrackID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.punchMode[track] = PunchModeNone
}

// InWindow reports whether sampleRange [start, end) overlaps track's
// punch window (always true when no window is set).
func (m *Manager) InWindow(track ids.TrackID, start, end int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.punchMode[track] != PunchModeWindow {
		return true
	}
	return end > m.punchStart[track] && start < m.punchEnd[track]
}

// CaptureBlock forwards an armed track's current-block samples to the
// recorder when the block overlaps the track's punch window, per spec.md
// 4.11. It does not check transport state; the caller decides when
// recording is active.
func (m *Manager) CaptureBlock(track ids.TrackID, blockStartSample int64, frames int) error {
	m.mu.Lock()
	inputIdx, armed := m.armed[track]
	m.mu.Unlock()
	if !armed {
		return nil
	}
	if !m.InWindow(track, blockStartSample, blockStartSample+int64(frames)) {
		return nil
	}
	left, right, ok := m.Bus(inputIdx)
	if !ok {
		return nil
	}
	if m.recorder == nil {
		return nil
	}
	return m.recorder.WriteBlock(track, left[:frames], right[:frames])
}

// FinishRecording flushes trailing samples for every currently armed
// track via the recorder, called on transport Stop.
func (m *Manager) FinishRecording() error {
	m.mu.Lock()
	tracks := make([]ids.TrackID, 0, len(m.armed))
	for t := range m.armed {
		tracks = append(tracks, t)
	}
	m.mu.Unlock()

	if m.recorder == nil {
		return nil
	}
	for _, t := range tracks {
		if err := m.recorder.Finish(t); err != nil {
			return err
		}
	}
	return nil
}
