package delaycomp

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/reelforge/engine/internal/ids"
)

func TestDisabledByDefault(t *testing.T) {
	m := New()
	assert.False(t, m.Enabled())
}

func TestApplyIsNoOpWhenDisabled(t *testing.T) {
	m := New()
	track := ids.TrackID(1)
	m.ReportLatency(track, 100)

	left := []float64{1, 2, 3}
	right := []float64{1, 2, 3}
	m.Apply(track, left, right)

	assert.Equal(t, []float64{1, 2, 3}, left, "no compensation buffer exists while disabled")
}

func TestCompensationSamplesIsMaxLatencyMinusOwnLatency(t *testing.T) {
	m := New()
	m.SetEnabled(true)
	trackA := ids.TrackID(1)
	trackB := ids.TrackID(2)

	m.ReportLatency(trackA, 100)
	m.ReportLatency(trackB, 40)

	assert.Equal(t, 0, m.CompensationSamples(trackA))
	assert.Equal(t, 60, m.CompensationSamples(trackB))
}

func TestApplyDelaysSignalByCompensationAmount(t *testing.T) {
	m := New()
	m.SetEnabled(true)
	trackA := ids.TrackID(1)
	trackB := ids.TrackID(2)
	m.ReportLatency(trackA, 3)
	m.ReportLatency(trackB, 0) // compensation = 3

	left := []float64{1, 2, 3, 4, 5}
	right := []float64{1, 2, 3, 4, 5}
	m.Apply(trackB, left, right)

	assert.Equal(t, []float64{0, 0, 0, 1, 2}, left)
}

func TestSetEnabledFalseClearsBuffers(t *testing.T) {
	m := New()
	m.SetEnabled(true)
	track := ids.TrackID(1)
	m.ReportLatency(track, 10)
	assert.Equal(t, 0, m.CompensationSamples(track))

	m.SetEnabled(false)
	left := []float64{1, 2, 3}
	right := []float64{1, 2, 3}
	m.Apply(track, left, right)
	assert.Equal(t, []float64{1, 2, 3}, left)
}

func TestRemoveTrackDropsLatencyAndBuffer(t *testing.T) {
	m := New()
	m.SetEnabled(true)
	track := ids.TrackID(1)
	m.ReportLatency(track, 50)
	m.RemoveTrack(track)

	assert.Equal(t, 0, m.CompensationSamples(track))
}

func TestReportLatencyRecomputesEveryTracksCompensation(t *testing.T) {
	m := New()
	m.SetEnabled(true)
	trackA := ids.TrackID(1)
	trackB := ids.TrackID(2)

	m.ReportLatency(trackA, 10)
	m.ReportLatency(trackB, 5)
	assert.Equal(t, 5, m.CompensationSamples(trackB))

	// Raising trackA's latency should widen trackB's compensation too.
	m.ReportLatency(trackA, 30)
	assert.Equal(t, 25, m.CompensationSamples(trackB))
}

func TestCompensationSamplesDefaultsToZeroForUnknownTrack(t *testing.T) {
	m := New()
	m.SetEnabled(true)
	assert.Equal(t, 0, m.CompensationSamples(ids.TrackID(999)))
}
