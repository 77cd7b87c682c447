package metering

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/reelforge/engine/internal/ids"
)

func constBlock(v float64, n int) []float64 {
	buf := make([]float64, n)
	for i := range buf {
		buf[i] = v
	}
	return buf
}

func TestMasterUpdateBlockTracksPeakAndRMS(t *testing.T) {
	m := NewMaster(48000)
	m.UpdateBlock(constBlock(0.5, 256), constBlock(0.5, 256))

	assert.InDelta(t, 0.5, m.PeakL(), 1e-9)
	assert.InDelta(t, 0.5, m.PeakR(), 1e-9)
	assert.InDelta(t, 0.5, m.RMSL(), 1e-9)
	assert.InDelta(t, 0.5, m.RMSR(), 1e-9)
}

func TestMasterPeakDecaysBetweenBlocksWithoutRetriggering(t *testing.T) {
	m := NewMaster(48000)
	m.UpdateBlock(constBlock(1.0, 256), constBlock(1.0, 256))
	peakAfterLoud := m.PeakL()

	m.UpdateBlock(constBlock(0.0, 256), constBlock(0.0, 256))
	peakAfterSilence := m.PeakL()

	assert.Less(t, peakAfterSilence, peakAfterLoud)
	assert.Greater(t, peakAfterSilence, 0.0, "peak hold decays gradually, not instantly")
}

func TestMasterCorrelationIsOneForIdenticalChannels(t *testing.T) {
	m := NewMaster(48000)
	for i := 0; i < 200; i++ {
		m.UpdateBlock(constBlock(0.7, 256), constBlock(0.7, 256))
	}
	assert.InDelta(t, 1.0, m.Correlation(), 1e-6)
}

func TestMasterCorrelationIsNegativeForInvertedChannels(t *testing.T) {
	m := NewMaster(48000)
	for i := 0; i < 5; i++ {
		m.UpdateBlock(constBlock(0.7, 256), constBlock(-0.7, 256))
	}
	assert.Less(t, m.Correlation(), 0.0)
}

func TestMasterBalanceIsZeroWhenChannelsAreEqual(t *testing.T) {
	m := NewMaster(48000)
	for i := 0; i < 5; i++ {
		m.UpdateBlock(constBlock(0.5, 256), constBlock(0.5, 256))
	}
	assert.InDelta(t, 0.0, m.Balance(), 1e-6)
}

func TestMasterBalanceSkewsTowardLouderChannel(t *testing.T) {
	m := NewMaster(48000)
	for i := 0; i < 5; i++ {
		m.UpdateBlock(constBlock(0.2, 256), constBlock(0.8, 256))
	}
	assert.Greater(t, m.Balance(), 0.0, "balance should skew positive when right is louder")
}

func TestMasterTruePeakReportsDecibels(t *testing.T) {
	m := NewMaster(48000)
	m.UpdateBlock(constBlock(1.0, 256), constBlock(1.0, 256))
	assert.InDelta(t, 0.0, m.TruePeakL(), 1.0)
}

func TestMasterUpdateBlockIgnoresEmptyInput(t *testing.T) {
	m := NewMaster(48000)
	assert.NotPanics(t, func() {
		m.UpdateBlock(nil, nil)
	})
	assert.Equal(t, 0.0, m.PeakL())
}

func TestMasterLUFSIntegratedIsSilentFloorWhenOnlySilenceSeen(t *testing.T) {
	m := NewMaster(48000)
	m.UpdateBlock(constBlock(0, 256), constBlock(0, 256))
	assert.True(t, math.IsInf(m.LUFSIntegrated(), -1))
}

func TestTrackMeterUpdateBlockTracksPeakAndRMS(t *testing.T) {
	tm := NewTrackMeter()
	tm.UpdateBlock(constBlock(0.25, 128), constBlock(0.25, 128))

	assert.InDelta(t, 0.25, tm.PeakL(), 1e-9)
	assert.InDelta(t, 0.25, tm.RMSL(), 1e-9)
}

func TestTrackMetersForCreatesAndReusesPerTrackMeter(t *testing.T) {
	tms := NewTrackMeters()
	track := ids.TrackID(1)
	a := tms.For(track)
	b := tms.For(track)
	assert.Same(t, a, b)
}

func TestTrackMetersRemoveDropsMeter(t *testing.T) {
	tms := NewTrackMeters()
	track := ids.TrackID(1)
	first := tms.For(track)
	first.UpdateBlock(constBlock(1, 64), constBlock(1, 64))

	tms.Remove(track)
	second := tms.For(track)
	assert.NotSame(t, first, second)
	assert.Equal(t, 0.0, second.PeakL())
}

func TestSpectrumUpdateProducesNormalizedBins(t *testing.T) {
	s := NewSpectrum(48000)
	left := make([]float64, 512)
	right := make([]float64, 512)
	for i := range left {
		left[i] = math.Sin(2 * math.Pi * 1000 * float64(i) / 48000)
		right[i] = left[i]
	}
	s.Update(left, right)

	bins := s.Bins()
	for _, b := range bins {
		assert.GreaterOrEqual(t, b, 0.0)
		assert.LessOrEqual(t, b, 1.0)
	}
}

func TestSpectrumBinsStartAtZeroBeforeAnyUpdate(t *testing.T) {
	s := NewSpectrum(48000)
	for _, b := range s.Bins() {
		assert.Equal(t, 0.0, b)
	}
}

func TestEnergyToLUFSMatchesKnownOffset(t *testing.T) {
	assert.InDelta(t, -0.691, energyToLUFS(1.0), 1e-9)
}

func TestEnergyToLUFSNegativeInfinityForSilence(t *testing.T) {
	assert.True(t, math.IsInf(energyToLUFS(0), -1))
}
