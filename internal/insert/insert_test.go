package insert

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRejectsOutOfRangeSlot(t *testing.T) {
	c := New(48000)
	assert.False(t, c.Load(-1, NewGainProcessor()))
	assert.False(t, c.Load(Slots, NewGainProcessor()))
}

func TestLoadInstallsAndSetsSampleRate(t *testing.T) {
	c := New(48000)
	g := NewGainProcessor()
	require.True(t, c.Load(0, g))
	assert.True(t, c.HasSlot(0))
	assert.False(t, c.HasSlot(1))
	assert.Equal(t, 48000.0, g.sampleRate)
}

func TestUnloadReturnsProcessorAndClearsSlot(t *testing.T) {
	c := New(48000)
	g := NewGainProcessor()
	c.Load(2, g)

	got := c.Unload(2)
	assert.Same(t, g, got)
	assert.False(t, c.HasSlot(2))
	assert.Nil(t, c.Unload(2))
}

func TestProcessPostFaderAppliesLoadedSlotInOrder(t *testing.T) {
	c := New(48000)
	g := NewGainProcessor()
	g.SetParam(0, 2.0)
	c.Load(0, g)

	left := []float64{1, 2, 3}
	right := []float64{1, 2, 3}
	c.ProcessPostFader(left, right)

	assert.Equal(t, []float64{2, 4, 6}, left)
	assert.Equal(t, []float64{2, 4, 6}, right)
}

func TestProcessPreFaderIgnoresPostFaderSlots(t *testing.T) {
	c := New(48000)
	g := NewGainProcessor()
	g.SetParam(0, 5.0) // default position is PostFader
	c.Load(0, g)

	left := []float64{1}
	right := []float64{1}
	c.ProcessPreFader(left, right)

	assert.Equal(t, []float64{1}, left, "PostFader slot must not run during ProcessPreFader")
}

func TestBypassSkipsProcessing(t *testing.T) {
	c := New(48000)
	g := NewGainProcessor()
	g.SetParam(0, 10.0)
	c.Load(0, g)
	c.SetBypass(0, true)

	left := []float64{1, 1}
	right := []float64{1, 1}
	c.ProcessPostFader(left, right)

	assert.Equal(t, []float64{1, 1}, left)
}

func TestMixBlendsWetAndDrySignal(t *testing.T) {
	c := New(48000)
	g := NewGainProcessor()
	g.SetParam(0, 3.0) // wet output would be 3x input
	c.Load(0, g)
	c.SetMix(0, 0.5)

	left := []float64{2}
	right := []float64{2}
	c.ProcessPostFader(left, right)

	// wet=3*2=6, dry=2, mix 0.5 -> 0.5*6 + 0.5*2 = 4
	assert.InDelta(t, 4.0, left[0], 1e-9)
}

func TestSetMixClampsToUnitRange(t *testing.T) {
	c := New(48000)
	c.Load(0, NewGainProcessor())
	assert.True(t, c.SetMix(0, -1))
	assert.Equal(t, 0.0, c.slots[0].mix)
	assert.True(t, c.SetMix(0, 5))
	assert.Equal(t, 1.0, c.slots[0].mix)
	assert.False(t, c.SetMix(-1, 0.5))
}

func TestTotalLatencySumsLoadedSlotsOnly(t *testing.T) {
	c := New(48000)
	c.Load(0, NewLimiterProcessor(64))
	c.Load(1, NewLimiterProcessor(32))
	assert.Equal(t, 96, c.TotalLatency())

	c.Unload(1)
	assert.Equal(t, 64, c.TotalLatency())
}

func TestSetAndGetSlotParamRoundTrips(t *testing.T) {
	c := New(48000)
	c.Load(0, NewGainProcessor())

	assert.True(t, c.SetSlotParam(0, 0, 0.75))
	v, ok := c.GetSlotParam(0, 0)
	assert.True(t, ok)
	assert.InDelta(t, 0.75, v, 1e-9)

	_, ok = c.GetSlotParam(1, 0)
	assert.False(t, ok, "unloaded slot has no param")
}

func TestSetPositionMovesSlotBetweenPreAndPostFader(t *testing.T) {
	c := New(48000)
	g := NewGainProcessor()
	g.SetParam(0, 2.0)
	c.Load(0, g)
	c.SetPosition(0, PreFader)

	left := []float64{1}
	right := []float64{1}
	c.ProcessPreFader(left, right)
	assert.Equal(t, []float64{2}, left)
}

func TestLimiterProcessorClampsToConfiguredCeiling(t *testing.T) {
	l := NewLimiterProcessor(0)
	l.SetParam(0, 0.5)
	left := []float64{2, -2, 0.1}
	right := []float64{2, -2, 0.1}
	l.Process(left, right)
	assert.Equal(t, []float64{0.5, -0.5, 0.1}, left)
}

func TestApplyClipFxSampleGain(t *testing.T) {
	assert.InDelta(t, 4.0, ApplyClipFxSample(ClipFxGain, 2.0, 2.0, nil), 1e-9)
}

func TestApplyClipFxSampleSaturationBoundedByTanh(t *testing.T) {
	v := ApplyClipFxSample(ClipFxSaturation, 10.0, 1.0, nil)
	assert.LessOrEqual(t, v, 1.0)
	assert.GreaterOrEqual(t, v, -1.0)
}

func TestApplyClipFxSampleLimiterClamps(t *testing.T) {
	assert.InDelta(t, 0.8, ApplyClipFxSample(ClipFxLimiter, 2.0, 0.8, nil), 1e-9)
	assert.InDelta(t, -0.8, ApplyClipFxSample(ClipFxLimiter, -2.0, 0.8, nil), 1e-9)
	assert.InDelta(t, 0.3, ApplyClipFxSample(ClipFxLimiter, 0.3, 0.8, nil), 1e-9)
}

func TestApplyClipFxSampleGateSilencesBelowThreshold(t *testing.T) {
	assert.Equal(t, 0.0, ApplyClipFxSample(ClipFxGate, 0.01, 0.1, nil))
	assert.Equal(t, 0.5, ApplyClipFxSample(ClipFxGate, 0.5, 0.1, nil))
}

func TestApplyClipFxSampleCompressorReducesGainAboveThreshold(t *testing.T) {
	out := ApplyClipFxSample(ClipFxCompressor, 1.0, 0.5, nil)
	assert.Less(t, out, 1.0)
	assert.Greater(t, out, 0.5)

	under := ApplyClipFxSample(ClipFxCompressor, 0.2, 0.5, nil)
	assert.Equal(t, 0.2, under)
}
