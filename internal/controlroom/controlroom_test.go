package controlroom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelforge/engine/internal/ids"
)

func constBuf(v float64, n int) []float64 {
	buf := make([]float64, n)
	for i := range buf {
		buf[i] = v
	}
	return buf
}

func TestModeDefaultsToSIP(t *testing.T) {
	r := New(4)
	assert.Equal(t, ModeSIP, r.Mode())
}

func TestSetModeRoundTrips(t *testing.T) {
	r := New(4)
	r.SetMode(ModePFL)
	assert.Equal(t, ModePFL, r.Mode())
}

func TestTrackSoloTrackingAndAnySoloed(t *testing.T) {
	r := New(4)
	track := ids.TrackID(1)
	assert.False(t, r.IsTrackSoloed(track))
	assert.False(t, r.AnySoloed())

	r.SetTrackSolo(track, true)
	assert.True(t, r.IsTrackSoloed(track))
	assert.True(t, r.AnySoloed())

	r.SetTrackSolo(track, false)
	assert.False(t, r.IsTrackSoloed(track))
	assert.False(t, r.AnySoloed())
}

func TestCueMixLevelRoundTrips(t *testing.T) {
	r := New(4)
	cm := r.CreateCueMix("drummer")
	track := ids.TrackID(1)

	assert.Equal(t, 0.0, cm.Level(track))
	cm.SetLevel(track, 0.8)
	assert.Equal(t, 0.8, cm.Level(track))

	assert.Same(t, cm, r.CueMix("drummer"))
	assert.Nil(t, r.CueMix("missing"))
}

func TestCueMixAddScalesBySendLevel(t *testing.T) {
	r := New(4)
	cm := r.CreateCueMix("vocalist")
	track := ids.TrackID(1)
	cm.SetLevel(track, 0.5)

	cm.Add(track, constBuf(1, 4), constBuf(1, 4))
	left, right := cm.Buffers()
	for i := range left {
		assert.InDelta(t, 0.5, left[i], 1e-9)
		assert.InDelta(t, 0.5, right[i], 1e-9)
	}
}

func TestCueMixAddSkipsZeroOrNegativeLevel(t *testing.T) {
	r := New(4)
	cm := r.CreateCueMix("vocalist")
	track := ids.TrackID(1)

	cm.Add(track, constBuf(1, 4), constBuf(1, 4))
	left, _ := cm.Buffers()
	for _, v := range left {
		assert.Equal(t, 0.0, v)
	}
}

func TestCueMixClearZeroesBuffers(t *testing.T) {
	r := New(4)
	cm := r.CreateCueMix("vocalist")
	track := ids.TrackID(1)
	cm.SetLevel(track, 1.0)
	cm.Add(track, constBuf(1, 4), constBuf(1, 4))
	cm.Clear()

	left, right := cm.Buffers()
	for i := range left {
		assert.Equal(t, 0.0, left[i])
		assert.Equal(t, 0.0, right[i])
	}
}

func TestTapSoloOnlyAccumulatesForSoloedTracks(t *testing.T) {
	r := New(4)
	soloed := ids.TrackID(1)
	notSoloed := ids.TrackID(2)
	r.SetTrackSolo(soloed, true)

	r.TapSolo(soloed, constBuf(1, 4), constBuf(1, 4))
	r.TapSolo(notSoloed, constBuf(1, 4), constBuf(1, 4))

	left, right := r.SoloBus()
	for i := range left {
		assert.InDelta(t, 1.0, left[i], 1e-9)
		assert.InDelta(t, 1.0, right[i], 1e-9)
	}
}

func TestClearBlockResetsSoloBusAndCueMixes(t *testing.T) {
	r := New(4)
	track := ids.TrackID(1)
	r.SetTrackSolo(track, true)
	r.TapSolo(track, constBuf(1, 4), constBuf(1, 4))

	cm := r.CreateCueMix("drummer")
	cm.SetLevel(track, 1.0)
	cm.Add(track, constBuf(1, 4), constBuf(1, 4))

	r.ClearBlock()

	soloLeft, _ := r.SoloBus()
	for _, v := range soloLeft {
		assert.Equal(t, 0.0, v)
	}
	cmLeft, _ := cm.Buffers()
	for _, v := range cmLeft {
		assert.Equal(t, 0.0, v)
	}
}

func TestCreateCueMixOverwritesExistingName(t *testing.T) {
	r := New(4)
	require.NotNil(t, r.CreateCueMix("drummer"))
	second := r.CreateCueMix("drummer")
	assert.Same(t, second, r.CueMix("drummer"))
}
