package automation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelforge/engine/internal/ids"
)

func TestBlockChangesEmptyForUntouchedEngine(t *testing.T) {
	e := New()
	assert.Empty(t, e.BlockChanges(0))
}

func TestAddPointAndBlockChangesHoldsLastValue(t *testing.T) {
	e := New()
	track := ids.TrackID(1)
	e.AddPoint(track, ParamVolume, 0, 1.0)
	e.AddPoint(track, ParamVolume, 1000, 0.5)
	e.AddPoint(track, ParamVolume, 2000, 0.0)

	changes := e.BlockChanges(1500)
	assert.Len(t, changes, 1)
	assert.Equal(t, 0.5, changes[0].Value)
	assert.Equal(t, ParamVolume, changes[0].Kind)
	assert.Equal(t, track, changes[0].Track)
}

func TestBlockChangesBeforeFirstPointUsesFirstValue(t *testing.T) {
	e := New()
	track := ids.TrackID(1)
	e.AddPoint(track, ParamVolume, 1000, 0.3)

	changes := e.BlockChanges(0)
	assert.Len(t, changes, 1)
	assert.Equal(t, 0.3, changes[0].Value)
}

func TestAddPointReplacesExistingPointAtSameSample(t *testing.T) {
	e := New()
	track := ids.TrackID(1)
	e.AddPoint(track, ParamVolume, 500, 1.0)
	e.AddPoint(track, ParamVolume, 500, 0.2)

	changes := e.BlockChanges(500)
	assert.Len(t, changes, 1)
	assert.Equal(t, 0.2, changes[0].Value)
}

func TestAddSendPointCreatesDistinctLanePerBus(t *testing.T) {
	e := New()
	track := ids.TrackID(1)
	e.AddSendPoint(track, ids.BusMusic, false, 0, 0.8)
	e.AddSendPoint(track, ids.BusSfx, false, 0, 0.3)

	changes := e.BlockChanges(0)
	assert.Len(t, changes, 2)

	byBus := map[ids.BusID]float64{}
	for _, c := range changes {
		assert.Equal(t, ParamSendLevel, c.Kind)
		byBus[c.Bus] = c.Value
	}
	assert.Equal(t, 0.8, byBus[ids.BusMusic])
	assert.Equal(t, 0.3, byBus[ids.BusSfx])
}

func TestAddSendPointDistinguishesPreAndPostFaderTaps(t *testing.T) {
	e := New()
	track := ids.TrackID(1)
	e.AddSendPoint(track, ids.BusAux, true, 0, 0.6)
	e.AddSendPoint(track, ids.BusAux, false, 0, 0.2)

	changes := e.BlockChanges(0)
	require.Len(t, changes, 2)

	byTap := map[bool]float64{}
	for _, c := range changes {
		byTap[c.PreFader] = c.Value
	}
	assert.Equal(t, 0.6, byTap[true])
	assert.Equal(t, 0.2, byTap[false])
}

func TestTryBlockChangesReusesDestinationSlice(t *testing.T) {
	e := New()
	track := ids.TrackID(1)
	e.AddPoint(track, ParamVolume, 0, 1.0)

	dst := make([]Change, 0, 4)
	changes, ok := e.TryBlockChanges(0, dst)
	require.True(t, ok)
	require.Len(t, changes, 1)
	assert.Equal(t, 1.0, changes[0].Value)
	assert.Same(t, &dst[:1][0], &changes[0], "result must reuse dst's backing array")
}

func TestRemoveTrackDeletesAllItsLanes(t *testing.T) {
	e := New()
	trackA := ids.TrackID(1)
	trackB := ids.TrackID(2)
	e.AddPoint(trackA, ParamVolume, 0, 1.0)
	e.AddPoint(trackA, ParamPan, 0, 0.0)
	e.AddPoint(trackB, ParamVolume, 0, 0.5)

	e.RemoveTrack(trackA)

	changes := e.BlockChanges(0)
	assert.Len(t, changes, 1)
	assert.Equal(t, trackB, changes[0].Track)
}

func TestHasLaneReflectsPresenceOfBreakpoints(t *testing.T) {
	e := New()
	track := ids.TrackID(1)
	assert.False(t, e.HasLane(track, ParamVolume))

	e.AddPoint(track, ParamVolume, 0, 1.0)
	assert.True(t, e.HasLane(track, ParamVolume))
	assert.False(t, e.HasLane(track, ParamPan))
}

func TestBlockChangesHandlesOutOfOrderInserts(t *testing.T) {
	e := New()
	track := ids.TrackID(1)
	e.AddPoint(track, ParamVolume, 2000, 0.9)
	e.AddPoint(track, ParamVolume, 0, 0.1)
	e.AddPoint(track, ParamVolume, 1000, 0.5)

	assert.Equal(t, 0.1, singleValue(e.BlockChanges(500)))
	assert.Equal(t, 0.5, singleValue(e.BlockChanges(1999)))
	assert.Equal(t, 0.9, singleValue(e.BlockChanges(5000)))
}

func singleValue(changes []Change) float64 {
	if len(changes) != 1 {
		panic("expected exactly one change")
	}
	return changes[0].Value
}
