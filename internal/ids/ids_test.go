package ids

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextIsMonotonicAndNeverZero(t *testing.T) {
	a := Next()
	b := Next()
	assert.NotZero(t, a)
	assert.Greater(t, b, a)
}

func TestTypedWrappersAreDistinctSequence(t *testing.T) {
	track := NextTrack()
	clip := NextClip()
	assert.NotZero(t, track)
	assert.NotZero(t, clip)
	assert.NotEqual(t, uint64(track), uint64(clip))
}

func TestNextConcurrentNeverDuplicates(t *testing.T) {
	const n = 1000
	seen := make(chan uint64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seen <- Next()
		}()
	}
	wg.Wait()
	close(seen)

	unique := make(map[uint64]bool, n)
	for v := range seen {
		assert.False(t, unique[v], "id %d allocated twice", v)
		unique[v] = true
	}
	assert.Len(t, unique, n)
}

func TestBusIDStringAndValid(t *testing.T) {
	cases := []struct {
		bus   BusID
		name  string
		valid bool
	}{
		{BusMaster, "master", true},
		{BusMusic, "music", true},
		{BusSfx, "sfx", true},
		{BusVoice, "voice", true},
		{BusAmbience, "ambience", true},
		{BusAux, "aux", true},
		{BusID(NumBuses), "unknown", false},
		{BusID(-1), "unknown", false},
	}
	for _, c := range cases {
		assert.Equal(t, c.name, c.bus.String())
		assert.Equal(t, c.valid, c.bus.Valid())
	}
}

func TestNumBusesMatchesNamedBusCount(t *testing.T) {
	assert.Equal(t, 6, NumBuses)
}
