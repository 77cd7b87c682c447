// Package ids allocates process-wide, never-reused stable identifiers.
package ids

import "sync/atomic"

// TrackID, ClipID, CrossfadeID, MarkerID, VoiceID and BusID are distinct
// types so a caller can never accidentally pass a ClipID where a TrackID
// is expected.
type (
	TrackID     uint64
	ClipID      uint64
	CrossfadeID uint64
	MarkerID    uint64
	VoiceID     uint64
	BusID       int
)

// Bus indices. 0 is Master; 1..5 are the five named buses.
const (
	BusMaster BusID = iota
	BusMusic
	BusSfx
	BusVoice
	BusAmbience
	BusAux
	busCount
)

// NumBuses is the number of addressable buses including master.
const NumBuses = int(busCount)

func (b BusID) String() string {
	switch b {
	case BusMaster:
		return "master"
	case BusMusic:
		return "music"
	case BusSfx:
		return "sfx"
	case BusVoice:
		return "voice"
	case BusAmbience:
		return "ambience"
	case BusAux:
		return "aux"
	default:
		return "unknown"
	}
}

// Valid reports whether b addresses one of the fixed buses.
func (b BusID) Valid() bool {
	return b >= BusMaster && b < busCount
}

// counter is the single monotonic source for every ID type. IDs start at 1
// so the zero value of any ID type can mean "unset" / "not found".
var counter uint64

// Next allocates a fresh, never-reused raw ID value.
func Next() uint64 {
	return atomic.AddUint64(&counter, 1)
}

// NextTrack, NextClip, NextCrossfade, NextMarker and NextVoice are typed
// convenience wrappers around Next.
func NextTrack() TrackID         { return TrackID(Next()) }
func NextClip() ClipID           { return ClipID(Next()) }
func NextCrossfade() CrossfadeID { return CrossfadeID(Next()) }
func NextMarker() MarkerID       { return MarkerID(Next()) }
func NextVoice() VoiceID         { return VoiceID(Next()) }
