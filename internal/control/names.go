package control

import (
	"fmt"

	"github.com/reelforge/engine/internal/ids"
	"github.com/reelforge/engine/internal/voicepool"
)

func busIndexFromName(name string) (ids.BusID, error) {
	for b := ids.BusMaster; int(b) < ids.NumBuses; b++ {
		if b.String() == name {
			return b, nil
		}
	}
	return 0, fmt.Errorf("unknown bus %q", name)
}

func sourceFromName(name string) (voicepool.Source, error) {
	switch name {
	case "daw":
		return voicepool.SourceDaw, nil
	case "slotlab":
		return voicepool.SourceSlotLab, nil
	case "middleware":
		return voicepool.SourceMiddleware, nil
	case "browser":
		return voicepool.SourceBrowser, nil
	default:
		return 0, fmt.Errorf("unknown voice source %q", name)
	}
}
