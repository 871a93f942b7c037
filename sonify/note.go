package sonify

import (
	"fmt"
	"math"
)

// Note is a single scheduled sound, produced by a Track for one data row.
type Note struct {
	ID       uint64  // stamped by the Generator, monotonic
	Channel  uint8   // track channel
	Value    uint8   // pitch 0-127
	Duration int     // ms
	Velocity uint8   // 0-127
	TFactor  float64 // normalized position in the performance, [0,1]

	last bool // end-of-data marker, sorts after every real note
}

// endOfData marks the end of the performance in the buffer. The player ends
// playback when it reaches it, so every earlier note has been handled.
func endOfData() Note {
	return Note{ID: math.MaxUint64, TFactor: 1, last: true}
}

// Before orders notes by (TFactor, ID).
func (n Note) Before(o Note) bool {
	if n.TFactor != o.TFactor {
		return n.TFactor < o.TFactor
	}
	return n.ID < o.ID
}

func (n Note) String() string {
	return fmt.Sprintf("note#%d ch=%d key=%d vel=%d dur=%dms t=%.4f",
		n.ID, n.Channel, n.Value, n.Velocity, n.Duration, n.TFactor)
}

// clamp7 limits v to the 7-bit MIDI range.
func clamp7(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 127 {
		return 127
	}
	return uint8(v)
}
