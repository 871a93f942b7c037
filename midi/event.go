package midi

import "time"

// MIDI message types
const (
	NoteOn        uint8 = 0x90
	NoteOff       uint8 = 0x80
	ProgramChange uint8 = 0xC0
)

// Event is a channel message at a point of the recorded performance
type Event struct {
	At       time.Duration // since the first recorded note
	Type     uint8         // NoteOn, NoteOff, ProgramChange
	Channel  uint8
	Note     uint8 // program number for ProgramChange
	Velocity uint8
}

// byTime orders events by time, note-offs first so a retriggered key is
// released before it sounds again.
func byTime(a, b Event) int {
	if a.At != b.At {
		if a.At < b.At {
			return -1
		}
		return 1
	}
	return rank(a.Type) - rank(b.Type)
}

func rank(t uint8) int {
	switch t {
	case ProgramChange:
		return 0
	case NoteOff:
		return 1
	}
	return 2
}
