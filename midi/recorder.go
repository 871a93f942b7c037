package midi

import (
	"fmt"
	"io"
	"os"
	"slices"
	"sync"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"go-sonify/debug"
	"go-sonify/sonify"
)

const (
	// TicksPerQuarter is the resolution of written files
	TicksPerQuarter = 960
	// recordings are written at a fixed 120 bpm, so ticks track wall time
	recordBPM      = 120
	quarterMillis  = 60000 / recordBPM
	recordChannels = 16
)

// Recorder captures every dispatched note so the performance can be saved as
// a Standard MIDI File. It forwards to next when there is one.
type Recorder struct {
	next  sonify.Synth
	ticks sonify.TickSource

	mu       sync.Mutex
	programs map[uint8]uint8
	events   []Event
	origin   int64 // tick of the first note
	started  bool
}

var _ sonify.Synth = (*Recorder)(nil)

// NewRecorder records on top of next, which may be nil for silent recording
func NewRecorder(next sonify.Synth) *Recorder {
	r := &Recorder{next: next, programs: make(map[uint8]uint8)}
	if next != nil {
		r.ticks = next
	} else {
		r.ticks = sonify.NewMonotonicTicks()
	}
	return r
}

func (r *Recorder) NowTick() int64 {
	return r.ticks.NowTick()
}

// Load remembers the channel's program and passes it on
func (r *Recorder) Load(channel uint8, resource string) error {
	program, err := ParseProgram(resource)
	if err != nil {
		return err
	}
	if r.next != nil {
		if err := r.next.Load(channel, resource); err != nil {
			return err
		}
	}
	r.mu.Lock()
	r.programs[channel] = program
	r.mu.Unlock()
	return nil
}

// ScheduleNote records the note at the time it will sound
func (r *Recorder) ScheduleNote(delay time.Duration, channel, key uint8, duration time.Duration, velocity uint8) {
	at := r.ticks.NowTick() + delay.Milliseconds()

	r.mu.Lock()
	if !r.started || at < r.origin {
		r.rebase(at)
	}
	on := time.Duration(at-r.origin) * time.Millisecond
	r.events = append(r.events,
		Event{At: on, Type: NoteOn, Channel: channel, Note: key, Velocity: velocity},
		Event{At: on + duration, Type: NoteOff, Channel: channel, Note: key},
	)
	r.mu.Unlock()

	if r.next != nil {
		r.next.ScheduleNote(delay, channel, key, duration, velocity)
	}
}

// rebase moves the origin back to at, shifting what was already recorded
func (r *Recorder) rebase(at int64) {
	if r.started {
		shift := time.Duration(r.origin-at) * time.Millisecond
		for i := range r.events {
			r.events[i].At += shift
		}
	}
	r.origin = at
	r.started = true
}

// Events returns the recorded events in time order
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	out := slices.Clone(r.events)
	r.mu.Unlock()
	slices.SortStableFunc(out, byTime)
	return out
}

// toTicks converts wall time to file ticks at the recording tempo
func toTicks(d time.Duration) uint32 {
	return uint32(d.Milliseconds() * TicksPerQuarter / quarterMillis)
}

// SMF builds the file: a tempo track, then one track per channel used
func (r *Recorder) SMF() (*smf.SMF, error) {
	events := r.Events()
	r.mu.Lock()
	programs := make(map[uint8]uint8, len(r.programs))
	for ch, p := range r.programs {
		programs[ch] = p
	}
	r.mu.Unlock()

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(TicksPerQuarter)

	var tempo smf.Track
	tempo.Add(0, smf.MetaMeter(4, 4))
	tempo.Add(0, smf.MetaTempo(recordBPM))
	tempo.Close(0)
	if err := s.Add(tempo); err != nil {
		return nil, fmt.Errorf("add tempo track: %w", err)
	}

	for ch := uint8(0); ch < recordChannels; ch++ {
		var track smf.Track
		var last uint32
		used := false
		if p, ok := programs[ch]; ok {
			track.Add(0, gomidi.ProgramChange(ch, p))
			used = true
		}
		for _, ev := range events {
			if ev.Channel != ch {
				continue
			}
			at := toTicks(ev.At)
			var msg gomidi.Message
			if ev.Type == NoteOn {
				msg = gomidi.NoteOn(ch, ev.Note, ev.Velocity)
			} else {
				msg = gomidi.NoteOff(ch, ev.Note)
			}
			track.Add(at-last, msg)
			last = at
			used = true
		}
		if !used {
			continue
		}
		track.Close(0)
		if err := s.Add(track); err != nil {
			return nil, fmt.Errorf("add track for channel %d: %w", ch, err)
		}
	}
	return s, nil
}

// WriteTo writes the recording as a Standard MIDI File
func (r *Recorder) WriteTo(w io.Writer) (int64, error) {
	s, err := r.SMF()
	if err != nil {
		return 0, err
	}
	return s.WriteTo(w)
}

// WriteFile saves the recording to path
func (r *Recorder) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := r.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	debug.Log("midi", "recording saved to %s", path)
	return nil
}
