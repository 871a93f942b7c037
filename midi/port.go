package midi

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"

	"go-sonify/debug"
	"go-sonify/sonify"
)

// Sender writes one message to an output, as returned by gomidi.SendTo
type Sender func(msg gomidi.Message) error

// ParseProgram reads a track resource as a General MIDI program number
func ParseProgram(resource string) (uint8, error) {
	n, err := strconv.Atoi(resource)
	if err != nil || n < 0 || n > 127 {
		return 0, fmt.Errorf("midi: bad program %q", resource)
	}
	return uint8(n), nil
}

type voice struct {
	channel, key uint8
}

// Port plays notes on a MIDI output. Note timing is done with timers, so
// ScheduleNote never blocks the player.
type Port struct {
	*sonify.MonotonicTicks

	name string

	mu       sync.Mutex
	send     Sender
	sounding map[voice]int // note-ons without their note-off yet
	closed   bool
}

var _ sonify.Synth = (*Port)(nil)

// NewPort wraps send. name is only used for display.
func NewPort(name string, send Sender) *Port {
	return &Port{
		MonotonicTicks: sonify.NewMonotonicTicks(),
		name:           name,
		send:           send,
		sounding:       make(map[voice]int),
	}
}

// Name returns the output port name
func (p *Port) Name() string {
	return p.name
}

// Load selects the program named by resource on channel
func (p *Port) Load(channel uint8, resource string) error {
	program, err := ParseProgram(resource)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return fmt.Errorf("midi: %s is closed", p.name)
	}
	if err := p.send(gomidi.ProgramChange(channel, program)); err != nil {
		return fmt.Errorf("program change on %d: %w", channel, err)
	}
	return nil
}

// ScheduleNote sends the note-on after delay and the note-off duration later
func (p *Port) ScheduleNote(delay time.Duration, channel, key uint8, duration time.Duration, velocity uint8) {
	v := voice{channel, key}
	time.AfterFunc(delay, func() {
		if !p.noteOn(v, velocity) {
			return
		}
		time.AfterFunc(duration, func() { p.noteOff(v) })
	})
}

func (p *Port) noteOn(v voice, velocity uint8) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	if err := p.send(gomidi.NoteOn(v.channel, v.key, velocity)); err != nil {
		debug.Error("midi", err, "note on %d/%d", v.channel, v.key)
		return false
	}
	p.sounding[v]++
	return true
}

func (p *Port) noteOff(v voice) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || p.sounding[v] == 0 {
		return
	}
	p.sounding[v]--
	if p.sounding[v] == 0 {
		delete(p.sounding, v)
	}
	if err := p.send(gomidi.NoteOff(v.channel, v.key)); err != nil {
		debug.Error("midi", err, "note off %d/%d", v.channel, v.key)
	}
}

// Close releases every sounding note. Pending notes are dropped.
func (p *Port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	var first error
	for v := range p.sounding {
		if err := p.send(gomidi.NoteOff(v.channel, v.key)); err != nil && first == nil {
			first = err
		}
	}
	p.sounding = nil
	debug.Log("midi", "closed %s", p.name)
	return first
}
