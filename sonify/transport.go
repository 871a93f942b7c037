package sonify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go-sonify/debug"
)

// State is the transport state
type State int

const (
	Stopped State = iota
	Playing
	Paused
)

func (s State) String() string {
	switch s {
	case Playing:
		return "PLAY"
	case Paused:
		return "PAUSE"
	}
	return "STOP"
}

var (
	// ErrInvalidTransition reports a transport call that does not apply to
	// the current state. The call had no effect.
	ErrInvalidTransition = errors.New("sonify: invalid transport transition")
	// ErrInvalidPosition reports a seek outside [0,1].
	ErrInvalidPosition = errors.New("sonify: position out of range")
	// ErrUnknownTrack reports removal of a track that was never added.
	ErrUnknownTrack = errors.New("sonify: unknown track")
)

// Stats is a snapshot for display
type Stats struct {
	State      State
	Position   float64
	Buffered   int
	Capacity   int
	Dispatched uint64
	Skipped    uint64 // dropped by an explicit skip (seek)
	Late       uint64 // dropped for being past the stale tolerance
}

// Transport owns the play/pause/stop/seek state machine and everything the
// generator and player share: the buffer, the clock, the gates and the
// skip-next-note flag. Workers only read its state.
type Transport struct {
	cfg    Config
	source DataSource
	synth  Synth
	tracks Tracks
	buf    *Buffer
	clock  *PlaybackClock

	mu    sync.Mutex // guards state and serializes transitions
	state State

	playing   *gate // open while Playing or Paused
	resumed   *gate // open unless Paused
	remaining *gate // open while the data source has rows left to generate

	skipNext   atomic.Bool
	gain       atomic.Int32 // master velocity scale, percent
	muted      atomic.Bool
	dispatched atomic.Uint64
	skipped    atomic.Uint64
	late       atomic.Uint64

	startOnce sync.Once
	updates   chan struct{}
}

// NewTransport creates a stopped transport. The synth doubles as the clock's
// tick source.
func NewTransport(cfg Config, source DataSource, synth Synth) *Transport {
	cfg = cfg.withDefaults()
	t := &Transport{
		cfg:       cfg,
		source:    source,
		synth:     synth,
		clock:     NewPlaybackClock(synth, cfg.Duration),
		playing:   newGate(false),
		resumed:   newGate(true),
		remaining: newGate(true),
		updates:   make(chan struct{}, 1),
	}
	t.buf = NewBuffer(t.capacity())
	t.gain.Store(100)
	return t
}

// Config returns the effective tunables.
func (t *Transport) Config() Config { return t.cfg }

// Buffer returns the note buffer.
func (t *Transport) Buffer() *Buffer { return t.buf }

// Clock returns the playback clock.
func (t *Transport) Clock() *PlaybackClock { return t.clock }

// Tracks returns the active tracks.
func (t *Transport) Tracks() []Track { return t.tracks.Snapshot() }

// batchSize is the number of notes one generator tick is expected to make.
func (t *Transport) batchSize() int {
	return t.tracks.Len() * t.cfg.RowsPerTick
}

// capacity is twice the batch size, and at least one slot for the
// end-of-data marker.
func (t *Transport) capacity() int {
	return max(1, 2*t.batchSize())
}

// StartRuntime launches the generator and player goroutines. They run until
// ctx is cancelled, whatever the transport state. Calling it again does nothing.
func (t *Transport) StartRuntime(ctx context.Context) {
	t.startOnce.Do(func() {
		go NewGenerator(t).Run(ctx)
		go NewPlayer(t, t.synth).Run(ctx)
	})
}

// Updates signals state changes and dispatches, coalesced.
func (t *Transport) Updates() <-chan struct{} {
	return t.updates
}

func (t *Transport) notify() {
	select {
	case t.updates <- struct{}{}:
	default:
	}
}

// State returns the current transport state.
func (t *Transport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Position returns the absolute position being played, false when stopped.
func (t *Transport) Position() (float64, bool) {
	return t.clock.CurrentAbsolute()
}

// Stats returns counters and buffer occupancy.
func (t *Transport) Stats() Stats {
	pos, _ := t.Position()
	return Stats{
		State:      t.State(),
		Position:   pos,
		Buffered:   t.buf.Len(),
		Capacity:   t.buf.Capacity(),
		Dispatched: t.dispatched.Load(),
		Skipped:    t.skipped.Load(),
		Late:       t.late.Load(),
	}
}

func (t *Transport) misuse(op string) error {
	debug.Warn("transport", "%s ignored while %s", op, t.state)
	return fmt.Errorf("%w: %s while %s", ErrInvalidTransition, op, t.state)
}

// Play starts from the beginning when stopped, or resumes when paused.
func (t *Transport) Play() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch t.state {
	case Playing:
		return t.misuse("play")

	case Paused:
		t.clock.Resume()
		t.state = Playing
		t.resumed.Open()
		debug.Log("transport", "resumed")

	case Stopped:
		t.source.Reset()
		t.buf.Reset(t.capacity())
		t.skipNext.Store(false)
		t.clock.Start()
		t.state = Playing
		t.remaining.Open()
		t.resumed.Open()
		t.playing.Open()
		debug.Log("transport", "playing from start, capacity=%d", t.buf.Capacity())
	}

	t.notify()
	return nil
}

// Pause freezes playback. Only valid while playing.
func (t *Transport) Pause() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != Playing {
		return t.misuse("pause")
	}
	t.clock.Pause()
	t.state = Paused
	t.resumed.Close()
	debug.Log("transport", "paused")
	t.notify()
	return nil
}

// Stop ends playback, discards buffered notes and rewinds the data.
func (t *Transport) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == Stopped {
		return t.misuse("stop")
	}
	t.stopLocked("stop")
	return nil
}

func (t *Transport) stopLocked(reason string) {
	// state first, so workers woken below see Stopped when they re-check
	t.state = Stopped
	t.playing.Close()
	t.resumed.Open()
	t.remaining.Open()
	dropped := t.buf.Reset(t.capacity())
	t.skipNext.Store(false)
	t.clock.Stop()
	t.source.Reset()
	debug.Log("transport", "stopped (%s), dropped %d buffered notes", reason, dropped)
	t.notify()
}

// Seek jumps to absolute position p in [0,1] while playing or paused.
// Buffered notes are discarded and the next note the player handles is
// skipped, since it was scheduled against the old position.
func (t *Transport) Seek(p float64) error {
	if p < 0 || p > 1 {
		debug.Warn("transport", "seek to %.3f ignored", p)
		return fmt.Errorf("%w: %v", ErrInvalidPosition, p)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == Stopped {
		return t.misuse("seek")
	}
	t.clock.Seek(p)
	if s, ok := t.source.(Seeker); ok {
		s.SeekTo(p)
	}
	dropped := t.buf.Clear()
	t.skipNext.Store(true)
	t.remaining.Open()
	debug.Log("transport", "seek to %.3f, dropped %d buffered notes", p, dropped)
	t.notify()
	return nil
}

// AddTrack loads the track's resource and activates it. A load failure is
// returned and the track stays inactive.
func (t *Transport) AddTrack(tr Track) error {
	if res := tr.Resource(); res != "" {
		if err := t.synth.Load(tr.Channel(), res); err != nil {
			debug.Error("transport", err, "track %d not activated", tr.Channel())
			return fmt.Errorf("load track %d: %w", tr.Channel(), err)
		}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tracks.Add(tr)
	t.resizeLocked()
	debug.Log("transport", "track %d added", tr.Channel())
	t.notify()
	return nil
}

// RemoveTrack deactivates a track.
func (t *Transport) RemoveTrack(tr Track) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.tracks.Remove(tr) {
		return ErrUnknownTrack
	}
	t.resizeLocked()
	debug.Log("transport", "track %d removed", tr.Channel())
	t.notify()
	return nil
}

// resizeLocked matches the buffer capacity to the track count. A running
// performance keeps its buffer until the next stop.
func (t *Transport) resizeLocked() {
	if t.state == Stopped {
		t.buf.Reset(t.capacity())
	}
}

// markExhausted closes the data gate if the source is exhausted and nothing
// (stop, seek) has reset the buffer since generation gen. It reports whether
// the end-of-data marker should be queued.
func (t *Transport) markExhausted(gen uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == Stopped || t.buf.Generation() != gen || !t.source.Exhausted() {
		return false
	}
	t.remaining.Close()
	debug.Log("transport", "data exhausted, draining %d notes", t.buf.Len())
	return true
}

// finish stops playback once the end-of-data marker of generation gen has
// been reached.
func (t *Transport) finish(gen uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == Stopped || t.buf.Generation() != gen {
		return
	}
	t.stopLocked("end of data")
}

// SetGain sets the master velocity scale in percent, applied on top of each
// track's own gain.
func (t *Transport) SetGain(percent int) {
	t.gain.Store(int32(max(0, percent)))
	t.notify()
}

// Gain returns the master velocity scale in percent.
func (t *Transport) Gain() int { return int(t.gain.Load()) }

// SetMuted silences every track without changing their own mute flags.
func (t *Transport) SetMuted(muted bool) {
	t.muted.Store(muted)
	t.notify()
}

// Muted reports whether the master mute is on.
func (t *Transport) Muted() bool { return t.muted.Load() }

// takeSkip consumes the skip-next-note request.
func (t *Transport) takeSkip() bool {
	return t.skipNext.Swap(false)
}
