package sonify

import (
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"go-sonify/data"
	"go-sonify/debug"
)

// fakeTicks is a manually driven tick source.
type fakeTicks struct {
	now atomic.Int64
}

func (f *fakeTicks) NowTick() int64   { return f.now.Load() }
func (f *fakeTicks) Set(tick int64)   { f.now.Store(tick) }
func (f *fakeTicks) Advance(ms int64) { f.now.Add(ms) }

type scheduled struct {
	delay    time.Duration
	channel  uint8
	key      uint8
	duration time.Duration
	velocity uint8
}

var errBadResource = errors.New("bad resource")

// fakeSynth records what it is asked to play.
type fakeSynth struct {
	TickSource

	mu     sync.Mutex
	loaded map[uint8]string
	notes  []scheduled
}

func newFakeSynth(src TickSource) *fakeSynth {
	return &fakeSynth{TickSource: src, loaded: make(map[uint8]string)}
}

func (s *fakeSynth) Load(channel uint8, resource string) error {
	if resource == "bad" {
		return errBadResource
	}
	s.mu.Lock()
	s.loaded[channel] = resource
	s.mu.Unlock()
	return nil
}

func (s *fakeSynth) ScheduleNote(delay time.Duration, channel, key uint8, duration time.Duration, velocity uint8) {
	s.mu.Lock()
	s.notes = append(s.notes, scheduled{delay, channel, key, duration, velocity})
	s.mu.Unlock()
}

func (s *fakeSynth) Scheduled() []scheduled {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]scheduled, len(s.notes))
	copy(out, s.notes)
	return out
}

// fakeTrack emits one note per row, keyed by the row index.
type fakeTrack struct {
	channel uint8
	err     error
	panics  bool
}

func (f *fakeTrack) Channel() uint8   { return f.channel }
func (f *fakeTrack) Resource() string { return "" }

func (f *fakeTrack) GenerateNotes(row data.Row) ([]Note, error) {
	if f.panics {
		panic("broken track")
	}
	if f.err != nil {
		return nil, f.err
	}
	return []Note{{
		Channel:  f.channel,
		Value:    uint8(row.Index % 128),
		Duration: 100,
		Velocity: 100,
		TFactor:  row.TFactor,
	}}, nil
}

// rowsTable builds n rows one second apart with a numeric "v" column.
func rowsTable(n int) *data.Table {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := make([]data.Row, n)
	for i := range rows {
		rows[i] = data.Row{
			Time:   base.Add(time.Duration(i) * time.Second),
			Values: map[string]string{"v": strconv.Itoa(i)},
		}
	}
	return data.NewTable([]string{"v"}, rows, data.TimeTempoBasic)
}

// observeLogs routes debug logging into an in-memory observer.
func observeLogs(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	debug.SetLogger(zap.New(core))
	t.Cleanup(debug.Disable)
	return logs
}

// eventually polls cond until it holds or the deadline passes.
func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
