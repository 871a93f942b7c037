package midi

import (
	"bytes"
	"sync/atomic"
	"testing"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

type manualTicks struct {
	now atomic.Int64
}

func (m *manualTicks) NowTick() int64 { return m.now.Load() }

type written struct {
	tick    uint32
	kind    string
	channel uint8
	value   uint8
}

func readTrack(t *testing.T, tr smf.Track) []written {
	t.Helper()
	var out []written
	var abs uint32
	for _, ev := range tr {
		abs += ev.Delta
		msg := gomidi.Message(ev.Message)
		var ch, key, vel, prog uint8
		switch {
		case msg.GetNoteOn(&ch, &key, &vel):
			out = append(out, written{abs, "on", ch, key})
		case msg.GetNoteOff(&ch, &key, &vel):
			out = append(out, written{abs, "off", ch, key})
		case msg.GetProgramChange(&ch, &prog):
			out = append(out, written{abs, "program", ch, prog})
		}
	}
	return out
}

func TestRecorderWritesSMF(t *testing.T) {
	r := NewRecorder(nil)
	ticks := &manualTicks{}
	r.ticks = ticks

	if err := r.Load(0, "19"); err != nil {
		t.Fatal(err)
	}
	if err := r.Load(1, "organ"); err == nil {
		t.Fatal("non-numeric program accepted")
	}

	ticks.now.Store(1000)
	r.ScheduleNote(0, 0, 60, 500*time.Millisecond, 100)
	r.ScheduleNote(500*time.Millisecond, 0, 62, 250*time.Millisecond, 90)
	ticks.now.Store(1200)
	r.ScheduleNote(0, 1, 40, 100*time.Millisecond, 80)

	var buf bytes.Buffer
	if _, err := r.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}
	s, err := smf.ReadFrom(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	if tf, ok := s.TimeFormat.(smf.MetricTicks); !ok || tf.Resolution() != TicksPerQuarter {
		t.Fatalf("time format = %v", s.TimeFormat)
	}
	// tempo track plus channels 0 and 1
	if len(s.Tracks) != 3 {
		t.Fatalf("tracks = %d, want 3", len(s.Tracks))
	}

	want := []written{
		{0, "program", 0, 19},
		{0, "on", 0, 60},
		{960, "off", 0, 60},
		{960, "on", 0, 62},
		{1440, "off", 0, 62},
	}
	got := readTrack(t, s.Tracks[1])
	if len(got) != len(want) {
		t.Fatalf("channel 0 = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %+v, want %+v", i, got[i], want[i])
		}
	}

	got = readTrack(t, s.Tracks[2])
	want = []written{{384, "on", 1, 40}, {576, "off", 1, 40}}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("channel 1 = %+v, want %+v", got, want)
	}
}

func TestRecorderRebasesEarlierNotes(t *testing.T) {
	r := NewRecorder(nil)
	ticks := &manualTicks{}
	r.ticks = ticks

	ticks.now.Store(1000)
	r.ScheduleNote(200*time.Millisecond, 0, 60, 100*time.Millisecond, 100)
	r.ScheduleNote(0, 0, 50, 100*time.Millisecond, 100)

	ev := r.Events()
	if len(ev) != 4 {
		t.Fatalf("events = %+v", ev)
	}
	if ev[0].Note != 50 || ev[0].At != 0 {
		t.Errorf("first event = %+v, want key 50 at 0", ev[0])
	}
	if ev[2].Note != 60 || ev[2].Type != NoteOn || ev[2].At != 200*time.Millisecond {
		t.Errorf("third event = %+v, want key 60 on at 200ms", ev[2])
	}
}

func TestRecorderForwards(t *testing.T) {
	var sent atomic.Int32
	port := NewPort("test", func(gomidi.Message) error {
		sent.Add(1)
		return nil
	})
	r := NewRecorder(port)
	if err := r.Load(2, "5"); err != nil {
		t.Fatal(err)
	}
	if sent.Load() != 1 {
		t.Fatalf("program change not forwarded")
	}
	r.ScheduleNote(0, 2, 60, time.Millisecond, 100)
	deadline := time.Now().Add(2 * time.Second)
	for sent.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if sent.Load() != 3 {
		t.Fatalf("sent %d messages, want program, note on and note off", sent.Load())
	}
	if len(r.Events()) != 2 {
		t.Errorf("events = %+v", r.Events())
	}
}
