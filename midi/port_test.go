package midi

import (
	"sync"
	"testing"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
)

type wire struct {
	mu   sync.Mutex
	msgs []gomidi.Message
}

func (w *wire) send(msg gomidi.Message) error {
	w.mu.Lock()
	w.msgs = append(w.msgs, msg)
	w.mu.Unlock()
	return nil
}

func (w *wire) sent() []gomidi.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]gomidi.Message(nil), w.msgs...)
}

func (w *wire) waitFor(t *testing.T, n int) []gomidi.Message {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if msgs := w.sent(); len(msgs) >= n {
			return msgs
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("got %d messages, want %d", len(w.sent()), n)
	return nil
}

func TestParseProgram(t *testing.T) {
	for _, bad := range []string{"", "piano", "-1", "128"} {
		if _, err := ParseProgram(bad); err == nil {
			t.Errorf("ParseProgram(%q) accepted", bad)
		}
	}
	if p, err := ParseProgram("73"); err != nil || p != 73 {
		t.Errorf("ParseProgram(73) = %d, %v", p, err)
	}
}

func TestPortLoad(t *testing.T) {
	w := &wire{}
	p := NewPort("test", w.send)
	if err := p.Load(3, "41"); err != nil {
		t.Fatal(err)
	}
	if err := p.Load(3, "violin"); err == nil {
		t.Fatal("bad resource accepted")
	}

	msgs := w.sent()
	var ch, prog uint8
	if len(msgs) != 1 || !msgs[0].GetProgramChange(&ch, &prog) || ch != 3 || prog != 41 {
		t.Fatalf("sent %v", msgs)
	}
}

func TestPortSchedulesNoteOnAndOff(t *testing.T) {
	w := &wire{}
	p := NewPort("test", w.send)

	start := time.Now()
	p.ScheduleNote(20*time.Millisecond, 1, 64, 30*time.Millisecond, 99)
	msgs := w.waitFor(t, 2)
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("note finished after %v, before its delay and duration", elapsed)
	}

	var ch, key, vel uint8
	if !msgs[0].GetNoteOn(&ch, &key, &vel) || ch != 1 || key != 64 || vel != 99 {
		t.Errorf("first message = %v", msgs[0])
	}
	if !msgs[1].GetNoteOff(&ch, &key, &vel) || key != 64 {
		t.Errorf("second message = %v", msgs[1])
	}
}

func TestPortCloseReleasesSoundingNotes(t *testing.T) {
	w := &wire{}
	p := NewPort("test", w.send)

	p.ScheduleNote(0, 0, 60, time.Hour, 100)
	w.waitFor(t, 1)
	p.ScheduleNote(time.Hour, 0, 62, time.Second, 100)

	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
	msgs := w.sent()
	var ch, key, vel uint8
	if len(msgs) != 2 || !msgs[1].GetNoteOff(&ch, &key, &vel) || key != 60 {
		t.Fatalf("sent %v, want note on then note off for 60", msgs)
	}
	if err := p.Load(0, "1"); err == nil {
		t.Error("load on a closed port accepted")
	}
}
