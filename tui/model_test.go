package tui

import (
	"strconv"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"go-sonify/data"
	"go-sonify/midi"
	"go-sonify/sonify"
	"go-sonify/theme"
)

func newModel(t *testing.T) (Model, *sonify.Transport, *sonify.EncodedTrack) {
	t.Helper()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := make([]data.Row, 20)
	for i := range rows {
		rows[i] = data.Row{Time: base.Add(time.Duration(i) * time.Minute), Values: map[string]string{"temp": strconv.Itoa(i)}}
	}
	table := data.NewTable([]string{"temp"}, rows, data.TimeTempoBasic)

	cfg := sonify.DefaultConfig()
	cfg.Duration = 2 * time.Minute
	tr := sonify.NewTransport(cfg, table, midi.NewRecorder(nil))
	track := sonify.NewEncodedTrack(0, "19", "temp")
	if err := tr.AddTrack(track); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if tr.State() != sonify.Stopped {
			tr.Stop()
		}
	})
	return NewModel(tr, theme.New(nil), "weather.csv"), tr, track
}

func press(m Model, key string) Model {
	var msg tea.KeyMsg
	switch key {
	case " ":
		msg = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	case "left":
		msg = tea.KeyMsg{Type: tea.KeyLeft}
	case "right":
		msg = tea.KeyMsg{Type: tea.KeyRight}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
	next, _ := m.Update(msg)
	return next.(Model)
}

func TestTransportKeys(t *testing.T) {
	m, tr, _ := newModel(t)

	m = press(m, " ")
	if tr.State() != sonify.Playing {
		t.Fatalf("state after space = %v", tr.State())
	}
	m = press(m, "p")
	if tr.State() != sonify.Paused {
		t.Fatalf("state after p = %v", tr.State())
	}

	m = press(m, "7")
	if pos, _ := tr.Position(); pos < 0.69 || pos > 0.71 {
		t.Errorf("position after 7 = %v", pos)
	}
	m = press(m, "left")
	if pos, _ := tr.Position(); pos < 0.64 || pos > 0.66 {
		t.Errorf("position after left = %v", pos)
	}

	m = press(m, "s")
	if tr.State() != sonify.Stopped {
		t.Fatalf("state after s = %v", tr.State())
	}
	m = press(m, "s")
	if !strings.Contains(m.status, "stop while STOP") {
		t.Errorf("status = %q", m.status)
	}
}

func TestMuteKey(t *testing.T) {
	m, _, track := newModel(t)
	m = press(m, "m")
	if !track.Muted() {
		t.Fatal("m did not mute the selected track")
	}
	if !strings.Contains(m.View(), "temp") {
		t.Error("track list missing")
	}
	m = press(m, "m")
	if track.Muted() {
		t.Fatal("m did not unmute")
	}

	m = press(m, "M")
	if !m.Transport.Muted() || !strings.Contains(m.View(), "MUTED") {
		t.Fatal("M did not mute the transport")
	}
	if track.Muted() {
		t.Error("master mute changed the track's own flag")
	}
}

func TestQuit(t *testing.T) {
	m, tr, _ := newModel(t)
	m = press(m, "p")
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("no command on quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("q did not quit")
	}
	if tr.State() != sonify.Stopped {
		t.Error("quit left the transport running")
	}
	if next.(Model).View() != "" {
		t.Error("view rendered after quit")
	}
}

func TestViewShowsState(t *testing.T) {
	m, _, _ := newModel(t)
	v := m.View()
	for _, want := range []string{"go-sonify", "STOP", "00:00 / 02:00", "weather.csv", "0/20"} {
		if !strings.Contains(v, want) {
			t.Errorf("view missing %q:\n%s", want, v)
		}
	}
	press(m, "p")
	if !strings.Contains(m.View(), "PLAY") {
		t.Error("view does not show PLAY")
	}
}

func TestClickSeeks(t *testing.T) {
	m, tr, _ := newModel(t)
	m = press(m, "p")
	m.View() // lays out the bar

	b := m.bounds
	x := b.barLeft + (b.barWidth-1)/2
	next, _ := m.Update(tea.MouseMsg{X: x, Y: b.barRow, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft})
	_ = next
	if pos, _ := tr.Position(); pos < 0.45 || pos > 0.55 {
		t.Errorf("position after click = %v", pos)
	}
}
