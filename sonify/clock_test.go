package sonify

import (
	"math"
	"testing"
	"time"
)

func TestClockRoundTrip(t *testing.T) {
	ticks := &fakeTicks{}
	ticks.Set(12345)
	c := NewPlaybackClock(ticks, 90*time.Second)
	c.Start()

	for i := 0; i <= 100; i++ {
		x := float64(i) / 100
		rel, ok := c.ToRelative(x)
		if !ok {
			t.Fatal("clock not running")
		}
		back, _ := c.ToAbsolute(rel)
		if math.Abs(back-x) > 1e-9 {
			t.Fatalf("toAbsolute(toRelative(%v)) = %v", x, back)
		}
	}
}

func TestClockStoppedHasNoMapping(t *testing.T) {
	c := NewPlaybackClock(&fakeTicks{}, time.Second)
	if _, ok := c.ToRelative(0.5); ok {
		t.Error("mapping defined before start")
	}
	if _, ok := c.CurrentAbsolute(); ok {
		t.Error("position defined before start")
	}
	c.Start()
	c.Stop()
	if _, ok := c.Until(0.5); ok {
		t.Error("mapping defined after stop")
	}
}

func TestClockZeroLengthPause(t *testing.T) {
	ticks := &fakeTicks{}
	ticks.Set(500)
	c := NewPlaybackClock(ticks, time.Second)
	c.Start()
	ticks.Advance(200)

	before, _ := c.Origin()
	c.Pause()
	c.Resume()
	after, _ := c.Origin()
	if before != after {
		t.Fatalf("origin moved from %d to %d", before, after)
	}
}

func TestClockPauseShiftsOrigin(t *testing.T) {
	ticks := &fakeTicks{}
	c := NewPlaybackClock(ticks, 10*time.Second)
	c.Start()

	ticks.Set(1000)
	due, _ := c.Until(0.5) // 5000 - 1000
	if due != 4*time.Second {
		t.Fatalf("due = %v", due)
	}

	c.Pause()
	ticks.Set(8000)
	pos, _ := c.CurrentAbsolute()
	if math.Abs(pos-0.1) > 1e-9 {
		t.Errorf("position while paused = %v, want 0.1", pos)
	}
	c.Resume()

	due, _ = c.Until(0.5)
	if due != 4*time.Second {
		t.Fatalf("due after resume = %v, want 4s", due)
	}
	if origin, _ := c.Origin(); origin != 7000 {
		t.Errorf("origin = %d, want 7000", origin)
	}
}

func TestClockSeek(t *testing.T) {
	ticks := &fakeTicks{}
	c := NewPlaybackClock(ticks, 10*time.Second)
	c.Start()
	ticks.Set(2000)

	c.Seek(0.5)
	pos, _ := c.CurrentAbsolute()
	if math.Abs(pos-0.5) > 1e-9 {
		t.Fatalf("position after seek = %v", pos)
	}
	if origin, _ := c.Origin(); origin != -3000 {
		t.Errorf("origin = %d, want -3000", origin)
	}
}

func TestClockSeekWhilePaused(t *testing.T) {
	ticks := &fakeTicks{}
	c := NewPlaybackClock(ticks, 10*time.Second)
	c.Start()
	ticks.Set(1000)
	c.Pause()
	ticks.Set(5000)
	c.Seek(0.2)
	ticks.Set(9000)

	pos, _ := c.CurrentAbsolute()
	if math.Abs(pos-0.2) > 1e-9 {
		t.Errorf("paused position = %v, want 0.2", pos)
	}
	c.Resume()
	pos, _ = c.CurrentAbsolute()
	if math.Abs(pos-0.2) > 1e-9 {
		t.Errorf("position on resume = %v, want 0.2", pos)
	}
}
