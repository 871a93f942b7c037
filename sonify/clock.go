package sonify

import (
	"sync"
	"time"
)

// TickSource is the wall-clock basis of a PlaybackClock: monotonic
// milliseconds. Synth backends implement it with their own notion of now.
type TickSource interface {
	NowTick() int64
}

// MonotonicTicks counts milliseconds since it was created.
type MonotonicTicks struct {
	start time.Time
}

func NewMonotonicTicks() *MonotonicTicks {
	return &MonotonicTicks{start: time.Now()}
}

func (m *MonotonicTicks) NowTick() int64 {
	return time.Since(m.start).Milliseconds()
}

// PlaybackClock maps the normalized song position (tfactor) to source ticks
// and back. The mapping only exists while the transport is playing or paused.
type PlaybackClock struct {
	mu       sync.Mutex
	src      TickSource
	duration float64 // total performance length in ms

	origin   int64 // tick of absolute position 0
	running  bool
	pausedAt int64
	paused   bool
}

// NewPlaybackClock creates a stopped clock for a performance of the given length.
func NewPlaybackClock(src TickSource, total time.Duration) *PlaybackClock {
	return &PlaybackClock{
		src:      src,
		duration: float64(total.Milliseconds()),
	}
}

// Now returns the source tick.
func (c *PlaybackClock) Now() int64 {
	return c.src.NowTick()
}

// TotalDuration returns the performance length.
func (c *PlaybackClock) TotalDuration() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Duration(c.duration) * time.Millisecond
}

// SetTotalDuration changes the performance length. Only meaningful while stopped.
func (c *PlaybackClock) SetTotalDuration(total time.Duration) {
	c.mu.Lock()
	c.duration = float64(total.Milliseconds())
	c.mu.Unlock()
}

// Origin returns the tick of position 0, and false when the clock is stopped.
func (c *PlaybackClock) Origin() (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.origin, c.running
}

// Start anchors position 0 at now.
func (c *PlaybackClock) Start() {
	c.mu.Lock()
	c.origin = c.src.NowTick()
	c.running = true
	c.paused = false
	c.mu.Unlock()
}

// Pause records when the pause began. The origin is left alone.
func (c *PlaybackClock) Pause() {
	c.mu.Lock()
	if c.running && !c.paused {
		c.pausedAt = c.src.NowTick()
		c.paused = true
	}
	c.mu.Unlock()
}

// Resume shifts the origin by the length of the pause.
func (c *PlaybackClock) Resume() {
	c.mu.Lock()
	if c.running && c.paused {
		c.origin += c.src.NowTick() - c.pausedAt
		c.paused = false
	}
	c.mu.Unlock()
}

// Stop clears the mapping.
func (c *PlaybackClock) Stop() {
	c.mu.Lock()
	c.origin, c.pausedAt = 0, 0
	c.running, c.paused = false, false
	c.mu.Unlock()
}

// Seek moves the mapping so that now corresponds to absolute position p.
func (c *PlaybackClock) Seek(p float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return
	}
	now := c.src.NowTick()
	c.origin = now - int64(p*c.duration)
	if c.paused {
		// the pause restarts here, otherwise Resume would count the time
		// already spent paused against the new origin
		c.pausedAt = now
	}
}

// ToRelative returns the tick at which tfactor is due.
func (c *PlaybackClock) ToRelative(tfactor float64) (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return tfactor*c.duration + float64(c.origin), c.running
}

// ToAbsolute is the inverse of ToRelative.
func (c *PlaybackClock) ToAbsolute(tick float64) (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.toAbsolute(tick), c.running
}

func (c *PlaybackClock) toAbsolute(tick float64) float64 {
	if c.duration == 0 {
		return 0
	}
	return (tick - float64(c.origin)) / c.duration
}

// CurrentAbsolute returns the position being played. While paused it stays
// at the position where the pause began.
func (c *PlaybackClock) CurrentAbsolute() (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return 0, false
	}
	now := c.src.NowTick()
	if c.paused {
		now = c.pausedAt
	}
	return c.toAbsolute(float64(now)), true
}

// Until returns how long from now a note at tfactor is due. Negative values
// are in the past.
func (c *PlaybackClock) Until(tfactor float64) (time.Duration, bool) {
	due, ok := c.ToRelative(tfactor)
	if !ok {
		return 0, false
	}
	ms := due - float64(c.src.NowTick())
	return time.Duration(ms * float64(time.Millisecond)), true
}
