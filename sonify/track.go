package sonify

import (
	"fmt"
	"sync"
	"time"

	"go-sonify/data"
)

// DataSource is the cursor over the rows being sonified.
type DataSource interface {
	NextBatch(n int) ([]data.Row, bool)
	Exhausted() bool
	Reset()
}

// Seeker is implemented by data sources that can move their cursor to a
// normalized position. Without it, seek only moves the clock.
type Seeker interface {
	SeekTo(p float64)
}

// Synth is the synthesizer backend. ScheduleNote must not block.
type Synth interface {
	TickSource
	Load(channel uint8, resource string) error
	ScheduleNote(delay time.Duration, channel, key uint8, duration time.Duration, velocity uint8)
}

// Track turns a data row into zero or more notes.
type Track interface {
	Channel() uint8
	Resource() string
	GenerateNotes(row data.Row) ([]Note, error)
}

// Tracks is the active track list. Its lock is the track-list guard: held by
// the Generator while it iterates and by add/remove. It is never taken while
// the buffer lock is held.
type Tracks struct {
	mu     sync.RWMutex
	tracks []Track
}

// Add appends a track.
func (ts *Tracks) Add(t Track) {
	ts.mu.Lock()
	ts.tracks = append(ts.tracks, t)
	ts.mu.Unlock()
}

// Remove drops a track, reporting whether it was present.
func (ts *Tracks) Remove(t Track) bool {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	for i, cur := range ts.tracks {
		if cur == t {
			ts.tracks = append(ts.tracks[:i], ts.tracks[i+1:]...)
			return true
		}
	}
	return false
}

// Len returns the number of tracks.
func (ts *Tracks) Len() int {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return len(ts.tracks)
}

// Snapshot returns a copy of the track list.
func (ts *Tracks) Snapshot() []Track {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	out := make([]Track, len(ts.tracks))
	copy(out, ts.tracks)
	return out
}

// generateSafely runs a track, turning a panic into an error so that one
// broken track cannot take the generator down.
func generateSafely(t Track, row data.Row) (notes []Note, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("track %d panicked: %v", t.Channel(), r)
		}
	}()
	return t.GenerateNotes(row)
}
