package sonify

import "time"

// Config holds the playback tunables.
type Config struct {
	// Duration is the length of the whole performance (tfactor 0 to 1).
	Duration time.Duration
	// RowsPerTick is how many rows the generator pulls per iteration.
	// Capacity is 2 x tracks x RowsPerTick.
	RowsPerTick int
	// TickInterval is the generator's pause between batches.
	TickInterval time.Duration
	// Lookahead is how far ahead of its due time a note is handed to the
	// synthesizer. Defaults to TickInterval.
	Lookahead time.Duration
	// StaleTolerance is how late a note may be and still be played.
	StaleTolerance time.Duration
}

// DefaultConfig returns the stock tunables
func DefaultConfig() Config {
	return Config{
		Duration:       60 * time.Second,
		RowsPerTick:    10,
		TickInterval:   250 * time.Millisecond,
		Lookahead:      250 * time.Millisecond,
		StaleTolerance: 100 * time.Millisecond,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Duration <= 0 {
		c.Duration = d.Duration
	}
	if c.RowsPerTick <= 0 {
		c.RowsPerTick = d.RowsPerTick
	}
	if c.TickInterval < 0 {
		c.TickInterval = 0
	}
	if c.Lookahead <= 0 {
		c.Lookahead = c.TickInterval
		if c.Lookahead <= 0 {
			c.Lookahead = d.Lookahead
		}
	}
	if c.StaleTolerance < 0 {
		c.StaleTolerance = -c.StaleTolerance
	}
	return c
}
