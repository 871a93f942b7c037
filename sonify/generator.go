package sonify

import (
	"context"
	"sync/atomic"
	"time"

	"go-sonify/data"
	"go-sonify/debug"
)

// Generator pulls rows from the data source, asks every track for notes and
// fills the buffer ahead of playback.
type Generator struct {
	t   *Transport
	seq atomic.Uint64
}

func NewGenerator(t *Transport) *Generator {
	return &Generator{t: t}
}

// Run produces until ctx is cancelled. It keeps running while stopped,
// waiting on the transport gates.
func (g *Generator) Run(ctx context.Context) {
	for {
		if err := g.step(ctx); err != nil {
			return
		}
	}
}

// step runs one generator iteration. It only returns an error when ctx is done.
func (g *Generator) step(ctx context.Context) error {
	t := g.t
	for _, gt := range []*gate{t.playing, t.resumed, t.remaining} {
		if err := gt.Wait(ctx); err != nil {
			return err
		}
	}

	// primary backpressure point
	r, err := t.buf.Reserve(ctx, t.batchSize())
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return nil
	}
	defer t.buf.Cancel(r)

	notes, status := g.generate(r.Generation())
	switch status {
	case batchStale:
		return nil
	case batchExhausted:
		g.endOfData(ctx, r.Generation())
		return ctx.Err()
	}

	inserted, err := g.insert(ctx, r, notes)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		debug.Log("generator", "batch of %d notes dropped, buffer reset", len(notes))
		return nil
	}
	debug.LogEvery(10, "generator", "inserted %d notes, buffered=%d", inserted, t.buf.Len())
	t.notify()

	if t.source.Exhausted() {
		g.endOfData(ctx, r.Generation())
	}

	return sleepCtx(ctx, t.cfg.TickInterval)
}

type batchStatus int

const (
	batchReady batchStatus = iota
	batchStale             // stopped, paused or sought since the reservation
	batchExhausted
)

// generate pulls the next batch of rows and turns them into notes. The
// transport lock is held from the state check through the pull, so a
// transition cannot move the cursor between the two.
func (g *Generator) generate(gen uint64) ([]Note, batchStatus) {
	t := g.t
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Playing || gen != t.buf.Generation() {
		return nil, batchStale
	}

	t.tracks.mu.RLock()
	defer t.tracks.mu.RUnlock()

	rows, ok := t.source.NextBatch(t.cfg.RowsPerTick)
	if !ok {
		return nil, batchExhausted
	}
	var notes []Note
	for _, tr := range t.tracks.tracks {
		notes = g.generateTrack(tr, rows, notes)
	}
	return notes, batchReady
}

// generateTrack appends tr's notes for rows. A failing track is skipped for
// the rest of the tick.
func (g *Generator) generateTrack(tr Track, rows []data.Row, notes []Note) []Note {
	for _, row := range rows {
		out, err := generateSafely(tr, row)
		if err != nil {
			debug.Error("generator", err, "track %d skipped this tick", tr.Channel())
			return notes
		}
		for _, n := range out {
			n.ID = g.seq.Add(1)
			n.TFactor = max(0, min(1, n.TFactor))
			notes = append(notes, n)
		}
	}
	return notes
}

// insert stores notes using r, reserving more space for any overflow.
func (g *Generator) insert(ctx context.Context, r *Reservation, notes []Note) (int, error) {
	buf := g.t.buf
	total, err := buf.Insert(r, notes)
	if err != nil {
		return 0, err
	}
	for rest := notes[total:]; len(rest) > 0; {
		extra, err := buf.Reserve(ctx, len(rest))
		if err != nil {
			return total, err
		}
		n, err := buf.Insert(extra, rest)
		buf.Cancel(extra)
		if err != nil {
			return total, err
		}
		total += n
		rest = rest[n:]
	}
	return total, nil
}

// endOfData queues the end marker once the data source is exhausted, so the
// transport stops after the buffer drains instead of cutting it short.
func (g *Generator) endOfData(ctx context.Context, gen uint64) {
	t := g.t
	if !t.markExhausted(gen) {
		return
	}
	r, err := t.buf.Reserve(ctx, 1)
	if err != nil {
		return
	}
	defer t.buf.Cancel(r)
	if r.Generation() != gen {
		return
	}
	if _, err := t.buf.Insert(r, []Note{endOfData()}); err != nil {
		debug.Log("generator", "end marker dropped, buffer reset")
	}
}

// sleepCtx sleeps for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
