package sonify

import (
	"context"
	"time"

	"go-sonify/debug"
)

// Player pops due notes from the buffer and hands them to the synthesizer.
type Player struct {
	t     *Transport
	synth Synth

	lookahead time.Duration
	tolerance time.Duration
}

func NewPlayer(t *Transport, synth Synth) *Player {
	return &Player{
		t:         t,
		synth:     synth,
		lookahead: t.cfg.Lookahead,
		tolerance: t.cfg.StaleTolerance,
	}
}

// Run plays until ctx is cancelled.
func (p *Player) Run(ctx context.Context) {
	for {
		if err := p.step(ctx); err != nil {
			return
		}
	}
}

// step handles one note. It only returns an error when ctx is done.
func (p *Player) step(ctx context.Context) error {
	t := p.t
	if err := t.playing.Wait(ctx); err != nil {
		return err
	}
	if err := t.resumed.Wait(ctx); err != nil {
		return err
	}

	note, gen, err := t.buf.pop(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return nil
	}
	// the buffer may still hold notes when a pause begins
	if err := t.resumed.Wait(ctx); err != nil {
		return err
	}

	due, ok := t.clock.Until(note.TFactor)
	for ok && due > p.lookahead {
		if err := sleepCtx(ctx, p.lookahead/2); err != nil {
			return err
		}
		// pause, resume and seek all move the mapping while we wait
		if err := t.resumed.Wait(ctx); err != nil {
			return err
		}
		due, ok = t.clock.Until(note.TFactor)
	}
	if !ok {
		// stopped while waiting
		return nil
	}
	if gen != t.buf.Generation() {
		// the note belongs to a performance that was since stopped or sought
		if t.takeSkip() {
			t.skipped.Add(1)
			debug.Log("player", "skipped %s (seek)", note)
		} else {
			debug.Log("player", "dropped %s from a discarded buffer", note)
		}
		return nil
	}

	if note.last {
		t.finish(gen)
		return nil
	}
	p.play(note, due)
	return nil
}

// play dispatches note unless it is stale or a skip was requested.
func (p *Player) play(note Note, due time.Duration) {
	t := p.t
	if t.takeSkip() {
		t.skipped.Add(1)
		debug.Log("player", "skipped %s (seek)", note)
		return
	}
	if due < -p.tolerance {
		t.late.Add(1)
		debug.Log("player", "skipped %s, %v late", note, -due)
		return
	}

	if t.Muted() {
		return
	}
	velocity := min(127, int(note.Velocity)*t.Gain()/100)

	delay := max(0, due)
	p.synth.ScheduleNote(delay, note.Channel, note.Value,
		time.Duration(note.Duration)*time.Millisecond, uint8(velocity))
	t.dispatched.Add(1)
	debug.LogEvery(50, "player", "dispatched %s in %v", note, delay)
	t.notify()
}
