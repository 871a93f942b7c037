package sonify

import (
	"container/heap"
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// ErrBufferReset is returned to anyone waiting on, or holding a reservation
// from, a buffer generation that has since been reset (stop, play, seek).
var ErrBufferReset = errors.New("sonify: buffer reset")

// noteHeap is a min-heap ordered by Note.Before.
type noteHeap []Note

func (h noteHeap) Len() int           { return len(h) }
func (h noteHeap) Less(i, j int) bool { return h[i].Before(h[j]) }
func (h noteHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *noteHeap) Push(x any) {
	*h = append(*h, x.(Note))
}

func (h *noteHeap) Pop() any {
	old := *h
	n := len(old)
	note := old[n-1]
	*h = old[:n-1]
	return note
}

// permits is a counting semaphore whose free count can be observed.
type permits struct {
	sem   *semaphore.Weighted
	avail atomic.Int64
}

func newPermits(size, initial int64) *permits {
	p := &permits{sem: semaphore.NewWeighted(size)}
	// Weighted starts full, hold back what should not be available yet
	p.sem.TryAcquire(size - initial)
	p.avail.Store(initial)
	return p
}

func (p *permits) acquire(ctx context.Context, n int64) error {
	if n == 0 {
		return nil
	}
	if err := p.sem.Acquire(ctx, n); err != nil {
		return err
	}
	p.avail.Add(-n)
	return nil
}

func (p *permits) release(n int64) {
	if n == 0 {
		return
	}
	p.avail.Add(n)
	p.sem.Release(n)
}

// epoch is one generation of the buffer's semaphores. Reset cancels the old
// epoch, which wakes every waiter so it can re-check transport state.
type epoch struct {
	gen    uint64
	ctx    context.Context
	cancel context.CancelFunc
	space  *permits // SpaceAvailable
	items  *permits // ItemsAvailable
}

func newEpoch(gen uint64, capacity int) *epoch {
	ctx, cancel := context.WithCancel(context.Background())
	c := int64(capacity)
	return &epoch{
		gen:    gen,
		ctx:    ctx,
		cancel: cancel,
		space:  newPermits(c, c),
		items:  newPermits(c, 0),
	}
}

// join returns a context cancelled when either ctx or the epoch ends.
func (e *epoch) join(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(e.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// Reservation is space acquired ahead of insertion.
type Reservation struct {
	ep *epoch
	n  int
}

// Len is the number of notes the reservation can still insert.
func (r *Reservation) Len() int { return r.n }

// Generation identifies the buffer generation the space was taken from.
func (r *Reservation) Generation() uint64 { return r.ep.gen }

// Buffer is a bounded, thread-safe collection that always yields the
// temporally-earliest pending note.
//
// mu guards the heap and the current epoch only; it is never held while
// waiting on a semaphore.
type Buffer struct {
	mu       sync.Mutex
	notes    noteHeap
	capacity int
	ep       *epoch
}

// NewBuffer creates a buffer holding at most capacity notes.
func NewBuffer(capacity int) *Buffer {
	if capacity < 0 {
		capacity = 0
	}
	return &Buffer{
		capacity: capacity,
		ep:       newEpoch(1, capacity),
	}
}

func (b *Buffer) current() *epoch {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ep
}

// Generation increases every time the buffer is reset.
func (b *Buffer) Generation() uint64 {
	return b.current().gen
}

// Len returns the number of buffered notes without blocking.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.notes)
}

// Capacity returns the current capacity.
func (b *Buffer) Capacity() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.capacity
}

// Permits returns the free SpaceAvailable and ItemsAvailable counts of the
// current generation.
func (b *Buffer) Permits() (space, items int64) {
	ep := b.current()
	return ep.space.avail.Load(), ep.items.avail.Load()
}

// Reserve blocks until n units of space are available. n is clamped to the
// capacity so a reservation can always eventually succeed.
func (b *Buffer) Reserve(ctx context.Context, n int) (*Reservation, error) {
	b.mu.Lock()
	ep := b.ep
	if n > b.capacity {
		n = b.capacity
	}
	b.mu.Unlock()
	if n < 0 {
		n = 0
	}

	jctx, done := ep.join(ctx)
	defer done()
	if err := ep.space.acquire(jctx, int64(n)); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, ErrBufferReset
	}
	return &Reservation{ep: ep, n: n}, nil
}

// Insert adds notes using space held by r and signals ItemsAvailable once per
// note. It inserts at most r.Len() notes and returns how many were inserted.
// A reservation from a reset generation inserts nothing: its space is handed
// back and ErrBufferReset is returned.
func (b *Buffer) Insert(r *Reservation, notes []Note) (int, error) {
	if len(notes) > r.n {
		notes = notes[:r.n]
	}

	b.mu.Lock()
	if b.ep != r.ep {
		b.mu.Unlock()
		b.Cancel(r)
		return 0, ErrBufferReset
	}
	for _, n := range notes {
		heap.Push(&b.notes, n)
	}
	b.mu.Unlock()

	r.n -= len(notes)
	r.ep.items.release(int64(len(notes)))
	return len(notes), nil
}

// Cancel releases whatever space r still holds.
func (b *Buffer) Cancel(r *Reservation) {
	if r == nil || r.n == 0 {
		return
	}
	r.ep.space.release(int64(r.n))
	r.n = 0
}

// Put inserts a single note, blocking until there is room.
func (b *Buffer) Put(ctx context.Context, n Note) error {
	r, err := b.Reserve(ctx, 1)
	if err != nil {
		return err
	}
	if r.Len() == 0 {
		// zero capacity, nothing can ever be stored
		return ErrBufferReset
	}
	_, err = b.Insert(r, []Note{n})
	return err
}

// PopMin blocks until a note is present and returns the earliest one.
func (b *Buffer) PopMin(ctx context.Context) (Note, error) {
	n, _, err := b.pop(ctx)
	return n, err
}

// pop is PopMin that also reports the generation the note came from.
func (b *Buffer) pop(ctx context.Context) (Note, uint64, error) {
	ep := b.current()

	jctx, done := ep.join(ctx)
	defer done()
	if err := ep.items.acquire(jctx, 1); err != nil {
		if ctx.Err() != nil {
			return Note{}, ep.gen, ctx.Err()
		}
		return Note{}, ep.gen, ErrBufferReset
	}

	b.mu.Lock()
	if b.ep != ep || len(b.notes) == 0 {
		b.mu.Unlock()
		ep.items.release(1)
		return Note{}, ep.gen, ErrBufferReset
	}
	n := heap.Pop(&b.notes).(Note)
	b.mu.Unlock()

	ep.space.release(1)
	return n, ep.gen, nil
}

// Reset discards every buffered note and starts a new generation with
// SpaceAvailable = capacity and ItemsAvailable = 0. Waiters on the previous
// generation wake up with ErrBufferReset. It returns the number of discarded
// notes.
func (b *Buffer) Reset(capacity int) int {
	if capacity < 0 {
		capacity = 0
	}
	b.mu.Lock()
	old := b.ep
	dropped := len(b.notes)
	b.notes = nil
	b.capacity = capacity
	b.ep = newEpoch(old.gen+1, capacity)
	b.mu.Unlock()

	old.cancel()
	return dropped
}

// Clear is Reset at the current capacity.
func (b *Buffer) Clear() int {
	return b.Reset(b.Capacity())
}
