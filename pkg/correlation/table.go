// pkg/correlation/table.go
package correlation

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrDuplicateID is returned by Begin when the id is already pending.
	ErrDuplicateID = errors.New("correlation: conversation id already pending")

	// ErrClosed is returned to waiters when the table is torn down while
	// their request is still in flight.
	ErrClosed = errors.New("correlation: table closed")
)

// Outcome reports what Resolve did with a delivered value.
type Outcome int

const (
	Resolved Outcome = iota
	AlreadyResolved
	NotFound
)

func (o Outcome) String() string {
	switch o {
	case Resolved:
		return "resolved"
	case AlreadyResolved:
		return "already_resolved"
	default:
		return "not_found"
	}
}

// Pending is one in-flight conversation awaiting its answer. The slot is
// single-assignment: the first Resolve wins, everything after is a no-op.
type Pending struct {
	ID        string
	CreatedAt time.Time

	mu        sync.Mutex
	value     string
	resolved  bool
	delivered bool
	done      chan struct{}
	closed    <-chan struct{}
}

// resolve assigns the value if the slot is still empty.
func (p *Pending) resolve(value string) Outcome {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.resolved {
		return AlreadyResolved
	}
	p.value = value
	p.resolved = true
	close(p.done)
	return Resolved
}

// tryLoad returns the value if one has been assigned. Used on the deadline
// and shutdown paths so a resolve that committed first is never dropped.
func (p *Pending) tryLoad() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.resolved {
		return "", false
	}
	p.delivered = true
	return p.value, true
}

// Wait suspends until the slot is assigned, the context deadline elapses, or
// the owning table is closed. When resolution and the deadline race, a value
// that was assigned before the wake-up is always preferred.
func (p *Pending) Wait(ctx context.Context) (string, error) {
	select {
	case <-p.done:
		v, _ := p.tryLoad()
		return v, nil
	case <-ctx.Done():
		if v, ok := p.tryLoad(); ok {
			return v, nil
		}
		return "", ctx.Err()
	case <-p.closed:
		if v, ok := p.tryLoad(); ok {
			return v, nil
		}
		return "", ErrClosed
	}
}

// Table maps conversation ids to pending requests. One table per loaded
// instance; entries are inserted by the dispatcher before the outbound send
// and removed exactly once per Begin by the dispatcher's cleanup.
type Table struct {
	log *zap.Logger

	mu      sync.Mutex
	pending map[string]*Pending
	closing chan struct{}
	closed  bool
}

// New returns an empty table.
func New(log *zap.Logger) *Table {
	return &Table{
		log:     log,
		pending: make(map[string]*Pending),
		closing: make(chan struct{}),
	}
}

// Begin inserts an empty pending request for id and hands back the waiting
// handle. The caller owns the entry and must End(id) on every exit path.
func (t *Table) Begin(id string) (*Pending, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, ErrClosed
	}
	if _, ok := t.pending[id]; ok {
		return nil, ErrDuplicateID
	}
	p := &Pending{
		ID:        id,
		CreatedAt: time.Now(),
		done:      make(chan struct{}),
		closed:    t.closing,
	}
	t.pending[id] = p
	t.log.Debug("pending request created",
		zap.String("conversationId", id),
		zap.Int("pending", len(t.pending)),
	)
	return p, nil
}

// Resolve assigns value to the pending slot for id. Unknown ids report
// NotFound (stale, duplicate, or never-begun deliveries); an already assigned
// slot reports AlreadyResolved and keeps its original value.
//
// The table lock is held across the assignment so Resolve and End serialize:
// an End that wins the race makes Resolve report NotFound, and a Resolve that
// wins leaves an assigned slot End will see and log. The assignment never
// blocks, so the lock span stays bounded.
func (t *Table) Resolve(id, value string) Outcome {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.pending[id]
	if !ok {
		return NotFound
	}
	return p.resolve(value)
}

// End removes the entry for id. Idempotent; safe to call for ids that were
// never begun or already ended.
func (t *Table) End(id string) {
	t.mu.Lock()
	p, ok := t.pending[id]
	delete(t.pending, id)
	t.mu.Unlock()
	if !ok {
		return
	}
	// A resolve that landed after the waiter committed to failing leaves an
	// assigned slot nobody consumed. Surface it instead of dropping silently.
	p.mu.Lock()
	orphaned := p.resolved && !p.delivered
	p.mu.Unlock()
	if orphaned {
		t.log.Warn("discarding response that arrived after the waiter gave up",
			zap.String("conversationId", id),
			zap.Duration("age", time.Since(p.CreatedAt)),
		)
	}
}

// Len reports the number of in-flight conversations.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// Close unblocks every waiter with ErrClosed and rejects further Begins.
// Runs on instance teardown so shutdown does not wait out full deadlines.
func (t *Table) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	n := len(t.pending)
	close(t.closing)
	t.mu.Unlock()
	if n > 0 {
		t.log.Warn("table closed with requests still in flight", zap.Int("pending", n))
	}
}
