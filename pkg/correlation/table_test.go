package correlation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newTable() *Table { return New(zap.NewNop()) }

func TestResolveUnknownIDLeavesTableUnchanged(t *testing.T) {
	tbl := newTable()

	assert.Equal(t, NotFound, tbl.Resolve("never-begun", "value"))
	assert.Equal(t, 0, tbl.Len())
}

func TestFirstResolveWinsAndDelivers(t *testing.T) {
	tbl := newTable()

	p, err := tbl.Begin("conv-1")
	require.NoError(t, err)
	require.Equal(t, 1, tbl.Len())

	go func() {
		time.Sleep(10 * time.Millisecond)
		assert.Equal(t, Resolved, tbl.Resolve("conv-1", "first"))
		assert.Equal(t, AlreadyResolved, tbl.Resolve("conv-1", "second"))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	got, err := p.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, "first", got)

	tbl.End("conv-1")
	assert.Equal(t, 0, tbl.Len())
}

func TestBeginRejectsDuplicateID(t *testing.T) {
	tbl := newTable()

	_, err := tbl.Begin("conv-1")
	require.NoError(t, err)

	_, err = tbl.Begin("conv-1")
	assert.ErrorIs(t, err, ErrDuplicateID)
}

func TestEndIsIdempotent(t *testing.T) {
	tbl := newTable()

	_, err := tbl.Begin("conv-1")
	require.NoError(t, err)

	tbl.End("conv-1")
	tbl.End("conv-1")
	tbl.End("never-begun")
	assert.Equal(t, 0, tbl.Len())
}

func TestWaitTimesOutNearDeadline(t *testing.T) {
	tbl := newTable()

	p, err := tbl.Begin("conv-1")
	require.NoError(t, err)

	deadline := 80 * time.Millisecond
	ctx, cancel := context.WithTimeout(context.Background(), deadline)
	defer cancel()

	start := time.Now()
	_, err = p.Wait(ctx)
	elapsed := time.Since(start)

	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.GreaterOrEqual(t, elapsed, deadline-10*time.Millisecond)
	assert.Less(t, elapsed, deadline+500*time.Millisecond)

	// Cleanup ran; a late delivery is indistinguishable from an unknown id.
	tbl.End("conv-1")
	assert.Equal(t, NotFound, tbl.Resolve("conv-1", "too late"))
	assert.Equal(t, 0, tbl.Len())
}

func TestResolveWinsRaceAgainstExpiredContext(t *testing.T) {
	tbl := newTable()

	p, err := tbl.Begin("conv-1")
	require.NoError(t, err)
	require.Equal(t, Resolved, tbl.Resolve("conv-1", "made it"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // already expired when Wait runs

	got, err := p.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, "made it", got)
}

func TestCloseUnblocksWaiters(t *testing.T) {
	tbl := newTable()

	p, err := tbl.Begin("conv-1")
	require.NoError(t, err)

	errs := make(chan error, 1)
	go func() {
		_, werr := p.Wait(context.Background())
		errs <- werr
	}()

	time.Sleep(10 * time.Millisecond)
	tbl.Close()

	select {
	case werr := <-errs:
		assert.ErrorIs(t, werr, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("waiter not unblocked by Close")
	}

	_, err = tbl.Begin("conv-2")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestUnconsumedResolveIsLoggedByEnd(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	tbl := New(zap.New(core))

	_, err := tbl.Begin("conv-1")
	require.NoError(t, err)

	require.Equal(t, Resolved, tbl.Resolve("conv-1", "nobody waiting"))
	tbl.End("conv-1")

	entries := logs.FilterMessage("discarding response that arrived after the waiter gave up").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "conv-1", entries[0].ContextMap()["conversationId"])
}

func TestDeliveredResolveIsNotLoggedAsDiscarded(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	tbl := New(zap.New(core))

	p, err := tbl.Begin("conv-1")
	require.NoError(t, err)
	require.Equal(t, Resolved, tbl.Resolve("conv-1", "answer"))

	got, err := p.Wait(context.Background())
	require.NoError(t, err)
	require.Equal(t, "answer", got)

	tbl.End("conv-1")
	assert.Equal(t, 0, logs.FilterMessage("discarding response that arrived after the waiter gave up").Len())
}

func TestResolveAndEndRaceNeverDropsSilently(t *testing.T) {
	// Resolve and End serialize on the table lock: every accepted value is
	// either consumed by a waiter or logged as discarded, and a value that
	// loses the race to cleanup is reported NotFound, not swallowed.
	for i := 0; i < 200; i++ {
		core, logs := observer.New(zap.WarnLevel)
		tbl := New(zap.New(core))

		_, err := tbl.Begin("conv-1")
		require.NoError(t, err)

		var (
			wg      sync.WaitGroup
			outcome Outcome
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			outcome = tbl.Resolve("conv-1", "racing answer")
		}()
		go func() {
			defer wg.Done()
			tbl.End("conv-1")
		}()
		wg.Wait()

		discarded := logs.FilterMessage("discarding response that arrived after the waiter gave up").Len()
		switch outcome {
		case Resolved:
			require.Equal(t, 1, discarded, "accepted value must be logged when nobody consumed it")
		case NotFound:
			require.Equal(t, 0, discarded, "rejected value has nothing to discard")
		default:
			t.Fatalf("unexpected outcome %v", outcome)
		}
		require.Equal(t, 0, tbl.Len())
	}
}

func TestConcurrentConversationsAreIndependent(t *testing.T) {
	tbl := newTable()

	const n = 20
	type result struct {
		id   string
		text string
		err  error
	}
	results := make(chan result, n)

	for i := 0; i < n; i++ {
		id := string(rune('a' + i))
		p, err := tbl.Begin(id)
		require.NoError(t, err)
		go func(id string, p *Pending) {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			text, err := p.Wait(ctx)
			tbl.End(id)
			results <- result{id: id, text: text, err: err}
		}(id, p)
	}

	for i := 0; i < n; i++ {
		id := string(rune('a' + i))
		assert.Equal(t, Resolved, tbl.Resolve(id, "answer-"+id))
	}

	for i := 0; i < n; i++ {
		r := <-results
		require.NoError(t, r.err)
		assert.Equal(t, "answer-"+r.id, r.text)
	}
	assert.Equal(t, 0, tbl.Len())
}
