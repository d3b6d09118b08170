package poller

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type doc struct {
	id     string
	status string
}

func terminal(d doc) bool { return d.status == "READY" || d.status == "ERROR" }

// scripted returns a fetch that serves each snapshot in order, repeating the
// last one forever.
func scripted(calls *int32, snapshots ...[]doc) Fetch[doc] {
	return func(ctx context.Context) ([]doc, error) {
		n := int(atomic.AddInt32(calls, 1)) - 1
		if n >= len(snapshots) {
			n = len(snapshots) - 1
		}
		return snapshots[n], nil
	}
}

func collect(t *testing.T, ch <-chan []doc) [][]doc {
	t.Helper()
	var got [][]doc
	timeout := time.After(5 * time.Second)
	for {
		select {
		case items, ok := <-ch:
			if !ok {
				return got
			}
			got = append(got, items)
		case <-timeout:
			t.Fatalf("poller did not stop; received %d snapshots", len(got))
		}
	}
}

func TestStopsWhenAllTerminal(t *testing.T) {
	var calls int32
	fetch := scripted(&calls,
		[]doc{{"a", "PROCESSING"}},
		[]doc{{"a", "EMBEDDING"}},
		[]doc{{"a", "READY"}},
	)
	p := New(10*time.Millisecond, fetch, terminal)

	got := collect(t, p.Run(context.Background()))
	if len(got) != 3 {
		t.Fatalf("expected 3 snapshots, got %d", len(got))
	}
	last := got[len(got)-1]
	if last[0].status != "READY" {
		t.Fatalf("last snapshot should be terminal, got %+v", last)
	}

	// No further ticks after the channel closed.
	before := atomic.LoadInt32(&calls)
	time.Sleep(50 * time.Millisecond)
	if after := atomic.LoadInt32(&calls); after != before {
		t.Fatalf("poller kept fetching after stop: %d -> %d", before, after)
	}
}

func TestEmptyCollectionIsTerminal(t *testing.T) {
	var calls int32
	fetch := scripted(&calls, []doc{})
	p := New(10*time.Millisecond, fetch, terminal)

	got := collect(t, p.Run(context.Background()))
	if len(got) != 1 {
		t.Fatalf("expected a single empty snapshot, got %d", len(got))
	}
}

func TestFailedTickContinues(t *testing.T) {
	var calls int32
	fetch := func(ctx context.Context) ([]doc, error) {
		switch atomic.AddInt32(&calls, 1) {
		case 1:
			return []doc{{"a", "PROCESSING"}}, nil
		case 2:
			return nil, errors.New("gateway timeout")
		default:
			return []doc{{"a", "READY"}}, nil
		}
	}
	p := New(10*time.Millisecond, fetch, terminal)

	got := collect(t, p.Run(context.Background()))
	if len(got) != 2 {
		t.Fatalf("failed tick must be skipped, not emitted: got %d snapshots", len(got))
	}
	if got[1][0].status != "READY" {
		t.Fatalf("unexpected final snapshot: %+v", got[1])
	}
}

func TestCancellationStopsScheduling(t *testing.T) {
	var calls int32
	fetch := scripted(&calls, []doc{{"a", "PROCESSING"}})
	p := New(10*time.Millisecond, fetch, terminal)

	ctx, cancel := context.WithCancel(context.Background())
	ch := p.Run(ctx)
	<-ch // first snapshot
	cancel()

	timeout := time.After(time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-timeout:
			t.Fatalf("channel did not close after cancellation")
		}
	}
}

func TestRunIsRestartable(t *testing.T) {
	var calls int32
	fetch := scripted(&calls, []doc{{"a", "READY"}})
	p := New(10*time.Millisecond, fetch, terminal)

	for i := 0; i < 2; i++ {
		got := collect(t, p.Run(context.Background()))
		if len(got) != 1 {
			t.Fatalf("run %d: expected 1 snapshot, got %d", i, len(got))
		}
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("each run should fetch independently")
	}
}
