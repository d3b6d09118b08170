// Package poller watches a remote collection until every member reaches a
// terminal state. Polling is the platform's only completion signal for
// multi-stage document processing; there is no push channel.
package poller

import (
	"context"
	"log"
	"time"
)

// Fetch performs one full re-fetch of the watched collection. Ticks are
// stateless: consumers merge results by item identity.
type Fetch[T any] func(ctx context.Context) ([]T, error)

// Poller re-fetches a collection on an interval and stops on its own the
// moment every item satisfies the terminal predicate. A Poller is
// restartable: once a run has stopped, calling Run again starts a fresh
// watch (e.g. after a new upload introduces a non-terminal item).
type Poller[T any] struct {
	fetch    Fetch[T]
	terminal func(T) bool
	interval time.Duration
	logger   *log.Logger
}

func New[T any](interval time.Duration, fetch Fetch[T], terminal func(T) bool) *Poller[T] {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	return &Poller[T]{
		fetch:    fetch,
		terminal: terminal,
		interval: interval,
		logger:   log.New(log.Writer(), "[POLLER] ", log.LstdFlags),
	}
}

// SetLogger replaces the default logger.
func (p *Poller[T]) SetLogger(l *log.Logger) { p.logger = l }

// Run starts one watch. Each successful tick's collection is sent on the
// returned channel; the channel is closed when every item is terminal or the
// context is cancelled. A failed tick is a no-op, not a stop condition. A
// tick already in flight when the context is cancelled completes, but no
// further tick is scheduled.
func (p *Poller[T]) Run(ctx context.Context) <-chan []T {
	out := make(chan []T, 1)
	go func() {
		defer close(out)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			items, err := p.fetch(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				p.logger.Printf("tick failed: %v", err)
			} else {
				select {
				case out <- items:
				case <-ctx.Done():
					return
				}
				if p.allTerminal(items) {
					return
				}
			}
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func (p *Poller[T]) allTerminal(items []T) bool {
	for _, it := range items {
		if !p.terminal(it) {
			return false
		}
	}
	return true
}
