package search

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

// ErrSuperseded is returned to a caller whose query was replaced by a newer
// one before its result was delivered.
var ErrSuperseded = errors.New("search superseded by a newer query")

const DefaultDelay = 300 * time.Millisecond

type FetchFunc[T any] func(ctx context.Context, query string) (T, error)

// Debouncer keeps at most one pending query. A new query cancels the
// pending one, and only the newest query's result is ever returned.
type Debouncer[T any] struct {
	delay time.Duration
	fetch FetchFunc[T]

	mu      sync.Mutex
	seq     uint64
	pending context.CancelCauseFunc
}

func NewDebouncer[T any](delay time.Duration, fetch FetchFunc[T]) *Debouncer[T] {
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Debouncer[T]{delay: delay, fetch: fetch}
}

// Do waits out the debounce delay and then runs the fetch for query. Blank
// queries return the zero value without fetching.
func (d *Debouncer[T]) Do(ctx context.Context, query string) (T, error) {
	var zero T

	ctx, cancel := context.WithCancelCause(ctx)
	d.mu.Lock()
	if d.pending != nil {
		d.pending(ErrSuperseded)
	}
	d.seq++
	id := d.seq
	d.pending = cancel
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		if d.seq == id {
			d.pending = nil
		}
		d.mu.Unlock()
		cancel(nil)
	}()

	query = strings.TrimSpace(query)
	if query == "" {
		return zero, nil
	}

	timer := time.NewTimer(d.delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return zero, context.Cause(ctx)
	case <-timer.C:
	}

	result, err := d.fetch(ctx, query)
	if errors.Is(context.Cause(ctx), ErrSuperseded) {
		return zero, ErrSuperseded
	}
	if err != nil {
		return zero, err
	}
	return result, nil
}
