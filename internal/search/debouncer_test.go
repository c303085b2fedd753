package search

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebouncer_RunsAfterDelay(t *testing.T) {
	d := NewDebouncer(10*time.Millisecond, func(_ context.Context, q string) (string, error) {
		return "results for " + q, nil
	})

	start := time.Now()
	got, err := d.Do(context.Background(), "  ring ")

	require.NoError(t, err)
	assert.Equal(t, "results for ring", got)
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
}

func TestDebouncer_BlankQuerySkipsFetch(t *testing.T) {
	var calls atomic.Int32
	d := NewDebouncer(time.Millisecond, func(context.Context, string) (int, error) {
		calls.Add(1)
		return 1, nil
	})

	got, err := d.Do(context.Background(), "   ")

	require.NoError(t, err)
	assert.Zero(t, got)
	assert.Zero(t, calls.Load())
}

func TestDebouncer_NewerQuerySupersedesPending(t *testing.T) {
	var mu sync.Mutex
	var fetched []string
	d := NewDebouncer(50*time.Millisecond, func(_ context.Context, q string) (string, error) {
		mu.Lock()
		fetched = append(fetched, q)
		mu.Unlock()
		return q, nil
	})

	firstErr := make(chan error, 1)
	go func() {
		_, err := d.Do(context.Background(), "ri")
		firstErr <- err
	}()
	time.Sleep(10 * time.Millisecond)

	got, err := d.Do(context.Background(), "ring")

	require.NoError(t, err)
	assert.Equal(t, "ring", got)
	assert.ErrorIs(t, <-firstErr, ErrSuperseded)
	assert.Equal(t, []string{"ring"}, fetched)
}

func TestDebouncer_InFlightResultDiscarded(t *testing.T) {
	entered := make(chan struct{})
	d := NewDebouncer(time.Millisecond, func(ctx context.Context, q string) (string, error) {
		if q == "slow" {
			close(entered)
			<-ctx.Done()
			return "", ctx.Err()
		}
		return q, nil
	})

	slowErr := make(chan error, 1)
	go func() {
		_, err := d.Do(context.Background(), "slow")
		slowErr <- err
	}()
	<-entered

	got, err := d.Do(context.Background(), "fast")

	require.NoError(t, err)
	assert.Equal(t, "fast", got)
	assert.ErrorIs(t, <-slowErr, ErrSuperseded)
}

func TestDebouncer_FetchErrorPassesThrough(t *testing.T) {
	boom := errors.New("backend down")
	d := NewDebouncer(time.Millisecond, func(context.Context, string) (string, error) {
		return "", boom
	})

	_, err := d.Do(context.Background(), "ring")
	assert.ErrorIs(t, err, boom)
}

func TestDebouncer_CallerCancellation(t *testing.T) {
	d := NewDebouncer(time.Second, func(context.Context, string) (string, error) {
		return "never", nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Do(ctx, "ring")
	assert.ErrorIs(t, err, context.Canceled)
}
