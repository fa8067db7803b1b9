package dispatch_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/tasknotify/internal/dispatch"
	"github.com/slok/tasknotify/internal/log"
	"github.com/slok/tasknotify/internal/model"
)

func startLoop(t *testing.T) (*dispatch.Loop, context.CancelFunc) {
	t.Helper()

	loop, err := dispatch.NewLoop(dispatch.LoopConfig{Logger: log.Noop})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = loop.Run(ctx)
	}()

	stop := func() {
		cancel()
		<-done
	}
	t.Cleanup(stop)

	return loop, stop
}

func TestLoopExecutesInPostOrder(t *testing.T) {
	loop, _ := startLoop(t)

	var got []int
	for i := 0; i < 100; i++ {
		i := i
		require.NoError(t, loop.Post(func() { got = append(got, i) }))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, loop.Sync(ctx))

	require.Len(t, got, 100)
	for i := range got {
		assert.Equal(t, i, got[i])
	}
}

func TestLoopRunsOnSingleGoroutine(t *testing.T) {
	loop, _ := startLoop(t)

	var (
		mu      sync.Mutex
		running int
		maxSeen int
		wg      sync.WaitGroup
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = loop.Post(func() {
				mu.Lock()
				running++
				if running > maxSeen {
					maxSeen = running
				}
				mu.Unlock()

				time.Sleep(time.Millisecond)

				mu.Lock()
				running--
				mu.Unlock()
			})
		}()
	}
	wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, loop.Sync(ctx))

	assert.Equal(t, 1, maxSeen)
}

func TestLoopRecoversPanics(t *testing.T) {
	loop, _ := startLoop(t)

	executed := false
	require.NoError(t, loop.Post(func() { panic("observer failure") }))
	require.NoError(t, loop.Post(func() { executed = true }))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, loop.Sync(ctx))

	assert.True(t, executed)
}

func TestLoopPostAfterStop(t *testing.T) {
	loop, stop := startLoop(t)
	stop()

	err := loop.Post(func() {})
	assert.True(t, errors.Is(err, model.ErrStopped))
}

func TestLoopSyncHonorsContext(t *testing.T) {
	loop, err := dispatch.NewLoop(dispatch.LoopConfig{})
	require.NoError(t, err)

	// Loop is not running so nothing will be executed.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err = loop.Sync(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}
