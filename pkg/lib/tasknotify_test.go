package lib_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/tasknotify/pkg/lib"
)

const testTimeout = 5 * time.Second

// newTestClient creates a client with an in-memory history for test isolation.
func newTestClient(t *testing.T) *lib.Client {
	t.Helper()

	client, err := lib.New(context.Background(), lib.Config{InMemoryHistory: true})
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = client.Close()
	})

	return client
}

func countdownTask(from int) lib.Task {
	return lib.TaskFunc(func(ctx context.Context, id string, sink lib.ProgressSink) error {
		for i := from; i >= 0; i-- {
			if err := sink.Report(ctx, i); err != nil {
				return err
			}
		}
		return nil
	})
}

func waitEvent(t *testing.T, ch <-chan lib.CompletionEvent) lib.CompletionEvent {
	t.Helper()

	select {
	case ev := <-ch:
		return ev
	case <-time.After(testTimeout):
		require.FailNow(t, "timeout waiting for completion")
		return lib.CompletionEvent{}
	}
}

func TestClientStart(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	client := newTestClient(t)

	var mu sync.Mutex
	var progress []int
	completions := make(chan lib.CompletionEvent, 10)
	client.OnProgress(func(u lib.ProgressUpdate) {
		mu.Lock()
		defer mu.Unlock()
		progress = append(progress, u.Remaining)
	})
	client.OnCompletion(func(ev lib.CompletionEvent) {
		// Progress observers already got everything.
		mu.Lock()
		last := progress[len(progress)-1]
		mu.Unlock()
		assert.Equal(0, last)
		completions <- ev
	})

	err := client.Start(context.Background(), "t1", countdownTask(5))
	require.NoError(err)

	ev := waitEvent(t, completions)
	assert.Equal("t1", ev.TaskID)
	assert.Equal(lib.CompletionStatusSucceeded, ev.Status)
	assert.Equal(uint64(1), ev.Seq)

	mu.Lock()
	defer mu.Unlock()
	for i := 1; i < len(progress); i++ {
		assert.LessOrEqual(progress[i], progress[i-1])
	}

	latest, ok := client.LatestCompletion()
	assert.True(ok)
	assert.Equal(ev, latest)
	assert.Equal(lib.RunnerStateIdle, client.State())
}

func TestClientStartErrors(t *testing.T) {
	tests := map[string]struct {
		id    string
		task  lib.Task
		expIs error
	}{
		"Starting without a task should fail.": {
			id:    "t1",
			task:  nil,
			expIs: lib.ErrNotValid,
		},
		"Starting without an id should fail.": {
			id:    "  ",
			task:  countdownTask(1),
			expIs: lib.ErrNotValid,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			client := newTestClient(t)

			err := client.Start(context.Background(), test.id, test.task)
			assert.ErrorIs(t, err, test.expIs)
		})
	}
}

func TestClientCancel(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	client := newTestClient(t)

	completions := make(chan lib.CompletionEvent, 10)
	client.OnCompletion(func(ev lib.CompletionEvent) { completions <- ev })

	started := make(chan struct{})
	reportErr := make(chan error, 1)
	task := lib.TaskFunc(func(ctx context.Context, id string, sink lib.ProgressSink) error {
		if err := sink.Report(ctx, 1); err != nil {
			return err
		}
		close(started)
		<-ctx.Done()

		err := sink.Report(ctx, 0)
		reportErr <- err
		return err
	})

	require.NoError(client.Start(context.Background(), "t1", task))
	<-started

	// Only one task at a time.
	err := client.Start(context.Background(), "t2", countdownTask(1))
	assert.ErrorIs(err, lib.ErrAlreadyRunning)

	id, ok := client.ActiveTask()
	assert.True(ok)
	assert.Equal("t1", id)

	require.NoError(client.Cancel())

	ev := waitEvent(t, completions)
	assert.Equal("t1", ev.TaskID)
	assert.Equal(lib.CompletionStatusCancelled, ev.Status)
	assert.ErrorIs(<-reportErr, lib.ErrCancelled)

	err = client.Cancel()
	assert.ErrorIs(err, lib.ErrNotRunning)
}

func TestClientUnsubscribe(t *testing.T) {
	client := newTestClient(t)

	s := client.OnCompletion(func(lib.CompletionEvent) {})
	require.NoError(t, client.Unsubscribe(s))

	err := client.Unsubscribe(s)
	assert.ErrorIs(t, err, lib.ErrNotFound)
}

func TestClientRunAndHistory(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	client := newTestClient(t)
	ctx := context.Background()

	events, err := client.Run(ctx, []lib.RunItem{
		{ID: "t1", Task: countdownTask(2)},
		{ID: "t2", Task: lib.TaskFunc(func(ctx context.Context, id string, sink lib.ProgressSink) error {
			return fmt.Errorf("disk full")
		})},
		{ID: "t1", Task: countdownTask(1)},
	}, nil)
	require.NoError(err)
	require.Len(events, 3)
	assert.Equal(lib.CompletionStatusSucceeded, events[0].Status)
	assert.Equal(lib.CompletionStatusFailed, events[1].Status)
	assert.Equal("disk full", events[1].Error)
	assert.Equal(lib.CompletionStatusSucceeded, events[2].Status)

	records, err := client.History(ctx, nil)
	require.NoError(err)
	assert.Len(records, 3)

	records, err = client.History(ctx, &lib.HistoryOpts{TaskID: "t1"})
	require.NoError(err)
	require.Len(records, 2)
	for _, r := range records {
		assert.Equal("t1", r.Event.TaskID)
	}

	records, err = client.History(ctx, &lib.HistoryOpts{Limit: 1})
	require.NoError(err)
	assert.Len(records, 1)

	_, err = client.History(ctx, &lib.HistoryOpts{Limit: -1})
	assert.ErrorIs(err, lib.ErrNotValid)
}

func TestClientRunStopOnFailure(t *testing.T) {
	client := newTestClient(t)

	events, err := client.Run(context.Background(), []lib.RunItem{
		{ID: "t1", Task: lib.TaskFunc(func(ctx context.Context, id string, sink lib.ProgressSink) error {
			return errors.New("boom")
		})},
		{ID: "t2", Task: countdownTask(1)},
	}, &lib.RunOpts{StopOnFailure: true})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, lib.CompletionStatusFailed, events[0].Status)
}

func TestClientRunCancelledByContext(t *testing.T) {
	client := newTestClient(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	task := lib.TaskFunc(func(ctx context.Context, id string, sink lib.ProgressSink) error {
		cancel()
		<-ctx.Done()
		return ctx.Err()
	})

	events, err := client.Run(ctx, []lib.RunItem{{ID: "t1", Task: task}}, nil)
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, events, 1)
	assert.Equal(t, lib.CompletionStatusCancelled, events[0].Status)
}

func TestClientClosed(t *testing.T) {
	client := newTestClient(t)
	require.NoError(t, client.Close())

	err := client.Start(context.Background(), "t1", countdownTask(1))
	assert.ErrorIs(t, err, lib.ErrStopped)

	_, err = client.Run(context.Background(), []lib.RunItem{{ID: "t1", Task: countdownTask(1)}}, nil)
	assert.ErrorIs(t, err, lib.ErrStopped)

	// Closing twice is safe.
	assert.NoError(t, client.Close())
}

func TestClientSQLiteHistoryIsPersisted(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "history.db")

	client, err := lib.New(ctx, lib.Config{DBPath: dbPath})
	require.NoError(err)
	events, err := client.Run(ctx, []lib.RunItem{{ID: "t1", Task: countdownTask(1)}}, nil)
	require.NoError(err)
	require.NoError(client.Close())

	client, err = lib.New(ctx, lib.Config{DBPath: dbPath})
	require.NoError(err)
	defer client.Close()

	records, err := client.History(ctx, nil)
	require.NoError(err)
	require.Len(records, 1)
	assert.Equal(events[0].TaskID, records[0].Event.TaskID)
	assert.Equal(events[0].Status, records[0].Event.Status)
	assert.Equal(events[0].Seq, records[0].Event.Seq)
}
