package progress_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/tasknotify/internal/dispatch"
	"github.com/slok/tasknotify/internal/log"
	"github.com/slok/tasknotify/internal/model"
	"github.com/slok/tasknotify/internal/progress"
)

func newLoop(t *testing.T) *dispatch.Loop {
	t.Helper()

	loop, err := dispatch.NewLoop(dispatch.LoopConfig{Logger: log.Noop})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = loop.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	return loop
}

func syncLoop(t *testing.T, loop *dispatch.Loop) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, loop.Sync(ctx))
}

func TestNewReporter(t *testing.T) {
	_, err := progress.NewReporter(progress.ReporterConfig{})
	assert.Error(t, err)
}

func TestReporterDeliversInOrder(t *testing.T) {
	loop := newLoop(t)
	r, err := progress.NewReporter(progress.ReporterConfig{Poster: loop})
	require.NoError(t, err)

	var got1, got2 []int
	r.Subscribe(func(u model.ProgressUpdate) error {
		got1 = append(got1, u.Remaining)
		return nil
	})
	r.Subscribe(func(u model.ProgressUpdate) error {
		got2 = append(got2, u.Remaining)
		return nil
	})

	// Wait for each delivery so nothing is coalesced.
	for i := 9; i >= 0; i-- {
		r.Emit(model.ProgressUpdate{TaskID: "A", Remaining: i, Total: 9})
		syncLoop(t, loop)
	}

	exp := []int{9, 8, 7, 6, 5, 4, 3, 2, 1, 0}
	assert.Equal(t, exp, got1)
	assert.Equal(t, exp, got2)
	assert.Equal(t, uint64(0), r.Coalesced())
}

func TestReporterCoalescesSlowSubscribers(t *testing.T) {
	loop := newLoop(t)
	r, err := progress.NewReporter(progress.ReporterConfig{Poster: loop})
	require.NoError(t, err)

	var got []int
	r.Subscribe(func(u model.ProgressUpdate) error {
		got = append(got, u.Remaining)
		return nil
	})

	// Block the delivery thread so the updates pile up.
	release := make(chan struct{})
	require.NoError(t, loop.Post(func() { <-release }))

	r.Emit(model.ProgressUpdate{TaskID: "A", Remaining: 3})
	r.Emit(model.ProgressUpdate{TaskID: "A", Remaining: 2})
	r.Emit(model.ProgressUpdate{TaskID: "A", Remaining: 1})
	close(release)
	syncLoop(t, loop)

	r.Emit(model.ProgressUpdate{TaskID: "A", Remaining: 0})
	syncLoop(t, loop)

	assert.Equal(t, []int{1, 0}, got)
	assert.Equal(t, uint64(2), r.Coalesced())
}

func TestReporterKeepsRunsApart(t *testing.T) {
	tests := map[string]struct {
		emit   func(r *progress.Reporter, mark func(string))
		expGot []string
	}{
		"Updates of the same run should be coalesced.": {
			emit: func(r *progress.Reporter, mark func(string)) {
				r.Emit(model.ProgressUpdate{TaskID: "A", Remaining: 1})
				r.Emit(model.ProgressUpdate{TaskID: "A", Remaining: 0})
			},
			expGot: []string{"A:0"},
		},
		"Updates of a different task should not replace a pending one.": {
			emit: func(r *progress.Reporter, mark func(string)) {
				r.Emit(model.ProgressUpdate{TaskID: "A", Remaining: 0})
				mark("done:A")
				r.Emit(model.ProgressUpdate{TaskID: "B", Remaining: 5})
			},
			expGot: []string{"A:0", "done:A", "B:5"},
		},
		"Updates after a seal should be delivered after what was posted after the seal.": {
			emit: func(r *progress.Reporter, mark func(string)) {
				r.Emit(model.ProgressUpdate{TaskID: "A", Remaining: 0})
				r.Seal()
				mark("done:A")
				r.Emit(model.ProgressUpdate{TaskID: "A", Remaining: 3})
				r.Emit(model.ProgressUpdate{TaskID: "A", Remaining: 2})
			},
			expGot: []string{"A:0", "done:A", "A:2"},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			loop := newLoop(t)
			r, err := progress.NewReporter(progress.ReporterConfig{Poster: loop})
			require.NoError(t, err)

			var got []string
			r.Subscribe(func(u model.ProgressUpdate) error {
				got = append(got, fmt.Sprintf("%s:%d", u.TaskID, u.Remaining))
				return nil
			})
			mark := func(s string) {
				require.NoError(t, loop.Post(func() { got = append(got, s) }))
			}

			// Block the delivery thread so every update is pending while emitting.
			release := make(chan struct{})
			require.NoError(t, loop.Post(func() { <-release }))
			test.emit(r, mark)
			close(release)
			syncLoop(t, loop)

			assert.Equal(t, test.expGot, got)
		})
	}
}

func TestReporterUnsubscribe(t *testing.T) {
	loop := newLoop(t)
	r, err := progress.NewReporter(progress.ReporterConfig{Poster: loop})
	require.NoError(t, err)

	calls := 0
	id := r.Subscribe(func(u model.ProgressUpdate) error {
		calls++
		return nil
	})

	r.Emit(model.ProgressUpdate{TaskID: "A", Remaining: 1})
	syncLoop(t, loop)
	assert.True(t, r.Unsubscribe(id))
	assert.False(t, r.Unsubscribe(id))

	r.Emit(model.ProgressUpdate{TaskID: "A", Remaining: 0})
	syncLoop(t, loop)

	assert.Equal(t, 1, calls)
}

func TestReporterIsolatesFailingHandlers(t *testing.T) {
	loop := newLoop(t)
	r, err := progress.NewReporter(progress.ReporterConfig{Poster: loop})
	require.NoError(t, err)

	r.Subscribe(func(u model.ProgressUpdate) error { panic("boom") })
	r.Subscribe(func(u model.ProgressUpdate) error { return fmt.Errorf("something") })

	var got []int
	r.Subscribe(func(u model.ProgressUpdate) error {
		got = append(got, u.Remaining)
		return nil
	})

	r.Emit(model.ProgressUpdate{TaskID: "A", Remaining: 1})
	syncLoop(t, loop)
	r.Emit(model.ProgressUpdate{TaskID: "A", Remaining: 0})
	syncLoop(t, loop)

	assert.Equal(t, []int{1, 0}, got)
}
