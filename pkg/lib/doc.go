// Package lib provides a Go SDK to run background tasks with progress and
// completion notifications from any Go application.
//
// A [Client] owns a worker thread that runs one task at a time and a delivery
// thread where every observer is called. All the progress of a run is
// delivered before its completion, and every run publishes exactly one
// completion.
//
// # Quick Start
//
//	client, err := lib.New(ctx, lib.Config{InMemoryHistory: true})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.OnProgress(func(u lib.ProgressUpdate) {
//	    fmt.Printf("%s: %d remaining\n", u.TaskID, u.Remaining)
//	})
//	client.OnCompletion(func(ev lib.CompletionEvent) {
//	    fmt.Printf("%s: %s\n", ev.TaskID, ev.Status)
//	})
//
//	err = client.Start(ctx, "backup", lib.TaskFunc(func(ctx context.Context, id string, sink lib.ProgressSink) error {
//	    for i := 3; i >= 0; i-- {
//	        if err := sink.Report(ctx, i); err != nil {
//	            return err
//	        }
//	    }
//	    return nil
//	}))
//
// # Running several tasks
//
// [Client.Run] runs tasks one after the other waiting for each completion, and
// records every completion in the history that [Client.History] lists.
//
// # Cancellation
//
// [Client.Cancel] is cooperative: the task sees it as an error from
// [ProgressSink.Report] or as the end of its context. A cancelled run
// publishes a completion with [CompletionStatusCancelled].
//
// # Error Handling
//
// All methods return errors that can be inspected with [errors.Is]:
//
//   - [ErrNotValid]: Invalid input.
//   - [ErrAlreadyRunning]: A task is already running.
//   - [ErrNotRunning]: There is nothing to cancel.
//   - [ErrNotFound]: Unknown subscription.
//   - [ErrStopped]: The client has been closed.
//
// # Thread Safety
//
// A [Client] is safe for concurrent use from multiple goroutines. Observers
// are always called from the same goroutine, one at a time, so they must not
// block.
package lib
