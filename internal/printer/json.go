package printer

import (
	"encoding/json"
	"io"
	"time"

	"github.com/slok/tasknotify/internal/model"
)

// JSONPrinter prints task information in JSON format.
type JSONPrinter struct {
	writer io.Writer
}

// NewJSONPrinter creates a new JSON printer.
func NewJSONPrinter(w io.Writer) *JSONPrinter {
	return &JSONPrinter{writer: w}
}

type completionOutput struct {
	Seq        uint64    `json:"seq"`
	TaskID     string    `json:"task_id"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	DurationMS int64     `json:"duration_ms"`
}

type recordOutput struct {
	ID         string           `json:"id"`
	RecordedAt time.Time        `json:"recorded_at"`
	Completion completionOutput `json:"completion"`
}

type messageOutput struct {
	Message string `json:"message"`
}

func newCompletionOutput(ev model.CompletionEvent) completionOutput {
	return completionOutput{
		Seq:        ev.Seq,
		TaskID:     ev.TaskID,
		Status:     string(ev.Status),
		Error:      ev.Error,
		StartedAt:  ev.StartedAt.UTC(),
		FinishedAt: ev.FinishedAt.UTC(),
		DurationMS: ev.Duration().Milliseconds(),
	}
}

// PrintCompletions prints the completions of a run in JSON format.
func (j *JSONPrinter) PrintCompletions(events []model.CompletionEvent) error {
	items := make([]completionOutput, len(events))
	for i, ev := range events {
		items[i] = newCompletionOutput(ev)
	}

	return j.encode(items)
}

// PrintHistory prints the recorded completions in JSON format.
func (j *JSONPrinter) PrintHistory(records []model.CompletionRecord) error {
	items := make([]recordOutput, len(records))
	for i, r := range records {
		items[i] = recordOutput{
			ID:         r.ID,
			RecordedAt: r.RecordedAt.UTC(),
			Completion: newCompletionOutput(r.Event),
		}
	}

	return j.encode(items)
}

// PrintMessage prints a simple message in JSON format.
func (j *JSONPrinter) PrintMessage(msg string) error {
	return j.encode(messageOutput{Message: msg})
}

func (j *JSONPrinter) encode(v any) error {
	enc := json.NewEncoder(j.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
