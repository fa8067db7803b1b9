package printer

import "github.com/slok/tasknotify/internal/model"

// Printer knows how to print task information in different formats.
type Printer interface {
	PrintCompletions(events []model.CompletionEvent) error
	PrintHistory(records []model.CompletionRecord) error
	PrintMessage(msg string) error
}

var (
	_ Printer = &TablePrinter{}
	_ Printer = &JSONPrinter{}
)
