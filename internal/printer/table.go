package printer

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/slok/tasknotify/internal/model"
)

// TablePrinter prints task information in a table format.
type TablePrinter struct {
	writer io.Writer
}

// NewTablePrinter creates a new table printer.
func NewTablePrinter(w io.Writer) *TablePrinter {
	return &TablePrinter{writer: w}
}

// PrintCompletions prints the completions of a run in a table format.
func (t *TablePrinter) PrintCompletions(events []model.CompletionEvent) error {
	if len(events) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "SEQ\tTASK\tSTATUS\tDURATION\tERROR")
	for _, ev := range events {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", ev.Seq, ev.TaskID, ev.Status, FormatDuration(ev.Duration()), orDash(ev.Error))
	}

	return nil
}

// PrintHistory prints the recorded completions in a table format.
func (t *TablePrinter) PrintHistory(records []model.CompletionRecord) error {
	if len(records) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "ID\tTASK\tSTATUS\tDURATION\tFINISHED")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			r.ID,
			r.Event.TaskID,
			r.Event.Status,
			FormatDuration(r.Event.Duration()),
			TimeAgo(r.Event.FinishedAt),
		)
	}

	return nil
}

// PrintMessage prints a simple text message.
func (t *TablePrinter) PrintMessage(msg string) error {
	fmt.Fprintln(t.writer, msg)
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
