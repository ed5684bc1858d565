package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/example/garde/internal/core/calendar"
	"github.com/example/garde/internal/core/fault"
)

// statusBadge colors a lifecycle status for terminal output.
func statusBadge(status string) string {
	switch status {
	case "draft", "pending", "planned":
		return color.New(color.FgYellow).Sprint(status)
	case "pending_validation", "in_progress":
		return color.New(color.FgCyan).Sprint(status)
	case "validated", "confirmed":
		return color.New(color.FgBlue).Sprint(status)
	case "published", "approved", "resolved":
		return color.New(color.FgGreen).Sprint(status)
	case "refused", "failed", "absent":
		return color.New(color.FgRed).Sprint(status)
	case "forwarded", "replaced":
		return color.New(color.FgMagenta).Sprint(status)
	default:
		return color.New(color.FgHiBlack).Sprint(status)
	}
}

func newTable(out io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
}

// explain wraps err for display. Conflict lists are printed as a table
// before the error is returned to cobra.
func explain(action string, err error) error {
	var fe *fault.Error
	if errors.As(err, &fe) && len(fe.Conflicts) > 0 {
		printConflicts(os.Stderr, fe.Conflicts)
	}
	return fmt.Errorf("%s: %w", action, err)
}

func printConflicts(out io.Writer, conflicts []fault.Conflict) {
	w := newTable(out)
	fmt.Fprintln(w, "DATE\tUSER\tCONFLICTING ROSTER")
	fmt.Fprintln(w, "----\t----\t------------------")
	for _, c := range conflicts {
		fmt.Fprintf(w, "%s\t%s\t%s\n", calendar.FormatDay(c.Date), c.UserID, c.ConflictingRosterID)
	}
	w.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func formatInstant(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func ok(format string, args ...any) {
	fmt.Printf("%s %s\n", color.New(color.FgGreen).Sprint("✓"), fmt.Sprintf(format, args...))
}
