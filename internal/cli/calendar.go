package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/garde/internal/core/calendar"
	"github.com/example/garde/internal/wire"
)

// CalendarCmd returns the calendar command group.
func CalendarCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "calendar",
		Short: "Inspect coverage dates and holidays",
	}
	cmd.AddCommand(calendarCoverageCmd())
	cmd.AddCommand(calendarHolidaysCmd())
	return cmd
}

func calendarCoverageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "coverage",
		Short: "List the weekend and holiday dates of a period",
		RunE: func(cmd *cobra.Command, args []string) error {
			startStr, _ := cmd.Flags().GetString("start")
			endStr, _ := cmd.Flags().GetString("end")
			start, err := parseDayFlag("start", startStr)
			if err != nil {
				return err
			}
			end, err := parseDayFlag("end", endStr)
			if err != nil {
				return err
			}

			dates, err := wire.RosterService().CoverageDates(NewContext(), start, end)
			if err != nil {
				return explain("failed to resolve coverage dates", err)
			}

			w := newTable(os.Stdout)
			fmt.Fprintln(w, "DATE\tDAY\tTYPE\tHOLIDAY")
			fmt.Fprintln(w, "----\t---\t----\t-------")
			for _, d := range dates {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					calendar.FormatDay(d.Date),
					d.Date.Weekday().String()[:3],
					d.Type,
					orDash(d.HolidayName),
				)
			}
			w.Flush()

			sum := calendar.Summarize(dates)
			fmt.Printf("\n%d date(s): %d weekend, %d holiday\n", sum.Total, sum.Weekends, sum.Holidays)
			return nil
		},
	}
	cmd.Flags().String("start", "", "First day YYYY-MM-DD (required)")
	cmd.Flags().String("end", "", "Last day YYYY-MM-DD (required)")
	return cmd
}

func calendarHolidaysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "holidays",
		Short: "List the configured holidays",
		RunE: func(cmd *cobra.Command, args []string) error {
			year, _ := cmd.Flags().GetString("year")
			table := wire.Holidays()

			w := newTable(os.Stdout)
			fmt.Fprintln(w, "DATE\tNAME")
			fmt.Fprintln(w, "----\t----")
			n := 0
			for _, day := range table.Days() {
				if year != "" && !strings.HasPrefix(day, year+"-") {
					continue
				}
				fmt.Fprintf(w, "%s\t%s\n", day, table[day])
				n++
			}
			w.Flush()

			if n == 0 {
				fmt.Println("No holidays configured.")
			}
			return nil
		},
	}
	cmd.Flags().String("year", "", "Only show this year")
	return cmd
}
