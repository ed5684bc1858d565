package cli

import (
	gocontext "context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/example/garde/internal/ports/primary"
	"github.com/example/garde/internal/wire"
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "View the audit trail",
	Long: `View and prune the audit trail of roster, unavailability and escalation
changes. Admins see every site; everyone else sees their own sector.`,
}

var logTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Show recent changes",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, actor, err := currentActor()
		if err != nil {
			return err
		}
		q := trailQueryFromFlags(cmd)
		follow, _ := cmd.Flags().GetBool("follow")

		ctx, stop := signal.NotifyContext(gocontext.Background(), os.Interrupt)
		defer stop()

		entries, err := wire.AuditService().Trail(ctx, actor, q)
		if err != nil {
			return fmt.Errorf("failed to read the audit trail: %w", err)
		}
		if len(entries) == 0 && !follow {
			fmt.Println("No changes recorded.")
			return nil
		}
		for i := len(entries) - 1; i >= 0; i-- {
			printTrailEntry(entries[i])
		}
		if !follow {
			return nil
		}

		since := time.Now()
		if len(entries) > 0 {
			since = entries[0].At.Add(time.Nanosecond)
		}
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
			q.Since = since
			fresh, err := wire.AuditService().Trail(ctx, actor, q)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error reading the audit trail: %v\n", err)
				continue
			}
			for i := len(fresh) - 1; i >= 0; i-- {
				printTrailEntry(fresh[i])
			}
			if len(fresh) > 0 {
				since = fresh[0].At.Add(time.Nanosecond)
			}
		}
	},
}

var logShowCmd = &cobra.Command{
	Use:   "show [entity-id]",
	Short: "Show the history of a roster, unavailability or escalation",
	Long: `Show every change recorded for one entity, oldest first.

For an escalation (ESC-...) the case's own history (levels opened, contact
attempts, responses) is merged with the audit entries.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, actor, err := currentActor()
		if err != nil {
			return err
		}
		id := args[0]

		var entries []*primary.TrailEntry
		if strings.HasPrefix(id, "ESC-") {
			entries, err = wire.AuditService().CaseTimeline(NewContext(), actor, id)
		} else {
			entries, err = wire.AuditService().Trail(NewContext(), actor, primary.TrailQuery{EntityID: id})
			reverse(entries)
		}
		if err != nil {
			return fmt.Errorf("failed to read the history of %s: %w", id, err)
		}
		if len(entries) == 0 {
			fmt.Printf("No changes recorded for %s.\n", id)
			return nil
		}
		for _, e := range entries {
			printTrailEntry(e)
		}
		return nil
	},
}

var logPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete old audit entries (admin)",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, actor, err := currentActor()
		if err != nil {
			return err
		}
		days, _ := cmd.Flags().GetInt("days")

		count, err := wire.AuditService().Prune(ctx, actor, days)
		if err != nil {
			return fmt.Errorf("failed to prune the audit trail: %w", err)
		}
		if count == 0 {
			fmt.Printf("No entries older than %d days.\n", days)
			return nil
		}
		ok("Pruned %d entries older than %d days", count, days)
		return nil
	},
}

func trailQueryFromFlags(cmd *cobra.Command) primary.TrailQuery {
	q := primary.TrailQuery{}
	q.Limit, _ = cmd.Flags().GetInt("limit")
	q.Action, _ = cmd.Flags().GetString("action")
	q.ActorID, _ = cmd.Flags().GetString("actor")
	q.EntityType, _ = cmd.Flags().GetString("type")
	q.Site, _ = cmd.Flags().GetString("site")
	q.Sector, _ = cmd.Flags().GetString("sector")
	if q.Limit <= 0 {
		q.Limit = 50
	}
	return q
}

func reverse(entries []*primary.TrailEntry) {
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
}

// printTrailEntry prints: time | actor | action | entity | detail
func printTrailEntry(e *primary.TrailEntry) {
	action := actionIcon(e.Action) + " " + e.Action
	if e.Source == primary.SourceCase {
		action = fmt.Sprintf("%s L%d %s", color.CyanString("•"), e.Level, e.Action)
	}
	fmt.Printf("%s | %-8s | %s | %s/%s",
		e.At.Local().Format("2006-01-02 15:04:05"),
		orDash(e.ActorID),
		action,
		e.EntityType,
		e.EntityID,
	)
	if e.Detail != "" {
		fmt.Printf(" | %s", e.Detail)
	}
	fmt.Println()
}

func actionIcon(action string) string {
	switch action {
	case "create":
		return color.GreenString("+")
	case "update":
		return color.YellowString("~")
	case "delete":
		return color.RedString("-")
	default:
		return "?"
	}
}

// LogCmd returns the log command with all subcommands attached.
func LogCmd() *cobra.Command {
	logTailCmd.Flags().IntP("limit", "n", 50, "Number of entries to show")
	logTailCmd.Flags().String("action", "", "Filter by action (create, update, delete)")
	logTailCmd.Flags().String("actor", "", "Filter by actor ID")
	logTailCmd.Flags().String("type", "", "Filter by entity type (roster, unavailability, escalation)")
	logTailCmd.Flags().String("site", "", "Filter by site (admins only outside their own)")
	logTailCmd.Flags().String("sector", "", "Filter by sector (admins only outside their own)")
	logTailCmd.Flags().BoolP("follow", "f", false, "Keep polling for new entries")

	logPruneCmd.Flags().Int("days", 30, "Delete entries older than N days")

	logCmd.AddCommand(logTailCmd)
	logCmd.AddCommand(logShowCmd)
	logCmd.AddCommand(logPruneCmd)

	return logCmd
}
