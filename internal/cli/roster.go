package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/garde/internal/core/calendar"
	"github.com/example/garde/internal/core/identity"
	"github.com/example/garde/internal/core/roster"
	"github.com/example/garde/internal/ports/primary"
	"github.com/example/garde/internal/wire"
)

// RosterCmd returns the roster command group.
func RosterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "roster",
		Short: "Manage on-call rosters",
		Long: `Create, generate, edit and publish on-call rosters.

A roster covers one service (or a whole sector) over a date range. Only
weekends and holidays need coverage. Rosters move through
draft -> pending_validation -> validated -> published, and can be archived
from any state.`,
	}

	cmd.AddCommand(rosterCreateCmd(false))
	cmd.AddCommand(rosterCreateCmd(true))
	cmd.AddCommand(rosterBatchCmd())
	cmd.AddCommand(rosterListCmd())
	cmd.AddCommand(rosterShowCmd())
	cmd.AddCommand(rosterDeleteCmd())
	cmd.AddCommand(rosterArchiveCmd())
	cmd.AddCommand(rosterAssignCmd())
	cmd.AddCommand(rosterSlotCmd("replace", "Hand a slot to another user"))
	cmd.AddCommand(rosterSlotCmd("confirm", "Confirm a slot"))
	cmd.AddCommand(rosterSlotCmd("absent", "Mark the holder of a slot absent"))
	cmd.AddCommand(rosterSubmitCmd())
	cmd.AddCommand(rosterTransitionCmd("approve"))
	cmd.AddCommand(rosterTransitionCmd("reject"))
	cmd.AddCommand(rosterTransitionCmd("publish"))
	cmd.AddCommand(rosterConflictsCmd())
	cmd.AddCommand(rosterResolveCmd())
	cmd.AddCommand(rosterOnDutyCmd())
	return cmd
}

func addScopeFlags(cmd *cobra.Command) {
	cmd.Flags().String("site", "", "Site ID (required)")
	cmd.Flags().String("sector", "", "Sector ID (required)")
	cmd.Flags().String("service", "", "Service ID (omit for a sector roster)")
}

func scopeFromFlags(cmd *cobra.Command) identity.Scope {
	site, _ := cmd.Flags().GetString("site")
	sector, _ := cmd.Flags().GetString("sector")
	service, _ := cmd.Flags().GetString("service")
	scope := identity.Scope{Type: identity.ScopeSector, Site: site, Sector: sector}
	if service != "" {
		scope.Type = identity.ScopeService
		scope.Service = service
	}
	return scope
}

func periodFromFlags(cmd *cobra.Command) (time.Time, time.Time, error) {
	startStr, _ := cmd.Flags().GetString("start")
	endStr, _ := cmd.Flags().GetString("end")
	start, err := parseDayFlag("start", startStr)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := parseDayFlag("end", endStr)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}

func rosterCreateCmd(generate bool) *cobra.Command {
	use, short := "create", "Create an empty draft roster"
	if generate {
		use, short = "generate", "Generate a draft roster with a load-balanced rotation"
	}

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, actor, err := currentActor()
			if err != nil {
				return err
			}
			start, end, err := periodFromFlags(cmd)
			if err != nil {
				return err
			}
			req := primary.CreateRosterRequest{Actor: actor, Scope: scopeFromFlags(cmd), Start: start, End: end}

			if !generate {
				r, err := wire.RosterService().CreateRoster(ctx, req)
				if err != nil {
					return explain("failed to create roster", err)
				}
				ok("Created roster %s (%s..%s)", r.ID, calendar.FormatDay(r.Start), calendar.FormatDay(r.End))
				return nil
			}

			resp, err := wire.RosterService().GenerateRoster(ctx, req)
			if err != nil {
				return explain("failed to generate roster", err)
			}
			printGenerated(resp)
			return nil
		},
	}
	addScopeFlags(cmd)
	cmd.Flags().String("start", "", "First day YYYY-MM-DD (required)")
	cmd.Flags().String("end", "", "Last day YYYY-MM-DD (required)")
	return cmd
}

func printGenerated(resp *primary.GenerateRosterResponse) {
	r := resp.Roster
	ok("Generated roster %s (%s..%s)", r.ID, calendar.FormatDay(r.Start), calendar.FormatDay(r.End))
	fmt.Printf("  Candidates: %s\n", strings.Join(resp.Candidates, ", "))
	fmt.Printf("  Assignments: %d\n", len(r.Assignments))
	if r.Meta != nil {
		fmt.Printf("  Coverage: %.0f%%\n", r.Meta.Stats.CoverageRatio*100)
	}
	for _, d := range resp.Uncovered {
		fmt.Printf("  %s %s (%s)\n", statusBadge("failed"), calendar.FormatDay(d.Date), d.Type)
	}
}

func rosterBatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate-batch [service-id...]",
		Short: "Generate rosters for several services of a sector concurrently",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, actor, err := currentActor()
			if err != nil {
				return err
			}
			start, end, err := periodFromFlags(cmd)
			if err != nil {
				return err
			}
			site, _ := cmd.Flags().GetString("site")
			sector, _ := cmd.Flags().GetString("sector")

			reqs := make([]primary.CreateRosterRequest, 0, len(args))
			for _, service := range args {
				reqs = append(reqs, primary.CreateRosterRequest{
					Actor: actor,
					Scope: identity.Scope{Type: identity.ScopeService, Site: site, Sector: sector, Service: service},
					Start: start,
					End:   end,
				})
			}

			results, err := wire.RosterService().GenerateBatch(ctx, reqs)
			if err != nil {
				return explain("failed to generate rosters", err)
			}
			for _, resp := range results {
				printGenerated(resp)
			}
			return nil
		},
	}
	cmd.Flags().String("site", "", "Site ID (required)")
	cmd.Flags().String("sector", "", "Sector ID (required)")
	cmd.Flags().String("start", "", "First day YYYY-MM-DD (required)")
	cmd.Flags().String("end", "", "Last day YYYY-MM-DD (required)")
	return cmd
}

func rosterListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List rosters",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := NewContext()
			status, _ := cmd.Flags().GetString("status")
			user, _ := cmd.Flags().GetString("user")
			scope := scopeFromFlags(cmd)

			filters := primary.RosterFilters{
				Site:    scope.Site,
				Sector:  scope.Sector,
				Service: scope.Service,
				Status:  status,
				UserID:  user,
			}
			rosters, err := wire.RosterService().ListRosters(ctx, filters)
			if err != nil {
				return fmt.Errorf("failed to list rosters: %w", err)
			}
			if len(rosters) == 0 {
				fmt.Println("No rosters found.")
				return nil
			}

			w := newTable(os.Stdout)
			fmt.Fprintln(w, "ID\tSCOPE\tPERIOD\tSTATUS\tSLOTS")
			fmt.Fprintln(w, "--\t-----\t------\t------\t-----")
			for _, r := range rosters {
				fmt.Fprintf(w, "%s\t%s\t%s..%s\t%s\t%d\n",
					r.ID,
					scopeLabel(r.Scope),
					calendar.FormatDay(r.Start),
					calendar.FormatDay(r.End),
					statusBadge(string(r.Status)),
					len(r.Assignments),
				)
			}
			w.Flush()
			return nil
		},
	}
	addScopeFlags(cmd)
	cmd.Flags().StringP("status", "s", "", "Filter by status")
	cmd.Flags().String("user", "", "Only rosters where this user holds or covers a slot")
	return cmd
}

func scopeLabel(s identity.Scope) string {
	if s.Type == identity.ScopeService {
		return s.Site + "/" + s.Sector + "/" + s.Service
	}
	return s.Site + "/" + s.Sector
}

func rosterShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [roster-id]",
		Short: "Show a roster and its assignments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateEntityID(args[0], "roster"); err != nil {
				return err
			}
			r, err := wire.RosterService().GetRoster(NewContext(), args[0])
			if err != nil {
				return fmt.Errorf("roster not found: %w", err)
			}
			printRoster(r)
			return nil
		},
	}
}

func printRoster(r *roster.Roster) {
	fmt.Printf("Roster: %s\n", r.ID)
	fmt.Printf("Scope: %s (%s)\n", scopeLabel(r.Scope), r.Scope.Type)
	fmt.Printf("Period: %s..%s\n", calendar.FormatDay(r.Start), calendar.FormatDay(r.End))
	fmt.Printf("Status: %s\n", statusBadge(string(r.Status)))
	fmt.Printf("Created by: %s at %s\n", r.CreatedBy, formatInstant(&r.CreatedAt))
	if r.Validation.RequestedBy != "" {
		fmt.Printf("Submitted by: %s at %s\n", r.Validation.RequestedBy, formatInstant(r.Validation.RequestedAt))
	}
	if r.Validation.ApprovedBy != "" {
		fmt.Printf("Approved by: %s at %s\n", r.Validation.ApprovedBy, formatInstant(r.Validation.ApprovedAt))
	}
	if r.Validation.PublishedAt != nil {
		fmt.Printf("Published: %s\n", formatInstant(r.Validation.PublishedAt))
	}
	if r.Validation.Rejected {
		fmt.Printf("Rejected: %s\n", r.Validation.RejectionReason)
	}
	if r.Meta != nil {
		fmt.Printf("Generated: %s, lookback %d days, %d candidate(s), %d uncovered\n",
			r.Meta.Algorithm, r.Meta.LookbackDays, len(r.Meta.Candidates), len(r.Meta.Uncovered))
	}

	if len(r.Assignments) == 0 {
		fmt.Println("\nNo assignments.")
		return
	}
	fmt.Println()
	w := newTable(os.Stdout)
	fmt.Fprintln(w, "DATE\tCOVERAGE\tUSER\tSTATUS\tREPLACEMENT\tHOURS\tCOMMENT")
	fmt.Fprintln(w, "----\t--------\t----\t------\t-----------\t-----\t-------")
	for _, a := range r.Assignments {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s-%s\t%s\n",
			calendar.FormatDay(a.Date),
			orDash(string(a.Coverage)),
			a.UserID,
			statusBadge(string(a.Status)),
			orDash(a.Replacement),
			a.StartTime,
			a.EndTime,
			orDash(a.Comment),
		)
	}
	w.Flush()
}

func rosterDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [roster-id]",
		Short: "Delete a draft roster",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, actor, err := currentActor()
			if err != nil {
				return err
			}
			if err := wire.RosterService().DeleteRoster(ctx, actor, args[0]); err != nil {
				return explain("failed to delete roster", err)
			}
			ok("Deleted roster %s", args[0])
			return nil
		},
	}
}

func rosterArchiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "archive [roster-id]",
		Short: "Archive a roster",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, actor, err := currentActor()
			if err != nil {
				return err
			}
			if err := wire.RosterService().Archive(ctx, actor, args[0]); err != nil {
				return explain("failed to archive roster", err)
			}
			ok("Archived roster %s", args[0])
			return nil
		},
	}
}

func rosterAssignCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assign [roster-id]",
		Short: "Add an assignment to a draft roster",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, actor, err := currentActor()
			if err != nil {
				return err
			}
			dateStr, _ := cmd.Flags().GetString("date")
			date, err := parseDayFlag("date", dateStr)
			if err != nil {
				return err
			}
			user, _ := cmd.Flags().GetString("user")
			startTime, _ := cmd.Flags().GetString("from")
			endTime, _ := cmd.Flags().GetString("to")
			comment, _ := cmd.Flags().GetString("comment")

			err = wire.RosterService().AddAssignment(ctx, primary.AssignmentRequest{
				Actor:     actor,
				RosterID:  args[0],
				Date:      date,
				UserID:    user,
				StartTime: startTime,
				EndTime:   endTime,
				Comment:   comment,
			})
			if err != nil {
				return explain("failed to add assignment", err)
			}
			ok("Assigned %s on %s in %s", user, calendar.FormatDay(date), args[0])
			return nil
		},
	}
	cmd.Flags().String("date", "", "Day YYYY-MM-DD (required)")
	cmd.Flags().String("user", "", "Assignee user ID (required)")
	cmd.Flags().String("from", "", "Start time HH:MM (default "+roster.DefaultStartTime+")")
	cmd.Flags().String("to", "", "End time HH:MM (default "+roster.DefaultEndTime+")")
	cmd.Flags().String("comment", "", "Optional comment")
	return cmd
}

func rosterSlotCmd(action, short string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   action + " [roster-id]",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, actor, err := currentActor()
			if err != nil {
				return err
			}
			dateStr, _ := cmd.Flags().GetString("date")
			date, err := parseDayFlag("date", dateStr)
			if err != nil {
				return err
			}
			comment, _ := cmd.Flags().GetString("comment")
			req := primary.AssignmentRequest{Actor: actor, RosterID: args[0], Date: date, Comment: comment}

			svc := wire.RosterService()
			switch action {
			case "replace":
				req.Replacement, _ = cmd.Flags().GetString("with")
				err = svc.ReplaceAssignment(ctx, req)
			case "confirm":
				err = svc.ConfirmAssignment(ctx, req)
			case "absent":
				err = svc.MarkAbsent(ctx, req)
			}
			if err != nil {
				return explain("failed to "+action+" assignment", err)
			}
			ok("Slot %s of %s: %s", calendar.FormatDay(date), args[0], action)
			return nil
		},
	}
	cmd.Flags().String("date", "", "Day YYYY-MM-DD (required)")
	cmd.Flags().String("comment", "", "Optional comment")
	if action == "replace" {
		cmd.Flags().String("with", "", "Replacement user ID (required)")
	}
	return cmd
}

func rosterSubmitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "submit [roster-id]",
		Short: "Submit a draft for validation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, actor, err := currentActor()
			if err != nil {
				return err
			}
			if err := wire.RosterService().Submit(ctx, actor, args[0]); err != nil {
				return explain("failed to submit roster", err)
			}
			ok("Roster %s submitted for validation", args[0])
			return nil
		},
	}
}

func rosterTransitionCmd(action string) *cobra.Command {
	shorts := map[string]string{
		"approve": "Validate a pending roster (blocked by conflicts unless --override)",
		"reject":  "Send a roster back to draft",
		"publish": "Publish a validated roster (blocked by conflicts unless --override)",
	}
	cmd := &cobra.Command{
		Use:   action + " [roster-id]",
		Short: shorts[action],
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, actor, err := currentActor()
			if err != nil {
				return err
			}
			reason, _ := cmd.Flags().GetString("reason")
			override, _ := cmd.Flags().GetBool("override")
			req := primary.TransitionRequest{Actor: actor, RosterID: args[0], Reason: reason, Override: override}

			svc := wire.RosterService()
			switch action {
			case "approve":
				err = svc.Approve(ctx, req)
			case "reject":
				err = svc.Reject(ctx, req)
			case "publish":
				err = svc.Publish(ctx, req)
			}
			if err != nil {
				return explain("failed to "+action+" roster", err)
			}
			ok("Roster %s: %s", args[0], action)
			return nil
		},
	}
	if action == "reject" {
		cmd.Flags().StringP("reason", "r", "", "Rejection reason (required)")
	} else {
		cmd.Flags().Bool("override", false, "Proceed despite detected conflicts")
	}
	return cmd
}

func rosterConflictsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "conflicts [roster-id]",
		Short: "List double-bookings against other active rosters",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conflicts, err := wire.RosterService().DetectConflicts(NewContext(), args[0])
			if err != nil {
				return explain("failed to detect conflicts", err)
			}
			if len(conflicts) == 0 {
				ok("No conflicts for %s", args[0])
				return nil
			}
			fmt.Printf("Found %d conflict(s):\n\n", len(conflicts))
			printConflicts(os.Stdout, conflicts)
			return nil
		},
	}
}

func rosterResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve-conflicts [roster-id]",
		Short: "Substitute conflicting slots with available colleagues",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, actor, err := currentActor()
			if err != nil {
				return err
			}
			res, err := wire.RosterService().ResolveConflicts(ctx, actor, args[0])
			if err != nil {
				return explain("failed to resolve conflicts", err)
			}
			for _, s := range res.Substitutions {
				fmt.Printf("  %s  %s -> %s (was also in %s)\n", calendar.FormatDay(s.Date), s.From, s.To, s.ConflictingRosterID)
			}
			if res.Resolved {
				ok("All conflicts of %s resolved", args[0])
				return nil
			}
			fmt.Printf("%d conflict(s) left unresolved:\n\n", len(res.Unresolved))
			printConflicts(os.Stdout, res.Unresolved)
			return nil
		},
	}
}

func rosterOnDutyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "on-duty",
		Short: "Show who is on duty for a scope",
		RunE: func(cmd *cobra.Command, args []string) error {
			atStr, _ := cmd.Flags().GetString("at")
			at, err := parseInstantFlag("at", atStr)
			if err != nil {
				return err
			}
			scope := scopeFromFlags(cmd)
			duty, err := wire.RosterService().WhoIsOnDuty(NewContext(), primary.OnDutyRequest{
				Site:    scope.Site,
				Sector:  scope.Sector,
				Service: scope.Service,
				At:      at,
			})
			if err != nil {
				return explain("no one on duty", err)
			}
			fmt.Printf("%s is on duty on %s (roster %s)\n", duty.UserID, calendar.FormatDay(duty.Date), duty.RosterID)
			return nil
		},
	}
	addScopeFlags(cmd)
	cmd.Flags().String("at", "", "Instant to check (default now)")
	return cmd
}
