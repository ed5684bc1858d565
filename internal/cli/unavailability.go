package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/garde/internal/core/calendar"
	"github.com/example/garde/internal/core/unavailability"
	"github.com/example/garde/internal/ports/primary"
	"github.com/example/garde/internal/wire"
)

var unavailCmd = &cobra.Command{
	Use:     "unavail",
	Aliases: []string{"unavailability"},
	Short:   "Declare and decide unavailabilities",
	Long: `Declare absences and take decisions on them.

Approving a request scans active rosters for slots held by the absent user
and flags them for replacement.

Reasons: conge, maladie, formation, mission, personnel, autre`,
}

var unavailSubmitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Declare an unavailability",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, actor, err := currentActor()
		if err != nil {
			return err
		}
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
		user, _ := cmd.Flags().GetString("user")
		reason, _ := cmd.Flags().GetString("reason")
		description, _ := cmd.Flags().GetString("description")
		priority, _ := cmd.Flags().GetString("priority")

		u, err := wire.UnavailabilityService().Submit(ctx, primary.SubmitUnavailabilityRequest{
			Actor:       actor,
			UserID:      user,
			Start:       start,
			End:         end,
			Reason:      reason,
			Description: description,
			Priority:    priority,
		})
		if err != nil {
			return explain("failed to submit unavailability", err)
		}
		ok("Submitted %s for %s (%s..%s)", u.ID, u.UserID, calendar.FormatDay(u.Start), calendar.FormatDay(u.End))
		return nil
	},
}

func unavailDecisionCmd(action, short, commentHelp string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   action + " [unavailability-id]",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateEntityID(args[0], "unavailability"); err != nil {
				return err
			}
			ctx, actor, err := currentActor()
			if err != nil {
				return err
			}
			comment, _ := cmd.Flags().GetString("comment")
			req := primary.DecisionRequest{Actor: actor, ID: args[0], Comment: comment}

			svc := wire.UnavailabilityService()
			var u *unavailability.Unavailability
			switch action {
			case "approve":
				u, err = svc.Approve(ctx, req)
			case "refuse":
				u, err = svc.Refuse(ctx, req)
			case "cancel":
				u, err = svc.Cancel(ctx, req)
			}
			if err != nil {
				return explain("failed to "+action+" unavailability", err)
			}
			ok("Unavailability %s is now %s", u.ID, statusBadge(string(u.Status)))
			printImpact(u.Impact)
			return nil
		},
	}
	cmd.Flags().StringP("comment", "c", "", commentHelp)
	return cmd
}

var unavailRescanCmd = &cobra.Command{
	Use:   "rescan [unavailability-id]",
	Short: "Rescan active rosters for an approved unavailability",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		u, err := wire.UnavailabilityService().RecomputeImpact(NewContext(), args[0])
		if err != nil {
			return explain("failed to rescan", err)
		}
		ok("Rescanned %s", u.ID)
		printImpact(u.Impact)
		return nil
	},
}

var unavailShowCmd = &cobra.Command{
	Use:   "show [unavailability-id]",
	Short: "Show unavailability details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := validateEntityID(args[0], "unavailability"); err != nil {
			return err
		}
		u, err := wire.UnavailabilityService().Get(NewContext(), args[0])
		if err != nil {
			return fmt.Errorf("unavailability not found: %w", err)
		}

		fmt.Printf("Unavailability: %s\n", u.ID)
		fmt.Printf("User: %s\n", u.UserID)
		fmt.Printf("Period: %s..%s\n", calendar.FormatDay(u.Start), calendar.FormatDay(u.End))
		fmt.Printf("Reason: %s\n", u.Reason)
		fmt.Printf("Priority: %s\n", u.Priority)
		fmt.Printf("Status: %s\n", statusBadge(string(u.Status)))
		if u.Description != "" {
			fmt.Printf("Description: %s\n", u.Description)
		}
		fmt.Printf("Created by: %s at %s\n", u.CreatedBy, formatInstant(&u.CreatedAt))
		if u.Approval.ApproverID != "" {
			fmt.Printf("Decided by: %s (%s) at %s\n", u.Approval.ApproverID, u.Approval.Level, formatInstant(u.Approval.DecidedAt))
		}
		if u.Approval.Comment != "" {
			fmt.Printf("Comment: %s\n", u.Approval.Comment)
		}
		if u.Approval.RefusalReason != "" {
			fmt.Printf("Refusal reason: %s\n", u.Approval.RefusalReason)
		}
		if u.Cancellation.By != "" {
			fmt.Printf("Cancelled by: %s at %s (%s)\n", u.Cancellation.By, formatInstant(u.Cancellation.At), orDash(u.Cancellation.Reason))
		}
		printImpact(u.Impact)
		return nil
	},
}

var unavailListCmd = &cobra.Command{
	Use:   "list",
	Short: "List unavailabilities",
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		status, _ := cmd.Flags().GetString("status")

		list, err := wire.UnavailabilityService().List(NewContext(), primary.UnavailabilityFilters{UserID: user, Status: status})
		if err != nil {
			return fmt.Errorf("failed to list unavailabilities: %w", err)
		}
		if len(list) == 0 {
			fmt.Println("No unavailabilities found.")
			return nil
		}

		w := newTable(os.Stdout)
		fmt.Fprintln(w, "ID\tUSER\tPERIOD\tREASON\tSTATUS\tIMPACT")
		fmt.Fprintln(w, "--\t----\t------\t------\t------\t------")
		for _, u := range list {
			impact := "-"
			if u.Impact.RecalcNeeded {
				impact = fmt.Sprintf("%d slot(s)", u.Impact.AffectedDates())
			}
			fmt.Fprintf(w, "%s\t%s\t%s..%s\t%s\t%s\t%s\n",
				u.ID,
				u.UserID,
				calendar.FormatDay(u.Start),
				calendar.FormatDay(u.End),
				u.Reason,
				statusBadge(string(u.Status)),
				impact,
			)
		}
		w.Flush()
		return nil
	},
}

func printImpact(i unavailability.Impact) {
	if i.ScannedAt == nil {
		return
	}
	if !i.RecalcNeeded {
		fmt.Printf("Impact: none (scanned %s)\n", formatInstant(i.ScannedAt))
		return
	}
	fmt.Printf("Impact: %d slot(s) need a replacement (scanned %s)\n", i.AffectedDates(), formatInstant(i.ScannedAt))
	for _, a := range i.Affected {
		for _, d := range a.Dates {
			fmt.Printf("  %s  %s\n", a.RosterID, calendar.FormatDay(d))
		}
	}
}

func init() {
	unavailSubmitCmd.Flags().String("start", "", "First day YYYY-MM-DD (required)")
	unavailSubmitCmd.Flags().String("end", "", "Last day YYYY-MM-DD (required)")
	unavailSubmitCmd.Flags().String("user", "", "Absent user (default: yourself)")
	unavailSubmitCmd.Flags().StringP("reason", "r", string(unavailability.ReasonLeave), "Reason")
	unavailSubmitCmd.Flags().StringP("description", "d", "", "Free text")
	unavailSubmitCmd.Flags().StringP("priority", "p", string(unavailability.PriorityNormal), "normal, urgent or critical")

	unavailListCmd.Flags().String("user", "", "Filter by user")
	unavailListCmd.Flags().StringP("status", "s", "", "Filter by status (pending, approved, refused, cancelled)")

	unavailCmd.AddCommand(unavailSubmitCmd)
	unavailCmd.AddCommand(unavailDecisionCmd("approve", "Approve a pending unavailability", "Approval comment"))
	unavailCmd.AddCommand(unavailDecisionCmd("refuse", "Refuse a pending unavailability", "Refusal reason (required)"))
	unavailCmd.AddCommand(unavailDecisionCmd("cancel", "Withdraw an unavailability", "Cancellation reason"))
	unavailCmd.AddCommand(unavailRescanCmd)
	unavailCmd.AddCommand(unavailShowCmd)
	unavailCmd.AddCommand(unavailListCmd)
}

// UnavailabilityCmd returns the unavail command.
func UnavailabilityCmd() *cobra.Command {
	return unavailCmd
}
