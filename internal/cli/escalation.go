package cli

import (
	gocontext "context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/example/garde/internal/core/escalation"
	"github.com/example/garde/internal/core/identity"
	"github.com/example/garde/internal/ports/primary"
	"github.com/example/garde/internal/wire"
)

var escalationCmd = &cobra.Command{
	Use:     "escalation",
	Aliases: []string{"esc"},
	Short:   "Run incident escalations",
	Long: `Declare incidents and walk them up the on-call chain.

Level 1 is the on-duty user of the service roster, level 2 the on-duty
user of the sector roster, level 3 the sector chief. Unanswered levels
time out; the watch command escalates them automatically.`,
}

// escalationRunE wraps a command body that needs a resolved actor.
func escalationRunE(run func(ctx gocontext.Context, actor identity.Actor, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) > 0 {
			if err := validateEntityID(args[0], "escalation"); err != nil {
				return err
			}
		}
		ctx, actor, err := currentActor()
		if err != nil {
			return err
		}
		return run(ctx, actor, cmd, args)
	}
}

var escalationStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Declare an incident and contact level 1",
	RunE: escalationRunE(func(ctx gocontext.Context, actor identity.Actor, cmd *cobra.Command, args []string) error {
		description, _ := cmd.Flags().GetString("description")
		incidentType, _ := cmd.Flags().GetString("type")
		priority, _ := cmd.Flags().GetString("priority")
		atStr, _ := cmd.Flags().GetString("at")
		site, _ := cmd.Flags().GetString("site")
		sector, _ := cmd.Flags().GetString("sector")
		service, _ := cmd.Flags().GetString("service")
		declarant, _ := cmd.Flags().GetString("declarant")
		contact, _ := cmd.Flags().GetString("contact")

		var at time.Time
		if atStr != "" {
			parsed, err := parseInstantFlag("at", atStr)
			if err != nil {
				return err
			}
			at = parsed
		}

		c, err := wire.EscalationService().Start(ctx, primary.StartEscalationRequest{
			Actor:        actor,
			Description:  description,
			IncidentType: incidentType,
			Priority:     priority,
			IncidentTime: at,
			Site:         site,
			Sector:       sector,
			Service:      service,
			Declarant:    escalation.Declarant{Name: declarant, Contact: contact, UserID: actor.ID},
		})
		if err != nil {
			return explain("failed to start escalation", err)
		}
		level := c.CurrentLevel()
		ok("Started %s, level %d responder %s", c.ID, level.Number, level.ResponderID)
		return nil
	}),
}

var escalationEscalateCmd = &cobra.Command{
	Use:   "escalate [escalation-id]",
	Short: "Close the current level as timed out and open the next",
	Args:  cobra.ExactArgs(1),
	RunE: escalationRunE(func(ctx gocontext.Context, actor identity.Actor, cmd *cobra.Command, args []string) error {
		c, err := wire.EscalationService().EscalateToNext(ctx, actor, args[0])
		if err != nil {
			return explain("failed to escalate", err)
		}
		level := c.CurrentLevel()
		ok("%s escalated to level %d, responder %s", c.ID, level.Number, level.ResponderID)
		return nil
	}),
}

// levelFlag returns --level, or the current level of the case when unset.
func levelFlag(ctx gocontext.Context, cmd *cobra.Command, caseID string) (int, error) {
	level, _ := cmd.Flags().GetInt("level")
	if level > 0 {
		return level, nil
	}
	c, err := wire.EscalationService().GetEscalation(ctx, caseID)
	if err != nil {
		return 0, fmt.Errorf("escalation not found: %w", err)
	}
	cur := c.CurrentLevel()
	if cur == nil {
		return 0, fmt.Errorf("%s has no open level", caseID)
	}
	return cur.Number, nil
}

var escalationContactCmd = &cobra.Command{
	Use:   "contact [escalation-id]",
	Short: "Record a contact attempt on a level",
	Args:  cobra.ExactArgs(1),
	RunE: escalationRunE(func(ctx gocontext.Context, actor identity.Actor, cmd *cobra.Command, args []string) error {
		channel, _ := cmd.Flags().GetString("channel")
		level, err := levelFlag(ctx, cmd, args[0])
		if err != nil {
			return err
		}

		attempt, err := wire.EscalationService().RecordContactAttempt(ctx, primary.ContactAttemptRequest{
			Actor:   actor,
			CaseID:  args[0],
			Level:   level,
			Channel: channel,
		})
		if err != nil {
			return explain("failed to record contact attempt", err)
		}
		ok("Attempt #%d via %s on %s", attempt.Number, attempt.Channel, args[0])
		return nil
	}),
}

var escalationDeliveryCmd = &cobra.Command{
	Use:   "delivery [escalation-id] [level] [attempt] [status]",
	Short: "Apply transport feedback to a contact attempt",
	Long:  "Status is one of pending, sent, delivered, failed.",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		level, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid level %q", args[1])
		}
		attempt, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("invalid attempt %q", args[2])
		}
		err = wire.EscalationService().UpdateDeliveryStatus(NewContext(), primary.DeliveryStatusRequest{
			CaseID:  args[0],
			Level:   level,
			Attempt: attempt,
			Status:  args[3],
		})
		if err != nil {
			return explain("failed to update delivery status", err)
		}
		ok("Attempt #%d on level %d of %s: %s", attempt, level, args[0], args[3])
		return nil
	},
}

var escalationRespondCmd = &cobra.Command{
	Use:   "respond [escalation-id]",
	Short: "Record a responder's answer",
	Long:  "Response is one of accepted, declined, forwarded. Acceptance resolves the case.",
	Args:  cobra.ExactArgs(1),
	RunE: escalationRunE(func(ctx gocontext.Context, actor identity.Actor, cmd *cobra.Command, args []string) error {
		level, err := levelFlag(ctx, cmd, args[0])
		if err != nil {
			return err
		}
		response, _ := cmd.Flags().GetString("response")
		comment, _ := cmd.Flags().GetString("comment")
		forwardTo, _ := cmd.Flags().GetString("forward-to")
		method, _ := cmd.Flags().GetString("method")

		c, err := wire.EscalationService().RecordResponse(ctx, primary.RecordResponseRequest{
			Actor:        actor,
			CaseID:       args[0],
			Level:        level,
			ResponseType: response,
			Comment:      comment,
			ForwardedTo:  forwardTo,
			Method:       method,
		})
		if err != nil {
			return explain("failed to record response", err)
		}
		ok("%s: %s (case %s)", args[0], response, statusBadge(string(c.Status)))
		return nil
	}),
}

var escalationResolveCmd = &cobra.Command{
	Use:   "resolve [escalation-id]",
	Short: "Resolve a case",
	Args:  cobra.ExactArgs(1),
	RunE: escalationRunE(func(ctx gocontext.Context, actor identity.Actor, cmd *cobra.Command, args []string) error {
		comment, _ := cmd.Flags().GetString("comment")
		method, _ := cmd.Flags().GetString("method")
		satisfaction, _ := cmd.Flags().GetInt("satisfaction")

		c, err := wire.EscalationService().Resolve(ctx, primary.ResolveEscalationRequest{
			Actor:        actor,
			CaseID:       args[0],
			Comment:      comment,
			Method:       method,
			Satisfaction: satisfaction,
		})
		if err != nil {
			return explain("failed to resolve", err)
		}
		ok("Resolved %s in %d minute(s)", c.ID, c.Resolution.Minutes)
		return nil
	}),
}

func escalationCloseCmd(action, short string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   action + " [escalation-id]",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: escalationRunE(func(ctx gocontext.Context, actor identity.Actor, cmd *cobra.Command, args []string) error {
			reason, _ := cmd.Flags().GetString("reason")
			svc := wire.EscalationService()

			var c *escalation.Case
			var err error
			switch action {
			case "cancel":
				c, err = svc.Cancel(ctx, actor, args[0], reason)
			case "fail":
				c, err = svc.Fail(ctx, actor, args[0], reason)
			}
			if err != nil {
				return explain("failed to "+action, err)
			}
			ok("%s is now %s", c.ID, statusBadge(string(c.Status)))
			return nil
		}),
	}
	cmd.Flags().StringP("reason", "r", "", "Reason")
	return cmd
}

var escalationForwardCmd = &cobra.Command{
	Use:   "forward [escalation-id] [target]",
	Short: "Hand the incident to a party outside the chain",
	Args:  cobra.ExactArgs(2),
	RunE: escalationRunE(func(ctx gocontext.Context, actor identity.Actor, cmd *cobra.Command, args []string) error {
		comment, _ := cmd.Flags().GetString("comment")
		c, err := wire.EscalationService().Forward(ctx, actor, args[0], args[1], comment)
		if err != nil {
			return explain("failed to forward", err)
		}
		ok("%s forwarded to %s", c.ID, args[1])
		return nil
	}),
}

var escalationTimeoutCmd = &cobra.Command{
	Use:   "timeout [escalation-id]",
	Short: "Check whether the current level has timed out",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		timedOut, err := wire.EscalationService().IsInTimeout(NewContext(), args[0])
		if err != nil {
			return explain("failed to check timeout", err)
		}
		if timedOut {
			fmt.Printf("%s: current level is in timeout\n", args[0])
		} else {
			fmt.Printf("%s: not in timeout\n", args[0])
		}
		return nil
	},
}

var escalationListCmd = &cobra.Command{
	Use:   "list",
	Short: "List escalations",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := NewContext()
		status, _ := cmd.Flags().GetString("status")
		site, _ := cmd.Flags().GetString("site")
		sector, _ := cmd.Flags().GetString("sector")
		limit, _ := cmd.Flags().GetInt("limit")

		cases, err := wire.EscalationService().ListEscalations(ctx, primary.EscalationFilters{
			Status: status,
			Site:   site,
			Sector: sector,
			Limit:  limit,
		})
		if err != nil {
			return fmt.Errorf("failed to list escalations: %w", err)
		}

		if len(cases) == 0 {
			fmt.Println("No escalations found.")
			return nil
		}

		w := newTable(os.Stdout)
		fmt.Fprintln(w, "ID\tSCOPE\tLEVEL\tRESPONDER\tSTATUS\tINCIDENT")
		fmt.Fprintln(w, "--\t-----\t-----\t---------\t------\t--------")
		for _, c := range cases {
			level, responder := "-", "-"
			if cur := c.CurrentLevel(); cur != nil {
				level = strconv.Itoa(cur.Number)
				responder = cur.ResponderID
			}
			scope := c.Site + "/" + c.Sector
			if c.Service != "" {
				scope += "/" + c.Service
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				c.ID,
				scope,
				level,
				responder,
				statusBadge(string(c.Status)),
				formatInstant(&c.Incident.Time),
			)
		}
		w.Flush()
		return nil
	},
}

var escalationShowCmd = &cobra.Command{
	Use:   "show [escalation-id]",
	Short: "Show escalation details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := validateEntityID(args[0], "escalation"); err != nil {
			return err
		}
		c, err := wire.EscalationService().GetEscalation(NewContext(), args[0])
		if err != nil {
			return fmt.Errorf("escalation not found: %w", err)
		}
		printCase(c)
		return nil
	},
}

func printCase(c *escalation.Case) {
	fmt.Printf("Escalation: %s\n", c.ID)
	fmt.Printf("Status: %s\n", statusBadge(string(c.Status)))
	fmt.Printf("Incident: %s\n", c.Incident.Description)
	if c.Incident.Type != "" {
		fmt.Printf("Type: %s\n", c.Incident.Type)
	}
	fmt.Printf("Priority: %s\n", orDash(c.Incident.Priority))
	fmt.Printf("Occurred: %s\n", formatInstant(&c.Incident.Time))
	fmt.Printf("Scope: %s/%s/%s\n", c.Site, c.Sector, orDash(c.Service))
	if c.Declarant.Name != "" || c.Declarant.UserID != "" {
		fmt.Printf("Declarant: %s %s\n", orDash(c.Declarant.Name), orDash(c.Declarant.Contact))
	}
	fmt.Printf("Timeouts: %v min, %d attempts/level, %d min apart\n",
		c.Config.TimeoutMinutes, c.Config.MaxAttemptsPerLevel, c.Config.MinIntervalMinutes)

	fmt.Println()
	w := newTable(os.Stdout)
	fmt.Fprintln(w, "LEVEL\tRESPONDER\tCONTACTED\tATTEMPTS\tRESPONSE\tMINUTES")
	fmt.Fprintln(w, "-----\t---------\t---------\t--------\t--------\t-------")
	for _, l := range c.Levels {
		minutes := "-"
		if l.ResponseTimeMinutes != nil {
			minutes = strconv.Itoa(*l.ResponseTimeMinutes)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\t%s\n",
			l.Number,
			l.ResponderID,
			formatInstant(&l.ContactedAt),
			len(l.Attempts),
			orDash(string(l.ResponseType)),
			minutes,
		)
	}
	w.Flush()

	if r := c.Resolution; r != nil {
		fmt.Printf("\nResolved by %s at %s (%s, %d min)\n", r.ResolverID, formatInstant(&r.ResolvedAt), r.Method, r.Minutes)
		if r.Satisfaction > 0 {
			fmt.Printf("Satisfaction: %d/5\n", r.Satisfaction)
		}
	}
	fmt.Printf("\nAttempts: %d, levels reached: %d, response rate: %.0f%%\n",
		c.Metrics.TotalAttempts, c.Metrics.LevelsReached, c.Metrics.ResponseRate*100)

	fmt.Println("\nHistory:")
	for _, h := range c.History {
		fmt.Printf("  %s  L%d  %-20s %s %s\n", formatInstant(&h.At), h.Level, h.Action, h.ActorID, h.Detail)
	}
}

var escalationWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Escalate timed-out cases on a schedule",
	Long: `Poll in-progress cases and escalate the ones whose current level has
timed out. A case timing out at the last level is failed.

With --metrics-addr (or watch.metrics_addr in the config) Prometheus metrics
are served on /metrics while the watcher runs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		once, _ := cmd.Flags().GetBool("once")
		addr, _ := cmd.Flags().GetString("metrics-addr")
		if addr == "" {
			addr = wire.Config().Watch.MetricsAddr
		}

		ctx, stop := signal.NotifyContext(gocontext.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		watcher := wire.EscalationWatcher()
		if once {
			report, err := watcher.RunOnce(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Scanned %d case(s), escalated %d, failed %d, errors %d\n",
				report.Scanned, len(report.Escalated), len(report.Failed), report.Errors)
			for _, id := range report.Escalated {
				fmt.Printf("  ↑ %s\n", id)
			}
			for _, id := range report.Failed {
				fmt.Printf("  ✗ %s\n", id)
			}
			return nil
		}

		if addr != "" {
			srv := serveMetrics(addr)
			defer func() {
				shutdownCtx, cancel := gocontext.WithTimeout(gocontext.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()
		}
		return watcher.Run(ctx)
	},
}

func serveMetrics(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", wire.Metrics().Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	logger := wire.Logger()
	go func() {
		logger.Info("serving metrics", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	return srv
}

func init() {
	escalationStartCmd.Flags().StringP("description", "d", "", "Incident description (required)")
	escalationStartCmd.Flags().StringP("type", "t", "", "Incident type")
	escalationStartCmd.Flags().StringP("priority", "p", "", "Incident priority")
	escalationStartCmd.Flags().String("at", "", "When the incident happened (default now)")
	escalationStartCmd.Flags().String("site", "", "Site ID (required)")
	escalationStartCmd.Flags().String("sector", "", "Sector ID (required)")
	escalationStartCmd.Flags().String("service", "", "Service ID (required)")
	escalationStartCmd.Flags().String("declarant", "", "Name of the person reporting")
	escalationStartCmd.Flags().String("contact", "", "How to reach the declarant")

	escalationContactCmd.Flags().Int("level", 0, "Level number (default: current)")
	escalationContactCmd.Flags().StringP("channel", "c", string(escalation.ChannelSMS), "sms, call, email or push")

	escalationRespondCmd.Flags().Int("level", 0, "Level number (default: current)")
	escalationRespondCmd.Flags().StringP("response", "r", string(escalation.ResponseAccepted), "accepted, declined or forwarded")
	escalationRespondCmd.Flags().StringP("comment", "c", "", "Comment")
	escalationRespondCmd.Flags().String("forward-to", "", "Forward target (with --response forwarded)")
	escalationRespondCmd.Flags().String("method", "", "Resolution method when accepting")

	escalationResolveCmd.Flags().StringP("comment", "c", "", "Resolution comment")
	escalationResolveCmd.Flags().StringP("method", "m", string(escalation.MethodRemote), "on_site, remote, phone or other")
	escalationResolveCmd.Flags().Int("satisfaction", 0, "Satisfaction 1..5 (0 = not rated)")

	escalationForwardCmd.Flags().StringP("comment", "c", "", "Comment")

	escalationListCmd.Flags().StringP("status", "s", "", "Filter by status")
	escalationListCmd.Flags().String("site", "", "Filter by site")
	escalationListCmd.Flags().String("sector", "", "Filter by sector")
	escalationListCmd.Flags().IntP("limit", "n", 0, "Maximum number of cases")

	escalationWatchCmd.Flags().Bool("once", false, "Run a single poll and exit")
	escalationWatchCmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address")

	escalationCmd.AddCommand(escalationStartCmd)
	escalationCmd.AddCommand(escalationEscalateCmd)
	escalationCmd.AddCommand(escalationContactCmd)
	escalationCmd.AddCommand(escalationDeliveryCmd)
	escalationCmd.AddCommand(escalationRespondCmd)
	escalationCmd.AddCommand(escalationResolveCmd)
	escalationCmd.AddCommand(escalationCloseCmd("cancel", "Abandon an in-progress case"))
	escalationCmd.AddCommand(escalationCloseCmd("fail", "End a case nobody could take"))
	escalationCmd.AddCommand(escalationForwardCmd)
	escalationCmd.AddCommand(escalationTimeoutCmd)
	escalationCmd.AddCommand(escalationListCmd)
	escalationCmd.AddCommand(escalationShowCmd)
	escalationCmd.AddCommand(escalationWatchCmd)
}

// EscalationCmd returns the escalation command.
func EscalationCmd() *cobra.Command {
	return escalationCmd
}
