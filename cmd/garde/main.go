package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/garde/internal/cli"
	"github.com/example/garde/internal/version"
	"github.com/example/garde/internal/wire"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "garde",
		Short:   "garde - on-call rosters and incident escalation",
		Version: version.String(),
		Long: `garde plans weekend and holiday on-call rosters, handles unavailability
requests against them, and escalates incidents through a three-level chain
of on-duty responders.`,
		PersistentPreRunE: cli.Bootstrap,
		SilenceUsage:      true,
	}
	cli.AddGlobalFlags(rootCmd)

	// Add subcommands
	rootCmd.AddCommand(cli.InitCmd())
	rootCmd.AddCommand(cli.CalendarCmd())
	rootCmd.AddCommand(cli.DirectoryCmd())
	rootCmd.AddCommand(cli.LogCmd())

	// Domain commands
	rootCmd.AddCommand(cli.RosterCmd())
	rootCmd.AddCommand(cli.UnavailabilityCmd())
	rootCmd.AddCommand(cli.EscalationCmd())

	// Developer tools
	rootCmd.AddCommand(cli.DevCmd())

	err := rootCmd.Execute()
	wire.Close()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
