package cli

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/example/garde/internal/config"
	"github.com/example/garde/internal/db"
	"github.com/example/garde/internal/wire"
)

// DevCmd returns the dev command group for development utilities.
func DevCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dev",
		Short: "Development utilities",
		Long: `Development utilities for working with a garde database.

reset deletes the configured database and recreates it with the demo
organization; doctor checks that config, database and holidays are usable.`,
	}

	cmd.AddCommand(devResetCmd())
	cmd.AddCommand(devDoctorCmd())
	return cmd
}

func devResetCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Reset the database with the demo organization",
		Long: `Delete the database and recreate it with fixture data.

This command:
1. Deletes the existing database file
2. Creates a fresh database with the current schema
3. Seeds the demo organization (one site, two sectors, three services)

Safety: the database path must be set explicitly in the config file, so the
default ~/.garde/garde.db is never reset by accident.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath := wire.Config().DBPath
			if dbPath == "" {
				return fmt.Errorf("db_path not set in config - refusing to reset the default database")
			}

			// Confirmation unless --force
			if !force {
				fmt.Printf("This will delete and recreate: %s\n", dbPath)
				fmt.Print("Continue? [y/N] ")
				var response string
				fmt.Scanln(&response)
				if response != "y" && response != "Y" {
					fmt.Println("Aborted.")
					return nil
				}
			}

			if err := os.Remove(dbPath); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("failed to delete database: %w", err)
			}
			ok("Deleted %s", dbPath)

			database, err := db.Open(dbPath)
			if err != nil {
				return fmt.Errorf("failed to create database: %w", err)
			}
			defer database.Close()
			ok("Created fresh database with schema")

			if err := db.SeedFixtures(database); err != nil {
				return fmt.Errorf("failed to seed fixtures: %w", err)
			}
			ok("Seeded fixture data")

			fmt.Println("\nSeeded entities:")
			fmt.Println("  - 1 site, 2 sectors, 3 services")
			fmt.Println("  - sector and service chiefs, engineers, collaborators, one inactive user")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip confirmation prompt")
	return cmd
}

func devDoctorCmd() *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check environment health",
		Long: `Check the health of your garde environment.

Verifies:
- the config file resolves and is valid
- the database opens and its schema is current
- the holiday table is loaded
- the directory has active users`,
		RunE: func(cmd *cobra.Command, args []string) error {
			issues := CheckEnvironment()
			if !quiet {
				fmt.Println("=== garde Health Check ===")
				fmt.Println()
				if len(issues) == 0 {
					ok("All checks passed")
				}
			}
			for _, issue := range issues {
				fmt.Printf("%s %s\n", color.RedString("✗"), issue)
			}
			if len(issues) > 0 {
				return fmt.Errorf("%d issue(s) found", len(issues))
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Only print issues")
	return cmd
}

// CheckEnvironment returns a list of problems with the current setup.
func CheckEnvironment() []string {
	var issues []string

	cwd, err := os.Getwd()
	if err == nil {
		path, err := config.Resolve(configPath, cwd)
		switch {
		case err != nil:
			issues = append(issues, err.Error())
		case path == "":
			issues = append(issues, "no config file found - run 'garde init'")
		}
	}

	if err := wire.Config().Validate(); err != nil {
		issues = append(issues, fmt.Sprintf("invalid config: %v", err))
	}

	database := wire.DB()
	version, err := db.CurrentVersion(database)
	if err != nil {
		issues = append(issues, fmt.Sprintf("database: %v", err))
	} else if version != db.LatestVersion() {
		issues = append(issues, fmt.Sprintf("schema at version %d, expected %d", version, db.LatestVersion()))
	}

	if len(wire.Holidays()) == 0 {
		issues = append(issues, "holiday table is empty")
	}

	var users int
	if err := database.QueryRow("SELECT COUNT(*) FROM users WHERE active = 1").Scan(&users); err != nil {
		issues = append(issues, fmt.Sprintf("directory: %v", err))
	} else if users == 0 {
		issues = append(issues, "directory has no active users - run 'garde init --seed' or load your organization")
	}

	return issues
}
