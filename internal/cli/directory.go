package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/garde/internal/core/identity"
	"github.com/example/garde/internal/db"
	"github.com/example/garde/internal/wire"
)

var directoryCmd = &cobra.Command{
	Use:   "directory",
	Short: "Look up users and services in the organization directory",
}

var directoryUsersCmd = &cobra.Command{
	Use:   "users",
	Short: "List active users by role",
	RunE: func(cmd *cobra.Command, args []string) error {
		role, _ := cmd.Flags().GetString("role")
		site, _ := cmd.Flags().GetString("site")
		sector, _ := cmd.Flags().GetString("sector")
		service, _ := cmd.Flags().GetString("service")
		if !identity.Role(role).Valid() {
			return fmt.Errorf("unknown role %q", role)
		}

		users, err := wire.Directory().ActiveUsersByRoleAndScope(NewContext(), identity.Role(role), site, sector, service)
		if err != nil {
			return fmt.Errorf("failed to list users: %w", err)
		}
		if len(users) == 0 {
			fmt.Println("No users found.")
			return nil
		}

		w := newTable(os.Stdout)
		fmt.Fprintln(w, "ID\tNAME\tSITE\tSECTOR\tSERVICE\tPHONE")
		fmt.Fprintln(w, "--\t----\t----\t------\t-------\t-----")
		for _, u := range users {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", u.ID, u.Name, u.Site, orDash(u.Sector), orDash(u.Service), orDash(u.Phone))
		}
		w.Flush()
		return nil
	},
}

var directoryServiceCmd = &cobra.Command{
	Use:   "service [service-id]",
	Short: "Show the rotation settings of a service",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := NewContext()
		svc, err := wire.Directory().ServiceConfig(ctx, args[0])
		if err != nil {
			return fmt.Errorf("service not found: %w", err)
		}
		chief, err := wire.Directory().SectorChief(ctx, svc.SectorID)
		if err != nil {
			return fmt.Errorf("sector not found: %w", err)
		}

		fmt.Printf("Service: %s\n", svc.ServiceID)
		fmt.Printf("Sector: %s (chief %s)\n", svc.SectorID, orDash(chief))
		fmt.Printf("Service chief: %s\n", orDash(svc.ChiefID))
		fmt.Printf("Chief in rotation: %t\n", svc.IncludeChiefInRotation)
		return nil
	},
}

var directoryImportCmd = &cobra.Command{
	Use:   "import [file.yaml]",
	Short: "Load sites, sectors, services and users from a YAML file",
	Long: `Upsert the organization described in a YAML file.

Existing rows are updated in place. With --deactivate-missing, active users
not listed in the file are marked inactive. --dry-run reports the counts
without writing.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deactivate, _ := cmd.Flags().GetBool("deactivate-missing")
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", args[0], err)
		}
		stats, err := db.ImportDirectory(wire.DB(), data, db.ImportOptions{DeactivateMissing: deactivate, DryRun: dryRun})
		if err != nil {
			return err
		}

		prefix := "Imported"
		if dryRun {
			prefix = "Would import"
		}
		ok("%s %d site(s), %d sector(s), %d service(s), %d user(s)", prefix, stats.Sites, stats.Sectors, stats.Services, stats.Users)
		if stats.Deactivated > 0 {
			fmt.Printf("  %d user(s) deactivated\n", stats.Deactivated)
		}
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the user you are acting as",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, actor, err := currentActor()
		if err != nil {
			return err
		}
		fmt.Printf("%s (%s) %s/%s/%s\n", actor.ID, actor.Role, orDash(actor.Site), orDash(actor.Sector), orDash(actor.Service))
		return nil
	},
}

func init() {
	directoryUsersCmd.Flags().String("role", string(identity.RoleEngineer), "Role to list")
	directoryUsersCmd.Flags().String("site", "", "Filter by site")
	directoryUsersCmd.Flags().String("sector", "", "Filter by sector")
	directoryUsersCmd.Flags().String("service", "", "Filter by service")

	directoryImportCmd.Flags().Bool("deactivate-missing", false, "Deactivate active users absent from the file")
	directoryImportCmd.Flags().Bool("dry-run", false, "Preview without writing")

	directoryCmd.AddCommand(directoryUsersCmd)
	directoryCmd.AddCommand(directoryImportCmd)
	directoryCmd.AddCommand(directoryServiceCmd)
	directoryCmd.AddCommand(whoamiCmd)
}

// DirectoryCmd returns the directory command.
func DirectoryCmd() *cobra.Command {
	return directoryCmd
}
