package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/example/garde/internal/config"
	"github.com/example/garde/internal/db"
	"github.com/example/garde/internal/wire"
)

// InitCmd returns the init command
func InitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the garde database and config",
		Long: `Create the database with the required schema and write a config file.

By default the config is written to ~/.garde/config.json. With --local it is
written to .garde/config.json in the current directory instead, which takes
precedence for commands run from there.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			local, _ := cmd.Flags().GetBool("local")
			force, _ := cmd.Flags().GetBool("force")
			dbPath, _ := cmd.Flags().GetString("db")
			seed, _ := cmd.Flags().GetBool("seed")

			dir, err := os.UserHomeDir()
			if local {
				dir, err = os.Getwd()
			}
			if err != nil {
				return fmt.Errorf("failed to resolve config directory: %w", err)
			}

			cfg := wire.Config()
			if dbPath != "" {
				cfg.DBPath = dbPath
			}
			if cfg.DBPath == "" {
				if cfg.DBPath, err = db.DefaultPath(); err != nil {
					return err
				}
			}

			target := filepath.Join(dir, config.DirName, config.FileName)
			if _, err := os.Stat(target); err == nil && !force {
				fmt.Printf("Config already exists at %s (use --force to overwrite)\n", target)
			} else {
				path, err := config.Save(dir, cfg)
				if err != nil {
					return fmt.Errorf("failed to write config: %w", err)
				}
				ok("Config written to %s", path)
			}

			fmt.Printf("Initializing garde database at %s\n", cfg.DBPath)
			if err := wire.DB().Ping(); err != nil {
				return fmt.Errorf("failed to initialize database: %w", err)
			}
			ok("Database initialized successfully")

			if seed {
				if err := db.SeedFixtures(wire.DB()); err != nil {
					return fmt.Errorf("failed to seed directory: %w", err)
				}
				ok("Demo organization loaded")
			}

			fmt.Println()
			fmt.Println("Next steps:")
			fmt.Println("  garde calendar coverage --start 2025-01-01 --end 2025-03-31")
			fmt.Println("  garde --as USR-CH1 roster generate --site SITE-A --sector SEC-1 --service SRV-1 --start 2025-01-01 --end 2025-03-31")
			return nil
		},
	}
	cmd.Flags().Bool("local", false, "Write the config to .garde/config.json in the current directory")
	cmd.Flags().Bool("force", false, "Overwrite an existing config file")
	cmd.Flags().String("db", "", "Database path (default ~/.garde/garde.db)")
	cmd.Flags().Bool("seed", false, "Load the demo organization into an empty database")
	return cmd
}
