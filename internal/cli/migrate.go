package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/maraichr/reviewgate/internal/store/migrations"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(cmd, func(m *migrations.Migrator) error { return m.Up() })
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recent migration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(cmd, func(m *migrations.Migrator) error { return m.Down() })
	},
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the applied schema version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(cmd, func(m *migrations.Migrator) error {
			v, dirty, err := m.Version()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version %d (latest %d)", v, migrations.LatestVersion)
			if dirty {
				fmt.Fprint(cmd.OutOrStdout(), " dirty")
			}
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		})
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateVersionCmd)
}

func withMigrator(cmd *cobra.Command, fn func(*migrations.Migrator) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	m, err := migrations.New(cfg.Database.MigrateDSN(), newLogger(cmd))
	if err != nil {
		return err
	}
	defer m.Close()
	return fn(m)
}
