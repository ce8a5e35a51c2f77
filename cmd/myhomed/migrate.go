package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-myhome/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-myhome/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-myhome/migrations"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the history database schema",
	Long:  `Apply, roll back or inspect the schema migrations of the history database.`,
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withConfig(cmd, runMigrateUp)
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recent migration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withConfig(cmd, runMigrateDown)
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "List applied and pending migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withConfig(cmd, runMigrateStatus)
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateStatusCmd)
	rootCmd.AddCommand(migrateCmd)
}

func withConfig(cmd *cobra.Command, fn func(context.Context, *config.Config, io.Writer) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return fn(cmd.Context(), cfg, cmd.OutOrStdout())
}

func runMigrateUp(ctx context.Context, cfg *config.Config, out io.Writer) error {
	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close() //nolint:errcheck // Short-lived CLI connection

	if err := db.Migrate(ctx, migrations.Source()); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	_, err = fmt.Fprintf(out, "%s: schema up to date\n", db.Path())
	return err
}

func runMigrateDown(ctx context.Context, cfg *config.Config, out io.Writer) error {
	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close() //nolint:errcheck // Short-lived CLI connection

	src := migrations.Source()
	applied, _, err := db.MigrationStatus(ctx, src)
	if err != nil {
		return fmt.Errorf("reading migration status: %w", err)
	}
	if len(applied) == 0 {
		_, err = fmt.Fprintf(out, "%s: nothing to roll back\n", db.Path())
		return err
	}

	if err := db.MigrateDown(ctx, src); err != nil {
		return fmt.Errorf("rolling back migration: %w", err)
	}
	_, err = fmt.Fprintf(out, "%s: rolled back %s\n", db.Path(), applied[len(applied)-1].Version)
	return err
}

func runMigrateStatus(ctx context.Context, cfg *config.Config, out io.Writer) error {
	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close() //nolint:errcheck // Read-only use

	applied, pending, err := db.MigrationStatus(ctx, migrations.Source())
	if err != nil {
		return fmt.Errorf("reading migration status: %w", err)
	}

	fmt.Fprintf(out, "database: %s\n", db.Path())
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tSTATE\tAPPLIED")
	for _, m := range applied {
		fmt.Fprintf(tw, "%s\tapplied\t%s\n", m.Version, m.AppliedAt.Local().Format(time.DateTime))
	}
	for _, m := range pending {
		fmt.Fprintf(tw, "%s\tpending\t-\n", m.Version)
	}
	return tw.Flush()
}
