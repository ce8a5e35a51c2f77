package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-myhome/internal/audit"
	"github.com/nerrad567/gray-logic-myhome/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-myhome/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-myhome/migrations"
)

var historyCmd = &cobra.Command{
	Use:   "history [ACTION_ID]",
	Short: "List submitted actions, or the failed deliveries of one action",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		f := cmd.Flags()
		var filter audit.Filter
		filter.Limit, _ = f.GetInt("limit")
		filter.Offset, _ = f.GetInt("offset")
		filter.Status, _ = f.GetString("status")
		filter.Priority, _ = f.GetString("priority")

		actionID := ""
		if len(args) == 1 {
			actionID = args[0]
		}
		return runHistory(cmd.Context(), cfg, filter, actionID, cmd.OutOrStdout())
	},
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 20, "Maximum number of actions to list")
	historyCmd.Flags().Int("offset", 0, "Number of actions to skip")
	historyCmd.Flags().String("status", "", "Only list actions with this status (accepted, rejected)")
	historyCmd.Flags().String("priority", "", "Only list actions with this priority (high, medium, low)")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(ctx context.Context, cfg *config.Config, filter audit.Filter, actionID string, out io.Writer) error {
	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close() //nolint:errcheck // Read-only use

	if err := db.Migrate(ctx, migrations.Source()); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	repo := audit.NewSQLiteRepository(db.DB)

	if actionID != "" {
		deliveries, listErr := repo.ListDeliveries(ctx, actionID)
		if listErr != nil {
			return fmt.Errorf("listing deliveries: %w", listErr)
		}
		return printDeliveries(out, deliveries)
	}

	result, err := repo.ListActions(ctx, filter)
	if err != nil {
		return fmt.Errorf("listing actions: %w", err)
	}
	return printActions(out, result)
}

func printActions(out io.Writer, result *audit.ListResult) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tID\tPRIORITY\tCOMMANDS\tSTATUS\tSOURCE\tDESCRIPTION")
	for _, a := range result.Actions {
		status := a.Status
		if a.Error != "" {
			status += " (" + a.Error + ")"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			a.CreatedAt.Local().Format(time.DateTime), a.ID, a.Priority, a.CommandCount, status, a.Source, a.Description)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(out, "%d of %d actions\n", len(result.Actions), result.Total)
	return err
}

func printDeliveries(out io.Writer, deliveries []audit.DeliveryRecord) error {
	if len(deliveries) == 0 {
		_, err := fmt.Fprintln(out, "no failed deliveries recorded")
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tOUTCOME\tATTEMPTS\tPAYLOAD\tERROR")
	for _, d := range deliveries {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
			d.CreatedAt.Local().Format(time.DateTime), d.Outcome, d.Attempts, d.Payload, d.Error)
	}
	return tw.Flush()
}
