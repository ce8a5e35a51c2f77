package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-myhome/internal/action"
	"github.com/nerrad567/gray-logic-myhome/internal/audit"
	"github.com/nerrad567/gray-logic-myhome/internal/command"
	"github.com/nerrad567/gray-logic-myhome/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-myhome/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-myhome/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-myhome/internal/plant"
	"github.com/nerrad567/gray-logic-myhome/internal/queue"
	"github.com/nerrad567/gray-logic-myhome/migrations"
)

// delayPrefix marks a positional argument as a pause, e.g. "delay:500ms".
const delayPrefix = "delay:"

var sendCmd = &cobra.Command{
	Use:   "send COMMAND...",
	Short: "Send one action directly to the gateway and wait for delivery",
	Long: `Builds an action from the given commands, dispatches it and waits until
every frame has been written and the session is closed.

Each COMMAND is an OpenWebNet frame such as "*1*1*21##" or a pause written
as "delay:500ms".`,
	Example: `  myhomed send '*1*1*21##'
  myhomed send --priority high --reset '*1*0*21##' --reset delay:1s '*1*1*21##'`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		opts, err := sendOptionsFromFlags(cmd)
		if err != nil {
			return err
		}
		return runSend(cmd.Context(), cfg, opts, args, cmd.OutOrStdout())
	},
}

type sendOptions struct {
	description string
	priority    queue.Priority
	reset       []string
	timeout     time.Duration
	noAudit     bool
}

func init() {
	sendCmd.Flags().StringP("priority", "p", "low", "Priority: high, medium or low")
	sendCmd.Flags().StringP("description", "d", "cli send", "Action description")
	sendCmd.Flags().StringArray("reset", nil, "Reset command run before the others (repeatable)")
	sendCmd.Flags().Duration("timeout", 30*time.Second, "Maximum time to wait for delivery")
	sendCmd.Flags().Bool("no-audit", false, "Do not record the action in the history database")
	rootCmd.AddCommand(sendCmd)
}

func sendOptionsFromFlags(cmd *cobra.Command) (sendOptions, error) {
	var opts sendOptions
	f := cmd.Flags()

	prio, _ := f.GetString("priority")
	p, err := queue.ParsePriority(prio)
	if err != nil {
		return opts, err
	}
	opts.priority = p
	opts.description, _ = f.GetString("description")
	opts.reset, _ = f.GetStringArray("reset")
	opts.timeout, _ = f.GetDuration("timeout")
	opts.noAudit, _ = f.GetBool("no-audit")
	return opts, nil
}

// parseCommand turns a CLI argument into a Directive or Delay.
func parseCommand(arg string) (command.Command, error) {
	if rest, ok := strings.CutPrefix(arg, delayPrefix); ok {
		d, err := time.ParseDuration(rest)
		if err != nil {
			return nil, fmt.Errorf("parsing %q: %w", arg, err)
		}
		return command.NewDelay(d)
	}
	return command.NewDirective(arg)
}

// buildAction assembles the action from positional commands and resets.
func buildAction(opts sendOptions, args []string) (*action.Action, error) {
	a := action.New(opts.description, nil, action.WithPriority(opts.priority))
	for _, arg := range args {
		c, err := parseCommand(arg)
		if err != nil {
			return nil, err
		}
		a.AppendCommand(c)
	}

	if len(opts.reset) > 0 {
		reset := make([]command.Command, 0, len(opts.reset))
		for _, arg := range opts.reset {
			c, err := parseCommand(arg)
			if err != nil {
				return nil, fmt.Errorf("reset: %w", err)
			}
			reset = append(reset, c)
		}
		a.PrependResetCommands(reset)
	}
	return a, nil
}

// runSend dispatches one action and waits for it to drain.
func runSend(ctx context.Context, cfg *config.Config, opts sendOptions, args []string, out io.Writer) error {
	a, err := buildAction(opts, args)
	if err != nil {
		return err
	}

	log := logging.New(cfg.Logging, version)
	defer log.Close() //nolint:errcheck // Best-effort on exit

	dispatchCfg, err := dispatchConfig(cfg.Plant)
	if err != nil {
		return fmt.Errorf("plant config: %w", err)
	}

	var recorder *audit.Recorder
	if !opts.noAudit {
		db, dbErr := database.Open(ctx, cfg.Database)
		if dbErr != nil {
			return fmt.Errorf("opening database: %w", dbErr)
		}
		defer db.Close() //nolint:errcheck // Best-effort on exit

		if migrateErr := db.Migrate(ctx, migrations.Source()); migrateErr != nil {
			return fmt.Errorf("running migrations: %w", migrateErr)
		}

		recorder = audit.NewRecorder(audit.NewSQLiteRepository(db.DB), "cli")
		recorder.SetLogger(log)
		recorder.Start()
		defer recorder.Stop()
	}

	ctrlOpts := plant.Options{
		Dialer:   newDialer(cfg.Plant),
		Dispatch: dispatchCfg,
		Logger:   log,
	}
	if recorder != nil {
		ctrlOpts.Observer = recorder
	}
	ctrl, err := plant.NewController(ctrlOpts)
	if err != nil {
		return fmt.Errorf("creating controller: %w", err)
	}

	submitErr := ctrl.SubmitAction(a)
	if recorder != nil {
		if recErr := recorder.ActionSubmitted(ctx, a, submitErr); recErr != nil {
			log.Warn("recording submission", "error", recErr)
		}
	}
	if submitErr != nil {
		return fmt.Errorf("submitting action: %w", submitErr)
	}

	if err := ctrl.Start(ctx); err != nil {
		return fmt.Errorf("starting dispatcher: %w", err)
	}
	defer ctrl.Stop()

	drainCtx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()
	drainErr := ctrl.Drain(drainCtx)

	st := ctrl.Stats()
	fmt.Fprintf(out, "action %s: sent=%d held=%d dropped=%d requeued=%d\n",
		a.ID(), st.Sent, st.Held, st.Dropped, st.Requeued)

	if drainErr != nil {
		return fmt.Errorf("waiting for delivery: %w", drainErr)
	}
	if st.Dropped > 0 {
		return fmt.Errorf("%d of %d frames dropped", st.Dropped, a.Len())
	}
	return nil
}
