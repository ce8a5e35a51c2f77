package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-myhome/internal/dispatcher"
	"github.com/nerrad567/gray-logic-myhome/internal/gateway"
	"github.com/nerrad567/gray-logic-myhome/internal/infrastructure/config"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

var rootCmd = &cobra.Command{
	Use:   "myhomed",
	Short: "Priority command dispatcher for MyHome gateways",
	Long: `myhomed queues actions by priority and delivers their OpenWebNet frames
to a MyHome gateway over a single paced command session.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to config file (default $MYHOME_CONFIG or "+defaultConfigPath+")")
}

// configPath resolves the config file: flag, then MYHOME_CONFIG, then default.
func configPath(cmd *cobra.Command) string {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		return path
	}
	if path := os.Getenv("MYHOME_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := configPath(cmd)
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config %s: %w", path, err)
	}
	return cfg, nil
}

// newDialer builds the gateway dialer from plant settings.
func newDialer(cfg config.PlantConfig) *gateway.Dialer {
	return &gateway.Dialer{
		Host:           cfg.Host,
		Port:           cfg.Port,
		ConnectTimeout: cfg.ConnectTimeout(),
		WriteTimeout:   cfg.WriteTimeout(),
		ReadTimeout:    cfg.ReadTimeout(),
		AwaitAck:       cfg.AwaitAck,
	}
}

// dispatchConfig converts plant settings into dispatcher tuning.
func dispatchConfig(cfg config.PlantConfig) (dispatcher.Config, error) {
	policy, err := dispatcher.ParsePolicy(cfg.Retry.Policy)
	if err != nil {
		return dispatcher.Config{}, err
	}
	return dispatcher.Config{
		Pacing:         cfg.Pacing(),
		Policy:         policy,
		MaxAttempts:    cfg.Retry.MaxAttempts,
		InitialBackoff: cfg.Retry.InitialBackoff(),
		MaxBackoff:     cfg.Retry.MaxBackoff(),
	}, nil
}
