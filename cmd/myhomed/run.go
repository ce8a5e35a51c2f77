package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-myhome/internal/audit"
	"github.com/nerrad567/gray-logic-myhome/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-myhome/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-myhome/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-myhome/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-myhome/internal/infrastructure/metrics"
	"github.com/nerrad567/gray-logic-myhome/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-myhome/internal/plant"
	"github.com/nerrad567/gray-logic-myhome/migrations"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the dispatcher service",
	Long: `Connects to MQTT, accepts actions on myhome/action/submit and dispatches
them to the configured gateway until interrupted.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return run(cmd.Context(), cfg)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

// run wires the service together and blocks until ctx is cancelled.
// Resources are released in reverse order by the defer chain.
func run(ctx context.Context, cfg *config.Config) error {
	log := logging.New(cfg.Logging, version)
	defer log.Close() //nolint:errcheck // Best-effort on exit

	log.Info("starting myhomed",
		"version", version,
		"commit", commit,
		"build_date", date,
		"site_id", cfg.Site.ID,
	)

	dispatchCfg, err := dispatchConfig(cfg.Plant)
	if err != nil {
		return fmt.Errorf("plant config: %w", err)
	}

	// Open database
	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx, migrations.Source()); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	recorder := audit.NewRecorder(audit.NewSQLiteRepository(db.DB), "mqtt")
	recorder.SetLogger(log)
	recorder.Start()
	defer recorder.Stop()

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(ctx, cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log)
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	observers := plant.OutcomeFanout{recorder}
	if influxClient != nil {
		observers = append(observers, plant.WriteFailedDeliveries(influxClient, cfg.Site.ID))
	}

	// The collector needs the controller for its gauges and the controller
	// needs the collector's observer, so the gauges read through ctrl.
	var ctrl *plant.Controller
	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.NewCollector(metrics.Gauges{
			QueueDepth:  func() int { return ctrl.QueueDepth() },
			SessionOpen: func() bool { return ctrl.Stats().SessionOpen },
		})
		observers = append(observers, plant.CountOutcomes(collector))
	}

	ctrl, err = plant.NewController(plant.Options{
		Dialer:   newDialer(cfg.Plant),
		Dispatch: dispatchCfg,
		Logger:   log,
		Observer: observers,
	})
	if err != nil {
		return fmt.Errorf("creating controller: %w", err)
	}
	if err := ctrl.Start(ctx); err != nil {
		return fmt.Errorf("starting dispatcher: %w", err)
	}
	defer func() {
		log.Info("stopping dispatcher", "pending", ctrl.QueueDepth())
		ctrl.Stop()
	}()
	log.Info("dispatcher started",
		"gateway", cfg.Plant.Address(),
		"pacing", dispatchCfg.Pacing.String(),
		"policy", dispatchCfg.Policy.String(),
	)

	if collector != nil {
		srv, srvErr := metrics.NewServer(cfg.Metrics, collector, log)
		if srvErr != nil {
			return fmt.Errorf("creating metrics server: %w", srvErr)
		}
		if startErr := srv.Start(ctx); startErr != nil {
			return fmt.Errorf("starting metrics server: %w", startErr)
		}
		defer func() {
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error closing metrics server", "error", closeErr)
			}
		}()
	}

	health := plant.NewHealthReporter(plant.HealthReporterConfig{
		SiteID:    cfg.Site.ID,
		Version:   version,
		Interval:  cfg.HealthInterval(),
		Source:    ctrl,
		Publisher: mqttClient,
		Stats:     statsWriter(influxClient),
	})
	health.SetLogger(log)
	if pubErr := health.PublishStarting(); pubErr != nil {
		log.Warn("failed to publish starting health", "error", pubErr)
	}
	health.Start(ctx)
	defer health.Stop()

	if cfg.Intake.Enabled {
		intake := plant.NewIntake(plant.IntakeConfig{
			Submitter:  ctrl,
			Publisher:  mqttClient,
			Subscriber: mqttClient,
			QoS:        byte(cfg.MQTT.QoS), //nolint:gosec // Validated to 0..2
			Recorder:   recorder,
			Counter:    submissionCounter(collector),
		})
		intake.SetLogger(log)
		if startErr := intake.Start(); startErr != nil {
			return fmt.Errorf("starting intake: %w", startErr)
		}
		defer func() {
			if stopErr := intake.Stop(); stopErr != nil {
				log.Warn("error stopping intake", "error", stopErr)
			}
		}()
	} else {
		log.Info("MQTT intake disabled")
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// statsWriter avoids handing a typed nil *influxdb.Client to an interface.
func statsWriter(c *influxdb.Client) plant.StatsWriter {
	if c == nil {
		return nil
	}
	return c
}

func submissionCounter(c *metrics.Collector) plant.SubmissionCounter {
	if c == nil {
		return nil
	}
	return c
}

// healthCheck verifies all infrastructure connections are healthy.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}
