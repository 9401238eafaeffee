package main

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"switchboard-net/switchboard/pkg/config"
	"switchboard-net/switchboard/pkg/journal"
	"switchboard-net/switchboard/pkg/negotiation"
	"switchboard-net/switchboard/pkg/pipeline"
	"switchboard-net/switchboard/pkg/server"
	"switchboard-net/switchboard/pkg/telemetry/logging"
	"switchboard-net/switchboard/pkg/telemetry/metrics"
	"switchboard-net/switchboard/pkg/tlsengine"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the switchboard server",
	Long: `Start the switchboard server with the specified configuration.

The built-in handler answers every request with a JSON description of how
the connection was negotiated. Deployments embedding switchboard supply
their own handler through the library API.

Examples:
  # Start with default config
  switchboard run

  # Start with custom config
  switchboard run --config /etc/switchboard/config.yaml

  # Override listen address
  switchboard run --listen 0.0.0.0:8443

  # Validate config without starting the server
  switchboard run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting the server")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return err
	}

	// Flag overrides win over file and environment.
	if runFlags.listenAddress != "" {
		cfg.Server.Address = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	logger, err := logging.Setup(logging.Config{
		Level:     cfg.Telemetry.Logging.Level,
		Format:    cfg.Telemetry.Logging.Format,
		AddSource: cfg.Telemetry.Logging.AddSource,
	})
	if err != nil {
		return err
	}

	if runFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Metrics endpoint.
	var collector *metrics.Collector
	if cfg.Telemetry.Metrics.Enabled {
		collector = metrics.NewCollector(&metrics.Config{
			Enabled:   true,
			Namespace: cfg.Telemetry.Metrics.Namespace,
			Subsystem: cfg.Telemetry.Metrics.Subsystem,
		}, nil)

		mux := http.NewServeMux()
		mux.Handle("/metrics", collector.Handler())
		msrv := &http.Server{Addr: cfg.Telemetry.Metrics.Address, Handler: mux}
		go func() {
			logger.Info("metrics endpoint listening", "address", cfg.Telemetry.Metrics.Address)
			if err := msrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics endpoint failed", "error", err)
			}
		}()
		defer msrv.Close()
	}

	// Connection journal.
	var recorder *journal.Recorder
	if cfg.Journal.Enabled {
		var storage journal.Storage
		switch cfg.Journal.Backend {
		case "sqlite":
			sqliteCfg := journal.DefaultSQLiteConfig()
			sqliteCfg.Path = cfg.Journal.Path
			storage, err = journal.NewSQLiteStorage(sqliteCfg)
			if err != nil {
				return fmt.Errorf("opening journal: %w", err)
			}
		default:
			storage = journal.NewMemoryStorage()
		}
		defer storage.Close()

		recCfg := journal.DefaultRecorderConfig()
		recCfg.AsyncBuffer = cfg.Journal.AsyncBuffer
		recorder = journal.NewRecorder(storage, recCfg)
		defer recorder.Close()

		pruner, err := journal.NewPruner(storage, &journal.PrunerConfig{
			RetentionDays: cfg.Journal.RetentionDays,
			PruneSchedule: cfg.Journal.PruneSchedule,
			MaxRecords:    cfg.Journal.MaxRecords,
		})
		if err != nil {
			return err
		}
		if err := pruner.Start(ctx); err != nil {
			logger.Warn("journal pruning not scheduled", "error", err)
		} else {
			defer pruner.Stop()
		}
	}

	defaultProto, err := negotiation.ParseProtocol(cfg.Negotiation.DefaultProtocol)
	if err != nil {
		return err
	}
	onMissing, err := negotiation.ParseMissingPolicy(cfg.Negotiation.OnMissing)
	if err != nil {
		return err
	}

	srv, err := server.New(server.Options{
		Handler:         introspectionHandler(),
		MaxConnections:  cfg.Server.MaxConnections,
		Parallelism:     cfg.Server.Parallelism,
		IdleTimeout:     cfg.Server.IdleTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		DefaultProtocol: defaultProto,
		OnMissing:       onMissing,
		Metrics:         collector,
		Journal:         recorder,
	})
	if err != nil {
		return err
	}

	if cfg.Security.TLS.Enabled {
		reloader, err := tlsengine.NewCertReloader(cfg.Security.TLS.CertFile, cfg.Security.TLS.KeyFile)
		if err != nil {
			return fmt.Errorf("loading certificate: %w", err)
		}
		if cfg.Security.TLS.WatchCerts {
			if err := reloader.Watch(ctx); err != nil {
				logger.Warn("certificate watching disabled", "error", err)
			}
		}
		if cfg.Security.TLS.ExpiryCheckSchedule != "" {
			checker := tlsengine.NewExpiryChecker(reloader, cfg.Security.TLS.ExpiryCheckSchedule)
			if err := checker.Start(ctx); err != nil {
				logger.Warn("expiry checks not scheduled", "error", err)
			} else {
				defer checker.Stop()
			}
		}

		minVersion, err := tlsengine.ParseMinVersion(cfg.Security.TLS.MinVersion)
		if err != nil {
			return err
		}
		tlsConf := &tls.Config{
			GetCertificate: reloader.GetCertificateFunc(),
			MinVersion:     minVersion,
		}

		if _, err := srv.BindSecure("main", cfg.Server.Address, tlsConf); err != nil {
			return err
		}
	} else {
		if _, err := srv.BindPlain("main", cfg.Server.Address); err != nil {
			return err
		}
	}

	fmt.Printf("✓ Switchboard listening on %s (tls=%v)\n", cfg.Server.Address, cfg.Security.TLS.Enabled)
	fmt.Println("\nPress Ctrl+C to stop")

	<-ctx.Done()
	logger.Info("shutdown signal received")
	return srv.Terminate(cfg.Server.ShutdownTimeout)
}

// introspectionHandler reports how each request's connection was negotiated.
func introspectionHandler() pipeline.Handler {
	return pipeline.HandlerFunc(func(ctx context.Context, req *pipeline.Request) (*pipeline.Response, error) {
		body, err := json.Marshal(map[string]any{
			"conn_id":        req.ConnID,
			"correlation_id": req.CorrelationID,
			"protocol":       req.Protocol.String(),
			"method":         req.Method,
			"path":           req.Path,
			"time":           time.Now().UTC().Format(time.RFC3339),
		})
		if err != nil {
			return nil, err
		}
		return &pipeline.Response{
			StatusCode: http.StatusOK,
			Header:     http.Header{"Content-Type": []string{"application/json"}},
			Body:       body,
		}, nil
	})
}
