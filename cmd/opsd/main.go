// Command opsd runs the observatory operations daemon: the dome, telescope,
// and environment controllers behind a single RPC surface.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/bigskies-observatory/opsd/internal/audit"
	"github.com/bigskies-observatory/opsd/internal/daemon"
	"github.com/bigskies-observatory/opsd/internal/obslog"
	"github.com/bigskies-observatory/opsd/internal/opsconfig"
	"github.com/bigskies-observatory/opsd/internal/opsmodel"
	"github.com/bigskies-observatory/opsd/internal/telemetry"
	"github.com/bigskies-observatory/opsd/plugins/actions"
	_ "github.com/bigskies-observatory/opsd/plugins/domebackends"
	"github.com/bigskies-observatory/opsd/plugins/envbackends"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

func main() {
	configPath := pflag.StringP("config", "c", "/etc/opsd/opsd.json", "path to the site configuration file")
	logLevel := pflag.String("log-level", "info", "log level (debug, info, warn, error)")
	pflag.Parse()

	logger, err := obslog.New(*logLevel)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer logger.Sync()

	cfg, err := opsconfig.Load(*configPath)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}
	logger.Info("loaded configuration", zap.String("daemon", cfg.Daemon), zap.String("config_path", *configPath))

	envBackend, err := buildEnvironmentBackend(cfg, logger)
	if err != nil {
		logger.Fatal("failed to build environment backend", zap.Error(err))
	}

	var domeBackend opsmodel.DomeBackend
	if cfg.Dome != nil {
		domeBackend, err = opsconfig.NewDomeBackend(cfg.Dome.Module, cfg.Dome.Params)
		if err != nil {
			logger.Fatal("failed to build dome backend", zap.Error(err))
		}
	}

	parkFactory := actions.NewSiteParkFactory(logger)

	var telemetryPub daemon.EventPublisher
	if cfg.Telemetry != nil {
		pub, err := telemetry.New(telemetry.Config{BrokerURL: cfg.Telemetry.BrokerURL, ClientID: cfg.Telemetry.ClientID}, logger)
		if err != nil {
			logger.Warn("telemetry publisher unavailable, continuing without it", zap.Error(err))
		} else {
			defer pub.Close()
			telemetryPub = pub
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var auditLog daemon.AuditLog
	if cfg.Audit != nil {
		log, err := audit.Open(ctx, cfg.Audit.DSN, logger)
		if err != nil {
			logger.Warn("audit log unavailable, continuing without it", zap.Error(err))
		} else {
			defer log.Close()
			auditLog = log
		}
	}

	d := daemon.New(cfg, envBackend, domeBackend, parkFactory, telemetryPub, auditLog, logger)
	server := daemon.NewServer(d, logger)

	go d.Run(ctx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("shutdown signal received")
		cancel()
	}()

	logger.Info("opsd listening", zap.String("addr", cfg.RPCListenAddress))
	if err := server.Start(ctx); err != nil {
		logger.Error("server exited with error", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("opsd stopped")
}

func buildEnvironmentBackend(cfg *opsconfig.Config, logger *zap.Logger) (opsmodel.EnvironmentBackend, error) {
	switch cfg.EnvironmentDaemon {
	case "ascom-alpaca":
		return envbackends.NewAlpacaConditions(cfg.EnvironmentBackendURL, 0, logger), nil
	default:
		return envbackends.NewHTTPFeed(cfg.EnvironmentBackendURL), nil
	}
}
