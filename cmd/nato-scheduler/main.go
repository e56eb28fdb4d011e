package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Geldren1/nato-website-2/internal/app"
	"github.com/Geldren1/nato-website-2/internal/common"
	"github.com/Geldren1/nato-website-2/internal/services/scheduler"
	"github.com/ternarybob/arbor"
)

// configPaths is a custom flag type that allows multiple -config flags
type configPaths []string

func (c *configPaths) String() string {
	return fmt.Sprintf("%v", *c)
}

func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

var (
	configFiles configPaths
	logLevel    = flag.String("log-level", "", "Log level (overrides config)")
	storageType = flag.String("storage", "", "Storage type: badger or postgres (overrides config)")
	once        = flag.Bool("once", false, "Run a single cycle and exit")
	showVersion = flag.Bool("version", false, "Print version information")
)

func init() {
	flag.Var(&configFiles, "config", "Configuration file path (can be specified multiple times)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")
}

func main() {
	os.Exit(run())
}

func run() int {
	flag.Parse()

	if *showVersion {
		fmt.Printf("nato-scheduler version %s\n", common.GetFullVersion())
		return 0
	}

	if len(configFiles) == 0 {
		if _, err := os.Stat("nato-scraper.toml"); err == nil {
			configFiles = append(configFiles, "nato-scraper.toml")
		} else if _, err := os.Stat("deployments/local/nato-scraper.toml"); err == nil {
			configFiles = append(configFiles, "deployments/local/nato-scraper.toml")
		}
	}

	config, err := common.LoadFromFiles(configFiles...)
	if err != nil {
		arbor.NewLogger().Error().Strs("paths", configFiles).Err(err).Msg("Failed to load configuration")
		return 1
	}
	common.ApplyFlagOverrides(config, *logLevel, *storageType)

	logger := common.InitLogger(config)
	common.PrintBanner("nato-scheduler", config, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, config, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to initialize application")
		return 1
	}
	defer application.Close()

	svc := scheduler.NewService(application, application.Sources.Enabled(), &config.Scheduler, logger)

	if *once {
		if err := svc.RunCycle(ctx); err != nil {
			logger.Error().Err(err).Msg("Cycle failed")
			return 1
		}
		return 0
	}

	common.SafeGo(logger, "metrics-server", func() {
		if err := application.ServeMetrics(ctx); err != nil {
			logger.Error().Err(err).Msg("Metrics endpoint stopped")
		}
	})

	if err := svc.Start(ctx); err != nil {
		logger.Error().Err(err).Msg("Failed to start scheduler")
		return 1
	}

	logger.Info().Msg("Scheduler ready - Press Ctrl+C to stop")
	<-ctx.Done()
	logger.Info().Msg("Interrupt signal received")

	if err := svc.Stop(); err != nil {
		logger.Warn().Err(err).Msg("Scheduler shutdown failed")
	}
	return 0
}
