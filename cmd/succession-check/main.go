package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Geldren1/nato-website-2/internal/app"
	"github.com/Geldren1/nato-website-2/internal/common"
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
	jsonOutput  = flag.Bool("json", false, "Write the result as JSON to stdout")
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
		fmt.Printf("succession-check version %s\n", common.GetFullVersion())
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
	if !*jsonOutput {
		common.PrintBanner("succession-check", config, logger)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, config, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to initialize application")
		return 1
	}
	defer application.Close()

	result, err := application.RunSuccession(ctx)
	if result != nil && *jsonOutput {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if encErr := encoder.Encode(result); encErr != nil {
			logger.Error().Err(encErr).Msg("Failed to write result")
		}
	}
	if err != nil {
		logger.Error().Err(err).Msg("Succession check failed")
		return 1
	}

	logger.Info().
		Int("checked", result.CheckedCount).
		Int("succeeded", result.SucceededCount).
		Strs("codes", result.SucceededCodes).
		Msg("Succession check finished")
	return 0
}
