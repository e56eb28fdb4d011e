package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Geldren1/nato-website-2/internal/app"
	"github.com/Geldren1/nato-website-2/internal/common"
	"github.com/Geldren1/nato-website-2/internal/models"
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
	jsonOutput  = flag.Bool("json", false, "Write the run result as JSON to stdout")
	showVersion = flag.Bool("version", false, "Print version information")
)

func init() {
	flag.Var(&configFiles, "config", "Configuration file path (can be specified multiple times, later files override earlier ones)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: nato-scraper [flags] <source> [incremental|full]\n\n")
		flag.PrintDefaults()
	}
}

func main() {
	os.Exit(run())
}

func run() int {
	flag.Parse()

	if *showVersion {
		fmt.Printf("nato-scraper version %s\n", common.GetFullVersion())
		return 0
	}

	args := flag.Args()
	if len(args) < 1 || len(args) > 2 {
		flag.Usage()
		return 1
	}

	if len(configFiles) == 0 {
		if _, err := os.Stat("nato-scraper.toml"); err == nil {
			configFiles = append(configFiles, "nato-scraper.toml")
		} else if _, err := os.Stat("deployments/local/nato-scraper.toml"); err == nil {
			configFiles = append(configFiles, "deployments/local/nato-scraper.toml")
		}
	}

	// Startup order: config -> CLI overrides -> logger -> banner
	config, err := common.LoadFromFiles(configFiles...)
	if err != nil {
		arbor.NewLogger().Error().Strs("paths", configFiles).Err(err).Msg("Failed to load configuration")
		return 1
	}
	common.ApplyFlagOverrides(config, *logLevel, *storageType)

	logger := common.InitLogger(config)
	if !*jsonOutput {
		common.PrintBanner("nato-scraper", config, logger)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, config, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to initialize application")
		return 1
	}
	defer application.Close()

	mode := application.DefaultMode()
	if len(args) == 2 {
		parsed, ok := models.ParseRunMode(args[1])
		if !ok {
			logger.Error().Str("mode", args[1]).Msg("Unknown mode, expected incremental or full")
			return 1
		}
		mode = parsed
	}

	result, err := application.RunSource(ctx, args[0], mode)
	if err != nil {
		if errors.Is(err, app.ErrRunInProgress) {
			logger.Warn().Str("source", args[0]).Msg("Another run holds the lock, exiting")
		} else {
			logger.Error().Err(err).Str("source", args[0]).Msg("Run could not start")
		}
		return 1
	}

	if *jsonOutput {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(result); err != nil {
			logger.Error().Err(err).Msg("Failed to write result")
			return 1
		}
	}

	if !result.Success {
		return 1
	}
	return 0
}
