package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/bobmcallan/optiwealth-portal/internal/app"
	"github.com/bobmcallan/optiwealth-portal/internal/common"
	"github.com/bobmcallan/optiwealth-portal/internal/config"
	"github.com/bobmcallan/optiwealth-portal/internal/mcp"
)

// optiwealth-mcp serves the portal's read-only MCP tools over stdio, for
// desktop MCP clients that launch a local process instead of calling /mcp.
func main() {
	configFile := flag.String("config", "", "Path to config file")
	flag.Parse()

	var paths []string
	if *configFile != "" {
		paths = append(paths, *configFile)
	}
	cfg, err := config.LoadFromFiles(paths...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Stdout carries the protocol; logs go to a file or nowhere.
	logger := common.NewSilentLogger()
	if cfg.Logging.FilePath != "" {
		logger = common.NewLoggerFromConfig(common.LoggingConfig{
			Level:      cfg.Logging.Level,
			Outputs:    []string{"file"},
			FilePath:   cfg.Logging.FilePath,
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
		})
	}

	index, err := app.LoadSymbols(cfg.Symbols)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load symbols: %v\n", err)
		os.Exit(1)
	}

	h := mcp.NewHandler(index, cfg.Typeahead.MaxMatches, logger)
	if err := h.ServeStdio(); err != nil {
		fmt.Fprintf(os.Stderr, "stdio server error: %v\n", err)
		os.Exit(1)
	}
}
