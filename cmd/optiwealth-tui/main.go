package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/bobmcallan/optiwealth-portal/internal/analytics"
	"github.com/bobmcallan/optiwealth-portal/internal/app"
	"github.com/bobmcallan/optiwealth-portal/internal/cache"
	"github.com/bobmcallan/optiwealth-portal/internal/client"
	"github.com/bobmcallan/optiwealth-portal/internal/common"
	"github.com/bobmcallan/optiwealth-portal/internal/config"
	"github.com/bobmcallan/optiwealth-portal/internal/disclosure"
	"github.com/bobmcallan/optiwealth-portal/internal/storage/badger"
	"github.com/bobmcallan/optiwealth-portal/internal/tui"
	"github.com/bobmcallan/optiwealth-portal/internal/workflow"
	tea "github.com/charmbracelet/bubbletea"
)

var (
	configFile = flag.String("config", "", "Configuration file path")
	email      = flag.String("email", "", "Account email (or OPTIWEALTH_EMAIL)")
	password   = flag.String("password", "", "Account password (or OPTIWEALTH_PASSWORD)")
)

func main() {
	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var paths []string
	if *configFile != "" {
		paths = append(paths, *configFile)
	}
	cfg, err := config.LoadFromFiles(paths...)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// The terminal belongs to the UI, so logs only go to a file.
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

	creds := client.Credentials{Email: orEnv(*email, "OPTIWEALTH_EMAIL"), Password: orEnv(*password, "OPTIWEALTH_PASSWORD")}
	if creds.Email == "" || creds.Password == "" {
		return fmt.Errorf("email and password are required (flags or OPTIWEALTH_EMAIL / OPTIWEALTH_PASSWORD)")
	}

	index, err := app.LoadSymbols(cfg.Symbols)
	if err != nil {
		return fmt.Errorf("failed to load symbols: %w", err)
	}

	ctx := context.Background()
	c := client.New(cfg.API.URL, cfg.API.GetTimeout(), cache.New(cfg.Client.GetCacheTTL(), cfg.Client.CacheMaxEntries), logger)
	login, err := c.Login(ctx, creds)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	backend := c.As(login.Token)

	// Analytics only need to outlive one run of the UI.
	store, err := badger.NewManager(logger, &config.BadgerConfig{InMemory: true})
	if err != nil {
		return err
	}
	defer store.Close()

	wf := workflow.New(workflow.Deps{
		Backend:    backend,
		Cache:      analytics.NewStore(store.KeyValueStorage(), "tui", 0, logger),
		Symbols:    index,
		Sections:   disclosure.New(false),
		MaxMatches: cfg.Typeahead.MaxMatches,
		Logger:     logger,
	})

	user := login.User.Username
	if user == "" {
		user = login.User.Email
	}
	m := tui.NewModel(ctx, tui.Options{Workflow: wf, Picks: backend.TopPicks, User: user})
	_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}

func orEnv(v, key string) string {
	if v != "" {
		return v
	}
	return os.Getenv(key)
}
