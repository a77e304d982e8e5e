package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bobmcallan/optiwealth-portal/internal/cache"
	"github.com/bobmcallan/optiwealth-portal/internal/client"
	"github.com/bobmcallan/optiwealth-portal/internal/common"
	"github.com/bobmcallan/optiwealth-portal/internal/config"
	"github.com/bobmcallan/optiwealth-portal/internal/handlers"
	"github.com/bobmcallan/optiwealth-portal/internal/mcp"
	"github.com/bobmcallan/optiwealth-portal/internal/session"
	"github.com/bobmcallan/optiwealth-portal/internal/storage"
	"github.com/bobmcallan/optiwealth-portal/internal/symbols"
)

// symbolsLoadTimeout bounds the startup download of a remote symbol list.
const symbolsLoadTimeout = 30 * time.Second

// App holds all application components and dependencies.
type App struct {
	Config *config.Config
	Logger *common.Logger

	Storage  storage.Manager
	Symbols  *symbols.Index
	Client   *client.Client
	Sessions *session.Manager

	// HTTP handlers
	API        *handlers.API
	MCPHandler *mcp.Handler
}

// New initializes the application with all dependencies.
func New(cfg *config.Config, logger *common.Logger) (*App, error) {
	a := &App{
		Config: cfg,
		Logger: logger,
	}

	env := strings.ToLower(strings.TrimSpace(cfg.Environment))
	if cfg.IsDevMode() {
		logger.Warn().Msg("RUNNING IN DEV MODE: unknown section names panic")
	} else if env != "prod" && env != "" {
		logger.Warn().
			Str("environment", cfg.Environment).
			Msg("unrecognized environment value, defaulting to prod behavior")
	}

	index, err := LoadSymbols(cfg.Symbols)
	if err != nil {
		return nil, err
	}
	a.Symbols = index
	logger.Info().Int("symbols", index.Len()).Msg("symbol index loaded")

	a.Storage, err = storage.NewStorageManager(logger, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open session storage: %w", err)
	}

	respCache := cache.New(cfg.Client.GetCacheTTL(), cfg.Client.CacheMaxEntries)
	a.Client = client.New(cfg.API.URL, cfg.API.GetTimeout(), respCache, logger)

	a.Sessions = session.NewManager(session.Options{
		Client:     a.Client,
		Storage:    a.Storage.KeyValueStorage(),
		Symbols:    index,
		TTL:        cfg.Session.GetTTL(),
		MaxMatches: cfg.Typeahead.MaxMatches,
		Strict:     cfg.IsDevMode(),
		Logger:     logger,
	})
	if err := a.Sessions.Start(cfg.Session.SweepSchedule); err != nil {
		a.Storage.Close()
		return nil, err
	}

	a.initHandlers()

	logger.Info().Msg("application initialization complete")

	return a, nil
}

// LoadSymbols reads the symbol universe once. A local path wins over a URL.
func LoadSymbols(cfg config.SymbolsConfig) (*symbols.Index, error) {
	var src symbols.Source
	switch {
	case cfg.Path != "":
		src = symbols.FileSource{Path: cfg.Path}
	case cfg.URL != "":
		src = symbols.URLSource{URL: cfg.URL, Client: &http.Client{Timeout: symbolsLoadTimeout}}
	default:
		return nil, errors.New("no symbol source configured")
	}

	ctx, cancel := context.WithTimeout(context.Background(), symbolsLoadTimeout)
	defer cancel()
	return src.Load(ctx)
}

// initHandlers initializes all HTTP handlers.
func (a *App) initHandlers() {
	stats := func() (int, int) {
		return a.Sessions.Count(), a.Symbols.Len()
	}

	a.API = &handlers.API{
		Health:  handlers.NewHealthHandler(a.Logger, a.Config.API.URL, stats),
		Version: handlers.NewVersionHandler(a.Logger),
		Session: handlers.NewSessionHandler(a.Logger, a.Sessions, a.Client, handlers.CookieOptions{
			Name:   a.Config.Session.CookieName,
			Secure: a.Config.Session.Secure,
		}),
		Symbols:    handlers.NewSymbolsHandler(a.Logger, a.Symbols, a.Config.Typeahead.MaxMatches),
		Portfolios: handlers.NewPortfolioHandler(a.Logger),
		Sections:   handlers.NewSectionsHandler(a.Logger),
		Market:     handlers.NewMarketHandler(a.Logger),
	}

	if a.Config.MCP.Enabled {
		a.MCPHandler = mcp.NewHandler(a.Symbols, a.Config.Typeahead.MaxMatches, a.Logger)
	}

	a.Logger.Debug().Msg("HTTP handlers initialized")
}

// Close ends every session, which purges their stored analytics, then
// closes storage.
func (a *App) Close() error {
	if a.Sessions != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		a.Sessions.Stop(ctx)
	}
	if a.Storage != nil {
		return a.Storage.Close()
	}
	return nil
}
