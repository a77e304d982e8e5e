package config

// NewDefaultConfig creates a configuration with default values.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "prod",
		Server: ServerConfig{
			Port: 4251,
			Host: "localhost",
		},
		API: APIConfig{
			URL:     "http://localhost:8080",
			Timeout: "30s",
		},
		Symbols: SymbolsConfig{
			Path: "./data/valid_symbols.csv",
		},
		Typeahead: TypeaheadConfig{
			MaxMatches: 50,
		},
		Session: SessionConfig{
			TTL:           "30m",
			SweepSchedule: "@every 1m",
			CookieName:    "optiwealth_session",
		},
		Client: ClientConfig{
			CacheTTL:        "5s",
			CacheMaxEntries: 500,
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path:     "./data/sessions",
				InMemory: true,
			},
		},
		MCP: MCPConfig{
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level:   "info",
			Outputs: []string{"console"},
		},
	}
}
