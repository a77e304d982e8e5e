package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration.
type Config struct {
	Environment string          `toml:"environment"`
	Server      ServerConfig    `toml:"server"`
	API         APIConfig       `toml:"api"`
	Symbols     SymbolsConfig   `toml:"symbols"`
	Typeahead   TypeaheadConfig `toml:"typeahead"`
	Session     SessionConfig   `toml:"session"`
	Client      ClientConfig    `toml:"client"`
	Storage     StorageConfig   `toml:"storage"`
	MCP         MCPConfig       `toml:"mcp"`
	Logging     LoggingConfig   `toml:"logging"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

// APIConfig points at the OptiWealth backend.
type APIConfig struct {
	URL     string `toml:"url"`
	Timeout string `toml:"timeout"`
}

// GetTimeout parses the request timeout, falling back to 30s.
func (c *APIConfig) GetTimeout() time.Duration {
	return parseDuration(c.Timeout, 30*time.Second)
}

// SymbolsConfig locates the ticker universe. Path wins over URL.
type SymbolsConfig struct {
	Path string `toml:"path"`
	URL  string `toml:"url"`
}

// TypeaheadConfig tunes the symbol search widget.
type TypeaheadConfig struct {
	MaxMatches int `toml:"max_matches"`
}

// SessionConfig controls browser session lifetime.
type SessionConfig struct {
	TTL           string `toml:"ttl"`
	SweepSchedule string `toml:"sweep_schedule"`
	CookieName    string `toml:"cookie_name"`
	Secure        bool   `toml:"secure"`
}

// GetTTL parses the idle session lifetime, falling back to 30m.
func (c *SessionConfig) GetTTL() time.Duration {
	return parseDuration(c.TTL, 30*time.Minute)
}

// ClientConfig tunes the backend client's GET response cache.
type ClientConfig struct {
	CacheTTL        string `toml:"cache_ttl"`
	CacheMaxEntries int    `toml:"cache_max_entries"`
}

// GetCacheTTL parses the response cache TTL, falling back to 5s.
func (c *ClientConfig) GetCacheTTL() time.Duration {
	return parseDuration(c.CacheTTL, 5*time.Second)
}

// StorageConfig contains storage layer settings.
type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig contains BadgerDB-specific settings. Path is only used when
// InMemory is false.
type BadgerConfig struct {
	Path     string `toml:"path"`
	InMemory bool   `toml:"in_memory"`
}

// MCPConfig toggles the /mcp endpoint.
type MCPConfig struct {
	Enabled bool `toml:"enabled"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level      string   `toml:"level"`
	Outputs    []string `toml:"outputs"`
	FilePath   string   `toml:"file_path"`
	MaxSizeMB  int      `toml:"max_size_mb"`
	MaxBackups int      `toml:"max_backups"`
}

// IsDevMode reports whether the portal runs with developer conveniences
// (strict section names, verbose errors).
func (c *Config) IsDevMode() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "dev")
}

// BaseURL returns the URL the portal is reachable on.
func (c *Config) BaseURL() string {
	host := c.Server.Host
	if host == "" || host == "0.0.0.0" {
		host = "localhost"
	}
	return fmt.Sprintf("http://%s:%d", host, c.Server.Port)
}

// Validate returns a list of problems with mandatory settings.
func (c *Config) Validate() []string {
	var issues []string
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		issues = append(issues, fmt.Sprintf("server.port must be between 1 and 65535 (got %d)", c.Server.Port))
	}
	if strings.TrimSpace(c.API.URL) == "" {
		issues = append(issues, "api.url is required (OPTIWEALTH_API_URL)")
	} else if u, err := url.Parse(c.API.URL); err != nil || u.Scheme == "" || u.Host == "" {
		issues = append(issues, fmt.Sprintf("api.url is not an absolute URL: %q", c.API.URL))
	}
	if c.Symbols.Path == "" && c.Symbols.URL == "" {
		issues = append(issues, "symbols.path or symbols.url is required (OPTIWEALTH_SYMBOLS_PATH)")
	}
	if c.Typeahead.MaxMatches <= 0 {
		issues = append(issues, fmt.Sprintf("typeahead.max_matches must be positive (got %d)", c.Typeahead.MaxMatches))
	}
	if !c.Storage.Badger.InMemory && c.Storage.Badger.Path == "" {
		issues = append(issues, "storage.badger.path is required when storage.badger.in_memory is false")
	}
	return issues
}

// LoadFromFile loads configuration with priority: defaults -> file -> env.
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles()
	}
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration from multiple files with priority:
// defaults -> file1 -> file2 -> ... -> .env -> env.
// Later files override earlier files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies OPTIWEALTH_* environment variable overrides to config.
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("OPTIWEALTH_ENV"); env != "" {
		config.Environment = env
	}
	if port := os.Getenv("OPTIWEALTH_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("OPTIWEALTH_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if apiURL := os.Getenv("OPTIWEALTH_API_URL"); apiURL != "" {
		config.API.URL = apiURL
	}
	if path := os.Getenv("OPTIWEALTH_SYMBOLS_PATH"); path != "" {
		config.Symbols.Path = path
	}
	if symbolsURL := os.Getenv("OPTIWEALTH_SYMBOLS_URL"); symbolsURL != "" {
		config.Symbols.URL = symbolsURL
	}
	if max := os.Getenv("OPTIWEALTH_TYPEAHEAD_MAX_MATCHES"); max != "" {
		if n, err := strconv.Atoi(max); err == nil {
			config.Typeahead.MaxMatches = n
		}
	}
	if ttl := os.Getenv("OPTIWEALTH_SESSION_TTL"); ttl != "" {
		config.Session.TTL = ttl
	}
	if secure := os.Getenv("OPTIWEALTH_SESSION_SECURE"); secure != "" {
		if b, err := strconv.ParseBool(secure); err == nil {
			config.Session.Secure = b
		}
	}
	if badgerPath := os.Getenv("OPTIWEALTH_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
		config.Storage.Badger.InMemory = false
	}
	if level := os.Getenv("OPTIWEALTH_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if outputs := os.Getenv("OPTIWEALTH_LOG_OUTPUTS"); outputs != "" {
		config.Logging.Outputs = splitList(outputs)
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config.
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
