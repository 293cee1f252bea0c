package config

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	defaultEnvFile          = ".env"
	defaultPort             = "8080"
	defaultReadTimeout      = 15 * time.Second
	defaultIdleTimeout      = 60 * time.Second
	defaultShutdownTimeout  = 10 * time.Second
	defaultBackendMode      = BackendModeHTTP
	defaultBackendTimeout   = 10 * time.Second
	defaultFirstCursor      = "1"
	defaultScrollThreshold  = 20.0
	defaultSearchMode       = "name_description"
	defaultLocale           = "en"
	defaultLocaleDir        = "locales"
	defaultCurrencyLabel    = "IQD"
	defaultSessionIdleTTL   = 30 * time.Minute
	defaultSweepInterval    = time.Minute
	defaultMaxSessions      = 10000
	defaultNATSSubjectRoot  = "menu.sessions"
	defaultStaticPageSize   = 4
	defaultLogLevel         = "info"
	defaultSupportedLocales = "en,ar"
)

// Backend modes.
const (
	BackendModeHTTP   = "http"
	BackendModeStatic = "static"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server   ServerConfig
	Backend  BackendConfig
	Browsing BrowsingConfig
	Locale   LocaleConfig
	Sessions SessionConfig
	NATS     NATSConfig
	Log      LogConfig
}

// ServerConfig configures HTTP server parameters. WriteTimeout defaults to zero so snapshot streams
// stay open.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// BackendConfig selects and configures the menu data source.
type BackendConfig struct {
	Mode           string
	BaseURL        string
	Timeout        time.Duration
	StaticPageSize int
}

// BrowsingConfig tunes the category pagination and search behaviour.
type BrowsingConfig struct {
	DefaultRestaurantID string
	FirstCursor         string
	ScrollThreshold     float64
	SearchMode          string
}

// LocaleConfig lists display languages and where their strings live.
type LocaleConfig struct {
	Default       string
	Supported     []string
	Dir           string
	CurrencyLabel string
}

// SessionConfig bounds the lifetime of browsing sessions.
type SessionConfig struct {
	IdleTTL       time.Duration
	SweepInterval time.Duration
	MaxSessions   int
}

// NATSConfig enables snapshot fan-out over NATS when URL is set.
type NATSConfig struct {
	URL           string
	SubjectPrefix string
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level string
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// Option customises how configuration values are looked up.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects an explicit key/value map that takes precedence over the system environment.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from the process environment.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// Load resolves configuration from the explicit map, the process environment and the .env file, in
// that order of precedence, and validates the result.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	if err := ctx.Err(); err != nil {
		return Config{}, err
	}
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}
	for _, opt := range opts {
		opt(&options)
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		if options.envMap != nil {
			if value, ok := options.envMap[key]; ok {
				return value, true
			}
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		if value, ok := dotEnvValues[key]; ok {
			return value, true
		}
		return "", false
	}

	cfg := Config{
		Server: ServerConfig{
			Port:            stringWithDefault(lookup, "MENU_SERVER_PORT", defaultPort),
			ReadTimeout:     durationWithDefault(lookup, "MENU_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout:    durationWithDefault(lookup, "MENU_SERVER_WRITE_TIMEOUT", 0),
			IdleTimeout:     durationWithDefault(lookup, "MENU_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
			ShutdownTimeout: durationWithDefault(lookup, "MENU_SERVER_SHUTDOWN_TIMEOUT", defaultShutdownTimeout),
		},
		Backend: BackendConfig{
			Mode:           strings.ToLower(stringWithDefault(lookup, "MENU_BACKEND_MODE", defaultBackendMode)),
			BaseURL:        strings.TrimSpace(stringWithDefault(lookup, "MENU_BACKEND_BASE_URL", "")),
			Timeout:        durationWithDefault(lookup, "MENU_BACKEND_TIMEOUT", defaultBackendTimeout),
			StaticPageSize: intWithDefault(lookup, "MENU_BACKEND_STATIC_PAGE_SIZE", defaultStaticPageSize),
		},
		Browsing: BrowsingConfig{
			DefaultRestaurantID: strings.TrimSpace(stringWithDefault(lookup, "MENU_RESTAURANT_ID", "")),
			FirstCursor:         stringWithDefault(lookup, "MENU_PAGINATION_FIRST_CURSOR", defaultFirstCursor),
			ScrollThreshold:     floatWithDefault(lookup, "MENU_SCROLL_THRESHOLD", defaultScrollThreshold),
			SearchMode:          strings.ToLower(stringWithDefault(lookup, "MENU_SEARCH_MODE", defaultSearchMode)),
		},
		Locale: LocaleConfig{
			Default:       strings.ToLower(stringWithDefault(lookup, "MENU_LOCALE_DEFAULT", defaultLocale)),
			Supported:     csvWithDefault(lookup, "MENU_LOCALE_SUPPORTED", defaultSupportedLocales),
			Dir:           stringWithDefault(lookup, "MENU_LOCALE_DIR", defaultLocaleDir),
			CurrencyLabel: stringWithDefault(lookup, "MENU_CURRENCY_LABEL", defaultCurrencyLabel),
		},
		Sessions: SessionConfig{
			IdleTTL:       durationWithDefault(lookup, "MENU_SESSION_IDLE_TTL", defaultSessionIdleTTL),
			SweepInterval: durationWithDefault(lookup, "MENU_SESSION_SWEEP_INTERVAL", defaultSweepInterval),
			MaxSessions:   intWithDefault(lookup, "MENU_SESSION_MAX", defaultMaxSessions),
		},
		NATS: NATSConfig{
			URL:           strings.TrimSpace(stringWithDefault(lookup, "MENU_NATS_URL", "")),
			SubjectPrefix: stringWithDefault(lookup, "MENU_NATS_SUBJECT_PREFIX", defaultNATSSubjectRoot),
		},
		Log: LogConfig{
			Level: stringWithDefault(lookup, "MENU_LOG_LEVEL", stringWithDefault(lookup, "LOG_LEVEL", defaultLogLevel)),
		},
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validateConfig(cfg Config) error {
	var invalid []string

	if cfg.Server.Port == "" {
		invalid = append(invalid, "Server.Port")
	}
	switch cfg.Backend.Mode {
	case BackendModeHTTP:
		if cfg.Backend.BaseURL == "" {
			invalid = append(invalid, "Backend.BaseURL")
		}
	case BackendModeStatic:
		if cfg.Backend.StaticPageSize <= 0 {
			invalid = append(invalid, "Backend.StaticPageSize")
		}
	default:
		invalid = append(invalid, "Backend.Mode")
	}
	if cfg.Backend.Timeout <= 0 {
		invalid = append(invalid, "Backend.Timeout")
	}
	if strings.TrimSpace(cfg.Browsing.FirstCursor) == "" {
		invalid = append(invalid, "Browsing.FirstCursor")
	}
	if cfg.Browsing.ScrollThreshold <= 0 {
		invalid = append(invalid, "Browsing.ScrollThreshold")
	}
	switch cfg.Browsing.SearchMode {
	case "name_description", "name+description", "name", "name_only":
	default:
		invalid = append(invalid, "Browsing.SearchMode")
	}
	if len(cfg.Locale.Supported) == 0 || !contains(cfg.Locale.Supported, cfg.Locale.Default) {
		invalid = append(invalid, "Locale.Default")
	}
	if cfg.Sessions.IdleTTL <= 0 {
		invalid = append(invalid, "Sessions.IdleTTL")
	}
	if cfg.Sessions.SweepInterval <= 0 {
		invalid = append(invalid, "Sessions.SweepInterval")
	}
	if cfg.Sessions.MaxSessions <= 0 {
		invalid = append(invalid, "Sessions.MaxSessions")
	}
	if cfg.NATS.URL != "" && strings.TrimSpace(cfg.NATS.SubjectPrefix) == "" {
		invalid = append(invalid, "NATS.SubjectPrefix")
	}

	if len(invalid) > 0 {
		return &ValidationError{fields: invalid}
	}
	return nil
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	file, err := os.Open(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", absPath, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	values := make(map[string]string)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		values[key] = strings.Trim(strings.TrimSpace(value), "\"'")
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: failed parsing %s: %w", absPath, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && value != "" {
		return value
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func intWithDefault(lookup func(string) (string, bool), key string, fallback int) int {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func floatWithDefault(lookup func(string) (string, bool), key string, fallback float64) float64 {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func csvWithDefault(lookup func(string) (string, bool), key, fallback string) []string {
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		raw = fallback
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.ToLower(strings.TrimSpace(part))
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
