package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadWithDefaults(t *testing.T) {
	env := map[string]string{
		"MENU_BACKEND_BASE_URL": "https://menu.example.com/api",
	}

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("unexpected read timeout: %s", cfg.Server.ReadTimeout)
	}
	if cfg.Server.WriteTimeout != 0 {
		t.Errorf("expected streaming-friendly zero write timeout, got %s", cfg.Server.WriteTimeout)
	}
	if cfg.Backend.Mode != BackendModeHTTP {
		t.Errorf("expected http backend mode, got %s", cfg.Backend.Mode)
	}
	if cfg.Backend.Timeout != defaultBackendTimeout {
		t.Errorf("unexpected backend timeout: %s", cfg.Backend.Timeout)
	}
	if cfg.Browsing.FirstCursor != "1" {
		t.Errorf("expected first cursor 1, got %q", cfg.Browsing.FirstCursor)
	}
	if cfg.Browsing.ScrollThreshold != 20 {
		t.Errorf("expected scroll threshold 20, got %v", cfg.Browsing.ScrollThreshold)
	}
	if cfg.Browsing.SearchMode != "name_description" {
		t.Errorf("unexpected search mode %q", cfg.Browsing.SearchMode)
	}
	if cfg.Locale.Default != "en" || len(cfg.Locale.Supported) != 2 {
		t.Errorf("unexpected locale config: %+v", cfg.Locale)
	}
	if cfg.Locale.CurrencyLabel != "IQD" {
		t.Errorf("expected IQD currency label, got %s", cfg.Locale.CurrencyLabel)
	}
	if cfg.Sessions.IdleTTL != 30*time.Minute {
		t.Errorf("unexpected idle ttl: %s", cfg.Sessions.IdleTTL)
	}
	if cfg.NATS.URL != "" || cfg.NATS.SubjectPrefix != "menu.sessions" {
		t.Errorf("unexpected nats config: %+v", cfg.NATS)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("expected info log level, got %s", cfg.Log.Level)
	}
}

func TestLoadWithOverrides(t *testing.T) {
	env := map[string]string{
		"MENU_SERVER_PORT":            "9090",
		"MENU_SERVER_IDLE_TIMEOUT":    "2m",
		"MENU_BACKEND_MODE":           "STATIC",
		"MENU_RESTAURANT_ID":          " demo ",
		"MENU_SCROLL_THRESHOLD":       "48.5",
		"MENU_SEARCH_MODE":            "name",
		"MENU_LOCALE_DEFAULT":         "ar",
		"MENU_LOCALE_SUPPORTED":       "ar, EN ,",
		"MENU_SESSION_IDLE_TTL":       "5m",
		"MENU_SESSION_SWEEP_INTERVAL": "not-a-duration",
		"MENU_NATS_URL":               "nats://127.0.0.1:4222",
		"LOG_LEVEL":                   "debug",
	}

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("expected port override, got %s", cfg.Server.Port)
	}
	if cfg.Server.IdleTimeout != 2*time.Minute {
		t.Errorf("unexpected idle timeout: %s", cfg.Server.IdleTimeout)
	}
	if cfg.Backend.Mode != BackendModeStatic || cfg.Backend.BaseURL != "" {
		t.Errorf("unexpected backend config: %+v", cfg.Backend)
	}
	if cfg.Browsing.DefaultRestaurantID != "demo" {
		t.Errorf("expected trimmed restaurant id, got %q", cfg.Browsing.DefaultRestaurantID)
	}
	if cfg.Browsing.ScrollThreshold != 48.5 {
		t.Errorf("unexpected threshold %v", cfg.Browsing.ScrollThreshold)
	}
	if cfg.Browsing.SearchMode != "name" {
		t.Errorf("unexpected search mode %q", cfg.Browsing.SearchMode)
	}
	if got := cfg.Locale.Supported; len(got) != 2 || got[0] != "ar" || got[1] != "en" {
		t.Errorf("unexpected supported locales %v", got)
	}
	if cfg.Sessions.SweepInterval != defaultSweepInterval {
		t.Errorf("expected invalid duration to fall back, got %s", cfg.Sessions.SweepInterval)
	}
	if cfg.NATS.URL != "nats://127.0.0.1:4222" {
		t.Errorf("unexpected nats url %q", cfg.NATS.URL)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("expected LOG_LEVEL fallback, got %s", cfg.Log.Level)
	}
}

func TestLoadValidationErrors(t *testing.T) {
	env := map[string]string{
		"MENU_BACKEND_MODE":     "grpc",
		"MENU_SEARCH_MODE":      "fuzzy",
		"MENU_LOCALE_DEFAULT":   "fr",
		"MENU_SCROLL_THRESHOLD": "-1",
	}

	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err == nil {
		t.Fatal("expected validation error")
	}
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	want := map[string]bool{
		"Backend.Mode":             true,
		"Browsing.SearchMode":      true,
		"Locale.Default":           true,
		"Browsing.ScrollThreshold": true,
	}
	fields := vErr.Fields()
	if len(fields) != len(want) {
		t.Fatalf("unexpected fields %v", fields)
	}
	for _, f := range fields {
		if !want[f] {
			t.Errorf("unexpected invalid field %s", f)
		}
	}
}

func TestLoadRequiresBaseURLInHTTPMode(t *testing.T) {
	_, err := Load(context.Background(), WithEnvMap(map[string]string{}), WithoutSystemEnv(), WithEnvFile(""))
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if fields := vErr.Fields(); len(fields) != 1 || fields[0] != "Backend.BaseURL" {
		t.Fatalf("unexpected fields %v", fields)
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "# local overrides\nexport MENU_BACKEND_BASE_URL=\"https://dotenv.example.com\"\nMENU_SERVER_PORT=7070\nMALFORMED\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	env := map[string]string{"MENU_SERVER_PORT": "6060"}
	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(path))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Backend.BaseURL != "https://dotenv.example.com" {
		t.Errorf("expected base url from .env, got %q", cfg.Backend.BaseURL)
	}
	if cfg.Server.Port != "6060" {
		t.Errorf("expected env map to win over .env, got %s", cfg.Server.Port)
	}
}

func TestLoadHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Load(ctx, WithoutSystemEnv(), WithEnvFile("")); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
