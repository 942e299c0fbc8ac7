package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func setRequiredEnvVars(t *testing.T) {
	t.Helper()
	t.Setenv("UPSTREAM_URL", "http://localhost:3001")
}

func TestLoad_AllRequiredVarsSet_ReturnsConfig(t *testing.T) {
	setRequiredEnvVars(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.UpstreamURL != "http://localhost:3001" {
		t.Errorf("UpstreamURL = %q, want %q", cfg.UpstreamURL, "http://localhost:3001")
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	setRequiredEnvVars(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	// Upstream defaults
	if cfg.UpstreamTimeout != 10*time.Second {
		t.Errorf("UpstreamTimeout = %v, want %v", cfg.UpstreamTimeout, 10*time.Second)
	}

	// Backend defaults
	if cfg.BackendBaseURL != "http://localhost:8080/api/v1" {
		t.Errorf("BackendBaseURL = %q, want %q", cfg.BackendBaseURL, "http://localhost:8080/api/v1")
	}

	// Server defaults
	if cfg.ServerPort != "3000" {
		t.Errorf("ServerPort = %q, want %q", cfg.ServerPort, "3000")
	}

	// Route guard defaults
	if cfg.SignInPath != "/auth" {
		t.Errorf("SignInPath = %q, want %q", cfg.SignInPath, "/auth")
	}
	if cfg.AuthCookieName != "access_token" {
		t.Errorf("AuthCookieName = %q, want %q", cfg.AuthCookieName, "access_token")
	}

	// CORS defaults
	if cfg.CORSAllowedOrigin != "http://localhost:3000" {
		t.Errorf("CORSAllowedOrigin = %q, want %q", cfg.CORSAllowedOrigin, "http://localhost:3000")
	}

	// Rate limit defaults
	if cfg.RateLimitGeneral != 120 {
		t.Errorf("RateLimitGeneral = %d, want %d", cfg.RateLimitGeneral, 120)
	}

	// Asset cache defaults
	if cfg.CacheVersion != 1 {
		t.Errorf("CacheVersion = %d, want %d", cfg.CacheVersion, 1)
	}
	if cfg.CacheMaxEntries != 512 {
		t.Errorf("CacheMaxEntries = %d, want %d", cfg.CacheMaxEntries, 512)
	}
	if cfg.OfflineFallback != "/home" {
		t.Errorf("OfflineFallback = %q, want %q", cfg.OfflineFallback, "/home")
	}
}

func TestLoad_CustomValues(t *testing.T) {
	setRequiredEnvVars(t)

	t.Setenv("UPSTREAM_TIMEOUT", "30s")
	t.Setenv("BACKEND_BASE_URL", "https://api.example.com/v2")
	t.Setenv("SERVER_PORT", "4000")
	t.Setenv("SIGNIN_PATH", "/login")
	t.Setenv("AUTH_COOKIE_NAME", "session_id")
	t.Setenv("CORS_ALLOWED_ORIGIN", "https://game.example.com")
	t.Setenv("RATE_LIMIT_GENERAL", "60")
	t.Setenv("CACHE_VERSION", "3")
	t.Setenv("CACHE_MAX_ENTRIES", "128")
	t.Setenv("OFFLINE_FALLBACK", "/offline")
	t.Setenv("PROBE_EMAIL", "probe@example.com")
	t.Setenv("PROBE_PASSWORD", "Probe#Pass1")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.UpstreamTimeout != 30*time.Second {
		t.Errorf("UpstreamTimeout = %v, want %v", cfg.UpstreamTimeout, 30*time.Second)
	}
	if cfg.BackendBaseURL != "https://api.example.com/v2" {
		t.Errorf("BackendBaseURL = %q, want %q", cfg.BackendBaseURL, "https://api.example.com/v2")
	}
	if cfg.ServerPort != "4000" {
		t.Errorf("ServerPort = %q, want %q", cfg.ServerPort, "4000")
	}
	if cfg.SignInPath != "/login" {
		t.Errorf("SignInPath = %q, want %q", cfg.SignInPath, "/login")
	}
	if cfg.AuthCookieName != "session_id" {
		t.Errorf("AuthCookieName = %q, want %q", cfg.AuthCookieName, "session_id")
	}
	if cfg.CORSAllowedOrigin != "https://game.example.com" {
		t.Errorf("CORSAllowedOrigin = %q, want %q", cfg.CORSAllowedOrigin, "https://game.example.com")
	}
	if cfg.RateLimitGeneral != 60 {
		t.Errorf("RateLimitGeneral = %d, want %d", cfg.RateLimitGeneral, 60)
	}
	if cfg.CacheVersion != 3 {
		t.Errorf("CacheVersion = %d, want %d", cfg.CacheVersion, 3)
	}
	if cfg.CacheMaxEntries != 128 {
		t.Errorf("CacheMaxEntries = %d, want %d", cfg.CacheMaxEntries, 128)
	}
	if cfg.OfflineFallback != "/offline" {
		t.Errorf("OfflineFallback = %q, want %q", cfg.OfflineFallback, "/offline")
	}
	if cfg.ProbeEmail != "probe@example.com" {
		t.Errorf("ProbeEmail = %q, want %q", cfg.ProbeEmail, "probe@example.com")
	}
	if cfg.ProbePassword != "Probe#Pass1" {
		t.Errorf("ProbePassword = %q, want %q", cfg.ProbePassword, "Probe#Pass1")
	}
}

func TestLoad_MissingUpstreamURL_ReturnsError(t *testing.T) {
	t.Setenv("UPSTREAM_URL", "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for missing UPSTREAM_URL, got nil")
	}
}

func TestLoad_InvalidIntFallsBackToDefault(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv("RATE_LIMIT_GENERAL", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.RateLimitGeneral != 120 {
		t.Errorf("RateLimitGeneral = %d, want default %d", cfg.RateLimitGeneral, 120)
	}
}

func TestLoad_YAMLFileProvidesValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
upstream_url: http://upstream.internal:3001
upstream_timeout: 15s
server_port: "5000"
cache_version: 2
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	t.Setenv("EGGSPLORE_CONFIG", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.UpstreamURL != "http://upstream.internal:3001" {
		t.Errorf("UpstreamURL = %q, want %q", cfg.UpstreamURL, "http://upstream.internal:3001")
	}
	if cfg.UpstreamTimeout != 15*time.Second {
		t.Errorf("UpstreamTimeout = %v, want %v", cfg.UpstreamTimeout, 15*time.Second)
	}
	if cfg.ServerPort != "5000" {
		t.Errorf("ServerPort = %q, want %q", cfg.ServerPort, "5000")
	}
	if cfg.CacheVersion != 2 {
		t.Errorf("CacheVersion = %d, want %d", cfg.CacheVersion, 2)
	}
	// ファイルに無い項目は既定値のまま
	if cfg.SignInPath != "/auth" {
		t.Errorf("SignInPath = %q, want default %q", cfg.SignInPath, "/auth")
	}
}

func TestLoad_EnvOverridesYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
upstream_url: http://upstream.internal:3001
server_port: "5000"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	t.Setenv("EGGSPLORE_CONFIG", path)
	t.Setenv("SERVER_PORT", "6000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.ServerPort != "6000" {
		t.Errorf("ServerPort = %q, want env override %q", cfg.ServerPort, "6000")
	}
	if cfg.UpstreamURL != "http://upstream.internal:3001" {
		t.Errorf("UpstreamURL = %q, want file value %q", cfg.UpstreamURL, "http://upstream.internal:3001")
	}
}

func TestLoad_MalformedYAMLFile_ReturnsError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("upstream_url: [broken"), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	t.Setenv("EGGSPLORE_CONFIG", path)

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for malformed config file, got nil")
	}
}
