package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config はアプリケーション全体の設定を保持する。
// 起動時に1回読み込み、イミュータブルとして扱う。
// 読み込み順は 既定値 → YAMLファイル（EGGSPLORE_CONFIG） → 環境変数。
type Config struct {
	// Upstream
	UpstreamURL     string
	UpstreamTimeout time.Duration

	// Backend API
	BackendBaseURL string

	// Server
	ServerPort string

	// Route Guard
	SignInPath     string
	AuthCookieName string

	// CORS
	CORSAllowedOrigin string

	// Rate Limit
	RateLimitGeneral int

	// Asset Cache
	CacheVersion    int
	CacheMaxEntries int
	OfflineFallback string

	// Probe
	ProbeEmail    string
	ProbePassword string
}

// fileConfig はYAML設定ファイルの読み込み用。
// 設定された項目だけがConfigを上書きする。
type fileConfig struct {
	UpstreamURL       *string `yaml:"upstream_url"`
	UpstreamTimeout   *string `yaml:"upstream_timeout"`
	BackendBaseURL    *string `yaml:"backend_base_url"`
	ServerPort        *string `yaml:"server_port"`
	SignInPath        *string `yaml:"signin_path"`
	AuthCookieName    *string `yaml:"auth_cookie_name"`
	CORSAllowedOrigin *string `yaml:"cors_allowed_origin"`
	RateLimitGeneral  *int    `yaml:"rate_limit_general"`
	CacheVersion      *int    `yaml:"cache_version"`
	CacheMaxEntries   *int    `yaml:"cache_max_entries"`
	OfflineFallback   *string `yaml:"offline_fallback"`
	ProbeEmail        *string `yaml:"probe_email"`
	ProbePassword     *string `yaml:"probe_password"`
}

// Load は設定を読み込む。
// 必須項目（UPSTREAM_URL）が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	// 1. 既定値
	cfg := &Config{
		UpstreamTimeout:   10 * time.Second,
		BackendBaseURL:    "http://localhost:8080/api/v1",
		ServerPort:        "3000",
		SignInPath:        "/auth",
		AuthCookieName:    "access_token",
		CORSAllowedOrigin: "http://localhost:3000",
		RateLimitGeneral:  120,
		CacheVersion:      1,
		CacheMaxEntries:   512,
		OfflineFallback:   "/home",
	}

	// 2. YAMLファイル（指定時のみ）
	if path := os.Getenv("EGGSPLORE_CONFIG"); path != "" {
		if err := applyFile(cfg, path); err != nil {
			return nil, err
		}
	}

	// 3. 環境変数による上書き
	cfg.UpstreamURL = getEnvString("UPSTREAM_URL", cfg.UpstreamURL)
	cfg.UpstreamTimeout = getEnvDuration("UPSTREAM_TIMEOUT", cfg.UpstreamTimeout)
	cfg.BackendBaseURL = getEnvString("BACKEND_BASE_URL", cfg.BackendBaseURL)
	cfg.ServerPort = getEnvString("SERVER_PORT", cfg.ServerPort)
	cfg.SignInPath = getEnvString("SIGNIN_PATH", cfg.SignInPath)
	cfg.AuthCookieName = getEnvString("AUTH_COOKIE_NAME", cfg.AuthCookieName)
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", cfg.CORSAllowedOrigin)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", cfg.RateLimitGeneral)
	cfg.CacheVersion = getEnvInt("CACHE_VERSION", cfg.CacheVersion)
	cfg.CacheMaxEntries = getEnvInt("CACHE_MAX_ENTRIES", cfg.CacheMaxEntries)
	cfg.OfflineFallback = getEnvString("OFFLINE_FALLBACK", cfg.OfflineFallback)
	cfg.ProbeEmail = getEnvString("PROBE_EMAIL", cfg.ProbeEmail)
	cfg.ProbePassword = getEnvString("PROBE_PASSWORD", cfg.ProbePassword)

	// 必須項目の検証
	if cfg.UpstreamURL == "" {
		return nil, fmt.Errorf("required environment variables are not set: [UPSTREAM_URL]")
	}

	return cfg, nil
}

// applyFile はYAMLファイルに設定された項目をcfgへ反映する。
func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if fc.UpstreamURL != nil {
		cfg.UpstreamURL = *fc.UpstreamURL
	}
	if fc.UpstreamTimeout != nil {
		d, err := time.ParseDuration(*fc.UpstreamTimeout)
		if err != nil {
			return fmt.Errorf("invalid upstream_timeout in %s: %w", path, err)
		}
		cfg.UpstreamTimeout = d
	}
	if fc.BackendBaseURL != nil {
		cfg.BackendBaseURL = *fc.BackendBaseURL
	}
	if fc.ServerPort != nil {
		cfg.ServerPort = *fc.ServerPort
	}
	if fc.SignInPath != nil {
		cfg.SignInPath = *fc.SignInPath
	}
	if fc.AuthCookieName != nil {
		cfg.AuthCookieName = *fc.AuthCookieName
	}
	if fc.CORSAllowedOrigin != nil {
		cfg.CORSAllowedOrigin = *fc.CORSAllowedOrigin
	}
	if fc.RateLimitGeneral != nil {
		cfg.RateLimitGeneral = *fc.RateLimitGeneral
	}
	if fc.CacheVersion != nil {
		cfg.CacheVersion = *fc.CacheVersion
	}
	if fc.CacheMaxEntries != nil {
		cfg.CacheMaxEntries = *fc.CacheMaxEntries
	}
	if fc.OfflineFallback != nil {
		cfg.OfflineFallback = *fc.OfflineFallback
	}
	if fc.ProbeEmail != nil {
		cfg.ProbeEmail = *fc.ProbeEmail
	}
	if fc.ProbePassword != nil {
		cfg.ProbePassword = *fc.ProbePassword
	}

	return nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
