package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config keeps runtime settings for the bot, the bundled backend and their collaborators.
type Config struct {
	TelegramToken string `yaml:"telegram_token"`
	DatabaseURL   string `yaml:"database_url"`

	BackendURL string `yaml:"backend_url"`
	APIAddr    string `yaml:"api_addr"`

	AuthAPIKey   string `yaml:"auth_api_key"`
	AuthBaseURL  string `yaml:"auth_base_url"`
	TokenBaseURL string `yaml:"token_base_url"`

	GeminiAPIKey  string `yaml:"gemini_api_key"`
	GeminiModel   string `yaml:"gemini_model"`
	GeminiBaseURL string `yaml:"gemini_base_url"`

	HTTPTimeout             time.Duration `yaml:"http_timeout"`
	CorrectionRetryInterval time.Duration `yaml:"correction_retry_interval"`
	CorrectionMaxAttempts   int           `yaml:"correction_max_attempts"`

	// ReportTime is the HH:MM of the daily board report; "off" disables it.
	ReportTime string `yaml:"report_time"`
	Timezone   string `yaml:"timezone"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		DatabaseURL:             "taskboard.db",
		BackendURL:              "http://localhost:8080",
		APIAddr:                 ":8080",
		AuthBaseURL:             "https://identitytoolkit.googleapis.com/v1",
		TokenBaseURL:            "https://securetoken.googleapis.com/v1",
		GeminiModel:             "gemini-1.5-flash-latest",
		GeminiBaseURL:           "https://generativelanguage.googleapis.com",
		HTTPTimeout:             30 * time.Second,
		CorrectionRetryInterval: time.Minute,
		CorrectionMaxAttempts:   8,
		ReportTime:              "09:00",
		Timezone:                "UTC",
	}
}

// Load reads configuration from CONFIG_FILE (optional YAML) and environment
// variables. Environment values win over the file, the file wins over defaults.
func Load() (Config, error) {
	cfg := Default()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return cfg, err
		}
	}

	applyEnv(&cfg)

	if cfg.HTTPTimeout <= 0 {
		return cfg, fmt.Errorf("HTTP_TIMEOUT must be positive")
	}
	if cfg.CorrectionRetryInterval <= 0 {
		return cfg, fmt.Errorf("CORRECTION_RETRY_INTERVAL must be positive")
	}
	if cfg.CorrectionMaxAttempts <= 0 {
		return cfg, fmt.Errorf("CORRECTION_MAX_ATTEMPTS must be positive")
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return cfg, fmt.Errorf("invalid TIMEZONE %q: %w", cfg.Timezone, err)
	}
	return cfg, nil
}

// Location resolves Timezone, falling back to UTC.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ValidateBot checks the settings the Telegram front-end cannot run without.
func (c Config) ValidateBot() error {
	if c.TelegramToken == "" {
		return fmt.Errorf("TELEGRAM_TOKEN is required")
	}
	if c.BackendURL == "" {
		return fmt.Errorf("BACKEND_API_URL is required")
	}
	if c.AuthAPIKey == "" {
		return fmt.Errorf("AUTH_API_KEY is required")
	}
	return nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %q: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.TelegramToken, "TELEGRAM_TOKEN")
	setString(&cfg.DatabaseURL, "DATABASE_URL")
	setString(&cfg.BackendURL, "BACKEND_API_URL")
	setString(&cfg.APIAddr, "API_ADDR")
	setString(&cfg.AuthAPIKey, "AUTH_API_KEY")
	setString(&cfg.AuthBaseURL, "AUTH_BASE_URL")
	setString(&cfg.TokenBaseURL, "TOKEN_BASE_URL")
	setString(&cfg.GeminiAPIKey, "GEMINI_API_KEY")
	setString(&cfg.GeminiModel, "GEMINI_MODEL")
	setString(&cfg.GeminiBaseURL, "GEMINI_BASE_URL")
	setDuration(&cfg.HTTPTimeout, "HTTP_TIMEOUT")
	setDuration(&cfg.CorrectionRetryInterval, "CORRECTION_RETRY_INTERVAL")
	setString(&cfg.Timezone, "TIMEZONE")
	setString(&cfg.ReportTime, "REPORT_TIME")
	if strings.EqualFold(cfg.ReportTime, "off") {
		cfg.ReportTime = ""
	}

	if raw := strings.TrimSpace(os.Getenv("CORRECTION_MAX_ATTEMPTS")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			cfg.CorrectionMaxAttempts = n
		}
	}
	cfg.BackendURL = strings.TrimRight(cfg.BackendURL, "/")
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

// setDuration accepts Go duration strings ("90s") or a bare number of seconds.
func setDuration(dst *time.Duration, key string) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return
	}
	if d, err := time.ParseDuration(raw); err == nil {
		*dst = d
		return
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		*dst = time.Duration(secs) * time.Second
	}
}
