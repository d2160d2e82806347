package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds everything the suite reads from the environment.
// It is loaded once per run and treated as read-only afterwards.
type Config struct {
	Environment string `envconfig:"ENV" default:"qa"`
	Browser     string `envconfig:"BROWSER" default:"chromium"`
	Headless    Toggle `envconfig:"HEADLESS" default:"true"`

	DevURL  string `envconfig:"DEV_URL" default:"https://dev.example.com"`
	QAURL   string `envconfig:"QA_URL" default:"https://qa.example.com"`
	UATURL  string `envconfig:"UAT_URL" default:"https://uat.example.com"`
	ProdURL string `envconfig:"PROD_URL" default:"https://example.com"`
	// BaseURL wins over the per-environment URLs when set
	BaseURL string `envconfig:"BASE_URL"`

	DefaultTimeoutMs  int `envconfig:"DEFAULT_TIMEOUT" default:"30000"`
	PageLoadTimeoutMs int `envconfig:"PAGE_LOAD_TIMEOUT" default:"60000"`
	RetryAttempts     int `envconfig:"RETRY_ATTEMPTS" default:"2"`

	ScreenshotOnFailure Toggle `envconfig:"SCREENSHOT_ON_FAILURE" default:"true"`
	VideoOnFailure      Toggle `envconfig:"VIDEO_ON_FAILURE" default:"true"`

	Parallel   int    `envconfig:"PARALLEL" default:"2"`
	ReportPath string `envconfig:"REPORT_PATH" default:"reports"`
	LogLevel   string `envconfig:"LOG_LEVEL" default:"info"`
	Tags       string `envconfig:"TAGS"`
	CI         bool   `envconfig:"CI"`

	// Remote browser settings
	BrowserWSEndpoint string `envconfig:"BROWSER_WS_ENDPOINT"`
	BrowserContainer  bool   `envconfig:"BROWSER_CONTAINER"`

	Credentials Credentials `ignored:"true"`
	Username    string      `envconfig:"TEST_USERNAME" default:"testuser"`
	Password    string      `envconfig:"TEST_PASSWORD" default:"testpass123"`
}

// Credentials are the login used by the configured-credentials step
type Credentials struct {
	Username string
	Password string
}

// Toggle is a boolean that is true unless the variable is exactly "false".
type Toggle bool

// Decode implements envconfig.Decoder
func (t *Toggle) Decode(value string) error {
	*t = value != "false"
	return nil
}

// Load reads the optional .env file and decodes the environment into a Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	return FromEnv()
}

// FromEnv decodes the current process environment without touching .env files.
func FromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("decoding environment: %w", err)
	}

	cfg.Credentials = Credentials{Username: cfg.Username, Password: cfg.Password}
	cfg.Browser = strings.ToLower(strings.TrimSpace(cfg.Browser))

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating environment: %w", err)
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.DefaultTimeoutMs <= 0 {
		return fmt.Errorf("DEFAULT_TIMEOUT must be positive, got %d", c.DefaultTimeoutMs)
	}
	if c.PageLoadTimeoutMs <= 0 {
		return fmt.Errorf("PAGE_LOAD_TIMEOUT must be positive, got %d", c.PageLoadTimeoutMs)
	}
	if c.RetryAttempts < 0 {
		return fmt.Errorf("RETRY_ATTEMPTS must not be negative, got %d", c.RetryAttempts)
	}
	if c.Parallel < 1 {
		return fmt.Errorf("PARALLEL must be at least 1, got %d", c.Parallel)
	}
	return nil
}

// ResolveBaseURL returns the application URL for the configured environment.
// Unknown environments fall back to qa.
func (c *Config) ResolveBaseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}

	urls := map[string]string{
		"dev":  c.DevURL,
		"qa":   c.QAURL,
		"uat":  c.UATURL,
		"prod": c.ProdURL,
	}
	if u, ok := urls[strings.ToLower(c.Environment)]; ok {
		return u
	}
	return c.QAURL
}

func (c *Config) DefaultTimeout() time.Duration {
	return time.Duration(c.DefaultTimeoutMs) * time.Millisecond
}

func (c *Config) PageLoadTimeout() time.Duration {
	return time.Duration(c.PageLoadTimeoutMs) * time.Millisecond
}
