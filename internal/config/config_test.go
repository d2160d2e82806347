package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"ENV", "BROWSER", "HEADLESS", "DEV_URL", "QA_URL", "UAT_URL", "PROD_URL", "BASE_URL",
	"DEFAULT_TIMEOUT", "PAGE_LOAD_TIMEOUT", "RETRY_ATTEMPTS", "SCREENSHOT_ON_FAILURE",
	"VIDEO_ON_FAILURE", "PARALLEL", "REPORT_PATH", "LOG_LEVEL", "TAGS", "CI",
	"BROWSER_WS_ENDPOINT", "BROWSER_CONTAINER", "TEST_USERNAME", "TEST_PASSWORD",
}

// clearEnv unsets every variable Config reads for the duration of the test
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestFromEnvDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "qa", cfg.Environment)
	assert.Equal(t, "chromium", cfg.Browser)
	assert.True(t, bool(cfg.Headless))
	assert.Equal(t, 30*time.Second, cfg.DefaultTimeout())
	assert.Equal(t, time.Minute, cfg.PageLoadTimeout())
	assert.Equal(t, 2, cfg.RetryAttempts)
	assert.True(t, bool(cfg.ScreenshotOnFailure))
	assert.True(t, bool(cfg.VideoOnFailure))
	assert.Equal(t, 2, cfg.Parallel)
	assert.Equal(t, "reports", cfg.ReportPath)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.CI)
	assert.Equal(t, Credentials{Username: "testuser", Password: "testpass123"}, cfg.Credentials)
	assert.Equal(t, "https://qa.example.com", cfg.ResolveBaseURL())
}

func TestFromEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENV", "uat")
	t.Setenv("BROWSER", " Firefox ")
	t.Setenv("HEADLESS", "false")
	t.Setenv("UAT_URL", "https://uat.internal")
	t.Setenv("DEFAULT_TIMEOUT", "5000")
	t.Setenv("PARALLEL", "4")
	t.Setenv("SCREENSHOT_ON_FAILURE", "false")
	t.Setenv("TEST_USERNAME", "alice")
	t.Setenv("TEST_PASSWORD", "s3cret")
	t.Setenv("CI", "true")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "firefox", cfg.Browser)
	assert.False(t, bool(cfg.Headless))
	assert.False(t, bool(cfg.ScreenshotOnFailure))
	assert.True(t, bool(cfg.VideoOnFailure))
	assert.Equal(t, 5*time.Second, cfg.DefaultTimeout())
	assert.Equal(t, 4, cfg.Parallel)
	assert.True(t, cfg.CI)
	assert.Equal(t, Credentials{Username: "alice", Password: "s3cret"}, cfg.Credentials)
	assert.Equal(t, "https://uat.internal", cfg.ResolveBaseURL())
}

func TestToggle(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"false", false},
		{"true", true},
		{"FALSE", true},
		{"0", true},
		{"", true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			var toggle Toggle
			require.NoError(t, toggle.Decode(tt.value))
			assert.Equal(t, tt.want, bool(toggle))
		})
	}
}

func TestResolveBaseURL(t *testing.T) {
	cfg := &Config{
		DevURL:  "https://dev",
		QAURL:   "https://qa",
		UATURL:  "https://uat",
		ProdURL: "https://prod",
	}

	tests := []struct {
		env     string
		baseURL string
		want    string
	}{
		{env: "dev", want: "https://dev"},
		{env: "QA", want: "https://qa"},
		{env: "uat", want: "https://uat"},
		{env: "prod", want: "https://prod"},
		{env: "staging", want: "https://qa"},
		{env: "prod", baseURL: "http://localhost:8088", want: "http://localhost:8088"},
	}

	for _, tt := range tests {
		t.Run(tt.env+tt.baseURL, func(t *testing.T) {
			c := *cfg
			c.Environment = tt.env
			c.BaseURL = tt.baseURL
			assert.Equal(t, tt.want, c.ResolveBaseURL())
		})
	}
}

func TestFromEnvInvalid(t *testing.T) {
	tests := []struct {
		name        string
		key, value  string
		errContains string
	}{
		{"non numeric timeout", "DEFAULT_TIMEOUT", "soon", "decoding environment"},
		{"zero timeout", "DEFAULT_TIMEOUT", "0", "DEFAULT_TIMEOUT must be positive"},
		{"zero page load timeout", "PAGE_LOAD_TIMEOUT", "0", "PAGE_LOAD_TIMEOUT must be positive"},
		{"negative retries", "RETRY_ATTEMPTS", "-1", "RETRY_ATTEMPTS must not be negative"},
		{"zero parallel", "PARALLEL", "0", "PARALLEL must be at least 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := FromEnv()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("ENV=dev\nTEST_USERNAME=dotenv-user\n"), 0644))
	t.Chdir(dir)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "dev", cfg.Environment)
	assert.Equal(t, "dotenv-user", cfg.Credentials.Username)
	assert.Equal(t, "https://dev.example.com", cfg.ResolveBaseURL())
}

func TestLoadWithoutDotEnv(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "qa", cfg.Environment)
}

func TestLoadSuite(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		env         map[string]string
		wantErr     bool
		errContains string
		check       func(t *testing.T, s *Suite)
	}{
		{
			name: "full file",
			content: `version: 1
settings:
  output: progress
  fail_fast: true
  strict: false
  parallel: 3
features:
  paths:
    - ./features/login
  tags: "@smoke"
  scenario: "^Valid"
`,
			check: func(t *testing.T, s *Suite) {
				assert.Equal(t, "progress", s.Settings.Output)
				assert.True(t, s.Settings.FailFast)
				assert.False(t, s.Settings.IsStrict())
				assert.Equal(t, 3, s.Settings.Parallel)
				assert.Equal(t, []string{"./features/login"}, s.Features.Paths)
				assert.Equal(t, "@smoke", s.Features.Tags)
				assert.Equal(t, "^Valid", s.Features.Scenario)
			},
		},
		{
			name:    "defaults",
			content: "settings: {}\n",
			check: func(t *testing.T, s *Suite) {
				assert.Equal(t, 1, s.Version)
				assert.Equal(t, "pretty", s.Settings.Output)
				assert.True(t, s.Settings.IsStrict())
				assert.Equal(t, []string{"./features"}, s.Features.Paths)
			},
		},
		{
			name:    "env expansion",
			content: "features:\n  tags: \"${SUITE_TAGS}\"\n",
			env:     map[string]string{"SUITE_TAGS": "@regression"},
			check: func(t *testing.T, s *Suite) {
				assert.Equal(t, "@regression", s.Features.Tags)
			},
		},
		{
			name:        "unsupported version",
			content:     "version: 2\n",
			wantErr:     true,
			errContains: "unsupported suite version: 2",
		},
		{
			name:        "negative parallel",
			content:     "settings:\n  parallel: -1\n",
			wantErr:     true,
			errContains: "parallel must not be negative",
		},
		{
			name: "app",
			content: `app:
  command: ./bin/server --port 8090
  port: 8090
  env:
    MODE: test
  ready:
    path: /healthz
    timeout: 45s
`,
			check: func(t *testing.T, s *Suite) {
				require.True(t, s.App.Enabled())
				assert.Equal(t, "./bin/server --port 8090", s.App.Command)
				assert.Equal(t, "http://localhost:8090", s.App.BaseURL())
				assert.Equal(t, map[string]string{"MODE": "test"}, s.App.Env)
				require.NotNil(t, s.App.Ready)
				assert.Equal(t, "/healthz", s.App.Ready.Path)
				assert.Equal(t, 45*time.Second, s.App.Ready.Timeout)
			},
		},
		{
			name:        "app without port",
			content:     "app:\n  command: ./bin/server\n",
			wantErr:     true,
			errContains: "app.port is required",
		},
		{
			name:        "invalid yaml",
			content:     "features: [\n",
			wantErr:     true,
			errContains: "parsing suite file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			path := filepath.Join(t.TempDir(), "basil.yml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))

			s, err := LoadSuite(path)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
				return
			}
			require.NoError(t, err)
			tt.check(t, s)
		})
	}
}

func TestLoadSuiteMissingFile(t *testing.T) {
	s, err := LoadSuite(filepath.Join(t.TempDir(), "basil.yml"))
	require.NoError(t, err)
	assert.Equal(t, []string{"./features"}, s.Features.Paths)
	assert.Equal(t, "pretty", s.Settings.Output)
}
