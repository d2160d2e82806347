package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Suite represents the basil.yml configuration
type Suite struct {
	Version  int           `yaml:"version"`
	Settings SuiteSettings `yaml:"settings"`
	Features Features      `yaml:"features"`
	App      App           `yaml:"app,omitempty"`
}

type SuiteSettings struct {
	Output   string `yaml:"output"`
	FailFast bool   `yaml:"fail_fast"`
	Strict   *bool  `yaml:"strict,omitempty"` // nil = strict
	// Parallel overrides PARALLEL when non-zero
	Parallel int `yaml:"parallel"`
}

type Features struct {
	Paths []string `yaml:"paths"`
	Tags  string   `yaml:"tags"`
	// Scenario filters scenarios by name (regex)
	Scenario string `yaml:"scenario,omitempty"`
}

// App describes an application process started before the suite and
// stopped after it. Nothing is started when Command is empty.
type App struct {
	Command string            `yaml:"command"`
	WorkDir string            `yaml:"workdir,omitempty"`
	Port    int               `yaml:"port"`
	Env     map[string]string `yaml:"env,omitempty"`
	Ready   *Ready            `yaml:"ready,omitempty"`
}

// Ready configures how the app is probed before the suite starts.
// Without it the port is probed over TCP.
type Ready struct {
	Path    string        `yaml:"path"`
	Status  int           `yaml:"status,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// Enabled reports whether an app process is configured
func (a App) Enabled() bool { return a.Command != "" }

// BaseURL is where the started app is reachable
func (a App) BaseURL() string { return fmt.Sprintf("http://localhost:%d", a.Port) }

// IsStrict reports whether undefined and pending steps fail the run
func (s SuiteSettings) IsStrict() bool {
	return s.Strict == nil || *s.Strict
}

// LoadSuite reads and parses a basil.yml file. A missing file yields the defaults.
func LoadSuite(path string) (*Suite, error) {
	var s Suite

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("reading suite file: %w", err)
	default:
		// Expand environment variables
		data = []byte(os.ExpandEnv(string(data)))
		if err := yaml.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("parsing suite file: %w", err)
		}
	}

	s.applyDefaults()

	if err := s.validate(); err != nil {
		return nil, fmt.Errorf("validating suite file: %w", err)
	}

	return &s, nil
}

func (s *Suite) applyDefaults() {
	if s.Version == 0 {
		s.Version = 1
	}
	if s.Settings.Output == "" {
		s.Settings.Output = "pretty"
	}
	if len(s.Features.Paths) == 0 {
		s.Features.Paths = []string{"./features"}
	}
}

func (s *Suite) validate() error {
	if s.Version != 1 {
		return fmt.Errorf("unsupported suite version: %d (expected 1)", s.Version)
	}
	if s.Settings.Parallel < 0 {
		return fmt.Errorf("parallel must not be negative, got %d", s.Settings.Parallel)
	}
	if s.App.Enabled() && s.App.Port <= 0 {
		return fmt.Errorf("app.port is required when app.command is set")
	}
	return nil
}
