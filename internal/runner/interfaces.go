package runner

import (
	"context"

	"github.com/cucumber/godog"
	"github.com/tomatool/basil/internal/browser"
)

// Backend provides the browsers a suite run launches. It is started before
// the first scenario and stopped after the browsers are closed.
type Backend interface {
	Start(ctx context.Context) (browser.Launcher, error)
	Stop(ctx context.Context) error
}

// AppProcess is the application under test when the suite starts it itself
type AppProcess interface {
	Start(ctx context.Context) error
	Stop() error
	BaseURL() string
}

// ScenarioContext abstracts godog.ScenarioContext for testing
type ScenarioContext interface {
	Before(h godog.BeforeScenarioHook)
	After(h godog.AfterScenarioHook)
	Step(expr interface{}, stepFunc interface{})
}
