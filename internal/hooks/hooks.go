// Package hooks drives the per-scenario browser pipeline: acquire a page when
// a scenario starts, capture evidence when a step or scenario fails and tear
// the context down when it ends.
package hooks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tomatool/basil/internal/browser"
	"github.com/tomatool/basil/internal/logging"
	"github.com/tomatool/basil/internal/runlog"
	"github.com/tomatool/basil/internal/scenario"
)

// Phase is a position in the suite pipeline
type Phase int

const (
	Idle Phase = iota
	SuiteStarted
	ScenarioStarted
	StepRunning
	StepPassed
	StepFailed
	ScenarioEnded
	SuiteEnded
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case SuiteStarted:
		return "suite-started"
	case ScenarioStarted:
		return "scenario-started"
	case StepRunning:
		return "step-running"
	case StepPassed:
		return "step-passed"
	case StepFailed:
		return "step-failed"
	case ScenarioEnded:
		return "scenario-ended"
	case SuiteEnded:
		return "suite-ended"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Options configure the orchestrator
type Options struct {
	Environment         string
	Browser             string
	BaseURL             string
	ScreenshotOnFailure bool
}

// Execution is the pipeline state of one scenario. Each hook takes it and
// advances it; failures are recorded on it rather than thrown.
type Execution struct {
	Scenario string
	Tags     []string
	Phase    Phase
	Started  time.Time

	Manager *browser.Manager
	Page    browser.Page
	Context *scenario.Context

	// Step is the text of the step running or last run
	Step string
	// StepErr is the failure of the last failed step
	StepErr error
	// Err is the failure of the scenario as reported by the runner
	Err error

	Screenshots []string
	Video       string
}

// Failed reports whether a step or the scenario failed
func (e *Execution) Failed() bool {
	return e.Err != nil || e.StepErr != nil
}

// Status returns PASSED or FAILED
func (e *Execution) Status() string {
	if e.Failed() {
		return "FAILED"
	}
	return "PASSED"
}

// Orchestrator owns the browser pool for a suite run
type Orchestrator struct {
	pool *browser.Pool
	run  *runlog.Run
	opts Options

	mu       sync.Mutex
	phase    Phase
	shutdown []func() error
}

// New creates an orchestrator acquiring browsers from pool and writing
// artifacts under run
func New(pool *browser.Pool, run *runlog.Run, opts Options) *Orchestrator {
	return &Orchestrator{pool: pool, run: run, opts: opts}
}

// Phase returns the suite level phase
func (o *Orchestrator) Phase() Phase {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.phase
}

// OnSuiteEnd registers fn to run after the browsers are cleaned up, in
// reverse registration order
func (o *Orchestrator) OnSuiteEnd(fn func() error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.shutdown = append(o.shutdown, fn)
}

// SuiteStart logs the suite banner. No browser is started yet.
func (o *Orchestrator) SuiteStart() {
	o.mu.Lock()
	o.phase = SuiteStarted
	o.mu.Unlock()

	log.Info().Msg("Starting test suite execution")
	log.Info().
		Str("environment", o.opts.Environment).
		Str("browser", o.opts.Browser).
		Str("base_url", o.opts.BaseURL).
		Msg("Test configuration")
}

// ScenarioStart acquires a manager and opens a fresh page for the scenario.
// The returned execution is usable even when err is set, so that
// ScenarioEnd can release what was acquired.
func (o *Orchestrator) ScenarioStart(ctx context.Context, name string, tags []string) (*Execution, error) {
	ex := &Execution{
		Scenario: name,
		Tags:     tags,
		Phase:    ScenarioStarted,
		Started:  time.Now(),
		Context:  scenario.New(name),
	}

	logging.ScenarioStart(name)
	for _, tag := range tags {
		switch tag {
		case "@smoke":
			log.Info().Str("scenario", name).Msg("Running smoke test")
		case "@regression":
			log.Info().Str("scenario", name).Msg("Running regression test")
		}
	}

	m, err := o.pool.Acquire(ctx)
	if err != nil {
		ex.Err = err
		return ex, err
	}
	ex.Manager = m

	page, err := m.CreatePage()
	if err != nil {
		ex.Err = fmt.Errorf("opening page for %q: %w", name, err)
		return ex, ex.Err
	}

	ex.Page = page
	ex.Context.SetPage(page)
	ex.Context.SetBrowserContext(m.Context())
	return ex, nil
}

// StepStart records the step and logs it
func (o *Orchestrator) StepStart(ex *Execution, text string) {
	ex.Step = text
	ex.Phase = StepRunning
	logging.Step("Executing: " + text)
}

// StepEnd records the step outcome. A failed step gets a full-page
// screenshot when enabled; capture problems never replace err.
func (o *Orchestrator) StepEnd(ex *Execution, text string, err error) {
	if err == nil {
		ex.Phase = StepPassed
		log.Info().Str("scenario", ex.Scenario).Msgf("Step passed: %s", text)
		return
	}

	ex.Phase = StepFailed
	ex.StepErr = err
	log.Error().Err(err).Str("scenario", ex.Scenario).Msgf("Step failed: %s", text)

	if o.opts.ScreenshotOnFailure {
		o.capture(ex, "failed-step")
	}
}

// ScenarioEnd captures a failure screenshot first, then always closes the
// context and hands the manager back.
func (o *Orchestrator) ScenarioEnd(ex *Execution, err error) error {
	if ex == nil {
		return nil
	}
	if err != nil && ex.Err == nil {
		ex.Err = err
	}
	ex.Phase = ScenarioEnded

	if ex.Failed() && o.opts.ScreenshotOnFailure {
		o.capture(ex, "failed-scenario")
	}

	var teardownErr error
	if ex.Manager != nil {
		if ex.Page != nil {
			if p, err := ex.Page.VideoPath(); err == nil {
				ex.Video = p
			}
		}

		teardownErr = ex.Manager.CloseContext()
		if teardownErr != nil {
			log.Warn().Err(teardownErr).Str("scenario", ex.Scenario).Msg("closing browser context")
		}

		o.pool.Release(ex.Manager)
		ex.Manager = nil
	}

	o.settleVideo(ex)
	ex.Page = nil
	ex.Context.Reset()

	logging.ScenarioEnd(ex.Scenario, ex.Status())
	log.Info().Str("scenario", ex.Scenario).Dur("duration", time.Since(ex.Started)).Msg("scenario finished")
	return teardownErr
}

// settleVideo keeps the recording of a failed scenario and drops the rest
func (o *Orchestrator) settleVideo(ex *Execution) {
	if ex.Video == "" {
		return
	}
	if ex.Failed() {
		log.Info().Str("scenario", ex.Scenario).Str("path", ex.Video).Msg("video retained")
		return
	}
	if err := os.Remove(ex.Video); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Str("path", ex.Video).Msg("removing video of passed scenario")
	}
	ex.Video = ""
}

func (o *Orchestrator) capture(ex *Execution, kind string) {
	if ex.Page == nil {
		log.Warn().Str("scenario", ex.Scenario).Msg("no page to capture")
		return
	}

	path := o.run.ScreenshotPath(kind, ex.Scenario)
	if err := ex.Page.Screenshot(path, true); err != nil {
		log.Warn().Err(err).Str("scenario", ex.Scenario).Msg("failed to capture screenshot")
		return
	}

	ex.Screenshots = append(ex.Screenshots, path)
	log.Info().Str("scenario", ex.Scenario).Str("path", path).Msg("screenshot captured")
}

// SuiteEnd cleans up every browser and runs the registered shutdown hooks
func (o *Orchestrator) SuiteEnd() error {
	o.mu.Lock()
	shutdown := o.shutdown
	o.shutdown = nil
	o.phase = SuiteEnded
	o.mu.Unlock()

	var errs []error
	if err := o.pool.Cleanup(); err != nil {
		errs = append(errs, err)
	}
	for i := len(shutdown) - 1; i >= 0; i-- {
		if err := shutdown[i](); err != nil {
			errs = append(errs, err)
		}
	}

	err := errors.Join(errs...)
	if err != nil {
		log.Error().Err(err).Msg("Test suite cleanup finished with errors")
	}
	log.Info().Msg("Test suite execution completed")
	return err
}
