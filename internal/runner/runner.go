package runner

import (
	"context"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/cucumber/godog"
	"github.com/rs/zerolog/log"
	"github.com/tomatool/basil/internal/apprunner"
	"github.com/tomatool/basil/internal/browser"
	"github.com/tomatool/basil/internal/config"
	"github.com/tomatool/basil/internal/formatter"
	"github.com/tomatool/basil/internal/hooks"
	"github.com/tomatool/basil/internal/pages"
	"github.com/tomatool/basil/internal/runlog"
	"github.com/tomatool/basil/internal/steps"
)

// Options configures runner behavior
type Options struct {
	Watch  bool
	Format string // Override console output format (e.g., "progress")
	// Output receives console formatter output, os.Stdout when nil
	Output io.Writer
}

// Runner executes the browser suite
type Runner struct {
	config        *config.Config
	suite         *config.Suite
	run           *runlog.Run
	backend       Backend
	opts          Options
	scenarioRegex *regexp.Regexp
	newApp        func(config.App) AppProcess
}

// New creates a new suite runner backed by playwright
func New(cfg *config.Config, suite *config.Suite, run *runlog.Run, opts Options) (*Runner, error) {
	return newRunner(cfg, suite, run, newPlaywrightBackend(cfg, run), opts)
}

// newRunner is the internal constructor that allows dependency injection for testing
func newRunner(cfg *config.Config, suite *config.Suite, run *runlog.Run, backend Backend, opts Options) (*Runner, error) {
	r := &Runner{
		config:  cfg,
		suite:   suite,
		run:     run,
		backend: backend,
		opts:    opts,
	}
	r.newApp = func(cfg config.App) AppProcess {
		app := apprunner.NewRunner(cfg)
		app.SetRunContext(run)
		return app
	}

	// Compile scenario filter regex if provided
	if suite.Features.Scenario != "" {
		log.Debug().Str("pattern", suite.Features.Scenario).Msg("compiling scenario filter regex")
		regex, err := regexp.Compile(suite.Features.Scenario)
		if err != nil {
			return nil, fmt.Errorf("invalid scenario filter regex: %w", err)
		}
		r.scenarioRegex = regex
		log.Info().Str("pattern", suite.Features.Scenario).Msg("scenario filter active")
	}

	return r, nil
}

// Parallel returns the number of scenarios run at once
func (r *Runner) Parallel() int {
	if r.suite.Settings.Parallel > 0 {
		return r.suite.Settings.Parallel
	}
	return r.config.Parallel
}

// Tags returns the tag expression scenarios are filtered with
func (r *Runner) Tags() string {
	if r.suite.Features.Tags != "" {
		return r.suite.Features.Tags
	}
	return r.config.Tags
}

// Format returns the godog format string: the console format followed by
// the report files of the run
func (r *Runner) Format() string {
	console := r.suite.Settings.Output
	if r.opts.Format != "" {
		console = r.opts.Format
	}

	return strings.Join([]string{
		console,
		"cucumber:" + r.run.CucumberReport(),
		"junit:" + r.run.JUnitReport(),
		formatter.Name + ":" + r.run.EventsReport(),
	}, ",")
}

// Run executes the suite once, or keeps re-running it on feature changes
// when watching
func (r *Runner) Run(ctx context.Context) error {
	if r.opts.Watch {
		return r.watch(ctx)
	}
	return r.runOnce(ctx)
}

func (r *Runner) runOnce(ctx context.Context) error {
	// An unknown browser aborts before anything is started
	kind, err := browser.ParseKind(r.config.Browser)
	if err != nil {
		return err
	}

	r.run.Environment = r.config.Environment
	r.run.Browser = string(kind)
	r.run.BaseURL = r.config.ResolveBaseURL()

	if r.suite.App.Enabled() {
		app := r.newApp(r.suite.App)
		if err := app.Start(ctx); err != nil {
			return fmt.Errorf("starting app: %w", err)
		}
		defer func() {
			if err := app.Stop(); err != nil {
				log.Warn().Err(err).Msg("stopping app")
			}
		}()
		// BASE_URL still points the suite elsewhere, e.g. at a proxy
		if r.config.BaseURL == "" {
			r.run.BaseURL = app.BaseURL()
		}
	}

	launcher, err := r.backend.Start(ctx)
	if err != nil {
		return fmt.Errorf("starting browser backend: %w", err)
	}
	defer func() {
		if err := r.backend.Stop(context.Background()); err != nil {
			log.Warn().Err(err).Msg("stopping browser backend")
		}
	}()

	managerOpts := browser.Options{
		Kind:              kind,
		Headless:          bool(r.config.Headless),
		Timeout:           r.config.DefaultTimeout(),
		NavigationTimeout: r.config.PageLoadTimeout(),
	}
	if r.config.VideoOnFailure {
		managerOpts.VideoDir = r.run.VideoDir()
	}
	pool := browser.NewPool(r.Parallel(), launcher, managerOpts)

	orch := hooks.New(pool, r.run, hooks.Options{
		Environment:         r.config.Environment,
		Browser:             string(kind),
		BaseURL:             r.run.BaseURL,
		ScreenshotOnFailure: bool(r.config.ScreenshotOnFailure),
	})

	login := steps.NewLogin(steps.Options{
		BaseURL:     r.run.BaseURL,
		Credentials: r.config.Credentials,
		Pages: pages.Options{
			PageLoadTimeout: r.config.PageLoadTimeout(),
			Run:             r.run,
		},
		RetryAttempts: r.config.RetryAttempts,
	})

	output := r.opts.Output
	if output == nil {
		output = os.Stdout
	}

	opts := &godog.Options{
		Format:         r.Format(),
		Output:         output,
		Paths:          r.suite.Features.Paths,
		Tags:           r.Tags(),
		StopOnFailure:  r.suite.Settings.FailFast,
		Strict:         r.suite.Settings.IsStrict(),
		Concurrency:    r.Parallel(),
		DefaultContext: ctx,
	}

	suite := godog.TestSuite{
		Name:                 "basil",
		TestSuiteInitializer: orch.BindSuite,
		ScenarioInitializer: func(sc *godog.ScenarioContext) {
			r.setupScenarioHooks(sc)
			orch.Bind(sc)
			steps.Register(sc, login.Steps())
		},
		Options: opts,
	}

	log.Info().
		Str("run", r.run.ID).
		Strs("features", opts.Paths).
		Str("tags", opts.Tags).
		Int("parallel", opts.Concurrency).
		Msg("running suite")

	status := suite.Run()

	if err := r.run.WriteMetadata(); err != nil {
		log.Warn().Err(err).Msg("writing run metadata")
	}

	if status != 0 {
		return fmt.Errorf("tests failed with status %d", status)
	}

	return nil
}

// setupScenarioHooks registers the scenario filter. It has to run before the
// browser hooks: a filtered scenario is marked with hooks.Skip so they leave
// it without opening a page.
func (r *Runner) setupScenarioHooks(ctx ScenarioContext) {
	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		// Skip scenarios that don't match the filter regex
		if r.scenarioRegex != nil && !r.scenarioRegex.MatchString(sc.Name) {
			log.Info().Str("scenario", sc.Name).Msg("skipping scenario (doesn't match filter)")
			return hooks.Skip(ctx), godog.ErrSkip
		}
		return ctx, nil
	})
}
