package command

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/tomatool/basil/internal/config"
	"github.com/tomatool/basil/internal/logging"
	"github.com/tomatool/basil/internal/report"
	"github.com/tomatool/basil/internal/runlog"
	"github.com/tomatool/basil/internal/runner"
	"github.com/urfave/cli/v2"
)

var runCommand = &cli.Command{
	Name:  "run",
	Usage: "Run the feature suite in a browser",
	Description: `Run executes the feature files with a fresh browser context per scenario.
Environment variables (ENV, BROWSER, HEADLESS, BASE_URL, ...) select the
target; basil.yml and the flags below select what to run.

Artifacts are written under REPORT_PATH: logs, screenshots, videos and the
cucumber, junit and events reports.`,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "suite file",
			Value:   "basil.yml",
		},
		&cli.StringFlag{
			Name:    "features",
			Aliases: []string{"f"},
			Usage:   "comma separated feature paths",
		},
		&cli.StringFlag{
			Name:    "tags",
			Aliases: []string{"t"},
			Usage:   "tag expression, e.g. \"@smoke && ~@slow\"",
		},
		&cli.StringFlag{
			Name:    "scenario",
			Aliases: []string{"s"},
			Usage:   "only run scenarios whose name matches this regex",
		},
		&cli.IntFlag{
			Name:    "parallel",
			Aliases: []string{"p"},
			Usage:   "number of scenarios run at once (overrides PARALLEL)",
		},
		&cli.StringFlag{
			Name:  "format",
			Usage: "console output format (pretty, progress, events)",
		},
		&cli.BoolFlag{
			Name:  "fail-fast",
			Usage: "stop on the first failure",
		},
		&cli.BoolFlag{
			Name:    "watch",
			Aliases: []string{"w"},
			Usage:   "re-run the suite when feature files change",
		},
	},
	Action: runSuite,
}

// applyRunFlags lets command line flags override the suite file
func applyRunFlags(c *cli.Context, suite *config.Suite) {
	if c.IsSet("features") {
		var paths []string
		for _, p := range strings.Split(c.String("features"), ",") {
			if p = strings.TrimSpace(p); p != "" {
				paths = append(paths, p)
			}
		}
		suite.Features.Paths = paths
	}
	if c.IsSet("tags") {
		suite.Features.Tags = c.String("tags")
	}
	if c.IsSet("scenario") {
		suite.Features.Scenario = c.String("scenario")
	}
	if c.IsSet("parallel") {
		suite.Settings.Parallel = c.Int("parallel")
	}
	if c.IsSet("fail-fast") {
		suite.Settings.FailFast = c.Bool("fail-fast")
	}
}

func runSuite(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	suite, err := config.LoadSuite(c.String("config"))
	if err != nil {
		return err
	}
	applyRunFlags(c, suite)

	run, err := runlog.New(cfg.ReportPath)
	if err != nil {
		return err
	}

	files, err := logging.Setup(logging.Options{
		Level:   cfg.LogLevel,
		Dir:     run.LogDir(),
		NoColor: cfg.CI,
	})
	if err != nil {
		return err
	}
	defer files.Close()

	log.Info().Str("run", run.ID).Str("reports", run.Dir).Msg("basil run")

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	r, err := runner.New(cfg, suite, run, runner.Options{
		Watch:  c.Bool("watch"),
		Format: c.String("format"),
	})
	if err != nil {
		return err
	}

	runErr := r.Run(ctx)

	if summary, err := report.Load(run.CucumberReport()); err == nil {
		renderSummary(c.App.Writer, summary)
	} else if !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("summarizing report")
	}

	if runErr != nil {
		return fmt.Errorf("run %s: %w", run.ID, runErr)
	}
	return nil
}
