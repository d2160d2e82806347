package command

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/tomatool/basil/internal/config"
	"github.com/tomatool/basil/internal/report"
	"github.com/urfave/cli/v2"
)

var reportCommand = &cli.Command{
	Name:  "report",
	Usage: "Summarize the cucumber JSON report of the last run",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "path",
			Usage: "cucumber JSON report (defaults to the one under REPORT_PATH)",
		},
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output in JSON format",
		},
	},
	Action: runReport,
}

func runReport(c *cli.Context) error {
	path := c.String("path")
	if path == "" {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		path = filepath.Join(cfg.ReportPath, "cucumber-report", "cucumber-report.json")
	}

	summary, err := report.Load(path)
	if err != nil {
		return err
	}

	if c.Bool("json") {
		output, err := json.MarshalIndent(summary, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Fprintln(c.App.Writer, string(output))
	} else {
		renderSummary(c.App.Writer, summary)
	}

	if !summary.OK() {
		return fmt.Errorf("%d of %d scenarios failed", summary.Failed, len(summary.Scenarios))
	}
	return nil
}

func renderSummary(w io.Writer, s *report.Summary) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, titleStyle.Render("Summary"))

	for _, sc := range s.Failures() {
		fmt.Fprintf(w, "%s %s\n", errorStyle.Render("✗"), sc.Feature+": "+sc.Name)
		if sc.Step != "" {
			fmt.Fprintf(w, "    %s\n", helpStyle.Render(sc.Step))
		}
		if sc.Error != "" {
			fmt.Fprintf(w, "    %s\n", errorStyle.Render(sc.Error))
		}
	}

	counts := fmt.Sprintf("%d scenarios (%d passed, %d failed, %d skipped), %d steps in %s",
		len(s.Scenarios), s.Passed, s.Failed, s.Skipped, s.Steps, s.Duration.Round(time.Millisecond))

	switch {
	case s.Failed > 0:
		fmt.Fprintln(w, errorStyle.Render(counts))
	case s.Skipped > 0:
		fmt.Fprintln(w, warnStyle.Render(counts))
	default:
		fmt.Fprintln(w, successStyle.Render(counts))
	}
}
