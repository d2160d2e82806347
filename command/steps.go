package command

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tomatool/basil/internal/steps"
	"github.com/urfave/cli/v2"
)

var stepsCommand = &cli.Command{
	Name:  "steps",
	Usage: "List available Gherkin steps",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "filter",
			Aliases: []string{"f"},
			Usage:   "Filter steps by keyword",
		},
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output in JSON format",
		},
	},
	Action: runSteps,
}

// stepCatalog returns every step category basil registers
func stepCatalog() []steps.StepCategory {
	providers := []steps.StepProvider{
		steps.NewLogin(steps.Options{}),
	}

	categories := make([]steps.StepCategory, 0, len(providers))
	for _, p := range providers {
		categories = append(categories, p.Steps())
	}
	return categories
}

// filterSteps keeps the steps whose pattern or description contains filter
func filterSteps(categories []steps.StepCategory, filter string) []steps.StepCategory {
	filter = strings.ToLower(filter)
	if filter == "" {
		return categories
	}

	var filtered []steps.StepCategory
	for _, cat := range categories {
		var matching []steps.StepDef
		for _, step := range cat.Steps {
			if strings.Contains(strings.ToLower(step.Description), filter) ||
				strings.Contains(strings.ToLower(step.Pattern), filter) {
				matching = append(matching, step)
			}
		}
		if len(matching) == 0 {
			continue
		}
		filtered = append(filtered, steps.StepCategory{
			Name:        cat.Name,
			Description: cat.Description,
			Steps:       matching,
		})
	}
	return filtered
}

func runSteps(c *cli.Context) error {
	categories := filterSteps(stepCatalog(), c.String("filter"))
	w := c.App.Writer

	if c.Bool("json") {
		output, err := json.MarshalIndent(categories, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Fprintln(w, string(output))
		return nil
	}

	for _, cat := range categories {
		fmt.Fprintln(w, titleStyle.Render(cat.Name))
		fmt.Fprintln(w, helpStyle.Render(cat.Description))
		fmt.Fprintln(w)

		group := ""
		for _, step := range cat.Steps {
			if step.Group != group {
				group = step.Group
				fmt.Fprintln(w, subtitleStyle.Render(group))
			}

			fmt.Fprintf(w, "  %s\n", selectedStyle.Render(step.Description))
			fmt.Fprintf(w, "  %s\n", patternStyle.Render(step.Pattern))

			// Show first line of example
			example := strings.Split(step.Example, "\n")[0]
			fmt.Fprintf(w, "  %s\n\n", helpStyle.Render("Example: "+example))
		}
	}

	return nil
}
