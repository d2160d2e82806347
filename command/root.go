package command

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/tomatool/basil/internal/version"
	"github.com/urfave/cli/v2"
)

func Run(args []string) error {
	return newApp().Run(args)
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "basil",
		Usage:   "Behavioral UI testing with a real browser",
		Version: version.Version,
		Description: `Basil runs Gherkin scenarios against a web application through
playwright. Every scenario gets a fresh browser context; failures leave
screenshots, videos and cucumber/junit reports behind.

Configuration comes from the environment (or a .env file) and basil.yml.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "env-file",
				Aliases: []string{"e"},
				Usage:   "load environment variables from `FILE`",
			},
		},
		Before: func(c *cli.Context) error {
			if envFile := c.String("env-file"); envFile != "" {
				if err := godotenv.Load(envFile); err != nil {
					return fmt.Errorf("loading env file: %w", err)
				}
			}
			return nil
		},
		Commands: []*cli.Command{
			initCommand,
			runCommand,
			stepsCommand,
			reportCommand,
			installCommand,
			demoCommand,
			versionCommand,
		},
	}
}
