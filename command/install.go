package command

import (
	"fmt"

	"github.com/tomatool/basil/internal/browser"
	"github.com/tomatool/basil/internal/config"
	"github.com/urfave/cli/v2"
)

var installCommand = &cli.Command{
	Name:  "install",
	Usage: "Download the playwright driver and browser",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "browser",
			Aliases: []string{"b"},
			Usage:   "browser to install (chromium, firefox, webkit); defaults to BROWSER",
		},
		&cli.BoolFlag{
			Name:  "verbose",
			Usage: "show installer output",
		},
	},
	Action: func(c *cli.Context) error {
		name := c.String("browser")
		if name == "" {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			name = cfg.Browser
		}

		kind, err := browser.ParseKind(name)
		if err != nil {
			return err
		}

		fmt.Fprintf(c.App.Writer, "Installing playwright with %s...\n", kind)
		if err := browser.Install(kind, c.Bool("verbose")); err != nil {
			return err
		}
		fmt.Fprintln(c.App.Writer, successStyle.Render("✓ "+string(kind)+" installed"))
		return nil
	},
}
