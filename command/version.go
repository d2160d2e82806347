package command

import (
	"encoding/json"
	"fmt"

	"github.com/tomatool/basil/internal/version"
	"github.com/urfave/cli/v2"
)

var versionCommand = &cli.Command{
	Name:  "version",
	Usage: "Print version information",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output in JSON format",
		},
	},
	Action: func(c *cli.Context) error {
		info := version.Info()
		if c.Bool("json") {
			output, err := json.MarshalIndent(info, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal JSON: %w", err)
			}
			fmt.Fprintln(c.App.Writer, string(output))
			return nil
		}

		w := c.App.Writer
		fmt.Fprintf(w, "basil version %s\n", info["version"])
		fmt.Fprintf(w, "  Commit:     %s\n", info["commit"])
		fmt.Fprintf(w, "  Built:      %s\n", info["built"])
		fmt.Fprintf(w, "  Go version: %s\n", info["go"])
		fmt.Fprintf(w, "  OS/Arch:    %s\n", info["os/arch"])
		return nil
	},
}
