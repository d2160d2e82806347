package command

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tomatool/basil/internal/config"
	"github.com/tomatool/basil/internal/demoapp"
	"github.com/tomatool/basil/internal/logging"
	"github.com/urfave/cli/v2"
)

var demoCommand = &cli.Command{
	Name:  "demo",
	Usage: "Serve the demo login application",
	Description: `Serve a small login application to try basil against:

  basil demo --addr :8088 &
  BASE_URL=http://localhost:8088 basil run

It accepts TEST_USERNAME / TEST_PASSWORD as the only valid login.`,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "addr",
			Usage: "listen address",
			Value: ":8088",
		},
	},
	Action: runDemo,
}

func runDemo(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if _, err := logging.Setup(logging.Options{Level: cfg.LogLevel, NoColor: cfg.CI}); err != nil {
		return err
	}

	app := demoapp.New(map[string]string{cfg.Credentials.Username: cfg.Credentials.Password})
	srv := &http.Server{
		Addr:              c.String("addr"),
		Handler:           app.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	fmt.Fprintf(c.App.Writer, "%s Demo app listening on %s\n", successStyle.Render("✓"), srv.Addr)
	fmt.Fprintf(c.App.Writer, "%s Press Ctrl+C to stop\n", helpStyle.Render("•"))

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving demo app: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	log.Info().Msg("shutting down demo app")
	return srv.Shutdown(shutdownCtx)
}
