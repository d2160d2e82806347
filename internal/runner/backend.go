package runner

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/tomatool/basil/internal/browser"
	"github.com/tomatool/basil/internal/config"
	"github.com/tomatool/basil/internal/container"
	"github.com/tomatool/basil/internal/runlog"
)

// playwrightBackend runs the playwright driver, optionally connected to a
// browser server in a container or at BROWSER_WS_ENDPOINT
type playwrightBackend struct {
	cfg *config.Config
	run *runlog.Run

	driver *browser.Driver
	server *container.Server
}

func newPlaywrightBackend(cfg *config.Config, run *runlog.Run) *playwrightBackend {
	return &playwrightBackend{cfg: cfg, run: run}
}

func (b *playwrightBackend) Start(ctx context.Context) (browser.Launcher, error) {
	endpoint := b.cfg.BrowserWSEndpoint

	if b.cfg.BrowserContainer {
		if err := container.CheckDockerAvailable(); err != nil {
			return nil, err
		}
		server, err := container.Start(ctx, container.Options{Run: b.run})
		if err != nil {
			return nil, fmt.Errorf("starting browser server: %w", err)
		}
		b.server = server
		endpoint = server.Endpoint()
	}

	if endpoint != "" {
		log.Info().Str("endpoint", endpoint).Msg("using remote browser server")
	}

	driver, err := browser.StartDriver(browser.DriverOptions{
		Endpoint: endpoint,
		Verbose:  b.cfg.LogLevel == "debug",
	})
	if err != nil {
		if b.server != nil {
			_ = b.server.Terminate(ctx)
			b.server = nil
		}
		return nil, err
	}
	b.driver = driver

	return driver.Launcher(), nil
}

func (b *playwrightBackend) Stop(ctx context.Context) error {
	var errs []error
	if b.driver != nil {
		errs = append(errs, b.driver.Stop())
		b.driver = nil
	}
	if b.server != nil {
		errs = append(errs, b.server.Terminate(ctx))
		b.server = nil
	}
	return errors.Join(errs...)
}
