// Package container runs a playwright browser server in Docker so suites can
// execute without locally installed browsers.
package container

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"sync"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/rs/zerolog/log"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/tomatool/basil/internal/runlog"
)

const (
	// PlaywrightVersion must match the playwright-go driver version
	PlaywrightVersion = "1.52.0"
	serverPort        = "3000/tcp"
)

// ErrDockerNotRunning is returned when Docker daemon is not available
var ErrDockerNotRunning = fmt.Errorf("docker is not running")

// CheckDockerAvailable verifies that Docker daemon is running and accessible
func CheckDockerAvailable() error {
	cmd := exec.Command("docker", "info")
	if err := cmd.Run(); err != nil {
		return &DockerNotRunningError{}
	}
	return nil
}

// DockerNotRunningError provides helpful instructions for starting Docker
type DockerNotRunningError struct{}

func (e *DockerNotRunningError) Error() string {
	switch runtime.GOOS {
	case "darwin":
		return `Docker is not running. To fix this:

  1. Open Docker Desktop application
  2. Wait for Docker to start
  3. Run basil again, or unset BROWSER_CONTAINER to use local browsers`

	case "linux":
		return `Docker is not running. To fix this:

  1. Start Docker daemon:
       sudo systemctl start docker

  2. Make sure your user is in the docker group:
       sudo usermod -aG docker $USER

  3. Run basil again, or unset BROWSER_CONTAINER to use local browsers`

	default:
		return `Docker is not running. Please start Docker or unset BROWSER_CONTAINER.`
	}
}

func (e *DockerNotRunningError) Is(target error) bool {
	return target == ErrDockerNotRunning
}

// Options configure the browser server container
type Options struct {
	// Image defaults to the official playwright image for PlaywrightVersion
	Image          string
	StartupTimeout time.Duration
	// Run receives the container output in logs/browser-server.log when set
	Run *runlog.Run
}

func (o *Options) applyDefaults() {
	if o.Image == "" {
		o.Image = fmt.Sprintf("mcr.microsoft.com/playwright:v%s-noble", PlaywrightVersion)
	}
	if o.StartupTimeout == 0 {
		o.StartupTimeout = 2 * time.Minute
	}
}

// Server is a running playwright server container
type Server struct {
	container testcontainers.Container
	endpoint  string

	mu      sync.Mutex
	logFile *os.File
}

// Start launches the server and waits until it accepts connections
func Start(ctx context.Context, opts Options) (*Server, error) {
	opts.applyDefaults()

	log.Info().Str("image", opts.Image).Msg("starting browser server container")
	startTime := time.Now()

	req := testcontainers.ContainerRequest{
		Image:        opts.Image,
		ExposedPorts: []string{serverPort},
		Cmd: []string{
			"npx", "-y", "playwright@" + PlaywrightVersion,
			"run-server", "--port", nat.Port(serverPort).Port(), "--host", "0.0.0.0",
		},
		WaitingFor: buildWaitStrategy(opts.StartupTimeout),
	}

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("creating container: %w", err)
	}

	s := &Server{container: c}
	s.endpoint, err = endpoint(ctx, c)
	if err != nil {
		_ = c.Terminate(ctx)
		return nil, fmt.Errorf("resolving browser server endpoint: %w", err)
	}

	log.Info().
		Str("endpoint", s.endpoint).
		Dur("duration", time.Since(startTime)).
		Msg("browser server ready")

	if opts.Run != nil {
		s.captureLogs(ctx, opts.Run)
	}

	return s, nil
}

func buildWaitStrategy(timeout time.Duration) wait.Strategy {
	return wait.ForAll(
		wait.ForListeningPort(nat.Port(serverPort)).WithStartupTimeout(timeout),
		wait.ForLog("Listening on").WithStartupTimeout(timeout),
	)
}

// endpoint builds the websocket URL playwright's BrowserType.Connect expects
func endpoint(ctx context.Context, c testcontainers.Container) (string, error) {
	host, err := c.Host(ctx)
	if err != nil {
		return "", err
	}
	port, err := c.MappedPort(ctx, nat.Port(serverPort))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("ws://%s:%s/", host, port.Port()), nil
}

// Endpoint returns the websocket URL of the server
func (s *Server) Endpoint() string { return s.endpoint }

// captureLogs streams container logs to a file
func (s *Server) captureLogs(ctx context.Context, run *runlog.Run) {
	logFile, err := run.CreateLogFile("browser-server")
	if err != nil {
		log.Warn().Err(err).Msg("failed to create browser server log file")
		return
	}

	logs, err := s.container.Logs(ctx)
	if err != nil {
		logFile.Close()
		log.Warn().Err(err).Msg("failed to get browser server logs")
		return
	}

	s.mu.Lock()
	s.logFile = logFile
	s.mu.Unlock()

	go func() {
		defer logs.Close()
		io.Copy(logFile, logs)
	}()
}

// Terminate stops the container and closes its log file
func (s *Server) Terminate(ctx context.Context) error {
	if s == nil || s.container == nil {
		return nil
	}

	s.mu.Lock()
	if s.logFile != nil {
		s.logFile.Close()
		s.logFile = nil
	}
	s.mu.Unlock()

	log.Debug().Str("endpoint", s.endpoint).Msg("stopping browser server container")
	err := s.container.Terminate(ctx)
	s.container = nil
	if err != nil {
		return fmt.Errorf("terminating browser server: %w", err)
	}
	return nil
}
