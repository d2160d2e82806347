// Package apprunner starts the application under test as a local process and
// waits until it serves requests.
package apprunner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tomatool/basil/internal/config"
	"github.com/tomatool/basil/internal/runlog"
)

const (
	defaultReadyTimeout = 30 * time.Second
	pollInterval        = 250 * time.Millisecond
	stopGrace           = 5 * time.Second
	pipeDelay           = time.Second
	keptLogLines        = 100
)

// ErrNotReady is returned when the app does not come up in time
var ErrNotReady = errors.New("app not ready")

// Runner manages the application under test
type Runner struct {
	config config.App
	host   string

	cmd  *exec.Cmd
	done chan struct{}

	// Log streaming
	logLines []string
	logMu    sync.Mutex
	logFile  *os.File
}

// NewRunner creates a new app runner
func NewRunner(cfg config.App) *Runner {
	return &Runner{
		config: cfg,
		host:   "localhost",
	}
}

// SetRunContext writes the app output to logs/app.log of run
func (r *Runner) SetRunContext(run *runlog.Run) {
	if run == nil {
		return
	}
	f, err := run.CreateLogFile("app")
	if err != nil {
		log.Warn().Err(err).Msg("failed to create app log file")
		return
	}
	r.logFile = f
}

// Start runs the app command and blocks until it is ready
func (r *Runner) Start(ctx context.Context) error {
	parts := strings.Fields(r.config.Command)
	if len(parts) == 0 {
		return fmt.Errorf("app command is required")
	}

	cmd := exec.Command(parts[0], parts[1:]...)
	if r.config.WorkDir != "" {
		cmd.Dir = r.config.WorkDir
	}
	cmd.Env = os.Environ()
	for k, v := range r.config.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, os.ExpandEnv(v)))
	}

	// Pipes are closed pipeDelay after the app exits even if a child still
	// holds them, so Wait never outlives the process.
	stdoutR, stdoutW := io.Pipe()
	stderrR, stderrW := io.Pipe()
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW
	cmd.WaitDelay = pipeDelay
	setProcessGroup(cmd)

	log.Info().Str("command", r.config.Command).Int("port", r.config.Port).Msg("starting app")
	if err := cmd.Start(); err != nil {
		stdoutW.Close()
		stderrW.Close()
		return fmt.Errorf("starting app: %w", err)
	}
	r.cmd = cmd
	r.done = make(chan struct{})

	var streams sync.WaitGroup
	streams.Add(2)
	go r.streamLogs(&streams, stdoutR, "stdout")
	go r.streamLogs(&streams, stderrR, "stderr")
	go func() {
		err := cmd.Wait()
		stdoutW.Close()
		stderrW.Close()
		streams.Wait()
		log.Debug().Err(err).Msg("app process exited")
		close(r.done)
	}()

	startTime := time.Now()
	if err := r.waitForReady(ctx); err != nil {
		r.Stop()
		if lines := r.RecentLogs(5); len(lines) > 0 {
			return fmt.Errorf("%w: %v (last output: %s)", ErrNotReady, err, strings.Join(lines, " | "))
		}
		return fmt.Errorf("%w: %v", ErrNotReady, err)
	}

	log.Info().
		Str("url", r.BaseURL()).
		Dur("duration", time.Since(startTime)).
		Msg("app ready")
	return nil
}

func (r *Runner) streamLogs(wg *sync.WaitGroup, pipe io.Reader, source string) {
	defer wg.Done()
	// Keep the writer unblocked if scanning stops on an oversized line
	defer io.Copy(io.Discard, pipe)

	scanner := bufio.NewScanner(pipe)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		r.logMu.Lock()
		r.logLines = append(r.logLines, line)
		if len(r.logLines) > keptLogLines {
			r.logLines = r.logLines[1:]
		}
		if r.logFile != nil {
			fmt.Fprintf(r.logFile, "[%s] %s\n", source, line)
		}
		r.logMu.Unlock()

		log.Debug().Str("source", source).Msg(line)
	}
}

// waitForReady polls the app until it answers or the ready timeout passes
func (r *Runner) waitForReady(ctx context.Context) error {
	timeout := defaultReadyTimeout
	if r.config.Ready != nil && r.config.Ready.Timeout > 0 {
		timeout = r.config.Ready.Timeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		err := r.VerifyHealthy(ctx)
		if err == nil {
			return nil
		}

		select {
		case <-r.done:
			return fmt.Errorf("app exited before becoming ready")
		case <-ctx.Done():
			return fmt.Errorf("timeout after %s: %w", timeout, err)
		case <-ticker.C:
		}
	}
}

// VerifyHealthy performs a single readiness probe: an HTTP GET when a ready
// path is configured, a TCP dial otherwise
func (r *Runner) VerifyHealthy(ctx context.Context) error {
	if r.config.Ready != nil && r.config.Ready.Path != "" {
		expected := r.config.Ready.Status
		if expected == 0 {
			expected = http.StatusOK
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.BaseURL()+r.config.Ready.Path, nil)
		if err != nil {
			return err
		}
		client := &http.Client{Timeout: 2 * time.Second}
		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("health check failed: %w", err)
		}
		resp.Body.Close()

		if resp.StatusCode != expected {
			return fmt.Errorf("health check returned status %d, expected %d", resp.StatusCode, expected)
		}
		return nil
	}

	addr := net.JoinHostPort(r.host, fmt.Sprint(r.config.Port))
	d := net.Dialer{Timeout: 2 * time.Second}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("app not responding on %s: %w", addr, err)
	}
	conn.Close()
	return nil
}

// Stop terminates the app, first with SIGTERM and after a grace period with SIGKILL
func (r *Runner) Stop() error {
	defer func() {
		r.logMu.Lock()
		if r.logFile != nil {
			r.logFile.Close()
			r.logFile = nil
		}
		r.logMu.Unlock()
	}()

	if r.cmd == nil || r.cmd.Process == nil {
		return nil
	}
	cmd := r.cmd
	r.cmd = nil

	log.Debug().Int("pid", cmd.Process.Pid).Msg("stopping app process")

	select {
	case <-r.done:
		// Leftover children of an exited wrapper
		signalGroup(cmd, syscall.SIGKILL)
		return nil
	default:
	}

	if err := signalGroup(cmd, syscall.SIGTERM); err != nil {
		log.Debug().Err(err).Msg("failed to send SIGTERM, trying SIGKILL")
		if err := signalGroup(cmd, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
			return fmt.Errorf("killing app process: %w", err)
		}
	}

	select {
	case <-r.done:
		signalGroup(cmd, syscall.SIGKILL)
	case <-time.After(stopGrace):
		log.Warn().Int("pid", cmd.Process.Pid).Dur("grace", stopGrace).Msg("app ignored SIGTERM, killing")
		signalGroup(cmd, syscall.SIGKILL)
		<-r.done
	}
	return nil
}

// BaseURL returns the URL the suite should browse to
func (r *Runner) BaseURL() string {
	return fmt.Sprintf("http://%s:%d", r.host, r.config.Port)
}

// RecentLogs returns up to the n most recent output lines
func (r *Runner) RecentLogs(n int) []string {
	r.logMu.Lock()
	defer r.logMu.Unlock()

	if n <= 0 || len(r.logLines) == 0 {
		return nil
	}

	start := len(r.logLines) - n
	if start < 0 {
		start = 0
	}

	result := make([]string, len(r.logLines)-start)
	copy(result, r.logLines[start:])
	return result
}
