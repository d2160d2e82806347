// Package logging wires zerolog to the console and to size-rotated log files.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	maxFileSizeMB = 5
	maxBackups    = 5
	bannerWidth   = 80
)

// Options configures the global logger
type Options struct {
	Level   string
	Dir     string    // log files are skipped when empty
	Console io.Writer // defaults to os.Stderr
	NoColor bool
}

// Files are the rotating writers behind the global logger
type Files struct {
	all    *lumberjack.Logger
	errors *lumberjack.Logger
}

// Close flushes and closes the log files
func (f *Files) Close() error {
	if f == nil {
		return nil
	}
	var firstErr error
	for _, l := range []*lumberjack.Logger{f.all, f.errors} {
		if l == nil {
			continue
		}
		if err := l.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Setup installs the global zerolog logger: console output plus an all-levels
// file and an error-only file, each rotated at 5MB with 5 backups kept.
func Setup(opts Options) (*Files, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
	if err != nil || opts.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	console := opts.Console
	if console == nil {
		console = os.Stderr
	}
	writers := []io.Writer{zerolog.ConsoleWriter{
		Out:        console,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    opts.NoColor,
	}}

	var files *Files
	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0755); err != nil {
			return nil, fmt.Errorf("creating log directory: %w", err)
		}
		files = &Files{
			all:    newRotating(filepath.Join(opts.Dir, "test-execution.log")),
			errors: newRotating(filepath.Join(opts.Dir, "errors.log")),
		}
		writers = append(writers,
			files.all,
			&zerolog.FilteredLevelWriter{
				Writer: zerolog.LevelWriterAdapter{Writer: files.errors},
				Level:  zerolog.ErrorLevel,
			},
		)
	}

	log.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp().Logger()
	return files, nil
}

func newRotating(path string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxFileSizeMB,
		MaxBackups: maxBackups,
	}
}

// Step logs the execution of a single step
func Step(text string) {
	log.Info().Msgf("STEP: %s", text)
}

// ScenarioStart logs the scenario banner
func ScenarioStart(name string) {
	banner()
	log.Info().Str("scenario", name).Msgf("SCENARIO START: %s", name)
	banner()
}

// ScenarioEnd logs the closing banner with the final status
func ScenarioEnd(name, status string) {
	banner()
	log.Info().Str("scenario", name).Str("status", status).Msgf("SCENARIO END: %s - %s", name, status)
	banner()
}

func banner() {
	log.Info().Msg(strings.Repeat("=", bannerWidth))
}
