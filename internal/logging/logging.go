package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SetupLogger configures the global logger for the given verbosity.
// Console output goes to stderr; a debug-level copy is appended to the log
// file under the XDG state directory.
func SetupLogger(verbosity int) {
	consoleLevel := zerolog.WarnLevel
	switch verbosity {
	case 0:
	case 1:
		consoleLevel = zerolog.InfoLevel
	case 2:
		consoleLevel = zerolog.DebugLevel
	default:
		consoleLevel = zerolog.TraceLevel
	}
	zerolog.SetGlobalLevel(zerolog.TraceLevel)

	console := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.Kitchen,
		NoColor:    os.Getenv("NO_COLOR") != "",
	}

	writers := []io.Writer{&levelWriter{w: console, min: consoleLevel}}

	logFile := LogFilePath()
	fh, err := openLogFile(logFile)
	if err == nil {
		writers = append(writers, &levelWriter{w: fh, min: zerolog.DebugLevel})
	}

	log.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp().Logger()

	if err != nil {
		log.Warn().Err(err).Str("path", logFile).Msg("Failed to create log file, logging to console only")
	}

	if verbosity >= 2 {
		log.Logger = log.Logger.With().Caller().Logger()
	}

	log.Debug().Int("verbosity", verbosity).Str("logFile", logFile).Msg("Logger initialized")
}

// GetLogger returns a logger tagged with the component name.
func GetLogger(name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}

// LogCommand logs an external command about to be executed.
func LogCommand(cmd string, args []string) {
	log.Debug().
		Str("command", cmd).
		Strs("args", args).
		Msg("Executing command")
}

// LogOperationStart logs the start of an operation and returns a function
// that logs its completion.
func LogOperationStart(logger zerolog.Logger, operation string) func() {
	start := time.Now()
	logger.Debug().Str("operation", operation).Msg("Operation started")
	return func() {
		logger.Debug().
			Str("operation", operation).
			Dur("duration", time.Since(start)).
			Msg("Operation completed")
	}
}

// StateDir is where autozsh keeps its log, audit history and manifest.
func StateDir() string {
	return filepath.Join(xdg.StateHome, "autozsh")
}

// LogFilePath returns the path of the debug log file.
func LogFilePath() string {
	return filepath.Join(StateDir(), "autozsh.log")
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return f, nil
}

// levelWriter drops events below min so the console and the file can run
// at different levels off one logger.
type levelWriter struct {
	w   io.Writer
	min zerolog.Level
}

func (l *levelWriter) Write(p []byte) (int, error) {
	return l.w.Write(p)
}

func (l *levelWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if level < l.min {
		return len(p), nil
	}
	return l.w.Write(p)
}
