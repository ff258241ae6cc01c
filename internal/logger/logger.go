// Package logger builds the process zerolog.Logger. Console output goes to
// stderr because stdout is reserved for the stdio MCP stream.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger is a zerolog.Logger that owns its output file.
type Logger struct {
	zerolog.Logger

	closer   io.Closer
	redactor *Redactor
}

// Config holds logger configuration
type Config struct {
	Level     string    // debug, info, warn, error
	File      string    // log file path, empty for none
	Console   bool      // write to Output as well
	Pretty    bool      // human-readable console format
	Redaction bool      // mask API keys and secrets
	MaxSize   int       // MB before rotation, 0 appends to one file forever
	MaxAge    int       // days to keep rotated files
	Compress  bool      // gzip rotated files
	Output    io.Writer // console destination, defaults to os.Stderr
}

// DefaultConfig returns default logger configuration
func DefaultConfig() Config {
	return Config{
		Level:     "info",
		Console:   true,
		Pretty:    true,
		Redaction: true,
		MaxSize:   10,
		MaxAge:    7,
		Compress:  true,
	}
}

// New builds a logger from cfg and installs it as the global log.Logger.
// With neither Console nor File set, output goes to the console anyway.
func New(cfg Config) (*Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	console := cfg.Output
	if console == nil {
		console = os.Stderr
	}

	var (
		sinks  []io.Writer
		closer io.Closer
	)
	if cfg.Console || cfg.File == "" {
		sinks = append(sinks, consoleSink(console, cfg.Pretty))
	}
	if cfg.File != "" {
		file, err := openFile(cfg)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, file)
		closer = file
	}

	out := sinks[0]
	if len(sinks) > 1 {
		out = zerolog.MultiLevelWriter(sinks...)
	}

	var redactor *Redactor
	if cfg.Redaction {
		redactor = NewRedactor()
		out = redactor.Wrap(out)
	}

	zl := zerolog.New(out).Level(level).With().Timestamp().Logger()
	log.Logger = zl

	return &Logger{Logger: zl, closer: closer, redactor: redactor}, nil
}

func consoleSink(w io.Writer, pretty bool) io.Writer {
	if !pretty {
		return w
	}
	return zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: w != os.Stderr}
}

func openFile(cfg Config) (io.WriteCloser, error) {
	if cfg.MaxSize > 0 {
		return NewRotatingWriter(RotationConfig{
			Filename:   cfg.File,
			MaxSizeMB:  cfg.MaxSize,
			MaxAgeDays: cfg.MaxAge,
			Compress:   cfg.Compress,
		})
	}

	if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return f, nil
}

// GetZerolog returns the underlying zerolog.Logger
func (l *Logger) GetZerolog() zerolog.Logger {
	return l.Logger
}

// Close flushes and closes the log file, if any.
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	err := l.closer.Close()
	l.closer = nil
	return err
}
