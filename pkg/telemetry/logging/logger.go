package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Format is the output encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// Config configures the process logger.
type Config struct {
	// Level is debug, info, warn or error. Empty means info.
	Level string `yaml:"level"`

	// Format is json or text. Empty means json.
	Format string `yaml:"format"`

	// AddSource includes file:line in records.
	AddSource bool `yaml:"add_source"`

	// Redact scrubs secrets and e-mail addresses from string attributes.
	Redact bool `yaml:"redact"`

	// Writer defaults to os.Stderr.
	Writer io.Writer `yaml:"-"`
}

// New builds a logger from cfg.
func New(cfg Config) (*slog.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	format, err := ParseFormat(cfg.Format)
	if err != nil {
		return nil, err
	}
	w := cfg.Writer
	if w == nil {
		w = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: level, AddSource: cfg.AddSource}
	if cfg.Redact {
		r := NewRedactor()
		opts.ReplaceAttr = func(_ []string, a slog.Attr) slog.Attr {
			return r.Attr(a)
		}
	}

	var h slog.Handler
	switch format {
	case FormatText:
		h = slog.NewTextHandler(w, opts)
	default:
		h = slog.NewJSONHandler(w, opts)
	}
	return slog.New(&contextHandler{Handler: h}), nil
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// ParseLevel parses a level name, case-insensitively.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level: %s", s)
}

// ParseFormat parses a format name, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "json", "":
		return FormatJSON, nil
	case "text", "console":
		return FormatText, nil
	}
	return FormatJSON, fmt.Errorf("unknown log format: %s", s)
}
