package logging

import (
	"fmt"
	"io"
)

// Backend names accepted by New.
const (
	BackendSlog    = "slog"
	BackendZap     = "zap"
	BackendZerolog = "zerolog"
)

// Config selects and configures a logging backend.
type Config struct {
	Backend string    `yaml:"backend"`
	Level   string    `yaml:"level"`
	Format  string    `yaml:"format"` // json, text or console
	Output  io.Writer `yaml:"-"`
}

// New builds a Logger for the configured backend. An empty backend selects slog.
func New(cfg Config) (Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	switch cfg.Backend {
	case "", BackendSlog:
		return NewStructuredLogger(&LoggerConfig{Level: level, Format: cfg.Format, Output: cfg.Output}), nil
	case BackendZap:
		return NewZapLogger(level, cfg.Format)
	case BackendZerolog:
		return NewZerologLogger(level, cfg.Format, cfg.Output), nil
	default:
		return nil, fmt.Errorf("unknown log backend %q", cfg.Backend)
	}
}
