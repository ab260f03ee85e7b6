// SPDX-License-Identifier: MIT

// Package log provides structured logging for the ytgate service.
package log

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config captures options for configuring the global logger.
type Config struct {
	Level   string    // optional log level ("debug", "info", etc.)
	Output  io.Writer // optional writer (defaults to os.Stdout)
	Service string    // optional service name attached to every log entry
	Version string    // optional build version attached to every log entry
}

var (
	mu   sync.RWMutex
	base zerolog.Logger
	done bool
)

// Configure initialises the global zerolog logger. The first call fixes the
// output writer and base fields; later calls may still adjust the level (the
// daemon reconfigures once the config file is loaded).
func Configure(cfg Config) {
	mu.Lock()
	defer mu.Unlock()

	level := zerolog.InfoLevel
	if cfg.Level != "" {
		if parsed, err := zerolog.ParseLevel(normalizeLevel(cfg.Level)); err == nil {
			level = parsed
		}
	} else if env := os.Getenv("APP_LOGGING_LEVEL"); env != "" {
		if parsed, err := zerolog.ParseLevel(normalizeLevel(env)); err == nil {
			level = parsed
		}
	}
	zerolog.SetGlobalLevel(level)

	if done {
		return
	}
	zerolog.TimeFieldFormat = time.RFC3339

	writer := cfg.Output
	if writer == nil {
		writer = os.Stdout
	}

	service := cfg.Service
	if service == "" {
		service = "ytgate"
	}

	ctx := zerolog.New(writer).With().
		Timestamp().
		Str("service", service)
	if cfg.Version != "" {
		ctx = ctx.Str("version", cfg.Version)
	}
	base = ctx.Logger()
	done = true
}

// normalizeLevel maps the config vocabulary (INFO, WARNING, ...) onto
// zerolog level names.
func normalizeLevel(s string) string {
	switch s {
	case "DEBUG", "debug":
		return "debug"
	case "INFO", "info":
		return "info"
	case "WARNING", "warning", "WARN":
		return "warn"
	case "ERROR", "error":
		return "error"
	case "CRITICAL", "critical":
		return "fatal"
	}
	return s
}

func logger() zerolog.Logger {
	mu.RLock()
	ok := done
	mu.RUnlock()
	if !ok {
		Configure(Config{})
	}
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// Base returns the configured base logger instance.
func Base() zerolog.Logger {
	return logger()
}

// WithComponent returns a child logger annotated with the given component name.
func WithComponent(component string) zerolog.Logger {
	return logger().With().Str("component", component).Logger()
}
