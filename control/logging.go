// control/logging.go
// Author: momentics <momentics@gmail.com>
//
// zerolog construction shared by every component.

package control

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ParseLevel maps a configured level name onto a zerolog level.
func ParseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "info":
		return zerolog.InfoLevel, true
	case "trace", "diagnostics":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "disable", "off", "none":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}

// NewLogger builds the process logger writing to stdout.
func NewLogger(cfg LogConfig, component string) zerolog.Logger {
	return NewLoggerTo(os.Stdout, cfg, component)
}

// NewLoggerTo builds a logger writing to w: JSON lines when cfg.JSON is
// set, a console writer otherwise.
func NewLoggerTo(w io.Writer, cfg LogConfig, component string) zerolog.Logger {
	lvl, _ := ParseLevel(cfg.Level)
	out := w
	if !cfg.JSON {
		out = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339,
			NoColor:    cfg.NoColor,
		}
	}
	ctx := zerolog.New(out).Level(lvl).With()
	if cfg.Timestamp {
		ctx = ctx.Timestamp()
	}
	if component != "" {
		ctx = ctx.Str("component", component)
	}
	return ctx.Logger()
}
