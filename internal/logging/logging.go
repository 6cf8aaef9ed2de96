// Package logging builds the base structured logger shared by every
// component. It mirrors the teacher's multi-writer (stdout + log file)
// and LOG_LEVEL-from-env posture, but on zerolog rather than logrus —
// zerolog is the logger the teacher's own newer service code
// (cmd/agentd, internal/skills, internal/mcpclient) reaches for.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New builds a base logger writing JSON to stdout, plus logPath when
// non-empty. levelName is parsed case-insensitively and defaults to
// "info" when empty or unrecognised.
func New(levelName, logPath string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	var out io.Writer = os.Stdout
	if logPath != "" {
		if f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
			out = io.MultiWriter(os.Stdout, f)
		}
	}

	level := parseLevel(levelName)
	return zerolog.New(out).Level(level).With().Timestamp().Caller().Logger()
}

func parseLevel(name string) zerolog.Level {
	if name == "" {
		return zerolog.InfoLevel
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(name))
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}
