// Package logging provides a small dependency-injected leveled logger.
//
// Generalizes the teacher's internal/debug env-gated printer (a
// package-level singleton) into a Logger value per Design Notes 9
// ("Singleton log level"): constructed once in cmd/tix from TIX_LOG
// and threaded into core constructors, rather than read from the
// environment by every package that wants to log.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// Level is a log verbosity, ordered error < warn < info < debug < trace.
type Level int

const (
	LevelError Level = iota
	LevelWarn
	LevelInfo
	LevelDebug
	LevelTrace
)

// ParseLevel parses a TIX_LOG value, defaulting to LevelWarn for
// anything unrecognized or empty.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "error":
		return LevelError
	case "info":
		return LevelInfo
	case "debug":
		return LevelDebug
	case "trace":
		return LevelTrace
	case "warn", "":
		return LevelWarn
	default:
		return LevelWarn
	}
}

// Logger writes leveled output to an injected writer, stderr by
// default, never stdout (spec.md 6.4's stdout/stderr separation).
type Logger struct {
	level Level
	out   io.Writer
}

// New constructs a Logger at the given level writing to stderr.
func New(level Level) *Logger {
	return &Logger{level: level, out: os.Stderr}
}

// NewTo constructs a Logger at the given level writing to w, for tests.
func NewTo(level Level, w io.Writer) *Logger {
	return &Logger{level: level, out: w}
}

// FromEnv constructs a Logger from the TIX_LOG environment variable.
func FromEnv() *Logger {
	return New(ParseLevel(os.Getenv("TIX_LOG")))
}

func (l *Logger) log(level Level, prefix, format string, args ...interface{}) {
	if l == nil || l.out == nil || level > l.level {
		return
	}
	fmt.Fprintf(l.out, "%s: %s\n", prefix, fmt.Sprintf(format, args...))
}

func (l *Logger) Errorf(format string, args ...interface{}) { l.log(LevelError, "error", format, args...) }
func (l *Logger) Warnf(format string, args ...interface{})  { l.log(LevelWarn, "warn", format, args...) }
func (l *Logger) Infof(format string, args ...interface{})  { l.log(LevelInfo, "info", format, args...) }
func (l *Logger) Debugf(format string, args ...interface{}) { l.log(LevelDebug, "debug", format, args...) }
func (l *Logger) Tracef(format string, args ...interface{}) { l.log(LevelTrace, "trace", format, args...) }

// Enabled reports whether a level would currently be emitted.
func (l *Logger) Enabled(level Level) bool {
	return l != nil && level <= l.level
}
