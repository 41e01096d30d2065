package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelWarn, ParseLevel(""))
	assert.Equal(t, LevelWarn, ParseLevel("bogus"))
	assert.Equal(t, LevelError, ParseLevel("error"))
	assert.Equal(t, LevelTrace, ParseLevel("TRACE"))
}

func TestLoggerGatesByLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewTo(LevelWarn, &buf)

	l.Debugf("should not appear")
	assert.Empty(t, buf.String())

	l.Warnf("hello %s", "world")
	assert.Contains(t, buf.String(), "warn: hello world")
}

func TestNilLoggerIsSilentAndSafe(t *testing.T) {
	var l *Logger
	assert.NotPanics(t, func() {
		l.Infof("noop")
	})
	assert.False(t, l.Enabled(LevelError))
}
