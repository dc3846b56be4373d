package logging

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSecretRedaction(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
	}{
		{"secret is redacted", "my-secret-password"},
		{"empty secret is still redacted", ""},
		{"complex secret is redacted", "password123!@#"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, "[REDACTED]", Secret(tt.input).String())
			assert.Equal(t, "[REDACTED]", fmt.Sprintf("%#v", Secret(tt.input)))
		})
	}
}

func TestLoggerWritesLevels(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewWithWriter(&buf, true, true)

	logger.Info("info %d", 1)
	logger.Warn("warn %d", 2)
	logger.Error("error %d", 3)
	logger.Debug("debug %d", 4)

	out := buf.String()
	assert.Contains(t, out, "✓ info 1")
	assert.Contains(t, out, "⚠ warn 2")
	assert.Contains(t, out, "✗ error 3")
	assert.Contains(t, out, "[DEBUG] debug 4")
	assert.NotContains(t, out, "\x1b[", "no-color logger must not emit escapes")
}

func TestLoggerSuppressesDebug(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewWithWriter(&buf, false, true)
	logger.Debug("hidden")

	assert.Empty(t, buf.String())
	assert.False(t, logger.IsDebug())
}

func TestLoggerRedactsSecretArgs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewWithWriter(&buf, false, true)
	logger.Info("token=%s", Secret("sk-live-abcdef"))

	assert.NotContains(t, buf.String(), "sk-live-abcdef")
	assert.Contains(t, buf.String(), "[REDACTED]")
}

func TestRedact(t *testing.T) {
	t.Parallel()

	got := Redact("auth failed for sk-12345 and abc", []string{"sk-12345", "abc", ""})
	assert.Equal(t, "auth failed for [REDACTED] and abc", got)
}
