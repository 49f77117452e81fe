package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNew(t *testing.T) {
	log := New()
	if log.GetLevel() == zerolog.Disabled {
		t.Error("Expected logger to be enabled")
	}
}

func TestNewWithOptions_JSON(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewWithOptions(Options{Level: "warn", Format: "json", Output: buf})

	log.Info().Msg("dropped")
	log.Warn().Str("resource_id", "acct-1").Msg("kept")

	output := buf.String()
	if strings.Contains(output, "dropped") {
		t.Errorf("info message should be filtered at warn level, got: %s", output)
	}
	if !strings.Contains(output, `"resource_id":"acct-1"`) {
		t.Errorf("Expected JSON field in output, got: %s", output)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"", zerolog.InfoLevel},
		{"debug", zerolog.DebugLevel},
		{" ERROR ", zerolog.ErrorLevel},
		{"chatty", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNewWithWriter(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewWithWriter(buf)

	log.Info().Msg("test message")

	if !strings.Contains(buf.String(), "test message") {
		t.Errorf("Expected output to contain 'test message', got: %s", buf.String())
	}
}

func TestFromContext(t *testing.T) {
	buf := &bytes.Buffer{}
	testLog := NewWithWriter(buf)
	ctx := WithContext(context.Background(), testLog)

	retrievedLog := FromContext(ctx)
	retrievedLog.Info().Msg("test")

	if buf.Len() == 0 {
		t.Error("Expected log output from retrieved logger")
	}
}

func TestFromContext_DefaultLogger(t *testing.T) {
	log := FromContext(context.Background())

	if log.GetLevel() == zerolog.Disabled {
		t.Error("Expected default logger to be enabled")
	}
}

func TestWithFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewWithWriter(buf)

	logWithFields := WithFields(log, map[string]interface{}{
		"operation_id": "op-123",
		"kind":         "delete",
	})
	logWithFields.Info().Msg("test message")

	output := buf.String()
	if !strings.Contains(output, "operation_id") || !strings.Contains(output, "op-123") {
		t.Errorf("Expected output to contain operation_id field, got: %s", output)
	}
	if !strings.Contains(output, "kind") || !strings.Contains(output, "delete") {
		t.Errorf("Expected output to contain kind field, got: %s", output)
	}
}

func TestFromContextOr(t *testing.T) {
	buf := &bytes.Buffer{}
	fallback := NewWithWriter(buf)

	log := FromContextOr(context.Background(), fallback)
	log.Info().Msg("from fallback")
	if !strings.Contains(buf.String(), "from fallback") {
		t.Errorf("Expected fallback logger to be used, got: %s", buf.String())
	}

	buf.Reset()
	ctx := WithContext(context.Background(), Nop())
	log = FromContextOr(ctx, fallback)
	log.Info().Msg("ignored")
	if buf.Len() != 0 {
		t.Errorf("Expected context logger to win, got: %s", buf.String())
	}
}
