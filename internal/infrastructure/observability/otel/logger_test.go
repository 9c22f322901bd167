package otel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []LogEntry {
	t.Helper()
	var out []LogEntry
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var e LogEntry
		require.NoError(t, json.Unmarshal([]byte(line), &e))
		out = append(out, e)
	}
	return out
}

func TestLogger_Log(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(noop.NewTracerProvider().Tracer("test"), &buf, LogLevelDebug)

	logger.Info(context.Background(), "Coin confirmed", map[string]interface{}{"hopper_id": "A"})

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "INFO", entries[0].Level)
	assert.Equal(t, "Coin confirmed", entries[0].Message)
	assert.Equal(t, "A", entries[0].Fields["hopper_id"])
	assert.Empty(t, entries[0].TraceID)

	_, err := time.Parse(time.RFC3339Nano, entries[0].Timestamp)
	assert.NoError(t, err)
}

func TestLogger_MinLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(noop.NewTracerProvider().Tracer("test"), &buf, LogLevelWarn)
	ctx := context.Background()

	logger.Debug(ctx, "debug", nil)
	logger.Info(ctx, "info", nil)
	logger.Warn(ctx, "warn", nil)
	logger.Error(ctx, "error", errors.New("hopper jam"), nil)

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "WARN", entries[0].Level)
	assert.Equal(t, "ERROR", entries[1].Level)
	assert.Equal(t, "hopper jam", entries[1].Fields["error"])
}

func TestLogger_TraceCorrelation(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(noop.NewTracerProvider().Tracer("test"), &buf, LogLevelDebug)

	traceID, _ := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	spanID, _ := trace.SpanIDFromHex("0102030405060708")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	logger.Warn(ctx, "Hardware handle is stale", nil)

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, traceID.String(), entries[0].TraceID)
	assert.Equal(t, spanID.String(), entries[0].SpanID)
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, LogLevelDebug, ParseLogLevel("DEBUG"))
	assert.Equal(t, LogLevelError, ParseLogLevel("ERROR"))
	assert.Equal(t, LogLevelInfo, ParseLogLevel("verbose"))
}
