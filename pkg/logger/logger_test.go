package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func captureLogger(t *testing.T, level string) *bytes.Buffer {
	t.Helper()
	buffer := &bytes.Buffer{}
	prev := Log
	Log = New("ticket-service-test", level, zapcore.AddSync(buffer))
	t.Cleanup(func() { Log = prev })
	return buffer
}

func TestLogger_Info_WithTraceAndRequestID(t *testing.T) {
	buffer := captureLogger(t, "info")

	ctx := context.WithValue(context.Background(), TraceIdKey, "trace-123")
	ctx = context.WithValue(ctx, RequestIdKey, "req-456")

	Info(ctx, "ticket created", zap.String("ticket_id", "t-1"))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buffer.Bytes(), &entry), "日志输出必须是合法的 JSON")

	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "ticket created", entry["msg"])
	assert.Equal(t, "t-1", entry["ticket_id"])
	assert.Equal(t, "ticket-service-test", entry["service"])
	assert.Equal(t, "trace-123", entry["trace_id"])
	assert.Equal(t, "req-456", entry["request_id"])
}

func TestLogger_Error_NoTraceID(t *testing.T) {
	buffer := captureLogger(t, "info")

	Error(context.Background(), "store unavailable", zap.String("db", "mysql"))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buffer.Bytes(), &entry))

	_, exists := entry["trace_id"]
	assert.False(t, exists, "没有 TraceID 的 Context 不应该输出 trace_id 字段")
	assert.Equal(t, "ERROR", entry["level"])
}

func TestLogger_LevelFilter(t *testing.T) {
	buffer := captureLogger(t, "warn")

	Debug(context.Background(), "heartbeat sent")
	Info(context.Background(), "subscriber attached")
	assert.Zero(t, buffer.Len())

	Warn(context.Background(), "subscriber dropped")
	assert.NotZero(t, buffer.Len())
}

func TestLogger_NilContext(t *testing.T) {
	buffer := captureLogger(t, "info")

	//nolint:staticcheck // nil ctx must not panic
	Info(nil, "no context")
	assert.Contains(t, buffer.String(), "no context")
}

func TestLogger_DefaultIsNop(t *testing.T) {
	assert.NotPanics(t, func() {
		Info(context.Background(), "before init")
		Sync()
	})
}
