package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_LevelAndFormat(t *testing.T) {
	l := New("rwg", "debug", "json")
	assert.Equal(t, logrus.DebugLevel, l.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, l.Formatter)

	fallback := New("rwg", "nonsense", "text")
	assert.Equal(t, logrus.InfoLevel, fallback.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, fallback.Formatter)
}

func TestWithContext_AddsTraceAndService(t *testing.T) {
	var buf bytes.Buffer
	l := New("rwg", "info", "json")
	l.SetOutput(&buf)

	ctx := WithTraceID(context.Background(), "trace-1")
	l.WithContext(ctx).Info("poll finished")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "rwg", entry["service"])
	assert.Equal(t, "trace-1", entry["trace_id"])
	assert.Equal(t, "poll finished", entry["msg"])
}

func TestLogRequest_LevelByStatus(t *testing.T) {
	var buf bytes.Buffer
	l := New("rwg", "info", "json")
	l.SetOutput(&buf)

	l.LogRequest(context.Background(), http.MethodGet, "/v1/state", http.StatusOK, time.Millisecond)
	assert.Empty(t, buf.String(), "2xx requests log at debug")

	l.LogRequest(context.Background(), http.MethodGet, "/v1/state", http.StatusBadGateway, time.Millisecond)
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "error", entry["level"])
	assert.EqualValues(t, http.StatusBadGateway, entry["status"])
}

func TestTraceID(t *testing.T) {
	assert.Empty(t, GetTraceID(context.Background()))
	id := NewTraceID()
	assert.Len(t, id, 36)
	assert.Equal(t, id, GetTraceID(WithTraceID(context.Background(), id)))
}

func TestNewDiscard(t *testing.T) {
	l := NewDiscard("rwg")
	l.Error("dropped")
	assert.Equal(t, "rwg", l.Entry().Data["service"])
}
