package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf)

	logger.Info("test message")

	output := buf.String()
	if !strings.Contains(output, `"msg":"test message"`) {
		t.Errorf("expected log message in output, got: %s", output)
	}

	// Verify it's valid JSON
	var logEntry map[string]interface{}
	if err := json.Unmarshal([]byte(output), &logEntry); err != nil {
		t.Fatalf("log output is not valid JSON: %v", err)
	}

	if logEntry["msg"] != "test message" {
		t.Errorf("expected msg='test message', got: %v", logEntry["msg"])
	}
}

func TestLoggerWithRequestInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf)

	info := &RequestInfo{
		RequestID:     "test-req-123",
		Resource:      "image",
		Endpoint:      "POST /v1/resources/image",
		Actor:         "jdoe",
		ServerTotalMs: 42.5,
	}

	logger.WithRequestInfo(info).Info("request completed")

	output := buf.String()

	var logEntry map[string]interface{}
	if err := json.Unmarshal([]byte(output), &logEntry); err != nil {
		t.Fatalf("log output is not valid JSON: %v", err)
	}

	tests := []struct {
		key      string
		expected interface{}
	}{
		{"request_id", "test-req-123"},
		{"resource", "image"},
		{"endpoint", "POST /v1/resources/image"},
		{"actor", "jdoe"},
		{"server_total_ms", 42.5},
	}

	for _, tc := range tests {
		got := logEntry[tc.key]
		if got != tc.expected {
			t.Errorf("%s: expected %v, got %v", tc.key, tc.expected, got)
		}
	}
}

func TestLoggerWithContext(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf)

	ctx := context.Background()
	ctx = ContextWithRequestID(ctx, "ctx-req-456")
	ctx = ContextWithResource(ctx, "article")
	ctx = ContextWithEndpoint(ctx, "GET /v1/resources/article")

	logger.WithContext(ctx).Info("context test")

	output := buf.String()

	var logEntry map[string]interface{}
	if err := json.Unmarshal([]byte(output), &logEntry); err != nil {
		t.Fatalf("log output is not valid JSON: %v", err)
	}

	if logEntry["request_id"] != "ctx-req-456" {
		t.Errorf("expected request_id='ctx-req-456', got: %v", logEntry["request_id"])
	}
	if logEntry["resource"] != "article" {
		t.Errorf("expected resource='article', got: %v", logEntry["resource"])
	}
	if logEntry["endpoint"] != "GET /v1/resources/article" {
		t.Errorf("expected endpoint='GET /v1/resources/article', got: %v", logEntry["endpoint"])
	}
}

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()

	// Empty context returns zero values
	if got := RequestIDFromContext(ctx); got != "" {
		t.Errorf("expected empty request_id, got: %s", got)
	}
	if got := ResourceFromContext(ctx); got != "" {
		t.Errorf("expected empty resource, got: %s", got)
	}
	if got := EndpointFromContext(ctx); got != "" {
		t.Errorf("expected empty endpoint, got: %s", got)
	}
	if got := RequestTimeFromContext(ctx); !got.IsZero() {
		t.Errorf("expected zero time, got: %v", got)
	}

	now := time.Now()
	ctx = ContextWithRequestTime(ctx, now)
	if got := RequestTimeFromContext(ctx); !got.Equal(now) {
		t.Errorf("expected %v, got: %v", now, got)
	}
}

func TestElapsedMs(t *testing.T) {
	ctx := context.Background()
	if got := ElapsedMs(ctx); got != 0 {
		t.Errorf("expected 0 without request time, got %f", got)
	}

	ctx = ContextWithRequestTime(ctx, time.Now().Add(-10*time.Millisecond))
	if got := ElapsedMs(ctx); got < 10 {
		t.Errorf("expected at least 10ms elapsed, got %f", got)
	}
}
