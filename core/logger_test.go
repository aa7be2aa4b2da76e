package core

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestStructuredLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger(LoggingConfig{Level: "warn", Format: "text"})
	logger.SetOutput(&buf)

	logger.Debug("debug message", nil)
	logger.Info("info message", nil)
	logger.Warn("warn message", nil)
	logger.Error("error message", nil)

	out := buf.String()
	if strings.Contains(out, "debug message") || strings.Contains(out, "info message") {
		t.Errorf("levels below warn should be suppressed, got: %s", out)
	}
	if !strings.Contains(out, "warn message") || !strings.Contains(out, "error message") {
		t.Errorf("warn and error should be logged, got: %s", out)
	}
}

func TestStructuredLoggerTextFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger(LoggingConfig{Level: "debug", Format: "text"})
	logger.SetOutput(&buf)

	logger.Info("Cart updated", map[string]interface{}{
		"operation": "cart_add",
		"quantity":  2,
	})

	out := buf.String()
	if !strings.Contains(out, "[INFO] Cart updated") {
		t.Errorf("missing level and message: %s", out)
	}
	if !strings.Contains(out, "operation=cart_add") || !strings.Contains(out, "quantity=2") {
		t.Errorf("missing structured fields: %s", out)
	}
}

func TestStructuredLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger(LoggingConfig{Level: "info", Format: "json"})
	logger.SetOutput(&buf)

	logger.Error("API request failed", map[string]interface{}{
		"operation":   "api.GetCart",
		"status_code": 503,
	})

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	if entry["level"] != "ERROR" {
		t.Errorf("level = %v, want ERROR", entry["level"])
	}
	if entry["message"] != "API request failed" {
		t.Errorf("message = %v, want API request failed", entry["message"])
	}
	if entry["operation"] != "api.GetCart" {
		t.Errorf("operation = %v, want api.GetCart", entry["operation"])
	}
}

func TestParseLevelDefaultsToInfo(t *testing.T) {
	if parseLevel("nonsense") != infoLevel {
		t.Error("unknown level should default to info")
	}
	if parseLevel("DEBUG") != debugLevel || parseLevel("debug") != debugLevel {
		t.Error("level parsing should be case-insensitive")
	}
}
