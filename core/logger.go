package core

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Log levels in increasing severity.
const (
	debugLevel = iota
	infoLevel
	warnLevel
	errorLevel
)

func parseLevel(level string) int {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return debugLevel
	case "WARN", "WARNING":
		return warnLevel
	case "ERROR":
		return errorLevel
	default:
		return infoLevel
	}
}

// StructuredLogger writes leveled, structured log lines in either text or
// JSON format, driven by LoggingConfig. It is safe for concurrent use.
type StructuredLogger struct {
	mu     sync.Mutex
	level  int
	format string
	output io.Writer
}

// NewStructuredLogger creates a logger from logging config. Format "json"
// emits one JSON object per line; anything else emits readable text.
func NewStructuredLogger(cfg LoggingConfig) *StructuredLogger {
	return &StructuredLogger{
		level:  parseLevel(cfg.Level),
		format: cfg.Format,
		output: os.Stderr,
	}
}

// SetOutput redirects log output, mainly for tests.
func (l *StructuredLogger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.output = w
}

func (l *StructuredLogger) Debug(msg string, fields map[string]interface{}) {
	l.log(debugLevel, "DEBUG", msg, fields)
}

func (l *StructuredLogger) Info(msg string, fields map[string]interface{}) {
	l.log(infoLevel, "INFO", msg, fields)
}

func (l *StructuredLogger) Warn(msg string, fields map[string]interface{}) {
	l.log(warnLevel, "WARN", msg, fields)
}

func (l *StructuredLogger) Error(msg string, fields map[string]interface{}) {
	l.log(errorLevel, "ERROR", msg, fields)
}

func (l *StructuredLogger) log(level int, name, msg string, fields map[string]interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if level < l.level {
		return
	}

	if l.format == "json" {
		entry := make(map[string]interface{}, len(fields)+3)
		for k, v := range fields {
			entry[k] = v
		}
		entry["time"] = time.Now().UTC().Format(time.RFC3339)
		entry["level"] = name
		entry["message"] = msg
		data, err := json.Marshal(entry)
		if err != nil {
			fmt.Fprintf(l.output, "[%s] %s (unmarshalable fields: %v)\n", name, msg, err)
			return
		}
		fmt.Fprintln(l.output, string(data))
		return
	}

	parts := []string{fmt.Sprintf("[%s]", name), msg}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, fields[k]))
	}
	fmt.Fprintln(l.output, strings.Join(parts, " "))
}
