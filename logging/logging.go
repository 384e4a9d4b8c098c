// Package logging provides structured console logging for the directory.
// Output is line-oriented key=value text aimed at operators tailing the
// process; machine-consumable history lives on the event bus.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Level represents log severity.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// levelPriority maps levels to numeric priority for filtering.
var levelPriority = map[Level]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

// Logger provides structured logging scoped by component and request id.
type Logger struct {
	mu        sync.Mutex
	output    io.Writer
	minLevel  Level
	component string
	requestID string
}

// New creates a new Logger writing to stdout at INFO.
func New() *Logger {
	return &Logger{
		output:   os.Stdout,
		minLevel: LevelInfo,
	}
}

// WithComponent returns a new logger with the given component name.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		output:    l.output,
		minLevel:  l.minLevel,
		component: component,
		requestID: l.requestID,
	}
}

// WithRequestID returns a new logger tagged with a request id.
func (l *Logger) WithRequestID(requestID string) *Logger {
	return &Logger{
		output:    l.output,
		minLevel:  l.minLevel,
		component: l.component,
		requestID: requestID,
	}
}

// SetLevel sets the minimum log level.
func (l *Logger) SetLevel(level Level) {
	l.minLevel = level
}

// SetOutput sets the output writer (default: stdout).
func (l *Logger) SetOutput(w io.Writer) {
	l.output = w
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, fields ...map[string]interface{}) {
	l.log(LevelDebug, msg, fields...)
}

// Info logs an info message.
func (l *Logger) Info(msg string, fields ...map[string]interface{}) {
	l.log(LevelInfo, msg, fields...)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, fields ...map[string]interface{}) {
	l.log(LevelWarn, msg, fields...)
}

// Error logs an error message.
func (l *Logger) Error(msg string, fields ...map[string]interface{}) {
	l.log(LevelError, msg, fields...)
}

// formatFields formats a map of fields as key=value pairs.
func formatFields(fields map[string]interface{}) string {
	if len(fields) == 0 {
		return ""
	}
	var parts []string
	for k, v := range fields {
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
	}
	return " " + strings.Join(parts, " ")
}

// log writes a log entry: LEVEL TIMESTAMP [component] message key=value ...
func (l *Logger) log(level Level, msg string, fields ...map[string]interface{}) {
	if levelPriority[level] < levelPriority[l.minLevel] {
		return
	}

	timestamp := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")

	var fieldStr string
	if len(fields) > 0 && fields[0] != nil {
		fieldStr = formatFields(fields[0])
	}
	if l.requestID != "" {
		fieldStr += " request_id=" + l.requestID
	}

	var line string
	if l.component != "" {
		line = fmt.Sprintf("%-5s %s [%s] %s%s\n", level, timestamp, l.component, msg, fieldStr)
	} else {
		line = fmt.Sprintf("%-5s %s %s%s\n", level, timestamp, msg, fieldStr)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.output.Write([]byte(line))
}

// --- Directory-specific helpers ---

// Transition logs a lifecycle state change.
func (l *Logger) Transition(agentID string, oldStatus, newStatus string) {
	l.Info("lifecycle_transition", map[string]interface{}{
		"agent_id": agentID,
		"old":      oldStatus,
		"new":      newStatus,
	})
}

// Swept logs the removal of an expired record.
func (l *Logger) Swept(agentID string) {
	l.Info("record_swept", map[string]interface{}{
		"agent_id": agentID,
	})
}

// SubscriberDegraded logs a subscriber whose buffer overflowed.
func (l *Logger) SubscriberDegraded(topic string, dropped int) {
	l.Warn("subscriber_degraded", map[string]interface{}{
		"topic":   topic,
		"dropped": dropped,
	})
}

// Degraded logs an absorbed dependency failure.
func (l *Logger) Degraded(dependency string, err error) {
	l.Warn("dependency_degraded", map[string]interface{}{
		"dependency": dependency,
		"error":      err.Error(),
	})
}

// SecurityWarning logs a security-relevant event.
func (l *Logger) SecurityWarning(msg string, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["security"] = true
	l.Warn(msg, fields)
}
