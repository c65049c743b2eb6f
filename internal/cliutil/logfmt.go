package cliutil

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/Paintersrp/tasktide/internal/engine"
)

// LogRecord represents a structured engine event ready for JSON encoding.
type LogRecord struct {
	Timestamp time.Time `json:"ts"`
	Type      string    `json:"type"`
	PID       int32     `json:"pid,omitempty"`
	Name      string    `json:"name,omitempty"`
	Level     string    `json:"level"`
	Message   string    `json:"msg,omitempty"`
	Error     string    `json:"error,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Trigger   string    `json:"trigger,omitempty"`
	Attempt   int       `json:"attempt,omitempty"`
	AttemptID string    `json:"attemptId,omitempty"`
}

// NewLogRecord converts an engine event into a structured log record.
func NewLogRecord(event engine.Event) LogRecord {
	record := LogRecord{
		Timestamp: event.Timestamp,
		Type:      string(event.Type),
		PID:       event.PID,
		Name:      event.Name,
		Level:     eventLevel(event),
		Message:   event.Message,
		Reason:    event.Reason,
		Trigger:   string(event.Trigger),
		Attempt:   event.Attempt,
		AttemptID: event.AttemptID,
	}
	if event.Err != nil {
		record.Error = event.Err.Error()
	}
	return record
}

func eventLevel(event engine.Event) string {
	switch event.Level {
	case "debug", "info", "warn", "error":
		return event.Level
	}
	if event.Err != nil {
		return "error"
	}
	return "info"
}

// EncodeLogEvent encodes an event to JSON, reporting errors to stderr if needed.
func EncodeLogEvent(enc *json.Encoder, stderr io.Writer, event engine.Event) {
	if enc == nil {
		return
	}
	record := NewLogRecord(event)
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}
	if err := enc.Encode(&record); err != nil {
		fmt.Fprintf(stderr, "error: encode log: %v\n", err)
	}
}

// SlogLevel maps an event level onto a slog level.
func SlogLevel(event engine.Event) slog.Level {
	switch eventLevel(event) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LogAttrs renders the populated event fields as slog attributes.
func LogAttrs(event engine.Event) []slog.Attr {
	attrs := []slog.Attr{slog.String("type", string(event.Type))}
	if event.PID != 0 {
		attrs = append(attrs, slog.Int("pid", int(event.PID)))
	}
	if event.Name != "" {
		attrs = append(attrs, slog.String("name", event.Name))
	}
	if event.Trigger != "" {
		attrs = append(attrs, slog.String("trigger", string(event.Trigger)))
	}
	if event.Reason != "" {
		attrs = append(attrs, slog.String("reason", event.Reason))
	}
	if event.Attempt != 0 {
		attrs = append(attrs, slog.Int("attempt", event.Attempt))
	}
	if event.AttemptID != "" {
		attrs = append(attrs, slog.String("attempt_id", event.AttemptID))
	}
	if event.Err != nil {
		attrs = append(attrs, slog.String("error", event.Err.Error()))
	}
	return attrs
}

// LogEvent writes event to logger at the level the event carries.
func LogEvent(ctx context.Context, logger *slog.Logger, event engine.Event) {
	if logger == nil {
		return
	}
	msg := event.Message
	if msg == "" {
		msg = string(event.Type)
	}
	logger.LogAttrs(ctx, SlogLevel(event), msg, LogAttrs(event)...)
}
