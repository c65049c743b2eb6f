// Package telemetry configures structured logging and, optionally, the
// OpenTelemetry log and trace pipelines.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const instrumentationName = "github.com/Paintersrp/tasktide"

// Format selects the slog handler used when OpenTelemetry is disabled.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// Options describes the logging pipeline.
type Options struct {
	Level  string
	Format Format
	// File, when set, receives log output instead of Writer. The file is
	// opened in append mode.
	File string
	// OpenTelemetry routes records through the OpenTelemetry log SDK and
	// installs a global tracer provider. Both export to the log destination.
	OpenTelemetry bool
	Writer        io.Writer
}

// ShutdownFunc flushes and releases telemetry resources.
type ShutdownFunc func(context.Context) error

// ParseLevel converts a level name into a slog.Level. Empty selects info.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if strings.TrimSpace(s) == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("parse log level %q: %w", s, err)
	}
	return level, nil
}

// ParseFormat validates a handler format name. Empty selects JSON.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatText:
		return FormatText, nil
	default:
		return "", fmt.Errorf("unknown log format %q", s)
	}
}

// Setup builds a logger according to opts. The returned shutdown function
// must be called before exit to flush buffered telemetry.
func Setup(ctx context.Context, opts Options) (*slog.Logger, ShutdownFunc, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}
	format, err := ParseFormat(string(opts.Format))
	if err != nil {
		return nil, nil, err
	}

	var shutdowns []func(context.Context) error
	shutdown := func(ctx context.Context) error {
		var errs []error
		for i := len(shutdowns) - 1; i >= 0; i-- {
			errs = append(errs, shutdowns[i](ctx))
		}
		shutdowns = nil
		return errors.Join(errs...)
	}

	out := opts.Writer
	if out == nil {
		out = os.Stderr
	}
	if opts.File != "" {
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		out = f
		shutdowns = append(shutdowns, func(context.Context) error { return f.Close() })
	}

	if !opts.OpenTelemetry {
		handlerOpts := &slog.HandlerOptions{Level: level}
		var handler slog.Handler = slog.NewJSONHandler(out, handlerOpts)
		if format == FormatText {
			handler = slog.NewTextHandler(out, handlerOpts)
		}
		return slog.New(handler), shutdown, nil
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	traceExporter, err := stdouttrace.New(stdouttrace.WithWriter(out))
	if err != nil {
		return nil, nil, errors.Join(fmt.Errorf("create trace exporter: %w", err), shutdown(ctx))
	}
	tracerProvider := sdktrace.NewTracerProvider(sdktrace.WithBatcher(traceExporter))
	shutdowns = append(shutdowns, tracerProvider.Shutdown)
	otel.SetTracerProvider(tracerProvider)

	logExporter, err := stdoutlog.New(stdoutlog.WithWriter(out))
	if err != nil {
		return nil, nil, errors.Join(fmt.Errorf("create log exporter: %w", err), shutdown(ctx))
	}
	loggerProvider := sdklog.NewLoggerProvider(sdklog.WithProcessor(sdklog.NewBatchProcessor(logExporter)))
	shutdowns = append(shutdowns, loggerProvider.Shutdown)
	global.SetLoggerProvider(loggerProvider)

	handler := otelslog.NewHandler(instrumentationName, otelslog.WithLoggerProvider(loggerProvider))
	return slog.New(leveled{Handler: handler, min: level}), shutdown, nil
}

// leveled enforces a minimum level on handlers that do not filter on their
// own.
type leveled struct {
	slog.Handler
	min slog.Level
}

func (h leveled) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.min && h.Handler.Enabled(ctx, level)
}

func (h leveled) WithAttrs(attrs []slog.Attr) slog.Handler {
	return leveled{Handler: h.Handler.WithAttrs(attrs), min: h.min}
}

func (h leveled) WithGroup(name string) slog.Handler {
	return leveled{Handler: h.Handler.WithGroup(name), min: h.min}
}
