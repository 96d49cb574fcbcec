package observability

import (
	"context"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// SpanLogger exports finished spans as debug log lines.
type SpanLogger struct {
	logger zerolog.Logger
}

var _ sdktrace.SpanExporter = (*SpanLogger)(nil)

func NewSpanLogger(logger zerolog.Logger) *SpanLogger {
	return &SpanLogger{logger: logger}
}

func (s *SpanLogger) ExportSpans(_ context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, span := range spans {
		entry := s.logger.Debug().
			Str("span", span.Name()).
			Str("trace_id", span.SpanContext().TraceID().String()).
			Dur("duration", span.EndTime().Sub(span.StartTime())).
			Str("status", span.Status().Code.String())
		for _, attr := range span.Attributes() {
			entry = entry.Str(string(attr.Key), attr.Value.Emit())
		}
		entry.Msg("span")
	}
	return nil
}

func (s *SpanLogger) Shutdown(context.Context) error {
	return nil
}

// InstallTracing sets a global tracer provider that logs spans. The returned
// func flushes and shuts it down.
func InstallTracing(logger zerolog.Logger) func(context.Context) error {
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(NewSpanLogger(logger)))
	otel.SetTracerProvider(tp)
	return tp.Shutdown
}
