package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// SpanObserver records events on the OpenTelemetry span carried by the
// event context. Events outside a recording span are dropped. Error-level
// events also record an exception on the span.
type SpanObserver struct{}

func (SpanObserver) OnEvent(ctx context.Context, event Event) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	attrs := make([]attribute.KeyValue, 0, len(event.Data)+2)
	attrs = append(attrs,
		attribute.String("event.source", event.Source),
		attribute.String("event.severity", event.Level.String()),
	)
	attrs = append(attrs, Attributes(event.Data)...)

	opts := []trace.EventOption{trace.WithAttributes(attrs...)}
	if !event.Timestamp.IsZero() {
		opts = append(opts, trace.WithTimestamp(event.Timestamp))
	}
	span.AddEvent(string(event.Type), opts...)

	if event.Level >= LevelError {
		if err, ok := event.Data["error"].(string); ok {
			span.RecordError(fmt.Errorf("%s", err))
		}
	}
}

// Attributes converts event data to span attributes in key order. Values
// without a native attribute type are formatted with %v.
func Attributes(data map[string]any) []attribute.KeyValue {
	keys := Event{Data: data}.Keys()
	attrs := make([]attribute.KeyValue, 0, len(keys))
	for _, k := range keys {
		switch v := data[k].(type) {
		case string:
			attrs = append(attrs, attribute.String(k, v))
		case bool:
			attrs = append(attrs, attribute.Bool(k, v))
		case int:
			attrs = append(attrs, attribute.Int(k, v))
		case int64:
			attrs = append(attrs, attribute.Int64(k, v))
		case float64:
			attrs = append(attrs, attribute.Float64(k, v))
		case []string:
			attrs = append(attrs, attribute.StringSlice(k, v))
		case fmt.Stringer:
			attrs = append(attrs, attribute.String(k, v.String()))
		default:
			attrs = append(attrs, attribute.String(k, fmt.Sprintf("%v", v)))
		}
	}
	return attrs
}
