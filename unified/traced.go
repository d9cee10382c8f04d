package unified

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope used by Traced.
const TracerName = "github.com/tailored-agentic-units/voyager/unified"

// Traced wraps a Handle with OpenTelemetry tracing. Every operation gets a
// span named "voyager.memory.{operation}" tagged with the agent name and the
// operation's outcome.
type Traced struct {
	inner  Handle
	tracer trace.Tracer
	agent  string
}

var _ Handle = (*Traced)(nil)

// NewTraced wraps inner. agent is recorded on every span.
func NewTraced(inner Handle, tracer trace.Tracer, agent string) *Traced {
	return &Traced{inner: inner, tracer: tracer, agent: agent}
}

// Unwrap returns the wrapped handle.
func (t *Traced) Unwrap() Handle {
	return t.inner
}

func (t *Traced) Store(ctx context.Context, req StoreRequest) Result {
	ctx, span := t.start(ctx, "store")
	defer span.End()

	span.SetAttributes(
		attribute.String("voyager.memory.requested_type", string(req.Kind)),
		attribute.Int("voyager.memory.content_length", len(req.Content)),
	)

	res := t.inner.Store(ctx, req)
	span.SetAttributes(
		attribute.String("voyager.memory.type", string(res.Kind)),
		attribute.String("voyager.memory.layer", res.Layer),
		attribute.Bool("voyager.memory.ok", res.OK),
	)
	end(span, res.Err, "stored")
	return res
}

func (t *Traced) Recall(ctx context.Context, query string, opts RecallOptions) Bundle {
	ctx, span := t.start(ctx, "recall")
	defer span.End()

	kinds := make([]string, len(opts.Kinds))
	for i, k := range opts.Kinds {
		kinds[i] = string(k)
	}
	span.SetAttributes(
		attribute.Int("voyager.memory.query_length", len(query)),
		attribute.String("voyager.memory.types", strings.Join(kinds, ",")),
		attribute.Int("voyager.memory.limit", opts.Limit),
	)

	b := t.inner.Recall(ctx, query, opts)
	span.SetAttributes(
		attribute.Int("voyager.memory.skills", len(b.Skills)),
		attribute.Int("voyager.memory.facts", len(b.Facts)),
		attribute.Int("voyager.memory.context", len(b.Context)),
		attribute.Int("voyager.memory.dialogue", len(b.Dialogue)),
	)
	end(span, b.Err, "recalled")
	return b
}

func (t *Traced) Stats(ctx context.Context) Stats {
	ctx, span := t.start(ctx, "stats")
	defer span.End()

	s := t.inner.Stats(ctx)
	span.SetAttributes(
		attribute.Int("voyager.memory.total_entries", s.TotalEntries),
		attribute.Bool("voyager.memory.entry_store.available", s.EntryStore.Available),
		attribute.Bool("voyager.memory.episodic.available", s.Episodic.Available),
	)
	end(span, s.Err, "stats collected")
	return s
}

func (t *Traced) FinalizeSession(ctx context.Context) Result {
	ctx, span := t.start(ctx, "finalize")
	defer span.End()

	res := t.inner.FinalizeSession(ctx)
	if res.Session != nil {
		span.SetAttributes(
			attribute.String("voyager.memory.session", res.Session.ID),
			attribute.Int("voyager.memory.writes", res.Session.Total()),
		)
	}
	end(span, res.Err, "session finalized")
	return res
}

func (t *Traced) Close() error {
	_, span := t.start(context.Background(), "close")
	defer span.End()

	err := t.inner.Close()
	end(span, err, "memory closed")
	return err
}

func (t *Traced) start(ctx context.Context, op string) (context.Context, trace.Span) {
	ctx, span := t.tracer.Start(ctx, "voyager.memory."+op)
	span.SetAttributes(
		attribute.String("voyager.memory.agent", t.agent),
		attribute.String("voyager.memory.operation", op),
	)
	return ctx, span
}

func end(span trace.Span, err error, ok string) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetStatus(codes.Ok, ok)
}
