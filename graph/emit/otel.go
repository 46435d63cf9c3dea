package emit

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTelEmitter turns each event into a short span named after the event
// message. Standard fields become flowgraph.* attributes; meta keys are
// copied, with generation usage mapped onto flowgraph.llm.* names.
type OTelEmitter struct {
	tracer trace.Tracer
}

// NewOTelEmitter returns an emitter using tracer, or the global provider's
// "flowgraph" tracer when nil.
func NewOTelEmitter(tracer trace.Tracer) *OTelEmitter {
	if tracer == nil {
		tracer = otel.Tracer("github.com/dshills/flowgraph")
	}
	return &OTelEmitter{tracer: tracer}
}

// Emit records event as a span on a background context. Use EmitBatch to
// parent the spans under an existing trace.
func (o *OTelEmitter) Emit(event Event) {
	o.emit(context.Background(), event)
}

// EmitBatch emits events as spans under ctx.
func (o *OTelEmitter) EmitBatch(ctx context.Context, events []Event) error {
	for _, event := range events {
		o.emit(ctx, event)
	}
	return nil
}

// Flush forces the global tracer provider to export pending spans when it
// supports it.
func (o *OTelEmitter) Flush(ctx context.Context) error {
	type flusher interface {
		ForceFlush(context.Context) error
	}
	if f, ok := otel.GetTracerProvider().(flusher); ok {
		return f.ForceFlush(ctx)
	}
	return nil
}

func (o *OTelEmitter) emit(ctx context.Context, event Event) {
	_, span := o.tracer.Start(ctx, event.Msg)
	defer span.End()

	span.SetAttributes(
		attribute.String("flowgraph.run_id", event.RunID),
		attribute.Int("flowgraph.wave", event.Wave),
	)
	if event.NodeID != "" {
		span.SetAttributes(
			attribute.String("flowgraph.node_id", event.NodeID),
			attribute.String("flowgraph.node_type", event.NodeType),
		)
	}
	setMetaAttributes(span, event.Meta)

	if msg, ok := event.Meta["error"].(string); ok {
		span.SetStatus(codes.Error, msg)
		span.RecordError(fmt.Errorf("%s", msg))
	}
}

var metaKeys = map[string]string{
	"tokens_in":   "flowgraph.llm.tokens_in",
	"tokens_out":  "flowgraph.llm.tokens_out",
	"model":       "flowgraph.llm.model",
	"cost_usd":    "flowgraph.llm.cost_usd",
	"duration_ms": "flowgraph.node.duration_ms",
	"attempt":     "flowgraph.node.attempt",
	"reason":      "flowgraph.node.skip_reason",
	"code":        "flowgraph.error.code",
}

func setMetaAttributes(span trace.Span, meta map[string]interface{}) {
	for key, value := range meta {
		attrKey := key
		if mapped, ok := metaKeys[key]; ok {
			attrKey = mapped
		}

		switch v := value.(type) {
		case string:
			span.SetAttributes(attribute.String(attrKey, v))
		case int:
			span.SetAttributes(attribute.Int(attrKey, v))
		case int64:
			span.SetAttributes(attribute.Int64(attrKey, v))
		case float64:
			span.SetAttributes(attribute.Float64(attrKey, v))
		case bool:
			span.SetAttributes(attribute.Bool(attrKey, v))
		case time.Duration:
			span.SetAttributes(attribute.Int64(attrKey, v.Milliseconds()))
		default:
			span.SetAttributes(attribute.String(attrKey, fmt.Sprintf("%v", v)))
		}
	}
}
