package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName = "values-server/articulator-api"
)

// GetTracer returns the tracer for the articulator-api service.
func GetTracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// TurnAttributes returns common attributes for articulation turn spans.
func TurnAttributes(chatID, userID, model string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("chat.id", chatID),
		attribute.String("chat.user_id", userID),
		attribute.String("chat.model", model),
	}
}

// FunctionCallAttributes returns common attributes for function call spans.
func FunctionCallAttributes(chatID, functionName string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("chat.id", chatID),
		attribute.String("function.name", functionName),
	}
}

// StartTurnSpan starts a new span for one articulation turn.
func StartTurnSpan(ctx context.Context, chatID, userID, model string) (context.Context, trace.Span) {
	ctx, span := GetTracer().Start(ctx, "turn.process",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(TurnAttributes(chatID, userID, model)...),
	)
	return ctx, span
}

// StartFunctionCallSpan starts a new span for a dispatched function call.
func StartFunctionCallSpan(ctx context.Context, chatID, functionName string) (context.Context, trace.Span) {
	ctx, span := GetTracer().Start(ctx, "function."+functionName,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(FunctionCallAttributes(chatID, functionName)...),
	)
	return ctx, span
}

// StartEmbeddingSpan starts a new span for a card embedding job.
func StartEmbeddingSpan(ctx context.Context, cardID uint) (context.Context, trace.Span) {
	ctx, span := GetTracer().Start(ctx, "card.embed",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.Int("card.id", int(cardID))),
	)
	return ctx, span
}

// RecordError records an error on a span.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// AddCardEvent adds a card lifecycle event to a span.
func AddCardEvent(span trace.Span, event, title string) {
	span.AddEvent(event,
		trace.WithAttributes(
			attribute.String("card.title", title),
		),
	)
}
