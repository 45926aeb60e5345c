package context

import (
	"context"
	"testing"
)

func TestIdentifiersRoundTrip(t *testing.T) {
	ctx := WithRequestID(context.Background(), " req-1 ")
	ctx = WithCorrelationID(ctx, "01HZX")
	ctx = WithAccountID(ctx, "42")
	ctx = WithActor(ctx, ActorTypeOperator, "key_abc")

	if got := RequestIDFromContext(ctx); got != "req-1" {
		t.Fatalf("expected trimmed request id, got %q", got)
	}
	if got := CorrelationIDFromContext(ctx); got != "01HZX" {
		t.Fatalf("unexpected correlation id %q", got)
	}
	if got := AccountIDFromContext(ctx); got != "42" {
		t.Fatalf("unexpected account id %q", got)
	}
	actorType, actorID := ActorFromContext(ctx)
	if actorType != ActorTypeOperator || actorID != "key_abc" {
		t.Fatalf("unexpected actor %q/%q", actorType, actorID)
	}
}

func TestBlankValuesAreIgnored(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithRequestID(ctx, "   ")
	if got := RequestIDFromContext(ctx); got != "req-1" {
		t.Fatalf("blank value must not override, got %q", got)
	}
	if got := AccountIDFromContext(nil); got != "" {
		t.Fatalf("expected empty value for nil context, got %q", got)
	}
}
