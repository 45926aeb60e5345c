package tracing

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/partnersync/internal/observability/context"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestSafeAttributesDropsCredentialKeys(t *testing.T) {
	attrs := SafeAttributes(
		attribute.String("http.route", "/webhooks/partner"),
		attribute.String("asaas-access-token", "tok_1234567890"),
		attribute.String("api_key", "k"),
	)
	if len(attrs) != 1 || attrs[0].Key != "http.route" {
		t.Fatalf("unexpected attributes: %v", attrs)
	}
}

func TestSafeErrorRedactsAndTruncates(t *testing.T) {
	if SafeError(nil) != nil {
		t.Fatalf("expected nil for nil error")
	}
	if got := SafeError(errors.New("invalid access_token abc")).Error(); got != "redacted error" {
		t.Fatalf("expected redaction, got %q", got)
	}
	long := SafeError(errors.New(strings.Repeat("x", 400))).Error()
	if len(long) != maxErrorMessage {
		t.Fatalf("expected truncated message, got %d chars", len(long))
	}
}

func TestWrapHTTPClientInjectsTraceparent(t *testing.T) {
	provider := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.AlwaysSample()))
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { _ = provider.Shutdown(t.Context()) })

	var traceparent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceparent = r.Header.Get("traceparent")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := WrapHTTPClient(srv.Client(), "partnerapi")
	req, err := http.NewRequest(http.MethodGet, srv.URL+"/myAccount", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	_ = resp.Body.Close()

	if traceparent == "" {
		t.Fatalf("expected traceparent header to be injected")
	}
	if req.Header.Get("traceparent") != "" {
		t.Fatalf("caller request must not be mutated")
	}
}

func TestGinMiddlewareNamesPartnerSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.AlwaysSample()), sdktrace.WithSpanProcessor(recorder))
	otel.SetTracerProvider(provider)
	t.Cleanup(func() { _ = provider.Shutdown(t.Context()) })

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinMiddleware())
	r.POST("/webhooks/partner", func(c *gin.Context) {
		c.Set(SpanKeyEventType, "ACCOUNT_APPROVED")
		c.Status(http.StatusOK)
	})
	r.GET("/internal/events", func(c *gin.Context) {
		c.Request = c.Request.WithContext(obscontext.WithActor(c.Request.Context(), obscontext.ActorTypeOperator, "ok_1"))
		c.Status(http.StatusOK)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/webhooks/partner", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/internal/events", nil))

	spans := recorder.Ended()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	if got := spans[0].Name(); got != "partnersync.webhook POST /webhooks/partner" {
		t.Fatalf("unexpected webhook span name %q", got)
	}
	if !hasAttr(spans[0].Attributes(), "partnersync.event_type", "ACCOUNT_APPROVED") {
		t.Fatalf("missing event type attribute: %v", spans[0].Attributes())
	}
	if got := spans[1].Name(); got != "partnersync GET /internal/events" {
		t.Fatalf("unexpected operator span name %q", got)
	}
	if !hasAttr(spans[1].Attributes(), "partnersync.actor_id", "ok_1") {
		t.Fatalf("missing actor attribute: %v", spans[1].Attributes())
	}
}

func hasAttr(attrs []attribute.KeyValue, key, want string) bool {
	for _, attr := range attrs {
		if string(attr.Key) == key {
			return attr.Value.AsString() == want
		}
	}
	return false
}
