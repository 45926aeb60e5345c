package tracing

import (
	"net/http"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// WrapHTTPClient returns a shallow copy of client whose transport starts a
// client span per request and injects trace headers.
func WrapHTTPClient(client *http.Client, name string) *http.Client {
	if client == nil {
		client = &http.Client{}
	}
	base := client.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	if name == "" {
		name = "http.client"
	}

	wrapped := *client
	wrapped.Transport = &tracingTransport{
		base:   base,
		name:   name,
		tracer: otel.Tracer(instrumentationName + "/" + name),
	}
	return &wrapped
}

type tracingTransport struct {
	base   http.RoundTripper
	name   string
	tracer trace.Tracer
}

func (t *tracingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx, span := t.tracer.Start(req.Context(), t.name+" "+req.Method, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	// RoundTrippers must not mutate the caller's request.
	out := req.Clone(ctx)
	InjectContext(ctx, propagation.HeaderCarrier(out.Header))

	span.SetAttributes(SafeAttributes(
		attribute.String("http.method", req.Method),
		attribute.String("http.host", req.URL.Host),
		attribute.String("http.path", req.URL.Path),
	)...)

	resp, err := t.base.RoundTrip(out)
	if err != nil {
		span.RecordError(SafeError(err))
		span.SetStatus(codes.Error, "transport error")
		return nil, err
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, "status "+strconv.Itoa(resp.StatusCode))
	}
	return resp, nil
}
