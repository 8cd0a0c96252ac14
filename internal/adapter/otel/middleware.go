package otel

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// HTTPMiddleware returns a chi-compatible middleware that creates spans for HTTP requests.
func HTTPMiddleware(serviceName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, serviceName)
	}
}

// HTTPTransport wraps an outbound transport so calls to other agents carry
// trace context.
func HTTPTransport(next http.RoundTripper) http.RoundTripper {
	return otelhttp.NewTransport(next)
}
