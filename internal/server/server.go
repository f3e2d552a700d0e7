package server

import (
	"net/http"

	"github.com/dgellow/github-oauth-broker/internal/metrics"
)

// NewHandler wraps the broker handler with the standard middleware stack.
// m may be nil when metrics are disabled.
func NewHandler(d Dispatcher, m *metrics.Metrics) http.Handler {
	middlewares := []MiddlewareFunc{
		NewRecoverMiddleware("broker"),
		NewLoggerMiddleware("broker"),
	}
	if m != nil {
		middlewares = append(middlewares, NewMetricsMiddleware(m))
	}
	return ChainMiddleware(NewBrokerHandler(d), middlewares...)
}

// NewMetricsHandler serves /metrics for the separate metrics listener
func NewMetricsHandler(m *metrics.Metrics) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", m.Handler())
	return mux
}
