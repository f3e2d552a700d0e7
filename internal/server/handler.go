package server

import (
	"context"
	"net/http"

	"github.com/dgellow/github-oauth-broker/internal/broker"
	"github.com/dgellow/github-oauth-broker/internal/log"
)

// Dispatcher answers runtime independent broker requests
type Dispatcher interface {
	Handle(ctx context.Context, req broker.Request) broker.Response
}

type brokerHandler struct {
	dispatcher Dispatcher
}

// NewBrokerHandler adapts a Dispatcher to net/http
func NewBrokerHandler(d Dispatcher) http.Handler {
	return &brokerHandler{dispatcher: d}
}

func (h *brokerHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req := broker.Request{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.Query(),
		Header: http.Header{},
	}
	copyRequestHeaders(req.Header, r.Header)

	resp := h.dispatcher.Handle(r.Context(), req)

	copyResponseHeaders(w.Header(), resp.Header)
	w.WriteHeader(resp.Status)
	if len(resp.Body) == 0 {
		return
	}
	if _, err := w.Write(resp.Body); err != nil {
		log.LogDebugWithFields("http", "Failed to write response", map[string]any{
			"error": err.Error(),
		})
	}
}
