package serverless

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/dgellow/github-oauth-broker/internal/broker"
	"github.com/dgellow/github-oauth-broker/internal/log"
)

// Dispatcher answers runtime independent broker requests
type Dispatcher interface {
	Handle(ctx context.Context, req broker.Request) broker.Response
}

// Adapter translates gateway events to broker requests
type Adapter struct {
	dispatcher Dispatcher
}

// NewAdapter creates an Adapter for d
func NewAdapter(d Dispatcher) *Adapter {
	return &Adapter{dispatcher: d}
}

// Handle answers one gateway event. Broker failures are expressed as HTTP
// responses, so the returned error is always nil.
func (a *Adapter) Handle(ctx context.Context, event Event) (EventResponse, error) {
	start := time.Now()
	req := broker.Request{
		Method: event.Method(),
		Path:   event.RequestPath(),
		Query:  event.Query(),
		Header: event.Header(),
	}
	req.Header.Del("Cookie")
	req.Header.Del("Authorization")

	resp := a.dispatcher.Handle(ctx, req)

	fields := map[string]any{
		"method":      req.Method,
		"path":        req.Path,
		"route":       broker.RouteOf(req.Path),
		"status":      resp.Status,
		"duration_ms": time.Since(start).Milliseconds(),
	}
	if len(req.Query) > 0 {
		fields["query"] = broker.RedactQuery(req.Query)
	}
	log.LogInfoWithFields("serverless", "request", fields)

	return toEventResponse(resp), nil
}

func toEventResponse(resp broker.Response) EventResponse {
	headers := make(map[string]string, len(resp.Header))
	for k, v := range resp.Header {
		headers[k] = strings.Join(v, ", ")
	}
	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	return EventResponse{
		StatusCode: status,
		Headers:    headers,
		Body:       string(resp.Body),
	}
}
