package broker

import (
	"context"
	"net/http"

	"github.com/dgellow/github-oauth-broker/internal/log"
)

const msgInvalidConfiguration = "Invalid configuration"

// Unavailable answers every request with a 500 configuration error. It stands
// in for a Router when the configuration cannot be loaded at all.
type Unavailable struct {
	Err error
}

// Handle implements the dispatcher contract of the runtime adapters
func (u Unavailable) Handle(_ context.Context, req Request) Response {
	fields := map[string]any{
		"route": RouteOf(req.Path),
	}
	if u.Err != nil {
		fields["error"] = u.Err.Error()
	}
	log.LogErrorWithFields("broker", "Rejecting request, configuration invalid", fields)
	return JSONError(http.StatusInternalServerError, msgInvalidConfiguration)
}
