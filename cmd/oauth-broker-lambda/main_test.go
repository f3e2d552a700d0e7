package main

import (
	"context"
	"net/http"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/dgellow/github-oauth-broker/internal/broker"
	"github.com/dgellow/github-oauth-broker/internal/serverless"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validEnviron() map[string]string {
	return map[string]string{
		"GITHUB_CLIENT_ID":     "client-id",
		"GITHUB_CLIENT_SECRET": "client-secret",
		"PUBLIC_BASE_URL":      "https://oauth.example.com",
		"OAUTH_STATE_SECRET":   "state-secret",
	}
}

func handle(t *testing.T, d serverless.Dispatcher, path string) serverless.EventResponse {
	t.Helper()
	resp, err := serverless.NewAdapter(d).Handle(context.Background(), serverless.Event{
		HTTPMethod: http.MethodGet,
		Path:       path,
	})
	require.NoError(t, err)
	return resp
}

func TestNewDispatcher(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		d := newDispatcher(context.Background(), validEnviron())
		assert.IsType(t, &broker.Router{}, d)

		resp := handle(t, d, "/health")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("memory ledger", func(t *testing.T) {
		environ := validEnviron()
		environ["REPLAY_KIND"] = "memory"
		d := newDispatcher(context.Background(), environ)
		assert.IsType(t, &broker.Router{}, d)
	})

	malformed := map[string]string{
		"bad_int":        "BROKER_DELIVERY_ATTEMPTS",
		"bad_auth_start": "BROKER_AUTH_START",
		"bad_duration":   "BROKER_EXCHANGE_TIMEOUT",
	}
	for name, key := range malformed {
		t.Run(name, func(t *testing.T) {
			environ := validEnviron()
			environ[key] = "foo"
			d := newDispatcher(context.Background(), environ)
			assert.IsType(t, broker.Unavailable{}, d)

			resp := handle(t, d, "/auth")
			assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
			assert.JSONEq(t, `{"error":"Invalid configuration"}`, resp.Body)
		})
	}

	t.Run("unreachable ledger", func(t *testing.T) {
		mr := miniredis.RunT(t)
		addr := mr.Addr()
		mr.Close()

		environ := validEnviron()
		environ["REPLAY_KIND"] = "redis"
		environ["REPLAY_REDIS_ADDR"] = addr
		d := newDispatcher(context.Background(), environ)
		assert.IsType(t, broker.Unavailable{}, d)

		resp := handle(t, d, "/health")
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	})
}
