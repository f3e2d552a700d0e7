package integration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"
)

const (
	fakeGitHubPort  = "9090"
	fakeGitHubURL   = "http://localhost:" + fakeGitHubPort
	testAuthCode    = "test-auth-code"
	testAccessToken = "gho_test_access_token"
)

// FakeGitHubServer stands in for github.com's authorize and token endpoints.
// The authorize endpoint approves immediately, or denies when the scope is
// "deny".
type FakeGitHubServer struct {
	server *http.Server

	mu        sync.Mutex
	exchanges int
}

// NewFakeGitHubServer creates a new fake GitHub OAuth server
func NewFakeGitHubServer(port string) *FakeGitHubServer {
	f := &FakeGitHubServer{}
	mux := http.NewServeMux()

	mux.HandleFunc("/login/oauth/authorize", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		callback, err := url.Parse(q.Get("redirect_uri"))
		if err != nil {
			http.Error(w, "bad redirect_uri", http.StatusBadRequest)
			return
		}
		params := url.Values{"state": {q.Get("state")}}
		if q.Get("scope") == "deny" {
			params.Set("error", "access_denied")
		} else {
			params.Set("code", testAuthCode)
		}
		callback.RawQuery = params.Encode()
		http.Redirect(w, r, callback.String(), http.StatusFound)
	})

	mux.HandleFunc("/login/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid request", http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.exchanges++
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if r.FormValue("code") != testAuthCode {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"error":             "bad_verification_code",
				"error_description": "The code passed is incorrect or expired.",
			})
			return
		}

		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": testAccessToken,
			"token_type":   "bearer",
			"scope":        r.FormValue("scope"),
		})
	})

	f.server = &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return f
}

// Start starts the fake GitHub server
func (f *FakeGitHubServer) Start() error {
	ln, err := net.Listen("tcp", f.server.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	go func() {
		if err := f.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			panic(err)
		}
	}()
	return nil
}

// Stop stops the fake GitHub server
func (f *FakeGitHubServer) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return f.server.Shutdown(ctx)
}
