package integration

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testStateSecret = "integration-state-secret"

// brokerEnv is the minimal complete environment for a broker on port.
func brokerEnv(port string) map[string]string {
	return map[string]string{
		"BROKER_ADDR":          ":" + port,
		"PUBLIC_BASE_URL":      "http://localhost:" + port,
		"GITHUB_CLIENT_ID":     "integration-client",
		"GITHUB_CLIENT_SECRET": "integration-secret",
		"OAUTH_STATE_SECRET":   testStateSecret,
		"GITHUB_AUTHORIZE_URL": fakeGitHubURL + "/login/oauth/authorize",
		"GITHUB_TOKEN_URL":     fakeGitHubURL + "/login/oauth/access_token",
		"LOG_LEVEL":            "debug",
	}
}

// startBroker runs the broker binary in environment mode and waits for it to
// report healthy. Tests that expect a configuration error pass healthy=false.
func startBroker(t *testing.T, port string, env map[string]string, healthy bool) *exec.Cmd {
	t.Helper()

	cmd := exec.Command(brokerBinary)
	cmd.Env = os.Environ()
	for k, v := range env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	logs, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	require.NoError(t, err)
	cmd.Stdout = logs
	cmd.Stderr = logs

	require.NoError(t, cmd.Start(), "failed to start oauth-broker")
	t.Cleanup(func() {
		stopServer(cmd)
		_ = logs.Close()
	})

	if !waitForListening(port, 10) {
		t.Fatalf("oauth-broker on port %s did not start", port)
	}
	if healthy {
		status, _ := get(t, brokerURL(port, "/health", nil))
		require.Equal(t, http.StatusOK, status, "broker should be healthy")
	}
	return cmd
}

func stopServer(cmd *exec.Cmd) {
	if cmd == nil || cmd.Process == nil {
		return
	}
	_ = cmd.Process.Signal(os.Interrupt)
	done := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		_ = cmd.Process.Kill()
	}
}

func waitForListening(port string, seconds int) bool {
	for range seconds * 10 {
		resp, err := http.Get(brokerURL(port, "/health", nil))
		if err == nil {
			_ = resp.Body.Close()
			return true
		}
		time.Sleep(100 * time.Millisecond)
	}
	return false
}

func brokerURL(port, path string, query url.Values) string {
	u := fmt.Sprintf("http://localhost:%s%s", port, path)
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// noRedirectClient lets tests inspect each 302 hop.
var noRedirectClient = &http.Client{
	Timeout: 10 * time.Second,
	CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	},
}

func get(t *testing.T, target string) (int, http.Header) {
	t.Helper()
	status, header, _ := getBody(t, target)
	return status, header
}

func getBody(t *testing.T, target string) (int, http.Header, string) {
	t.Helper()
	resp, err := noRedirectClient.Get(target)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, resp.Header, string(body)
}

// startFlow calls /auth and follows the redirect to the fake GitHub, which
// answers with the broker callback URL.
func startFlow(t *testing.T, port string, query url.Values) string {
	t.Helper()

	status, header := get(t, brokerURL(port, "/auth", query))
	require.Equal(t, http.StatusFound, status)
	authorize := header.Get("Location")
	require.Contains(t, authorize, fakeGitHubURL+"/login/oauth/authorize")

	status, header = get(t, authorize)
	require.Equal(t, http.StatusFound, status)
	callback := header.Get("Location")
	require.Contains(t, callback, "/callback?")
	return callback
}
