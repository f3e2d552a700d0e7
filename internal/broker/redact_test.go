package broker

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedactQuery(t *testing.T) {
	tests := []struct {
		name     string
		query    url.Values
		expected string
	}{
		{name: "empty", query: nil, expected: ""},
		{name: "nothing sensitive", query: url.Values{"origin": {"https://a.example"}}, expected: "origin=https%3A%2F%2Fa.example"},
		{name: "code and state", query: url.Values{"code": {"abc"}, "state": {"x.y"}}, expected: "code=REDACTED&state=REDACTED"},
		{name: "repeated code", query: url.Values{"code": {"a", "b"}}, expected: "code=REDACTED&code=REDACTED"},
		{name: "mixed", query: url.Values{"code": {"abc"}, "error": {"access_denied"}}, expected: "code=REDACTED&error=access_denied"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, RedactQuery(tt.query))
		})
	}
}

func TestRedactRawQuery(t *testing.T) {
	assert.Equal(t, "", RedactRawQuery(""))
	assert.Equal(t, "code=REDACTED&state=REDACTED", RedactRawQuery("state=s3cr3t&code=c0de"))
	assert.Equal(t, Redacted, RedactRawQuery("code=%zz"))

	out := RedactRawQuery("code=c0de&state=s3cr3t&provider=github")
	assert.NotContains(t, out, "c0de")
	assert.NotContains(t, out, "s3cr3t")
	assert.Contains(t, out, "provider=github")
}

func TestRedactQueryDoesNotMutateInput(t *testing.T) {
	q := url.Values{"code": {"abc"}}
	_ = RedactQuery(q)
	assert.Equal(t, "abc", q.Get("code"))
}
