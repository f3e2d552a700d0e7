package origin

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://cms.example", "https://cms.example"},
		{"https://cms.example/admin/#/collections", "https://cms.example"},
		{"HTTPS://CMS.Example:8443/x?y=1", "https://cms.example:8443"},
		{"https://cms.example:443", "https://cms.example"},
		{"http://localhost:80/", "http://localhost"},
		{"http://localhost:4321", "http://localhost:4321"},
		{"http://[::1]:4321/admin", "http://[::1]:4321"},
		{"https://user:pw@cms.example/", "https://cms.example"},
		{"", Wildcard},
		{"   ", Wildcard},
		{"*", Wildcard},
		{"cms.example", Wildcard},
		{"localhost:4321", Wildcard},
		{"https://", Wildcard},
		{"javascript://cms.example", Wildcard},
		{"mailto:someone@cms.example", Wildcard},
		{"http://a b", Wildcard},
		{"%%%", Wildcard},
		{"http://[fe80::1%25en0]", "http://[fe80::1%25en0]"},
		{"http://[FE80::1%25en0]:8080/x", "http://[fe80::1%25en0]:8080"},
		{"http://cms.example:0080", "http://cms.example"},
		{"https://cms.example:0443/", "https://cms.example"},
		{"https://cms.example:08443", "https://cms.example:8443"},
		{"https://cms.example:65536", Wildcard},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	inputs := []string{
		"https://cms.example/admin",
		"HTTP://LOCALHOST:4321",
		"http://[::1]",
		"http://[::1]:8080/",
		"https://cms.example:443",
		"http://host:",
		"not a url",
		"",
		"*",
		"ftp://files.example",
		"https://xn--bcher-kva.example",
		"http://[fe80::1%25en0]",
		"http://[fe80::1%25en0]:8080",
		"http://cms.example:0080",
		"http://a%20b.example",
	}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "input %q", in)
	}
}

func TestFromHost(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"localhost", "http://localhost:4321"},
		{"localhost:3000", "http://localhost:3000"},
		{"127.0.0.1", "http://127.0.0.1:4321"},
		{"[::1]:8080", "http://[::1]:8080"},
		{"cms.example", "https://cms.example"},
		{"CMS.Example:8443", "https://cms.example:8443"},
		{"cms.example/blog", "https://cms.example"},
		{"https://cms.example/admin", "https://cms.example"},
		{"intranet", Wildcard},
		{"", Wildcard},
		{"bad host.example", Wildcard},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, FromHost(tt.in))
		})
	}
}

func TestPolicy_IsAllowed(t *testing.T) {
	t.Run("empty_allow_list_is_open", func(t *testing.T) {
		p := NewPolicy(nil, nil)
		assert.True(t, p.Open())
		assert.True(t, p.IsAllowed("https://anything.example"))
		assert.True(t, p.IsAllowed("http://cms.example:8080"))
	})

	t.Run("allow_list_is_literal_membership", func(t *testing.T) {
		p := NewPolicy([]string{"https://a.example"}, nil)
		assert.False(t, p.Open())
		assert.True(t, p.IsAllowed("https://a.example"))
		assert.False(t, p.IsAllowed("https://b.example"))
		assert.False(t, p.IsAllowed("http://a.example"))
		assert.False(t, p.IsAllowed("https://a.example:8443"))
	})

	t.Run("loopback_always_allowed", func(t *testing.T) {
		p := NewPolicy([]string{"https://a.example"}, nil)
		assert.True(t, p.IsAllowed("http://localhost:1234"))
		assert.True(t, p.IsAllowed("http://127.0.0.1"))
		assert.True(t, p.IsAllowed("https://localhost"))
		assert.True(t, p.IsAllowed("http://[::1]:4321"))
		assert.True(t, p.IsAllowed("http://app.localhost:3000"))
	})

	t.Run("trusted_always_allowed", func(t *testing.T) {
		p := NewPolicy([]string{"https://a.example"}, []string{"https://cms.example/"})
		assert.True(t, p.IsAllowed("https://cms.example"))
		assert.False(t, p.IsAllowed("https://evil.example"))
	})

	t.Run("wildcard_never_allowed", func(t *testing.T) {
		assert.False(t, NewPolicy(nil, nil).IsAllowed(Wildcard))
		assert.False(t, NewPolicy(nil, nil).IsAllowed(""))
		assert.False(t, NewPolicy([]string{"*"}, nil).IsAllowed(Wildcard))
	})

	t.Run("entries_are_normalized", func(t *testing.T) {
		p := NewPolicy([]string{" https://A.example/ ", "https://b.example:443"}, nil)
		assert.True(t, p.IsAllowed("https://a.example"))
		assert.True(t, p.IsAllowed("https://b.example"))
	})

	t.Run("invalid_entries_do_not_open_the_policy", func(t *testing.T) {
		p := NewPolicy([]string{"not an origin"}, nil)
		assert.False(t, p.Open())
		assert.False(t, p.IsAllowed("https://a.example"))
	})
}

func FuzzNormalize(f *testing.F) {
	for _, seed := range []string{
		"https://cms.example/admin",
		"http://[::1]:4321",
		"http://[fe80::1%25en0]:8080",
		"http://cms.example:0080",
		"https://user:pw@cms.example:443/",
		"http://a%20b.example",
		"localhost:4321",
		"*",
		"",
	} {
		f.Add(seed)
	}

	f.Fuzz(func(t *testing.T, in string) {
		once := Normalize(in)
		if once != Normalize(once) {
			t.Fatalf("Normalize(%q) = %q, Normalize(%q) = %q", in, once, once, Normalize(once))
		}
		if once != Wildcard && !strings.HasPrefix(once, "http://") && !strings.HasPrefix(once, "https://") {
			t.Fatalf("Normalize(%q) = %q, want an http(s) origin or %q", in, once, Wildcard)
		}
	})
}
