package broker

import (
	"net/url"
	"slices"
)

// Redacted replaces sensitive query values in logs
const Redacted = "REDACTED"

// sensitiveParams carry the authorization code or the state token
var sensitiveParams = []string{"code", "state"}

// RedactQuery encodes q with the code and state values masked
func RedactQuery(q url.Values) string {
	if len(q) == 0 {
		return ""
	}
	out := make(url.Values, len(q))
	for k, v := range q {
		if slices.Contains(sensitiveParams, k) {
			masked := make([]string, len(v))
			for i := range v {
				masked[i] = Redacted
			}
			out[k] = masked
			continue
		}
		out[k] = v
	}
	return out.Encode()
}

// RedactRawQuery parses and redacts a raw query string. Unparseable input is
// dropped entirely.
func RedactRawQuery(raw string) string {
	if raw == "" {
		return ""
	}
	q, err := url.ParseQuery(raw)
	if err != nil {
		return Redacted
	}
	return RedactQuery(q)
}
