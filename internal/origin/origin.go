// Package origin normalizes browser origins and decides which of them may
// take part in an OAuth flow.
package origin

import (
	"net"
	"net/url"
	"slices"
	"strconv"
	"strings"
)

// Wildcard means "any listener". It is never allowed by a Policy; the broker
// treats it as "no origin binding".
const Wildcard = "*"

// DevPort is assumed for loopback hosts given without a port
const DevPort = "4321"

// Normalize reduces an absolute http(s) URL to scheme://host[:port]. Anything
// else collapses to Wildcard. Ports are serialized the way browsers do: no
// leading zeros and no default port. Normalize is idempotent; an input whose
// reduction would not survive a second pass collapses to Wildcard.
func Normalize(raw string) string {
	out := normalize(raw)
	if out != Wildcard && normalize(out) != out {
		return Wildcard
	}
	return out
}

func normalize(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == Wildcard {
		return Wildcard
	}

	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" || u.Opaque != "" {
		return Wildcard
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return Wildcard
	}
	hostname := strings.ToLower(u.Hostname())
	if hostname == "" {
		return Wildcard
	}

	port, ok := canonicalPort(scheme, u.Port())
	if !ok {
		return Wildcard
	}

	// Hostname unescapes an IPv6 zone; it must be escaped again to parse.
	ipv6 := strings.Contains(hostname, ":")
	if ipv6 {
		hostname = strings.Replace(hostname, "%", "%25", 1)
	}

	host := hostname
	if port != "" {
		host = net.JoinHostPort(hostname, port)
	} else if ipv6 {
		host = "[" + hostname + "]"
	}
	return scheme + "://" + host
}

// canonicalPort strips leading zeros and drops the scheme's default port
func canonicalPort(scheme, port string) (string, bool) {
	if port == "" {
		return "", true
	}
	n, err := strconv.ParseUint(port, 10, 16)
	if err != nil {
		return "", false
	}
	if (scheme == "http" && n == 80) || (scheme == "https" && n == 443) {
		return "", true
	}
	return strconv.FormatUint(n, 10), true
}

// FromHost guesses an origin from a loosely structured site identifier: a full
// URL, a bare hostname or a host:port pair. Loopback hosts default to plain
// http on DevPort, dotted domain names to https.
func FromHost(site string) string {
	site = strings.TrimSpace(site)
	if site == "" {
		return Wildcard
	}
	if strings.Contains(site, "://") {
		return Normalize(site)
	}

	u, err := url.Parse("http://" + site)
	if err != nil || u.Hostname() == "" {
		return Wildcard
	}
	hostname := strings.ToLower(u.Hostname())
	port := u.Port()

	if IsLoopbackHost(hostname) {
		if port == "" {
			port = DevPort
		}
		return Normalize("http://" + net.JoinHostPort(hostname, port))
	}

	if strings.Contains(hostname, ".") {
		host := hostname
		if port != "" {
			host = net.JoinHostPort(hostname, port)
		}
		return Normalize("https://" + host)
	}

	return Wildcard
}

// IsLoopbackHost reports whether hostname names the local machine
func IsLoopbackHost(hostname string) bool {
	hostname = strings.Trim(strings.ToLower(hostname), "[]")
	if hostname == "localhost" || strings.HasSuffix(hostname, ".localhost") {
		return true
	}
	ip := net.ParseIP(hostname)
	return ip != nil && ip.IsLoopback()
}

// Policy is the origin allow-list
type Policy struct {
	allowList []string
	trusted   []string
}

// NewPolicy builds a policy. An empty allowList accepts any concrete origin.
// Trusted origins are always accepted, as is any loopback origin.
// Entries are normalized; entries that are not valid origins are kept as
// written so they never widen the policy.
func NewPolicy(allowList, trusted []string) Policy {
	return Policy{
		allowList: normalizeAll(allowList),
		trusted:   normalizeAll(trusted),
	}
}

func normalizeAll(entries []string) []string {
	out := make([]string, 0, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if normalized := Normalize(entry); normalized != Wildcard {
			entry = normalized
		}
		out = append(out, entry)
	}
	return out
}

// Open reports whether the allow-list is empty
func (p Policy) Open() bool {
	return len(p.allowList) == 0
}

// IsAllowed reports whether a normalized origin may start a flow
func (p Policy) IsAllowed(origin string) bool {
	if origin == "" || origin == Wildcard {
		return false
	}
	if isLoopbackOrigin(origin) {
		return true
	}
	if slices.Contains(p.trusted, origin) {
		return true
	}
	if len(p.allowList) == 0 {
		return true
	}
	return slices.Contains(p.allowList, origin)
}

func isLoopbackOrigin(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return IsLoopbackHost(u.Hostname())
}
