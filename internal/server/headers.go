package server

import "net/http"

// copyRequestHeaders copies inbound headers into the broker request,
// excluding hop-by-hop headers (per RFC 9110) and credentials the broker
// never reads.
func copyRequestHeaders(dst, src http.Header) {
	for k, v := range src {
		switch k {
		case "Connection", "Upgrade", "Host",
			"Keep-Alive", "Transfer-Encoding", "TE", "Trailer",
			"Proxy-Authorization", "Proxy-Authenticate",
			"Authorization", "Cookie":
			continue
		}
		dst[k] = v
	}
}

// copyResponseHeaders writes broker response headers, replacing any value
// already set on dst.
func copyResponseHeaders(dst, src http.Header) {
	for k, v := range src {
		dst[k] = append([]string(nil), v...)
	}
}
