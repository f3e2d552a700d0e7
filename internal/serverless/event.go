package serverless

import (
	"net/http"
	"net/url"
	"strings"
)

// Event is an API gateway request. It accepts the API Gateway REST (v1) and
// HTTP API (v2) payloads as well as Tencent SCF API gateway triggers.
type Event struct {
	// v1 and SCF
	HTTPMethod string `json:"httpMethod"`
	Path       string `json:"path"`

	// v2
	Version        string `json:"version"`
	RawPath        string `json:"rawPath"`
	RawQueryString string `json:"rawQueryString"`

	QueryStringParameters           map[string]string   `json:"queryStringParameters"`
	MultiValueQueryStringParameters map[string][]string `json:"multiValueQueryStringParameters"`
	// SCF
	QueryString map[string]string `json:"queryString"`

	Headers           map[string]string   `json:"headers"`
	MultiValueHeaders map[string][]string `json:"multiValueHeaders"`

	RequestContext RequestContext `json:"requestContext"`

	Body            string `json:"body"`
	IsBase64Encoded bool   `json:"isBase64Encoded"`
}

// RequestContext carries the method and path for v2 events and the method
// for some SCF triggers.
type RequestContext struct {
	HTTPMethod string      `json:"httpMethod"`
	Path       string      `json:"path"`
	HTTP       HTTPContext `json:"http"`
}

// HTTPContext is the v2 requestContext.http block
type HTTPContext struct {
	Method string `json:"method"`
	Path   string `json:"path"`
}

// EventResponse is the gateway response payload shared by all event shapes
type EventResponse struct {
	StatusCode      int               `json:"statusCode"`
	Headers         map[string]string `json:"headers"`
	Body            string            `json:"body"`
	IsBase64Encoded bool              `json:"isBase64Encoded"`
}

// Method returns the request method, GET when the event carries none
func (e Event) Method() string {
	for _, m := range []string{e.HTTPMethod, e.RequestContext.HTTP.Method, e.RequestContext.HTTPMethod} {
		if m != "" {
			return strings.ToUpper(m)
		}
	}
	return http.MethodGet
}

// RequestPath returns the request path, "/" when the event carries none
func (e Event) RequestPath() string {
	for _, p := range []string{e.Path, e.RawPath, e.RequestContext.HTTP.Path, e.RequestContext.Path} {
		if p != "" {
			return p
		}
	}
	return "/"
}

// Query returns whichever query representation the event carries. The
// multi-value map wins, then the v2 raw string, then the single-value maps.
func (e Event) Query() url.Values {
	if len(e.MultiValueQueryStringParameters) > 0 {
		q := make(url.Values, len(e.MultiValueQueryStringParameters))
		for k, v := range e.MultiValueQueryStringParameters {
			q[k] = append([]string(nil), v...)
		}
		return q
	}
	if e.RawQueryString != "" {
		if q, err := url.ParseQuery(e.RawQueryString); err == nil {
			return q
		}
	}
	for _, m := range []map[string]string{e.QueryStringParameters, e.QueryString} {
		if len(m) == 0 {
			continue
		}
		q := make(url.Values, len(m))
		for k, v := range m {
			q.Set(k, v)
		}
		return q
	}
	return url.Values{}
}

// Header returns the event headers in canonical form
func (e Event) Header() http.Header {
	h := make(http.Header, len(e.Headers)+len(e.MultiValueHeaders))
	for k, v := range e.MultiValueHeaders {
		for _, s := range v {
			h.Add(k, s)
		}
	}
	for k, v := range e.Headers {
		if h.Get(k) == "" {
			h.Set(k, v)
		}
	}
	return h
}
