package broker

import (
	"net/http"
	"net/url"

	jsonwriter "github.com/dgellow/github-oauth-broker/internal/json"
	"github.com/dgellow/github-oauth-broker/internal/log"
)

// Request is the runtime independent view of an inbound request
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
}

// Response is the runtime independent view of an outbound response
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

const htmlContentType = "text/html; charset=utf-8"

func newHeader(contentType string) http.Header {
	h := http.Header{}
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	h.Set("Cache-Control", "no-store")
	return h
}

// JSON builds a JSON response
func JSON(status int, data any) Response {
	body, err := jsonwriter.Encode(data)
	if err != nil {
		log.LogError("Failed to encode JSON response: %v", err)
		status = http.StatusInternalServerError
		body = []byte(`{"error":"Internal server error"}`)
	}
	return Response{Status: status, Header: newHeader(jsonwriter.ContentType), Body: body}
}

// JSONError builds a {"error": message} response
func JSONError(status int, message string) Response {
	return JSON(status, jsonwriter.ErrorResponse{Error: message})
}

// HTML builds an HTML response
func HTML(status int, body []byte) Response {
	return Response{Status: status, Header: newHeader(htmlContentType), Body: body}
}

// Redirect builds a 302 response with an empty body
func Redirect(location string) Response {
	h := newHeader("")
	h.Set("Location", location)
	return Response{Status: http.StatusFound, Header: h}
}
