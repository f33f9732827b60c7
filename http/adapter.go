package http

import (
	"io"
	"net/http"
)

// Adapter provides framework-agnostic access to an HTTP request. Implement it
// for each web framework; RequestAdapter covers net/http and anything built
// on it.
type Adapter interface {
	GetHeader(name string) string
	GetMethod() string
	GetPath() string
	GetURL() string
	GetQueryParam(name string) string
	GetAcceptHeader() string
	GetUserAgent() string
}

// RequestAdapter adapts a *http.Request to the Adapter interface.
type RequestAdapter struct {
	r *http.Request
}

// NewRequestAdapter wraps a net/http request.
func NewRequestAdapter(r *http.Request) *RequestAdapter {
	return &RequestAdapter{r: r}
}

func (a *RequestAdapter) GetHeader(name string) string { return a.r.Header.Get(name) }
func (a *RequestAdapter) GetMethod() string            { return a.r.Method }
func (a *RequestAdapter) GetPath() string              { return a.r.URL.Path }

// GetURL reconstructs the absolute URL of the request.
func (a *RequestAdapter) GetURL() string {
	scheme := "http"
	if a.r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + a.r.Host + a.r.RequestURI
}

func (a *RequestAdapter) GetQueryParam(name string) string { return a.r.URL.Query().Get(name) }
func (a *RequestAdapter) GetAcceptHeader() string          { return a.r.Header.Get("Accept") }
func (a *RequestAdapter) GetUserAgent() string             { return a.r.Header.Get("User-Agent") }

// Request returns the underlying request.
func (a *RequestAdapter) Request() *http.Request { return a.r }

// Body reads and returns the request body.
func (a *RequestAdapter) Body() ([]byte, error) {
	if a.r.Body == nil {
		return nil, nil
	}
	return io.ReadAll(a.r.Body)
}
