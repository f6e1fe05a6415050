// Package servicestest provides a scripted connector transport for tests.
package servicestest

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/akylbek/payment-system/payment-switch/internal/types"
)

type route struct {
	method string
	suffix string
	res    *types.Response
}

// Transport answers requests from routes matched on method and URL suffix,
// in registration order, and records every request it receives.
type Transport struct {
	mu       sync.Mutex
	routes   []route
	requests []*types.Request
	// Err, when set, is returned for every request.
	Err error
}

func NewTransport() *Transport {
	return &Transport{}
}

// On answers requests whose URL ends with suffix. An empty method matches any.
func (t *Transport) On(method, suffix string, status int, body string) *Transport {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.routes = append(t.routes, route{
		method: method,
		suffix: suffix,
		res:    &types.Response{StatusCode: status, Body: []byte(body), Headers: http.Header{}},
	})
	return t
}

func (t *Transport) Send(_ context.Context, _ string, req *types.Request) (*types.Response, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.requests = append(t.requests, req)
	if t.Err != nil {
		return nil, t.Err
	}
	for _, r := range t.routes {
		if r.method != "" && types.Method(r.method) != req.Method {
			continue
		}
		if strings.HasSuffix(req.URL, r.suffix) {
			return r.res, nil
		}
	}
	return &types.Response{StatusCode: http.StatusNotFound, Body: []byte(`{}`)}, nil
}

// Requests returns a snapshot of every request sent so far.
func (t *Transport) Requests() []*types.Request {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*types.Request(nil), t.requests...)
}

// Paths returns the URLs sent so far with base trimmed off.
func (t *Transport) Paths(base string) []string {
	reqs := t.Requests()
	out := make([]string, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, strings.TrimPrefix(r.URL, base))
	}
	return out
}

// Header returns the value of the named header of req.
func Header(req *types.Request, name string) string {
	for _, h := range req.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}
