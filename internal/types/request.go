package types

import (
	"net/http"
)

type Method string

const (
	MethodGet    Method = http.MethodGet
	MethodPost   Method = http.MethodPost
	MethodPut    Method = http.MethodPut
	MethodDelete Method = http.MethodDelete
)

type Header struct {
	Name  string
	Value string
}

// Request is a fully composed outbound connector call.
type Request struct {
	Method  Method
	URL     string
	Headers []Header
	Body    []byte
}

// Response is what the transport hands back for a completed call.
type Response struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
}

// IsSuccess reports a 2xx status.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

type RequestBuilder struct {
	req Request
}

func NewRequestBuilder() *RequestBuilder {
	return &RequestBuilder{}
}

func (b *RequestBuilder) Method(m Method) *RequestBuilder {
	b.req.Method = m
	return b
}

func (b *RequestBuilder) URL(url string) *RequestBuilder {
	b.req.URL = url
	return b
}

func (b *RequestBuilder) Headers(headers []Header) *RequestBuilder {
	b.req.Headers = append(b.req.Headers, headers...)
	return b
}

func (b *RequestBuilder) Body(body []byte) *RequestBuilder {
	b.req.Body = body
	return b
}

func (b *RequestBuilder) Build() *Request {
	req := b.req
	return &req
}
