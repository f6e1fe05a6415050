package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/payment-switch/internal/telemetry"
	"github.com/akylbek/payment-system/payment-switch/internal/types"
)

var errServerStatus = errors.New("connector returned a server error")

// HTTPTransport sends connector requests over HTTP. Every connector gets its
// own circuit breaker so one failing processor cannot exhaust the others.
type HTTPTransport struct {
	client *http.Client

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

func NewHTTPTransport(timeout time.Duration) *HTTPTransport {
	return &HTTPTransport{
		client:   &http.Client{Timeout: timeout},
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

func (t *HTTPTransport) breaker(connector string) *gobreaker.CircuitBreaker {
	t.mu.Lock()
	defer t.mu.Unlock()

	if cb, ok := t.breakers[connector]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        connector,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			telemetry.Logger.Warn("Connector circuit breaker state changed",
				zap.String("connector", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	t.breakers[connector] = cb
	return cb
}

// Send performs req. A 5xx response counts against the breaker but is still
// handed back to the caller as a response, not an error.
func (t *HTTPTransport) Send(ctx context.Context, connector string, req *types.Request) (*types.Response, error) {
	result, err := t.breaker(connector).Execute(func() (interface{}, error) {
		return t.do(ctx, req)
	})
	if errors.Is(err, errServerStatus) {
		return result.(*types.Response), nil
	}
	if err != nil {
		return nil, fmt.Errorf("send %s %s: %w", req.Method, req.URL, err)
	}
	return result.(*types.Response), nil
}

func (t *HTTPTransport) do(ctx context.Context, req *types.Request) (*types.Response, error) {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, string(req.Method), req.URL, body)
	if err != nil {
		return nil, err
	}
	for _, h := range req.Headers {
		httpReq.Header.Add(h.Name, h.Value)
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	res := &types.Response{
		StatusCode: resp.StatusCode,
		Body:       raw,
		Headers:    resp.Header,
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return res, errServerStatus
	}
	return res, nil
}
