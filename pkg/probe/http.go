package probe

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/Combine-Capital/cqo/pkg/errors"
	"github.com/Combine-Capital/cqo/pkg/tracing"
	"resty.dev/v3"
)

// HTTP probes an HTTP endpoint. The zero Method defaults to GET and a zero
// ExpectedStatus accepts any 2xx response. Trace context is propagated on
// every request so probe traffic shows up under the orchestration span.
type HTTP struct {
	// URL is the absolute target URL. Required.
	URL string

	// Method is the HTTP method. Default: GET.
	Method string

	// ExpectedStatus pins the healthy status code. Zero accepts any 2xx.
	ExpectedStatus int

	// Timeout bounds a single request in addition to the ctx deadline.
	Timeout time.Duration

	mu     sync.Mutex
	client *resty.Client
}

// Check performs one request. Transport errors and unexpected status codes
// are transient failures.
func (h *HTTP) Check(ctx context.Context) error {
	if h.URL == "" {
		return errors.NewPermanent("http probe requires a URL", nil)
	}

	method := h.Method
	if method == "" {
		method = http.MethodGet
	}

	headers := http.Header{}
	tracing.InjectHTTP(ctx, headers)

	req := h.lazyClient().R().SetContext(ctx)
	for key, values := range headers {
		for _, value := range values {
			req.SetHeader(key, value)
		}
	}

	resp, err := req.Execute(method, h.URL)
	if err != nil {
		return fmt.Errorf("http probe %s %s: %w", method, h.URL, err)
	}

	status := resp.StatusCode()
	if h.ExpectedStatus != 0 {
		if status != h.ExpectedStatus {
			return fmt.Errorf("http probe %s %s: status %d, want %d", method, h.URL, status, h.ExpectedStatus)
		}
		return nil
	}
	if status < 200 || status > 299 {
		return fmt.Errorf("http probe %s %s: status %d", method, h.URL, status)
	}
	return nil
}

func (h *HTTP) lazyClient() *resty.Client {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.client == nil {
		h.client = resty.New()
		if h.Timeout > 0 {
			h.client.SetTimeout(h.Timeout)
		}
	}
	return h.client
}

// Close releases the underlying HTTP client.
func (h *HTTP) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.client != nil {
		h.client.Close()
		h.client = nil
	}
	return nil
}
