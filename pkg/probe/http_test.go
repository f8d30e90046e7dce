package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/Combine-Capital/cqo/pkg/errors"
)

func TestHTTPCheck(t *testing.T) {
	t.Run("2xx is healthy", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		p := &HTTP{URL: server.URL}
		defer p.Close()

		if err := p.Check(context.Background()); err != nil {
			t.Errorf("Check() error = %v", err)
		}
	})

	t.Run("5xx is transient", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		p := &HTTP{URL: server.URL}
		defer p.Close()

		err := p.Check(context.Background())
		if err == nil {
			t.Fatal("Check() error = nil, want status failure")
		}
		if errors.IsPermanent(err) {
			t.Errorf("Check() error = %v, want transient", err)
		}
	})

	t.Run("expected status pins the match", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))
		defer server.Close()

		pinned := &HTTP{URL: server.URL, ExpectedStatus: http.StatusNoContent}
		defer pinned.Close()
		if err := pinned.Check(context.Background()); err != nil {
			t.Errorf("Check() error = %v", err)
		}

		mismatched := &HTTP{URL: server.URL, ExpectedStatus: http.StatusOK}
		defer mismatched.Close()
		if err := mismatched.Check(context.Background()); err == nil {
			t.Error("Check() error = nil, want status mismatch")
		}
	})

	t.Run("custom method", func(t *testing.T) {
		var gotMethod atomic.Value
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotMethod.Store(r.Method)
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		p := &HTTP{URL: server.URL, Method: http.MethodHead}
		defer p.Close()
		if err := p.Check(context.Background()); err != nil {
			t.Fatalf("Check() error = %v", err)
		}
		if gotMethod.Load() != http.MethodHead {
			t.Errorf("method = %v, want HEAD", gotMethod.Load())
		}
	})

	t.Run("connection refused is transient", func(t *testing.T) {
		p := &HTTP{URL: "http://127.0.0.1:1"}
		defer p.Close()

		err := p.Check(context.Background())
		if err == nil {
			t.Fatal("Check() error = nil, want dial failure")
		}
		if errors.IsPermanent(err) {
			t.Errorf("Check() error = %v, want transient", err)
		}
	})

	t.Run("missing URL is permanent", func(t *testing.T) {
		p := &HTTP{}
		if err := p.Check(context.Background()); !errors.IsPermanent(err) {
			t.Errorf("Check() error = %v, want permanent", err)
		}
	})

	t.Run("client is reused", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		p := &HTTP{URL: server.URL}
		defer p.Close()

		if err := p.Check(context.Background()); err != nil {
			t.Fatalf("first Check() error = %v", err)
		}
		first := p.client
		if err := p.Check(context.Background()); err != nil {
			t.Fatalf("second Check() error = %v", err)
		}
		if p.client != first {
			t.Error("client was recreated between checks")
		}
	})
}
