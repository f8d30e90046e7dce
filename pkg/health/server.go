package health

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"
)

// Server is the monitor surface: a managed HTTP server that exposes the
// health endpoints (/livez, /readyz, /healthz) plus any additional routes
// mounted on it, such as the orchestration report and event stream.
type Server struct {
	name            string
	addr            string
	health          *Health
	routes          map[string]http.Handler
	middleware      []func(http.Handler) http.Handler
	server          *http.Server
	readTimeout     time.Duration
	writeTimeout    time.Duration
	shutdownTimeout time.Duration
	maxHeaderBytes  int
	mu              sync.Mutex
	started         bool
}

// ServerOption is a functional option for configuring a Server.
type ServerOption func(*Server)

// WithReadTimeout sets the HTTP server read timeout.
func WithReadTimeout(timeout time.Duration) ServerOption {
	return func(s *Server) {
		s.readTimeout = timeout
	}
}

// WithWriteTimeout sets the HTTP server write timeout.
func WithWriteTimeout(timeout time.Duration) ServerOption {
	return func(s *Server) {
		s.writeTimeout = timeout
	}
}

// WithShutdownTimeout sets the graceful shutdown timeout.
func WithShutdownTimeout(timeout time.Duration) ServerOption {
	return func(s *Server) {
		s.shutdownTimeout = timeout
	}
}

// WithMaxHeaderBytes sets the maximum header bytes for the HTTP server.
func WithMaxHeaderBytes(bytes int) ServerOption {
	return func(s *Server) {
		s.maxHeaderBytes = bytes
	}
}

// WithRoute mounts an additional handler on the monitor server.
// Registering a path twice replaces the previous handler.
func WithRoute(path string, handler http.Handler) ServerOption {
	return func(s *Server) {
		s.routes[path] = handler
	}
}

// WithMiddleware wraps the whole monitor handler chain. Middleware is applied
// in registration order: the first registered middleware is outermost.
func WithMiddleware(mw func(http.Handler) http.Handler) ServerOption {
	return func(s *Server) {
		s.middleware = append(s.middleware, mw)
	}
}

// NewServer creates a monitor server bound to addr, serving the health
// endpoints of h.
//
// Example:
//
//	h := health.New()
//	srv := health.NewServer("monitor", ":8080", h,
//	    health.WithShutdownTimeout(30*time.Second),
//	)
func NewServer(name, addr string, h *Health, opts ...ServerOption) *Server {
	s := &Server{
		name:            name,
		addr:            addr,
		health:          h,
		routes:          make(map[string]http.Handler),
		readTimeout:     10 * time.Second,
		writeTimeout:    10 * time.Second,
		shutdownTimeout: 30 * time.Second,
		maxHeaderBytes:  1 << 20, // 1 MB
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Handler builds the full monitor handler: health endpoints, mounted routes,
// and the middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/livez", s.health.LivenessHandler())
	mux.HandleFunc("/readyz", s.health.ReadinessHandler())
	mux.HandleFunc("/healthz", s.health.HealthHandler())
	for path, handler := range s.routes {
		mux.Handle(path, handler)
	}

	var handler http.Handler = mux
	for i := len(s.middleware) - 1; i >= 0; i-- {
		handler = s.middleware[i](handler)
	}
	return handler
}

// Start starts the monitor server and blocks until the server is listening.
// It returns an error if the server fails to start.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("monitor %s already started", s.name)
	}

	s.server = &http.Server{
		Addr:           s.addr,
		Handler:        s.Handler(),
		ReadTimeout:    s.readTimeout,
		WriteTimeout:   s.writeTimeout,
		MaxHeaderBytes: s.maxHeaderBytes,
		BaseContext:    func(net.Listener) context.Context { return ctx },
	}

	// Start server in background
	errChan := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	// Wait a moment to check for immediate startup errors
	select {
	case err := <-errChan:
		return fmt.Errorf("failed to start monitor %s: %w", s.name, err)
	case <-time.After(100 * time.Millisecond):
		// Server started successfully
		s.started = true
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop gracefully stops the monitor server, waiting for in-flight requests to complete.
// It respects the context deadline for shutdown timeout.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	server := s.server
	started := s.started
	s.mu.Unlock()

	if !started || server == nil {
		return nil
	}

	// Use configured shutdown timeout if context has no deadline
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.shutdownTimeout)
		defer cancel()
	}

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown monitor %s: %w", s.name, err)
	}

	s.mu.Lock()
	s.started = false
	s.mu.Unlock()

	return nil
}

// Name returns the monitor name.
func (s *Server) Name() string {
	return s.name
}

// Running checks if the monitor server is up.
// Returns nil if running, error if not.
func (s *Server) Running() error {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()

	if !started {
		return fmt.Errorf("monitor %s not running", s.name)
	}

	return nil
}
