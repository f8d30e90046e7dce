package service

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// CleanupFunc is a stop or cleanup step executed during shutdown.
// Orchestrator.Shutdown and health.Server.Stop both satisfy it.
type CleanupFunc func(context.Context) error

// ShutdownConfig configures graceful shutdown behavior.
type ShutdownConfig struct {
	// Timeout is the maximum time to wait for the stop functions.
	Timeout time.Duration

	// Signals is the list of OS signals that trigger shutdown.
	// If empty, defaults to SIGINT and SIGTERM.
	Signals []os.Signal
}

// DefaultShutdownConfig returns sensible default shutdown configuration.
func DefaultShutdownConfig() ShutdownConfig {
	return ShutdownConfig{
		Timeout: 30 * time.Second,
		Signals: []os.Signal{syscall.SIGINT, syscall.SIGTERM},
	}
}

// WaitForShutdown blocks until a shutdown signal arrives or the context is
// cancelled, then runs the provided stop functions in order under a shared
// timeout. It handles SIGINT and SIGTERM by default.
//
// Example:
//
//	go orch.Run(runCtx)
//	service.WaitForShutdown(ctx, orch.Shutdown, monitor.Stop)
func WaitForShutdown(ctx context.Context, stops ...CleanupFunc) {
	WaitForShutdownWithConfig(ctx, DefaultShutdownConfig(), stops...)
}

// WaitForShutdownWithConfig is like WaitForShutdown but accepts custom
// shutdown configuration.
//
// Example:
//
//	cfg := service.ShutdownConfig{
//	    Timeout: 60 * time.Second,
//	    Signals: []os.Signal{syscall.SIGTERM},
//	}
//	service.WaitForShutdownWithConfig(ctx, cfg, orch.Shutdown)
func WaitForShutdownWithConfig(ctx context.Context, cfg ShutdownConfig, stops ...CleanupFunc) {
	signals := cfg.Signals
	if len(signals) == 0 {
		signals = []os.Signal{syscall.SIGINT, syscall.SIGTERM}
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, signals...)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		fmt.Printf("Received signal: %v, initiating graceful shutdown...\n", sig)
	case <-ctx.Done():
		fmt.Println("Context cancelled, initiating graceful shutdown...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	for _, stop := range stops {
		if err := stop(shutdownCtx); err != nil {
			fmt.Printf("Shutdown error: %v\n", err)
		}
	}

	fmt.Println("Graceful shutdown completed")
}

// CleanupHandler manages cleanup functions that should run during shutdown.
// Cleanup functions execute in LIFO order (last registered, first executed).
type CleanupHandler struct {
	cleanups []CleanupFunc
}

// NewCleanupHandler creates a new cleanup handler.
func NewCleanupHandler() *CleanupHandler {
	return &CleanupHandler{
		cleanups: make([]CleanupFunc, 0),
	}
}

// Register adds a cleanup function to be executed during shutdown.
//
// Example:
//
//	cleanup := service.NewCleanupHandler()
//	cleanup.Register(monitor.Stop)
//	cleanup.Register(orch.Shutdown)
//	defer cleanup.Execute(ctx)
func (h *CleanupHandler) Register(fn CleanupFunc) {
	h.cleanups = append(h.cleanups, fn)
}

// Execute runs all registered cleanup functions in reverse order. It keeps
// going when a function fails and returns the first error encountered.
func (h *CleanupHandler) Execute(ctx context.Context) error {
	var firstErr error

	for i := len(h.cleanups) - 1; i >= 0; i-- {
		if err := h.cleanups[i](ctx); err != nil {
			fmt.Printf("Cleanup error: %v\n", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}
