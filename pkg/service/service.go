// Package service defines the contracts between the orchestrator and the
// services it manages: how a service is launched, how a launched instance
// is stopped, and how readiness dependencies between services are declared.
//
// Example usage:
//
//	spec := service.Spec{
//	    ID: "api",
//	    Launch: service.LaunchFunc(func(ctx context.Context) (service.Handle, error) {
//	        srv, err := startAPIServer(ctx)
//	        if err != nil {
//	            return nil, err
//	        }
//	        return service.HandleFunc(srv.Shutdown), nil
//	    }),
//	    Check: &probe.HTTP{URL: "http://localhost:8080/health"},
//	    DependsOn: []service.Dependency{
//	        {Service: "db", Gate: service.GateHealthy},
//	    },
//	}
package service

import "context"

// Launcher starts one service instance. The orchestrator invokes Launch
// exactly once per service per run, after every dependency gate is
// satisfied.
type Launcher interface {
	// Launch starts the service and returns a handle for stopping it.
	// Launch returns as soon as the instance is running; readiness is
	// established separately through the health checker. A nil handle
	// with a nil error means there is nothing to stop.
	Launch(ctx context.Context) (Handle, error)
}

// LaunchFunc adapts a function to the Launcher interface.
type LaunchFunc func(ctx context.Context) (Handle, error)

// Launch calls f.
func (f LaunchFunc) Launch(ctx context.Context) (Handle, error) {
	return f(ctx)
}

// Handle controls a launched service instance.
type Handle interface {
	// Stop asks the instance to terminate and waits until it has exited
	// or the context deadline passes.
	Stop(ctx context.Context) error
}

// HandleFunc adapts a function to the Handle interface.
type HandleFunc func(ctx context.Context) error

// Stop calls f.
func (f HandleFunc) Stop(ctx context.Context) error {
	return f(ctx)
}

// NopHandle returns a Handle whose Stop does nothing. Useful for services
// that exit on their own or are torn down externally.
func NopHandle() Handle {
	return nopHandle{}
}

type nopHandle struct{}

func (nopHandle) Stop(context.Context) error { return nil }
