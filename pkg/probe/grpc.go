package probe

import (
	"context"
	"fmt"
	"sync"

	"github.com/Combine-Capital/cqo/pkg/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// GRPC probes a gRPC server through the standard health service
// (grpc.health.v1.Health). Anything other than SERVING is a transient
// failure.
type GRPC struct {
	// Target is the dial target, e.g. localhost:9090. Required.
	Target string

	// Service is the health service name to query; empty checks overall
	// server health.
	Service string

	// DialOptions override the default insecure transport.
	DialOptions []grpc.DialOption

	mu   sync.Mutex
	conn *grpc.ClientConn
}

// Check queries the health service once.
func (g *GRPC) Check(ctx context.Context) error {
	conn, err := g.lazyConn()
	if err != nil {
		return err
	}

	resp, err := grpc_health_v1.NewHealthClient(conn).Check(ctx, &grpc_health_v1.HealthCheckRequest{
		Service: g.Service,
	})
	if err != nil {
		return fmt.Errorf("grpc probe %s: %w", g.Target, err)
	}
	if status := resp.GetStatus(); status != grpc_health_v1.HealthCheckResponse_SERVING {
		return fmt.Errorf("grpc probe %s: status %s", g.Target, status)
	}
	return nil
}

func (g *GRPC) lazyConn() (*grpc.ClientConn, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.conn != nil {
		return g.conn, nil
	}
	if g.Target == "" {
		return nil, errors.NewPermanent("grpc probe requires a target", nil)
	}

	opts := g.DialOptions
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}

	// NewClient only parses the target; connections are established on
	// first use, so failures here cannot heal.
	conn, err := grpc.NewClient(g.Target, opts...)
	if err != nil {
		return nil, errors.NewPermanent("grpc probe: invalid target", err)
	}
	g.conn = conn
	return conn, nil
}

// Close tears down the underlying client connection.
func (g *GRPC) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.conn != nil {
		err := g.conn.Close()
		g.conn = nil
		return err
	}
	return nil
}
