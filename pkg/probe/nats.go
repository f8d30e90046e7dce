package probe

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Combine-Capital/cqo/pkg/errors"
	"github.com/nats-io/nats.go"
)

// NATS probes a NATS server with a flush round-trip.
type NATS struct {
	// URL is the server URL, e.g. nats://localhost:4222. Required.
	URL string

	// DialTimeout bounds connection establishment. Default: 5 seconds.
	DialTimeout time.Duration

	mu   sync.Mutex
	conn *nats.Conn
}

// Check flushes the connection, which requires a PONG from the server.
// Connection and flush errors are transient.
func (n *NATS) Check(ctx context.Context) error {
	conn, err := n.lazyConn()
	if err != nil {
		return err
	}
	if err := conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("nats probe %s: %w", n.URL, err)
	}
	return nil
}

func (n *NATS) lazyConn() (*nats.Conn, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.conn != nil && !n.conn.IsClosed() {
		return n.conn, nil
	}
	if n.URL == "" {
		return nil, errors.NewPermanent("nats probe requires a URL", nil)
	}

	timeout := n.DialTimeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	conn, err := nats.Connect(n.URL,
		nats.Timeout(timeout),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats probe %s: %w", n.URL, err)
	}
	n.conn = conn
	return conn, nil
}

// Close drains the underlying connection.
func (n *NATS) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.conn != nil {
		n.conn.Close()
		n.conn = nil
	}
	return nil
}
