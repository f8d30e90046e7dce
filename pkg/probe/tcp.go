package probe

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/Combine-Capital/cqo/pkg/errors"
)

// TCP probes a TCP address: a successfully established connection means
// healthy. The connection is closed immediately.
type TCP struct {
	// Addr is the host:port to dial. Required.
	Addr string

	// Timeout bounds the dial in addition to the ctx deadline.
	Timeout time.Duration
}

// Check dials the address once.
func (t *TCP) Check(ctx context.Context) error {
	if t.Addr == "" {
		return errors.NewPermanent("tcp probe requires an address", nil)
	}

	dialer := net.Dialer{Timeout: t.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", t.Addr)
	if err != nil {
		return fmt.Errorf("tcp probe %s: %w", t.Addr, err)
	}
	return conn.Close()
}
