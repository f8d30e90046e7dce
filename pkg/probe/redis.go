package probe

import (
	"context"
	"fmt"
	"sync"

	"github.com/Combine-Capital/cqo/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Redis probes a Redis server with PING.
type Redis struct {
	// URL is a redis:// connection URL; it takes precedence over Addr.
	URL string

	// Addr is the host:port used when URL is empty.
	Addr string

	// Password and DB apply when connecting by Addr.
	Password string
	DB       int

	mu     sync.Mutex
	client *redis.Client
}

// Check sends PING. Connection errors are transient; an unparsable URL is
// permanent.
func (r *Redis) Check(ctx context.Context) error {
	client, err := r.lazyClient()
	if err != nil {
		return err
	}
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis probe: %w", err)
	}
	return nil
}

func (r *Redis) lazyClient() (*redis.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.client != nil {
		return r.client, nil
	}

	var opts *redis.Options
	switch {
	case r.URL != "":
		parsed, err := redis.ParseURL(r.URL)
		if err != nil {
			return nil, errors.NewPermanent("redis probe: invalid URL", err)
		}
		opts = parsed
	case r.Addr != "":
		opts = &redis.Options{Addr: r.Addr, Password: r.Password, DB: r.DB}
	default:
		return nil, errors.NewPermanent("redis probe requires a URL or an address", nil)
	}

	r.client = redis.NewClient(opts)
	return r.client, nil
}

// Close releases the underlying Redis client.
func (r *Redis) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.client != nil {
		err := r.client.Close()
		r.client = nil
		return err
	}
	return nil
}
