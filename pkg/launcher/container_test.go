package launcher

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/go-connections/nat"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/Combine-Capital/cqo/pkg/errors"
)

type createCall struct {
	config *container.Config
	host   *container.HostConfig
	name   string
}

type stopCall struct {
	id      string
	timeout *int
}

// fakeDockerClient records Engine API calls and returns configured errors.
type fakeDockerClient struct {
	mu sync.Mutex

	pingErr   error
	pullErr   error
	createErr error
	startErr  error
	stopErr   error
	removeErr error

	pulled  []string
	created []createCall
	started []string
	stopped []stopCall
	removed []string
}

var _ DockerClient = (*fakeDockerClient)(nil)

func (f *fakeDockerClient) Ping(context.Context) (types.Ping, error) {
	return types.Ping{}, f.pingErr
}

func (f *fakeDockerClient) ImagePull(_ context.Context, refStr string, _ image.PullOptions) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pullErr != nil {
		return nil, f.pullErr
	}
	f.pulled = append(f.pulled, refStr)
	return io.NopCloser(strings.NewReader("{}")), nil
}

func (f *fakeDockerClient) ContainerCreate(_ context.Context, config *container.Config, host *container.HostConfig, _ *network.NetworkingConfig, _ *ocispec.Platform, name string) (container.CreateResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return container.CreateResponse{}, f.createErr
	}
	f.created = append(f.created, createCall{config: config, host: host, name: name})
	return container.CreateResponse{ID: fmt.Sprintf("cid-%d", len(f.created))}, nil
}

func (f *fakeDockerClient) ContainerStart(_ context.Context, id string, _ container.StartOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.started = append(f.started, id)
	return nil
}

func (f *fakeDockerClient) ContainerStop(_ context.Context, id string, opts container.StopOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopErr != nil {
		return f.stopErr
	}
	f.stopped = append(f.stopped, stopCall{id: id, timeout: opts.Timeout})
	return nil
}

func (f *fakeDockerClient) ContainerRemove(_ context.Context, id string, _ container.RemoveOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.removeErr != nil {
		return f.removeErr
	}
	f.removed = append(f.removed, id)
	return nil
}

func TestContainerLaunch(t *testing.T) {
	ctx := context.Background()

	t.Run("creates and starts", func(t *testing.T) {
		fake := &fakeDockerClient{}
		c := &Container{
			Image:  "redis:7-alpine",
			Name:   "cqo-redis",
			Cmd:    []string{"redis-server", "--appendonly", "no"},
			Env:    map[string]string{"B": "2", "A": "1"},
			Ports:  []string{"6379:6379"},
			Client: fake,
		}

		handle, err := c.Launch(ctx)
		if err != nil {
			t.Fatalf("Launch() error = %v", err)
		}
		ch, ok := handle.(*ContainerHandle)
		if !ok {
			t.Fatalf("Launch() handle = %T, want *ContainerHandle", handle)
		}
		if ch.ID() != "cid-1" {
			t.Errorf("ID() = %q, want cid-1", ch.ID())
		}

		if len(fake.created) != 1 {
			t.Fatalf("created %d containers, want 1", len(fake.created))
		}
		call := fake.created[0]
		if call.name != "cqo-redis" {
			t.Errorf("container name = %q, want cqo-redis", call.name)
		}
		if call.config.Image != "redis:7-alpine" {
			t.Errorf("image = %q, want redis:7-alpine", call.config.Image)
		}
		if got := []string(call.config.Cmd); len(got) != 3 || got[0] != "redis-server" {
			t.Errorf("cmd = %v, want redis-server argv", got)
		}
		if got := call.config.Env; len(got) != 2 || got[0] != "A=1" || got[1] != "B=2" {
			t.Errorf("env = %v, want sorted [A=1 B=2]", got)
		}
		port := nat.Port("6379/tcp")
		if _, ok := call.config.ExposedPorts[port]; !ok {
			t.Errorf("exposed ports %v missing %s", call.config.ExposedPorts, port)
		}
		bindings := call.host.PortBindings[port]
		if len(bindings) != 1 || bindings[0].HostPort != "6379" {
			t.Errorf("port bindings = %v, want host port 6379", bindings)
		}

		if len(fake.started) != 1 || fake.started[0] != "cid-1" {
			t.Errorf("started = %v, want [cid-1]", fake.started)
		}
		if len(fake.pulled) != 0 {
			t.Errorf("pulled = %v, want no pulls without Pull", fake.pulled)
		}
	})

	t.Run("pulls when requested", func(t *testing.T) {
		fake := &fakeDockerClient{}
		c := &Container{Image: "postgres:16-alpine", Pull: true, Client: fake}
		if _, err := c.Launch(ctx); err != nil {
			t.Fatalf("Launch() error = %v", err)
		}
		if len(fake.pulled) != 1 || fake.pulled[0] != "postgres:16-alpine" {
			t.Errorf("pulled = %v, want [postgres:16-alpine]", fake.pulled)
		}
	})

	t.Run("missing image is permanent", func(t *testing.T) {
		c := &Container{Client: &fakeDockerClient{}}
		if _, err := c.Launch(ctx); !errors.IsPermanent(err) {
			t.Fatalf("Launch() error = %v, want permanent", err)
		}
	})

	t.Run("invalid port spec is permanent", func(t *testing.T) {
		c := &Container{Image: "redis:7", Ports: []string{"not-a-port"}, Client: &fakeDockerClient{}}
		if _, err := c.Launch(ctx); !errors.IsPermanent(err) {
			t.Fatalf("Launch() error = %v, want permanent", err)
		}
	})

	t.Run("daemon unreachable", func(t *testing.T) {
		fake := &fakeDockerClient{pingErr: fmt.Errorf("connection refused")}
		c := &Container{Image: "redis:7", Client: fake}
		_, err := c.Launch(ctx)
		if err == nil || !strings.Contains(err.Error(), "Docker daemon") {
			t.Fatalf("Launch() error = %v, want daemon hint", err)
		}
		if errors.IsPermanent(err) {
			t.Errorf("daemon outage should not be permanent: %v", err)
		}
	})

	t.Run("pull failure", func(t *testing.T) {
		fake := &fakeDockerClient{pullErr: fmt.Errorf("manifest unknown")}
		c := &Container{Image: "ghost:latest", Pull: true, Client: fake}
		if _, err := c.Launch(ctx); err == nil {
			t.Fatal("Launch() error = nil, want pull error")
		}
		if len(fake.created) != 0 {
			t.Errorf("created = %v, want none after pull failure", fake.created)
		}
	})

	t.Run("start failure removes the created container", func(t *testing.T) {
		fake := &fakeDockerClient{startErr: fmt.Errorf("port already allocated")}
		c := &Container{Image: "redis:7", Client: fake}
		if _, err := c.Launch(ctx); err == nil {
			t.Fatal("Launch() error = nil, want start error")
		}
		if len(fake.removed) != 1 || fake.removed[0] != "cid-1" {
			t.Errorf("removed = %v, want [cid-1]", fake.removed)
		}
	})
}

func TestContainerHandleStop(t *testing.T) {
	launch := func(t *testing.T, fake *fakeDockerClient, remove bool) *ContainerHandle {
		t.Helper()
		c := &Container{Image: "redis:7", Remove: remove, Client: fake}
		handle, err := c.Launch(context.Background())
		if err != nil {
			t.Fatalf("Launch() error = %v", err)
		}
		return handle.(*ContainerHandle)
	}

	t.Run("grace period from deadline", func(t *testing.T) {
		fake := &fakeDockerClient{}
		h := launch(t, fake, false)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := h.Stop(ctx); err != nil {
			t.Fatalf("Stop() error = %v", err)
		}

		if len(fake.stopped) != 1 {
			t.Fatalf("stopped %d containers, want 1", len(fake.stopped))
		}
		call := fake.stopped[0]
		if call.id != "cid-1" {
			t.Errorf("stopped id = %q, want cid-1", call.id)
		}
		if call.timeout == nil || *call.timeout < 1 || *call.timeout > 30 {
			t.Errorf("stop timeout = %v, want 1..30 seconds", call.timeout)
		}
		if len(fake.removed) != 0 {
			t.Errorf("removed = %v, want none without Remove", fake.removed)
		}
	})

	t.Run("no deadline leaves engine default", func(t *testing.T) {
		fake := &fakeDockerClient{}
		h := launch(t, fake, false)
		if err := h.Stop(context.Background()); err != nil {
			t.Fatalf("Stop() error = %v", err)
		}
		if fake.stopped[0].timeout != nil {
			t.Errorf("stop timeout = %d, want nil without deadline", *fake.stopped[0].timeout)
		}
	})

	t.Run("removes after stop", func(t *testing.T) {
		fake := &fakeDockerClient{}
		h := launch(t, fake, true)
		if err := h.Stop(context.Background()); err != nil {
			t.Fatalf("Stop() error = %v", err)
		}
		if len(fake.removed) != 1 || fake.removed[0] != "cid-1" {
			t.Errorf("removed = %v, want [cid-1]", fake.removed)
		}
	})

	t.Run("stop error", func(t *testing.T) {
		fake := &fakeDockerClient{}
		h := launch(t, fake, true)
		fake.stopErr = fmt.Errorf("no such container")
		if err := h.Stop(context.Background()); err == nil {
			t.Fatal("Stop() error = nil, want error")
		}
		if len(fake.removed) != 0 {
			t.Errorf("removed = %v, want none after stop failure", fake.removed)
		}
	})
}
