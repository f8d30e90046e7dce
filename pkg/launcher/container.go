package launcher

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/Combine-Capital/cqo/pkg/errors"
	"github.com/Combine-Capital/cqo/pkg/service"
)

// DockerClient is the slice of the Docker Engine API that Container uses.
// *client.Client satisfies it; tests substitute fakes.
type DockerClient interface {
	Ping(ctx context.Context) (types.Ping, error)
	ImagePull(ctx context.Context, refStr string, options image.PullOptions) (io.ReadCloser, error)
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerStop(ctx context.Context, containerID string, options container.StopOptions) error
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
}

var _ DockerClient = (*client.Client)(nil)

// Container launches a service as a Docker container.
type Container struct {
	// Image is the container image reference, e.g. "postgres:16-alpine".
	// Required.
	Image string

	// Name names the created container. Empty lets the engine pick one.
	Name string

	// Cmd overrides the image's default command.
	Cmd []string

	// Env sets environment variables inside the container.
	Env map[string]string

	// Ports maps host ports to container ports using docker-compose port
	// specs: "5432:5432", "127.0.0.1:8080:80", "6379:6379/tcp".
	Ports []string

	// Pull pulls the image before creating the container. Without it the
	// image must already be present in the local daemon.
	Pull bool

	// Remove removes the container after Stop.
	Remove bool

	// Client overrides the Docker API client. Nil builds one from the
	// environment (DOCKER_HOST etc.) with API version negotiation.
	Client DockerClient

	mu  sync.Mutex
	cli DockerClient
}

// Launch creates and starts the container. The returned handle stops it
// with the engine-side grace period taken from the stop context deadline.
func (c *Container) Launch(ctx context.Context) (service.Handle, error) {
	if c.Image == "" {
		return nil, errors.NewPermanent("container launcher requires an image", nil)
	}
	cli, err := c.lazyClient()
	if err != nil {
		return nil, err
	}

	if _, err := cli.Ping(ctx); err != nil {
		return nil, fmt.Errorf("cannot connect to Docker daemon (is Docker running?): %w", err)
	}

	if c.Pull {
		if err := pullImage(ctx, cli, c.Image); err != nil {
			return nil, err
		}
	}

	exposed, bindings, err := nat.ParsePortSpecs(c.Ports)
	if err != nil {
		return nil, errors.NewPermanent(fmt.Sprintf("invalid port spec for %s", c.Image), err)
	}

	cfg := &container.Config{
		Image:        c.Image,
		Cmd:          c.Cmd,
		Env:          envSlice(c.Env),
		ExposedPorts: exposed,
	}
	hostCfg := &container.HostConfig{PortBindings: bindings}

	resp, err := cli.ContainerCreate(ctx, cfg, hostCfg, nil, nil, c.Name)
	if err != nil {
		return nil, fmt.Errorf("create container from %s: %w", c.Image, err)
	}

	if err := cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		// The container was created but never ran; remove it so a retry
		// with the same name does not collide. Launch ctx may already be
		// dead, hence the background context.
		_ = cli.ContainerRemove(context.Background(), resp.ID, container.RemoveOptions{Force: true})
		return nil, fmt.Errorf("start container %s: %w", resp.ID, err)
	}

	return &ContainerHandle{client: cli, id: resp.ID, remove: c.Remove}, nil
}

func (c *Container) lazyClient() (DockerClient, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cli != nil {
		return c.cli, nil
	}
	if c.Client != nil {
		c.cli = c.Client
		return c.cli, nil
	}
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, errors.NewPermanent("create docker client", err)
	}
	c.cli = cli
	return c.cli, nil
}

// pullImage pulls ref and drains the response body: the pull is not
// complete until the body has been fully read.
func pullImage(ctx context.Context, cli DockerClient, ref string) error {
	rc, err := cli.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("pull %s: %w", ref, err)
	}
	if _, err := io.Copy(io.Discard, rc); err != nil {
		rc.Close()
		return fmt.Errorf("pull %s: read response: %w", ref, err)
	}
	return rc.Close()
}

// envSlice converts an env map to sorted KEY=value entries.
func envSlice(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}

// ContainerHandle controls a container started by Container.Launch.
type ContainerHandle struct {
	client DockerClient
	id     string
	remove bool
}

// ID returns the Docker container ID.
func (h *ContainerHandle) ID() string {
	return h.id
}

// Stop stops the container and, when the launcher was configured with
// Remove, force-removes it afterwards. The engine-side grace period
// before the daemon kills the container is derived from the ctx deadline.
func (h *ContainerHandle) Stop(ctx context.Context) error {
	opts := container.StopOptions{}
	if deadline, ok := ctx.Deadline(); ok {
		secs := int(time.Until(deadline).Seconds())
		if secs < 1 {
			secs = 1
		}
		opts.Timeout = &secs
	}

	if err := h.client.ContainerStop(ctx, h.id, opts); err != nil {
		return fmt.Errorf("stop container %s: %w", h.id, err)
	}
	if h.remove {
		if err := h.client.ContainerRemove(ctx, h.id, container.RemoveOptions{Force: true}); err != nil {
			return fmt.Errorf("remove container %s: %w", h.id, err)
		}
	}
	return nil
}
