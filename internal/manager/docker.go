package manager

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/api/types/strslice"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/go-connections/nat"
	"github.com/stackctl/stackctl/internal/stack"
)

// Docker manages stack services as containers on the local daemon.
// Containers are named after their service and joined to a shared
// user-defined bridge network so members resolve each other by name.
type Docker struct {
	cli     *client.Client
	network string
	log     *slog.Logger

	netOnce sync.Once
	netErr  error
}

// NewDocker connects to the local Docker daemon. network is the bridge
// network every container joins; empty means the daemon default.
func NewDocker(network string, log *slog.Logger) (*Docker, error) {
	cli, err := newClient()
	if err != nil {
		return nil, fmt.Errorf("docker client: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Docker{cli: cli, network: network, log: log}, nil
}

// Start creates the service's container if missing (pulling the image
// when the daemon doesn't have it) and starts it. A container that is
// already running is left alone.
func (d *Docker) Start(ctx context.Context, svc *stack.Service) error {
	inspect, err := d.cli.ContainerInspect(ctx, svc.Name)
	switch {
	case err == nil:
		if inspect.State.Running {
			return nil
		}
		return d.cli.ContainerStart(ctx, svc.Name, container.StartOptions{})
	case !errdefs.IsNotFound(err):
		return fmt.Errorf("inspect %s: %w", svc.Name, err)
	}

	if err := d.ensureNetwork(ctx); err != nil {
		return err
	}
	if err := d.create(ctx, svc); err != nil {
		return err
	}
	return d.cli.ContainerStart(ctx, svc.Name, container.StartOptions{})
}

func (d *Docker) create(ctx context.Context, svc *stack.Service) error {
	exposed, bindings, err := portBindings(svc.Ports)
	if err != nil {
		return fmt.Errorf("service %q: ports: %w", svc.Name, err)
	}

	config := &container.Config{
		Image:        svc.Image,
		Cmd:          strslice.StrSlice(svc.Cmd),
		Env:          envSlice(svc.Env),
		ExposedPorts: exposed,
	}
	hostConfig := &container.HostConfig{
		PortBindings: bindings,
		Binds:        svc.Binds,
	}
	var netConfig *network.NetworkingConfig
	if d.network != "" {
		netConfig = &network.NetworkingConfig{
			EndpointsConfig: map[string]*network.EndpointSettings{
				d.network: {},
			},
		}
	}

	_, err = d.cli.ContainerCreate(ctx, config, hostConfig, netConfig, nil, svc.Name)
	if errdefs.IsNotFound(err) {
		// Image not present locally.
		if err := d.pull(ctx, svc.Image); err != nil {
			return err
		}
		_, err = d.cli.ContainerCreate(ctx, config, hostConfig, netConfig, nil, svc.Name)
	}
	if err != nil {
		return fmt.Errorf("create %s: %w", svc.Name, err)
	}
	return nil
}

// pull fetches an image, draining the progress stream — the pull isn't
// done until the response body is fully read.
func (d *Docker) pull(ctx context.Context, ref string) error {
	d.log.Info("pulling image", "image", ref)
	rc, err := d.cli.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("pull %s: %w", ref, err)
	}
	defer rc.Close()
	if _, err := io.Copy(io.Discard, rc); err != nil {
		return fmt.Errorf("pull %s: read response: %w", ref, err)
	}
	return nil
}

// Stop asks the container to exit, waiting up to grace before the
// daemon kills it. Stopping a container that doesn't exist is a no-op.
func (d *Docker) Stop(ctx context.Context, name string, grace time.Duration) error {
	secs := graceSeconds(grace)
	err := d.cli.ContainerStop(ctx, name, container.StopOptions{Timeout: &secs})
	if errdefs.IsNotFound(err) {
		return nil
	}
	return err
}

// ForceStop kills the container outright.
func (d *Docker) ForceStop(ctx context.Context, name string) error {
	err := d.cli.ContainerKill(ctx, name, "SIGKILL")
	if errdefs.IsNotFound(err) {
		return nil
	}
	return err
}

// IsRunning reports the container's live running state. A container
// that doesn't exist is not running; any other inspect failure is a
// transport problem surfaced to the caller.
func (d *Docker) IsRunning(ctx context.Context, name string) (bool, error) {
	inspect, err := d.cli.ContainerInspect(ctx, name)
	if errdefs.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return inspect.State.Running, nil
}

// ensureNetwork creates the shared bridge network on first use.
func (d *Docker) ensureNetwork(ctx context.Context) error {
	if d.network == "" {
		return nil
	}
	d.netOnce.Do(func() {
		_, err := d.cli.NetworkInspect(ctx, d.network, network.InspectOptions{})
		if err == nil {
			return
		}
		if !errdefs.IsNotFound(err) {
			d.netErr = fmt.Errorf("inspect network %s: %w", d.network, err)
			return
		}
		_, err = d.cli.NetworkCreate(ctx, d.network, network.CreateOptions{Driver: "bridge"})
		if err != nil {
			d.netErr = fmt.Errorf("create network %s: %w", d.network, err)
		}
	})
	return d.netErr
}

// portBindings parses docker-style port specs ("8080:8080",
// "127.0.0.1:9000:9000") into exposure and binding maps.
func portBindings(specs []string) (nat.PortSet, nat.PortMap, error) {
	if len(specs) == 0 {
		return nil, nil, nil
	}
	exposed, bindings, err := nat.ParsePortSpecs(specs)
	if err != nil {
		return nil, nil, err
	}
	return exposed, bindings, nil
}

// envSlice converts an env map to sorted "KEY=VALUE" strings so
// container configs are deterministic.
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

// graceSeconds converts a grace period to whole seconds for the daemon,
// rounding sub-second waits up so they aren't treated as "no wait".
func graceSeconds(grace time.Duration) int {
	if grace <= 0 {
		return 0
	}
	secs := int(grace / time.Second)
	if grace%time.Second != 0 {
		secs++
	}
	return secs
}
