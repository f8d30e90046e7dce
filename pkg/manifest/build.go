package manifest

import (
	"fmt"
	"net"
	"sort"
	"strings"

	"github.com/docker/go-connections/nat"

	"github.com/Combine-Capital/cqo/pkg/health"
	"github.com/Combine-Capital/cqo/pkg/launcher"
	"github.com/Combine-Capital/cqo/pkg/probe"
	"github.com/Combine-Capital/cqo/pkg/service"
)

// Build turns a validated manifest into orchestrator service specs, sorted
// by service ID. An image yields a Container launcher, a bare command a
// Process launcher; the healthcheck type selects the probe.
func Build(m *Manifest) ([]service.Spec, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	specs := make([]service.Spec, 0, len(m.Services))
	for _, id := range sortedIDs(m.Services) {
		svc := m.Services[id]
		spec := service.Spec{
			ID:         id,
			Launch:     buildLauncher(svc),
			StartDelay: svc.StartDelay,
		}

		for _, dep := range svc.DependsOn {
			gate := service.GateStarted
			if dep.Condition != "" {
				// Validate has already parsed every condition.
				gate, _ = service.ParseGate(dep.Condition)
			}
			spec.DependsOn = append(spec.DependsOn, service.Dependency{
				Service: dep.Service,
				Gate:    gate,
			})
		}

		if svc.Healthcheck != nil {
			check, err := buildProbe(id, svc)
			if err != nil {
				return nil, err
			}
			spec.Check = check
			spec.Policy = buildPolicy(svc.Healthcheck)
		}

		specs = append(specs, spec)
	}
	return specs, nil
}

func buildLauncher(svc Service) service.Launcher {
	if svc.Image != "" {
		return &launcher.Container{
			Image:  svc.Image,
			Name:   svc.ContainerName,
			Cmd:    svc.Command,
			Env:    svc.Env,
			Ports:  svc.Ports,
			Pull:   svc.Pull,
			Remove: svc.Remove,
		}
	}
	return &launcher.Process{
		Argv: svc.Command,
		Dir:  svc.Dir,
		Env:  envList(svc.Env),
	}
}

func buildProbe(id string, svc Service) (health.Checker, error) {
	hc := svc.Healthcheck
	switch probeType(hc) {
	case "http":
		target := hc.Target
		if target == "" {
			port, err := firstHostPort(svc.Ports)
			if err != nil {
				return nil, fmt.Errorf("service %q: %w", id, err)
			}
			target = fmt.Sprintf("http://127.0.0.1:%s/health", port)
		}
		return &probe.HTTP{URL: target, Method: hc.Method, ExpectedStatus: hc.Status, Timeout: hc.Timeout}, nil
	case "tcp":
		target := hc.Target
		if target == "" {
			port, err := firstHostPort(svc.Ports)
			if err != nil {
				return nil, fmt.Errorf("service %q: %w", id, err)
			}
			target = net.JoinHostPort("127.0.0.1", port)
		}
		return &probe.TCP{Addr: target, Timeout: hc.Timeout}, nil
	case "command":
		return &probe.Command{Argv: commandArgv(hc.Test), Dir: svc.Dir, Env: envList(svc.Env)}, nil
	case "postgres":
		return &probe.Postgres{DSN: hc.Target}, nil
	case "redis":
		if strings.Contains(hc.Target, "://") {
			return &probe.Redis{URL: hc.Target}, nil
		}
		return &probe.Redis{Addr: hc.Target}, nil
	case "nats":
		return &probe.NATS{URL: hc.Target, DialTimeout: hc.Timeout}, nil
	case "grpc":
		return &probe.GRPC{Target: hc.Target, Service: hc.GRPCService}, nil
	default:
		return nil, fmt.Errorf("service %q: unknown healthcheck type %q", id, hc.Type)
	}
}

// buildPolicy maps healthcheck budget fields onto a per-service policy.
// An all-zero policy is dropped so the run configuration applies whole.
func buildPolicy(hc *Healthcheck) *service.HealthPolicy {
	p := service.HealthPolicy{
		Interval:    hc.Interval,
		Timeout:     hc.Timeout,
		Retries:     hc.Retries,
		StartPeriod: hc.StartPeriod,
	}
	if p == (service.HealthPolicy{}) {
		return nil
	}
	return &p
}

// firstHostPort extracts the host port of the first port spec, for deriving
// default HTTP and TCP probe targets.
func firstHostPort(ports []string) (string, error) {
	if len(ports) == 0 {
		return "", fmt.Errorf("healthcheck has no target and no ports to derive one from")
	}
	mappings, err := nat.ParsePortSpec(ports[0])
	if err != nil {
		return "", fmt.Errorf("invalid port spec %q: %w", ports[0], err)
	}
	hostPort := mappings[0].Binding.HostPort
	if hostPort == "" {
		return "", fmt.Errorf("port spec %q has no host port to derive a healthcheck target from", ports[0])
	}
	return hostPort, nil
}

// envList flattens an env map into sorted KEY=value entries for process
// launchers and host-side command probes.
func envList(env map[string]string) []string {
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
