package manifest

import (
	"fmt"
	"sort"
	"strings"

	"github.com/docker/go-connections/nat"

	"github.com/Combine-Capital/cqo/pkg/service"
)

// Validate checks the manifest for structural problems: missing launchers,
// unknown gate conditions, unknown probe types, bad port specs. Undefined
// dependency targets are left to graph construction, which also detects
// cycles.
func (m *Manifest) Validate() error {
	if len(m.Services) == 0 {
		return fmt.Errorf("manifest declares no services")
	}

	for _, id := range sortedIDs(m.Services) {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("manifest contains a service with an empty name")
		}
		svc := m.Services[id]

		if svc.Image == "" && len(svc.Command) == 0 {
			return fmt.Errorf("service %q: needs an image or a command", id)
		}
		if svc.Image == "" && len(svc.Ports) > 0 {
			return fmt.Errorf("service %q: ports require an image", id)
		}
		if _, _, err := nat.ParsePortSpecs(svc.Ports); err != nil {
			return fmt.Errorf("service %q: invalid ports: %w", id, err)
		}
		if svc.StartDelay < 0 {
			return fmt.Errorf("service %q: negative start_delay", id)
		}

		for _, dep := range svc.DependsOn {
			if dep.Service == "" {
				return fmt.Errorf("service %q: depends_on entry missing a service", id)
			}
			if dep.Condition != "" {
				if _, err := service.ParseGate(dep.Condition); err != nil {
					return fmt.Errorf("service %q: %w", id, err)
				}
			}
		}

		if err := validateHealthcheck(id, svc); err != nil {
			return err
		}
	}
	return nil
}

func validateHealthcheck(id string, svc Service) error {
	hc := svc.Healthcheck
	if hc == nil {
		return nil
	}

	switch probeType(hc) {
	case "":
		return fmt.Errorf("service %q: healthcheck needs a type", id)
	case "command":
		if len(commandArgv(hc.Test)) == 0 {
			return fmt.Errorf("service %q: command healthcheck needs a test argv", id)
		}
	case "http", "tcp":
		if hc.Target == "" && len(svc.Ports) == 0 {
			return fmt.Errorf("service %q: %s healthcheck needs a target or ports to derive one", id, probeType(hc))
		}
	case "postgres", "redis", "nats", "grpc":
		if hc.Target == "" {
			return fmt.Errorf("service %q: %s healthcheck needs a target", id, hc.Type)
		}
	default:
		return fmt.Errorf("service %q: unknown healthcheck type %q", id, hc.Type)
	}

	if hc.Interval < 0 || hc.Timeout < 0 || hc.StartPeriod < 0 {
		return fmt.Errorf("service %q: negative healthcheck durations", id)
	}
	return nil
}

// probeType resolves the effective probe type: an explicit type wins, a
// bare test argv implies command.
func probeType(hc *Healthcheck) string {
	if hc.Type == "" && len(hc.Test) > 0 {
		return "command"
	}
	return strings.ToLower(hc.Type)
}

// commandArgv normalizes compose-style test arrays: a leading CMD is
// stripped, CMD-SHELL wraps the remainder in a shell invocation.
func commandArgv(test []string) []string {
	if len(test) == 0 {
		return nil
	}
	switch strings.ToUpper(test[0]) {
	case "CMD":
		return test[1:]
	case "CMD-SHELL":
		if len(test) == 1 {
			return nil
		}
		return []string{"/bin/sh", "-c", strings.Join(test[1:], " ")}
	default:
		return test
	}
}

func sortedIDs(services map[string]Service) []string {
	ids := make([]string, 0, len(services))
	for id := range services {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
