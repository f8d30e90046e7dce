package probe

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/Combine-Capital/cqo/pkg/errors"
)

// Command probes by running a local command: exit status 0 means healthy,
// anything else is a transient failure. This mirrors compose healthcheck
// `test` semantics.
type Command struct {
	// Argv is the command and its arguments. Required.
	Argv []string

	// Dir is the working directory. Empty means the current directory.
	Dir string

	// Env is appended to the inherited environment, entries as KEY=value.
	Env []string
}

// Check runs the command once under ctx.
func (c *Command) Check(ctx context.Context) error {
	if len(c.Argv) == 0 {
		return errors.NewPermanent("command probe requires a command", nil)
	}

	cmd := exec.CommandContext(ctx, c.Argv[0], c.Argv[1:]...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}

	out, err := cmd.CombinedOutput()
	if err != nil {
		if trimmed := bytes.TrimSpace(out); len(trimmed) > 0 {
			return fmt.Errorf("command probe %s: %w: %s", c.Argv[0], err, trimmed)
		}
		return fmt.Errorf("command probe %s: %w", c.Argv[0], err)
	}
	return nil
}
