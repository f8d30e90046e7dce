package probe

import (
	"context"
	"strings"
	"testing"

	"github.com/Combine-Capital/cqo/pkg/errors"
)

func TestCommandCheck(t *testing.T) {
	t.Run("exit 0 is healthy", func(t *testing.T) {
		p := &Command{Argv: []string{"sh", "-c", "exit 0"}}
		if err := p.Check(context.Background()); err != nil {
			t.Errorf("Check() error = %v", err)
		}
	})

	t.Run("non-zero exit is transient", func(t *testing.T) {
		p := &Command{Argv: []string{"sh", "-c", "exit 3"}}
		err := p.Check(context.Background())
		if err == nil {
			t.Fatal("Check() error = nil, want exit failure")
		}
		if errors.IsPermanent(err) {
			t.Errorf("Check() error = %v, want transient", err)
		}
	})

	t.Run("output is included in the error", func(t *testing.T) {
		p := &Command{Argv: []string{"sh", "-c", "echo not ready >&2; exit 1"}}
		err := p.Check(context.Background())
		if err == nil {
			t.Fatal("Check() error = nil, want exit failure")
		}
		if !strings.Contains(err.Error(), "not ready") {
			t.Errorf("error = %v, want command output included", err)
		}
	})

	t.Run("extra environment", func(t *testing.T) {
		p := &Command{
			Argv: []string{"sh", "-c", `test "$PROBE_READY" = yes`},
			Env:  []string{"PROBE_READY=yes"},
		}
		if err := p.Check(context.Background()); err != nil {
			t.Errorf("Check() error = %v", err)
		}
	})

	t.Run("context cancellation kills the command", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		p := &Command{Argv: []string{"sleep", "60"}}
		if err := p.Check(ctx); err == nil {
			t.Error("Check() error = nil, want cancellation failure")
		}
	})

	t.Run("missing command is permanent", func(t *testing.T) {
		p := &Command{}
		if err := p.Check(context.Background()); !errors.IsPermanent(err) {
			t.Errorf("Check() error = %v, want permanent", err)
		}
	})
}
