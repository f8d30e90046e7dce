package launcher

import (
	"bytes"
	"context"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Combine-Capital/cqo/pkg/errors"
)

func launchProcess(t *testing.T, p *Process) *ProcessHandle {
	t.Helper()
	handle, err := p.Launch(context.Background())
	if err != nil {
		t.Fatalf("Launch() error = %v", err)
	}
	h, ok := handle.(*ProcessHandle)
	if !ok {
		t.Fatalf("Launch() handle = %T, want *ProcessHandle", handle)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		h.Stop(ctx)
	})
	return h
}

func TestProcessLaunch(t *testing.T) {
	t.Run("spawns the command", func(t *testing.T) {
		h := launchProcess(t, &Process{Argv: []string{"sleep", "60"}})
		if h.PID() <= 0 {
			t.Fatalf("PID() = %d, want > 0", h.PID())
		}
	})

	t.Run("missing argv is permanent", func(t *testing.T) {
		p := &Process{}
		if _, err := p.Launch(context.Background()); !errors.IsPermanent(err) {
			t.Fatalf("Launch() error = %v, want permanent", err)
		}
	})

	t.Run("spawn failure returns error", func(t *testing.T) {
		p := &Process{Argv: []string{"/nonexistent/cqo-test-binary"}}
		handle, err := p.Launch(context.Background())
		if err == nil {
			t.Fatal("Launch() error = nil, want error")
		}
		if handle != nil {
			t.Fatalf("Launch() handle = %v, want nil", handle)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		p := &Process{Argv: []string{"true"}}
		if _, err := p.Launch(ctx); err == nil {
			t.Fatal("Launch() error = nil, want context error")
		}
	})

	t.Run("env and dir", func(t *testing.T) {
		dir := t.TempDir()
		var out bytes.Buffer
		h := launchProcess(t, &Process{
			Argv:   []string{"sh", "-c", "echo $CQO_TEST_VALUE; pwd"},
			Dir:    dir,
			Env:    []string{"CQO_TEST_VALUE=marker-42"},
			Stdout: &out,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.Wait(ctx); err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
		got := out.String()
		if !strings.Contains(got, "marker-42") {
			t.Errorf("output %q missing env value", got)
		}
		if !strings.Contains(got, filepath.Base(dir)) {
			t.Errorf("output %q missing working dir %q", got, dir)
		}
	})
}

func TestProcessHandleStop(t *testing.T) {
	t.Run("sigterm stops promptly", func(t *testing.T) {
		h := launchProcess(t, &Process{Argv: []string{"sleep", "60"}})

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		start := time.Now()
		if err := h.Stop(ctx); err != nil {
			t.Fatalf("Stop() error = %v", err)
		}
		if elapsed := time.Since(start); elapsed > 5*time.Second {
			t.Fatalf("Stop() took %v, want prompt exit on SIGTERM", elapsed)
		}
	})

	t.Run("escalates to sigkill", func(t *testing.T) {
		h := launchProcess(t, &Process{Argv: []string{"sh", "-c", `trap "" TERM; sleep 60`}})
		// Give the shell time to install the trap so SIGTERM is ignored.
		time.Sleep(200 * time.Millisecond)

		ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
		defer cancel()
		if err := h.Stop(ctx); err != nil {
			t.Fatalf("Stop() error = %v", err)
		}

		waitCtx, waitCancel := context.WithTimeout(context.Background(), time.Second)
		defer waitCancel()
		if err := h.Wait(waitCtx); err == nil {
			t.Fatal("Wait() error = nil, want non-zero wait status after kill")
		}
	})

	t.Run("already exited", func(t *testing.T) {
		h := launchProcess(t, &Process{Argv: []string{"sh", "-c", "exit 3"}})

		waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer waitCancel()
		err := h.Wait(waitCtx)
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) || exitErr.ExitCode() != 3 {
			t.Fatalf("Wait() error = %v, want exit code 3", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.Stop(ctx); err != nil {
			t.Fatalf("Stop() after exit error = %v, want nil", err)
		}
	})

	t.Run("stop is idempotent", func(t *testing.T) {
		h := launchProcess(t, &Process{Argv: []string{"sleep", "60"}})

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := h.Stop(ctx); err != nil {
			t.Fatalf("first Stop() error = %v", err)
		}
		if err := h.Stop(ctx); err != nil {
			t.Fatalf("second Stop() error = %v", err)
		}
	})
}
