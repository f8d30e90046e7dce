package launcher

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"github.com/Combine-Capital/cqo/pkg/errors"
	"github.com/Combine-Capital/cqo/pkg/service"
)

// Process launches a service as a local OS process. The process outlives
// the launch context: its lifetime is controlled through the returned
// handle, not through ctx.
type Process struct {
	// Argv is the command line: Argv[0] is the binary, the rest are its
	// arguments. Required.
	Argv []string

	// Dir is the working directory. Empty means the caller's directory.
	Dir string

	// Env is appended to the inherited environment, entries as KEY=value.
	Env []string

	// Stdout and Stderr receive the process output. Nil discards it.
	Stdout io.Writer
	Stderr io.Writer
}

// Launch spawns the process with cmd.Start and returns once the OS has
// accepted it. A background reaper collects the exit status so the child
// never lingers as a zombie.
func (p *Process) Launch(ctx context.Context) (service.Handle, error) {
	if len(p.Argv) == 0 {
		return nil, errors.NewPermanent("process launcher requires argv", nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cmd := exec.Command(p.Argv[0], p.Argv[1:]...)
	cmd.Dir = p.Dir
	cmd.Stdout = p.Stdout
	cmd.Stderr = p.Stderr
	if len(p.Env) > 0 {
		cmd.Env = append(os.Environ(), p.Env...)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", p.Argv[0], err)
	}

	h := &ProcessHandle{cmd: cmd, done: make(chan struct{})}
	go func() {
		h.waitErr = cmd.Wait()
		close(h.done)
	}()
	return h, nil
}

// ProcessHandle controls a process started by Process.Launch.
type ProcessHandle struct {
	cmd     *exec.Cmd
	done    chan struct{}
	waitErr error // written by the reaper before done closes

	stop    sync.Once
	stopErr error
}

// PID returns the operating system process ID.
func (h *ProcessHandle) PID() int {
	return h.cmd.Process.Pid
}

// Wait blocks until the process exits and returns its wait status, as
// reported by exec.Cmd.Wait. It does not stop the process.
func (h *ProcessHandle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return h.waitErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop sends SIGTERM and waits for the process to exit. If ctx expires
// before it does, the process is killed with SIGKILL and Stop waits for
// the reaper to collect it. A process that already exited on its own is
// not an error: there is nothing left to stop.
func (h *ProcessHandle) Stop(ctx context.Context) error {
	h.stop.Do(func() { h.stopErr = h.terminate(ctx) })
	return h.stopErr
}

func (h *ProcessHandle) terminate(ctx context.Context) error {
	// Signal failure means the process already finished; the reaper then
	// closes done immediately.
	_ = h.cmd.Process.Signal(syscall.SIGTERM)

	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
	}

	if err := h.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill %s: %w", h.cmd.Path, err)
	}
	// SIGKILL cannot be caught, so the reaper finishes promptly.
	<-h.done
	return nil
}
