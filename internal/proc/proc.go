// Package proc wraps the operating-system process primitives the control
// plane needs: detached spawn, liveness probes and process-tree kill.
package proc

import (
	"context"
	"errors"
	"fmt"
	"os/exec"

	"github.com/danmuck/mrctl/internal/tools"
)

var (
	ErrProcessNotFound = errors.New("proc: process not found")
	ErrInvalidPID      = errors.New("proc: invalid pid")
	ErrEmptyCommand    = errors.New("proc: empty command")
)

// System is the host-backed process implementation.
type System struct {
	// Runner executes helper commands (taskkill on Windows).
	Runner tools.CommandRunner
}

// NewSystem returns a System using the local exec runner.
func NewSystem() *System {
	return &System{Runner: tools.ExecRunner{}}
}

// Spawn starts argv in dir detached from the caller and returns its pid.
// Standard streams are bound to the null device and the child is released,
// so the caller never waits on it and may exit first.
func (s *System) Spawn(dir string, argv []string) (int, error) {
	if len(argv) == 0 || argv[0] == "" {
		return 0, ErrEmptyCommand
	}
	argv = platformCommand(argv)
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = dir
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.SysProcAttr = detachAttr()

	if err := cmd.Start(); err != nil {
		return 0, err
	}
	pid := cmd.Process.Pid
	if err := cmd.Process.Release(); err != nil {
		return pid, fmt.Errorf("release pid=%d: %w", pid, err)
	}
	return pid, nil
}

// Alive reports whether a process with pid currently exists.
func (s *System) Alive(pid int) (bool, error) {
	if err := checkPID(pid); err != nil {
		return false, err
	}
	return alive(pid)
}

// KillTree forcefully terminates pid and every process in its tree.
// ErrProcessNotFound means the process was already gone.
func (s *System) KillTree(ctx context.Context, pid int) error {
	if err := checkPID(pid); err != nil {
		return err
	}
	return s.killTree(ctx, pid)
}

// pid 0 and 1 address the caller's group and every process when negated.
func checkPID(pid int) error {
	if pid <= 1 {
		return fmt.Errorf("%w: %d", ErrInvalidPID, pid)
	}
	return nil
}
