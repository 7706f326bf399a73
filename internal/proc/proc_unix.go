//go:build !windows

package proc

import (
	"context"
	"errors"
	"syscall"

	"golang.org/x/sys/unix"
)

func platformCommand(argv []string) []string {
	return argv
}

// Setsid puts the child in a new session whose process group id equals its
// pid, which is what killTree signals.
func detachAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setsid: true}
}

func alive(pid int) (bool, error) {
	err := unix.Kill(pid, 0)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, unix.EPERM):
		return true, nil
	case errors.Is(err, unix.ESRCH):
		return false, nil
	default:
		return false, err
	}
}

func (s *System) killTree(_ context.Context, pid int) error {
	err := unix.Kill(-pid, unix.SIGKILL)
	if err == nil {
		return nil
	}
	if !errors.Is(err, unix.ESRCH) {
		return err
	}
	// Not a group leader; fall back to the single process.
	err = unix.Kill(pid, unix.SIGKILL)
	if errors.Is(err, unix.ESRCH) {
		return ErrProcessNotFound
	}
	return err
}
