//go:build windows

package proc

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/danmuck/mrctl/internal/tools"
	"golang.org/x/sys/windows"
)

const (
	stillActive     = 259
	taskkillTimeout = 30 * time.Second
)

// npm and friends are .cmd shims on Windows and need the command shell.
func platformCommand(argv []string) []string {
	return append([]string{"cmd", "/c"}, argv...)
}

func detachAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		CreationFlags: windows.CREATE_NEW_PROCESS_GROUP | windows.DETACHED_PROCESS,
		HideWindow:    true,
	}
}

func alive(pid int) (bool, error) {
	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
	if err != nil {
		if errors.Is(err, windows.ERROR_INVALID_PARAMETER) {
			return false, nil
		}
		if errors.Is(err, windows.ERROR_ACCESS_DENIED) {
			return true, nil
		}
		return false, err
	}
	defer windows.CloseHandle(h)

	var code uint32
	if err := windows.GetExitCodeProcess(h, &code); err != nil {
		return false, err
	}
	return code == stillActive, nil
}

func (s *System) killTree(ctx context.Context, pid int) error {
	res, err := s.Runner.Run(ctx, tools.Command{
		Name:    "taskkill",
		Args:    []string{"/pid", strconv.Itoa(pid), "/f", "/t"},
		Timeout: taskkillTimeout,
	})
	if err == nil {
		return nil
	}
	stderr := strings.ToLower(string(res.Stderr))
	if res.ExitCode == 128 || strings.Contains(stderr, "not found") || strings.Contains(stderr, "not running") {
		return ErrProcessNotFound
	}
	return fmt.Errorf("taskkill pid=%d exit=%d stderr=%q: %w", pid, res.ExitCode, strings.TrimSpace(string(res.Stderr)), err)
}
