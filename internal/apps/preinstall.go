package apps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/danmuck/mrctl/internal/tools"
	logs "github.com/danmuck/smplog"
	"github.com/tidwall/jsonc"
)

const PreinstallFile = "preinstall.json"

var ErrPreinstall = errors.New("apps: preinstall step failed")

// PreinstallStatus distinguishes a missing descriptor from a broken one.
type PreinstallStatus int

const (
	PreinstallAbsent PreinstallStatus = iota
	PreinstallPresent
	PreinstallMalformed
)

func (s PreinstallStatus) String() string {
	switch s {
	case PreinstallPresent:
		return "present"
	case PreinstallMalformed:
		return "malformed"
	default:
		return "absent"
	}
}

// ShellFlags accepts either "-c" style strings or ["-e", "-c"] arrays.
type ShellFlags []string

func (f *ShellFlags) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = strings.Fields(s)
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("shellFlags must be a string or a list of strings")
	}
	*f = list
	return nil
}

// Preinstall is the descriptor of a command run before an app is unpacked.
type Preinstall struct {
	Shell      string     `json:"shell"`
	ShellFlags ShellFlags `json:"shellFlags"`
	Command    string     `json:"command"`
}

// Argv resolves the descriptor to a command line, defaulting to the
// platform shell.
func (p Preinstall) Argv() (string, []string) {
	shell := strings.TrimSpace(p.Shell)
	flags := []string(p.ShellFlags)
	if shell == "" {
		if runtime.GOOS == "windows" {
			shell, flags = "cmd", []string{"/c"}
		} else {
			shell, flags = "sh", []string{"-c"}
		}
	}
	args := append(append([]string(nil), flags...), p.Command)
	return shell, args
}

// PreinstallLookup is the tri-state result of looking for a descriptor.
type PreinstallLookup struct {
	Status     PreinstallStatus
	Descriptor Preinstall
	Raw        []byte
	Err        error
}

// ParsePreinstall decodes a descriptor, tolerating comments and trailing
// commas.
func ParsePreinstall(data []byte) (Preinstall, error) {
	var p Preinstall
	if err := json.Unmarshal(jsonc.ToJSON(data), &p); err != nil {
		return Preinstall{}, err
	}
	if strings.TrimSpace(p.Command) == "" {
		return Preinstall{}, fmt.Errorf("command is required")
	}
	return p, nil
}

// LookupPreinstall fetches <repo>/<appID>/preinstall.json. Any fetch
// failure reads as absent.
func (i *Installer) LookupPreinstall(ctx context.Context, appID string) PreinstallLookup {
	url := i.bundleURL(appID, PreinstallFile)
	data, err := i.fetchBytes(ctx, url, maxDescriptorBytes)
	if err != nil {
		return PreinstallLookup{Status: PreinstallAbsent, Err: err}
	}
	desc, err := ParsePreinstall(data)
	if err != nil {
		return PreinstallLookup{Status: PreinstallMalformed, Raw: data, Err: err}
	}
	return PreinstallLookup{Status: PreinstallPresent, Descriptor: desc, Raw: data}
}

// runPreinstall executes a present descriptor. Exit status and stderr
// output both count as failure. The descriptor file is always removed.
func (i *Installer) runPreinstall(ctx context.Context, lookup PreinstallLookup) error {
	path := filepath.Join(i.root, PreinstallFile)
	if err := os.WriteFile(path, lookup.Raw, 0o644); err != nil {
		return fmt.Errorf("%w: write %s: %v", ErrPreinstall, path, err)
	}
	defer func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			logs.Warnf("apps.preinstall remove %s: %v", path, err)
		}
	}()

	name, args := lookup.Descriptor.Argv()
	cmd := tools.Command{Name: name, Args: args, Dir: i.root, Timeout: i.commandTimeout}
	logs.Infof("apps.preinstall exec cmd=%s", cmd)
	res, err := i.runner.Run(ctx, cmd)
	stderr := strings.TrimSpace(string(res.Stderr))
	if err != nil {
		return fmt.Errorf("%w: cmd=%q exit=%d stderr=%q: %v", ErrPreinstall, cmd.String(), res.ExitCode, stderr, err)
	}
	if res.ExitCode != 0 || stderr != "" {
		return fmt.Errorf("%w: cmd=%q exit=%d stderr=%q", ErrPreinstall, cmd.String(), res.ExitCode, stderr)
	}
	return nil
}
