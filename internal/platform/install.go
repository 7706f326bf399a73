package platform

import (
	"context"
	"errors"
	"fmt"
	"github.com/danmuck/mrctl/internal/fsutil"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/danmuck/mrctl/internal/config"
	"github.com/danmuck/mrctl/internal/tools"
	logs "github.com/danmuck/smplog"
)

var (
	ErrInstallInvalidSpec      = errors.New("platform: invalid component spec")
	ErrInstallSandboxViolation = errors.New("platform: sandbox violation")
	ErrInstallUnsupportedRepo  = errors.New("platform: unsupported repository")
	ErrInstallInvalidRoot      = errors.New("platform: invalid install root")
)

// InstallerConfig configures component installation under one root.
type InstallerConfig struct {
	Root           string
	Version        string
	Components     []config.Component
	Runner         tools.CommandRunner
	CommandTimeout time.Duration
}

// Installer clones or updates each component and installs its dependencies.
type Installer struct {
	root       string
	version    string
	components []config.Component
	runner     tools.CommandRunner
	timeout    time.Duration
}

func NewInstaller(cfg InstallerConfig) (*Installer, error) {
	root := strings.TrimSpace(cfg.Root)
	if root == "" {
		return nil, fmt.Errorf("%w: empty root", ErrInstallInvalidRoot)
	}
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	version := strings.TrimSpace(cfg.Version)
	if version == "" {
		version = config.DefaultVersion
	}
	if strings.HasPrefix(version, "-") {
		return nil, fmt.Errorf("%w: version=%q", ErrInstallInvalidSpec, version)
	}

	runner := cfg.Runner
	if runner == nil {
		runner = tools.ExecRunner{}
	}

	return &Installer{
		root:       rootAbs,
		version:    version,
		components: cfg.Components,
		runner:     runner,
		timeout:    cfg.CommandTimeout,
	}, nil
}

// InstallAll installs every component in order and stops at the first
// failure.
func (i *Installer) InstallAll(ctx context.Context) error {
	if err := os.MkdirAll(i.root, 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrInstallInvalidRoot, err)
	}
	for _, c := range i.components {
		if err := i.Install(ctx, c); err != nil {
			return fmt.Errorf("component=%q: %w", c.Name, err)
		}
	}
	return nil
}

// Install syncs one component's source and installs its dependencies.
func (i *Installer) Install(ctx context.Context, c config.Component) error {
	if err := config.ValidateComponent(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInstallInvalidSpec, err)
	}
	if err := validateRepo(c.RepoURL); err != nil {
		return err
	}
	dest := filepath.Clean(c.Dir(i.root))
	if !fsutil.IsWithin(dest, i.root) || dest == i.root {
		return fmt.Errorf("%w: destination=%q outside install root", ErrInstallSandboxViolation, dest)
	}

	logs.Infof("platform.install component=%s version=%s", c.Name, i.version)
	if err := i.syncRepository(ctx, c.RepoURL, dest); err != nil {
		return err
	}
	logs.Infof("platform.install component=%s installing dependencies", c.Name)
	return i.runCommand(ctx, "npm", "install", "--prefix", dest)
}

func (i *Installer) syncRepository(ctx context.Context, repo string, dest string) error {
	info, err := os.Stat(dest)
	if errors.Is(err, os.ErrNotExist) {
		return i.runCommand(ctx, "git", "clone", "--branch", i.version, "--single-branch", repo, dest)
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: destination is not a directory: %s", ErrInstallInvalidSpec, dest)
	}
	if _, err := os.Stat(filepath.Join(dest, ".git")); err != nil {
		return fmt.Errorf("%w: destination exists but is not a git repository: %s", ErrInstallInvalidSpec, dest)
	}
	return i.runCommand(ctx, "git", "-C", dest, "pull", repo, i.version)
}

func (i *Installer) runCommand(ctx context.Context, name string, args ...string) error {
	cmd := tools.Command{Name: name, Args: args, Timeout: i.timeout}
	logs.Debugf("platform.install exec cmd=%s args=%q", name, strings.Join(args, " "))
	res, err := i.runner.Run(ctx, cmd)
	if err == nil {
		return nil
	}
	return fmt.Errorf(
		"platform install command failed cmd=%s args=%q exit=%d stdout=%q stderr=%q: %w",
		name,
		strings.Join(args, " "),
		res.ExitCode,
		strings.TrimSpace(string(res.Stdout)),
		strings.TrimSpace(string(res.Stderr)),
		err,
	)
}

// validateRepo accepts URLs and scp-style git remotes, and refuses values
// git would read as an option.
func validateRepo(repo string) error {
	repo = strings.TrimSpace(repo)
	if repo == "" {
		return fmt.Errorf("%w: missing repo", ErrInstallUnsupportedRepo)
	}
	if strings.HasPrefix(repo, "-") {
		return fmt.Errorf("%w: repo=%q", ErrInstallUnsupportedRepo, repo)
	}
	if !strings.Contains(repo, "://") {
		return nil
	}
	u, err := url.Parse(repo)
	if err != nil {
		return fmt.Errorf("%w: repo=%q parse error: %v", ErrInstallUnsupportedRepo, repo, err)
	}
	switch u.Scheme {
	case "https", "http", "ssh", "git", "file":
	default:
		return fmt.Errorf("%w: repo=%q scheme %q", ErrInstallUnsupportedRepo, repo, u.Scheme)
	}
	if strings.TrimSpace(u.Path) == "" || u.Path == "/" {
		return fmt.Errorf("%w: repo=%q missing repository path", ErrInstallUnsupportedRepo, repo)
	}
	return nil
}
