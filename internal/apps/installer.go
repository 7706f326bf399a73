package apps

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/danmuck/mrctl/internal/tools"
	logs "github.com/danmuck/smplog"
	"github.com/google/uuid"
)

var (
	ErrInvalidApp  = errors.New("apps: invalid app id")
	ErrInvalidRoot = errors.New("apps: invalid install root")
)

// InstallerConfig configures an Installer rooted at one installation.
type InstallerConfig struct {
	Root           string
	RepoURL        string
	HTTPClient     *http.Client
	FetchTimeout   time.Duration
	Runner         tools.CommandRunner
	CommandTimeout time.Duration
}

// Installer fetches app bundles and merges them into the UI tree.
type Installer struct {
	root           string
	repoURL        string
	client         *http.Client
	runner         tools.CommandRunner
	commandTimeout time.Duration
	registry       *Registry
}

// Result summarises one install.
type Result struct {
	AppID      string
	Installed  []string
	Metadata   *Metadata
	ExtraFiles int
	Preinstall PreinstallStatus
}

func NewInstaller(cfg InstallerConfig) (*Installer, error) {
	root := strings.TrimSpace(cfg.Root)
	if root == "" {
		return nil, fmt.Errorf("%w: empty root", ErrInvalidRoot)
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	repo := strings.TrimSpace(cfg.RepoURL)
	if repo == "" {
		return nil, errors.New("apps: repository url is required")
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.FetchTimeout}
	}
	runner := cfg.Runner
	if runner == nil {
		runner = tools.ExecRunner{}
	}

	return &Installer{
		root:           root,
		repoURL:        repo,
		client:         client,
		runner:         runner,
		commandTimeout: cfg.CommandTimeout,
		registry:       NewRegistry(AppsDir(root)),
	}, nil
}

// UIDir is the shared UI tree that extras are merged into.
func UIDir(root string) string {
	return filepath.Join(root, "ui")
}

// AppsDir holds installed app scripts and the registry files.
func AppsDir(root string) string {
	return filepath.Join(UIDir(root), "third_party_apps")
}

func (i *Installer) Registry() *Registry {
	return i.registry
}

// Install fetches, unpacks and registers appID. The temporary archive is
// removed on every path once it has been created.
func (i *Installer) Install(ctx context.Context, appID string) (Result, error) {
	appID = strings.TrimSpace(appID)
	res := Result{AppID: appID}
	if err := validateAppID(appID); err != nil {
		return res, err
	}
	if err := os.MkdirAll(i.root, 0o755); err != nil {
		return res, fmt.Errorf("create root %s: %w", i.root, err)
	}

	lookup := i.LookupPreinstall(ctx, appID)
	res.Preinstall = lookup.Status
	switch lookup.Status {
	case PreinstallPresent:
		if err := i.runPreinstall(ctx, lookup); err != nil {
			return res, err
		}
	case PreinstallMalformed:
		logs.Warnf("apps.install app=%s ignoring malformed %s: %v", appID, PreinstallFile, lookup.Err)
	default:
		logs.Debugf("apps.install app=%s no %s: %v", appID, PreinstallFile, lookup.Err)
	}

	appsDir := AppsDir(i.root)
	if err := os.MkdirAll(appsDir, 0o755); err != nil {
		return res, fmt.Errorf("create %s: %w", appsDir, err)
	}

	archive := filepath.Join(i.root, "app-"+uuid.NewString()+".zip")
	f, err := os.Create(archive)
	if err != nil {
		return res, fmt.Errorf("create %s: %w", archive, err)
	}
	defer func() {
		if err := os.Remove(archive); err != nil && !os.IsNotExist(err) {
			logs.Warnf("apps.install remove %s: %v", archive, err)
		}
	}()

	n, err := i.download(ctx, i.bundleURL(appID, "app.zip"), f)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close %s: %w", archive, cerr)
	}
	if err != nil {
		return res, err
	}
	logs.Infof("apps.install app=%s downloaded bytes=%d", appID, n)

	ex, err := extract(archive, appsDir, UIDir(i.root))
	if err != nil {
		return res, fmt.Errorf("app=%s: %w", appID, err)
	}
	res.Metadata = ex.metadata
	res.ExtraFiles = ex.extraFiles

	if ex.metadata != nil {
		if err := i.registry.AddMetadata(*ex.metadata); err != nil {
			return res, err
		}
	}
	if _, err := i.registry.MergeIDs(ex.appIDs); err != nil {
		return res, err
	}
	res.Installed = ex.appIDs
	logs.Infof("apps.install app=%s installed=%q extras=%d", appID, ex.appIDs, ex.extraFiles)
	return res, nil
}

func validateAppID(id string) error {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\?#`) {
		return fmt.Errorf("%w: %q", ErrInvalidApp, id)
	}
	return nil
}
