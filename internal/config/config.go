package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	EnvRoot = "MRCTL_ROOT"
	EnvRepo = "MRCTL_REPO"

	DefaultDirName  = ".mrserver"
	DefaultFileName = "config.toml"
	DefaultRepoURL  = "https://raw.githubusercontent.com/mrserver-org/apps/main"
	DefaultVersion  = "main"
)

var (
	ErrInvalidConfig    = errors.New("config: invalid config")
	ErrUnknownComponent = errors.New("config: unknown component")
)

// Component is one named platform service managed by the CLI.
type Component struct {
	Name    string
	Label   string
	RepoURL string
	Command []string
}

// Dir returns the component's working directory under root.
func (c Component) Dir(root string) string {
	return filepath.Join(root, c.Name)
}

// DisplayName prefers the human label.
func (c Component) DisplayName() string {
	if strings.TrimSpace(c.Label) != "" {
		return c.Label
	}
	return c.Name
}

// Config is threaded into every control-plane constructor. Core packages
// never consult the environment themselves.
type Config struct {
	Root           string
	RepoURL        string
	Version        string
	Components     []Component
	StopSettle     time.Duration
	RestartDelay   time.Duration
	FetchTimeout   time.Duration
	CommandTimeout time.Duration
	AccessURL      string
}

func DefaultComponents() []Component {
	return []Component{
		{
			Name:    "api",
			Label:   "Backend",
			RepoURL: "https://github.com/mrserver-org/api.git",
			Command: []string{"npm", "run", "start"},
		},
		{
			Name:    "ui",
			Label:   "Frontend",
			RepoURL: "https://github.com/mrserver-org/ui.git",
			Command: []string{"npm", "run", "start"},
		},
	}
}

// Default returns the stock configuration rooted at <home>/.mrserver.
func Default(home string) Config {
	return Config{
		Root:           filepath.Join(home, DefaultDirName),
		RepoURL:        DefaultRepoURL,
		Version:        DefaultVersion,
		Components:     DefaultComponents(),
		StopSettle:     500 * time.Millisecond,
		RestartDelay:   2 * time.Second,
		FetchTimeout:   2 * time.Minute,
		CommandTimeout: 10 * time.Minute,
		AccessURL:      "http://127.0.0.1:1101",
	}
}

// FromEnvironment resolves the default config for the current user and
// applies MRCTL_ROOT / MRCTL_REPO.
func FromEnvironment() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, fmt.Errorf("resolve home dir: %w", err)
	}
	cfg := Default(home)
	if v := strings.TrimSpace(os.Getenv(EnvRoot)); v != "" {
		cfg.Root = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvRepo)); v != "" {
		cfg.RepoURL = v
	}
	return cfg, nil
}

// FilePath is the conventional config file location under root.
func (c Config) FilePath() string {
	return filepath.Join(c.Root, DefaultFileName)
}

// Select returns the named components in config order. No names selects all.
func (c Config) Select(names []string) ([]Component, error) {
	if len(names) == 0 {
		return append([]Component(nil), c.Components...), nil
	}
	want := make(map[string]struct{}, len(names))
	for _, n := range names {
		want[strings.TrimSpace(n)] = struct{}{}
	}
	out := make([]Component, 0, len(names))
	for _, comp := range c.Components {
		if _, ok := want[comp.Name]; ok {
			out = append(out, comp)
			delete(want, comp.Name)
		}
	}
	if len(want) > 0 {
		missing := make([]string, 0, len(want))
		for n := range want {
			missing = append(missing, n)
		}
		sort.Strings(missing)
		return nil, fmt.Errorf("%w: %s", ErrUnknownComponent, strings.Join(missing, ", "))
	}
	return out, nil
}

type fileComponent struct {
	Name    string   `toml:"name"`
	Label   string   `toml:"label"`
	Repo    string   `toml:"repo"`
	Command []string `toml:"command"`
}

type fileConfig struct {
	Root           string          `toml:"root"`
	Repo           string          `toml:"repo"`
	Version        string          `toml:"version"`
	StopSettle     string          `toml:"stop_settle"`
	RestartDelay   string          `toml:"restart_delay"`
	FetchTimeout   string          `toml:"fetch_timeout"`
	CommandTimeout string          `toml:"command_timeout"`
	AccessURL      string          `toml:"access_url"`
	Components     []fileComponent `toml:"components"`
}

// Load overlays the TOML file at path onto base. Only keys present in the
// file are applied.
func Load(path string, base Config) (Config, error) {
	cfg := base
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}

	if meta.IsDefined("root") {
		cfg.Root = strings.TrimSpace(raw.Root)
	}
	if meta.IsDefined("repo") {
		cfg.RepoURL = strings.TrimSpace(raw.Repo)
	}
	if meta.IsDefined("version") {
		cfg.Version = strings.TrimSpace(raw.Version)
	}
	if meta.IsDefined("access_url") {
		cfg.AccessURL = strings.TrimSpace(raw.AccessURL)
	}

	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"stop_settle", raw.StopSettle, &cfg.StopSettle},
		{"restart_delay", raw.RestartDelay, &cfg.RestartDelay},
		{"fetch_timeout", raw.FetchTimeout, &cfg.FetchTimeout},
		{"command_timeout", raw.CommandTimeout, &cfg.CommandTimeout},
	}
	for _, d := range durations {
		if !meta.IsDefined(d.key) {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", d.key, err)
		}
		*d.dst = v
	}

	if meta.IsDefined("components") {
		cfg.Components = make([]Component, 0, len(raw.Components))
		for _, fc := range raw.Components {
			cfg.Components = append(cfg.Components, Component{
				Name:    strings.TrimSpace(fc.Name),
				Label:   strings.TrimSpace(fc.Label),
				RepoURL: strings.TrimSpace(fc.Repo),
				Command: fc.Command,
			})
		}
	}

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadOptional is Load, except a missing file returns base unchanged.
func LoadOptional(path string, base Config) (Config, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return base, nil
	}
	return Load(path, base)
}

func Validate(cfg Config) error {
	if strings.TrimSpace(cfg.Root) == "" {
		return fmt.Errorf("%w: root is required", ErrInvalidConfig)
	}
	if strings.TrimSpace(cfg.RepoURL) == "" {
		return fmt.Errorf("%w: repo is required", ErrInvalidConfig)
	}
	if cfg.StopSettle < 0 || cfg.RestartDelay < 0 || cfg.FetchTimeout < 0 || cfg.CommandTimeout < 0 {
		return fmt.Errorf("%w: durations must not be negative", ErrInvalidConfig)
	}
	seen := make(map[string]struct{}, len(cfg.Components))
	for i, comp := range cfg.Components {
		if err := ValidateComponent(comp); err != nil {
			return fmt.Errorf("%w: component[%d]: %v", ErrInvalidConfig, i, err)
		}
		if _, dup := seen[comp.Name]; dup {
			return fmt.Errorf("%w: duplicate component %q", ErrInvalidConfig, comp.Name)
		}
		seen[comp.Name] = struct{}{}
	}
	return nil
}

func ValidateComponent(c Component) error {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		return fmt.Errorf("name is required")
	}
	if name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("name %q must be a single path segment", name)
	}
	if len(c.Command) == 0 || strings.TrimSpace(c.Command[0]) == "" {
		return fmt.Errorf("command is required for %q", name)
	}
	return nil
}
