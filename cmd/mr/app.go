package main

import (
	"io"
	"net/http"
	"strings"

	"github.com/danmuck/mrctl/internal/config"
	"github.com/danmuck/mrctl/internal/lifecycle"
	"github.com/danmuck/mrctl/internal/pidstore"
	"github.com/danmuck/mrctl/internal/proc"
	"github.com/danmuck/mrctl/internal/tools"
	"github.com/spf13/pflag"
)

var version = "dev"

// options are the persistent flags shared by every command.
type options struct {
	repo       string
	root       string
	configPath string
}

func (o *options) register(fs *pflag.FlagSet) {
	fs.StringVarP(&o.repo, "repo", "r", "", "app repository URL (overrides config and "+config.EnvRepo+")")
	fs.StringVar(&o.root, "root", "", "installation root (overrides config and "+config.EnvRoot+")")
	fs.StringVar(&o.configPath, "config", "", "config file (default <root>/"+config.DefaultFileName+")")
}

// app carries the collaborators commands run against.
type app struct {
	out    io.Writer
	opts   options
	host   lifecycle.Host
	runner tools.CommandRunner
	client *http.Client
	theme  theme
}

func newApp(out io.Writer) *app {
	return &app{
		out:    out,
		host:   proc.NewSystem(),
		runner: tools.ExecRunner{},
		theme:  newTheme(out),
	}
}

// config resolves defaults, then the environment, then the config file,
// then flags.
func (a *app) config() (config.Config, error) {
	cfg, err := config.FromEnvironment()
	if err != nil {
		return config.Config{}, err
	}
	a.applyFlags(&cfg)

	if path := strings.TrimSpace(a.opts.configPath); path != "" {
		cfg, err = config.Load(path, cfg)
	} else {
		cfg, err = config.LoadOptional(cfg.FilePath(), cfg)
	}
	if err != nil {
		return config.Config{}, err
	}
	a.applyFlags(&cfg)

	if err := config.Validate(cfg); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func (a *app) applyFlags(cfg *config.Config) {
	if v := strings.TrimSpace(a.opts.root); v != "" {
		cfg.Root = v
	}
	if v := strings.TrimSpace(a.opts.repo); v != "" {
		cfg.RepoURL = v
	}
}

func (a *app) controller(cfg config.Config) *lifecycle.Controller {
	return lifecycle.NewController(cfg, pidstore.New(cfg.Root), a.host)
}
