package main

import (
	"strings"

	"github.com/danmuck/mrctl/internal/config"
	"github.com/spf13/cobra"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create the config file",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := a.configFile()
			if err != nil {
				return err
			}
			if err := config.WriteTemplate(path, force); err != nil {
				return err
			}
			a.println("wrote %s", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the resolved configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			a.println("root            %s", cfg.Root)
			a.println("repo            %s", cfg.RepoURL)
			a.println("version         %s", cfg.Version)
			a.println("stop_settle     %s", cfg.StopSettle)
			a.println("restart_delay   %s", cfg.RestartDelay)
			a.println("fetch_timeout   %s", cfg.FetchTimeout)
			a.println("command_timeout %s", cfg.CommandTimeout)
			a.println("access_url      %s", cfg.AccessURL)
			for _, c := range cfg.Components {
				a.println("component       %s (%s) %s", c.Name, c.DisplayName(), strings.Join(c.Command, " "))
			}
			return nil
		},
	}

	cmd.AddCommand(initCmd, showCmd)
	return cmd
}

// configFile is the explicit --config path or <root>/config.toml.
func (a *app) configFile() (string, error) {
	if path := strings.TrimSpace(a.opts.configPath); path != "" {
		return path, nil
	}
	cfg, err := config.FromEnvironment()
	if err != nil {
		return "", err
	}
	a.applyFlags(&cfg)
	return cfg.FilePath(), nil
}
