package main

import (
	"fmt"
	"strings"

	"github.com/danmuck/mrctl/internal/apps"
	"github.com/danmuck/mrctl/internal/platform"
	"github.com/spf13/cobra"
)

func newInstallCmd(a *app) *cobra.Command {
	var branch string
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Install or update the platform components",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			if strings.TrimSpace(branch) != "" {
				cfg.Version = branch
			}
			inst, err := platform.NewInstaller(platform.InstallerConfig{
				Root:           cfg.Root,
				Version:        cfg.Version,
				Components:     cfg.Components,
				Runner:         a.runner,
				CommandTimeout: cfg.CommandTimeout,
			})
			if err != nil {
				return err
			}
			a.println("%s", a.theme.header.Render(fmt.Sprintf("Installing MrServer %s into %s", cfg.Version, cfg.Root)))
			if err := inst.InstallAll(cmd.Context()); err != nil {
				return fmt.Errorf("install: %w", err)
			}
			a.println("%s", a.theme.ok.Render("MrServer installed"))
			return nil
		},
	}
	cmd.Flags().StringVarP(&branch, "branch", "b", "", "platform version (git branch or tag) to install")
	return cmd
}

func newAppInstallCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "app-install <appId>",
		Short: "Install an app from the app repository",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			inst, err := apps.NewInstaller(apps.InstallerConfig{
				Root:           cfg.Root,
				RepoURL:        cfg.RepoURL,
				HTTPClient:     a.client,
				FetchTimeout:   cfg.FetchTimeout,
				Runner:         a.runner,
				CommandTimeout: cfg.CommandTimeout,
			})
			if err != nil {
				return err
			}
			a.println("%s", a.theme.header.Render("Installing app: "+args[0]))
			a.println("Using repository: %s", cfg.RepoURL)

			res, err := inst.Install(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("app-install %s: %w", args[0], err)
			}
			name := res.AppID
			if res.Metadata != nil && res.Metadata.Name != "" {
				name = res.Metadata.Name
			}
			a.println("%s", a.theme.ok.Render(fmt.Sprintf("Installed %s (apps: %s, extra files: %d)",
				name, strings.Join(res.Installed, ", "), res.ExtraFiles)))
			return nil
		},
	}
}

func newAppsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "apps",
		Short: "List installed apps",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			reg := apps.NewRegistry(apps.AppsDir(cfg.Root))
			ids := reg.IDs()
			if len(ids) == 0 {
				a.println("%s", a.theme.warn.Render("No apps installed"))
				return nil
			}
			a.println("%s", a.theme.header.Render("Apps:"))
			for _, id := range ids {
				a.println("  - %s", id)
			}
			var labels []string
			for _, m := range reg.Metadata() {
				// Entries with nothing to show are left out.
				if label := m.Label(); label != "" {
					labels = append(labels, label)
				}
			}
			if len(labels) > 0 {
				a.println("%s", a.theme.header.Render("Registered:"))
				for _, label := range labels {
					a.println("  - %s", label)
				}
			}
			return nil
		},
	}
}
