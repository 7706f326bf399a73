package main

import (
	"errors"
	"fmt"

	"github.com/danmuck/mrctl/internal/lifecycle"
	"github.com/spf13/cobra"
)

func newStartCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "start [component...]",
		Short: "Start platform components as detached processes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			comps, err := cfg.Select(args)
			if err != nil {
				return err
			}
			r := a.controller(cfg).Start(cmd.Context(), comps)
			if err := a.report("Starting MrServer", r); err != nil {
				return fmt.Errorf("start: %w", err)
			}
			if anyState(r, lifecycle.StateStarted) {
				a.println("Access MrServer at %s", cfg.AccessURL)
			}
			return nil
		},
	}
}

func newStopCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stop [component...]",
		Short: "Stop running platform components and their process trees",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			comps, err := cfg.Select(args)
			if err != nil {
				return err
			}
			r := a.controller(cfg).Stop(cmd.Context(), comps)
			if err := a.report("Stopping MrServer", r); err != nil {
				return fmt.Errorf("stop: %w", err)
			}
			return nil
		},
	}
}

func newRestartCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "restart [component...]",
		Short: "Stop then start platform components",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			comps, err := cfg.Select(args)
			if err != nil {
				return err
			}
			stop, start := a.controller(cfg).Restart(cmd.Context(), comps)
			stopErr := a.report("Stopping MrServer", stop)
			startErr := a.report("Starting MrServer", start)
			if stopErr != nil || startErr != nil {
				return fmt.Errorf("restart: %w", errors.Join(stopErr, startErr))
			}
			if anyState(start, lifecycle.StateStarted) {
				a.println("Access MrServer at %s", cfg.AccessURL)
			}
			return nil
		},
	}
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status [component...]",
		Short: "Show whether each platform component is running",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			comps, err := cfg.Select(args)
			if err != nil {
				return err
			}
			r := a.controller(cfg).Status(cmd.Context(), comps)
			if err := a.report("MrServer status", r); err != nil {
				return fmt.Errorf("status: %w", err)
			}
			return nil
		},
	}
}

func anyState(r lifecycle.Report, state lifecycle.State) bool {
	for _, o := range r.Outcomes {
		if o.State == state {
			return true
		}
	}
	return false
}
