package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "mr",
		Short: "Install, run and extend a local MrServer platform",
		Long: `mr manages a local MrServer installation: it clones and updates the
platform components, starts and stops them as detached processes tracked by
PID records, installs third-party apps from an app repository and maintains
the local user store.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.SetOut(a.out)
	a.opts.register(root.PersistentFlags())

	root.AddCommand(
		newInstallCmd(a),
		newStartCmd(a),
		newStopCmd(a),
		newRestartCmd(a),
		newStatusCmd(a),
		newAppInstallCmd(a),
		newAppsCmd(a),
		newUsersCmd(a),
		newUserAddCmd(a),
		newRemoveUserCmd(a),
		newRolesCmd(a),
		newConfigCmd(a),
	)
	return root
}
