package main

import (
	"fmt"
	"path/filepath"

	"github.com/danmuck/mrctl/internal/users"
	"github.com/spf13/cobra"
)

func (a *app) users() (*users.Store, error) {
	cfg, err := a.config()
	if err != nil {
		return nil, err
	}
	return users.NewStore(filepath.Join(cfg.Root, users.FileName)), nil
}

func newUsersCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "List all users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.users()
			if err != nil {
				return err
			}
			list, err := store.List()
			if err != nil {
				return err
			}
			if len(list) == 0 {
				a.println("%s", a.theme.warn.Render("No users found"))
				return nil
			}
			a.println("%s", a.theme.header.Render("Users:"))
			for _, u := range list {
				role := u.Role
				if role == "" {
					role = "-"
				}
				a.println("  - %s %s", u.Username, a.theme.muted.Render("("+role+")"))
			}
			return nil
		},
	}
}

func newUserAddCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "useradd <username> <password> <role>",
		Short: "Add a user",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.users()
			if err != nil {
				return err
			}
			if err := store.Add(args[0], args[1], args[2]); err != nil {
				return fmt.Errorf("useradd: %w", err)
			}
			a.println("%s", a.theme.ok.Render(fmt.Sprintf("User %q added", args[0])))
			return nil
		},
	}
}

func newRemoveUserCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rmuser <username>",
		Short: "Remove a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.users()
			if err != nil {
				return err
			}
			if err := store.Remove(args[0]); err != nil {
				return fmt.Errorf("rmuser: %w", err)
			}
			a.println("%s", a.theme.ok.Render(fmt.Sprintf("User %q removed", args[0])))
			return nil
		},
	}
}

func newRolesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "roles",
		Short: "List the available roles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.println("%s", a.theme.header.Render("Roles:"))
			for _, r := range users.Roles() {
				a.println("  - %s", r)
			}
			return nil
		},
	}
}
