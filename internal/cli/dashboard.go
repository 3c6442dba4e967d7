package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pr-poehali-dev/spa-community-portal/internal/models"
	"github.com/pr-poehali-dev/spa-community-portal/internal/roles"
	"github.com/pr-poehali-dev/spa-community-portal/pkg/locale"
)

func newDashboardCmd(e *env) *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Show the dashboard for the selected role",
		RunE: func(cmd *cobra.Command, args []string) error {
			var current *models.RoleType
			if role != "" && role != "participant" {
				rt, err := models.ParseRoleType(role)
				if err != nil {
					return fmt.Errorf("%s", locale.Getf("role_unknown", role))
				}
				current = &rt
			}
			return dashboard(cmd, e, current)
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "Role dashboard to open; empty for participant")
	return cmd
}

func dashboard(cmd *cobra.Command, e *env, current *models.RoleType) error {
	ctx := cmd.Context()
	app, tok, err := e.requireSession(ctx)
	if err != nil {
		return err
	}
	user, err := currentUser(app)
	if err != nil {
		return err
	}

	ur, err := app.Roles.LoadUserRoles(ctx, tok, user.ID)
	if err != nil {
		return userError(err)
	}

	out := cmd.OutOrStdout()
	view := roles.SelectView(current, ur.ActiveRoles())
	fmt.Fprintln(out, view.Title())
	printUser(out, app)

	switch view.Kind {
	case roles.ViewRole:
		fmt.Fprintln(out, levelSummary(view.Role.LevelData))
	case roles.ViewParticipant:
		printReputation(out, ur.Reputation)
		if active := ur.ActiveRoles(); len(active) > 0 {
			printRoles(out, active)
		}
	}
	return nil
}
