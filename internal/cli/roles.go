package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pr-poehali-dev/spa-community-portal/internal/models"
	"github.com/pr-poehali-dev/spa-community-portal/internal/roles"
	"github.com/pr-poehali-dev/spa-community-portal/pkg/locale"
	"github.com/pr-poehali-dev/spa-community-portal/pkg/logger"
)

type rolesCmd struct {
	env *env
}

func newRolesCmd(e *env) *cobra.Command {
	r := &rolesCmd{env: e}
	cmd := &cobra.Command{Use: "roles", Short: "Roles, reputation and role applications"}

	show := &cobra.Command{Use: "show", Short: "Show your roles and reputation", RunE: r.show}

	var data []string
	apply := &cobra.Command{
		Use:       "apply <organizer|master|partner|editor>",
		Short:     "Apply for a role",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"organizer", "master", "partner", "editor"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.apply(cmd, args[0], data)
		},
	}
	apply.Flags().StringArrayVar(&data, "data", nil, "Application field as key=value, repeatable")

	var status string
	list := &cobra.Command{Use: "applications", Short: "List role applications (reviewers)", RunE: func(cmd *cobra.Command, args []string) error {
		return r.list(cmd, models.ApplicationStatus(status))
	}}
	list.Flags().StringVar(&status, "status", string(models.ApplicationPending), "Filter by status; empty for all")

	var notes string
	review := &cobra.Command{
		Use:   "review <application-id> <approved|rejected|in_review>",
		Short: "Decide on a role application (reviewers)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.review(cmd, args[0], args[1], notes)
		},
	}
	review.Flags().StringVar(&notes, "notes", "", "Reviewer notes")

	cmd.AddCommand(show, apply, list, review)
	return cmd
}

func (r *rolesCmd) show(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	app, tok, err := r.env.requireSession(ctx)
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
	printRoles(out, ur.Roles)
	printReputation(out, ur.Reputation)
	return nil
}

func (r *rolesCmd) apply(cmd *cobra.Command, roleArg string, data []string) error {
	rt, err := models.ParseRoleType(roleArg)
	if err != nil {
		return fmt.Errorf("%s", locale.Getf("role_unknown", roleArg))
	}

	fields := make(map[string]interface{}, len(data))
	for _, kv := range data {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return fmt.Errorf("invalid --data %q, expected key=value", kv)
		}
		fields[k] = v
	}

	ctx := cmd.Context()
	app, tok, err := r.env.requireSession(ctx)
	if err != nil {
		return err
	}
	user, err := currentUser(app)
	if err != nil {
		return err
	}

	application, err := app.Roles.SubmitApplication(ctx, tok, user.ID, rt, fields)
	if err != nil {
		return userError(err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), locale.Getf("application_submitted", roles.RoleTitle(application.RoleType)))
	return nil
}

func (r *rolesCmd) list(cmd *cobra.Command, status models.ApplicationStatus) error {
	ctx := cmd.Context()
	app, tok, err := r.env.requireSession(ctx)
	if err != nil {
		return err
	}

	apps, err := app.Roles.ListApplications(ctx, tok, status)
	if err != nil {
		return userError(err)
	}

	out := cmd.OutOrStdout()
	if len(apps) == 0 {
		fmt.Fprintln(out, locale.Get("applications_empty"))
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tUSER\tROLE\tSTATUS\tCREATED")
	for _, a := range apps {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", a.ID, a.UserID, roles.RoleTitle(a.RoleType), a.Status, a.CreatedAt)
	}
	return w.Flush()
}

func (r *rolesCmd) review(cmd *cobra.Command, idArg, decisionArg, notes string) error {
	id, err := roles.ParseApplicationID(idArg)
	if err != nil {
		return err
	}
	decision := models.ApplicationStatus(decisionArg)

	ctx := cmd.Context()
	app, tok, err := r.env.requireSession(ctx)
	if err != nil {
		return err
	}
	reviewer, err := currentUser(app)
	if err != nil {
		return err
	}

	application, err := app.Roles.FindApplication(ctx, tok, id)
	if err != nil {
		return userError(err)
	}

	reviewed, err := app.Roles.ReviewApplication(ctx, tok, *application, decision, notes)
	if err != nil {
		logger.AuditLog(app.Logger, reviewer.ID.String(), "review_application", "", "failure",
			map[string]interface{}{"application_id": int64(id), "decision": decisionArg, "error": err.Error()})
		return userError(err)
	}

	logger.AuditLog(app.Logger, reviewer.ID.String(), "review_application", "", "success",
		map[string]interface{}{"application_id": int64(id), "decision": decisionArg})
	fmt.Fprintln(cmd.OutOrStdout(), locale.Getf("application_reviewed", int64(reviewed.ID), reviewed.Status))
	return nil
}

func printRoles(out io.Writer, list []models.UserRole) {
	if len(list) == 0 {
		fmt.Fprintln(out, locale.Get("roles_none"))
		return
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ROLE\tSTATUS\tGRANTED\tLEVEL")
	for _, r := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", roles.RoleTitle(r.RoleType), r.Status, r.GrantedAt, levelSummary(r.LevelData))
	}
	_ = w.Flush()
}

func levelSummary(data models.LevelData) string {
	switch d := data.(type) {
	case models.OrganizerLevelData:
		return fmt.Sprintf("ур. %d, мероприятий %d, участников %d, рейтинг %.1f",
			d.Level, d.EventsOrganized, d.TotalParticipants, d.AverageRating)
	case models.MasterLevelData:
		return fmt.Sprintf("ур. %d, сеансов %d, рейтинг %.1f, %s",
			d.Level, d.SessionsConducted, d.AverageRating, strings.Join(d.Specializations, ", "))
	case models.EditorLevelData:
		return fmt.Sprintf("ур. %d, статей %d, проверено %d", d.Level, d.ArticlesPublished, d.ArticlesReviewed)
	}
	return "-"
}

func printReputation(out io.Writer, rep *models.UserReputation) {
	if rep == nil {
		return
	}
	fmt.Fprintln(out, locale.Getf("reputation_summary", rep.TotalScore, rep.Level))
	if next := models.PointsToNextLevel(rep.TotalScore); next > 0 {
		fmt.Fprintln(out, locale.Getf("reputation_next", next))
	}
}
