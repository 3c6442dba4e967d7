// Package cli команды клиента портала.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/pr-poehali-dev/spa-community-portal/internal/app"
	"github.com/pr-poehali-dev/spa-community-portal/internal/config"
	"github.com/pr-poehali-dev/spa-community-portal/internal/providers"
	"github.com/pr-poehali-dev/spa-community-portal/internal/roles"
	"github.com/pr-poehali-dev/spa-community-portal/internal/session"
	"github.com/pr-poehali-dev/spa-community-portal/pkg/locale"
	"github.com/pr-poehali-dev/spa-community-portal/pkg/logger"
)

// env общие флаги и лениво собранное приложение
type env struct {
	configPath string
	profile    string
	verbose    bool

	app *app.App
}

func NewRootCmd(version, buildDate string) *cobra.Command {
	return newRootCmd(&env{}, version, buildDate)
}

func newRootCmd(e *env, version, buildDate string) *cobra.Command {
	root := &cobra.Command{
		Use:           "portal",
		Short:         "Клиент банного сообщества: вход, роли и кабинеты",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&e.configPath, "config", "", "Path to config file")
	root.PersistentFlags().StringVar(&e.profile, "profile", "", "Session profile (overrides storage.profile)")
	root.PersistentFlags().BoolVarP(&e.verbose, "verbose", "v", false, "Debug logging to stderr")

	root.AddCommand(newVersionCmd(version, buildDate))
	root.AddCommand(newAuthCmd(e))
	root.AddCommand(newRolesCmd(e))
	root.AddCommand(newDashboardCmd(e))
	root.AddCommand(newHealthCmd(e))

	closeAfterRun(root, e)
	return root
}

// closeAfterRun закрывает приложение после каждой команды, в том числе упавшей
func closeAfterRun(cmd *cobra.Command, e *env) {
	for _, c := range cmd.Commands() {
		closeAfterRun(c, e)
	}
	run := cmd.RunE
	if run == nil {
		return
	}
	cmd.RunE = func(c *cobra.Command, args []string) (err error) {
		defer func() {
			if cerr := e.close(); err == nil {
				err = cerr
			}
		}()
		return run(c, args)
	}
}

// load читает конфигурацию, собирает приложение и сверяет сохранённую сессию
func (e *env) load(ctx context.Context) (*app.App, error) {
	if e.app != nil {
		return e.app, nil
	}

	cfg, err := config.Load(e.configPath)
	if err != nil {
		return nil, err
	}
	if e.profile != "" {
		cfg.Storage.Profile = e.profile
	}

	level := cfg.Logging.Level
	if e.verbose {
		level = "debug"
	}
	log, err := logger.New(level, cfg.Logging.Format)
	if err != nil {
		return nil, fmt.Errorf("failed to init logger: %w", err)
	}

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	a.Session.CheckAuth(ctx)

	e.app = a
	return a, nil
}

func (e *env) close() error {
	if e.app == nil {
		return nil
	}
	_ = e.app.Logger.Sync()
	err := e.app.Close()
	e.app = nil
	return err
}

// requireSession приложение и токен вошедшего пользователя
func (e *env) requireSession(ctx context.Context) (*app.App, string, error) {
	a, err := e.load(ctx)
	if err != nil {
		return nil, "", err
	}
	if a.Session.State() != session.StateAuthenticated {
		return nil, "", errors.New(locale.Get("not_authenticated"))
	}
	tok, ok := a.Store.ReadToken(ctx)
	if !ok {
		return nil, "", errors.New(locale.Get("not_authenticated"))
	}
	return a, tok, nil
}

// userError текст, понятный пользователю, вместо внутренней ошибки
func userError(err error) error {
	if err == nil {
		return nil
	}

	var pe *providers.Error
	var ve *providers.ValidationError
	var re *roles.APIError
	switch {
	case errors.As(err, &pe), errors.As(err, &ve):
		return errors.New(providers.UserMessage(err))
	case errors.As(err, &re):
		return errors.New(re.Message)
	case errors.Is(err, session.ErrSessionRejected):
		return errors.New(locale.Get("session_expired"))
	case errors.Is(err, session.ErrNoRefreshToken):
		return errors.New(locale.Get("refresh_missing"))
	case errors.Is(err, session.ErrNotAuthenticated):
		return errors.New(locale.Get("not_authenticated"))
	case errors.Is(err, roles.ErrApplicationFinal):
		return errors.New(locale.Get("application_final"))
	}
	return err
}

func printUser(w io.Writer, a *app.App) {
	u := a.Session.CurrentUser()
	if u == nil {
		fmt.Fprintln(w, locale.Get("not_authenticated"))
		return
	}
	fmt.Fprintln(w, locale.Getf("authenticated_as", u.DisplayName(), int64(u.ID), u.Role))
}
