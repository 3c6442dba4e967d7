package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pr-poehali-dev/spa-community-portal/internal/app"
	"github.com/pr-poehali-dev/spa-community-portal/internal/callback"
	"github.com/pr-poehali-dev/spa-community-portal/internal/models"
	"github.com/pr-poehali-dev/spa-community-portal/internal/providers"
	"github.com/pr-poehali-dev/spa-community-portal/pkg/locale"
	"github.com/pr-poehali-dev/spa-community-portal/pkg/utils"
)

type authCmd struct {
	env *env
}

func newAuthCmd(e *env) *cobra.Command {
	a := &authCmd{env: e}
	cmd := &cobra.Command{Use: "auth", Short: "Authentication commands"}

	var email string
	login := &cobra.Command{Use: "login", Short: "Login with email and password", RunE: func(cmd *cobra.Command, args []string) error {
		return a.login(cmd, email)
	}}
	login.Flags().StringVar(&email, "email", "", "Account email")

	var reg providers.RegisterRequest
	var phone, telegram string
	register := &cobra.Command{Use: "register", Short: "Create an account", RunE: func(cmd *cobra.Command, args []string) error {
		if phone != "" {
			reg.Phone = &phone
		}
		if telegram != "" {
			reg.Telegram = &telegram
		}
		return a.register(cmd, reg)
	}}
	register.Flags().StringVar(&reg.Email, "email", "", "Account email")
	register.Flags().StringVar(&reg.Name, "name", "", "Display name")
	register.Flags().StringVar(&phone, "phone", "", "Phone number (optional)")
	register.Flags().StringVar(&telegram, "telegram", "", "Telegram username (optional)")

	var exchangeToken string
	tg := &cobra.Command{Use: "telegram", Short: "Login via Telegram bot", RunE: func(cmd *cobra.Command, args []string) error {
		return a.telegram(cmd, exchangeToken)
	}}
	tg.Flags().StringVar(&exchangeToken, "token", "", "One-time token from the bot (skips the local callback page)")

	ya := &cobra.Command{Use: "yandex", Short: "Login via Yandex ID", RunE: a.yandex}

	var resetEmail, resetCode string
	reset := &cobra.Command{Use: "reset-password", Short: "Reset password by email code", RunE: func(cmd *cobra.Command, args []string) error {
		return a.resetPassword(cmd, resetEmail, resetCode)
	}}
	reset.Flags().StringVar(&resetEmail, "email", "", "Account email")
	reset.Flags().StringVar(&resetCode, "code", "", "Code from the email; without it a new code is requested")

	cmd.AddCommand(
		login,
		register,
		tg,
		ya,
		reset,
		&cobra.Command{Use: "status", Short: "Show current session", RunE: a.status},
		&cobra.Command{Use: "refresh", Short: "Refresh Yandex session token", RunE: a.refresh},
		&cobra.Command{Use: "logout", Short: "Logout and clear stored credentials", RunE: a.logout},
	)
	return cmd
}

func (a *authCmd) login(cmd *cobra.Command, email string) error {
	app, err := a.env.load(cmd.Context())
	if err != nil {
		return err
	}

	p := newPrompter(cmd)
	if err := p.lineIfEmpty(&email, "Email: "); err != nil {
		return err
	}
	password, err := p.password("Пароль: ")
	if err != nil {
		return err
	}

	if _, err := app.Session.Login(cmd.Context(), email, password); err != nil {
		return userError(err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), locale.Get("login_successful"))
	printUser(cmd.OutOrStdout(), app)
	return nil
}

func (a *authCmd) register(cmd *cobra.Command, req providers.RegisterRequest) error {
	app, err := a.env.load(cmd.Context())
	if err != nil {
		return err
	}

	p := newPrompter(cmd)
	if err := p.lineIfEmpty(&req.Email, "Email: "); err != nil {
		return err
	}
	if err := p.lineIfEmpty(&req.Name, "Имя: "); err != nil {
		return err
	}
	if req.Password, err = p.password("Пароль: "); err != nil {
		return err
	}

	if _, err := app.Session.Register(cmd.Context(), req); err != nil {
		return userError(err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), locale.Get("registration_successful"))
	printUser(cmd.OutOrStdout(), app)
	return nil
}

func (a *authCmd) telegram(cmd *cobra.Command, exchangeToken string) error {
	ctx := cmd.Context()
	app, err := a.env.load(ctx)
	if err != nil {
		return err
	}

	if exchangeToken != "" {
		if _, err := app.Session.CompleteTelegram(ctx, exchangeToken, nil); err != nil {
			return userError(err)
		}
		printUser(cmd.OutOrStdout(), app)
		return nil
	}

	loginURL, err := app.Telegram.LoginURL()
	if err != nil {
		return userError(err)
	}

	return a.browserLogin(cmd, app, func(srv *callback.Server) (string, error) {
		return loginURL, nil
	}, func(srv *callback.Server) string { return srv.TelegramCallback() })
}

func (a *authCmd) yandex(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	app, err := a.env.load(ctx)
	if err != nil {
		return err
	}

	return a.browserLogin(cmd, app, func(srv *callback.Server) (string, error) {
		return app.Yandex.AuthURL(ctx, srv.State(), srv.YandexRedirectURI())
	}, func(srv *callback.Server) string { return srv.YandexRedirectURI() })
}

// browserLogin поднимает локальную страницу callback и ждёт, пока пользователь войдёт в браузере
func (a *authCmd) browserLogin(cmd *cobra.Command, app *app.App, entry func(*callback.Server) (string, error), callbackURL func(*callback.Server) string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	srv := app.CallbackServer()
	if err := srv.Start(); err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	entryURL, err := entry(srv)
	if err != nil {
		return userError(err)
	}
	srv.SetEntryURL(entryURL)

	fmt.Fprintln(out, locale.Getf("open_in_browser", srv.LoginURL()))
	fmt.Fprintln(out, locale.Getf("waiting_for_callback", callbackURL(srv)))

	if _, err := srv.Wait(ctx, app.Config.Callback.WaitTimeout); err != nil {
		return err
	}
	printUser(out, app)
	return nil
}

func (a *authCmd) status(cmd *cobra.Command, args []string) error {
	app, err := a.env.load(cmd.Context())
	if err != nil {
		return err
	}
	printUser(cmd.OutOrStdout(), app)
	if p := app.Session.Provider(); p != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "provider: %s\n", p)
	}
	return nil
}

func (a *authCmd) refresh(cmd *cobra.Command, args []string) error {
	app, err := a.env.load(cmd.Context())
	if err != nil {
		return err
	}
	if _, err := app.Session.Refresh(cmd.Context()); err != nil {
		return userError(err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), locale.Get("token_refreshed"))
	return nil
}

func (a *authCmd) logout(cmd *cobra.Command, args []string) error {
	app, err := a.env.load(cmd.Context())
	if err != nil {
		return err
	}
	if err := app.Session.Logout(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), locale.Get("logout_successful"))
	return nil
}

func (a *authCmd) resetPassword(cmd *cobra.Command, email, code string) error {
	ctx := cmd.Context()
	app, err := a.env.load(ctx)
	if err != nil {
		return err
	}

	p := newPrompter(cmd)
	if err := p.lineIfEmpty(&email, "Email: "); err != nil {
		return err
	}

	if code == "" {
		if err := app.Session.RequestPasswordReset(ctx, email); err != nil {
			return userError(err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), locale.Getf("password_reset_requested", utils.MaskEmail(email)))
		if code, err = p.line("Код из письма: "); err != nil {
			return err
		}
	}

	newPassword, err := p.password("Новый пароль: ")
	if err != nil {
		return err
	}
	if err := app.Session.ConfirmPasswordReset(ctx, email, code, newPassword); err != nil {
		return userError(err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), locale.Get("password_reset_successful"))
	return nil
}

// currentUser пользователь сессии или ошибка not_authenticated
func currentUser(a *app.App) (*models.User, error) {
	u := a.Session.CurrentUser()
	if u == nil {
		return nil, fmt.Errorf("%s", locale.Get("not_authenticated"))
	}
	return u, nil
}
