package providers

import (
	"context"
	"strings"
	"time"

	"github.com/pr-poehali-dev/spa-community-portal/pkg/utils"
)

// EmailProvider вход и регистрация по email и паролю
type EmailProvider struct {
	c *client
}

func NewEmailProvider(authURL string, timeout time.Duration) *EmailProvider {
	return &EmailProvider{c: newClient(ProviderEmail, authURL, timeout)}
}

type RegisterRequest struct {
	Email    string  `json:"email"`
	Password string  `json:"password"`
	Name     string  `json:"name"`
	Phone    *string `json:"phone,omitempty"`
	Telegram *string `json:"telegram,omitempty"`
}

func (p *EmailProvider) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.TrimSpace(email)

	var keys []string
	if !utils.IsValidEmail(email) {
		keys = append(keys, "email_invalid")
	}
	if password == "" {
		keys = append(keys, "invalid_credentials")
	}
	if len(keys) > 0 {
		return nil, &ValidationError{Keys: keys}
	}

	return p.c.authenticate(ctx, call{
		op:       "login",
		query:    map[string]string{"action": "login"},
		body:     map[string]string{"email": email, "password": password},
		fallback: "login_failed",
	})
}

func (p *EmailProvider) Register(ctx context.Context, req RegisterRequest) (*AuthResult, error) {
	req.Email = strings.TrimSpace(req.Email)
	req.Name = strings.TrimSpace(req.Name)

	if err := validateRegister(req); err != nil {
		return nil, err
	}

	return p.c.authenticate(ctx, call{
		op:       "register",
		query:    map[string]string{"action": "register"},
		body:     req,
		fallback: "registration_failed",
	})
}

func validateRegister(req RegisterRequest) error {
	var keys []string

	if !utils.IsValidEmail(req.Email) {
		keys = append(keys, "email_invalid")
	}
	keys = append(keys, utils.ValidatePassword(req.Password)...)

	keys = append(keys, utils.ValidateFullName(req.Name)...)

	if req.Phone != nil && *req.Phone != "" && !utils.IsValidPhone(*req.Phone) {
		keys = append(keys, "phone_invalid")
	}
	if req.Telegram != nil && *req.Telegram != "" && !utils.IsValidTelegram(*req.Telegram) {
		keys = append(keys, "telegram_invalid")
	}

	if len(keys) > 0 {
		return &ValidationError{Keys: keys}
	}
	return nil
}

// Logout уведомляет сервер о выходе. Вызывающий код ошибку только логирует
func (p *EmailProvider) Logout(ctx context.Context, token string) error {
	_, err := p.c.do(ctx, call{
		op:       "logout",
		query:    map[string]string{"action": "logout"},
		bearer:   token,
		fallback: "error",
	})
	return err
}

// RequestPasswordReset первая фаза: сервер отправляет код на почту
func (p *EmailProvider) RequestPasswordReset(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if !utils.IsValidEmail(email) {
		return &ValidationError{Keys: []string{"email_invalid"}}
	}

	_, err := p.c.do(ctx, call{
		op:       "reset-password",
		query:    map[string]string{"action": "reset-password"},
		body:     map[string]string{"email": email},
		fallback: "password_reset_failed",
	})
	return err
}

// ResetPassword вторая фаза: код из письма и новый пароль
func (p *EmailProvider) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	email = strings.TrimSpace(email)
	code = strings.TrimSpace(code)

	var keys []string
	if !utils.IsValidEmail(email) {
		keys = append(keys, "email_invalid")
	}
	if !utils.IsValidResetCode(code) {
		keys = append(keys, "code_invalid")
	}
	keys = append(keys, utils.ValidatePassword(newPassword)...)
	if len(keys) > 0 {
		return &ValidationError{Keys: keys}
	}

	_, err := p.c.do(ctx, call{
		op:    "reset-password",
		query: map[string]string{"action": "reset-password"},
		body: map[string]string{
			"email":        email,
			"code":         code,
			"new_password": newPassword,
		},
		fallback: "password_reset_failed",
	})
	return err
}
