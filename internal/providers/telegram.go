package providers

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/pr-poehali-dev/spa-community-portal/pkg/locale"
)

// TelegramProvider вход через бота: бот перенаправляет на страницу callback
// с одноразовым токеном, который обменивается на сессию
type TelegramProvider struct {
	c        *client
	botName  string
	loginURL string
}

func NewTelegramProvider(telegramAuthURL, botName, loginURL string, timeout time.Duration) *TelegramProvider {
	return &TelegramProvider{
		c:        newClient(ProviderTelegram, telegramAuthURL, timeout),
		botName:  strings.TrimPrefix(botName, "@"),
		loginURL: loginURL,
	}
}

// LoginURL ссылка, с которой начинается вход через Telegram
func (p *TelegramProvider) LoginURL() (string, error) {
	if p.loginURL != "" {
		return p.loginURL, nil
	}
	if p.botName == "" {
		return "", &Error{
			Provider: ProviderTelegram,
			Op:       "login-url",
			Message:  locale.Get("telegram_not_configured"),
		}
	}
	return fmt.Sprintf("https://t.me/%s?start=%s", url.PathEscape(p.botName), "auth"), nil
}

// Exchange меняет одноразовый токен из callback на токен сессии и снимок пользователя
func (p *TelegramProvider) Exchange(ctx context.Context, exchangeToken string) (*AuthResult, error) {
	exchangeToken = strings.TrimSpace(exchangeToken)
	if exchangeToken == "" {
		return nil, &Error{
			Provider: ProviderTelegram,
			Op:       "callback",
			Message:  locale.Get("telegram_token_missing"),
			Err:      errors.New("empty exchange token"),
		}
	}

	return p.c.authenticate(ctx, call{
		op:       "callback",
		query:    map[string]string{"action": "callback"},
		body:     map[string]string{"token": exchangeToken},
		fallback: "telegram_login_failed",
	})
}
