package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/pr-poehali-dev/spa-community-portal/pkg/locale"
)

const yandexAuthorizeURL = "https://oauth.yandex.ru/authorize"

// YandexProvider OAuth-вход через Яндекс. Код авторизации обменивает удалённая функция,
// клиент лишь передаёт ей всю строку запроса callback
type YandexProvider struct {
	c        *client
	clientID string
	scopes   string
}

func NewYandexProvider(yandexAuthURL, clientID, scopes string, timeout time.Duration) *YandexProvider {
	return &YandexProvider{
		c:        newClient(ProviderYandex, yandexAuthURL, timeout),
		clientID: clientID,
		scopes:   scopes,
	}
}

// TokenPair результат обновления токена
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// AuthURL адрес страницы согласия. С client_id строится локально, иначе выдаётся функцией
func (p *YandexProvider) AuthURL(ctx context.Context, state, redirectURI string) (string, error) {
	if p.clientID != "" {
		params := url.Values{}
		params.Set("response_type", "code")
		params.Set("client_id", p.clientID)
		params.Set("redirect_uri", redirectURI)
		params.Set("state", state)
		if p.scopes != "" {
			params.Set("scope", p.scopes)
		}
		return fmt.Sprintf("%s?%s", yandexAuthorizeURL, params.Encode()), nil
	}

	body, err := p.c.do(ctx, call{
		op:     "auth-url",
		method: resty.MethodGet,
		query: map[string]string{
			"action":       "auth-url",
			"state":        state,
			"redirect_uri": redirectURI,
		},
		fallback: "yandex_login_failed",
	})
	if err != nil {
		return "", err
	}

	var data struct {
		AuthURL string `json:"auth_url"`
	}
	if err := json.Unmarshal(body, &data); err != nil || data.AuthURL == "" {
		return "", p.c.invalidResponse("auth-url", errors.New("auth_url missing"))
	}
	return data.AuthURL, nil
}

// Exchange передаёт параметры callback функции и получает токен сессии
func (p *YandexProvider) Exchange(ctx context.Context, query url.Values, redirectURI string) (*AuthResult, error) {
	if e := query.Get("error"); e != "" {
		msg := query.Get("error_description")
		if msg == "" {
			msg = locale.Get("yandex_login_failed")
		}
		return nil, &Error{Provider: ProviderYandex, Op: "callback", Message: msg, Err: errors.New(e)}
	}
	if query.Get("code") == "" {
		return nil, &Error{
			Provider: ProviderYandex,
			Op:       "callback",
			Message:  locale.Get("yandex_code_missing"),
			Err:      errors.New("code missing"),
		}
	}

	body := make(map[string]string, len(query)+1)
	for k := range query {
		body[k] = query.Get(k)
	}
	if redirectURI != "" {
		body["redirect_uri"] = redirectURI
	}

	return p.c.authenticate(ctx, call{
		op:       "callback",
		query:    map[string]string{"action": "callback"},
		body:     body,
		fallback: "yandex_login_failed",
	})
}

func (p *YandexProvider) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	body, err := p.c.do(ctx, call{
		op:       "refresh",
		query:    map[string]string{"action": "refresh"},
		body:     map[string]string{"refresh_token": refreshToken},
		fallback: "session_expired",
	})
	if err != nil {
		return nil, err
	}

	var pair TokenPair
	if err := json.Unmarshal(body, &pair); err != nil {
		return nil, p.c.invalidResponse("refresh", err)
	}
	if pair.AccessToken == "" {
		return nil, p.c.invalidResponse("refresh", errors.New("access token missing"))
	}
	return &pair, nil
}

func (p *YandexProvider) Logout(ctx context.Context, refreshToken string) error {
	_, err := p.c.do(ctx, call{
		op:       "logout",
		query:    map[string]string{"action": "logout"},
		body:     map[string]string{"refresh_token": refreshToken},
		fallback: "error",
	})
	return err
}
