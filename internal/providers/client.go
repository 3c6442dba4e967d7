package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/pr-poehali-dev/spa-community-portal/internal/credstore"
	"github.com/pr-poehali-dev/spa-community-portal/internal/models"
	"github.com/pr-poehali-dev/spa-community-portal/pkg/locale"
)

const (
	ProviderEmail    = "email"
	ProviderTelegram = "telegram"
	ProviderYandex   = "yandex"
)

// Error ошибка обмена с удалённой функцией; Message можно показывать пользователю
type Error struct {
	Provider string
	Op       string
	Status   int
	Message  string
	Err      error
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s %s: %s (HTTP %d)", e.Provider, e.Op, e.Message, e.Status)
	}
	return fmt.Sprintf("%s %s: %s", e.Provider, e.Op, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// ValidationError ошибки ввода, найденные до обращения к серверу. Keys ключи pkg/locale
type ValidationError struct {
	Keys []string
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Keys))
	for i, k := range e.Keys {
		msgs[i] = locale.Get(k)
	}
	return strings.Join(msgs, "; ")
}

// UserMessage текст ошибки для пользователя
func UserMessage(err error) string {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Message
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Error()
	}
	return locale.Get("error")
}

// AuthResult то, что провайдер отдаёт после успешного входа
type AuthResult struct {
	Provider     string
	AccessToken  string
	RefreshToken string
	User         *models.User
}

// Credentials запись для credstore; у входа по email снимок не нужен, токен самодостаточен
func (r *AuthResult) Credentials() credstore.Credentials {
	c := credstore.Credentials{
		Token:        r.AccessToken,
		RefreshToken: r.RefreshToken,
		User:         r.User,
	}
	switch r.Provider {
	case ProviderTelegram:
		c.Provider = credstore.TelegramUser
	case ProviderYandex:
		c.Provider = credstore.YandexUser
	}
	return c
}

type authResponse struct {
	Token        string       `json:"token"`
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	User         *models.User `json:"user"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type client struct {
	provider string
	baseURL  string
	http     *resty.Client
}

func newClient(provider, baseURL string, timeout time.Duration) *client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &client{
		provider: provider,
		baseURL:  baseURL,
		http: resty.New().
			SetTimeout(timeout).
			SetHeader("Accept", "application/json"),
	}
}

type call struct {
	op       string
	method   string
	query    map[string]string
	body     interface{}
	bearer   string
	fallback string // ключ locale, если сервер не прислал текст ошибки
}

// do выполняет запрос и возвращает тело успешного ответа
func (c *client) do(ctx context.Context, req call) ([]byte, error) {
	r := c.http.R().
		SetContext(ctx).
		SetQueryParams(req.query)
	if req.body != nil {
		r.SetHeader("Content-Type", "application/json").SetBody(req.body)
	}
	if req.bearer != "" {
		r.SetAuthToken(req.bearer)
	}

	method := req.method
	if method == "" {
		method = resty.MethodPost
	}

	resp, err := r.Execute(method, c.baseURL)
	if err != nil {
		return nil, &Error{
			Provider: c.provider,
			Op:       req.op,
			Message:  locale.Get("network_error"),
			Err:      err,
		}
	}

	if resp.IsError() || resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		msg := locale.Get(req.fallback)
		var body errorResponse
		if json.Unmarshal(resp.Body(), &body) == nil {
			switch {
			case body.Error != "":
				msg = body.Error
			case body.Message != "":
				msg = body.Message
			}
		}
		return nil, &Error{
			Provider: c.provider,
			Op:       req.op,
			Status:   resp.StatusCode(),
			Message:  msg,
		}
	}

	return resp.Body(), nil
}

// authenticate выполняет запрос входа и проверяет обязательные поля ответа
func (c *client) authenticate(ctx context.Context, req call) (*AuthResult, error) {
	body, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}

	var data authResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, c.invalidResponse(req.op, err)
	}

	token := data.AccessToken
	if token == "" {
		token = data.Token
	}
	if token == "" {
		return nil, c.invalidResponse(req.op, errors.New("access token missing"))
	}
	if data.User == nil || data.User.ID == 0 {
		return nil, c.invalidResponse(req.op, errors.New("user missing"))
	}
	data.User.NormalizeRole()

	return &AuthResult{
		Provider:     c.provider,
		AccessToken:  token,
		RefreshToken: data.RefreshToken,
		User:         data.User,
	}, nil
}

func (c *client) invalidResponse(op string, err error) error {
	return &Error{
		Provider: c.provider,
		Op:       op,
		Message:  locale.Get("invalid_response"),
		Err:      err,
	}
}
