package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pr-poehali-dev/spa-community-portal/internal/credstore"
	"github.com/pr-poehali-dev/spa-community-portal/internal/models"
	"github.com/pr-poehali-dev/spa-community-portal/internal/token/tokentest"
	"github.com/pr-poehali-dev/spa-community-portal/pkg/locale"
)

type recorded struct {
	method string
	action string
	auth   string
	body   map[string]interface{}
}

// fakeAPI поднимает сервер, который отвечает status и body и запоминает последний запрос
func fakeAPI(t *testing.T, status int, body interface{}) (*httptest.Server, *recorded) {
	t.Helper()
	rec := &recorded{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.method = r.Method
		rec.action = r.URL.Query().Get("action")
		rec.auth = r.Header.Get("Authorization")
		rec.body = nil
		_ = json.NewDecoder(r.Body).Decode(&rec.body)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv, rec
}

func TestEmailLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		jwt := tokentest.Email(42, "a@b.com", "A", time.Now().Add(time.Hour))
		srv, rec := fakeAPI(t, http.StatusOK, map[string]interface{}{
			"token": jwt,
			"user":  map[string]interface{}{"id": 42, "email": "a@b.com", "name": "A", "role": "participant"},
		})

		res, err := NewEmailProvider(srv.URL, time.Second).Login(ctx, " a@b.com ", "secret123")
		require.NoError(t, err)

		assert.Equal(t, http.MethodPost, rec.method)
		assert.Equal(t, "login", rec.action)
		assert.Equal(t, "a@b.com", rec.body["email"])
		assert.Equal(t, "secret123", rec.body["password"])

		assert.Equal(t, ProviderEmail, res.Provider)
		assert.Equal(t, jwt, res.AccessToken)
		assert.Equal(t, models.ID(42), res.User.ID)
		assert.Equal(t, models.RoleParticipant, res.User.Role)

		creds := res.Credentials()
		assert.Empty(t, creds.Provider)
		assert.Equal(t, jwt, creds.Token)
	})

	t.Run("server error message is surfaced", func(t *testing.T) {
		srv, _ := fakeAPI(t, http.StatusUnauthorized, map[string]string{"error": "Неверный пароль"})

		_, err := NewEmailProvider(srv.URL, time.Second).Login(ctx, "a@b.com", "wrong-pass1")
		require.Error(t, err)

		var pe *Error
		require.True(t, errors.As(err, &pe))
		assert.Equal(t, http.StatusUnauthorized, pe.Status)
		assert.Equal(t, "Неверный пароль", UserMessage(err))
	})

	t.Run("fallback message without error field", func(t *testing.T) {
		srv, _ := fakeAPI(t, http.StatusInternalServerError, map[string]string{})

		_, err := NewEmailProvider(srv.URL, time.Second).Login(ctx, "a@b.com", "secret123")
		assert.Equal(t, locale.Get("login_failed"), UserMessage(err))
	})

	t.Run("missing token is invalid response", func(t *testing.T) {
		srv, _ := fakeAPI(t, http.StatusOK, map[string]interface{}{
			"user": map[string]interface{}{"id": 1, "email": "a@b.com"},
		})

		_, err := NewEmailProvider(srv.URL, time.Second).Login(ctx, "a@b.com", "secret123")
		assert.Equal(t, locale.Get("invalid_response"), UserMessage(err))
	})

	t.Run("validation happens before request", func(t *testing.T) {
		srv, rec := fakeAPI(t, http.StatusOK, map[string]string{})

		_, err := NewEmailProvider(srv.URL, time.Second).Login(ctx, "not-an-email", "")
		var ve *ValidationError
		require.True(t, errors.As(err, &ve))
		assert.Equal(t, []string{"email_invalid", "invalid_credentials"}, ve.Keys)
		assert.Empty(t, rec.method)
	})

	t.Run("network failure", func(t *testing.T) {
		srv, _ := fakeAPI(t, http.StatusOK, map[string]string{})
		srv.Close()

		_, err := NewEmailProvider(srv.URL, time.Second).Login(ctx, "a@b.com", "secret123")
		assert.Equal(t, locale.Get("network_error"), UserMessage(err))
	})
}

func TestEmailRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("success with refresh token", func(t *testing.T) {
		srv, rec := fakeAPI(t, http.StatusOK, map[string]interface{}{
			"access_token":  "a.b.c",
			"refresh_token": "r",
			"user":          map[string]interface{}{"id": "9", "email": "new@b.com", "name": "Новый", "role": "participant"},
		})

		phone := "+79991234567"
		res, err := NewEmailProvider(srv.URL, time.Second).Register(ctx, RegisterRequest{
			Email:    "new@b.com",
			Password: "secret123",
			Name:     "Новый",
			Phone:    &phone,
		})
		require.NoError(t, err)
		assert.Equal(t, "register", rec.action)
		assert.Equal(t, phone, rec.body["phone"])
		assert.NotContains(t, rec.body, "telegram")
		assert.Equal(t, "r", res.RefreshToken)
		assert.Equal(t, models.ID(9), res.User.ID)
	})

	t.Run("collects every validation problem", func(t *testing.T) {
		bad := "x"
		_, err := NewEmailProvider("http://127.0.0.1:0", time.Second).Register(ctx, RegisterRequest{
			Email:    "bad",
			Password: "short",
			Telegram: &bad,
		})
		var ve *ValidationError
		require.True(t, errors.As(err, &ve))
		assert.Contains(t, ve.Keys, "email_invalid")
		assert.Contains(t, ve.Keys, "password_too_short")
		assert.Contains(t, ve.Keys, "name_required")
		assert.Contains(t, ve.Keys, "telegram_invalid")
	})
}

func TestEmailLogoutSendsBearer(t *testing.T) {
	srv, rec := fakeAPI(t, http.StatusOK, map[string]bool{"success": true})

	require.NoError(t, NewEmailProvider(srv.URL, time.Second).Logout(context.Background(), "a.b.c"))
	assert.Equal(t, "logout", rec.action)
	assert.Equal(t, "Bearer a.b.c", rec.auth)
}

func TestPasswordReset(t *testing.T) {
	ctx := context.Background()
	srv, rec := fakeAPI(t, http.StatusOK, map[string]bool{"success": true})
	p := NewEmailProvider(srv.URL, time.Second)

	require.NoError(t, p.RequestPasswordReset(ctx, "a@b.com"))
	assert.Equal(t, "reset-password", rec.action)
	assert.Equal(t, map[string]interface{}{"email": "a@b.com"}, rec.body)

	require.NoError(t, p.ResetPassword(ctx, "a@b.com", "123456", "newpass123"))
	assert.Equal(t, "123456", rec.body["code"])
	assert.Equal(t, "newpass123", rec.body["new_password"])

	err := p.ResetPassword(ctx, "a@b.com", "12ab", "newpass123")
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, []string{"code_invalid"}, ve.Keys)
}

func TestTelegramExchange(t *testing.T) {
	ctx := context.Background()

	t.Run("success maps to telegram snapshot", func(t *testing.T) {
		srv, rec := fakeAPI(t, http.StatusOK, map[string]interface{}{
			"access_token": "a.b.c",
			"user":         map[string]interface{}{"id": 5, "name": "Тг", "telegram": "@tguser", "role": "participant"},
		})

		res, err := NewTelegramProvider(srv.URL, "", "", time.Second).Exchange(ctx, "one-time")
		require.NoError(t, err)
		assert.Equal(t, "callback", rec.action)
		assert.Equal(t, "one-time", rec.body["token"])
		assert.Equal(t, credstore.TelegramUser, res.Credentials().Provider)
	})

	t.Run("user without role is a participant", func(t *testing.T) {
		srv, _ := fakeAPI(t, http.StatusOK, map[string]interface{}{
			"access_token": "a.b.c",
			"user":         map[string]interface{}{"id": 6, "name": "Тг"},
		})

		res, err := NewTelegramProvider(srv.URL, "", "", time.Second).Exchange(ctx, "one-time")
		require.NoError(t, err)
		assert.Equal(t, models.RoleParticipant, res.User.Role)
	})

	t.Run("missing user", func(t *testing.T) {
		srv, _ := fakeAPI(t, http.StatusOK, map[string]interface{}{"access_token": "a.b.c"})

		_, err := NewTelegramProvider(srv.URL, "", "", time.Second).Exchange(ctx, "one-time")
		assert.Equal(t, locale.Get("invalid_response"), UserMessage(err))
	})

	t.Run("empty exchange token", func(t *testing.T) {
		_, err := NewTelegramProvider("http://127.0.0.1:0", "", "", time.Second).Exchange(ctx, "  ")
		assert.Equal(t, locale.Get("telegram_token_missing"), UserMessage(err))
	})
}

func TestTelegramLoginURL(t *testing.T) {
	u, err := NewTelegramProvider("", "@portal_bot", "", time.Second).LoginURL()
	require.NoError(t, err)
	assert.Equal(t, "https://t.me/portal_bot?start=auth", u)

	u, err = NewTelegramProvider("", "portal_bot", "https://portal.example/tg", time.Second).LoginURL()
	require.NoError(t, err)
	assert.Equal(t, "https://portal.example/tg", u)

	_, err = NewTelegramProvider("", "", "", time.Second).LoginURL()
	assert.Equal(t, locale.Get("telegram_not_configured"), UserMessage(err))
}

func TestYandexAuthURL(t *testing.T) {
	ctx := context.Background()

	t.Run("built locally with client id", func(t *testing.T) {
		p := NewYandexProvider("http://127.0.0.1:0", "cid", "login:email", time.Second)
		raw, err := p.AuthURL(ctx, "st", "http://127.0.0.1:8765/auth/yandex/callback")
		require.NoError(t, err)

		u, err := url.Parse(raw)
		require.NoError(t, err)
		assert.Equal(t, "oauth.yandex.ru", u.Host)
		q := u.Query()
		assert.Equal(t, "code", q.Get("response_type"))
		assert.Equal(t, "cid", q.Get("client_id"))
		assert.Equal(t, "st", q.Get("state"))
		assert.Equal(t, "login:email", q.Get("scope"))
	})

	t.Run("issued by remote function", func(t *testing.T) {
		srv, rec := fakeAPI(t, http.StatusOK, map[string]string{"auth_url": "https://oauth.yandex.ru/authorize?x=1"})
		p := NewYandexProvider(srv.URL, "", "", time.Second)

		raw, err := p.AuthURL(ctx, "st", "http://cb")
		require.NoError(t, err)
		assert.Equal(t, http.MethodGet, rec.method)
		assert.Equal(t, "auth-url", rec.action)
		assert.Equal(t, "https://oauth.yandex.ru/authorize?x=1", raw)
	})
}

func TestYandexExchange(t *testing.T) {
	ctx := context.Background()

	t.Run("forwards the whole query", func(t *testing.T) {
		srv, rec := fakeAPI(t, http.StatusOK, map[string]interface{}{
			"access_token":  "a.b.c",
			"refresh_token": "yr",
			"user":          map[string]interface{}{"id": 11, "email": "y@ya.ru", "name": "Я"},
		})
		q := url.Values{"code": {"c0de"}, "state": {"st"}}

		res, err := NewYandexProvider(srv.URL, "", "", time.Second).Exchange(ctx, q, "http://cb")
		require.NoError(t, err)
		assert.Equal(t, "c0de", rec.body["code"])
		assert.Equal(t, "st", rec.body["state"])
		assert.Equal(t, "http://cb", rec.body["redirect_uri"])

		creds := res.Credentials()
		assert.Equal(t, credstore.YandexUser, creds.Provider)
		assert.Equal(t, "yr", creds.RefreshToken)
	})

	t.Run("provider error", func(t *testing.T) {
		q := url.Values{"error": {"access_denied"}, "error_description": {"Отказано"}}
		_, err := NewYandexProvider("http://127.0.0.1:0", "", "", time.Second).Exchange(ctx, q, "")
		assert.Equal(t, "Отказано", UserMessage(err))
	})

	t.Run("missing code", func(t *testing.T) {
		_, err := NewYandexProvider("http://127.0.0.1:0", "", "", time.Second).Exchange(ctx, url.Values{}, "")
		assert.Equal(t, locale.Get("yandex_code_missing"), UserMessage(err))
	})
}

func TestYandexRefresh(t *testing.T) {
	ctx := context.Background()

	srv, rec := fakeAPI(t, http.StatusOK, map[string]string{"access_token": "n.e.w", "refresh_token": "r2"})
	pair, err := NewYandexProvider(srv.URL, "", "", time.Second).Refresh(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "refresh", rec.action)
	assert.Equal(t, "r1", rec.body["refresh_token"])
	assert.Equal(t, &TokenPair{AccessToken: "n.e.w", RefreshToken: "r2"}, pair)

	srv, _ = fakeAPI(t, http.StatusUnauthorized, map[string]string{})
	_, err = NewYandexProvider(srv.URL, "", "", time.Second).Refresh(ctx, "r1")
	assert.Equal(t, locale.Get("session_expired"), UserMessage(err))
}
