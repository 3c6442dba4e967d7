package callback

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pr-poehali-dev/spa-community-portal/internal/credstore"
	"github.com/pr-poehali-dev/spa-community-portal/internal/models"
	"github.com/pr-poehali-dev/spa-community-portal/internal/providers"
	"github.com/pr-poehali-dev/spa-community-portal/internal/session"
	"github.com/pr-poehali-dev/spa-community-portal/internal/token/tokentest"
)

type fakeCompleter struct {
	mu       sync.Mutex
	user     *models.User
	err      error
	tokens   []string
	queries  []url.Values
	redirect string
}

func (f *fakeCompleter) CompleteTelegram(_ context.Context, token string, guard session.Guard) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = append(f.tokens, token)
	return f.result(guard)
}

func (f *fakeCompleter) CompleteYandex(_ context.Context, q url.Values, redirectURI string, guard session.Guard) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	f.redirect = redirectURI
	return f.result(guard)
}

func (f *fakeCompleter) result(guard session.Guard) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	if !guard.Acquire() {
		return nil, session.ErrLoginClaimed
	}
	return f.user, nil
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestTelegramCallbackSuccess(t *testing.T) {
	fc := &fakeCompleter{user: &models.User{ID: 5, Name: "Тг", Role: models.RoleParticipant}}
	s := New(fc, Options{}, nil)
	h := s.Router()

	rec := get(t, h, TelegramPath+"?token=one-time")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Вход выполнен")
	assert.Equal(t, []string{"one-time"}, fc.tokens)

	user, err := s.Wait(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, models.ID(5), user.ID)

	// повторный callback после успеха не обрабатывается
	rec = get(t, h, TelegramPath+"?token=again")
	assert.Equal(t, http.StatusGone, rec.Code)
	assert.Len(t, fc.tokens, 1)
}

func TestCallbackFailureRedirectsToLogin(t *testing.T) {
	fc := &fakeCompleter{err: &providers.Error{Provider: providers.ProviderTelegram, Op: "callback", Message: "Токен устарел"}}
	s := New(fc, Options{RedirectDelay: 2 * time.Second}, nil)

	rec := get(t, s.Router(), TelegramPath+"?token=old")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Токен устарел")
	assert.Contains(t, body, `content="2;url=/login"`)

	// ошибка не завершает ожидание
	_, err := s.Wait(context.Background(), 50*time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestYandexCallbackChecksState(t *testing.T) {
	fc := &fakeCompleter{user: &models.User{ID: 9, Email: "y@ya.ru"}}
	s := New(fc, Options{}, nil)
	h := s.Router()

	rec := get(t, h, YandexPath+"?code=abc&state=forged")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "state")
	assert.Empty(t, fc.queries)

	rec = get(t, h, YandexPath+"?code=abc&state="+url.QueryEscape(s.State()))
	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, fc.queries, 1)
	assert.Equal(t, "abc", fc.queries[0].Get("code"))
	assert.Equal(t, YandexPath, fc.redirect)
}

func TestYandexProviderErrorSkipsStateCheck(t *testing.T) {
	fc := &fakeCompleter{err: errors.New("denied")}
	s := New(fc, Options{}, nil)

	rec := get(t, s.Router(), YandexPath+"?error=access_denied")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Len(t, fc.queries, 1)
}

func TestLoginPageRedirectsToEntry(t *testing.T) {
	s := New(&fakeCompleter{}, Options{}, nil)
	h := s.Router()

	rec := get(t, h, LoginPath)
	assert.Equal(t, http.StatusOK, rec.Code)

	s.SetEntryURL("https://oauth.yandex.ru/authorize?client_id=x")
	rec = get(t, h, LoginPath)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://oauth.yandex.ru/authorize?client_id=x", rec.Header().Get("Location"))

	rec = get(t, h, "/")
	assert.Equal(t, LoginPath, rec.Header().Get("Location"))
}

func TestLateCallbackAfterShutdown(t *testing.T) {
	fc := &fakeCompleter{user: &models.User{ID: 1}}
	s := New(fc, Options{}, nil)
	require.NoError(t, s.Shutdown(context.Background()))

	rec := get(t, s.Router(), TelegramPath+"?token=late")
	assert.Equal(t, http.StatusGone, rec.Code)
	assert.Empty(t, fc.tokens)

	_, err := s.Wait(context.Background(), time.Second)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestServerOverLoopback(t *testing.T) {
	fc := &fakeCompleter{user: &models.User{ID: 3, Name: "Тест"}}
	s := New(fc, Options{Addr: "127.0.0.1:0"}, nil)
	require.NoError(t, s.Start())
	defer func() { _ = s.Shutdown(context.Background()) }()

	assert.Contains(t, s.TelegramCallback(), "http://127.0.0.1:")

	resp, err := http.Get(s.TelegramCallback() + "?token=t")
	require.NoError(t, err)
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	user, err := s.Wait(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, "Тест", user.Name)
}

// gatedTelegram держит обмен токена, пока тест не отпустит его
type gatedTelegram struct {
	entered chan string
	release map[string]chan struct{}
	users   map[string]models.ID
}

func (g *gatedTelegram) Exchange(ctx context.Context, token string) (*providers.AuthResult, error) {
	g.entered <- token
	<-g.release[token]
	id := g.users[token]
	return &providers.AuthResult{
		Provider:    providers.ProviderTelegram,
		AccessToken: tokentest.Delegated(int64(id), time.Now().Add(time.Hour)),
		User:        &models.User{ID: id, Name: "Тг", Role: models.RoleParticipant},
	}, nil
}

func TestConcurrentCallbacksOnlyFirstIsStored(t *testing.T) {
	tg := &gatedTelegram{
		entered: make(chan string, 2),
		release: map[string]chan struct{}{"a": make(chan struct{}), "b": make(chan struct{})},
		users:   map[string]models.ID{"a": 1, "b": 2},
	}
	store := credstore.New(credstore.NewMemoryStore(), credstore.NewMemoryStore(), credstore.DefaultTTL, nil)
	sess := session.New(store, nil, tg, nil, nil)
	s := New(sess, Options{}, nil)
	h := s.Router()

	codes := map[string]chan int{"a": make(chan int, 1), "b": make(chan int, 1)}
	for tok, code := range codes {
		go func(tok string, code chan<- int) {
			code <- get(t, h, TelegramPath+"?token="+tok).Code
		}(tok, code)
	}
	// оба обмена уже идут
	<-tg.entered
	<-tg.entered

	close(tg.release["a"])
	assert.Equal(t, http.StatusOK, <-codes["a"])
	close(tg.release["b"])
	assert.Equal(t, http.StatusGone, <-codes["b"])

	user, err := s.Wait(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, models.ID(1), user.ID)

	// в хранилище остался тот же пользователь, что вернул Wait
	out := session.New(store, nil, nil, nil, nil).CheckAuth(context.Background())
	require.Equal(t, session.StateAuthenticated, out.State)
	assert.Equal(t, models.ID(1), out.User.ID)
}
