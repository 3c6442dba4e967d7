// Package callback поднимает локальную страницу, на которую провайдер возвращает
// пользователя после входа в браузере.
package callback

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pr-poehali-dev/spa-community-portal/internal/models"
	"github.com/pr-poehali-dev/spa-community-portal/internal/providers"
	"github.com/pr-poehali-dev/spa-community-portal/internal/session"
	"github.com/pr-poehali-dev/spa-community-portal/pkg/locale"
)

const (
	TelegramPath = "/auth/telegram/callback"
	YandexPath   = "/auth/yandex/callback"
	LoginPath    = "/login"
)

var (
	ErrClosed  = errors.New("callback listener closed")
	ErrTimeout = errors.New("timed out waiting for login")
)

// Completer завершает вход. Результат, пришедший после отмены контекста, не сохраняется;
// запись разрешена, только если guard.Acquire вернул true
type Completer interface {
	CompleteTelegram(ctx context.Context, exchangeToken string, guard session.Guard) (*models.User, error)
	CompleteYandex(ctx context.Context, query url.Values, redirectURI string, guard session.Guard) (*models.User, error)
}

type Options struct {
	Addr          string
	RedirectDelay time.Duration
	// YandexRedirectURI адрес, зарегистрированный в приложении Яндекса; по умолчанию локальный callback
	YandexRedirectURI string
}

type Result struct {
	User *models.User
	Err  error
}

type Server struct {
	completer Completer
	logger    *zap.Logger
	delay     time.Duration
	state     string
	yandexURI string

	mu       sync.Mutex
	entryURL string

	active atomic.Bool
	done   chan Result
	once   sync.Once

	ctx      context.Context
	cancel   context.CancelFunc
	listener net.Listener
	http     *http.Server
}

func New(completer Completer, opts Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.RedirectDelay <= 0 {
		opts.RedirectDelay = 3 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		completer: completer,
		logger:    logger,
		delay:     opts.RedirectDelay,
		yandexURI: opts.YandexRedirectURI,
		state:     uuid.NewString(),
		done:      make(chan Result, 1),
		ctx:       ctx,
		cancel:    cancel,
	}
	s.http = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	s.active.Store(true)
	return s
}

// Router маршруты страницы входа
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(chimw.NoCache)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, LoginPath, http.StatusFound)
	})
	r.Get(LoginPath, s.handleLogin)
	r.Get(TelegramPath, s.handleTelegram)
	r.Get(YandexPath, s.handleYandex)

	return r
}

// Start открывает порт и начинает принимать callback
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.http.Addr, err)
	}
	s.listener = ln

	go func() {
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("callback server stopped", zap.Error(err))
		}
	}()

	s.logger.Debug("callback listener started", zap.String("addr", ln.Addr().String()))
	return nil
}

// BaseURL адрес слушателя; до Start пустой
func (s *Server) BaseURL() string {
	if s.listener == nil {
		return ""
	}
	return "http://" + s.listener.Addr().String()
}

func (s *Server) LoginURL() string        { return s.BaseURL() + LoginPath }
func (s *Server) TelegramCallback() string { return s.BaseURL() + TelegramPath }
func (s *Server) YandexCallback() string   { return s.BaseURL() + YandexPath }

// YandexRedirectURI redirect_uri для авторизации и обмена кода
func (s *Server) YandexRedirectURI() string {
	if s.yandexURI != "" {
		return s.yandexURI
	}
	return s.YandexCallback()
}

// State значение state для OAuth, проверяется в callback Яндекса
func (s *Server) State() string { return s.state }

// SetEntryURL адрес провайдера, на который ведёт страница входа
func (s *Server) SetEntryURL(u string) {
	s.mu.Lock()
	s.entryURL = u
	s.mu.Unlock()
}

// Wait ждёт первого успешного входа. Ошибки провайдера не завершают ожидание:
// пользователь возвращается на страницу входа и может повторить
func (s *Server) Wait(ctx context.Context, timeout time.Duration) (*models.User, error) {
	var timer <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	}

	select {
	case res := <-s.done:
		return res.User, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer:
		return nil, ErrTimeout
	case <-s.ctx.Done():
		return nil, ErrClosed
	}
}

// Shutdown закрывает слушатель; обмены, которые ещё идут, будут отброшены
func (s *Server) Shutdown(ctx context.Context) error {
	s.active.Store(false)
	s.cancel()
	return s.http.Shutdown(ctx)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	entry := s.entryURL
	s.mu.Unlock()

	if entry == "" {
		s.render(w, http.StatusOK, page{Title: locale.Get("login_required")})
		return
	}
	http.Redirect(w, r, entry, http.StatusFound)
}

func (s *Server) handleTelegram(w http.ResponseWriter, r *http.Request) {
	if !s.active.Load() {
		s.render(w, http.StatusGone, page{Title: locale.Get("callback_closed")})
		return
	}

	user, err := s.completer.CompleteTelegram(r.Context(), r.URL.Query().Get("token"), oneShot{s})
	s.finish(w, providers.ProviderTelegram, user, err)
}

func (s *Server) handleYandex(w http.ResponseWriter, r *http.Request) {
	if !s.active.Load() {
		s.render(w, http.StatusGone, page{Title: locale.Get("callback_closed")})
		return
	}

	query := r.URL.Query()
	if query.Get("error") == "" && query.Get("state") != s.state {
		s.finish(w, providers.ProviderYandex, nil, &providers.Error{
			Provider: providers.ProviderYandex,
			Op:       "callback",
			Message:  locale.Get("yandex_state_mismatch"),
		})
		return
	}

	user, err := s.completer.CompleteYandex(r.Context(), query, s.YandexRedirectURI(), oneShot{s})
	s.finish(w, providers.ProviderYandex, user, err)
}

func (s *Server) finish(w http.ResponseWriter, provider string, user *models.User, err error) {
	if errors.Is(err, session.ErrLoginClaimed) {
		s.render(w, http.StatusGone, page{Title: locale.Get("callback_closed")})
		return
	}
	if err != nil {
		s.logger.Warn("provider callback failed", zap.String("provider", provider), zap.Error(err))
		s.render(w, http.StatusBadRequest, page{
			Title:    locale.Get(provider + "_login_failed"),
			Message:  providers.UserMessage(err),
			Note:     locale.Getf("redirecting_to_login", int(s.delay.Seconds())),
			Redirect: LoginPath,
			Delay:    int(s.delay.Seconds()),
		})
		return
	}

	s.once.Do(func() { s.done <- Result{User: user} })
	s.render(w, http.StatusOK, page{
		Title:   locale.Get("callback_success"),
		Message: locale.Getf("authenticated_as", user.DisplayName(), int64(user.ID), user.Role),
	})
}

// oneShot пускает к записи учётных данных только первый успешный callback
type oneShot struct{ s *Server }

func (o oneShot) Acquire() bool { return o.s.active.CompareAndSwap(true, false) }

// Release возвращает слот, если сессия не прошла сверку; после Shutdown слот не возвращается
func (o oneShot) Release() {
	if o.s.ctx.Err() == nil {
		o.s.active.Store(true)
	}
}
