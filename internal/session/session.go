package session

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"go.uber.org/zap"

	"github.com/pr-poehali-dev/spa-community-portal/internal/credstore"
	"github.com/pr-poehali-dev/spa-community-portal/internal/models"
	"github.com/pr-poehali-dev/spa-community-portal/internal/providers"
	"github.com/pr-poehali-dev/spa-community-portal/pkg/logger"
	"github.com/pr-poehali-dev/spa-community-portal/pkg/utils"
)

var (
	// ErrSessionRejected провайдер ответил успехом, но сохранённая сессия не прошла сверку
	ErrSessionRejected  = errors.New("session rejected after login")
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrNoRefreshToken   = errors.New("refresh token is missing")
	// ErrLoginClaimed вход уже завершил другой callback, этот результат не записан
	ErrLoginClaimed     = errors.New("login already completed")
)

// Guard решает, можно ли записать результат входа. Acquire и Release вызываются
// под мьютексом сессии: Acquire перед записью, Release если сверка отклонила сессию
type Guard interface {
	Acquire() bool
	Release()
}

type EmailAuth interface {
	Login(ctx context.Context, email, password string) (*providers.AuthResult, error)
	Register(ctx context.Context, req providers.RegisterRequest) (*providers.AuthResult, error)
	Logout(ctx context.Context, token string) error
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, email, code, newPassword string) error
}

type TelegramAuth interface {
	Exchange(ctx context.Context, exchangeToken string) (*providers.AuthResult, error)
}

type YandexAuth interface {
	Exchange(ctx context.Context, query url.Values, redirectURI string) (*providers.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (*providers.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
}

// Session объект сессии: создаётся один раз при старте и передаётся тем, кому нужен пользователь
type Session struct {
	mu         sync.Mutex
	store      CredentialStore
	reconciler *Reconciler
	email      EmailAuth
	telegram   TelegramAuth
	yandex     YandexAuth
	logger     *zap.Logger

	state    State
	user     *models.User
	provider credstore.ProviderKey
}

func New(store CredentialStore, email EmailAuth, telegram TelegramAuth, yandex YandexAuth, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{
		store:      store,
		reconciler: NewReconciler(store, log),
		email:      email,
		telegram:   telegram,
		yandex:     yandex,
		logger:     log,
		state:      StateUnknown,
	}
}

// CurrentUser копия текущего пользователя или nil
func (s *Session) CurrentUser() *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Provider ключ снимка, по которому восстановлена сессия; пусто для email
func (s *Session) Provider() credstore.ProviderKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.provider
}

// CheckAuth сверяет сохранённые данные. Можно вызывать сколько угодно раз
func (s *Session) CheckAuth(ctx context.Context) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checkLocked(ctx)
}

func (s *Session) checkLocked(ctx context.Context) Outcome {
	s.state = StateChecking
	out := s.reconciler.Reconcile(ctx)

	s.state = out.State
	s.user = out.User
	s.provider = out.Provider
	return out
}

// Establish сохраняет результат входа и сразу сверяет сессию
func (s *Session) Establish(ctx context.Context, res *providers.AuthResult) (*models.User, error) {
	return s.establish(ctx, res, nil)
}

func (s *Session) establish(ctx context.Context, res *providers.AuthResult, guard Guard) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// результат, пришедший после отмены (закрыт callback, истёк таймаут), не записывается
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("discarding late %s result: %w", res.Provider, err)
	}
	if guard != nil && !guard.Acquire() {
		logger.AuditLog(s.logger, res.User.ID.String(), "login", res.Provider, "discarded", nil)
		return nil, ErrLoginClaimed
	}

	if err := s.store.Write(ctx, res.Credentials()); err != nil {
		// запись в одно из мест могла пройти, сверка решит
		s.logger.Warn("credentials partially written", zap.String("provider", res.Provider), zap.Error(err))
	}

	out := s.checkLocked(ctx)
	if out.State != StateAuthenticated {
		if guard != nil {
			guard.Release()
		}
		logger.AuditLog(s.logger, res.User.ID.String(), "login", res.Provider, "rejected",
			map[string]interface{}{"reason": out.Reason})
		return nil, fmt.Errorf("%w: %s", ErrSessionRejected, out.Reason)
	}

	logger.AuditLog(s.logger, out.User.ID.String(), "login", res.Provider, "success", nil)
	u := *out.User
	return &u, nil
}

func (s *Session) Login(ctx context.Context, email, password string) (*models.User, error) {
	res, err := s.email.Login(ctx, email, password)
	if err != nil {
		s.auditFailure("login", providers.ProviderEmail, err)
		return nil, err
	}
	return s.Establish(ctx, res)
}

func (s *Session) Register(ctx context.Context, req providers.RegisterRequest) (*models.User, error) {
	res, err := s.email.Register(ctx, req)
	if err != nil {
		s.auditFailure("register", providers.ProviderEmail, err)
		return nil, err
	}
	return s.Establish(ctx, res)
}

// CompleteTelegram завершает вход по одноразовому токену из callback. guard может быть nil
func (s *Session) CompleteTelegram(ctx context.Context, exchangeToken string, guard Guard) (*models.User, error) {
	res, err := s.telegram.Exchange(ctx, exchangeToken)
	if err != nil {
		s.auditFailure("login", providers.ProviderTelegram, err)
		return nil, err
	}
	return s.establish(ctx, res, guard)
}

// CompleteYandex завершает OAuth-вход по параметрам callback
func (s *Session) CompleteYandex(ctx context.Context, query url.Values, redirectURI string, guard Guard) (*models.User, error) {
	res, err := s.yandex.Exchange(ctx, query, redirectURI)
	if err != nil {
		s.auditFailure("login", providers.ProviderYandex, err)
		return nil, err
	}
	return s.establish(ctx, res, guard)
}

// Refresh обновляет токен сессии Яндекса. Снимок пользователя остаётся прежним
func (s *Session) Refresh(ctx context.Context) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	refresh, ok := s.store.ReadRefreshToken(ctx)
	if !ok {
		return nil, ErrNoRefreshToken
	}

	var user *models.User
	if raw, ok := s.store.ReadProviderUser(ctx, credstore.YandexUser); ok {
		if u, err := models.ParseUser(raw); err == nil {
			user = u
		}
	}
	if user == nil {
		return nil, fmt.Errorf("%w: no yandex session", ErrNotAuthenticated)
	}

	pair, err := s.yandex.Refresh(ctx, refresh)
	if err != nil {
		return nil, err
	}
	if pair.RefreshToken == "" {
		pair.RefreshToken = refresh
	}

	if err := s.store.Write(ctx, credstore.Credentials{
		Token:        pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		Provider:     credstore.YandexUser,
		User:         user,
	}); err != nil {
		s.logger.Warn("refreshed credentials partially written", zap.Error(err))
	}

	out := s.checkLocked(ctx)
	if out.State != StateAuthenticated {
		return nil, fmt.Errorf("%w: %s", ErrSessionRejected, out.Reason)
	}
	logger.AuditLog(s.logger, out.User.ID.String(), "refresh", providers.ProviderYandex, "success", nil)
	u := *out.User
	return &u, nil
}

func (s *Session) RequestPasswordReset(ctx context.Context, email string) error {
	return s.email.RequestPasswordReset(ctx, email)
}

func (s *Session) ConfirmPasswordReset(ctx context.Context, email, code, newPassword string) error {
	if err := s.email.ResetPassword(ctx, email, code, newPassword); err != nil {
		return err
	}
	logger.AuditLog(s.logger, "", "reset_password", providers.ProviderEmail, "success",
		map[string]interface{}{"email": utils.MaskEmail(email)})
	return nil
}

// Logout уведомляет сервер и всегда очищает локальные данные.
// Ошибка сети только логируется; ошибка очистки хранилища возвращается
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	userID := ""
	if s.user != nil {
		userID = s.user.ID.String()
	}

	if tok, ok := s.store.ReadToken(ctx); ok && s.email != nil {
		if err := s.email.Logout(ctx, tok); err != nil {
			s.logger.Warn("remote logout failed", zap.String("provider", providers.ProviderEmail), zap.Error(err))
		}
	}
	if refresh, ok := s.store.ReadRefreshToken(ctx); ok && s.yandex != nil {
		if _, isYandex := s.store.ReadProviderUser(ctx, credstore.YandexUser); isYandex {
			if err := s.yandex.Logout(ctx, refresh); err != nil {
				s.logger.Warn("remote logout failed", zap.String("provider", providers.ProviderYandex), zap.Error(err))
			}
		}
	}

	err := s.store.Clear(ctx)
	s.state = StateAnonymous
	s.user = nil
	s.provider = ""

	logger.AuditLog(s.logger, userID, "logout", "", "success", nil)
	return err
}

func (s *Session) auditFailure(action, provider string, err error) {
	logger.AuditLog(s.logger, "", action, provider, "failure",
		map[string]interface{}{"error": err.Error()})
}
