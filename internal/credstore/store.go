// Package credstore хранит токен сессии и снимки пользователя провайдеров
// в двух местах сразу: cookie и локальное хранилище. Чтение идёт из cookie,
// при отсутствии значения из локального хранилища.
package credstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pr-poehali-dev/spa-community-portal/internal/models"
)

const (
	KeyAuthToken    = "auth_token"
	KeyRefreshToken = "refresh_token"
)

// ProviderKey ключ снимка пользователя внешнего провайдера
type ProviderKey string

const (
	TelegramUser ProviderKey = "telegram_user"
	YandexUser   ProviderKey = "yandex_user"
)

// SnapshotKeys порядок проверки снимков при восстановлении сессии
var SnapshotKeys = []ProviderKey{TelegramUser, YandexUser}

// LegacyKeys ключи прежних версий схемы, которые могли остаться у пользователей
var LegacyKeys = []string{
	"telegram_auth_refresh_token",
	"yandex_auth_refresh_token",
	"access_token",
}

// DefaultTTL срок жизни записей cookie
const DefaultTTL = 30 * 24 * time.Hour

// AllKeys все ключи, которые удаляет Clear
func AllKeys() []string {
	keys := []string{KeyAuthToken, KeyRefreshToken}
	for _, k := range SnapshotKeys {
		keys = append(keys, string(k))
	}
	return append(keys, LegacyKeys...)
}

// Credentials запись, которую провайдер передаёт после успешного входа
type Credentials struct {
	Token        string
	RefreshToken string
	Provider     ProviderKey // пусто для входа по email
	User         *models.User
}

type Store struct {
	primary   Backend
	secondary Backend
	ttl       time.Duration
	logger    *zap.Logger
}

func New(primary, secondary Backend, ttl time.Duration, logger *zap.Logger) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{primary: primary, secondary: secondary, ttl: ttl, logger: logger}
}

func (s *Store) Backends() []Backend {
	return []Backend{s.primary, s.secondary}
}

// Write записывает учётные данные в оба места. Ошибка одного места не отменяет запись в другое.
// Новая запись заменяет прежнюю: чужие снимки и старый refresh token удаляются
func (s *Store) Write(ctx context.Context, c Credentials) error {
	if c.Token == "" {
		return errors.New("empty session token")
	}

	values := map[string]string{KeyAuthToken: c.Token}
	var stale []string

	if c.RefreshToken != "" {
		values[KeyRefreshToken] = c.RefreshToken
	} else {
		stale = append(stale, KeyRefreshToken)
	}

	if c.Provider != "" && c.User != nil {
		snapshot, err := json.Marshal(c.User)
		if err != nil {
			return fmt.Errorf("failed to serialize %s: %w", c.Provider, err)
		}
		values[string(c.Provider)] = string(snapshot)
	}
	for _, k := range SnapshotKeys {
		if _, ok := values[string(k)]; !ok {
			stale = append(stale, string(k))
		}
	}
	stale = append(stale, LegacyKeys...)

	var errs []error
	for _, b := range s.Backends() {
		for key, value := range values {
			if err := b.Set(ctx, key, value, s.ttl); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", b.Name(), err))
			}
		}
		if err := b.Delete(ctx, stale...); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", b.Name(), err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		s.logger.Warn("credential write incomplete", zap.Error(err))
		return err
	}

	s.logger.Debug("credentials written", zap.String("provider", string(c.Provider)))
	return nil
}

func (s *Store) ReadToken(ctx context.Context) (string, bool) {
	return s.read(ctx, KeyAuthToken)
}

func (s *Store) ReadRefreshToken(ctx context.Context) (string, bool) {
	return s.read(ctx, KeyRefreshToken)
}

// ReadProviderUser возвращает сохранённый снимок пользователя в исходном виде
func (s *Store) ReadProviderUser(ctx context.Context, key ProviderKey) (string, bool) {
	return s.read(ctx, string(key))
}

func (s *Store) read(ctx context.Context, key string) (string, bool) {
	for _, b := range s.Backends() {
		v, err := b.Get(ctx, key)
		switch {
		case err == nil && v != "":
			return v, true
		case err != nil && !errors.Is(err, ErrNotFound):
			s.logger.Warn("credential read failed, trying next store",
				zap.String("store", b.Name()),
				zap.String("key", key),
				zap.Error(err),
			)
		}
	}
	return "", false
}

// Clear удаляет все известные ключи, включая устаревшие, из обоих мест
func (s *Store) Clear(ctx context.Context) error {
	keys := AllKeys()

	var errs []error
	for _, b := range s.Backends() {
		if err := b.Delete(ctx, keys...); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", b.Name(), err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		s.logger.Warn("credential clear incomplete", zap.Error(err))
		return err
	}
	return nil
}
