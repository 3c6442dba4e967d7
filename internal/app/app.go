// Package app собирает клиент из конфигурации: хранилища, провайдеры, сессию и клиент ролей.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/pr-poehali-dev/spa-community-portal/internal/callback"
	"github.com/pr-poehali-dev/spa-community-portal/internal/config"
	"github.com/pr-poehali-dev/spa-community-portal/internal/credstore"
	"github.com/pr-poehali-dev/spa-community-portal/internal/providers"
	"github.com/pr-poehali-dev/spa-community-portal/internal/roles"
	"github.com/pr-poehali-dev/spa-community-portal/internal/session"
)

type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	Store    *credstore.Store
	Email    *providers.EmailProvider
	Telegram *providers.TelegramProvider
	Yandex   *providers.YandexProvider
	Session  *session.Session
	Roles    *roles.Client
	Health   *HealthChecker

	redis *redis.Client
}

// New собирает приложение. Сессия после New ещё не сверена: вызовите Session.CheckAuth
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{Config: cfg, Logger: logger}

	profileDir := filepath.Join(cfg.Storage.Dir, cfg.Storage.Profile)
	if err := os.MkdirAll(profileDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create storage dir: %w", err)
	}

	primary := credstore.NewCookieJar(filepath.Join(profileDir, "cookies.json"))

	var secondary credstore.Backend
	switch cfg.Storage.Secondary {
	case "redis":
		rdb, err := credstore.ConnectRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.PoolSize)
		if err != nil {
			return nil, err
		}
		a.redis = rdb
		secondary = credstore.NewRedisStore(rdb, cfg.Storage.Profile)
	case "memory":
		secondary = credstore.NewMemoryStore()
	default:
		secondary = credstore.NewFileStore(filepath.Join(profileDir, "local.json"))
	}

	a.Store = credstore.New(primary, secondary, cfg.Storage.TokenTTL, logger.Named("credstore"))

	timeout := cfg.API.Timeout
	a.Email = providers.NewEmailProvider(cfg.API.AuthURL, timeout)
	a.Telegram = providers.NewTelegramProvider(cfg.API.TelegramAuthURL, cfg.Telegram.BotName, cfg.Telegram.LoginURL, timeout)
	a.Yandex = providers.NewYandexProvider(cfg.API.YandexAuthURL, cfg.OAuth.Yandex.ClientID, cfg.OAuth.Yandex.Scopes, timeout)

	a.Session = session.New(a.Store, a.Email, a.Telegram, a.Yandex, logger.Named("session"))
	a.Roles = roles.NewClient(cfg.API.RolesURL, timeout, logger.Named("roles"))

	a.Health = NewHealthChecker(a.Store.Backends(), map[string]string{
		"auth":     cfg.API.AuthURL,
		"telegram": cfg.API.TelegramAuthURL,
		"yandex":   cfg.API.YandexAuthURL,
		"roles":    cfg.API.RolesURL,
	}, timeout)

	logger.Debug("app initialized",
		zap.String("storage_dir", profileDir),
		zap.String("secondary", secondary.Name()),
	)
	return a, nil
}

// CallbackServer страница входа для Telegram и Яндекса
func (a *App) CallbackServer() *callback.Server {
	return callback.New(a.Session, callback.Options{
		Addr:              a.Config.Callback.Addr,
		RedirectDelay:     a.Config.Callback.RedirectDelay,
		YandexRedirectURI: a.Config.OAuth.Yandex.RedirectURL,
	}, a.Logger.Named("callback"))
}

func (a *App) Close() error {
	if a.redis != nil {
		return a.redis.Close()
	}
	return nil
}
