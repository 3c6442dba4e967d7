package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	API      APIConfig      `mapstructure:"api"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Redis    RedisConfig    `mapstructure:"redis"`
	OAuth    OAuthConfig    `mapstructure:"oauth"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Callback CallbackConfig `mapstructure:"callback"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// APIConfig адреса удалённых функций портала
type APIConfig struct {
	AuthURL         string        `mapstructure:"auth_url"`
	TelegramAuthURL string        `mapstructure:"telegram_auth_url"`
	YandexAuthURL   string        `mapstructure:"yandex_auth_url"`
	RolesURL        string        `mapstructure:"roles_url"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

type StorageConfig struct {
	Dir       string        `mapstructure:"dir"`
	Secondary string        `mapstructure:"secondary"` // file, redis, memory
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
	Profile   string        `mapstructure:"profile"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type OAuthConfig struct {
	Yandex OAuthProviderConfig `mapstructure:"yandex"`
}

type OAuthProviderConfig struct {
	ClientID    string `mapstructure:"client_id"`
	RedirectURL string `mapstructure:"redirect_url"`
	Scopes      string `mapstructure:"scopes"`
}

type TelegramConfig struct {
	BotName  string `mapstructure:"bot_name"`
	LoginURL string `mapstructure:"login_url"`
}

type CallbackConfig struct {
	Addr          string        `mapstructure:"addr"`
	RedirectDelay time.Duration `mapstructure:"redirect_delay"`
	WaitTimeout   time.Duration `mapstructure:"wait_timeout"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json, text
}

// Load читает конфигурацию из файла (если указан или найден), .env и переменных окружения PORTAL_*
func Load(path string) (*Config, error) {
	// .env необязателен
	_ = godotenv.Load()

	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".portal"))
		}
	}

	setDefaults(v)

	v.SetEnvPrefix("portal")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate проверяет значения, без которых клиент не сможет работать
func (c *Config) Validate() error {
	switch c.Storage.Secondary {
	case "file", "redis", "memory":
	default:
		return fmt.Errorf("unsupported secondary storage: %q", c.Storage.Secondary)
	}
	if c.Storage.TokenTTL <= 0 {
		return fmt.Errorf("storage.token_ttl must be positive")
	}
	if c.API.AuthURL == "" {
		return fmt.Errorf("api.auth_url is required")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	home, _ := os.UserHomeDir()

	// API defaults
	v.SetDefault("api.auth_url", "https://functions.poehali.dev/auth")
	v.SetDefault("api.telegram_auth_url", "https://functions.poehali.dev/telegram-auth")
	v.SetDefault("api.yandex_auth_url", "https://functions.poehali.dev/yandex-auth")
	v.SetDefault("api.roles_url", "https://functions.poehali.dev/roles")
	v.SetDefault("api.timeout", "15s")

	// Storage defaults
	v.SetDefault("storage.dir", filepath.Join(home, ".portal"))
	v.SetDefault("storage.secondary", "file")
	v.SetDefault("storage.token_ttl", "720h")
	v.SetDefault("storage.profile", "default")

	// Redis defaults
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 4)

	// OAuth defaults
	v.SetDefault("oauth.yandex.client_id", "")
	v.SetDefault("oauth.yandex.redirect_url", "")
	v.SetDefault("oauth.yandex.scopes", "login:email login:info")

	// Telegram defaults
	v.SetDefault("telegram.bot_name", "")
	v.SetDefault("telegram.login_url", "")

	// Callback listener defaults
	v.SetDefault("callback.addr", "127.0.0.1:8765")
	v.SetDefault("callback.redirect_delay", "3s")
	v.SetDefault("callback.wait_timeout", "5m")

	// Logging defaults
	v.SetDefault("logging.level", "warn")
	v.SetDefault("logging.format", "text")
}
