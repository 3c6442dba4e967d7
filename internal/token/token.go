// Package token извлекает утверждения из токена сессии без проверки подписи.
// Подпись проверяет сервер при каждом вызове API; здесь только данные для решений клиента.
package token

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pr-poehali-dev/spa-community-portal/internal/models"
)

var ErrInvalid = errors.New("invalid token")

// Payload утверждения токена: EmailClaims или DelegatedClaims
type Payload interface {
	Subject() models.ID
	isPayload()
}

// EmailClaims токен входа по email самодостаточен
type EmailClaims struct {
	UserID models.ID
	Email  string
	Name   string
}

func (c EmailClaims) Subject() models.ID { return c.UserID }
func (EmailClaims) isPayload()           {}

// DelegatedClaims токен внешнего провайдера несёт только id, пользователя хранит снимок
type DelegatedClaims struct {
	UserID models.ID
}

func (c DelegatedClaims) Subject() models.ID { return c.UserID }
func (DelegatedClaims) isPayload()           {}

type Inspection struct {
	Payload   Payload
	ExpiresAt time.Time
	HasExpiry bool
}

// Live токен жив, если exp*1000 > now в миллисекундах. Токен без exp живым не считается
func (i Inspection) Live(now time.Time) bool {
	return i.HasExpiry && i.ExpiresAt.UnixMilli() > now.UnixMilli()
}

type claims struct {
	UserID    models.ID        `json:"user_id"`
	Email     *string          `json:"email"`
	Name      string           `json:"name"`
	ExpiresAt *jwt.NumericDate `json:"exp"`
}

var parser = jwt.NewParser(jwt.WithPaddingAllowed())

// Inspect разбирает токен. Любая ошибка формата превращается в ErrInvalid
func Inspect(raw string) (Inspection, error) {
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return Inspection{}, ErrInvalid
	}
	for _, p := range parts {
		if p == "" {
			return Inspection{}, ErrInvalid
		}
	}

	payload, err := parser.DecodeSegment(parts[1])
	if err != nil {
		return Inspection{}, ErrInvalid
	}

	var c claims
	if err := json.Unmarshal(payload, &c); err != nil {
		return Inspection{}, ErrInvalid
	}
	if c.UserID == 0 {
		return Inspection{}, ErrInvalid
	}

	ins := Inspection{}
	if c.ExpiresAt != nil {
		ins.ExpiresAt = c.ExpiresAt.Time
		ins.HasExpiry = true
	}

	if c.Email != nil && *c.Email != "" {
		ins.Payload = EmailClaims{UserID: c.UserID, Email: *c.Email, Name: c.Name}
	} else {
		ins.Payload = DelegatedClaims{UserID: c.UserID}
	}

	return ins, nil
}
