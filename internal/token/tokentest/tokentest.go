// Package tokentest выпускает подписанные токены для тестов, как это делает сервер портала.
package tokentest

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const secret = "test-secret"

// Sign подписывает произвольные утверждения HS256
func Sign(claims jwt.MapClaims) string {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := t.SignedString([]byte(secret))
	if err != nil {
		panic(err)
	}
	return s
}

// Email токен входа по email/паролю
func Email(userID int64, email, name string, exp time.Time) string {
	return Sign(jwt.MapClaims{
		"user_id": userID,
		"email":   email,
		"name":    name,
		"exp":     exp.Unix(),
	})
}

// Delegated токен внешнего провайдера (Telegram, Яндекс)
func Delegated(userID int64, exp time.Time) string {
	return Sign(jwt.MapClaims{
		"user_id": userID,
		"exp":     exp.Unix(),
	})
}
