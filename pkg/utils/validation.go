package utils

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	emailRegex    = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	phoneRegex    = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`)
	telegramRegex = regexp.MustCompile(`^@?[a-zA-Z][a-zA-Z0-9_]{4,31}$`)
	codeRegex     = regexp.MustCompile(`^\d{6}$`)
)

// Валидация email
func IsValidEmail(email string) bool {
	email = strings.TrimSpace(strings.ToLower(email))
	return len(email) > 0 && len(email) <= 254 && emailRegex.MatchString(email)
}

// Валидация номера телефона
func IsValidPhone(phone string) bool {
	// Удаляем пробелы и спецсимволы
	cleaned := strings.ReplaceAll(phone, " ", "")
	cleaned = strings.ReplaceAll(cleaned, "-", "")
	cleaned = strings.ReplaceAll(cleaned, "(", "")
	cleaned = strings.ReplaceAll(cleaned, ")", "")

	return phoneRegex.MatchString(cleaned)
}

// IsValidTelegram проверяет имя пользователя Telegram (с @ или без)
func IsValidTelegram(username string) bool {
	return telegramRegex.MatchString(strings.TrimSpace(username))
}

// IsValidResetCode проверяет шестизначный код восстановления пароля
func IsValidResetCode(code string) bool {
	return codeRegex.MatchString(strings.TrimSpace(code))
}

// ValidatePassword возвращает ключи сообщений locale для каждого нарушенного правила
func ValidatePassword(password string) []string {
	var errors []string

	if len(password) < 8 {
		errors = append(errors, "password_too_short")
	}

	if len(password) > 128 {
		errors = append(errors, "password_too_long")
	}

	var (
		hasLetter = false
		hasNumber = false
	)

	for _, char := range password {
		switch {
		case unicode.IsLetter(char):
			hasLetter = true
		case unicode.IsNumber(char):
			hasNumber = true
		}
	}

	if !hasLetter {
		errors = append(errors, "password_no_letter")
	}

	if !hasNumber {
		errors = append(errors, "password_no_number")
	}

	return errors
}

// ValidateFullName ключи locale для имени: длина, затем допустимые символы
func ValidateFullName(name string) []string {
	name = strings.TrimSpace(name)
	switch n := len([]rune(name)); {
	case n == 0:
		return []string{"name_required"}
	case n < 2:
		return []string{"name_too_short"}
	case n > 100:
		return []string{"name_too_long"}
	}

	// буквы, пробелы, дефисы и апострофы
	for _, char := range name {
		if !unicode.IsLetter(char) && char != ' ' && char != '-' && char != '\'' {
			return []string{"name_invalid"}
		}
	}
	return nil
}

// Маскировка email для логов
func MaskEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return "***@***"
	}

	username := []rune(parts[0])
	domain := parts[1]

	if len(username) <= 2 {
		return "***@" + domain
	}

	masked := string(username[0]) + strings.Repeat("*", len(username)-2) + string(username[len(username)-1])
	return masked + "@" + domain
}
