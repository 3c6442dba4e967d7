package locale

import "fmt"

// Messages содержит все сообщения на русском языке
var Messages = map[string]string{
	// Общие сообщения
	"error":            "Ошибка",
	"network_error":    "Не удалось связаться с сервером. Проверьте подключение и попробуйте снова",
	"invalid_response": "Сервер вернул некорректный ответ",

	// Аутентификация
	"login_successful":    "Вход выполнен успешно",
	"login_failed":        "Ошибка входа",
	"invalid_credentials": "Неверный email или пароль",
	"not_authenticated":   "Вы не вошли в систему",
	"authenticated_as":    "Вы вошли как %s (id %d, роль %s)",

	// Регистрация
	"registration_successful": "Регистрация выполнена успешно",
	"registration_failed":     "Ошибка регистрации",
	"name_required":           "Укажите имя",

	// Восстановление пароля
	"password_reset_requested":  "Код для восстановления пароля отправлен на %s",
	"password_reset_successful": "Пароль успешно изменен",
	"password_reset_failed":     "Ошибка восстановления пароля",

	// Провайдеры
	"telegram_login_failed":   "Ошибка входа через Telegram",
	"telegram_token_missing":  "Отсутствует токен авторизации Telegram",
	"telegram_not_configured": "Вход через Telegram не настроен",
	"yandex_login_failed":     "Ошибка входа через Яндекс",
	"yandex_state_mismatch":   "Неверный параметр state, повторите вход",
	"yandex_code_missing":     "Яндекс не передал код авторизации",
	"open_in_browser":         "Откройте в браузере: %s",
	"waiting_for_callback":    "Ожидаем завершения входа на %s ...",
	"redirecting_to_login":    "Через %d сек. вы будете перенаправлены на страницу входа",
	"callback_success":        "Вход выполнен. Окно можно закрыть",
	"callback_closed":         "Страница входа больше не активна. Запустите вход заново",
	"login_required":          "Откройте ссылку входа, которую показал клиент",

	// Валидация
	"email_invalid":      "Неверный формат email",
	"phone_invalid":      "Неверный формат номера телефона",
	"telegram_invalid":   "Неверный формат имени пользователя Telegram",
	"password_too_short": "Пароль должен содержать минимум 8 символов",
	"password_too_long":  "Пароль должен содержать максимум 128 символов",
	"password_no_letter": "Пароль должен содержать хотя бы одну букву",
	"password_no_number": "Пароль должен содержать хотя бы одну цифру",
	"name_too_short":     "Имя должно содержать минимум 2 символа",
	"name_too_long":      "Имя должно содержать максимум 100 символов",
	"name_invalid":       "Имя может содержать только буквы, пробелы и дефисы",
	"code_invalid":       "Код должен состоять из 6 цифр",

	// Сессии и токены
	"token_refreshed":   "Токен обновлен",
	"logout_successful": "Выход выполнен успешно",
	"session_expired":   "Сессия истекла или недействительна, войдите снова",
	"refresh_missing":   "Нет токена обновления, войдите снова",

	// Роли и репутация
	"roles_load_failed":     "Не удалось загрузить роли",
	"application_submitted": "Заявка на роль %s отправлена",
	"application_final":     "Решение по заявке уже принято",
	"application_reviewed":  "Заявка %d: %s",
	"role_unknown":          "Неизвестная роль: %s",
	"dashboard_placeholder": "Кабинет роли %s находится в разработке",
	"dashboard_participant": "Кабинет участника",
	"dashboard_role":        "Кабинет: %s",
	"roles_none":            "Активных ролей нет",
	"applications_empty":    "Заявок нет",
	"reputation_summary":    "Репутация: %d очков, уровень %s",
	"reputation_next":       "До следующего уровня: %d очков",

	// Мониторинг
	"service_healthy":   "Сервис работает нормально",
	"service_unhealthy": "Проблемы с сервисом",
}

// Get возвращает сообщение по ключу, или ключ если сообщение не найдено
func Get(key string) string {
	if msg, exists := Messages[key]; exists {
		return msg
	}
	return key
}

// Getf возвращает форматированное сообщение
func Getf(key string, args ...interface{}) string {
	msg := Get(key)
	return fmt.Sprintf(msg, args...)
}
