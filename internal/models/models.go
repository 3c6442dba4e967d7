package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ID идентификатор, который сервер отдаёт то числом, то строкой
type ID int64

func (id *ID) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*id = 0
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %s: %w", b, err)
	}
	*id = ID(n)
	return nil
}

func (id ID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// Role общая (устаревшая) классификация пользователя в поле User.role
type Role string

const (
	RoleParticipant Role = "participant"
	RoleMaster      Role = "master"
	RolePartner     Role = "partner"
	RoleOrganizer   Role = "organizer"
	RoleEditor      Role = "editor"
)

func (r Role) Valid() bool {
	switch r {
	case RoleParticipant, RoleMaster, RolePartner, RoleOrganizer, RoleEditor:
		return true
	}
	return false
}

// NormalizeRole пустое или неизвестное значение role считается участником
func (u *User) NormalizeRole() {
	if !u.Role.Valid() {
		u.Role = RoleParticipant
	}
}

// User пользователь портала
type User struct {
	ID        ID      `json:"id"`
	Email     string  `json:"email"`
	Name      string  `json:"name"`
	Phone     *string `json:"phone,omitempty"`
	Telegram  *string `json:"telegram,omitempty"`
	Role      Role    `json:"role"`
	AvatarURL *string `json:"avatar_url,omitempty"`
	CreatedAt *string `json:"created_at,omitempty"`
}

// ParseUser разбирает сохранённый снимок пользователя
func ParseUser(raw string) (*User, error) {
	var user User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return nil, fmt.Errorf("failed to parse user snapshot: %w", err)
	}
	if user.ID == 0 {
		return nil, fmt.Errorf("user snapshot has no id")
	}
	user.NormalizeRole()
	return &user, nil
}

// DisplayName имя для вывода; у пользователей Telegram email может отсутствовать
func (u *User) DisplayName() string {
	switch {
	case u.Name != "":
		return u.Name
	case u.Email != "":
		return u.Email
	case u.Telegram != nil && *u.Telegram != "":
		return *u.Telegram
	}
	return u.ID.String()
}
