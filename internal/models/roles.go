package models

import (
	"encoding/json"
	"fmt"
)

// RoleType выданная роль; отличается от User.role и может быть у пользователя в нескольких экземплярах
type RoleType string

const (
	RoleTypeOrganizer RoleType = "organizer"
	RoleTypeMaster    RoleType = "master"
	RoleTypePartner   RoleType = "partner"
	RoleTypeEditor    RoleType = "editor"
)

// RoleTypes в порядке вывода в интерфейсе
var RoleTypes = []RoleType{RoleTypeOrganizer, RoleTypeMaster, RoleTypePartner, RoleTypeEditor}

func ParseRoleType(s string) (RoleType, error) {
	rt := RoleType(s)
	for _, known := range RoleTypes {
		if rt == known {
			return rt, nil
		}
	}
	return "", fmt.Errorf("unknown role type %q", s)
}

type RoleStatus string

const (
	RoleStatusPending   RoleStatus = "pending"
	RoleStatusActive    RoleStatus = "active"
	RoleStatusSuspended RoleStatus = "suspended"
	RoleStatusGraduated RoleStatus = "graduated"
	RoleStatusRejected  RoleStatus = "rejected"
)

// UserRole запись о выданной роли; клиент её только читает
type UserRole struct {
	ID        ID         `json:"id"`
	UserID    ID         `json:"user_id"`
	RoleType  RoleType   `json:"role_type"`
	Status    RoleStatus `json:"status"`
	GrantedAt string     `json:"granted_at"`
	ExpiresAt *string    `json:"expires_at,omitempty"`
	LevelData LevelData  `json:"-"`
}

func (r UserRole) Active() bool {
	return r.Status == RoleStatusActive
}

func (r *UserRole) UnmarshalJSON(b []byte) error {
	type alias UserRole
	aux := struct {
		*alias
		LevelData json.RawMessage `json:"level_data"`
	}{alias: (*alias)(r)}

	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}

	data, err := DecodeLevelData(r.RoleType, aux.LevelData)
	if err != nil {
		return err
	}
	r.LevelData = data
	return nil
}

func (r UserRole) MarshalJSON() ([]byte, error) {
	type alias UserRole
	return json.Marshal(struct {
		alias
		LevelData LevelData `json:"level_data,omitempty"`
	}{alias: alias(r), LevelData: r.LevelData})
}

// LevelData данные уровня, форма которых зависит от role_type
type LevelData interface {
	RoleType() RoleType
}

type OrganizerLevelData struct {
	Level             int     `json:"level"`
	EventsOrganized   int     `json:"events_organized"`
	TotalParticipants int     `json:"total_participants"`
	AverageRating     float64 `json:"average_rating"`
}

func (OrganizerLevelData) RoleType() RoleType { return RoleTypeOrganizer }

type MasterLevelData struct {
	Level             int      `json:"level"`
	Specializations   []string `json:"specializations"`
	SessionsConducted int      `json:"sessions_conducted"`
	AverageRating     float64  `json:"average_rating"`
}

func (MasterLevelData) RoleType() RoleType { return RoleTypeMaster }

type EditorLevelData struct {
	Level             int `json:"level"`
	ArticlesPublished int `json:"articles_published"`
	ArticlesReviewed  int `json:"articles_reviewed"`
}

func (EditorLevelData) RoleType() RoleType { return RoleTypeEditor }

// DecodeLevelData разбирает level_data по типу роли. Для партнёра данных уровня нет
func DecodeLevelData(rt RoleType, raw json.RawMessage) (LevelData, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var (
		data LevelData
		err  error
	)
	switch rt {
	case RoleTypeOrganizer:
		var d OrganizerLevelData
		err = json.Unmarshal(raw, &d)
		data = d
	case RoleTypeMaster:
		var d MasterLevelData
		err = json.Unmarshal(raw, &d)
		data = d
	case RoleTypeEditor:
		var d EditorLevelData
		err = json.Unmarshal(raw, &d)
		data = d
	default:
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("invalid level_data for %s: %w", rt, err)
	}
	return data, nil
}

type ApplicationStatus string

const (
	ApplicationPending  ApplicationStatus = "pending"
	ApplicationInReview ApplicationStatus = "in_review"
	ApplicationApproved ApplicationStatus = "approved"
	ApplicationRejected ApplicationStatus = "rejected"
)

// RoleApplication заявка на роль
type RoleApplication struct {
	ID              ID                     `json:"id"`
	UserID          ID                     `json:"user_id"`
	RoleType        RoleType               `json:"role_type"`
	Status          ApplicationStatus      `json:"status"`
	ApplicationData map[string]interface{} `json:"application_data"`
	ReviewerID      *ID                    `json:"reviewer_id,omitempty"`
	ReviewerNotes   *string                `json:"reviewer_notes,omitempty"`
	CreatedAt       string                 `json:"created_at,omitempty"`
	ReviewedAt      *string                `json:"reviewed_at,omitempty"`
}

// Final решение по заявке принимается один раз
func (a RoleApplication) Final() bool {
	return a.Status == ApplicationApproved || a.Status == ApplicationRejected
}
