// Package roles загружает роли и репутацию пользователя, работает с заявками на роли
// и выбирает кабинет, который нужно показать.
package roles

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/pr-poehali-dev/spa-community-portal/internal/models"
	"github.com/pr-poehali-dev/spa-community-portal/pkg/locale"
)

var (
	ErrApplicationFinal = errors.New("application already decided")
	ErrInvalidDecision  = errors.New("decision must be approved or rejected")
)

// APIError ответ сервиса ролей с ошибкой; Message можно показывать пользователю
type APIError struct {
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *APIError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("roles %s: %s (HTTP %d)", e.Op, e.Message, e.Status)
	}
	return fmt.Sprintf("roles %s: %s", e.Op, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

// UserRoles результат одного чтения ролей
type UserRoles struct {
	Roles      []models.UserRole      `json:"roles"`
	Reputation *models.UserReputation `json:"reputation"`
}

// ActiveRoles роли в статусе active
func (u *UserRoles) ActiveRoles() []models.UserRole {
	var active []models.UserRole
	for _, r := range u.Roles {
		if r.Active() {
			active = append(active, r)
		}
	}
	return active
}

type Client struct {
	baseURL string
	http    *resty.Client
	logger  *zap.Logger
}

func NewClient(rolesURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: rolesURL,
		http: resty.New().
			SetTimeout(timeout).
			SetHeader("Accept", "application/json"),
		logger: logger,
	}
}

func (c *Client) LoadUserRoles(ctx context.Context, token string, userID models.ID) (*UserRoles, error) {
	body, err := c.do(ctx, "load", resty.MethodGet, token, map[string]string{
		"resource": "roles",
		"user_id":  userID.String(),
	}, nil)
	if err != nil {
		return nil, err
	}

	var out UserRoles
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, c.invalid("load", err)
	}
	return &out, nil
}

type applicationRequest struct {
	UserID          models.ID              `json:"user_id"`
	RoleType        models.RoleType        `json:"role_type"`
	ApplicationData map[string]interface{} `json:"application_data"`
}

// SubmitApplication создаёт заявку на роль
func (c *Client) SubmitApplication(ctx context.Context, token string, userID models.ID, rt models.RoleType, data map[string]interface{}) (*models.RoleApplication, error) {
	if _, err := models.ParseRoleType(string(rt)); err != nil {
		return nil, err
	}
	if data == nil {
		data = map[string]interface{}{}
	}

	body, err := c.do(ctx, "submit", resty.MethodPost, token, map[string]string{"resource": "applications"},
		applicationRequest{UserID: userID, RoleType: rt, ApplicationData: data})
	if err != nil {
		return nil, err
	}
	return c.decodeApplication("submit", body)
}

// ListApplications заявки с указанным статусом; пустой статус возвращает все
func (c *Client) ListApplications(ctx context.Context, token string, status models.ApplicationStatus) ([]models.RoleApplication, error) {
	query := map[string]string{"resource": "applications"}
	if status != "" {
		query["status"] = string(status)
	}

	body, err := c.do(ctx, "list", resty.MethodGet, token, query, nil)
	if err != nil {
		return nil, err
	}

	var out struct {
		Applications []models.RoleApplication `json:"applications"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, c.invalid("list", err)
	}
	return out.Applications, nil
}

type reviewRequest struct {
	ApplicationID models.ID                `json:"application_id"`
	Status        models.ApplicationStatus `json:"status"`
	ReviewerNotes string                   `json:"reviewer_notes,omitempty"`
}

// ReviewApplication решение проверяющего. Решённые заявки не меняются
func (c *Client) ReviewApplication(ctx context.Context, token string, app models.RoleApplication, decision models.ApplicationStatus, notes string) (*models.RoleApplication, error) {
	if app.Final() {
		return nil, fmt.Errorf("application %s: %w", app.ID, ErrApplicationFinal)
	}
	switch decision {
	case models.ApplicationApproved, models.ApplicationRejected, models.ApplicationInReview:
	default:
		return nil, ErrInvalidDecision
	}

	body, err := c.do(ctx, "review", resty.MethodPut, token, map[string]string{"resource": "applications"},
		reviewRequest{ApplicationID: app.ID, Status: decision, ReviewerNotes: notes})
	if err != nil {
		return nil, err
	}
	return c.decodeApplication("review", body)
}

// FindApplication ищет заявку по id среди всех заявок
func (c *Client) FindApplication(ctx context.Context, token string, id models.ID) (*models.RoleApplication, error) {
	apps, err := c.ListApplications(ctx, token, "")
	if err != nil {
		return nil, err
	}
	for i := range apps {
		if apps[i].ID == id {
			return &apps[i], nil
		}
	}
	return nil, &APIError{Op: "find", Message: fmt.Sprintf("заявка %s не найдена", id)}
}

func (c *Client) decodeApplication(op string, body []byte) (*models.RoleApplication, error) {
	var out struct {
		Application *models.RoleApplication `json:"application"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, c.invalid(op, err)
	}
	if out.Application == nil {
		return nil, c.invalid(op, errors.New("application missing"))
	}
	return out.Application, nil
}

func (c *Client) do(ctx context.Context, op, method, token string, query map[string]string, body interface{}) ([]byte, error) {
	r := c.http.R().
		SetContext(ctx).
		SetQueryParams(query)
	if token != "" {
		r.SetAuthToken(token)
	}
	if body != nil {
		r.SetHeader("Content-Type", "application/json").SetBody(body)
	}

	start := time.Now()
	resp, err := r.Execute(method, c.baseURL)
	if err != nil {
		return nil, &APIError{Op: op, Message: locale.Get("network_error"), Err: err}
	}
	c.logger.Debug("roles request",
		zap.String("op", op),
		zap.Int("status", resp.StatusCode()),
		zap.Duration("latency", time.Since(start)),
	)

	if resp.IsError() || resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		msg := locale.Get("roles_load_failed")
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(resp.Body(), &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return nil, &APIError{Op: op, Status: resp.StatusCode(), Message: msg}
	}
	return resp.Body(), nil
}

func (c *Client) invalid(op string, err error) error {
	return &APIError{Op: op, Message: locale.Get("invalid_response"), Err: err}
}

// ParseApplicationID разбирает id заявки из аргумента командной строки
func ParseApplicationID(s string) (models.ID, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid application id %q", s)
	}
	return models.ID(n), nil
}
