package roles

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pr-poehali-dev/spa-community-portal/internal/models"
	"github.com/pr-poehali-dev/spa-community-portal/pkg/locale"
)

const rolesPayload = `{
  "roles": [
    {"id": 1, "user_id": 42, "role_type": "organizer", "status": "active", "granted_at": "2024-05-01",
     "level_data": {"level": 2, "events_organized": 14, "total_participants": 230, "average_rating": 4.8}},
    {"id": 2, "user_id": 42, "role_type": "master", "status": "suspended", "granted_at": "2024-01-10",
     "level_data": {"level": 1, "specializations": ["парение"], "sessions_conducted": 3, "average_rating": 4.1}},
    {"id": 3, "user_id": 42, "role_type": "partner", "status": "active", "granted_at": "2024-06-01", "level_data": null}
  ],
  "reputation": {"user_id": 42, "total_score": 150, "level": "legend", "events_attended": 12,
                 "events_organized": 3, "articles_published": 0, "helpful_reviews": 4}
}`

func TestLoadUserRoles(t *testing.T) {
	var gotQuery, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(rolesPayload))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, nil)
	ur, err := c.LoadUserRoles(context.Background(), "a.b.c", 42)
	require.NoError(t, err)

	assert.Contains(t, gotQuery, "resource=roles")
	assert.Contains(t, gotQuery, "user_id=42")
	assert.Equal(t, "Bearer a.b.c", gotAuth)

	require.Len(t, ur.Roles, 3)
	assert.Equal(t, models.OrganizerLevelData{Level: 2, EventsOrganized: 14, TotalParticipants: 230, AverageRating: 4.8}, ur.Roles[0].LevelData)
	assert.IsType(t, models.MasterLevelData{}, ur.Roles[1].LevelData)
	assert.Nil(t, ur.Roles[2].LevelData)

	require.NotNil(t, ur.Reputation)
	assert.Equal(t, models.LevelActive, ur.Reputation.Level)

	active := ur.ActiveRoles()
	require.Len(t, active, 2)
	assert.Equal(t, models.RoleTypeOrganizer, active[0].RoleType)
	assert.Equal(t, models.RoleTypePartner, active[1].RoleType)
}

func TestLoadUserRolesWithoutReputation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"roles": [], "reputation": null}`))
	}))
	defer srv.Close()

	ur, err := NewClient(srv.URL, time.Second, nil).LoadUserRoles(context.Background(), "", 1)
	require.NoError(t, err)
	assert.Empty(t, ur.ActiveRoles())
	assert.Nil(t, ur.Reputation)
}

func TestLoadUserRolesErrors(t *testing.T) {
	t.Run("server message", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error":"Доступ запрещён"}`))
		}))
		defer srv.Close()

		_, err := NewClient(srv.URL, time.Second, nil).LoadUserRoles(context.Background(), "", 1)
		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusForbidden, apiErr.Status)
		assert.Equal(t, "Доступ запрещён", apiErr.Message)
	})

	t.Run("broken body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"roles": [{"role_type": "master", "level_data": "oops"}]}`))
		}))
		defer srv.Close()

		_, err := NewClient(srv.URL, time.Second, nil).LoadUserRoles(context.Background(), "", 1)
		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, locale.Get("invalid_response"), apiErr.Message)
	})
}

func TestApplications(t *testing.T) {
	var last struct {
		method string
		query  string
		body   map[string]interface{}
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		last.method = r.Method
		last.query = r.URL.RawQuery
		last.body = nil
		_ = json.NewDecoder(r.Body).Decode(&last.body)

		switch r.Method {
		case http.MethodGet:
			_, _ = w.Write([]byte(`{"applications":[
				{"id": 5, "user_id": 42, "role_type": "master", "status": "pending", "application_data": {}},
				{"id": 6, "user_id": 43, "role_type": "editor", "status": "approved", "application_data": {}}]}`))
		case http.MethodPost:
			_, _ = w.Write([]byte(`{"application":{"id": 7, "user_id": 42, "role_type": "master", "status": "pending",
				"application_data": {"experience": "5 лет"}}}`))
		case http.MethodPut:
			_, _ = w.Write([]byte(`{"application":{"id": 5, "user_id": 42, "role_type": "master", "status": "approved",
				"reviewer_id": "1", "reviewer_notes": "ок"}}`))
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	c := NewClient(srv.URL, time.Second, nil)

	t.Run("submit", func(t *testing.T) {
		app, err := c.SubmitApplication(ctx, "a.b.c", 42, models.RoleTypeMaster, map[string]interface{}{"experience": "5 лет"})
		require.NoError(t, err)
		assert.Equal(t, http.MethodPost, last.method)
		assert.Equal(t, "master", last.body["role_type"])
		assert.Equal(t, models.ID(7), app.ID)
		assert.Equal(t, models.ApplicationPending, app.Status)
	})

	t.Run("submit unknown role", func(t *testing.T) {
		_, err := c.SubmitApplication(ctx, "a.b.c", 42, models.RoleType("admin"), nil)
		assert.Error(t, err)
	})

	t.Run("list by status", func(t *testing.T) {
		apps, err := c.ListApplications(ctx, "a.b.c", models.ApplicationPending)
		require.NoError(t, err)
		assert.Contains(t, last.query, "status=pending")
		assert.Len(t, apps, 2)
	})

	t.Run("review pending", func(t *testing.T) {
		app, err := c.FindApplication(ctx, "a.b.c", 5)
		require.NoError(t, err)

		reviewed, err := c.ReviewApplication(ctx, "a.b.c", *app, models.ApplicationApproved, "ок")
		require.NoError(t, err)
		assert.Equal(t, http.MethodPut, last.method)
		assert.Equal(t, "approved", last.body["status"])
		assert.Equal(t, models.ApplicationApproved, reviewed.Status)
		require.NotNil(t, reviewed.ReviewerID)
		assert.Equal(t, models.ID(1), *reviewed.ReviewerID)
	})

	t.Run("review final is refused without request", func(t *testing.T) {
		app, err := c.FindApplication(ctx, "a.b.c", 6)
		require.NoError(t, err)
		last.method = ""

		_, err = c.ReviewApplication(ctx, "a.b.c", *app, models.ApplicationRejected, "")
		assert.ErrorIs(t, err, ErrApplicationFinal)
		assert.Empty(t, last.method)
	})

	t.Run("review with bad decision", func(t *testing.T) {
		_, err := c.ReviewApplication(ctx, "a.b.c", models.RoleApplication{ID: 5, Status: models.ApplicationPending}, models.ApplicationPending, "")
		assert.ErrorIs(t, err, ErrInvalidDecision)
	})

	t.Run("find missing", func(t *testing.T) {
		_, err := c.FindApplication(ctx, "a.b.c", 99)
		assert.Error(t, err)
	})
}

func TestSelectView(t *testing.T) {
	organizer := models.UserRole{ID: 1, RoleType: models.RoleTypeOrganizer, Status: models.RoleStatusActive}
	partner := models.UserRole{ID: 3, RoleType: models.RoleTypePartner, Status: models.RoleStatusActive}
	suspended := models.UserRole{ID: 2, RoleType: models.RoleTypeMaster, Status: models.RoleStatusSuspended}
	active := []models.UserRole{organizer, partner}

	ptr := func(rt models.RoleType) *models.RoleType { return &rt }

	t.Run("no selection", func(t *testing.T) {
		v := SelectView(nil, active)
		assert.Equal(t, ViewParticipant, v.Kind)
		assert.Equal(t, locale.Get("dashboard_participant"), v.Title())
	})

	t.Run("active implemented role", func(t *testing.T) {
		v := SelectView(ptr(models.RoleTypeOrganizer), active)
		require.Equal(t, ViewRole, v.Kind)
		assert.Equal(t, organizer, *v.Role)
		assert.Equal(t, "Кабинет: Организатор", v.Title())
	})

	t.Run("partner has placeholder", func(t *testing.T) {
		v := SelectView(ptr(models.RoleTypePartner), active)
		assert.Equal(t, ViewPlaceholder, v.Kind)
		assert.Contains(t, v.Title(), "Партнёр")
	})

	t.Run("role not active falls back", func(t *testing.T) {
		assert.Equal(t, ViewParticipant, SelectView(ptr(models.RoleTypeEditor), active).Kind)
	})

	t.Run("inactive record is ignored", func(t *testing.T) {
		assert.Equal(t, ViewParticipant, SelectView(ptr(models.RoleTypeMaster), []models.UserRole{suspended}).Kind)
	})
}

func TestParseApplicationID(t *testing.T) {
	id, err := ParseApplicationID("17")
	require.NoError(t, err)
	assert.Equal(t, models.ID(17), id)

	for _, bad := range []string{"", "0", "-1", "x"} {
		_, err := ParseApplicationID(bad)
		assert.Error(t, err, bad)
	}
}
