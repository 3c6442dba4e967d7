package roles

import (
	"github.com/pr-poehali-dev/spa-community-portal/internal/models"
	"github.com/pr-poehali-dev/spa-community-portal/pkg/locale"
)

type ViewKind int

const (
	ViewParticipant ViewKind = iota
	ViewRole
	ViewPlaceholder
)

// View выбранный кабинет. Это переключение отображения, а не проверка прав
type View struct {
	Kind ViewKind
	Role *models.UserRole // для ViewRole и ViewPlaceholder
}

// dashboards роли, для которых кабинет уже есть
var dashboards = map[models.RoleType]bool{
	models.RoleTypeOrganizer: true,
	models.RoleTypeMaster:    true,
	models.RoleTypeEditor:    true,
}

// SelectView выбирает кабинет по текущей роли. nil и неактивная роль дают кабинет участника
func SelectView(current *models.RoleType, active []models.UserRole) View {
	if current == nil {
		return View{Kind: ViewParticipant}
	}

	for i := range active {
		r := active[i]
		if r.RoleType != *current || !r.Active() {
			continue
		}
		if dashboards[r.RoleType] {
			return View{Kind: ViewRole, Role: &r}
		}
		return View{Kind: ViewPlaceholder, Role: &r}
	}

	return View{Kind: ViewParticipant}
}

// Title заголовок кабинета
func (v View) Title() string {
	switch v.Kind {
	case ViewRole:
		return locale.Getf("dashboard_role", RoleTitle(v.Role.RoleType))
	case ViewPlaceholder:
		return locale.Getf("dashboard_placeholder", RoleTitle(v.Role.RoleType))
	}
	return locale.Get("dashboard_participant")
}

var roleTitles = map[models.RoleType]string{
	models.RoleTypeOrganizer: "Организатор",
	models.RoleTypeMaster:    "Мастер",
	models.RoleTypePartner:   "Партнёр",
	models.RoleTypeEditor:    "Редактор",
}

// RoleTitle название роли для вывода
func RoleTitle(rt models.RoleType) string {
	if t, ok := roleTitles[rt]; ok {
		return t
	}
	return string(rt)
}
