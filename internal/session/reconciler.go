// Package session восстанавливает сессию из сохранённых учётных данных
// и держит текущего пользователя на время работы клиента.
package session

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/pr-poehali-dev/spa-community-portal/internal/credstore"
	"github.com/pr-poehali-dev/spa-community-portal/internal/models"
	"github.com/pr-poehali-dev/spa-community-portal/internal/token"
)

type State int

const (
	StateUnknown State = iota
	StateChecking
	StateAuthenticated
	StateAnonymous
)

func (s State) String() string {
	switch s {
	case StateChecking:
		return "checking"
	case StateAuthenticated:
		return "authenticated"
	case StateAnonymous:
		return "anonymous"
	}
	return "unknown"
}

// CredentialStore то, что сессии нужно от credstore.Store
type CredentialStore interface {
	Write(ctx context.Context, c credstore.Credentials) error
	ReadToken(ctx context.Context) (string, bool)
	ReadRefreshToken(ctx context.Context) (string, bool)
	ReadProviderUser(ctx context.Context, key credstore.ProviderKey) (string, bool)
	Clear(ctx context.Context) error
}

// Outcome итог одной сверки
type Outcome struct {
	State    State
	User     *models.User
	Provider credstore.ProviderKey // пусто для входа по email
	Reason   string                // почему сессия сброшена, для логов
	Cleared  bool
}

// Reconciler сверяет сохранённый токен со снимками провайдеров
type Reconciler struct {
	store  CredentialStore
	logger *zap.Logger
	now    func() time.Time
}

func NewReconciler(store CredentialStore, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{store: store, logger: logger, now: time.Now}
}

// Reconcile выполняет одну сверку. Либо возвращает пользователя, либо очищает учётные данные,
// но не то и другое сразу. Испорченные данные всегда ведут к анонимному состоянию
func (r *Reconciler) Reconcile(ctx context.Context) Outcome {
	raw, ok := r.store.ReadToken(ctx)
	if !ok {
		return Outcome{State: StateAnonymous, Reason: "no token"}
	}

	ins, err := token.Inspect(raw)
	if err != nil {
		return r.reject(ctx, "malformed token")
	}

	// без exp токен считается истёкшим
	if !ins.Live(r.now()) {
		return r.reject(ctx, "token expired")
	}

	switch p := ins.Payload.(type) {
	case token.EmailClaims:
		return Outcome{
			State: StateAuthenticated,
			User: &models.User{
				ID:    p.UserID,
				Email: p.Email,
				Name:  p.Name,
				Role:  models.RoleParticipant,
			},
		}
	case token.DelegatedClaims:
		for _, key := range credstore.SnapshotKeys {
			snapshot, ok := r.store.ReadProviderUser(ctx, key)
			if !ok {
				continue
			}
			user, err := models.ParseUser(snapshot)
			if err != nil {
				r.logger.Debug("provider snapshot unreadable", zap.String("key", string(key)), zap.Error(err))
				continue
			}
			if user.ID != p.UserID {
				r.logger.Debug("provider snapshot belongs to another user",
					zap.String("key", string(key)),
					zap.Stringer("snapshot_id", user.ID),
					zap.Stringer("subject", p.UserID),
				)
				continue
			}
			return Outcome{State: StateAuthenticated, User: user, Provider: key}
		}
		return r.reject(ctx, "no provider snapshot")
	}

	return r.reject(ctx, "unknown payload")
}

func (r *Reconciler) reject(ctx context.Context, reason string) Outcome {
	if err := r.store.Clear(ctx); err != nil {
		r.logger.Warn("failed to clear credentials", zap.String("reason", reason), zap.Error(err))
	}
	r.logger.Debug("session dropped", zap.String("reason", reason))
	return Outcome{State: StateAnonymous, Reason: reason, Cleared: true}
}
