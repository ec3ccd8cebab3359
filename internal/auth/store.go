package auth

import (
	"context"
	"time"
)

// UserStore describes the persistence operations this core issues against
// the user records it touches. The service depends only on this interface,
// not on a specific persistence technology.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
	UpdateLastLogin(ctx context.Context, userID string, at time.Time) error
	SetMustChangePassword(ctx context.Context, userID string, value bool) error
}

// AuditSink receives compliance events for credential flows. Implementations
// must never be handed password material.
type AuditSink interface {
	LogLogin(ctx context.Context, userID, email string, meta RequestMeta)
	LogLoginFailed(ctx context.Context, email string, meta RequestMeta)
	LogPasswordChange(ctx context.Context, userID string, mandatory, success bool, meta RequestMeta)
}
