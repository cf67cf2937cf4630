// Package auth resolves the caller of an RPC into an Identity.
package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
)

// Ошибки валидации личности вызывающего.
var (
	ErrMissingIdentity = errors.New("missing identity")
	ErrInvalidSubject  = errors.New("invalid subject")
	ErrUnknownRole     = errors.New("unknown role")
)

// Роль пользователя в системе.
type Role string

const (
	RoleClient     Role = "client"
	RoleConsultant Role = "consultant"
	RoleAdmin      Role = "admin"
)

// ParseRole нормализует роль из токена.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleClient, RoleConsultant, RoleAdmin:
		return r, nil
	default:
		return "", ErrUnknownRole
	}
}

// Identity is the authenticated caller.
type Identity struct {
	UserID uuid.UUID
	Role   Role
}

// ValidateIdentity:
//   - проверяет идентификатор субъекта;
//   - проверяет роль;
//   - возвращает нормализованный результат или ошибку.
func ValidateIdentity(subject, role string) (Identity, error) {
	id, err := uuid.Parse(strings.TrimSpace(subject))
	if err != nil || id == uuid.Nil {
		return Identity{}, ErrInvalidSubject
	}
	r, err := ParseRole(role)
	if err != nil {
		return Identity{}, err
	}
	return Identity{UserID: id, Role: r}, nil
}

func (i Identity) Is(r Role) bool { return i.Role == r }

// ManagesConsultant reports whether the caller may act on the consultant's
// calendar: the consultant themself or an admin.
func (i Identity) ManagesConsultant(consultantID uuid.UUID) bool {
	if i.Role == RoleAdmin {
		return true
	}
	return i.Role == RoleConsultant && i.UserID == consultantID
}

type ctxKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identity stored by the interceptor.
func FromContext(ctx context.Context) (Identity, error) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	if !ok || id.UserID == uuid.Nil {
		return Identity{}, ErrMissingIdentity
	}
	return id, nil
}
