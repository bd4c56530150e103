// Package session carries the signed-in user through a request.
package session

import (
	"context"
	"errors"
	"strings"
)

type Type string

const (
	Employee Type = "employee"
	Admin    Type = "admin"
)

var ErrInvalidUser = errors.New("invalid session user")

// User is the identity a page acts on behalf of.
type User struct {
	Type  Type   `json:"type"`
	Email string `json:"email"`
}

func (u User) Validate() error {
	if strings.TrimSpace(u.Email) == "" || !strings.Contains(u.Email, "@") {
		return ErrInvalidUser
	}
	switch u.Type {
	case Employee, Admin:
		return nil
	}
	return ErrInvalidUser
}

func (u User) IsAdmin() bool { return u.Type == Admin }

// ParseType maps the login form value to a Type, defaulting to Employee.
func ParseType(s string) Type {
	if strings.EqualFold(strings.TrimSpace(s), string(Admin)) {
		return Admin
	}
	return Employee
}

type contextKey struct{}

func WithUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, contextKey{}, u)
}

// FromContext returns the user stored by WithUser.
func FromContext(ctx context.Context) (User, bool) {
	u, ok := ctx.Value(contextKey{}).(User)
	return u, ok
}
