package users

import (
	"context"
	"time"

	"github.com/easyhotel/easyhotel/internal/auth"
	"github.com/easyhotel/easyhotel/internal/platform/httpx"
)

var (
	ErrNotFound            = httpx.NewError(httpx.ErrNotFound, "user not found")
	ErrEmailTaken          = httpx.NewError(httpx.ErrDuplicate, "email already registered")
	ErrInvalidCredentials  = httpx.NewError(httpx.ErrUnauthorized, "invalid email or password")
	ErrInvalidRefreshToken = httpx.NewError(httpx.ErrUnauthorized, "invalid refresh token")
	ErrRoleChangeDenied    = httpx.NewError(httpx.ErrForbidden, "only administrators may change role or status")
	ErrRoleAssignDenied    = httpx.NewError(httpx.ErrForbidden, "only administrators may assign elevated roles")
)

// User represents a hotel account: guest, staff member or administrator.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         auth.Role `json:"role"`
	Phone        *string   `json:"phone"`
	Address      *string   `json:"address"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Identity returns the token principal for u.
func (u User) Identity() auth.Identity {
	return auth.Identity{ID: u.ID, Email: u.Email, Role: u.Role, Name: u.Name}
}

// CreateInput carries registration data.
type CreateInput struct {
	Name     string
	Email    string
	Password string
	Role     auth.Role
	Phone    *string
	Address  *string
}

// UpdateInput carries a partial update; nil fields are left unchanged.
type UpdateInput struct {
	Name     *string
	Email    *string
	Password *string
	Role     *auth.Role
	Phone    *string
	Address  *string
	IsActive *bool
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	User         User   `json:"user"`
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

// Store persists users. Finders only see active users.
type Store interface {
	Create(ctx context.Context, u User) (User, error)
	FindByID(ctx context.Context, id string) (User, error)
	FindByEmail(ctx context.Context, email string) (User, error)
	EmailTaken(ctx context.Context, email, excludeID string) (bool, error)
	Update(ctx context.Context, u User) (User, error)
	Deactivate(ctx context.Context, id string) (bool, error)
	ListActive(ctx context.Context) ([]User, error)
}
