package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/easyhotel/easyhotel/internal/auth"
)

// BcryptCost is the hashing cost for stored passwords.
const BcryptCost = 10

// TokenIssuer mints the login token pair and redeems refresh tokens.
type TokenIssuer interface {
	IssuePair(id auth.Identity) (auth.TokenPair, error)
	VerifyRefresh(raw string) (auth.Identity, error)
}

// Service handles user business logic.
type Service struct {
	store  Store
	tokens TokenIssuer
	logger *slog.Logger
	now    func() time.Time
	cost   int
}

// ServiceOption customises a Service.
type ServiceOption func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// WithBcryptCost overrides the hashing cost; tests use bcrypt.MinCost.
func WithBcryptCost(cost int) ServiceOption {
	return func(s *Service) { s.cost = cost }
}

// NewService builds Service instance.
func NewService(store Store, tokens TokenIssuer, logger *slog.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{store: store, tokens: tokens, logger: logger, now: time.Now, cost: BcryptCost}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates an active user. Email is lower-cased and must be unused; role defaults to GUEST.
func (s *Service) Register(ctx context.Context, in CreateInput) (User, error) {
	email := normalizeEmail(in.Email)
	taken, err := s.store.EmailTaken(ctx, email, "")
	if err != nil {
		return User{}, err
	}
	if taken {
		return User{}, ErrEmailTaken
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return User{}, fmt.Errorf("users: hash password: %w", err)
	}
	role := in.Role
	if role == "" {
		role = auth.RoleGuest
	}
	now := s.now().UTC()
	user, err := s.store.Create(ctx, User{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(in.Name),
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		Phone:        in.Phone,
		Address:      in.Address,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return User{}, err
	}
	s.logger.Info("user registered", slog.String("user_id", user.ID), slog.String("role", string(user.Role)))
	return user, nil
}

// Login checks credentials of an active user and issues a token pair.
// Unknown email and wrong password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (LoginResult, error) {
	user, err := s.store.FindByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, ErrNotFound) {
		return LoginResult{}, ErrInvalidCredentials
	}
	if err != nil {
		return LoginResult{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}
	pair, err := s.tokens.IssuePair(user.Identity())
	if err != nil {
		return LoginResult{}, fmt.Errorf("users: issue tokens: %w", err)
	}
	return LoginResult{User: user, Token: pair.AccessToken, RefreshToken: pair.RefreshToken}, nil
}

// Refresh redeems a refresh token for a new token pair. The pair carries the user's
// current identity, so role changes and deactivation take effect on refresh.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (LoginResult, error) {
	id, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return LoginResult{}, ErrInvalidRefreshToken
	}
	user, err := s.store.FindByID(ctx, id.ID)
	if errors.Is(err, ErrNotFound) {
		return LoginResult{}, ErrInvalidRefreshToken
	}
	if err != nil {
		return LoginResult{}, err
	}
	pair, err := s.tokens.IssuePair(user.Identity())
	if err != nil {
		return LoginResult{}, fmt.Errorf("users: issue tokens: %w", err)
	}
	return LoginResult{User: user, Token: pair.AccessToken, RefreshToken: pair.RefreshToken}, nil
}

// Get returns an active user.
func (s *Service) Get(ctx context.Context, id string) (User, error) {
	return s.store.FindByID(ctx, id)
}

// List returns active users, newest first.
func (s *Service) List(ctx context.Context) ([]User, error) {
	users, err := s.store.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []User{}
	}
	return users, nil
}

// Update applies in to the active user id on behalf of actor. Only administrators may
// change role or active status; resending the current values is allowed.
func (s *Service) Update(ctx context.Context, actor auth.Identity, id string, in UpdateInput) (User, error) {
	user, err := s.store.FindByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	roleChange := in.Role != nil && *in.Role != user.Role
	activeChange := in.IsActive != nil && *in.IsActive != user.IsActive
	if (roleChange || activeChange) && !actor.IsAdmin() {
		return User{}, ErrRoleChangeDenied
	}
	if in.Email != nil {
		email := normalizeEmail(*in.Email)
		if email != user.Email {
			taken, err := s.store.EmailTaken(ctx, email, id)
			if err != nil {
				return User{}, err
			}
			if taken {
				return User{}, ErrEmailTaken
			}
		}
		user.Email = email
	}
	if in.Name != nil {
		user.Name = strings.TrimSpace(*in.Name)
	}
	if in.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*in.Password), s.cost)
		if err != nil {
			return User{}, fmt.Errorf("users: hash password: %w", err)
		}
		user.PasswordHash = string(hash)
	}
	if in.Role != nil {
		user.Role = *in.Role
	}
	if in.Phone != nil {
		user.Phone = in.Phone
	}
	if in.Address != nil {
		user.Address = in.Address
	}
	if in.IsActive != nil {
		user.IsActive = *in.IsActive
	}
	user.UpdatedAt = s.now().UTC()
	return s.store.Update(ctx, user)
}

// Delete soft-deletes a user; unknown ids yield ErrNotFound.
func (s *Service) Delete(ctx context.Context, id string) error {
	ok, err := s.store.Deactivate(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	s.logger.Info("user deactivated", slog.String("user_id", id))
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func authRole(raw string) auth.Role {
	role, ok := auth.ParseRole(raw)
	if !ok {
		return auth.RoleGuest
	}
	return role
}
