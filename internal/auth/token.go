package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// DefaultAccessTTL is used when TokenConfig.AccessTTL is zero.
	DefaultAccessTTL = 24 * time.Hour
	// RefreshTTL is the fixed lifetime of refresh tokens.
	RefreshTTL = 7 * 24 * time.Hour

	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// TokenConfig configures a TokenAuthority.
type TokenConfig struct {
	Secret    string
	Issuer    string
	AccessTTL time.Duration
	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// TokenAuthority mints and verifies HS256 identity tokens with a shared secret.
// It holds no mutable state and is safe for concurrent use.
type TokenAuthority struct {
	secret    []byte
	issuer    string
	accessTTL time.Duration
	now       func() time.Time
}

type identityClaims struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
	Name  string `json:"name"`
	Type  string `json:"typ"`
	jwt.RegisteredClaims
}

// NewTokenAuthority validates cfg and builds a TokenAuthority.
func NewTokenAuthority(cfg TokenConfig) (*TokenAuthority, error) {
	if cfg.Secret == "" {
		return nil, errors.New("auth: token secret must be provided")
	}
	if cfg.AccessTTL < 0 {
		return nil, errors.New("auth: access ttl must be positive")
	}
	if cfg.AccessTTL == 0 {
		cfg.AccessTTL = DefaultAccessTTL
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &TokenAuthority{
		secret:    []byte(cfg.Secret),
		issuer:    cfg.Issuer,
		accessTTL: cfg.AccessTTL,
		now:       now,
	}, nil
}

// AccessTTL returns the configured access-token lifetime.
func (a *TokenAuthority) AccessTTL() time.Duration {
	return a.accessTTL
}

// Issue signs an access token for the identity with an expiry of now+ttl.
func (a *TokenAuthority) Issue(id Identity, ttl time.Duration) (string, error) {
	return a.issue(id, ttl, tokenTypeAccess)
}

func (a *TokenAuthority) issue(id Identity, ttl time.Duration, tokenType string) (string, error) {
	if ttl <= 0 {
		return "", fmt.Errorf("auth: issue token: ttl must be positive, got %s", ttl)
	}
	if !id.Role.Valid() {
		return "", fmt.Errorf("auth: issue token: unknown role %q", id.Role)
	}
	now := a.now()
	claims := identityClaims{
		ID:    id.ID,
		Email: id.Email,
		Role:  id.Role,
		Name:  id.Name,
		Type:  tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    a.issuer,
			Subject:   id.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

// IssuePair mints the access and refresh tokens handed out at login.
func (a *TokenAuthority) IssuePair(id Identity) (TokenPair, error) {
	access, err := a.Issue(id, a.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := a.issue(id, RefreshTTL, tokenTypeRefresh)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Verify checks an access token's signature and expiry and returns the embedded identity.
// Refresh tokens are rejected. Every failure is reported as ErrInvalidToken.
func (a *TokenAuthority) Verify(raw string) (Identity, error) {
	return a.verify(raw, tokenTypeAccess)
}

// VerifyRefresh is Verify for refresh tokens; access tokens are rejected.
func (a *TokenAuthority) VerifyRefresh(raw string) (Identity, error) {
	return a.verify(raw, tokenTypeRefresh)
}

func (a *TokenAuthority) verify(raw, tokenType string) (Identity, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(a.now),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	parsed, err := jwt.ParseWithClaims(raw, &identityClaims{}, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(*identityClaims)
	if !ok || !parsed.Valid {
		return Identity{}, ErrInvalidToken
	}
	if claims.ID == "" || !claims.Role.Valid() {
		return Identity{}, fmt.Errorf("%w: incomplete claims", ErrInvalidToken)
	}
	if claims.Type != tokenType {
		return Identity{}, fmt.Errorf("%w: %q token not accepted here", ErrInvalidToken, claims.Type)
	}
	return Identity{
		ID:    claims.ID,
		Email: claims.Email,
		Role:  claims.Role,
		Name:  claims.Name,
	}, nil
}
