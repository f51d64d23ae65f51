package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/easyhotel/easyhotel/internal/platform/httpx"
)

// Verifier turns a raw bearer token into an Identity.
type Verifier interface {
	Verify(raw string) (Identity, error)
}

// Guard gates HTTP handlers on a verified Identity and role/ownership policy.
type Guard struct {
	tokens Verifier
	logger *slog.Logger
}

// NewGuard constructs a Guard.
func NewGuard(tokens Verifier, logger *slog.Logger) *Guard {
	return &Guard{tokens: tokens, logger: logger}
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

// Identify authenticates the request without touching the response.
func (g *Guard) Identify(r *http.Request) (Identity, error) {
	raw, ok := BearerToken(r)
	if !ok {
		return Identity{}, ErrTokenNotProvided
	}
	id, err := g.tokens.Verify(raw)
	if err != nil {
		return Identity{}, err
	}
	return id, nil
}

// Authenticate requires a valid bearer token and attaches the Identity to the context.
func (g *Guard) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := g.Identify(r)
		if err != nil {
			if errors.Is(err, ErrTokenNotProvided) {
				httpx.Error(w, http.StatusUnauthorized, ErrTokenNotProvided.Error(), CodeTokenNotProvided)
				return
			}
			if g.logger != nil {
				g.logger.Debug("token rejected", slog.String("path", r.URL.Path), slog.Any("error", err))
			}
			httpx.Error(w, http.StatusUnauthorized, ErrInvalidToken.Error(), CodeInvalidToken)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), id)))
	})
}

// RequireRole allows the request only when the attached identity holds one of roles.
func (g *Guard) RequireRole(roles ...Role) func(http.Handler) http.Handler {
	allowed := append([]Role(nil), roles...)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFromContext(r.Context())
			if err := CheckRole(id, ok, allowed); err != nil {
				g.deny(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireOwnershipOrAdmin allows ADMINs, or identities whose ID equals the resource
// owner taken from the first non-empty URL parameter among params ("id", "userId" by default).
func (g *Guard) RequireOwnershipOrAdmin(params ...string) func(http.Handler) http.Handler {
	if len(params) == 0 {
		params = []string{"id", "userId"}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFromContext(r.Context())
			if err := CheckOwnership(id, ok, ownerParam(r, params)); err != nil {
				g.deny(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CheckRole reports whether id (present when ok) holds one of roles.
func CheckRole(id Identity, ok bool, roles []Role) error {
	if !ok {
		return ErrUnauthenticated
	}
	for _, role := range roles {
		if id.Role == role {
			return nil
		}
	}
	return ErrForbidden
}

// CheckOwnership reports whether id (present when ok) may act on ownerID.
func CheckOwnership(id Identity, ok bool, ownerID string) error {
	if !ok {
		return ErrUnauthenticated
	}
	if id.IsAdmin() {
		return nil
	}
	if ownerID != "" && id.ID == ownerID {
		return nil
	}
	return ErrForbidden
}

func ownerParam(r *http.Request, params []string) string {
	for _, name := range params {
		if v := chi.URLParam(r, name); v != "" {
			return v
		}
	}
	return ""
}

func (g *Guard) deny(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, ErrUnauthenticated) {
		httpx.Error(w, http.StatusUnauthorized, err.Error(), CodeUnauthenticated)
		return
	}
	if g.logger != nil {
		g.logger.Info("access denied", slog.String("path", r.URL.Path))
	}
	httpx.Error(w, http.StatusForbidden, err.Error(), CodeForbidden)
}
