package servicekeys

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/easyhotel/easyhotel/internal/platform/httpx"
)

// Error codes written by the middleware.
const (
	CodeMissingAPIKey           = "MISSING_API_KEY"
	CodeInvalidAPIKey           = "INVALID_API_KEY"
	CodeServiceNotAuthenticated = "SERVICE_NOT_AUTHENTICATED"
	CodeInsufficientPermissions = "INSUFFICIENT_PERMISSIONS"
	CodeServiceAccessDenied     = "SERVICE_ACCESS_DENIED"
)

type callContextKey struct{}

// ContextWithCall stores the authenticated service in context.
func ContextWithCall(ctx context.Context, call CallContext) context.Context {
	return context.WithValue(ctx, callContextKey{}, call)
}

// CallFromContext extracts the authenticated service from context.
func CallFromContext(ctx context.Context) (CallContext, bool) {
	call, ok := ctx.Value(callContextKey{}).(CallContext)
	return call, ok
}

// Middleware wires registry checks into HTTP handlers.
type Middleware struct {
	Registry *Registry
	Logger   *slog.Logger
}

// AuthenticateService requires a registered API key and attaches the CallContext.
func (m Middleware) AuthenticateService(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		call, err := m.Registry.Authenticate(r)
		switch {
		case errors.Is(err, ErrMissingAPIKey):
			httpx.Error(w, http.StatusUnauthorized, err.Error(), CodeMissingAPIKey)
			return
		case errors.Is(err, ErrInvalidAPIKey):
			if m.Logger != nil {
				m.Logger.Warn("rejected api key", slog.String("path", r.URL.Path), slog.String("remote", r.RemoteAddr))
			}
			httpx.Error(w, http.StatusUnauthorized, err.Error(), CodeInvalidAPIKey)
			return
		case err != nil:
			httpx.Error(w, http.StatusInternalServerError, "service authentication failed", httpx.CodeInternal)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithCall(r.Context(), call)))
	})
}

// RequirePermission allows callers holding perm.
func (m Middleware) RequirePermission(perm string) func(http.Handler) http.Handler {
	return m.check(func(call CallContext) (bool, map[string]any) {
		return call.HasPermission(perm), map[string]any{"required": perm, "available": call.Permissions}
	}, ErrInsufficientPermissions, CodeInsufficientPermissions)
}

// RequireAnyPermission allows callers holding at least one of perms.
func (m Middleware) RequireAnyPermission(perms ...string) func(http.Handler) http.Handler {
	required := append([]string(nil), perms...)
	return m.check(func(call CallContext) (bool, map[string]any) {
		return call.HasAnyPermission(required...), map[string]any{"required": required, "available": call.Permissions}
	}, ErrInsufficientPermissions, CodeInsufficientPermissions)
}

// RequireService allows only the named service.
func (m Middleware) RequireService(name string) func(http.Handler) http.Handler {
	return m.check(func(call CallContext) (bool, map[string]any) {
		return call.ServiceName == name, map[string]any{"required": name, "actual": call.ServiceName}
	}, ErrServiceAccessDenied, CodeServiceAccessDenied)
}

func (m Middleware) check(allowed func(CallContext) (bool, map[string]any), denyErr error, code string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			call, ok := CallFromContext(r.Context())
			if !ok {
				httpx.Error(w, http.StatusUnauthorized, ErrServiceNotAuthenticated.Error(), CodeServiceNotAuthenticated)
				return
			}
			if pass, fields := allowed(call); !pass {
				httpx.ErrorWithFields(w, http.StatusForbidden, denyErr.Error(), code, fields)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
