package users

import (
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/easyhotel/easyhotel/internal/auth"
	"github.com/easyhotel/easyhotel/internal/platform/httpx"
)

var phonePattern = regexp.MustCompile(`^\+?[\d\s\-()]+$`)

// RegisterValidations adds the user-specific validation tags to v.
func RegisterValidations(v *validator.Validate) {
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
}

type registerRequest struct {
	Name     string  `json:"name" validate:"required,min=2,max=100"`
	Email    string  `json:"email" validate:"required,email"`
	Password string  `json:"password" validate:"required,min=6,max=100"`
	Role     string  `json:"role" validate:"omitempty,oneof=ADMIN STAFF GUEST"`
	Phone    *string `json:"phone" validate:"omitempty,phone"`
	Address  *string `json:"address" validate:"omitempty,max=200"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type updateRequest struct {
	Name     *string `json:"name" validate:"omitempty,min=2,max=100"`
	Email    *string `json:"email" validate:"omitempty,email"`
	Password *string `json:"password" validate:"omitempty,min=6,max=100"`
	Role     *string `json:"role" validate:"omitempty,oneof=ADMIN STAFF GUEST"`
	Phone    *string `json:"phone" validate:"omitempty,phone"`
	Address  *string `json:"address" validate:"omitempty,max=200"`
	IsActive *bool   `json:"isActive"`
}

// Handler serves the account and user management API.
type Handler struct {
	service  *Service
	guard    *auth.Guard
	validate *validator.Validate
	logger   *slog.Logger
}

// NewHandler builds Handler instance.
func NewHandler(service *Service, guard *auth.Guard, validate *validator.Validate, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, guard: guard, validate: validate, logger: logger}
}

// MountRoutes registers the auth and user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/auth/register", h.register)
	r.Post("/auth/login", h.login)
	r.Post("/auth/refresh", h.refresh)
	r.With(h.guard.Authenticate).Get("/auth/me", h.me)

	r.Route("/users", func(r chi.Router) {
		r.Use(h.guard.Authenticate)
		r.With(h.guard.RequireRole(auth.RoleAdmin)).Get("/", h.list)
		r.With(h.guard.RequireOwnershipOrAdmin()).Get("/{id}", h.get)
		r.With(h.guard.RequireOwnershipOrAdmin()).Put("/{id}", h.update)
		r.With(h.guard.RequireRole(auth.RoleAdmin)).Delete("/{id}", h.delete)
	})
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.Role = strings.ToUpper(strings.TrimSpace(req.Role))
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	role := auth.Role(req.Role)
	if role != "" && role != auth.RoleGuest {
		caller, err := h.guard.Identify(r)
		if err != nil || !caller.IsAdmin() {
			httpx.RespondError(w, ErrRoleAssignDenied)
			return
		}
	}
	user, err := h.service.Register(r.Context(), CreateInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     role,
		Phone:    req.Phone,
		Address:  req.Address,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"message": "user created",
		"user":    user,
	})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"message":      "login successful",
		"user":         result.User,
		"token":        result.Token,
		"refreshToken": result.RefreshToken,
	})
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	req.RefreshToken = strings.TrimSpace(req.RefreshToken)
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.service.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"message":      "token refreshed",
		"user":         result.User,
		"token":        result.Token,
		"refreshToken": result.RefreshToken,
	})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, auth.ErrUnauthenticated.Error(), auth.CodeUnauthenticated)
		return
	}
	user, err := h.service.Get(r.Context(), caller.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"user": user})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"users": users,
		"total": len(users),
	})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"user": user})
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if req.Role != nil {
		upper := strings.ToUpper(strings.TrimSpace(*req.Role))
		req.Role = &upper
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	in := UpdateInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Phone:    req.Phone,
		Address:  req.Address,
		IsActive: req.IsActive,
	}
	if req.Role != nil {
		role := auth.Role(*req.Role)
		in.Role = &role
	}
	caller, _ := auth.IdentityFromContext(r.Context())
	user, err := h.service.Update(r.Context(), caller, chi.URLParam(r, "id"), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"message": "user updated",
		"user":    user,
	})
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"message": "user deleted"})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Debug("user request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	httpx.RespondError(w, err)
}
