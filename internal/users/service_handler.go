package users

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/easyhotel/easyhotel/internal/platform/httpx"
	"github.com/easyhotel/easyhotel/internal/servicekeys"
	"github.com/easyhotel/easyhotel/internal/svcclient"
	"github.com/easyhotel/easyhotel/jobs"
)

// Error codes specific to the service API.
const (
	CodeMissingParameters    = "MISSING_PARAMETERS"
	CodeUnknownService       = "UNKNOWN_SERVICE"
	CodeUnknownAction        = "UNKNOWN_ACTION"
	CodeProductionRestricted = "PRODUCTION_RESTRICTED"
	CodeMissingServiceName   = "MISSING_SERVICE_NAME"
)

const (
	communicateTimeout       = 30 * time.Second
	communicateTestRecipient = "test@example.com"
	communicateTestSubject   = "Service communication test"
)

type communicateRequest struct {
	Action        string         `json:"action" validate:"required"`
	TargetService string         `json:"targetService" validate:"required"`
	Data          map[string]any `json:"data"`
}

type apiKeyRequest struct {
	ServiceName string `json:"serviceName" validate:"required"`
}

// ServiceHandler serves the API-key authenticated /service routes used by peer services.
type ServiceHandler struct {
	service  *Service
	keys     servicekeys.Middleware
	peers    *svcclient.Peers
	validate *validator.Validate
	env      string
	now      func() time.Time
	logger   *slog.Logger
}

// NewServiceHandler builds a ServiceHandler. env gates dev-only endpoints.
func NewServiceHandler(service *Service, keys servicekeys.Middleware, peers *svcclient.Peers, validate *validator.Validate, env string, logger *slog.Logger) *ServiceHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ServiceHandler{
		service:  service,
		keys:     keys,
		peers:    peers,
		validate: validate,
		env:      env,
		now:      time.Now,
		logger:   logger,
	}
}

// MountRoutes registers the service routes under /service.
func (h *ServiceHandler) MountRoutes(r chi.Router) {
	r.Route("/service", func(r chi.Router) {
		r.Use(h.keys.AuthenticateService)
		r.With(h.keys.RequirePermission(servicekeys.PermReadUsers)).Get("/users/{id}", h.userInfo)
		r.Get("/permissions", h.permissions)
		r.Post("/communicate", h.communicate)
		r.Post("/api-keys", h.generateAPIKey)
	})
}

func (h *ServiceHandler) userInfo(w http.ResponseWriter, r *http.Request) {
	call, _ := servicekeys.CallFromContext(r.Context())
	user, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data": map[string]any{
			"id":    user.ID,
			"name":  user.Name,
			"email": user.Email,
			"role":  user.Role,
			"phone": user.Phone,
		},
		"service": call.ServiceName,
	})
}

func (h *ServiceHandler) permissions(w http.ResponseWriter, r *http.Request) {
	call, ok := servicekeys.CallFromContext(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, servicekeys.ErrServiceNotAuthenticated.Error(), servicekeys.CodeServiceNotAuthenticated)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"service":     call.ServiceName,
		"permissions": call.Permissions,
		"timestamp":   h.now().UTC().Format(time.RFC3339),
	})
}

// communicate runs a diagnostic call against a peer through its resilient client.
func (h *ServiceHandler) communicate(w http.ResponseWriter, r *http.Request) {
	var req communicateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	req.Action = strings.TrimSpace(req.Action)
	req.TargetService = strings.TrimSpace(req.TargetService)
	if err := h.validate.Struct(req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "action and targetService are required", CodeMissingParameters)
		return
	}
	if h.peers == nil {
		httpx.Error(w, http.StatusServiceUnavailable, "peer clients not configured", httpx.CodeInternal)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), communicateTimeout)
	defer cancel()

	result, err := h.runAction(ctx, req)
	if err != nil {
		code := CodeUnknownAction
		if errors.Is(err, errUnknownService) {
			code = CodeUnknownService
		}
		httpx.Error(w, http.StatusBadRequest, err.Error(), code)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"action":        req.Action,
		"targetService": req.TargetService,
		"result":        result,
		"timestamp":     h.now().UTC().Format(time.RFC3339),
	})
}

var (
	errUnknownService = errors.New("unknown target service")
	errUnknownAction  = errors.New("unknown action for target service")
)

func (h *ServiceHandler) runAction(ctx context.Context, req communicateRequest) (any, error) {
	client, ok := h.peers.ByName(req.TargetService)
	if !ok {
		return nil, errUnknownService
	}
	switch {
	case req.TargetService == svcclient.PeerReservations && req.Action == "check",
		req.TargetService == svcclient.PeerPayments && req.Action == "status":
		return map[string]bool{"health": client.HealthCheck(ctx)}, nil
	case req.TargetService == svcclient.PeerRooms && req.Action == "list":
		return h.peers.Rooms.GetRooms(ctx, nil), nil
	case req.TargetService == svcclient.PeerNotifications && req.Action == "test":
		return h.peers.Notifications.SendEmail(ctx, map[string]any{
			"to":       communicateTestRecipient,
			"subject":  communicateTestSubject,
			"template": jobs.TemplateReservationConfirmation,
			"data":     req.Data,
		}), nil
	}
	return nil, errUnknownAction
}

func (h *ServiceHandler) generateAPIKey(w http.ResponseWriter, r *http.Request) {
	if !devEnvironment(h.env) {
		httpx.Error(w, http.StatusForbidden, servicekeys.ErrProductionRestricted.Error(), CodeProductionRestricted)
		return
	}
	var req apiKeyRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	req.ServiceName = strings.TrimSpace(req.ServiceName)
	if err := h.validate.Struct(req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "serviceName is required", CodeMissingServiceName)
		return
	}
	key, err := servicekeys.GenerateAPIKey(h.env, req.ServiceName, h.now())
	if err != nil {
		if errors.Is(err, servicekeys.ErrProductionRestricted) {
			httpx.Error(w, http.StatusForbidden, err.Error(), CodeProductionRestricted)
			return
		}
		httpx.RespondError(w, err)
		return
	}
	h.logger.Warn("development api key generated", slog.String("service", req.ServiceName))
	httpx.JSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"serviceName": req.ServiceName,
		"apiKey":      key,
		"warning":     "this api key is for development only",
	})
}

func devEnvironment(env string) bool {
	return env == "development" || env == "test"
}
