package users_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easyhotel/easyhotel/internal/auth"
	"github.com/easyhotel/easyhotel/internal/platform/httpx"
	"github.com/easyhotel/easyhotel/internal/servicekeys"
	"github.com/easyhotel/easyhotel/internal/svcclient"
	"github.com/easyhotel/easyhotel/internal/users"
)

const (
	reservationsKey  = "res-key"
	roomsKey         = "rooms-key"
	notificationsKey = "notif-key"
)

type peerStub struct {
	mu       sync.Mutex
	requests []string
	bodies   []map[string]any
}

func (p *peerStub) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		p.requests = append(p.requests, r.Method+" "+r.URL.Path)
		if r.Body != nil {
			raw, _ := io.ReadAll(r.Body)
			var body map[string]any
			if json.Unmarshal(raw, &body) == nil {
				p.bodies = append(p.bodies, body)
			}
		}
		p.mu.Unlock()
		switch r.URL.Path {
		case "/health":
			httpx.JSON(w, http.StatusOK, map[string]any{"status": "ok"})
		case "/rooms":
			httpx.JSON(w, http.StatusOK, map[string]any{"data": []map[string]any{{"id": "r-101"}}})
		default:
			httpx.JSON(w, http.StatusAccepted, map[string]any{"queued": true})
		}
	})
}

type serviceAPI struct {
	router http.Handler
	svc    *users.Service
	peer   *peerStub
}

func newServiceAPI(t *testing.T, env string) serviceAPI {
	t.Helper()
	svc, _ := newService(t, newMemStore())

	registry, err := servicekeys.NewRegistry(servicekeys.DefaultServices(servicekeys.ServiceKeys{
		Reservations:  reservationsKey,
		Rooms:         roomsKey,
		Notifications: notificationsKey,
	}))
	require.NoError(t, err)

	stub := &peerStub{}
	srv := httptest.NewServer(stub.handler())
	t.Cleanup(srv.Close)
	ep := svcclient.Endpoint{BaseURL: srv.URL, APIKey: "outbound"}
	peers, err := svcclient.NewPeers(svcclient.PeersConfig{
		MaxRetries:    1,
		Reservations:  ep,
		Rooms:         ep,
		Payments:      ep,
		Notifications: ep,
	})
	require.NoError(t, err)

	validate := httpx.NewValidator()
	r := chi.NewRouter()
	users.NewServiceHandler(svc, servicekeys.Middleware{Registry: registry}, peers, validate, env, nil).MountRoutes(r)
	return serviceAPI{router: r, svc: svc, peer: stub}
}

func (s serviceAPI) do(t *testing.T, method, path, key string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if key != "" {
		req.Header.Set(servicekeys.HeaderAPIKey, key)
	}
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

func TestServiceUserInfoPermissions(t *testing.T) {
	api := newServiceAPI(t, "development")
	u, err := api.svc.Register(context.Background(), users.CreateInput{Name: "Guest", Email: "g@hotel.test", Password: "secret1"})
	require.NoError(t, err)

	rr := api.do(t, http.MethodGet, "/service/users/"+u.ID, "", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, servicekeys.CodeMissingAPIKey, errorCode(t, rr))

	rr = api.do(t, http.MethodGet, "/service/users/"+u.ID, "bogus", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, servicekeys.CodeInvalidAPIKey, errorCode(t, rr))

	rr = api.do(t, http.MethodGet, "/service/users/"+u.ID, roomsKey, nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, servicekeys.CodeInsufficientPermissions, errorCode(t, rr))
	assert.Contains(t, rr.Body.String(), `"required":"read:users"`)

	rr = api.do(t, http.MethodGet, "/service/users/"+u.ID, reservationsKey, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var body struct {
		Success bool           `json:"success"`
		Data    map[string]any `json:"data"`
		Service string         `json:"service"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, servicekeys.ServiceReservations, body.Service)
	assert.Equal(t, "g@hotel.test", body.Data["email"])
	assert.Equal(t, string(auth.RoleGuest), body.Data["role"])
	assert.NotContains(t, body.Data, "address")

	rr = api.do(t, http.MethodGet, "/service/users/missing", reservationsKey, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestServicePermissionsEcho(t *testing.T) {
	api := newServiceAPI(t, "development")
	rr := api.do(t, http.MethodGet, "/service/permissions", notificationsKey, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Service     string   `json:"service"`
		Permissions []string `json:"permissions"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, servicekeys.ServiceNotifications, body.Service)
	assert.ElementsMatch(t, []string{servicekeys.PermReadUsers, servicekeys.PermWriteNotifications}, body.Permissions)
}

func TestServiceCommunicate(t *testing.T) {
	api := newServiceAPI(t, "development")

	cases := []struct {
		name    string
		body    map[string]any
		status  int
		code    string
		contain string
	}{
		{"missing action", map[string]any{"targetService": "rooms"}, http.StatusBadRequest, users.CodeMissingParameters, ""},
		{"blank target", map[string]any{"action": "list", "targetService": "  "}, http.StatusBadRequest, users.CodeMissingParameters, ""},
		{"unknown service", map[string]any{"action": "check", "targetService": "spa"}, http.StatusBadRequest, users.CodeUnknownService, ""},
		{"unknown action", map[string]any{"action": "drop", "targetService": "rooms"}, http.StatusBadRequest, users.CodeUnknownAction, ""},
		{"action of another peer", map[string]any{"action": "check", "targetService": "payments"}, http.StatusBadRequest, users.CodeUnknownAction, ""},
		{"reservations check", map[string]any{"action": "check", "targetService": "reservations"}, http.StatusOK, "", `"health":true`},
		{"rooms list", map[string]any{"action": "list", "targetService": "rooms"}, http.StatusOK, "", `"r-101"`},
		{"payments status", map[string]any{"action": "status", "targetService": "payments"}, http.StatusOK, "", `"health":true`},
		{"notifications test", map[string]any{"action": "test", "targetService": "notifications", "data": map[string]any{"k": "v"}}, http.StatusOK, "", `"queued":true`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := api.do(t, http.MethodPost, "/service/communicate", reservationsKey, tc.body)
			require.Equal(t, tc.status, rr.Code, rr.Body.String())
			if tc.code != "" {
				assert.Equal(t, tc.code, errorCode(t, rr))
			}
			if tc.contain != "" {
				assert.Contains(t, rr.Body.String(), tc.contain)
			}
		})
	}

	api.peer.mu.Lock()
	defer api.peer.mu.Unlock()
	assert.Contains(t, api.peer.requests, "GET /rooms")
	assert.Contains(t, api.peer.requests, "POST /notifications/email")
	var email map[string]any
	for _, b := range api.peer.bodies {
		if b["subject"] != nil {
			email = b
		}
	}
	require.NotNil(t, email)
	assert.Equal(t, "test@example.com", email["to"])
	assert.Equal(t, map[string]any{"k": "v"}, email["data"])
}

func TestServiceAPIKeyGeneration(t *testing.T) {
	dev := newServiceAPI(t, "development")
	rr := dev.do(t, http.MethodPost, "/service/api-keys", reservationsKey, map[string]any{"serviceName": "spa-service"})
	require.Equal(t, http.StatusOK, rr.Code)
	var body struct {
		APIKey      string `json:"apiKey"`
		ServiceName string `json:"serviceName"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "spa-service", body.ServiceName)
	assert.True(t, strings.HasPrefix(body.APIKey, "spa-service-"))

	rr = dev.do(t, http.MethodPost, "/service/api-keys", reservationsKey, map[string]any{"serviceName": ""})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, users.CodeMissingServiceName, errorCode(t, rr))

	prod := newServiceAPI(t, "production")
	rr = prod.do(t, http.MethodPost, "/service/api-keys", reservationsKey, map[string]any{"serviceName": "spa-service"})
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, users.CodeProductionRestricted, errorCode(t, rr))
}
