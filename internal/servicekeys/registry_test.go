package servicekeys_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easyhotel/easyhotel/internal/servicekeys"
)

var testKeys = servicekeys.ServiceKeys{
	Reservations:  "res-key",
	Payments:      "pay-key",
	Notifications: "not-key",
	Rooms:         "room-key",
}

func newRegistry(t *testing.T) *servicekeys.Registry {
	t.Helper()
	reg, err := servicekeys.NewRegistry(servicekeys.DefaultServices(testKeys))
	require.NoError(t, err)
	return reg
}

func TestRegistryLookup(t *testing.T) {
	reg := newRegistry(t)
	assert.Equal(t, 4, reg.Len())

	cred, ok := reg.Lookup("res-key")
	require.True(t, ok)
	assert.Equal(t, servicekeys.ServiceReservations, cred.ServiceName)
	assert.Equal(t, []string{"read:users", "write:reservations", "read:rooms"}, cred.Permissions)

	_, ok = reg.Lookup("unknown")
	assert.False(t, ok)
	_, ok = reg.Lookup("")
	assert.False(t, ok)
}

func TestRegistryIsImmutable(t *testing.T) {
	creds := []servicekeys.Credential{{APIKey: "k", ServiceName: "svc", Permissions: []string{"read:users"}}}
	reg, err := servicekeys.NewRegistry(creds)
	require.NoError(t, err)

	creds[0].Permissions[0] = "write:everything"
	cred, _ := reg.Lookup("k")
	cred.Permissions[0] = "write:more"

	again, _ := reg.Lookup("k")
	assert.Equal(t, []string{"read:users"}, again.Permissions)
}

func TestNewRegistryRejectsBadTables(t *testing.T) {
	_, err := servicekeys.NewRegistry([]servicekeys.Credential{{APIKey: "", ServiceName: "a"}})
	assert.Error(t, err)

	_, err = servicekeys.NewRegistry([]servicekeys.Credential{
		{APIKey: "same", ServiceName: "a"},
		{APIKey: "same", ServiceName: "b"},
	})
	assert.Error(t, err)

	_, err = servicekeys.NewRegistry([]servicekeys.Credential{{APIKey: "k"}})
	assert.Error(t, err)
}

func TestDefaultServicesSkipsMissingKeys(t *testing.T) {
	creds := servicekeys.DefaultServices(servicekeys.ServiceKeys{Rooms: "r"})
	require.Len(t, creds, 1)
	assert.Equal(t, servicekeys.ServiceRooms, creds[0].ServiceName)
}

func TestAuthenticateHeaders(t *testing.T) {
	reg := newRegistry(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err := reg.Authenticate(req)
	assert.ErrorIs(t, err, servicekeys.ErrMissingAPIKey)

	req.Header.Set(servicekeys.HeaderAPIKey, "nope")
	_, err = reg.Authenticate(req)
	assert.ErrorIs(t, err, servicekeys.ErrInvalidAPIKey)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(servicekeys.HeaderServiceKey, "pay-key")
	call, err := reg.Authenticate(req)
	require.NoError(t, err)
	assert.Equal(t, servicekeys.ServicePayments, call.ServiceName)
	assert.True(t, call.HasPermission("write:payments"))
	assert.False(t, call.HasPermission("write:rooms"))
	assert.True(t, call.HasAnyPermission("write:rooms", "read:reservations"))
	assert.False(t, call.HasAnyPermission())
}

func TestRequirePermissionMembership(t *testing.T) {
	reg := newRegistry(t)
	for _, cred := range servicekeys.DefaultServices(testKeys) {
		for _, perm := range []string{"read:users", "write:reservations", "read:rooms", "write:rooms", "write:payments", "read:reservations", "write:notifications", "admin:all"} {
			call, err := reg.Authenticate(requestWithKey(cred.APIKey))
			require.NoError(t, err)
			want := false
			for _, p := range cred.Permissions {
				if p == perm {
					want = true
				}
			}
			assert.Equalf(t, want, call.HasPermission(perm), "%s %s", cred.ServiceName, perm)
		}
	}
}

func requestWithKey(key string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/service/permissions", nil)
	if key != "" {
		req.Header.Set(servicekeys.HeaderAPIKey, key)
	}
	return req
}

func okHandler(w http.ResponseWriter, r *http.Request) {
	call, _ := servicekeys.CallFromContext(r.Context())
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(call)
}

func TestMiddlewareChain(t *testing.T) {
	mw := servicekeys.Middleware{Registry: newRegistry(t)}
	chain := func(extra func(http.Handler) http.Handler) http.Handler {
		return mw.AuthenticateService(extra(http.HandlerFunc(okHandler)))
	}

	cases := []struct {
		name   string
		key    string
		guard  func(http.Handler) http.Handler
		status int
		code   string
	}{
		{"missing key", "", mw.RequirePermission("read:users"), http.StatusUnauthorized, servicekeys.CodeMissingAPIKey},
		{"invalid key", "bogus", mw.RequirePermission("read:users"), http.StatusUnauthorized, servicekeys.CodeInvalidAPIKey},
		{"has permission", "res-key", mw.RequirePermission("read:users"), http.StatusOK, ""},
		{"lacks permission", "room-key", mw.RequirePermission("read:users"), http.StatusForbidden, servicekeys.CodeInsufficientPermissions},
		{"any permission", "room-key", mw.RequireAnyPermission("read:users", "write:rooms"), http.StatusOK, ""},
		{"none of any", "not-key", mw.RequireAnyPermission("write:rooms", "write:payments"), http.StatusForbidden, servicekeys.CodeInsufficientPermissions},
		{"right service", "pay-key", mw.RequireService(servicekeys.ServicePayments), http.StatusOK, ""},
		{"wrong service", "res-key", mw.RequireService(servicekeys.ServicePayments), http.StatusForbidden, servicekeys.CodeServiceAccessDenied},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			chain(tc.guard).ServeHTTP(rr, requestWithKey(tc.key))
			assert.Equal(t, tc.status, rr.Code)
			if tc.code == "" {
				return
			}
			var body map[string]any
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.Equal(t, tc.code, body["code"])
		})
	}
}

func TestInsufficientPermissionsBodyListsRequiredAndAvailable(t *testing.T) {
	mw := servicekeys.Middleware{Registry: newRegistry(t)}
	h := mw.AuthenticateService(mw.RequirePermission("write:payments")(http.HandlerFunc(okHandler)))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, requestWithKey("not-key"))
	require.Equal(t, http.StatusForbidden, rr.Code)

	var body struct {
		Required  string   `json:"required"`
		Available []string `json:"available"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "write:payments", body.Required)
	assert.Equal(t, []string{"read:users", "write:notifications"}, body.Available)
}

func TestChecksWithoutAuthentication(t *testing.T) {
	mw := servicekeys.Middleware{Registry: newRegistry(t)}
	for _, guard := range []func(http.Handler) http.Handler{
		mw.RequirePermission("read:users"),
		mw.RequireAnyPermission("read:users"),
		mw.RequireService(servicekeys.ServiceRooms),
	} {
		rr := httptest.NewRecorder()
		guard(http.HandlerFunc(okHandler)).ServeHTTP(rr, requestWithKey("res-key"))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Contains(t, rr.Body.String(), servicekeys.CodeServiceNotAuthenticated)
	}
}

func TestGenerateAPIKey(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	key, err := servicekeys.GenerateAPIKey("development", "rooms-service", now)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "rooms-service-1700000000000-"))

	other, err := servicekeys.GenerateAPIKey("test", "rooms-service", now)
	require.NoError(t, err)
	assert.NotEqual(t, key, other)

	_, err = servicekeys.GenerateAPIKey("production", "rooms-service", now)
	assert.ErrorIs(t, err, servicekeys.ErrProductionRestricted)
	_, err = servicekeys.GenerateAPIKey("staging", "rooms-service", now)
	assert.ErrorIs(t, err, servicekeys.ErrProductionRestricted)
	_, err = servicekeys.GenerateAPIKey("development", " ", now)
	assert.Error(t, err)
}
