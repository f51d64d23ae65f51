// Package servicekeys authenticates and authorizes machine callers through static API keys.
package servicekeys

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
)

// Header names accepted for the API key, in lookup order.
const (
	HeaderAPIKey     = "X-API-Key"
	HeaderServiceKey = "X-Service-Key"
)

// Well-known service names.
const (
	ServiceReservations  = "reservations-service"
	ServicePayments      = "payments-service"
	ServiceNotifications = "notifications-service"
	ServiceRooms         = "rooms-service"
)

// Permission names granted to services.
const (
	PermReadUsers          = "read:users"
	PermWriteReservations  = "write:reservations"
	PermReadReservations   = "read:reservations"
	PermReadRooms          = "read:rooms"
	PermWriteRooms         = "write:rooms"
	PermWritePayments      = "write:payments"
	PermWriteNotifications = "write:notifications"
)

var (
	ErrMissingAPIKey           = errors.New("api key not provided")
	ErrInvalidAPIKey           = errors.New("invalid api key")
	ErrServiceNotAuthenticated = errors.New("service not authenticated")
	ErrInsufficientPermissions = errors.New("insufficient permissions")
	ErrServiceAccessDenied     = errors.New("access denied for this service")
)

// Credential binds one API key to a named service and its permissions.
type Credential struct {
	APIKey      string
	ServiceName string
	Permissions []string
}

// CallContext is attached to a request after successful service authentication.
type CallContext struct {
	ServiceName string   `json:"service"`
	Permissions []string `json:"permissions"`
}

// HasPermission reports whether name is in the permission set.
func (c CallContext) HasPermission(name string) bool {
	return slices.Contains(c.Permissions, name)
}

// HasAnyPermission reports whether at least one of names is in the permission set.
func (c CallContext) HasAnyPermission(names ...string) bool {
	for _, name := range names {
		if c.HasPermission(name) {
			return true
		}
	}
	return false
}

// Registry is an immutable API key table. Safe for concurrent reads.
type Registry struct {
	byKey map[string]Credential
}

// NewRegistry builds the table. Empty or duplicate keys and unnamed services are rejected.
func NewRegistry(creds []Credential) (*Registry, error) {
	byKey := make(map[string]Credential, len(creds))
	for _, c := range creds {
		if strings.TrimSpace(c.APIKey) == "" {
			return nil, fmt.Errorf("servicekeys: empty api key for %q", c.ServiceName)
		}
		if strings.TrimSpace(c.ServiceName) == "" {
			return nil, errors.New("servicekeys: service name required")
		}
		if prev, dup := byKey[c.APIKey]; dup {
			return nil, fmt.Errorf("servicekeys: %q reuses the api key of %q", c.ServiceName, prev.ServiceName)
		}
		c.Permissions = slices.Clone(c.Permissions)
		byKey[c.APIKey] = c
	}
	return &Registry{byKey: byKey}, nil
}

// ServiceKeys carries the configured key of every standing service.
// An empty key leaves that service unregistered.
type ServiceKeys struct {
	Reservations  string
	Payments      string
	Notifications string
	Rooms         string
}

// DefaultServices returns the standing credential table for the configured keys.
func DefaultServices(keys ServiceKeys) []Credential {
	all := []Credential{
		{APIKey: keys.Reservations, ServiceName: ServiceReservations, Permissions: []string{PermReadUsers, PermWriteReservations, PermReadRooms}},
		{APIKey: keys.Payments, ServiceName: ServicePayments, Permissions: []string{PermReadUsers, PermWritePayments, PermReadReservations}},
		{APIKey: keys.Notifications, ServiceName: ServiceNotifications, Permissions: []string{PermReadUsers, PermWriteNotifications}},
		{APIKey: keys.Rooms, ServiceName: ServiceRooms, Permissions: []string{PermReadRooms, PermWriteRooms, PermReadReservations}},
	}
	out := all[:0]
	for _, c := range all {
		if c.APIKey != "" {
			out = append(out, c)
		}
	}
	return out
}

// Len returns the number of registered services.
func (r *Registry) Len() int {
	return len(r.byKey)
}

// Lookup returns the credential registered for key.
func (r *Registry) Lookup(key string) (Credential, bool) {
	c, ok := r.byKey[key]
	if !ok {
		return Credential{}, false
	}
	c.Permissions = slices.Clone(c.Permissions)
	return c, true
}

// Authenticate resolves the caller of r from X-API-Key or X-Service-Key.
func (r *Registry) Authenticate(req *http.Request) (CallContext, error) {
	key := req.Header.Get(HeaderAPIKey)
	if key == "" {
		key = req.Header.Get(HeaderServiceKey)
	}
	if key == "" {
		return CallContext{}, ErrMissingAPIKey
	}
	cred, ok := r.Lookup(key)
	if !ok {
		return CallContext{}, ErrInvalidAPIKey
	}
	return CallContext{ServiceName: cred.ServiceName, Permissions: cred.Permissions}, nil
}
