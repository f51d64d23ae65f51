package svcclient

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"
)

// Peer service names as reported in logs and metrics.
const (
	PeerReservations  = "reservations"
	PeerRooms         = "rooms"
	PeerPayments      = "payments"
	PeerNotifications = "notifications"
)

// ReservationsClient calls the reservations service.
type ReservationsClient struct{ *Client }

// CreateReservation posts a new reservation.
func (c *ReservationsClient) CreateReservation(ctx context.Context, data any) Result {
	return c.Post(ctx, "/reservations", data)
}

// GetReservation fetches a reservation by id.
func (c *ReservationsClient) GetReservation(ctx context.Context, id string) Result {
	return c.Get(ctx, "/reservations/"+url.PathEscape(id))
}

// UpdateReservation replaces a reservation.
func (c *ReservationsClient) UpdateReservation(ctx context.Context, id string, data any) Result {
	return c.Put(ctx, "/reservations/"+url.PathEscape(id), data)
}

// CancelReservation deletes a reservation.
func (c *ReservationsClient) CancelReservation(ctx context.Context, id string) Result {
	return c.Delete(ctx, "/reservations/"+url.PathEscape(id))
}

// RoomsClient calls the rooms service.
type RoomsClient struct{ *Client }

// GetRooms lists rooms, optionally filtered by query parameters.
func (c *RoomsClient) GetRooms(ctx context.Context, filters url.Values) Result {
	path := "/rooms"
	if len(filters) > 0 {
		path += "?" + filters.Encode()
	}
	return c.Get(ctx, path)
}

// GetRoom fetches a room by id.
func (c *RoomsClient) GetRoom(ctx context.Context, id string) Result {
	return c.Get(ctx, "/rooms/"+url.PathEscape(id))
}

// CreateRoom posts a new room.
func (c *RoomsClient) CreateRoom(ctx context.Context, data any) Result {
	return c.Post(ctx, "/rooms", data)
}

// UpdateRoom replaces a room.
func (c *RoomsClient) UpdateRoom(ctx context.Context, id string, data any) Result {
	return c.Put(ctx, "/rooms/"+url.PathEscape(id), data)
}

// PaymentsClient calls the payments service.
type PaymentsClient struct{ *Client }

// CreatePayment posts a new payment.
func (c *PaymentsClient) CreatePayment(ctx context.Context, data any) Result {
	return c.Post(ctx, "/payments", data)
}

// GetPayment fetches a payment by id.
func (c *PaymentsClient) GetPayment(ctx context.Context, id string) Result {
	return c.Get(ctx, "/payments/"+url.PathEscape(id))
}

// ProcessPayment triggers processing of a pending payment.
func (c *PaymentsClient) ProcessPayment(ctx context.Context, id string) Result {
	return c.Post(ctx, "/payments/"+url.PathEscape(id)+"/process", nil)
}

// NotificationsClient calls the notifications service.
type NotificationsClient struct{ *Client }

// SendEmail asks the notifications service to deliver an email.
func (c *NotificationsClient) SendEmail(ctx context.Context, data any) Result {
	return c.Post(ctx, "/notifications/email", data)
}

// SendSMS asks the notifications service to deliver an SMS.
func (c *NotificationsClient) SendSMS(ctx context.Context, data any) Result {
	return c.Post(ctx, "/notifications/sms", data)
}

// SendPush asks the notifications service to deliver a push notification.
func (c *NotificationsClient) SendPush(ctx context.Context, data any) Result {
	return c.Post(ctx, "/notifications/push", data)
}

// Endpoint locates one peer.
type Endpoint struct {
	BaseURL string
	APIKey  string
}

// PeersConfig carries the settings shared by every peer plus each endpoint.
type PeersConfig struct {
	Timeout       time.Duration
	MaxRetries    int
	Backoff       Backoff
	HTTPClient    HTTPDoer
	Logger        *slog.Logger
	Recorder      Recorder
	Reservations  Endpoint
	Rooms         Endpoint
	Payments      Endpoint
	Notifications Endpoint
}

// Peers groups the typed clients of every standing service.
type Peers struct {
	Reservations  *ReservationsClient
	Rooms         *RoomsClient
	Payments      *PaymentsClient
	Notifications *NotificationsClient
}

// NewPeers builds a client per peer.
func NewPeers(cfg PeersConfig) (*Peers, error) {
	build := func(name string, ep Endpoint) (*Client, error) {
		c, err := New(Config{
			Name:       name,
			BaseURL:    ep.BaseURL,
			APIKey:     ep.APIKey,
			Timeout:    cfg.Timeout,
			MaxRetries: cfg.MaxRetries,
			Backoff:    cfg.Backoff,
			HTTPClient: cfg.HTTPClient,
			Logger:     cfg.Logger,
			Recorder:   cfg.Recorder,
		})
		if err != nil {
			return nil, fmt.Errorf("peer %s: %w", name, err)
		}
		return c, nil
	}

	reservations, err := build(PeerReservations, cfg.Reservations)
	if err != nil {
		return nil, err
	}
	rooms, err := build(PeerRooms, cfg.Rooms)
	if err != nil {
		return nil, err
	}
	payments, err := build(PeerPayments, cfg.Payments)
	if err != nil {
		return nil, err
	}
	notifications, err := build(PeerNotifications, cfg.Notifications)
	if err != nil {
		return nil, err
	}
	return &Peers{
		Reservations:  &ReservationsClient{reservations},
		Rooms:         &RoomsClient{rooms},
		Payments:      &PaymentsClient{payments},
		Notifications: &NotificationsClient{notifications},
	}, nil
}

// Health checks every peer and reports liveness by name.
func (p *Peers) Health(ctx context.Context) map[string]bool {
	return map[string]bool{
		PeerReservations:  p.Reservations.HealthCheck(ctx),
		PeerRooms:         p.Rooms.HealthCheck(ctx),
		PeerPayments:      p.Payments.HealthCheck(ctx),
		PeerNotifications: p.Notifications.HealthCheck(ctx),
	}
}

// ByName returns the generic client of a peer.
func (p *Peers) ByName(name string) (*Client, bool) {
	switch name {
	case PeerReservations:
		return p.Reservations.Client, true
	case PeerRooms:
		return p.Rooms.Client, true
	case PeerPayments:
		return p.Payments.Client, true
	case PeerNotifications:
		return p.Notifications.Client, true
	}
	return nil, false
}
