package session

import (
	"context"

	"bizarre-tabletop/server/logging"
)

const (
	// EventConnectionAccepted is emitted when a socket finishes the accept path.
	EventConnectionAccepted logging.EventType = "session.connection_accepted"
	// EventConnectionClosed is emitted when a connection leaves the registry.
	EventConnectionClosed logging.EventType = "session.connection_closed"
	// EventLoginSuccess is emitted when a known account authenticates.
	EventLoginSuccess logging.EventType = "session.login_success"
	// EventLoginCreated is emitted when an unseen name is auto-provisioned.
	EventLoginCreated logging.EventType = "session.login_created"
	// EventLoginFailure is emitted on a digest mismatch.
	EventLoginFailure logging.EventType = "session.login_failure"
	// EventSubscriberDropped is emitted when a slow client overflows its
	// outbound buffer and is disconnected to protect the fan-out.
	EventSubscriberDropped logging.EventType = "session.subscriber_dropped"
)

// ConnectionPayload carries transport details for connection events.
type ConnectionPayload struct {
	RemoteAddr string `json:"remoteAddr,omitempty"`
	Transport  string `json:"transport,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// ConnectionAccepted publishes an info event for a freshly accepted socket.
func ConnectionAccepted(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload ConnectionPayload) {
	publish(ctx, pub, EventConnectionAccepted, logging.SeverityInfo, actor, payload)
}

// ConnectionClosed publishes an info event when a connection is torn down.
func ConnectionClosed(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload ConnectionPayload) {
	publish(ctx, pub, EventConnectionClosed, logging.SeverityInfo, actor, payload)
}

// LoginPayload names the account behind a login outcome.
type LoginPayload struct {
	Account string `json:"account"`
}

// LoginSuccess publishes an info event for an authenticated account.
func LoginSuccess(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload LoginPayload) {
	publish(ctx, pub, EventLoginSuccess, logging.SeverityInfo, actor, payload)
}

// LoginCreated publishes an info event for a first-time account.
func LoginCreated(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload LoginPayload) {
	publish(ctx, pub, EventLoginCreated, logging.SeverityInfo, actor, payload)
}

// LoginFailure publishes a warn event for a rejected credential.
func LoginFailure(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload LoginPayload) {
	publish(ctx, pub, EventLoginFailure, logging.SeverityWarn, actor, payload)
}

// SubscriberDropped publishes a warn event when fan-out sheds a slow client.
func SubscriberDropped(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload ConnectionPayload) {
	publish(ctx, pub, EventSubscriberDropped, logging.SeverityWarn, actor, payload)
}

func publish(ctx context.Context, pub logging.Publisher, typ logging.EventType, sev logging.Severity, actor logging.EntityRef, payload any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     typ,
		Actor:    actor,
		Severity: sev,
		Category: logging.CategorySession,
		Payload:  payload,
	})
}
