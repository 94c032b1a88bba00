package gameplay

import (
	"context"

	"bizarre-tabletop/server/logging"
)

const (
	// EventCommandApplied is emitted for every command the mutator accepts.
	EventCommandApplied logging.EventType = "gameplay.command_applied"
	// EventCommandDropped is emitted when a malformed or out-of-range
	// command is logged and skipped without closing the connection.
	EventCommandDropped logging.EventType = "gameplay.command_dropped"
	// EventSheetSaved is emitted when a character sheet write reaches the store.
	EventSheetSaved logging.EventType = "gameplay.sheet_saved"
)

// CommandPayload carries the wire tag and the rejection reason, if any.
type CommandPayload struct {
	Tag    string `json:"tag"`
	Reason string `json:"reason,omitempty"`
}

// CommandApplied publishes a debug event for a mutated-and-relayed command.
func CommandApplied(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload CommandPayload) {
	publish(ctx, pub, EventCommandApplied, logging.SeverityDebug, actor, payload)
}

// CommandDropped publishes a warn event for a command that failed validation.
func CommandDropped(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload CommandPayload) {
	publish(ctx, pub, EventCommandDropped, logging.SeverityWarn, actor, payload)
}

// SheetPayload names the account whose sheets were persisted.
type SheetPayload struct {
	Account string `json:"account"`
}

// SheetSaved publishes an info event after a successful sheet persist.
func SheetSaved(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload SheetPayload) {
	publish(ctx, pub, EventSheetSaved, logging.SeverityInfo, actor, payload)
}

func publish(ctx context.Context, pub logging.Publisher, typ logging.EventType, sev logging.Severity, actor logging.EntityRef, payload any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     typ,
		Actor:    actor,
		Severity: sev,
		Category: logging.CategoryGameplay,
		Payload:  payload,
	})
}
