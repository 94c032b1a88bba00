package hub

import (
	"context"

	"bizarre-tabletop/server/internal/accounts"
	"bizarre-tabletop/server/internal/proto"
	"bizarre-tabletop/server/internal/world"
	"bizarre-tabletop/server/logging"
	gameplaylog "bizarre-tabletop/server/logging/gameplay"
	sessionlog "bizarre-tabletop/server/logging/session"
)

// authenticate handles the name|<user>|pass|<digest> handshake that must be
// the first command on every connection.
func (h *Hub) authenticate(sess *session, cmd proto.Command) {
	if cmd.Tag != proto.TagName {
		h.logger.Printf("connection %s sent %q before logging in, dropped", sess.id, cmd.Tag)
		return
	}
	name := cmd.Arg(0)
	digest := cmd.Arg(2)
	if name == "" || len(cmd.Args) < 3 {
		h.logger.Printf("connection %s sent a malformed handshake, dropped", sess.id)
		return
	}

	acc, result := h.store.Login(name, digest)
	actor := logging.EntityRef{ID: name, Kind: logging.EntityKindAccount}

	if result == accounts.LoginFailure {
		// The client is expected to close the socket itself after a
		// failure reply; the session stays in the connecting state and
		// never reaches the roster.
		h.logger.Printf("connection %s failed login as %q", sess.id, name)
		sessionlog.LoginFailure(context.Background(), h.events, actor, sessionlog.LoginPayload{Account: name})
		h.sendTo(sess, proto.Build(proto.TagLoginFailure))
		return
	}

	h.mu.Lock()
	if sess.state == StateClosed {
		h.mu.Unlock()
		return
	}
	sess.account = acc
	sess.state = StateActive
	roster := h.rosterLocked(sess.id)
	snapshot := h.world.SnapshotLines()
	h.mu.Unlock()

	// Tell the newcomer who is already at the table, then hand over the
	// full account payload.
	for _, existing := range roster {
		h.sendTo(sess, proto.Build(proto.TagName, existing))
	}
	replyTag := proto.TagLoginSuccess
	if result == accounts.LoginCreated {
		replyTag = proto.TagLoginCreated
	}
	h.sendTo(sess, proto.Build(replyTag, acc.Fields()...))

	// The handshake itself relays to everyone else so their rosters pick
	// up the new name, and the board snapshot goes to the whole table so
	// every client converges on the server's map and tokens.
	h.Broadcast(sess.id, cmd.Raw)
	for _, line := range snapshot {
		h.Broadcast("", line)
	}

	switch result {
	case accounts.LoginCreated:
		h.logger.Printf("connection %s created account %q", sess.id, name)
		sessionlog.LoginCreated(context.Background(), h.events, actor, sessionlog.LoginPayload{Account: name})
	default:
		h.logger.Printf("connection %s logged in as %q", sess.id, name)
		sessionlog.LoginSuccess(context.Background(), h.events, actor, sessionlog.LoginPayload{Account: name})
	}
}

// dispatch routes one post-handshake command: mutate world state where the
// tag asks for it, then relay the raw line to the rest of the table. The
// account name arrives as a snapshot taken under the hub mutex.
func (h *Hub) dispatch(sess *session, accountName string, cmd proto.Command) {
	actor := logging.EntityRef{ID: accountName, Kind: logging.EntityKindAccount}

	switch cmd.Tag {
	case proto.TagName:
		// The handshake happens once; a repeat would duplicate roster
		// entries on every client.
		h.logger.Printf("connection %s repeated the handshake, dropped", sess.id)
		return
	case proto.TagUpdateAccount:
		h.saveSheets(sess, cmd, actor)
		return
	}

	h.mu.Lock()
	handled, err := world.Apply(h.world, cmd)
	h.mu.Unlock()

	if err != nil {
		// Malformed or out-of-range commands are dropped without being
		// relayed; echoing them would just fail again on every client.
		h.logger.Printf("connection %s: %v", sess.id, err)
		gameplaylog.CommandDropped(context.Background(), h.events, actor,
			gameplaylog.CommandPayload{Tag: cmd.Tag, Reason: err.Error()})
		return
	}
	if !handled {
		// Unknown tags are forward-compatible no-ops server-side but
		// still relay, as do the presentation triggers.
		h.logger.Printf("connection %s relayed %q", sess.id, cmd.Tag)
	}

	h.Broadcast(sess.id, cmd.Raw)
	gameplaylog.CommandApplied(context.Background(), h.events, actor,
		gameplaylog.CommandPayload{Tag: cmd.Tag})
}

// saveSheets persists an update_account command. The write is accepted only
// when a live Active session carries the named account; an update for an
// unregistered name is rejected, not silently stored.
func (h *Hub) saveSheets(sess *session, cmd proto.Command, actor logging.EntityRef) {
	acc, err := accounts.ParseFields(cmd.Args)
	if err != nil {
		h.logger.Printf("connection %s sent a malformed sheet update: %v", sess.id, err)
		gameplaylog.CommandDropped(context.Background(), h.events, actor,
			gameplaylog.CommandPayload{Tag: cmd.Tag, Reason: err.Error()})
		return
	}

	h.mu.Lock()
	registered := false
	for _, other := range h.sessions {
		if other.state == StateActive && other.account.Name == acc.Name {
			other.account = acc
			registered = true
		}
	}
	h.mu.Unlock()

	if !registered {
		h.logger.Printf("connection %s sent sheets for unregistered account %q, dropped", sess.id, acc.Name)
		gameplaylog.CommandDropped(context.Background(), h.events, actor,
			gameplaylog.CommandPayload{Tag: cmd.Tag, Reason: "account not connected"})
		return
	}

	if err := h.store.Save(acc); err != nil {
		// Operator-visible only; the protocol has no error reply for
		// store failures.
		h.logger.Printf("connection %s: saving sheets for %q: %v", sess.id, acc.Name, err)
	}

	h.Broadcast(sess.id, cmd.Raw)
	gameplaylog.SheetSaved(context.Background(), h.events,
		logging.EntityRef{ID: acc.Name, Kind: logging.EntityKindAccount},
		gameplaylog.SheetPayload{Account: acc.Name})
}
