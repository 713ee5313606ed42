package relay

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/estudio-ia-videos/timeline-relay/pkg/state"
)

// Relay forwards collaboration events between the members of a project room.
// It is a notify-others bus: a relayed event never goes back to the user who
// sent it. The relay holds no per-event state; room membership lives in the
// state manager.
type Relay struct {
	logger       *slog.Logger
	state        state.Manager
	enforcePerms bool
}

func New(logger *slog.Logger, stateManager state.Manager, enforcePerms bool) *Relay {
	return &Relay{
		logger:       logger.With(slog.String("component", "relay")),
		state:        stateManager,
		enforcePerms: enforcePerms,
	}
}

// HandleMessage is the transport's message callback: one inbound envelope per
// call. Malformed or unknown events are logged and dropped; they never affect
// other connections.
func (r *Relay) HandleMessage(ctx context.Context, connID uuid.UUID, msg []byte) {
	var env Envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		r.logger.Warn("Failed to unmarshal client message", "connID", connID, "error", err)
		return
	}

	conn, ok := r.state.GetConnection(connID)
	if !ok || conn.UserID == "" {
		r.logger.Warn("Message from unknown or unauthenticated connection",
			slog.String("connID", connID.String()),
			slog.String("event", env.Event),
		)
		return
	}

	switch env.Event {
	case EventJoinProject:
		r.handleJoinProject(conn, env.Payload)
	case EventLeaveProject:
		r.handleLeaveProject(conn, env.Payload)
	case EventGetActiveUsers:
		r.handleGetActiveUsers(conn, env.Payload)
	default:
		policy, known := relayedEvents[env.Event]
		if !known {
			r.logger.Warn("Received unknown event", "event", env.Event, "connID", connID)
			return
		}
		r.relayToOthers(conn, env.Event, env.Payload, policy)
	}
}

// handleJoinProject adds the sender to the project room, replies with the
// full member list, and tells everyone else a user joined. The joiner does
// not get a user-joined for itself; the member list already covers it.
func (r *Relay) handleJoinProject(conn *state.Connection, payload json.RawMessage) {
	projectID := gjson.GetBytes(payload, "projectId").String()
	if projectID == "" {
		r.logger.Warn("join-project missing projectId", slog.String("userID", conn.UserID))
		return
	}
	userImage := gjson.GetBytes(payload, "userImage").String()

	members, err := r.state.Join(projectID, conn.UserID, userImage)
	if err != nil {
		r.logger.Error("Failed to join project room",
			slog.String("userID", conn.UserID),
			slog.String("projectID", projectID),
			slog.Any("error", err),
		)
		return
	}

	conn.Transport.Send(r.encode(EventActiveUsers, map[string]any{
		"projectId": projectID,
		"users":     members,
		"count":     len(members),
	}))

	r.sendToRoom(projectID, conn.UserID, EventUserJoined, map[string]any{
		"projectId": projectID,
		"userId":    conn.UserID,
		"userName":  conn.UserName,
		"userImage": userImage,
	})
	r.logger.Info("User joined project",
		slog.String("userID", conn.UserID),
		slog.String("projectID", projectID),
	)
}

// handleLeaveProject removes the sender from the room. The sender gets the
// user-left back as its ack; the remaining members get their own broadcast.
func (r *Relay) handleLeaveProject(conn *state.Connection, payload json.RawMessage) {
	projectID := gjson.GetBytes(payload, "projectId").String()
	if projectID == "" {
		r.logger.Warn("leave-project missing projectId", slog.String("userID", conn.UserID))
		return
	}

	if err := r.state.Leave(projectID, conn.UserID); err != nil {
		r.logger.Error("Failed to leave project room",
			slog.String("userID", conn.UserID),
			slog.String("projectID", projectID),
			slog.Any("error", err),
		)
		return
	}

	left := map[string]any{
		"projectId": projectID,
		"userId":    conn.UserID,
		"userName":  conn.UserName,
	}
	conn.Transport.Send(r.encode(EventUserLeft, left))
	r.sendToRoom(projectID, conn.UserID, EventUserLeft, left)
	r.logger.Info("User left project",
		slog.String("userID", conn.UserID),
		slog.String("projectID", projectID),
	)
}

func (r *Relay) handleGetActiveUsers(conn *state.Connection, payload json.RawMessage) {
	projectID := gjson.GetBytes(payload, "projectId").String()
	if projectID == "" {
		return
	}
	members := r.state.GetRoomMembers(projectID)
	conn.Transport.Send(r.encode(EventActiveUsers, map[string]any{
		"projectId": projectID,
		"users":     members,
		"count":     len(members),
	}))
}

// relayToOthers validates minimal shape, stamps identity and timestamp, and
// forwards to the rest of the room. A missing room is a silent no-op: join
// and leave race freely with in-flight events.
func (r *Relay) relayToOthers(conn *state.Connection, event string, payload json.RawMessage, policy relayPolicy) {
	projectID := gjson.GetBytes(payload, "projectId").String()
	if projectID == "" {
		r.logger.Warn("Relayed event missing projectId",
			slog.String("event", event),
			slog.String("userID", conn.UserID),
		)
		return
	}
	for _, field := range policy.required {
		if !gjson.GetBytes(payload, field).Exists() {
			r.logger.Warn("Relayed event missing required field",
				slog.String("event", event),
				slog.String("field", field),
				slog.String("userID", conn.UserID),
			)
			return
		}
	}
	if policy.mutating && r.enforcePerms && !conn.Permissions.Has(state.PermCanWrite) {
		r.logger.Warn("Dropping mutating event from user without write permission",
			slog.String("event", event),
			slog.String("userID", conn.UserID),
		)
		return
	}

	out := decodePayload(payload)
	// The authenticated identity always wins over client-supplied fields.
	out["userId"] = conn.UserID
	out["userName"] = conn.UserName
	r.sendToRoom(projectID, conn.UserID, event, out)
}

// HandleDisconnect is the transport's close callback. It tears down all
// registry state for the connection and, when the user went offline, emits
// one user-left per vacated room.
func (r *Relay) HandleDisconnect(connID uuid.UUID) {
	summary, err := r.state.DeregisterConnection(connID)
	if err != nil {
		r.logger.Error("Failed to deregister connection",
			slog.String("connID", connID.String()),
			slog.Any("error", err),
		)
		return
	}
	if !summary.UserOffline {
		return
	}
	for _, projectID := range summary.RoomsLeft {
		r.sendToRoom(projectID, summary.UserID, EventUserLeft, map[string]any{
			"projectId": projectID,
			"userId":    summary.UserID,
			"userName":  summary.UserName,
		})
	}
	r.logger.Info("User disconnected",
		slog.String("userID", summary.UserID),
		slog.Int("roomsLeft", len(summary.RoomsLeft)),
	)
}

// --- Server-side emit surface (see internal/realtime) ---

// BroadcastToProject stamps and delivers an event to every member of a room.
// Zero members is not an error.
func (r *Relay) BroadcastToProject(projectID, event string, payload map[string]any) {
	r.sendToRoom(projectID, "", event, payload)
}

// EmitToUser targets every live connection of one user. Offline users are
// dropped silently: this is a presence notifier, not a durable queue.
func (r *Relay) EmitToUser(userID, event string, payload map[string]any) {
	conns := r.state.GetUserConnections(userID)
	if len(conns) == 0 {
		r.logger.Debug("EmitToUser target offline, dropping event",
			slog.String("userID", userID),
			slog.String("event", event),
		)
		return
	}
	msg := r.encode(event, payload)
	for _, t := range conns {
		t.Send(msg)
	}
}

// --- internals ---

func (r *Relay) sendToRoom(projectID, excludeUserID, event string, payload map[string]any) {
	transports := r.state.RoomTransports(projectID, excludeUserID)
	if len(transports) == 0 {
		return
	}
	msg := r.encode(event, payload)
	for _, t := range transports {
		t.Send(msg)
	}
}

// encode stamps the server timestamp into the payload and marshals the full
// envelope. The timestamp is taken at relay time, never from the client.
func (r *Relay) encode(event string, payload map[string]any) []byte {
	if payload == nil {
		payload = map[string]any{}
	}
	payload["timestamp"] = time.Now().UTC().Format(time.RFC3339)

	raw, err := json.Marshal(payload)
	if err != nil {
		r.logger.Error("Failed to marshal outbound payload",
			slog.String("event", event),
			slog.Any("error", err),
		)
		return nil
	}
	msg, err := json.Marshal(Envelope{Event: event, Payload: raw})
	if err != nil {
		r.logger.Error("Failed to marshal outbound envelope",
			slog.String("event", event),
			slog.Any("error", err),
		)
		return nil
	}
	return msg
}

func decodePayload(raw json.RawMessage) map[string]any {
	out := map[string]any{}
	if len(raw) > 0 {
		// Best effort: a non-object payload relays as an empty object.
		_ = json.Unmarshal(raw, &out)
	}
	return out
}
