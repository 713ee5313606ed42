package relay

import "encoding/json"

// Envelope is the wire format in both directions: a named event plus a
// JSON payload.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Inbound events (client -> server).
const (
	EventJoinProject     = "join-project"
	EventLeaveProject    = "leave-project"
	EventTrackLocked     = "track-locked"
	EventTrackUnlocked   = "track-unlocked"
	EventCursorMove      = "cursor-move"
	EventPresenceUpdate  = "presence-update"
	EventTimelineUpdated = "timeline-updated"
	EventBulkStart       = "bulk-start"
	EventBulkComplete    = "bulk-complete"
	EventNotification    = "notification"
	EventConflict        = "conflict"
	EventClipAdded       = "clip-added"
	EventGetActiveUsers  = "get-active-users"
)

// Outbound events (server -> client).
const (
	EventUserJoined      = "user-joined"
	EventUserLeft        = "user-left"
	EventActiveUsers     = "active-users"
	EventExportProgress  = "export-progress"
	EventExportComplete  = "export-complete"
	EventExportFailed    = "export-failed"
	EventExportCancelled = "export-cancelled"
)

// relayPolicy describes how a plain relayed event is handled: which payload
// fields must be present, and whether the event mutates the timeline (and is
// therefore subject to the optional write-permission gate).
type relayPolicy struct {
	required []string
	mutating bool
}

// Events the relay forwards verbatim (plus identity/timestamp stamping) to
// the other members of the project room. join/leave/get-active-users have
// dedicated flows and are not listed here.
var relayedEvents = map[string]relayPolicy{
	EventTrackLocked:     {required: []string{"trackId"}},
	EventTrackUnlocked:   {required: []string{"trackId"}},
	EventCursorMove:      {required: []string{"position"}},
	EventPresenceUpdate:  {},
	EventTimelineUpdated: {required: []string{"version", "changes"}, mutating: true},
	EventBulkStart:       {required: []string{"operation"}, mutating: true},
	EventBulkComplete:    {required: []string{"operation"}, mutating: true},
	EventNotification:    {},
	EventConflict:        {},
	EventClipAdded:       {required: []string{"clipId", "trackId"}, mutating: true},
}
