package realtime

import (
	"log/slog"
	"sync"
)

// Broadcaster is the server-side emit surface of the relay. HTTP handlers
// depend on this package instead of holding a relay reference.
type Broadcaster interface {
	BroadcastToProject(projectID, event string, payload map[string]any)
	EmitToUser(userID, event string, payload map[string]any)
}

var (
	mu  sync.RWMutex
	def Broadcaster
)

// SetDefault installs the process-wide broadcaster. Called once at server
// start; tests may swap it. Passing nil uninstalls it.
func SetDefault(b Broadcaster) {
	mu.Lock()
	defer mu.Unlock()
	def = b
}

// BroadcastToProject pushes an event to every member of a project room.
// A warning-level no-op before the relay is initialized: callers must never
// fail a request because the realtime layer is down.
func BroadcastToProject(projectID, event string, payload map[string]any) {
	b := current()
	if b == nil {
		slog.Warn("Realtime relay not initialized, dropping broadcast",
			slog.String("projectID", projectID),
			slog.String("event", event),
		)
		return
	}
	b.BroadcastToProject(projectID, event, payload)
}

// EmitToUser pushes an event to one user's live connections, if any.
func EmitToUser(userID, event string, payload map[string]any) {
	b := current()
	if b == nil {
		slog.Warn("Realtime relay not initialized, dropping emit",
			slog.String("userID", userID),
			slog.String("event", event),
		)
		return
	}
	b.EmitToUser(userID, event, payload)
}

func current() Broadcaster {
	mu.RLock()
	defer mu.RUnlock()
	return def
}
