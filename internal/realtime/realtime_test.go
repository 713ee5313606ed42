package realtime_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/estudio-ia-videos/timeline-relay/internal/realtime"
)

type recordedCall struct {
	target  string
	event   string
	payload map[string]any
}

type fakeBroadcaster struct {
	broadcasts []recordedCall
	emits      []recordedCall
}

func (f *fakeBroadcaster) BroadcastToProject(projectID, event string, payload map[string]any) {
	f.broadcasts = append(f.broadcasts, recordedCall{projectID, event, payload})
}

func (f *fakeBroadcaster) EmitToUser(userID, event string, payload map[string]any) {
	f.emits = append(f.emits, recordedCall{userID, event, payload})
}

func TestHelpersAreNoopsBeforeInit(t *testing.T) {
	realtime.SetDefault(nil)
	t.Cleanup(func() { realtime.SetDefault(nil) })

	// Must log-and-drop, never panic.
	realtime.BroadcastToProject("proj-1", "notification", map[string]any{"title": "hi"})
	realtime.EmitToUser("user-1", "export-progress", map[string]any{"progress": 10})
}

func TestHelpersForwardToInstalledBroadcaster(t *testing.T) {
	fake := &fakeBroadcaster{}
	realtime.SetDefault(fake)
	t.Cleanup(func() { realtime.SetDefault(nil) })

	realtime.BroadcastToProject("proj-1", "notification", map[string]any{"title": "hi"})
	realtime.EmitToUser("user-1", "export-progress", map[string]any{"progress": 10})

	assert.Len(t, fake.broadcasts, 1)
	assert.Equal(t, "proj-1", fake.broadcasts[0].target)
	assert.Equal(t, "notification", fake.broadcasts[0].event)

	assert.Len(t, fake.emits, 1)
	assert.Equal(t, "user-1", fake.emits[0].target)
	assert.Equal(t, "export-progress", fake.emits[0].event)
}
