// Package export pushes render-job lifecycle updates to the job owner's
// editor session. Delivery is at-most-once; the job table in the main
// application database stays the source of truth.
package export

import (
	"github.com/estudio-ia-videos/timeline-relay/internal/realtime"
	"github.com/estudio-ia-videos/timeline-relay/internal/relay"
)

func Progress(userID, jobID string, progress int) {
	realtime.EmitToUser(userID, relay.EventExportProgress, map[string]any{
		"jobId":    jobID,
		"progress": progress,
	})
}

func Complete(userID, jobID, outputURL string) {
	realtime.EmitToUser(userID, relay.EventExportComplete, map[string]any{
		"jobId":     jobID,
		"outputUrl": outputURL,
	})
}

func Failed(userID, jobID, errMsg string) {
	realtime.EmitToUser(userID, relay.EventExportFailed, map[string]any{
		"jobId": jobID,
		"error": errMsg,
	})
}

func Cancelled(userID, jobID string) {
	realtime.EmitToUser(userID, relay.EventExportCancelled, map[string]any{
		"jobId": jobID,
	})
}
