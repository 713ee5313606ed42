package export

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

// JobEvent is the body accepted by the internal export endpoint. The render
// workers post one of these per job state change.
type JobEvent struct {
	UserID    string `json:"userId"`
	JobID     string `json:"jobId"`
	Type      string `json:"type"` // progress | complete | failed | cancelled
	Progress  int    `json:"progress,omitempty"`
	OutputURL string `json:"outputUrl,omitempty"`
	Error     string `json:"error,omitempty"`
}

func (e *JobEvent) validate() error {
	if e.UserID == "" || e.JobID == "" {
		return fmt.Errorf("userId and jobId are required")
	}
	switch e.Type {
	case "progress", "complete", "failed", "cancelled":
		return nil
	default:
		return fmt.Errorf("unknown event type %q", e.Type)
	}
}

// NewHandler returns the POST /internal/export/events handler. It is guarded
// by a shared key; the endpoint is meant for the render workers, not clients.
func NewHandler(logger *slog.Logger, internalKey string) http.Handler {
	log := logger.With(slog.String("component", "export_events"))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}
		if internalKey == "" || r.Header.Get("X-Internal-Key") != internalKey {
			log.Warn("Rejected export event with bad internal key")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		var event JobEvent
		if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
			http.Error(w, "Bad Request", http.StatusBadRequest)
			return
		}
		if err := event.validate(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		switch event.Type {
		case "progress":
			Progress(event.UserID, event.JobID, event.Progress)
		case "complete":
			Complete(event.UserID, event.JobID, event.OutputURL)
		case "failed":
			Failed(event.UserID, event.JobID, event.Error)
		case "cancelled":
			Cancelled(event.UserID, event.JobID)
		}

		log.Debug("Export event relayed",
			slog.String("jobID", event.JobID),
			slog.String("userID", event.UserID),
			slog.String("type", event.Type),
		)
		w.WriteHeader(http.StatusAccepted)
	})
}
