package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/resaleops/flipscan/internal/database"
	"github.com/resaleops/flipscan/internal/dedup"
	"github.com/resaleops/flipscan/internal/queue"
)

var urlPattern = regexp.MustCompile(`https?://\S+`)

// CheckRequest is what the inbound transport posts for each URL mention.
type CheckRequest struct {
	URL       string `json:"url"`
	ChannelID string `json:"channelId"`
	MessageID string `json:"messageId"`
	GuildID   string `json:"guildId,omitempty"`
}

type Handlers struct {
	gate    *dedup.Gate
	queue   queue.Queue
	results *database.ResultRepository
	logger  *slog.Logger
}

func NewHandlers(gate *dedup.Gate, q queue.Queue, results *database.ResultRepository, logger *slog.Logger) *Handlers {
	return &Handlers{
		gate:    gate,
		queue:   q,
		results: results,
		logger:  logger.With("component", "api"),
	}
}

// Check runs the dedup gate and enqueues a pipeline job. Duplicate URLs within
// the dedup window get 200 with queued=false.
func (h *Handlers) Check(w http.ResponseWriter, r *http.Request) {
	var req CheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	// Tolerate surrounding message text: take the first URL in the field.
	url := urlPattern.FindString(req.URL)
	if url == "" {
		http.Error(w, "url is required", http.StatusBadRequest)
		return
	}

	ok, err := h.gate.ShouldProcess(r.Context(), url)
	if err != nil {
		h.logger.Error("dedup check failed", "url", url, "error", err)
		http.Error(w, "dedup store unavailable", http.StatusServiceUnavailable)
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"queued": false, "reason": "recently seen"})
		return
	}

	job := &queue.Job{
		ID:         uuid.New().String(),
		URL:        url,
		ChannelID:  req.ChannelID,
		MessageID:  req.MessageID,
		GuildID:    req.GuildID,
		EnqueuedAt: time.Now(),
	}

	if err := h.queue.Enqueue(r.Context(), job); err != nil {
		h.logger.Error("failed to enqueue job", "url", url, "error", err)
		http.Error(w, "queue unavailable", http.StatusServiceUnavailable)
		return
	}

	h.logger.Info("job queued", "job_id", job.ID, "url", url)
	writeJSON(w, http.StatusAccepted, map[string]any{"queued": true, "job_id": job.ID})
}

// RecentResults lists the latest recorded results. 404s when history is
// disabled.
func (h *Handlers) RecentResults(w http.ResponseWriter, r *http.Request) {
	if h.results == nil {
		http.Error(w, "result history disabled", http.StatusNotFound)
		return
	}

	results, err := h.results.ListRecent(r.Context(), 50)
	if err != nil {
		h.logger.Error("failed to list results", "error", err)
		http.Error(w, "failed to list results", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// Health reports queue depth alongside liveness.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	depth, err := h.queue.Size(r.Context())
	status := map[string]any{"status": "ok", "queue_depth": depth}
	if err != nil {
		status["status"] = "degraded"
		status["error"] = err.Error()
	}
	writeJSON(w, http.StatusOK, status)
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}
