package webhook

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/socialpulse/internal/config"
	"github.com/socialpulse/internal/ingest"
	"github.com/socialpulse/pkg/logger"
)

// EventRunSucceeded is the only provider event that triggers ingestion
const EventRunSucceeded = "run.succeeded"

// secretHeader carries the shared secret configured at the provider
const secretHeader = "X-Webhook-Secret"

// Ingestor runs the ingestion pipeline for one completed dataset
type Ingestor interface {
	Run(ctx context.Context, platform, datasetID string) (*ingest.Result, error)
}

// event is the provider's callback payload
type event struct {
	EventType string `json:"eventType"`
	Platform  string `json:"platform"`
	JobID     string `json:"jobId"`
	DatasetID string `json:"datasetId"`
}

// Handler receives provider "job succeeded" callbacks and hands the dataset
// id to the ingestion pipeline. Correlation between the job started earlier
// and the callback is by dataset id only; the handler keeps no state.
//
// A pipeline failure answers non-2xx so the provider redelivers the event
// on its own schedule. Validation failures that redelivery can never fix
// (bad secret, test payloads) answer 2xx/4xx without invoking the pipeline.
type Handler struct {
	secret          string
	minDatasetIDLen int
	pipeline        Ingestor
	log             *logger.Logger
}

// NewHandler creates a new webhook handler
func NewHandler(cfg config.WebhookConfig, pipeline Ingestor, log *logger.Logger) *Handler {
	return &Handler{
		secret:          cfg.Secret,
		minDatasetIDLen: cfg.MinDatasetIDLen,
		pipeline:        pipeline,
		log:             log.WithComponent("webhook"),
	}
}

// Register mounts the handler on a mux
func (h *Handler) Register(mux *http.ServeMux) {
	mux.Handle("/webhooks/provider", h)
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()
	log := logger.Logger{Logger: h.log.With().Str("request_id", requestID).Logger()}

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if subtle.ConstantTimeCompare([]byte(r.Header.Get(secretHeader)), []byte(h.secret)) != 1 {
		log.Warn().Str("remote", r.RemoteAddr).Msg("Webhook secret mismatch")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var ev event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		log.Warn().Err(err).Msg("Malformed webhook payload")
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	if ev.EventType != EventRunSucceeded {
		// Other run lifecycle events are acknowledged and dropped so the
		// provider doesn't keep redelivering them
		log.Debug().Str("event", ev.EventType).Msg("Ignoring event")
		w.WriteHeader(http.StatusOK)
		return
	}

	if len(ev.DatasetID) < h.minDatasetIDLen {
		log.Warn().Str("dataset_id", ev.DatasetID).Msg("Rejecting short dataset id (test payload?)")
		http.Error(w, "dataset id too short", http.StatusBadRequest)
		return
	}

	log.Info().
		Str("platform", ev.Platform).
		Str("job_id", ev.JobID).
		Str("dataset_id", ev.DatasetID).
		Msg("Dataset ready, starting ingestion")

	result, err := h.pipeline.Run(r.Context(), ev.Platform, ev.DatasetID)
	if err != nil {
		log.Error().Err(err).Str("dataset_id", ev.DatasetID).Msg("Ingestion failed")
		http.Error(w, "ingestion failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    "ok",
		"persisted": result.PostsPersisted,
	})
}
