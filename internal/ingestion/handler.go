package ingestion

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/internal/indexer/document"
	"github.com/Adithya-Monish-Kumar-K/Dataset-Search-Platform/pkg/logger"
)

const maxBodyBytes = 64 << 20

// Handler exposes the publisher over HTTP.
type Handler struct {
	publisher *Publisher
	logger    *slog.Logger
}

func NewHandler(pub *Publisher) *Handler {
	return &Handler{
		publisher: pub,
		logger:    slog.Default().With("component", "ingestion-handler"),
	}
}

// Register mounts the ingestion routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/datasets", h.Ingest)
}

// Ingest accepts a single dataset record or a JSON array of records.
func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var raw json.RawMessage
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&raw); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	var records []document.Record
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(raw, &records); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid dataset record array")
			return
		}
	} else {
		var rec document.Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid dataset record")
			return
		}
		records = []document.Record{rec}
	}

	report, err := h.publisher.Publish(ctx, records)
	if err != nil {
		log.Error("publishing datasets failed", "error", err, "published", report.Published)
		h.writeError(w, http.StatusBadGateway, "publishing to the ingest topic failed")
		return
	}
	status := http.StatusAccepted
	if report.Published == 0 && len(report.Rejected) > 0 {
		status = http.StatusBadRequest
	}
	log.Info("datasets ingested",
		"published", report.Published,
		"duplicates", report.Duplicates,
		"rejected", len(report.Rejected),
	)
	h.writeJSON(w, status, report)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
