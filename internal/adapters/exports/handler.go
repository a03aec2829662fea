package exports

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"mobiletables/internal/core"

	"github.com/gorilla/mux"
)

// Handler exposes export scheduling over HTTP.
type Handler struct {
	Exports Scheduler
}

// NewHandler constructs an export HTTP handler.
func NewHandler(s Scheduler) *Handler {
	return &Handler{Exports: s}
}

// Register mounts the export routes on r.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/api/exports", h.handleCreate).Methods(http.MethodPost)
	r.HandleFunc("/api/exports/{id}", h.handleGet).Methods(http.MethodGet)
}

type exportRequest struct {
	Table       string   `json:"table"`
	Formats     []string `json:"formats"`
	RequestedBy string   `json:"requested_by"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid export request payload")
		return
	}
	formats := make([]Format, 0, len(req.Formats))
	for _, raw := range req.Formats {
		f, err := ParseFormat(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		formats = append(formats, f)
	}
	record, err := h.Exports.EnqueueExport(r.Context(), Input{
		Table:       req.Table,
		Formats:     formats,
		RequestedBy: req.RequestedBy,
	})
	var unknown core.ErrUnknownTable
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, map[string]any{"export": record})
	case errors.As(err, &unknown):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrQueueFull):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusBadRequest, err.Error())
	}
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	record, ok := h.Exports.GetExport(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, "export not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"export": record})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
