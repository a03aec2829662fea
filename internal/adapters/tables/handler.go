// Package tables exposes registered table controllers over HTTP with the
// list, lookup, insert, patch and delete routes mobile clients expect.
package tables

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"mobiletables/internal/core"
	"mobiletables/pkg/domain"

	"github.com/gorilla/mux"
)

const maxBodyBytes = 1 << 20

// Handler serves the /tables routes.
type Handler struct {
	Service *core.Service
}

// NewHandler constructs a table HTTP handler.
func NewHandler(svc *core.Service) *Handler {
	return &Handler{Service: svc}
}

// Register mounts the table routes on r.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/tables/{table}", h.handleQuery).Methods(http.MethodGet)
	r.HandleFunc("/tables/{table}", h.handleInsert).Methods(http.MethodPost)
	r.HandleFunc("/tables/{table}/{id}", h.handleLookup).Methods(http.MethodGet)
	r.HandleFunc("/tables/{table}/{id}", h.handleUpdate).Methods(http.MethodPatch)
	r.HandleFunc("/tables/{table}/{id}", h.handleDelete).Methods(http.MethodDelete)
}

func (h *Handler) table(w http.ResponseWriter, r *http.Request) (core.Table, bool) {
	table, err := h.Service.Table(mux.Vars(r)["table"])
	if err != nil {
		writeServiceError(w, err)
		return nil, false
	}
	return table, true
}

func (h *Handler) handleQuery(w http.ResponseWriter, r *http.Request) {
	table, ok := h.table(w, r)
	if !ok {
		return
	}
	opts, err := parseQueryOptions(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	records, err := table.QueryRecords(r.Context(), opts)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *Handler) handleLookup(w http.ResponseWriter, r *http.Request) {
	table, ok := h.table(w, r)
	if !ok {
		return
	}
	record, err := table.LookupRecord(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (h *Handler) handleInsert(w http.ResponseWriter, r *http.Request) {
	table, ok := h.table(w, r)
	if !ok {
		return
	}
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	record, err := table.InsertRecord(r.Context(), body)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/tables/%s/%s", url.PathEscape(table.Name()), url.PathEscape(record.Data().ID)))
	writeJSON(w, http.StatusCreated, record)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	table, ok := h.table(w, r)
	if !ok {
		return
	}
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	record, err := table.UpdateRecord(r.Context(), mux.Vars(r)["id"], body)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	table, ok := h.table(w, r)
	if !ok {
		return
	}
	if err := table.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unable to read request body")
		return nil, false
	}
	if !json.Valid(body) {
		writeError(w, http.StatusBadRequest, "request body must be JSON")
		return nil, false
	}
	return body, true
}

// parseQueryOptions reads $top and $skip. Both must be non-negative integers.
func parseQueryOptions(values url.Values) (core.QueryOptions, error) {
	var opts core.QueryOptions
	for name, target := range map[string]*int{"$top": &opts.Top, "$skip": &opts.Skip} {
		raw := values.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return core.QueryOptions{}, fmt.Errorf("%s must be a non-negative integer", name)
		}
		*target = n
	}
	return opts, nil
}

func writeServiceError(w http.ResponseWriter, err error) {
	var (
		unknown  core.ErrUnknownTable
		notFound domain.ErrNotFound
		conflict domain.ErrConflict
	)
	switch {
	case errors.As(err, &unknown), errors.As(err, &notFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &conflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, core.ErrInvalidPayload):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
