package exports

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"mobiletables/internal/blob"
	"mobiletables/internal/core"

	"github.com/gorilla/mux"
)

type stubScheduler struct {
	record Record
	err    error
	input  Input
}

func (s *stubScheduler) EnqueueExport(_ context.Context, input Input) (Record, error) {
	s.input = input
	return s.record, s.err
}

func (s *stubScheduler) GetExport(id string) (Record, bool) {
	if id != s.record.ID {
		return Record{}, false
	}
	return s.record, true
}

func newRouter(s Scheduler) *mux.Router {
	r := mux.NewRouter()
	NewHandler(s).Register(r)
	return r
}

func TestHandlerCreateAndGet(t *testing.T) {
	svc := newNoteService(t, "one")
	w := startWorker(t, svc, blob.NewMockS3ForTests())
	router := newRouter(w)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/exports", strings.NewReader(`{"table":"Note","formats":["JSON"],"requested_by":"ops"}`))
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var created struct {
		Export Record `json:"export"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.Export.ID == "" || created.Export.RequestedBy != "ops" || len(created.Export.Formats) != 1 {
		t.Fatalf("unexpected export %+v", created.Export)
	}

	waitForExport(t, w, created.Export.ID)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/exports/"+created.Export.ID, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var fetched struct {
		Export Record `json:"export"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &fetched); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if fetched.Export.Status != StatusSucceeded || fetched.Export.RowCount != 1 {
		t.Fatalf("unexpected fetched export %+v", fetched.Export)
	}
}

func TestHandlerErrors(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		err    error
		status int
	}{
		{"bad json", `{`, nil, http.StatusBadRequest},
		{"bad format", `{"table":"Note","formats":["xml"]}`, nil, http.StatusBadRequest},
		{"unknown table", `{"table":"Ghost"}`, core.ErrUnknownTable{Name: "Ghost"}, http.StatusNotFound},
		{"queue full", `{"table":"Note"}`, ErrQueueFull, http.StatusServiceUnavailable},
		{"other", `{}`, errTableRequired, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := newRouter(&stubScheduler{err: tc.err})
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/exports", strings.NewReader(tc.body)))
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, rec.Code, rec.Body.String())
			}
			var body map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body["error"] == "" {
				t.Fatalf("expected error body, got %s", rec.Body.String())
			}
		})
	}
}

func TestHandlerEmptyBodyUsesDefaults(t *testing.T) {
	stub := &stubScheduler{record: Record{ID: "x"}}
	router := newRouter(stub)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/exports", http.NoBody))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	if stub.input.Table != "" || len(stub.input.Formats) != 0 {
		t.Fatalf("unexpected input %+v", stub.input)
	}
}

func TestHandlerGetMissing(t *testing.T) {
	router := newRouter(&stubScheduler{record: Record{ID: "known"}})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/exports/unknown", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/exports/known", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}
