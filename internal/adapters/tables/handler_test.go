package tables

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mobiletables/internal/core"
	"mobiletables/internal/infra/persistence/memory"
	"mobiletables/pkg/domain"

	"github.com/prometheus/client_golang/prometheus"
)

func newService(t *testing.T, opts ...core.ServiceOption) *core.Service {
	t.Helper()
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	var ticks int
	clock := core.ClockFunc(func() time.Time {
		ticks++
		return base.Add(time.Duration(ticks) * time.Second)
	})
	svc := core.NewService(memory.NewTableStore(), append([]core.ServiceOption{core.WithClock(clock)}, opts...)...)
	if _, err := core.RegisterTable[domain.Note](svc, string(domain.EntityNote)); err != nil {
		t.Fatalf("register: %v", err)
	}
	return svc
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, reader))
	return rec
}

func decodeNote(t *testing.T, rec *httptest.ResponseRecorder) domain.Note {
	t.Helper()
	var note domain.Note
	if err := json.Unmarshal(rec.Body.Bytes(), &note); err != nil {
		t.Fatalf("decode note: %v (%s)", err, rec.Body.String())
	}
	return note
}

func TestTableRoutesCRUD(t *testing.T) {
	router := NewRouter(newService(t), RouterOptions{})

	rec := do(t, router, http.MethodPost, "/tables/Note", `{"text":"first","date":"2024-05-01T00:00:00Z"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	created := decodeNote(t, rec)
	if created.ID == "" || created.Version != "1" || created.CreatedAt.IsZero() || created.Text != "first" {
		t.Fatalf("unexpected created note %+v", created)
	}
	if loc := rec.Header().Get("Location"); loc != "/tables/Note/"+created.ID {
		t.Fatalf("unexpected location %q", loc)
	}

	rec = do(t, router, http.MethodGet, "/tables/Note/"+created.ID, "")
	if rec.Code != http.StatusOK || decodeNote(t, rec).Text != "first" {
		t.Fatalf("lookup failed: %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, router, http.MethodPatch, "/tables/Note/"+created.ID, `{"text":"edited","version":"99","id":"hijack"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	updated := decodeNote(t, rec)
	if updated.Text != "edited" || updated.Version != "2" || updated.ID != created.ID || !updated.UpdatedAt.After(created.UpdatedAt) {
		t.Fatalf("unexpected updated note %+v", updated)
	}
	if !updated.Date.Equal(created.Date) {
		t.Fatalf("patch dropped unspecified field: %v", updated.Date)
	}

	rec = do(t, router, http.MethodGet, "/tables/Note", "")
	var listed []domain.Note
	if err := json.Unmarshal(rec.Body.Bytes(), &listed); err != nil || len(listed) != 1 || listed[0].Text != "edited" {
		t.Fatalf("unexpected list %d %s", rec.Code, rec.Body.String())
	}

	if rec = do(t, router, http.MethodDelete, "/tables/Note/"+created.ID, ""); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if rec = do(t, router, http.MethodGet, "/tables/Note/"+created.ID, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rec.Code)
	}
	if rec = do(t, router, http.MethodDelete, "/tables/Note/"+created.ID, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on second delete, got %d", rec.Code)
	}
}

func TestTableRoutesErrors(t *testing.T) {
	router := NewRouter(newService(t), RouterOptions{})
	if rec := do(t, router, http.MethodPost, "/tables/Note", `{"id":"fixed","text":"a"}`); rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	cases := []struct {
		name, method, target, body string
		status                     int
	}{
		{"unknown table list", http.MethodGet, "/tables/Ghost", "", http.StatusNotFound},
		{"unknown table insert", http.MethodPost, "/tables/Ghost", `{}`, http.StatusNotFound},
		{"unknown id", http.MethodGet, "/tables/Note/nope", "", http.StatusNotFound},
		{"duplicate id", http.MethodPost, "/tables/Note", `{"id":"fixed"}`, http.StatusConflict},
		{"insert not json", http.MethodPost, "/tables/Note", `{`, http.StatusBadRequest},
		{"insert wrong type", http.MethodPost, "/tables/Note", `{"text":5}`, http.StatusBadRequest},
		{"patch not object", http.MethodPatch, "/tables/Note/fixed", `[1]`, http.StatusBadRequest},
		{"patch wrong type", http.MethodPatch, "/tables/Note/fixed", `{"date":"soon"}`, http.StatusBadRequest},
		{"patch unknown id", http.MethodPatch, "/tables/Note/nope", `{"text":"x"}`, http.StatusNotFound},
		{"negative top", http.MethodGet, "/tables/Note?$top=-1", "", http.StatusBadRequest},
		{"bad skip", http.MethodGet, "/tables/Note?$skip=abc", "", http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, router, tc.method, tc.target, tc.body)
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestTableRoutesPaging(t *testing.T) {
	router := NewRouter(newService(t), RouterOptions{})
	for _, text := range []string{"a", "b", "c", "d"} {
		if rec := do(t, router, http.MethodPost, "/tables/Note", `{"text":"`+text+`"}`); rec.Code != http.StatusCreated {
			t.Fatalf("insert %s: %d", text, rec.Code)
		}
	}
	rec := do(t, router, http.MethodGet, "/tables/Note?$top=2&$skip=1", "")
	var page []domain.Note
	if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(page) != 2 || page[0].Text != "b" || page[1].Text != "c" {
		t.Fatalf("unexpected page %+v", page)
	}
	rec = do(t, router, http.MethodGet, "/tables/Note?$skip=10", "")
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("expected empty array, got %s", rec.Body.String())
	}
}

func TestParseQueryOptions(t *testing.T) {
	opts, err := parseQueryOptions(map[string][]string{"$top": {"5"}, "$skip": {"0"}})
	if err != nil || opts.Top != 5 || opts.Skip != 0 {
		t.Fatalf("unexpected options %+v err %v", opts, err)
	}
	if _, err := parseQueryOptions(map[string][]string{"$top": {"1.5"}}); err == nil {
		t.Fatalf("expected error for fractional top")
	}
}

func TestHealthAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	recorder, err := core.NewPrometheusMetricsRecorder(reg)
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	router := NewRouter(newService(t, core.WithMetricsRecorder(recorder)), RouterOptions{Gatherer: reg})

	rec := do(t, router, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"Note"`) {
		t.Fatalf("unexpected health %d %s", rec.Code, rec.Body.String())
	}
	do(t, router, http.MethodGet, "/tables/Note", "")
	rec = do(t, router, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `mobiletables_table_operations_total{operation="query_note",status="success"} 1`) {
		t.Fatalf("unexpected metrics %d %s", rec.Code, rec.Body.String())
	}
}

func TestMetricsRouteOptional(t *testing.T) {
	router := NewRouter(newService(t), RouterOptions{})
	if rec := do(t, router, http.MethodGet, "/metrics", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without gatherer, got %d", rec.Code)
	}
}
