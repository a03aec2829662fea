package core

import (
	"context"
	"encoding/json"
	"expvar"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// splitOperation breaks "insert_time_attendance" into ("insert", "time_attendance").
func splitOperation(op string) (action, table string) {
	action, table, _ = strings.Cut(op, "_")
	return action, table
}

// ActionStats aggregates the outcomes of one action on one table.
type ActionStats struct {
	Success int64   `json:"success"`
	Error   int64   `json:"error"`
	TotalMS float64 `json:"total_ms"`
}

// TableStatsSnapshot is a point-in-time copy of a TableStatsRecorder.
type TableStatsSnapshot struct {
	Tables     map[string]map[string]ActionStats `json:"tables"`
	RecordedAt time.Time                         `json:"recorded_at"`
}

// TableStatsRecorder keeps per-table operation counters and publishes them
// as an expvar variable, served from /debug/vars.
type TableStatsRecorder struct {
	name   string
	mu     sync.Mutex
	tables map[string]map[string]ActionStats
}

// NewTableStatsRecorder publishes a recorder under name. expvar names are
// process-global, so a name that is already taken is an error.
func NewTableStatsRecorder(name string) (*TableStatsRecorder, error) {
	if name == "" {
		return nil, fmt.Errorf("expvar name required")
	}
	if expvar.Get(name) != nil {
		return nil, fmt.Errorf("expvar %q already published", name)
	}
	rec := &TableStatsRecorder{name: name, tables: make(map[string]map[string]ActionStats)}
	expvar.Publish(name, expvar.Func(func() any { return rec.Snapshot() }))
	return rec, nil
}

// Name returns the expvar variable name.
func (r *TableStatsRecorder) Name() string { return r.name }

// Snapshot copies the current counters.
func (r *TableStatsRecorder) Snapshot() TableStatsSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	tables := make(map[string]map[string]ActionStats, len(r.tables))
	for table, actions := range r.tables {
		cpy := make(map[string]ActionStats, len(actions))
		for action, stats := range actions {
			cpy[action] = stats
		}
		tables[table] = cpy
	}
	return TableStatsSnapshot{Tables: tables, RecordedAt: time.Now().UTC()}
}

// Observe implements MetricsRecorder.
func (r *TableStatsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	action, table := splitOperation(operation)
	if action == "" || table == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	actions, ok := r.tables[table]
	if !ok {
		actions = make(map[string]ActionStats)
		r.tables[table] = actions
	}
	stats := actions[action]
	if success {
		stats.Success++
	} else {
		stats.Error++
	}
	stats.TotalMS += float64(duration) / float64(time.Millisecond)
	actions[action] = stats
}

// PrometheusMetricsRecorder counts table operations by outcome and records
// their latency in a histogram.
type PrometheusMetricsRecorder struct {
	results   *prometheus.CounterVec
	durations *prometheus.HistogramVec
}

// NewPrometheusMetricsRecorder registers the operation collectors with reg.
// A nil registerer uses prometheus.DefaultRegisterer.
func NewPrometheusMetricsRecorder(reg prometheus.Registerer) (*PrometheusMetricsRecorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	rec := &PrometheusMetricsRecorder{
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mobiletables",
			Name:      "table_operations_total",
			Help:      "Table operations by operation and result.",
		}, []string{"operation", "status"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mobiletables",
			Name:      "table_operation_duration_seconds",
			Help:      "Latency of table operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
	for _, c := range []prometheus.Collector{rec.results, rec.durations} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	return rec, nil
}

// Observe implements MetricsRecorder.
func (r *PrometheusMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	status := "error"
	if success {
		status = "success"
	}
	r.results.WithLabelValues(operation, status).Inc()
	r.durations.WithLabelValues(operation).Observe(duration.Seconds())
}

// DefaultTraceRetention bounds how many spans a JSONTracer keeps in memory.
const DefaultTraceRetention = 256

// TraceRecord is one finished span as written by JSONTracer.
type TraceRecord struct {
	Table      string    `json:"table"`
	Action     string    `json:"action"`
	OK         bool      `json:"ok"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	DurationMS float64   `json:"duration_ms"`
}

// JSONTracer writes each finished span as a JSON line and keeps the most
// recent ones for the debug endpoints and tests.
type JSONTracer struct {
	mu      sync.Mutex
	enc     *json.Encoder
	retain  int
	records []TraceRecord
}

// NewJSONTracer writes spans to w, which may be nil to only retain them.
func NewJSONTracer(w io.Writer) *JSONTracer {
	t := &JSONTracer{retain: DefaultTraceRetention}
	if w != nil {
		t.enc = json.NewEncoder(w)
	}
	return t
}

// Recent returns the retained spans, oldest first.
func (t *JSONTracer) Recent() []TraceRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]TraceRecord(nil), t.records...)
}

// Start implements Tracer.
func (t *JSONTracer) Start(ctx context.Context, operation string) (context.Context, TraceSpan) {
	action, table := splitOperation(operation)
	return ctx, &jsonSpan{tracer: t, rec: TraceRecord{Table: table, Action: action, StartedAt: time.Now().UTC()}}
}

func (t *JSONTracer) finish(rec TraceRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.records) == t.retain {
		copy(t.records, t.records[1:])
		t.records = t.records[:len(t.records)-1]
	}
	t.records = append(t.records, rec)
	if t.enc != nil {
		_ = t.enc.Encode(rec)
	}
}

type jsonSpan struct {
	tracer *JSONTracer
	rec    TraceRecord
}

func (s *jsonSpan) End(err error) {
	s.rec.DurationMS = float64(time.Since(s.rec.StartedAt)) / float64(time.Millisecond)
	s.rec.OK = err == nil
	if err != nil {
		s.rec.Error = err.Error()
	}
	s.tracer.finish(s.rec)
}
