package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"expvar"
	"strings"
	"testing"
	"time"

	"mobiletables/internal/infra/persistence/memory"
	"mobiletables/pkg/domain"

	"github.com/prometheus/client_golang/prometheus"
)

func TestTableStatsRecorder(t *testing.T) {
	rec, err := NewTableStatsRecorder("mobiletables_test_table_stats")
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	if expvar.Get(rec.Name()) == nil {
		t.Fatalf("expected recorder to be published")
	}
	if _, err := NewTableStatsRecorder(rec.Name()); err == nil {
		t.Fatalf("expected duplicate name error")
	}
	if _, err := NewTableStatsRecorder(""); err == nil {
		t.Fatalf("expected empty name error")
	}

	ctx := context.Background()
	rec.Observe(ctx, "insert_time_attendance", true, 2*time.Millisecond)
	rec.Observe(ctx, "insert_time_attendance", false, time.Millisecond)
	rec.Observe(ctx, "query_note", true, time.Millisecond)
	rec.Observe(ctx, "", true, time.Millisecond)
	rec.Observe(ctx, "orphan", true, time.Millisecond)

	snap := rec.Snapshot()
	got := snap.Tables["time_attendance"]["insert"]
	if got.Success != 1 || got.Error != 1 || got.TotalMS != 3 {
		t.Fatalf("unexpected stats %+v", got)
	}
	if snap.Tables["note"]["query"].Success != 1 || len(snap.Tables) != 2 {
		t.Fatalf("unexpected tables %+v", snap.Tables)
	}

	var published TableStatsSnapshot
	if err := json.Unmarshal([]byte(expvar.Get(rec.Name()).String()), &published); err != nil {
		t.Fatalf("decode expvar: %v", err)
	}
	if published.Tables["note"]["query"].Success != 1 {
		t.Fatalf("unexpected published snapshot %+v", published)
	}
}

func TestMultiMetricsRecorder(t *testing.T) {
	if _, ok := MultiMetricsRecorder(nil, nil).(noopMetricsRecorder); !ok {
		t.Fatalf("expected noop recorder when nothing is supplied")
	}
	reg := prometheus.NewRegistry()
	prom, err := NewPrometheusMetricsRecorder(reg)
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	if MultiMetricsRecorder(nil, prom) != MetricsRecorder(prom) {
		t.Fatalf("single recorder should be returned unwrapped")
	}
	stats, err := NewTableStatsRecorder("mobiletables_test_multi_stats")
	if err != nil {
		t.Fatalf("new stats: %v", err)
	}
	_, notes := newNoteTable(t, memory.NewTableStore(), WithMetricsRecorder(MultiMetricsRecorder(prom, stats)))
	if _, err := notes.Insert(context.Background(), domain.Note{Text: "both"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if stats.Snapshot().Tables["note"]["insert"].Success != 1 {
		t.Fatalf("stats recorder missed the insert")
	}
	families, err := reg.Gather()
	if err != nil || len(families) == 0 {
		t.Fatalf("prometheus recorder missed the insert: %v", err)
	}
}

func TestPrometheusMetricsRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewPrometheusMetricsRecorder(reg)
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	_, notes := newNoteTable(t, memory.NewTableStore(), WithMetricsRecorder(rec))
	ctx := context.Background()
	if _, err := notes.Insert(ctx, domain.Note{Text: "m"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	_ = notes.Delete(ctx, "missing")

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	counts := map[string]float64{}
	var histograms uint64
	for _, mf := range families {
		switch mf.GetName() {
		case "mobiletables_table_operations_total":
			for _, m := range mf.GetMetric() {
				var op, status string
				for _, lp := range m.GetLabel() {
					switch lp.GetName() {
					case "operation":
						op = lp.GetValue()
					case "status":
						status = lp.GetValue()
					}
				}
				counts[op+"/"+status] = m.GetCounter().GetValue()
			}
		case "mobiletables_table_operation_duration_seconds":
			for _, m := range mf.GetMetric() {
				histograms += m.GetHistogram().GetSampleCount()
			}
		}
	}
	if counts["insert_note/success"] != 1 || counts["delete_note/error"] != 1 {
		t.Fatalf("unexpected counters %v", counts)
	}
	if histograms != 2 {
		t.Fatalf("expected two latency samples, got %d", histograms)
	}

	if _, err := NewPrometheusMetricsRecorder(reg); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
}

func TestJSONTracer(t *testing.T) {
	var buf bytes.Buffer
	tracer := NewJSONTracer(&buf)
	_, span := tracer.Start(context.Background(), "update_note")
	span.End(nil)
	_, span = tracer.Start(context.Background(), "delete_time_attendance")
	span.End(errors.New("boom"))

	recent := tracer.Recent()
	if len(recent) != 2 || !recent[0].OK || recent[1].OK || recent[1].Error != "boom" {
		t.Fatalf("unexpected records %+v", recent)
	}
	if recent[1].Table != "time_attendance" || recent[1].Action != "delete" {
		t.Fatalf("unexpected split %+v", recent[1])
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected two JSON lines, got %q", buf.String())
	}
	var first TraceRecord
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil || first.Table != "note" || first.Action != "update" {
		t.Fatalf("unexpected first line %q err=%v", lines[0], err)
	}
}

func TestJSONTracerRetention(t *testing.T) {
	tracer := NewJSONTracer(nil)
	for i := 0; i < DefaultTraceRetention+10; i++ {
		_, span := tracer.Start(context.Background(), "query_note")
		var err error
		if i == DefaultTraceRetention+9 {
			err = errors.New("last")
		}
		span.End(err)
	}
	recent := tracer.Recent()
	if len(recent) != DefaultTraceRetention {
		t.Fatalf("expected %d retained spans, got %d", DefaultTraceRetention, len(recent))
	}
	if recent[len(recent)-1].Error != "last" {
		t.Fatalf("newest span should be last")
	}
}
