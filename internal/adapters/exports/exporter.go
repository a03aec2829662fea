// Package exports renders table snapshots to JSON and CSV artifacts in the
// background and stores them in the blob store.
package exports

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"mobiletables/internal/blob"
	"mobiletables/internal/core"
	"mobiletables/pkg/domain"

	"github.com/google/uuid"
)

// Status describes the lifecycle stage of an export request.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Format names an artifact encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// ParseFormat accepts json or csv in any case.
func ParseFormat(raw string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(raw))) {
	case FormatJSON:
		return FormatJSON, nil
	case FormatCSV:
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", raw)
	}
}

var (
	// ErrQueueFull is returned when the worker cannot accept more jobs.
	ErrQueueFull = errors.New("export queue full")

	errTableRequired = errors.New("table required")
)

const defaultQueueSize = 32

// Artifact describes one stored export file.
type Artifact struct {
	Key         string    `json:"key"`
	Format      Format    `json:"format"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	URL         string    `json:"url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Record tracks an export request and its artifacts.
type Record struct {
	ID          string     `json:"id"`
	Table       string     `json:"table"`
	Formats     []Format   `json:"formats"`
	Status      Status     `json:"status"`
	Error       string     `json:"error,omitempty"`
	RowCount    int        `json:"row_count"`
	Artifacts   []Artifact `json:"artifacts,omitempty"`
	RequestedBy string     `json:"requested_by,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func (r Record) copy() Record {
	r.Formats = append([]Format(nil), r.Formats...)
	r.Artifacts = append([]Artifact(nil), r.Artifacts...)
	if r.CompletedAt != nil {
		at := *r.CompletedAt
		r.CompletedAt = &at
	}
	return r
}

// Input is an enqueue request.
type Input struct {
	Table       string
	Formats     []Format
	RequestedBy string
}

// Source supplies the rows of a registered table. *core.Service satisfies it.
type Source interface {
	Table(name string) (core.Table, error)
	Rows(ctx context.Context, table string) ([]domain.TableRow, error)
}

// Scheduler queues exports and reports their status.
type Scheduler interface {
	EnqueueExport(ctx context.Context, input Input) (Record, error)
	GetExport(id string) (Record, bool)
}

// Worker executes exports on a single background goroutine.
type Worker struct {
	source Source
	store  blob.Store
	logger core.Logger
	now    func() time.Time

	queue chan string
	mu    sync.RWMutex
	jobs  map[string]*Record

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithLogger sets the worker logger.
func WithLogger(logger core.Logger) WorkerOption {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithQueueSize bounds the number of pending jobs.
func WithQueueSize(n int) WorkerOption {
	return func(w *Worker) {
		if n > 0 {
			w.queue = make(chan string, n)
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) WorkerOption {
	return func(w *Worker) {
		if now != nil {
			w.now = now
		}
	}
}

// NewWorker constructs an export worker. Call Start before enqueueing.
func NewWorker(source Source, store blob.Store, opts ...WorkerOption) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		source: source,
		store:  store,
		logger: core.NopLogger(),
		now:    time.Now,
		queue:  make(chan string, defaultQueueSize),
		jobs:   make(map[string]*Record),
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins processing export requests.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.loop()
}

// Stop signals the worker to halt and waits for the current job.
func (w *Worker) Stop(ctx context.Context) error {
	w.cancel()
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case id := <-w.queue:
			w.process(id)
		}
	}
}

// EnqueueExport validates input and queues the job.
func (w *Worker) EnqueueExport(_ context.Context, input Input) (Record, error) {
	table := strings.TrimSpace(input.Table)
	if table == "" {
		return Record{}, errTableRequired
	}
	if _, err := w.source.Table(table); err != nil {
		return Record{}, err
	}
	formats := input.Formats
	if len(formats) == 0 {
		formats = []Format{FormatJSON, FormatCSV}
	}
	unique := make([]Format, 0, len(formats))
	seen := make(map[Format]struct{}, len(formats))
	for _, raw := range formats {
		f, err := ParseFormat(string(raw))
		if err != nil {
			return Record{}, err
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		unique = append(unique, f)
	}

	now := w.now().UTC()
	record := &Record{
		ID:          uuid.NewString(),
		Table:       table,
		Formats:     unique,
		Status:      StatusQueued,
		RequestedBy: input.RequestedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	w.mu.Lock()
	w.jobs[record.ID] = record
	snapshot := record.copy()
	w.mu.Unlock()

	select {
	case w.queue <- record.ID:
	default:
		w.mu.Lock()
		delete(w.jobs, record.ID)
		w.mu.Unlock()
		return Record{}, ErrQueueFull
	}
	w.logger.Info("export queued", "export_id", record.ID, "table", table, "formats", unique)
	return snapshot, nil
}

// GetExport returns a snapshot of the export record.
func (w *Worker) GetExport(id string) (Record, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	record, ok := w.jobs[id]
	if !ok {
		return Record{}, false
	}
	return record.copy(), true
}

func (w *Worker) process(id string) {
	record, ok := w.GetExport(id)
	if !ok {
		return
	}
	w.update(id, func(r *Record) { r.Status = StatusRunning })

	rows, err := w.source.Rows(w.ctx, record.Table)
	if err != nil {
		w.fail(id, fmt.Sprintf("read %s: %v", record.Table, err))
		return
	}
	live := make([]domain.TableRow, 0, len(rows))
	for _, row := range rows {
		if !row.Deleted {
			live = append(live, row)
		}
	}
	docs, columns, err := flatten(live)
	if err != nil {
		w.fail(id, err.Error())
		return
	}

	artifacts := make([]Artifact, 0, len(record.Formats))
	for _, format := range record.Formats {
		payload, contentType, err := render(format, docs, columns)
		if err != nil {
			w.fail(id, err.Error())
			return
		}
		key := fmt.Sprintf("exports/%s/%s.%s", id, record.Table, format)
		info, err := w.store.Put(w.ctx, key, bytes.NewReader(payload), blob.PutOptions{
			ContentType: contentType,
			Metadata:    map[string]string{"export_id": id, "table": record.Table, "format": string(format)},
		})
		if err != nil {
			w.fail(id, fmt.Sprintf("store artifact failed: %v", err))
			return
		}
		url := info.URL
		if signed, err := w.store.PresignURL(w.ctx, key, blob.SignedURLOptions{}); err == nil {
			url = signed
		}
		artifacts = append(artifacts, Artifact{
			Key:         info.Key,
			Format:      format,
			ContentType: contentType,
			SizeBytes:   int64(len(payload)),
			URL:         url,
			CreatedAt:   info.LastModified,
		})
	}

	now := w.now().UTC()
	w.update(id, func(r *Record) {
		r.Status = StatusSucceeded
		r.Error = ""
		r.RowCount = len(docs)
		r.Artifacts = artifacts
		r.CompletedAt = &now
	})
	w.logger.Info("export completed", "export_id", id, "table", record.Table, "rows", len(docs))
}

func (w *Worker) update(id string, mutate func(*Record)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if record, ok := w.jobs[id]; ok {
		mutate(record)
		record.UpdatedAt = w.now().UTC()
	}
}

func (w *Worker) fail(id, reason string) {
	now := w.now().UTC()
	w.update(id, func(r *Record) {
		r.Status = StatusFailed
		r.Error = reason
		r.CompletedAt = &now
	})
	w.logger.Warn("export failed", "export_id", id, "error", reason)
}

var systemColumns = []string{"id", "createdAt", "updatedAt", "version", "deleted"}

// flatten merges system columns into each payload object. Columns are the
// system columns followed by payload keys in ascending order.
func flatten(rows []domain.TableRow) ([]map[string]any, []string, error) {
	docs := make([]map[string]any, 0, len(rows))
	keys := map[string]struct{}{}
	for _, row := range rows {
		doc := map[string]any{}
		if len(row.Payload) > 0 {
			dec := json.NewDecoder(bytes.NewReader(row.Payload))
			dec.UseNumber()
			if err := dec.Decode(&doc); err != nil {
				return nil, nil, fmt.Errorf("decode %s %s: %w", row.Table, row.ID, err)
			}
		}
		for k := range doc {
			keys[k] = struct{}{}
		}
		doc["id"] = row.ID
		doc["createdAt"] = row.CreatedAt.UTC()
		doc["updatedAt"] = row.UpdatedAt.UTC()
		doc["version"] = row.Version
		doc["deleted"] = row.Deleted
		docs = append(docs, doc)
	}
	for _, c := range systemColumns {
		delete(keys, c)
	}
	payloadColumns := make([]string, 0, len(keys))
	for k := range keys {
		payloadColumns = append(payloadColumns, k)
	}
	sort.Strings(payloadColumns)
	return docs, append(append([]string(nil), systemColumns...), payloadColumns...), nil
}

func render(format Format, docs []map[string]any, columns []string) ([]byte, string, error) {
	switch format {
	case FormatJSON:
		payload, err := json.MarshalIndent(docs, "", "  ")
		if err != nil {
			return nil, "", fmt.Errorf("render json: %w", err)
		}
		return payload, "application/json", nil
	case FormatCSV:
		var buf bytes.Buffer
		writer := csv.NewWriter(&buf)
		if err := writer.Write(columns); err != nil {
			return nil, "", fmt.Errorf("render csv: %w", err)
		}
		for _, doc := range docs {
			record := make([]string, len(columns))
			for i, column := range columns {
				record[i] = formatValue(doc[column])
			}
			if err := writer.Write(record); err != nil {
				return nil, "", fmt.Errorf("render csv: %w", err)
			}
		}
		writer.Flush()
		if err := writer.Error(); err != nil {
			return nil, "", fmt.Errorf("render csv: %w", err)
		}
		return buf.Bytes(), "text/csv", nil
	default:
		return nil, "", fmt.Errorf("unsupported export format %q", format)
	}
}

func formatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case time.Time:
		return v.UTC().Format(time.RFC3339Nano)
	case bool:
		return strconv.FormatBool(v)
	case json.Number:
		return v.String()
	case map[string]any, []any:
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(raw)
	default:
		return fmt.Sprint(v)
	}
}
