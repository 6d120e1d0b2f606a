// Package archive exports metric history windows as blob artifacts. Jobs
// run asynchronously on a single worker goroutine; callers enqueue a
// request and poll its record for completion.
package archive

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"wardcore/internal/blob"
	"wardcore/pkg/domain"
)

// Format selects the artifact encoding.
type Format string

// Supported artifact encodings.
const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// Status describes the lifecycle stage of an archive job.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Request asks for one metric window to be archived.
type Request struct {
	Metric      domain.MetricType
	Window      time.Duration
	Formats     []Format
	RequestedBy string
}

// Artifact references one stored rendering of an archive job.
type Artifact struct {
	Key         string    `json:"key"`
	Format      Format    `json:"format"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	Points      int       `json:"points"`
	CreatedAt   time.Time `json:"created_at"`
}

// Record tracks an archive job and its resulting artifacts.
type Record struct {
	ID          string            `json:"id"`
	Metric      domain.MetricType `json:"metric"`
	Window      time.Duration     `json:"window"`
	Formats     []Format          `json:"formats"`
	Status      Status            `json:"status"`
	Error       string            `json:"error,omitempty"`
	Artifacts   []Artifact        `json:"artifacts,omitempty"`
	RequestedBy string            `json:"requested_by"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
}

// Worker renders and stores archive jobs asynchronously.
type Worker struct {
	store domain.Store
	blobs blob.Store
	nowFn func() time.Time

	queue chan task
	mu    sync.RWMutex
	jobs  map[string]*Record

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type task struct {
	id      string
	request Request
}

// NewWorker constructs an archive worker over a metric store and blob store.
func NewWorker(store domain.Store, blobs blob.Store) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		store:  store,
		blobs:  blobs,
		nowFn:  time.Now,
		queue:  make(chan task, 32),
		jobs:   make(map[string]*Record),
		ctx:    ctx,
		cancel: cancel,
	}
}

// SetNowFunc overrides the clock. Test hook.
func (w *Worker) SetNowFunc(fn func() time.Time) {
	if fn != nil {
		w.nowFn = fn
	}
}

// Start begins processing archive requests.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.loop()
}

// Stop signals the worker to halt and waits for completion.
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
		case t := <-w.queue:
			w.process(t)
		}
	}
}

// Enqueue schedules an archive job and returns the queued record.
func (w *Worker) Enqueue(ctx context.Context, req Request) (Record, error) {
	if req.Metric == "" {
		return Record{}, fmt.Errorf("metric required")
	}
	if req.Window <= 0 {
		return Record{}, fmt.Errorf("window must be positive")
	}
	formats := req.Formats
	if len(formats) == 0 {
		formats = []Format{FormatJSON, FormatCSV}
	}
	seen := make(map[Format]struct{}, len(formats))
	uniq := make([]Format, 0, len(formats))
	for _, format := range formats {
		if format != FormatJSON && format != FormatCSV {
			return Record{}, fmt.Errorf("unsupported format %s", format)
		}
		if _, dup := seen[format]; dup {
			continue
		}
		seen[format] = struct{}{}
		uniq = append(uniq, format)
	}

	id := newID()
	now := w.nowFn().UTC()
	record := Record{
		ID:          id,
		Metric:      req.Metric,
		Window:      req.Window,
		Formats:     uniq,
		Status:      StatusQueued,
		RequestedBy: req.RequestedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	w.mu.Lock()
	w.jobs[id] = &record
	snapshot := record.copy()
	w.mu.Unlock()

	w.audit(ctx, record, StatusQueued, "")

	select {
	case w.queue <- task{id: id, request: req}:
	default:
		w.mu.Lock()
		delete(w.jobs, id)
		w.mu.Unlock()
		return Record{}, fmt.Errorf("archive queue full")
	}
	return snapshot, nil
}

// Get returns a snapshot of the archive record.
func (w *Worker) Get(id string) (Record, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	record, ok := w.jobs[id]
	if !ok {
		return Record{}, false
	}
	return record.copy(), true
}

func (w *Worker) process(t task) {
	w.setStatus(t.id, StatusRunning, "")

	now := w.nowFn().UTC()
	since := now.Add(-t.request.Window)
	points, err := w.store.MetricsSince(w.ctx, t.request.Metric, since)
	if err != nil {
		w.fail(t.id, fmt.Sprintf("read metrics: %v", err))
		return
	}

	record, ok := w.Get(t.id)
	if !ok {
		return
	}
	artifacts := make([]Artifact, 0, len(record.Formats))
	for _, format := range record.Formats {
		payload, contentType, err := render(format, points)
		if err != nil {
			w.fail(t.id, err.Error())
			return
		}
		key := fmt.Sprintf("archives/metrics/%s/%s.%s", t.request.Metric, now.Format("20060102T150405Z"), format)
		info, err := w.blobs.Put(w.ctx, key, bytes.NewReader(payload), blob.PutOptions{
			ContentType: contentType,
			Metadata:    map[string]string{"metric": string(t.request.Metric), "points": strconv.Itoa(len(points))},
		})
		if err != nil {
			w.fail(t.id, fmt.Sprintf("store artifact: %v", err))
			return
		}
		artifacts = append(artifacts, Artifact{
			Key:         info.Key,
			Format:      format,
			ContentType: contentType,
			SizeBytes:   info.Size,
			Points:      len(points),
			CreatedAt:   now,
		})
	}
	w.complete(t.id, artifacts)
}

// render encodes a metric window in the requested format.
func render(format Format, points []domain.Metric) ([]byte, string, error) {
	switch format {
	case FormatJSON:
		payload, err := json.Marshal(points)
		if err != nil {
			return nil, "", fmt.Errorf("marshal json: %w", err)
		}
		return payload, "application/json", nil
	case FormatCSV:
		buf := &bytes.Buffer{}
		writer := csv.NewWriter(buf)
		if err := writer.Write([]string{"timestamp", "metric_type", "value", "unit", "department"}); err != nil {
			return nil, "", err
		}
		for _, point := range points {
			row := []string{
				point.Timestamp.UTC().Format(time.RFC3339Nano),
				string(point.Type),
				strconv.FormatFloat(point.Value, 'f', -1, 64),
				point.Unit,
				point.Department,
			}
			if err := writer.Write(row); err != nil {
				return nil, "", err
			}
		}
		writer.Flush()
		if err := writer.Error(); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "text/csv", nil
	default:
		return nil, "", fmt.Errorf("unsupported format %s", format)
	}
}

func (w *Worker) setStatus(id string, status Status, message string) {
	now := w.nowFn().UTC()
	w.mu.Lock()
	record, ok := w.jobs[id]
	if ok {
		record.Status = status
		record.Error = message
		record.UpdatedAt = now
	}
	var snapshot Record
	if ok {
		snapshot = record.copy()
	}
	w.mu.Unlock()
	if ok {
		w.audit(w.ctx, snapshot, status, message)
	}
}

func (w *Worker) complete(id string, artifacts []Artifact) {
	now := w.nowFn().UTC()
	w.mu.Lock()
	record, ok := w.jobs[id]
	if ok {
		record.Status = StatusSucceeded
		record.Error = ""
		record.Artifacts = artifacts
		record.UpdatedAt = now
		record.CompletedAt = &now
	}
	var snapshot Record
	if ok {
		snapshot = record.copy()
	}
	w.mu.Unlock()
	if ok {
		w.audit(w.ctx, snapshot, StatusSucceeded, "")
	}
}

func (w *Worker) fail(id, reason string) {
	now := w.nowFn().UTC()
	w.mu.Lock()
	record, ok := w.jobs[id]
	if ok {
		record.Status = StatusFailed
		record.Error = reason
		record.UpdatedAt = now
		record.CompletedAt = &now
	}
	var snapshot Record
	if ok {
		snapshot = record.copy()
	}
	w.mu.Unlock()
	if ok {
		w.audit(w.ctx, snapshot, StatusFailed, reason)
	}
}

// audit appends one archive lifecycle entry; persistence failures do not
// block the job.
func (w *Worker) audit(ctx context.Context, record Record, status Status, note string) {
	detail := map[string]any{
		"job_id": record.ID,
		"metric": string(record.Metric),
		"status": string(status),
	}
	if note != "" {
		detail["note"] = note
	}
	_ = w.store.AppendAudit(ctx, domain.AuditEntry{
		ID:         newID(),
		Action:     "archive.export",
		Actor:      record.RequestedBy,
		Detail:     detail,
		OccurredAt: w.nowFn().UTC(),
	})
}

func (r Record) copy() Record {
	dup := r
	dup.Formats = append([]Format(nil), r.Formats...)
	if len(r.Artifacts) > 0 {
		dup.Artifacts = append([]Artifact(nil), r.Artifacts...)
	}
	return dup
}

func newID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return fmt.Sprintf("%x", b[:])
}
