// Package sqlstore implements the metric store contract on any
// database/sql backend. The sqlite and postgres packages supply the driver
// and dialect; all SQL lives here in the portable subset both understand.
package sqlstore

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"wardcore/pkg/domain"
)

// Compile-time contract assertion.
var _ domain.Store = (*Store)(nil)

// Dialect identifies the placeholder and quoting conventions of a backend.
type Dialect int

// Supported dialects.
const (
	DialectSQLite Dialect = iota
	DialectPostgres
)

const (
	// retryAttempts bounds the backoff loop for transient contention
	// errors ("database is locked", lock timeouts).
	retryAttempts = 4
	retryBaseWait = 25 * time.Millisecond
)

// Store serializes all access through one mutex; connections are never
// shared across goroutines implicitly.
type Store struct {
	db      *sql.DB
	dialect Dialect
	mu      sync.Mutex
	nowFn   func() time.Time
}

// New applies the schema and returns a ready store.
func New(db *sql.DB, dialect Dialect) (*Store, error) {
	s := &Store{
		db:      db,
		dialect: dialect,
		nowFn:   func() time.Time { return time.Now().UTC() },
	}
	for _, stmt := range strings.Split(schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("apply schema: %w", err)
		}
	}
	return s, nil
}

// SetNowFunc overrides the store clock for tests.
func (s *Store) SetNowFunc(fn func() time.Time) {
	if fn != nil {
		s.nowFn = fn
	}
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the underlying connection pool.
func (s *Store) Close() error { return s.db.Close() }

func newID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b[:])
}

// bind rewrites ?-placeholders to $n for postgres.
func (s *Store) bind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func transient(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "lock timeout") ||
		strings.Contains(msg, "deadlock")
}

// withRetry runs fn with bounded exponential backoff on transient
// contention errors.
func withRetry(ctx context.Context, fn func() error) error {
	wait := retryBaseWait
	var err error
	for attempt := 0; attempt < retryAttempts; attempt++ {
		if err = fn(); err == nil || !transient(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
	}
	return err
}

// timeLayout is fixed width so lexicographic TEXT comparison equals time
// order. RFC3339Nano drops trailing zeros, which sorts 10:00:00Z after
// 10:00:00.5Z and breaks every timestamp window filter.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func fmtTime(t time.Time) string { return t.UTC().Format(timeLayout) }

// parseTime degrades malformed values to the zero time; the caller treats
// that as a missing reading rather than failing the whole scan. RFC3339Nano
// is accepted for rows written before the fixed-width layout.
func parseTime(raw string) time.Time {
	if t, err := time.Parse(timeLayout, raw); err == nil {
		return t
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

func fmtTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return fmtTime(*t)
}

func parseTimePtr(raw sql.NullString) *time.Time {
	if !raw.Valid || raw.String == "" {
		return nil
	}
	t := parseTime(raw.String)
	if t.IsZero() {
		return nil
	}
	return &t
}

// InsertMetrics appends a batch of metric points in one transaction.
func (s *Store) InsertMetrics(ctx context.Context, metrics []domain.Metric) error {
	if len(metrics) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return withRetry(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin metrics batch: %w", err)
		}
		stmt := s.bind(`INSERT INTO metrics (ts, metric_type, value, unit, department) VALUES (?,?,?,?,?)`)
		for _, m := range metrics {
			if _, err := tx.ExecContext(ctx, stmt, fmtTime(m.Timestamp), string(m.Type), m.Value, m.Unit, m.Department); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("insert metric %s: %w", m.Type, err)
			}
		}
		return tx.Commit()
	})
}

// MetricsSince returns points for one series oldest to newest.
func (s *Store) MetricsSince(ctx context.Context, metric domain.MetricType, since time.Time) ([]domain.Metric, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.QueryContext(ctx,
		s.bind(`SELECT ts, metric_type, value, unit, department FROM metrics WHERE metric_type = ? AND ts >= ? ORDER BY ts ASC`),
		string(metric), fmtTime(since))
	if err != nil {
		return nil, fmt.Errorf("select metrics: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []domain.Metric
	for rows.Next() {
		var (
			m  domain.Metric
			ts string
			mt string
		)
		if err := rows.Scan(&ts, &mt, &m.Value, &m.Unit, &m.Department); err != nil {
			return nil, fmt.Errorf("scan metric: %w", err)
		}
		m.Timestamp = parseTime(ts)
		m.Type = domain.MetricType(mt)
		out = append(out, m)
	}
	return out, rows.Err()
}

// CapacityOverview returns the per-department bed ledger rows.
func (s *Store) CapacityOverview(ctx context.Context) ([]domain.DepartmentBeds, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.QueryContext(ctx,
		`SELECT department, total_beds, occupied_beds, available_beds FROM capacity ORDER BY department ASC`)
	if err != nil {
		return nil, fmt.Errorf("select capacity: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []domain.DepartmentBeds
	for rows.Next() {
		var beds domain.DepartmentBeds
		if err := rows.Scan(&beds.Department, &beds.Total, &beds.Occupied, &beds.Available); err != nil {
			return nil, fmt.Errorf("scan capacity: %w", err)
		}
		out = append(out, beds)
	}
	return out, rows.Err()
}

// SaveCapacity upserts the full bed ledger.
func (s *Store) SaveCapacity(ctx context.Context, beds []domain.DepartmentBeds) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ledger := range beds {
		if ledger.Occupied+ledger.Available != ledger.Total {
			return fmt.Errorf("department %s: occupied %d + available %d != total %d",
				ledger.Department, ledger.Occupied, ledger.Available, ledger.Total)
		}
	}
	return withRetry(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin capacity save: %w", err)
		}
		stmt := s.bind(`INSERT INTO capacity (department, total_beds, occupied_beds, available_beds)
			VALUES (?,?,?,?)
			ON CONFLICT (department) DO UPDATE SET
				total_beds = excluded.total_beds,
				occupied_beds = excluded.occupied_beds,
				available_beds = excluded.available_beds`)
		for _, ledger := range beds {
			if _, err := tx.ExecContext(ctx, stmt, ledger.Department, ledger.Total, ledger.Occupied, ledger.Available); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("upsert capacity %s: %w", ledger.Department, err)
			}
		}
		return tx.Commit()
	})
}

// InventoryStatus returns all inventory positions.
func (s *Store) InventoryStatus(ctx context.Context) ([]domain.InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, department, quantity, reorder_level, created_at, updated_at FROM inventory ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("select inventory: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []domain.InventoryItem
	for rows.Next() {
		var (
			item     domain.InventoryItem
			created  string
			updated  string
		)
		if err := rows.Scan(&item.ID, &item.Name, &item.Department, &item.Quantity, &item.ReorderLevel, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan inventory: %w", err)
		}
		item.CreatedAt = parseTime(created)
		item.UpdatedAt = parseTime(updated)
		out = append(out, item)
	}
	return out, rows.Err()
}

// CreateInventoryItem stores a new inventory position.
func (s *Store) CreateInventoryItem(ctx context.Context, item domain.InventoryItem) (domain.InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item.ID == "" {
		item.ID = newID()
	}
	now := s.nowFn()
	item.CreatedAt = now
	item.UpdatedAt = now
	err := withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			s.bind(`INSERT INTO inventory (id, name, department, quantity, reorder_level, created_at, updated_at) VALUES (?,?,?,?,?,?,?)`),
			item.ID, item.Name, item.Department, item.Quantity, item.ReorderLevel, fmtTime(now), fmtTime(now))
		return err
	})
	if err != nil {
		return domain.InventoryItem{}, fmt.Errorf("insert inventory item: %w", err)
	}
	return item, nil
}

// AdjustInventory changes a position's quantity by delta, floored at zero.
func (s *Store) AdjustInventory(ctx context.Context, id string, delta int) (domain.InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var item domain.InventoryItem
	err := withRetry(ctx, func() error {
		var created, updated string
		row := s.db.QueryRowContext(ctx,
			s.bind(`SELECT id, name, department, quantity, reorder_level, created_at, updated_at FROM inventory WHERE id = ?`), id)
		if err := row.Scan(&item.ID, &item.Name, &item.Department, &item.Quantity, &item.ReorderLevel, &created, &updated); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return domain.ErrNotFound{Entity: "inventory item", ID: id}
			}
			return fmt.Errorf("load inventory item: %w", err)
		}
		item.CreatedAt = parseTime(created)
		item.Quantity += delta
		if item.Quantity < 0 {
			item.Quantity = 0
		}
		item.UpdatedAt = s.nowFn()
		_, err := s.db.ExecContext(ctx,
			s.bind(`UPDATE inventory SET quantity = ?, updated_at = ? WHERE id = ?`),
			item.Quantity, fmtTime(item.UpdatedAt), id)
		return err
	})
	if err != nil {
		return domain.InventoryItem{}, err
	}
	return item, nil
}

// ListDevices returns all devices.
func (s *Store) ListDevices(ctx context.Context) ([]domain.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, department, status, last_maintenance, next_maintenance, created_at, updated_at FROM devices ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("select devices: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []domain.Device
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, device)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDevice(row rowScanner) (domain.Device, error) {
	var (
		device   domain.Device
		status   string
		last     sql.NullString
		next     sql.NullString
		created  string
		updated  string
	)
	if err := row.Scan(&device.ID, &device.Name, &device.Department, &status, &last, &next, &created, &updated); err != nil {
		return domain.Device{}, fmt.Errorf("scan device: %w", err)
	}
	device.Status = domain.DeviceStatus(status)
	device.LastMaintenance = parseTimePtr(last)
	device.NextMaintenance = parseTimePtr(next)
	device.CreatedAt = parseTime(created)
	device.UpdatedAt = parseTime(updated)
	return device, nil
}

// CreateDevice stores a new device record.
func (s *Store) CreateDevice(ctx context.Context, device domain.Device) (domain.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if device.ID == "" {
		device.ID = newID()
	}
	if device.Status == "" {
		device.Status = domain.DeviceOperational
	}
	now := s.nowFn()
	device.CreatedAt = now
	device.UpdatedAt = now
	err := withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			s.bind(`INSERT INTO devices (id, name, department, status, last_maintenance, next_maintenance, created_at, updated_at) VALUES (?,?,?,?,?,?,?,?)`),
			device.ID, device.Name, device.Department, string(device.Status),
			fmtTimePtr(device.LastMaintenance), fmtTimePtr(device.NextMaintenance), fmtTime(now), fmtTime(now))
		return err
	})
	if err != nil {
		return domain.Device{}, fmt.Errorf("insert device: %w", err)
	}
	return device, nil
}

// UpdateDevice mutates a device using the provided mutator.
func (s *Store) UpdateDevice(ctx context.Context, id string, mutator func(*domain.Device) error) (domain.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var device domain.Device
	err := withRetry(ctx, func() error {
		row := s.db.QueryRowContext(ctx,
			s.bind(`SELECT id, name, department, status, last_maintenance, next_maintenance, created_at, updated_at FROM devices WHERE id = ?`), id)
		loaded, err := scanDevice(row)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return domain.ErrNotFound{Entity: "device", ID: id}
			}
			return err
		}
		if err := mutator(&loaded); err != nil {
			return err
		}
		loaded.ID = id
		loaded.UpdatedAt = s.nowFn()
		_, err = s.db.ExecContext(ctx,
			s.bind(`UPDATE devices SET name = ?, department = ?, status = ?, last_maintenance = ?, next_maintenance = ?, updated_at = ? WHERE id = ?`),
			loaded.Name, loaded.Department, string(loaded.Status),
			fmtTimePtr(loaded.LastMaintenance), fmtTimePtr(loaded.NextMaintenance), fmtTime(loaded.UpdatedAt), id)
		if err != nil {
			return fmt.Errorf("update device: %w", err)
		}
		device = loaded
		return nil
	})
	if err != nil {
		return domain.Device{}, err
	}
	return device, nil
}

func scanTransport(row rowScanner) (domain.Transport, error) {
	var (
		transport domain.Transport
		priority  string
		status    string
		planned   sql.NullString
		started   sql.NullString
		expected  sql.NullString
		created   string
		updated   string
	)
	if err := row.Scan(&transport.ID, &transport.Origin, &transport.Destination, &priority, &status,
		&transport.EstimatedMinutes, &planned, &started, &expected, &created, &updated); err != nil {
		return domain.Transport{}, fmt.Errorf("scan transport: %w", err)
	}
	transport.Priority = domain.TransportPriority(priority)
	transport.Status = domain.TransportStatus(status)
	transport.PlannedStart = parseTimePtr(planned)
	transport.StartedAt = parseTimePtr(started)
	transport.ExpectedEnd = parseTimePtr(expected)
	transport.CreatedAt = parseTime(created)
	transport.UpdatedAt = parseTime(updated)
	return transport, nil
}

const transportColumns = `id, origin, destination, priority, status, estimated_minutes, planned_start, started_at, expected_end, created_at, updated_at`

// CreateTransport stores a new transport order.
func (s *Store) CreateTransport(ctx context.Context, transport domain.Transport) (domain.Transport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if transport.ID == "" {
		transport.ID = newID()
	}
	if transport.Status == "" {
		transport.Status = domain.TransportPlanned
	}
	now := s.nowFn()
	transport.CreatedAt = now
	transport.UpdatedAt = now
	err := withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			s.bind(`INSERT INTO transports (`+transportColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?)`),
			transport.ID, transport.Origin, transport.Destination, string(transport.Priority), string(transport.Status),
			transport.EstimatedMinutes, fmtTimePtr(transport.PlannedStart), fmtTimePtr(transport.StartedAt),
			fmtTimePtr(transport.ExpectedEnd), fmtTime(now), fmtTime(now))
		return err
	})
	if err != nil {
		return domain.Transport{}, fmt.Errorf("insert transport: %w", err)
	}
	return transport, nil
}

// UpdateTransport mutates a transport using the provided mutator.
func (s *Store) UpdateTransport(ctx context.Context, id string, mutator func(*domain.Transport) error) (domain.Transport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var transport domain.Transport
	err := withRetry(ctx, func() error {
		row := s.db.QueryRowContext(ctx, s.bind(`SELECT `+transportColumns+` FROM transports WHERE id = ?`), id)
		loaded, err := scanTransport(row)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return domain.ErrNotFound{Entity: "transport", ID: id}
			}
			return err
		}
		if err := mutator(&loaded); err != nil {
			return err
		}
		loaded.ID = id
		loaded.UpdatedAt = s.nowFn()
		_, err = s.db.ExecContext(ctx,
			s.bind(`UPDATE transports SET origin = ?, destination = ?, priority = ?, status = ?, estimated_minutes = ?, planned_start = ?, started_at = ?, expected_end = ?, updated_at = ? WHERE id = ?`),
			loaded.Origin, loaded.Destination, string(loaded.Priority), string(loaded.Status), loaded.EstimatedMinutes,
			fmtTimePtr(loaded.PlannedStart), fmtTimePtr(loaded.StartedAt), fmtTimePtr(loaded.ExpectedEnd),
			fmtTime(loaded.UpdatedAt), id)
		if err != nil {
			return fmt.Errorf("update transport: %w", err)
		}
		transport = loaded
		return nil
	})
	if err != nil {
		return domain.Transport{}, err
	}
	return transport, nil
}

// DueTransports returns planned transports whose planned start has arrived.
func (s *Store) DueTransports(ctx context.Context, now time.Time) ([]domain.Transport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.QueryContext(ctx,
		s.bind(`SELECT `+transportColumns+` FROM transports WHERE status = ? AND planned_start IS NOT NULL AND planned_start <= ? ORDER BY planned_start ASC`),
		string(domain.TransportPlanned), fmtTime(now))
	if err != nil {
		return nil, fmt.Errorf("select due transports: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []domain.Transport
	for rows.Next() {
		transport, err := scanTransport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, transport)
	}
	return out, rows.Err()
}

// ListTransports returns all transport orders.
func (s *Store) ListTransports(ctx context.Context) ([]domain.Transport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.QueryContext(ctx, `SELECT `+transportColumns+` FROM transports ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("select transports: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []domain.Transport
	for rows.Next() {
		transport, err := scanTransport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, transport)
	}
	return out, rows.Err()
}

// CreateEvent persists a newly triggered special event.
func (s *Store) CreateEvent(ctx context.Context, event domain.SimulationEvent) (domain.SimulationEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if event.ID == "" {
		event.ID = newID()
	}
	affected, err := json.Marshal(event.AffectedDepartments)
	if err != nil {
		return domain.SimulationEvent{}, fmt.Errorf("encode affected departments: %w", err)
	}
	err = withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			s.bind(`INSERT INTO sim_events (id, event_type, start_time, duration_minutes, intensity, affected_departments, description, end_time) VALUES (?,?,?,?,?,?,?,?)`),
			event.ID, string(event.Type), fmtTime(event.StartTime), event.DurationMinutes, event.Intensity,
			string(affected), event.Description, fmtTimePtr(event.EndTime))
		return err
	})
	if err != nil {
		return domain.SimulationEvent{}, fmt.Errorf("insert event: %w", err)
	}
	return event, nil
}

// CloseEvent stamps an event's end time on expiry.
func (s *Store) CloseEvent(ctx context.Context, id string, end time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return withRetry(ctx, func() error {
		res, err := s.db.ExecContext(ctx,
			s.bind(`UPDATE sim_events SET end_time = ? WHERE id = ?`), fmtTime(end), id)
		if err != nil {
			return fmt.Errorf("close event: %w", err)
		}
		affected, err := res.RowsAffected()
		if err == nil && affected == 0 {
			return domain.ErrNotFound{Entity: "simulation event", ID: id}
		}
		return nil
	})
}

// AppendPatientEvent appends an arrival/discharge record.
func (s *Store) AppendPatientEvent(ctx context.Context, event domain.PatientEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if event.ID == "" {
		event.ID = newID()
	}
	return withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			s.bind(`INSERT INTO patient_events (id, kind, department, occurred_at) VALUES (?,?,?,?)`),
			event.ID, string(event.Kind), event.Department, fmtTime(event.OccurredAt))
		return err
	})
}

// AppendOperation appends an OR operation record.
func (s *Store) AppendOperation(ctx context.Context, op domain.Operation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if op.ID == "" {
		op.ID = newID()
	}
	return withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			s.bind(`INSERT INTO operations (id, department, operation_type, duration_minutes, started_at) VALUES (?,?,?,?,?)`),
			op.ID, op.Department, op.Kind, op.DurationMinutes, fmtTime(op.StartedAt))
		return err
	})
}

// CreateAlert stores an alert unless an identical (metric, department,
// severity) alert exists within the dedup window.
func (s *Store) CreateAlert(ctx context.Context, alert domain.Alert, dedup time.Duration) (domain.Alert, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.nowFn()
	cutoff := now.Add(-dedup)
	var existingID string
	row := s.db.QueryRowContext(ctx,
		s.bind(`SELECT id FROM alerts WHERE metric_type = ? AND department = ? AND severity = ? AND created_at >= ? LIMIT 1`),
		string(alert.Metric), alert.Department, string(alert.Severity), fmtTime(cutoff))
	switch err := row.Scan(&existingID); err {
	case nil:
		alert.ID = existingID
		return alert, false, nil
	case sql.ErrNoRows:
	default:
		return domain.Alert{}, false, fmt.Errorf("alert dedup lookup: %w", err)
	}
	if alert.ID == "" {
		alert.ID = newID()
	}
	alert.CreatedAt = now
	alert.UpdatedAt = now
	err := withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			s.bind(`INSERT INTO alerts (id, metric_type, severity, message, department, value, created_at, updated_at) VALUES (?,?,?,?,?,?,?,?)`),
			alert.ID, string(alert.Metric), string(alert.Severity), alert.Message, alert.Department, alert.Value,
			fmtTime(now), fmtTime(now))
		return err
	})
	if err != nil {
		return domain.Alert{}, false, fmt.Errorf("insert alert: %w", err)
	}
	return alert, true, nil
}

// AlertsSince returns alerts created at or after since, newest first.
func (s *Store) AlertsSince(ctx context.Context, since time.Time) ([]domain.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.QueryContext(ctx,
		s.bind(`SELECT id, metric_type, severity, message, department, value, created_at, updated_at FROM alerts WHERE created_at >= ? ORDER BY created_at DESC`),
		fmtTime(since))
	if err != nil {
		return nil, fmt.Errorf("select alerts: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []domain.Alert
	for rows.Next() {
		var (
			alert    domain.Alert
			metric   string
			severity string
			created  string
			updated  string
		)
		if err := rows.Scan(&alert.ID, &metric, &severity, &alert.Message, &alert.Department, &alert.Value, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		alert.Metric = domain.MetricType(metric)
		alert.Severity = domain.Severity(severity)
		alert.CreatedAt = parseTime(created)
		alert.UpdatedAt = parseTime(updated)
		out = append(out, alert)
	}
	return out, rows.Err()
}

// InsertPredictions batch-persists a forecast cycle in one transaction.
func (s *Store) InsertPredictions(ctx context.Context, predictions []domain.Prediction) error {
	if len(predictions) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return withRetry(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin prediction batch: %w", err)
		}
		stmt := s.bind(`INSERT INTO predictions (id, prediction_type, value, confidence, horizon_minutes, department, model_version, factors, created_at) VALUES (?,?,?,?,?,?,?,?,?)`)
		for _, p := range predictions {
			if p.ID == "" {
				p.ID = newID()
			}
			factors, err := json.Marshal(p.Factors)
			if err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("encode factors: %w", err)
			}
			if _, err := tx.ExecContext(ctx, stmt, p.ID, string(p.Type), p.Value, p.Confidence, p.HorizonMinutes,
				p.Department, p.ModelVersion, string(factors), fmtTime(p.CreatedAt)); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("insert prediction: %w", err)
			}
		}
		return tx.Commit()
	})
}

// InsertRecommendations batch-persists a recommendation cycle.
func (s *Store) InsertRecommendations(ctx context.Context, recommendations []domain.Recommendation) error {
	if len(recommendations) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.nowFn()
	return withRetry(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin recommendation batch: %w", err)
		}
		stmt := s.bind(`INSERT INTO recommendations (id, kind, title, detail, priority, department, applied, created_at, updated_at) VALUES (?,?,?,?,?,?,?,?,?)`)
		for _, r := range recommendations {
			if r.ID == "" {
				r.ID = newID()
			}
			applied := 0
			if r.Applied {
				applied = 1
			}
			if _, err := tx.ExecContext(ctx, stmt, r.ID, r.Kind, r.Title, r.Detail, r.Priority, r.Department,
				applied, fmtTime(now), fmtTime(now)); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("insert recommendation: %w", err)
			}
		}
		return tx.Commit()
	})
}

// ListStaffShifts returns shifts filtered by department.
func (s *Store) ListStaffShifts(ctx context.Context, department string) ([]domain.StaffShift, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	query := `SELECT id, department, role, start_at, end_at, head_count FROM staff_shifts`
	args := []any{}
	if department != "" {
		query += ` WHERE department = ?`
		args = append(args, department)
	}
	query += ` ORDER BY start_at ASC`
	rows, err := s.db.QueryContext(ctx, s.bind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("select staff shifts: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []domain.StaffShift
	for rows.Next() {
		var (
			shift domain.StaffShift
			start string
			end   string
		)
		if err := rows.Scan(&shift.ID, &shift.Department, &shift.Role, &start, &end, &shift.HeadCount); err != nil {
			return nil, fmt.Errorf("scan staff shift: %w", err)
		}
		shift.Start = parseTime(start)
		shift.End = parseTime(end)
		out = append(out, shift)
	}
	return out, rows.Err()
}

// CreateStaffShift stores a scheduled shift.
func (s *Store) CreateStaffShift(ctx context.Context, shift domain.StaffShift) (domain.StaffShift, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if shift.ID == "" {
		shift.ID = newID()
	}
	if shift.End.Before(shift.Start) {
		return domain.StaffShift{}, fmt.Errorf("staff shift end precedes start")
	}
	err := withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			s.bind(`INSERT INTO staff_shifts (id, department, role, start_at, end_at, head_count) VALUES (?,?,?,?,?,?)`),
			shift.ID, shift.Department, shift.Role, fmtTime(shift.Start), fmtTime(shift.End), shift.HeadCount)
		return err
	})
	if err != nil {
		return domain.StaffShift{}, fmt.Errorf("insert staff shift: %w", err)
	}
	return shift, nil
}

// AppendAudit appends an audit trail record.
func (s *Store) AppendAudit(ctx context.Context, entry domain.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.ID == "" {
		entry.ID = newID()
	}
	detail, err := json.Marshal(entry.Detail)
	if err != nil {
		return fmt.Errorf("encode audit detail: %w", err)
	}
	return withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			s.bind(`INSERT INTO audit_log (id, action, actor, detail, occurred_at) VALUES (?,?,?,?,?)`),
			entry.ID, entry.Action, entry.Actor, string(detail), fmtTime(entry.OccurredAt))
		return err
	})
}
