package domain

import (
	"context"
	"fmt"
	"time"
)

// Store is the metric store collaborator contract. Implementations provide
// a durable append-only metric/event log plus mutable entity tables. All
// methods are safe for concurrent use; callers treat persistence failures
// inside the simulation tick as best effort.
type Store interface {
	// InsertMetrics appends a batch of metric points in one write.
	InsertMetrics(ctx context.Context, metrics []Metric) error
	// MetricsSince returns points for one series with timestamp >= since,
	// ordered oldest to newest.
	MetricsSince(ctx context.Context, metric MetricType, since time.Time) ([]Metric, error)

	// CapacityOverview returns the per-department bed ledger rows.
	CapacityOverview(ctx context.Context) ([]DepartmentBeds, error)
	// SaveCapacity upserts the full bed ledger.
	SaveCapacity(ctx context.Context, beds []DepartmentBeds) error

	// InventoryStatus returns all inventory positions.
	InventoryStatus(ctx context.Context) ([]InventoryItem, error)
	// CreateInventoryItem stores a new inventory position.
	CreateInventoryItem(ctx context.Context, item InventoryItem) (InventoryItem, error)
	// AdjustInventory changes a position's quantity by delta, floored at zero.
	AdjustInventory(ctx context.Context, id string, delta int) (InventoryItem, error)

	// ListDevices returns all devices.
	ListDevices(ctx context.Context) ([]Device, error)
	// CreateDevice stores a new device record.
	CreateDevice(ctx context.Context, device Device) (Device, error)
	// UpdateDevice mutates a device using the provided mutator.
	UpdateDevice(ctx context.Context, id string, mutator func(*Device) error) (Device, error)

	// CreateTransport stores a new transport order.
	CreateTransport(ctx context.Context, transport Transport) (Transport, error)
	// UpdateTransport mutates a transport using the provided mutator.
	UpdateTransport(ctx context.Context, id string, mutator func(*Transport) error) (Transport, error)
	// DueTransports returns planned transports whose planned start time has
	// arrived at now.
	DueTransports(ctx context.Context, now time.Time) ([]Transport, error)
	// ListTransports returns all transport orders.
	ListTransports(ctx context.Context) ([]Transport, error)

	// CreateEvent persists a newly triggered special event.
	CreateEvent(ctx context.Context, event SimulationEvent) (SimulationEvent, error)
	// CloseEvent stamps an event's end time on expiry.
	CloseEvent(ctx context.Context, id string, end time.Time) error

	// AppendPatientEvent appends an arrival/discharge record.
	AppendPatientEvent(ctx context.Context, event PatientEvent) error
	// AppendOperation appends an OR operation record.
	AppendOperation(ctx context.Context, op Operation) error

	// CreateAlert stores an alert unless an identical (metric, department,
	// severity) alert exists within the dedup window. The bool reports
	// whether a row was created.
	CreateAlert(ctx context.Context, alert Alert, dedup time.Duration) (Alert, bool, error)
	// AlertsSince returns alerts created at or after since, newest first.
	AlertsSince(ctx context.Context, since time.Time) ([]Alert, error)

	// InsertPredictions batch-persists a forecast cycle.
	InsertPredictions(ctx context.Context, predictions []Prediction) error
	// InsertRecommendations batch-persists a recommendation cycle.
	InsertRecommendations(ctx context.Context, recommendations []Recommendation) error

	// ListStaffShifts returns scheduled shifts, optionally filtered by
	// department (empty string matches all).
	ListStaffShifts(ctx context.Context, department string) ([]StaffShift, error)
	// CreateStaffShift stores a scheduled shift.
	CreateStaffShift(ctx context.Context, shift StaffShift) (StaffShift, error)

	// AppendAudit appends an audit trail record.
	AppendAudit(ctx context.Context, entry AuditEntry) error

	// Close releases underlying resources.
	Close() error
}

// ErrNotFound is returned when an entity lookup or mutation misses.
type ErrNotFound struct {
	Entity string
	ID     string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}
