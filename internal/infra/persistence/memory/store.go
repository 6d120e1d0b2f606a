// Package memory provides an in-memory metric store used for tests and
// ephemeral deployments. It is the reference implementation of the store
// contract; durable backends mirror its semantics.
package memory

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"wardcore/pkg/domain"
)

// Compile-time contract assertion.
var _ domain.Store = (*Store)(nil)

// Store keeps all rows in process memory behind one mutex.
type Store struct {
	mu sync.RWMutex

	metrics         []domain.Metric
	capacity        map[string]domain.DepartmentBeds
	inventory       map[string]domain.InventoryItem
	devices         map[string]domain.Device
	transports      map[string]domain.Transport
	events          map[string]domain.SimulationEvent
	patientEvents   []domain.PatientEvent
	operations      []domain.Operation
	alerts          []domain.Alert
	predictions     []domain.Prediction
	recommendations []domain.Recommendation
	shifts          map[string]domain.StaffShift
	audit           []domain.AuditEntry

	nowFn func() time.Time
}

// NewStore constructs an empty in-memory store.
func NewStore() *Store {
	return &Store{
		capacity:   make(map[string]domain.DepartmentBeds),
		inventory:  make(map[string]domain.InventoryItem),
		devices:    make(map[string]domain.Device),
		transports: make(map[string]domain.Transport),
		events:     make(map[string]domain.SimulationEvent),
		shifts:     make(map[string]domain.StaffShift),
		nowFn:      func() time.Time { return time.Now().UTC() },
	}
}

// SetNowFunc overrides the store clock, used by tests exercising the alert
// dedup window.
func (s *Store) SetNowFunc(fn func() time.Time) {
	if fn != nil {
		s.nowFn = fn
	}
}

func newID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b[:])
}

// InsertMetrics appends a batch of metric points.
func (s *Store) InsertMetrics(_ context.Context, metrics []domain.Metric) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = append(s.metrics, metrics...)
	return nil
}

// MetricsSince returns points for one series oldest to newest.
func (s *Store) MetricsSince(_ context.Context, metric domain.MetricType, since time.Time) ([]domain.Metric, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Metric
	for _, m := range s.metrics {
		if m.Type == metric && !m.Timestamp.Before(since) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// CapacityOverview returns the bed ledger sorted by department name.
func (s *Store) CapacityOverview(_ context.Context) ([]domain.DepartmentBeds, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.DepartmentBeds, 0, len(s.capacity))
	for _, beds := range s.capacity {
		out = append(out, beds)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Department < out[j].Department })
	return out, nil
}

// SaveCapacity upserts the full bed ledger.
func (s *Store) SaveCapacity(_ context.Context, beds []domain.DepartmentBeds) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ledger := range beds {
		if ledger.Occupied+ledger.Available != ledger.Total {
			return fmt.Errorf("department %s: occupied %d + available %d != total %d",
				ledger.Department, ledger.Occupied, ledger.Available, ledger.Total)
		}
		s.capacity[ledger.Department] = ledger
	}
	return nil
}

// InventoryStatus returns all inventory positions sorted by name.
func (s *Store) InventoryStatus(_ context.Context) ([]domain.InventoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.InventoryItem, 0, len(s.inventory))
	for _, item := range s.inventory {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// CreateInventoryItem stores a new inventory position.
func (s *Store) CreateInventoryItem(_ context.Context, item domain.InventoryItem) (domain.InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item.ID == "" {
		item.ID = newID()
	}
	if _, exists := s.inventory[item.ID]; exists {
		return domain.InventoryItem{}, fmt.Errorf("inventory item %q already exists", item.ID)
	}
	now := s.nowFn()
	item.CreatedAt = now
	item.UpdatedAt = now
	s.inventory[item.ID] = item
	return item, nil
}

// AdjustInventory changes a position's quantity by delta, floored at zero.
func (s *Store) AdjustInventory(_ context.Context, id string, delta int) (domain.InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.inventory[id]
	if !ok {
		return domain.InventoryItem{}, domain.ErrNotFound{Entity: "inventory item", ID: id}
	}
	item.Quantity += delta
	if item.Quantity < 0 {
		item.Quantity = 0
	}
	item.UpdatedAt = s.nowFn()
	s.inventory[id] = item
	return item, nil
}

// ListDevices returns all devices sorted by name.
func (s *Store) ListDevices(_ context.Context) ([]domain.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Device, 0, len(s.devices))
	for _, device := range s.devices {
		out = append(out, device)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// CreateDevice stores a new device record.
func (s *Store) CreateDevice(_ context.Context, device domain.Device) (domain.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if device.ID == "" {
		device.ID = newID()
	}
	if _, exists := s.devices[device.ID]; exists {
		return domain.Device{}, fmt.Errorf("device %q already exists", device.ID)
	}
	now := s.nowFn()
	device.CreatedAt = now
	device.UpdatedAt = now
	if device.Status == "" {
		device.Status = domain.DeviceOperational
	}
	s.devices[device.ID] = device
	return device, nil
}

// UpdateDevice mutates a device using the provided mutator.
func (s *Store) UpdateDevice(_ context.Context, id string, mutator func(*domain.Device) error) (domain.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	device, ok := s.devices[id]
	if !ok {
		return domain.Device{}, domain.ErrNotFound{Entity: "device", ID: id}
	}
	if err := mutator(&device); err != nil {
		return domain.Device{}, err
	}
	device.ID = id
	device.UpdatedAt = s.nowFn()
	s.devices[id] = device
	return device, nil
}

// CreateTransport stores a new transport order.
func (s *Store) CreateTransport(_ context.Context, transport domain.Transport) (domain.Transport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if transport.ID == "" {
		transport.ID = newID()
	}
	if _, exists := s.transports[transport.ID]; exists {
		return domain.Transport{}, fmt.Errorf("transport %q already exists", transport.ID)
	}
	now := s.nowFn()
	transport.CreatedAt = now
	transport.UpdatedAt = now
	if transport.Status == "" {
		transport.Status = domain.TransportPlanned
	}
	s.transports[transport.ID] = transport
	return transport, nil
}

// UpdateTransport mutates a transport using the provided mutator.
func (s *Store) UpdateTransport(_ context.Context, id string, mutator func(*domain.Transport) error) (domain.Transport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	transport, ok := s.transports[id]
	if !ok {
		return domain.Transport{}, domain.ErrNotFound{Entity: "transport", ID: id}
	}
	if err := mutator(&transport); err != nil {
		return domain.Transport{}, err
	}
	transport.ID = id
	transport.UpdatedAt = s.nowFn()
	s.transports[id] = transport
	return transport, nil
}

// DueTransports returns planned transports whose planned start has arrived.
func (s *Store) DueTransports(_ context.Context, now time.Time) ([]domain.Transport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Transport
	for _, transport := range s.transports {
		if transport.Status != domain.TransportPlanned || transport.PlannedStart == nil {
			continue
		}
		if !transport.PlannedStart.After(now) {
			out = append(out, transport)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlannedStart.Before(*out[j].PlannedStart) })
	return out, nil
}

// ListTransports returns all transports sorted by creation time.
func (s *Store) ListTransports(_ context.Context) ([]domain.Transport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Transport, 0, len(s.transports))
	for _, transport := range s.transports {
		out = append(out, transport)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// CreateEvent persists a newly triggered special event.
func (s *Store) CreateEvent(_ context.Context, event domain.SimulationEvent) (domain.SimulationEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if event.ID == "" {
		event.ID = newID()
	}
	if _, exists := s.events[event.ID]; exists {
		return domain.SimulationEvent{}, fmt.Errorf("event %q already exists", event.ID)
	}
	s.events[event.ID] = event
	return event, nil
}

// CloseEvent stamps an event's end time.
func (s *Store) CloseEvent(_ context.Context, id string, end time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	event, ok := s.events[id]
	if !ok {
		return domain.ErrNotFound{Entity: "simulation event", ID: id}
	}
	event.EndTime = &end
	s.events[id] = event
	return nil
}

// Events returns all persisted events for inspection in tests.
func (s *Store) Events() []domain.SimulationEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.SimulationEvent, 0, len(s.events))
	for _, event := range s.events {
		out = append(out, event)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out
}

// AppendPatientEvent appends an arrival/discharge record.
func (s *Store) AppendPatientEvent(_ context.Context, event domain.PatientEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if event.ID == "" {
		event.ID = newID()
	}
	s.patientEvents = append(s.patientEvents, event)
	return nil
}

// AppendOperation appends an OR operation record.
func (s *Store) AppendOperation(_ context.Context, op domain.Operation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if op.ID == "" {
		op.ID = newID()
	}
	s.operations = append(s.operations, op)
	return nil
}

// Operations returns appended operations for inspection in tests.
func (s *Store) Operations() []domain.Operation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Operation, len(s.operations))
	copy(out, s.operations)
	return out
}

// PatientEvents returns appended patient events for inspection in tests.
func (s *Store) PatientEvents() []domain.PatientEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.PatientEvent, len(s.patientEvents))
	copy(out, s.patientEvents)
	return out
}

// CreateAlert stores an alert unless an identical one exists within the
// dedup window.
func (s *Store) CreateAlert(_ context.Context, alert domain.Alert, dedup time.Duration) (domain.Alert, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.nowFn()
	cutoff := now.Add(-dedup)
	for _, existing := range s.alerts {
		if existing.Metric == alert.Metric &&
			existing.Department == alert.Department &&
			existing.Severity == alert.Severity &&
			!existing.CreatedAt.Before(cutoff) {
			return existing, false, nil
		}
	}
	if alert.ID == "" {
		alert.ID = newID()
	}
	alert.CreatedAt = now
	alert.UpdatedAt = now
	s.alerts = append(s.alerts, alert)
	return alert, true, nil
}

// AlertsSince returns alerts created at or after since, newest first.
func (s *Store) AlertsSince(_ context.Context, since time.Time) ([]domain.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Alert
	for _, alert := range s.alerts {
		if !alert.CreatedAt.Before(since) {
			out = append(out, alert)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// InsertPredictions batch-persists a forecast cycle.
func (s *Store) InsertPredictions(_ context.Context, predictions []domain.Prediction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range predictions {
		if predictions[i].ID == "" {
			predictions[i].ID = newID()
		}
	}
	s.predictions = append(s.predictions, predictions...)
	return nil
}

// Predictions returns persisted predictions for inspection in tests.
func (s *Store) Predictions() []domain.Prediction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Prediction, len(s.predictions))
	copy(out, s.predictions)
	return out
}

// InsertRecommendations batch-persists a recommendation cycle.
func (s *Store) InsertRecommendations(_ context.Context, recommendations []domain.Recommendation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.nowFn()
	for i := range recommendations {
		if recommendations[i].ID == "" {
			recommendations[i].ID = newID()
		}
		recommendations[i].CreatedAt = now
		recommendations[i].UpdatedAt = now
	}
	s.recommendations = append(s.recommendations, recommendations...)
	return nil
}

// Recommendations returns persisted recommendations for inspection in tests.
func (s *Store) Recommendations() []domain.Recommendation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Recommendation, len(s.recommendations))
	copy(out, s.recommendations)
	return out
}

// ListStaffShifts returns shifts filtered by department.
func (s *Store) ListStaffShifts(_ context.Context, department string) ([]domain.StaffShift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.StaffShift
	for _, shift := range s.shifts {
		if department == "" || shift.Department == department {
			out = append(out, shift)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

// CreateStaffShift stores a scheduled shift.
func (s *Store) CreateStaffShift(_ context.Context, shift domain.StaffShift) (domain.StaffShift, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if shift.ID == "" {
		shift.ID = newID()
	}
	if _, exists := s.shifts[shift.ID]; exists {
		return domain.StaffShift{}, fmt.Errorf("staff shift %q already exists", shift.ID)
	}
	if shift.End.Before(shift.Start) {
		return domain.StaffShift{}, errors.New("staff shift end precedes start")
	}
	s.shifts[shift.ID] = shift
	return shift, nil
}

// AppendAudit appends an audit trail record.
func (s *Store) AppendAudit(_ context.Context, entry domain.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.ID == "" {
		entry.ID = newID()
	}
	s.audit = append(s.audit, entry)
	return nil
}

// AuditEntries returns appended audit records for inspection in tests.
func (s *Store) AuditEntries() []domain.AuditEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.AuditEntry, len(s.audit))
	copy(out, s.audit)
	return out
}

// Close implements the store contract; the memory store holds no resources.
func (s *Store) Close() error { return nil }
