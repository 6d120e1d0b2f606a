// Package domain defines the persistent entities, value types, and alert
// rule primitives shared by the wardcore simulation, forecasting, and
// storage layers.
package domain

import "time"

// MetricType identifies a scalar dashboard metric series.
type MetricType string

// Scalar metrics maintained by the simulation engine and persisted to the
// append-only metric log.
const (
	// MetricEDLoad is emergency department utilization in percent.
	MetricEDLoad MetricType = "ed_load"
	// MetricWaitingCount is the number of patients waiting in the ED.
	MetricWaitingCount MetricType = "waiting_count"
	// MetricBedsFree is the hospital-wide free bed count, always derived
	// from the department bed ledger.
	MetricBedsFree MetricType = "beds_free"
	// MetricStaffLoad is aggregate staffing utilization in percent.
	MetricStaffLoad MetricType = "staff_load"
	// MetricRoomsFree is the count of free treatment rooms.
	MetricRoomsFree MetricType = "rooms_free"
	// MetricORLoad is operating room utilization in percent.
	MetricORLoad MetricType = "or_load"
	// MetricTransportQueue is the number of queued patient transports.
	MetricTransportQueue MetricType = "transport_queue"
	// MetricInventoryRisk counts inventory items at or below reorder level.
	MetricInventoryRisk MetricType = "inventory_risk_count"
)

// ScalarMetrics lists the metric series persisted on every tick, in stable
// order. MetricInventoryRisk is derived from the inventory table on read and
// therefore not part of the per-tick batch.
var ScalarMetrics = []MetricType{
	MetricEDLoad,
	MetricWaitingCount,
	MetricBedsFree,
	MetricStaffLoad,
	MetricRoomsFree,
	MetricORLoad,
	MetricTransportQueue,
}

// Unit returns the display unit for a metric series.
func (m MetricType) Unit() string {
	switch m {
	case MetricEDLoad, MetricStaffLoad, MetricORLoad:
		return "percent"
	default:
		return "count"
	}
}

// Metric is one immutable point in the append-only metric log.
type Metric struct {
	Timestamp  time.Time  `json:"timestamp"`
	Type       MetricType `json:"metric_type"`
	Value      float64    `json:"value"`
	Unit       string     `json:"unit"`
	Department string     `json:"department,omitempty"`
}

// Severity grades an alert.
type Severity string

// Alert severities. No alert is raised below the medium bound.
const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
)

// Base contains common fields for mutable entity records.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Alert is a persisted threshold violation. At most one alert per
// (metric type, department, severity) is stored within the dedup window.
type Alert struct {
	Base
	Metric     MetricType `json:"metric_type"`
	Severity   Severity   `json:"severity"`
	Message    string     `json:"message"`
	Department string     `json:"department,omitempty"`
	Value      float64    `json:"value"`
}

// DepartmentBeds is the per-department bed ledger entry. The invariant
// Occupied + Available == Total holds after every mutation.
type DepartmentBeds struct {
	Department string `json:"department"`
	Total      int    `json:"total_beds"`
	Occupied   int    `json:"occupied_beds"`
	Available  int    `json:"available_beds"`
}

// EventType identifies a stochastic special event.
type EventType string

// Special event types injected by the simulation engine.
const (
	EventSurge            EventType = "surge"
	EventEquipmentFailure EventType = "equipment_failure"
	EventStaffingShortage EventType = "staffing_shortage"
	// EventMassCasualty ("ManV") is the most severe demand spike and only
	// fires in demo mode.
	EventMassCasualty EventType = "manv"
)

// SimulationEvent is a time-boxed special event. It is active while
// now < StartTime + Duration and retired afterwards, at which point
// EndTime is persisted.
type SimulationEvent struct {
	ID                  string     `json:"id"`
	Type                EventType  `json:"event_type"`
	StartTime           time.Time  `json:"start_time"`
	DurationMinutes     int        `json:"duration_minutes"`
	Intensity           float64    `json:"intensity,omitempty"`
	AffectedDepartments []string   `json:"affected_departments,omitempty"`
	Description         string     `json:"description,omitempty"`
	EndTime             *time.Time `json:"end_time,omitempty"`
}

// Expired reports whether the event's time box has elapsed at now.
func (e SimulationEvent) Expired(now time.Time) bool {
	return !now.Before(e.StartTime.Add(time.Duration(e.DurationMinutes) * time.Minute))
}

// TransportStatus enumerates transport workflow states.
type TransportStatus string

// Canonical transport statuses.
const (
	TransportPlanned    TransportStatus = "planned"
	TransportInProgress TransportStatus = "in_progress"
	TransportCompleted  TransportStatus = "completed"
	TransportCancelled  TransportStatus = "cancelled"
)

// TransportPriority grades transport urgency.
type TransportPriority string

// Transport priorities generated by discharge side effects.
const (
	TransportPriorityMedium TransportPriority = "medium"
	TransportPriorityLow    TransportPriority = "low"
)

// Transport is a patient transport order.
type Transport struct {
	Base
	Origin           string            `json:"origin"`
	Destination      string            `json:"destination"`
	Priority         TransportPriority `json:"priority"`
	Status           TransportStatus   `json:"status"`
	EstimatedMinutes int               `json:"estimated_time_minutes"`
	PlannedStart     *time.Time        `json:"planned_start_time,omitempty"`
	StartedAt        *time.Time        `json:"start_time,omitempty"`
	ExpectedEnd      *time.Time        `json:"expected_completion_time,omitempty"`
}

// InventoryItem tracks a consumable stock position per department.
type InventoryItem struct {
	Base
	Name         string `json:"name"`
	Department   string `json:"department"`
	Quantity     int    `json:"quantity"`
	ReorderLevel int    `json:"reorder_level"`
}

// Critical reports whether the item is at or below its reorder level.
func (i InventoryItem) Critical() bool { return i.Quantity <= i.ReorderLevel }

// DeviceStatus enumerates device maintenance states.
type DeviceStatus string

// Canonical device statuses used by the maintenance workflow.
const (
	DeviceOperational    DeviceStatus = "operational"
	DeviceMaintenanceDue DeviceStatus = "maintenance_due"
	DeviceInMaintenance  DeviceStatus = "in_maintenance"
	DeviceFailed         DeviceStatus = "failed"
)

// Device is a medical device subject to scheduled maintenance.
type Device struct {
	Base
	Name            string       `json:"name"`
	Department      string       `json:"department"`
	Status          DeviceStatus `json:"status"`
	LastMaintenance *time.Time   `json:"last_maintenance,omitempty"`
	NextMaintenance *time.Time   `json:"next_maintenance,omitempty"`
}

// Operation is an appended OR operation record created by the material
// consumption side effect.
type Operation struct {
	ID              string    `json:"id"`
	Department      string    `json:"department"`
	Kind            string    `json:"operation_type"`
	DurationMinutes int       `json:"duration_minutes"`
	StartedAt       time.Time `json:"started_at"`
}

// PatientEventKind distinguishes arrival from discharge micro-events.
type PatientEventKind string

// Patient micro-event kinds.
const (
	PatientArrived    PatientEventKind = "arrival"
	PatientDischarged PatientEventKind = "discharge"
)

// PatientEvent is an appended arrival/discharge record.
type PatientEvent struct {
	ID         string           `json:"id"`
	Kind       PatientEventKind `json:"kind"`
	Department string           `json:"department"`
	OccurredAt time.Time        `json:"occurred_at"`
}

// PredictionType identifies a forecast family.
type PredictionType string

// Supported forecast types.
const (
	PredictPatientArrival PredictionType = "patient_arrival"
	PredictBedDemand      PredictionType = "bed_demand"
)

// Prediction is a confidence-scored point forecast. Predictions are
// computed on demand, batch persisted, and superseded by the next cycle.
type Prediction struct {
	ID             string             `json:"id"`
	Type           PredictionType     `json:"prediction_type"`
	Value          float64            `json:"predicted_value"`
	Confidence     float64            `json:"confidence"`
	HorizonMinutes int                `json:"time_horizon_minutes"`
	Department     string             `json:"department"`
	ModelVersion   string             `json:"model_version"`
	Factors        map[string]float64 `json:"explanation,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
}

// Recommendation is a persisted actionable suggestion produced by the
// threshold rule engine.
type Recommendation struct {
	Base
	Kind       string `json:"recommendation_type"`
	Title      string `json:"title"`
	Detail     string `json:"detail"`
	Priority   string `json:"priority"`
	Department string `json:"department,omitempty"`
	Applied    bool   `json:"applied"`
}

// StaffShift is one scheduled staffing block.
type StaffShift struct {
	ID         string    `json:"id"`
	Department string    `json:"department"`
	Role       string    `json:"role"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	HeadCount  int       `json:"head_count"`
}

// AuditEntry captures one audit trail record.
type AuditEntry struct {
	ID         string         `json:"id"`
	Action     string         `json:"action"`
	Actor      string         `json:"actor"`
	Detail     map[string]any `json:"detail,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}
