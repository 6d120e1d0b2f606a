package sim

import "wardcore/pkg/domain"

// departmentSeed fixes a department's bed count and shaping behavior. The
// ledger itself lives in engine state and in the store; this table only
// bootstraps an empty deployment.
type departmentSeed struct {
	name        string
	totalBeds   int
	baseUtil    float64
	sensitivity float64
}

var departmentSeeds = []departmentSeed{
	{name: "ER", totalBeds: 20, baseUtil: 0.75, sensitivity: 1.30},
	{name: "ICU", totalBeds: 12, baseUtil: 0.85, sensitivity: 1.10},
	{name: "Surgery", totalBeds: 25, baseUtil: 0.70, sensitivity: 1.20},
	{name: "Internal Medicine", totalBeds: 40, baseUtil: 0.80, sensitivity: 1.00},
	{name: "Cardiology", totalBeds: 18, baseUtil: 0.75, sensitivity: 1.05},
	{name: "Orthopedics", totalBeds: 22, baseUtil: 0.65, sensitivity: 1.00},
	{name: "Pediatrics", totalBeds: 15, baseUtil: 0.60, sensitivity: 1.15},
	{name: "Maternity", totalBeds: 14, baseUtil: 0.55, sensitivity: 0.90},
}

// arrivalWeights drives the weighted department choice for patient arrivals.
// ER dominates.
var arrivalWeights = []struct {
	department string
	weight     float64
}{
	{"ER", 0.35},
	{"Internal Medicine", 0.15},
	{"Surgery", 0.12},
	{"Cardiology", 0.10},
	{"Orthopedics", 0.08},
	{"Pediatrics", 0.08},
	{"ICU", 0.07},
	{"Maternity", 0.05},
}

// transportDestinations is the fixed pool of discharge transport targets.
var transportDestinations = []string{
	"Rehaklinik Nord",
	"Seniorenresidenz Am Park",
	"Klinikum West",
	"Pflegeheim St. Anna",
	"Kurzentrum Bergblick",
	"Home (assisted)",
}

var operationTypes = []string{
	"appendectomy",
	"hip replacement",
	"bypass",
	"arthroscopy",
	"cesarean section",
	"cholecystectomy",
}

const (
	// historyCap bounds the in-memory ring buffer per metric series.
	historyCap = 1000
	// transportQueueCap caps the transport queue metric.
	transportQueueCap = 20
)

// eventTrigger describes the per-tick demo-mode trigger for one event type.
type eventTrigger struct {
	eventType   domain.EventType
	probability float64
	minMinutes  int
	maxMinutes  int
	minIntense  float64
	maxIntense  float64
	affected    []string
	description string
}

var eventTriggers = []eventTrigger{
	{
		eventType:   domain.EventSurge,
		probability: 0.15,
		minMinutes:  30, maxMinutes: 90,
		minIntense: 1.3, maxIntense: 1.8,
		affected:    []string{"ER"},
		description: "patient surge in the emergency department",
	},
	{
		eventType:   domain.EventEquipmentFailure,
		probability: 0.08,
		minMinutes:  45, maxMinutes: 120,
		description: "critical equipment failure",
	},
	{
		eventType:   domain.EventStaffingShortage,
		probability: 0.10,
		minMinutes:  60, maxMinutes: 180,
		description: "short-notice staffing shortage",
	},
	{
		eventType:   domain.EventMassCasualty,
		probability: 0.05,
		minMinutes:  60, maxMinutes: 120,
		minIntense: 2.0, maxIntense: 3.0,
		affected:    []string{"ER", "ICU", "Surgery"},
		description: "mass casualty incident",
	},
}
