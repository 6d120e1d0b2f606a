package domain

import (
	"context"
	"fmt"
	"time"
)

// MetricSnapshot is the instantaneous scalar view evaluated by alert rules.
// It is a value copy; rules never observe partial engine state.
type MetricSnapshot struct {
	EDLoad            float64   `json:"ed_load"`
	WaitingCount      int       `json:"waiting_count"`
	BedsFree          int       `json:"beds_free"`
	StaffLoad         float64   `json:"staff_load"`
	RoomsFree         int       `json:"rooms_free"`
	ORLoad            float64   `json:"or_load"`
	TransportQueue    int       `json:"transport_queue"`
	InventoryCritical int       `json:"inventory_risk_count"`
	At                time.Time `json:"at"`
}

// Value returns the snapshot value for a metric series.
func (s MetricSnapshot) Value(m MetricType) float64 {
	switch m {
	case MetricEDLoad:
		return s.EDLoad
	case MetricWaitingCount:
		return float64(s.WaitingCount)
	case MetricBedsFree:
		return float64(s.BedsFree)
	case MetricStaffLoad:
		return s.StaffLoad
	case MetricRoomsFree:
		return float64(s.RoomsFree)
	case MetricORLoad:
		return s.ORLoad
	case MetricTransportQueue:
		return float64(s.TransportQueue)
	case MetricInventoryRisk:
		return float64(s.InventoryCritical)
	default:
		return 0
	}
}

// AlertRule evaluates a snapshot and proposes zero or more alerts.
type AlertRule interface {
	Name() string
	Evaluate(ctx context.Context, snap MetricSnapshot) ([]Alert, error)
}

// RulesEngine orchestrates alert rule evaluation.
type RulesEngine struct {
	rules []AlertRule
}

// NewRulesEngine constructs an empty engine instance.
func NewRulesEngine() *RulesEngine {
	return &RulesEngine{}
}

// Register appends a rule to the engine.
func (e *RulesEngine) Register(rule AlertRule) {
	e.rules = append(e.rules, rule)
}

// Evaluate executes all registered rules and aggregates proposed alerts.
func (e *RulesEngine) Evaluate(ctx context.Context, snap MetricSnapshot) ([]Alert, error) {
	var combined []Alert
	for _, rule := range e.rules {
		alerts, err := rule.Evaluate(ctx, snap)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", rule.Name(), err)
		}
		combined = append(combined, alerts...)
	}
	return combined, nil
}

// ThresholdDirection states which side of the bound violates a threshold.
type ThresholdDirection int

// Threshold directions.
const (
	// ThresholdAbove fires when the value meets or exceeds the bound.
	ThresholdAbove ThresholdDirection = iota
	// ThresholdBelow fires when the value meets or falls below the bound.
	ThresholdBelow
)

// ThresholdRule raises a high or medium alert when a metric crosses its
// configured bounds. High takes precedence over medium; only one alert is
// proposed per evaluation.
type ThresholdRule struct {
	Metric    MetricType
	Direction ThresholdDirection
	High      float64
	Medium    float64
}

// Name implements AlertRule.
func (r ThresholdRule) Name() string { return "threshold_" + string(r.Metric) }

// Evaluate implements AlertRule.
func (r ThresholdRule) Evaluate(_ context.Context, snap MetricSnapshot) ([]Alert, error) {
	value := snap.Value(r.Metric)
	severity, ok := r.classify(value)
	if !ok {
		return nil, nil
	}
	return []Alert{{
		Metric:   r.Metric,
		Severity: severity,
		Value:    value,
		Message:  fmt.Sprintf("%s at %.1f breaches %s threshold", r.Metric, value, severity),
	}}, nil
}

func (r ThresholdRule) classify(value float64) (Severity, bool) {
	switch r.Direction {
	case ThresholdBelow:
		if value <= r.High {
			return SeverityHigh, true
		}
		if value <= r.Medium {
			return SeverityMedium, true
		}
	default:
		if value >= r.High {
			return SeverityHigh, true
		}
		if value >= r.Medium {
			return SeverityMedium, true
		}
	}
	return "", false
}

// NewDefaultRulesEngine builds a rules engine with the built-in alert
// threshold set.
func NewDefaultRulesEngine() *RulesEngine {
	engine := NewRulesEngine()
	engine.Register(ThresholdRule{Metric: MetricEDLoad, High: 85, Medium: 75})
	engine.Register(ThresholdRule{Metric: MetricWaitingCount, High: 15, Medium: 10})
	engine.Register(ThresholdRule{Metric: MetricBedsFree, Direction: ThresholdBelow, High: 5, Medium: 10})
	engine.Register(ThresholdRule{Metric: MetricTransportQueue, High: 8, Medium: 5})
	engine.Register(ThresholdRule{Metric: MetricStaffLoad, High: 90, Medium: 80})
	engine.Register(ThresholdRule{Metric: MetricInventoryRisk, High: 3, Medium: 1})
	return engine
}
