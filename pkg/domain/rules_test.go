package domain

import (
	"context"
	"testing"
	"time"
)

func TestThresholdRuleUpperBounds(t *testing.T) {
	rule := ThresholdRule{Metric: MetricEDLoad, High: 85, Medium: 75}
	ctx := context.Background()

	cases := []struct {
		value    float64
		severity Severity
		fired    bool
	}{
		{value: 74.9},
		{value: 75, severity: SeverityMedium, fired: true},
		{value: 84.9, severity: SeverityMedium, fired: true},
		{value: 85, severity: SeverityHigh, fired: true},
		{value: 97, severity: SeverityHigh, fired: true},
	}
	for _, tc := range cases {
		alerts, err := rule.Evaluate(ctx, MetricSnapshot{EDLoad: tc.value})
		if err != nil {
			t.Fatalf("evaluate: %v", err)
		}
		if !tc.fired {
			if len(alerts) != 0 {
				t.Fatalf("value %.1f: expected no alert, got %v", tc.value, alerts)
			}
			continue
		}
		if len(alerts) != 1 {
			t.Fatalf("value %.1f: expected one alert, got %d", tc.value, len(alerts))
		}
		if alerts[0].Severity != tc.severity {
			t.Fatalf("value %.1f: expected severity %s, got %s", tc.value, tc.severity, alerts[0].Severity)
		}
	}
}

func TestThresholdRuleLowerBounds(t *testing.T) {
	rule := ThresholdRule{Metric: MetricBedsFree, Direction: ThresholdBelow, High: 5, Medium: 10}
	ctx := context.Background()

	alerts, err := rule.Evaluate(ctx, MetricSnapshot{BedsFree: 11})
	if err != nil || len(alerts) != 0 {
		t.Fatalf("expected no alert at 11 free beds, got %v %v", alerts, err)
	}
	alerts, _ = rule.Evaluate(ctx, MetricSnapshot{BedsFree: 10})
	if len(alerts) != 1 || alerts[0].Severity != SeverityMedium {
		t.Fatalf("expected medium alert at 10 free beds, got %v", alerts)
	}
	alerts, _ = rule.Evaluate(ctx, MetricSnapshot{BedsFree: 5})
	if len(alerts) != 1 || alerts[0].Severity != SeverityHigh {
		t.Fatalf("expected high alert at 5 free beds, got %v", alerts)
	}
}

func TestDefaultRulesEngineCoversThresholdTable(t *testing.T) {
	engine := NewDefaultRulesEngine()
	snap := MetricSnapshot{
		EDLoad:            90,
		WaitingCount:      16,
		BedsFree:          3,
		StaffLoad:         91,
		TransportQueue:    9,
		InventoryCritical: 4,
		At:                time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC),
	}
	alerts, err := engine.Evaluate(context.Background(), snap)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(alerts) != 6 {
		t.Fatalf("expected all six threshold rules to fire high, got %d alerts", len(alerts))
	}
	for _, alert := range alerts {
		if alert.Severity != SeverityHigh {
			t.Fatalf("expected high severity for %s, got %s", alert.Metric, alert.Severity)
		}
	}
}

func TestSnapshotValueMapping(t *testing.T) {
	snap := MetricSnapshot{
		EDLoad:            61.5,
		WaitingCount:      7,
		BedsFree:          42,
		StaffLoad:         70,
		RoomsFree:         12,
		ORLoad:            55,
		TransportQueue:    3,
		InventoryCritical: 1,
	}
	for metric, want := range map[MetricType]float64{
		MetricEDLoad:         61.5,
		MetricWaitingCount:   7,
		MetricBedsFree:       42,
		MetricStaffLoad:      70,
		MetricRoomsFree:      12,
		MetricORLoad:         55,
		MetricTransportQueue: 3,
		MetricInventoryRisk:  1,
	} {
		if got := snap.Value(metric); got != want {
			t.Fatalf("metric %s: expected %.1f, got %.1f", metric, want, got)
		}
	}
	if got := snap.Value(MetricType("bogus")); got != 0 {
		t.Fatalf("unknown metric should map to zero, got %.1f", got)
	}
}

func TestMetricTypeUnits(t *testing.T) {
	if MetricEDLoad.Unit() != "percent" || MetricORLoad.Unit() != "percent" || MetricStaffLoad.Unit() != "percent" {
		t.Fatalf("load metrics should report percent")
	}
	if MetricBedsFree.Unit() != "count" || MetricWaitingCount.Unit() != "count" {
		t.Fatalf("count metrics should report count")
	}
}

func TestSimulationEventExpiry(t *testing.T) {
	start := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	event := SimulationEvent{Type: EventSurge, StartTime: start, DurationMinutes: 30}
	if event.Expired(start.Add(29 * time.Minute)) {
		t.Fatalf("event should still be active before duration elapses")
	}
	if !event.Expired(start.Add(30 * time.Minute)) {
		t.Fatalf("event should expire exactly at start+duration")
	}
}

func TestInventoryItemCritical(t *testing.T) {
	item := InventoryItem{Quantity: 4, ReorderLevel: 4}
	if !item.Critical() {
		t.Fatalf("quantity at reorder level should be critical")
	}
	item.Quantity = 5
	if item.Critical() {
		t.Fatalf("quantity above reorder level should not be critical")
	}
}
