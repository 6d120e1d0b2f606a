// Package recommend maps live metric thresholds to actionable
// recommendation templates and persists each generated batch.
package recommend

import (
	"context"
	"fmt"
	"sort"
	"time"

	"wardcore/internal/obs"
	"wardcore/pkg/domain"
)

// Recommendation kinds understood by the simulation's effect applier.
const (
	KindStaffingReassignment = "staffing_reassignment"
	KindOpenOverflowBeds     = "open_overflow_beds"
	KindRoomAllocation       = "room_allocation"
	KindInventoryOrder       = "inventory_order"
	KindTransportDispatch    = "transport_dispatch"
)

// MetricSource exposes the live state a recommendation cycle reads.
type MetricSource interface {
	CurrentMetrics() domain.MetricSnapshot
	Beds() []domain.DepartmentBeds
}

// Engine derives recommendations from a snapshot of live metrics, the bed
// ledger, and inventory status. It keeps no state between cycles.
type Engine struct {
	source   MetricSource
	store    domain.Store
	recorder obs.Recorder
}

// New builds a recommendation engine over a metric source and store.
func New(source MetricSource, store domain.Store, recorder obs.Recorder) *Engine {
	if recorder == nil {
		recorder = obs.NoopRecorder{}
	}
	return &Engine{source: source, store: store, recorder: recorder}
}

// Generate runs one recommendation cycle: evaluate thresholds against the
// live snapshot, persist the resulting batch, and return it. A cycle with
// nothing to recommend persists nothing.
func (e *Engine) Generate(ctx context.Context) ([]domain.Recommendation, error) {
	started := time.Now()
	snapshot := e.source.CurrentMetrics()
	beds := e.source.Beds()
	inventory, err := e.store.InventoryStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("read inventory: %w", err)
	}

	var out []domain.Recommendation
	out = append(out, staffingRules(snapshot)...)
	out = append(out, capacityRules(snapshot, beds)...)
	out = append(out, inventoryRules(inventory)...)
	out = append(out, transportRules(snapshot)...)
	for i := range out {
		out[i].CreatedAt = snapshot.At
		out[i].UpdatedAt = snapshot.At
	}
	if len(out) == 0 {
		return nil, nil
	}
	if err := e.store.InsertRecommendations(ctx, out); err != nil {
		e.recorder.Observe(ctx, "recommend.cycle", false, time.Since(started))
		return nil, fmt.Errorf("persist recommendations: %w", err)
	}
	e.recorder.Observe(ctx, "recommend.cycle", true, time.Since(started))
	return out, nil
}

// staffingRules fires when emergency or staff load crosses its threshold.
func staffingRules(s domain.MetricSnapshot) []domain.Recommendation {
	var out []domain.Recommendation
	if s.EDLoad >= 85 {
		out = append(out, domain.Recommendation{
			Kind:       KindStaffingReassignment,
			Title:      "Reassign staff to the emergency department",
			Detail:     fmt.Sprintf("Emergency department load is at %.0f%%. Moving support staff relieves triage and registration.", s.EDLoad),
			Priority:   "high",
			Department: "ER",
		})
	} else if s.StaffLoad >= 90 {
		out = append(out, domain.Recommendation{
			Kind:     KindStaffingReassignment,
			Title:    "Rebalance shift coverage",
			Detail:   fmt.Sprintf("Staff load is at %.0f%%. Redistributing on-call staff lowers the peak.", s.StaffLoad),
			Priority: "medium",
		})
	}
	return out
}

// capacityRules fires on bed and room scarcity.
func capacityRules(s domain.MetricSnapshot, beds []domain.DepartmentBeds) []domain.Recommendation {
	var out []domain.Recommendation
	if s.BedsFree <= 10 {
		out = append(out, domain.Recommendation{
			Kind:       KindOpenOverflowBeds,
			Title:      "Open overflow beds",
			Detail:     fmt.Sprintf("Only %d beds remain free. Opening overflow capacity in the busiest departments buys admission headroom.", s.BedsFree),
			Priority:   "high",
			Department: mostUtilized(beds),
		})
	}
	if s.RoomsFree <= 2 {
		out = append(out, domain.Recommendation{
			Kind:     KindRoomAllocation,
			Title:    "Release treatment rooms",
			Detail:   fmt.Sprintf("%d treatment rooms free. Reallocating scheduled rooms shortens waiting time.", s.RoomsFree),
			Priority: "medium",
		})
	}
	return out
}

// inventoryRules fires one order suggestion per critical stock position.
func inventoryRules(items []domain.InventoryItem) []domain.Recommendation {
	var out []domain.Recommendation
	for _, item := range items {
		if !item.Critical() {
			continue
		}
		out = append(out, domain.Recommendation{
			Kind:       KindInventoryOrder,
			Title:      fmt.Sprintf("Reorder %s", item.Name),
			Detail:     fmt.Sprintf("%s in %s is at %d units (reorder level %d).", item.Name, item.Department, item.Quantity, item.ReorderLevel),
			Priority:   "medium",
			Department: item.Department,
		})
	}
	return out
}

// transportRules fires when the transport queue backs up.
func transportRules(s domain.MetricSnapshot) []domain.Recommendation {
	if s.TransportQueue < 10 {
		return nil
	}
	return []domain.Recommendation{{
		Kind:     KindTransportDispatch,
		Title:    "Dispatch queued transports",
		Detail:   fmt.Sprintf("%d transports are queued. Prioritizing dispatch frees beds upstream.", s.TransportQueue),
		Priority: "medium",
	}}
}

func mostUtilized(beds []domain.DepartmentBeds) string {
	ranked := make([]domain.DepartmentBeds, len(beds))
	copy(ranked, beds)
	sort.SliceStable(ranked, func(i, j int) bool {
		return utilization(ranked[i]) > utilization(ranked[j])
	})
	if len(ranked) == 0 {
		return ""
	}
	return ranked[0].Department
}

func utilization(ledger domain.DepartmentBeds) float64 {
	if ledger.Total == 0 {
		return 0
	}
	return float64(ledger.Occupied) / float64(ledger.Total)
}
