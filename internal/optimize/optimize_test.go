package optimize

import (
	"testing"
	"time"

	"wardcore/pkg/domain"
)

func TestMaintenanceTimesPrefersQuietHours(t *testing.T) {
	from := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC) // Monday
	ledger := domain.DepartmentBeds{Department: "ICU", Total: 12, Occupied: 10, Available: 2}
	slots := MaintenanceTimes(from, 5, ledger)
	if len(slots) != 5 {
		t.Fatalf("slots = %d, want 5", len(slots))
	}
	for i := 1; i < len(slots); i++ {
		if slots[i].Score > slots[i-1].Score {
			t.Fatalf("slots not sorted descending at %d: %.2f > %.2f", i, slots[i].Score, slots[i-1].Score)
		}
	}
	best := slots[0]
	if h := best.Start.Hour(); h != 22 && h != 6 {
		t.Fatalf("best slot at hour %d, want a night hour", h)
	}
	if best.Reason == "" {
		t.Fatal("expected a reason on scored slots")
	}
	for _, slot := range slots {
		if !slot.Start.After(from) {
			t.Fatalf("slot %s not after %s", slot.Start, from)
		}
	}
}

func TestMaintenanceTimesWeekendDiscount(t *testing.T) {
	ledger := domain.DepartmentBeds{Department: "Surgery", Total: 10, Occupied: 5, Available: 5}
	friday := time.Date(2025, 6, 6, 14, 0, 0, 0, time.UTC)
	saturday := time.Date(2025, 6, 7, 14, 0, 0, 0, time.UTC)
	if expectedLoad(saturday) >= expectedLoad(friday) {
		t.Fatalf("weekend load %.2f not below weekday load %.2f", expectedLoad(saturday), expectedLoad(friday))
	}
	slots := MaintenanceTimes(friday, 1, ledger)
	if len(slots) != 1 {
		t.Fatalf("slots = %d, want 1", len(slots))
	}
}

func TestMaintenanceTimesDefaultsCandidateCount(t *testing.T) {
	slots := MaintenanceTimes(time.Now(), 0, domain.DepartmentBeds{Department: "ER", Total: 20, Occupied: 10})
	if len(slots) != 5 {
		t.Fatalf("slots = %d, want default 5", len(slots))
	}
}

func TestTransportRoutePriorityDominatesAge(t *testing.T) {
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	mk := func(id string, priority domain.TransportPriority, ageMinutes int) domain.Transport {
		tr := domain.Transport{Priority: priority, Status: domain.TransportPlanned}
		tr.ID = id
		tr.CreatedAt = now.Add(-time.Duration(ageMinutes) * time.Minute)
		return tr
	}
	transports := []domain.Transport{
		mk("old-low", domain.TransportPriorityLow, 180),
		mk("fresh-medium", domain.TransportPriorityMedium, 1),
	}
	ordered := TransportRoute(transports, now)
	if ordered[0].ID != "fresh-medium" {
		t.Fatalf("first = %s, want fresh-medium", ordered[0].ID)
	}
	if transports[0].ID != "old-low" {
		t.Fatal("input slice was reordered")
	}
}

func TestTransportRouteAgeBreaksTiesAndSaturates(t *testing.T) {
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	mk := func(id string, ageMinutes int) domain.Transport {
		tr := domain.Transport{Priority: domain.TransportPriorityLow}
		tr.ID = id
		tr.CreatedAt = now.Add(-time.Duration(ageMinutes) * time.Minute)
		return tr
	}
	ordered := TransportRoute([]domain.Transport{mk("young", 10), mk("old", 45)}, now)
	if ordered[0].ID != "old" {
		t.Fatalf("first = %s, want old", ordered[0].ID)
	}
	// Beyond one hour the age bonus saturates, so the stable sort keeps
	// creation order.
	ordered = TransportRoute([]domain.Transport{mk("first", 90), mk("second", 240)}, now)
	if ordered[0].ID != "first" {
		t.Fatalf("first = %s, want first (stable order past saturation)", ordered[0].ID)
	}
}

func TestResourceAllocationFavorsUtilization(t *testing.T) {
	beds := []domain.DepartmentBeds{
		{Department: "ER", Total: 20, Occupied: 18, Available: 2},
		{Department: "Maternity", Total: 14, Occupied: 3, Available: 11},
		{Department: "ICU", Total: 12, Occupied: 9, Available: 3},
	}
	allocations := ResourceAllocation(beds, map[string]int{"nurses": 10})
	if len(allocations) == 0 {
		t.Fatal("expected allocations")
	}
	if allocations[0].Department != "ER" {
		t.Fatalf("first allocation to %s, want ER", allocations[0].Department)
	}
	total := 0
	byDept := map[string]int{}
	for _, a := range allocations {
		if a.Resource != "nurses" {
			t.Fatalf("unexpected resource %q", a.Resource)
		}
		total += a.Amount
		byDept[a.Department] = a.Amount
	}
	if total > 10 {
		t.Fatalf("allocated %d, pool holds 10", total)
	}
	if byDept["ER"] <= byDept["Maternity"] {
		t.Fatalf("ER share %d not above Maternity share %d", byDept["ER"], byDept["Maternity"])
	}
}

func TestResourceAllocationExhaustsPoolGreedily(t *testing.T) {
	beds := []domain.DepartmentBeds{
		{Department: "ER", Total: 10, Occupied: 9},
		{Department: "ICU", Total: 10, Occupied: 9},
		{Department: "Surgery", Total: 10, Occupied: 8},
	}
	allocations := ResourceAllocation(beds, map[string]int{"ventilators": 2})
	total := 0
	for _, a := range allocations {
		total += a.Amount
	}
	if total != 2 {
		t.Fatalf("allocated %d ventilators, want 2", total)
	}
	if allocations[len(allocations)-1].Department == "Surgery" && len(allocations) == 3 {
		t.Fatal("pool should be exhausted before the least utilized department")
	}
}

func TestResourceAllocationIdleDepartments(t *testing.T) {
	beds := []domain.DepartmentBeds{
		{Department: "ER", Total: 10, Occupied: 0},
		{Department: "ICU", Total: 0, Occupied: 0},
	}
	if got := ResourceAllocation(beds, map[string]int{"nurses": 4}); len(got) != 0 {
		t.Fatalf("allocations = %v, want none with zero utilization", got)
	}
}
