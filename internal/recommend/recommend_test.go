package recommend

import (
	"context"
	"testing"
	"time"

	"wardcore/internal/infra/persistence/memory"
	"wardcore/pkg/domain"
)

type fakeSource struct {
	snapshot domain.MetricSnapshot
	beds     []domain.DepartmentBeds
}

func (f fakeSource) CurrentMetrics() domain.MetricSnapshot { return f.snapshot }
func (f fakeSource) Beds() []domain.DepartmentBeds         { return f.beds }

func calmSnapshot(at time.Time) domain.MetricSnapshot {
	return domain.MetricSnapshot{
		EDLoad:         60,
		WaitingCount:   5,
		BedsFree:       40,
		StaffLoad:      70,
		RoomsFree:      10,
		ORLoad:         50,
		TransportQueue: 2,
		At:             at,
	}
}

func TestGenerateQuietStateProducesNothing(t *testing.T) {
	store := memory.NewStore()
	at := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	eng := New(fakeSource{snapshot: calmSnapshot(at)}, store, nil)
	got, err := eng.Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("recommendations = %d, want 0", len(got))
	}
	if stored := store.Recommendations(); len(stored) != 0 {
		t.Fatalf("stored = %d, want 0", len(stored))
	}
}

func TestGenerateOverloadFiresStaffingAndCapacity(t *testing.T) {
	store := memory.NewStore()
	at := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	snapshot := calmSnapshot(at)
	snapshot.EDLoad = 92
	snapshot.BedsFree = 6
	snapshot.RoomsFree = 1
	beds := []domain.DepartmentBeds{
		{Department: "ER", Total: 20, Occupied: 19, Available: 1},
		{Department: "ICU", Total: 12, Occupied: 6, Available: 6},
	}
	eng := New(fakeSource{snapshot: snapshot, beds: beds}, store, nil)
	got, err := eng.Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	byKind := map[string]domain.Recommendation{}
	for _, rec := range got {
		byKind[rec.Kind] = rec
	}
	staffing, ok := byKind[KindStaffingReassignment]
	if !ok {
		t.Fatal("missing staffing recommendation")
	}
	if staffing.Priority != "high" || staffing.Department != "ER" {
		t.Fatalf("staffing = %+v", staffing)
	}
	overflow, ok := byKind[KindOpenOverflowBeds]
	if !ok {
		t.Fatal("missing overflow recommendation")
	}
	if overflow.Department != "ER" {
		t.Fatalf("overflow targets %q, want ER", overflow.Department)
	}
	if _, ok := byKind[KindRoomAllocation]; !ok {
		t.Fatal("missing room allocation recommendation")
	}
	if stored := store.Recommendations(); len(stored) != len(got) {
		t.Fatalf("stored %d, want %d", len(stored), len(got))
	}
	for _, rec := range got {
		if !rec.CreatedAt.Equal(at) {
			t.Fatalf("created at %s, want %s", rec.CreatedAt, at)
		}
	}
}

func TestGenerateStaffLoadFallback(t *testing.T) {
	store := memory.NewStore()
	snapshot := calmSnapshot(time.Now())
	snapshot.StaffLoad = 93
	eng := New(fakeSource{snapshot: snapshot}, store, nil)
	got, err := eng.Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(got) != 1 || got[0].Kind != KindStaffingReassignment || got[0].Priority != "medium" {
		t.Fatalf("got = %+v, want one medium staffing recommendation", got)
	}
}

func TestGenerateInventoryAndTransportRules(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	if _, err := store.CreateInventoryItem(ctx, domain.InventoryItem{
		Name: "Infusion sets", Department: "ICU", Quantity: 3, ReorderLevel: 10,
	}); err != nil {
		t.Fatalf("CreateInventoryItem: %v", err)
	}
	if _, err := store.CreateInventoryItem(ctx, domain.InventoryItem{
		Name: "Gloves", Department: "ER", Quantity: 500, ReorderLevel: 100,
	}); err != nil {
		t.Fatalf("CreateInventoryItem: %v", err)
	}
	snapshot := calmSnapshot(time.Now())
	snapshot.TransportQueue = 12
	eng := New(fakeSource{snapshot: snapshot}, store, nil)
	got, err := eng.Generate(ctx)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("recommendations = %d, want 2", len(got))
	}
	kinds := map[string]bool{}
	for _, rec := range got {
		kinds[rec.Kind] = true
	}
	if !kinds[KindInventoryOrder] || !kinds[KindTransportDispatch] {
		t.Fatalf("kinds = %v", kinds)
	}
}
