package sim

import (
	"context"
	"testing"
	"time"

	"wardcore/internal/infra/persistence/memory"
	"wardcore/pkg/domain"
)

func newTestEngine(t *testing.T, at time.Time, demo bool) (*Engine, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	store.SetNowFunc(func() time.Time { return at })
	engine, err := NewEngine(context.Background(), Options{
		Store:    store,
		Seed:     42,
		Now:      func() time.Time { return at },
		DemoMode: demo,
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return engine, store
}

func TestSeededCapacityMatchesDepartmentTable(t *testing.T) {
	engine, store := newTestEngine(t, time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC), false)
	beds := engine.Beds()
	if len(beds) != len(departmentSeeds) {
		t.Fatalf("expected %d departments, got %d", len(departmentSeeds), len(beds))
	}
	for _, ledger := range beds {
		if ledger.Occupied+ledger.Available != ledger.Total {
			t.Fatalf("seed violates ledger invariant: %+v", ledger)
		}
	}
	persisted, err := store.CapacityOverview(context.Background())
	if err != nil {
		t.Fatalf("capacity overview: %v", err)
	}
	if len(persisted) != len(departmentSeeds) {
		t.Fatalf("seed not persisted: %d rows", len(persisted))
	}
}

func TestTickPreservesBedInvariant(t *testing.T) {
	engine, _ := newTestEngine(t, time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC), true)
	ctx := context.Background()
	for i := 0; i < 50; i++ {
		engine.Tick(ctx)
		free := 0
		for _, ledger := range engine.Beds() {
			if ledger.Occupied+ledger.Available != ledger.Total {
				t.Fatalf("tick %d violates ledger invariant: %+v", i, ledger)
			}
			if ledger.Occupied < 0 || ledger.Available < 0 {
				t.Fatalf("tick %d produced negative counts: %+v", i, ledger)
			}
			free += ledger.Available
		}
		if snap := engine.CurrentMetrics(); snap.BedsFree != free {
			t.Fatalf("tick %d: beds_free %d != ledger sum %d", i, snap.BedsFree, free)
		}
	}
}

func TestTickKeepsMetricsWithinBounds(t *testing.T) {
	engine, _ := newTestEngine(t, time.Date(2025, 6, 7, 15, 0, 0, 0, time.UTC), true)
	ctx := context.Background()
	for i := 0; i < 50; i++ {
		engine.Tick(ctx)
		snap := engine.CurrentMetrics()
		if snap.EDLoad < 0 || snap.EDLoad > 98 {
			t.Fatalf("ed_load out of range: %v", snap.EDLoad)
		}
		if snap.StaffLoad < 0 || snap.StaffLoad > 98 {
			t.Fatalf("staff_load out of range: %v", snap.StaffLoad)
		}
		if snap.WaitingCount < 0 || snap.TransportQueue < 0 || snap.TransportQueue > transportQueueCap {
			t.Fatalf("queue metrics out of range: %+v", snap)
		}
	}
}

func TestRoomsFreeScalesWithShaping(t *testing.T) {
	ctx := context.Background()
	average := func(at time.Time) float64 {
		engine, _ := newTestEngine(t, at, false)
		total := 0
		for i := 0; i < 50; i++ {
			engine.Tick(ctx)
			total += engine.CurrentMetrics().RoomsFree
		}
		return float64(total) / 50
	}
	// rooms_free shapes multiplicatively like the other scalars: base 12
	// scaled by 1.25 at peak hours versus 0.70 at night.
	peak := average(time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC))
	night := average(time.Date(2025, 6, 2, 3, 0, 0, 0, time.UTC))
	if peak <= night {
		t.Fatalf("rooms free should peak with load shaping: peak=%.1f night=%.1f", peak, night)
	}
	if peak < 13 || peak > 17 {
		t.Fatalf("peak rooms free average %.1f outside expected band around 15", peak)
	}
	if night < 6.4 || night > 10.4 {
		t.Fatalf("night rooms free average %.1f outside expected band around 8.4", night)
	}
}

func TestCurrentMetricsIdempotentBetweenTicks(t *testing.T) {
	at := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	engine, _ := newTestEngine(t, at, false)
	engine.Tick(context.Background())
	first := engine.CurrentMetrics()
	second := engine.CurrentMetrics()
	if first != second {
		t.Fatalf("reads between ticks differ: %+v vs %+v", first, second)
	}
}

func TestArrivalDischargeBalance(t *testing.T) {
	engine, _ := newTestEngine(t, time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC), false)
	before := engine.CurrentMetrics().BedsFree
	engine.mu.Lock()
	engine.occupyBedLocked("Surgery")
	engine.releaseBedLocked("Surgery")
	engine.mu.Unlock()
	if after := engine.CurrentMetrics().BedsFree; after != before {
		t.Fatalf("beds_free changed across balanced arrival/discharge: %d -> %d", before, after)
	}
}

func TestSurgeIntensification(t *testing.T) {
	at := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	engine, _ := newTestEngine(t, at, false)
	ctx := context.Background()
	engine.mu.Lock()
	engine.state.edLoad = 60
	engine.mu.Unlock()
	if err := engine.InjectEvent(ctx, domain.SimulationEvent{
		Type:            domain.EventSurge,
		DurationMinutes: 60,
		Intensity:       1.5,
	}); err != nil {
		t.Fatalf("inject surge: %v", err)
	}
	engine.mu.Lock()
	engine.applyEventsLocked(ctx, at)
	got := engine.state.edLoad
	engine.mu.Unlock()
	if got != 90 {
		t.Fatalf("surge effect: ed_load = %v, want 90", got)
	}
}

func TestSurgeClampsAt98(t *testing.T) {
	at := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	engine, _ := newTestEngine(t, at, false)
	ctx := context.Background()
	engine.mu.Lock()
	engine.state.edLoad = 80
	engine.mu.Unlock()
	if err := engine.InjectEvent(ctx, domain.SimulationEvent{Type: domain.EventSurge, DurationMinutes: 60, Intensity: 1.8}); err != nil {
		t.Fatalf("inject surge: %v", err)
	}
	engine.mu.Lock()
	engine.applyEventsLocked(ctx, at)
	got := engine.state.edLoad
	engine.mu.Unlock()
	if got != 98 {
		t.Fatalf("surge clamp: ed_load = %v, want 98", got)
	}
}

func TestEventExclusivityPerType(t *testing.T) {
	at := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	engine, _ := newTestEngine(t, at, false)
	ctx := context.Background()
	if err := engine.InjectEvent(ctx, domain.SimulationEvent{Type: domain.EventSurge, DurationMinutes: 60, Intensity: 1.3}); err != nil {
		t.Fatalf("first inject: %v", err)
	}
	if err := engine.InjectEvent(ctx, domain.SimulationEvent{Type: domain.EventSurge, DurationMinutes: 30, Intensity: 1.5}); err == nil {
		t.Fatalf("second surge should be rejected while one is active")
	}
	if err := engine.InjectEvent(ctx, domain.SimulationEvent{Type: domain.EventStaffingShortage, DurationMinutes: 60}); err != nil {
		t.Fatalf("different type should be accepted: %v", err)
	}
	if got := len(engine.ActiveEvents()); got != 2 {
		t.Fatalf("expected 2 active events, got %d", got)
	}
}

func TestEventExpiryPersistsEndTime(t *testing.T) {
	at := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	engine, store := newTestEngine(t, at, false)
	ctx := context.Background()
	if err := engine.InjectEvent(ctx, domain.SimulationEvent{Type: domain.EventSurge, DurationMinutes: 30, Intensity: 1.2}); err != nil {
		t.Fatalf("inject: %v", err)
	}
	later := at.Add(31 * time.Minute)
	engine.mu.Lock()
	engine.applyEventsLocked(ctx, later)
	engine.mu.Unlock()
	if got := len(engine.ActiveEvents()); got != 0 {
		t.Fatalf("expired event still active: %d", got)
	}
	events := store.Events()
	if len(events) != 1 || events[0].EndTime == nil {
		t.Fatalf("end time not persisted: %+v", events)
	}
}

func TestDisablingDemoModeClearsEvents(t *testing.T) {
	at := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	engine, _ := newTestEngine(t, at, true)
	ctx := context.Background()
	if err := engine.InjectEvent(ctx, domain.SimulationEvent{Type: domain.EventMassCasualty, DurationMinutes: 90, Intensity: 2.5}); err != nil {
		t.Fatalf("inject: %v", err)
	}
	engine.SetDemoMode(ctx, false)
	if got := len(engine.ActiveEvents()); got != 0 {
		t.Fatalf("events should be cleared, got %d", got)
	}
}

func TestMassCasualtyShrinksCriticalDepartments(t *testing.T) {
	at := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	engine, _ := newTestEngine(t, at, false)
	ctx := context.Background()
	var erBefore domain.DepartmentBeds
	for _, ledger := range engine.Beds() {
		if ledger.Department == "ER" {
			erBefore = ledger
		}
	}
	if err := engine.InjectEvent(ctx, domain.SimulationEvent{Type: domain.EventMassCasualty, DurationMinutes: 60, Intensity: 2.0}); err != nil {
		t.Fatalf("inject: %v", err)
	}
	engine.mu.Lock()
	engine.applyEventsLocked(ctx, at)
	engine.mu.Unlock()
	for _, ledger := range engine.Beds() {
		if ledger.Department != "ER" {
			continue
		}
		if ledger.Available > erBefore.Available {
			t.Fatalf("ER availability grew under mass casualty: %+v", ledger)
		}
		if ledger.Occupied+ledger.Available != ledger.Total {
			t.Fatalf("shrink broke invariant: %+v", ledger)
		}
	}
}

func TestApplyRecommendationEffects(t *testing.T) {
	at := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	engine, store := newTestEngine(t, at, false)
	ctx := context.Background()
	engine.mu.Lock()
	engine.state.edLoad = 80
	engine.state.waitingCount = 12
	engine.state.staffLoad = 70
	engine.state.roomsFree = 4
	engine.mu.Unlock()

	if err := engine.ApplyRecommendationEffect(ctx, "staffing_reassignment", "staffing_reassignment", 30*time.Minute); err != nil {
		t.Fatalf("staffing_reassignment: %v", err)
	}
	snap := engine.CurrentMetrics()
	if snap.EDLoad != 72 || snap.WaitingCount != 10 || snap.StaffLoad != 75 {
		t.Fatalf("staffing_reassignment effect mismatch: %+v", snap)
	}

	freeBefore := snap.BedsFree
	if err := engine.ApplyRecommendationEffect(ctx, "capacity", "open_overflow_beds", 0); err != nil {
		t.Fatalf("open_overflow_beds: %v", err)
	}
	snap = engine.CurrentMetrics()
	if snap.BedsFree != freeBefore+3 {
		t.Fatalf("open_overflow_beds should add 3 beds: %d -> %d", freeBefore, snap.BedsFree)
	}
	if snap.EDLoad != 67 {
		t.Fatalf("open_overflow_beds ed_load mismatch: %v", snap.EDLoad)
	}

	if err := engine.ApplyRecommendationEffect(ctx, "capacity", "room_allocation", 0); err != nil {
		t.Fatalf("room_allocation: %v", err)
	}
	if got := engine.CurrentMetrics().RoomsFree; got != 6 {
		t.Fatalf("room_allocation rooms_free mismatch: %d", got)
	}

	if err := engine.ApplyRecommendationEffect(ctx, "capacity", "teleportation", 0); err == nil {
		t.Fatalf("unknown effect should error")
	}

	var applied []domain.AuditEntry
	for _, entry := range store.AuditEntries() {
		if entry.Action == "recommendation.apply" {
			applied = append(applied, entry)
		}
	}
	if len(applied) != 3 {
		t.Fatalf("audit entries = %d, want 3 applied effects", len(applied))
	}
	first := applied[0].Detail
	if first["kind"] != "staffing_reassignment" || first["effect"] != "staffing_reassignment" {
		t.Fatalf("audit detail mismatch: %v", first)
	}
	if first["duration_minutes"] != 30.0 {
		t.Fatalf("audit duration mismatch: %v", first["duration_minutes"])
	}
}

func TestPlannedStartTimeFloor(t *testing.T) {
	at := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	engine, _ := newTestEngine(t, at, false)
	engine.mu.Lock()
	engine.state.transportQueue = 0
	engine.mu.Unlock()
	planned := engine.CalculatePlannedStartTime(30)
	wait := planned.Sub(at)
	if wait < 5*time.Minute {
		t.Fatalf("planned start under 5 minute floor: %v", wait)
	}
	engine.mu.Lock()
	engine.state.transportQueue = 6
	engine.mu.Unlock()
	queued := engine.CalculatePlannedStartTime(30)
	if !queued.After(planned) {
		t.Fatalf("queue should push the start later: %v vs %v", queued, planned)
	}
}

func TestTransportActivationStampsTimes(t *testing.T) {
	at := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	engine, store := newTestEngine(t, at, false)
	ctx := context.Background()
	planned := at.Add(-time.Minute)
	created, err := store.CreateTransport(ctx, domain.Transport{
		Origin:           "ER",
		Destination:      "Klinikum West",
		Priority:         domain.TransportPriorityMedium,
		Status:           domain.TransportPlanned,
		EstimatedMinutes: 40,
		PlannedStart:     &planned,
	})
	if err != nil {
		t.Fatalf("create transport: %v", err)
	}
	engine.mu.Lock()
	engine.state.transportQueue = 3
	engine.activateTransportsLocked(ctx, at)
	queue := engine.state.transportQueue
	engine.mu.Unlock()
	if queue != 2 {
		t.Fatalf("queue should shrink on activation: %d", queue)
	}
	transports, err := store.ListTransports(ctx)
	if err != nil {
		t.Fatalf("list transports: %v", err)
	}
	if len(transports) != 1 {
		t.Fatalf("expected 1 transport, got %d", len(transports))
	}
	got := transports[0]
	if got.ID != created.ID || got.Status != domain.TransportInProgress {
		t.Fatalf("transport not activated: %+v", got)
	}
	if got.StartedAt == nil || !got.StartedAt.Equal(at) {
		t.Fatalf("start time not stamped: %+v", got.StartedAt)
	}
	if got.ExpectedEnd == nil || got.ExpectedEnd.Before(at.Add(40*time.Minute)) {
		t.Fatalf("expected completion too early: %+v", got.ExpectedEnd)
	}
}

func TestMetricHistoryMergesRingAndStore(t *testing.T) {
	at := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	engine, store := newTestEngine(t, at, false)
	ctx := context.Background()
	old := at.Add(-30 * time.Minute)
	if err := store.InsertMetrics(ctx, []domain.Metric{
		{Timestamp: old, Type: domain.MetricEDLoad, Value: 50, Unit: "percent"},
	}); err != nil {
		t.Fatalf("seed store history: %v", err)
	}
	engine.mu.Lock()
	engine.appendHistoryLocked(at)
	engine.mu.Unlock()
	history, err := engine.MetricHistory(ctx, domain.MetricEDLoad, 60)
	if err != nil {
		t.Fatalf("metric history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected merged history of 2 points, got %d", len(history))
	}
	if !history[0].Timestamp.Equal(old) || !history[1].Timestamp.Equal(at) {
		t.Fatalf("history not ordered oldest to newest: %+v", history)
	}
}

func TestTickPersistsScalarBatch(t *testing.T) {
	at := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	engine, store := newTestEngine(t, at, false)
	ctx := context.Background()
	engine.Tick(ctx)
	for _, metric := range domain.ScalarMetrics {
		points, err := store.MetricsSince(ctx, metric, at.Add(-time.Minute))
		if err != nil {
			t.Fatalf("metrics since: %v", err)
		}
		if len(points) != 1 {
			t.Fatalf("metric %s: expected 1 point, got %d", metric, len(points))
		}
	}
}

func TestStartStopTerminates(t *testing.T) {
	at := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	engine, _ := newTestEngine(t, at, false)
	engine.interval = time.Millisecond
	engine.Start(context.Background())
	time.Sleep(10 * time.Millisecond)
	engine.Stop()
	snap := engine.CurrentMetrics()
	if snap.BedsFree < 0 {
		t.Fatalf("invalid snapshot after stop: %+v", snap)
	}
}
