package sim

import (
	"context"
	"math"
	"time"

	"wardcore/pkg/domain"
)

// Tick advances the simulation by one step. It is safe to call concurrently
// with reads and with the background loop; all mutation happens under the
// engine mutex. Persistence failures inside a tick are best effort and never
// abort the step.
func (e *Engine) Tick(ctx context.Context) {
	started := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.nowFn()
	timeFactor, weekdayFactor := shapingFactors(now)

	e.updateScalarsLocked(timeFactor, weekdayFactor)
	e.updateBedsLocked(timeFactor, weekdayFactor)
	e.simulateArrivalLocked(ctx, now, timeFactor, weekdayFactor)
	discharged := e.simulateDischargesLocked(ctx, now)
	e.generateTransportsLocked(ctx, now, discharged)
	e.consumeMaterialsLocked(ctx, now)
	if e.demoMode {
		e.triggerEventsLocked(ctx, now)
	}
	e.applyEventsLocked(ctx, now)
	e.refreshInventoryRiskLocked(ctx)
	e.persistMetricsLocked(ctx, now)
	e.evaluateAlertsLocked(ctx, now)
	e.activateTransportsLocked(ctx, now)
	e.appendHistoryLocked(now)

	if e.gauges != nil {
		beds := make([]domain.DepartmentBeds, len(e.state.beds))
		copy(beds, e.state.beds)
		e.gauges.Publish(e.snapshotLocked(now), beds)
	}
	e.recorder.Observe(ctx, "sim.tick", true, time.Since(started))
}

// shapingFactors buckets hour-of-day and weekday into load multipliers.
func shapingFactors(now time.Time) (timeFactor, weekdayFactor float64) {
	hour := now.Hour()
	switch {
	case (hour >= 8 && hour < 12) || (hour >= 14 && hour < 18):
		timeFactor = 1.25
	case hour >= 22 || hour < 6:
		timeFactor = 0.70
	default:
		timeFactor = 1.0
	}
	weekdayFactor = 1.0
	if wd := now.Weekday(); wd == time.Saturday || wd == time.Sunday {
		weekdayFactor = 0.85
	}
	return timeFactor, weekdayFactor
}

// uniform returns a random float in [lo, hi).
func (e *Engine) uniform(lo, hi float64) float64 {
	return lo + e.rng.Float64()*(hi-lo)
}

func (e *Engine) uniformInt(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + e.rng.Intn(hi-lo+1)
}

// updateScalarsLocked reshapes the scalar metrics around their bases.
// waiting_count and transport_queue are affine in ed_load.
func (e *Engine) updateScalarsLocked(timeFactor, weekdayFactor float64) {
	noiseScale := 1.0
	if e.demoMode {
		noiseScale = 2.0
	}
	shape := timeFactor * weekdayFactor
	e.state.edLoad = clampFloat(65*shape+e.uniform(-4, 4)*noiseScale, 20, 95)
	e.state.staffLoad = clampFloat(75*shape+e.uniform(-3, 3)*noiseScale, 20, 95)
	e.state.orLoad = clampFloat(55*shape+e.uniform(-5, 5)*noiseScale, 20, 95)
	e.state.roomsFree = clampInt(int(math.Round(12*shape+e.uniform(-2, 2)*noiseScale)), 0, 20)
	e.state.waitingCount = clampInt(int(math.Round(3+0.15*e.state.edLoad+e.uniform(-2, 3)*noiseScale)), 0, 60)
	e.state.transportQueue = clampInt(int(math.Round(2+0.7*0.08*e.state.edLoad+e.uniform(-1, 2)*noiseScale)), 0, transportQueueCap)
}

// updateBedsLocked blends each department toward its shaped target
// utilization with inertia, then recomputes the ledger from utilization.
func (e *Engine) updateBedsLocked(timeFactor, weekdayFactor float64) {
	shape := timeFactor * weekdayFactor
	edDeviation := e.state.edLoad/100 - 0.65
	for i := range e.state.beds {
		ledger := &e.state.beds[i]
		seed, ok := seedFor(ledger.Department)
		if !ok {
			continue
		}
		target := seed.baseUtil * (1 + (shape-1)*seed.sensitivity)
		current := e.state.utilization[ledger.Department]
		util := 0.7*current + 0.3*(target+e.uniform(-0.05, 0.05))
		switch ledger.Department {
		case "ER":
			util += 0.3 * edDeviation
		case "ICU":
			util += 0.15 * edDeviation
		}
		util = clampFloat(util, 0.20, 0.95)
		e.state.utilization[ledger.Department] = util
		ledger.Occupied = clampInt(int(math.Round(float64(ledger.Total)*util)), 0, ledger.Total)
		ledger.Available = ledger.Total - ledger.Occupied
	}
}

func seedFor(department string) (departmentSeed, bool) {
	for _, seed := range departmentSeeds {
		if seed.name == department {
			return seed, true
		}
	}
	return departmentSeed{}, false
}

// simulateArrivalLocked admits at most one patient per tick.
func (e *Engine) simulateArrivalLocked(ctx context.Context, now time.Time, timeFactor, weekdayFactor float64) {
	if e.rng.Float64() >= 0.15*timeFactor*weekdayFactor {
		return
	}
	department := e.pickArrivalDepartmentLocked()
	if department == "ER" {
		e.state.edLoad = clampFloat(e.state.edLoad+e.uniform(0.5, 1.5), 0, 98)
		e.state.waitingCount = clampInt(e.state.waitingCount+1, 0, 60)
	}
	if e.rng.Float64() < 0.7 {
		e.occupyBedLocked(department)
	}
	_ = e.store.AppendPatientEvent(ctx, domain.PatientEvent{
		Kind:       domain.PatientArrived,
		Department: department,
		OccurredAt: now,
	})
}

func (e *Engine) pickArrivalDepartmentLocked() string {
	total := 0.0
	for _, w := range arrivalWeights {
		total += w.weight
	}
	target := e.rng.Float64() * total
	for _, w := range arrivalWeights {
		target -= w.weight
		if target <= 0 {
			return w.department
		}
	}
	return arrivalWeights[0].department
}

// occupyBedLocked moves one bed from available to occupied, floor zero.
func (e *Engine) occupyBedLocked(department string) {
	for i := range e.state.beds {
		ledger := &e.state.beds[i]
		if ledger.Department != department {
			continue
		}
		if ledger.Available > 0 {
			ledger.Available--
			ledger.Occupied++
			if ledger.Total > 0 {
				e.state.utilization[department] = float64(ledger.Occupied) / float64(ledger.Total)
			}
		}
		return
	}
}

// releaseBedLocked moves one bed from occupied to available, capped at total.
func (e *Engine) releaseBedLocked(department string) bool {
	for i := range e.state.beds {
		ledger := &e.state.beds[i]
		if ledger.Department != department {
			continue
		}
		if ledger.Occupied == 0 || ledger.Available >= ledger.Total {
			return false
		}
		ledger.Occupied--
		ledger.Available++
		if ledger.Total > 0 {
			e.state.utilization[department] = float64(ledger.Occupied) / float64(ledger.Total)
		}
		return true
	}
	return false
}

// simulateDischargesLocked runs up to three discharge attempts. Probability
// and eligible departments depend on the hour band.
func (e *Engine) simulateDischargesLocked(ctx context.Context, now time.Time) []string {
	hour := now.Hour()
	var discharged []string
	for attempt := 0; attempt < 3; attempt++ {
		if len(e.state.beds) == 0 {
			break
		}
		ledger := e.state.beds[e.rng.Intn(len(e.state.beds))]
		var probability float64
		switch {
		case hour >= 20 || hour < 6:
			if ledger.Department == "ER" {
				probability = 0.15
			} else {
				probability = 0.10
			}
		case hour < 12:
			probability = 0.35
		default:
			probability = 0.25
		}
		if e.rng.Float64() >= probability {
			continue
		}
		if !e.releaseBedLocked(ledger.Department) {
			continue
		}
		if ledger.Department == "ER" {
			e.state.edLoad = clampFloat(e.state.edLoad-e.uniform(0.5, 1.5), 20, 98)
			e.state.waitingCount = maxInt(0, e.state.waitingCount-1)
		}
		discharged = append(discharged, ledger.Department)
		_ = e.store.AppendPatientEvent(ctx, domain.PatientEvent{
			Kind:       domain.PatientDischarged,
			Department: ledger.Department,
			OccurredAt: now,
		})
	}
	return discharged
}

// generateTransportsLocked creates discharge transports for 15 to 25 percent
// of discharging departments.
func (e *Engine) generateTransportsLocked(ctx context.Context, now time.Time, discharged []string) {
	if len(discharged) == 0 {
		return
	}
	share := e.uniform(0.15, 0.25)
	for _, department := range discharged {
		if e.rng.Float64() >= share {
			continue
		}
		priority := domain.TransportPriorityLow
		if e.rng.Float64() < 0.5 {
			priority = domain.TransportPriorityMedium
		}
		planned := e.plannedStartLocked()
		_, err := e.store.CreateTransport(ctx, domain.Transport{
			Origin:           department,
			Destination:      transportDestinations[e.rng.Intn(len(transportDestinations))],
			Priority:         priority,
			Status:           domain.TransportPlanned,
			EstimatedMinutes: e.uniformInt(15, 60),
			PlannedStart:     &planned,
		})
		if err != nil {
			continue
		}
		e.state.transportQueue = clampInt(e.state.transportQueue+1, 0, transportQueueCap)
	}
}

// consumeMaterialsLocked records an OR operation and decrements inventory
// when the operating rooms are busy.
func (e *Engine) consumeMaterialsLocked(ctx context.Context, now time.Time) {
	if e.state.orLoad <= 40 || len(e.state.beds) == 0 {
		return
	}
	if e.rng.Float64() >= (e.state.orLoad/100)*0.3 {
		return
	}
	department := e.state.beds[e.rng.Intn(len(e.state.beds))].Department
	_ = e.store.AppendOperation(ctx, domain.Operation{
		Department:      department,
		Kind:            operationTypes[e.rng.Intn(len(operationTypes))],
		DurationMinutes: e.uniformInt(30, 240),
		StartedAt:       now,
	})
	items, err := e.store.InventoryStatus(ctx)
	if err != nil {
		return
	}
	var departmental []domain.InventoryItem
	for _, item := range items {
		if item.Department == department {
			departmental = append(departmental, item)
		}
	}
	picks := e.uniformInt(1, 3)
	for i := 0; i < picks && len(departmental) > 0; i++ {
		item := departmental[e.rng.Intn(len(departmental))]
		_, _ = e.store.AdjustInventory(ctx, item.ID, -e.uniformInt(1, 5))
	}
}

// refreshInventoryRiskLocked recounts critical inventory items, keeping the
// previous count when the store read fails.
func (e *Engine) refreshInventoryRiskLocked(ctx context.Context) {
	items, err := e.store.InventoryStatus(ctx)
	if err != nil {
		return
	}
	critical := 0
	for _, item := range items {
		if item.Critical() {
			critical++
		}
	}
	e.state.inventoryCritical = critical
}

// persistMetricsLocked writes the scalar batch for this tick in one call.
func (e *Engine) persistMetricsLocked(ctx context.Context, now time.Time) {
	snap := e.snapshotLocked(now)
	batch := make([]domain.Metric, 0, len(domain.ScalarMetrics))
	for _, metric := range domain.ScalarMetrics {
		batch = append(batch, domain.Metric{
			Timestamp: now,
			Type:      metric,
			Value:     snap.Value(metric),
			Unit:      metric.Unit(),
		})
	}
	if err := e.store.InsertMetrics(ctx, batch); err != nil {
		e.recorder.Observe(ctx, "sim.persist_metrics", false, 0)
	}
}

// evaluateAlertsLocked runs the threshold rules and persists deduped alerts.
func (e *Engine) evaluateAlertsLocked(ctx context.Context, now time.Time) {
	alerts, err := e.rules.Evaluate(ctx, e.snapshotLocked(now))
	if err != nil {
		e.recorder.Observe(ctx, "sim.evaluate_alerts", false, 0)
		return
	}
	for _, alert := range alerts {
		_, _, _ = e.store.CreateAlert(ctx, alert, alertDedupWindow)
	}
}

// activateTransportsLocked starts planned transports whose time has come.
func (e *Engine) activateTransportsLocked(ctx context.Context, now time.Time) {
	due, err := e.store.DueTransports(ctx, now)
	if err != nil {
		return
	}
	for _, transport := range due {
		delayed := e.rng.Float64() < 0.15
		delayShare := e.uniform(0.20, 0.50)
		_, err := e.store.UpdateTransport(ctx, transport.ID, func(tr *domain.Transport) error {
			tr.Status = domain.TransportInProgress
			start := now
			tr.StartedAt = &start
			duration := time.Duration(tr.EstimatedMinutes) * time.Minute
			if delayed {
				duration += time.Duration(float64(duration) * delayShare)
			}
			expected := now.Add(duration)
			tr.ExpectedEnd = &expected
			return nil
		})
		if err != nil {
			continue
		}
		e.state.transportQueue = maxInt(0, e.state.transportQueue-1)
	}
}

// appendHistoryLocked pushes current values into the per-metric ring buffer.
func (e *Engine) appendHistoryLocked(now time.Time) {
	snap := e.snapshotLocked(now)
	for _, metric := range domain.ScalarMetrics {
		ring := append(e.state.history[metric], domain.Metric{
			Timestamp: now,
			Type:      metric,
			Value:     snap.Value(metric),
			Unit:      metric.Unit(),
		})
		if len(ring) > historyCap {
			ring = ring[len(ring)-historyCap:]
		}
		e.state.history[metric] = ring
	}
}
