package sim

import (
	"context"
	"fmt"
	"math"
	"time"

	"wardcore/pkg/domain"
)

// triggerEventsLocked rolls the per-type trigger probabilities. A type that
// is already active is never retriggered.
func (e *Engine) triggerEventsLocked(ctx context.Context, now time.Time) {
	for _, trigger := range eventTriggers {
		if e.eventActiveLocked(trigger.eventType) {
			continue
		}
		if e.rng.Float64() >= trigger.probability {
			continue
		}
		event := domain.SimulationEvent{
			Type:                trigger.eventType,
			StartTime:           now,
			DurationMinutes:     e.uniformInt(trigger.minMinutes, trigger.maxMinutes),
			AffectedDepartments: trigger.affected,
			Description:         trigger.description,
		}
		if trigger.maxIntense > 0 {
			event.Intensity = e.uniform(trigger.minIntense, trigger.maxIntense)
		}
		if trigger.eventType == domain.EventEquipmentFailure {
			event.AffectedDepartments = []string{e.state.beds[e.rng.Intn(len(e.state.beds))].Department}
		}
		e.startEventLocked(ctx, event)
	}
}

// InjectEvent activates an event explicitly. A second event of an already
// active type is rejected.
func (e *Engine) InjectEvent(ctx context.Context, event domain.SimulationEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.eventActiveLocked(event.Type) {
		return fmt.Errorf("event type %s already active", event.Type)
	}
	if event.StartTime.IsZero() {
		event.StartTime = e.nowFn()
	}
	e.startEventLocked(ctx, event)
	return nil
}

func (e *Engine) startEventLocked(ctx context.Context, event domain.SimulationEvent) {
	persisted, err := e.store.CreateEvent(ctx, event)
	if err == nil {
		event = persisted
	}
	e.state.activeEvents = append(e.state.activeEvents, event)
	_ = e.store.AppendAudit(ctx, domain.AuditEntry{
		Action:     "event.start",
		Actor:      "engine",
		Detail:     map[string]any{"event_type": string(event.Type), "duration_minutes": event.DurationMinutes},
		OccurredAt: event.StartTime,
	})
}

func (e *Engine) eventActiveLocked(eventType domain.EventType) bool {
	for _, event := range e.state.activeEvents {
		if event.Type == eventType {
			return true
		}
	}
	return false
}

// applyEventsLocked applies each active event's effects for this tick, then
// retires the expired ones and persists their end times.
func (e *Engine) applyEventsLocked(ctx context.Context, now time.Time) {
	remaining := e.state.activeEvents[:0]
	for _, event := range e.state.activeEvents {
		if event.Expired(now) {
			_ = e.store.CloseEvent(ctx, event.ID, now)
			continue
		}
		e.applyEventEffectLocked(event)
		remaining = append(remaining, event)
	}
	e.state.activeEvents = remaining
}

func (e *Engine) applyEventEffectLocked(event domain.SimulationEvent) {
	switch event.Type {
	case domain.EventSurge:
		intensity := event.Intensity
		if intensity <= 0 {
			intensity = 1.3
		}
		e.state.edLoad = math.Min(98, e.state.edLoad*intensity)
		e.state.waitingCount = int(math.Round(float64(e.state.waitingCount) * intensity))
		e.state.staffLoad = math.Min(95, e.state.staffLoad*1.2)
	case domain.EventEquipmentFailure:
		for _, department := range event.AffectedDepartments {
			if department == "ER" {
				e.state.edLoad = math.Min(98, e.state.edLoad*1.15)
				continue
			}
			e.shrinkAvailableLocked(department, 0.10)
		}
	case domain.EventStaffingShortage:
		e.state.staffLoad = math.Min(98, e.state.staffLoad*1.25)
		e.state.edLoad = math.Min(98, e.state.edLoad*1.1)
	case domain.EventMassCasualty:
		intensity := event.Intensity
		if intensity <= 0 {
			intensity = 2.0
		}
		e.state.edLoad = math.Min(98, e.state.edLoad*intensity)
		e.state.waitingCount = int(math.Round(float64(e.state.waitingCount) * intensity))
		e.state.staffLoad = math.Min(98, e.state.staffLoad*1.4)
		for _, department := range []string{"ER", "ICU", "Surgery"} {
			e.shrinkAvailableLocked(department, 0.30)
		}
	}
}

// shrinkAvailableLocked removes a share of a department's free beds. The
// ledger invariant is preserved by moving them to occupied.
func (e *Engine) shrinkAvailableLocked(department string, share float64) {
	for i := range e.state.beds {
		ledger := &e.state.beds[i]
		if ledger.Department != department {
			continue
		}
		reduced := int(math.Floor(float64(ledger.Available) * (1 - share)))
		ledger.Occupied += ledger.Available - reduced
		ledger.Available = reduced
		if ledger.Total > 0 {
			e.state.utilization[department] = float64(ledger.Occupied) / float64(ledger.Total)
		}
		return
	}
}
