// Package sim implements the hospital state engine: a lock-protected
// simulation of correlated scalar metrics and per-department bed accounting,
// advanced by a periodic tick that injects stochastic events, derives
// transport and consumption side effects, and persists metrics and alerts.
package sim

import (
	"context"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"wardcore/internal/obs"
	"wardcore/pkg/domain"
)

const (
	defaultTickInterval = 5 * time.Second
	alertDedupWindow    = 10 * time.Minute
)

// Options configures an Engine.
type Options struct {
	Store    domain.Store
	Rules    *domain.RulesEngine
	Recorder obs.Recorder
	Gauges   *obs.MetricGauges
	// TickInterval defaults to 5s.
	TickInterval time.Duration
	// Seed fixes the random source; 0 derives one from the clock.
	Seed     int64
	Now      func() time.Time
	DemoMode bool
}

// state is the engine-owned mutable snapshot. All access happens under the
// engine mutex; internal helpers with the Locked suffix assume it is held.
type state struct {
	edLoad         float64
	waitingCount   int
	staffLoad      float64
	orLoad         float64
	roomsFree      int
	transportQueue int

	beds        []domain.DepartmentBeds
	utilization map[string]float64

	history      map[domain.MetricType][]domain.Metric
	activeEvents []domain.SimulationEvent

	// inventoryCritical caches the last critical-item count read from the
	// store so alert evaluation never blocks on a failed read.
	inventoryCritical int
}

// Engine owns the simulation state and the background tick loop.
type Engine struct {
	store    domain.Store
	rules    *domain.RulesEngine
	recorder obs.Recorder
	gauges   *obs.MetricGauges

	mu    sync.Mutex
	state state

	rng      *rand.Rand
	nowFn    func() time.Time
	demoMode bool
	interval time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewEngine constructs an engine, loading the bed ledger from the store or
// seeding it from the built-in department table when the store is empty.
func NewEngine(ctx context.Context, opts Options) (*Engine, error) {
	if opts.Rules == nil {
		opts.Rules = domain.NewDefaultRulesEngine()
	}
	if opts.Recorder == nil {
		opts.Recorder = obs.NoopRecorder{}
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = defaultTickInterval
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	seed := opts.Seed
	if seed == 0 {
		seed = opts.Now().UnixNano()
	}
	e := &Engine{
		store:    opts.Store,
		rules:    opts.Rules,
		recorder: opts.Recorder,
		gauges:   opts.Gauges,
		rng:      rand.New(rand.NewSource(seed)),
		nowFn:    opts.Now,
		demoMode: opts.DemoMode,
		interval: opts.TickInterval,
	}
	e.state = state{
		edLoad:       65,
		staffLoad:    75,
		orLoad:       55,
		roomsFree:    12,
		waitingCount: 8,
		utilization:  make(map[string]float64),
		history:      make(map[domain.MetricType][]domain.Metric),
	}
	if err := e.loadCapacity(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

// loadCapacity hydrates the bed ledger from the store, seeding defaults on
// first run.
func (e *Engine) loadCapacity(ctx context.Context) error {
	beds, err := e.store.CapacityOverview(ctx)
	if err != nil {
		return err
	}
	if len(beds) == 0 {
		beds = make([]domain.DepartmentBeds, 0, len(departmentSeeds))
		for _, seed := range departmentSeeds {
			occupied := int(math.Round(float64(seed.totalBeds) * seed.baseUtil))
			beds = append(beds, domain.DepartmentBeds{
				Department: seed.name,
				Total:      seed.totalBeds,
				Occupied:   occupied,
				Available:  seed.totalBeds - occupied,
			})
		}
		if err := e.store.SaveCapacity(ctx, beds); err != nil {
			return err
		}
	}
	e.state.beds = beds
	for _, ledger := range beds {
		if ledger.Total > 0 {
			e.state.utilization[ledger.Department] = float64(ledger.Occupied) / float64(ledger.Total)
		}
	}
	return nil
}

// Start launches the background tick loop. It returns immediately; call Stop
// to cancel and wait for the in-flight tick to finish.
func (e *Engine) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ticker := time.NewTicker(e.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				e.Tick(ctx)
			}
		}
	}()
}

// Stop cancels the loop and waits for it to exit.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
}

// SetDemoMode toggles stochastic event injection. Disabling demo mode clears
// all active events immediately.
func (e *Engine) SetDemoMode(ctx context.Context, enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.demoMode = enabled
	if !enabled {
		now := e.nowFn()
		for _, event := range e.state.activeEvents {
			_ = e.store.CloseEvent(ctx, event.ID, now)
		}
		e.state.activeEvents = nil
	}
}

// DemoMode reports whether stochastic event injection is enabled.
func (e *Engine) DemoMode() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.demoMode
}

// CurrentMetrics returns a consistent scalar snapshot. Reads never observe a
// partially applied tick.
func (e *Engine) CurrentMetrics() domain.MetricSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked(e.nowFn())
}

func (e *Engine) snapshotLocked(now time.Time) domain.MetricSnapshot {
	return domain.MetricSnapshot{
		EDLoad:            round1(e.state.edLoad),
		WaitingCount:      e.state.waitingCount,
		BedsFree:          e.bedsFreeLocked(),
		StaffLoad:         round1(e.state.staffLoad),
		RoomsFree:         e.state.roomsFree,
		ORLoad:            round1(e.state.orLoad),
		TransportQueue:    e.state.transportQueue,
		InventoryCritical: e.state.inventoryCritical,
		At:                now,
	}
}

func (e *Engine) bedsFreeLocked() int {
	free := 0
	for _, ledger := range e.state.beds {
		free += ledger.Available
	}
	return free
}

// Beds returns a copy of the department bed ledger.
func (e *Engine) Beds() []domain.DepartmentBeds {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.DepartmentBeds, len(e.state.beds))
	copy(out, e.state.beds)
	return out
}

// ActiveEvents returns a copy of the currently active special events.
func (e *Engine) ActiveEvents() []domain.SimulationEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.SimulationEvent, len(e.state.activeEvents))
	copy(out, e.state.activeEvents)
	return out
}

// MetricHistory returns the last minutes of one series oldest to newest,
// merging the in-memory ring buffer with the store when the buffer does not
// cover the window.
func (e *Engine) MetricHistory(ctx context.Context, metric domain.MetricType, minutes int) ([]domain.Metric, error) {
	e.mu.Lock()
	now := e.nowFn()
	since := now.Add(-time.Duration(minutes) * time.Minute)
	ring := e.state.history[metric]
	buffered := make([]domain.Metric, 0, len(ring))
	for _, point := range ring {
		if !point.Timestamp.Before(since) {
			buffered = append(buffered, point)
		}
	}
	covered := len(ring) > 0 && !ring[0].Timestamp.After(since)
	e.mu.Unlock()

	if covered {
		return buffered, nil
	}
	stored, err := e.store.MetricsSince(ctx, metric, since)
	if err != nil {
		// Degrade to the buffer rather than failing the dashboard read.
		return buffered, nil
	}
	merged := mergeHistory(stored, buffered)
	return merged, nil
}

// mergeHistory combines store and buffer points, buffer winning on duplicate
// timestamps, ordered oldest to newest.
func mergeHistory(stored, buffered []domain.Metric) []domain.Metric {
	if len(buffered) == 0 {
		return stored
	}
	seen := make(map[time.Time]struct{}, len(buffered))
	for _, point := range buffered {
		seen[point.Timestamp] = struct{}{}
	}
	merged := make([]domain.Metric, 0, len(stored)+len(buffered))
	for _, point := range stored {
		if _, dup := seen[point.Timestamp]; !dup {
			merged = append(merged, point)
		}
	}
	merged = append(merged, buffered...)
	sort.Slice(merged, func(i, j int) bool { return merged[i].Timestamp.Before(merged[j].Timestamp) })
	return merged
}

// ApplyRecommendationEffect applies a one-shot recommendation mutation.
// kind names the recommendation that carried the effect and duration is how
// long the UI displays it as active; both are audited, neither changes the
// mutation itself since effects apply instantly and do not decay.
func (e *Engine) ApplyRecommendationEffect(ctx context.Context, kind, effect string, duration time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch effect {
	case "staffing_reassignment":
		e.state.edLoad = clampFloat(e.state.edLoad-8, 0, 100)
		e.state.waitingCount = maxInt(0, e.state.waitingCount-2)
		e.state.staffLoad = clampFloat(e.state.staffLoad+5, 0, 100)
	case "open_overflow_beds":
		for _, idx := range e.mostUtilizedLocked(3) {
			e.state.beds[idx].Total++
			e.state.beds[idx].Available++
		}
		e.state.edLoad = clampFloat(e.state.edLoad-5, 0, 100)
		e.saveCapacityLocked(ctx)
	case "room_allocation":
		e.state.roomsFree += 2
	default:
		return domain.ErrNotFound{Entity: "recommendation effect", ID: effect}
	}
	_ = e.store.AppendAudit(ctx, domain.AuditEntry{
		Action: "recommendation.apply",
		Actor:  "engine",
		Detail: map[string]any{
			"kind":             kind,
			"effect":           effect,
			"duration_minutes": duration.Minutes(),
		},
		OccurredAt: e.nowFn(),
	})
	return nil
}

// mostUtilizedLocked returns indexes of the n departments with the highest
// utilization.
func (e *Engine) mostUtilizedLocked(n int) []int {
	idx := make([]int, len(e.state.beds))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return e.utilOf(e.state.beds[idx[a]]) > e.utilOf(e.state.beds[idx[b]])
	})
	if n > len(idx) {
		n = len(idx)
	}
	return idx[:n]
}

func (e *Engine) utilOf(ledger domain.DepartmentBeds) float64 {
	if ledger.Total == 0 {
		return 0
	}
	return float64(ledger.Occupied) / float64(ledger.Total)
}

func (e *Engine) saveCapacityLocked(ctx context.Context) {
	beds := make([]domain.DepartmentBeds, len(e.state.beds))
	copy(beds, e.state.beds)
	// Best effort; the next tick retries implicitly.
	_ = e.store.SaveCapacity(ctx, beds)
}

// CalculatePlannedStartTime schedules a transport: preparation of 5 to 10
// minutes plus 10 to 15 minutes per queued transport, never under 5 minutes.
func (e *Engine) CalculatePlannedStartTime(estimatedMinutes int) time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.plannedStartLocked()
}

func (e *Engine) plannedStartLocked() time.Time {
	prep := 5 + e.rng.Float64()*5
	perQueued := 10 + e.rng.Float64()*5
	wait := prep + float64(e.state.transportQueue)*perQueued
	if wait < 5 {
		wait = 5
	}
	return e.nowFn().Add(time.Duration(wait * float64(time.Minute)))
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
