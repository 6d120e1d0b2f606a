// Package forecast implements the prediction engine: confidence-scored point
// forecasts for patient arrivals and bed demand, built from exponentially
// smoothed metric history with seasonality and anomaly adjustment.
package forecast

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"wardcore/internal/obs"
	"wardcore/pkg/domain"
)

const (
	modelVersion  = "exp-smoothing-v1"
	historyWindow = 120 * time.Minute
	cacheTTL      = 60 * time.Second

	// Fallback inputs when the store has no history yet.
	defaultEDLoad  = 65.0
	defaultWaiting = 8.0
)

// Engine computes forecasts on demand. It is stateless apart from a short
// TTL read cache over the metric history window.
type Engine struct {
	store    domain.Store
	recorder obs.Recorder
	tracer   obs.Tracer
	nowFn    func() time.Time

	mu    sync.Mutex
	cache map[domain.MetricType]cachedWindow
}

type cachedWindow struct {
	fetchedAt time.Time
	values    []float64
}

// Options configures a forecast engine.
type Options struct {
	Store    domain.Store
	Recorder obs.Recorder
	Tracer   obs.Tracer
	Now      func() time.Time
}

// NewEngine constructs a forecast engine.
func NewEngine(opts Options) *Engine {
	if opts.Recorder == nil {
		opts.Recorder = obs.NoopRecorder{}
	}
	if opts.Tracer == nil {
		opts.Tracer = obs.NoopTracer{}
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Engine{
		store:    opts.Store,
		recorder: opts.Recorder,
		tracer:   opts.Tracer,
		nowFn:    opts.Now,
		cache:    make(map[domain.MetricType]cachedWindow),
	}
}

// history returns the last two hours of one series, cached for the TTL. The
// cache is keyed by metric only, so a hit serves every department the same
// window.
func (e *Engine) history(ctx context.Context, metric domain.MetricType) []float64 {
	now := e.nowFn()
	e.mu.Lock()
	cached, ok := e.cache[metric]
	e.mu.Unlock()
	if ok && now.Sub(cached.fetchedAt) < cacheTTL {
		return cached.values
	}
	points, err := e.store.MetricsSince(ctx, metric, now.Add(-historyWindow))
	if err != nil {
		// Serve the stale window over failing the forecast.
		return cached.values
	}
	values := make([]float64, len(points))
	for i, point := range points {
		values[i] = point.Value
	}
	e.mu.Lock()
	e.cache[metric] = cachedWindow{fetchedAt: now, values: values}
	e.mu.Unlock()
	return values
}

func latest(values []float64, fallback float64) float64 {
	if len(values) == 0 {
		return fallback
	}
	return values[len(values)-1]
}

// PredictPatientArrival forecasts arrivals over the horizon for one
// department.
func (e *Engine) PredictPatientArrival(ctx context.Context, horizonMinutes int, department string) (domain.Prediction, error) {
	started := time.Now()
	now := e.nowFn()
	edHistory := e.history(ctx, domain.MetricEDLoad)
	waitHistory := e.history(ctx, domain.MetricWaitingCount)

	smoothed := smooth(edHistory, smoothingAlpha)
	trend := trendOf(smoothed)
	stability := stabilityOf(edHistory)
	anomaly := anomalous(edHistory)
	season := seasonalityFactor(domain.PredictPatientArrival, now)

	edLoad := latest(edHistory, defaultEDLoad)
	waiting := latest(waitHistory, defaultWaiting)

	scale := float64(horizonMinutes) / 5
	base := 0.05*edLoad + 0.15*waiting + 0.5
	value := (base + 0.4*trend) * scale * season
	if anomaly {
		value *= 0.9
	}
	value = clamp(value, 0, 15*scale)

	prediction := domain.Prediction{
		Type:           domain.PredictPatientArrival,
		Value:          math.Round(value),
		Confidence:     confidence(len(edHistory), stability, horizonMinutes, anomaly),
		HorizonMinutes: horizonMinutes,
		Department:     department,
		ModelVersion:   modelVersion,
		Factors: map[string]float64{
			"ed_load":     edLoad,
			"waiting":     waiting,
			"trend":       trend,
			"seasonality": season,
			"stability":   stability,
			"anomaly":     boolFactor(anomaly),
		},
		CreatedAt: now,
	}
	e.recorder.Observe(ctx, "forecast.patient_arrival", true, time.Since(started))
	return prediction, nil
}

// PredictBedDemand forecasts department bed utilization in percent over the
// horizon.
func (e *Engine) PredictBedDemand(ctx context.Context, horizonMinutes int, department string) (domain.Prediction, error) {
	started := time.Now()
	now := e.nowFn()
	beds, err := e.store.CapacityOverview(ctx)
	if err != nil {
		return domain.Prediction{}, err
	}
	var ledger domain.DepartmentBeds
	for _, b := range beds {
		if b.Department == department {
			ledger = b
			break
		}
	}
	if ledger.Total == 0 {
		return domain.Prediction{}, domain.ErrNotFound{Entity: "department", ID: department}
	}

	freeHistory := e.history(ctx, domain.MetricBedsFree)
	edHistory := e.history(ctx, domain.MetricEDLoad)
	waitHistory := e.history(ctx, domain.MetricWaitingCount)

	smoothed := smooth(freeHistory, smoothingAlpha)
	trend := trendOf(smoothed)
	stability := stabilityOf(freeHistory)
	anomaly := anomalous(freeHistory)
	season := seasonalityFactor(domain.PredictBedDemand, now)

	edLoad := latest(edHistory, defaultEDLoad)
	waiting := latest(waitHistory, defaultWaiting)

	hours := float64(horizonMinutes) / 60
	// Trend is per sample; scale to an hourly drift assuming one point per
	// tick interval inside the window.
	perHour := trend * 12
	seasonCorrection := (season - 1) * 2

	projectedFree := float64(ledger.Available) +
		perHour*hours -
		(edLoad-65)*0.08*hours -
		(waiting-3)*0.15*hours +
		seasonCorrection
	utilization := (float64(ledger.Total) - projectedFree) / float64(ledger.Total) * 100

	if anomaly {
		historicalUtil := utilization
		if avg := mean(freeHistory); len(freeHistory) > 0 {
			historicalUtil = (float64(ledger.Total) - avg) / float64(ledger.Total) * 100
		}
		utilization = 0.7*utilization + 0.3*historicalUtil
	}
	utilization = clamp(utilization, 0, 100)

	prediction := domain.Prediction{
		Type:           domain.PredictBedDemand,
		Value:          math.Round(utilization*10) / 10,
		Confidence:     confidence(len(freeHistory), stability, horizonMinutes, anomaly),
		HorizonMinutes: horizonMinutes,
		Department:     department,
		ModelVersion:   modelVersion,
		Factors: map[string]float64{
			"available":   float64(ledger.Available),
			"total":       float64(ledger.Total),
			"trend":       trend,
			"seasonality": season,
			"stability":   stability,
			"anomaly":     boolFactor(anomaly),
		},
		CreatedAt: now,
	}
	e.recorder.Observe(ctx, "forecast.bed_demand", true, time.Since(started))
	return prediction, nil
}

// GeneratePredictions ranks departments, computes both forecast families
// across every requested horizon, and persists the batch.
func (e *Engine) GeneratePredictions(ctx context.Context, horizons []int) (_ []domain.Prediction, err error) {
	ctx, span := e.tracer.Start(ctx, "forecast.generate")
	defer func() { span.End(err) }()

	if len(horizons) == 0 {
		horizons = []int{5, 10, 15}
	}
	beds, err := e.store.CapacityOverview(ctx)
	if err != nil {
		return nil, err
	}
	arrivalDepts, demandDepts := rankDepartments(beds)

	var batch []domain.Prediction
	for _, department := range arrivalDepts {
		for _, horizon := range horizons {
			p, err := e.PredictPatientArrival(ctx, horizon, department)
			if err != nil {
				continue
			}
			batch = append(batch, p)
		}
	}
	for _, department := range demandDepts {
		for _, horizon := range horizons {
			p, err := e.PredictBedDemand(ctx, horizon, department)
			if err != nil {
				continue
			}
			batch = append(batch, p)
		}
	}
	if err := e.store.InsertPredictions(ctx, batch); err != nil {
		return nil, err
	}
	return batch, nil
}

// rankDepartments buckets departments into priority (ER/ICU), high
// utilization (>=75%), and the rest, then picks at most two targets per
// forecast family, non-overlapping where possible.
func rankDepartments(beds []domain.DepartmentBeds) (arrival, demand []string) {
	var priority, highUtil, rest []string
	sorted := make([]domain.DepartmentBeds, len(beds))
	copy(sorted, beds)
	sort.SliceStable(sorted, func(i, j int) bool {
		return utilizationOf(sorted[i]) > utilizationOf(sorted[j])
	})
	for _, ledger := range sorted {
		switch {
		case ledger.Department == "ER" || ledger.Department == "ICU":
			priority = append(priority, ledger.Department)
		case utilizationOf(ledger) >= 0.75:
			highUtil = append(highUtil, ledger.Department)
		default:
			rest = append(rest, ledger.Department)
		}
	}
	ranked := append(append(priority, highUtil...), rest...)
	arrival = firstN(ranked, 2)
	var remaining []string
	for _, department := range ranked {
		if !contains(arrival, department) {
			remaining = append(remaining, department)
		}
	}
	demand = firstN(remaining, 2)
	if len(demand) < 2 {
		for _, department := range ranked {
			if len(demand) >= 2 {
				break
			}
			if !contains(demand, department) {
				demand = append(demand, department)
			}
		}
	}
	return arrival, demand
}

func utilizationOf(ledger domain.DepartmentBeds) float64 {
	if ledger.Total == 0 {
		return 0
	}
	return float64(ledger.Occupied) / float64(ledger.Total)
}

func firstN(values []string, n int) []string {
	if len(values) < n {
		n = len(values)
	}
	out := make([]string, n)
	copy(out, values[:n])
	return out
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

func boolFactor(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
