package forecast

import (
	"time"

	"wardcore/pkg/domain"
)

// seasonalityFactor combines an hour-of-day multiplier with a weekday
// multiplier. Patient arrivals peak in the morning and afternoon; bed demand
// leans toward the evening.
func seasonalityFactor(kind domain.PredictionType, at time.Time) float64 {
	hour := at.Hour()
	var hourly float64
	switch kind {
	case domain.PredictPatientArrival:
		switch {
		case hour >= 8 && hour <= 11:
			hourly = 1.35
		case hour >= 14 && hour <= 17:
			hourly = 1.25
		case hour >= 18 && hour <= 21:
			hourly = 1.10
		case hour >= 22 || hour < 6:
			hourly = 0.55
		default:
			hourly = 0.95
		}
	default:
		switch {
		case hour >= 16 && hour <= 22:
			hourly = 1.15
		case hour >= 23 || hour < 6:
			hourly = 1.05
		default:
			hourly = 0.95
		}
	}
	weekly := 1.05
	if wd := at.Weekday(); wd == time.Saturday || wd == time.Sunday {
		if kind == domain.PredictPatientArrival {
			weekly = 0.80
		} else {
			weekly = 0.95
		}
	}
	return hourly * weekly
}

// historyConfidence steps with the number of observed points.
func historyConfidence(n int) float64 {
	switch {
	case n >= 24:
		return 0.90
	case n >= 12:
		return 0.75
	case n >= 6:
		return 0.60
	default:
		return 0.45
	}
}

// timeDecay discounts longer horizons, never below one half.
func timeDecay(horizonMinutes int) float64 {
	decay := 1 - float64(horizonMinutes)/120
	if decay < 0.50 {
		return 0.50
	}
	return decay
}

// confidence combines history depth, trend stability, horizon decay, and
// data quality into a score clamped to [0.30, 0.95].
func confidence(points int, stability float64, horizonMinutes int, anomaly bool) float64 {
	quality := 1.0
	if anomaly {
		quality = 0.85
	}
	score := historyConfidence(points) * (0.7 + 0.3*stability) * timeDecay(horizonMinutes) * quality
	return clamp(score, 0.30, 0.95)
}
