package forecast

import "math"

const smoothingAlpha = 0.3

// smooth applies exponential smoothing and returns the smoothed series.
func smooth(values []float64, alpha float64) []float64 {
	if len(values) == 0 {
		return nil
	}
	out := make([]float64, len(values))
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

// trendOf estimates the per-sample slope of a series. With three or more
// points it compares the mean of the last k points against the mean of the
// earlier ones; with fewer it falls back to the first/last difference.
func trendOf(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	if n < 3 {
		return values[n-1] - values[0]
	}
	k := n / 3
	if k > 5 {
		k = 5
	}
	if k < 1 {
		k = 1
	}
	recent := mean(values[n-k:])
	earlier := mean(values[:n-k])
	return (recent - earlier) / math.Max(1, float64(n-k))
}

// stabilityOf compares recent variance against overall variance. A flat
// recent window scores close to 1, a volatile one close to 0. Short series
// score a neutral 0.5.
func stabilityOf(values []float64) float64 {
	if len(values) < 6 {
		return 0.5
	}
	recent := variance(values[len(values)-6:])
	overall := variance(values)
	ratio := recent / math.Max(1, overall)
	if ratio > 1 {
		ratio = 1
	}
	return 1 - ratio
}

// anomalous reports whether the latest value deviates from the trailing
// window by more than 2.5 standard deviations. It needs at least five
// points; a zero deviation window never flags.
func anomalous(values []float64) bool {
	n := len(values)
	if n < 5 {
		return false
	}
	window := values
	if n > 20 {
		window = values[n-20:]
	}
	current := values[n-1]
	m := mean(window)
	sd := math.Sqrt(variance(window))
	if sd == 0 {
		return false
	}
	return math.Abs((current-m)/sd) > 2.5
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func variance(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := mean(values)
	sum := 0.0
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return sum / float64(len(values))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
