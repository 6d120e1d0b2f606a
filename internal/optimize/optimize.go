// Package optimize implements scheduling heuristics: maintenance slot
// scoring, transport ordering, and greedy resource allocation.
package optimize

import (
	"fmt"
	"math"
	"sort"
	"time"

	"wardcore/pkg/domain"
)

// MaintenanceSlot is one scored maintenance window candidate.
type MaintenanceSlot struct {
	Start  time.Time `json:"start"`
	Score  float64   `json:"score"`
	Reason string    `json:"reason"`
}

// expectedLoad estimates relative hospital load for an hour of day, before
// weekend discounting.
func expectedLoad(at time.Time) float64 {
	hour := at.Hour()
	var load float64
	switch {
	case (hour >= 8 && hour < 12) || (hour >= 14 && hour < 18):
		load = 0.90
	case hour >= 22 || hour < 6:
		load = 0.35
	default:
		load = 0.65
	}
	if wd := at.Weekday(); wd == time.Saturday || wd == time.Sunday {
		load *= 0.80
	}
	return load
}

// MaintenanceTimes scores candidate slots over the following days, staggering
// start hours, and returns them best first. A slot scores higher when the
// expected hour load and the department's live utilization are both low.
func MaintenanceTimes(from time.Time, candidates int, ledger domain.DepartmentBeds) []MaintenanceSlot {
	if candidates <= 0 {
		candidates = 5
	}
	utilization := 0.0
	if ledger.Total > 0 {
		utilization = float64(ledger.Occupied) / float64(ledger.Total)
	}
	startHours := []int{6, 10, 14, 18, 22}
	slots := make([]MaintenanceSlot, 0, candidates)
	for i := 0; i < candidates; i++ {
		day := from.AddDate(0, 0, i+1)
		hour := startHours[i%len(startHours)]
		start := time.Date(day.Year(), day.Month(), day.Day(), hour, 0, 0, 0, day.Location())
		blend := 0.5*expectedLoad(start) + 0.5*utilization
		score := math.Round((1-blend)*100) / 100
		slots = append(slots, MaintenanceSlot{
			Start: start,
			Score: score,
			Reason: fmt.Sprintf("expected load %.0f%%, %s utilization %.0f%%",
				expectedLoad(start)*100, ledger.Department, utilization*100),
		})
	}
	sort.SliceStable(slots, func(i, j int) bool { return slots[i].Score > slots[j].Score })
	return slots
}

// priorityWeight maps transport priority to an ordering weight.
func priorityWeight(priority domain.TransportPriority) float64 {
	switch priority {
	case domain.TransportPriorityMedium:
		return 2
	case domain.TransportPriorityLow:
		return 1
	default:
		return 0
	}
}

// TransportRoute orders transports by urgency: priority dominates, waiting
// age breaks ties up to one hour. The sort is stable so equal scores keep
// their creation order.
func TransportRoute(transports []domain.Transport, now time.Time) []domain.Transport {
	out := make([]domain.Transport, len(transports))
	copy(out, transports)
	score := func(tr domain.Transport) float64 {
		age := now.Sub(tr.CreatedAt).Minutes()
		if age < 0 {
			age = 0
		}
		return priorityWeight(tr.Priority)*10 + math.Min(1, age/60)*5
	}
	sort.SliceStable(out, func(i, j int) bool { return score(out[i]) > score(out[j]) })
	return out
}

// Allocation is one department's share of a resource pool.
type Allocation struct {
	Department string `json:"department"`
	Resource   string `json:"resource"`
	Amount     int    `json:"amount"`
}

// ResourceAllocation distributes each named resource pool greedily: the most
// utilized departments receive proportional shares first until the pool is
// exhausted.
func ResourceAllocation(beds []domain.DepartmentBeds, pools map[string]int) []Allocation {
	ranked := make([]domain.DepartmentBeds, len(beds))
	copy(ranked, beds)
	sort.SliceStable(ranked, func(i, j int) bool {
		return utilization(ranked[i]) > utilization(ranked[j])
	})
	totalUtil := 0.0
	for _, ledger := range ranked {
		totalUtil += utilization(ledger)
	}
	resources := make([]string, 0, len(pools))
	for resource := range pools {
		resources = append(resources, resource)
	}
	sort.Strings(resources)

	var allocations []Allocation
	for _, resource := range resources {
		remaining := pools[resource]
		for _, ledger := range ranked {
			if remaining <= 0 {
				break
			}
			share := 0
			if totalUtil > 0 {
				share = int(math.Round(float64(pools[resource]) * utilization(ledger) / totalUtil))
			}
			if share > remaining {
				share = remaining
			}
			if share <= 0 {
				continue
			}
			allocations = append(allocations, Allocation{
				Department: ledger.Department,
				Resource:   resource,
				Amount:     share,
			})
			remaining -= share
		}
	}
	return allocations
}

func utilization(ledger domain.DepartmentBeds) float64 {
	if ledger.Total == 0 {
		return 0
	}
	return float64(ledger.Occupied) / float64(ledger.Total)
}
