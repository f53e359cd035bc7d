package sched

import (
	"fmt"
	"sort"
)

// Band is the range of fixed real-time priorities the plan may hand out.
// Larger values are more urgent.
type Band struct {
	Min int
	Max int
}

// DefaultBand matches the priorities used on the reference vehicle.
func DefaultBand() Band {
	return Band{Min: 10, Max: 90}
}

// Plan assigns a fixed priority to every descriptor.
//
// Sporadic tasks always get Max. Aperiodic tasks take the bottom of the band,
// ordered by their requested priority. Periodic tasks sit above them, with
// shorter periods getting higher priorities (rate monotonic). Priorities are
// spread evenly over [Min, Max).
func Plan(descs []TaskDescriptor, band Band) map[string]int {
	if band.Max <= band.Min {
		panic(fmt.Sprintf("invalid priority band [%d, %d]", band.Min, band.Max))
	}

	var aperiodic, periodic []TaskDescriptor

	plan := make(map[string]int, len(descs))

	for _, d := range descs {
		switch d.Class {
		case Sporadic:
			plan[d.Name] = band.Max
		case Aperiodic:
			aperiodic = append(aperiodic, d)
		case Periodic:
			periodic = append(periodic, d)
		}
	}

	sort.SliceStable(aperiodic, func(i, j int) bool {
		return aperiodic[i].Priority < aperiodic[j].Priority
	})

	// Longest period first so that the rank grows with the rate.
	sort.SliceStable(periodic, func(i, j int) bool {
		return periodic[i].Period > periodic[j].Period
	})

	ranked := append(aperiodic, periodic...)
	if len(ranked) == 0 {
		return plan
	}

	span := band.Max - band.Min
	for rank, d := range ranked {
		plan[d.Name] = band.Min + rank*span/len(ranked)
	}

	return plan
}
