package sched

import (
	"log"
	"time"
)

// Freq is the release rate of a periodic task, in jobs per second.
type Freq float64

// Hz is one release per second.
const Hz Freq = 1

// Period returns the time between two consecutive releases.
func (f Freq) Period() time.Duration {
	if f <= 0 {
		log.Panic("frequency must be positive")
	}

	return time.Duration(float64(time.Second) / float64(f))
}

// FreqOf returns the frequency of a period.
func FreqOf(period time.Duration) Freq {
	if period <= 0 {
		log.Panic("period must be positive")
	}

	return Freq(float64(time.Second) / float64(period))
}

// Release returns the release time of the n-th job of a task whose first job
// is released at phase. It accumulates periods from the phase rather than
// from the observed time, so late wakeups never shift later releases.
//
//	phase      Release(1)  Release(2)
//	|----------|-----------|----------->
func (f Freq) Release(phase time.Time, n uint64) time.Time {
	return phase.Add(time.Duration(n) * f.Period())
}
