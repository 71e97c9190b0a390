package state

import (
	"maps"
	"sync"
)

// Aggregates is the wait-time bookkeeping shared by all tellers of a run.
// Every method takes the same lock, so teller updates never interleave.
type Aggregates struct {
	mu             sync.Mutex
	target         int
	processed      int
	processedFinal int
	lastServed     int
	waitTotal      float64
	waitAverage    float64
	waitMin        float64
	waitMax        float64
	open           bool
	perTeller      map[int]int
	perQueue       map[int]int
}

// Snapshot is a consistent copy of the aggregates.
type Snapshot struct {
	Target         int         `json:"target"`
	Processed      int         `json:"processed"`
	ProcessedFinal int         `json:"processed_final"`
	LastServed     int         `json:"last_served"`
	WaitTotal      float64     `json:"wait_total"`
	WaitAverage    float64     `json:"wait_average"`
	WaitMin        float64     `json:"wait_min"`
	WaitMax        float64     `json:"wait_max"`
	Open           bool        `json:"open"`
	PerTeller      map[int]int `json:"per_teller"`
	PerQueue       map[int]int `json:"per_queue"`
}

// Open sets the run target and reopens the bank. Tellers call it on
// construction; the cumulative wait is cleared as well.
func (a *Aggregates) Open(target int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.target = target
	a.open = true
	a.waitTotal = 0
}

// IsOpen reports whether no teller has closed the bank yet.
func (a *Aggregates) IsOpen() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.open
}

// Processed returns the number of customers served by all tellers.
func (a *Aggregates) Processed() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.processed
}

// CloseIfDone closes the bank when the run is finished and reports whether it
// did. The run is finished once the processed count reaches the target, or
// once the last served customer is the last one expected by ID. The second
// check covers a sibling teller reaching the count while this one still
// holds an older customer; both are needed to bound termination.
func (a *Aggregates) CloseIfDone() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.processed < a.target && a.lastServed+1 < a.target {
		return false
	}
	a.processedFinal = a.processed
	a.open = false
	return true
}

// Close shuts the bank regardless of progress.
func (a *Aggregates) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.processedFinal = a.processed
	a.open = false
}

// Record folds one served customer into the totals and returns the new
// processed count and cumulative wait.
func (a *Aggregates) Record(teller, queue, customer int, wait float64) (int, float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.processed++
	a.lastServed = customer
	a.waitTotal += wait
	a.waitAverage = a.waitTotal / float64(a.processed)
	if a.processed == 1 || wait < a.waitMin {
		a.waitMin = wait
	}
	if wait > a.waitMax {
		a.waitMax = wait
	}
	a.perTeller[teller]++
	a.perQueue[queue]++
	return a.processed, a.waitTotal
}

func (a *Aggregates) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Snapshot{
		Target:         a.target,
		Processed:      a.processed,
		ProcessedFinal: a.processedFinal,
		LastServed:     a.lastServed,
		WaitTotal:      a.waitTotal,
		WaitAverage:    a.waitAverage,
		WaitMin:        a.waitMin,
		WaitMax:        a.waitMax,
		Open:           a.open,
		PerTeller:      maps.Clone(a.perTeller),
		PerQueue:       maps.Clone(a.perQueue),
	}
}

func (a *Aggregates) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.target = 0
	a.processed = 0
	a.processedFinal = 0
	a.lastServed = -1
	a.waitTotal = 0
	a.waitAverage = 0
	a.waitMin = 0
	a.waitMax = 0
	a.open = true
	a.perTeller = make(map[int]int)
	a.perQueue = make(map[int]int)
}
