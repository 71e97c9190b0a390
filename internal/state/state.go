// Package state holds the counters shared by every task of a simulation run.
//
// None of it is package-level: a Shared value is created by the caller, handed
// to the reception, the tellers and the queues, and reset between runs.
package state

import (
	"sync"
	"sync/atomic"
)

// Shared groups the three independently locked counter sets of a run.
type Shared struct {
	IDs      *Identity
	Arrivals *Arrivals
	Stats    *Aggregates
}

func New() *Shared {
	s := &Shared{
		IDs:      &Identity{},
		Arrivals: &Arrivals{},
		Stats:    &Aggregates{},
	}
	s.Reset()
	return s
}

// Reset returns every counter to its initial value. It must be called
// between runs, after results have been read.
func (s *Shared) Reset() {
	s.IDs.Reset()
	s.Arrivals.Reset()
	s.Stats.Reset()
}

// Identity hands out customer, queue and teller numbers.
type Identity struct {
	mu           sync.Mutex
	nextCustomer int
	nextQueue    int
	nextTeller   int
}

// NextCustomer returns the next customer ID, starting at 0.
func (i *Identity) NextCustomer() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	id := i.nextCustomer
	i.nextCustomer++
	return id
}

// NextQueue returns the next queue ID, starting at 1.
func (i *Identity) NextQueue() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	id := i.nextQueue
	i.nextQueue++
	return id
}

// NextTeller returns the next teller ID, starting at 1.
func (i *Identity) NextTeller() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	id := i.nextTeller
	i.nextTeller++
	return id
}

func (i *Identity) Reset() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.nextCustomer = 0
	i.nextQueue = 1
	i.nextTeller = 1
}

// Arrivals is written only by the reception goroutine. The atomics let
// observers read it while a run is in progress.
type Arrivals struct {
	remaining atomic.Int64
	arrived   atomic.Int64
	dropped   atomic.Int64
}

// Begin sets the number of customers still to be admitted.
func (a *Arrivals) Begin(target int) {
	a.remaining.Store(int64(target))
}

// Attempted counts one arrival attempt, admitted or dropped. The count
// indexes the arrival delay sequence.
func (a *Arrivals) Attempted() { a.arrived.Add(1) }
func (a *Arrivals) Admitted()  { a.remaining.Add(-1) }
func (a *Arrivals) Dropped()   { a.dropped.Add(1) }

func (a *Arrivals) Remaining() int { return int(a.remaining.Load()) }
func (a *Arrivals) Arrived() int   { return int(a.arrived.Load()) }
func (a *Arrivals) DropCount() int { return int(a.dropped.Load()) }

func (a *Arrivals) Reset() {
	a.remaining.Store(0)
	a.arrived.Store(0)
	a.dropped.Store(0)
}
