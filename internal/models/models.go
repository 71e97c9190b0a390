package models

import "time"

// Customer is a simulated arrival. Both fields are fixed at creation.
type Customer struct {
	id      int
	arrived time.Time
}

// NewCustomer stamps a customer with id and the current monotonic time.
func NewCustomer(id int) *Customer {
	return &Customer{id: id, arrived: time.Now()}
}

func (c *Customer) ID() int               { return c.id }
func (c *Customer) ArrivedAt() time.Time { return c.arrived }

// WaitTime returns the seconds elapsed between arrival and removedAt.
func (c *Customer) WaitTime(removedAt time.Time) float64 {
	return removedAt.Sub(c.arrived).Seconds()
}

// MaxCustomers caps the customers of one run. Datasets and queues are sized
// by it, so it bounds what a single request can allocate.
const MaxCustomers = 100000

// Mode selects the queueing discipline of a run
type Mode string

const (
	ModeSingle Mode = "single"
	ModeMulti  Mode = "multi"
)

// Valid reports whether m names a known discipline.
func (m Mode) Valid() bool {
	return m == ModeSingle || m == ModeMulti
}

// RunResult is the summary captured from the shared aggregates after a run
type RunResult struct {
	ID             string        `json:"id"`
	Mode           Mode          `json:"mode"`
	Customers      int           `json:"customers"`
	Acceleration   int           `json:"acceleration"`
	QueueCapacity  int           `json:"queue_capacity"`
	Processed      int           `json:"processed"`
	ProcessedFinal int           `json:"processed_final"`
	Arrived        int           `json:"arrived"`
	Dropped        int           `json:"dropped"`
	WaitTotal      float64       `json:"wait_total"`
	WaitAverage    float64       `json:"wait_average"`
	WaitMin        float64       `json:"wait_min"`
	WaitMax        float64       `json:"wait_max"`
	PerTeller      map[int]int   `json:"per_teller"`
	PerQueue       map[int]int   `json:"per_queue"`
	Duration       time.Duration `json:"duration"`
	Interrupted    bool          `json:"interrupted"`
	StartedAt      time.Time     `json:"started_at"`
}

// Metrics holds history-store metrics
type Metrics struct {
	TotalRuns   int64         `json:"total_runs"`
	Interrupted int64         `json:"interrupted_runs"`
	Modes       []ModeMetrics `json:"modes"`
	Best        *RunResult    `json:"best,omitempty"`
}

// ModeMetrics aggregates stored runs of one discipline
type ModeMetrics struct {
	Mode           Mode    `json:"mode"`
	Runs           int64   `json:"runs"`
	AvgWaitAverage float64 `json:"avg_wait_average"`
	AvgWaitTotal   float64 `json:"avg_wait_total"`
}

// Event types published while a simulation runs
const (
	EventArrived       = "customer_arrived"
	EventDropped       = "customer_dropped"
	EventServed        = "customer_served"
	EventTellerStopped = "teller_stopped"
	EventRunComplete   = "run_complete"
)

// Event is a single observation emitted by the reception, a teller or the
// simulation. Zero-valued fields are omitted on the wire.
type Event struct {
	Type      string    `json:"type"`
	RunID     string    `json:"run_id,omitempty"`
	Customer  int       `json:"customer"`
	Queue     int       `json:"queue,omitempty"`
	Teller    int       `json:"teller,omitempty"`
	Wait      float64   `json:"wait,omitempty"`
	WaitTotal float64   `json:"wait_total,omitempty"`
	Processed int       `json:"processed,omitempty"`
	At        time.Time `json:"at"`
}
