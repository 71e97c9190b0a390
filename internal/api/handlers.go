package api

import (
	"banksim/internal/database"
	"banksim/internal/dataset"
	"banksim/internal/models"
	"banksim/internal/ratelimit"
	"banksim/internal/simulation"
	"banksim/internal/websocket"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// RunRequest asks for one or both disciplines to be simulated
type RunRequest struct {
	Mode          string `json:"mode"` // single, multi or compare
	Customers     int    `json:"customers"`
	Acceleration  int    `json:"acceleration"`
	Seed          int64  `json:"seed,omitempty"`
	QueueCapacity int    `json:"queue_capacity,omitempty"`
	MinDelay      int    `json:"min_delay,omitempty"`
	MaxDelay      int    `json:"max_delay,omitempty"`
}

// RunAccepted is returned once a run has been started
type RunAccepted struct {
	Status string        `json:"status"`
	Modes  []models.Mode `json:"modes"`
	Seed   int64         `json:"seed"`
}

// Server holds all HTTP handlers and dependencies
type Server struct {
	ctx         context.Context // runs outlive the request that started them
	db          *database.DB
	runner      *simulation.Runner
	rateLimiter *ratelimit.RateLimiter
	wsManager   *websocket.Manager
	upgrader    ws.Upgrader
	log         logrus.FieldLogger
}

// NewServer creates a new API server. db may be nil, in which case results
// are broadcast but not stored.
func NewServer(ctx context.Context, db *database.DB, runner *simulation.Runner, wsManager *websocket.Manager, ratePerMin int, log logrus.FieldLogger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Server{
		ctx:         ctx,
		db:          db,
		runner:      runner,
		rateLimiter: ratelimit.New(ratePerMin, time.Minute),
		wsManager:   wsManager,
		upgrader: ws.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log: log,
	}
}

// SubmitRun handles simulation launches
func (s *Server) SubmitRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	modes, err := modesFor(req.Mode)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if req.Customers <= 0 || req.Customers > models.MaxCustomers {
		http.Error(w, fmt.Sprintf("customers must be between 1 and %d", models.MaxCustomers), http.StatusBadRequest)
		return
	}
	if req.QueueCapacity < 0 || req.QueueCapacity > req.Customers {
		http.Error(w, "queue_capacity must be between 0 and customers", http.StatusBadRequest)
		return
	}
	if req.MinDelay == 0 && req.MaxDelay == 0 {
		req.MinDelay, req.MaxDelay = dataset.DefaultMinDelay, dataset.DefaultMaxDelay
	}
	if req.Seed == 0 {
		req.Seed = time.Now().UnixNano()
	}

	data, err := dataset.Generate(req.Customers, req.MinDelay, req.MaxDelay, req.Seed)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	cfg := simulation.Config{
		Customers:     req.Customers,
		Acceleration:  req.Acceleration,
		QueueCapacity: req.QueueCapacity,
		ArrivalDelays: data.ArrivalDelays,
		ServiceDelays: data.ServiceDelays,
	}
	if err := cfg.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// Rate limiting check
	client := clientKey(r)
	if !s.rateLimiter.Allow(launchKey(client, modes)) {
		s.log.Warnf("[RATE_LIMIT] Client %s exceeded rate limit for %v", client, modes)
		http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
		return
	}

	err = s.runner.Start(s.ctx, cfg, s.finishRuns, modes...)
	switch {
	case errors.Is(err, simulation.ErrBusy):
		http.Error(w, "A simulation is already running", http.StatusConflict)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.log.Infof("[SUBMIT] Client=%s Modes=%v Customers=%d Seed=%d", client, modes, req.Customers, req.Seed)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(RunAccepted{Status: "started", Modes: modes, Seed: req.Seed})
}

// finishRuns stores and broadcasts the results of a background run
func (s *Server) finishRuns(results []*models.RunResult, err error) {
	if err != nil {
		s.log.Errorf("[ERROR] Simulation failed: %v", err)
	}
	for _, run := range results {
		if s.db != nil {
			if err := s.db.InsertRun(run); err != nil {
				s.log.Errorf("[ERROR] RunID=%s Failed to store run: %v", run.ID, err)
			}
		}
		s.log.Infof("[FINISH] RunID=%s Mode=%s Processed=%d AvgWait=%.5f", run.ID, run.Mode, run.Processed, run.WaitAverage)
		s.wsManager.BroadcastRun(run)
	}
}

// GetRunStatus returns one stored run
func (s *Server) GetRunStatus(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		http.Error(w, "Run history is disabled", http.StatusNotFound)
		return
	}

	runID := r.URL.Query().Get("id")
	if runID == "" {
		http.Error(w, "run id is required", http.StatusBadRequest)
		return
	}

	run, err := s.db.GetRunByID(runID)
	if errors.Is(err, database.ErrNotFound) {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.log.Errorf("[ERROR] Failed to get run: %v", err)
		http.Error(w, "Failed to fetch run", http.StatusInternalServerError)
		return
	}

	writeJSON(w, run)
}

// ListRuns returns stored runs
func (s *Server) ListRuns(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeJSON(w, []models.RunResult{})
		return
	}

	mode := r.URL.Query().Get("mode")
	limit := 100
	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	runs, err := s.db.ListRuns(mode, limit)
	if err != nil {
		s.log.Errorf("[ERROR] Failed to query runs: %v", err)
		http.Error(w, "Failed to fetch runs", http.StatusInternalServerError)
		return
	}

	writeJSON(w, runs)
}

// GetMetrics returns history metrics
func (s *Server) GetMetrics(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeJSON(w, models.Metrics{})
		return
	}

	metrics, err := s.db.GetMetrics()
	if err != nil {
		s.log.Errorf("[ERROR] Failed to get metrics: %v", err)
		http.Error(w, "Failed to fetch metrics", http.StatusInternalServerError)
		return
	}

	writeJSON(w, metrics)
}

// GetState returns the live counters of the current run
func (s *Server) GetState(w http.ResponseWriter, r *http.Request) {
	shared := s.runner.Shared()
	writeJSON(w, map[string]interface{}{
		"stats":     shared.Stats.Snapshot(),
		"remaining": shared.Arrivals.Remaining(),
		"arrived":   shared.Arrivals.Arrived(),
		"dropped":   shared.Arrivals.DropCount(),
	})
}

// HandleWebSocket handles WebSocket connections
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Errorf("[ERROR] WebSocket upgrade failed: %v", err)
		return
	}

	s.wsManager.AddClient(conn)
}

// SetupRoutes sets up all HTTP routes
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/runs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			s.SubmitRun(w, r)
		} else if r.Method == http.MethodGet {
			s.ListRuns(w, r)
		} else {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("/api/runs/status", s.GetRunStatus)
	mux.HandleFunc("/api/metrics", s.GetMetrics)
	mux.HandleFunc("/api/state", s.GetState)
	mux.HandleFunc("/ws", s.HandleWebSocket)
}

func modesFor(mode string) ([]models.Mode, error) {
	switch mode {
	case "compare":
		return []models.Mode{models.ModeSingle, models.ModeMulti}, nil
	case "", string(models.ModeSingle):
		return []models.Mode{models.ModeSingle}, nil
	case string(models.ModeMulti):
		return []models.Mode{models.ModeMulti}, nil
	default:
		return nil, errors.Errorf("unknown mode %q", mode)
	}
}

// launchKey limits each client separately per requested discipline set.
func launchKey(client string, modes []models.Mode) string {
	key := client
	for _, m := range modes {
		key += "/" + string(m)
	}
	return key
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
