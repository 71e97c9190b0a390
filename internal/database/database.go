package database

import (
	"banksim/internal/models"
	"database/sql"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// ErrNotFound is returned when no stored run matches.
var ErrNotFound = errors.New("run not found")

// DB wraps the SQL database with helper methods
type DB struct {
	*sql.DB
	driver string
}

// New opens the run history store. driver is "sqlite3" or "pgx"; the caller
// imports the matching driver package.
func New(driver, dataSourceName string) (*DB, error) {
	db, err := sql.Open(driver, dataSourceName)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s database", driver)
	}
	if driver == "sqlite3" {
		// One connection keeps :memory: databases and writes consistent.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "verify %s connection", driver)
	}
	return &DB{DB: db, driver: driver}, nil
}

// InitSchema initializes the database schema
func (db *DB) InitSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			mode TEXT NOT NULL,
			customers INTEGER NOT NULL,
			acceleration INTEGER NOT NULL,
			queue_capacity INTEGER NOT NULL,
			processed INTEGER NOT NULL,
			processed_final INTEGER NOT NULL,
			arrived INTEGER NOT NULL,
			dropped INTEGER NOT NULL,
			wait_total DOUBLE PRECISION NOT NULL,
			wait_average DOUBLE PRECISION NOT NULL,
			wait_min DOUBLE PRECISION NOT NULL,
			wait_max DOUBLE PRECISION NOT NULL,
			per_teller TEXT NOT NULL,
			per_queue TEXT NOT NULL,
			duration_ms BIGINT NOT NULL,
			interrupted BOOLEAN NOT NULL,
			started_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_mode ON runs(mode)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at)`,
	}

	for i, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return errors.Wrapf(err, "init schema: statement #%d", i+1)
		}
	}
	return nil
}

// InsertRun stores a finished run
func (db *DB) InsertRun(run *models.RunResult) error {
	perTeller, err := json.Marshal(run.PerTeller)
	if err != nil {
		return errors.Wrap(err, "encode per-teller counts")
	}
	perQueue, err := json.Marshal(run.PerQueue)
	if err != nil {
		return errors.Wrap(err, "encode per-queue counts")
	}

	_, err = db.Exec(db.rebind(`
		INSERT INTO runs (id, mode, customers, acceleration, queue_capacity, processed, processed_final,
		                  arrived, dropped, wait_total, wait_average, wait_min, wait_max,
		                  per_teller, per_queue, duration_ms, interrupted, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`), run.ID, string(run.Mode), run.Customers, run.Acceleration, run.QueueCapacity, run.Processed, run.ProcessedFinal,
		run.Arrived, run.Dropped, run.WaitTotal, run.WaitAverage, run.WaitMin, run.WaitMax,
		string(perTeller), string(perQueue), run.Duration.Milliseconds(), run.Interrupted, run.StartedAt.UTC())
	return errors.Wrapf(err, "insert run %s", run.ID)
}

const selectRun = `SELECT id, mode, customers, acceleration, queue_capacity, processed, processed_final,
	arrived, dropped, wait_total, wait_average, wait_min, wait_max,
	per_teller, per_queue, duration_ms, interrupted, started_at
	FROM runs`

// GetRunByID retrieves a run by its ID
func (db *DB) GetRunByID(id string) (*models.RunResult, error) {
	rows, err := db.Query(db.rebind(selectRun+" WHERE id = ?"), id)
	if err != nil {
		return nil, errors.Wrapf(err, "query run %s", id)
	}
	defer rows.Close()

	runs, err := scanRuns(rows)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, errors.Wrap(ErrNotFound, id)
	}
	return &runs[0], nil
}

// ListRuns retrieves runs newest first, optionally filtered by mode
func (db *DB) ListRuns(mode string, limit int) ([]models.RunResult, error) {
	query := selectRun + " WHERE 1=1"
	args := []interface{}{}

	if mode != "" {
		query += " AND mode = ?"
		args = append(args, mode)
	}

	query += " ORDER BY started_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := db.Query(db.rebind(query), args...)
	if err != nil {
		return nil, errors.Wrap(err, "list runs")
	}
	defer rows.Close()

	return scanRuns(rows)
}

// GetMetrics summarises the stored runs per mode
func (db *DB) GetMetrics() (*models.Metrics, error) {
	var metrics models.Metrics

	if err := db.QueryRow("SELECT COUNT(*) FROM runs").Scan(&metrics.TotalRuns); err != nil {
		return nil, errors.Wrap(err, "count runs")
	}
	if err := db.QueryRow(db.rebind("SELECT COUNT(*) FROM runs WHERE interrupted = ?"), true).Scan(&metrics.Interrupted); err != nil {
		return nil, errors.Wrap(err, "count interrupted runs")
	}

	rows, err := db.Query(`
		SELECT mode, COUNT(*), COALESCE(AVG(wait_average), 0), COALESCE(AVG(wait_total), 0)
		FROM runs GROUP BY mode ORDER BY mode
	`)
	if err != nil {
		return nil, errors.Wrap(err, "aggregate runs by mode")
	}
	defer rows.Close()

	for rows.Next() {
		var m models.ModeMetrics
		var mode string
		if err := rows.Scan(&mode, &m.Runs, &m.AvgWaitAverage, &m.AvgWaitTotal); err != nil {
			return nil, errors.Wrap(err, "scan mode metrics")
		}
		m.Mode = models.Mode(mode)
		metrics.Modes = append(metrics.Modes, m)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate mode metrics")
	}

	best, err := db.Query(db.rebind(selectRun + " WHERE interrupted = ? AND processed > 0 ORDER BY wait_average ASC LIMIT 1"), false)
	if err != nil {
		return nil, errors.Wrap(err, "query best run")
	}
	defer best.Close()

	runs, err := scanRuns(best)
	if err != nil {
		return nil, err
	}
	if len(runs) > 0 {
		metrics.Best = &runs[0]
	}

	return &metrics, nil
}

// Helper functions

func scanRuns(rows *sql.Rows) ([]models.RunResult, error) {
	runs := []models.RunResult{}
	for rows.Next() {
		var run models.RunResult
		var mode, perTeller, perQueue string
		var durationMs int64

		err := rows.Scan(&run.ID, &mode, &run.Customers, &run.Acceleration, &run.QueueCapacity,
			&run.Processed, &run.ProcessedFinal, &run.Arrived, &run.Dropped,
			&run.WaitTotal, &run.WaitAverage, &run.WaitMin, &run.WaitMax,
			&perTeller, &perQueue, &durationMs, &run.Interrupted, &run.StartedAt)
		if err != nil {
			return nil, errors.Wrap(err, "scan run")
		}

		run.Mode = models.Mode(mode)
		run.Duration = time.Duration(durationMs) * time.Millisecond
		if err := json.Unmarshal([]byte(perTeller), &run.PerTeller); err != nil {
			return nil, errors.Wrapf(err, "decode per-teller counts of run %s", run.ID)
		}
		if err := json.Unmarshal([]byte(perQueue), &run.PerQueue); err != nil {
			return nil, errors.Wrapf(err, "decode per-queue counts of run %s", run.ID)
		}

		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate runs")
	}
	return runs, nil
}

// rebind rewrites ? placeholders to $n for the pgx driver.
func (db *DB) rebind(query string) string {
	if db.driver != "pgx" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
