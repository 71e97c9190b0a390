package database

import (
	"banksim/internal/models"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New("sqlite3", ":memory:")
	require.NoError(t, err)
	require.NoError(t, db.InitSchema())
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleRun(id string, mode models.Mode, avg float64, started time.Time) *models.RunResult {
	return &models.RunResult{
		ID:             id,
		Mode:           mode,
		Customers:      10,
		Acceleration:   100,
		QueueCapacity:  10,
		Processed:      10,
		ProcessedFinal: 10,
		Arrived:        10,
		WaitTotal:      avg * 10,
		WaitAverage:    avg,
		WaitMin:        avg / 2,
		WaitMax:        avg * 2,
		PerTeller:      map[int]int{1: 4, 2: 3, 3: 3},
		PerQueue:       map[int]int{1: 10},
		Duration:       1500 * time.Millisecond,
		StartedAt:      started,
	}
}

func TestInsertAndGetRun(t *testing.T) {
	db := setupTestDB(t)
	started := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	run := sampleRun("run-1", models.ModeSingle, 1.25, started)

	require.NoError(t, db.InsertRun(run))

	got, err := db.GetRunByID("run-1")
	require.NoError(t, err)
	assert.Equal(t, run.Mode, got.Mode)
	assert.Equal(t, run.Processed, got.Processed)
	assert.InDelta(t, run.WaitAverage, got.WaitAverage, 1e-9)
	assert.Equal(t, run.PerTeller, got.PerTeller)
	assert.Equal(t, run.PerQueue, got.PerQueue)
	assert.Equal(t, run.Duration, got.Duration)
	assert.True(t, started.Equal(got.StartedAt))
	assert.False(t, got.Interrupted)
}

func TestGetRunNotFound(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.GetRunByID("missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestListRuns(t *testing.T) {
	db := setupTestDB(t)
	base := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, db.InsertRun(sampleRun("a", models.ModeSingle, 1, base)))
	require.NoError(t, db.InsertRun(sampleRun("b", models.ModeMulti, 2, base.Add(time.Minute))))
	require.NoError(t, db.InsertRun(sampleRun("c", models.ModeSingle, 3, base.Add(2*time.Minute))))

	runs, err := db.ListRuns("", 10)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "c", runs[0].ID, "newest first")
	assert.Equal(t, "a", runs[2].ID)

	runs, err = db.ListRuns(string(models.ModeSingle), 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	for _, r := range runs {
		assert.Equal(t, models.ModeSingle, r.Mode)
	}

	runs, err = db.ListRuns("", 1)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestGetMetrics(t *testing.T) {
	db := setupTestDB(t)
	base := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

	metrics, err := db.GetMetrics()
	require.NoError(t, err)
	assert.Zero(t, metrics.TotalRuns)
	assert.Nil(t, metrics.Best)

	require.NoError(t, db.InsertRun(sampleRun("s1", models.ModeSingle, 1, base)))
	require.NoError(t, db.InsertRun(sampleRun("s2", models.ModeSingle, 3, base)))
	require.NoError(t, db.InsertRun(sampleRun("m1", models.ModeMulti, 2, base)))
	cut := sampleRun("m2", models.ModeMulti, 0.1, base)
	cut.Interrupted = true
	require.NoError(t, db.InsertRun(cut))

	metrics, err = db.GetMetrics()
	require.NoError(t, err)
	assert.EqualValues(t, 4, metrics.TotalRuns)
	assert.EqualValues(t, 1, metrics.Interrupted)

	require.Len(t, metrics.Modes, 2)
	assert.Equal(t, models.ModeMulti, metrics.Modes[0].Mode)
	assert.Equal(t, models.ModeSingle, metrics.Modes[1].Mode)
	assert.EqualValues(t, 2, metrics.Modes[1].Runs)
	assert.InDelta(t, 2.0, metrics.Modes[1].AvgWaitAverage, 1e-9)

	require.NotNil(t, metrics.Best)
	assert.Equal(t, "s1", metrics.Best.ID, "interrupted runs never count as best")
}

func TestRebind(t *testing.T) {
	pg := &DB{driver: "pgx"}
	assert.Equal(t, "SELECT * FROM runs WHERE id = $1 AND mode = $2", pg.rebind("SELECT * FROM runs WHERE id = ? AND mode = ?"))

	lite := &DB{driver: "sqlite3"}
	assert.Equal(t, "WHERE id = ?", lite.rebind("WHERE id = ?"))
}
