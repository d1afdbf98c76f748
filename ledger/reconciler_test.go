package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bus-attendance-server-go/models"
)

func TestReplay_AppliesAllRecords(t *testing.T) {
	f := newFixture(t)
	ram := f.addStudent(t, "Route A", "Ram")
	hari := f.addStudent(t, "Route B", "Hari")
	rec := NewReconciler(f.ledger)

	result := rec.Replay([]models.SyncRecord{
		{Route: "Route A", Date: "2025-01-10", Attendance: map[string]bool{ram.ID: true}},
		{Route: "Route B", Date: "2025-01-10", Attendance: map[string]bool{hari.ID: false}},
	})
	assert.Equal(t, 2, result.Applied)
	assert.Empty(t, result.Failures)

	att, err := f.ledger.Attendance("Route A", "2025-01-10")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{ram.ID: true}, att)
}

func TestReplay_FailureDoesNotAbortBatch(t *testing.T) {
	f := newFixture(t)
	ram := f.addStudent(t, "Route A", "Ram")
	rec := NewReconciler(f.ledger)

	result := rec.Replay([]models.SyncRecord{
		{Route: "Route Z", Date: "2025-01-10", Attendance: map[string]bool{"Route Z_0": true}},
		{Route: "Route A", Date: "", Attendance: map[string]bool{ram.ID: true}},
		{Route: "", Date: "2025-01-10"},
		{Route: "Route A", Date: "2025-01-10", Attendance: map[string]bool{ram.ID: true}},
	})
	assert.Equal(t, 1, result.Applied)
	require.Len(t, result.Failures, 3)
	assert.Equal(t, "Route Z", result.Failures[0].Record.Route)

	// The good record landed despite earlier failures.
	att, err := f.ledger.Attendance("Route A", "2025-01-10")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{ram.ID: true}, att)
}

// Replaying the same batch twice converges to the same state: marks are a
// full overwrite of the targeted cells.
func TestReplay_Idempotent(t *testing.T) {
	f := newFixture(t)
	ram := f.addStudent(t, "Route A", "Ram")
	sita := f.addStudent(t, "Route A", "Sita")
	rec := NewReconciler(f.ledger)

	batch := []models.SyncRecord{
		{Route: "Route A", Date: "2025-01-10", Attendance: map[string]bool{ram.ID: true, sita.ID: false}},
		{Route: "Route A", Date: "2025-01-11", Attendance: map[string]bool{ram.ID: false}},
	}

	first := rec.Replay(batch)
	assert.Equal(t, 2, first.Applied)
	want, err := f.ledger.Attendance("Route A", "2025-01-10")
	require.NoError(t, err)

	second := rec.Replay(batch)
	assert.Equal(t, 2, second.Applied)
	again, err := f.ledger.Attendance("Route A", "2025-01-10")
	require.NoError(t, err)
	assert.Equal(t, want, again)

	history, err := f.ledger.StudentHistory(ram.ID)
	require.NoError(t, err)
	assert.Equal(t, []Entry{
		{Date: "2025-01-10", Present: true},
		{Date: "2025-01-11", Present: false},
	}, history)
}

// Out-of-order delivery: a late record for an earlier date appends its column
// without disturbing the later one.
func TestReplay_OutOfOrderDates(t *testing.T) {
	f := newFixture(t)
	ram := f.addStudent(t, "Route A", "Ram")
	rec := NewReconciler(f.ledger)

	result := rec.Replay([]models.SyncRecord{
		{Route: "Route A", Date: "2025-01-12", Attendance: map[string]bool{ram.ID: true}},
		{Route: "Route A", Date: "2025-01-10", Attendance: map[string]bool{ram.ID: false}},
	})
	assert.Equal(t, 2, result.Applied)

	history, err := f.ledger.StudentHistory(ram.ID)
	require.NoError(t, err)
	assert.Equal(t, []Entry{
		{Date: "2025-01-10", Present: false},
		{Date: "2025-01-12", Present: true},
	}, history)
}
