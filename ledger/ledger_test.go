package ledger

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bus-attendance-server-go/models"
	"bus-attendance-server-go/roster"
	"bus-attendance-server-go/store"
)

type fixture struct {
	registry *roster.Registry
	ledger   *Ledger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "attendance.xlsx"))
	require.NoError(t, err)
	reg := roster.New(s)
	require.NoError(t, reg.Provision([]string{"Route A", "Route B"}))
	return &fixture{registry: reg, ledger: New(s)}
}

func (f *fixture) addStudent(t *testing.T, route, name string) models.Student {
	t.Helper()
	s, err := f.registry.AddStudent(route, name)
	require.NoError(t, err)
	return s
}

func TestSetAttendance_RoundTrip(t *testing.T) {
	f := newFixture(t)
	ram := f.addStudent(t, "Route A", "Ram")
	sita := f.addStudent(t, "Route A", "Sita")

	// No date column yet: empty mapping, not an error.
	att, err := f.ledger.Attendance("Route A", "2025-01-10")
	require.NoError(t, err)
	assert.Empty(t, att)

	marks := map[string]bool{ram.ID: true, sita.ID: false}
	require.NoError(t, f.ledger.SetAttendance("Route A", "2025-01-10", marks))

	att, err = f.ledger.Attendance("Route A", "2025-01-10")
	require.NoError(t, err)
	assert.Equal(t, marks, att)
}

func TestSetAttendance_UnknownRoute(t *testing.T) {
	f := newFixture(t)

	err := f.ledger.SetAttendance("Route Z", "2025-01-10", map[string]bool{"Route Z_0": true})
	require.ErrorIs(t, err, models.ErrRouteNotFound)

	_, err = f.ledger.Attendance("Route Z", "2025-01-10")
	require.ErrorIs(t, err, models.ErrRouteNotFound)
}

func TestSetAttendance_RequiresDate(t *testing.T) {
	f := newFixture(t)

	require.Error(t, f.ledger.SetAttendance("Route A", "", nil))
	require.Error(t, f.ledger.SetAttendance("Route A", "Ordinal", nil))
}

func TestSetAttendance_DropsArchivedStudents(t *testing.T) {
	f := newFixture(t)
	ram := f.addStudent(t, "Route A", "Ram")
	sita := f.addStudent(t, "Route A", "Sita")
	require.NoError(t, f.registry.Archive(ram.ID))

	err := f.ledger.SetAttendance("Route A", "2025-01-10", map[string]bool{
		ram.ID:  true,
		sita.ID: true,
	})
	require.NoError(t, err)

	att, err := f.ledger.Attendance("Route A", "2025-01-10")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{sita.ID: true}, att)
}

func TestSetAttendance_DropsUnknownAndForeignIDs(t *testing.T) {
	f := newFixture(t)
	ram := f.addStudent(t, "Route A", "Ram")
	hari := f.addStudent(t, "Route B", "Hari")

	err := f.ledger.SetAttendance("Route A", "2025-01-10", map[string]bool{
		ram.ID:       true,
		hari.ID:      true, // belongs to another route
		"Route A_99": true, // no such slot
		"garbage":    true, // unparseable id
	})
	require.NoError(t, err)

	att, err := f.ledger.Attendance("Route A", "2025-01-10")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{ram.ID: true}, att)

	// Nothing leaked onto the other route.
	att, err = f.ledger.Attendance("Route B", "2025-01-10")
	require.NoError(t, err)
	assert.Empty(t, att)
}

func TestSetAttendance_NewDateKeepsExistingColumns(t *testing.T) {
	f := newFixture(t)
	ram := f.addStudent(t, "Route A", "Ram")

	require.NoError(t, f.ledger.SetAttendance("Route A", "2025-01-10", map[string]bool{ram.ID: true}))
	require.NoError(t, f.ledger.SetAttendance("Route A", "2025-01-11", map[string]bool{ram.ID: false}))

	att, err := f.ledger.Attendance("Route A", "2025-01-10")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{ram.ID: true}, att)

	att, err = f.ledger.Attendance("Route A", "2025-01-11")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{ram.ID: false}, att)
}

func TestSetAttendance_OverwritesCells(t *testing.T) {
	f := newFixture(t)
	ram := f.addStudent(t, "Route A", "Ram")

	require.NoError(t, f.ledger.SetAttendance("Route A", "2025-01-10", map[string]bool{ram.ID: false}))
	require.NoError(t, f.ledger.SetAttendance("Route A", "2025-01-10", map[string]bool{ram.ID: true}))

	att, err := f.ledger.Attendance("Route A", "2025-01-10")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{ram.ID: true}, att)
}

// Marks written after an earlier slot is archived must land on the row with
// the matching ordinal, not on the row at that list position.
func TestSetAttendance_RowLookupByOrdinalNotPosition(t *testing.T) {
	f := newFixture(t)
	ram := f.addStudent(t, "Route A", "Ram")   // ordinal 0
	sita := f.addStudent(t, "Route A", "Sita") // ordinal 1
	gita := f.addStudent(t, "Route A", "Gita") // ordinal 2

	require.NoError(t, f.ledger.SetAttendance("Route A", "2025-01-10", map[string]bool{
		ram.ID: true, sita.ID: true, gita.ID: true,
	}))
	require.NoError(t, f.registry.Archive(ram.ID))

	require.NoError(t, f.ledger.SetAttendance("Route A", "2025-01-11", map[string]bool{gita.ID: false}))

	history, err := f.ledger.StudentHistory(gita.ID)
	require.NoError(t, err)
	assert.Equal(t, []Entry{
		{Date: "2025-01-10", Present: true},
		{Date: "2025-01-11", Present: false},
	}, history)

	// Sita was never marked on the 11th.
	history, err = f.ledger.StudentHistory(sita.ID)
	require.NoError(t, err)
	assert.Equal(t, []Entry{{Date: "2025-01-10", Present: true}}, history)
}

func TestAttendance_ExcludesArchivedButHistoryRemains(t *testing.T) {
	f := newFixture(t)
	ram := f.addStudent(t, "Route A", "Ram")
	sita := f.addStudent(t, "Route A", "Sita")

	require.NoError(t, f.ledger.SetAttendance("Route A", "2025-01-10", map[string]bool{
		ram.ID: true, sita.ID: false,
	}))
	require.NoError(t, f.registry.Archive(ram.ID))

	att, err := f.ledger.Attendance("Route A", "2025-01-10")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{sita.ID: false}, att)

	// Identity-addressed history still serves the pre-archive marks.
	history, err := f.ledger.StudentHistory(ram.ID)
	require.NoError(t, err)
	assert.Equal(t, []Entry{{Date: "2025-01-10", Present: true}}, history)
}

func TestStudentHistory_SortedByDateKey(t *testing.T) {
	f := newFixture(t)
	ram := f.addStudent(t, "Route A", "Ram")

	require.NoError(t, f.ledger.SetAttendance("Route A", "2025-02-01", map[string]bool{ram.ID: true}))
	require.NoError(t, f.ledger.SetAttendance("Route A", "2025-01-05", map[string]bool{ram.ID: false}))
	require.NoError(t, f.ledger.SetAttendance("Route A", "2025-01-20", map[string]bool{ram.ID: true}))

	history, err := f.ledger.StudentHistory(ram.ID)
	require.NoError(t, err)
	assert.Equal(t, []Entry{
		{Date: "2025-01-05", Present: false},
		{Date: "2025-01-20", Present: true},
		{Date: "2025-02-01", Present: true},
	}, history)
}

func TestStudentHistory_UnknownStudent(t *testing.T) {
	f := newFixture(t)

	_, err := f.ledger.StudentHistory("Route A_0")
	require.ErrorIs(t, err, models.ErrStudentNotFound)
	_, err = f.ledger.StudentHistory("nonsense")
	require.ErrorIs(t, err, models.ErrBadStudentID)
}

func TestStudentHistory_NoMarksYieldsEmpty(t *testing.T) {
	f := newFixture(t)
	ram := f.addStudent(t, "Route A", "Ram")

	history, err := f.ledger.StudentHistory(ram.ID)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestDateHistory_AcrossRoutesActiveOnly(t *testing.T) {
	f := newFixture(t)
	ram := f.addStudent(t, "Route A", "Ram")
	sita := f.addStudent(t, "Route A", "Sita")
	hari := f.addStudent(t, "Route B", "Hari")

	require.NoError(t, f.ledger.SetAttendance("Route A", "2025-01-10", map[string]bool{
		ram.ID: true, sita.ID: false,
	}))
	require.NoError(t, f.ledger.SetAttendance("Route B", "2025-01-10", map[string]bool{hari.ID: true}))
	require.NoError(t, f.registry.Archive(sita.ID))

	entries, err := f.ledger.DateHistory("2025-01-10")
	require.NoError(t, err)
	assert.Equal(t, []DateEntry{
		{StudentName: "Ram", Route: "Route A", Present: true},
		{StudentName: "Hari", Route: "Route B", Present: true},
	}, entries)
}

func TestDateHistory_UnknownDate(t *testing.T) {
	f := newFixture(t)
	ram := f.addStudent(t, "Route A", "Ram")
	require.NoError(t, f.ledger.SetAttendance("Route A", "2025-01-10", map[string]bool{ram.ID: true}))

	entries, err := f.ledger.DateHistory("2030-12-31")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

// Two writers on disjoint student sets for the same (route, date): the store
// lock serialises the load-modify-save cycles, so neither update is lost.
func TestSetAttendance_ConcurrentWritersNoLostUpdate(t *testing.T) {
	f := newFixture(t)
	ram := f.addStudent(t, "Route A", "Ram")
	sita := f.addStudent(t, "Route A", "Sita")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		errs[0] = f.ledger.SetAttendance("Route A", "2025-01-10", map[string]bool{ram.ID: true})
	}()
	go func() {
		defer wg.Done()
		errs[1] = f.ledger.SetAttendance("Route A", "2025-01-10", map[string]bool{sita.ID: false})
	}()
	wg.Wait()
	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	att, err := f.ledger.Attendance("Route A", "2025-01-10")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{ram.ID: true, sita.ID: false}, att)
}
