// Package ledger owns the per-route sparse attendance matrix: one table per
// route, one row per student ordinal, one column per date key. Dates are
// opaque strings matched by exact equality; columns are appended and never
// removed. Row lookup is always by the ordinal stored in the row, never by
// list position, so archiving and restoring cannot shift a mark onto the
// wrong student.
package ledger

import (
	"fmt"
	"sort"
	"strconv"

	"bus-attendance-server-go/models"
	"bus-attendance-server-go/roster"
	"bus-attendance-server-go/store"
)

const ordinalColumn = "Ordinal"

// Ledger is the AttendanceLedger service.
type Ledger struct {
	store *store.Store
}

// New creates a ledger on the shared store.
func New(s *store.Store) *Ledger {
	return &Ledger{store: s}
}

// Entry is one recorded mark in a student's history.
type Entry struct {
	Date    string `json:"date"`
	Present bool   `json:"status"`
}

// DateEntry is one recorded mark in a cross-route date history.
type DateEntry struct {
	StudentName string `json:"student_name"`
	Route       string `json:"route"`
	Present     bool   `json:"status"`
}

// Attendance returns the recorded marks of currently-Active students for one
// (route, date). A date with no column yields an empty map, not an error, and
// a student without a recorded mark is simply absent from the result.
func (l *Ledger) Attendance(route, date string) (map[string]bool, error) {
	out := make(map[string]bool)
	err := l.store.View(func(tx *store.Tx) error {
		if !roster.HasRoute(tx.Table(roster.RoutesTable), route) {
			return fmt.Errorf("%w: %q", models.ErrRouteNotFound, route)
		}
		active := roster.ActiveByOrdinal(tx.Table(roster.RosterTable), route)
		t := tx.Table(route)
		col := t.ColumnIndex(date)
		if col < 0 {
			return nil
		}
		iOrd := t.ColumnIndex(ordinalColumn)
		for _, row := range t.Rows {
			ord, err := strconv.Atoi(row[iOrd])
			if err != nil {
				continue
			}
			s, ok := active[ord]
			if !ok {
				continue
			}
			if mark := models.Mark(row[col]); mark.Recorded() {
				out[s.ID] = mark.Present()
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SetAttendance writes a batch of marks for one (route, date) as a unit.
// Entries addressing archived or unknown students are dropped silently; the
// remaining cells are a full overwrite, so replaying the same batch is
// idempotent. A new date key appends a column without disturbing existing
// ones.
func (l *Ledger) SetAttendance(route, date string, marks map[string]bool) error {
	if date == "" {
		return fmt.Errorf("ledger: date is required")
	}
	if date == ordinalColumn {
		return fmt.Errorf("ledger: date key %q is reserved", date)
	}
	return l.store.Update(func(tx *store.Tx) error {
		if !roster.HasRoute(tx.Table(roster.RoutesTable), route) {
			return fmt.Errorf("%w: %q", models.ErrRouteNotFound, route)
		}
		active := roster.ActiveByOrdinal(tx.Table(roster.RosterTable), route)
		t := tx.Table(route)
		if t.Empty() {
			t = &store.Table{Header: []string{ordinalColumn}}
		}
		col := t.ColumnIndex(date)
		if col < 0 {
			t.Header = append(t.Header, date)
			col = len(t.Header) - 1
			for i, row := range t.Rows {
				for len(row) < len(t.Header) {
					row = append(row, "")
				}
				t.Rows[i] = row
			}
		}
		iOrd := t.ColumnIndex(ordinalColumn)

		ids := make([]string, 0, len(marks))
		for id := range marks {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			idRoute, ord, err := models.SplitStudentID(id)
			if err != nil || idRoute != route {
				continue
			}
			if _, ok := active[ord]; !ok {
				continue
			}
			row := findRow(t, iOrd, ord)
			if row == nil {
				row = make([]string, len(t.Header))
				row[iOrd] = strconv.Itoa(ord)
				t.Rows = append(t.Rows, row)
			}
			row[col] = string(models.MarkFromBool(marks[id]))
		}
		tx.Put(route, t)
		return nil
	})
}

// StudentHistory returns every recorded mark of one student in ascending
// date-key order. The lookup is identity-addressed, so an archived student's
// pre-archive marks remain readable here.
func (l *Ledger) StudentHistory(id string) ([]Entry, error) {
	route, ordinal, err := models.SplitStudentID(id)
	if err != nil {
		return nil, err
	}
	var out []Entry
	err = l.store.View(func(tx *store.Tx) error {
		known := false
		for _, s := range roster.DecodeStudents(tx.Table(roster.RosterTable)) {
			if s.Route == route && s.Ordinal == ordinal {
				known = true
				break
			}
		}
		if !known {
			return fmt.Errorf("%w: %q", models.ErrStudentNotFound, id)
		}
		t := tx.Table(route)
		iOrd := t.ColumnIndex(ordinalColumn)
		if iOrd < 0 {
			return nil
		}
		row := findRow(t, iOrd, ordinal)
		if row == nil {
			return nil
		}
		for i, date := range t.Header {
			if i == iOrd {
				continue
			}
			if mark := models.Mark(row[i]); mark.Recorded() {
				out = append(out, Entry{Date: date, Present: mark.Present()})
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DateHistory returns the recorded marks of Active students across all routes
// for one date, in route order then ordinal order.
func (l *Ledger) DateHistory(date string) ([]DateEntry, error) {
	var out []DateEntry
	err := l.store.View(func(tx *store.Tx) error {
		rosterTable := tx.Table(roster.RosterTable)
		for _, route := range roster.RouteNames(tx.Table(roster.RoutesTable)) {
			active := roster.ActiveByOrdinal(rosterTable, route)
			t := tx.Table(route)
			col := t.ColumnIndex(date)
			if col < 0 {
				continue
			}
			iOrd := t.ColumnIndex(ordinalColumn)
			type marked struct {
				ordinal int
				entry   DateEntry
			}
			var routeMarks []marked
			for _, row := range t.Rows {
				ord, err := strconv.Atoi(row[iOrd])
				if err != nil {
					continue
				}
				s, ok := active[ord]
				if !ok {
					continue
				}
				mark := models.Mark(row[col])
				if !mark.Recorded() {
					continue
				}
				routeMarks = append(routeMarks, marked{ord, DateEntry{
					StudentName: s.Name,
					Route:       route,
					Present:     mark.Present(),
				}})
			}
			sort.Slice(routeMarks, func(i, j int) bool { return routeMarks[i].ordinal < routeMarks[j].ordinal })
			for _, m := range routeMarks {
				out = append(out, m.entry)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func findRow(t *store.Table, iOrd, ordinal int) []string {
	want := strconv.Itoa(ordinal)
	for _, row := range t.Rows {
		if row[iOrd] == want {
			return row
		}
	}
	return nil
}
