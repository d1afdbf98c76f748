// Package roster owns the fixed route set and the per-route student roster
// with lifecycle status. Every mutation runs a full load-modify-save cycle on
// the shared store so callers observe either the pre-state or the post-state,
// never a mix.
package roster

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"bus-attendance-server-go/models"
	"bus-attendance-server-go/store"
)

const (
	// RoutesTable lists the provisioned route names in order.
	RoutesTable = "Routes"
	// RosterTable holds one row per student across all routes. Rows are
	// append-only: archiving never deletes a slot, so ordinals stay stable.
	RosterTable = "Roster"
)

var rosterHeader = []string{"Route", "Ordinal", "Name", "Status", "Archive Date"}

const archiveDateLayout = "2006-01-02"

// RouteNames decodes the routes table into its ordered name list.
func RouteNames(t *store.Table) []string {
	col := t.ColumnIndex("Route")
	if col < 0 {
		return nil
	}
	names := make([]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		if row[col] != "" {
			names = append(names, row[col])
		}
	}
	return names
}

// HasRoute reports whether the routes table contains the given name.
func HasRoute(t *store.Table, route string) bool {
	for _, name := range RouteNames(t) {
		if name == route {
			return true
		}
	}
	return false
}

// DecodeStudents decodes the roster table. Rows with an unparseable ordinal
// are skipped rather than misattributed to another slot.
func DecodeStudents(t *store.Table) []models.Student {
	iRoute := t.ColumnIndex("Route")
	iOrd := t.ColumnIndex("Ordinal")
	iName := t.ColumnIndex("Name")
	iStatus := t.ColumnIndex("Status")
	iArch := t.ColumnIndex("Archive Date")
	if iRoute < 0 || iOrd < 0 || iName < 0 {
		return nil
	}
	students := make([]models.Student, 0, len(t.Rows))
	for _, row := range t.Rows {
		ord, err := strconv.Atoi(row[iOrd])
		if err != nil {
			continue
		}
		s := models.Student{
			ID:      models.StudentID(row[iRoute], ord),
			Name:    row[iName],
			Route:   row[iRoute],
			Ordinal: ord,
			Status:  models.StatusActive,
		}
		if iStatus >= 0 && row[iStatus] == string(models.StatusArchived) {
			s.Status = models.StatusArchived
			if iArch >= 0 {
				s.ArchiveDate = row[iArch]
			}
		}
		students = append(students, s)
	}
	return students
}

// ActiveByOrdinal indexes a route's currently-Active students by ordinal.
func ActiveByOrdinal(t *store.Table, route string) map[int]models.Student {
	out := make(map[int]models.Student)
	for _, s := range DecodeStudents(t) {
		if s.Route == route && s.Active() {
			out[s.Ordinal] = s
		}
	}
	return out
}

func encodeStudent(s models.Student) []string {
	return []string{s.Route, strconv.Itoa(s.Ordinal), s.Name, string(s.Status), s.ArchiveDate}
}

// Registry is the RouteRegistry service.
type Registry struct {
	store *store.Store
	now   func() time.Time
}

// New creates a registry on the shared store.
func New(s *store.Store) *Registry {
	return &Registry{store: s, now: time.Now}
}

// WithClock overrides the archive-date clock, for tests.
func (r *Registry) WithClock(now func() time.Time) *Registry {
	r.now = now
	return r
}

// Provision creates the fixed route set if the store has none yet. It is the
// explicit one-time bootstrap; an already-provisioned store is left untouched.
func (r *Registry) Provision(routes []string) error {
	if len(routes) == 0 {
		return fmt.Errorf("roster: at least one route is required")
	}
	seen := make(map[string]bool, len(routes))
	for _, name := range routes {
		switch {
		case name == "":
			return fmt.Errorf("roster: empty route name")
		case name == RoutesTable || name == RosterTable:
			return fmt.Errorf("roster: route name %q is reserved", name)
		case len(name) > 31:
			// Excel sheet name limit.
			return fmt.Errorf("roster: route name %q too long", name)
		case seen[name]:
			return fmt.Errorf("roster: duplicate route name %q", name)
		}
		seen[name] = true
	}
	return r.store.Update(func(tx *store.Tx) error {
		if len(RouteNames(tx.Table(RoutesTable))) > 0 {
			return nil
		}
		rt := &store.Table{Header: []string{"Route"}}
		for _, name := range routes {
			rt.Rows = append(rt.Rows, []string{name})
		}
		tx.Put(RoutesTable, rt)
		if !tx.Has(RosterTable) {
			tx.Put(RosterTable, &store.Table{Header: rosterHeader})
		}
		return nil
	})
}

// ListRoutes returns the provisioned route names in order.
func (r *Registry) ListRoutes() ([]string, error) {
	var names []string
	err := r.store.View(func(tx *store.Tx) error {
		names = RouteNames(tx.Table(RoutesTable))
		return nil
	})
	return names, err
}

// ListStudents returns a route's students in ordinal order. Archived students
// are excluded unless includeArchived is set.
func (r *Registry) ListStudents(route string, includeArchived bool) ([]models.Student, error) {
	var out []models.Student
	err := r.store.View(func(tx *store.Tx) error {
		if !HasRoute(tx.Table(RoutesTable), route) {
			return fmt.Errorf("%w: %q", models.ErrRouteNotFound, route)
		}
		for _, s := range DecodeStudents(tx.Table(RosterTable)) {
			if s.Route != route {
				continue
			}
			if !includeArchived && !s.Active() {
				continue
			}
			out = append(out, s)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Ordinal < out[j].Ordinal })
		return nil
	})
	return out, err
}

// AllStudents returns every Active student across all routes, grouped in
// route order.
func (r *Registry) AllStudents() ([]models.Student, error) {
	var out []models.Student
	err := r.store.View(func(tx *store.Tx) error {
		students := DecodeStudents(tx.Table(RosterTable))
		for _, route := range RouteNames(tx.Table(RoutesTable)) {
			for _, s := range students {
				if s.Route == route && s.Active() {
					out = append(out, s)
				}
			}
		}
		return nil
	})
	return out, err
}

// Student resolves a composite student id, archived or not.
func (r *Registry) Student(id string) (models.Student, error) {
	route, ordinal, err := models.SplitStudentID(id)
	if err != nil {
		return models.Student{}, err
	}
	var found *models.Student
	err = r.store.View(func(tx *store.Tx) error {
		for _, s := range DecodeStudents(tx.Table(RosterTable)) {
			if s.Route == route && s.Ordinal == ordinal {
				found = &s
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return models.Student{}, err
	}
	if found == nil {
		return models.Student{}, fmt.Errorf("%w: %q", models.ErrStudentNotFound, id)
	}
	return *found, nil
}

// AddStudent appends a student to a route with the next ordinal for that
// route. A name already held by an Active student in the route is rejected;
// an archived student's name may be reused.
func (r *Registry) AddStudent(route, name string) (models.Student, error) {
	var added models.Student
	err := r.store.Update(func(tx *store.Tx) error {
		if !HasRoute(tx.Table(RoutesTable), route) {
			return fmt.Errorf("%w: %q", models.ErrRouteNotFound, route)
		}
		t := tx.Table(RosterTable)
		if t.Empty() {
			t = &store.Table{Header: rosterHeader}
		}
		next := 0
		for _, s := range DecodeStudents(t) {
			if s.Route != route {
				continue
			}
			if s.Name == name && s.Active() {
				return fmt.Errorf("%w: %q in %q", models.ErrDuplicateName, name, route)
			}
			if s.Ordinal >= next {
				next = s.Ordinal + 1
			}
		}
		added = models.Student{
			ID:      models.StudentID(route, next),
			Name:    name,
			Route:   route,
			Ordinal: next,
			Status:  models.StatusActive,
		}
		t.Rows = append(t.Rows, encodeStudent(added))
		tx.Put(RosterTable, t)
		return nil
	})
	if err != nil {
		return models.Student{}, err
	}
	return added, nil
}

// Archive marks a student Archived and stamps the archive date. Re-archiving
// is rejected rather than restamped.
func (r *Registry) Archive(id string) error {
	return r.setStatus(id, models.StatusArchived)
}

// Restore marks an archived student Active again and clears the archive date.
func (r *Registry) Restore(id string) error {
	return r.setStatus(id, models.StatusActive)
}

func (r *Registry) setStatus(id string, target models.Status) error {
	route, ordinal, err := models.SplitStudentID(id)
	if err != nil {
		return err
	}
	return r.store.Update(func(tx *store.Tx) error {
		t := tx.Table(RosterTable)
		iRoute := t.ColumnIndex("Route")
		iOrd := t.ColumnIndex("Ordinal")
		iStatus := t.ColumnIndex("Status")
		iArch := t.ColumnIndex("Archive Date")
		if iRoute < 0 || iOrd < 0 || iStatus < 0 || iArch < 0 {
			return fmt.Errorf("%w: %q", models.ErrStudentNotFound, id)
		}
		for _, row := range t.Rows {
			if row[iRoute] != route || row[iOrd] != strconv.Itoa(ordinal) {
				continue
			}
			current := models.StatusActive
			if row[iStatus] == string(models.StatusArchived) {
				current = models.StatusArchived
			}
			if current == target {
				if target == models.StatusArchived {
					return fmt.Errorf("%w: %q", models.ErrAlreadyArchived, id)
				}
				return fmt.Errorf("%w: %q", models.ErrAlreadyActive, id)
			}
			row[iStatus] = string(target)
			if target == models.StatusArchived {
				row[iArch] = r.now().Format(archiveDateLayout)
			} else {
				row[iArch] = ""
			}
			tx.Put(RosterTable, t)
			return nil
		}
		return fmt.Errorf("%w: %q", models.ErrStudentNotFound, id)
	})
}
