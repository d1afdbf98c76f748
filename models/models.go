package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Status is a student's roster lifecycle state.
type Status string

const (
	StatusActive   Status = "Active"
	StatusArchived Status = "Archived"
)

// Student is one roster slot on a route. The Ordinal is assigned when the
// student is added and is never reassigned, so it stays valid across
// archive/restore cycles.
type Student struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Route       string `json:"route"`
	Ordinal     int    `json:"-"`
	Status      Status `json:"status"`
	ArchiveDate string `json:"archive_date,omitempty"`
}

// Active reports whether the student may receive new attendance marks.
func (s Student) Active() bool {
	return s.Status == StatusActive
}

// StudentID builds the composite id "{route}_{ordinal}" used by clients.
func StudentID(route string, ordinal int) string {
	return fmt.Sprintf("%s_%d", route, ordinal)
}

// SplitStudentID parses a composite student id. The split is at the last
// underscore so route names containing spaces or underscores stay intact.
func SplitStudentID(id string) (route string, ordinal int, err error) {
	i := strings.LastIndex(id, "_")
	if i <= 0 || i == len(id)-1 {
		return "", 0, fmt.Errorf("%w: %q", ErrBadStudentID, id)
	}
	ordinal, err = strconv.Atoi(id[i+1:])
	if err != nil || ordinal < 0 {
		return "", 0, fmt.Errorf("%w: %q", ErrBadStudentID, id)
	}
	return id[:i], ordinal, nil
}

// Mark is a single attendance cell. The empty mark means no record exists for
// that (student, date) pair, which is distinct from an explicit absence.
type Mark string

const (
	MarkPresent Mark = "P"
	MarkAbsent  Mark = "A"
	MarkNone    Mark = ""
)

// MarkFromBool converts the wire-level presence flag to a cell value.
func MarkFromBool(present bool) Mark {
	if present {
		return MarkPresent
	}
	return MarkAbsent
}

// Recorded reports whether the cell holds an explicit mark.
func (m Mark) Recorded() bool {
	return m == MarkPresent || m == MarkAbsent
}

// Present reports whether the cell is an explicit present mark.
func (m Mark) Present() bool {
	return m == MarkPresent
}

// SyncRecord is one buffered attendance submission from an offline client.
type SyncRecord struct {
	Route      string          `json:"route"`
	Date       string          `json:"date"`
	Attendance map[string]bool `json:"attendance"`
}
