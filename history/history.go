// Package history provides read-only projections composed from the roster and
// the ledger. It holds no state of its own.
package history

import (
	"bus-attendance-server-go/ledger"
	"bus-attendance-server-go/models"
	"bus-attendance-server-go/roster"
)

// Service is the HistoryQueryService.
type Service struct {
	registry *roster.Registry
	ledger   *ledger.Ledger
}

// New composes the service from the shared registry and ledger.
func New(reg *roster.Registry, led *ledger.Ledger) *Service {
	return &Service{registry: reg, ledger: led}
}

// Summary is the headcount for one (route, date): recorded marks of Active
// students only, so an unmarked student is counted in neither field.
type Summary struct {
	Present int `json:"present"`
	Total   int `json:"total"`
}

// Summary counts the attendance result for one (route, date).
func (s *Service) Summary(route, date string) (Summary, error) {
	att, err := s.ledger.Attendance(route, date)
	if err != nil {
		return Summary{}, err
	}
	return summarize(att), nil
}

func summarize(att map[string]bool) Summary {
	sum := Summary{Total: len(att)}
	for _, present := range att {
		if present {
			sum.Present++
		}
	}
	return sum
}

// Summarize counts an already-fetched attendance mapping.
func Summarize(att map[string]bool) Summary {
	return summarize(att)
}

// Timeline is one student's full recorded history with roster metadata.
type Timeline struct {
	Student models.Student `json:"student"`
	Entries []ledger.Entry `json:"history"`
}

// StudentTimeline returns the timeline for a student id, archived or not.
func (s *Service) StudentTimeline(id string) (Timeline, error) {
	student, err := s.registry.Student(id)
	if err != nil {
		return Timeline{}, err
	}
	entries, err := s.ledger.StudentHistory(id)
	if err != nil {
		return Timeline{}, err
	}
	return Timeline{Student: student, Entries: entries}, nil
}

// DateSnapshot returns the cross-route marks recorded for one date.
func (s *Service) DateSnapshot(date string) ([]ledger.DateEntry, error) {
	return s.ledger.DateHistory(date)
}
