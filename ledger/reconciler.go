package ledger

import (
	"fmt"
	"log"

	"bus-attendance-server-go/models"
)

// Reconciler replays batches of attendance records buffered by an offline
// client. Records may arrive out of order or overlap marks already applied;
// each one is applied independently and a failure never aborts the rest of
// the batch.
type Reconciler struct {
	ledger *Ledger
}

// NewReconciler creates a reconciler over the given ledger.
func NewReconciler(l *Ledger) *Reconciler {
	return &Reconciler{ledger: l}
}

// Failure reports one record that could not be applied.
type Failure struct {
	Record models.SyncRecord `json:"record"`
	Reason string            `json:"reason"`
}

// Result summarises a replay. Applied + len(Failures) == len(records).
type Result struct {
	Applied  int       `json:"applied"`
	Failures []Failure `json:"failures"`
}

// Replay applies the batch to completion. SetAttendance is a full overwrite
// of the targeted cells, so replaying the same batch twice converges to the
// same state.
func (r *Reconciler) Replay(records []models.SyncRecord) Result {
	var res Result
	for _, rec := range records {
		if err := r.apply(rec); err != nil {
			log.Printf("sync: record for (%s, %s) not applied: %v", rec.Route, rec.Date, err)
			res.Failures = append(res.Failures, Failure{Record: rec, Reason: err.Error()})
			continue
		}
		res.Applied++
	}
	return res
}

func (r *Reconciler) apply(rec models.SyncRecord) error {
	if rec.Route == "" {
		return fmt.Errorf("route is required")
	}
	if rec.Date == "" {
		return fmt.Errorf("date is required")
	}
	return r.ledger.SetAttendance(rec.Route, rec.Date, rec.Attendance)
}
