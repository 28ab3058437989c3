package harvest

import (
	"context"
	"time"
)

// UnitStore persists work units. Units must be durable: a process restart
// between stages must not lose gathered work.
type UnitStore interface {
	CreateUnit(ctx context.Context, u *WorkUnit) error
	UpdateUnit(ctx context.Context, u *WorkUnit) error
	GetUnit(ctx context.Context, id string) (*WorkUnit, error)
}

// JobStore answers questions about past jobs, used for window computation.
type JobStore interface {
	// PreviousJob returns the most recent job with a finished gather
	// stage for the same source, excluding the given job. Nil when there
	// is none.
	PreviousJob(ctx context.Context, job *Job) (*Job, error)
}

// Ledger tracks work units that must be re-attempted in a later job.
type Ledger interface {
	// MarkForRetry durably marks a unit. Marking an already marked unit
	// is a no-op, never a duplicate.
	MarkForRetry(ctx context.Context, u *WorkUnit) error
	// FindAllRetries returns all retry-marked units belonging to prior
	// jobs against the same source.
	FindAllRetries(ctx context.Context, job *Job) ([]*WorkUnit, error)
	// ClearRetryMarks removes all marks. Idempotent; only call after the
	// returned list has been consumed.
	ClearRetryMarks(ctx context.Context) error
}

// ObjectError is a recorded per-unit failure, visible to the surrounding
// framework for inspection.
type ObjectError struct {
	UnitID  string
	Stage   string
	Message string
	At      time.Time
}

// GatherFailure is a recorded gather stage failure for a job.
type GatherFailure struct {
	JobID   string
	Message string
	At      time.Time
}

// ErrorRecorder persists harvest errors without interrupting the run.
type ErrorRecorder interface {
	SaveObjectError(ctx context.Context, unitID, stage, message string) error
	SaveGatherError(ctx context.Context, jobID, message string) error
}

// Store is the full persistence surface the harvester needs.
type Store interface {
	UnitStore
	JobStore
	Ledger
	ErrorRecorder
}
