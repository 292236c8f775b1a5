package domain

import (
	"context"
	"time"
)

// JobCursor is the keyset position for listing jobs newest first. Due is
// the position when the listing is ordered by due time.
type JobCursor struct {
	CreatedAt time.Time
	Due       time.Time
	JobID     string
}

// JobFilter narrows ListJobs. Zero values mean no filter.
type JobFilter struct {
	Statuses     []Status
	Language     string
	Languages    []string
	JobType      Tier
	CustomerID   string
	TranslatorID string // jobs where this translator holds the active assignment
	// HeldByTranslatorID matches jobs this translator was ever assigned,
	// closed assignments included
	HeldByTranslatorID string
	DueFrom            *time.Time
	DueTo              *time.Time
	HasAssignment      *bool
	Immediate          *bool
	PageSize           int
	// OrderByDue lists latest due first instead of newest created first
	OrderByDue bool
	Cursor     *JobCursor
}

// ClaimRequest asks the store to hand a pending job to a translator
type ClaimRequest struct {
	JobID        string
	TranslatorID string
	AssignmentID string
	At           time.Time
}

// CloseKind selects which closing timestamp is set on an assignment
type CloseKind int

const (
	CloseCancel CloseKind = iota + 1
	CloseComplete
)

// AssignmentClose closes the active assignment of a job
type AssignmentClose struct {
	Kind CloseKind
	At   time.Time
	By   string
}

// TransitionWrite is one atomic store mutation produced by a transition.
// The store applies it only while the job identified by SourceJobID (or
// Job.ID when SourceJobID is empty) still has ExpectedStatus.
type TransitionWrite struct {
	Job            *Job
	ExpectedStatus Status
	// Insert stores Job as a new row instead of updating SourceJobID in place
	Insert         bool
	SourceJobID    string
	CloseActive    *AssignmentClose
	OpenAssignment *Assignment
}

// SourceID returns the id of the row whose status is compared
func (w *TransitionWrite) SourceID() string {
	if w.SourceJobID != "" {
		return w.SourceJobID
	}
	return w.Job.ID
}

// JobStore persists jobs and translator assignments
type JobStore interface {
	CreateJob(ctx context.Context, job *Job) error
	GetJob(ctx context.Context, id string) (*Job, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]Job, error)

	// ActiveAssignment returns ErrNotFound when the job has no active assignment
	ActiveAssignment(ctx context.Context, jobID string) (*Assignment, error)

	// ClaimJob atomically moves a pending job to assigned and inserts the
	// assignment. It fails with ConflictError{double_booked} when the
	// translator holds an overlapping active assignment and with
	// ConflictError{already_claimed} when the job is no longer pending.
	ClaimJob(ctx context.Context, req ClaimRequest) (*Job, *Assignment, error)

	// CommitTransition applies w or fails with ConflictError{stale_status}
	CommitTransition(ctx context.Context, w TransitionWrite) error

	// TranslatorBookedAt reports an active assignment of the translator
	// overlapping [from, to), ignoring excludeJobID.
	TranslatorBookedAt(ctx context.Context, translatorID string, from, to time.Time, excludeJobID string) (bool, error)

	// HasCancelledAssignment reports whether the translator once held and gave up the job
	HasCancelledAssignment(ctx context.Context, jobID, translatorID string) (bool, error)

	// ListExpired returns pending jobs whose will_expire_at is at or before now
	ListExpired(ctx context.Context, now time.Time, limit int) ([]Job, error)
}

// TranslatorQuery is the narrowed directory lookup used by the matcher
type TranslatorQuery struct {
	Tier       Tier
	Language   string
	Gender     Gender
	Levels     []Level
	ExcludeIDs []string
}

// UserDirectory resolves users, translators and blacklists
type UserDirectory interface {
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	FindTranslators(ctx context.Context, q TranslatorQuery) ([]User, error)
	BlacklistedTranslators(ctx context.Context, customerID string) ([]string, error)
}

// Clock abstracts time for deterministic tests
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
