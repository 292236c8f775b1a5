// Package postgres is the sqlx JobStore and UserDirectory. Conditional
// writes lock the job row so a status change and its assignment changes
// commit together or not at all.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/cuongbtq/booking-service/internal/booking/domain"
	"github.com/cuongbtq/booking-service/shared/postgresql"
)

// activeAssignmentIndex backs the one-open-assignment-per-job rule
const activeAssignmentIndex = "translator_assignments_active_job_idx"

const jobColumns = `
	id, customer_id, status, language, immediate, due, duration, gender, certified,
	customer_phone_type, customer_physical_type, town, address, instructions, job_type,
	reference, admin_comments, session_time, user_email, specific_translator_id,
	reopened_from, created_at, updated_at, will_expire_at, withdraw_at, end_at,
	ignore, ignore_expired, flagged, manually_handled, by_admin`

const insertJob = `
	INSERT INTO jobs (` + jobColumns + `) VALUES (
		:id, :customer_id, :status, :language, :immediate, :due, :duration, :gender, :certified,
		:customer_phone_type, :customer_physical_type, :town, :address, :instructions, :job_type,
		:reference, :admin_comments, :session_time, :user_email, :specific_translator_id,
		:reopened_from, :created_at, :updated_at, :will_expire_at, :withdraw_at, :end_at,
		:ignore, :ignore_expired, :flagged, :manually_handled, :by_admin
	)`

const updateJob = `
	UPDATE jobs SET
		status = :status, language = :language, immediate = :immediate, due = :due,
		duration = :duration, gender = :gender, certified = :certified,
		customer_phone_type = :customer_phone_type, customer_physical_type = :customer_physical_type,
		town = :town, address = :address, instructions = :instructions, job_type = :job_type,
		reference = :reference, admin_comments = :admin_comments, session_time = :session_time,
		user_email = :user_email, specific_translator_id = :specific_translator_id,
		reopened_from = :reopened_from, created_at = :created_at, updated_at = :updated_at,
		will_expire_at = :will_expire_at, withdraw_at = :withdraw_at, end_at = :end_at,
		ignore = :ignore, ignore_expired = :ignore_expired, flagged = :flagged,
		manually_handled = :manually_handled, by_admin = :by_admin
	WHERE id = :id`

const assignmentColumns = `id, job_id, translator_id, assigned_at, cancel_at, completed_at, completed_by`

const activeClause = `cancel_at IS NULL AND completed_at IS NULL`

// Store implements domain.JobStore and domain.UserDirectory
type Store struct {
	pg     *postgresql.Client
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a Store over an open client
func NewStore(pg *postgresql.Client, logger *slog.Logger) *Store {
	return &Store{
		pg:     pg,
		db:     pg.DB(),
		logger: logger.With(slog.String("component", "postgres_store")),
	}
}

func (s *Store) CreateJob(ctx context.Context, job *domain.Job) error {
	if _, err := sqlx.NamedExecContext(ctx, s.db, insertJob, job); err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

func (s *Store) GetJob(ctx context.Context, id string) (*domain.Job, error) {
	return getJob(ctx, s.db, id, false)
}

func getJob(ctx context.Context, q sqlx.QueryerContext, id string, lock bool) (*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}

	var job domain.Job
	if err := sqlx.GetContext(ctx, q, &job, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("job %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &job, nil
}

func (s *Store) ListJobs(ctx context.Context, filter domain.JobFilter) ([]domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	next := func(v interface{}) string {
		args = append(args, v)
		p := fmt.Sprintf("$%d", argIdx)
		argIdx++
		return p
	}

	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			statuses[i] = string(st)
		}
		query += " AND status = ANY(" + next(pq.Array(statuses)) + ")"
	}
	if filter.Language != "" {
		query += " AND lower(language) = " + next(strings.ToLower(filter.Language))
	}
	if len(filter.Languages) > 0 {
		languages := make([]string, len(filter.Languages))
		for i, l := range filter.Languages {
			languages[i] = strings.ToLower(l)
		}
		query += " AND lower(language) = ANY(" + next(pq.Array(languages)) + ")"
	}
	if filter.JobType != "" {
		query += " AND job_type = " + next(string(filter.JobType))
	}
	if filter.CustomerID != "" {
		query += " AND customer_id = " + next(filter.CustomerID)
	}
	if filter.TranslatorID != "" {
		query += " AND EXISTS (SELECT 1 FROM translator_assignments a WHERE a.job_id = jobs.id AND a.translator_id = " +
			next(filter.TranslatorID) + " AND a.cancel_at IS NULL AND a.completed_at IS NULL)"
	}
	if filter.HeldByTranslatorID != "" {
		query += " AND EXISTS (SELECT 1 FROM translator_assignments a WHERE a.job_id = jobs.id AND a.translator_id = " +
			next(filter.HeldByTranslatorID) + ")"
	}
	if filter.DueFrom != nil {
		query += " AND due >= " + next(*filter.DueFrom)
	}
	if filter.DueTo != nil {
		query += " AND due <= " + next(*filter.DueTo)
	}
	if filter.Immediate != nil {
		query += " AND immediate = " + next(*filter.Immediate)
	}
	if filter.HasAssignment != nil {
		exists := "EXISTS"
		if !*filter.HasAssignment {
			exists = "NOT EXISTS"
		}
		query += " AND " + exists + " (SELECT 1 FROM translator_assignments a WHERE a.job_id = jobs.id AND a.cancel_at IS NULL AND a.completed_at IS NULL)"
	}
	orderColumn := "created_at"
	if filter.OrderByDue {
		orderColumn = "due"
	}
	if filter.Cursor != nil {
		position := filter.Cursor.CreatedAt
		if filter.OrderByDue {
			position = filter.Cursor.Due
		}
		query += fmt.Sprintf(" AND (%s, id) < (%s, %s)", orderColumn, next(position), next(filter.Cursor.JobID))
	}

	query += " ORDER BY " + orderColumn + " DESC, id DESC"

	// Fetch one extra to determine if there are more results
	if filter.PageSize > 0 {
		query += " LIMIT " + next(filter.PageSize+1)
	}

	var jobs []domain.Job
	if err := s.db.SelectContext(ctx, &jobs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return jobs, nil
}

func (s *Store) ActiveAssignment(ctx context.Context, jobID string) (*domain.Assignment, error) {
	var a domain.Assignment
	query := `SELECT ` + assignmentColumns + ` FROM translator_assignments WHERE job_id = $1 AND ` + activeClause
	if err := s.db.GetContext(ctx, &a, query, jobID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("active assignment for job %s: %w", jobID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get active assignment: %w", err)
	}
	return &a, nil
}

// Assignments lists every assignment row of a job, oldest first
func (s *Store) Assignments(ctx context.Context, jobID string) ([]domain.Assignment, error) {
	var rows []domain.Assignment
	query := `SELECT ` + assignmentColumns + ` FROM translator_assignments WHERE job_id = $1 ORDER BY assigned_at, id`
	if err := s.db.SelectContext(ctx, &rows, query, jobID); err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	return rows, nil
}

// ClaimJob locks the job row and the translator's calendar, then checks
// overlap before status so a busy translator hears double_booked.
func (s *Store) ClaimJob(ctx context.Context, req domain.ClaimRequest) (*domain.Job, *domain.Assignment, error) {
	var (
		job        *domain.Job
		assignment *domain.Assignment
	)

	err := s.pg.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, req.TranslatorID); err != nil {
			return fmt.Errorf("failed to lock translator calendar: %w", err)
		}

		var err error
		job, err = getJob(ctx, tx, req.JobID, true)
		if err != nil {
			return err
		}

		booked, err := bookedAt(ctx, tx, req.TranslatorID, job.Due, job.Ends(), job.ID)
		if err != nil {
			return err
		}
		if booked {
			return &domain.ConflictError{Reason: domain.ConflictDoubleBooked}
		}
		if job.Status != domain.StatusPending {
			return &domain.ConflictError{Reason: domain.ConflictAlreadyClaimed}
		}

		assignment = &domain.Assignment{
			ID:           req.AssignmentID,
			JobID:        job.ID,
			TranslatorID: req.TranslatorID,
			AssignedAt:   req.At,
		}
		if err := insertAssignment(ctx, tx, assignment); err != nil {
			return err
		}

		job.Status = domain.StatusAssigned
		job.UpdatedAt = req.At
		if _, err := tx.ExecContext(ctx, `UPDATE jobs SET status = $1, updated_at = $2 WHERE id = $3`,
			job.Status, job.UpdatedAt, job.ID); err != nil {
			return fmt.Errorf("failed to mark job assigned: %w", err)
		}
		return nil
	})
	err = contention(err)
	if err != nil {
		if domain.IsConflict(err) {
			s.logger.Debug("Claim lost",
				slog.String("job_id", req.JobID),
				slog.String("translator_id", req.TranslatorID),
				slog.String("reason", err.Error()),
			)
		}
		return nil, nil, err
	}
	return job, assignment, nil
}

func (s *Store) CommitTransition(ctx context.Context, w domain.TransitionWrite) error {
	return contention(s.pg.WithTx(ctx, func(tx *sqlx.Tx) error {
		var status domain.Status
		err := tx.GetContext(ctx, &status, `SELECT status FROM jobs WHERE id = $1 FOR UPDATE`, w.SourceID())
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("job %s: %w", w.SourceID(), domain.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to lock job: %w", err)
		}
		if status != w.ExpectedStatus {
			return &domain.ConflictError{
				Reason:  domain.ConflictStaleStatus,
				Message: fmt.Sprintf("job is %s, expected %s", status, w.ExpectedStatus),
			}
		}

		if c := w.CloseActive; c != nil {
			var err error
			switch c.Kind {
			case domain.CloseCancel:
				_, err = tx.ExecContext(ctx,
					`UPDATE translator_assignments SET cancel_at = $1 WHERE job_id = $2 AND `+activeClause,
					c.At, w.SourceID())
			case domain.CloseComplete:
				_, err = tx.ExecContext(ctx,
					`UPDATE translator_assignments SET completed_at = $1, completed_by = $2 WHERE job_id = $3 AND `+activeClause,
					c.At, c.By, w.SourceID())
			}
			if err != nil {
				return fmt.Errorf("failed to close assignment: %w", err)
			}
		}

		stmt := updateJob
		if w.Insert {
			stmt = insertJob
		}
		if _, err := sqlx.NamedExecContext(ctx, tx, stmt, w.Job); err != nil {
			return fmt.Errorf("failed to write job: %w", err)
		}

		if w.OpenAssignment != nil {
			return insertAssignment(ctx, tx, w.OpenAssignment)
		}
		return nil
	}))
}

// contention turns a deadlock or serialization abort into a stale status
// conflict; the caller re-reads the job and decides again.
func contention(err error) error {
	if postgresql.IsSerializationFailure(err) {
		return &domain.ConflictError{
			Reason:  domain.ConflictStaleStatus,
			Message: "concurrent write aborted the transaction",
		}
	}
	return err
}

func insertAssignment(ctx context.Context, tx *sqlx.Tx, a *domain.Assignment) error {
	_, err := sqlx.NamedExecContext(ctx, tx, `
		INSERT INTO translator_assignments (`+assignmentColumns+`)
		VALUES (:id, :job_id, :translator_id, :assigned_at, :cancel_at, :completed_at, :completed_by)`, a)
	if postgresql.IsUniqueViolation(err, activeAssignmentIndex) {
		return &domain.ConflictError{Reason: domain.ConflictAlreadyClaimed}
	}
	if err != nil {
		return fmt.Errorf("failed to insert assignment: %w", err)
	}
	return nil
}

func (s *Store) TranslatorBookedAt(ctx context.Context, translatorID string, from, to time.Time, excludeJobID string) (bool, error) {
	return bookedAt(ctx, s.db, translatorID, from, to, excludeJobID)
}

func bookedAt(ctx context.Context, q sqlx.QueryerContext, translatorID string, from, to time.Time, excludeJobID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM translator_assignments a
			JOIN jobs j ON j.id = a.job_id
			WHERE a.translator_id = $1
			  AND a.cancel_at IS NULL AND a.completed_at IS NULL
			  AND j.id <> $4
			  AND j.status IN ('pending', 'assigned', 'started')
			  AND j.due < $3
			  AND $2 < j.due + make_interval(mins => j.duration)
		)`

	var booked bool
	if err := sqlx.GetContext(ctx, q, &booked, query, translatorID, from, to, excludeJobID); err != nil {
		return false, fmt.Errorf("failed to check translator bookings: %w", err)
	}
	return booked, nil
}

func (s *Store) HasCancelledAssignment(ctx context.Context, jobID, translatorID string) (bool, error) {
	var cancelled bool
	err := s.db.GetContext(ctx, &cancelled, `
		SELECT EXISTS (
			SELECT 1 FROM translator_assignments
			WHERE job_id = $1 AND translator_id = $2 AND cancel_at IS NOT NULL
		)`, jobID, translatorID)
	if err != nil {
		return false, fmt.Errorf("failed to check cancelled assignments: %w", err)
	}
	return cancelled, nil
}

func (s *Store) ListExpired(ctx context.Context, now time.Time, limit int) ([]domain.Job, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM jobs
		WHERE status = 'pending' AND will_expire_at <= $1
		ORDER BY will_expire_at
		LIMIT NULLIF($2, 0)`

	var jobs []domain.Job
	if err := s.db.SelectContext(ctx, &jobs, query, now, limit); err != nil {
		return nil, fmt.Errorf("failed to list expired jobs: %w", err)
	}
	return jobs, nil
}
