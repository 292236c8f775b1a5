package orchestrator

import (
	"context"
	"fmt"
	"slices"

	"github.com/cuongbtq/booking-service/internal/booking/domain"
)

// UserJobs splits a user's open jobs into immediate and scheduled ones
type UserJobs struct {
	UserType  domain.Role  `json:"usertype"`
	Emergency []domain.Job `json:"emergencyJobs"`
	Normal    []domain.Job `json:"normalJobs"`
}

// JobsHistory is one page of a user's finished jobs, latest due first
type JobsHistory struct {
	UserType domain.Role       `json:"usertype"`
	Jobs     []domain.Job      `json:"jobs"`
	Next     *domain.JobCursor `json:"-"`
}

const historyPageSize = 15

var (
	openStatuses    = []domain.Status{domain.StatusPending, domain.StatusAssigned, domain.StatusStarted}
	historyStatuses = []domain.Status{
		domain.StatusCompleted,
		domain.StatusNotCarriedOutCustomer,
		domain.StatusWithdrawBefore24,
		domain.StatusWithdrawAfter24,
		domain.StatusTimedOut,
	}
)

// GetJobFor loads a job for actorID. Admins and the job's customer see any
// job; a translator sees jobs they were assigned and pending jobs offered
// to them.
func (o *Orchestrator) GetJobFor(ctx context.Context, actorID, jobID string) (*domain.Job, error) {
	actor, err := o.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	job, err := o.job(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if actor.IsAdmin() || actor.ID == job.CustomerID {
		return job, nil
	}

	if actor.IsTranslator() {
		held, err := o.store.ListJobs(ctx, domain.JobFilter{HeldByTranslatorID: actor.ID, CustomerID: job.CustomerID})
		if err != nil {
			return nil, fmt.Errorf("failed to list translator jobs: %w", err)
		}
		if slices.ContainsFunc(held, func(j domain.Job) bool { return j.ID == job.ID }) {
			return job, nil
		}
		if job.Status == domain.StatusPending {
			visible, err := o.visibleTo(ctx, job, actor)
			if err != nil {
				return nil, err
			}
			if visible {
				return job, nil
			}
		}
	}
	return nil, fmt.Errorf("job %s is not visible to %s: %w", job.ID, actor.ID, domain.ErrForbidden)
}

// ListJobs pages through jobs for the admin listing
func (o *Orchestrator) ListJobs(ctx context.Context, actorID string, filter domain.JobFilter) ([]domain.Job, error) {
	if _, err := o.admin(ctx, actorID); err != nil {
		return nil, err
	}
	jobs, err := o.store.ListJobs(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return jobs, nil
}

// UserJobs returns a customer's open bookings or a translator's active
// assignments. Scheduled jobs are ordered by due time.
func (o *Orchestrator) UserJobs(ctx context.Context, userID string) (*UserJobs, error) {
	user, err := o.users.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	filter := domain.JobFilter{Statuses: openStatuses}
	switch {
	case user.IsCustomer():
		filter.CustomerID = user.ID
	case user.IsTranslator():
		filter.TranslatorID = user.ID
	default:
		return &UserJobs{UserType: user.Role, Emergency: []domain.Job{}, Normal: []domain.Job{}}, nil
	}

	jobs, err := o.store.ListJobs(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	out := &UserJobs{UserType: user.Role, Emergency: []domain.Job{}, Normal: []domain.Job{}}
	for _, j := range jobs {
		if j.Immediate {
			out.Emergency = append(out.Emergency, j)
		} else {
			out.Normal = append(out.Normal, j)
		}
	}
	byDue := func(a, b domain.Job) int { return a.Due.Compare(b.Due) }
	slices.SortStableFunc(out.Emergency, byDue)
	slices.SortStableFunc(out.Normal, byDue)
	return out, nil
}

// UserJobsFor is UserJobs on behalf of actorID, who must be the user or
// an admin
func (o *Orchestrator) UserJobsFor(ctx context.Context, actorID, userID string) (*UserJobs, error) {
	if actorID != userID {
		if _, err := o.admin(ctx, actorID); err != nil {
			return nil, err
		}
	}
	return o.UserJobs(ctx, userID)
}

// UserJobsHistory pages through the finished bookings of a customer, or
// the finished jobs a translator was ever assigned. actorID must be the
// user or an admin. Next is set when another page follows.
func (o *Orchestrator) UserJobsHistory(ctx context.Context, actorID, userID string, cursor *domain.JobCursor) (*JobsHistory, error) {
	if actorID != userID {
		if _, err := o.admin(ctx, actorID); err != nil {
			return nil, err
		}
	}
	user, err := o.users.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	out := &JobsHistory{UserType: user.Role, Jobs: []domain.Job{}}
	filter := domain.JobFilter{
		Statuses:   historyStatuses,
		PageSize:   historyPageSize,
		OrderByDue: true,
		Cursor:     cursor,
	}
	switch {
	case user.IsCustomer():
		filter.CustomerID = user.ID
	case user.IsTranslator():
		filter.HeldByTranslatorID = user.ID
	default:
		return out, nil
	}

	jobs, err := o.store.ListJobs(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list job history: %w", err)
	}
	if len(jobs) > historyPageSize {
		jobs = jobs[:historyPageSize]
		last := jobs[len(jobs)-1]
		out.Next = &domain.JobCursor{Due: last.Due, JobID: last.ID}
	}
	out.Jobs = append(out.Jobs, jobs...)
	return out, nil
}

// PotentialJobs lists the pending jobs a translator could accept
func (o *Orchestrator) PotentialJobs(ctx context.Context, translatorID string) ([]domain.Job, error) {
	translator, err := o.users.GetUser(ctx, translatorID)
	if err != nil {
		return nil, fmt.Errorf("failed to load translator: %w", err)
	}
	return o.matcher.PotentialJobs(ctx, translator)
}
