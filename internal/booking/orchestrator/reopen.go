package orchestrator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/booking-service/internal/booking/domain"
	"github.com/cuongbtq/booking-service/internal/booking/notify"
	"github.com/cuongbtq/booking-service/internal/booking/transition"
	"github.com/cuongbtq/booking-service/shared/logger"
)

// Reopen puts a job back on the market. A timed out job is copied into a
// new pending job that points back at it; any other job is reset in place.
// The previous assignment is cancelled and a cancelled placeholder row
// records who reopened it.
func (o *Orchestrator) Reopen(ctx context.Context, actorID, jobID string) (*domain.Job, error) {
	actor, err := o.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	job, err := o.job(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && actor.ID != job.CustomerID {
		return nil, fmt.Errorf("job %s belongs to another customer: %w", job.ID, domain.ErrForbidden)
	}
	if err := transition.Require(transition.ActionReopen, job.Status); err != nil {
		return nil, err
	}

	now := o.clock.Now()
	if !job.Due.After(now) {
		return nil, &domain.PreconditionError{Rule: "due_passed", Message: "cannot reopen a job whose due time has passed"}
	}

	reopened := job.Clone()
	reopened.Status = domain.StatusPending
	reopened.CreatedAt = now
	reopened.UpdatedAt = now
	reopened.WillExpireAt = domain.WillExpireAt(job.Due, now)
	reopened.WithdrawAt = nil
	reopened.EndAt = nil
	reopened.SessionTime = ""

	write := domain.TransitionWrite{
		Job:            reopened,
		ExpectedStatus: job.Status,
		CloseActive:    &domain.AssignmentClose{Kind: domain.CloseCancel, At: now, By: actor.ID},
		OpenAssignment: &domain.Assignment{
			ID:           newID(),
			JobID:        job.ID,
			TranslatorID: actor.ID,
			AssignedAt:   now,
			CancelAt:     &now,
		},
	}
	if job.Status == domain.StatusTimedOut {
		reopened.ID = newID()
		reopened.ReopenedFrom = job.ID
		reopened.AdminComments = fmt.Sprintf("This booking is a reopening of booking #%s", job.ID)
		reopened.Ignore = false
		reopened.IgnoreExpired = false
		write.Insert = true
		write.SourceJobID = job.ID
	}

	err = o.engine.Commit(ctx, transition.Step{
		Write:   write,
		Action:  transition.ActionReopen,
		ActorID: actor.ID,
		After: func(ctx context.Context, committed *domain.Job) {
			o.engine.Renotify(ctx, committed)
		},
	})
	if err != nil {
		return nil, err
	}
	return reopened, nil
}

// Timeout expires a pending job nobody accepted and tells the customer
func (o *Orchestrator) Timeout(ctx context.Context, jobID string) (*domain.Job, error) {
	job, err := o.job(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return o.timeout(ctx, job)
}

// TimeoutJob is Timeout on behalf of an admin
func (o *Orchestrator) TimeoutJob(ctx context.Context, actorID, jobID string) (*domain.Job, error) {
	if _, err := o.admin(ctx, actorID); err != nil {
		return nil, err
	}
	return o.Timeout(ctx, jobID)
}

func (o *Orchestrator) timeout(ctx context.Context, job *domain.Job) (*domain.Job, error) {
	if err := transition.Require(transition.ActionTimeout, job.Status); err != nil {
		return nil, err
	}

	expired := job.Clone()
	expired.Status = domain.StatusTimedOut
	expired.UpdatedAt = o.clock.Now()

	err := o.engine.Commit(ctx, transition.Step{
		Write:  domain.TransitionWrite{Job: expired, ExpectedStatus: job.Status},
		Action: transition.ActionTimeout,
		Audit:  []slog.Attr{slog.Time("will_expire_at", job.WillExpireAt)},
		After: func(ctx context.Context, committed *domain.Job) {
			customer, err := o.engine.Customer(ctx, committed)
			if err != nil {
				logger.FromContext(ctx, o.logger).Error("Failed to notify customer of expiry",
					slog.String("job_id", committed.ID),
					slog.String("error", err.Error()),
				)
				return
			}
			o.notifier.NotifyUser(ctx, committed, customer, notify.KindJobExpired, o.notifier.Texts().JobExpired(committed))
		},
	})
	if err != nil {
		return nil, err
	}
	return expired, nil
}

// ExpireOverdue times out pending jobs whose will_expire_at has passed.
// Jobs accepted while the sweep runs lose the race quietly.
func (o *Orchestrator) ExpireOverdue(ctx context.Context) (int, error) {
	log := logger.FromContext(ctx, o.logger)

	jobs, err := o.store.ListExpired(ctx, o.clock.Now(), o.cfg.ExpireBatch)
	if err != nil {
		return 0, fmt.Errorf("failed to list expired jobs: %w", err)
	}

	expired := 0
	for i := range jobs {
		if ctx.Err() != nil {
			return expired, ctx.Err()
		}
		_, err := o.timeout(ctx, &jobs[i])
		switch {
		case err == nil:
			expired++
		case domain.IsConflict(err), domain.IsPrecondition(err):
			log.Debug("Job left the pending state before expiry",
				slog.String("job_id", jobs[i].ID),
				slog.String("reason", err.Error()),
			)
		default:
			log.Error("Failed to expire job",
				slog.String("job_id", jobs[i].ID),
				slog.String("error", err.Error()),
			)
		}
	}

	if expired > 0 {
		log.Info("Expired overdue jobs", slog.Int("count", expired))
	}
	return expired, nil
}
