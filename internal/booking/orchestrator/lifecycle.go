package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/booking-service/internal/booking/domain"
	"github.com/cuongbtq/booking-service/internal/booking/notify"
	"github.com/cuongbtq/booking-service/internal/booking/transition"
	"github.com/cuongbtq/booking-service/shared/logger"
)

// AcceptJob claims a job the translator picked from their job list
func (o *Orchestrator) AcceptJob(ctx context.Context, actorID, jobID string) (*domain.Job, string, error) {
	return o.AcceptJobWithID(ctx, actorID, jobID)
}

// AcceptJobWithID claims a pending job for the calling translator. Exactly
// one of several concurrent callers wins; the others get a ConflictError
// whose message says whether the job was taken or the translator is
// already booked at that time.
func (o *Orchestrator) AcceptJobWithID(ctx context.Context, actorID, jobID string) (*domain.Job, string, error) {
	translator, err := o.actor(ctx, actorID)
	if err != nil {
		return nil, "", err
	}
	if !translator.IsTranslator() {
		return nil, "", fmt.Errorf("user %s is not a translator: %w", translator.ID, domain.ErrForbidden)
	}

	job, err := o.job(ctx, jobID)
	if err != nil {
		return nil, "", err
	}
	texts := o.notifier.Texts()

	if job.Status == domain.StatusPending {
		visible, err := o.visibleTo(ctx, job, translator)
		if err != nil {
			return nil, "", err
		}
		if !visible {
			return nil, "", fmt.Errorf("job %s is not offered to %s: %w", job.ID, translator.ID, domain.ErrForbidden)
		}
	}

	claimed, err := o.engine.Claim(ctx, domain.ClaimRequest{
		JobID:        job.ID,
		TranslatorID: translator.ID,
		AssignmentID: newID(),
		At:           o.clock.Now(),
	}, func(ctx context.Context, claimed *domain.Job, _ *domain.Assignment) {
		customer, err := o.engine.Customer(ctx, claimed)
		if err != nil {
			logger.FromContext(ctx, o.logger).Error("Failed to notify customer of acceptance",
				slog.String("job_id", claimed.ID),
				slog.String("error", err.Error()),
			)
			return
		}
		o.notifier.SendEmails(ctx, o.engine.Mail(claimed, transition.CustomerEmail(claimed, customer), customer.Name,
			notify.SubjectJobAccepted(claimed.ID), notify.TemplateJobAccepted, nil))
		o.notifier.NotifyUser(ctx, claimed, customer, notify.KindJobAccepted, texts.JobAccepted(claimed))
	})

	var conflict *domain.ConflictError
	if errors.As(err, &conflict) {
		switch conflict.Reason {
		case domain.ConflictDoubleBooked:
			conflict.Message = texts.AcceptDoubleBooked(job)
		case domain.ConflictAlreadyClaimed:
			conflict.Message = texts.AcceptAlreadyTaken(job)
		}
		return nil, "", conflict
	}
	if err != nil {
		return nil, "", err
	}
	return claimed, texts.AcceptSuccess(claimed), nil
}

// visibleTo applies the matcher's pair rules. Booking overlaps are left
// to the claim so they surface as double_booked.
func (o *Orchestrator) visibleTo(ctx context.Context, job *domain.Job, translator *domain.User) (bool, error) {
	if job.SpecificTranslatorID != "" {
		if job.SpecificTranslatorID != translator.ID {
			return false, nil
		}
		generic := job.Clone()
		generic.SpecificTranslatorID = ""
		job = generic
	}
	return o.matcher.CanSee(ctx, job, translator)
}

// StartJob marks an assigned job as in progress
func (o *Orchestrator) StartJob(ctx context.Context, actorID, jobID string) (*domain.Job, error) {
	actor, err := o.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	job, err := o.job(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if err := transition.Require(transition.ActionStart, job.Status); err != nil {
		return nil, err
	}
	if _, err := o.holderOrAdmin(ctx, actor, job); err != nil {
		return nil, err
	}

	started := job.Clone()
	started.Status = domain.StatusStarted
	started.UpdatedAt = o.clock.Now()

	if err := o.engine.Commit(ctx, transition.Step{
		Write:   domain.TransitionWrite{Job: started, ExpectedStatus: job.Status},
		Action:  transition.ActionStart,
		ActorID: actor.ID,
	}); err != nil {
		return nil, err
	}
	return started, nil
}

// CancelJob withdraws a booking on behalf of its customer, or hands an
// assignment back on behalf of its translator.
func (o *Orchestrator) CancelJob(ctx context.Context, actorID, jobID string) (*domain.Job, error) {
	actor, err := o.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	job, err := o.job(ctx, jobID)
	if err != nil {
		return nil, err
	}

	switch {
	case actor.IsTranslator():
		return o.translatorCancel(ctx, actor, job)
	case actor.IsAdmin() || actor.ID == job.CustomerID:
		return o.customerCancel(ctx, actor, job)
	}
	return nil, fmt.Errorf("job %s belongs to another customer: %w", job.ID, domain.ErrForbidden)
}

func (o *Orchestrator) customerCancel(ctx context.Context, actor *domain.User, job *domain.Job) (*domain.Job, error) {
	if err := transition.Require(transition.ActionCustomerCancel, job.Status); err != nil {
		return nil, err
	}
	customer, err := o.engine.Customer(ctx, job)
	if err != nil {
		return nil, err
	}
	translator, _, err := o.engine.ActiveTranslator(ctx, job.ID)
	if err != nil {
		return nil, err
	}

	now := o.clock.Now()
	withdrawn := job.Clone()
	withdrawn.Status = domain.WithdrawStatus(job.Due, now)
	withdrawn.WithdrawAt = &now
	withdrawn.UpdatedAt = now

	write := domain.TransitionWrite{Job: withdrawn, ExpectedStatus: job.Status}
	if translator != nil {
		write.CloseActive = &domain.AssignmentClose{Kind: domain.CloseCancel, At: now, By: actor.ID}
	}

	err = o.engine.Commit(ctx, transition.Step{
		Write:   write,
		Action:  transition.ActionCustomerCancel,
		ActorID: actor.ID,
		After: func(ctx context.Context, committed *domain.Job) {
			subject := notify.SubjectJobCancelled(committed.ID)
			msgs := []notify.EmailMessage{
				o.engine.Mail(committed, transition.CustomerEmail(committed, customer), customer.Name, subject, notify.TemplateJobCancelled, nil),
			}
			if translator != nil {
				msgs = append(msgs, o.engine.Mail(committed, translator.Email, translator.Name, subject, notify.TemplateTranslatorCancel, nil))
				o.notifier.NotifyUser(ctx, committed, translator, notify.KindJobCancelled, o.notifier.Texts().CustomerCancelled(committed))
			}
			o.notifier.SendEmails(ctx, msgs...)
		},
	})
	if err != nil {
		return nil, err
	}
	return withdrawn, nil
}

func (o *Orchestrator) translatorCancel(ctx context.Context, actor *domain.User, job *domain.Job) (*domain.Job, error) {
	if err := transition.Require(transition.ActionTranslatorCancel, job.Status); err != nil {
		return nil, err
	}
	translator, _, err := o.engine.ActiveTranslator(ctx, job.ID)
	if err != nil {
		return nil, err
	}
	if translator == nil || translator.ID != actor.ID {
		return nil, fmt.Errorf("job %s is not assigned to %s: %w", job.ID, actor.ID, domain.ErrForbidden)
	}

	now := o.clock.Now()
	if job.Due.Sub(now) < domain.CancellationWindow {
		return nil, &domain.PreconditionError{
			Rule:    "translator_cancel_within_24h",
			Message: o.notifier.Texts().CancelWithin24h(o.cfg.SupportPhone),
		}
	}

	customer, err := o.engine.Customer(ctx, job)
	if err != nil {
		return nil, err
	}

	reopened := job.Clone()
	reopened.Status = domain.StatusPending
	reopened.CreatedAt = now
	reopened.UpdatedAt = now
	reopened.WillExpireAt = domain.WillExpireAt(job.Due, now)

	err = o.engine.Commit(ctx, transition.Step{
		Write: domain.TransitionWrite{
			Job:            reopened,
			ExpectedStatus: job.Status,
			CloseActive:    &domain.AssignmentClose{Kind: domain.CloseCancel, At: now, By: actor.ID},
		},
		Action:  transition.ActionTranslatorCancel,
		ActorID: actor.ID,
		Audit:   []slog.Attr{slog.String("old_translator", actor.ID)},
		After: func(ctx context.Context, committed *domain.Job) {
			o.notifier.NotifyUser(ctx, committed, customer, notify.KindJobCancelled, o.notifier.Texts().TranslatorCancelled(committed))
			o.engine.Renotify(ctx, committed, actor.ID)
		},
	})
	if err != nil {
		return nil, err
	}
	return reopened, nil
}

// EndJob closes a started session and bills it. Jobs that are not
// started are left alone and reported as success.
func (o *Orchestrator) EndJob(ctx context.Context, actorID, jobID string) (*domain.Job, error) {
	actor, err := o.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	job, err := o.job(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !transition.Allowed(transition.ActionEnd, job.Status) {
		return job, nil
	}

	translator, err := o.participant(ctx, actor, job)
	if err != nil {
		return nil, err
	}
	customer, err := o.engine.Customer(ctx, job)
	if err != nil {
		return nil, err
	}

	now := o.clock.Now()
	ended := job.Clone()
	ended.Status = domain.StatusCompleted
	ended.EndAt = &now
	ended.UpdatedAt = now
	ended.SessionTime = domain.FormatSessionTime(now.Sub(job.Due))

	err = o.engine.Commit(ctx, transition.Step{
		Write: domain.TransitionWrite{
			Job:            ended,
			ExpectedStatus: job.Status,
			CloseActive:    &domain.AssignmentClose{Kind: domain.CloseComplete, At: now, By: actor.ID},
		},
		Action:  transition.ActionEnd,
		ActorID: actor.ID,
		Audit:   []slog.Attr{slog.String("session_time", ended.SessionTime)},
		After: func(ctx context.Context, committed *domain.Job) {
			o.notifier.SendEmails(ctx, o.engine.SessionEndedMails(committed, customer, translator)...)
		},
	})
	if err != nil {
		return nil, err
	}
	return ended, nil
}

// CustomerNotCall records that the customer never showed up. The
// assignment is closed as completed by the translator. Jobs outside
// assigned or started are left alone and reported as success.
func (o *Orchestrator) CustomerNotCall(ctx context.Context, actorID, jobID string) (*domain.Job, error) {
	actor, err := o.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	job, err := o.job(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !transition.Allowed(transition.ActionCustomerNotCall, job.Status) {
		return job, nil
	}

	translator, err := o.holderOrAdmin(ctx, actor, job)
	if err != nil {
		return nil, err
	}

	now := o.clock.Now()
	missed := job.Clone()
	missed.Status = domain.StatusNotCarriedOutCustomer
	missed.EndAt = &now
	missed.UpdatedAt = now
	missed.SessionTime = domain.FormatSessionTime(now.Sub(job.Due))

	write := domain.TransitionWrite{Job: missed, ExpectedStatus: job.Status}
	if translator != nil {
		write.CloseActive = &domain.AssignmentClose{Kind: domain.CloseComplete, At: now, By: translator.ID}
	}

	if err := o.engine.Commit(ctx, transition.Step{
		Write:   write,
		Action:  transition.ActionCustomerNotCall,
		ActorID: actor.ID,
	}); err != nil {
		return nil, err
	}
	return missed, nil
}

// holderOrAdmin lets the assigned translator or an admin act on job and
// returns the assigned translator.
func (o *Orchestrator) holderOrAdmin(ctx context.Context, actor *domain.User, job *domain.Job) (*domain.User, error) {
	translator, _, err := o.engine.ActiveTranslator(ctx, job.ID)
	if err != nil {
		return nil, err
	}
	if actor.IsAdmin() || (translator != nil && translator.ID == actor.ID) {
		return translator, nil
	}
	return nil, fmt.Errorf("job %s is not assigned to %s: %w", job.ID, actor.ID, domain.ErrForbidden)
}

// participant also admits the job's customer
func (o *Orchestrator) participant(ctx context.Context, actor *domain.User, job *domain.Job) (*domain.User, error) {
	if actor.ID == job.CustomerID {
		translator, _, err := o.engine.ActiveTranslator(ctx, job.ID)
		return translator, err
	}
	return o.holderOrAdmin(ctx, actor, job)
}
