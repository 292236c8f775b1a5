package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cuongbtq/booking-service/internal/booking/domain"
	"github.com/cuongbtq/booking-service/internal/booking/notify"
	"github.com/cuongbtq/booking-service/internal/booking/transition"
	"github.com/cuongbtq/booking-service/shared/logger"
)

// UpdateRequest is an admin correction. Empty fields are left unchanged,
// except AdminComments which always replaces the stored comment.
type UpdateRequest struct {
	Status          string
	DueDate         string
	DueTime         string
	Language        string
	TranslatorID    string
	TranslatorEmail string
	AdminComments   string
	Reference       *string
	SessionTime     string
}

// FlagRequest sets admin bookkeeping fields. Nil fields are left unchanged.
type FlagRequest struct {
	AdminComments   *string
	SessionTime     *string
	Flagged         *bool
	ManuallyHandled *bool
	ByAdmin         *bool
}

// UpdateJob applies an admin correction: field edits, a translator swap
// and a status change checked against the admin transition table. When
// the job is still ahead, the customer and translators hear about a
// changed date, translator or language.
func (o *Orchestrator) UpdateJob(ctx context.Context, actorID, jobID string, req UpdateRequest) (*domain.Job, error) {
	admin, err := o.admin(ctx, actorID)
	if err != nil {
		return nil, err
	}
	job, err := o.job(ctx, jobID)
	if err != nil {
		return nil, err
	}

	var target domain.Status
	if req.Status != "" {
		if target, err = domain.ParseStatus(req.Status); err != nil {
			return nil, err
		}
	}

	due := job.Due
	if req.DueDate != "" || req.DueTime != "" {
		parsed, err := time.ParseInLocation(domain.DueLayout, strings.TrimSpace(req.DueDate)+" "+strings.TrimSpace(req.DueTime), o.cfg.Location)
		if err != nil {
			return nil, &domain.ValidationError{Field: "due", Message: "due date must be MM/DD/YYYY and due time HH:MM"}
		}
		due = parsed.UTC()
	}
	language := job.Language
	if l := strings.TrimSpace(req.Language); l != "" {
		language = l
	}

	current, _, err := o.engine.ActiveTranslator(ctx, job.ID)
	if err != nil {
		return nil, err
	}
	next, err := o.resolveTranslator(ctx, req)
	if err != nil {
		return nil, err
	}

	dueChanged := !due.Equal(job.Due)
	langChanged := language != job.Language
	var reassign *transition.Reassignment
	if next != nil && (current == nil || current.ID != next.ID) {
		// an open job only takes a translator together with the move to assigned
		if target == "" && (job.Status == domain.StatusPending || job.Status == domain.StatusTimedOut) {
			target = domain.StatusAssigned
		}
		reassign = &transition.Reassignment{
			Previous: current,
			Next:     next,
			Assignment: domain.Assignment{
				ID:           newID(),
				JobID:        job.ID,
				TranslatorID: next.ID,
				AssignedAt:   o.clock.Now(),
			},
		}
	}

	var audit []slog.Attr
	if dueChanged {
		audit = append(audit, slog.Time("old_due", job.Due), slog.Time("new_due", due))
	}
	if langChanged {
		audit = append(audit, slog.String("old_language", job.Language), slog.String("new_language", language))
	}
	if reassign != nil {
		audit = append(audit, slog.String("old_translator", emailOf(current)), slog.String("new_translator", next.Email))
	}

	outcome, err := o.engine.Apply(ctx, transition.Update{
		Job:          job,
		Target:       target,
		AdminComment: req.AdminComments,
		SessionTime:  req.SessionTime,
		ActorID:      admin.ID,
		Edit: func(j *domain.Job) {
			j.Due = due
			if dueChanged {
				j.WillExpireAt = domain.WillExpireAt(due, j.CreatedAt)
			}
			j.Language = language
			if req.Reference != nil {
				j.Reference = *req.Reference
			}
		},
		Reassign: reassign,
		Audit:    audit,
		After: func(ctx context.Context, committed *domain.Job) {
			if !committed.Due.After(o.clock.Now()) {
				return
			}
			holder := current
			if reassign != nil {
				holder = next
			}
			o.notifyChanges(ctx, job, committed, holder, reassign, dueChanged, langChanged)
		},
	})
	if err != nil {
		return nil, err
	}
	return outcome.Job, nil
}

func (o *Orchestrator) resolveTranslator(ctx context.Context, req UpdateRequest) (*domain.User, error) {
	var (
		u   *domain.User
		err error
	)
	switch {
	case req.TranslatorID != "":
		u, err = o.users.GetUser(ctx, req.TranslatorID)
	case strings.TrimSpace(req.TranslatorEmail) != "":
		u, err = o.users.GetUserByEmail(ctx, strings.TrimSpace(req.TranslatorEmail))
	default:
		return nil, nil
	}
	if errors.Is(err, domain.ErrNotFound) {
		return nil, &domain.ValidationError{Field: "translator", Message: "unknown translator"}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load translator: %w", err)
	}
	if !u.IsTranslator() {
		return nil, &domain.ValidationError{Field: "translator", Message: "user is not a translator"}
	}
	return u, nil
}

// notifyChanges mails the parties about a changed date, then translator,
// then language.
func (o *Orchestrator) notifyChanges(ctx context.Context, before, after *domain.Job, holder *domain.User, reassign *transition.Reassignment, dueChanged, langChanged bool) {
	customer, err := o.engine.Customer(ctx, after)
	if err != nil {
		logger.FromContext(ctx, o.logger).Error("Failed to notify job changes",
			slog.String("job_id", after.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	texts := o.notifier.Texts()
	customerEmail := transition.CustomerEmail(after, customer)

	var msgs []notify.EmailMessage
	if dueChanged {
		extra := map[string]any{"old_time": texts.Due(before)}
		subject := notify.SubjectJobChanged(after.ID)
		msgs = append(msgs, o.engine.Mail(after, customerEmail, customer.Name, subject, notify.TemplateDateChanged, extra))
		if holder != nil {
			msgs = append(msgs, o.engine.Mail(after, holder.Email, holder.Name, subject, notify.TemplateDateChanged, extra))
		}
	}
	if reassign != nil {
		subject := notify.SubjectTranslatorChanged(after.ID)
		msgs = append(msgs, o.engine.Mail(after, customerEmail, customer.Name, subject, notify.TemplateTranslatorChanged, nil))
		if prev := reassign.Previous; prev != nil {
			msgs = append(msgs, o.engine.Mail(after, prev.Email, prev.Name, subject, notify.TemplateTranslatorRemoved, nil))
		}
		msgs = append(msgs, o.engine.Mail(after, reassign.Next.Email, reassign.Next.Name, subject, notify.TemplateJobAssigned, nil))
	}
	if langChanged {
		extra := map[string]any{"old_language": texts.Language(before.Language)}
		subject := notify.SubjectJobChanged(after.ID)
		msgs = append(msgs, o.engine.Mail(after, customerEmail, customer.Name, subject, notify.TemplateLanguageChanged, extra))
		if holder != nil {
			msgs = append(msgs, o.engine.Mail(after, holder.Email, holder.Name, subject, notify.TemplateLanguageChanged, extra))
		}
	}
	if len(msgs) > 0 {
		o.notifier.SendEmails(ctx, msgs...)
	}
}

// FlagJob updates admin bookkeeping. Flagging needs an admin comment.
func (o *Orchestrator) FlagJob(ctx context.Context, actorID, jobID string, req FlagRequest) (*domain.Job, error) {
	admin, err := o.admin(ctx, actorID)
	if err != nil {
		return nil, err
	}
	job, err := o.job(ctx, jobID)
	if err != nil {
		return nil, err
	}

	updated := job.Clone()
	if req.AdminComments != nil {
		updated.AdminComments = *req.AdminComments
	}
	if req.SessionTime != nil {
		if st := strings.TrimSpace(*req.SessionTime); st != "" {
			if _, err := domain.HumanSessionTime(st); err != nil {
				return nil, err
			}
			updated.SessionTime = st
		}
	}
	if req.Flagged != nil {
		if *req.Flagged && strings.TrimSpace(updated.AdminComments) == "" {
			return nil, &domain.ValidationError{Field: "admin_comments", Message: "Please, add comment"}
		}
		updated.Flagged = *req.Flagged
	}
	if req.ManuallyHandled != nil {
		updated.ManuallyHandled = *req.ManuallyHandled
	}
	if req.ByAdmin != nil {
		updated.ByAdmin = *req.ByAdmin
	}

	if err := o.save(ctx, job, updated, admin.ID,
		slog.Bool("flagged", updated.Flagged),
		slog.Bool("manually_handled", updated.ManuallyHandled),
		slog.Bool("by_admin", updated.ByAdmin),
	); err != nil {
		return nil, err
	}
	return updated, nil
}

// IgnoreExpiring hides a job from the admin's expiring list
func (o *Orchestrator) IgnoreExpiring(ctx context.Context, actorID, jobID string) (*domain.Job, error) {
	return o.setIgnore(ctx, actorID, jobID, func(j *domain.Job) { j.Ignore = true }, "ignore")
}

// IgnoreExpired hides a job from the admin's expired list
func (o *Orchestrator) IgnoreExpired(ctx context.Context, actorID, jobID string) (*domain.Job, error) {
	return o.setIgnore(ctx, actorID, jobID, func(j *domain.Job) { j.IgnoreExpired = true }, "ignore_expired")
}

func (o *Orchestrator) setIgnore(ctx context.Context, actorID, jobID string, set func(*domain.Job), field string) (*domain.Job, error) {
	admin, err := o.admin(ctx, actorID)
	if err != nil {
		return nil, err
	}
	job, err := o.job(ctx, jobID)
	if err != nil {
		return nil, err
	}
	updated := job.Clone()
	set(updated)
	if err := o.save(ctx, job, updated, admin.ID, slog.Bool(field, true)); err != nil {
		return nil, err
	}
	return updated, nil
}

// ResendNotifications repeats the push fan-out for a job
func (o *Orchestrator) ResendNotifications(ctx context.Context, actorID, jobID string) (notify.Fanout, error) {
	job, translators, err := o.resendTargets(ctx, actorID, jobID)
	if err != nil {
		return notify.Fanout{}, err
	}
	return o.notifier.NotifyTranslators(ctx, job, translators), nil
}

// ResendSMS repeats the SMS fan-out for a job, past the once-per-job guard
func (o *Orchestrator) ResendSMS(ctx context.Context, actorID, jobID string) (int, error) {
	job, translators, err := o.resendTargets(ctx, actorID, jobID)
	if err != nil {
		return 0, err
	}
	return o.notifier.SendSMS(ctx, job, translators, true), nil
}

func (o *Orchestrator) resendTargets(ctx context.Context, actorID, jobID string) (*domain.Job, []domain.User, error) {
	if _, err := o.admin(ctx, actorID); err != nil {
		return nil, nil, err
	}
	job, err := o.job(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}
	translators, err := o.matcher.FindEligible(ctx, job)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find eligible translators: %w", err)
	}
	return job, translators, nil
}

func emailOf(u *domain.User) string {
	if u == nil {
		return ""
	}
	return u.Email
}
