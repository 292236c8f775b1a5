package transition

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cuongbtq/booking-service/internal/booking/domain"
	"github.com/cuongbtq/booking-service/internal/booking/notify"
	"github.com/cuongbtq/booking-service/shared/logger"
)

// Update is an admin correction of a job
type Update struct {
	Job          *domain.Job
	Target       domain.Status
	AdminComment string
	SessionTime  string
	ActorID      string
	// Edit applies field corrections (due, language, reference) to the working copy
	Edit     func(*domain.Job)
	Reassign *Reassignment
	Audit    []slog.Attr
	// After runs once the update is committed, after the rule's notifications
	After func(ctx context.Context, job *domain.Job)
}

// Reassignment hands the job to another translator in the same write
type Reassignment struct {
	Previous   *domain.User
	Next       *domain.User
	Assignment domain.Assignment
}

// Outcome reports what an admin update changed
type Outcome struct {
	Job           *domain.Job
	StatusChanged bool
}

type key struct {
	from domain.Status
	to   domain.Status
}

// change is the working state of one admin transition
type change struct {
	job               *domain.Job
	from              domain.Status
	to                domain.Status
	comment           string
	sessionTime       string
	translatorChanged bool
	customer          *domain.User
	translator        *domain.User
	actorID           string
	now               time.Time
	write             *domain.TransitionWrite
}

type rule struct {
	check  func(c *change) error
	apply  func(c *change)
	notify func(ctx context.Context, e *Engine, c *change)
}

func adminRules() map[key]rule {
	rules := map[key]rule{
		{domain.StatusTimedOut, domain.StatusPending}: {
			apply:  resetExpiry,
			notify: notifyReopened,
		},
		{domain.StatusTimedOut, domain.StatusAssigned}: {
			check:  requireTranslatorChange,
			notify: notifyAccepted,
		},
		{domain.StatusCompleted, domain.StatusTimedOut}: {
			check: requireComment,
		},
		{domain.StatusWithdrawAfter24, domain.StatusTimedOut}: {
			check: requireComment,
		},
		{domain.StatusPending, domain.StatusAssigned}: {
			check:  requireTranslatorChange,
			notify: notifyAssigned,
		},
		{domain.StatusAssigned, domain.StatusWithdrawBefore24}: {
			apply:  withdraw,
			notify: notifyWithdrawn,
		},
		{domain.StatusAssigned, domain.StatusWithdrawAfter24}: {
			apply:  withdraw,
			notify: notifyWithdrawn,
		},
		{domain.StatusAssigned, domain.StatusTimedOut}: {
			check: requireComment,
			apply: cancelAssignment,
		},
	}

	for _, to := range domain.AllStatuses {
		if to != domain.StatusPending && to != domain.StatusAssigned {
			r := rule{notify: notifyPendingCancelled}
			if to == domain.StatusTimedOut {
				r.check = requireComment
			}
			rules[key{domain.StatusPending, to}] = r
		}
		if to != domain.StatusStarted {
			rules[key{domain.StatusStarted, to}] = startedRule(to)
		}
	}
	return rules
}

func startedRule(to domain.Status) rule {
	switch to {
	case domain.StatusCompleted:
		return rule{
			check: func(c *change) error {
				if err := requireComment(c); err != nil {
					return err
				}
				if strings.TrimSpace(c.sessionTime) == "" {
					return &domain.PreconditionError{Rule: "session_time_required", Message: "session time is required to complete a started job"}
				}
				_, err := domain.HumanSessionTime(c.sessionTime)
				return err
			},
			apply: func(c *change) {
				c.job.SessionTime = strings.TrimSpace(c.sessionTime)
				c.job.EndAt = &c.now
				c.closeAssignment(domain.CloseComplete)
			},
			notify: notifySessionEnded,
		}
	case domain.StatusNotCarriedOutCustomer:
		return rule{
			check: requireComment,
			apply: func(c *change) {
				c.job.EndAt = &c.now
				c.closeAssignment(domain.CloseComplete)
			},
		}
	case domain.StatusAssigned:
		return rule{check: requireComment}
	default:
		return rule{check: requireComment, apply: cancelAssignment}
	}
}

// Defined reports whether the admin table has a rule for from -> to
func (e *Engine) Defined(from, to domain.Status) bool {
	_, ok := e.rules[key{from, to}]
	return ok
}

// Apply runs an admin correction: field edits, an optional reassignment
// and an optional status change checked against the rule table. A failed
// precondition changes nothing and notifies nobody.
func (e *Engine) Apply(ctx context.Context, u Update) (Outcome, error) {
	now := e.clock.Now()

	job := u.Job.Clone()
	if u.Edit != nil {
		u.Edit(job)
	}
	job.AdminComments = u.AdminComment
	job.UpdatedAt = now

	write := domain.TransitionWrite{Job: job, ExpectedStatus: u.Job.Status}
	c := &change{
		job:         job,
		from:        u.Job.Status,
		to:          u.Target,
		comment:     u.AdminComment,
		sessionTime: u.SessionTime,
		actorID:     u.ActorID,
		now:         now,
		write:       &write,
	}

	if u.Reassign != nil {
		if u.Reassign.Previous != nil {
			write.CloseActive = &domain.AssignmentClose{Kind: domain.CloseCancel, At: now, By: u.ActorID}
		}
		a := u.Reassign.Assignment
		write.OpenAssignment = &a
		c.translatorChanged = true
		c.translator = u.Reassign.Next
	}

	statusChanged := u.Target != "" && u.Target != u.Job.Status
	var r rule
	if statusChanged {
		var ok bool
		if r, ok = e.rules[key{c.from, c.to}]; !ok {
			return Outcome{Job: u.Job}, &domain.PreconditionError{
				Rule:    "transition_not_defined",
				Message: fmt.Sprintf("no transition from %s to %s", c.from, c.to),
			}
		}
		if r.check != nil {
			if err := r.check(c); err != nil {
				logger.FromContext(ctx, e.logger).Info("Job status transition rejected",
					slog.String("job_id", job.ID),
					slog.String("old_status", string(c.from)),
					slog.String("new_status", string(c.to)),
					slog.String("reason", err.Error()),
				)
				return Outcome{Job: u.Job}, err
			}
		}

		customer, err := e.Customer(ctx, job)
		if err != nil {
			return Outcome{Job: u.Job}, err
		}
		c.customer = customer
		if c.translator == nil {
			if c.translator, _, err = e.ActiveTranslator(ctx, job.ID); err != nil {
				return Outcome{Job: u.Job}, err
			}
		}

		job.Status = c.to
		if r.apply != nil {
			r.apply(c)
		}
	}

	if a := write.OpenAssignment; a != nil && a.Active() && !holdsTranslator(job.Status) {
		return Outcome{Job: u.Job}, &domain.PreconditionError{
			Rule:    "assignment_requires_assigned",
			Message: fmt.Sprintf("a %s job cannot hold a translator, move it to %s", job.Status, domain.StatusAssigned),
		}
	}

	err := e.Commit(ctx, Step{
		Write:   write,
		Action:  ActionAdminUpdate,
		ActorID: u.ActorID,
		Audit:   u.Audit,
		After: func(ctx context.Context, committed *domain.Job) {
			if statusChanged && r.notify != nil {
				r.notify(ctx, e, c)
			}
			if u.After != nil {
				u.After(ctx, committed)
			}
		},
	})
	if err != nil {
		return Outcome{Job: u.Job}, err
	}
	return Outcome{Job: job, StatusChanged: statusChanged}, nil
}

// closeAssignment ends the translator's hold on the job. A reassignment in
// the same write is closed instead of opened.
func (c *change) closeAssignment(kind domain.CloseKind) {
	if a := c.write.OpenAssignment; a != nil {
		if kind == domain.CloseCancel {
			c.write.OpenAssignment = nil
			return
		}
		a.CompletedAt = &c.now
		a.CompletedBy = c.actorID
		return
	}
	c.write.CloseActive = &domain.AssignmentClose{Kind: kind, At: c.now, By: c.actorID}
}

func requireComment(c *change) error {
	if strings.TrimSpace(c.comment) == "" {
		return &domain.PreconditionError{
			Rule:    "admin_comment_required",
			Message: fmt.Sprintf("an admin comment is required to move a %s job to %s", c.from, c.to),
		}
	}
	return nil
}

func requireTranslatorChange(c *change) error {
	if !c.translatorChanged {
		return &domain.PreconditionError{
			Rule:    "translator_change_required",
			Message: fmt.Sprintf("moving a %s job to %s requires assigning a translator", c.from, c.to),
		}
	}
	return nil
}

func resetExpiry(c *change) {
	c.job.CreatedAt = c.now
	c.job.WillExpireAt = domain.WillExpireAt(c.job.Due, c.now)
}

func cancelAssignment(c *change) {
	c.closeAssignment(domain.CloseCancel)
}

func withdraw(c *change) {
	c.job.WithdrawAt = &c.now
	c.closeAssignment(domain.CloseCancel)
}

func notifyReopened(ctx context.Context, e *Engine, c *change) {
	e.notifier.SendEmails(ctx, e.Mail(c.job, CustomerEmail(c.job, c.customer), c.customer.Name,
		e.notifier.Texts().SubjectReopened(c.job), notify.TemplateJobReopened, nil))
	e.Renotify(ctx, c.job)
}

func notifyAccepted(ctx context.Context, e *Engine, c *change) {
	e.notifier.SendEmails(ctx, e.Mail(c.job, CustomerEmail(c.job, c.customer), c.customer.Name,
		notify.SubjectJobAccepted(c.job.ID), notify.TemplateJobAccepted, nil))
}

func notifyAssigned(ctx context.Context, e *Engine, c *change) {
	subject := notify.SubjectJobAccepted(c.job.ID)
	msgs := []notify.EmailMessage{
		e.Mail(c.job, CustomerEmail(c.job, c.customer), c.customer.Name, subject, notify.TemplateJobAccepted, nil),
	}
	if c.translator != nil {
		msgs = append(msgs, e.Mail(c.job, c.translator.Email, c.translator.Name, subject, notify.TemplateJobAssigned, nil))
	}
	e.notifier.SendEmails(ctx, msgs...)

	text := e.notifier.Texts().SessionReminder(c.job)
	e.notifier.RemindAt(ctx, c.job, c.customer, text, c.job.Due)
	e.notifier.RemindAt(ctx, c.job, c.translator, text, c.job.Due)
}

func notifyPendingCancelled(ctx context.Context, e *Engine, c *change) {
	e.notifier.SendEmails(ctx, e.Mail(c.job, CustomerEmail(c.job, c.customer), c.customer.Name,
		notify.SubjectJobCancelled(c.job.ID), notify.TemplateJobCancelled, nil))
}

func notifyWithdrawn(ctx context.Context, e *Engine, c *change) {
	subject := notify.SubjectJobCancelled(c.job.ID)
	msgs := []notify.EmailMessage{
		e.Mail(c.job, CustomerEmail(c.job, c.customer), c.customer.Name, subject, notify.TemplateJobCancelled, nil),
	}
	if c.translator != nil {
		msgs = append(msgs, e.Mail(c.job, c.translator.Email, c.translator.Name, subject, notify.TemplateTranslatorCancel, nil))
	}
	e.notifier.SendEmails(ctx, msgs...)
}

func notifySessionEnded(ctx context.Context, e *Engine, c *change) {
	e.notifier.SendEmails(ctx, e.SessionEndedMails(c.job, c.customer, c.translator)...)
}

// SessionEndedMails frames the end-of-session mail as an invoice for the
// customer and as payroll for the translator.
func (e *Engine) SessionEndedMails(job *domain.Job, customer, translator *domain.User) []notify.EmailMessage {
	human, err := domain.HumanSessionTime(job.SessionTime)
	if err != nil {
		human = job.SessionTime
	}
	subject := notify.SubjectSessionEnded(job.ID)

	var msgs []notify.EmailMessage
	if customer != nil {
		msgs = append(msgs, e.Mail(job, CustomerEmail(job, customer), customer.Name, subject, notify.TemplateSessionEnded,
			map[string]any{"session_time": human, "for_text": notify.ForInvoice}))
	}
	if translator != nil {
		msgs = append(msgs, e.Mail(job, translator.Email, translator.Name, subject, notify.TemplateSessionEnded,
			map[string]any{"session_time": human, "for_text": notify.ForPayroll}))
	}
	return msgs
}

func holdsTranslator(s domain.Status) bool {
	return s == domain.StatusAssigned || s == domain.StatusStarted
}
