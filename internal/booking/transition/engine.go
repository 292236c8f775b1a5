// Package transition validates and applies job status changes. Admin
// corrections go through a rule table keyed by (current, target) status;
// lifecycle operations commit prepared writes through the same pipeline so
// every change is audited the same way.
package transition

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/booking-service/internal/booking/domain"
	"github.com/cuongbtq/booking-service/internal/booking/notify"
	"github.com/cuongbtq/booking-service/shared/logger"
)

// Notifier is the part of the dispatcher transitions drive
type Notifier interface {
	NotifyTranslators(ctx context.Context, job *domain.Job, translators []domain.User) notify.Fanout
	NotifyUser(ctx context.Context, job *domain.Job, user *domain.User, kind notify.Kind, text string) bool
	RemindAt(ctx context.Context, job *domain.Job, user *domain.User, text string, at time.Time) bool
	SendEmails(ctx context.Context, msgs ...notify.EmailMessage) int
	Texts() *notify.Catalogue
}

// Finder computes the translators allowed to see a job
type Finder interface {
	FindEligible(ctx context.Context, job *domain.Job, exclude ...string) ([]domain.User, error)
}

// Step is one atomic change plus what happens once it is committed
type Step struct {
	Write   domain.TransitionWrite
	Action  Action
	ActorID string
	// Audit carries extra old/new pairs for the audit record
	Audit []slog.Attr
	// After runs once the write is committed. It must not fail the step.
	After func(ctx context.Context, job *domain.Job)
}

// Engine commits transitions and runs their notifications
type Engine struct {
	store    domain.JobStore
	users    domain.UserDirectory
	finder   Finder
	notifier Notifier
	clock    domain.Clock
	rules    map[key]rule
	logger   *slog.Logger
}

// New creates an Engine
func New(store domain.JobStore, users domain.UserDirectory, finder Finder, notifier Notifier, clock domain.Clock, logger *slog.Logger) *Engine {
	return &Engine{
		store:    store,
		users:    users,
		finder:   finder,
		notifier: notifier,
		clock:    clock,
		rules:    adminRules(),
		logger:   logger.With(slog.String("component", "transition")),
	}
}

// Commit applies step.Write, records the audit entry and runs step.After.
// Nothing is notified when the store rejects the write.
func (e *Engine) Commit(ctx context.Context, step Step) error {
	if err := e.store.CommitTransition(ctx, step.Write); err != nil {
		return err
	}

	job := step.Write.Job
	attrs := []any{
		slog.String("job_id", job.ID),
		slog.String("action", string(step.Action)),
		slog.String("actor_id", step.ActorID),
		slog.String("old_status", string(step.Write.ExpectedStatus)),
		slog.String("new_status", string(job.Status)),
	}
	if step.Write.Insert {
		attrs = append(attrs, slog.String("source_job_id", step.Write.SourceID()))
	}
	for _, a := range step.Audit {
		attrs = append(attrs, a)
	}
	logger.FromContext(ctx, e.logger).Info("job status transition", attrs...)

	if step.After != nil {
		step.After(ctx, job)
	}
	return nil
}

// Claim runs the atomic accept and audits it like any other transition.
// after runs only for the winning translator.
func (e *Engine) Claim(ctx context.Context, req domain.ClaimRequest, after func(ctx context.Context, job *domain.Job, a *domain.Assignment)) (*domain.Job, error) {
	job, assignment, err := e.store.ClaimJob(ctx, req)
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx, e.logger).Info("job status transition",
		slog.String("job_id", job.ID),
		slog.String("action", string(ActionAccept)),
		slog.String("actor_id", req.TranslatorID),
		slog.String("old_status", string(domain.StatusPending)),
		slog.String("new_status", string(job.Status)),
		slog.String("new_translator", req.TranslatorID),
	)

	if after != nil {
		after(ctx, job, assignment)
	}
	return job, nil
}

// Customer resolves the customer of a job
func (e *Engine) Customer(ctx context.Context, job *domain.Job) (*domain.User, error) {
	u, err := e.users.GetUser(ctx, job.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load customer: %w", err)
	}
	return u, nil
}

// ActiveTranslator resolves the translator holding the job's active
// assignment, or nil when there is none.
func (e *Engine) ActiveTranslator(ctx context.Context, jobID string) (*domain.User, *domain.Assignment, error) {
	a, err := e.store.ActiveAssignment(ctx, jobID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load active assignment: %w", err)
	}
	u, err := e.users.GetUser(ctx, a.TranslatorID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load translator: %w", err)
	}
	return u, a, nil
}

// Renotify pushes a suitable_job notification to every translator allowed
// to see job, leaving out exclude.
func (e *Engine) Renotify(ctx context.Context, job *domain.Job, exclude ...string) {
	translators, err := e.finder.FindEligible(ctx, job, exclude...)
	if err != nil {
		logger.FromContext(ctx, e.logger).Error("Failed to find eligible translators",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	e.notifier.NotifyTranslators(ctx, job, translators)
}

// CustomerEmail prefers the contact email stored on the job
func CustomerEmail(job *domain.Job, customer *domain.User) string {
	if job.CustomerEmail != "" {
		return job.CustomerEmail
	}
	if customer == nil {
		return ""
	}
	return customer.Email
}

// Mail builds a job mail for user
func (e *Engine) Mail(job *domain.Job, to, name, subject, template string, extra map[string]any) notify.EmailMessage {
	texts := e.notifier.Texts()
	data := map[string]any{
		"job_id":    job.ID,
		"language":  texts.Language(job.Language),
		"due":       texts.Due(job),
		"duration":  job.Duration,
		"user_name": name,
	}
	for k, v := range extra {
		data[k] = v
	}
	return notify.EmailMessage{To: to, Name: name, Subject: subject, Template: template, Data: data}
}
