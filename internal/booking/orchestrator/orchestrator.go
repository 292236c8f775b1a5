// Package orchestrator is the public face of the booking core. It validates
// callers, delegates status changes to the transition engine and triggers
// the matching notifications once a change is committed.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/booking-service/internal/booking/domain"
	"github.com/cuongbtq/booking-service/internal/booking/transition"
	"github.com/cuongbtq/booking-service/shared/logger"
	"github.com/google/uuid"
)

// Matcher answers who may see a job and which jobs a translator may see
type Matcher interface {
	FindEligible(ctx context.Context, job *domain.Job, exclude ...string) ([]domain.User, error)
	CanSee(ctx context.Context, job *domain.Job, translator *domain.User) (bool, error)
	PotentialJobs(ctx context.Context, translator *domain.User) ([]domain.Job, error)
}

// Notifier is the dispatcher surface the orchestrator uses
type Notifier interface {
	transition.Notifier
	SendSMS(ctx context.Context, job *domain.Job, translators []domain.User, force bool) int
}

// Config holds the booking settings the orchestrator needs
type Config struct {
	// SupportPhone is quoted to translators who try to cancel inside 24 hours
	SupportPhone string
	// Location interprets customer due date input
	Location *time.Location
	// ExpireBatch bounds one ExpireOverdue run
	ExpireBatch int
}

// Orchestrator runs booking operations
type Orchestrator struct {
	store    domain.JobStore
	users    domain.UserDirectory
	matcher  Matcher
	engine   *transition.Engine
	notifier Notifier
	clock    domain.Clock
	cfg      Config
	logger   *slog.Logger
}

// New creates an Orchestrator
func New(store domain.JobStore, users domain.UserDirectory, matcher Matcher, engine *transition.Engine, notifier Notifier, clock domain.Clock, cfg Config, logger *slog.Logger) *Orchestrator {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.ExpireBatch <= 0 {
		cfg.ExpireBatch = 100
	}
	return &Orchestrator{
		store:    store,
		users:    users,
		matcher:  matcher,
		engine:   engine,
		notifier: notifier,
		clock:    clock,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "orchestrator")),
	}
}

// actor resolves the calling user. Unknown ids are refused.
func (o *Orchestrator) actor(ctx context.Context, id string) (*domain.User, error) {
	if id == "" {
		return nil, fmt.Errorf("missing actor: %w", domain.ErrForbidden)
	}
	u, err := o.users.GetUser(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("unknown actor %s: %w", id, domain.ErrForbidden)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load actor: %w", err)
	}
	return u, nil
}

func (o *Orchestrator) admin(ctx context.Context, id string) (*domain.User, error) {
	u, err := o.actor(ctx, id)
	if err != nil {
		return nil, err
	}
	if !u.IsAdmin() {
		return nil, fmt.Errorf("user %s is not an admin: %w", u.ID, domain.ErrForbidden)
	}
	return u, nil
}

func (o *Orchestrator) job(ctx context.Context, id string) (*domain.Job, error) {
	job, err := o.store.GetJob(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load job: %w", err)
	}
	return job, nil
}

// save writes field changes that leave the status alone
func (o *Orchestrator) save(ctx context.Context, before, after *domain.Job, actorID string, attrs ...slog.Attr) error {
	after.UpdatedAt = o.clock.Now()
	if err := o.store.CommitTransition(ctx, domain.TransitionWrite{Job: after, ExpectedStatus: before.Status}); err != nil {
		return err
	}

	args := []any{
		slog.String("job_id", after.ID),
		slog.String("actor_id", actorID),
	}
	for _, a := range attrs {
		args = append(args, a)
	}
	logger.FromContext(ctx, o.logger).Info("job updated", args...)
	return nil
}

func newID() string {
	return uuid.NewString()
}
