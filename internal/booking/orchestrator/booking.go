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

const (
	msgFillAllFields   = "Du måste fylla in alla fält"
	msgMakeAChoice     = "Du måste göra ett val här"
	msgBookingInPast   = "Can't create booking in past"
	msgTranslatorBooks = "Translator can not create booking"
)

// BookingRequest is a customer's new booking
type BookingRequest struct {
	Language     string
	Immediate    bool
	DueDate      string
	DueTime      string
	Duration     int
	PhoneType    bool
	PhysicalType bool
	JobFor       []string
	ByAdmin      bool
	// SpecificTranslatorID restricts the job to one translator
	SpecificTranslatorID string
}

// JobEmailRequest completes a booking with contact and location details
type JobEmailRequest struct {
	Email        string
	Reference    string
	Address      string
	Instructions string
	Town         string
}

// Store validates and creates a pending booking for the calling customer
func (o *Orchestrator) Store(ctx context.Context, actorID string, req BookingRequest) (*domain.Job, error) {
	customer, err := o.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !customer.IsCustomer() {
		return nil, &domain.ValidationError{Message: msgTranslatorBooks}
	}

	if strings.TrimSpace(req.Language) == "" {
		return nil, &domain.ValidationError{Field: "from_language_id", Message: msgFillAllFields}
	}
	if req.Duration <= 0 {
		return nil, &domain.ValidationError{Field: "duration", Message: msgFillAllFields}
	}

	now := o.clock.Now()
	var due time.Time
	if req.Immediate {
		due = now.Add(domain.ImmediateLead)
		req.PhoneType = true
	} else {
		if strings.TrimSpace(req.DueDate) == "" {
			return nil, &domain.ValidationError{Field: "due_date", Message: msgFillAllFields}
		}
		if strings.TrimSpace(req.DueTime) == "" {
			return nil, &domain.ValidationError{Field: "due_time", Message: msgFillAllFields}
		}
		if !req.PhoneType && !req.PhysicalType {
			return nil, &domain.ValidationError{Field: "customer_phone_type", Message: msgMakeAChoice}
		}

		due, err = time.ParseInLocation(domain.DueLayout, strings.TrimSpace(req.DueDate)+" "+strings.TrimSpace(req.DueTime), o.cfg.Location)
		if err != nil {
			return nil, &domain.ValidationError{Field: "due_date", Message: "due date must be MM/DD/YYYY and due time HH:MM"}
		}
		if !due.After(now) {
			return nil, &domain.ValidationError{Field: "due", Message: msgBookingInPast}
		}
	}

	if req.SpecificTranslatorID != "" {
		t, err := o.users.GetUser(ctx, req.SpecificTranslatorID)
		if errors.Is(err, domain.ErrNotFound) {
			return nil, &domain.ValidationError{Field: "specific_translator_id", Message: "unknown translator"}
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load specific translator: %w", err)
		}
		if !t.IsTranslator() {
			return nil, &domain.ValidationError{Field: "specific_translator_id", Message: "user is not a translator"}
		}
	}

	gender, cert := domain.ParseJobFor(req.JobFor)
	job := &domain.Job{
		ID:                   newID(),
		CustomerID:           customer.ID,
		Status:               domain.StatusPending,
		Language:             strings.TrimSpace(req.Language),
		Immediate:            req.Immediate,
		Due:                  due.UTC(),
		Duration:             req.Duration,
		Gender:               gender,
		Certification:        cert,
		PhoneType:            req.PhoneType,
		PhysicalType:         req.PhysicalType,
		Town:                 customer.Town,
		JobType:              domain.JobTypeForConsumer(customer.ConsumerType),
		SpecificTranslatorID: req.SpecificTranslatorID,
		ByAdmin:              req.ByAdmin,
		CreatedAt:            now,
		UpdatedAt:            now,
		WillExpireAt:         domain.WillExpireAt(due, now),
	}

	if err := o.store.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	logger.FromContext(ctx, o.logger).Info("job created",
		slog.String("job_id", job.ID),
		slog.String("customer_id", customer.ID),
		slog.String("language", job.Language),
		slog.Bool("immediate", job.Immediate),
		slog.Time("due", job.Due),
		slog.Time("will_expire_at", job.WillExpireAt),
	)
	return job, nil
}

// StoreJobEmail records the customer's contact details, confirms the
// booking by mail and announces the job to every eligible translator by
// push and, once per job, by SMS.
func (o *Orchestrator) StoreJobEmail(ctx context.Context, actorID, jobID string, req JobEmailRequest) (*domain.Job, error) {
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

	customer, err := o.engine.Customer(ctx, job)
	if err != nil {
		return nil, err
	}

	updated := job.Clone()
	updated.CustomerEmail = strings.TrimSpace(req.Email)
	updated.Reference = req.Reference
	updated.Address = fallback(req.Address, job.Address)
	updated.Instructions = fallback(req.Instructions, job.Instructions)
	updated.Town = fallback(req.Town, fallback(job.Town, customer.Town))

	if err := o.save(ctx, job, updated, actor.ID,
		slog.String("user_email", updated.CustomerEmail),
		slog.String("reference", updated.Reference),
	); err != nil {
		return nil, err
	}

	o.notifier.SendEmails(ctx, o.engine.Mail(updated, transition.CustomerEmail(updated, customer), customer.Name,
		notify.SubjectJobCreated(updated.ID), notify.TemplateJobCreated, nil))
	o.announce(ctx, updated)
	return updated, nil
}

func (o *Orchestrator) announce(ctx context.Context, job *domain.Job) {
	translators, err := o.matcher.FindEligible(ctx, job)
	if err != nil {
		logger.FromContext(ctx, o.logger).Error("Failed to find eligible translators",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	o.notifier.NotifyTranslators(ctx, job, translators)
	o.notifier.SendSMS(ctx, job, translators, false)
}

func fallback(value, def string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return def
}
