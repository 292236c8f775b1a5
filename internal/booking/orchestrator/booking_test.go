package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/booking-service/internal/booking/domain"
	"github.com/cuongbtq/booking-service/internal/booking/notify"
)

func validRequest() BookingRequest {
	return BookingRequest{
		Language:  "ar",
		DueDate:   "06/05/2026",
		DueTime:   "14:30",
		Duration:  90,
		PhoneType: true,
		JobFor:    []string{"female", "certified"},
	}
}

func TestStoreValidation(t *testing.T) {
	tests := []struct {
		name    string
		actor   string
		mutate  func(*BookingRequest)
		field   string
		message string
	}{
		{
			name:    "translator cannot book",
			actor:   "t1",
			mutate:  func(*BookingRequest) {},
			message: msgTranslatorBooks,
		},
		{
			name:    "missing language",
			actor:   "c1",
			mutate:  func(r *BookingRequest) { r.Language = "" },
			field:   "from_language_id",
			message: msgFillAllFields,
		},
		{
			name:    "missing duration",
			actor:   "c1",
			mutate:  func(r *BookingRequest) { r.Duration = 0 },
			field:   "duration",
			message: msgFillAllFields,
		},
		{
			name:    "missing due date",
			actor:   "c1",
			mutate:  func(r *BookingRequest) { r.DueDate = "" },
			field:   "due_date",
			message: msgFillAllFields,
		},
		{
			name:    "missing due time",
			actor:   "c1",
			mutate:  func(r *BookingRequest) { r.DueTime = " " },
			field:   "due_time",
			message: msgFillAllFields,
		},
		{
			name:    "no booking type chosen",
			actor:   "c1",
			mutate:  func(r *BookingRequest) { r.PhoneType = false },
			field:   "customer_phone_type",
			message: msgMakeAChoice,
		},
		{
			name:    "due in the past",
			actor:   "c1",
			mutate:  func(r *BookingRequest) { r.DueDate, r.DueTime = "06/01/2026", "10:59" },
			field:   "due",
			message: msgBookingInPast,
		},
		{
			name:    "due exactly now",
			actor:   "c1",
			mutate:  func(r *BookingRequest) { r.DueDate, r.DueTime = "06/01/2026", "11:00" },
			field:   "due",
			message: msgBookingInPast,
		},
		{
			name:   "malformed date",
			actor:  "c1",
			mutate: func(r *BookingRequest) { r.DueDate = "2026-06-05" },
			field:  "due_date",
		},
		{
			name:   "unknown specific translator",
			actor:  "c1",
			mutate: func(r *BookingRequest) { r.SpecificTranslatorID = "c1" },
			field:  "specific_translator_id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			req := validRequest()
			tt.mutate(&req)

			job, err := e.o.Store(context.Background(), tt.actor, req)
			require.Error(t, err)
			assert.Nil(t, job)

			var v *domain.ValidationError
			require.ErrorAs(t, err, &v)
			assert.Equal(t, tt.field, v.Field)
			if tt.message != "" {
				assert.Equal(t, tt.message, v.Message)
			}

			jobs, err := e.store.ListJobs(context.Background(), domain.JobFilter{})
			require.NoError(t, err)
			assert.Empty(t, jobs)
		})
	}
}

func TestStoreUnknownActor(t *testing.T) {
	e := newEnv(t)
	_, err := e.o.Store(context.Background(), "nobody", validRequest())
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

type brokenDirectory struct {
	domain.UserDirectory
	brokenID string
}

func (d brokenDirectory) GetUser(ctx context.Context, id string) (*domain.User, error) {
	if id == d.brokenID {
		return nil, errors.New("connection refused")
	}
	return d.UserDirectory.GetUser(ctx, id)
}

func TestStoreSpecificTranslatorLookupFailure(t *testing.T) {
	e := newEnv(t)
	o := *e.o
	o.users = brokenDirectory{UserDirectory: e.store, brokenID: "t1"}

	req := validRequest()
	req.SpecificTranslatorID = "t1"
	_, err := o.Store(context.Background(), "c1", req)
	require.Error(t, err)
	assert.False(t, domain.IsValidation(err))
	assert.Contains(t, err.Error(), "connection refused")

	req.SpecificTranslatorID = "ghost"
	_, err = o.Store(context.Background(), "c1", req)
	var v *domain.ValidationError
	require.ErrorAs(t, err, &v)
	assert.Equal(t, "specific_translator_id", v.Field)
}

func TestStoreScheduled(t *testing.T) {
	e := newEnv(t)

	job, err := e.o.Store(context.Background(), "c1", validRequest())
	require.NoError(t, err)

	// 14:30 Stockholm summer time
	due := time.Date(2026, 6, 5, 12, 30, 0, 0, time.UTC)
	assert.True(t, job.Due.Equal(due))
	assert.Equal(t, domain.StatusPending, job.Status)
	assert.Equal(t, domain.GenderFemale, job.Gender)
	assert.Equal(t, domain.CertificationYes, job.Certification)
	assert.Equal(t, domain.TierPaid, job.JobType)
	assert.Equal(t, "Stockholm", job.Town)
	assert.True(t, job.WillExpireAt.Equal(due.Add(-48*time.Hour)))
	assert.NotEmpty(t, job.ID)

	stored := e.get(t, job.ID)
	assert.Equal(t, job.Language, stored.Language)
	assert.Empty(t, e.push.msgs, "nothing is announced before the contact details are stored")
}

func TestStoreImmediate(t *testing.T) {
	e := newEnv(t)
	e.store.AddUser(domain.User{ID: "ngo", Email: "ngo@example.com", Role: domain.RoleCustomer, ConsumerType: "ngo"})

	job, err := e.o.Store(context.Background(), "ngo", BookingRequest{
		Language:  "ar",
		Immediate: true,
		Duration:  30,
	})
	require.NoError(t, err)

	assert.True(t, job.Due.Equal(now.Add(domain.ImmediateLead)))
	assert.True(t, job.PhoneType)
	assert.True(t, job.WillExpireAt.Equal(job.Due))
	assert.Equal(t, domain.TierUnpaid, job.JobType)
}

func TestStoreJobEmail(t *testing.T) {
	e := newEnv(t)
	req := validRequest()
	req.JobFor = nil
	job, err := e.o.Store(context.Background(), "c1", req)
	require.NoError(t, err)

	updated, err := e.o.StoreJobEmail(context.Background(), "c1", job.ID, JobEmailRequest{
		Email:     "bookings@kund.se",
		Reference: "PO-17",
		Address:   "Drottninggatan 1",
	})
	require.NoError(t, err)

	assert.Equal(t, "bookings@kund.se", updated.CustomerEmail)
	assert.Equal(t, "PO-17", updated.Reference)
	assert.Equal(t, "Drottninggatan 1", updated.Address)
	assert.Equal(t, "Stockholm", updated.Town)
	assert.Equal(t, "bookings@kund.se", e.get(t, job.ID).CustomerEmail)

	mails := e.mail.to("bookings@kund.se")
	require.Len(t, mails, 1)
	assert.Equal(t, notify.SubjectJobCreated(job.ID), mails[0].Subject)
	assert.Equal(t, notify.TemplateJobCreated, mails[0].Template)

	assert.Equal(t, []notify.Kind{notify.KindSuitableJob}, e.push.kinds("t1@example.com"))
	assert.Equal(t, []notify.Kind{notify.KindSuitableJob}, e.push.kinds("t2@example.com"))
	assert.Len(t, e.sms.msgs, 2)
}

func TestStoreJobEmailTextsOncePerJob(t *testing.T) {
	e := newEnv(t)
	req := validRequest()
	req.JobFor = nil
	job, err := e.o.Store(context.Background(), "c1", req)
	require.NoError(t, err)

	for range 2 {
		_, err := e.o.StoreJobEmail(context.Background(), "c1", job.ID, JobEmailRequest{Email: "bookings@kund.se"})
		require.NoError(t, err)
	}

	var to []string
	for _, m := range e.sms.msgs {
		to = append(to, m.To)
		assert.Equal(t, "DigitalTolk", m.From)
	}
	assert.ElementsMatch(t, []string{"+4670t1", "+4670t2"}, to)

	sent, err := e.o.ResendSMS(context.Background(), "a1", job.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
	assert.Len(t, e.sms.msgs, 4)
}

func TestStoreJobEmailForbidden(t *testing.T) {
	e := newEnv(t)
	e.pending(t, "job-1", 72*time.Hour)
	e.store.AddUser(domain.User{ID: "c2", Email: "c2@example.com", Role: domain.RoleCustomer})

	_, err := e.o.StoreJobEmail(context.Background(), "c2", "job-1", JobEmailRequest{Email: "x@example.com"})
	assert.ErrorIs(t, err, domain.ErrForbidden)
	assert.Empty(t, e.mail.msgs)
}
