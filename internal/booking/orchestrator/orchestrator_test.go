package orchestrator

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/booking-service/internal/booking/domain"
	"github.com/cuongbtq/booking-service/internal/booking/matcher"
	"github.com/cuongbtq/booking-service/internal/booking/notify"
	"github.com/cuongbtq/booking-service/internal/booking/transition"
	"github.com/cuongbtq/booking-service/internal/storage/memory"
	"github.com/cuongbtq/booking-service/shared/logger"
)

const supportPhone = "+46 73 75 86 865"

// 11:00 in Stockholm
var now = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

type pushLog struct {
	mu   sync.Mutex
	msgs []notify.PushMessage
}

func (p *pushLog) Push(_ context.Context, msg notify.PushMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return nil
}

// to returns the pushes addressed to email
func (p *pushLog) to(email string) []notify.PushMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []notify.PushMessage
	for _, m := range p.msgs {
		if slices.Contains(notify.TagEmails(m.Recipients), email) {
			out = append(out, m)
		}
	}
	return out
}

func (p *pushLog) kinds(email string) []notify.Kind {
	var out []notify.Kind
	for _, m := range p.to(email) {
		out = append(out, m.Kind)
	}
	return out
}

type smsLog struct {
	mu   sync.Mutex
	msgs []notify.SMSMessage
}

func (s *smsLog) Send(_ context.Context, msg notify.SMSMessage) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
	return "queued", nil
}

type mailLog struct {
	mu   sync.Mutex
	msgs []notify.EmailMessage
}

func (m *mailLog) Send(_ context.Context, msg notify.EmailMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs = append(m.msgs, msg)
	return nil
}

func (m *mailLog) to(addr string) []notify.EmailMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []notify.EmailMessage
	for _, msg := range m.msgs {
		if msg.To == addr {
			out = append(out, msg)
		}
	}
	return out
}

func (m *mailLog) templates(addr string) []string {
	var out []string
	for _, msg := range m.to(addr) {
		out = append(out, msg.Template)
	}
	return out
}

type env struct {
	store *memory.Store
	clock *domain.FixedClock
	push  *pushLog
	sms   *smsLog
	mail  *mailLog
	o     *Orchestrator
}

func newEnv(t *testing.T) *env {
	t.Helper()

	e := &env{
		store: memory.New(),
		clock: domain.NewFixedClock(now),
		push:  &pushLog{},
		sms:   &smsLog{},
		mail:  &mailLog{},
	}

	e.store.AddUser(domain.User{ID: "c1", Name: "Kund AB", Email: "c1@example.com", Role: domain.RoleCustomer, Town: "Stockholm"})
	e.store.AddUser(domain.User{ID: "a1", Name: "Admin", Email: "admin@example.com", Role: domain.RoleAdmin})
	for _, id := range []string{"t1", "t2"} {
		e.store.AddUser(translator(id))
	}

	schedule, err := notify.NewSchedule("Europe/Stockholm", "22:00", "07:00", "07:00")
	require.NoError(t, err)

	log := logger.Discard()
	m := matcher.New(e.store, e.store, log)
	dispatcher := notify.New(
		notify.Channels{Push: e.push, SMS: e.sms, Email: e.mail, Once: memory.NewOnceGuard()},
		schedule, e.clock, notify.Options{SMSSender: "DigitalTolk"}, log,
	)
	engine := transition.New(e.store, e.store, m, dispatcher, e.clock, log)
	e.o = New(e.store, e.store, m, engine, dispatcher, e.clock,
		Config{SupportPhone: supportPhone, Location: schedule.Location()}, log)
	return e
}

func translator(id string) domain.User {
	return domain.User{
		ID:             id,
		Name:           "Tolk " + id,
		Email:          id + "@example.com",
		Mobile:         "+4670" + id,
		Role:           domain.RoleTranslator,
		TranslatorType: "professional",
		Languages:      []string{"ar"},
		Level:          domain.LevelCertified,
		Town:           "Stockholm",
	}
}

// pending stores a pending phone job due in lead
func (e *env) pending(t *testing.T, id string, lead time.Duration) *domain.Job {
	t.Helper()
	job := &domain.Job{
		ID:           id,
		CustomerID:   "c1",
		Status:       domain.StatusPending,
		Language:     "ar",
		Due:          now.Add(lead),
		Duration:     60,
		PhoneType:    true,
		JobType:      domain.TierPaid,
		CreatedAt:    now,
		UpdatedAt:    now,
		WillExpireAt: domain.WillExpireAt(now.Add(lead), now),
	}
	require.NoError(t, e.store.CreateJob(context.Background(), job))
	return job
}

// assigned stores a job accepted by translatorID
func (e *env) assigned(t *testing.T, id string, lead time.Duration, translatorID string) *domain.Job {
	t.Helper()
	e.pending(t, id, lead)
	job, _, err := e.o.AcceptJobWithID(context.Background(), translatorID, id)
	require.NoError(t, err)
	return job
}

func (e *env) get(t *testing.T, id string) *domain.Job {
	t.Helper()
	job, err := e.store.GetJob(context.Background(), id)
	require.NoError(t, err)
	return job
}

func (e *env) active(t *testing.T, jobID string) *domain.Assignment {
	t.Helper()
	a, err := e.store.ActiveAssignment(context.Background(), jobID)
	if domain.IsNotFound(err) {
		return nil
	}
	require.NoError(t, err)
	return a
}
