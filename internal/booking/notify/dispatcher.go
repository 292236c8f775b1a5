// Package notify builds localized booking notifications and fans them out
// over push, SMS and email. Channel failures are logged and never returned.
package notify

import (
	"context"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cuongbtq/booking-service/internal/booking/domain"
	"github.com/cuongbtq/booking-service/shared/logger"
)

const defaultMailConcurrency = 4

// Channels groups the delivery collaborators
type Channels struct {
	Push  PushChannel
	SMS   SMSChannel
	Email EmailChannel
	Once  OnceGuard
}

// Options tunes the dispatcher
type Options struct {
	SMSSender       string
	MailConcurrency int
}

// Dispatcher decides who gets which notification and when
type Dispatcher struct {
	channels        Channels
	schedule        *Schedule
	texts           *Catalogue
	clock           domain.Clock
	smsSender       string
	mailConcurrency int
	logger          *slog.Logger
}

// Fanout counts how a translator push fan-out was split
type Fanout struct {
	Immediate int
	Delayed   int
	Skipped   int
}

// New creates a Dispatcher
func New(channels Channels, schedule *Schedule, clock domain.Clock, opts Options, logger *slog.Logger) *Dispatcher {
	if opts.MailConcurrency <= 0 {
		opts.MailConcurrency = defaultMailConcurrency
	}
	return &Dispatcher{
		channels:        channels,
		schedule:        schedule,
		texts:           NewCatalogue(schedule.Location()),
		clock:           clock,
		smsSender:       opts.SMSSender,
		mailConcurrency: opts.MailConcurrency,
		logger:          logger.With(slog.String("component", "notify")),
	}
}

// Texts returns the message catalogue used by the dispatcher
func (d *Dispatcher) Texts() *Catalogue {
	return d.texts
}

// NotifyTranslators pushes a suitable_job notification to translators.
// Users who opted out of notifications, or out of emergencies for an
// immediate job, are skipped. During the night window users who opted out
// of night pushes get theirs deferred to the next business start.
func (d *Dispatcher) NotifyTranslators(ctx context.Context, job *domain.Job, translators []domain.User) Fanout {
	now := d.clock.Now()
	night := d.schedule.IsNight(now)

	var (
		immediate []domain.User
		delayed   []domain.User
		fanout    Fanout
	)
	for _, t := range translators {
		if t.NotGetNotification || (job.Immediate && t.NotGetEmergency) {
			fanout.Skipped++
			continue
		}
		if night && t.NotGetNighttime {
			delayed = append(delayed, t)
		} else {
			immediate = append(immediate, t)
		}
	}
	fanout.Immediate, fanout.Delayed = len(immediate), len(delayed)

	android, ios := SoundNormalAndroid, SoundNormalIOS
	if job.Immediate {
		android, ios = SoundEmergencyAndroid, SoundEmergencyIOS
	}

	msg := PushMessage{
		JobID:        job.ID,
		Kind:         KindSuitableJob,
		Data:         d.jobData(job),
		Text:         d.texts.SuitableJob(job),
		AndroidSound: android,
		IOSSound:     ios,
	}

	d.push(ctx, msg, immediate, nil)
	sendAfter := d.schedule.NextBusinessTime(now)
	d.push(ctx, msg, delayed, &sendAfter)

	return fanout
}

// NotifyUser pushes one message to a single customer or translator,
// honouring the user's opt-outs. It reports whether a push was attempted.
func (d *Dispatcher) NotifyUser(ctx context.Context, job *domain.Job, user *domain.User, kind Kind, text string) bool {
	if user == nil || user.NotGetNotification {
		return false
	}

	var sendAfter *time.Time
	now := d.clock.Now()
	if d.schedule.IsNight(now) && user.NotGetNighttime {
		t := d.schedule.NextBusinessTime(now)
		sendAfter = &t
	}
	return d.pushUser(ctx, job, user, kind, text, sendAfter)
}

// RemindAt schedules a session_start_remind push to user for at. A
// reminder whose time has passed is sent like NotifyUser.
func (d *Dispatcher) RemindAt(ctx context.Context, job *domain.Job, user *domain.User, text string, at time.Time) bool {
	if user == nil || user.NotGetNotification {
		return false
	}
	if !at.After(d.clock.Now()) {
		return d.NotifyUser(ctx, job, user, KindSessionStartRemind, text)
	}
	return d.pushUser(ctx, job, user, KindSessionStartRemind, text, &at)
}

func (d *Dispatcher) pushUser(ctx context.Context, job *domain.Job, user *domain.User, kind Kind, text string, sendAfter *time.Time) bool {
	d.push(ctx, PushMessage{
		JobID:        job.ID,
		Kind:         kind,
		Data:         d.jobData(job),
		Text:         text,
		AndroidSound: SoundDefault,
		IOSSound:     SoundDefault,
	}, []domain.User{*user}, sendAfter)
	return true
}

func (d *Dispatcher) push(ctx context.Context, msg PushMessage, users []domain.User, sendAfter *time.Time) {
	if len(users) == 0 {
		return
	}
	msg.Recipients = TagExpression(users)
	msg.SendAfter = sendAfter

	log := logger.FromContext(ctx, d.logger).With(
		slog.String("job_id", msg.JobID),
		slog.String("notification_type", string(msg.Kind)),
	)

	if err := d.channels.Push.Push(ctx, msg); err != nil {
		log.Error("Failed to dispatch push",
			slog.Any("recipients", TagEmails(msg.Recipients)),
			slog.String("error", (&domain.DeliveryError{Channel: "push", Err: err}).Error()),
		)
		return
	}

	attrs := []any{
		slog.Any("recipients", TagEmails(msg.Recipients)),
		slog.String("body", msg.Text),
		slog.Bool("delayed", sendAfter != nil),
	}
	if sendAfter != nil {
		attrs = append(attrs, slog.Time("send_after", *sendAfter))
	}
	log.Info("push dispatched", attrs...)
}

// SendSMS texts every translator with a mobile number about a new job and
// returns how many messages were accepted by the gateway. Unless force is
// set a job is texted at most once. Jobs that are neither phone nor
// physical bookings send nothing.
func (d *Dispatcher) SendSMS(ctx context.Context, job *domain.Job, translators []domain.User, force bool) int {
	log := logger.FromContext(ctx, d.logger).With(slog.String("job_id", job.ID))

	if d.channels.SMS == nil {
		log.Warn("sms skipped, no gateway configured")
		return 0
	}

	text, ok := d.texts.SMS(job)
	if !ok {
		log.Info("sms skipped, job has no phone or physical type")
		return 0
	}

	if !force && d.channels.Once != nil {
		first, err := d.channels.Once.First(ctx, "sms:job:"+job.ID)
		if err != nil {
			log.Warn("SMS once-guard unavailable, sending anyway", slog.String("error", err.Error()))
		} else if !first {
			log.Info("sms skipped, already sent for job")
			return 0
		}
	}

	sent := 0
	for _, t := range translators {
		if t.Mobile == "" {
			continue
		}
		status, err := d.channels.SMS.Send(ctx, SMSMessage{From: d.smsSender, To: t.Mobile, Text: text})
		if err != nil {
			log.Error("Failed to send SMS",
				slog.String("translator_id", t.ID),
				slog.String("error", (&domain.DeliveryError{Channel: "sms", Err: err}).Error()),
			)
			continue
		}
		sent++
		log.Info("sms dispatched",
			slog.String("translator_id", t.ID),
			slog.String("email", t.Email),
			slog.String("mobile", t.Mobile),
			slog.String("status", status),
			slog.String("body", text),
		)
	}
	return sent
}

// SendEmails hands mails to the email channel concurrently and returns how
// many were accepted.
func (d *Dispatcher) SendEmails(ctx context.Context, msgs ...EmailMessage) int {
	var (
		g    errgroup.Group
		sent atomic.Int32
	)
	g.SetLimit(d.mailConcurrency)
	log := logger.FromContext(ctx, d.logger)

	for _, m := range msgs {
		if m.To == "" {
			continue
		}
		g.Go(func() error {
			if err := d.channels.Email.Send(ctx, m); err != nil {
				derr := &domain.DeliveryError{Channel: "email", Err: err}
				log.Error("Failed to send email",
					slog.String("to", m.To),
					slog.String("subject", m.Subject),
					slog.String("error", derr.Error()),
				)
				return derr
			}
			sent.Add(1)
			log.Debug("email queued", slog.String("to", m.To), slog.String("template", m.Template))
			return nil
		})
	}

	_ = g.Wait()
	return int(sent.Load())
}

func (d *Dispatcher) jobData(job *domain.Job) map[string]string {
	return map[string]string{
		"job_id":    job.ID,
		"language":  d.texts.Language(job.Language),
		"duration":  strconv.Itoa(job.Duration),
		"due":       d.texts.Due(job),
		"immediate": strconv.FormatBool(job.Immediate),
		"job_type":  string(job.JobType),
		"town":      job.Town,
	}
}
