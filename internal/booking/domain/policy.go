package domain

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

const (
	// ImmediateLead is how far ahead an immediate booking is due
	ImmediateLead = 5 * time.Minute

	// CancellationWindow separates early and late cancellations
	CancellationWindow = 24 * time.Hour

	// DueLayout is the customer-facing due date input format (date + time)
	DueLayout = "01/02/2006 15:04"

	// DisplayLayout renders a due timestamp in message texts
	DisplayLayout = "2006-01-02 15:04"
)

// WillExpireAt derives when an unaccepted booking expires from how far
// ahead of its due time it was created.
func WillExpireAt(due, created time.Time) time.Time {
	lead := due.Sub(created)
	switch {
	case lead <= 90*time.Minute:
		return due
	case lead <= 24*time.Hour:
		return created.Add(90 * time.Minute)
	case lead <= 72*time.Hour:
		return created.Add(16 * time.Hour)
	default:
		return due.Add(-48 * time.Hour)
	}
}

// TierForTranslatorType maps a translator account type to the jobs it may see.
// Professionals see paid jobs, rws translators see rws jobs, everyone else unpaid.
func TierForTranslatorType(translatorType string) Tier {
	switch translatorType {
	case "professional":
		return TierPaid
	case "rwstranslator":
		return TierRWS
	default:
		return TierUnpaid
	}
}

// JobTypeForConsumer maps a customer's consumer type to the job's payment tier.
// Unknown consumer types book paid jobs.
func JobTypeForConsumer(consumerType string) Tier {
	switch consumerType {
	case "rwsconsumer":
		return TierRWS
	case "ngo":
		return TierUnpaid
	default:
		return TierPaid
	}
}

// ParseJobFor converts the booking form's multi-select "job_for" values into
// the gender and certification requirements.
func ParseJobFor(values []string) (Gender, Certification) {
	has := func(v string) bool { return slices.Contains(values, v) }

	gender := GenderAny
	switch {
	case has("male"):
		gender = GenderMale
	case has("female"):
		gender = GenderFemale
	}

	cert := CertificationNone
	switch {
	case has("normal") && has("certified"):
		cert = CertificationBoth
	case has("normal") && has("certified_in_law"):
		cert = CertificationNormalLaw
	case has("normal") && has("certified_in_helth"):
		cert = CertificationNormalHealth
	case has("normal"):
		cert = CertificationNormal
	case has("certified"):
		cert = CertificationYes
	case has("certified_in_law"):
		cert = CertificationLaw
	case has("certified_in_helth"):
		cert = CertificationHealth
	}

	return gender, cert
}

// ExpandCertification returns the translator levels accepted for a
// requirement. A nil result means no level filter.
func ExpandCertification(c Certification) []Level {
	switch c {
	case CertificationNone:
		return nil
	case CertificationYes, CertificationBoth:
		return []Level{LevelCertified, LevelCertifiedLaw, LevelCertifiedHealth}
	case CertificationLaw, CertificationNormalLaw:
		return []Level{LevelCertifiedLaw}
	case CertificationHealth, CertificationNormalHealth:
		return []Level{LevelCertifiedHealth}
	case CertificationNormal:
		return []Level{LevelLayman, LevelReadCourses}
	default:
		return slices.Clone(AllLevels)
	}
}

// WithdrawStatus is the customer-cancellation outcome at now
func WithdrawStatus(due, now time.Time) Status {
	if due.Sub(now) >= CancellationWindow {
		return StatusWithdrawBefore24
	}
	return StatusWithdrawAfter24
}

// FormatSessionTime renders an elapsed interval as H:MM:SS. Negative
// intervals clamp to zero.
func FormatSessionTime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d / time.Second)
	return fmt.Sprintf("%d:%02d:%02d", total/3600, (total/60)%60, total%60)
}

// HumanSessionTime turns "H:MM[:SS]" into the "H tim M min" form used in
// invoice and payroll mails.
func HumanSessionTime(sessionTime string) (string, error) {
	parts := strings.Split(strings.TrimSpace(sessionTime), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return "", &ValidationError{Field: "session_time", Message: "session time must be H:MM:SS"}
	}

	hours, err := strconv.Atoi(parts[0])
	if err != nil || hours < 0 {
		return "", &ValidationError{Field: "session_time", Message: "invalid hours in session time"}
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil || minutes < 0 || minutes > 59 {
		return "", &ValidationError{Field: "session_time", Message: "invalid minutes in session time"}
	}

	return fmt.Sprintf("%d tim %d min", hours, minutes), nil
}

// ConvertToHoursMins formats a duration in minutes for SMS texts:
// 45 -> "45min", 60 -> "1h", 90 -> "01h 30min".
func ConvertToHoursMins(minutes int) string {
	switch {
	case minutes < 60:
		return fmt.Sprintf("%dmin", minutes)
	case minutes == 60:
		return "1h"
	default:
		return fmt.Sprintf("%02dh %02dmin", minutes/60, minutes%60)
	}
}
