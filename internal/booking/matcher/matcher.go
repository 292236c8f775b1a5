// Package matcher decides which translators may see and accept a job.
package matcher

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/cuongbtq/booking-service/internal/booking/domain"
)

// potentialJobsPageSize bounds the pending jobs scanned for one translator
const potentialJobsPageSize = 500

// Matcher computes eligible translators for jobs and eligible jobs for translators
type Matcher struct {
	directory domain.UserDirectory
	jobs      domain.JobStore
	logger    *slog.Logger
}

// New creates a Matcher
func New(directory domain.UserDirectory, jobs domain.JobStore, logger *slog.Logger) *Matcher {
	return &Matcher{
		directory: directory,
		jobs:      jobs,
		logger:    logger.With(slog.String("component", "matcher")),
	}
}

// FindEligible returns the translators allowed to see job. Translators in
// exclude are left out, e.g. the translator who just cancelled.
func (m *Matcher) FindEligible(ctx context.Context, job *domain.Job, exclude ...string) ([]domain.User, error) {
	blacklist, err := m.directory.BlacklistedTranslators(ctx, job.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load blacklist: %w", err)
	}

	denied := make(map[string]struct{}, len(blacklist)+len(exclude))
	for _, id := range blacklist {
		denied[id] = struct{}{}
	}
	for _, id := range exclude {
		denied[id] = struct{}{}
	}

	candidates, err := m.directory.FindTranslators(ctx, domain.TranslatorQuery{
		Tier:       job.JobType,
		Language:   job.Language,
		Gender:     job.Gender,
		Levels:     domain.ExpandCertification(job.Certification),
		ExcludeIDs: keys(denied),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query translators: %w", err)
	}

	eligible := make([]domain.User, 0, len(candidates))
	for i := range candidates {
		if _, ok := denied[candidates[i].ID]; ok {
			continue
		}
		if Eligible(job, &candidates[i]) {
			eligible = append(eligible, candidates[i])
		}
	}

	if job.SpecificTranslatorID != "" {
		eligible, err = m.restrictToSpecific(ctx, job, eligible)
		if err != nil {
			return nil, err
		}
	}

	m.logger.Debug("Eligible translators computed",
		slog.String("job_id", job.ID),
		slog.Int("candidates", len(candidates)),
		slog.Int("eligible", len(eligible)),
	)
	return eligible, nil
}

// CanSee reports whether translator may see job. It applies the same rules
// as FindEligible for a single pair.
func (m *Matcher) CanSee(ctx context.Context, job *domain.Job, translator *domain.User) (bool, error) {
	blacklist, err := m.directory.BlacklistedTranslators(ctx, job.CustomerID)
	if err != nil {
		return false, fmt.Errorf("failed to load blacklist: %w", err)
	}
	if slices.Contains(blacklist, translator.ID) || !Eligible(job, translator) {
		return false, nil
	}
	if job.SpecificTranslatorID == "" {
		return true, nil
	}
	if job.SpecificTranslatorID != translator.ID {
		return false, nil
	}
	return m.specificAllowed(ctx, job, translator.ID)
}

// PotentialJobs lists the pending jobs translator is allowed to see
func (m *Matcher) PotentialJobs(ctx context.Context, translator *domain.User) ([]domain.Job, error) {
	if !translator.IsTranslator() {
		return nil, fmt.Errorf("user %s is not a translator: %w", translator.ID, domain.ErrForbidden)
	}
	if len(translator.Languages) == 0 {
		return []domain.Job{}, nil
	}

	pending, err := m.jobs.ListJobs(ctx, domain.JobFilter{
		Statuses:  []domain.Status{domain.StatusPending},
		JobType:   translator.Tier(),
		Languages: translator.Languages,
		PageSize:  potentialJobsPageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list pending jobs: %w", err)
	}

	visible := make([]domain.Job, 0, len(pending))
	for i := range pending {
		ok, err := m.CanSee(ctx, &pending[i], translator)
		if err != nil {
			return nil, err
		}
		if ok {
			visible = append(visible, pending[i])
		}
	}
	return visible, nil
}

// Eligible applies the per-pair rules: payment tier, language,
// certification level, gender and the town rule for physical-only jobs.
// Blacklist and specific-job checks need the store and live in Matcher.
func Eligible(job *domain.Job, translator *domain.User) bool {
	if !translator.IsTranslator() {
		return false
	}
	if translator.Tier() != job.JobType {
		return false
	}
	if !translator.Speaks(job.Language) {
		return false
	}
	if levels := domain.ExpandCertification(job.Certification); levels != nil && !slices.Contains(levels, translator.Level) {
		return false
	}
	if job.Gender != domain.GenderAny && translator.Gender != job.Gender {
		return false
	}
	if job.PhysicalOnly() && !sameTown(job.Town, translator.Town) {
		return false
	}
	return true
}

func (m *Matcher) restrictToSpecific(ctx context.Context, job *domain.Job, eligible []domain.User) ([]domain.User, error) {
	idx := slices.IndexFunc(eligible, func(u domain.User) bool { return u.ID == job.SpecificTranslatorID })
	if idx < 0 {
		return []domain.User{}, nil
	}

	ok, err := m.specificAllowed(ctx, job, job.SpecificTranslatorID)
	if err != nil {
		return nil, err
	}
	if !ok {
		m.logger.Info("Specific translator cannot accept job",
			slog.String("job_id", job.ID),
			slog.String("translator_id", job.SpecificTranslatorID),
		)
		return []domain.User{}, nil
	}
	return []domain.User{eligible[idx]}, nil
}

// specificAllowed rejects a designated translator who is booked over the
// job's interval or who already gave the job back.
func (m *Matcher) specificAllowed(ctx context.Context, job *domain.Job, translatorID string) (bool, error) {
	booked, err := m.jobs.TranslatorBookedAt(ctx, translatorID, job.Due, job.Ends(), job.ID)
	if err != nil {
		return false, fmt.Errorf("failed to check translator bookings: %w", err)
	}
	if booked {
		return false, nil
	}

	declined, err := m.jobs.HasCancelledAssignment(ctx, job.ID, translatorID)
	if err != nil {
		return false, fmt.Errorf("failed to check declined assignments: %w", err)
	}
	return !declined, nil
}

func sameTown(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	return a != "" && strings.EqualFold(a, b)
}

func keys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
