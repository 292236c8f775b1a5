// Package memory is a process-local JobStore and UserDirectory. A single
// mutex serialises every operation, which makes ClaimJob and
// CommitTransition compare-and-set by construction.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cuongbtq/booking-service/internal/booking/domain"
)

// Store holds jobs, assignments, users and blacklists in memory
type Store struct {
	mu          sync.Mutex
	jobs        map[string]*domain.Job
	assignments []*domain.Assignment
	users       map[string]*domain.User
	blacklist   map[string][]string
}

// New creates an empty store
func New() *Store {
	return &Store{
		jobs:      make(map[string]*domain.Job),
		users:     make(map[string]*domain.User),
		blacklist: make(map[string][]string),
	}
}

// AddUser registers or replaces a user
func (s *Store) AddUser(u domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u.Languages = slices.Clone(u.Languages)
	s.users[u.ID] = &u
}

// Blacklist records that customerID excludes translatorID
func (s *Store) Blacklist(customerID, translatorID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !slices.Contains(s.blacklist[customerID], translatorID) {
		s.blacklist[customerID] = append(s.blacklist[customerID], translatorID)
	}
}

// Assignments returns copies of every assignment row of a job, oldest first
func (s *Store) Assignments(jobID string) []domain.Assignment {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Assignment
	for _, a := range s.assignments {
		if a.JobID == jobID {
			out = append(out, *a)
		}
	}
	return out
}

func (s *Store) CreateJob(_ context.Context, job *domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[job.ID]; ok {
		return fmt.Errorf("job %s already exists", job.ID)
	}
	s.jobs[job.ID] = job.Clone()
	return nil
}

func (s *Store) GetJob(_ context.Context, id string) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %s: %w", id, domain.ErrNotFound)
	}
	return job.Clone(), nil
}

func (s *Store) ListJobs(_ context.Context, f domain.JobFilter) ([]domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Job
	for _, job := range s.jobs {
		if s.matches(job, &f) {
			out = append(out, *job.Clone())
		}
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := sortKey(&out[i], &f), sortKey(&out[j], &f)
		if !a.Equal(b) {
			return a.After(b)
		}
		return out[i].ID > out[j].ID
	})

	if f.PageSize > 0 && len(out) > f.PageSize+1 {
		out = out[:f.PageSize+1]
	}
	return out, nil
}

func (s *Store) matches(job *domain.Job, f *domain.JobFilter) bool {
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, job.Status) {
		return false
	}
	if f.Language != "" && !strings.EqualFold(job.Language, f.Language) {
		return false
	}
	if len(f.Languages) > 0 && !slices.ContainsFunc(f.Languages, func(l string) bool { return strings.EqualFold(l, job.Language) }) {
		return false
	}
	if f.JobType != "" && job.JobType != f.JobType {
		return false
	}
	if f.CustomerID != "" && job.CustomerID != f.CustomerID {
		return false
	}
	if f.DueFrom != nil && job.Due.Before(*f.DueFrom) {
		return false
	}
	if f.DueTo != nil && job.Due.After(*f.DueTo) {
		return false
	}
	if f.Immediate != nil && job.Immediate != *f.Immediate {
		return false
	}

	active := s.activeLocked(job.ID)
	if f.HasAssignment != nil && (active != nil) != *f.HasAssignment {
		return false
	}
	if f.TranslatorID != "" && (active == nil || active.TranslatorID != f.TranslatorID) {
		return false
	}
	if f.HeldByTranslatorID != "" && !slices.ContainsFunc(s.assignments, func(a *domain.Assignment) bool {
		return a.JobID == job.ID && a.TranslatorID == f.HeldByTranslatorID
	}) {
		return false
	}
	if c := f.Cursor; c != nil {
		key, pos := sortKey(job, f), c.CreatedAt
		if f.OrderByDue {
			pos = c.Due
		}
		if key.After(pos) || (key.Equal(pos) && job.ID >= c.JobID) {
			return false
		}
	}
	return true
}

func sortKey(job *domain.Job, f *domain.JobFilter) time.Time {
	if f.OrderByDue {
		return job.Due
	}
	return job.CreatedAt
}

func (s *Store) ActiveAssignment(_ context.Context, jobID string) (*domain.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a := s.activeLocked(jobID)
	if a == nil {
		return nil, fmt.Errorf("active assignment for job %s: %w", jobID, domain.ErrNotFound)
	}
	c := *a
	return &c, nil
}

func (s *Store) activeLocked(jobID string) *domain.Assignment {
	for _, a := range s.assignments {
		if a.JobID == jobID && a.Active() {
			return a
		}
	}
	return nil
}

func (s *Store) ClaimJob(_ context.Context, req domain.ClaimRequest) (*domain.Job, *domain.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[req.JobID]
	if !ok {
		return nil, nil, fmt.Errorf("job %s: %w", req.JobID, domain.ErrNotFound)
	}

	if s.bookedLocked(req.TranslatorID, job.Due, job.Ends(), job.ID) {
		return nil, nil, &domain.ConflictError{Reason: domain.ConflictDoubleBooked}
	}
	if job.Status != domain.StatusPending || s.activeLocked(job.ID) != nil {
		return nil, nil, &domain.ConflictError{Reason: domain.ConflictAlreadyClaimed}
	}

	a := &domain.Assignment{
		ID:           req.AssignmentID,
		JobID:        job.ID,
		TranslatorID: req.TranslatorID,
		AssignedAt:   req.At,
	}
	s.assignments = append(s.assignments, a)

	job.Status = domain.StatusAssigned
	job.UpdatedAt = req.At

	ac := *a
	return job.Clone(), &ac, nil
}

func (s *Store) CommitTransition(_ context.Context, w domain.TransitionWrite) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	source, ok := s.jobs[w.SourceID()]
	if !ok {
		return fmt.Errorf("job %s: %w", w.SourceID(), domain.ErrNotFound)
	}
	if source.Status != w.ExpectedStatus {
		return &domain.ConflictError{
			Reason:  domain.ConflictStaleStatus,
			Message: fmt.Sprintf("job is %s, expected %s", source.Status, w.ExpectedStatus),
		}
	}
	if w.Insert {
		if _, exists := s.jobs[w.Job.ID]; exists {
			return fmt.Errorf("job %s already exists", w.Job.ID)
		}
	}
	if w.OpenAssignment != nil && w.OpenAssignment.Active() {
		if active := s.activeLocked(w.OpenAssignment.JobID); active != nil && (w.CloseActive == nil || active.JobID != source.ID) {
			return &domain.ConflictError{Reason: domain.ConflictAlreadyClaimed}
		}
	}

	if w.CloseActive != nil {
		if active := s.activeLocked(source.ID); active != nil {
			at := w.CloseActive.At
			switch w.CloseActive.Kind {
			case domain.CloseCancel:
				active.CancelAt = &at
			case domain.CloseComplete:
				active.CompletedAt = &at
				active.CompletedBy = w.CloseActive.By
			}
		}
	}

	if w.OpenAssignment != nil {
		a := *w.OpenAssignment
		s.assignments = append(s.assignments, &a)
	}

	s.jobs[w.Job.ID] = w.Job.Clone()
	return nil
}

func (s *Store) TranslatorBookedAt(_ context.Context, translatorID string, from, to time.Time, excludeJobID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bookedLocked(translatorID, from, to, excludeJobID), nil
}

func (s *Store) bookedLocked(translatorID string, from, to time.Time, excludeJobID string) bool {
	for _, a := range s.assignments {
		if a.TranslatorID != translatorID || !a.Active() || a.JobID == excludeJobID {
			continue
		}
		job, ok := s.jobs[a.JobID]
		if !ok || !job.Status.Open() {
			continue
		}
		if job.Due.Before(to) && from.Before(job.Ends()) {
			return true
		}
	}
	return false
}

func (s *Store) HasCancelledAssignment(_ context.Context, jobID, translatorID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.assignments {
		if a.JobID == jobID && a.TranslatorID == translatorID && a.CancelAt != nil {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) ListExpired(_ context.Context, now time.Time, limit int) ([]domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Job
	for _, job := range s.jobs {
		if job.Status == domain.StatusPending && !job.WillExpireAt.After(now) {
			out = append(out, *job.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WillExpireAt.Before(out[j].WillExpireAt) })

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
