package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/booking-service/internal/booking/domain"
)

var base = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

func pendingJob(id string, due time.Time) *domain.Job {
	return &domain.Job{
		ID:        id,
		Status:    domain.StatusPending,
		Language:  "ar",
		Due:       due,
		Duration:  60,
		JobType:   domain.TierPaid,
		CreatedAt: base,
	}
}

func TestClaimJob(t *testing.T) {
	ctx := context.Background()

	t.Run("first claim wins", func(t *testing.T) {
		s := New()
		require.NoError(t, s.CreateJob(ctx, pendingJob("j1", base.Add(48*time.Hour))))

		job, a, err := s.ClaimJob(ctx, domain.ClaimRequest{JobID: "j1", TranslatorID: "t1", AssignmentID: "a1", At: base})
		require.NoError(t, err)
		assert.Equal(t, domain.StatusAssigned, job.Status)
		assert.Equal(t, "t1", a.TranslatorID)

		_, _, err = s.ClaimJob(ctx, domain.ClaimRequest{JobID: "j1", TranslatorID: "t2", AssignmentID: "a2", At: base})
		var conflict *domain.ConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, domain.ConflictAlreadyClaimed, conflict.Reason)
	})

	t.Run("overlapping booking is double booked", func(t *testing.T) {
		s := New()
		require.NoError(t, s.CreateJob(ctx, pendingJob("j1", base.Add(48*time.Hour))))
		require.NoError(t, s.CreateJob(ctx, pendingJob("j2", base.Add(48*time.Hour+30*time.Minute))))

		_, _, err := s.ClaimJob(ctx, domain.ClaimRequest{JobID: "j1", TranslatorID: "t1", AssignmentID: "a1", At: base})
		require.NoError(t, err)

		_, _, err = s.ClaimJob(ctx, domain.ClaimRequest{JobID: "j2", TranslatorID: "t1", AssignmentID: "a2", At: base})
		var conflict *domain.ConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, domain.ConflictDoubleBooked, conflict.Reason)

		got, err := s.GetJob(ctx, "j2")
		require.NoError(t, err)
		assert.Equal(t, domain.StatusPending, got.Status)
	})

	t.Run("back to back bookings do not overlap", func(t *testing.T) {
		s := New()
		require.NoError(t, s.CreateJob(ctx, pendingJob("j1", base.Add(48*time.Hour))))
		require.NoError(t, s.CreateJob(ctx, pendingJob("j2", base.Add(49*time.Hour))))

		_, _, err := s.ClaimJob(ctx, domain.ClaimRequest{JobID: "j1", TranslatorID: "t1", AssignmentID: "a1", At: base})
		require.NoError(t, err)
		_, _, err = s.ClaimJob(ctx, domain.ClaimRequest{JobID: "j2", TranslatorID: "t1", AssignmentID: "a2", At: base})
		require.NoError(t, err)
	})

	t.Run("unknown job", func(t *testing.T) {
		_, _, err := New().ClaimJob(ctx, domain.ClaimRequest{JobID: "missing", TranslatorID: "t1"})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestClaimJob_ConcurrentSingleWinner(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.CreateJob(ctx, pendingJob("j1", base.Add(48*time.Hour))))

	const racers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		winners   int
		conflicts int
	)
	for i := range racers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := s.ClaimJob(ctx, domain.ClaimRequest{
				JobID:        "j1",
				TranslatorID: fmt.Sprintf("t%d", i),
				AssignmentID: fmt.Sprintf("a%d", i),
				At:           base,
			})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				winners++
			} else if domain.IsConflict(err) {
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
	assert.Equal(t, racers-1, conflicts)

	active := 0
	for _, a := range s.Assignments("j1") {
		if a.Active() {
			active++
		}
	}
	assert.Equal(t, 1, active)
}

func TestCommitTransition(t *testing.T) {
	ctx := context.Background()

	t.Run("stale expected status is rejected", func(t *testing.T) {
		s := New()
		require.NoError(t, s.CreateJob(ctx, pendingJob("j1", base.Add(48*time.Hour))))

		next := pendingJob("j1", base.Add(48*time.Hour))
		next.Status = domain.StatusTimedOut
		err := s.CommitTransition(ctx, domain.TransitionWrite{Job: next, ExpectedStatus: domain.StatusAssigned})

		var conflict *domain.ConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, domain.ConflictStaleStatus, conflict.Reason)

		got, err := s.GetJob(ctx, "j1")
		require.NoError(t, err)
		assert.Equal(t, domain.StatusPending, got.Status)
	})

	t.Run("closes active and opens replacement", func(t *testing.T) {
		s := New()
		require.NoError(t, s.CreateJob(ctx, pendingJob("j1", base.Add(48*time.Hour))))
		job, _, err := s.ClaimJob(ctx, domain.ClaimRequest{JobID: "j1", TranslatorID: "t1", AssignmentID: "a1", At: base})
		require.NoError(t, err)

		err = s.CommitTransition(ctx, domain.TransitionWrite{
			Job:            job,
			ExpectedStatus: domain.StatusAssigned,
			CloseActive:    &domain.AssignmentClose{Kind: domain.CloseCancel, At: base.Add(time.Hour)},
			OpenAssignment: &domain.Assignment{ID: "a2", JobID: "j1", TranslatorID: "t2", AssignedAt: base.Add(time.Hour)},
		})
		require.NoError(t, err)

		rows := s.Assignments("j1")
		require.Len(t, rows, 2)
		assert.NotNil(t, rows[0].CancelAt)
		assert.True(t, rows[1].Active())
		assert.Equal(t, "t2", rows[1].TranslatorID)

		cancelled, err := s.HasCancelledAssignment(ctx, "j1", "t1")
		require.NoError(t, err)
		assert.True(t, cancelled)
	})

	t.Run("second active assignment is rejected", func(t *testing.T) {
		s := New()
		require.NoError(t, s.CreateJob(ctx, pendingJob("j1", base.Add(48*time.Hour))))
		job, _, err := s.ClaimJob(ctx, domain.ClaimRequest{JobID: "j1", TranslatorID: "t1", AssignmentID: "a1", At: base})
		require.NoError(t, err)

		err = s.CommitTransition(ctx, domain.TransitionWrite{
			Job:            job,
			ExpectedStatus: domain.StatusAssigned,
			OpenAssignment: &domain.Assignment{ID: "a2", JobID: "j1", TranslatorID: "t2", AssignedAt: base},
		})
		assert.True(t, domain.IsConflict(err))
	})

	t.Run("insert keeps the source row", func(t *testing.T) {
		s := New()
		old := pendingJob("j1", base.Add(48*time.Hour))
		old.Status = domain.StatusTimedOut
		require.NoError(t, s.CreateJob(ctx, old))

		fresh := pendingJob("j2", base.Add(48*time.Hour))
		err := s.CommitTransition(ctx, domain.TransitionWrite{
			Job:            fresh,
			ExpectedStatus: domain.StatusTimedOut,
			Insert:         true,
			SourceJobID:    "j1",
		})
		require.NoError(t, err)

		got, err := s.GetJob(ctx, "j1")
		require.NoError(t, err)
		assert.Equal(t, domain.StatusTimedOut, got.Status)

		got, err = s.GetJob(ctx, "j2")
		require.NoError(t, err)
		assert.Equal(t, domain.StatusPending, got.Status)
	})
}

func TestListJobs(t *testing.T) {
	ctx := context.Background()
	s := New()

	for i := range 5 {
		j := pendingJob(fmt.Sprintf("j%d", i), base.Add(time.Duration(24+i)*time.Hour))
		j.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if i%2 == 0 {
			j.Language = "fa"
		}
		require.NoError(t, s.CreateJob(ctx, j))
	}

	t.Run("newest first with one extra row", func(t *testing.T) {
		jobs, err := s.ListJobs(ctx, domain.JobFilter{PageSize: 2})
		require.NoError(t, err)
		require.Len(t, jobs, 3)
		assert.Equal(t, "j4", jobs[0].ID)
		assert.Equal(t, "j3", jobs[1].ID)
	})

	t.Run("cursor continues after last row", func(t *testing.T) {
		jobs, err := s.ListJobs(ctx, domain.JobFilter{
			PageSize: 10,
			Cursor:   &domain.JobCursor{CreatedAt: base.Add(3 * time.Minute), JobID: "j3"},
		})
		require.NoError(t, err)
		require.Len(t, jobs, 3)
		assert.Equal(t, "j2", jobs[0].ID)
	})

	t.Run("language and due range", func(t *testing.T) {
		from := base.Add(25 * time.Hour)
		jobs, err := s.ListJobs(ctx, domain.JobFilter{Language: "fa", DueFrom: &from})
		require.NoError(t, err)
		require.Len(t, jobs, 2)
		assert.Equal(t, "j4", jobs[0].ID)
		assert.Equal(t, "j2", jobs[1].ID)
	})

	t.Run("assignment presence", func(t *testing.T) {
		_, _, err := s.ClaimJob(ctx, domain.ClaimRequest{JobID: "j1", TranslatorID: "t1", AssignmentID: "a1", At: base})
		require.NoError(t, err)

		yes := true
		jobs, err := s.ListJobs(ctx, domain.JobFilter{HasAssignment: &yes})
		require.NoError(t, err)
		require.Len(t, jobs, 1)
		assert.Equal(t, "j1", jobs[0].ID)

		jobs, err = s.ListJobs(ctx, domain.JobFilter{TranslatorID: "t1"})
		require.NoError(t, err)
		require.Len(t, jobs, 1)
	})
}

func TestListExpired(t *testing.T) {
	ctx := context.Background()
	s := New()

	expired := pendingJob("old", base.Add(time.Hour))
	expired.WillExpireAt = base.Add(-time.Minute)
	live := pendingJob("new", base.Add(48*time.Hour))
	live.WillExpireAt = base.Add(time.Hour)
	require.NoError(t, s.CreateJob(ctx, expired))
	require.NoError(t, s.CreateJob(ctx, live))

	jobs, err := s.ListExpired(ctx, base, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "old", jobs[0].ID)
}

func TestDirectory(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.AddUser(domain.User{ID: "t1", Email: "Anna@Example.com", Role: domain.RoleTranslator, TranslatorType: "professional", Languages: []string{"ar"}, Level: domain.LevelCertified, Gender: domain.GenderFemale})
	s.AddUser(domain.User{ID: "t2", Role: domain.RoleTranslator, TranslatorType: "volunteer", Languages: []string{"ar"}, Level: domain.LevelLayman})
	s.AddUser(domain.User{ID: "c1", Role: domain.RoleCustomer})
	s.Blacklist("c1", "t2")
	s.Blacklist("c1", "t2")

	u, err := s.GetUserByEmail(ctx, "anna@example.com")
	require.NoError(t, err)
	assert.Equal(t, "t1", u.ID)

	_, err = s.GetUser(ctx, "nobody")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	found, err := s.FindTranslators(ctx, domain.TranslatorQuery{Tier: domain.TierPaid, Language: "AR", Levels: []domain.Level{domain.LevelCertified}})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "t1", found[0].ID)

	found, err = s.FindTranslators(ctx, domain.TranslatorQuery{ExcludeIDs: []string{"t1"}})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "t2", found[0].ID)

	bl, err := s.BlacklistedTranslators(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, []string{"t2"}, bl)
}
