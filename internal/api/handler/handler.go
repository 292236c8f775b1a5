package handler

import (
	"context"
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/booking-service/internal/booking/domain"
	"github.com/cuongbtq/booking-service/internal/booking/notify"
	"github.com/cuongbtq/booking-service/internal/booking/orchestrator"
)

// ActorKey is the gin context key holding the calling user's id
const ActorKey = "actor_id"

// BookingService is the lifecycle surface the handlers drive.
// *orchestrator.Orchestrator implements it.
type BookingService interface {
	Store(ctx context.Context, actorID string, req orchestrator.BookingRequest) (*domain.Job, error)
	StoreJobEmail(ctx context.Context, actorID, jobID string, req orchestrator.JobEmailRequest) (*domain.Job, error)
	GetJobFor(ctx context.Context, actorID, jobID string) (*domain.Job, error)
	ListJobs(ctx context.Context, actorID string, filter domain.JobFilter) ([]domain.Job, error)
	UpdateJob(ctx context.Context, actorID, jobID string, req orchestrator.UpdateRequest) (*domain.Job, error)
	AcceptJob(ctx context.Context, actorID, jobID string) (*domain.Job, string, error)
	AcceptJobWithID(ctx context.Context, actorID, jobID string) (*domain.Job, string, error)
	StartJob(ctx context.Context, actorID, jobID string) (*domain.Job, error)
	CancelJob(ctx context.Context, actorID, jobID string) (*domain.Job, error)
	EndJob(ctx context.Context, actorID, jobID string) (*domain.Job, error)
	CustomerNotCall(ctx context.Context, actorID, jobID string) (*domain.Job, error)
	Reopen(ctx context.Context, actorID, jobID string) (*domain.Job, error)
	TimeoutJob(ctx context.Context, actorID, jobID string) (*domain.Job, error)
	FlagJob(ctx context.Context, actorID, jobID string, req orchestrator.FlagRequest) (*domain.Job, error)
	IgnoreExpiring(ctx context.Context, actorID, jobID string) (*domain.Job, error)
	IgnoreExpired(ctx context.Context, actorID, jobID string) (*domain.Job, error)
	ResendNotifications(ctx context.Context, actorID, jobID string) (notify.Fanout, error)
	ResendSMS(ctx context.Context, actorID, jobID string) (int, error)
	UserJobsFor(ctx context.Context, actorID, userID string) (*orchestrator.UserJobs, error)
	UserJobsHistory(ctx context.Context, actorID, userID string, cursor *domain.JobCursor) (*orchestrator.JobsHistory, error)
	PotentialJobs(ctx context.Context, translatorID string) ([]domain.Job, error)
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger      *slog.Logger
	Bookings    BookingService
	ServiceName string
	// HealthCheck reports backing store readiness. Nil means always healthy.
	HealthCheck func(ctx context.Context) error
}

// BookingHandler handles booking-related HTTP requests
type BookingHandler struct {
	logger   *slog.Logger
	bookings BookingService
}

// NewBookingHandler creates a new BookingHandler instance
func NewBookingHandler(deps *Dependencies) *BookingHandler {
	return &BookingHandler{
		logger:   deps.Logger.With(slog.String("component", "booking_handler")),
		bookings: deps.Bookings,
	}
}

func actorID(c *gin.Context) string {
	return c.GetString(ActorKey)
}
