package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/booking-service/internal/api/dto"
	"github.com/cuongbtq/booking-service/internal/booking/domain"
	"github.com/cuongbtq/booking-service/internal/booking/orchestrator"
	"github.com/cuongbtq/booking-service/shared/logger"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Store handles POST /api/v1/bookings
func (h *BookingHandler) Store(c *gin.Context) {
	var req dto.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	job, err := h.bookings.Store(c.Request.Context(), actorID(c), orchestrator.BookingRequest{
		Language:             req.FromLanguageID,
		Immediate:            dto.Flag(req.Immediate),
		DueDate:              req.DueDate,
		DueTime:              req.DueTime,
		Duration:             req.Duration,
		PhoneType:            dto.Flag(req.CustomerPhoneType),
		PhysicalType:         dto.Flag(req.CustomerPhysicalType),
		JobFor:               req.JobFor,
		ByAdmin:              dto.Flag(req.ByAdmin),
		SpecificTranslatorID: req.SpecificTranslatorID,
	})
	if err != nil {
		h.respondError(c, "store", err)
		return
	}

	c.JSON(http.StatusCreated, dto.JobResponse{Result: domain.Success(""), Job: job})
}

// StoreJobEmail handles POST /api/v1/bookings/:id/email
func (h *BookingHandler) StoreJobEmail(c *gin.Context) {
	var req dto.JobEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	job, err := h.bookings.StoreJobEmail(c.Request.Context(), actorID(c), c.Param("id"), orchestrator.JobEmailRequest{
		Email:        req.UserEmail,
		Reference:    req.Reference,
		Address:      req.Address,
		Instructions: req.Instructions,
		Town:         req.Town,
	})
	h.respondJob(c, "store_job_email", job, err)
}

// Show handles GET /api/v1/bookings/:id
func (h *BookingHandler) Show(c *gin.Context) {
	job, err := h.bookings.GetJobFor(c.Request.Context(), actorID(c), c.Param("id"))
	h.respondJob(c, "show", job, err)
}

// List handles GET /api/v1/bookings
func (h *BookingHandler) List(c *gin.Context) {
	var req dto.ListBookingsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, "Invalid query parameters")
		return
	}

	filter, err := listFilter(req)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	log := logger.FromContext(c.Request.Context(), h.logger)
	log.Debug("Listing bookings", slog.Any("cursor", filter.Cursor), slog.Int("page_size", filter.PageSize))

	jobs, err := h.bookings.ListJobs(c.Request.Context(), actorID(c), filter)
	if err != nil {
		h.respondError(c, "list", err)
		return
	}

	hasMore := len(jobs) > filter.PageSize
	if hasMore {
		jobs = jobs[:filter.PageSize]
	}

	var nextCursor string
	if hasMore {
		last := jobs[len(jobs)-1]
		nextCursor = EncodeJobCursor(&domain.JobCursor{CreatedAt: last.CreatedAt, JobID: last.ID})
	}

	if jobs == nil {
		jobs = []domain.Job{}
	}
	c.JSON(http.StatusOK, dto.ListBookingsResponse{Jobs: jobs, NextCursor: nextCursor})
}

type filterError string

func (e filterError) Error() string { return string(e) }

func listFilter(req dto.ListBookingsRequest) (domain.JobFilter, error) {
	filter := domain.JobFilter{
		Languages:    req.Language,
		JobType:      domain.Tier(req.JobType),
		CustomerID:   req.CustomerID,
		TranslatorID: req.TranslatorID,
		PageSize:     req.PageSize,
	}

	if filter.PageSize <= 0 {
		filter.PageSize = defaultPageSize
	}
	if filter.PageSize > maxPageSize {
		filter.PageSize = maxPageSize
	}

	for _, raw := range req.Status {
		s, err := domain.ParseStatus(raw)
		if err != nil {
			return filter, filterError("Invalid status: " + raw)
		}
		filter.Statuses = append(filter.Statuses, s)
	}

	for _, b := range []struct {
		raw string
		dst **time.Time
		key string
	}{
		{req.DueFrom, &filter.DueFrom, "from"},
		{req.DueTo, &filter.DueTo, "to"},
	} {
		if b.raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, b.raw)
		if err != nil {
			return filter, filterError("Invalid " + b.key + " date, expected RFC3339")
		}
		*b.dst = &t
	}

	for _, b := range []struct {
		raw string
		dst **bool
		key string
	}{
		{req.HasAssignment, &filter.HasAssignment, "has_assignment"},
		{req.Immediate, &filter.Immediate, "immediate"},
	} {
		if b.raw == "" {
			continue
		}
		v, err := strconv.ParseBool(b.raw)
		if err != nil {
			return filter, filterError("Invalid " + b.key + " flag")
		}
		*b.dst = &v
	}

	cursor, err := DecodeJobCursor(req.Cursor)
	if err != nil {
		return filter, filterError("Invalid cursor")
	}
	filter.Cursor = cursor
	return filter, nil
}

// Update handles PUT /api/v1/bookings/:id
func (h *BookingHandler) Update(c *gin.Context) {
	var req dto.UpdateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	job, err := h.bookings.UpdateJob(c.Request.Context(), actorID(c), c.Param("id"), orchestrator.UpdateRequest{
		Status:          req.Status,
		DueDate:         req.DueDate,
		DueTime:         req.DueTime,
		Language:        req.FromLanguageID,
		TranslatorID:    req.Translator,
		TranslatorEmail: req.TranslatorEmail,
		AdminComments:   req.AdminComments,
		Reference:       req.Reference,
		SessionTime:     req.SessionTime,
	})
	h.respondJob(c, "update", job, err)
}

// Accept handles POST /api/v1/bookings/accept
func (h *BookingHandler) Accept(c *gin.Context) {
	var req dto.AcceptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "job_id is required")
		return
	}

	job, message, err := h.bookings.AcceptJob(c.Request.Context(), actorID(c), req.JobID)
	h.respondAccept(c, job, message, err)
}

// AcceptWithID handles POST /api/v1/bookings/:id/accept
func (h *BookingHandler) AcceptWithID(c *gin.Context) {
	job, message, err := h.bookings.AcceptJobWithID(c.Request.Context(), actorID(c), c.Param("id"))
	h.respondAccept(c, job, message, err)
}

func (h *BookingHandler) respondAccept(c *gin.Context, job *domain.Job, message string, err error) {
	if err != nil {
		h.respondError(c, "accept", err)
		return
	}
	c.JSON(http.StatusOK, dto.JobResponse{Result: domain.Success(message), Job: job})
}

// Start handles POST /api/v1/bookings/:id/start
func (h *BookingHandler) Start(c *gin.Context) {
	job, err := h.bookings.StartJob(c.Request.Context(), actorID(c), c.Param("id"))
	h.respondJob(c, "start", job, err)
}

// Cancel handles POST /api/v1/bookings/:id/cancel
func (h *BookingHandler) Cancel(c *gin.Context) {
	job, err := h.bookings.CancelJob(c.Request.Context(), actorID(c), c.Param("id"))
	h.respondJob(c, "cancel", job, err)
}

// End handles POST /api/v1/bookings/:id/end
func (h *BookingHandler) End(c *gin.Context) {
	job, err := h.bookings.EndJob(c.Request.Context(), actorID(c), c.Param("id"))
	h.respondJob(c, "end", job, err)
}

// CustomerNotCall handles POST /api/v1/bookings/:id/customer-not-call
func (h *BookingHandler) CustomerNotCall(c *gin.Context) {
	job, err := h.bookings.CustomerNotCall(c.Request.Context(), actorID(c), c.Param("id"))
	h.respondJob(c, "customer_not_call", job, err)
}

// Reopen handles POST /api/v1/bookings/:id/reopen
func (h *BookingHandler) Reopen(c *gin.Context) {
	job, err := h.bookings.Reopen(c.Request.Context(), actorID(c), c.Param("id"))
	h.respondJob(c, "reopen", job, err)
}

// Timeout handles POST /api/v1/bookings/:id/timeout
func (h *BookingHandler) Timeout(c *gin.Context) {
	job, err := h.bookings.TimeoutJob(c.Request.Context(), actorID(c), c.Param("id"))
	h.respondJob(c, "timeout", job, err)
}

// Flags handles POST /api/v1/bookings/:id/flags
func (h *BookingHandler) Flags(c *gin.Context) {
	var req dto.FlagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	job, err := h.bookings.FlagJob(c.Request.Context(), actorID(c), c.Param("id"), orchestrator.FlagRequest{
		AdminComments:   req.AdminComments,
		SessionTime:     req.SessionTime,
		Flagged:         req.Flagged,
		ManuallyHandled: req.ManuallyHandled,
		ByAdmin:         req.ByAdmin,
	})
	h.respondJob(c, "flags", job, err)
}

// IgnoreExpiring handles POST /api/v1/bookings/:id/ignore-expiring
func (h *BookingHandler) IgnoreExpiring(c *gin.Context) {
	job, err := h.bookings.IgnoreExpiring(c.Request.Context(), actorID(c), c.Param("id"))
	h.respondJob(c, "ignore_expiring", job, err)
}

// IgnoreExpired handles POST /api/v1/bookings/:id/ignore-expired
func (h *BookingHandler) IgnoreExpired(c *gin.Context) {
	job, err := h.bookings.IgnoreExpired(c.Request.Context(), actorID(c), c.Param("id"))
	h.respondJob(c, "ignore_expired", job, err)
}

// ResendNotifications handles POST /api/v1/bookings/:id/notifications/resend
func (h *BookingHandler) ResendNotifications(c *gin.Context) {
	fanout, err := h.bookings.ResendNotifications(c.Request.Context(), actorID(c), c.Param("id"))
	if err != nil {
		h.respondError(c, "resend_notifications", err)
		return
	}
	c.JSON(http.StatusOK, dto.ResendResponse{
		Result:    domain.Success("Push sent"),
		Immediate: fanout.Immediate,
		Delayed:   fanout.Delayed,
		Skipped:   fanout.Skipped,
	})
}

// ResendSMS handles POST /api/v1/bookings/:id/sms/resend
func (h *BookingHandler) ResendSMS(c *gin.Context) {
	sent, err := h.bookings.ResendSMS(c.Request.Context(), actorID(c), c.Param("id"))
	if err != nil {
		h.respondError(c, "resend_sms", err)
		return
	}
	c.JSON(http.StatusOK, dto.ResendResponse{Result: domain.Success("SMS sent"), SMSSent: sent})
}

// UserJobs handles GET /api/v1/users/:id/jobs
func (h *BookingHandler) UserJobs(c *gin.Context) {
	jobs, err := h.bookings.UserJobsFor(c.Request.Context(), actorID(c), c.Param("id"))
	if err != nil {
		h.respondError(c, "user_jobs", err)
		return
	}
	c.JSON(http.StatusOK, jobs)
}

// UserJobsHistory handles GET /api/v1/users/:id/jobs/history
func (h *BookingHandler) UserJobsHistory(c *gin.Context) {
	cursor, err := DecodeDueCursor(c.Query("cursor"))
	if err != nil {
		badRequest(c, "Invalid cursor")
		return
	}

	history, err := h.bookings.UserJobsHistory(c.Request.Context(), actorID(c), c.Param("id"), cursor)
	if err != nil {
		h.respondError(c, "user_jobs_history", err)
		return
	}

	resp := dto.JobsHistoryResponse{UserType: string(history.UserType), Jobs: history.Jobs}
	if history.Next != nil {
		resp.NextCursor = EncodeDueCursor(history.Next)
	}
	c.JSON(http.StatusOK, resp)
}

// PotentialJobs handles GET /api/v1/translators/:id/potential-jobs
func (h *BookingHandler) PotentialJobs(c *gin.Context) {
	translatorID := c.Param("id")
	if actorID(c) != translatorID {
		h.respondError(c, "potential_jobs", domain.ErrForbidden)
		return
	}

	jobs, err := h.bookings.PotentialJobs(c.Request.Context(), translatorID)
	if err != nil {
		h.respondError(c, "potential_jobs", err)
		return
	}
	if jobs == nil {
		jobs = []domain.Job{}
	}
	c.JSON(http.StatusOK, dto.JobsResponse{Jobs: jobs})
}

func (h *BookingHandler) respondJob(c *gin.Context, op string, job *domain.Job, err error) {
	if err != nil {
		h.respondError(c, op, err)
		return
	}
	c.JSON(http.StatusOK, dto.JobResponse{Result: domain.Success(""), Job: job})
}
