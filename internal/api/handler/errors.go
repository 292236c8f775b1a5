package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/booking-service/internal/booking/domain"
	"github.com/cuongbtq/booking-service/shared/logger"
)

// statusOf maps the error taxonomy onto HTTP status codes
func statusOf(err error) int {
	var (
		v *domain.ValidationError
		c *domain.ConflictError
		p *domain.PreconditionError
	)
	switch {
	case errors.As(err, &v), errors.As(err, &p):
		return http.StatusBadRequest
	case errors.As(err, &c):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

// respondError writes the fail body for business errors and a bare 500
// for everything else
func (h *BookingHandler) respondError(c *gin.Context, op string, err error) {
	log := logger.FromContext(c.Request.Context(), h.logger)

	result, ok := domain.FailureOf(err)
	if !ok {
		log.Error("Request failed",
			slog.String("operation", op),
			slog.String("job_id", c.Param("id")),
			slog.String("error", err.Error()),
		)
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  domain.ResultFail,
			"message": "Internal server error",
		})
		return
	}

	log.Info("Request rejected",
		slog.String("operation", op),
		slog.String("job_id", c.Param("id")),
		slog.String("reason", result.Reason),
		slog.String("field_name", result.FieldName),
	)
	c.JSON(statusOf(err), result)
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, domain.Result{Status: domain.ResultFail, Message: message})
}
