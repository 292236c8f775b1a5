package dto

import (
	"github.com/cuongbtq/booking-service/internal/booking/domain"
)

// CreateBookingRequest is the body of POST /bookings
type CreateBookingRequest struct {
	FromLanguageID       string   `json:"from_language_id"`
	Immediate            string   `json:"immediate"`
	DueDate              string   `json:"due_date"`
	DueTime              string   `json:"due_time"`
	Duration             int      `json:"duration"`
	CustomerPhoneType    string   `json:"customer_phone_type"`
	CustomerPhysicalType string   `json:"customer_physical_type"`
	JobFor               []string `json:"job_for"`
	ByAdmin              string   `json:"by_admin"`
	SpecificTranslatorID string   `json:"specific_translator_id"`
}

// JobEmailRequest is the body of POST /bookings/:id/email
type JobEmailRequest struct {
	UserEmail    string `json:"user_email"`
	Reference    string `json:"reference"`
	Address      string `json:"address"`
	Instructions string `json:"instructions"`
	Town         string `json:"town"`
}

// UpdateBookingRequest is the body of PUT /bookings/:id
type UpdateBookingRequest struct {
	Status          string  `json:"status"`
	DueDate         string  `json:"due_date"`
	DueTime         string  `json:"due_time"`
	FromLanguageID  string  `json:"from_language_id"`
	Translator      string  `json:"translator"`
	TranslatorEmail string  `json:"translator_email"`
	AdminComments   string  `json:"admin_comments"`
	Reference       *string `json:"reference"`
	SessionTime     string  `json:"session_time"`
}

// FlagRequest is the body of POST /bookings/:id/flags
type FlagRequest struct {
	AdminComments   *string `json:"admin_comments"`
	SessionTime     *string `json:"session_time"`
	Flagged         *bool   `json:"flagged"`
	ManuallyHandled *bool   `json:"manually_handled"`
	ByAdmin         *bool   `json:"by_admin"`
}

// AcceptRequest is the body of POST /bookings/accept
type AcceptRequest struct {
	JobID string `json:"job_id" binding:"required"`
}

// ListBookingsRequest holds the admin listing query
type ListBookingsRequest struct {
	Status        []string `form:"status"`
	Language      []string `form:"lang"`
	JobType       string   `form:"job_type"`
	CustomerID    string   `form:"customer_id"`
	TranslatorID  string   `form:"translator_id"`
	DueFrom       string   `form:"from"`
	DueTo         string   `form:"to"`
	HasAssignment string   `form:"has_assignment"`
	Immediate     string   `form:"immediate"`
	PageSize      int      `form:"page_size"`
	Cursor        string   `form:"cursor"`
}

// ListBookingsResponse is one page of the admin listing
type ListBookingsResponse struct {
	Jobs       []domain.Job `json:"jobs"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

// JobResponse wraps a job in the success envelope
type JobResponse struct {
	domain.Result
	Job *domain.Job `json:"job,omitempty"`
}

// ResendResponse reports how many translators were reached
type ResendResponse struct {
	domain.Result
	Immediate int `json:"immediate"`
	Delayed   int `json:"delayed"`
	Skipped   int `json:"skipped"`
	SMSSent   int `json:"sms_sent"`
}

// JobsHistoryResponse is one page of a user's finished jobs
type JobsHistoryResponse struct {
	UserType   string       `json:"usertype"`
	Jobs       []domain.Job `json:"jobs"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

// JobsResponse lists jobs without pagination
type JobsResponse struct {
	Jobs []domain.Job `json:"jobs"`
}

// Flag parses the "yes"/"no" strings the booking form sends
func Flag(value string) bool {
	switch value {
	case "yes", "true", "1":
		return true
	}
	return false
}
