package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFailureOf(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		want   Result
		isFail bool
	}{
		{
			name:   "validation carries field name",
			err:    &ValidationError{Field: "due_date", Message: "Du måste fylla in alla fält"},
			want:   Result{Status: ResultFail, Message: "Du måste fylla in alla fält", FieldName: "due_date"},
			isFail: true,
		},
		{
			name:   "wrapped conflict carries reason",
			err:    fmt.Errorf("accept: %w", &ConflictError{Reason: ConflictDoubleBooked, Message: "busy"}),
			want:   Result{Status: ResultFail, Message: "busy", Reason: "double_booked"},
			isFail: true,
		},
		{
			name:   "precondition carries rule",
			err:    &PreconditionError{Rule: "admin_comment_required", Message: "comment required"},
			want:   Result{Status: ResultFail, Message: "comment required", Reason: "admin_comment_required"},
			isFail: true,
		},
		{
			name:   "not found",
			err:    fmt.Errorf("job j-1: %w", ErrNotFound),
			want:   Result{Status: ResultFail, Message: "job j-1: not found", Reason: "not_found"},
			isFail: true,
		},
		{
			name:   "infrastructure errors are not business failures",
			err:    errors.New("connection refused"),
			isFail: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FailureOf(tt.err)
			assert.Equal(t, tt.isFail, ok)
			if tt.isFail {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestErrorPredicates(t *testing.T) {
	assert.True(t, IsValidation(fmt.Errorf("x: %w", &ValidationError{Field: "f"})))
	assert.True(t, IsConflict(&ConflictError{Reason: ConflictAlreadyClaimed}))
	assert.True(t, IsPrecondition(&PreconditionError{Rule: "r"}))
	assert.True(t, IsNotFound(fmt.Errorf("user: %w", ErrNotFound)))
	assert.False(t, IsConflict(errors.New("x")))

	inner := errors.New("timeout")
	d := &DeliveryError{Channel: "sms", Err: inner}
	assert.ErrorIs(t, d, inner)
	assert.Equal(t, "sms delivery failed: timeout", d.Error())
}
